// Package notification defines the queued unit of outbound merchant webhook
// delivery.
package notification

import (
	"time"

	"github.com/google/uuid"
)

// Task is one pending merchant callback. Created by any component that needs
// to alert a merchant of an order outcome; consumed and discarded by the
// notification retry queue.
type Task struct {
	TaskID           uuid.UUID `json:"task_id"`
	Heading          string    `json:"heading"`
	Content          string    `json:"content"`
	MerchantPublicID string    `json:"merchant_public_id"`
	CallbackURL      string    `json:"callback_url"`
	OrderID          string    `json:"order_id"`
	OrderStatus      string    `json:"order_status"`
	PaidAmount       int64     `json:"paid_amount"`
	RetryCount       int       `json:"retry_count"`
	ScheduledAt      time.Time `json:"scheduled_at"`
	CreatedAt        time.Time `json:"created_at"`
}

// New builds a task scheduled for immediate delivery
func New(merchantPublicID, callbackURL, orderID, orderStatus string, paidAmount int64, heading, content string) *Task {
	now := time.Now()
	return &Task{
		TaskID:           uuid.New(),
		Heading:          heading,
		Content:          content,
		MerchantPublicID: merchantPublicID,
		CallbackURL:      callbackURL,
		OrderID:          orderID,
		OrderStatus:      orderStatus,
		PaidAmount:       paidAmount,
		ScheduledAt:      now,
		CreatedAt:        now,
	}
}
