package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vietpay-gateway/internal/domain/notification"
)

// Sender delivers one callback attempt
type Sender interface {
	Send(ctx context.Context, task *notification.Task) error
}

// HTTPSender posts the task payload to the merchant's callback URL
type HTTPSender struct {
	logger *slog.Logger
	client *http.Client
}

// NewHTTPSender creates the default webhook sender
func NewHTTPSender(logger *slog.Logger, timeout time.Duration) *HTTPSender {
	return &HTTPSender{
		logger: logger,
		client: &http.Client{Timeout: timeout},
	}
}

type callbackPayload struct {
	OrderID     string `json:"order_id"`
	OrderStatus string `json:"order_status"`
	PaidAmount  int64  `json:"paid_amount"`
	Heading     string `json:"heading"`
	Content     string `json:"content"`
}

// Send posts the callback; any non-2xx response counts as a failed attempt
func (s *HTTPSender) Send(ctx context.Context, task *notification.Task) error {
	body, err := json.Marshal(callbackPayload{
		OrderID:     task.OrderID,
		OrderStatus: task.OrderStatus,
		PaidAmount:  task.PaidAmount,
		Heading:     task.Heading,
		Content:     task.Content,
	})
	if err != nil {
		return fmt.Errorf("failed to encode callback payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, task.CallbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver callback: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback returned status %d", resp.StatusCode)
	}
	return nil
}
