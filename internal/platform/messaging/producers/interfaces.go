package producers

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// SettlementEvent is published after every committed payment match so
// downstream accounting can consume an ordered stream of money movements.
// Events are keyed by merchant so one merchant's settlements stay in order.
type SettlementEvent struct {
	OrderID             string    `json:"order_id"`
	MerchantPublicID    string    `json:"merchant_public_id"`
	PortalID            string    `json:"portal_id"`
	PortalTransactionID string    `json:"portal_transaction_id"`
	Amount              int64     `json:"amount"`
	OrderStatus         string    `json:"order_status"`
	OccurredAt          time.Time `json:"occurred_at"`
}

// SettlementPublisher publishes settlement events
type SettlementPublisher interface {
	Publish(ctx context.Context, event SettlementEvent) error
	Close() error
}

// DeadLetterPublisher captures settlement events that could not be published
type DeadLetterPublisher interface {
	PublishToDLQ(ctx context.Context, key string, originalMessageValue []byte, reason string) error
	Close() error
}

// KafkaWriter wraps kafka.Writer methods for testing
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}
