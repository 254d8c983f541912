package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/vietpay-gateway/internal/config"
)

// SettlementEventProducer publishes settlement events to the stream topic,
// routing undeliverable events to the DLQ when one is configured.
type SettlementEventProducer struct {
	logger *slog.Logger
	writer KafkaWriter
	dlq    DeadLetterPublisher
	topic  string
}

// NewSettlementEventProducer creates the producer and ensures the topic exists
func NewSettlementEventProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig, dlq DeadLetterPublisher) (*SettlementEventProducer, error) {
	if cfg.SettlementTopic == "" {
		return nil, fmt.Errorf("kafka settlement topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for settlement producer: %w", err)
	}
	defer conn.Close()

	err = createKafkaTopicIfNotExists(conn, cfg.SettlementTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure settlement topic %s exists: %w", cfg.SettlementTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.SettlementTopic,
		Balancer:     &kafka.Hash{}, // Key by merchant keeps per-merchant ordering
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: cfg.MaxWait,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("Failed to write settlement messages", "topic", cfg.SettlementTopic, "error", err, "count", len(messages))
			}
		},
	}

	return &SettlementEventProducer{
		logger: logger,
		writer: writer,
		dlq:    dlq,
		topic:  cfg.SettlementTopic,
	}, nil
}

// Publish writes one settlement event keyed by merchant
func (p *SettlementEventProducer) Publish(ctx context.Context, event SettlementEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal settlement event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.MerchantPublicID),
		Value: value,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish settlement event",
			"topic", p.topic,
			"order_id", event.OrderID,
			"error", err,
		)
		if p.dlq != nil {
			if dlqErr := p.dlq.PublishToDLQ(ctx, event.MerchantPublicID, value, err.Error()); dlqErr != nil {
				p.logger.Error("Failed to publish settlement event to DLQ", "order_id", event.OrderID, "error", dlqErr)
			}
		}
		return fmt.Errorf("failed to publish settlement event to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published settlement event", "topic", p.topic, "order_id", event.OrderID)
	return nil
}

func (p *SettlementEventProducer) Close() error {
	p.logger.Info("Closing settlement event producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close settlement kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
