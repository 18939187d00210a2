package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/outage-equity-service/internal/config"
	"github.com/couchcryptid/outage-equity-service/internal/domain"
)

// messageWriter is the subset of *kafkago.Writer the audit writer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes query audit records to the audit topic.
// It implements analysis.Auditor.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured audit topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaAuditTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish writes one audit record, keyed by its ID.
func (w *Writer) Publish(ctx context.Context, audit domain.QueryAudit) error {
	msg, err := serializeToMessage(audit)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish query audit %s: %w", audit.ID, err)
	}
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a QueryAudit into a Kafka message.
func serializeToMessage(audit domain.QueryAudit) (kafkago.Message, error) {
	data, err := json.Marshal(audit)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize query audit: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(audit.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "dataset", Value: []byte(audit.Dataset)},
			{Key: "intent", Value: []byte(audit.Intent)},
			{Key: "answered_at", Value: []byte(audit.AnsweredAt.Format(time.RFC3339))},
		},
	}, nil
}
