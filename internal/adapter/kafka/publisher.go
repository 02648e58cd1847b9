// Package kafka publishes cleaned attendance records to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nickswetUCSD/feeding-sd-exploration/internal/config"
	"github.com/nickswetUCSD/feeding-sd-exploration/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher produces cleaned records to a Kafka topic.
// It implements pipeline.Publisher.
type Publisher struct {
	writer    messageWriter
	batchSize int
	logger    *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured topic. Records
// are keyed by ID, so replays of the same export land on the same partition.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchSize:    cfg.KafkaBatchSize,
	}
	return &Publisher{writer: w, batchSize: cfg.KafkaBatchSize, logger: logger}
}

// Publish serializes records and writes them in batches of the configured
// size. It stops at the first failed batch.
func (p *Publisher) Publish(ctx context.Context, records []domain.CleanedRecord) error {
	size := p.batchSize
	if size <= 0 {
		size = len(records)
	}
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		msgs := make([]kafkago.Message, 0, end-start)
		for i := start; i < end; i++ {
			msg, err := serializeToMessage(records[i])
			if err != nil {
				return err
			}
			msgs = append(msgs, msg)
		}
		if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
			return fmt.Errorf("write batch at record %d: %w", start, err)
		}
		p.logger.Debug("batch published", "from", start, "count", len(msgs))
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a CleanedRecord into a Kafka message.
func serializeToMessage(r domain.CleanedRecord) (kafkago.Message, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize record %s: %w", r.ID, err)
	}
	return kafkago.Message{
		Key:   []byte(r.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "weekday", Value: []byte(r.Weekday)},
			{Key: "processed_at", Value: []byte(r.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}
