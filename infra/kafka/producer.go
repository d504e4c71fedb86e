// Package kafka ships exported log chunks to a Kafka topic.
package kafka

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/segmentio/kafka-go"
)

// Config selects brokers and topic for either producer.
type Config struct {
	Brokers  []string
	Topic    string
	ClientID string
	// BatchTimeout bounds how long kafka-go waits to fill a batch.
	BatchTimeout time.Duration
}

// Producer writes synchronously with kafka-go, waiting for all replicas.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(cfg Config) *Producer {
	batch := cfg.BatchTimeout
	if batch <= 0 {
		batch = 10 * time.Millisecond
	}
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: batch,
			Balancer:     &kafka.Hash{},
		},
	}
}

// Send returns once the chunk is acknowledged.
func (p *Producer) Send(ctx context.Context, key, value []byte) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
	})
	if err != nil {
		return errors.Wrapf(err, "kafka-go write to %s", p.writer.Topic)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
