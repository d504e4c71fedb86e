package kafka

import (
	"context"

	"github.com/IBM/sarama"
	"github.com/cockroachdb/errors"
)

// SaramaProducer is the sarama alternative to Producer.
type SaramaProducer struct {
	producer sarama.SyncProducer
	topic    string
}

func saramaConfig(cfg Config) *sarama.Config {
	sc := sarama.NewConfig()
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 5
	sc.Producer.Partitioner = sarama.NewHashPartitioner
	if cfg.ClientID != "" {
		sc.ClientID = cfg.ClientID
	}
	return sc
}

func NewSaramaProducer(cfg Config) (*SaramaProducer, error) {
	p, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig(cfg))
	if err != nil {
		return nil, errors.Wrap(err, "sarama producer")
	}
	return NewSaramaProducerFrom(p, cfg.Topic), nil
}

// NewSaramaProducerFrom wraps an existing producer, such as a mock.
func NewSaramaProducerFrom(p sarama.SyncProducer, topic string) *SaramaProducer {
	return &SaramaProducer{producer: p, topic: topic}
}

// Send blocks until the broker acknowledges. sarama has no context support
// on SyncProducer, so ctx is only checked before sending.
func (p *SaramaProducer) Send(ctx context.Context, key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.ByteEncoder(key),
		Value: sarama.ByteEncoder(value),
	})
	if err != nil {
		return errors.Wrapf(err, "sarama send to %s", p.topic)
	}
	return nil
}

func (p *SaramaProducer) Close() error {
	return p.producer.Close()
}
