package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/dyike/FinSight/models"
)

// Publisher sends every finished result to a Kafka topic, keyed by symbol.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   zerolog.Logger
}

func NewPublisher(brokers []string, topic string, logger zerolog.Logger) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	config := sarama.NewConfig()
	config.Version = sarama.V2_8_0_0
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewPublisherWithProducer(producer, topic, logger), nil
}

func NewPublisherWithProducer(producer sarama.SyncProducer, topic string, logger zerolog.Logger) *Publisher {
	return &Publisher{producer: producer, topic: topic, logger: logger}
}

func (p *Publisher) Name() string { return "kafka" }

func (p *Publisher) Save(ctx context.Context, result models.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	value, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(result.Identifier),
		Value: sarama.ByteEncoder(value),
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", result.Identifier, err)
	}
	p.logger.Debug().
		Str("symbol", result.Identifier).
		Str("topic", p.topic).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("analysis published")
	return nil
}

func (p *Publisher) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}
