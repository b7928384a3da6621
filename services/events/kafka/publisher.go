package kafkaevents

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"github.com/safnadck/myapplication/core"
)

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes domain events as JSON to one topic. Events with the same key keep their order.
type Publisher struct {
	writer messageWriter
}

var _ core.EventPublisher = (*Publisher)(nil)

func NewPublisher(conf *core.Config) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(conf.Kafka.Brokers...),
			Topic:        conf.Kafka.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			WriteTimeout: 5 * time.Second,
		},
	}
}

// NewEventPublisher returns a kafka Publisher, or a no-op publisher when no broker is configured.
func NewEventPublisher(conf *core.Config) core.EventPublisher {
	if len(conf.Kafka.Brokers) == 0 {
		return core.NewNoopPublisher()
	}
	return NewPublisher(conf)
}

func (p *Publisher) Publish(ctx context.Context, key string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "encoding event")
	}
	if err = p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: data}); err != nil {
		return errors.Wrap(err, "writing event")
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
