package kafka

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/CDeX-Labs/CDeX-Judge-Service/internal/metrics"
)

type EventHandler func(ctx context.Context, message kafka.Message) error

// Consumer fans platform topics out to registered handlers, one reader per
// topic.
type Consumer struct {
	readers  []*kafka.Reader
	handlers map[string]EventHandler
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

func NewConsumer(brokers []string, groupID string, topics []string, m *metrics.Metrics, logger zerolog.Logger) *Consumer {
	readers := make([]*kafka.Reader, 0, len(topics))
	for _, topic := range topics {
		readers = append(readers, kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			GroupID:        groupID,
			Topic:          topic,
			MinBytes:       10e3,
			MaxBytes:       10e6,
			MaxWait:        1 * time.Second,
			CommitInterval: 1 * time.Second,
			StartOffset:    kafka.LastOffset,
		}))
	}

	return &Consumer{
		readers:  readers,
		handlers: make(map[string]EventHandler),
		metrics:  m,
		logger:   logger.With().Str("component", "kafka").Logger(),
	}
}

func (c *Consumer) RegisterHandler(topic string, handler EventHandler) {
	c.handlers[topic] = handler
}

// Run consumes until ctx is cancelled, then closes every reader.
func (c *Consumer) Run(ctx context.Context) error {
	for _, reader := range c.readers {
		go c.consumeFromReader(ctx, reader)
	}
	c.logger.Info().Int("topics", len(c.readers)).Msg("Kafka consumer started")

	<-ctx.Done()

	var lastErr error
	for _, reader := range c.readers {
		if err := reader.Close(); err != nil {
			lastErr = err
			c.logger.Error().Err(err).Msg("Failed to close reader")
		}
	}
	c.logger.Info().Msg("Kafka consumer stopped")
	return lastErr
}

func (c *Consumer) consumeFromReader(ctx context.Context, reader *kafka.Reader) {
	topic := reader.Config().Topic
	c.logger.Info().Str("topic", topic).Msg("Starting consumer for topic")

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error().Err(err).Str("topic", topic).Msg("Failed to fetch message")
			time.Sleep(1 * time.Second)
			continue
		}

		c.logger.Debug().
			Str("topic", topic).
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("Received message")

		handler, ok := c.handlers[topic]
		if !ok {
			c.logger.Warn().Str("topic", topic).Msg("No handler registered for topic")
			reader.CommitMessages(ctx, msg)
			continue
		}

		if err := handler(ctx, msg); err != nil {
			c.metrics.IncKafkaMessage(topic, "error")
			c.logger.Error().Err(err).Str("topic", topic).Msg("Handler failed")
		} else {
			c.metrics.IncKafkaMessage(topic, "ok")
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error().Err(err).Str("topic", topic).Msg("Failed to commit message")
		}
	}
}
