package kafka

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/CDeX-Labs/CDeX-Judge-Service/pkg/events"
)

// Producer emits terminal verdicts for the rest of the platform (leaderboard
// service, notification digests). Keyed by user so one user's verdicts stay
// ordered per partition.
type Producer struct {
	writer *kafka.Writer
	logger zerolog.Logger
}

func NewProducer(brokers []string, topic string, logger zerolog.Logger) *Producer {
	return &Producer{
		writer: kafka.NewWriter(kafka.WriterConfig{
			Brokers:  brokers,
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		}),
		logger: logger.With().Str("component", "kafka-producer").Logger(),
	}
}

func (p *Producer) PublishJudged(ctx context.Context, ev events.SubmissionJudgedEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.UserID),
		Value: data,
	}); err != nil {
		return err
	}

	p.logger.Debug().
		Str("submissionId", ev.SubmissionID).
		Str("verdict", ev.Verdict).
		Msg("Published judged event")
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
