package kafka

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/CDeX-Labs/CDeX-Judge-Service/internal/hub"
	"github.com/CDeX-Labs/CDeX-Judge-Service/pkg/events"
)

// Handlers bridge platform topics into room broadcasts. Events enter the
// room's ordered stream like any other publish, so every member observes
// them in sequence order.
type Handlers struct {
	hub    *hub.Hub
	logger zerolog.Logger
}

func NewHandlers(h *hub.Hub, logger zerolog.Logger) *Handlers {
	return &Handlers{
		hub:    h,
		logger: logger.With().Str("component", "kafka-handlers").Logger(),
	}
}

func (h *Handlers) HandleLeaderboardUpdated(ctx context.Context, msg kafka.Message) error {
	var event events.LeaderboardUpdatedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.logger.Error().Err(err).Msg("Failed to unmarshal leaderboard.updated event")
		return err
	}

	h.logger.Info().
		Str("contestId", event.ContestID).
		Int("standings", len(event.Standings)).
		Msg("Processing leaderboard.updated")

	roomID := hub.BuildRoomID(hub.KindContest, event.ContestID)
	if _, err := h.hub.PublishSystem(roomID, hub.Event{
		Type:    hub.EventLeaderboardUpdate,
		Payload: msg.Value,
	}); err != nil {
		if err == hub.ErrRoomNotFound {
			// Nobody is watching this contest on this instance.
			return nil
		}
		return err
	}
	return nil
}

func (h *Handlers) HandleContestStarted(ctx context.Context, msg kafka.Message) error {
	var event events.ContestStartedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.logger.Error().Err(err).Msg("Failed to unmarshal contest.started event")
		return err
	}

	h.logger.Info().
		Str("contestId", event.ContestID).
		Str("title", event.Title).
		Msg("Processing contest.started")

	return h.notifyContestRoom(event.ContestID, msg.Value)
}

func (h *Handlers) HandleContestEnded(ctx context.Context, msg kafka.Message) error {
	var event events.ContestEndedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.logger.Error().Err(err).Msg("Failed to unmarshal contest.ended event")
		return err
	}

	h.logger.Info().
		Str("contestId", event.ContestID).
		Str("title", event.Title).
		Msg("Processing contest.ended")

	return h.notifyContestRoom(event.ContestID, msg.Value)
}

func (h *Handlers) notifyContestRoom(contestID string, payload []byte) error {
	roomID := hub.BuildRoomID(hub.KindContest, contestID)
	if _, err := h.hub.PublishSystem(roomID, hub.Event{
		Type:    hub.EventNotification,
		Payload: payload,
	}); err != nil && err != hub.ErrRoomNotFound {
		return err
	}
	return nil
}

func (h *Handlers) RegisterAll(consumer *Consumer) {
	consumer.RegisterHandler("leaderboard.updated", h.HandleLeaderboardUpdated)
	consumer.RegisterHandler("contest.started", h.HandleContestStarted)
	consumer.RegisterHandler("contest.ended", h.HandleContestEnded)
}
