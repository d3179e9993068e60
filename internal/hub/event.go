package hub

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

type RoomKind string

const (
	KindCollaboration RoomKind = "collab"
	KindContest       RoomKind = "contest"
	KindAssessment    RoomKind = "assessment"
	KindChat          RoomKind = "chat"
)

type EventType string

const (
	EventCodeDelta         EventType = "code_delta"
	EventChatMessage       EventType = "chat_message"
	EventLeaderboardUpdate EventType = "leaderboard_update"
	EventNotification      EventType = "notification"
	EventVerdictReady      EventType = "verdict_ready"
)

// allowedEvents lists the client-publishable event types per room kind.
// System events (membership notifications, verdict delivery) bypass it.
var allowedEvents = map[RoomKind]map[EventType]bool{
	KindCollaboration: {EventCodeDelta: true, EventChatMessage: true},
	KindContest:       {EventLeaderboardUpdate: true, EventChatMessage: true},
	KindAssessment:    {EventCodeDelta: true, EventVerdictReady: true, EventNotification: true},
	KindChat:          {EventChatMessage: true},
}

// Event is the unit of room broadcast. Seq is assigned by the owning room at
// publish time and is gapless and strictly increasing per room.
type Event struct {
	RoomID    string          `json:"roomId"`
	Type      EventType       `json:"type"`
	SenderID  string          `json:"senderId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Seq       uint64          `json:"seq"`
	Timestamp time.Time       `json:"timestamp"`
}

// CodeDelta replaces the document range [RangeStart, RangeEnd) with Text.
type CodeDelta struct {
	RangeStart int    `json:"rangeStart"`
	RangeEnd   int    `json:"rangeEnd"`
	Text       string `json:"text"`
}

type ChatEntry struct {
	Text string `json:"text"`
}

type MembershipChange struct {
	Change string `json:"change"`
	UserID string `json:"userId"`
}

var (
	ErrRoomFull          = errors.New("room is full")
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomClosed        = errors.New("room closed")
	ErrEventNotAllowed   = errors.New("event type not allowed in this room kind")
	ErrReplayGapTooLarge = errors.New("requested sequence is older than the retained replay window")
)

// Room ids are "kind:entity". Ids without a known kind prefix behave as plain
// chat channels.
func ParseRoomKind(roomID string) RoomKind {
	parts := strings.SplitN(roomID, ":", 2)
	if len(parts) != 2 {
		return KindChat
	}

	switch RoomKind(parts[0]) {
	case KindCollaboration, KindContest, KindAssessment, KindChat:
		return RoomKind(parts[0])
	default:
		return KindChat
	}
}

func ExtractRoomEntityID(roomID string) string {
	parts := strings.SplitN(roomID, ":", 2)
	if len(parts) == 2 {
		return parts[1]
	}
	return roomID
}

func BuildRoomID(kind RoomKind, entityID string) string {
	return string(kind) + ":" + entityID
}
