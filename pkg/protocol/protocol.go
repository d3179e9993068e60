package protocol

import (
	"encoding/json"
	"time"
)

type MessageType string

const (
	// Client -> server
	MsgJoinRoom       MessageType = "join_room"
	MsgLeaveRoom      MessageType = "leave_room"
	MsgCodeDelta      MessageType = "code_delta"
	MsgChatMessage    MessageType = "chat_message"
	MsgRunCode        MessageType = "run_code"
	MsgSubmitSolution MessageType = "submit_solution"
	MsgCancelSubmit   MessageType = "cancel_submission"
	MsgReplay         MessageType = "replay"
	MsgSnapshot       MessageType = "snapshot"
	MsgPing           MessageType = "ping"

	// Server -> client
	MsgConnected           MessageType = "connected"
	MsgRoomJoined          MessageType = "room_joined"
	MsgRoomLeft            MessageType = "room_left"
	MsgRoomEvent           MessageType = "room_event"
	MsgReplayResult        MessageType = "replay_result"
	MsgSnapshotResult      MessageType = "snapshot_result"
	MsgRunResult           MessageType = "run_result"
	MsgSubmissionAccepted  MessageType = "submission_accepted"
	MsgSubmissionCancelled MessageType = "submission_cancelled"
	MsgVerdictReady        MessageType = "verdict_ready"
	MsgRejoinRequired      MessageType = "rejoin_required"
	MsgPong                MessageType = "pong"
	MsgError               MessageType = "error"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
	Timestamp string          `json:"timestamp"`
}

func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	return NewMessageWithRequestID(msgType, payload, "")
}

func NewMessageWithRequestID(msgType MessageType, payload interface{}, requestID string) (*Message, error) {
	msg := &Message{
		Type:      msgType,
		RequestID: requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		msg.Payload = data
	}

	return msg, nil
}

func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (m *Message) ToBytes() ([]byte, error) {
	return json.Marshal(m)
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewErrorMessage(code, message, requestID string) (*Message, error) {
	return NewMessageWithRequestID(MsgError, ErrorPayload{
		Code:    code,
		Message: message,
	}, requestID)
}

type ConnectedPayload struct {
	UserID       string `json:"userId"`
	ConnectionID string `json:"connectionId"`
}

type JoinRoomPayload struct {
	RoomID string `json:"roomId"`
}

type RoomJoinedPayload struct {
	RoomID      string `json:"roomId"`
	MemberCount int    `json:"memberCount"`
	LastSeq     uint64 `json:"lastSeq"`
}

type LeaveRoomPayload struct {
	RoomID string `json:"roomId"`
}

type RoomLeftPayload struct {
	RoomID string `json:"roomId"`
}

type CodeDeltaPayload struct {
	RoomID     string `json:"roomId"`
	RangeStart int    `json:"rangeStart"`
	RangeEnd   int    `json:"rangeEnd"`
	Text       string `json:"text"`
}

type ChatMessagePayload struct {
	RoomID string `json:"roomId"`
	Text   string `json:"text"`
}

type RunCodePayload struct {
	Code     string `json:"code"`
	Language string `json:"language"`
	Stdin    string `json:"stdin"`
}

type SubmitSolutionPayload struct {
	SubmissionID string `json:"submissionId,omitempty"`
	ProblemID    string `json:"problemId"`
	Code         string `json:"code"`
	Language     string `json:"language"`
}

type CancelSubmissionPayload struct {
	SubmissionID string `json:"submissionId"`
}

type ReplayPayload struct {
	RoomID   string `json:"roomId"`
	AfterSeq uint64 `json:"afterSeq"`
}

type SnapshotPayload struct {
	RoomID string `json:"roomId"`
}

type RejoinRequiredPayload struct {
	RoomID string `json:"roomId"`
	Reason string `json:"reason"`
}
