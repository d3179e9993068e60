package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/CDeX-Labs/CDeX-Judge-Service/internal/metrics"
	"github.com/CDeX-Labs/CDeX-Judge-Service/pkg/protocol"
)

type Config struct {
	MaxMembers  int
	ReplayDepth int
	SendBuffer  int
	IdleTTL     time.Duration
	GCInterval  time.Duration
}

func (c *Config) withDefaults() {
	if c.MaxMembers <= 0 {
		c.MaxMembers = 64
	}
	if c.ReplayDepth <= 0 {
		c.ReplayDepth = 256
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 256
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = 5 * time.Minute
	}
	if c.GCInterval <= 0 {
		c.GCInterval = 30 * time.Second
	}
}

// MessageHandler lets another component take over a message type; the judge
// pipeline registers one for run/submit/cancel.
type MessageHandler func(client *Client, msg *protocol.Message)

// Hub is the connection and room registry. Each room serializes its own
// state through its command loop; the hub only routes.
type Hub struct {
	clients     map[*Client]bool
	userClients map[string]map[*Client]bool
	Register    chan *Client
	Unregister  chan *Client
	mu          sync.RWMutex

	rooms   map[string]*Room
	roomsMu sync.RWMutex

	cfg     Config
	metrics *metrics.Metrics
	logger  zerolog.Logger

	JudgeHandler MessageHandler
}

func NewHub(cfg Config, m *metrics.Metrics, logger zerolog.Logger) *Hub {
	cfg.withDefaults()
	return &Hub{
		clients:     make(map[*Client]bool),
		userClients: make(map[string]map[*Client]bool),
		Register:    make(chan *Client),
		Unregister:  make(chan *Client, 16),
		rooms:       make(map[string]*Room),
		cfg:         cfg,
		metrics:     m,
		logger:      logger.With().Str("component", "hub").Logger(),
	}
}

func (h *Hub) Run(ctx context.Context) {
	gc := time.NewTicker(h.cfg.GCInterval)
	defer gc.Stop()

	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case <-gc.C:
			h.collectIdleRooms()

		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) SendBuffer() int {
	return h.cfg.SendBuffer
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true

	if h.userClients[client.UserID] == nil {
		h.userClients[client.UserID] = make(map[*Client]bool)
	}
	h.userClients[client.UserID][client] = true

	h.metrics.IncConnections()

	h.logger.Info().
		Str("clientId", client.ID).
		Str("userId", client.UserID).
		Int("totalClients", len(h.clients)).
		Msg("Client registered")
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	if userClients, ok := h.userClients[client.UserID]; ok {
		delete(userClients, client)
		if len(userClients) == 0 {
			delete(h.userClients, client.UserID)
		}
	}
	total := len(h.clients)
	h.mu.Unlock()

	// Disconnect leaves every joined room; each room announces member_left.
	for _, roomID := range client.GetRooms() {
		if room := h.getRoom(roomID); room != nil {
			room.Leave(client)
		}
	}

	// The send channels stay open; done tells the write pump and any
	// in-flight handler goroutine the client is gone.
	client.close()

	h.metrics.DecConnections()

	h.logger.Info().
		Str("clientId", client.ID).
		Str("userId", client.UserID).
		Int("totalClients", total).
		Msg("Client unregistered")
}

// DisconnectClient is the synchronous form of the Unregister channel, used
// where the caller must observe the departure.
func (h *Hub) DisconnectClient(client *Client) {
	h.unregisterClient(client)
}

func (h *Hub) getRoom(roomID string) *Room {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	return h.rooms[roomID]
}

func (h *Hub) getOrCreateRoom(roomID string) *Room {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()

	if room, ok := h.rooms[roomID]; ok {
		return room
	}

	room := NewRoom(roomID, h.cfg.MaxMembers, h.cfg.ReplayDepth, h.logger)
	h.rooms[roomID] = room
	h.metrics.SetRooms(len(h.rooms))

	h.logger.Info().Str("roomId", roomID).Str("kind", string(room.Kind)).Msg("Room created")
	return room
}

func (h *Hub) collectIdleRooms() {
	now := time.Now()

	h.roomsMu.Lock()
	var idle []*Room
	for id, room := range h.rooms {
		if room.IdleSince(now) > h.cfg.IdleTTL {
			delete(h.rooms, id)
			idle = append(idle, room)
		}
	}
	h.metrics.SetRooms(len(h.rooms))
	h.roomsMu.Unlock()

	// The room's session dies with it; history does not survive an empty room.
	for _, room := range idle {
		room.Close()
		h.logger.Info().Str("roomId", room.ID).Msg("Idle room collected")
	}
}

// JoinRoom creates the room on first reference.
func (h *Hub) JoinRoom(client *Client, roomID string) (memberCount int, lastSeq uint64, err error) {
	room := h.getOrCreateRoom(roomID)
	memberCount, lastSeq, err = room.Join(client)
	if err == ErrRoomClosed {
		// Lost a race with the garbage collector; the next attempt recreates it.
		h.roomsMu.Lock()
		if h.rooms[roomID] == room {
			delete(h.rooms, roomID)
		}
		h.roomsMu.Unlock()
		return h.JoinRoom(client, roomID)
	}
	return memberCount, lastSeq, err
}

func (h *Hub) LeaveRoom(client *Client, roomID string) {
	if room := h.getRoom(roomID); room != nil {
		room.Leave(client)
	}
}

// Publish routes a client-originated event to its room.
func (h *Hub) Publish(roomID string, ev Event) (uint64, error) {
	room := h.getRoom(roomID)
	if room == nil {
		return 0, ErrRoomNotFound
	}
	seq, err := room.Publish(ev)
	if err == nil {
		h.metrics.IncEventPublished(string(ev.Type))
	}
	return seq, err
}

// PublishSystem routes a server-originated event, bypassing the room kind's
// client allowlist.
func (h *Hub) PublishSystem(roomID string, ev Event) (uint64, error) {
	room := h.getRoom(roomID)
	if room == nil {
		return 0, ErrRoomNotFound
	}
	seq, err := room.PublishSystem(ev)
	if err == nil {
		h.metrics.IncEventPublished(string(ev.Type))
	}
	return seq, err
}

func (h *Hub) Replay(roomID string, afterSeq uint64) ([]Event, error) {
	room := h.getRoom(roomID)
	if room == nil {
		return nil, ErrRoomNotFound
	}
	return room.Replay(afterSeq)
}

func (h *Hub) Snapshot(roomID string) (*Snapshot, error) {
	room := h.getRoom(roomID)
	if room == nil {
		return nil, ErrRoomNotFound
	}
	return room.Snapshot()
}

func (h *Hub) MembersOf(roomID string) []string {
	room := h.getRoom(roomID)
	if room == nil {
		return nil
	}
	return room.Members()
}

// RoomsOfUser returns every room any of the user's connections has joined.
func (h *Hub) RoomsOfUser(userID string) []string {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.userClients[userID]))
	for c := range h.userClients[userID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	seen := make(map[string]bool)
	var rooms []string
	for _, c := range clients {
		for _, roomID := range c.GetRooms() {
			if !seen[roomID] {
				seen[roomID] = true
				rooms = append(rooms, roomID)
			}
		}
	}
	return rooms
}

func (h *Hub) SendToClient(client *Client, msg *protocol.Message) {
	data, err := msg.ToBytes()
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to serialize message")
		return
	}

	select {
	case <-client.done:
		return
	default:
	}

	select {
	case client.Send <- data:
		h.metrics.IncMessagesSent()
	default:
		h.logger.Warn().Str("clientId", client.ID).Msg("Client send buffer full, disconnecting")
		select {
		case h.Unregister <- client:
		default:
		}
	}
}

func (h *Hub) SendToUser(userID string, msg *protocol.Message) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.userClients[userID]))
	for c := range h.userClients[userID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		h.SendToClient(client, msg)
	}
}

func (h *Hub) ProcessMessage(client *Client, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		h.logger.Error().Err(err).Str("clientId", client.ID).Msg("Failed to parse message")
		h.sendError(client, "PARSE_ERROR", "Invalid message format", "")
		return
	}

	h.metrics.IncMessagesReceived()

	h.logger.Debug().
		Str("clientId", client.ID).
		Str("type", string(msg.Type)).
		Msg("Processing message")

	switch msg.Type {
	case protocol.MsgJoinRoom:
		h.handleJoinRoom(client, msg)
	case protocol.MsgLeaveRoom:
		h.handleLeaveRoom(client, msg)
	case protocol.MsgCodeDelta:
		h.handleCodeDelta(client, msg)
	case protocol.MsgChatMessage:
		h.handleChatMessage(client, msg)
	case protocol.MsgReplay:
		h.handleReplay(client, msg)
	case protocol.MsgSnapshot:
		h.handleSnapshot(client, msg)
	case protocol.MsgPing:
		h.handlePing(client, msg)
	case protocol.MsgRunCode, protocol.MsgSubmitSolution, protocol.MsgCancelSubmit:
		if h.JudgeHandler != nil {
			h.JudgeHandler(client, msg)
		} else {
			h.sendError(client, "UNSUPPORTED", "Judging is not available", msg.RequestID)
		}
	default:
		h.sendError(client, "UNKNOWN_TYPE", "Unknown message type", msg.RequestID)
	}
}

func (h *Hub) handleJoinRoom(client *Client, msg *protocol.Message) {
	var payload protocol.JoinRoomPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		h.sendError(client, "INVALID_PAYLOAD", "Invalid join room payload", msg.RequestID)
		return
	}
	if payload.RoomID == "" {
		h.sendError(client, "INVALID_ROOM", "Room ID is required", msg.RequestID)
		return
	}

	memberCount, lastSeq, err := h.JoinRoom(client, payload.RoomID)
	if err != nil {
		h.sendError(client, "ROOM_FULL", err.Error(), msg.RequestID)
		return
	}

	h.logger.Info().
		Str("clientId", client.ID).
		Str("roomId", payload.RoomID).
		Int("memberCount", memberCount).
		Msg("Client joined room")

	response, _ := protocol.NewMessageWithRequestID(protocol.MsgRoomJoined, protocol.RoomJoinedPayload{
		RoomID:      payload.RoomID,
		MemberCount: memberCount,
		LastSeq:     lastSeq,
	}, msg.RequestID)
	h.SendToClient(client, response)
}

func (h *Hub) handleLeaveRoom(client *Client, msg *protocol.Message) {
	var payload protocol.LeaveRoomPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		h.sendError(client, "INVALID_PAYLOAD", "Invalid leave room payload", msg.RequestID)
		return
	}

	h.LeaveRoom(client, payload.RoomID)

	response, _ := protocol.NewMessageWithRequestID(protocol.MsgRoomLeft, protocol.RoomLeftPayload{
		RoomID: payload.RoomID,
	}, msg.RequestID)
	h.SendToClient(client, response)
}

func (h *Hub) handleCodeDelta(client *Client, msg *protocol.Message) {
	var payload protocol.CodeDeltaPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		h.sendError(client, "INVALID_PAYLOAD", "Invalid code delta payload", msg.RequestID)
		return
	}

	delta, _ := json.Marshal(CodeDelta{
		RangeStart: payload.RangeStart,
		RangeEnd:   payload.RangeEnd,
		Text:       payload.Text,
	})
	h.publishFromClient(client, msg, payload.RoomID, Event{
		Type:     EventCodeDelta,
		SenderID: client.UserID,
		Payload:  delta,
	})
}

func (h *Hub) handleChatMessage(client *Client, msg *protocol.Message) {
	var payload protocol.ChatMessagePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		h.sendError(client, "INVALID_PAYLOAD", "Invalid chat payload", msg.RequestID)
		return
	}
	if payload.Text == "" {
		h.sendError(client, "INVALID_PAYLOAD", "Chat text is required", msg.RequestID)
		return
	}

	entry, _ := json.Marshal(ChatEntry{Text: payload.Text})
	h.publishFromClient(client, msg, payload.RoomID, Event{
		Type:     EventChatMessage,
		SenderID: client.UserID,
		Payload:  entry,
	})
}

func (h *Hub) publishFromClient(client *Client, msg *protocol.Message, roomID string, ev Event) {
	if !client.Rooms.Contains(roomID) {
		h.sendError(client, "NOT_IN_ROOM", "Join the room before publishing to it", msg.RequestID)
		return
	}

	_, err := h.Publish(roomID, ev)
	switch err {
	case nil:
	case ErrEventNotAllowed:
		h.sendError(client, "EVENT_NOT_ALLOWED", err.Error(), msg.RequestID)
	case ErrRoomNotFound, ErrRoomClosed:
		h.sendError(client, "ROOM_GONE", "Room no longer exists", msg.RequestID)
	default:
		h.sendError(client, "PUBLISH_FAILED", err.Error(), msg.RequestID)
	}
}

func (h *Hub) handleReplay(client *Client, msg *protocol.Message) {
	var payload protocol.ReplayPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		h.sendError(client, "INVALID_PAYLOAD", "Invalid replay payload", msg.RequestID)
		return
	}

	evs, err := h.Replay(payload.RoomID, payload.AfterSeq)
	if err == ErrReplayGapTooLarge {
		h.sendError(client, "REPLAY_GAP_TOO_LARGE", "Requested sequence is outside the retained window, request a snapshot", msg.RequestID)
		return
	}
	if err != nil {
		h.sendError(client, "REPLAY_FAILED", err.Error(), msg.RequestID)
		return
	}

	response, _ := protocol.NewMessageWithRequestID(protocol.MsgReplayResult, evs, msg.RequestID)
	h.SendToClient(client, response)
}

func (h *Hub) handleSnapshot(client *Client, msg *protocol.Message) {
	var payload protocol.SnapshotPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		h.sendError(client, "INVALID_PAYLOAD", "Invalid snapshot payload", msg.RequestID)
		return
	}

	snap, err := h.Snapshot(payload.RoomID)
	if err != nil {
		h.sendError(client, "SNAPSHOT_FAILED", err.Error(), msg.RequestID)
		return
	}

	response, _ := protocol.NewMessageWithRequestID(protocol.MsgSnapshotResult, snap, msg.RequestID)
	h.SendToClient(client, response)
}

func (h *Hub) handlePing(client *Client, msg *protocol.Message) {
	response, _ := protocol.NewMessageWithRequestID(protocol.MsgPong, nil, msg.RequestID)
	h.SendToClient(client, response)
}

func (h *Hub) sendError(client *Client, code, message, requestID string) {
	errMsg, _ := protocol.NewErrorMessage(code, message, requestID)
	h.SendToClient(client, errMsg)
}

func (h *Hub) GetStats() map[string]interface{} {
	h.mu.RLock()
	totalClients := len(h.clients)
	totalUsers := len(h.userClients)
	h.mu.RUnlock()

	h.roomsMu.RLock()
	byKind := make(map[RoomKind]int)
	for _, room := range h.rooms {
		byKind[room.Kind]++
	}
	totalRooms := len(h.rooms)
	h.roomsMu.RUnlock()

	return map[string]interface{}{
		"totalClients": totalClients,
		"totalUsers":   totalUsers,
		"totalRooms":   totalRooms,
		"roomsByKind":  byKind,
	}
}
