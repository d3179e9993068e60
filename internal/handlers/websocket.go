package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/CDeX-Labs/CDeX-Judge-Service/internal/auth"
	"github.com/CDeX-Labs/CDeX-Judge-Service/internal/hub"
	"github.com/CDeX-Labs/CDeX-Judge-Service/pkg/protocol"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// PresenceMirror is the slice of the redis presence mirror the handler
// maintains over a connection's lifetime.
type PresenceMirror interface {
	SetOnline(ctx context.Context, userID, connectionID string) error
	Refresh(ctx context.Context, userID, connectionID string) error
	SetOffline(ctx context.Context, userID, connectionID string) error
}

// presenceRefreshEvery re-arms the mirror TTL well inside its 5 minute
// expiry.
const presenceRefreshEvery = time.Minute

type WebSocketHandler struct {
	hub          *hub.Hub
	presence     PresenceMirror
	refreshEvery time.Duration
	logger       zerolog.Logger
}

func NewWebSocketHandler(h *hub.Hub, p PresenceMirror, logger zerolog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:          h,
		presence:     p,
		refreshEvery: presenceRefreshEvery,
		logger:       logger.With().Str("component", "ws-handler").Logger(),
	}
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	connectionID := uuid.New().String()
	userID := claims.GetUserID()

	client := hub.NewClient(connectionID, userID, conn, h.hub, h.hub.SendBuffer(), h.logger)

	h.hub.Register <- client

	if h.presence != nil {
		go h.maintainPresence(client, userID, connectionID)
	}

	connectedMsg, _ := protocol.NewMessage(protocol.MsgConnected, protocol.ConnectedPayload{
		UserID:       userID,
		ConnectionID: connectionID,
	})
	h.hub.SendToClient(client, connectedMsg)

	h.logger.Info().
		Str("clientId", connectionID).
		Str("userId", userID).
		Str("remoteAddr", r.RemoteAddr).
		Msg("WebSocket connection established")

	go client.WritePump()
	go client.ReadPump()
}

// maintainPresence mirrors the connection's liveness into redis: online on
// connect, TTL re-armed while the connection lives, removed when the hub
// releases the client.
func (h *WebSocketHandler) maintainPresence(client *hub.Client, userID, connectionID string) {
	ctx := context.Background()
	if err := h.presence.SetOnline(ctx, userID, connectionID); err != nil {
		h.logger.Warn().Err(err).Str("userId", userID).Msg("Failed to mirror presence")
	}

	ticker := time.NewTicker(h.refreshEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := h.presence.Refresh(ctx, userID, connectionID); err != nil {
				h.logger.Warn().Err(err).Str("userId", userID).Msg("Failed to refresh presence")
			}
		case <-client.Done():
			if err := h.presence.SetOffline(ctx, userID, connectionID); err != nil {
				h.logger.Warn().Err(err).Str("userId", userID).Msg("Failed to clear presence")
			}
			return
		}
	}
}

func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}
}

func ReadyHandler(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "ready",
			"stats":  h.GetStats(),
		})
	}
}
