package hub

import (
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/CDeX-Labs/CDeX-Judge-Service/pkg/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 512 KB

	controlBuffer = 8
)

// Client is the presence record for one live connection: its user identity
// and the rooms it has joined. It is destroyed on disconnect, which removes
// it from every joined room.
type Client struct {
	ID     string
	UserID string
	Hub    *Hub

	Conn *websocket.Conn

	// Send carries room fan-out; Control carries must-deliver signals such
	// as rejoin_required, so a flooded Send queue cannot swallow them.
	// Neither channel is ever closed: teardown is signalled through done, so
	// a handler goroutine finishing after a disconnect sends into a buffered
	// channel nobody drains instead of panicking on a closed one.
	Send    chan []byte
	Control chan []byte

	Rooms mapset.Set[string]

	done      chan struct{}
	closeOnce sync.Once

	logger zerolog.Logger
}

func NewClient(id, userID string, conn *websocket.Conn, hub *Hub, sendBuffer int, logger zerolog.Logger) *Client {
	return &Client{
		ID:      id,
		UserID:  userID,
		Hub:     hub,
		Conn:    conn,
		Send:    make(chan []byte, sendBuffer),
		Control: make(chan []byte, controlBuffer),
		Rooms:   mapset.NewSet[string](),
		done:    make(chan struct{}),
		logger:  logger.With().Str("clientId", id).Str("userId", userID).Logger(),
	}
}

// Done is closed when the hub releases the client. Anything holding a
// *Client across a blocking call selects on it before sending.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error().Err(err).Msg("WebSocket read error")
			}
			break
		}

		c.Hub.ProcessMessage(c, message)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.writeMessage(message); err != nil {
				return
			}

		case message := <-c.Control:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.writeMessage(message); err != nil {
				return
			}

		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) writeMessage(message []byte) error {
	w, err := c.Conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	if _, err := w.Write(message); err != nil {
		return err
	}

	n := len(c.Send)
	for i := 0; i < n; i++ {
		w.Write([]byte{'\n'})
		w.Write(<-c.Send)
	}

	return w.Close()
}

// NotifyRejoinRequired tells a dropped consumer it must rejoin and replay.
// If even the control channel is full the connection is beyond saving and is
// unregistered.
func (c *Client) NotifyRejoinRequired(roomID, reason string) {
	msg, err := protocol.NewMessage(protocol.MsgRejoinRequired, protocol.RejoinRequiredPayload{
		RoomID: roomID,
		Reason: reason,
	})
	if err != nil {
		return
	}
	data, err := msg.ToBytes()
	if err != nil {
		return
	}

	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.Control <- data:
	default:
		c.logger.Warn().Str("roomId", roomID).Msg("Control channel full, disconnecting client")
		go func() { c.Hub.Unregister <- c }()
	}
}

func (c *Client) GetRooms() []string {
	return c.Rooms.ToSlice()
}
