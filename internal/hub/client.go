package hub

import (
	"context"
	"encoding/json"

	"github.com/gorilla/websocket"

	"github.com/themateplatform/codemate/internal/log"
	"github.com/themateplatform/codemate/internal/presence/domain"
)

// maxMessageSize bounds inbound client messages.
const maxMessageSize = 4096

// Message types on the wire.
const (
	msgJoin   = "join"
	msgCursor = "cursor"
	msgLeave  = "leave"
	msgPing   = "ping"
	msgRoster = "roster"
	msgFile   = "file"
)

// clientMessage is anything a client may send.
type clientMessage struct {
	Type         string                 `json:"type"`
	Collaborator *domain.Collaborator   `json:"collaborator,omitempty"`
	Cursor       *domain.CursorPosition `json:"cursor,omitempty"`
}

// rosterMessage tells clients who is in their room.
type rosterMessage struct {
	Type          string                `json:"type"`
	Room          string                `json:"room"`
	Collaborators []domain.Collaborator `json:"collaborators"`
}

// fileMessage tells clients a project file changed.
type fileMessage struct {
	Type string `json:"type"`
	Path string `json:"path"`
	Op   string `json:"op"`
}

// client is one WebSocket connection. The id field is written only by
// the readPump goroutine.
type client struct {
	room string
	conn *websocket.Conn
	send chan []byte
	ctx  context.Context
	id   string
}

// readPump consumes client messages until the peer hangs up, then
// withdraws the collaborator and unregisters.
func (c *client) readPump(h *Hub) {
	defer func() {
		if c.id != "" {
			h.tracker.Leave(c.room, c.id)
		}
		select {
		case h.unregister <- c:
		case <-c.ctx.Done():
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Debug(log.CatHub, "Skipping malformed message", "room", c.room, "error", err.Error())
			continue
		}
		c.handle(h, msg)
	}
}

// handle applies one client message to the tracker. Messages that need
// an identity are ignored until the client has joined.
func (c *client) handle(h *Hub, msg clientMessage) {
	switch msg.Type {
	case msgJoin:
		if msg.Collaborator == nil {
			return
		}
		if err := h.tracker.Join(c.room, *msg.Collaborator); err != nil {
			log.Warn(log.CatHub, "Rejected join", "room", c.room, "error", err.Error())
			return
		}
		c.id = msg.Collaborator.ID

	case msgCursor:
		if c.id == "" {
			return
		}
		h.tracker.Move(c.room, c.id, msg.Cursor)

	case msgLeave:
		if c.id == "" {
			return
		}
		h.tracker.Leave(c.room, c.id)
		c.id = ""

	case msgPing:
		if c.id == "" {
			return
		}
		h.tracker.Heartbeat(c.room, c.id)

	default:
		log.Debug(log.CatHub, "Unknown message type", "room", c.room, "type", msg.Type)
	}
}

// writePump drains the send queue onto the wire. A closed queue means
// the hub dropped us; say goodbye properly.
func (c *client) writePump() {
	defer func() { _ = c.conn.Close() }()

	for {
		raw, ok := <-c.send
		if !ok {
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
			return
		}
	}
}
