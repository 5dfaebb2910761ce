package hub

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/themateplatform/codemate/internal/log"
	"github.com/themateplatform/codemate/internal/presence"
	"github.com/themateplatform/codemate/internal/presence/domain"
)

// listenBuffer is the Listener's snapshot backlog. Snapshots are
// complete rosters, so when the consumer lags the newest one wins.
const listenBuffer = 16

// Listener is the client side of the hub protocol. It streams roster
// snapshots for one room and can announce a collaborator of its own.
// The monitor command uses it to watch a room.
type Listener struct {
	room string
	conn *websocket.Conn

	// gorilla permits one concurrent writer.
	writeMu sync.Mutex

	snaps chan presence.Snapshot

	closeOnce sync.Once
	closeErr  error
}

// Dial connects to the hub at baseURL and subscribes to room's roster
// stream. baseURL may use http(s) or ws(s) schemes; an empty room means
// DefaultRoom. The context bounds the handshake only; close the
// listener to hang up.
func Dial(ctx context.Context, baseURL, room string) (*Listener, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing hub URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("hub URL %q: unsupported scheme %q", baseURL, u.Scheme)
	}
	if room == "" {
		room = DefaultRoom
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	u.RawQuery = url.Values{"room": {room}}.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("dialing hub: %w (%s)", err, resp.Status)
		}
		return nil, fmt.Errorf("dialing hub: %w", err)
	}

	l := &Listener{
		room:  room,
		conn:  conn,
		snaps: make(chan presence.Snapshot, listenBuffer),
	}
	log.SafeGo("hub.listen", l.readPump)
	return l, nil
}

// Room reports the room this listener watches.
func (l *Listener) Room() string {
	return l.room
}

// Snapshots streams roster snapshots as the hub sends them, starting
// with the greeting. The channel closes when the connection ends.
func (l *Listener) Snapshots() <-chan presence.Snapshot {
	return l.snaps
}

// Join announces a collaborator in the room.
func (l *Listener) Join(c domain.Collaborator) error {
	return l.write(clientMessage{Type: msgJoin, Collaborator: &c})
}

// Move reports the announced collaborator's cursor position.
func (l *Listener) Move(cur domain.CursorPosition) error {
	return l.write(clientMessage{Type: msgCursor, Cursor: &cur})
}

// Leave withdraws the announced collaborator without hanging up.
func (l *Listener) Leave() error {
	return l.write(clientMessage{Type: msgLeave})
}

// Heartbeat keeps the announced collaborator from expiring.
func (l *Listener) Heartbeat() error {
	return l.write(clientMessage{Type: msgPing})
}

// Close hangs up. The snapshot channel closes shortly after.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		l.writeMu.Lock()
		_ = l.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		l.writeMu.Unlock()
		l.closeErr = l.conn.Close()
	})
	return l.closeErr
}

func (l *Listener) write(msg clientMessage) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	return l.conn.WriteJSON(msg)
}

// readPump decodes roster messages until the connection ends.
func (l *Listener) readPump() {
	defer close(l.snaps)
	defer func() { _ = l.conn.Close() }()

	for {
		var msg rosterMessage
		if err := l.conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Type != msgRoster {
			continue
		}
		l.push(presence.Snapshot{Room: msg.Room, Collaborators: msg.Collaborators})
	}
}

// push queues a snapshot, evicting the oldest queued one when the
// consumer has fallen behind.
func (l *Listener) push(snap presence.Snapshot) {
	for {
		select {
		case l.snaps <- snap:
			return
		default:
		}
		select {
		case <-l.snaps:
		default:
		}
	}
}
