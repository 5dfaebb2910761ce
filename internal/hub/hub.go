// Package hub is the studio's realtime collaboration endpoint. Clients
// connect over WebSocket, announce themselves, and stream cursor moves;
// the hub keeps the presence tracker current and fans roster snapshots
// back out to every client in the room.
package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/themateplatform/codemate/internal/log"
	"github.com/themateplatform/codemate/internal/presence"
	"github.com/themateplatform/codemate/internal/pubsub"
)

// DefaultRoom hosts connections that name no room.
const DefaultRoom = "main"

// sendBuffer is each client's outbound queue; a client that falls this
// far behind is dropped rather than allowed to stall the room.
const sendBuffer = 256

// remoteBuffer absorbs short bursts of snapshots relayed from other
// instances.
const remoteBuffer = 16

// fileBuffer absorbs bursts of project file events between debounce
// flushes.
const fileBuffer = 16

// Hub owns the room membership maps and the broadcast loop. All map
// access is confined to the run goroutine; other goroutines talk to it
// through channels.
type Hub struct {
	tracker  presence.Tracker
	upgrader websocket.Upgrader

	register   chan *client
	unregister chan *client
	remote     chan presence.Snapshot
	files      chan fileMessage

	rooms map[string]map[*client]struct{}

	// Lifecycle
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Hub over the given tracker.
func New(tracker presence.Tracker) *Hub {
	return &Hub{
		tracker: tracker,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The hub serves local studio tooling, not a public origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		register:   make(chan *client),
		unregister: make(chan *client),
		remote:     make(chan presence.Snapshot, remoteBuffer),
		files:      make(chan fileMessage, fileBuffer),
		rooms:      make(map[string]map[*client]struct{}),
	}
}

// Start begins the broadcast loop.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.done != nil {
		h.mu.Unlock()
		return nil // Already started
	}

	h.ctx, h.cancel = context.WithCancel(ctx)
	h.done = make(chan struct{})
	events := h.tracker.Events().Subscribe(h.ctx)
	h.mu.Unlock()

	log.SafeGo("hub.run", func() {
		h.run(events)
	})

	return nil
}

// Stop halts the broadcast loop and hangs up every client. Safe to call
// multiple times or before Start.
func (h *Hub) Stop() {
	h.mu.Lock()
	if h.cancel == nil {
		h.mu.Unlock()
		return // Not started
	}
	cancel := h.cancel
	done := h.done
	h.mu.Unlock()

	cancel()
	<-done
}

// BroadcastRemote fans a snapshot relayed from another instance out to
// local clients without touching the tracker.
func (h *Hub) BroadcastRemote(snap presence.Snapshot) {
	h.mu.Lock()
	ctx := h.ctx
	h.mu.Unlock()
	if ctx == nil {
		return
	}

	select {
	case h.remote <- snap:
	case <-ctx.Done():
	}
}

// AnnounceFile tells connected clients that a project file changed.
// The project is shared by every room, so the event goes to all of them.
func (h *Hub) AnnounceFile(path, op string) {
	h.mu.Lock()
	ctx := h.ctx
	h.mu.Unlock()
	if ctx == nil {
		return
	}

	select {
	case h.files <- fileMessage{Type: msgFile, Path: path, Op: op}:
	case <-ctx.Done():
	}
}

// ServeWS upgrades the connection and joins it to the requested room.
// GET /ws?room=main
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	ctx := h.ctx
	h.mu.Unlock()
	if ctx == nil {
		http.Error(w, "hub is not running", http.StatusServiceUnavailable)
		return
	}

	room := r.URL.Query().Get("room")
	if room == "" {
		room = DefaultRoom
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		log.ErrorErr(log.CatHub, "WebSocket upgrade failed", err, "room", room)
		return
	}

	c := &client{
		room: room,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		ctx:  ctx,
	}

	select {
	case h.register <- c:
	case <-ctx.Done():
		_ = conn.Close()
		return
	}

	log.SafeGo("hub.writePump", c.writePump)
	log.SafeGo("hub.readPump", func() { c.readPump(h) })
}

// run owns the room maps. It exits when the hub's context is cancelled,
// closing every client on the way out.
func (h *Hub) run(events <-chan pubsub.Event[presence.Snapshot]) {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.closeAll()
			return

		case c := <-h.register:
			clients, ok := h.rooms[c.room]
			if !ok {
				clients = make(map[*client]struct{})
				h.rooms[c.room] = clients
			}
			clients[c] = struct{}{}
			log.Debug(log.CatHub, "Client connected", "room", c.room, "clients", len(clients))

			// Greet the new client with the current roster so it can
			// render without waiting for the next change.
			if raw, err := encodeRoster(presence.Snapshot{Room: c.room, Collaborators: h.tracker.Roster(c.room)}); err == nil {
				h.deliver(c, raw)
			}

		case c := <-h.unregister:
			h.drop(c)

		case ev, ok := <-events:
			if !ok {
				h.closeAll()
				return
			}
			h.broadcast(ev.Payload)

		case snap := <-h.remote:
			h.broadcast(snap)

		case fm := <-h.files:
			h.broadcastFile(fm)
		}
	}
}

// broadcast sends a roster snapshot to every client in its room.
func (h *Hub) broadcast(snap presence.Snapshot) {
	raw, err := encodeRoster(snap)
	if err != nil {
		log.Error(log.CatHub, "Failed to encode roster", "room", snap.Room, "error", err)
		return
	}
	for c := range h.rooms[snap.Room] {
		h.deliver(c, raw)
	}
}

// broadcastFile sends a file event to every client in every room.
func (h *Hub) broadcastFile(fm fileMessage) {
	raw, err := json.Marshal(fm)
	if err != nil {
		log.Error(log.CatHub, "Failed to encode file event", "path", fm.Path, "error", err)
		return
	}
	for _, clients := range h.rooms {
		for c := range clients {
			h.deliver(c, raw)
		}
	}
}

// deliver queues a message, dropping the client if its queue is full.
func (h *Hub) deliver(c *client, raw []byte) {
	select {
	case c.send <- raw:
	default:
		log.Warn(log.CatHub, "Dropping slow client", "room", c.room)
		h.drop(c)
	}
}

// drop removes a client and closes its send channel.
func (h *Hub) drop(c *client) {
	clients, ok := h.rooms[c.room]
	if !ok {
		return
	}
	if _, registered := clients[c]; !registered {
		return
	}
	delete(clients, c)
	close(c.send)
	if len(clients) == 0 {
		delete(h.rooms, c.room)
	}
	log.Debug(log.CatHub, "Client disconnected", "room", c.room, "clients", len(clients))
}

// closeAll hangs up every room.
func (h *Hub) closeAll() {
	for room, clients := range h.rooms {
		for c := range clients {
			close(c.send)
		}
		delete(h.rooms, room)
	}
}

// encodeRoster marshals the wire form of a snapshot.
func encodeRoster(snap presence.Snapshot) ([]byte, error) {
	return json.Marshal(rosterMessage{
		Type:          msgRoster,
		Room:          snap.Room,
		Collaborators: snap.Collaborators,
	})
}
