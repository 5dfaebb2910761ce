// Package presence tracks which collaborators are connected to each
// studio room and where their cursors sit. It is the server-side source
// of the roster snapshots that overlays render.
package presence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/themateplatform/codemate/internal/log"
	"github.com/themateplatform/codemate/internal/presence/domain"
	"github.com/themateplatform/codemate/internal/pubsub"
)

// Snapshot is one room's full roster at a point in time. Collaborators
// are sorted by ID so consumers render deterministically.
type Snapshot struct {
	Room          string                `json:"room"`
	Collaborators []domain.Collaborator `json:"collaborators"`
}

// Tracker maintains per-room rosters and expires silent collaborators.
type Tracker interface {
	// Start begins the expiry sweep loop.
	Start(ctx context.Context) error

	// Stop halts the sweep loop. Safe to call multiple times or before Start.
	Stop()

	// Join adds a collaborator to a room. Joining twice refreshes the
	// existing entry.
	Join(room string, c domain.Collaborator) error

	// Leave removes a collaborator from a room.
	Leave(room, collaboratorID string)

	// Move updates a collaborator's cursor. A nil cursor withdraws it.
	// Unknown collaborators are ignored.
	Move(room, collaboratorID string, cursor *domain.CursorPosition)

	// Heartbeat refreshes a collaborator's liveness without moving them.
	Heartbeat(room, collaboratorID string)

	// Roster returns the room's collaborators sorted by ID.
	Roster(room string) []domain.Collaborator

	// Events is the broker snapshots are published on after every change.
	Events() *pubsub.Broker[Snapshot]
}

// Clock interface for time operations (allows testing).
type Clock interface {
	Now() time.Time
}

// realClock implements Clock using the real time.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// TrackerConfig configures the Tracker.
type TrackerConfig struct {
	// TTL is how long a collaborator may stay silent before the sweep
	// drops them. Defaults to 30 seconds.
	TTL time.Duration

	// SweepInterval is how often the expiry sweep runs.
	// Defaults to 5 seconds.
	SweepInterval time.Duration

	// Clock is used for time operations (for testing).
	// If nil, uses time.Now().
	Clock Clock
}

// member is one tracked collaborator with their last-seen timestamp.
type member struct {
	collaborator domain.Collaborator
	lastSeen     time.Time
}

// defaultTracker is the default implementation of Tracker.
type defaultTracker struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*member
	clock Clock

	ttl           time.Duration
	sweepInterval time.Duration
	events        *pubsub.Broker[Snapshot]

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

var _ Tracker = (*defaultTracker)(nil)

// NewTracker creates a Tracker with the given configuration.
func NewTracker(cfg TrackerConfig) Tracker {
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 30 * time.Second
	}

	sweepInterval := cfg.SweepInterval
	if sweepInterval == 0 {
		sweepInterval = 5 * time.Second
	}

	return &defaultTracker{
		rooms:         make(map[string]map[string]*member),
		clock:         clock,
		ttl:           ttl,
		sweepInterval: sweepInterval,
		events:        pubsub.NewBroker[Snapshot](),
	}
}

// Start begins the expiry sweep loop.
func (t *defaultTracker) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.done != nil {
		t.mu.Unlock()
		return nil // Already started
	}

	t.ctx, t.cancel = context.WithCancel(ctx)
	t.done = make(chan struct{})
	t.mu.Unlock()

	log.SafeGo("presence.sweepLoop", func() {
		t.sweepLoopInner()
	})

	return nil
}

// Stop halts the sweep loop.
func (t *defaultTracker) Stop() {
	t.mu.Lock()
	if t.cancel == nil {
		t.mu.Unlock()
		return // Not started
	}
	cancel := t.cancel
	done := t.done
	t.mu.Unlock()

	cancel()
	<-done
}

// Join adds a collaborator to a room.
func (t *defaultTracker) Join(room string, c domain.Collaborator) error {
	if err := c.Validate(); err != nil {
		return err
	}

	t.mu.Lock()
	members, ok := t.rooms[room]
	if !ok {
		members = make(map[string]*member)
		t.rooms[room] = members
	}
	members[c.ID] = &member{collaborator: c, lastSeen: t.clock.Now()}
	snap := t.snapshotLocked(room)
	t.mu.Unlock()

	log.Debug(log.CatPresence, "Collaborator joined", "room", room, "id", c.ID, "name", c.Name)
	t.events.Publish(pubsub.CreatedEvent, snap)
	return nil
}

// Leave removes a collaborator from a room.
func (t *defaultTracker) Leave(room, collaboratorID string) {
	t.mu.Lock()
	members, ok := t.rooms[room]
	if !ok {
		t.mu.Unlock()
		return
	}
	if _, exists := members[collaboratorID]; !exists {
		t.mu.Unlock()
		return
	}
	delete(members, collaboratorID)
	if len(members) == 0 {
		delete(t.rooms, room)
	}
	snap := t.snapshotLocked(room)
	t.mu.Unlock()

	log.Debug(log.CatPresence, "Collaborator left", "room", room, "id", collaboratorID)
	t.events.Publish(pubsub.DeletedEvent, snap)
}

// Move updates a collaborator's cursor position.
func (t *defaultTracker) Move(room, collaboratorID string, cursor *domain.CursorPosition) {
	if cursor != nil {
		if err := cursor.Validate(); err != nil {
			log.Warn(log.CatPresence, "Rejected invalid cursor position",
				"room", room, "id", collaboratorID, "error", err.Error())
			return
		}
	}

	t.mu.Lock()
	m, ok := t.lookupLocked(room, collaboratorID)
	if !ok {
		t.mu.Unlock()
		return
	}
	m.collaborator.Cursor = cursor
	m.lastSeen = t.clock.Now()
	snap := t.snapshotLocked(room)
	t.mu.Unlock()

	t.events.Publish(pubsub.UpdatedEvent, snap)
}

// Heartbeat refreshes a collaborator's liveness.
func (t *defaultTracker) Heartbeat(room, collaboratorID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if m, ok := t.lookupLocked(room, collaboratorID); ok {
		m.lastSeen = t.clock.Now()
	}
}

// Roster returns the room's collaborators sorted by ID.
func (t *defaultTracker) Roster(room string) []domain.Collaborator {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshotLocked(room).Collaborators
}

// Events returns the snapshot broker.
func (t *defaultTracker) Events() *pubsub.Broker[Snapshot] {
	return t.events
}

// lookupLocked finds a member. Must be called with mu held.
func (t *defaultTracker) lookupLocked(room, collaboratorID string) (*member, bool) {
	members, ok := t.rooms[room]
	if !ok {
		return nil, false
	}
	m, ok := members[collaboratorID]
	return m, ok
}

// snapshotLocked builds a sorted snapshot. Must be called with mu held.
func (t *defaultTracker) snapshotLocked(room string) Snapshot {
	members := t.rooms[room]
	roster := make([]domain.Collaborator, 0, len(members))
	for _, m := range members {
		roster = append(roster, m.collaborator)
	}
	sort.Slice(roster, func(i, j int) bool { return roster[i].ID < roster[j].ID })
	return Snapshot{Room: room, Collaborators: roster}
}

// sweepLoopInner runs periodic expiry sweeps. Called by the wrapped
// sweepLoop goroutine.
func (t *defaultTracker) sweepLoopInner() {
	defer close(t.done)

	ticker := time.NewTicker(t.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			t.sweepExpired()
		}
	}
}

// sweepExpired drops collaborators whose last heartbeat is older than the
// TTL and publishes a snapshot for each room that changed.
func (t *defaultTracker) sweepExpired() {
	now := t.clock.Now()

	t.mu.Lock()
	changed := make([]Snapshot, 0)
	for room, members := range t.rooms {
		dirty := false
		for id, m := range members {
			if now.Sub(m.lastSeen) > t.ttl {
				delete(members, id)
				dirty = true
				log.Info(log.CatPresence, "Collaborator expired", "room", room, "id", id)
			}
		}
		if !dirty {
			continue
		}
		if len(members) == 0 {
			delete(t.rooms, room)
		}
		changed = append(changed, t.snapshotLocked(room))
	}
	t.mu.Unlock()

	for _, snap := range changed {
		t.events.Publish(pubsub.DeletedEvent, snap)
	}
}
