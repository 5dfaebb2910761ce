package hub

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/themateplatform/codemate/internal/log"
	"github.com/themateplatform/codemate/internal/presence"
)

// relayChannel is the Redis pub/sub channel snapshots travel on.
const relayChannel = "codemate:rosters"

// Relay mirrors roster snapshots through Redis pub/sub so every studio
// instance serving a room broadcasts the same roster. Each relay tags
// its publications with an origin ID and skips its own echoes.
type Relay struct {
	rdb     *redis.Client
	tracker presence.Tracker
	hub     *Hub
	origin  string

	// Lifecycle
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// relayEnvelope is the wire form of one relayed snapshot.
type relayEnvelope struct {
	Origin   string            `json:"origin"`
	Snapshot presence.Snapshot `json:"snapshot"`
}

// NewRelay creates a Relay. It does not touch Redis until Start.
func NewRelay(rdb *redis.Client, tracker presence.Tracker, hub *Hub) *Relay {
	return &Relay{
		rdb:     rdb,
		tracker: tracker,
		hub:     hub,
		origin:  uuid.NewString(),
	}
}

// Start subscribes to the relay channel and begins forwarding local
// snapshots out and remote snapshots in.
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.done != nil {
		r.mu.Unlock()
		return nil // Already started
	}

	r.ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	events := r.tracker.Events().Subscribe(r.ctx)
	sub := r.rdb.Subscribe(r.ctx, relayChannel)
	incoming := sub.Channel()
	r.mu.Unlock()

	log.SafeGo("hub.relay", func() {
		defer close(r.done)
		defer func() { _ = sub.Close() }()

		for {
			select {
			case <-r.ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				r.publish(ev.Payload)
			case msg, ok := <-incoming:
				if !ok {
					return
				}
				r.receive(msg.Payload)
			}
		}
	})

	return nil
}

// Stop halts the relay. Safe to call multiple times or before Start.
func (r *Relay) Stop() {
	r.mu.Lock()
	if r.cancel == nil {
		r.mu.Unlock()
		return // Not started
	}
	cancel := r.cancel
	done := r.done
	r.mu.Unlock()

	cancel()
	<-done
}

// publish sends one local snapshot to the other instances.
func (r *Relay) publish(snap presence.Snapshot) {
	raw, err := json.Marshal(relayEnvelope{Origin: r.origin, Snapshot: snap})
	if err != nil {
		log.Error(log.CatHub, "Failed to encode relay envelope", "room", snap.Room, "error", err)
		return
	}
	if err := r.rdb.Publish(r.ctx, relayChannel, raw).Err(); err != nil {
		log.Warn(log.CatHub, "Failed to relay snapshot", "room", snap.Room, "error", err.Error())
	}
}

// receive hands a remote snapshot to the local hub, unless we sent it.
func (r *Relay) receive(payload string) {
	var env relayEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		log.Debug(log.CatHub, "Skipping malformed relay payload", "error", err.Error())
		return
	}
	if env.Origin == r.origin {
		return // Our own publication coming back around.
	}
	r.hub.BroadcastRemote(env.Snapshot)
}
