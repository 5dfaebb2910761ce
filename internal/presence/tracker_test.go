package presence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/themateplatform/codemate/internal/presence/domain"
	"github.com/themateplatform/codemate/internal/pubsub"
)

// mockClock is a controllable clock for testing.
type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMockClock(t time.Time) *mockClock {
	return &mockClock{now: t}
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func cursorAt(line, col int) *domain.CursorPosition {
	return &domain.CursorPosition{Line: line, Column: col}
}

func TestTracker_JoinAppearsInRoster(t *testing.T) {
	tracker := NewTracker(TrackerConfig{Clock: newMockClock(time.Now())})

	err := tracker.Join("room-1", domain.Collaborator{ID: "alice", Name: "Alice"})
	require.NoError(t, err)

	roster := tracker.Roster("room-1")
	require.Len(t, roster, 1)
	require.Equal(t, "alice", roster[0].ID)
}

func TestTracker_JoinRejectsInvalidCollaborator(t *testing.T) {
	tracker := NewTracker(TrackerConfig{})

	err := tracker.Join("room-1", domain.Collaborator{})
	require.ErrorContains(t, err, "id must not be empty")
	require.Empty(t, tracker.Roster("room-1"))
}

func TestTracker_RosterIsSortedByID(t *testing.T) {
	tracker := NewTracker(TrackerConfig{})

	require.NoError(t, tracker.Join("r", domain.Collaborator{ID: "zed"}))
	require.NoError(t, tracker.Join("r", domain.Collaborator{ID: "amy"}))
	require.NoError(t, tracker.Join("r", domain.Collaborator{ID: "mia"}))

	roster := tracker.Roster("r")
	require.Equal(t, []string{"amy", "mia", "zed"}, []string{roster[0].ID, roster[1].ID, roster[2].ID})
}

func TestTracker_MoveUpdatesCursor(t *testing.T) {
	tracker := NewTracker(TrackerConfig{})
	require.NoError(t, tracker.Join("r", domain.Collaborator{ID: "alice"}))

	tracker.Move("r", "alice", cursorAt(4, 7))

	roster := tracker.Roster("r")
	require.NotNil(t, roster[0].Cursor)
	require.Equal(t, 4, roster[0].Cursor.Line)
	require.Equal(t, 7, roster[0].Cursor.Column)

	// Nil withdraws the cursor without removing the collaborator.
	tracker.Move("r", "alice", nil)
	roster = tracker.Roster("r")
	require.Len(t, roster, 1)
	require.Nil(t, roster[0].Cursor)
}

func TestTracker_MoveUnknownCollaboratorIsNoOp(t *testing.T) {
	tracker := NewTracker(TrackerConfig{})
	tracker.Move("r", "ghost", cursorAt(1, 1))
	require.Empty(t, tracker.Roster("r"))
}

func TestTracker_MoveRejectsNegativeCursor(t *testing.T) {
	tracker := NewTracker(TrackerConfig{})
	require.NoError(t, tracker.Join("r", domain.Collaborator{ID: "alice", Cursor: cursorAt(1, 1)}))

	tracker.Move("r", "alice", &domain.CursorPosition{Line: -1, Column: 0})

	roster := tracker.Roster("r")
	require.Equal(t, 1, roster[0].Cursor.Line, "invalid move must not apply")
}

func TestTracker_LeaveRemovesCollaborator(t *testing.T) {
	tracker := NewTracker(TrackerConfig{})
	require.NoError(t, tracker.Join("r", domain.Collaborator{ID: "alice"}))
	require.NoError(t, tracker.Join("r", domain.Collaborator{ID: "bob"}))

	tracker.Leave("r", "alice")

	roster := tracker.Roster("r")
	require.Len(t, roster, 1)
	require.Equal(t, "bob", roster[0].ID)
}

func TestTracker_RoomsAreIndependent(t *testing.T) {
	tracker := NewTracker(TrackerConfig{})
	require.NoError(t, tracker.Join("r1", domain.Collaborator{ID: "alice"}))
	require.NoError(t, tracker.Join("r2", domain.Collaborator{ID: "bob"}))

	require.Len(t, tracker.Roster("r1"), 1)
	require.Len(t, tracker.Roster("r2"), 1)

	tracker.Leave("r1", "alice")
	require.Empty(t, tracker.Roster("r1"))
	require.Len(t, tracker.Roster("r2"), 1)
}

func TestTracker_PublishesSnapshotOnChange(t *testing.T) {
	tracker := NewTracker(TrackerConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := tracker.Events().Subscribe(ctx)

	require.NoError(t, tracker.Join("r", domain.Collaborator{ID: "alice"}))

	select {
	case ev := <-ch:
		require.Equal(t, pubsub.CreatedEvent, ev.Type)
		require.Equal(t, "r", ev.Payload.Room)
		require.Len(t, ev.Payload.Collaborators, 1)
	case <-time.After(time.Second):
		t.Fatal("no snapshot published after join")
	}

	tracker.Move("r", "alice", cursorAt(2, 2))

	select {
	case ev := <-ch:
		require.Equal(t, pubsub.UpdatedEvent, ev.Type)
		require.NotNil(t, ev.Payload.Collaborators[0].Cursor)
	case <-time.After(time.Second):
		t.Fatal("no snapshot published after move")
	}
}

func TestTracker_SweepExpiresSilentCollaborators(t *testing.T) {
	clock := newMockClock(time.Now())
	tracker := NewTracker(TrackerConfig{
		TTL:           100 * time.Millisecond,
		SweepInterval: 10 * time.Millisecond,
		Clock:         clock,
	})

	require.NoError(t, tracker.Join("r", domain.Collaborator{ID: "alice"}))
	require.NoError(t, tracker.Join("r", domain.Collaborator{ID: "bob"}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, tracker.Start(ctx))
	defer tracker.Stop()

	// Alice keeps heartbeating, Bob goes silent.
	clock.Advance(80 * time.Millisecond)
	tracker.Heartbeat("r", "alice")
	clock.Advance(80 * time.Millisecond)

	require.Eventually(t, func() bool {
		roster := tracker.Roster("r")
		return len(roster) == 1 && roster[0].ID == "alice"
	}, time.Second, 10*time.Millisecond, "bob should expire, alice should survive")
}

func TestTracker_StartIdempotentAndStopSafe(t *testing.T) {
	tracker := NewTracker(TrackerConfig{SweepInterval: 10 * time.Millisecond})

	// Stop before Start is safe.
	tracker.Stop()

	ctx := context.Background()
	require.NoError(t, tracker.Start(ctx))
	require.NoError(t, tracker.Start(ctx), "second Start should be no-op")

	done := make(chan struct{})
	go func() {
		tracker.Stop()
		tracker.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return within timeout")
	}
}
