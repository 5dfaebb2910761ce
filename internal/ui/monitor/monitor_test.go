package monitor

import (
	"bytes"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/charmbracelet/x/exp/teatest"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/themateplatform/codemate/internal/presence"
	"github.com/themateplatform/codemate/internal/presence/domain"
)

func TestMain(m *testing.M) {
	// Force plain output so renders are byte-stable regardless of the
	// environment's color settings.
	lipgloss.SetColorProfile(termenv.Ascii)
	os.Exit(m.Run())
}

// fakeStream feeds the monitor scripted snapshots.
type fakeStream struct {
	snaps  chan presence.Snapshot
	once   sync.Once
	closed chan struct{}
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		snaps:  make(chan presence.Snapshot, 4),
		closed: make(chan struct{}),
	}
}

func (f *fakeStream) Snapshots() <-chan presence.Snapshot { return f.snaps }

func (f *fakeStream) Close() error {
	f.once.Do(func() {
		close(f.closed)
		close(f.snaps)
	})
	return nil
}

func (f *fakeStream) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func collab(id, name string, line, col int) domain.Collaborator {
	return domain.Collaborator{
		ID:     id,
		Name:   name,
		Color:  "#f5a623",
		Cursor: &domain.CursorPosition{Line: line, Column: col},
	}
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model
}

// connectedModel builds a sized, connected monitor showing the given
// roster.
func connectedModel(t *testing.T, stream Stream, roster ...domain.Collaborator) Model {
	t.Helper()

	m := New("main", func() (Stream, error) { return stream, nil })
	m = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	m = update(t, m, connectedMsg{stream: stream})
	if len(roster) > 0 {
		m = update(t, m, snapshotMsg{snap: presence.Snapshot{Room: "main", Collaborators: roster}})
	}
	return m
}

func TestViewBeforeFirstSizeIsEmpty(t *testing.T) {
	m := New("main", func() (Stream, error) { return newFakeStream(), nil })
	assert.Empty(t, m.View())
}

func TestInitDialsAsynchronously(t *testing.T) {
	m := New("main", func() (Stream, error) { return newFakeStream(), nil })
	require.NotNil(t, m.Init())
}

func TestConnectCmd(t *testing.T) {
	stream := newFakeStream()
	msg := connect(func() (Stream, error) { return stream, nil })()
	connected, ok := msg.(connectedMsg)
	require.True(t, ok)
	assert.Same(t, stream, connected.stream.(*fakeStream))

	dialErr := errors.New("refused")
	msg = connect(func() (Stream, error) { return nil, dialErr })()
	failed, ok := msg.(connectFailedMsg)
	require.True(t, ok)
	assert.ErrorIs(t, failed.err, dialErr)
}

func TestConnectingViewShowsSpinner(t *testing.T) {
	m := New("pair", func() (Stream, error) { return newFakeStream(), nil })
	m = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})

	view := ansi.Strip(m.View())
	assert.Contains(t, view, "Connecting to room pair")
}

func TestConnectedEmptyRoom(t *testing.T) {
	m := connectedModel(t, newFakeStream())

	view := ansi.Strip(m.View())
	assert.Contains(t, view, "Collaborators")
	assert.Contains(t, view, "Cursors")
	assert.Contains(t, view, "No one here yet")
}

func TestSnapshotFillsRosterAndGrid(t *testing.T) {
	m := connectedModel(t, newFakeStream(), collab("user-1", "Dana", 2, 3))

	require.NotNil(t, m.grid)
	assert.Equal(t, 1, m.grid.MarkerCount())

	view := ansi.Strip(m.View())
	assert.Contains(t, view, "Dana")
	assert.Contains(t, view, "3:4", "cursor positions display 1-based")
	assert.Contains(t, view, "1 collaborator")
}

func TestSnapshotBeforeFirstSizeStillRenders(t *testing.T) {
	stream := newFakeStream()
	m := New("main", func() (Stream, error) { return stream, nil })
	m = update(t, m, connectedMsg{stream: stream})
	m = update(t, m, snapshotMsg{snap: presence.Snapshot{
		Room:          "main",
		Collaborators: []domain.Collaborator{collab("user-1", "Dana", 0, 0)},
	}})

	// The grid does not exist until the terminal reports a size; the
	// roster replay happens on attach.
	m = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	require.NotNil(t, m.grid)
	assert.Equal(t, 1, m.grid.MarkerCount())
}

func TestKeyboardFollowCycles(t *testing.T) {
	m := connectedModel(t, newFakeStream(),
		collab("user-1", "Dana", 0, 0),
		collab("user-2", "Pat", 1, 1),
	)

	down := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}}
	up := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'k'}}

	m = update(t, m, down)
	assert.Equal(t, "user-1", m.followed)
	m = update(t, m, down)
	assert.Equal(t, "user-2", m.followed)
	m = update(t, m, down)
	assert.Equal(t, "user-1", m.followed, "follow wraps at the end")
	m = update(t, m, up)
	assert.Equal(t, "user-2", m.followed, "follow wraps at the start")

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Empty(t, m.followed)
}

func TestFollowedCollaboratorPinnedToStatusBar(t *testing.T) {
	m := connectedModel(t, newFakeStream(), collab("user-1", "Dana", 12, 7))
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})

	view := ansi.Strip(m.View())
	assert.Contains(t, view, "Following Dana · 13:8")
}

func TestFollowClearsWhenCollaboratorLeaves(t *testing.T) {
	m := connectedModel(t, newFakeStream(), collab("user-1", "Dana", 0, 0))
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	require.Equal(t, "user-1", m.followed)

	m = update(t, m, snapshotMsg{snap: presence.Snapshot{Room: "main"}})
	assert.Empty(t, m.followed)
}

// findZoneClick sweeps the screen for a release event inside the
// collaborator's click zone. Zones register asynchronously after the
// view is scanned.
func findZoneClick(m Model, id string) *tea.MouseMsg {
	info := m.zones.Get(rowZoneID(id))
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			msg := tea.MouseMsg{X: x, Y: y, Action: tea.MouseActionRelease, Button: tea.MouseButtonLeft}
			if info.InBounds(msg) {
				return &msg
			}
		}
	}
	return nil
}

func TestClickFollowsAndUnfollows(t *testing.T) {
	m := connectedModel(t, newFakeStream(),
		collab("user-1", "Dana", 0, 0),
		collab("user-2", "Pat", 1, 1),
	)
	m.View()

	var click *tea.MouseMsg
	require.Eventually(t, func() bool {
		click = findZoneClick(m, "user-2")
		return click != nil
	}, 2*time.Second, 10*time.Millisecond, "click zone never registered")

	m = update(t, m, *click)
	assert.Equal(t, "user-2", m.followed)

	// A second click on the same row unfollows.
	m = update(t, m, *click)
	assert.Empty(t, m.followed)
}

func TestMousePressIsIgnored(t *testing.T) {
	m := connectedModel(t, newFakeStream(), collab("user-1", "Dana", 0, 0))
	m.View()

	var click *tea.MouseMsg
	require.Eventually(t, func() bool {
		click = findZoneClick(m, "user-1")
		return click != nil
	}, 2*time.Second, 10*time.Millisecond)

	press := *click
	press.Action = tea.MouseActionPress
	m = update(t, m, press)
	assert.Empty(t, m.followed, "only releases follow")
}

func TestStreamClosedDisconnects(t *testing.T) {
	stream := newFakeStream()
	m := connectedModel(t, stream, collab("user-1", "Dana", 0, 0))

	m = update(t, m, streamClosedMsg{})
	assert.True(t, stream.isClosed())
	assert.Empty(t, m.roster)
	assert.Equal(t, 0, m.grid.MarkerCount(), "stale markers are cleared")

	view := ansi.Strip(m.View())
	assert.Contains(t, view, "Connection closed")
	assert.Contains(t, view, "reconnect")
}

func TestDialFailureShowsError(t *testing.T) {
	m := New("main", func() (Stream, error) { return nil, errors.New("refused") })
	m = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	m = update(t, m, connectFailedMsg{err: errors.New("refused")})

	view := ansi.Strip(m.View())
	assert.Contains(t, view, "Connection failed: refused")
}

func TestRetryRedials(t *testing.T) {
	stream := newFakeStream()
	m := connectedModel(t, stream)
	m = update(t, m, streamClosedMsg{})
	require.Equal(t, stateDisconnected, m.state)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	m = next.(Model)
	assert.Equal(t, stateConnecting, m.state)
	assert.NotNil(t, cmd)
}

func TestRetryIgnoredWhileConnected(t *testing.T) {
	m := connectedModel(t, newFakeStream())
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	m = next.(Model)
	assert.Equal(t, stateConnected, m.state)
	assert.Nil(t, cmd)
}

func TestQuitClosesStream(t *testing.T) {
	stream := newFakeStream()
	m := connectedModel(t, stream)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	_, isQuit := cmd().(tea.QuitMsg)
	assert.True(t, isQuit)
	assert.True(t, stream.isClosed())
}

func TestResizeKeepsTrackingMarkers(t *testing.T) {
	m := connectedModel(t, newFakeStream(), collab("user-1", "Dana", 10, 30))
	require.Equal(t, 1, m.grid.MarkerCount())

	// Shrink below the marker's cell, then grow back.
	m = update(t, m, tea.WindowSizeMsg{Width: 40, Height: 10})
	assert.Equal(t, 1, m.grid.MarkerCount(), "markers survive clipping")
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Contains(t, ansi.Strip(m.View()), "Dana")
}

func TestMonitorProgram(t *testing.T) {
	stream := newFakeStream()
	release := make(chan struct{})
	m := New("main", func() (Stream, error) {
		<-release
		return stream, nil
	})

	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(80, 24))

	teatest.WaitFor(t, tm.Output(), func(b []byte) bool {
		return bytes.Contains(b, []byte("Connecting to room main"))
	}, teatest.WithDuration(3*time.Second))

	close(release)
	teatest.WaitFor(t, tm.Output(), func(b []byte) bool {
		return bytes.Contains(b, []byte("No one here yet"))
	}, teatest.WithDuration(3*time.Second))

	stream.snaps <- presence.Snapshot{
		Room:          "main",
		Collaborators: []domain.Collaborator{collab("user-1", "Dana", 2, 5)},
	}
	teatest.WaitFor(t, tm.Output(), func(b []byte) bool {
		return bytes.Contains(b, []byte("Dana"))
	}, teatest.WithDuration(3*time.Second))

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	teatest.WaitFor(t, tm.Output(), func(b []byte) bool {
		return bytes.Contains(b, []byte("Following Dana"))
	}, teatest.WithDuration(3*time.Second))

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	tm.WaitFinished(t, teatest.WithFinalTimeout(3*time.Second))

	final, ok := tm.FinalModel(t).(Model)
	require.True(t, ok)
	assert.Equal(t, "user-1", final.followed)
	assert.True(t, stream.isClosed())
}
