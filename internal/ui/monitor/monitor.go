// Package monitor is the terminal presence monitor: a live view of one
// studio room showing who is connected and where their cursors sit.
//
// The left panel lists collaborators; clicking a row (or j/k) follows
// one, pinning their position to the status bar. The right panel
// projects every cursor onto a terminal cell grid through the overlay.
package monitor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"
	"github.com/muesli/reflow/truncate"

	"github.com/themateplatform/codemate/internal/overlay"
	"github.com/themateplatform/codemate/internal/overlay/termgrid"
	"github.com/themateplatform/codemate/internal/presence"
	"github.com/themateplatform/codemate/internal/presence/domain"
	"github.com/themateplatform/codemate/internal/ui/styles"
)

// Stream is the roster feed the monitor watches. hub.Listener satisfies
// it.
type Stream interface {
	Snapshots() <-chan presence.Snapshot
	Close() error
}

// Dialer opens the stream. The monitor dials asynchronously so the UI
// can show connection progress.
type Dialer func() (Stream, error)

// Roster pane bounds. The pane takes a third of the terminal inside
// these limits; the cursor grid gets the rest.
const (
	minRosterWidth = 20
	maxRosterWidth = 34
)

// connState tracks where the monitor is in its connection lifecycle.
type connState int

const (
	stateConnecting connState = iota
	stateConnected
	stateDisconnected
)

// connectedMsg delivers the dialed stream.
type connectedMsg struct{ stream Stream }

// connectFailedMsg reports a failed dial.
type connectFailedMsg struct{ err error }

// snapshotMsg carries the next roster snapshot.
type snapshotMsg struct{ snap presence.Snapshot }

// streamClosedMsg reports that the hub hung up.
type streamClosedMsg struct{}

// Model is the top-level bubbletea model for the presence monitor.
type Model struct {
	room string
	dial Dialer
	keys KeyMap

	state connState
	err   error

	stream Stream

	spin    spinner.Model
	zones   *zone.Manager
	overlay *overlay.Overlay
	grid    *termgrid.Surface

	roster   []domain.Collaborator
	followed string // collaborator ID pinned to the status bar

	width  int
	height int
}

// New creates a monitor for room that connects through dial.
func New(room string, dial Dialer) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(styles.SpinnerColor)

	return Model{
		room:    room,
		dial:    dial,
		keys:    DefaultKeyMap,
		state:   stateConnecting,
		spin:    sp,
		zones:   zone.New(),
		overlay: overlay.New(domain.DefaultCellMetrics()),
	}
}

// Init starts the spinner and dials the hub.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, connect(m.dial))
}

// connect dials off the update loop and reports the result.
func connect(dial Dialer) tea.Cmd {
	return func() tea.Msg {
		stream, err := dial()
		if err != nil {
			return connectFailedMsg{err: err}
		}
		return connectedMsg{stream: stream}
	}
}

// waitForSnapshot blocks until the stream yields the next roster.
func waitForSnapshot(snaps <-chan presence.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-snaps
		if !ok {
			return streamClosedMsg{}
		}
		return snapshotMsg{snap: snap}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m.resizeGrid(), nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg), nil

	case spinner.TickMsg:
		if m.state != stateConnecting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case connectedMsg:
		m.state = stateConnected
		m.err = nil
		m.stream = msg.stream
		if m.grid != nil {
			m.overlay.Attach(m.grid)
		}
		return m, waitForSnapshot(msg.stream.Snapshots())

	case connectFailedMsg:
		m.state = stateDisconnected
		m.err = msg.err
		return m, nil

	case snapshotMsg:
		m.roster = msg.snap.Collaborators
		if m.followed != "" && m.followIndex() < 0 {
			m.followed = ""
		}
		m.overlay.Sync(m.roster)
		return m, waitForSnapshot(m.stream.Snapshots())

	case streamClosedMsg:
		return m.dropConnection(), nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.stream != nil {
			_ = m.stream.Close()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Down):
		return m.moveFollow(1), nil

	case key.Matches(msg, m.keys.Up):
		return m.moveFollow(-1), nil

	case key.Matches(msg, m.keys.Unfollow):
		m.followed = ""
		return m, nil

	case key.Matches(msg, m.keys.Retry):
		if m.state != stateDisconnected {
			return m, nil
		}
		m.state = stateConnecting
		m.err = nil
		return m, tea.Batch(m.spin.Tick, connect(m.dial))
	}
	return m, nil
}

// handleMouse follows the roster row under a left click, or unfollows
// when that row is already followed.
func (m Model) handleMouse(msg tea.MouseMsg) Model {
	if msg.Action != tea.MouseActionRelease || msg.Button != tea.MouseButtonLeft {
		return m
	}
	for _, c := range m.roster {
		if !m.zones.Get(rowZoneID(c.ID)).InBounds(msg) {
			continue
		}
		if m.followed == c.ID {
			m.followed = ""
		} else {
			m.followed = c.ID
		}
		break
	}
	return m
}

// moveFollow shifts the followed collaborator through the roster,
// wrapping at either end.
func (m Model) moveFollow(delta int) Model {
	if len(m.roster) == 0 {
		return m
	}
	idx := m.followIndex()
	switch {
	case idx < 0 && delta > 0:
		idx = 0
	case idx < 0:
		idx = len(m.roster) - 1
	default:
		idx = ((idx+delta)%len(m.roster) + len(m.roster)) % len(m.roster)
	}
	m.followed = m.roster[idx].ID
	return m
}

// followIndex locates the followed collaborator in the roster, -1 when
// not present.
func (m Model) followIndex() int {
	for i, c := range m.roster {
		if c.ID == m.followed {
			return i
		}
	}
	return -1
}

// dropConnection resets to the disconnected state, clearing markers so
// the grid does not show stale cursors.
func (m Model) dropConnection() Model {
	if m.stream != nil {
		_ = m.stream.Close()
	}
	m.state = stateDisconnected
	m.stream = nil
	m.roster = nil
	m.followed = ""
	m.overlay.Detach()
	return m
}

// resizeGrid sizes the cursor grid to the current layout, creating and
// attaching it on the first real size.
func (m Model) resizeGrid() Model {
	_, gridW, paneH := m.layout()
	cols, rows := gridW-2, paneH-2
	if cols <= 0 || rows <= 0 {
		return m
	}

	if m.grid == nil {
		m.grid = termgrid.New(cols, rows, domain.DefaultCellMetrics())
	} else {
		m.grid.Resize(cols, rows)
	}
	if m.state == stateConnected {
		m.overlay.Attach(m.grid)
		// Replay the roster so markers from snapshots that arrived
		// before the first size render too.
		m.overlay.Sync(m.roster)
	}
	return m
}

// layout splits the terminal into panes: a roster third (bounded) on the
// left, the cursor grid on the right, one line of title above and one of
// status below.
func (m Model) layout() (rosterW, gridW, paneH int) {
	rosterW = m.width / 3
	if rosterW < minRosterWidth {
		rosterW = minRosterWidth
	}
	if rosterW > maxRosterWidth {
		rosterW = maxRosterWidth
	}
	if rosterW > m.width {
		rosterW = m.width
	}
	gridW = m.width - rosterW
	paneH = m.height - 2
	return rosterW, gridW, paneH
}

// View renders the monitor.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	switch m.state {
	case stateConnecting:
		return m.centered(m.spin.View() + " Connecting to room " + m.room + "…")

	case stateDisconnected:
		msg := lipgloss.NewStyle().Foreground(styles.StatusErrorColor).Render(m.disconnectReason())
		hint := lipgloss.NewStyle().Foreground(styles.TextMutedColor).
			Render(m.keys.Retry.Help().Key + " " + m.keys.Retry.Help().Desc +
				" · " + m.keys.Quit.Help().Key + " " + m.keys.Quit.Help().Desc)
		return m.centered(msg + "\n\n" + hint)
	}

	rosterW, gridW, paneH := m.layout()
	if gridW < 4 || paneH < 3 {
		return m.centered("Window too small")
	}

	rosterPanel := styles.RenderPanel(
		m.rosterView(rosterW-2),
		"Collaborators",
		styles.FormatCollaboratorCount(len(m.roster)),
		rosterW, paneH, m.followed != "")

	gridStatus := ""
	gridView := ""
	if m.grid != nil {
		gridView = m.grid.View()
		if n := m.grid.MarkerCount(); n > 0 {
			gridStatus = fmt.Sprintf("%d active", n)
		}
	}
	gridPanel := styles.RenderPanel(gridView, "Cursors", gridStatus, gridW, paneH, false)

	view := lipgloss.JoinVertical(lipgloss.Left,
		m.titleView(),
		lipgloss.JoinHorizontal(lipgloss.Top, rosterPanel, gridPanel),
		m.statusView(),
	)
	return m.zones.Scan(view)
}

func (m Model) centered(content string) string {
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m Model) disconnectReason() string {
	if m.err != nil {
		return "Connection failed: " + m.err.Error()
	}
	return "Connection closed"
}

// titleView is the top line: program name left, room and connection
// state right.
func (m Model) titleView() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(styles.TextPrimaryColor).
		Render("CodeMate Monitor")

	stateColor := styles.TextMutedColor
	if m.state == stateConnected {
		stateColor = styles.StatusSuccessColor
	}
	room := lipgloss.NewStyle().Foreground(stateColor).Render("● " + m.room)

	gap := m.width - lipgloss.Width(title) - lipgloss.Width(room)
	if gap < 1 {
		return truncate.StringWithTail(title, uint(m.width), "…")
	}
	return title + strings.Repeat(" ", gap) + room
}

// rosterView lists collaborators, one per line, each wrapped in a click
// zone. Names truncate so the cursor position stays visible.
func (m Model) rosterView(width int) string {
	if len(m.roster) == 0 {
		return lipgloss.NewStyle().Foreground(styles.TextMutedColor).Render("No one here yet")
	}

	nameStyle := lipgloss.NewStyle().Foreground(styles.TextPrimaryColor)
	followStyle := lipgloss.NewStyle().Foreground(styles.SelectionColor).Bold(true)
	posStyle := lipgloss.NewStyle().Foreground(styles.TextDescriptionColor)

	rows := make([]string, 0, len(m.roster))
	for _, c := range m.roster {
		pos := "—"
		if c.Cursor != nil {
			pos = styles.FormatCursor(c.Cursor.Line, c.Cursor.Column)
		}

		nameField := width - 3 - lipgloss.Width(pos)
		name := truncate.StringWithTail(c.Name, uint(max(nameField, 1)), "…")
		gap := max(width-2-lipgloss.Width(name)-lipgloss.Width(pos), 1)

		style := nameStyle
		if c.ID == m.followed {
			style = followStyle
		}
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color(c.Color)).Render("●")
		row := dot + " " + style.Render(name) + strings.Repeat(" ", gap) + posStyle.Render(pos)
		rows = append(rows, m.zones.Mark(rowZoneID(c.ID), row))
	}
	return strings.Join(rows, "\n")
}

// statusView is the bottom line: follow state left, key help right.
func (m Model) statusView() string {
	left := "Click a name to follow"
	if idx := m.followIndex(); idx >= 0 {
		c := m.roster[idx]
		pos := "—"
		if c.Cursor != nil {
			pos = styles.FormatCursor(c.Cursor.Line, c.Cursor.Column)
		}
		left = "Following " + c.Name + " · " + pos
	}
	leftRendered := lipgloss.NewStyle().Foreground(styles.TextDescriptionColor).Render(left)

	help := strings.Join([]string{
		m.keys.Down.Help().Key + " " + m.keys.Down.Help().Desc,
		m.keys.Unfollow.Help().Key + " " + m.keys.Unfollow.Help().Desc,
		m.keys.Quit.Help().Key + " " + m.keys.Quit.Help().Desc,
	}, " · ")
	helpRendered := lipgloss.NewStyle().Foreground(styles.TextMutedColor).Render(help)

	gap := m.width - lipgloss.Width(leftRendered) - lipgloss.Width(helpRendered)
	if gap < 1 {
		return truncate.StringWithTail(leftRendered, uint(m.width), "…")
	}
	return leftRendered + strings.Repeat(" ", gap) + helpRendered
}

func rowZoneID(collaboratorID string) string {
	return "collab:" + collaboratorID
}
