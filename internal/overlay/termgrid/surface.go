// Package termgrid renders cursor markers onto a fixed-size grid of
// terminal cells. It is the studio monitor's overlay surface: each
// collaborator cursor shows as a colored caret followed by a name label,
// clipped to the grid.
package termgrid

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"

	"github.com/themateplatform/codemate/internal/overlay"
	"github.com/themateplatform/codemate/internal/presence/domain"
)

// maxLabelWidth caps how many cells a name label may occupy.
const maxLabelWidth = 12

// caretGlyph marks the exact cursor cell.
const caretGlyph = "▏"

// cell is one grid position: a glyph and the style it renders with.
// Wide glyphs occupy their width in cells; continuation cells hold "".
type cell struct {
	glyph string
	style lipgloss.Style
}

// Surface implements overlay.Surface on a terminal cell grid.
type Surface struct {
	mu      sync.Mutex
	cols    int
	rows    int
	metrics domain.CellMetrics
	markers map[string]domain.Marker
	mounted bool
}

var _ overlay.Surface = (*Surface)(nil)

// New creates a surface covering cols x rows terminal cells. The metrics
// must match the overlay's so pixel positions divide back into cells.
func New(cols, rows int, metrics domain.CellMetrics) *Surface {
	if metrics.RowHeight <= 0 || metrics.ColWidth <= 0 {
		metrics = domain.DefaultCellMetrics()
	}
	return &Surface{
		cols:    cols,
		rows:    rows,
		metrics: metrics,
		markers: make(map[string]domain.Marker),
	}
}

// Mount prepares the grid for rendering.
func (s *Surface) Mount() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cols <= 0 || s.rows <= 0 {
		return fmt.Errorf("termgrid surface has no area: %dx%d", s.cols, s.rows)
	}
	s.mounted = true
	return nil
}

// Apply records one marker operation.
func (s *Surface) Apply(op domain.Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.mounted {
		return fmt.Errorf("termgrid surface is not mounted")
	}

	switch op.Kind {
	case domain.OpCreate, domain.OpUpdate:
		s.markers[op.Marker.CollaboratorID] = op.Marker
	case domain.OpDelete:
		delete(s.markers, op.Marker.CollaboratorID)
	default:
		return fmt.Errorf("unknown marker operation %q", op.Kind)
	}
	return nil
}

// Unmount drops every marker and stops rendering.
func (s *Surface) Unmount() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.markers = make(map[string]domain.Marker)
	s.mounted = false
	return nil
}

// Resize adjusts the grid to a new terminal size. Markers outside the new
// bounds stay tracked and reappear if the grid grows back.
func (s *Surface) Resize(cols, rows int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cols = cols
	s.rows = rows
}

// MarkerCount reports how many markers the surface currently holds.
func (s *Surface) MarkerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.markers)
}

// View renders the grid. Markers are drawn in collaborator-ID order so
// overlapping labels resolve deterministically.
func (s *Surface) View() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.mounted || s.cols <= 0 || s.rows <= 0 {
		return ""
	}

	grid := make([][]cell, s.rows)
	for y := range grid {
		grid[y] = make([]cell, s.cols)
		for x := range grid[y] {
			grid[y][x] = cell{glyph: " "}
		}
	}

	ids := make([]string, 0, len(s.markers))
	for id := range s.markers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		s.drawMarker(grid, s.markers[id])
	}

	var b strings.Builder
	for y, row := range grid {
		if y > 0 {
			b.WriteByte('\n')
		}
		renderRow(&b, row)
	}
	return b.String()
}

// drawMarker places the caret and label into the grid, clipping at the
// right edge. Markers whose cell falls outside the grid are skipped.
func (s *Surface) drawMarker(grid [][]cell, m domain.Marker) {
	col := m.X / s.metrics.ColWidth
	row := m.Y / s.metrics.RowHeight
	if row < 0 || row >= s.rows || col < 0 || col >= s.cols {
		return
	}

	style := lipgloss.NewStyle().Foreground(lipgloss.Color(m.Color))
	grid[row][col] = cell{glyph: caretGlyph, style: style}

	label := runewidth.Truncate(m.Name, maxLabelWidth, "…")
	x := col + 1
	g := uniseg.NewGraphemes(label)
	for g.Next() {
		glyph := g.Str()
		w := runewidth.StringWidth(glyph)
		if w <= 0 {
			continue
		}
		if x+w > s.cols {
			break
		}
		grid[row][x] = cell{glyph: glyph, style: style}
		for i := 1; i < w; i++ {
			grid[row][x+i] = cell{} // continuation of a wide glyph
		}
		x += w
	}
}

// renderRow writes one row, batching adjacent cells that share a style so
// the output carries one escape sequence per run instead of per cell.
func renderRow(b *strings.Builder, row []cell) {
	var run strings.Builder
	var runStyle lipgloss.Style
	runActive := false

	flush := func() {
		if run.Len() == 0 {
			return
		}
		b.WriteString(runStyle.Render(run.String()))
		run.Reset()
	}

	for _, c := range row {
		if c.glyph == "" {
			continue // covered by a preceding wide glyph
		}
		if !runActive || !sameStyle(runStyle, c.style) {
			flush()
			runStyle = c.style
			runActive = true
		}
		run.WriteString(c.glyph)
	}
	flush()
}

func sameStyle(a, b lipgloss.Style) bool {
	return a.GetForeground() == b.GetForeground()
}
