// Package suggest turns AI-proposed file contents into reviewable
// diffs. A Suggestion pairs what a file says now with what the
// assistant wants it to say; rendering and counting happen here so the
// CLI and the API agree on what a change looks like.
package suggest

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// contextLines is how much unchanged context each hunk carries.
const contextLines = 3

// Suggestion is one proposed file change.
type Suggestion struct {
	Path     string `json:"path"`
	Original string `json:"original"`
	Proposed string `json:"proposed"`
}

// DiffStats counts a suggestion's added and removed lines.
type DiffStats struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
}

// FromResponse builds a Suggestion from a model reply. Models often
// wrap file content in a fenced code block even when told not to, so a
// reply that is one whole fenced block is unwrapped before diffing.
func FromResponse(path, original, reply string) Suggestion {
	return Suggestion{Path: path, Original: original, Proposed: unfence(reply)}
}

// unfence strips ``` fences (with or without a language tag) when the
// entire reply is a single fenced block. Replies that mix prose and
// code pass through untouched.
func unfence(reply string) string {
	trimmed := strings.TrimSpace(reply)
	if !strings.HasPrefix(trimmed, "```") {
		return reply
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 || strings.TrimSpace(lines[len(lines)-1]) != "```" {
		return reply
	}
	body := strings.Join(lines[1:len(lines)-1], "\n")
	if body != "" {
		body += "\n"
	}
	return body
}

// line is one row of a line-granular diff.
type line struct {
	op   diffmatchpatch.Operation
	text string
}

// hunk is a run of diff lines with shared context.
type hunk struct {
	oldStart, oldCount int
	newStart, newCount int
	lines              []line
}

// UnifiedDiff renders the suggestion as a unified diff with hunk
// headers and three lines of context. Identical contents render as the
// empty string.
func (s Suggestion) UnifiedDiff() string {
	if s.Original == s.Proposed {
		return ""
	}

	lines := s.lineDiff()
	hunks := groupHunks(lines, contextLines)
	if len(hunks) == 0 {
		return ""
	}

	path := s.Path
	if path == "" {
		path = "file"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "--- a/%s\n", path)
	fmt.Fprintf(&b, "+++ b/%s\n", path)
	for _, h := range hunks {
		fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@\n", h.oldStart, h.oldCount, h.newStart, h.newCount)
		for _, l := range h.lines {
			b.WriteString(prefixFor(l.op))
			b.WriteString(l.text)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Stats counts added and removed lines.
func (s Suggestion) Stats() DiffStats {
	var st DiffStats
	if s.Original == s.Proposed {
		return st
	}
	for _, l := range s.lineDiff() {
		switch l.op {
		case diffmatchpatch.DiffInsert:
			st.Added++
		case diffmatchpatch.DiffDelete:
			st.Removed++
		}
	}
	return st
}

// Summary is the compact "+3 -1" form used in listings.
func (s Suggestion) Summary() string {
	st := s.Stats()
	return fmt.Sprintf("+%d -%d", st.Added, st.Removed)
}

// lineDiff runs go-diff in line mode: lines are hashed to runes, diffed
// as text, then mapped back, which keeps the diff line-granular.
func (s Suggestion) lineDiff() []line {
	dmp := diffmatchpatch.New()
	chars1, chars2, lineArray := dmp.DiffLinesToChars(s.Original, s.Proposed)
	diffs := dmp.DiffMain(chars1, chars2, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var lines []line
	for _, d := range diffs {
		for _, text := range splitLines(d.Text) {
			lines = append(lines, line{op: d.Type, text: text})
		}
	}
	return lines
}

// groupHunks merges changed lines whose gaps fit inside shared context
// and attaches the surrounding equal lines.
func groupHunks(lines []line, context int) []hunk {
	changed := make([]int, 0, len(lines))
	for i, l := range lines {
		if l.op != diffmatchpatch.DiffEqual {
			changed = append(changed, i)
		}
	}
	if len(changed) == 0 {
		return nil
	}

	type span struct{ start, end int }
	spans := []span{{changed[0], changed[0]}}
	for _, idx := range changed[1:] {
		last := &spans[len(spans)-1]
		if idx-last.end <= 2*context {
			last.end = idx
		} else {
			spans = append(spans, span{idx, idx})
		}
	}

	// Old/new line totals consumed before each index.
	oldAt := make([]int, len(lines)+1)
	newAt := make([]int, len(lines)+1)
	for i, l := range lines {
		oldAt[i+1] = oldAt[i]
		newAt[i+1] = newAt[i]
		switch l.op {
		case diffmatchpatch.DiffEqual:
			oldAt[i+1]++
			newAt[i+1]++
		case diffmatchpatch.DiffDelete:
			oldAt[i+1]++
		case diffmatchpatch.DiffInsert:
			newAt[i+1]++
		}
	}

	hunks := make([]hunk, 0, len(spans))
	for _, sp := range spans {
		from := max(sp.start-context, 0)
		to := min(sp.end+context, len(lines)-1)

		h := hunk{
			oldCount: oldAt[to+1] - oldAt[from],
			newCount: newAt[to+1] - newAt[from],
			lines:    lines[from : to+1],
		}
		// Unified convention: an empty side starts at the preceding
		// line number.
		h.oldStart = oldAt[from] + 1
		if h.oldCount == 0 {
			h.oldStart = oldAt[from]
		}
		h.newStart = newAt[from] + 1
		if h.newCount == 0 {
			h.newStart = newAt[from]
		}
		hunks = append(hunks, h)
	}
	return hunks
}

func prefixFor(op diffmatchpatch.Operation) string {
	switch op {
	case diffmatchpatch.DiffInsert:
		return "+"
	case diffmatchpatch.DiffDelete:
		return "-"
	default:
		return " "
	}
}

// splitLines breaks diff text into lines, not counting the trailing
// newline as an extra empty line.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}
