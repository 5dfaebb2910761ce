// Package styles contains Lip Gloss style definitions.
package styles

import "fmt"

// FormatCursor returns the "line:column" form of a cursor position,
// 1-based the way editors display it.
func FormatCursor(line, column int) string {
	return fmt.Sprintf("%d:%d", line+1, column+1)
}

// FormatCollaboratorCount returns the roster count label.
// Returns empty string when count is 0.
func FormatCollaboratorCount(count int) string {
	switch count {
	case 0:
		return ""
	case 1:
		return "1 collaborator"
	default:
		return fmt.Sprintf("%d collaborators", count)
	}
}
