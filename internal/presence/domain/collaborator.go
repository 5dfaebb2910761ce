package domain

import "fmt"

// CursorPosition is a zero-based text coordinate. Line counts rows from
// the top of the document, Column counts cells from the left.
type CursorPosition struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Validate rejects negative coordinates.
func (p CursorPosition) Validate() error {
	if p.Line < 0 {
		return fmt.Errorf("cursor line must be >= 0, got %d", p.Line)
	}
	if p.Column < 0 {
		return fmt.Errorf("cursor column must be >= 0, got %d", p.Column)
	}
	return nil
}

// Collaborator is one participant in a shared session. Cursor is nil when
// the participant is connected but has no cursor placed (joined and idle,
// or focus outside the editor).
type Collaborator struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Color  string          `json:"color"`
	Cursor *CursorPosition `json:"cursor,omitempty"`
}

// Validate checks the fields a roster entry must carry.
func (c Collaborator) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("collaborator id must not be empty")
	}
	if c.Cursor != nil {
		if err := c.Cursor.Validate(); err != nil {
			return fmt.Errorf("collaborator %s: %w", c.ID, err)
		}
	}
	return nil
}
