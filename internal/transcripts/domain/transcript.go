// Package domain defines the chat transcript entities and the
// repository port the studio persists them through.
package domain

import (
	"fmt"
	"time"
)

// Message roles. The persistence layer enforces the same set.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Transcript is one saved chat conversation.
type Transcript struct {
	ID        int64
	Title     string
	Provider  string
	Model     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTranscript creates a transcript stamped with the current time.
// The ID is assigned by the repository on first save.
func NewTranscript(title, provider, model string) *Transcript {
	now := time.Now().UTC()
	return &Transcript{
		Title:     title,
		Provider:  provider,
		Model:     model,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks the fields a transcript must carry before saving.
func (t *Transcript) Validate() error {
	if t.Title == "" {
		return fmt.Errorf("transcript title must not be empty")
	}
	if t.Provider == "" {
		return fmt.Errorf("transcript provider must not be empty")
	}
	return nil
}

// Message is one turn inside a transcript. TokensUsed and CostUSD carry
// the provider's usage accounting for assistant turns and stay zero for
// user turns.
type Message struct {
	ID           int64
	TranscriptID int64
	Role         string
	Content      string
	TokensUsed   int
	CostUSD      float64
	CreatedAt    time.Time
}

// Validate checks the fields a message must carry before saving.
func (m *Message) Validate() error {
	switch m.Role {
	case RoleSystem, RoleUser, RoleAssistant:
	default:
		return fmt.Errorf("message role must be system, user or assistant, got %q", m.Role)
	}
	if m.Content == "" {
		return fmt.Errorf("message content must not be empty")
	}
	return nil
}

// Repository persists transcripts and their messages.
type Repository interface {
	// Save persists a transcript. New transcripts (ID == 0) are
	// inserted and receive their ID; existing ones are updated.
	Save(t *Transcript) error

	// FindByID retrieves one transcript.
	// Returns *TranscriptNotFoundError if no matching transcript exists.
	FindByID(id int64) (*Transcript, error)

	// List returns transcripts ordered by most recently updated.
	// A limit of 0 means no limit.
	List(limit int) ([]*Transcript, error)

	// Delete removes a transcript and its messages.
	// Returns *TranscriptNotFoundError if no matching transcript exists.
	Delete(id int64) error

	// AppendMessage adds a message to its transcript and advances the
	// transcript's UpdatedAt to the message time.
	// Returns *TranscriptNotFoundError if the transcript does not exist.
	AppendMessage(m *Message) error

	// Messages returns a transcript's messages in conversation order.
	Messages(transcriptID int64) ([]*Message, error)

	// Close releases any resources held by the repository.
	Close() error
}
