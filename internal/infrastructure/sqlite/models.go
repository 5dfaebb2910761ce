package sqlite

import (
	"time"

	"github.com/themateplatform/codemate/internal/transcripts/domain"
)

// TranscriptModel represents the database row for the transcripts table.
// Fields map directly to SQL columns with Unix timestamps for time values.
type TranscriptModel struct {
	ID        int64
	Title     string
	Provider  string
	Model     string
	CreatedAt int64 // Unix timestamp
	UpdatedAt int64 // Unix timestamp
}

// toTranscriptModel converts a domain Transcript to a database row.
func toTranscriptModel(t *domain.Transcript) *TranscriptModel {
	return &TranscriptModel{
		ID:        t.ID,
		Title:     t.Title,
		Provider:  t.Provider,
		Model:     t.Model,
		CreatedAt: t.CreatedAt.Unix(),
		UpdatedAt: t.UpdatedAt.Unix(),
	}
}

// toDomain converts a database row to a domain Transcript.
func (m *TranscriptModel) toDomain() *domain.Transcript {
	return &domain.Transcript{
		ID:        m.ID,
		Title:     m.Title,
		Provider:  m.Provider,
		Model:     m.Model,
		CreatedAt: time.Unix(m.CreatedAt, 0).UTC(),
		UpdatedAt: time.Unix(m.UpdatedAt, 0).UTC(),
	}
}

// MessageModel represents the database row for the messages table.
type MessageModel struct {
	ID           int64
	TranscriptID int64
	Role         string
	Content      string
	TokensUsed   int64
	CostUSD      float64
	CreatedAt    int64 // Unix timestamp
}

// toMessageModel converts a domain Message to a database row.
func toMessageModel(msg *domain.Message) *MessageModel {
	return &MessageModel{
		ID:           msg.ID,
		TranscriptID: msg.TranscriptID,
		Role:         msg.Role,
		Content:      msg.Content,
		TokensUsed:   int64(msg.TokensUsed),
		CostUSD:      msg.CostUSD,
		CreatedAt:    msg.CreatedAt.Unix(),
	}
}

// toDomain converts a database row to a domain Message.
func (m *MessageModel) toDomain() *domain.Message {
	return &domain.Message{
		ID:           m.ID,
		TranscriptID: m.TranscriptID,
		Role:         m.Role,
		Content:      m.Content,
		TokensUsed:   int(m.TokensUsed),
		CostUSD:      m.CostUSD,
		CreatedAt:    time.Unix(m.CreatedAt, 0).UTC(),
	}
}
