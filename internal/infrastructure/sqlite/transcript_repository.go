package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/themateplatform/codemate/internal/transcripts/domain"
)

// transcriptRepository implements domain.Repository using SQLite.
type transcriptRepository struct {
	db *sql.DB
}

// newTranscriptRepository creates a new transcriptRepository instance.
func newTranscriptRepository(db *sql.DB) *transcriptRepository {
	return &transcriptRepository{db: db}
}

// Ensure transcriptRepository implements domain.Repository.
var _ domain.Repository = (*transcriptRepository)(nil)

// Save persists a transcript to the database.
// For new transcripts (ID == 0), inserts a new row and sets the ID.
// For existing transcripts (ID > 0), updates the existing row.
func (r *transcriptRepository) Save(t *domain.Transcript) error {
	if err := t.Validate(); err != nil {
		return err
	}
	model := toTranscriptModel(t)

	if t.ID == 0 {
		result, err := r.db.Exec(
			`INSERT INTO transcripts (title, provider, model, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?)`,
			model.Title, model.Provider, model.Model, model.CreatedAt, model.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert transcript: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		t.ID = id
		return nil
	}

	result, err := r.db.Exec(
		`UPDATE transcripts SET title = ?, provider = ?, model = ?, updated_at = ? WHERE id = ?`,
		model.Title, model.Provider, model.Model, model.UpdatedAt, model.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transcript: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return &domain.TranscriptNotFoundError{ID: t.ID}
	}
	return nil
}

// FindByID retrieves a transcript by its ID.
// Returns TranscriptNotFoundError if no matching transcript exists.
func (r *transcriptRepository) FindByID(id int64) (*domain.Transcript, error) {
	var model TranscriptModel
	err := r.db.QueryRow(
		`SELECT id, title, provider, model, created_at, updated_at
		 FROM transcripts
		 WHERE id = ?`,
		id,
	).Scan(&model.ID, &model.Title, &model.Provider, &model.Model, &model.CreatedAt, &model.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, &domain.TranscriptNotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find transcript by id: %w", err)
	}
	return model.toDomain(), nil
}

// List retrieves transcripts ordered by updated_at descending (most
// recently touched first). A limit of 0 means no limit.
func (r *transcriptRepository) List(limit int) ([]*domain.Transcript, error) {
	query := `SELECT id, title, provider, model, created_at, updated_at
			  FROM transcripts
			  ORDER BY updated_at DESC, id DESC`
	args := []any{}

	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcripts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transcripts []*domain.Transcript
	for rows.Next() {
		var model TranscriptModel
		err := rows.Scan(&model.ID, &model.Title, &model.Provider, &model.Model, &model.CreatedAt, &model.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transcript row: %w", err)
		}
		transcripts = append(transcripts, model.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transcript rows: %w", err)
	}

	return transcripts, nil
}

// Delete removes a transcript and its messages.
// Returns TranscriptNotFoundError if no matching transcript exists.
// Messages are deleted explicitly rather than through the schema's ON
// DELETE CASCADE, which only fires on connections that have the
// foreign_keys pragma enabled.
func (r *transcriptRepository) Delete(id int64) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM messages WHERE transcript_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete transcript messages: %w", err)
	}

	result, err := tx.Exec(`DELETE FROM transcripts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transcript: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return &domain.TranscriptNotFoundError{ID: id}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

// AppendMessage adds a message to its transcript and advances the
// transcript's updated_at to the message time. A zero CreatedAt is
// stamped with the current time.
func (r *transcriptRepository) AppendMessage(m *domain.Message) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	model := toMessageModel(m)

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Touching the parent first doubles as the existence check.
	touched, err := tx.Exec(
		`UPDATE transcripts SET updated_at = ? WHERE id = ?`,
		model.CreatedAt, model.TranscriptID,
	)
	if err != nil {
		return fmt.Errorf("failed to touch transcript: %w", err)
	}
	rowsAffected, err := touched.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return &domain.TranscriptNotFoundError{ID: m.TranscriptID}
	}

	result, err := tx.Exec(
		`INSERT INTO messages (transcript_id, role, content, tokens_used, cost_usd, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		model.TranscriptID, model.Role, model.Content, model.TokensUsed, model.CostUSD, model.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit message: %w", err)
	}
	m.ID = id
	return nil
}

// Messages retrieves a transcript's messages in conversation order.
func (r *transcriptRepository) Messages(transcriptID int64) ([]*domain.Message, error) {
	rows, err := r.db.Query(
		`SELECT id, transcript_id, role, content, tokens_used, cost_usd, created_at
		 FROM messages
		 WHERE transcript_id = ?
		 ORDER BY created_at ASC, id ASC`,
		transcriptID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []*domain.Message
	for rows.Next() {
		var model MessageModel
		err := rows.Scan(&model.ID, &model.TranscriptID, &model.Role, &model.Content, &model.TokensUsed, &model.CostUSD, &model.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, model.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}

	return messages, nil
}

// Close releases any resources held by the repository.
// This is a no-op because the connection is owned by the DB struct.
func (r *transcriptRepository) Close() error {
	// No-op: connection is owned by DB struct
	return nil
}
