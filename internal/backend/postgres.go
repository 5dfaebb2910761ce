package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/themateplatform/codemate/internal/log"
)

// Postgres is the configured variant, backed by a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ FileStore = (*Postgres)(nil)

// schema is applied by EnsureSchema at startup.
const schema = `
CREATE TABLE IF NOT EXISTS project_files (
	project    TEXT NOT NULL,
	path       TEXT NOT NULL,
	content    TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (project, path)
)`

// EnsureSchema creates the backing table if it does not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure backend schema: %w", err)
	}
	log.Debug(log.CatDB, "Backend schema ensured")
	return nil
}

// Configured implements FileStore.
func (p *Postgres) Configured() bool { return true }

// ListFiles implements FileStore.
func (p *Postgres) ListFiles(ctx context.Context, project string) ([]File, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT project, path, content, updated_at FROM project_files WHERE project = $1 ORDER BY path`,
		project)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	var files []File
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.Project, &f.Path, &f.Content, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan file row: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file rows: %w", err)
	}
	return files, nil
}

// GetFile implements FileStore.
func (p *Postgres) GetFile(ctx context.Context, project, path string) (*File, error) {
	var f File
	err := p.pool.QueryRow(ctx,
		`SELECT project, path, content, updated_at FROM project_files WHERE project = $1 AND path = $2`,
		project, path).Scan(&f.Project, &f.Path, &f.Content, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &FileNotFoundError{Project: project, Path: path}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return &f, nil
}

// PutFile implements FileStore.
func (p *Postgres) PutFile(ctx context.Context, project, path, content string) (*File, error) {
	var f File
	err := p.pool.QueryRow(ctx,
		`INSERT INTO project_files (project, path, content, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (project, path) DO UPDATE SET content = $3, updated_at = now()
		 RETURNING project, path, content, updated_at`,
		project, path, content).Scan(&f.Project, &f.Path, &f.Content, &f.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to put file: %w", err)
	}
	return &f, nil
}

// DeleteFile implements FileStore.
func (p *Postgres) DeleteFile(ctx context.Context, project, path string) error {
	if _, err := p.pool.Exec(ctx,
		`DELETE FROM project_files WHERE project = $1 AND path = $2`, project, path); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Ping implements FileStore.
func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("backend unreachable: %w", err)
	}
	return nil
}

// Close implements FileStore.
func (p *Postgres) Close() {
	p.pool.Close()
}
