// Package backend stores project files in the studio's database.
//
// Construction never hides a missing configuration: New returns either a
// connected *Postgres store or an *Unconfigured stand-in whose every
// operation fails with a NotConfiguredError naming the absent settings.
// Callers can build and wire the studio without a database and find out
// precisely what is missing the first time they touch it.
package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// File is one stored project file.
type File struct {
	Project   string    `json:"project"`
	Path      string    `json:"path"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileStore is the project-file surface both variants implement.
type FileStore interface {
	// Configured reports whether operations can succeed at all.
	Configured() bool

	// ListFiles returns a project's files sorted by path.
	ListFiles(ctx context.Context, project string) ([]File, error)

	// GetFile fetches one file. Returns *FileNotFoundError when absent.
	GetFile(ctx context.Context, project, path string) (*File, error)

	// PutFile creates or replaces a file.
	PutFile(ctx context.Context, project, path, content string) (*File, error)

	// DeleteFile removes a file. Deleting an absent file is a no-op.
	DeleteFile(ctx context.Context, project, path string) error

	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	// Close releases the underlying pool.
	Close()
}

// Config selects the backing database.
type Config struct {
	// DatabaseURL is a postgres connection string. Empty means the
	// backend is not configured.
	DatabaseURL string
}

// New builds the file store. A missing database URL yields the
// unconfigured variant rather than an error; a malformed one fails here.
func New(ctx context.Context, cfg Config) (FileStore, error) {
	if cfg.DatabaseURL == "" {
		return &Unconfigured{Missing: []string{"backend.database_url"}}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend pool: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Unconfigured is the disabled variant. It satisfies FileStore so the
// studio wires up normally, and fails loudly and descriptively the first
// time anything uses it.
type Unconfigured struct {
	Missing []string
}

var _ FileStore = (*Unconfigured)(nil)

// Configured implements FileStore.
func (u *Unconfigured) Configured() bool { return false }

func (u *Unconfigured) err() error {
	return &NotConfiguredError{Missing: u.Missing}
}

// ListFiles implements FileStore.
func (u *Unconfigured) ListFiles(context.Context, string) ([]File, error) { return nil, u.err() }

// GetFile implements FileStore.
func (u *Unconfigured) GetFile(context.Context, string, string) (*File, error) { return nil, u.err() }

// PutFile implements FileStore.
func (u *Unconfigured) PutFile(context.Context, string, string, string) (*File, error) {
	return nil, u.err()
}

// DeleteFile implements FileStore.
func (u *Unconfigured) DeleteFile(context.Context, string, string) error { return u.err() }

// Ping implements FileStore.
func (u *Unconfigured) Ping(context.Context) error { return u.err() }

// Close implements FileStore.
func (u *Unconfigured) Close() {}
