// Package log provides categorized structured logging for the studio.
//
// All packages log through the same sink so a single file (or stderr)
// carries every subsystem, filterable by category. The logger starts
// discarded; commands call Setup or SetupFile once flags are parsed.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
)

// Category identifies the subsystem a log line belongs to.
type Category string

const (
	CatAPI      Category = "api"
	CatBroker   Category = "broker"
	CatConfig   Category = "config"
	CatDB       Category = "db"
	CatHub      Category = "hub"
	CatPresence Category = "presence"
	CatProxy    Category = "proxy"
	CatSystem   Category = "system"
	CatUI       Category = "ui"
	CatWatch    Category = "watch"
)

var (
	mu     sync.RWMutex
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	sink   io.Closer
)

// Setup directs all log output to w at the given level.
func Setup(w io.Writer, level slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// SetupFile appends log output to the file at path, creating parent
// directories as needed. The file stays open until Close.
func SetupFile(path string, level slog.Level) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if sink != nil {
		_ = sink.Close()
	}
	sink = f
	logger = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	return nil
}

// Close closes the log file if SetupFile opened one. Safe to call
// when logging was never configured.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if sink == nil {
		return nil
	}
	err := sink.Close()
	sink = nil
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return err
}

func logAt(level slog.Level, cat Category, msg string, args ...any) {
	mu.RLock()
	l := logger
	mu.RUnlock()

	attrs := make([]any, 0, len(args)+2)
	attrs = append(attrs, "cat", string(cat))
	attrs = append(attrs, args...)
	l.Log(context.Background(), level, msg, attrs...)
}

// Debug logs at debug level with key/value pairs.
func Debug(cat Category, msg string, args ...any) { logAt(slog.LevelDebug, cat, msg, args...) }

// Info logs at info level with key/value pairs.
func Info(cat Category, msg string, args ...any) { logAt(slog.LevelInfo, cat, msg, args...) }

// Warn logs at warn level with key/value pairs.
func Warn(cat Category, msg string, args ...any) { logAt(slog.LevelWarn, cat, msg, args...) }

// Error logs at error level with key/value pairs.
func Error(cat Category, msg string, args ...any) { logAt(slog.LevelError, cat, msg, args...) }

// ErrorErr logs an error value under the "error" key along with any
// additional key/value pairs.
func ErrorErr(cat Category, msg string, err error, args ...any) {
	attrs := make([]any, 0, len(args)+2)
	attrs = append(attrs, "error", err)
	attrs = append(attrs, args...)
	logAt(slog.LevelError, cat, msg, attrs...)
}

// SafeGo runs fn in a goroutine that logs panics instead of crashing
// the process. name identifies the goroutine in the panic log line.
func SafeGo(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				Error(CatSystem, "Recovered panic in goroutine",
					"goroutine", name,
					"panic", fmt.Sprint(r),
					"stack", string(debug.Stack()))
			}
		}()
		fn()
	}()
}
