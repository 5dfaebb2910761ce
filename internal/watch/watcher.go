// Package watch observes a project directory tree and publishes
// debounced file events for the studio to forward to collaborators.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/themateplatform/codemate/internal/log"
	"github.com/themateplatform/codemate/internal/pubsub"
)

// Op classifies what happened to a file.
type Op string

const (
	OpCreate Op = "create"
	OpWrite  Op = "write"
	OpRemove Op = "remove"
	OpRename Op = "rename"
)

// FileEvent is one observed change. Bursts of changes to the same path
// within the debounce window collapse into the latest one.
type FileEvent struct {
	Path string `json:"path"`
	Op   Op     `json:"op"`
}

// Config configures the Watcher.
type Config struct {
	// Dir is the project directory to observe. Required.
	Dir string

	// Debounce is how long a path must stay quiet before its latest
	// event is published. Defaults to 1 second.
	Debounce time.Duration
}

// Watcher observes a directory tree. New subdirectories are picked up as
// they appear; fsnotify itself only watches single directories.
type Watcher struct {
	dir      string
	debounce time.Duration
	events   *pubsub.Broker[FileEvent]

	// Lifecycle
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Watcher. Nothing touches the filesystem until Start.
func New(cfg Config) *Watcher {
	debounce := cfg.Debounce
	if debounce == 0 {
		debounce = time.Second
	}

	return &Watcher{
		dir:      cfg.Dir,
		debounce: debounce,
		events:   pubsub.NewBroker[FileEvent](),
	}
}

// Start begins observing the directory tree.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done != nil {
		return nil // Already started
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	if err := addTree(fsw, w.dir); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})

	log.Info(log.CatWatch, "Watching project directory", "dir", w.dir, "debounce", w.debounce.String())
	log.SafeGo("watch.run", func() {
		w.run(fsw)
	})

	return nil
}

// Stop halts observation. Safe to call multiple times or before Start.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return // Not started
	}
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	cancel()
	<-done
}

// Subscribe returns a channel of debounced file events. The channel
// closes when ctx is cancelled.
func (w *Watcher) Subscribe(ctx context.Context) <-chan pubsub.Event[FileEvent] {
	return w.events.Subscribe(ctx)
}

// run owns the debounce state. Raw fsnotify events land in pending,
// keyed by path; the timer flush publishes whatever accumulated.
func (w *Watcher) run(fsw *fsnotify.Watcher) {
	defer close(w.done)
	defer func() { _ = fsw.Close() }()

	pending := make(map[string]FileEvent)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			fe, relevant := translate(ev)
			if !relevant {
				continue
			}
			// A created directory needs its own watch before anything
			// inside it can be seen.
			if fe.Op == OpCreate {
				if info, err := os.Stat(fe.Path); err == nil && info.IsDir() {
					if err := fsw.Add(fe.Path); err != nil {
						log.Warn(log.CatWatch, "Failed to watch new directory", "path", fe.Path, "error", err.Error())
					}
				}
			}
			pending[fe.Path] = fe
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)

		case <-timer.C:
			for _, fe := range pending {
				w.events.Publish(eventType(fe.Op), fe)
				log.Debug(log.CatWatch, "File changed", "path", fe.Path, "op", string(fe.Op))
			}
			clear(pending)

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			log.Warn(log.CatWatch, "Watcher error", "error", err.Error())
		}
	}
}

// translate maps an fsnotify event onto a FileEvent. Chmod-only events
// are noise and report as irrelevant.
func translate(ev fsnotify.Event) (FileEvent, bool) {
	switch {
	case ev.Op.Has(fsnotify.Create):
		return FileEvent{Path: ev.Name, Op: OpCreate}, true
	case ev.Op.Has(fsnotify.Write):
		return FileEvent{Path: ev.Name, Op: OpWrite}, true
	case ev.Op.Has(fsnotify.Remove):
		return FileEvent{Path: ev.Name, Op: OpRemove}, true
	case ev.Op.Has(fsnotify.Rename):
		return FileEvent{Path: ev.Name, Op: OpRename}, true
	default:
		return FileEvent{}, false
	}
}

// eventType folds an Op into the broker's event taxonomy.
func eventType(op Op) pubsub.EventType {
	switch op {
	case OpCreate:
		return pubsub.CreatedEvent
	case OpRemove, OpRename:
		return pubsub.DeletedEvent
	default:
		return pubsub.UpdatedEvent
	}
}

// addTree registers dir and every subdirectory under it.
func addTree(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return fsw.Add(path)
	})
}
