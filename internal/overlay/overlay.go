// Package overlay projects collaborator cursors onto a host surface.
//
// The overlay owns no rendering logic. It holds the current marker set,
// reconciles each roster snapshot against it, and forwards the resulting
// operations to whatever Surface is attached. Rendering failures are
// logged and skipped; the marker set always reflects the reconciled
// state so the next snapshot diffs correctly.
package overlay

import (
	"sync"

	"github.com/themateplatform/codemate/internal/log"
	"github.com/themateplatform/codemate/internal/presence/domain"
)

// Surface is a host target markers are rendered onto. Mount is called
// once when the surface is attached, Unmount once when it is detached,
// and Apply once per reconciliation operation in between.
type Surface interface {
	Mount() error
	Apply(op domain.Op) error
	Unmount() error
}

// Overlay reconciles roster snapshots onto an attached surface.
type Overlay struct {
	mu      sync.Mutex
	surface Surface
	markers domain.MarkerSet
	metrics domain.CellMetrics
}

// New creates a detached overlay. Zero metrics fall back to the editor
// defaults.
func New(metrics domain.CellMetrics) *Overlay {
	if metrics.RowHeight <= 0 || metrics.ColWidth <= 0 {
		metrics = domain.DefaultCellMetrics()
	}
	return &Overlay{
		markers: make(domain.MarkerSet),
		metrics: metrics,
	}
}

// Attach binds the overlay to a surface. A nil surface is ignored, and
// attaching the surface that is already bound is a no-op, so callers may
// attach unconditionally. Attaching a different surface detaches the old
// one first.
func (o *Overlay) Attach(s Surface) {
	if s == nil {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.surface == s {
		return
	}
	if o.surface != nil {
		o.detachLocked()
	}

	if err := s.Mount(); err != nil {
		log.ErrorErr(log.CatPresence, "Failed to mount overlay surface", err)
		return
	}
	o.surface = s
}

// Sync reconciles a roster snapshot against the current marker set and
// applies the diff to the attached surface. While detached it does
// nothing: markers exist only inside an attached surface.
func (o *Overlay) Sync(roster []domain.Collaborator) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.surface == nil {
		return
	}

	next, ops := domain.Reconcile(o.markers, roster, o.metrics)
	o.markers = next

	for _, op := range ops {
		if err := o.surface.Apply(op); err != nil {
			log.ErrorErr(log.CatPresence, "Failed to apply marker operation", err,
				"kind", string(op.Kind),
				"collaborator", op.Marker.CollaboratorID)
		}
	}
}

// Detach unbinds the surface and drops every marker. Safe to call when
// already detached.
func (o *Overlay) Detach() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.detachLocked()
}

func (o *Overlay) detachLocked() {
	if o.surface == nil {
		return
	}
	if err := o.surface.Unmount(); err != nil {
		log.ErrorErr(log.CatPresence, "Failed to unmount overlay surface", err)
	}
	o.surface = nil
	o.markers = make(domain.MarkerSet)
}

// Attached reports whether a surface is currently bound.
func (o *Overlay) Attached() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.surface != nil
}

// Markers returns a copy of the current marker set.
func (o *Overlay) Markers() domain.MarkerSet {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.markers.Clone()
}
