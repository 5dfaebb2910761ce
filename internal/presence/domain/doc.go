// Package domain implements the presence domain layer: collaborators,
// cursor markers, and the pure reconciliation between a roster snapshot
// and the marker set rendered on a surface.
//
// This package follows Domain-Driven Design (DDD) principles:
//   - Contains only pure Go code with standard library imports (no external dependencies)
//   - Defines entity types (Collaborator, Marker) and value objects (CursorPosition, CellMetrics)
//   - Implements domain logic (roster reconciliation, cursor-to-pixel mapping)
//   - Has no knowledge of infrastructure concerns (terminals, websockets, rendering)
//
// # Core Types
//
// Collaborator is one participant in a shared editing session, carrying an
// optional cursor position. Marker is the rendered representation of one
// collaborator's cursor.
//
// # Reconciliation
//
// Reconcile diffs the previous marker set against a roster snapshot and
// returns the next marker set together with the minimal create, update, and
// delete operations a renderer must apply. It is deterministic and free of
// side effects, so rendering adapters stay thin.
package domain
