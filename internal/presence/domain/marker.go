package domain

// CellMetrics converts text coordinates into surface coordinates. A cursor
// at (line, column) lands at pixel (column*ColWidth, line*RowHeight).
type CellMetrics struct {
	RowHeight int `json:"row_height"`
	ColWidth  int `json:"col_width"`
}

// DefaultCellMetrics matches the editor's default font box.
func DefaultCellMetrics() CellMetrics {
	return CellMetrics{RowHeight: 20, ColWidth: 8}
}

// Marker is the rendered representation of one collaborator's cursor:
// a colored caret with a name label, absolutely positioned on the surface.
type Marker struct {
	CollaboratorID string `json:"collaborator_id"`
	Name           string `json:"name"`
	Color          string `json:"color"`
	X              int    `json:"x"`
	Y              int    `json:"y"`
}

// MarkerSet holds the live markers keyed by collaborator ID. Exactly one
// marker exists per collaborator with a placed cursor.
type MarkerSet map[string]Marker

// Clone returns an independent copy of the set.
func (s MarkerSet) Clone() MarkerSet {
	next := make(MarkerSet, len(s))
	for id, m := range s {
		next[id] = m
	}
	return next
}

// OpKind classifies a reconciliation operation.
type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// Op is one rendering instruction produced by Reconcile. For OpDelete only
// Marker.CollaboratorID is meaningful.
type Op struct {
	Kind   OpKind
	Marker Marker
}

// markerFor positions a collaborator's cursor on the surface.
func markerFor(c Collaborator, m CellMetrics) Marker {
	return Marker{
		CollaboratorID: c.ID,
		Name:           c.Name,
		Color:          c.Color,
		X:              c.Cursor.Column * m.ColWidth,
		Y:              c.Cursor.Line * m.RowHeight,
	}
}
