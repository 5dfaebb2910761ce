package domain

// Reconcile diffs the previous marker set against a roster snapshot and
// returns the next marker set plus the operations that transform one into
// the other.
//
// Rules:
//   - A marker exists for a collaborator exactly when their roster entry
//     carries a non-nil cursor.
//   - Collaborators absent from the roster, or present without a cursor,
//     have their markers deleted.
//   - A marker whose position, name, and color are unchanged produces no
//     operation, so feeding the same snapshot twice yields zero ops.
//   - Duplicate roster IDs resolve last-write-wins.
//   - Entries with an empty ID are ignored.
//
// The previous set is not mutated. Cost is linear in len(prev)+len(roster).
// Creates and updates come first in roster order, then deletes.
func Reconcile(prev MarkerSet, roster []Collaborator, metrics CellMetrics) (MarkerSet, []Op) {
	// Fold the roster last-write-wins into the desired end state.
	// A nil entry records a collaborator who is present but cursorless.
	desired := make(map[string]*Marker, len(roster))
	order := make([]string, 0, len(roster))
	for _, c := range roster {
		if c.ID == "" {
			continue
		}
		if _, seen := desired[c.ID]; !seen {
			order = append(order, c.ID)
		}
		if c.Cursor == nil {
			desired[c.ID] = nil
			continue
		}
		m := markerFor(c, metrics)
		desired[c.ID] = &m
	}

	next := make(MarkerSet, len(desired))
	ops := make([]Op, 0, len(desired))

	for _, id := range order {
		m := desired[id]
		if m == nil {
			// Cursorless entries fall through to the delete pass.
			continue
		}
		next[id] = *m

		old, existed := prev[id]
		switch {
		case !existed:
			ops = append(ops, Op{Kind: OpCreate, Marker: *m})
		case old != *m:
			ops = append(ops, Op{Kind: OpUpdate, Marker: *m})
		}
	}

	for id := range prev {
		if _, stillHere := next[id]; !stillHere {
			ops = append(ops, Op{Kind: OpDelete, Marker: Marker{CollaboratorID: id}})
		}
	}

	return next, ops
}
