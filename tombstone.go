// Copyright 2025 The Cellstore Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package cellstore

import (
	"github.com/cellstore/cellstore/internal/base"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

// DeleteResult classifies a put cell against the tombstones seen so far in
// the current row and family.
type DeleteResult uint8

const (
	// NotDeleted means no recorded tombstone covers the cell.
	NotDeleted DeleteResult = iota
	// FamilyDeleted means a family tombstone at or above the cell's
	// timestamp covers it.
	FamilyDeleted
	// ColumnDeleted means a column tombstone for the cell's qualifier
	// covers it.
	ColumnDeleted
	// VersionDeleted means a version tombstone matches the cell's qualifier
	// and exact timestamp.
	VersionDeleted
)

var deleteResultNames = [...]string{
	NotDeleted:     "NOT_DELETED",
	FamilyDeleted:  "FAMILY_DELETED",
	ColumnDeleted:  "COLUMN_DELETED",
	VersionDeleted: "VERSION_DELETED",
}

func (r DeleteResult) String() string {
	return deleteResultNames[r]
}

// SafeFormat implements redact.SafeFormatter.
func (r DeleteResult) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Print(redact.SafeString(r.String()))
}

// DeleteTracker tracks and enforces tombstones over one row and family
// during a scan. It is fed cells strictly in the store's cell ordering:
// qualifiers ascending, and within a qualifier timestamps descending with
// tombstones before puts at equal timestamps. That ordering is what lets
// the tracker resolve all three tombstone scopes with O(1) state: a single
// family watermark and a single column watermark, instead of materializing
// every tombstone seen.
//
// Usage: Add for every tombstone cell encountered, IsDeleted for every put
// cell before emitting it, and Reset at every row boundary.
//
// A DeleteTracker is not safe for concurrent use. Each active scan owns its
// own tracker; that is a deliberate throughput tradeoff, and sharing one
// across scanning goroutines is a caller error.
type DeleteTracker struct {
	cmp base.CompareBytes

	hasFamilyStamp bool
	familyStamp    base.Timestamp

	// The most specific, most recent delete affecting the column currently
	// being resolved. A nil qualifier means no column tombstone is tracked.
	delQualifier []byte
	delKind      base.CellKind
	delTimestamp base.Timestamp
}

// NewDeleteTracker returns a tracker using the given qualifier ordering,
// which must match the ordering of the cell stream it is fed.
func NewDeleteTracker(cmp base.CompareBytes) *DeleteTracker {
	return &DeleteTracker{cmp: cmp}
}

// Add records a tombstone for the current row and family. kind must be one
// of the three delete kinds.
//
// A tombstone already subsumed by the family watermark (timestamp at or
// below the family stamp) is a no-op regardless of its kind. A less
// specific tombstone for the qualifier currently tracked is ignored: a
// column delete recorded first always wins over a later-seen version delete
// for the same column. Everything else overwrites the column watermark.
func (d *DeleteTracker) Add(qualifier []byte, ts base.Timestamp, kind base.CellKind) {
	if d.hasFamilyStamp && ts <= d.familyStamp {
		// Already subsumed.
		return
	}
	if kind == base.CellKindDeleteFamily {
		d.hasFamilyStamp = true
		d.familyStamp = ts
		return
	}
	if d.delQualifier != nil && kind < d.delKind && d.cmp(d.delQualifier, qualifier) == 0 {
		// Same column; ignore the less specific delete.
		return
	}
	// New column, or an equally/more specific delete.
	d.delQualifier = qualifier
	d.delKind = kind
	d.delTimestamp = ts
}

// IsDeleted classifies a put cell against the recorded tombstones. The
// returned error is an internal-consistency failure: it means the input
// stream violated the required ordering (the tracked qualifier sorts after
// the queried one, or a timestamp ran backwards within a column) and the
// scan must be aborted rather than risk resurrecting a deleted cell.
func (d *DeleteTracker) IsDeleted(qualifier []byte, ts base.Timestamp) (DeleteResult, error) {
	if d.hasFamilyStamp && ts <= d.familyStamp {
		return FamilyDeleted, nil
	}

	if d.delQualifier != nil {
		switch v := d.cmp(d.delQualifier, qualifier); {
		case v == 0:
			if d.delKind == base.CellKindDeleteColumn {
				return ColumnDeleted, nil
			}
			// Version delete. An equal timestamp is covered exactly.
			if ts == d.delTimestamp {
				return VersionDeleted, nil
			}
			if ts > d.delTimestamp {
				return NotDeleted, errors.AssertionFailedf(
					"cellstore: timestamp %s above tracked version delete %s for qualifier %q",
					ts, d.delTimestamp, d.delQualifier)
			}
			// Strictly older version; the tombstone's single-version scope
			// is exhausted.
			d.delQualifier = nil
		case v < 0:
			// The scan moved past the tracked column.
			d.delQualifier = nil
		default:
			// Qualifiers must be non-decreasing in scan order. Returning
			// NotDeleted here would silently resurrect deleted cells.
			return NotDeleted, errors.AssertionFailedf(
				"cellstore: qualifier ordering inversion: tracked %q after queried %q",
				d.delQualifier, qualifier)
		}
	}

	return NotDeleted, nil
}

// IsEmpty returns true iff no tombstone is being tracked. Callers use it to
// short-circuit tombstone bookkeeping for rows without deletes.
func (d *DeleteTracker) IsEmpty() bool {
	return d.delQualifier == nil && !d.hasFamilyStamp
}

// Reset clears all tombstone state. Called at every row boundary.
func (d *DeleteTracker) Reset() {
	d.hasFamilyStamp = false
	d.familyStamp = 0
	d.delQualifier = nil
}
