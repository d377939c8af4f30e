// Copyright 2025 The Cellstore Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package cellstore

import (
	"slices"

	"github.com/cellstore/cellstore/internal/base"
	"github.com/cellstore/cellstore/internal/invariants"
	"github.com/cockroachdb/errors"
)

// ScanOptions configures a Scanner. The zero value scans everything: all
// rows, all versions, the full time range, at the read point captured when
// the scanner is opened.
type ScanOptions struct {
	// StartRow is the first row to include; nil means the first row in the
	// store.
	StartRow []byte
	// EndRow is the exclusive upper bound; nil means no bound.
	EndRow []byte
	// MaxVersions limits the number of versions emitted per column. Zero
	// means unlimited. Applied after tombstone resolution.
	MaxVersions int
	// MinTimestamp and MaxTimestamp bound the emitted versions to the
	// inclusive range [MinTimestamp, MaxTimestamp]. A zero MaxTimestamp
	// means TimestampMax. Applied after tombstone resolution.
	MinTimestamp base.Timestamp
	MaxTimestamp base.Timestamp
	// ReadPoint pins the scan to an explicit snapshot. Zero means capture
	// the sequencer's current read point at open.
	ReadPoint base.SeqNum
}

func (o ScanOptions) ensureDefaults() ScanOptions {
	if o.MaxTimestamp == 0 {
		o.MaxTimestamp = base.TimestampMax
	}
	return o
}

// Scanner iterates over the visible put cells of a store, in the store's
// cell ordering, as of the read point captured at open.
//
// The scanner pulls the merged cell stream from the memstore and any
// flushed segments, filters out cells above its read point, feeds every
// tombstone cell to its delete tracker, classifies every put cell against
// the tracker, and emits the survivors. Tombstone state is reset at each
// row and family boundary. A scanner (and the tracker it owns) belongs to a
// single goroutine.
//
// Usage:
//
//	s := store.NewScanner(cellstore.ScanOptions{})
//	defer s.Close()
//	for valid := s.First(); valid; valid = s.Next() {
//		cell := s.Cell()
//		...
//	}
//	if err := s.Error(); err != nil { ... }
type Scanner struct {
	cmp       *base.Comparer
	iter      *mergingIter
	tracker   *DeleteTracker
	readPoint base.SeqNum
	opts      ScanOptions

	cell *base.Cell
	err  error

	// Boundary state. curRow and curFamily are copies: the merged iterator
	// may overwrite the cell it returns on each positioning call.
	curRow    []byte
	curFamily []byte
	started   bool

	// Per-column emission state.
	curQualifier []byte
	emitted      int
	lastEmitTs   base.Timestamp
	hasEmitTs    bool

	// Ordering verification for invariants builds.
	prevCell base.Cell
	hasPrev  bool
}

func newScanner(
	cmp *base.Comparer, iter *mergingIter, readPoint base.SeqNum, opts ScanOptions,
) *Scanner {
	return &Scanner{
		cmp:       cmp,
		iter:      iter,
		tracker:   NewDeleteTracker(cmp.CompareBytes),
		readPoint: readPoint,
		opts:      opts.ensureDefaults(),
	}
}

// ReadPoint returns the sequence number snapshot the scan is pinned to. It
// does not drift for the lifetime of the scanner.
func (s *Scanner) ReadPoint() base.SeqNum {
	return s.readPoint
}

// First positions the scanner at the first visible cell.
func (s *Scanner) First() bool {
	s.tracker.Reset()
	s.started = false
	s.hasPrev = false
	s.err = nil
	return s.findNext(s.iter.First())
}

// Next advances to the next visible cell.
func (s *Scanner) Next() bool {
	if s.err != nil || s.cell == nil {
		return false
	}
	return s.findNext(s.iter.Next())
}

// Valid returns true if the scanner is positioned at a cell.
func (s *Scanner) Valid() bool {
	return s.cell != nil && s.err == nil
}

// Cell returns the cell the scanner is positioned at. The returned cell is
// only valid until the next positioning call.
func (s *Scanner) Cell() *base.Cell {
	return s.cell
}

// Error returns the error that stopped the scan, if any. A tombstone
// ordering fault or segment corruption poisons the scanner: Valid reports
// false and the error is reported here rather than silently emitting (or
// suppressing) cells.
func (s *Scanner) Error() error {
	if s.err != nil {
		return s.err
	}
	return s.iter.Error()
}

// Close releases the scanner's underlying iterators.
func (s *Scanner) Close() error {
	s.cell = nil
	return errors.CombineErrors(s.err, s.iter.Close())
}

// findNext consumes the merged stream starting at c until it finds a put
// cell that is visible at the read point and not suppressed by a tombstone,
// a timestamp bound, or the per-column version limit.
func (s *Scanner) findNext(c *base.Cell) bool {
	for ; c != nil; c = s.iter.Next() {
		if invariants.Enabled {
			s.checkOrdering(c)
		}

		// Snapshot filter: in-flight or future writes are invisible. This
		// uses the read point captured at open; the snapshot never drifts
		// mid-scan.
		if c.SeqNum > s.readPoint {
			continue
		}

		if s.opts.StartRow != nil && s.cmp.CompareBytes(c.Row, s.opts.StartRow) < 0 {
			continue
		}
		if s.opts.EndRow != nil && s.cmp.CompareBytes(c.Row, s.opts.EndRow) >= 0 {
			// Rows only grow from here; the scan is done.
			break
		}

		s.maybeCrossBoundary(c)

		if c.Kind.IsDelete() {
			// Tombstones are bookkeeping, never emitted. The qualifier is
			// cloned because the tracker may retain it across positioning
			// calls that recycle the iterator's buffers.
			s.tracker.Add(slices.Clone(c.Qualifier), c.Timestamp, c.Kind)
			continue
		}

		if !s.tracker.IsEmpty() {
			res, err := s.tracker.IsDeleted(c.Qualifier, c.Timestamp)
			if err != nil {
				s.err = err
				s.cell = nil
				return false
			}
			if res != NotDeleted {
				continue
			}
		}

		if c.Timestamp < s.opts.MinTimestamp || c.Timestamp > s.opts.MaxTimestamp {
			continue
		}

		if !bytesEqual(s.cmp.CompareBytes, s.curQualifier, c.Qualifier) {
			s.curQualifier = append(s.curQualifier[:0], c.Qualifier...)
			s.emitted = 0
			s.hasEmitTs = false
		}
		if s.hasEmitTs && c.Timestamp == s.lastEmitTs {
			// Same logical version written twice; the higher sequence number
			// was emitted first and shadows this one.
			continue
		}
		if s.opts.MaxVersions > 0 && s.emitted >= s.opts.MaxVersions {
			continue
		}
		s.emitted++
		s.lastEmitTs = c.Timestamp
		s.hasEmitTs = true
		s.cell = c
		return true
	}
	s.cell = nil
	return false
}

// maybeCrossBoundary resets tombstone and version state when the scan moves
// to a new row or family.
func (s *Scanner) maybeCrossBoundary(c *base.Cell) {
	if s.started &&
		s.cmp.CompareBytes(s.curRow, c.Row) == 0 &&
		s.cmp.CompareBytes(s.curFamily, c.Family) == 0 {
		return
	}
	s.started = true
	s.curRow = append(s.curRow[:0], c.Row...)
	s.curFamily = append(s.curFamily[:0], c.Family...)
	s.tracker.Reset()
	s.curQualifier = s.curQualifier[:0]
	s.emitted = 0
	s.hasEmitTs = false
}

func (s *Scanner) checkOrdering(c *base.Cell) {
	if s.hasPrev && s.cmp.Compare(&s.prevCell, c) >= 0 {
		panic(errors.AssertionFailedf(
			"cellstore: merged scan out of order: %s then %s", s.prevCell, c))
	}
	s.prevCell = base.Cell{
		Row:       slices.Clone(c.Row),
		Family:    slices.Clone(c.Family),
		Qualifier: slices.Clone(c.Qualifier),
		Timestamp: c.Timestamp,
		Kind:      c.Kind,
		SeqNum:    c.SeqNum,
	}
	s.hasPrev = true
}

func bytesEqual(cmp base.CompareBytes, a, b []byte) bool {
	return cmp(a, b) == 0
}
