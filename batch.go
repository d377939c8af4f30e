// Copyright 2025 The Cellstore Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package cellstore

import (
	"github.com/cellstore/cellstore/internal/base"
)

// A Batch is an ordered collection of mutations that are applied to a store
// atomically with respect to visibility: a single write ticket covers the
// whole batch, every cell in it carries the same sequence number, and no
// reader observes a strict subset of it.
//
// A Batch is not safe for concurrent use, and is exhausted after a
// successful Apply.
type Batch struct {
	cells  []base.Cell
	seqNum base.SeqNum
}

// Put adds a value mutation to the batch.
func (b *Batch) Put(row, family, qualifier []byte, ts base.Timestamp, value []byte) {
	b.cells = append(b.cells, base.MakeCell(row, family, qualifier, ts, base.CellKindPut, value))
}

// DeleteVersion adds a tombstone deleting exactly the version of the
// qualifier at ts.
func (b *Batch) DeleteVersion(row, family, qualifier []byte, ts base.Timestamp) {
	b.cells = append(b.cells, base.MakeCell(row, family, qualifier, ts, base.CellKindDeleteVersion, nil))
}

// DeleteColumn adds a tombstone deleting all versions of the qualifier at
// or below ts.
func (b *Batch) DeleteColumn(row, family, qualifier []byte, ts base.Timestamp) {
	b.cells = append(b.cells, base.MakeCell(row, family, qualifier, ts, base.CellKindDeleteColumn, nil))
}

// DeleteFamily adds a tombstone deleting every column of the family at or
// below ts.
func (b *Batch) DeleteFamily(row, family []byte, ts base.Timestamp) {
	b.cells = append(b.cells, base.MakeCell(row, family, nil, ts, base.CellKindDeleteFamily, nil))
}

// Count returns the number of mutations in the batch.
func (b *Batch) Count() int {
	return len(b.cells)
}

// Empty returns true if the batch contains no mutations.
func (b *Batch) Empty() bool {
	return len(b.cells) == 0
}

// SeqNum returns the sequence number assigned to the batch, or zero if it
// has not been applied yet.
func (b *Batch) SeqNum() base.SeqNum {
	return b.seqNum
}

// Reset clears the batch for reuse.
func (b *Batch) Reset() {
	b.cells = b.cells[:0]
	b.seqNum = 0
}

func (b *Batch) setSeqNum(seqNum base.SeqNum) {
	b.seqNum = seqNum
	for i := range b.cells {
		b.cells[i].SeqNum = seqNum
	}
}
