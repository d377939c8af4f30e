// Copyright 2025 The Cellstore Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package cellstore

import (
	"math"
	"sync/atomic"

	"github.com/cellstore/cellstore/internal/base"
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/rand"
)

// ErrCellExists indicates that an identical cell (same coordinate,
// timestamp, kind and sequence number) is already present in the memstore.
var ErrCellExists = errors.New("cellstore: cell already exists")

const (
	memStoreMaxHeight = 20
	memStorePValue    = 1 / math.E
)

var memStoreProbabilities [memStoreMaxHeight]uint32

func init() {
	// Precompute the skiplist probabilities so that only a single random
	// number needs to be generated per insertion.
	p := 1.0
	for i := 0; i < memStoreMaxHeight; i++ {
		memStoreProbabilities[i] = uint32(float64(math.MaxUint32) * p)
		p *= memStorePValue
	}
}

type memStoreNode struct {
	cell base.Cell
	// tower[i] is the next node at level i. A nil next pointer terminates
	// the level. len(tower) is the node's height.
	tower []atomic.Pointer[memStoreNode]
}

func (n *memStoreNode) next(level int) *memStoreNode {
	return n.tower[level].Load()
}

// A memStore implements the mutable in-memory layer of the store: an
// append-only skiplist of cells in the store's cell ordering. Cells are
// added, never removed; deletion is represented by tombstone cells and
// resolved by the scan path.
//
// add may be called from concurrent writers, and iterators may be created
// and used concurrently with adds: insertion splices nodes with CAS on the
// forward links, so a reader traversing level zero always observes a
// consistent (if slightly stale) chain. Visibility of not-yet-published
// writes is handled above this layer, by sequence number filtering against
// the write sequencer's read point.
type memStore struct {
	cmp    *base.Comparer
	head   *memStoreNode
	height atomic.Int32

	size  atomic.Int64
	count atomic.Int64
}

func newMemStore(cmp *base.Comparer) *memStore {
	m := &memStore{
		cmp: cmp,
		head: &memStoreNode{
			tower: make([]atomic.Pointer[memStoreNode], memStoreMaxHeight),
		},
	}
	m.height.Store(1)
	return m
}

func memStoreRandomHeight() int {
	rnd := rand.Uint32()
	h := 1
	for h < memStoreMaxHeight && rnd <= memStoreProbabilities[h] {
		h++
	}
	return h
}

// findSpliceForLevel returns the nodes bracketing cell at the given level,
// walking right from start. found is true if an exactly equal cell is
// already linked at this level.
func (m *memStore) findSpliceForLevel(
	cell *base.Cell, level int, start *memStoreNode,
) (prev, next *memStoreNode, found bool) {
	prev = start
	for {
		next = prev.next(level)
		if next == nil {
			break
		}
		v := m.cmp.Compare(&next.cell, cell)
		if v >= 0 {
			found = v == 0
			break
		}
		prev = next
	}
	return prev, next, found
}

// add inserts the cell. The cell's sequence number must already be stamped.
// Inserting a byte-for-byte duplicate of an existing cell returns
// ErrCellExists.
func (m *memStore) add(cell base.Cell) error {
	height := memStoreRandomHeight()
	for {
		h := int(m.height.Load())
		if height <= h {
			break
		}
		if m.height.CompareAndSwap(int32(h), int32(height)) {
			break
		}
	}

	nd := &memStoreNode{
		cell:  cell,
		tower: make([]atomic.Pointer[memStoreNode], height),
	}

	// Compute the splice points from the top down, then link from the base
	// level up. A node linked at the base level is visible to iterators even
	// while its upper levels are still being spliced.
	listHeight := int(m.height.Load())
	var prev [memStoreMaxHeight + 1]*memStoreNode
	var next [memStoreMaxHeight + 1]*memStoreNode
	prev[listHeight] = m.head
	for i := listHeight - 1; i >= 0; i-- {
		start := prev[i+1]
		if start == nil {
			start = m.head
		}
		var found bool
		prev[i], next[i], found = m.findSpliceForLevel(&cell, i, start)
		if found {
			return ErrCellExists
		}
	}

	for i := 0; i < height; i++ {
		for {
			p := prev[i]
			if p == nil {
				// The new node extended the height of the list; splice
				// directly under the head.
				p = m.head
				next[i] = m.head.next(i)
			}
			nd.tower[i].Store(next[i])
			if p.tower[i].CompareAndSwap(next[i], nd) {
				break
			}
			// Lost the race at this level. Recompute the splice, starting
			// from the last known predecessor.
			var found bool
			prev[i], next[i], found = m.findSpliceForLevel(&cell, i, p)
			if found {
				if i != 0 {
					panic(errors.AssertionFailedf(
						"cellstore: duplicate cell discovered above the base level"))
				}
				return ErrCellExists
			}
		}
	}

	m.size.Add(int64(cell.Size()))
	m.count.Add(1)
	return nil
}

// approximateSize returns the memstore's in-memory footprint in bytes.
func (m *memStore) approximateSize() int64 {
	return m.size.Load()
}

// approximateCount returns the number of cells in the memstore.
func (m *memStore) approximateCount() int64 {
	return m.count.Load()
}

func (m *memStore) empty() bool {
	return m.count.Load() == 0
}

// newIter returns a forward iterator positioned before the first cell.
func (m *memStore) newIter() *memStoreIter {
	return &memStoreIter{m: m}
}

// memStoreIter is a forward-only iterator over a memstore. It observes
// cells added before each positioning call; a scan's snapshot semantics
// come from sequence number filtering above, not from the iterator.
type memStoreIter struct {
	m  *memStore
	nd *memStoreNode
}

// First positions the iterator at the first cell and returns it, or nil if
// the memstore is empty.
func (it *memStoreIter) First() *base.Cell {
	it.nd = it.m.head.next(0)
	return it.cell()
}

// Next advances to the next cell and returns it, or nil when exhausted.
func (it *memStoreIter) Next() *base.Cell {
	if it.nd != nil {
		it.nd = it.nd.next(0)
	}
	return it.cell()
}

func (it *memStoreIter) cell() *base.Cell {
	if it.nd == nil {
		return nil
	}
	return &it.nd.cell
}

// Error implements cellIterator; memstore iteration cannot fail.
func (it *memStoreIter) Error() error {
	return nil
}

// Close implements cellIterator.
func (it *memStoreIter) Close() error {
	it.nd = nil
	return nil
}
