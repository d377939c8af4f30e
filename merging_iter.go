// Copyright 2025 The Cellstore Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package cellstore

import (
	"github.com/cellstore/cellstore/internal/base"
	"github.com/cockroachdb/errors"
)

// cellIterator is the forward iteration contract shared by the memstore,
// flushed segments, and the merge across them. First/Next return nil at
// exhaustion or on error; Error distinguishes the two.
type cellIterator interface {
	First() *base.Cell
	Next() *base.Cell
	Error() error
	Close() error
}

// mergingIterLevel tracks one source iterator and the cell it is currently
// positioned at.
type mergingIterLevel struct {
	iter cellIterator
	cell *base.Cell
}

// mergingIter merges cells from multiple sources (the mutable memstore plus
// any number of flushed segments) into a single stream in the store's cell
// ordering. It is forward-only: the scan path never reverses.
//
// The heap is ordered by the full cell comparator, so two sources holding
// writes to the same logical coordinate are emitted newest-seqnum first and
// the scan path's first-visible-wins logic behaves identically before and
// after a flush.
type mergingIter struct {
	cmp   base.Compare
	heap  []*mergingIterLevel
	freed []*mergingIterLevel
	errs  []error
}

func newMergingIter(cmp base.Compare, iters ...cellIterator) *mergingIter {
	m := &mergingIter{cmp: cmp}
	for _, it := range iters {
		m.freed = append(m.freed, &mergingIterLevel{iter: it})
	}
	return m
}

// First positions every source at its first cell and returns the smallest.
func (m *mergingIter) First() *base.Cell {
	levels := append(m.heap, m.freed...)
	m.heap = m.heap[:0]
	m.freed = m.freed[:0]
	for _, l := range levels {
		if l.cell = l.iter.First(); l.cell != nil {
			m.heap = append(m.heap, l)
		} else if err := l.iter.Error(); err != nil {
			m.errs = append(m.errs, err)
			m.freed = append(m.freed, l)
		} else {
			m.freed = append(m.freed, l)
		}
	}
	m.initHeap()
	return m.top()
}

// Next advances the source holding the current smallest cell and returns
// the new smallest.
func (m *mergingIter) Next() *base.Cell {
	if len(m.heap) == 0 {
		return nil
	}
	l := m.heap[0]
	if l.cell = l.iter.Next(); l.cell != nil {
		m.fixTop()
	} else {
		if err := l.iter.Error(); err != nil {
			m.errs = append(m.errs, err)
		}
		m.pop()
	}
	return m.top()
}

func (m *mergingIter) top() *base.Cell {
	if len(m.heap) == 0 {
		return nil
	}
	return m.heap[0].cell
}

// Error returns the accumulated source errors, if any.
func (m *mergingIter) Error() error {
	return errors.Join(m.errs...)
}

// Close closes every source iterator.
func (m *mergingIter) Close() error {
	err := m.Error()
	for _, l := range m.heap {
		err = errors.Join(err, l.iter.Close())
	}
	for _, l := range m.freed {
		err = errors.Join(err, l.iter.Close())
	}
	m.heap = nil
	m.freed = nil
	return err
}

func (m *mergingIter) less(i, j int) bool {
	return m.cmp(m.heap[i].cell, m.heap[j].cell) < 0
}

func (m *mergingIter) swap(i, j int) {
	m.heap[i], m.heap[j] = m.heap[j], m.heap[i]
}

func (m *mergingIter) initHeap() {
	for i := len(m.heap)/2 - 1; i >= 0; i-- {
		m.down(i, len(m.heap))
	}
}

// fixTop restores the heap property after the top source has advanced.
func (m *mergingIter) fixTop() {
	m.down(0, len(m.heap))
}

// pop removes the top source (exhausted or failed).
func (m *mergingIter) pop() {
	n := len(m.heap) - 1
	m.swap(0, n)
	m.freed = append(m.freed, m.heap[n])
	m.heap = m.heap[:n]
	m.down(0, n)
}

func (m *mergingIter) down(i, n int) {
	for {
		left := 2*i + 1
		if left >= n {
			break
		}
		smallest := left
		if right := left + 1; right < n && m.less(right, left) {
			smallest = right
		}
		if !m.less(smallest, i) {
			break
		}
		m.swap(i, smallest)
		i = smallest
	}
}
