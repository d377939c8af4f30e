// Copyright 2025 The Cellstore Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package cellstore

import (
	"fmt"
	"testing"

	"github.com/cellstore/cellstore/internal/base"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func testCell(row, family, qualifier string, ts base.Timestamp, kind base.CellKind, seq base.SeqNum) base.Cell {
	c := base.MakeCell([]byte(row), []byte(family), []byte(qualifier), ts, kind, []byte("v"))
	c.SeqNum = seq
	return c
}

func TestMemStoreOrderedIteration(t *testing.T) {
	m := newMemStore(base.DefaultComparer)

	// Insert out of order; iterate in order.
	cells := []base.Cell{
		testCell("b", "f", "q", 100, base.CellKindPut, 3),
		testCell("a", "f", "q", 100, base.CellKindPut, 1),
		testCell("a", "f", "q", 200, base.CellKindPut, 2),
		testCell("a", "f", "q", 100, base.CellKindDeleteVersion, 4),
		testCell("c", "f", "", 50, base.CellKindDeleteFamily, 5),
	}
	for _, c := range cells {
		require.NoError(t, m.add(c))
	}
	require.EqualValues(t, len(cells), m.approximateCount())

	it := m.newIter()
	var got []string
	for c := it.First(); c != nil; c = it.Next() {
		got = append(got, c.String())
	}
	require.Equal(t, []string{
		"a/f:q/200/PUT#2",
		"a/f:q/100/DEL#4",
		"a/f:q/100/PUT#1",
		"b/f:q/100/PUT#3",
		"c/f:/50/DELFAM#5",
	}, got)
}

func TestMemStoreDuplicate(t *testing.T) {
	m := newMemStore(base.DefaultComparer)
	c := testCell("a", "f", "q", 100, base.CellKindPut, 1)
	require.NoError(t, m.add(c))
	require.ErrorIs(t, m.add(c), ErrCellExists)

	// Same coordinate at a different seqnum is a distinct cell.
	c.SeqNum = 2
	require.NoError(t, m.add(c))
}

func TestMemStoreEmpty(t *testing.T) {
	m := newMemStore(base.DefaultComparer)
	require.True(t, m.empty())
	it := m.newIter()
	require.Nil(t, it.First())

	require.NoError(t, m.add(testCell("a", "f", "q", 1, base.CellKindPut, 1)))
	require.False(t, m.empty())
}

func TestMemStoreConcurrentAdds(t *testing.T) {
	const workers = 8
	const perWorker = 500

	m := newMemStore(base.DefaultComparer)
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			for i := 0; i < perWorker; i++ {
				row := fmt.Sprintf("row-%03d", i)
				c := testCell(row, "f", "q", 100, base.CellKindPut,
					base.SeqNum(w*perWorker+i+1))
				if err := m.add(c); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.EqualValues(t, workers*perWorker, m.approximateCount())

	// The merged result must be fully ordered.
	it := m.newIter()
	var prev *base.Cell
	n := 0
	for c := it.First(); c != nil; c = it.Next() {
		if prev != nil {
			require.Negative(t, base.DefaultComparer.Compare(prev, c))
		}
		cc := *c
		prev = &cc
		n++
	}
	require.Equal(t, workers*perWorker, n)
}
