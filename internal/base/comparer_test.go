// Copyright 2025 The Cellstore Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package base

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mk(row, family, qualifier string, ts Timestamp, kind CellKind, seq SeqNum) Cell {
	c := MakeCell([]byte(row), []byte(family), []byte(qualifier), ts, kind, nil)
	c.SeqNum = seq
	return c
}

func TestDefaultComparerOrder(t *testing.T) {
	// Cells listed in expected sort order. Every adjacent pair must compare
	// ascending, and every cell equal to itself.
	ordered := []Cell{
		mk("a", "f", "q", 100, CellKindPut, 5),
		mk("a", "f", "q", 50, CellKindPut, 5),
		mk("b", "e", "q", 100, CellKindPut, 5),
		mk("b", "f", "", 200, CellKindDeleteFamily, 5),
		mk("b", "f", "", 200, CellKindPut, 5),
		mk("b", "f", "q", 100, CellKindDeleteColumn, 5),
		mk("b", "f", "q", 100, CellKindDeleteVersion, 5),
		mk("b", "f", "q", 100, CellKindPut, 9),
		mk("b", "f", "q", 100, CellKindPut, 5),
		mk("b", "f", "q", 99, CellKindPut, 5),
		mk("b", "f", "qq", 500, CellKindPut, 5),
		mk("b", "g", "a", 500, CellKindPut, 5),
	}

	cmp := DefaultComparer
	for i := range ordered {
		require.Zero(t, cmp.Compare(&ordered[i], &ordered[i]))
		for j := i + 1; j < len(ordered); j++ {
			require.Negative(t, cmp.Compare(&ordered[i], &ordered[j]),
				"expected %s < %s", ordered[i], ordered[j])
			require.Positive(t, cmp.Compare(&ordered[j], &ordered[i]),
				"expected %s > %s", ordered[j], ordered[i])
		}
	}
}

// Tombstones sort before puts at the same timestamp, and broader scopes
// before narrower ones, so a scan records a tombstone before classifying
// the cells it may suppress.
func TestDefaultComparerTombstonesFirst(t *testing.T) {
	fam := mk("r", "f", "q", 100, CellKindDeleteFamily, 1)
	col := mk("r", "f", "q", 100, CellKindDeleteColumn, 1)
	ver := mk("r", "f", "q", 100, CellKindDeleteVersion, 1)
	put := mk("r", "f", "q", 100, CellKindPut, 1)

	cmp := DefaultComparer
	require.Negative(t, cmp.Compare(&fam, &col))
	require.Negative(t, cmp.Compare(&col, &ver))
	require.Negative(t, cmp.Compare(&ver, &put))
}

func TestComparerSameColumn(t *testing.T) {
	a := mk("r", "f", "q", 100, CellKindPut, 1)
	b := mk("r", "f", "q", 7, CellKindDeleteVersion, 9)
	c := mk("r", "f", "q2", 100, CellKindPut, 1)

	require.True(t, DefaultComparer.SameColumn(&a, &b))
	require.False(t, DefaultComparer.SameColumn(&a, &c))
}
