// Copyright 2025 The Cellstore Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package segment

import (
	"fmt"
	"testing"

	"github.com/cellstore/cellstore/internal/base"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func makeCells(n int) []base.Cell {
	cells := make([]base.Cell, 0, n)
	for i := 0; i < n; i++ {
		kind := base.CellKindPut
		if i%7 == 0 {
			kind = base.CellKindDeleteColumn
		}
		c := base.MakeCell(
			[]byte(fmt.Sprintf("row-%06d", i)),
			[]byte("f"),
			[]byte("qual"),
			base.Timestamp(1000+i),
			kind,
			[]byte(fmt.Sprintf("value-%d", i)),
		)
		c.SeqNum = base.SeqNum(i + 1)
		cells = append(cells, c)
	}
	return cells
}

func TestSegmentRoundTrip(t *testing.T) {
	// A small block size forces multiple blocks.
	for _, blockSize := range []int{64, 1 << 10, DefaultBlockSize} {
		t.Run(fmt.Sprintf("blockSize=%d", blockSize), func(t *testing.T) {
			cells := makeCells(500)
			w := NewWriter(base.DefaultComparer, blockSize)
			for i := range cells {
				w.Add(&cells[i])
			}
			require.Equal(t, len(cells), w.Count())
			data, err := w.Finish()
			require.NoError(t, err)

			r, err := NewReader(data)
			require.NoError(t, err)
			require.EqualValues(t, len(data), r.Size())

			it := r.NewIter()
			i := 0
			for c := it.First(); c != nil; c = it.Next() {
				require.Less(t, i, len(cells))
				want := &cells[i]
				require.Zero(t, base.DefaultComparer.Compare(want, c), "cell %d", i)
				require.Equal(t, want.Value, c.Value)
				require.Equal(t, want.Kind, c.Kind)
				i++
			}
			require.NoError(t, it.Error())
			require.Equal(t, len(cells), i)
			require.NoError(t, it.Close())
		})
	}
}

func TestSegmentEmpty(t *testing.T) {
	w := NewWriter(base.DefaultComparer, 0)
	data, err := w.Finish()
	require.NoError(t, err)

	r, err := NewReader(data)
	require.NoError(t, err)
	it := r.NewIter()
	require.Nil(t, it.First())
	require.NoError(t, it.Error())
}

func TestSegmentOutOfOrderAdd(t *testing.T) {
	cells := makeCells(2)
	w := NewWriter(base.DefaultComparer, 0)
	w.Add(&cells[1])
	w.Add(&cells[0])
	_, err := w.Finish()
	require.Error(t, err)
}

func TestSegmentCorruption(t *testing.T) {
	cells := makeCells(100)
	w := NewWriter(base.DefaultComparer, 256)
	for i := range cells {
		w.Add(&cells[i])
	}
	data, err := w.Finish()
	require.NoError(t, err)

	t.Run("truncated", func(t *testing.T) {
		_, err := NewReader(data[:8])
		require.True(t, errors.Is(err, ErrCorruption))
	})

	t.Run("bad magic", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[len(bad)-1] ^= 0xff
		_, err := NewReader(bad)
		require.True(t, errors.Is(err, ErrCorruption))
	})

	t.Run("flipped block byte", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[0] ^= 0xff
		r, err := NewReader(bad)
		require.NoError(t, err)
		it := r.NewIter()
		// The checksum catches the damage before any cell is decoded from
		// the first block.
		require.Nil(t, it.First())
		require.True(t, errors.Is(it.Error(), ErrCorruption))
	})
}
