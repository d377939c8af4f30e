// Copyright 2025 The Cellstore Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package base

import (
	"testing"

	"github.com/cockroachdb/redact"
	"github.com/stretchr/testify/require"
)

func TestCellKindPredicates(t *testing.T) {
	require.False(t, CellKindPut.IsDelete())
	require.True(t, CellKindDeleteVersion.IsDelete())
	require.True(t, CellKindDeleteColumn.IsDelete())
	require.True(t, CellKindDeleteFamily.IsDelete())
	require.False(t, CellKindMinimum.IsDelete())
	require.False(t, CellKindMaximum.IsDelete())
}

func TestParseCellKind(t *testing.T) {
	for _, k := range []CellKind{
		CellKindPut, CellKindDeleteVersion, CellKindDeleteColumn, CellKindDeleteFamily,
	} {
		parsed, err := ParseCellKind(k.String())
		require.NoError(t, err)
		require.Equal(t, k, parsed)
	}
	_, err := ParseCellKind("BOGUS")
	require.Error(t, err)
}

func TestCellString(t *testing.T) {
	c := MakeCell([]byte("row1"), []byte("f"), []byte("q"), 100, CellKindPut, []byte("v"))
	c.SeqNum = 7
	require.Equal(t, "row1/f:q/100/PUT#7", c.String())

	d := MakeCell([]byte("r"), []byte("f"), nil, TimestampMax, CellKindDeleteFamily, nil)
	require.Equal(t, "r/f:/max/DELFAM#0", d.String())
}

// User key material must be redacted from formatted output; the structural
// parts (timestamp, kind, seqnum) are safe.
func TestCellRedaction(t *testing.T) {
	c := MakeCell([]byte("secret-row"), []byte("f"), []byte("q"), 100, CellKindPut, nil)
	s := redact.Sprint(c).Redact()
	require.NotContains(t, string(s), "secret-row")
	require.Contains(t, string(s), "PUT")
}

func TestFormatBytes(t *testing.T) {
	require.Equal(t, "abc", FormatBytes([]byte("abc")))
	require.Equal(t, `a\x00b`, FormatBytes([]byte{'a', 0, 'b'}))
}
