// Copyright 2025 The Cellstore Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package base

import (
	"bytes"
	"cmp"
)

// Compare returns -1, 0, or +1 depending on whether a is 'less than',
// 'equal to' or 'greater than' b in the store's cell ordering.
type Compare func(a, b *Cell) int

// CompareBytes compares two row, family or qualifier byte sequences.
type CompareBytes func(a, b []byte) int

// Comparer defines the total order over cells used by every sorted
// structure in the store.
//
// The order is: row ascending, family ascending, qualifier ascending,
// timestamp descending, kind descending, sequence number descending.
// Timestamp is descending so that within one column the newest version is
// encountered first; kind is descending so that at equal timestamps
// tombstones are encountered before the puts they may suppress; sequence
// number is descending so that of two writes to the same logical coordinate
// the later write is encountered first.
//
// The tombstone tracker's O(1) state depends on this order: it assumes each
// scan visits qualifiers in non-decreasing order and, within a qualifier,
// timestamps in non-increasing order.
type Comparer struct {
	Compare      Compare
	CompareBytes CompareBytes

	// Name is the name of the comparer. A store's sorted structures are only
	// compatible across processes if built with the same comparer name.
	Name string
}

// Equal returns true if a and b are at the same position in the cell
// ordering.
func (c *Comparer) Equal(a, b *Cell) bool {
	return c.Compare(a, b) == 0
}

// SameColumn returns true if a and b address the same row, family and
// qualifier, ignoring timestamp, kind and sequence number.
func (c *Comparer) SameColumn(a, b *Cell) bool {
	return c.CompareBytes(a.Row, b.Row) == 0 &&
		c.CompareBytes(a.Family, b.Family) == 0 &&
		c.CompareBytes(a.Qualifier, b.Qualifier) == 0
}

// DefaultComparer orders rows, families and qualifiers bytewise.
var DefaultComparer = &Comparer{
	Compare:      defaultCompare,
	CompareBytes: bytes.Compare,
	Name:         "cellstore.BytewiseComparer",
}

func defaultCompare(a, b *Cell) int {
	if v := bytes.Compare(a.Row, b.Row); v != 0 {
		return v
	}
	if v := bytes.Compare(a.Family, b.Family); v != 0 {
		return v
	}
	if v := bytes.Compare(a.Qualifier, b.Qualifier); v != 0 {
		return v
	}
	// Descending: newer timestamps first.
	if v := cmp.Compare(b.Timestamp, a.Timestamp); v != 0 {
		return v
	}
	// Descending: broader tombstone scopes first.
	if v := cmp.Compare(b.Kind, a.Kind); v != 0 {
		return v
	}
	// Descending: later writes first.
	return cmp.Compare(b.SeqNum, a.SeqNum)
}
