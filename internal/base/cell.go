// Copyright 2025 The Cellstore Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package base

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

// SeqNum is a write sequence number defining precedence among cells that
// share an identical logical coordinate (row, family, qualifier, timestamp,
// kind). As mutations are applied to a store they're assigned increasing
// sequence numbers. Readers use sequence numbers to observe a consistent
// store state, ignoring cells with sequence numbers larger than the reader's
// captured read point.
type SeqNum uint64

const (
	// SeqNumZero is the zero sequence number. No cell carries it; a read
	// point of zero means no write is visible yet.
	SeqNumZero SeqNum = 0
	// SeqNumMax is the largest valid sequence number. A reader using it
	// observes every applied cell.
	SeqNumMax SeqNum = 1<<64 - 1
)

func (s SeqNum) String() string {
	if s == SeqNumMax {
		return "inf"
	}
	return strconv.FormatUint(uint64(s), 10)
}

// SafeFormat implements redact.SafeFormatter.
func (s SeqNum) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Print(redact.SafeString(s.String()))
}

// Timestamp is the version timestamp of a cell, assigned by the client or
// the server at mutation time. Timestamps order versions of a cell; within
// one column newer timestamps sort first.
type Timestamp uint64

const (
	// TimestampMin sorts after every other timestamp within a column.
	TimestampMin Timestamp = 0
	// TimestampMax sorts before every other timestamp within a column. It is
	// used when constructing search boundaries.
	TimestampMax Timestamp = 1<<64 - 1
)

func (t Timestamp) String() string {
	if t == TimestampMax {
		return "max"
	}
	return strconv.FormatUint(uint64(t), 10)
}

// SafeFormat implements redact.SafeFormatter.
func (t Timestamp) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Print(redact.SafeString(t.String()))
}

// CellKind enumerates the mutation type of a cell: a put, or one of the
// three tombstone scopes.
type CellKind uint8

// These codes are part of the cell encoding, and should not be changed.
// Within a column the comparator sorts higher codes first, so at equal
// timestamps a family tombstone is seen before a column tombstone, a column
// tombstone before a version tombstone, and every tombstone before a put.
const (
	CellKindMinimum CellKind = 0
	CellKindPut     CellKind = 4
	// CellKindDeleteVersion deletes exactly one timestamped version of one
	// qualifier.
	CellKindDeleteVersion CellKind = 8
	// CellKindDeleteColumn deletes all versions of one qualifier at or below
	// its timestamp.
	CellKindDeleteColumn CellKind = 12
	// CellKindDeleteFamily deletes every column in the family at or below
	// its timestamp.
	CellKindDeleteFamily CellKind = 14

	// CellKindMaximum is used when constructing search boundaries; you look
	// from the maximum on down. It never appears in a store.
	CellKindMaximum CellKind = 255
)

var cellKindNames = map[CellKind]string{
	CellKindMinimum:       "MIN",
	CellKindPut:           "PUT",
	CellKindDeleteVersion: "DEL",
	CellKindDeleteColumn:  "DELCOL",
	CellKindDeleteFamily:  "DELFAM",
	CellKindMaximum:       "MAX",
}

func (k CellKind) String() string {
	if s, ok := cellKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("UNKNOWN:%d", uint8(k))
}

// SafeFormat implements redact.SafeFormatter.
func (k CellKind) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Print(redact.SafeString(k.String()))
}

// IsDelete returns true if the kind is any of the three tombstone scopes.
func (k CellKind) IsDelete() bool {
	return k >= CellKindDeleteVersion && k <= CellKindDeleteFamily
}

// ParseCellKind parses the string representation of a cell kind. It is used
// by the datadriven tests.
func ParseCellKind(s string) (CellKind, error) {
	for k, n := range cellKindNames {
		if n == s {
			return k, nil
		}
	}
	return CellKindMinimum, errors.Errorf("unknown cell kind %q", s)
}

// Cell is a single versioned unit of data: one value for one qualifier of
// one column family of one row, at one timestamp, tagged with the mutation
// type and the sequence number of the write that produced it.
//
// A Cell does not own its byte slices; callers must not mutate Row, Family,
// Qualifier or Value after handing the cell to a store.
type Cell struct {
	Row       []byte
	Family    []byte
	Qualifier []byte
	Timestamp Timestamp
	Kind      CellKind
	SeqNum    SeqNum
	Value     []byte
}

// MakeCell constructs a cell with a zero sequence number. The sequence
// number is stamped later, when the cell's batch is applied.
func MakeCell(row, family, qualifier []byte, ts Timestamp, kind CellKind, value []byte) Cell {
	return Cell{
		Row:       row,
		Family:    family,
		Qualifier: qualifier,
		Timestamp: ts,
		Kind:      kind,
		Value:     value,
	}
}

// Size returns the approximate in-memory footprint of the cell in bytes.
func (c *Cell) Size() int {
	return len(c.Row) + len(c.Family) + len(c.Qualifier) + len(c.Value) + cellOverhead
}

// Fixed per-cell overhead: timestamp, kind, seqnum, slice headers.
const cellOverhead = 24 + 4*24

func (c Cell) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s/%s:%s/%s/%s#%s", FormatBytes(c.Row), FormatBytes(c.Family),
		FormatBytes(c.Qualifier), c.Timestamp, c.Kind, c.SeqNum)
	return b.String()
}

// SafeFormat implements redact.SafeFormatter. Row, family, qualifier and
// value contents are user data and are redacted.
func (c Cell) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("%s/%s:%s/%s/%s#%s", c.Row, c.Family, c.Qualifier,
		c.Timestamp, c.Kind, c.SeqNum)
}

// FormatBytes formats a byte slice for human consumption: printable ASCII
// passes through, everything else is escaped as hexadecimal.
func FormatBytes(b []byte) string {
	isPrint := true
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			isPrint = false
			break
		}
	}
	if isPrint {
		return string(b)
	}
	var s strings.Builder
	for _, c := range b {
		if c >= 0x20 && c <= 0x7e {
			s.WriteByte(c)
		} else {
			fmt.Fprintf(&s, `\x%02x`, c)
		}
	}
	return s.String()
}
