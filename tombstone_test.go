// Copyright 2025 The Cellstore Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package cellstore

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/cellstore/cellstore/internal/base"
	"github.com/cockroachdb/datadriven"
	"github.com/stretchr/testify/require"
)

func TestDeleteTracker(t *testing.T) {
	datadriven.RunTest(t, "testdata/delete_tracker", func(t *testing.T, td *datadriven.TestData) string {
		switch td.Cmd {
		case "run":
			d := NewDeleteTracker(bytes.Compare)
			var buf strings.Builder
			for _, line := range strings.Split(td.Input, "\n") {
				fields := strings.Fields(line)
				if len(fields) == 0 {
					continue
				}
				switch fields[0] {
				case "add":
					// add <qualifier> <timestamp> <kind>
					ts, err := strconv.ParseUint(fields[2], 10, 64)
					require.NoError(t, err)
					kind, err := base.ParseCellKind(fields[3])
					require.NoError(t, err)
					d.Add([]byte(fields[1]), base.Timestamp(ts), kind)
				case "is-deleted":
					// is-deleted <qualifier> <timestamp>
					ts, err := strconv.ParseUint(fields[2], 10, 64)
					require.NoError(t, err)
					res, err := d.IsDeleted([]byte(fields[1]), base.Timestamp(ts))
					if err != nil {
						fmt.Fprintf(&buf, "is-deleted %s/%s: error: %s\n", fields[1], fields[2], err)
						continue
					}
					fmt.Fprintf(&buf, "is-deleted %s/%s: %s\n", fields[1], fields[2], res)
				case "is-empty":
					fmt.Fprintf(&buf, "is-empty: %t\n", d.IsEmpty())
				case "reset":
					d.Reset()
				default:
					return fmt.Sprintf("unknown op: %s", fields[0])
				}
			}
			return buf.String()
		default:
			return fmt.Sprintf("unknown command: %s", td.Cmd)
		}
	})
}

// A family tombstone covers every qualifier at or below its timestamp,
// regardless of column tombstones recorded before or after it.
func TestDeleteTrackerFamilyDominance(t *testing.T) {
	d := NewDeleteTracker(bytes.Compare)
	d.Add([]byte("a"), 150, base.CellKindDeleteColumn)
	d.Add(nil, 100, base.CellKindDeleteFamily)
	d.Add([]byte("b"), 80, base.CellKindDeleteVersion)

	for _, q := range []string{"a", "b", "zzz"} {
		for _, ts := range []base.Timestamp{100, 99, 1} {
			res, err := d.IsDeleted([]byte(q), ts)
			require.NoError(t, err)
			require.Equal(t, FamilyDeleted, res, "qualifier %s ts %d", q, ts)
		}
	}
}

// A column delete recorded first must not be overwritten by a later-seen,
// less specific version delete for the same qualifier.
func TestDeleteTrackerColumnSpecificity(t *testing.T) {
	d := NewDeleteTracker(bytes.Compare)
	d.Add([]byte("q"), 100, base.CellKindDeleteColumn)
	d.Add([]byte("q"), 90, base.CellKindDeleteVersion)

	res, err := d.IsDeleted([]byte("q"), 90)
	require.NoError(t, err)
	require.Equal(t, ColumnDeleted, res)
}

// A version tombstone covers exactly its timestamp; classifying a strictly
// older version exhausts it.
func TestDeleteTrackerVersionExactness(t *testing.T) {
	d := NewDeleteTracker(bytes.Compare)
	d.Add([]byte("q"), 50, base.CellKindDeleteVersion)

	res, err := d.IsDeleted([]byte("q"), 50)
	require.NoError(t, err)
	require.Equal(t, VersionDeleted, res)

	res, err = d.IsDeleted([]byte("q"), 49)
	require.NoError(t, err)
	require.Equal(t, NotDeleted, res)
	require.True(t, d.IsEmpty())
}

func TestDeleteTrackerReset(t *testing.T) {
	d := NewDeleteTracker(bytes.Compare)
	d.Add(nil, 200, base.CellKindDeleteFamily)
	d.Add([]byte("q"), 100, base.CellKindDeleteColumn)
	require.False(t, d.IsEmpty())

	d.Reset()
	require.True(t, d.IsEmpty())
	res, err := d.IsDeleted([]byte("q"), 1)
	require.NoError(t, err)
	require.Equal(t, NotDeleted, res)
}

// A tombstone at or below the family stamp is subsumed and must not touch
// the column watermark, whatever its kind.
func TestDeleteTrackerSubsumedTombstones(t *testing.T) {
	d := NewDeleteTracker(bytes.Compare)
	d.Add(nil, 100, base.CellKindDeleteFamily)
	d.Add([]byte("q"), 100, base.CellKindDeleteColumn)
	d.Add([]byte("q"), 50, base.CellKindDeleteVersion)

	// Above the family stamp nothing covers q.
	res, err := d.IsDeleted([]byte("q"), 150)
	require.NoError(t, err)
	require.Equal(t, NotDeleted, res)
}

// Qualifiers must be fed in non-decreasing order; an inversion is an
// internal-consistency error, never a silent NotDeleted.
func TestDeleteTrackerOrderingInversion(t *testing.T) {
	d := NewDeleteTracker(bytes.Compare)
	d.Add([]byte("m"), 100, base.CellKindDeleteColumn)

	_, err := d.IsDeleted([]byte("a"), 100)
	require.Error(t, err)
}

// Within a column, timestamps must not run backwards past a tracked version
// tombstone.
func TestDeleteTrackerTimestampInversion(t *testing.T) {
	d := NewDeleteTracker(bytes.Compare)
	d.Add([]byte("q"), 50, base.CellKindDeleteVersion)

	_, err := d.IsDeleted([]byte("q"), 60)
	require.Error(t, err)
}
