// Copyright 2025 The Cellstore Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package main

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/cellstore/cellstore"
	"github.com/cellstore/cellstore/internal/base"
	"github.com/spf13/cobra"
	"golang.org/x/exp/rand"
)

var (
	scanRows        int
	scanVersions    int
	scanSpan        int
	scanMaxVersions int
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "run the scan benchmark",
	Args:  cobra.ExactArgs(0),
	Run:   runScan,
}

func runScan(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	s := cellstore.Open(&cellstore.Options{})

	// Preload: every row gets scanVersions versions of two columns, half
	// flushed into a segment and half left in the memstore so scans exercise
	// the merged path. Every tenth row gets a column tombstone so scans
	// exercise delete resolution too.
	rng := rand.New(rand.NewSource(1))
	value := make([]byte, 64)
	for v := 1; v <= scanVersions; v++ {
		for i := 0; i < scanRows; i++ {
			b := new(cellstore.Batch)
			rng.Read(value)
			b.Put(rowKey(i), []byte("f"), []byte("q1"), base.Timestamp(v), value)
			b.Put(rowKey(i), []byte("f"), []byte("q2"), base.Timestamp(v), value)
			if v == scanVersions && i%10 == 0 {
				b.DeleteColumn(rowKey(i), []byte("f"), []byte("q1"), base.Timestamp(v))
			}
			if err := s.Apply(ctx, b); err != nil {
				log.Fatal(err)
			}
		}
		if v == (scanVersions+1)/2 {
			if err := s.Flush(ctx); err != nil {
				log.Fatal(err)
			}
		}
	}

	var cellsScanned atomic.Int64
	runBench("scan", func(ctx context.Context, rng *rand.Rand) error {
		start := rng.Intn(scanRows)
		sc := s.NewScanner(cellstore.ScanOptions{
			StartRow:    rowKey(start),
			EndRow:      rowKey(start + scanSpan),
			MaxVersions: scanMaxVersions,
		})
		n := int64(0)
		for valid := sc.First(); valid; valid = sc.Next() {
			n++
		}
		err := sc.Error()
		if cerr := sc.Close(); err == nil {
			err = cerr
		}
		cellsScanned.Add(n)
		return err
	})

	fmt.Printf("scanned %d cells\n", cellsScanned.Load())
	dumpMetrics(s)
}
