// Copyright 2025 The Cellstore Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cellstore/cellstore"
	"github.com/cellstore/cellstore/internal/base"
	"github.com/spf13/cobra"
	"golang.org/x/exp/rand"
)

var (
	writeBatch      int
	writeValueSize  int
	writeRows       int
	writeFlushEvery time.Duration
)

var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "run the write benchmark",
	Args:  cobra.ExactArgs(0),
	Run:   runWrite,
}

func runWrite(cmd *cobra.Command, args []string) {
	s := cellstore.Open(&cellstore.Options{})

	// Background flusher, rotating the memstore at a fixed cadence the way
	// an embedding server would.
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(writeFlushEvery)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := s.Flush(context.Background()); err != nil {
					log.Fatal(err)
				}
			}
		}
	}()

	// Timestamps are a shared logical clock so rewrites of a row produce
	// fresh versions rather than colliding cells.
	var clock atomic.Uint64

	runBench("write", func(ctx context.Context, rng *rand.Rand) error {
		b := new(cellstore.Batch)
		ts := base.Timestamp(clock.Add(1))
		row := rowKey(rng.Intn(writeRows))
		value := make([]byte, writeValueSize)
		rng.Read(value)
		for j := 0; j < writeBatch; j++ {
			b.Put(row, []byte("f"), []byte(fmt.Sprintf("q%02d", j)), ts, value)
		}
		return s.Apply(ctx, b)
	})

	close(stop)
	wg.Wait()
	if err := s.Flush(context.Background()); err != nil {
		log.Fatal(err)
	}
	if err := s.Close(context.Background()); err != nil {
		log.Fatal(err)
	}
	dumpMetrics(s)
}
