// Copyright 2025 The Cellstore Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/cellstore/cellstore"
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
)

const (
	minLatency = 10 * time.Microsecond
	maxLatency = 10 * time.Second
)

func newHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(minLatency.Nanoseconds(), maxLatency.Nanoseconds(), 1)
}

// latencyRecorder accumulates per-op latencies from all workers: a current
// histogram swapped out on each progress tick, and a cumulative one for the
// final summary.
type latencyRecorder struct {
	mu struct {
		sync.Mutex
		cur *hdrhistogram.Histogram
		cum *hdrhistogram.Histogram
	}
}

func newLatencyRecorder() *latencyRecorder {
	r := &latencyRecorder{}
	r.mu.cur = newHistogram()
	r.mu.cum = newHistogram()
	return r
}

func (r *latencyRecorder) record(d time.Duration) {
	if d < minLatency {
		d = minLatency
	} else if d > maxLatency {
		d = maxLatency
	}
	r.mu.Lock()
	_ = r.mu.cur.RecordValue(d.Nanoseconds())
	_ = r.mu.cum.RecordValue(d.Nanoseconds())
	r.mu.Unlock()
}

func (r *latencyRecorder) tick() *hdrhistogram.Histogram {
	r.mu.Lock()
	h := r.mu.cur
	r.mu.cur = newHistogram()
	r.mu.Unlock()
	return h
}

func (r *latencyRecorder) cumulative() *hdrhistogram.Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mu.cum
}

func ms(nanos int64) float64 {
	return float64(nanos) / float64(time.Millisecond)
}

// runBench drives concurrency workers calling work in a loop for the
// configured duration, recording per-op latency. Worker errors other than
// deadline expiry abort the run.
func runBench(name string, work func(ctx context.Context, rng *rand.Rand) error) {
	rec := newLatencyRecorder()
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	start := time.Now()
	var g errgroup.Group
	for i := 0; i < concurrency; i++ {
		seed := uint64(i + 1)
		g.Go(func() error {
			rng := rand.New(rand.NewSource(seed))
			for ctx.Err() == nil {
				opStart := time.Now()
				if err := work(ctx, rng); err != nil {
					if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				}
				rec.record(time.Since(opStart))
			}
			return nil
		})
	}

	tickerDone := make(chan struct{})
	go func() {
		if !verbose {
			return
		}
		fmt.Println("_elapsed____ops/sec__p50(ms)__p95(ms)__p99(ms)")
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-tickerDone:
				return
			case <-ticker.C:
				h := rec.tick()
				fmt.Printf("%8.1fs %10.1f %8.2f %8.2f %8.2f\n",
					time.Since(start).Seconds(), float64(h.TotalCount()),
					ms(h.ValueAtQuantile(50)),
					ms(h.ValueAtQuantile(95)),
					ms(h.ValueAtQuantile(99)))
			}
		}
	}()

	err := g.Wait()
	close(tickerDone)
	if err != nil {
		log.Fatal(err)
	}

	elapsed := time.Since(start)
	h := rec.cumulative()
	fmt.Printf("\n%s: %d ops in %.1fs (%.1f ops/sec)\n",
		name, h.TotalCount(), elapsed.Seconds(), float64(h.TotalCount())/elapsed.Seconds())
	fmt.Printf("latency: p50=%.2fms p95=%.2fms p99=%.2fms max=%.2fms\n",
		ms(h.ValueAtQuantile(50)), ms(h.ValueAtQuantile(95)),
		ms(h.ValueAtQuantile(99)), ms(h.Max()))
}

func dumpMetrics(s *cellstore.Store) {
	m := s.Metrics()
	fmt.Printf("store: %d batches applied (%d cells); %d flushes (%d bytes); "+
		"%d segments (%d bytes); read point %s\n",
		m.ApplyCount, m.CellCount, m.FlushCount, m.FlushBytes,
		m.SegmentCount, m.SegmentBytes, m.ReadPoint)
}

func rowKey(i int) []byte {
	return []byte(fmt.Sprintf("row-%08d", i))
}
