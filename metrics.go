// Copyright 2025 The Cellstore Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package cellstore

import (
	"sync/atomic"

	"github.com/cellstore/cellstore/internal/base"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds a point-in-time snapshot of store statistics.
type Metrics struct {
	// ApplyCount is the number of batches applied.
	ApplyCount int64
	// CellCount is the number of cells applied.
	CellCount int64
	// FlushCount is the number of memstores flushed into segments.
	FlushCount int64
	// FlushBytes is the total encoded size of flushed segments.
	FlushBytes int64
	// ReadPoint is the sequencer's current safe read point.
	ReadPoint base.SeqNum
	// PendingWrites is the number of in-flight write tickets.
	PendingWrites int
	// MemStoreSize is the approximate byte size of the mutable memstore.
	MemStoreSize int64
	// MemStoreCells is the number of cells in the mutable memstore.
	MemStoreCells int64
	// SegmentCount is the number of installed immutable segments.
	SegmentCount int
	// SegmentBytes is the total encoded size of installed segments.
	SegmentBytes int64
}

// Metrics returns a snapshot of the store's statistics.
func (s *Store) Metrics() Metrics {
	m := Metrics{
		ApplyCount:    atomic.LoadInt64(&s.applyCount),
		CellCount:     atomic.LoadInt64(&s.cellCount),
		FlushCount:    atomic.LoadInt64(&s.flushCount),
		FlushBytes:    atomic.LoadInt64(&s.flushBytes),
		ReadPoint:     s.seq.ReadPoint(),
		PendingWrites: s.seq.PendingWrites(),
	}
	s.mu.Lock()
	m.MemStoreSize = s.mu.mem.approximateSize()
	m.MemStoreCells = s.mu.mem.approximateCount()
	m.SegmentCount = len(s.mu.segments)
	for _, r := range s.mu.segments {
		m.SegmentBytes += r.Size()
	}
	s.mu.Unlock()
	return m
}

// collector adapts a Store to prometheus.Collector so embedders can
// register the store into their metrics registry.
type collector struct {
	store *Store

	applyCount    *prometheus.Desc
	cellCount     *prometheus.Desc
	flushCount    *prometheus.Desc
	flushBytes    *prometheus.Desc
	readPoint     *prometheus.Desc
	pendingWrites *prometheus.Desc
	memStoreSize  *prometheus.Desc
	segmentCount  *prometheus.Desc
	segmentBytes  *prometheus.Desc
}

// NewCollector returns a prometheus.Collector exporting the store's
// metrics.
func NewCollector(s *Store) prometheus.Collector {
	return &collector{
		store: s,
		applyCount: prometheus.NewDesc(
			"cellstore_apply_total", "Number of batches applied.", nil, nil),
		cellCount: prometheus.NewDesc(
			"cellstore_apply_cells_total", "Number of cells applied.", nil, nil),
		flushCount: prometheus.NewDesc(
			"cellstore_flush_total", "Number of memstore flushes.", nil, nil),
		flushBytes: prometheus.NewDesc(
			"cellstore_flush_bytes_total", "Encoded bytes flushed into segments.", nil, nil),
		readPoint: prometheus.NewDesc(
			"cellstore_read_point", "Current safe read point.", nil, nil),
		pendingWrites: prometheus.NewDesc(
			"cellstore_pending_writes", "In-flight write tickets.", nil, nil),
		memStoreSize: prometheus.NewDesc(
			"cellstore_memstore_bytes", "Approximate memstore size.", nil, nil),
		segmentCount: prometheus.NewDesc(
			"cellstore_segments", "Installed immutable segments.", nil, nil),
		segmentBytes: prometheus.NewDesc(
			"cellstore_segment_bytes", "Total encoded size of installed segments.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.applyCount
	ch <- c.cellCount
	ch <- c.flushCount
	ch <- c.flushBytes
	ch <- c.readPoint
	ch <- c.pendingWrites
	ch <- c.memStoreSize
	ch <- c.segmentCount
	ch <- c.segmentBytes
}

// Collect implements prometheus.Collector.
func (c *collector) Collect(ch chan<- prometheus.Metric) {
	m := c.store.Metrics()
	ch <- prometheus.MustNewConstMetric(c.applyCount, prometheus.CounterValue, float64(m.ApplyCount))
	ch <- prometheus.MustNewConstMetric(c.cellCount, prometheus.CounterValue, float64(m.CellCount))
	ch <- prometheus.MustNewConstMetric(c.flushCount, prometheus.CounterValue, float64(m.FlushCount))
	ch <- prometheus.MustNewConstMetric(c.flushBytes, prometheus.CounterValue, float64(m.FlushBytes))
	ch <- prometheus.MustNewConstMetric(c.readPoint, prometheus.GaugeValue, float64(m.ReadPoint))
	ch <- prometheus.MustNewConstMetric(c.pendingWrites, prometheus.GaugeValue, float64(m.PendingWrites))
	ch <- prometheus.MustNewConstMetric(c.memStoreSize, prometheus.GaugeValue, float64(m.MemStoreSize))
	ch <- prometheus.MustNewConstMetric(c.segmentCount, prometheus.GaugeValue, float64(m.SegmentCount))
	ch <- prometheus.MustNewConstMetric(c.segmentBytes, prometheus.GaugeValue, float64(m.SegmentBytes))
}
