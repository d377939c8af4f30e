// Copyright 2025 The Cellstore Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

// Package cellstore implements the region-level storage engine for a
// multi-versioned, sorted cell store: rows partitioned into column
// families, each cell carrying a timestamp and a mutation type.
//
// The engine's consistency core is the WriteSequencer, which lets many
// concurrent writers mutate the in-memory store while readers observe a
// stable point-in-time view, and the DeleteTracker, which resolves the
// three tombstone scopes (family, column, version) while a row is scanned
// in sorted order. The Store ties them to a skiplist memstore, flushed
// immutable segments, and the merged scan path.
package cellstore

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cellstore/cellstore/internal/base"
	"github.com/cellstore/cellstore/internal/segment"
	"github.com/cockroachdb/crlib/crtime"
	"github.com/cockroachdb/errors"
)

// ErrNotFound is returned by Get when no visible cell matches.
var ErrNotFound = base.ErrNotFound

// Store is a single region-level cell store: one mutable memstore, zero or
// more memstores queued for flush, and zero or more flushed immutable
// segments, all scanned as one merged, tombstone-resolved stream.
type Store struct {
	opts *Options
	seq  *WriteSequencer

	mu struct {
		sync.Mutex
		// mem is the mutable memstore new writes apply to.
		mem *memStore
		// flushing holds memstores rotated out by Flush but not yet encoded
		// into a segment. They remain visible to scans until their segment
		// is installed.
		flushing []*memStore
		// segments are the flushed immutable stores, oldest first.
		segments []*segment.Reader
	}

	// flushMu serializes flushes.
	flushMu sync.Mutex

	applyCount int64
	cellCount  int64
	flushCount int64
	flushBytes int64
}

// Open opens a store with the given options.
func Open(opts *Options) *Store {
	opts = opts.EnsureDefaults()
	s := &Store{
		opts: opts,
		seq:  NewWriteSequencer(),
	}
	s.mu.mem = newMemStore(opts.Comparer)
	return s
}

// Sequencer returns the store's write sequencer. It is exposed so that
// surrounding recovery code can seed it (Init) and shutdown code can drain
// it (WaitForPriorWrites).
func (s *Store) Sequencer() *WriteSequencer {
	return s.seq
}

// Apply applies the batch to the store. Upon successful return the batch's
// mutations are visible to any scanner opened afterwards; a batch is never
// partially visible.
func (s *Store) Apply(ctx context.Context, b *Batch) error {
	if b.Empty() {
		return nil
	}

	// The ticket must be issued and the target memstore captured under the
	// same critical section: it guarantees that every write landing in a
	// given memstore holds a ticket issued before any flush rotation of
	// that memstore, so WaitForPriorWrites covers it.
	s.mu.Lock()
	t := s.seq.Begin()
	mem := s.mu.mem
	s.mu.Unlock()

	b.setSeqNum(t.SeqNum())
	var applyErr error
	for i := range b.cells {
		if err := mem.add(b.cells[i]); err != nil {
			applyErr = errors.Wrapf(err, "cellstore: applying batch at %s", t.SeqNum())
			break
		}
	}
	if applyErr != nil {
		// The ticket must still be retired or the read point (and every
		// flush) would be wedged behind it forever. The cells already
		// inserted become visible; the caller sees the error and the batch
		// atomicity contract is void for this batch.
		s.seq.Complete(t)
		return applyErr
	}

	if err := s.seq.CompleteAndWait(ctx, t); err != nil {
		return err
	}
	atomic.AddInt64(&s.applyCount, 1)
	atomic.AddInt64(&s.cellCount, int64(b.Count()))
	return nil
}

// NewScanner opens a scanner over the store. The scanner's read point and
// source stores are captured atomically at open; writes applied and flushes
// performed afterwards do not affect it.
func (s *Store) NewScanner(opts ScanOptions) *Scanner {
	s.mu.Lock()
	iters := make([]cellIterator, 0, 2+len(s.mu.flushing)+len(s.mu.segments))
	for _, r := range s.mu.segments {
		iters = append(iters, r.NewIter())
	}
	for _, m := range s.mu.flushing {
		iters = append(iters, m.newIter())
	}
	iters = append(iters, s.mu.mem.newIter())
	s.mu.Unlock()

	// Capturing the read point after the memstore reference is what makes
	// the snapshot consistent: every write at or below this read point has
	// already landed in one of the captured stores.
	readPoint := opts.ReadPoint
	if readPoint == 0 {
		readPoint = s.seq.ReadPoint()
	}
	return newScanner(s.opts.Comparer, newMergingIter(s.opts.Comparer.Compare, iters...), readPoint, opts)
}

// Get returns the value of the newest visible version of the given cell
// coordinate, or ErrNotFound.
func (s *Store) Get(ctx context.Context, row, family, qualifier []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sc := s.NewScanner(ScanOptions{
		StartRow:    row,
		EndRow:      rowUpperBound(row),
		MaxVersions: 1,
	})
	defer func() { _ = sc.Close() }()

	cmp := s.opts.Comparer.CompareBytes
	for valid := sc.First(); valid; valid = sc.Next() {
		c := sc.Cell()
		if v := cmp(c.Family, family); v < 0 {
			continue
		} else if v > 0 {
			break
		}
		if v := cmp(c.Qualifier, qualifier); v < 0 {
			continue
		} else if v > 0 {
			break
		}
		return append([]byte(nil), c.Value...), nil
	}
	if err := sc.Error(); err != nil {
		return nil, err
	}
	return nil, ErrNotFound
}

// rowUpperBound returns the exclusive scan bound for a single row: the row
// key followed by a zero byte is the smallest key sorting after every cell
// of the row.
func rowUpperBound(row []byte) []byte {
	return append(append(make([]byte, 0, len(row)+1), row...), 0)
}

// Flush rotates the mutable memstore out, waits for its in-flight writes to
// retire, encodes it into an immutable segment, and installs the segment in
// the scan path. The rotated memstore stays visible to scans throughout, so
// a flush never makes data transiently disappear.
func (s *Store) Flush(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	start := crtime.NowMono()

	s.mu.Lock()
	old := s.mu.mem
	if old.empty() && len(s.mu.flushing) == 0 {
		s.mu.Unlock()
		return nil
	}
	if !old.empty() {
		s.mu.mem = newMemStore(s.opts.Comparer)
		s.mu.flushing = append(s.mu.flushing, old)
	}
	s.mu.Unlock()

	// Every write targeting the rotated memstore holds a ticket issued
	// before the rotation above, so draining the sequencer quiesces it.
	// Writes to the new memstore may proceed concurrently; waiting for them
	// too is harmless.
	if err := s.seq.WaitForPriorWrites(ctx); err != nil {
		// The memstore stays in the flushing queue: it remains scanned, and
		// the next flush encodes it.
		return err
	}

	// Encode every quiesced memstore in the flushing queue, oldest first.
	// Only Flush appends to the queue and flushes are serialized, so the
	// snapshot below is stable.
	s.mu.Lock()
	quiesced := append([]*memStore(nil), s.mu.flushing...)
	s.mu.Unlock()

	var cells, bytes int64
	for _, m := range quiesced {
		w := segment.NewWriter(s.opts.Comparer, s.opts.BlockSize)
		it := m.newIter()
		for c := it.First(); c != nil; c = it.Next() {
			w.Add(c)
		}
		data, err := w.Finish()
		if err != nil {
			return err
		}
		r, err := segment.NewReader(data)
		if err != nil {
			return errors.Wrap(err, "cellstore: reopening flushed segment")
		}

		s.mu.Lock()
		s.mu.flushing = s.mu.flushing[1:]
		s.mu.segments = append(s.mu.segments, r)
		s.mu.Unlock()

		atomic.AddInt64(&s.flushCount, 1)
		atomic.AddInt64(&s.flushBytes, int64(len(data)))
		cells += m.approximateCount()
		bytes += int64(len(data))
	}

	elapsed := start.Elapsed()
	if s.opts.FlushLatency != nil {
		s.opts.FlushLatency.Observe(elapsed.Seconds())
	}
	s.opts.Logger.Infof("flushed %d cells (%d bytes) in %s", cells, bytes, elapsed)
	return nil
}

// Close drains in-flight writes and releases the store. The store must not
// be used afterwards.
func (s *Store) Close(ctx context.Context) error {
	return s.seq.WaitForPriorWrites(ctx)
}
