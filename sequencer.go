// Copyright 2025 The Cellstore Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package cellstore

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cellstore/cellstore/internal/base"
	"github.com/cellstore/cellstore/internal/invariants"
	"github.com/cockroachdb/errors"
)

// WriteTicket represents one in-flight mutation: the sequence number
// assigned to it and its completion state. A ticket is created by
// WriteSequencer.Begin, owned by the sequencer's pending queue until
// retired, and must not be reused after being passed to Complete.
type WriteTicket struct {
	seqNum base.SeqNum
	// completed is guarded by the sequencer's queue mutex.
	completed bool
}

// SeqNum returns the sequence number assigned to the ticket. Every cell
// applied under this ticket carries this number.
func (t *WriteTicket) SeqNum() base.SeqNum {
	return t.seqNum
}

// WriteSequencer manages the read/write consistency of the in-memory store.
// Writers obtain monotonic sequence numbers for their mutations and retire
// them once the mutation is visible in the store; the sequencer publishes a
// read point for readers to filter out in-flight writes.
//
// Writers may retire tickets in any order. The read point only ever
// advances past a contiguous, gap-free prefix of completed writes: a reader
// that captures the read point and accepts only cells with sequence numbers
// at or below it can never observe a write whose logically-prior write has
// not yet landed. Publication of the read point is serialized by the queue
// mutex; reading it is a single atomic load and never blocks.
//
// A WriteSequencer is created with the store and lives for its lifetime. It
// is passed explicitly through the write and read paths; there is no
// process-global instance.
type WriteSequencer struct {
	// readPoint is the sequence number of the most recent write at the end
	// of a completed, gap-free prefix. Atomically published, monotonically
	// non-decreasing.
	readPoint atomic.Uint64

	mu struct {
		sync.Mutex
		// nextSeqNum is the highest sequence number issued so far.
		nextSeqNum base.SeqNum
		// pending is the queue of outstanding tickets in issuance order.
		// Strictly increasing sequence numbers, no duplicates.
		pending []*WriteTicket
		// readChanged is closed and replaced each time the read point
		// advances. Waiters capture the current channel under the mutex and
		// block on it outside.
		readChanged chan struct{}
	}
}

// NewWriteSequencer returns a sequencer with both the issue point and the
// read point at zero.
func NewWriteSequencer() *WriteSequencer {
	s := &WriteSequencer{}
	s.mu.readChanged = make(chan struct{})
	return s
}

// Init seeds the issue point and the read point, typically from a recovered
// maximum sequence number. It must be called before any write is begun;
// calling it once writes are in flight (or after the sequencer has been
// used) returns an error.
func (s *WriteSequencer) Init(start base.SeqNum) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.mu.pending) != 0 || s.mu.nextSeqNum != base.SeqNum(s.readPoint.Load()) {
		return errors.Errorf("cellstore: sequencer already in use, too late to initialize")
	}
	s.mu.nextSeqNum = start
	s.readPoint.Store(uint64(start))
	return nil
}

// Begin allocates the next sequence number, enqueues a ticket for it, and
// returns the ticket. Safe to call from arbitrarily many concurrent
// writers.
func (s *WriteSequencer) Begin() *WriteTicket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mu.nextSeqNum++
	t := &WriteTicket{seqNum: s.mu.nextSeqNum}
	s.mu.pending = append(s.mu.pending, t)
	return t
}

// Complete marks the ticket's write as visible in the store and retires the
// completed prefix of the pending queue, advancing the read point to the
// last retired sequence number. If the ticket is not at the head of the
// queue no advance occurs; the retirement happens later, when the writes
// ahead of it complete.
//
// Completing a ticket twice, or completing a ticket the sequencer does not
// own, is a programming error and panics.
func (s *WriteSequencer) Complete(t *WriteTicket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completeLocked(t)
}

func (s *WriteSequencer) completeLocked(t *WriteTicket) {
	pending := s.mu.pending
	i := sort.Search(len(pending), func(i int) bool {
		return pending[i].seqNum >= t.seqNum
	})
	if i >= len(pending) || pending[i] != t {
		panic(errors.AssertionFailedf(
			"cellstore: completing unknown ticket %s (already retired?)", t.seqNum))
	}
	if t.completed {
		panic(errors.AssertionFailedf(
			"cellstore: ticket %s completed twice", t.seqNum))
	}
	t.completed = true

	// Retire the completed prefix. Writers finish in any order; the read
	// point only moves past writes with no incomplete predecessor.
	var last base.SeqNum
	n := 0
	for ; n < len(pending) && pending[n].completed; n++ {
		if last != 0 && pending[n].seqNum != last+1 {
			panic(errors.AssertionFailedf(
				"cellstore: pending queue gap, prev %s next %s", last, pending[n].seqNum))
		}
		last = pending[n].seqNum
	}
	if n == 0 {
		return
	}
	if invariants.Enabled {
		if prev := base.SeqNum(s.readPoint.Load()); pending[0].seqNum != prev+1 {
			panic(errors.AssertionFailedf(
				"cellstore: queue head %s does not extend read point %s", pending[0].seqNum, prev))
		}
	}
	s.mu.pending = append(pending[:0:0], pending[n:]...)
	s.readPoint.Store(uint64(last))
	close(s.mu.readChanged)
	s.mu.readChanged = make(chan struct{})
}

// CompleteAndWait retires the ticket as Complete does, then blocks until
// the read point has advanced to cover it, so that the caller's write is
// guaranteed visible to readers opened after return. Write paths call this
// before acknowledging a mutation.
func (s *WriteSequencer) CompleteAndWait(ctx context.Context, t *WriteTicket) error {
	s.mu.Lock()
	s.completeLocked(t)
	s.mu.Unlock()
	return s.waitForReadPoint(ctx, t.seqNum)
}

// ReadPoint returns the current safe read point: the highest sequence
// number such that every write at or below it has completed. Readers filter
// cells by cell.SeqNum <= ReadPoint(), capturing the value once at scan
// open. Lock-free; never blocks.
func (s *WriteSequencer) ReadPoint() base.SeqNum {
	return base.SeqNum(s.readPoint.Load())
}

// WaitForPriorWrites blocks until every write begun before the call has
// been retired. The flush path calls this before capturing an immutable
// snapshot of the in-memory store, guaranteeing the snapshot reflects a
// consistent prefix of writes. Returns ctx.Err() if the context is
// cancelled first; the writers themselves are never blocked.
func (s *WriteSequencer) WaitForPriorWrites(ctx context.Context) error {
	s.mu.Lock()
	target := s.mu.nextSeqNum
	s.mu.Unlock()
	return s.waitForReadPoint(ctx, target)
}

func (s *WriteSequencer) waitForReadPoint(ctx context.Context, target base.SeqNum) error {
	for {
		if s.ReadPoint() >= target {
			return nil
		}
		s.mu.Lock()
		if base.SeqNum(s.readPoint.Load()) >= target {
			s.mu.Unlock()
			return nil
		}
		changed := s.mu.readChanged
		s.mu.Unlock()
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// PendingWrites returns the number of outstanding tickets. Exposed for
// metrics.
func (s *WriteSequencer) PendingWrites() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.mu.pending)
}
