// Copyright 2025 The Cellstore Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

// Package segment implements the immutable encoded form of a flushed
// memstore: a sequence of snappy-compressed, checksummed blocks of cells in
// the store's cell ordering, followed by a block index and a fixed-size
// footer.
//
// The format is an internal exchange format between the flush path and the
// scan path; it carries no cross-version compatibility promises.
//
// Layout:
//
//	block 0: snappy(cell*)
//	...
//	block n: snappy(cell*)
//	index:   uvarint count; per block: uvarint offset, uvarint length,
//	         8-byte xxhash64 of the compressed block
//	footer:  8-byte index offset, 8-byte magic
//
// Each cell is encoded as uvarint lengths for row, family, qualifier and
// value, a uvarint timestamp, one kind byte, a uvarint sequence number, and
// the four byte strings.
package segment

import (
	"encoding/binary"

	"github.com/cellstore/cellstore/internal/base"
	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/golang/snappy"
)

const (
	magic      = "cestore\x01"
	footerLen  = 16
	checksumLen = 8

	// DefaultBlockSize is the uncompressed size threshold at which a block
	// is cut.
	DefaultBlockSize = 32 << 10
)

type blockHandle struct {
	offset   uint64
	length   uint64
	checksum uint64
}

// Writer encodes an ordered stream of cells into a segment. Cells must be
// added in the store's cell ordering; an out-of-order Add poisons the
// writer and Finish reports the error.
type Writer struct {
	cmp   *base.Comparer
	buf   []byte
	block []byte
	index []blockHandle
	count int
	err   error

	blockSize int
	last      base.Cell
	hasLast   bool
}

// NewWriter returns a writer cutting blocks at the given uncompressed size,
// or DefaultBlockSize if zero.
func NewWriter(cmp *base.Comparer, blockSize int) *Writer {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &Writer{cmp: cmp, blockSize: blockSize}
}

// Add appends a cell to the segment.
func (w *Writer) Add(c *base.Cell) {
	if w.err != nil {
		return
	}
	if w.hasLast && w.cmp.Compare(&w.last, c) >= 0 {
		w.err = errors.AssertionFailedf(
			"cellstore: segment cells out of order: %s then %s", w.last, c)
		return
	}
	w.last = *c
	w.hasLast = true

	w.block = appendUvarint(w.block, uint64(len(c.Row)))
	w.block = appendUvarint(w.block, uint64(len(c.Family)))
	w.block = appendUvarint(w.block, uint64(len(c.Qualifier)))
	w.block = appendUvarint(w.block, uint64(len(c.Value)))
	w.block = appendUvarint(w.block, uint64(c.Timestamp))
	w.block = append(w.block, byte(c.Kind))
	w.block = appendUvarint(w.block, uint64(c.SeqNum))
	w.block = append(w.block, c.Row...)
	w.block = append(w.block, c.Family...)
	w.block = append(w.block, c.Qualifier...)
	w.block = append(w.block, c.Value...)
	w.count++

	if len(w.block) >= w.blockSize {
		w.finishBlock()
	}
}

func (w *Writer) finishBlock() {
	compressed := snappy.Encode(nil, w.block)
	w.index = append(w.index, blockHandle{
		offset:   uint64(len(w.buf)),
		length:   uint64(len(compressed)),
		checksum: xxhash.Sum64(compressed),
	})
	w.buf = append(w.buf, compressed...)
	w.block = w.block[:0]
}

// Count returns the number of cells added so far.
func (w *Writer) Count() int {
	return w.count
}

// Finish cuts the final block, appends the index and footer, and returns
// the encoded segment. The writer must not be reused afterwards.
func (w *Writer) Finish() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	if len(w.block) > 0 {
		w.finishBlock()
	}
	indexOff := uint64(len(w.buf))
	w.buf = appendUvarint(w.buf, uint64(len(w.index)))
	for _, h := range w.index {
		w.buf = appendUvarint(w.buf, h.offset)
		w.buf = appendUvarint(w.buf, h.length)
		w.buf = binary.LittleEndian.AppendUint64(w.buf, h.checksum)
	}
	w.buf = binary.LittleEndian.AppendUint64(w.buf, indexOff)
	w.buf = append(w.buf, magic...)
	return w.buf, nil
}

func appendUvarint(buf []byte, v uint64) []byte {
	return binary.AppendUvarint(buf, v)
}
