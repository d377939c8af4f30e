// Copyright 2025 The Cellstore Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package segment

import (
	"encoding/binary"

	"github.com/cellstore/cellstore/internal/base"
	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/golang/snappy"
)

// ErrCorruption marks errors caused by a malformed or damaged segment.
var ErrCorruption = errors.New("cellstore: segment corruption")

func corruptionf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf("cellstore: segment corruption: "+format, args...), ErrCorruption)
}

// Reader provides iteration over an encoded segment. Block payloads are
// checksum-verified and decompressed lazily, on first access by an
// iterator. A Reader is safe for concurrent use; each iterator is not.
type Reader struct {
	data    []byte
	handles []blockHandle
}

// NewReader validates the segment's framing and returns a reader. Block
// contents are not validated until iterated.
func NewReader(data []byte) (*Reader, error) {
	if len(data) < footerLen {
		return nil, corruptionf("segment too small: %d bytes", len(data))
	}
	footer := data[len(data)-footerLen:]
	if string(footer[8:]) != magic {
		return nil, corruptionf("bad magic")
	}
	indexOff := binary.LittleEndian.Uint64(footer[:8])
	if indexOff > uint64(len(data)-footerLen) {
		return nil, corruptionf("index offset %d out of range", indexOff)
	}

	idx := data[indexOff : len(data)-footerLen]
	n, idx, err := readUvarint(idx)
	if err != nil {
		return nil, err
	}
	r := &Reader{data: data, handles: make([]blockHandle, 0, n)}
	for i := uint64(0); i < n; i++ {
		var h blockHandle
		if h.offset, idx, err = readUvarint(idx); err != nil {
			return nil, err
		}
		if h.length, idx, err = readUvarint(idx); err != nil {
			return nil, err
		}
		if len(idx) < checksumLen {
			return nil, corruptionf("truncated index")
		}
		h.checksum = binary.LittleEndian.Uint64(idx[:checksumLen])
		idx = idx[checksumLen:]
		if h.offset+h.length > indexOff {
			return nil, corruptionf("block %d out of range", i)
		}
		r.handles = append(r.handles, h)
	}
	return r, nil
}

// Size returns the encoded size of the segment in bytes.
func (r *Reader) Size() int64 {
	return int64(len(r.data))
}

func (r *Reader) loadBlock(i int) ([]byte, error) {
	h := r.handles[i]
	raw := r.data[h.offset : h.offset+h.length]
	if sum := xxhash.Sum64(raw); sum != h.checksum {
		return nil, corruptionf("block %d checksum mismatch (%x != %x)", i, sum, h.checksum)
	}
	block, err := snappy.Decode(nil, raw)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "cellstore: decompressing block %d", i), ErrCorruption)
	}
	return block, nil
}

// NewIter returns a forward iterator over the segment's cells.
func (r *Reader) NewIter() *Iter {
	return &Iter{r: r, blockIdx: -1}
}

// Iter iterates over a segment's cells in order. The cell returned by First
// and Next points into the iterator's decoded block and is overwritten by
// the next positioning call.
type Iter struct {
	r        *Reader
	blockIdx int
	block    []byte
	off      int
	cell     base.Cell
	err      error
}

// First positions the iterator at the first cell, or returns nil if the
// segment is empty or corrupt.
func (it *Iter) First() *base.Cell {
	it.blockIdx = -1
	it.block = nil
	it.off = 0
	it.err = nil
	return it.Next()
}

// Next returns the next cell, or nil when the iterator is exhausted or has
// failed; check Error to distinguish.
func (it *Iter) Next() *base.Cell {
	if it.err != nil {
		return nil
	}
	for it.off >= len(it.block) {
		it.blockIdx++
		if it.blockIdx >= len(it.r.handles) {
			return nil
		}
		it.block, it.err = it.r.loadBlock(it.blockIdx)
		if it.err != nil {
			return nil
		}
		it.off = 0
	}
	return it.decodeCell()
}

func (it *Iter) decodeCell() *base.Cell {
	buf := it.block[it.off:]
	var lens [4]uint64
	var err error
	for i := range lens {
		if lens[i], buf, err = readUvarint(buf); err != nil {
			it.err = err
			return nil
		}
	}
	var ts, seq uint64
	if ts, buf, err = readUvarint(buf); err != nil {
		it.err = err
		return nil
	}
	if len(buf) < 1 {
		it.err = corruptionf("truncated cell kind")
		return nil
	}
	kind := base.CellKind(buf[0])
	buf = buf[1:]
	if seq, buf, err = readUvarint(buf); err != nil {
		it.err = err
		return nil
	}
	total := lens[0] + lens[1] + lens[2] + lens[3]
	if uint64(len(buf)) < total {
		it.err = corruptionf("truncated cell body")
		return nil
	}
	it.cell = base.Cell{
		Row:       buf[:lens[0]],
		Family:    buf[lens[0] : lens[0]+lens[1]],
		Qualifier: buf[lens[0]+lens[1] : lens[0]+lens[1]+lens[2]],
		Value:     buf[lens[0]+lens[1]+lens[2] : total],
		Timestamp: base.Timestamp(ts),
		Kind:      kind,
		SeqNum:    base.SeqNum(seq),
	}
	it.off = len(it.block) - (len(buf) - int(total))
	return &it.cell
}

// Error returns the first corruption or decoding error encountered.
func (it *Iter) Error() error {
	return it.err
}

// Close implements the iterator contract; it releases the decoded block.
func (it *Iter) Close() error {
	it.block = nil
	return it.err
}

func readUvarint(buf []byte) (uint64, []byte, error) {
	v, n := binary.Uvarint(buf)
	if n <= 0 {
		return 0, nil, corruptionf("bad uvarint")
	}
	return v, buf[n:], nil
}
