// Copyright 2025 The Cellstore Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package cellstore

import (
	"github.com/cellstore/cellstore/internal/base"
	"github.com/cellstore/cellstore/internal/segment"
	"github.com/prometheus/client_golang/prometheus"
)

// Options holds the configuration for opening a Store.
type Options struct {
	// Comparer defines the cell ordering. The default orders rows, families
	// and qualifiers bytewise.
	Comparer *base.Comparer

	// Logger is used for store lifecycle and flush messages.
	Logger base.Logger

	// BlockSize is the uncompressed block size used when encoding flushed
	// segments.
	BlockSize int

	// FlushLatency, if set, records the latency of each flush.
	FlushLatency prometheus.Histogram
}

// EnsureDefaults ensures that the default values for all options are set if
// a valid value was not already specified. Returns the updated options.
func (o *Options) EnsureDefaults() *Options {
	if o == nil {
		o = &Options{}
	}
	if o.Comparer == nil {
		o.Comparer = base.DefaultComparer
	}
	if o.Logger == nil {
		o.Logger = base.DefaultLogger
	}
	if o.BlockSize <= 0 {
		o.BlockSize = segment.DefaultBlockSize
	}
	return o
}
