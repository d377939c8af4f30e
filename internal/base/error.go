// Copyright 2025 The Cellstore Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package base

import "errors"

// ErrNotFound means that a get call did not find the requested cell.
var ErrNotFound = errors.New("cellstore: not found")
