// Copyright 2025 The Cellstore Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package invariants

import "github.com/cellstore/cellstore/internal/buildtags"

// Enabled is true if we were built with the "invariants" or "race" build
// tags. Expensive consistency checks in the scan and apply paths are only
// performed in such builds.
const Enabled = buildtags.Invariants || buildtags.Race

// RaceEnabled is true if we were built with the "race" build tag.
const RaceEnabled = buildtags.Race
