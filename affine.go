// Copyright (c) 2026 The effectvm Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package effectvm

import "sync/atomic"

// oneShotGuard enforces affine use of a captured continuation: the first
// claim succeeds, every subsequent one fails. Shared by Continuation
// (Resume/Transfer) and by scheduler external promises (complete-once).
type oneShotGuard struct{ used atomic.Uint32 }

// claim reports whether this call is the first to claim the guard.
func (g *oneShotGuard) claim() bool { return g.used.CompareAndSwap(0, 1) }

// claimed reports whether the guard has already been claimed, without
// claiming it.
func (g *oneShotGuard) claimed() bool { return g.used.Load() != 0 }
