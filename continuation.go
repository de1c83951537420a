// Copyright (c) 2026 The effectvm Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package effectvm

// anchor records where a captured continuation's frames reattach once
// they are restored and eventually empty: the segment and frame index
// that was "below the marker" at capture time.
type anchor struct {
	segment        SegmentID
	returnFrameIdx int
}

// Continuation is an immutable, one-shot snapshot of the computation
// above a WithHandler marker at the moment an effect was performed. It
// may be resumed ([Resume]) or transferred to ([Transfer]) exactly once;
// a second attempt fails with ContinuationAlreadyUsed.
type Continuation struct {
	// guard is shared across every Delegate-derived wrapper of the same
	// underlying capture, so resuming any hop invalidates all of them.
	guard *oneShotGuard

	frames     []Frame
	scopeChain []MarkerID
	anchor     anchor
	dispatchID uint64

	// installLen is len(vm.handlers) at capture time. Installing this
	// continuation (Resume/Transfer) restores the handler stack to this
	// length, discarding any handler installed after capture — a
	// WithHandler scope entered inside the captured extent (e.g. a Safe's
	// private Throw handler) that the continuation never re-enters must
	// not leak into whatever runs after Resume/Transfer.
	installLen int

	// handlers is a snapshot of the handler stack at capture time, used
	// by GetHandlers when queried through this continuation and by
	// traceback rendering.
	handlers []HandlerIdentity

	// parent links to the continuation this one was reached through via
	// Delegate, for GetTraceback. Nil for a continuation captured
	// directly from a Perform.
	parent *Continuation
	// delegatedBy names the handler whose Delegate produced this hop.
	delegatedBy HandlerIdentity
}

// used reports whether this continuation has already been resumed or
// transferred.
func (k *Continuation) used() bool { return k.guard.claimed() }

// claim marks the continuation used, returning false if it already was.
func (k *Continuation) claim() bool { return k.guard.claim() }
