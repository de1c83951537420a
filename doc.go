// Copyright (c) 2026 The effectvm Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package effectvm implements a delimited-continuation virtual machine for
// algebraic effects.
//
// User programs are built from [DoExpr] nodes: effectful computations that
// may [Perform] an effect, compose via [MapNode]/[FlatMapNode], or step a foreign
// generator object across the host-language boundary (see the sibling
// hostjs package). A stack of [HandlerEntry] values intercepts performed
// effects and decides, for each one, whether to resume the captured
// continuation ([Resume]), transfer to a different one ([Transfer]),
// delegate to the next outer handler ([Delegate]), or pass it through
// unmodified ([Pass]).
//
// # Core model
//
// The VM executes a [DoExpr] by walking a segmented frame stack (see
// [Segment] and [Frame]): exactly one segment is current at any time, and
// segments are owned by an arena that recycles freed ones. Effect dispatch
// reifies the frames above the enclosing handler marker into a
// [Continuation] — an immutable, one-shot snapshot that may be resumed or
// transferred exactly once.
//
// # Native effects
//
// The runtime ships native handlers for the standard effect families:
// Reader ([Ask], [Local]), State ([Get], [Put], [Modify]), Writer ([Tell],
// [Log], [Listen], [Censor]), Result ([Safe]), and a cooperative scheduler
// ([Spawn], [Wait], [Gather], [Race], [CreateExternalPromise]).
//
// # Entry points
//
// [Run] drives a [DoExpr] to completion synchronously. [AsyncRun] does the
// same but yields control whenever the VM enters AwaitingExternal mode,
// resuming once an external promise completer supplies a value.
package effectvm
