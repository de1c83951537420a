// Copyright (c) 2026 The effectvm Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package effectvm

import "fmt"

// dispatchFrameEntry pairs a dispatchFrame (see vm.go) with the
// continuation captured for that dispatch. It is kept separate from the
// Frame stack because Resume/Transfer/Delegate need O(1) access to it
// rather than a frame-stack scan.
type dispatchFrameEntry struct {
	dispatchFrame
	k *Continuation
}

// currentlyDispatching reports whether handler index i has an active,
// unfinished invocation on the dispatch stack — the masking rule that
// keeps a handler from re-entering itself while running its own
// Start/Resume/Delegate body.
func (vm *VM) currentlyDispatching(i int) bool {
	for _, df := range vm.dispatch {
		if df.handlerIdx == i {
			return true
		}
	}
	return false
}

// findHandler scans the installed handler stack from upper bound
// (exclusive) down to 0 for the first handler that can handle payload,
// skipping masked entries and any handler currently dispatching.
func (vm *VM) findHandler(payload any, upperBound int) (int, bool) {
	for i := upperBound - 1; i >= 0; i-- {
		h := vm.handlers[i]
		if h.masked || vm.currentlyDispatching(i) {
			continue
		}
		if h.entry.CanHandle(payload) {
			return i, true
		}
	}
	return 0, false
}

// performDispatch handles a Perform/Effect request: it finds the
// innermost matching handler, captures the continuation above that
// handler's marker, and runs the handler's Start callback (its Resume
// callback from the second dispatch to the same installation on). The result is
// applied directly to vm.mode and vm.segment(); callers should return to
// the step loop afterward.
func (vm *VM) performDispatch(payload any) {
	if vm.metrics != nil {
		vm.metrics.ObservePerform(fmt.Sprintf("%T", payload))
	}
	idx, ok := vm.findHandler(payload, len(vm.handlers))
	if !ok {
		vm.fail(&Error{Kind: UnhandledEffectErr, Effect: payload})
		return
	}
	phase := PhaseStart
	if vm.handlers[idx].dispatchedOnce {
		phase = PhaseResume
	}
	vm.handlers[idx].dispatchedOnce = true
	vm.enterHandler(idx, phase, payload)
}

// enterHandler captures the continuation above the handler's marker,
// truncates the live segment to the marker, and runs the given phase's
// callback, pushing its result as the new top frame.
func (vm *VM) enterHandler(idx int, phase Phase, payload any) {
	h := vm.handlers[idx]
	seg := vm.segment()

	k := &Continuation{
		guard:      &oneShotGuard{},
		frames:     seg.cloneAbove(h.markerIdx),
		scopeChain: append([]MarkerID(nil), seg.ScopeChain...),
		anchor:     anchor{segment: seg.ID, returnFrameIdx: h.markerIdx + 1},
		dispatchID: nextDispatchID.Add(1),
		handlers:   vm.handlerIdentities(),
		installLen: len(vm.handlers),
	}
	vm.runHandlerPhase(idx, phase, payload, k, seg, h.markerIdx)
}

// runHandlerPhase truncates the segment to markerIdx, pushes dispatch and
// handler-frame bookkeeping, invokes the phase callback, and installs its
// returned DoExpr as the next program to run.
func (vm *VM) runHandlerPhase(idx int, phase Phase, payload any, k *Continuation, seg *Segment, markerIdx int) {
	seg.truncate(markerIdx)

	id := nextDispatchID.Add(1)
	vm.dispatch = append(vm.dispatch, dispatchFrameEntry{
		dispatchFrame: dispatchFrame{id: id, handlerIdx: idx, markerIdx: markerIdx, segment: seg.ID, payload: payload},
		k:             k,
	})
	seg.push(&HandlerFrame{EntryIdx: idx, Phase: phase, DispatchID: id, MarkerIdx: markerIdx})

	entry := vm.handlers[idx].entry
	var result DoExpr
	switch phase {
	case PhaseStart:
		result = entry.startPhase(payload, k)
	case PhaseDelegate:
		result = entry.delegatePhase(payload, k)
	default:
		result = entry.resumePhase(payload, k)
	}
	if vm.metrics != nil {
		vm.metrics.ObserveDispatchDepth(len(vm.dispatch))
	}
	if result == nil {
		vm.fail(&Error{Kind: HandlerReturnedNonDoExpr, Handler: entry.Identity(), Returned: result})
		return
	}
	seg.push(&ProgramFrame{Expr: result, Meta: metaOf(result)})
	vm.mode = Mode{Kind: Running}
}

// handlerIdentities snapshots the currently installed (unmasked) handler
// identities, innermost first, for GetHandlers and continuation capture.
func (vm *VM) handlerIdentities() []HandlerIdentity {
	out := make([]HandlerIdentity, 0, len(vm.handlers))
	for i := len(vm.handlers) - 1; i >= 0; i-- {
		if vm.handlers[i].masked {
			continue
		}
		out = append(out, vm.handlers[i].entry.Identity())
	}
	return out
}

// fail reports err through the ambient logging/metrics hooks and ends
// the owning task. A failure in vm.mainTask ends the whole run as
// Failed; a failure in any other task is scoped to that task alone —
// its Wait/Gather/Race listeners observe Left(err) and the scheduler
// moves on to whatever else is ready, mirroring how a successful
// non-main task's completion is handled in taskFinished.
//
// If err doesn't already carry a Traceback, one is materialized here
// from the continuation of whichever dispatch is currently active, so
// a Delegate chain that ends in failure reports the hops it passed
// through without the caller having to issue GetTraceback explicitly.
func (vm *VM) fail(err *Error) {
	if err.Traceback == nil && len(vm.dispatch) > 0 {
		err.Traceback = buildTraceback(vm.dispatch[len(vm.dispatch)-1].k)
	}
	vm.observe(err)
	if vm.current == 0 {
		vm.mode = Mode{Kind: Failed, Err: err}
		return
	}
	owner := vm.segment().Owner
	if owner == vm.mainTask {
		vm.mode = Mode{Kind: Failed, Err: err}
		return
	}
	vm.freeTaskSegments(vm.current)
	listeners := vm.sched.complete(owner, nil, err)
	for _, fn := range listeners {
		fn(nil, err)
	}
	vm.scheduleNext()
}

// freeTaskSegments releases seg and every ancestor segment reachable
// through its Parent chain, up to (but not including) a segment owned
// by a different task — the chain a failing task may have accumulated
// across continuation captures before it was abandoned mid-computation.
func (vm *VM) freeTaskSegments(id SegmentID) {
	owner := func() TaskID {
		seg, ok := vm.arena.get(id)
		if !ok {
			return TaskID{}
		}
		return seg.Owner
	}()
	for id != 0 {
		seg, ok := vm.arena.get(id)
		if !ok {
			return
		}
		parent := seg.Parent
		vm.arena.free(id)
		if parent == 0 {
			return
		}
		parentSeg, ok := vm.arena.get(parent)
		if !ok || parentSeg.Owner != owner {
			return
		}
		id = parent
	}
}

// doResume implements Resume(k, v): one-shot check, then installs k's
// frames via installContinuation (back into the capturing segment, or a
// fresh child segment for a foreign install), with value ready to
// deliver into them.
func (vm *VM) doResume(k *Continuation, value any) {
	if !k.claim() {
		vm.fail(&Error{Kind: ContinuationAlreadyUsed})
		return
	}
	if n := len(vm.dispatch); n > 0 {
		vm.dispatch = vm.dispatch[:n-1]
	}
	vm.installContinuation(k, value)
}

// doTransfer implements Transfer(k, v): identical mechanics to Resume —
// the performing handler's own dispatch is abandoned (it issued Transfer
// as its final instruction) and k's captured frames become the live
// computation.
func (vm *VM) doTransfer(k *Continuation, value any) {
	if !k.claim() {
		vm.fail(&Error{Kind: ContinuationAlreadyUsed})
		return
	}
	if n := len(vm.dispatch); n > 0 {
		vm.dispatch = vm.dispatch[:n-1]
	}
	vm.installContinuation(k, value)
}

// installContinuation makes k's captured frames the live computation
// again. If nothing has moved vm.current away from the segment k was
// captured from since the capture — the common case, e.g. a handler that
// immediately resolves the effect it just received, or a Transfer to an
// enclosing Safe that never actually left the current segment — the
// capturing segment is reused directly: it is truncated back to the
// point just after the marker (discarding anything installed above it
// since capture, such as a privately-scoped Throw handler a Safe never
// re-enters) and k's frames are appended on top. This keeps the common
// multiple-effects-per-WithHandler-scope pattern (State's Get/Put/Get,
// Writer's Tell/Tell, ...) within a single segment, matching the
// installedHandler's marker position instead of stranding the
// MarkerFrame in a segment that execution has since abandoned.
//
// Only a genuinely foreign install — resuming a continuation from a
// different dynamic extent, as the scheduler does when waking a parked
// task — needs a fresh child segment anchored back to k's capture point.
func (vm *VM) installContinuation(k *Continuation, value any) {
	vm.handlers = vm.handlers[:k.installLen]

	if vm.current == k.anchor.segment {
		seg := vm.segment()
		seg.truncate(k.anchor.returnFrameIdx - 1)
		seg.Frames = append(seg.Frames, k.frames...)
		seg.ScopeChain = append(seg.ScopeChain[:0], k.scopeChain...)
		vm.mode = Mode{Kind: Delivering, Value: value}
		return
	}

	owner := vm.segment().Owner
	seg := vm.arena.new()
	seg.Frames = append(seg.Frames, k.frames...)
	seg.ScopeChain = append(seg.ScopeChain, k.scopeChain...)
	seg.Parent = k.anchor.segment
	seg.ReturnFrameIdx = k.anchor.returnFrameIdx
	seg.Owner = owner
	vm.current = seg.ID
	vm.mode = Mode{Kind: Delivering, Value: value}
}

// doDelegateOrPass implements Delegate()/Pass(): re-dispatches the
// effect of the currently active handler invocation to the next handler
// further out, reusing the same underlying captured frames (sharing the
// one-shot guard) and recording a traceback hop.
func (vm *VM) doDelegateOrPass() {
	if len(vm.dispatch) == 0 {
		vm.fail(&Error{Kind: InternalInvariant, Message: "Delegate/Pass outside an active dispatch"})
		return
	}
	cur := vm.dispatch[len(vm.dispatch)-1]
	vm.dispatch = vm.dispatch[:len(vm.dispatch)-1]

	idx, ok := vm.findHandler(cur.payload, cur.handlerIdx)
	if !ok {
		vm.fail(&Error{Kind: UnhandledEffectErr, Effect: cur.payload})
		return
	}
	next := &Continuation{
		guard:       cur.k.guard,
		frames:      cur.k.frames,
		scopeChain:  cur.k.scopeChain,
		anchor:      cur.k.anchor,
		dispatchID:  nextDispatchID.Add(1),
		handlers:    cur.k.handlers,
		installLen:  cur.k.installLen,
		parent:      cur.k,
		delegatedBy: vm.handlers[cur.handlerIdx].entry.Identity(),
	}
	vm.runHandlerPhase(idx, PhaseDelegate, cur.payload, next, vm.segment(), vm.handlers[idx].markerIdx)
}
