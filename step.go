// Copyright (c) 2026 The effectvm Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package effectvm

// step advances the VM by exactly one reduction. It mutates vm.mode and
// vm.current in place; callers drive it in a loop until Mode leaves
// Running/Delivering (see the run loops in run.go).
func (vm *VM) step() {
	switch vm.mode.Kind {
	case Running:
		vm.stepRunning()
	case Delivering:
		vm.stepDelivering()
	default:
		vm.fail(&Error{Kind: InternalInvariant, Message: "step called outside Running/Delivering"})
	}
}

// stepRunning interprets the DoExpr held by the current segment's top
// frame (always a *ProgramFrame or *HostStreamFrame in this mode).
func (vm *VM) stepRunning() {
	seg := vm.segment()
	top := seg.top()
	switch f := top.(type) {
	case *ProgramFrame:
		vm.stepProgram(seg, f)
	case *HostStreamFrame:
		vm.stepHostStream(seg, f, nil)
	case nil:
		vm.fail(&Error{Kind: InternalInvariant, Message: "Running with empty segment"})
	default:
		vm.fail(&Error{Kind: InternalInvariant, Message: "Running with non-program top frame"})
	}
}

// stepProgram interprets one DoExpr node held by f.
func (vm *VM) stepProgram(seg *Segment, f *ProgramFrame) {
	expr := f.Expr
	switch e := expr.(type) {
	case PureExpr:
		seg.pop()
		vm.mode = Mode{Kind: Delivering, Value: e.Value}

	case EffectExpr:
		seg.pop()
		vm.performDispatch(e.Payload)

	case PerformExpr:
		seg.pop()
		vm.performDispatch(e.Payload)

	case MapExpr:
		f.Expr = e.Inner
		f.Meta = metaOf(e.Inner)
		seg.push(acquireMapFrame(e.Fn, e.Meta))
		swapTopTwo(seg)

	case FlatMapExpr:
		f.Expr = e.Inner
		f.Meta = metaOf(e.Inner)
		seg.push(acquireFlatMapFrame(e.Fn, e.Meta))
		swapTopTwo(seg)

	case HostStreamExpr:
		seg.pop()
		seg.push(&HostStreamFrame{Stream: e.Handle, Meta: e.Meta})

	case ApplyExpr:
		seg.pop()
		vm.stepApply(seg, e)

	case WithHandlerExpr:
		seg.pop()
		vm.pushWithHandler(seg, e.Handler, e.Inner)

	case MaskBehindExpr:
		seg.pop()
		seg.push(&MaskFrame{Identity: e.Handler.Identity()})
		vm.setMasked(e.Handler.Identity(), true)
		seg.push(&ProgramFrame{Expr: e.Inner, Meta: metaOf(e.Inner)})

	case ResumeExpr:
		seg.pop()
		vm.doResume(e.K, e.Value)

	case TransferExpr:
		seg.pop()
		vm.doTransfer(e.K, e.Value)

	case DelegateExpr:
		seg.pop()
		vm.doDelegateOrPass()

	case PassExpr:
		seg.pop()
		vm.doDelegateOrPass()

	case GetContinuationExpr:
		seg.pop()
		vm.doGetContinuation()

	case GetHandlersExpr:
		seg.pop()
		vm.mode = Mode{Kind: Delivering, Value: vm.handlerIdentities()}

	case GetCallStackExpr:
		seg.pop()
		vm.mode = Mode{Kind: Delivering, Value: vm.callStack()}

	case GetTracebackExpr:
		seg.pop()
		vm.mode = Mode{Kind: Delivering, Value: buildTraceback(e.K)}

	case yieldExpr:
		seg.pop()
		// The parking task's continuation now lives on the task; drop the
		// scheduler dispatch's HandlerFrame and dispatch entry so they are
		// not left behind for the woken task's segment to deliver into.
		if _, ok := seg.top().(*HandlerFrame); ok {
			seg.pop()
		}
		if n := len(vm.dispatch); n > 0 {
			vm.dispatch = vm.dispatch[:n-1]
		}
		vm.currentTask().handlers = append([]installedHandler(nil), vm.handlers...)
		vm.scheduleNext()

	default:
		seg.pop()
		vm.fail(&Error{Kind: InternalInvariant, Message: "unclassified DoExpr tag " + expr.Tag().String()})
	}
}

// swapTopTwo fixes up frame order after pushing a composition frame
// beneath a replaced ProgramFrame: the segment's push appended the new
// continuation frame above the (unchanged, in-place) ProgramFrame, but
// the ProgramFrame must end up on top since it now holds Inner. Frames
// are stored with the ProgramFrame already at its position (its pointer
// identity is stable — only its Expr field mutated), so the composition
// frame pushed by the caller needs to move below it.
func swapTopTwo(seg *Segment) {
	n := len(seg.Frames)
	seg.Frames[n-1], seg.Frames[n-2] = seg.Frames[n-2], seg.Frames[n-1]
}

// stepApply evaluates a function application. Go closures run directly;
// HostCallable values cross the FFI boundary through vm.host.
func (vm *VM) stepApply(seg *Segment, e ApplyExpr) {
	switch fn := e.Fn.(type) {
	case func([]any, map[string]any) DoExpr:
		result := fn(e.Args, e.Kwargs)
		if result == nil {
			vm.fail(&Error{Kind: BoundaryError, Value: result, Hint: "Apply target returned a nil DoExpr"})
			return
		}
		seg.push(&ProgramFrame{Expr: result, Meta: metaOf(result)})
		vm.mode = Mode{Kind: Running}
	case HostCallable:
		if vm.host == nil {
			vm.fail(&Error{Kind: InternalInvariant, Message: "Apply of a HostCallable with no HostRuntime configured"})
			return
		}
		result, err := vm.host.Invoke(fn, e.Args, e.Kwargs)
		if err != nil {
			vm.fail(&Error{Kind: HostCallFailed, Cause: err})
			return
		}
		seg.push(&ProgramFrame{Expr: result, Meta: metaOf(result)})
		vm.mode = Mode{Kind: Running}
	default:
		vm.fail(&Error{Kind: BoundaryError, Value: e.Fn, Hint: "Apply target is neither a Go func nor a HostCallable"})
	}
}

// pushWithHandler installs handler h for the evaluation of inner: pushes
// a MarkerFrame anchoring the scope, records h on the live handler stack,
// and pushes inner as the new program to run.
func (vm *VM) pushWithHandler(seg *Segment, h *HandlerEntry, inner DoExpr) {
	markerIdx := len(seg.Frames)
	vm.handlers = append(vm.handlers, installedHandler{entry: h, markerIdx: markerIdx})
	id := MarkerID(nextMarkerID.Add(1))
	seg.push(&MarkerFrame{ID: id, HandlerIdx: len(vm.handlers) - 1})
	seg.ScopeChain = append(seg.ScopeChain, id)
	seg.push(&ProgramFrame{Expr: inner, Meta: metaOf(inner)})
	vm.mode = Mode{Kind: Running}
}

// setMasked toggles whether identity is skipped during dispatch scans,
// regardless of which dispatch is currently active — used by MaskBehind.
func (vm *VM) setMasked(id HandlerIdentity, masked bool) {
	for i := range vm.handlers {
		if vm.handlers[i].entry.Identity() == id {
			vm.handlers[i].masked = masked
			return
		}
	}
}

// doGetContinuation reifies the continuation of the handler invocation
// currently executing. Only meaningful inside a handler body; calling it
// with no active dispatch is a boundary error since there is no
// continuation to reify.
func (vm *VM) doGetContinuation() {
	if len(vm.dispatch) == 0 {
		vm.fail(&Error{Kind: BoundaryError, Hint: "GetContinuation used outside a handler body"})
		return
	}
	vm.mode = Mode{Kind: Delivering, Value: vm.dispatch[len(vm.dispatch)-1].k}
}

// callStack aggregates CallMetadata from Program/HostStream/Map/FlatMap
// frames across the segment chain, innermost first. Map/FlatMap frames
// are included because the frame holding the currently executing node
// is always popped in the very step that reaches GetCallStack; the
// pending composition frame beneath it is the nearest surviving record
// of where execution is.
func (vm *VM) callStack() []CallMetadata {
	var out []CallMetadata
	seg := vm.segment()
	for seg != nil {
		for i := len(seg.Frames) - 1; i >= 0; i-- {
			switch f := seg.Frames[i].(type) {
			case *ProgramFrame:
				if f.Meta != (CallMetadata{}) {
					out = append(out, f.Meta)
				}
			case *HostStreamFrame:
				if f.Meta != (CallMetadata{}) {
					out = append(out, f.Meta)
				}
			case *MapFrame:
				if f.Meta != (CallMetadata{}) {
					out = append(out, f.Meta)
				}
			case *FlatMapFrame:
				if f.Meta != (CallMetadata{}) {
					out = append(out, f.Meta)
				}
			}
		}
		if seg.Parent == 0 {
			break
		}
		parent, ok := vm.arena.get(seg.Parent)
		if !ok {
			break
		}
		seg = parent
	}
	return out
}

// stepDelivering applies the value in vm.mode.Value to the frame below
// the one that produced it, or crosses a segment boundary if the current
// segment has emptied.
func (vm *VM) stepDelivering() {
	seg := vm.segment()
	value := vm.mode.Value

	if seg.empty() {
		vm.crossSegmentBoundary(seg, value)
		return
	}

	switch f := seg.top().(type) {
	case *MapFrame:
		seg.pop()
		result := f.Fn(value)
		releaseMapFrame(f)
		vm.mode = Mode{Kind: Delivering, Value: result}

	case *FlatMapFrame:
		seg.pop()
		next := f.Fn(value)
		releaseFlatMapFrame(f)
		if next == nil {
			vm.fail(&Error{Kind: BoundaryError, Hint: "FlatMap continuation returned a nil DoExpr"})
			return
		}
		seg.push(&ProgramFrame{Expr: next, Meta: metaOf(next)})
		vm.mode = Mode{Kind: Running}

	case *MarkerFrame:
		// A value bubbling all the way to the marker means the body of
		// the WithHandler scope (not a handler invocation) has finished
		// normally. Tear the handler down and let the value keep
		// propagating past it.
		seg.pop()
		vm.handlers = vm.handlers[:f.HandlerIdx]
		if n := len(seg.ScopeChain); n > 0 {
			seg.ScopeChain = seg.ScopeChain[:n-1]
		}
		vm.mode = Mode{Kind: Delivering, Value: value}

	case *MaskFrame:
		seg.pop()
		vm.setMasked(f.Identity, false)
		vm.mode = Mode{Kind: Delivering, Value: value}

	case *HostStreamFrame:
		vm.stepHostStream(seg, f, value)

	case *HandlerFrame:
		// The handler body reduced to a plain value without going
		// through Resume/Transfer: short-circuit. The WithHandler scope
		// evaluates to this value; the continuation captured for this
		// dispatch, if any, is simply never resumed.
		seg.pop()
		if n := len(vm.dispatch); n > 0 {
			vm.dispatch = vm.dispatch[:n-1]
		}
		seg.truncate(f.MarkerIdx)
		top := seg.pop().(*MarkerFrame)
		vm.handlers = vm.handlers[:top.HandlerIdx]
		if n := len(seg.ScopeChain); n > 0 {
			seg.ScopeChain = seg.ScopeChain[:n-1]
		}
		vm.mode = Mode{Kind: Delivering, Value: value}

	default:
		vm.fail(&Error{Kind: InternalInvariant, Message: "Delivering onto an unexpected frame"})
	}
}

// crossSegmentBoundary is reached when the current segment has no more
// frames to deliver into. If it has a parent, execution continues there
// at the recorded return point; otherwise the whole run is Done.
func (vm *VM) crossSegmentBoundary(seg *Segment, value any) {
	if seg.Parent == 0 {
		vm.taskFinished(value, nil)
		return
	}
	parentID := seg.Parent
	doneID := seg.ID
	vm.current = parentID
	vm.arena.free(doneID)
	vm.mode = Mode{Kind: Delivering, Value: value}
}

// stepHostStream advances a foreign generator one step, classifying its
// yielded value as a DoExpr and pushing it to run.
func (vm *VM) stepHostStream(seg *Segment, f *HostStreamFrame, resumeValue any) {
	expr, done, result, err := f.Stream.Next(resumeValue)
	if err != nil {
		seg.pop()
		vm.fail(&Error{Kind: HostCallFailed, Cause: err})
		return
	}
	if done {
		seg.pop()
		vm.mode = Mode{Kind: Delivering, Value: result}
		return
	}
	classified, cerr := classify(expr)
	if cerr != nil {
		seg.pop()
		vm.fail(cerr.(*Error))
		return
	}
	seg.push(&ProgramFrame{Expr: classified, Meta: metaOf(classified)})
	vm.mode = Mode{Kind: Running}
}
