// Copyright (c) 2026 The effectvm Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package effectvm

// yieldExpr is returned by the native scheduler handler to signal that
// this invocation parked the performing task's continuation and the
// step loop should hand control to whatever task is next ready.
type yieldExpr struct{}

func (yieldExpr) Tag() Tag { return TagYield }

func yieldToScheduler() DoExpr { return yieldExpr{} }

// Spawn requests a new cooperatively-scheduled task running Body,
// returning its TaskID without blocking the caller.
type Spawn struct{ Body DoExpr }

// Wait blocks the performing task until Task completes, resolving to
// Right(value) on success or Left(err) on failure.
type Wait struct{ Task TaskID }

// Gather blocks until every task in Tasks completes, resolving to
// Right([]any) in task order on success, or, once all have settled, to
// Left(err) of the first failed task in Tasks order.
type Gather struct{ Tasks []TaskID }

// Race blocks until the first task in Tasks completes, resolving to
// Right(RaceResult) with that task's index and value, or Left(err) if it
// failed, and ignoring the rest.
type Race struct{ Tasks []TaskID }

// CreateExternalPromise mints a PromiseID an external caller will
// complete later via the scheduler's thread-safe completion bridge.
type CreateExternalPromise struct{}

// AwaitPromise blocks the performing task until Promise is completed
// from outside the VM, resolving to Right(value) or Left(err).
type AwaitPromise struct{ Promise PromiseID }

// newSchedulerHandler builds the synthetic, always-installed handler for
// the native scheduler effect family. It is installed as handlers[0] at
// markerIdx -1 (see vm.go), so capturing above it clones an owning
// task's entire segment.
func newSchedulerHandler(vm *VM) *HandlerEntry {
	canHandle := func(payload any) bool {
		switch payload.(type) {
		case Spawn, Wait, Gather, Race, CreateExternalPromise, AwaitPromise:
			return true
		default:
			return false
		}
	}
	start := func(payload any, k *Continuation) DoExpr {
		switch op := payload.(type) {
		case Spawn:
			id := vm.spawnTask(op.Body)
			return Resume(k, id)

		case CreateExternalPromise:
			id := vm.sched.createExternalPromise()
			return Resume(k, id)

		case Wait:
			self := vm.currentTask()
			self.parkedK = k
			self.status = TaskWaiting
			vm.sched.watch(op.Task, func(value any, err *Error) {
				vm.wakeTask(self.id, eitherResult(value, err))
			})
			return yieldToScheduler()

		case AwaitPromise:
			self := vm.currentTask()
			self.parkedK = k
			self.status = TaskWaiting
			vm.sched.watchPromise(op.Promise, func(value any, err *Error) {
				vm.wakeTask(self.id, eitherResult(value, err))
			})
			return yieldToScheduler()

		case Gather:
			self := vm.currentTask()
			self.parkedK = k
			self.status = TaskWaiting
			g := &gatherState{remaining: len(op.Tasks), results: make([]any, len(op.Tasks)), errs: make([]*Error, len(op.Tasks))}
			if len(op.Tasks) == 0 {
				return Resume(k, Right[*Error, any](g.results))
			}
			for i, tid := range op.Tasks {
				i := i
				vm.sched.watch(tid, func(value any, err *Error) {
					g.report(vm, self.id, i, value, err)
				})
			}
			return yieldToScheduler()

		case Race:
			self := vm.currentTask()
			self.parkedK = k
			self.status = TaskWaiting
			winner := &oneShotGuard{}
			for i, tid := range op.Tasks {
				i := i
				vm.sched.watch(tid, func(value any, err *Error) {
					if !winner.claim() {
						return
					}
					vm.wakeTask(self.id, raceResult(i, value, err))
				})
			}
			return yieldToScheduler()

		default:
			return nil
		}
	}
	return NewHandler("scheduler", canHandle, start)
}

// eitherResult encodes a listener outcome as Right(value) or Left(err).
func eitherResult(value any, err *Error) any {
	if err != nil {
		return Left[*Error, any](err)
	}
	return Right[*Error, any](value)
}

// RaceResult pairs the index of the task that won a Race with its value,
// the shape spec'd for Race's successful resolution.
type RaceResult struct {
	Winner int
	Value  any
}

// raceResult encodes a Race winner as Right(RaceResult) or Left(err).
func raceResult(index int, value any, err *Error) any {
	if err != nil {
		return Left[*Error, any](err)
	}
	return Right[*Error, any](RaceResult{Winner: index, Value: value})
}

// gatherState accumulates Gather outcomes as each watched task reports,
// success or failure, and only wakes the waiting task once every task
// has settled. The reported failure, if any, is always the first one in
// input order rather than whichever arrives first in completion order.
type gatherState struct {
	remaining int
	results   []any
	errs      []*Error
}

func (g *gatherState) report(vm *VM, waiter TaskID, index int, value any, err *Error) {
	g.results[index] = value
	g.errs[index] = err
	g.remaining--
	if g.remaining != 0 {
		return
	}
	for _, e := range g.errs {
		if e != nil {
			vm.wakeTask(waiter, Left[*Error, any](e))
			return
		}
	}
	vm.wakeTask(waiter, Right[*Error, any](g.results))
}

// spawnTask allocates a fresh segment for body, registers it as a new
// ready task inheriting a snapshot of the spawning context's handler
// stack, and returns its TaskID without making it current. Inherited
// handlers have no marker in the new segment, so they are anchored at
// markerIdx -1: capturing for one of them takes the task's whole segment.
func (vm *VM) spawnTask(body DoExpr) TaskID {
	seg := vm.arena.new()
	seg.push(&ProgramFrame{Expr: body, Meta: metaOf(body)})
	handlers := append([]installedHandler(nil), vm.handlers...)
	for i := range handlers {
		handlers[i].markerIdx = -1
	}
	id := vm.sched.newTask(seg.ID, Mode{Kind: Running}, handlers)
	seg.Owner = id
	return id
}

// wakeTask installs task id's parked continuation into a fresh segment
// with value ready to deliver, and re-enqueues the task as ready.
func (vm *VM) wakeTask(id TaskID, value any) {
	t := vm.sched.tasks[id]
	k := t.parkedK
	seg := vm.arena.new()
	seg.Frames = append(seg.Frames, k.frames...)
	seg.ScopeChain = append(seg.ScopeChain, k.scopeChain...)
	seg.Parent = k.anchor.segment
	seg.ReturnFrameIdx = k.anchor.returnFrameIdx
	seg.Owner = id
	t.segment = seg.ID
	vm.sched.enqueue(id, Mode{Kind: Delivering, Value: value})
}

// scheduleNext hands control to the next ready task, or sets the VM's
// mode to AwaitingExternal / Failed(SchedulerDeadlock) if none is ready.
func (vm *VM) scheduleNext() {
	if vm.metrics != nil {
		ready, waiting := vm.sched.counts()
		vm.metrics.ObserveSchedulerTasks(ready, waiting)
	}
	if id, ok := vm.sched.nextReady(); ok {
		t := vm.sched.tasks[id]
		t.status = TaskRunning
		vm.current = t.segment
		vm.mode = t.resumeMode
		vm.handlers = t.handlers
		return
	}
	if vm.sched.awaitingExternal() {
		vm.mode = Mode{Kind: AwaitingExternal}
		return
	}
	vm.fail(&Error{Kind: SchedulerDeadlock, Message: "no ready task and no pending external promise"})
}

// taskFinished is reached when the current segment's frames (and every
// ancestor segment split from it) have fully emptied: the owning task
// has produced its final value. Main task completion ends the whole run;
// any other task's completion wakes its listeners and moves on.
func (vm *VM) taskFinished(value any, err *Error) {
	id := vm.segment().Owner
	listeners := vm.sched.complete(id, value, err)
	for _, fn := range listeners {
		fn(value, err)
	}
	vm.arena.free(vm.current)
	if id == vm.mainTask {
		if err != nil {
			vm.observe(err)
			vm.mode = Mode{Kind: Failed, Err: err}
		} else {
			vm.mode = Mode{Kind: Done, Result: value}
		}
		return
	}
	vm.scheduleNext()
}
