// Copyright (c) 2026 The effectvm Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package effectvm

import (
	"sync"

	"github.com/google/uuid"
)

// TaskID and PromiseID are opaque public handles for scheduler objects,
// minted from uuid so callers across the host boundary cannot forge or
// guess them from a hot-path counter.
type TaskID uuid.UUID
type PromiseID uuid.UUID

func (t TaskID) String() string    { return uuid.UUID(t).String() }
func (p PromiseID) String() string { return uuid.UUID(p).String() }

// TaskStatus is a task's lifecycle state within the scheduler.
type TaskStatus int

const (
	TaskReady TaskStatus = iota
	TaskRunning
	TaskWaiting
	TaskDone
	TaskFailed
)

// taskListener is notified once, with the task's outcome, the first time
// a task it watches completes or fails. Listeners are always built
// inside a VM method and close over that VM directly.
type taskListener func(value any, err *Error)

// task is a single cooperatively-scheduled unit of work: a DoExpr run in
// its own segment. Every segment the VM ever makes current belongs to
// exactly one task, including the top-level program passed to Run
// (see vm.mainTask).
type task struct {
	id         TaskID
	segment    SegmentID
	status     TaskStatus
	result     any
	err        *Error
	listeners  []taskListener
	// parkedK is the continuation captured when this task performed a
	// Wait/Gather/Race/AwaitPromise and yielded; set back to nil once the
	// task is woken and re-enqueued.
	parkedK *Continuation
	// handlers is this task's own handler stack, snapshotted from vm.handlers
	// the moment it parks (or at spawn time, for a task that has not yet
	// run) and reinstalled as vm.handlers whenever scheduleNext switches
	// this task in. Handler scopes are otherwise VM-global bookkeeping
	// (installedHandler.markerIdx indexes into whichever segment is
	// current), so without a per-task copy one task's in-flight WithHandler
	// scope would bleed into whatever unrelated task the scheduler runs
	// next while it is parked.
	handlers []installedHandler
	// resumeMode is the Mode to install when this task is next picked up
	// by scheduleNext: Running for a freshly spawned task, Delivering for
	// one woken from a parked continuation.
	resumeMode Mode
}

// promise is an externally completable value: createExternalPromise
// mints one, hands PromiseID to the caller, and a run awaiting it parks
// until feedExternalResult supplies a value from outside the VM.
type promise struct {
	id        PromiseID
	guard     oneShotGuard
	done      bool
	value     any
	failed    *Error
	listeners []taskListener
}

// scheduler implements the cooperative single-threaded task model:
// spawn/wait/gather/race over tasks, plus a thread-safe bridge for
// external promise completion. A task registry shape (a map of tasks
// plus an explicit ready queue guarded by a mutex) generalized from
// network-connection tasks to effect-VM tasks.
type scheduler struct {
	mu sync.Mutex

	tasks    map[TaskID]*task
	promises map[PromiseID]*promise

	// ready holds task IDs whose segment has a runnable frame.
	ready []TaskID
	// pendingExternal counts promises that have not yet been fed, so
	// idle() can tell a genuine deadlock from "waiting on the outside
	// world".
	pendingExternal int
	// fed collects promises completed by feedExternalResult since the
	// last drain, so the run loop can wake their listeners.
	fed []PromiseID

	// wake signals a synchronous Run loop blocked in AwaitingExternal that
	// a promise was just fed and drainFed has work. Buffered so
	// feedExternalResult never blocks on a run loop that has not reached
	// the point of waiting on it yet.
	wake chan struct{}
}

func newScheduler(readyCapacity int) *scheduler {
	return &scheduler{
		tasks:    make(map[TaskID]*task),
		promises: make(map[PromiseID]*promise),
		ready:    make([]TaskID, 0, readyCapacity),
		wake:     make(chan struct{}, 1),
	}
}

// newTask registers a task for an already-allocated segment and enqueues
// it as ready. resumeMode is what the run loop installs when the task is
// first picked up; handlers is the handler stack it starts with (the
// ambient stack lexically in scope at the moment it was spawned).
func (s *scheduler) newTask(seg SegmentID, resumeMode Mode, handlers []installedHandler) TaskID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := TaskID(uuid.New())
	s.tasks[id] = &task{id: id, segment: seg, status: TaskReady, resumeMode: resumeMode, handlers: handlers}
	s.ready = append(s.ready, id)
	return id
}

// nextReady pops the next ready task ID in FIFO order, or false if none.
func (s *scheduler) nextReady() (TaskID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ready) == 0 {
		return TaskID{}, false
	}
	id := s.ready[0]
	s.ready = s.ready[1:]
	return id, true
}

// enqueue marks a parked task ready again with the given resume mode.
func (s *scheduler) enqueue(id TaskID, resumeMode Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tasks[id]
	t.status = TaskReady
	t.parkedK = nil
	t.resumeMode = resumeMode
	s.ready = append(s.ready, id)
}

// complete marks a task done (or failed), returning its listeners (the
// task's own entry is cleared of them).
func (s *scheduler) complete(id TaskID, result any, err *Error) []taskListener {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil
	}
	t.result, t.err = result, err
	if err != nil {
		t.status = TaskFailed
	} else {
		t.status = TaskDone
	}
	ls := t.listeners
	t.listeners = nil
	return ls
}

// watch registers fn to run once task id finishes. If it has already
// finished, fn is invoked synchronously with the cached outcome and the
// listener is not stored.
func (s *scheduler) watch(id TaskID, fn taskListener) {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		fn(nil, &Error{Kind: InternalInvariant, Message: "wait on unknown task"})
		return
	}
	if t.status == TaskDone || t.status == TaskFailed {
		result, err := t.result, t.err
		s.mu.Unlock()
		fn(result, err)
		return
	}
	t.listeners = append(t.listeners, fn)
	s.mu.Unlock()
}

// createExternalPromise mints a promise a caller outside the VM will
// complete via feedExternalResult.
func (s *scheduler) createExternalPromise() PromiseID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := PromiseID(uuid.New())
	s.promises[id] = &promise{id: id}
	s.pendingExternal++
	return id
}

// feedExternalResult is the thread-safe completion bridge: any goroutine
// may call this to resolve a promise the VM is awaiting. Safe to call
// from outside the VM's single-threaded run loop. The VM's run loop
// picks the result up on its next iteration via drainFed.
func (s *scheduler) feedExternalResult(id PromiseID, value any, err *Error) bool {
	s.mu.Lock()
	p, ok := s.promises[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	if !p.guard.claim() {
		s.mu.Unlock()
		return false
	}
	p.done, p.value, p.failed = true, value, err
	s.fed = append(s.fed, id)
	s.pendingExternal--
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

// watchPromise registers fn to run once promise id resolves, invoking it
// synchronously if it already has.
func (s *scheduler) watchPromise(id PromiseID, fn taskListener) {
	s.mu.Lock()
	p, ok := s.promises[id]
	if !ok {
		s.mu.Unlock()
		fn(nil, &Error{Kind: InternalInvariant, Message: "await on unknown promise"})
		return
	}
	if p.done {
		value, err := p.value, p.failed
		s.mu.Unlock()
		fn(value, err)
		return
	}
	p.listeners = append(p.listeners, fn)
	s.mu.Unlock()
}

// drainFed pops promises completed by feedExternalResult since the last
// drain, returning each one's listeners to be woken by the caller.
func (s *scheduler) drainFed() map[PromiseID][]taskListener {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.fed) == 0 {
		return nil
	}
	out := make(map[PromiseID][]taskListener, len(s.fed))
	for _, id := range s.fed {
		p := s.promises[id]
		out[id] = p.listeners
		p.listeners = nil
	}
	s.fed = s.fed[:0]
	return out
}

// resolved returns the cached outcome of an already-fed promise.
func (s *scheduler) resolved(id PromiseID) (any, *Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.promises[id]
	return p.value, p.failed
}

// idle reports whether there is no ready work and nothing could ever
// become ready — the SchedulerDeadlock condition. A non-zero
// pendingExternal means an outside caller might still feed a promise, so
// that is not a deadlock; it is AwaitingExternal.
func (s *scheduler) idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ready) == 0 && s.pendingExternal == 0
}

// awaitingExternal reports whether there is no ready work but an
// external caller could still unblock the run.
func (s *scheduler) awaitingExternal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ready) == 0 && s.pendingExternal > 0
}

// counts reports the number of tasks currently ready to run versus parked
// in TaskWaiting, for the entry API's scheduler gauges.
func (s *scheduler) counts() (ready, waiting int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ready = len(s.ready)
	for _, t := range s.tasks {
		if t.status == TaskWaiting {
			waiting++
		}
	}
	return ready, waiting
}
