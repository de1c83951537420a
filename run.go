// Copyright (c) 2026 The effectvm Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package effectvm

// RunResult is the outcome of driving a DoExpr to completion: exactly one
// of Value/Err is meaningful, selected by Err being nil. RawStore reports
// the entry API's ambient State store as it stood at completion, and
// Traceback carries the handler chain active when a Failed result's
// error was raised (nil on success).
type RunResult struct {
	Value     any
	Err       *Error
	RawStore  map[string]any
	Traceback []TracebackHop
}

// start constructs a VM, installs the entry API's ambient Env/Store
// scope and any caller-supplied Handlers bottom-up around expr (user
// Handlers innermost, Reader next, State outermost), classifies the
// result, and spawns it as the main task, leaving the VM ready for its
// first scheduleNext.
func start(expr DoExpr, opts Options) (*VM, *Error) {
	vm := newVM(opts)

	stateEntry, current := NewStateHandler(opts.Store)
	vm.rawStore = current
	readerEntry := NewReaderHandler(opts.Env)

	wrapped := WithHandlers(expr, opts.Handlers...)
	wrapped = WithHandler(readerEntry, wrapped)
	wrapped = WithHandler(stateEntry, wrapped)

	classified, err := classify(wrapped)
	if err != nil {
		return nil, err.(*Error)
	}
	id := vm.spawnTask(classified)
	vm.mainTask = id
	vm.scheduleNext()
	return vm, nil
}

// drainWoken wakes every listener of promises fed since the last drain and
// reports whether any work was actually woken.
func drainWoken(vm *VM) bool {
	fed := vm.sched.drainFed()
	if len(fed) == 0 {
		return false
	}
	for id, listeners := range fed {
		value, err := vm.sched.resolved(id)
		for _, fn := range listeners {
			fn(value, err)
		}
	}
	return true
}

// Run drives expr to completion synchronously, stepping the VM until it
// reaches Done or Failed. If the scheduler enters AwaitingExternal, Run
// blocks on the scheduler's wake signal until some other goroutine calls
// VM.FeedPromise, or fails with SchedulerDeadlock if nothing could ever
// unblock it.
func Run(expr DoExpr, opts Options) RunResult {
	vm, err := start(expr, opts)
	if err != nil {
		return RunResult{Err: err}
	}

	for {
		switch vm.mode.Kind {
		case Done:
			return RunResult{Value: vm.mode.Result, RawStore: vm.rawStore()}
		case Failed:
			return RunResult{Err: vm.mode.Err, RawStore: vm.rawStore(), Traceback: vm.mode.Err.Traceback}
		case AwaitingExternal:
			if vm.sched.idle() {
				err := &Error{Kind: SchedulerDeadlock, Message: "no ready task and no pending external promise"}
				vm.fail(err)
				return RunResult{Err: err, RawStore: vm.rawStore(), Traceback: err.Traceback}
			}
			<-vm.sched.wake
			drainWoken(vm)
			vm.scheduleNext()
		default:
			vm.step()
		}
	}
}

// AsyncState holds a run that stalled waiting on an external promise.
// Call Resume after satisfying the promise (via the owning VM's
// FeedPromise) to continue the same run.
type AsyncState struct {
	vm *VM
}

// VM exposes the underlying run so a caller holding only an AsyncState can
// still reach FeedPromise.
func (s *AsyncState) VM() *VM { return s.vm }

// Resume continues an AsyncRun after external promises have been fed.
func (s *AsyncState) Resume() (RunResult, *AsyncState) {
	return driveAsync(s.vm)
}

// AsyncRun starts expr and drives it until completion, failure, or a
// genuine AwaitingExternal stall (scheduler idle with pending promises).
func AsyncRun(expr DoExpr, opts Options) (RunResult, *AsyncState) {
	vm, err := start(expr, opts)
	if err != nil {
		return RunResult{Err: err}, nil
	}
	return driveAsync(vm)
}

func driveAsync(vm *VM) (RunResult, *AsyncState) {
	for {
		switch vm.mode.Kind {
		case Done:
			return RunResult{Value: vm.mode.Result, RawStore: vm.rawStore()}, nil
		case Failed:
			return RunResult{Err: vm.mode.Err, RawStore: vm.rawStore(), Traceback: vm.mode.Err.Traceback}, nil
		case AwaitingExternal:
			if !drainWoken(vm) {
				return RunResult{}, &AsyncState{vm: vm}
			}
			vm.scheduleNext()
		default:
			vm.step()
		}
	}
}
