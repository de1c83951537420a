// Copyright (c) 2026 The effectvm Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package effectvm

import (
	"log/slog"
	"sync/atomic"

	"github.com/efflang/effectvm/vmconfig"
)

// installedHandler is a handler bound into the live handler stack,
// paired with the marker that introduced it.
type installedHandler struct {
	entry          *HandlerEntry
	markerIdx      int
	masked         bool
	dispatchedOnce bool
}

// dispatchFrame tracks bookkeeping for one active effect dispatch,
// mirrored alongside the HandlerFrame pushed onto the current segment.
type dispatchFrame struct {
	id         uint64
	handlerIdx int
	markerIdx  int
	segment    SegmentID
	payload    any
}

var nextDispatchID atomic.Uint64
var nextMarkerID atomic.Uint64

// VM is a single run's mutable state: the segment arena, the live
// handler and dispatch stacks, the scheduler, and the current Mode.
// A VM is single-threaded except for scheduler.feedExternalResult, which
// other goroutines may call concurrently (see scheduler.go).
type VM struct {
	arena   *arena
	current SegmentID

	handlers []installedHandler
	dispatch []dispatchFrameEntry

	sched    *scheduler
	host     HostRuntime
	mainTask TaskID

	mode Mode

	traceEnabled bool
	log          *slog.Logger
	metrics      Metrics

	// rawStore reads back the ambient State handler's live store,
	// wired up in start() for RunResult.RawStore. nil if the run was
	// started with no store-backed entry scope.
	rawStore func() map[string]any
}

// Metrics is the optional instrumentation hook the entry API wires to
// vmmetrics.Collector. A nil field on Options disables the corresponding
// observation, so the core package does not depend on prometheus itself.
type Metrics interface {
	ObservePerform(effectKind string)
	ObserveDispatchDepth(depth int)
	ObserveSchedulerTasks(ready, waiting int)
	ObserveError(kind string)
}

// Options configures a VM at construction time.
type Options struct {
	Host    HostRuntime
	Log     *slog.Logger
	Metrics Metrics
	Trace   bool
	// Config controls arena/scheduler preallocation sizes; vmconfig.Default()
	// is used when nil.
	Config *vmconfig.Config
	// Env seeds the entry API's ambient Reader environment. A nil Env
	// still installs the Reader handler, with every key reading as its
	// Ask default (or nil with none).
	Env map[string]any
	// Store seeds the entry API's ambient State store, returned back to
	// the caller as RunResult.RawStore once the run completes.
	Store map[string]any
	// Handlers are installed around expr in the given order, innermost
	// last — the entry API's `handlers` list, wrapping Env/Store.
	Handlers []*HandlerEntry
}

// newVM allocates a VM with the native scheduler installed as the
// outermost (handlers[0]) handler, anchored at markerIdx -1 so capturing
// above it clones an entire segment's frames.
func newVM(opts Options) *VM {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = vmconfig.Default()
	}
	vm := &VM{
		arena:        newArena(cfg.Arena.InitialSegments),
		sched:        newScheduler(cfg.Scheduler.ReadyQueueCapacity),
		host:         opts.Host,
		log:          log,
		metrics:      opts.Metrics,
		traceEnabled: opts.Trace || cfg.Trace,
	}
	vm.handlers = append(vm.handlers, installedHandler{entry: newSchedulerHandler(vm), markerIdx: -1})
	return vm
}

// segment returns the current live segment.
func (vm *VM) segment() *Segment {
	seg, ok := vm.arena.get(vm.current)
	if !ok {
		panic("effectvm: current segment missing from arena")
	}
	return seg
}

// currentTask returns the task owning the current segment.
func (vm *VM) currentTask() *task {
	return vm.sched.tasks[vm.segment().Owner]
}

// FeedPromise completes the external promise id with value (or err),
// waking whatever task is awaiting it. Safe to call from any goroutine,
// including while a Run/AsyncRun loop is in progress on another one;
// reports false if id is unknown or was already fed.
func (vm *VM) FeedPromise(id PromiseID, value any, err *Error) bool {
	return vm.sched.feedExternalResult(id, value, err)
}

// observe reports an error to metrics and logs InternalInvariant,
// SchedulerDeadlock at Error level and HostCallFailed at Warn level, per
// the entry API's logging policy. Other kinds are left to the caller
// (they are ordinary, expected outcomes, not ambient-stack concerns).
func (vm *VM) observe(err *Error) {
	if vm.metrics != nil {
		vm.metrics.ObserveError(err.Kind.String())
	}
	switch err.Kind {
	case InternalInvariant, SchedulerDeadlock:
		vm.log.Error("effectvm run failed", "kind", err.Kind.String(), "error", err.Error())
	case HostCallFailed:
		vm.log.Warn("effectvm host call failed", "handler", err.Handler.String(), "error", err.Error())
	}
}
