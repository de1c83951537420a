// Copyright (c) 2026 The effectvm Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package effectvm

import (
	"fmt"
	"sync/atomic"
)

// HandlerIdentity is an opaque, comparable, printable handle to a
// HandlerEntry. GetHandlers returns these rather than raw HandlerEntry
// pointers so native sentinel handlers (state/reader/writer/scheduler)
// never leak their internal structure — only stable identity.
type HandlerIdentity struct {
	id   uint64
	name string
}

// String renders the handler's debug name, e.g. for traceback printing.
func (h HandlerIdentity) String() string {
	if h.name == "" {
		return fmt.Sprintf("handler#%d", h.id)
	}
	return h.name
}

var nextHandlerID atomic.Uint64

// HandlerEntry is the runtime's record for an installed handler: an
// identity, a CanHandle test, and the three dispatch-phase callbacks.
// Every callback is a Go function the dispatcher calls directly; the
// Native flag is descriptive only (see its field comment).
type HandlerEntry struct {
	identity HandlerIdentity

	// CanHandle reports whether this handler intercepts the given effect
	// payload. Must be total and side-effect-free.
	CanHandle func(payload any) bool

	// Start is invoked the first time an effect reaches this handler.
	// It receives the opaque payload and the reified continuation, and
	// returns the next DoExpr to evaluate — typically Resume/Transfer/
	// Delegate/Pass, or an arbitrary DoExpr that runs as the handler's
	// own body.
	Start func(payload any, k *Continuation) DoExpr

	// Resume is invoked instead of Start the second and later times this
	// handler's installation is dispatched to, for handlers that
	// distinguish first dispatch (e.g. to initialize state) from re-entry.
	// Defaults to Start when nil.
	Resume func(payload any, k *Continuation) DoExpr

	// Delegate is invoked when an inner handler's Delegate/Pass hands
	// the same effect on to this handler. Defaults to Start when nil.
	Delegate func(payload any, k *Continuation) DoExpr

	// Native marks a handler implemented directly by the runtime
	// (state/reader/writer/scheduler). The dispatcher does not read it,
	// and the built-in handler constructors do not set it.
	Native bool
}

// NewHandler allocates a HandlerEntry with a fresh identity and the given
// name (used only for debug printing).
func NewHandler(name string, canHandle func(any) bool, start func(any, *Continuation) DoExpr) *HandlerEntry {
	return &HandlerEntry{
		identity:  HandlerIdentity{id: nextHandlerID.Add(1), name: name},
		CanHandle: canHandle,
		Start:     start,
	}
}

// Identity returns the handler's opaque identity.
func (h *HandlerEntry) Identity() HandlerIdentity { return h.identity }

// startPhase dispatches to Start, the only callback every handler must
// supply.
func (h *HandlerEntry) startPhase(payload any, k *Continuation) DoExpr {
	return h.Start(payload, k)
}

// resumePhase dispatches to Resume, falling back to Start.
func (h *HandlerEntry) resumePhase(payload any, k *Continuation) DoExpr {
	if h.Resume != nil {
		return h.Resume(payload, k)
	}
	return h.Start(payload, k)
}

// delegatePhase dispatches to Delegate, falling back to Start.
func (h *HandlerEntry) delegatePhase(payload any, k *Continuation) DoExpr {
	if h.Delegate != nil {
		return h.Delegate(payload, k)
	}
	return h.Start(payload, k)
}
