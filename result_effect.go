// Copyright (c) 2026 The effectvm Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package effectvm

// Result effect operations: exception-like error handling via effects
// rather than Go panics, so a failed Body aborts only up to its enclosing
// Safe rather than the whole run.

// Throw is the effect operation for raising an error: Perform(Throw{Err:
// e}) abandons the rest of the performing computation and resolves the
// nearest enclosing Safe to Left(e). The continuation captured at the
// Throw site is never resumed — Throw is a non-local exit, not a call.
type Throw struct{ Err any }

// Safe runs Body and resumes with Right(value) if it completes normally,
// or Left(err) if Body (or anything it calls, short of a nested Safe)
// performs Throw.
type Safe struct{ Body DoExpr }

// NewResultHandler builds the ambient handler for Safe. It is installed
// once, outside any particular Safe scope: each Safe dispatch privately
// installs its own Throw-only handler around Body, anchored to abort
// straight to Safe's own continuation, so a Throw performed several
// frames deep unwinds directly to its nearest enclosing Safe without
// resuming any of the intervening continuations it passed through. The
// handler also reinstalls itself around Body, so a Safe nested inside
// Body is handled rather than masked by the outer Safe's own dispatch.
func NewResultHandler() *HandlerEntry {
	var self *HandlerEntry
	canHandle := func(payload any) bool {
		_, ok := payload.(Safe)
		return ok
	}
	start := func(payload any, k *Continuation) DoExpr {
		op, ok := payload.(Safe)
		if !ok {
			return nil
		}
		thrower := newThrowHandler(k)
		wrapped := FlatMapNode(op.Body, func(v any) DoExpr {
			return Pure(Right[any, any](v))
		})
		return FlatMapNode(WithHandler(thrower, WithHandler(self, wrapped)), func(v any) DoExpr {
			return Resume(k, v)
		})
	}
	self = NewHandler("result", canHandle, start)
	return self
}

// newThrowHandler builds a private handler for Throw scoped to one Safe
// invocation. abortTo is Safe's own continuation — the point immediately
// after Safe, not anywhere inside its Body. Throw transfers there with
// Left(err), abandoning the continuation captured at the Throw site.
func newThrowHandler(abortTo *Continuation) *HandlerEntry {
	canHandle := func(payload any) bool {
		_, ok := payload.(Throw)
		return ok
	}
	start := func(payload any, _ *Continuation) DoExpr {
		op, ok := payload.(Throw)
		if !ok {
			return nil
		}
		return Transfer(abortTo, Left[any, any](op.Err))
	}
	return NewHandler("throw", canHandle, start)
}
