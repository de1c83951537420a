// Copyright (c) 2026 The effectvm Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package effectvm

import "fmt"

// Kind enumerates the error kinds a run can fail with.
type Kind int

const (
	// BoundaryError: invalid input at a public entry point.
	BoundaryError Kind = iota
	// UnhandledEffectErr: no handler matched a Perform.
	UnhandledEffectErr
	// ContinuationAlreadyUsed: a one-shot continuation was resumed or
	// transferred a second time.
	ContinuationAlreadyUsed
	// HandlerReturnedNonDoExpr: a handler's start/resume/delegate callback
	// returned a value that does not classify as a DoExpr.
	HandlerReturnedNonDoExpr
	// HostCallFailed: an exception was raised inside a host callable.
	HostCallFailed
	// SchedulerDeadlock: the ready queue is empty but tasks remain
	// Waiting with no external promises pending.
	SchedulerDeadlock
	// InternalInvariant: an invariant of the VM itself was violated.
	// Unrecoverable; terminates the run.
	InternalInvariant
)

func (k Kind) String() string {
	switch k {
	case BoundaryError:
		return "BoundaryError"
	case UnhandledEffectErr:
		return "UnhandledEffect"
	case ContinuationAlreadyUsed:
		return "ContinuationAlreadyUsed"
	case HandlerReturnedNonDoExpr:
		return "HandlerReturnedNonDoExpr"
	case HostCallFailed:
		return "HostCallFailed"
	case SchedulerDeadlock:
		return "SchedulerDeadlock"
	case InternalInvariant:
		return "InternalInvariant"
	default:
		return "Kind(?)"
	}
}

// Error is the single error type the VM produces. Kind discriminates the
// seven error conditions below; the remaining fields are
// populated according to Kind.
type Error struct {
	Kind Kind

	// Value is the offending value for BoundaryError.
	Value any
	// Hint is a corrective hint for BoundaryError.
	Hint string

	// Effect is the unmatched payload for UnhandledEffectErr.
	Effect any

	// Handler identifies the offending handler for HandlerReturnedNonDoExpr.
	Handler HandlerIdentity
	// Returned is the non-DoExpr value a handler returned, for
	// HandlerReturnedNonDoExpr.
	Returned any

	// Cause is the underlying panic/error recovered across a host call,
	// for HostCallFailed.
	Cause error
	// Traceback is populated automatically by fail() from the
	// continuation of whichever dispatch was active when the error was
	// raised (see traceback.go's buildTraceback), recording the
	// Delegate/Pass chain the effect passed through. Empty when the
	// failure happened outside any active dispatch.
	Traceback []TracebackHop

	// Message overrides the default rendering for InternalInvariant and
	// SchedulerDeadlock.
	Message string
}

func (e *Error) Error() string {
	switch e.Kind {
	case BoundaryError:
		return fmt.Sprintf("effectvm: boundary error: %v is not a DoExpr (%s)", e.Value, e.Hint)
	case UnhandledEffectErr:
		return fmt.Sprintf("effectvm: unhandled effect: %#v", e.Effect)
	case ContinuationAlreadyUsed:
		return "effectvm: continuation already used"
	case HandlerReturnedNonDoExpr:
		return fmt.Sprintf("effectvm: handler %v returned non-DoExpr value %#v", e.Handler, e.Returned)
	case HostCallFailed:
		return fmt.Sprintf("effectvm: host call failed in handler %v: %v", e.Handler, e.Cause)
	case SchedulerDeadlock:
		if e.Message != "" {
			return "effectvm: scheduler deadlock: " + e.Message
		}
		return "effectvm: scheduler deadlock"
	case InternalInvariant:
		return "effectvm: internal invariant violated: " + e.Message
	default:
		return "effectvm: error"
	}
}

// Unwrap exposes Cause for errors.Is/errors.As over HostCallFailed.
func (e *Error) Unwrap() error { return e.Cause }

// Either represents a value that is either Left (error) or Right (success).
// Used by the Result effect family ([Safe]) to report outcomes without
// aborting the enclosing computation.
type Either[E, A any] struct {
	isRight bool
	left    E
	right   A
}

// Left creates a Left (error) value.
func Left[E, A any](e E) Either[E, A] { return Either[E, A]{left: e} }

// Right creates a Right (success) value.
func Right[E, A any](a A) Either[E, A] { return Either[E, A]{isRight: true, right: a} }

// IsRight returns true if this is a Right value.
func (e Either[E, A]) IsRight() bool { return e.isRight }

// IsLeft returns true if this is a Left value.
func (e Either[E, A]) IsLeft() bool { return !e.isRight }

// GetRight returns the Right value and true, or zero and false.
func (e Either[E, A]) GetRight() (A, bool) {
	if e.isRight {
		return e.right, true
	}
	var zero A
	return zero, false
}

// GetLeft returns the Left value and true, or zero and false.
func (e Either[E, A]) GetLeft() (E, bool) {
	if !e.isRight {
		return e.left, true
	}
	var zero E
	return zero, false
}

// MatchEither pattern matches on the Either, calling onLeft or onRight.
func MatchEither[E, A, T any](e Either[E, A], onLeft func(E) T, onRight func(A) T) T {
	if e.isRight {
		return onRight(e.right)
	}
	return onLeft(e.left)
}
