// Copyright (c) 2026 The effectvm Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package effectvm

import "runtime"

// Tag classifies a DoExpr node without reflection. Every node carries its
// tag as a fixed field so classify is a single method call reachable
// without acquiring the host lock (see the hostjs package for why that
// matters at the FFI boundary).
type Tag int

const (
	TagPure Tag = iota
	TagEffect
	TagPerform
	TagMap
	TagFlatMap
	TagHostStream
	TagApply
	TagWithHandler
	TagMaskBehind
	TagResume
	TagTransfer
	TagDelegate
	TagPass
	TagGetContinuation
	TagGetHandlers
	TagGetCallStack
	TagGetTraceback
	// TagYield is internal: the native scheduler handler returns it to
	// signal that its invocation parked the performing task and the step
	// loop should hand control to the next ready task.
	TagYield
)

func (t Tag) String() string {
	switch t {
	case TagPure:
		return "Pure"
	case TagEffect:
		return "Effect"
	case TagPerform:
		return "Perform"
	case TagMap:
		return "Map"
	case TagFlatMap:
		return "FlatMap"
	case TagHostStream:
		return "HostStream"
	case TagApply:
		return "Apply"
	case TagWithHandler:
		return "WithHandler"
	case TagMaskBehind:
		return "MaskBehind"
	case TagResume:
		return "Resume"
	case TagTransfer:
		return "Transfer"
	case TagDelegate:
		return "Delegate"
	case TagPass:
		return "Pass"
	case TagGetContinuation:
		return "GetContinuation"
	case TagGetHandlers:
		return "GetHandlers"
	case TagGetCallStack:
		return "GetCallStack"
	case TagGetTraceback:
		return "GetTraceback"
	case TagYield:
		return "Yield"
	default:
		return "Tag(?)"
	}
}

// DoExpr is the root of the IR. Every user-visible AST node the VM can
// execute implements DoExpr. The VM never introspects a node beyond its
// Tag and the accessors declared on the concrete type it classifies to.
type DoExpr interface {
	Tag() Tag
}

// boundaryPanic reports a construction-time IR violation. Extracted as a
// noinline function so the constructors around it stay inlineable.
//
//go:noinline
func boundaryPanic(msg string) {
	panic("effectvm: " + msg)
}

// PureExpr lifts a value into the IR with no effects.
type PureExpr struct {
	Value any
	Meta  CallMetadata
}

func (PureExpr) Tag() Tag             { return TagPure }
func (e PureExpr) meta() CallMetadata { return e.Meta }

// Pure constructs a PureExpr.
func Pure(v any) DoExpr { return PureExpr{Value: v, Meta: callerMeta()} }

// EffectExpr is an opaque effect descriptor. The VM never inspects
// Payload except through a handler's CanHandle.
type EffectExpr struct{ Payload any }

func (EffectExpr) Tag() Tag { return TagEffect }

// PerformExpr requests dispatch of an effect to the handler chain.
type PerformExpr struct {
	Payload any
	Meta    CallMetadata
}

func (PerformExpr) Tag() Tag             { return TagPerform }
func (e PerformExpr) meta() CallMetadata { return e.Meta }

// Perform constructs a request to dispatch an effect operation.
func Perform(payload any) DoExpr { return PerformExpr{Payload: payload, Meta: callerMeta()} }

// MapExpr composes Inner with a pure transformation Fn.
type MapExpr struct {
	Inner DoExpr
	Fn    func(any) any
	Meta  CallMetadata
}

func (MapExpr) Tag() Tag             { return TagMap }
func (e MapExpr) meta() CallMetadata { return e.Meta }

// MapNode reifies Map(expr, fn) as an IR node rather than a host closure
// over generator state, so the step machine can classify and step it
// without a host call.
func MapNode(inner DoExpr, fn func(any) any) DoExpr {
	if inner == nil {
		boundaryPanic("Map requires a non-nil inner DoExpr")
	}
	return MapExpr{Inner: inner, Fn: fn, Meta: callerMeta()}
}

// FlatMapExpr composes Inner with a continuation-producing Fn.
type FlatMapExpr struct {
	Inner DoExpr
	Fn    func(any) DoExpr
	Meta  CallMetadata
}

func (FlatMapExpr) Tag() Tag             { return TagFlatMap }
func (e FlatMapExpr) meta() CallMetadata { return e.Meta }

// FlatMapNode reifies FlatMap(expr, fn) as an IR node.
func FlatMapNode(inner DoExpr, fn func(any) DoExpr) DoExpr {
	if inner == nil {
		boundaryPanic("FlatMap requires a non-nil inner DoExpr")
	}
	return FlatMapExpr{Inner: inner, Fn: fn, Meta: callerMeta()}
}

// HostStreamExpr references a foreign-coroutine object that yields
// DoExprs when stepped. Handle must satisfy the HostStream interface
// (see ffi.go); stepping it requires the host lock.
type HostStreamExpr struct {
	Handle HostStream
	Meta   CallMetadata
}

func (HostStreamExpr) Tag() Tag             { return TagHostStream }
func (e HostStreamExpr) meta() CallMetadata { return e.Meta }

// FromHostStream wraps a foreign generator handle as a DoExpr.
func FromHostStream(h HostStream) DoExpr {
	if h == nil {
		boundaryPanic("HostStream requires a non-nil handle")
	}
	return HostStreamExpr{Handle: h, Meta: callerMeta()}
}

// ApplyExpr is a macro-expansion call: it evaluates Fn(Args..., Kwargs)
// to obtain the next DoExpr to run. This is the sole bridge for surface
// syntax that lifts function application into the IR; the core treats it
// as an opaque evaluation step dispatched through the host boundary when
// Fn is a foreign callable, or invoked directly when Fn is a Go func.
type ApplyExpr struct {
	Fn     any
	Args   []any
	Kwargs map[string]any
	Meta   CallMetadata
}

func (ApplyExpr) Tag() Tag             { return TagApply }
func (e ApplyExpr) meta() CallMetadata { return e.Meta }

// Apply constructs an Apply node.
func Apply(fn any, args []any, kwargs map[string]any) DoExpr {
	if fn == nil {
		boundaryPanic("Apply requires a non-nil callable")
	}
	return ApplyExpr{Fn: fn, Args: args, Kwargs: kwargs, Meta: callerMeta()}
}

// WithHandlerExpr installs Handler around the evaluation of Inner. Exactly
// one handler is installed per WithHandler node — stacking handlers means
// nesting WithHandler nodes.
type WithHandlerExpr struct {
	Handler *HandlerEntry
	Inner   DoExpr
	Meta    CallMetadata
}

func (WithHandlerExpr) Tag() Tag             { return TagWithHandler }
func (e WithHandlerExpr) meta() CallMetadata { return e.Meta }

// WithHandler constructs a handler-installation node.
func WithHandler(h *HandlerEntry, inner DoExpr) DoExpr {
	if h == nil {
		boundaryPanic("WithHandler requires a non-nil handler")
	}
	if inner == nil {
		boundaryPanic("WithHandler requires a non-nil body")
	}
	return WithHandlerExpr{Handler: h, Inner: inner, Meta: callerMeta()}
}

// MaskBehindExpr hides Handler from effects performed within Inner,
// letting them fall through to handlers further out.
type MaskBehindExpr struct {
	Handler *HandlerEntry
	Inner   DoExpr
}

func (MaskBehindExpr) Tag() Tag { return TagMaskBehind }

// MaskBehind constructs a masking node.
func MaskBehind(h *HandlerEntry, inner DoExpr) DoExpr {
	if h == nil {
		boundaryPanic("MaskBehind requires a non-nil handler")
	}
	return MaskBehindExpr{Handler: h, Inner: inner}
}

// ResumeExpr resumes the captured continuation K with Value, reusing K's
// own dispatch context.
type ResumeExpr struct {
	K     *Continuation
	Value any
}

func (ResumeExpr) Tag() Tag { return TagResume }

// Resume constructs a resume request. K must be non-nil; the one-shot
// check happens at dispatch time, not here.
func Resume(k *Continuation, value any) DoExpr {
	if k == nil {
		boundaryPanic("Resume requires a non-nil continuation")
	}
	return ResumeExpr{K: k, Value: value}
}

// TransferExpr resumes a different continuation K with Value — a tail
// call from the current handler to another captured continuation.
type TransferExpr struct {
	K     *Continuation
	Value any
}

func (TransferExpr) Tag() Tag { return TagTransfer }

// Transfer constructs a transfer request.
func Transfer(k *Continuation, value any) DoExpr {
	if k == nil {
		boundaryPanic("Transfer requires a non-nil continuation")
	}
	return TransferExpr{K: k, Value: value}
}

// DelegateExpr re-dispatches the current effect to the next outer
// handler, linking the parent continuation for traceback.
type DelegateExpr struct{}

func (DelegateExpr) Tag() Tag { return TagDelegate }

// Delegate constructs a delegate request.
func Delegate() DoExpr { return DelegateExpr{} }

// PassExpr is equivalent to Delegate for an observer handler that never
// intends to resume the effect itself.
type PassExpr struct{}

func (PassExpr) Tag() Tag { return TagPass }

// Pass constructs a pass request.
func Pass() DoExpr { return PassExpr{} }

// GetContinuationExpr reifies the current continuation as a value.
type GetContinuationExpr struct{}

func (GetContinuationExpr) Tag() Tag { return TagGetContinuation }

// GetContinuation constructs a reflection node returning the current K.
func GetContinuation() DoExpr { return GetContinuationExpr{} }

// GetHandlersExpr reifies the current handler stack as a value.
type GetHandlersExpr struct{}

func (GetHandlersExpr) Tag() Tag { return TagGetHandlers }

// GetHandlers constructs a reflection node returning the handler stack.
func GetHandlers() DoExpr { return GetHandlersExpr{} }

// GetCallStackExpr reifies aggregated frame metadata across segments.
type GetCallStackExpr struct{}

func (GetCallStackExpr) Tag() Tag { return TagGetCallStack }

// GetCallStack constructs a reflection node returning call-stack metadata.
func GetCallStack() DoExpr { return GetCallStackExpr{} }

// GetTracebackExpr reifies the parent chain of K as an ordered hop list.
type GetTracebackExpr struct{ K *Continuation }

func (GetTracebackExpr) Tag() Tag { return TagGetTraceback }

// GetTraceback constructs a reflection node returning K's traceback.
func GetTraceback(k *Continuation) DoExpr {
	if k == nil {
		boundaryPanic("GetTraceback requires a non-nil continuation")
	}
	return GetTracebackExpr{K: k}
}

// callerMeta captures the source location of the caller of the public
// constructor that invokes it directly (skip=2: past callerMeta itself
// and past that constructor), grounded on wudi-hey's runtime/error.go use
// of runtime.Caller to attribute host-visible errors to Go call sites.
func callerMeta() CallMetadata {
	pc, file, line, ok := runtime.Caller(2)
	if !ok {
		return CallMetadata{}
	}
	name := ""
	if fn := runtime.FuncForPC(pc); fn != nil {
		name = fn.Name()
	}
	return CallMetadata{FuncName: name, SourceFile: file, SourceLine: line}
}

// withMeta is implemented by DoExpr nodes that carry a constructor-time
// CallMetadata, letting metaOf recover it without a type switch over every
// concrete node kind.
type withMeta interface{ meta() CallMetadata }

// metaOf returns e's constructor-site metadata, or a zero CallMetadata for
// node kinds that don't carry one.
func metaOf(e DoExpr) CallMetadata {
	if m, ok := e.(withMeta); ok {
		return m.meta()
	}
	return CallMetadata{}
}

// classify is the IR boundary classifier. It accepts a DoExpr at any
// boundary (top-level Run, a handler's return value, the value supplied
// to a continuation) and rejects anything that is not a DoExpr — raw
// foreign generators, bare callables, nil, and bare effect payloads not
// wrapped in Perform all produce a BoundaryError.
func classify(v any) (DoExpr, error) {
	expr, ok := v.(DoExpr)
	if !ok {
		return nil, &Error{
			Kind:  BoundaryError,
			Value: v,
			Hint:  "expected a DoExpr; wrap bare values in Pure and bare effects in Perform",
		}
	}
	return expr, nil
}
