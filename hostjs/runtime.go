// Copyright (c) 2026 The effectvm Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package hostjs implements the host-language boundary (effectvm.HostRuntime
// and effectvm.HostStream) over a single goja.Runtime, the way
// ethereum-go-ethereum/internal/jsre wraps one goja.Runtime behind a
// mutex-guarded API: goja values are not safe for concurrent use, so every
// crossing of the FFI boundary takes Runtime's lock for the duration of one
// call and releases it before returning control to the VM step machine.
//
// A yielded JS value crosses into a DoExpr via a small convention: an
// object shaped {tag: "perform", effect: ...} or {tag: "pure", value: ...}.
// An object with no tag resolves to Pure of its value field, an object
// with any other tag is an error, and a non-object value resolves to Pure
// of the value itself.
package hostjs

import (
	"fmt"
	"sync"

	"github.com/dop251/goja"

	"github.com/efflang/effectvm"
)

// Runtime wraps a single goja.Runtime behind a mutex, implementing
// effectvm.HostRuntime. It is the one point of contact between effectvm
// and goja; Generator (generator.go) shares the same mutex so a Next/Throw
// call and an Invoke call from within it never race.
type Runtime struct {
	mu sync.Mutex
	vm *goja.Runtime
}

// New constructs a fresh goja.Runtime wrapped for FFI use.
func New() *Runtime {
	return &Runtime{vm: goja.New()}
}

// RunScript compiles and runs src under name, returning whatever value the
// script evaluates to. Used to load the JS source that defines generator
// functions and callables before they are handed to the VM.
func (r *Runtime) RunScript(name, src string) (goja.Value, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.vm.RunScript(name, src)
}

// Set binds a Go value into the global JS scope under name, so script code
// can call back into Go (e.g. a logging or host-callback shim).
func (r *Runtime) Set(name string, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.vm.Set(name, value)
}

// WrapCallable takes a JS function value and returns it as an
// effectvm.HostCallable reachable from Apply.
func (r *Runtime) WrapCallable(fn goja.Value) (effectvm.HostCallable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	callable, ok := goja.AssertFunction(fn)
	if !ok {
		return nil, fmt.Errorf("hostjs: value is not a callable JS function")
	}
	return effectvm.ForeignFunc{Handle: callable}, nil
}

// NewGenerator takes a JS generator object (the result of calling a
// generator function) and wraps it as an effectvm.HostStream.
func (r *Runtime) NewGenerator(genObj goja.Value) (*Generator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	obj := genObj.ToObject(r.vm)
	next, ok := goja.AssertFunction(obj.Get("next"))
	if !ok {
		return nil, fmt.Errorf("hostjs: generator object has no callable next()")
	}
	throw, ok := goja.AssertFunction(obj.Get("throw"))
	if !ok {
		return nil, fmt.Errorf("hostjs: generator object has no callable throw()")
	}
	return &Generator{rt: r, self: genObj, next: next, throw: throw}, nil
}

// Invoke implements effectvm.HostRuntime: it type-asserts fn back to the
// goja.Callable ForeignFunc.Handle carries, calls it under the runtime
// lock, and classifies the returned JS value as a DoExpr.
func (r *Runtime) Invoke(fn effectvm.HostCallable, args []any, kwargs map[string]any) (effectvm.DoExpr, error) {
	ff, ok := fn.(effectvm.ForeignFunc)
	if !ok {
		return nil, fmt.Errorf("hostjs: Invoke called with a HostCallable not produced by this runtime (%T)", fn)
	}
	callable, ok := ff.Handle.(goja.Callable)
	if !ok {
		return nil, fmt.Errorf("hostjs: ForeignFunc.Handle is not a goja.Callable (%T)", ff.Handle)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	jsArgs := make([]goja.Value, 0, len(args)+1)
	for _, a := range args {
		jsArgs = append(jsArgs, r.vm.ToValue(a))
	}
	if len(kwargs) > 0 {
		obj := r.vm.NewObject()
		for k, v := range kwargs {
			if err := obj.Set(k, r.vm.ToValue(v)); err != nil {
				return nil, fmt.Errorf("hostjs: setting kwarg %q: %w", k, err)
			}
		}
		jsArgs = append(jsArgs, obj)
	}

	result, err := callable(goja.Undefined(), jsArgs...)
	if err != nil {
		return nil, err
	}
	return jsValueToDoExpr(r.vm, result)
}

// jsValueToDoExpr classifies a JS value under the yield convention: an
// object shaped {tag, ...} selects a DoExpr constructor (no tag counts as
// "pure", an unknown tag is an error); undefined/null become Pure(nil) and
// any non-object value is wrapped verbatim in Pure.
func jsValueToDoExpr(vm *goja.Runtime, v goja.Value) (effectvm.DoExpr, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return effectvm.Pure(nil), nil
	}
	m, ok := v.Export().(map[string]interface{})
	if !ok {
		return effectvm.Pure(v.Export()), nil
	}
	tag, _ := m["tag"].(string)
	switch tag {
	case "perform":
		return effectvm.Perform(m["effect"]), nil
	case "pure", "":
		return effectvm.Pure(m["value"]), nil
	default:
		return nil, fmt.Errorf("hostjs: unrecognized yield tag %q", tag)
	}
}
