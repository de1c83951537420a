// Copyright (c) 2026 The effectvm Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hostjs

import (
	"github.com/dop251/goja"

	"github.com/efflang/effectvm"
)

// Generator wraps one JS generator object, implementing effectvm.HostStream
// by driving its next()/throw() methods and classifying each yielded value
// as a DoExpr. Every call takes Runtime's lock for its duration only, per
// the package doc's lock-ordering rule.
type Generator struct {
	rt   *Runtime
	self goja.Value
	next goja.Callable
	throw goja.Callable
}

var _ effectvm.HostStream = (*Generator)(nil)

// Next implements effectvm.HostStream.
func (g *Generator) Next(value any) (effectvm.DoExpr, bool, any, error) {
	g.rt.mu.Lock()
	defer g.rt.mu.Unlock()
	res, err := g.next(g.self, g.rt.vm.ToValue(value))
	return g.decodeLocked(res, err)
}

// Throw implements effectvm.HostStream.
func (g *Generator) Throw(cause error) (effectvm.DoExpr, bool, any, error) {
	g.rt.mu.Lock()
	defer g.rt.mu.Unlock()
	res, err := g.throw(g.self, g.rt.vm.NewGoError(cause))
	return g.decodeLocked(res, err)
}

// decodeLocked unpacks the {value, done} iterator-result object a
// next()/throw() call returns. Must be called with rt.mu already held.
func (g *Generator) decodeLocked(res goja.Value, callErr error) (effectvm.DoExpr, bool, any, error) {
	if callErr != nil {
		return nil, false, nil, callErr
	}
	obj := res.ToObject(g.rt.vm)
	done := obj.Get("done")
	if done == nil || !done.ToBoolean() {
		value := obj.Get("value")
		expr, err := jsValueToDoExpr(g.rt.vm, value)
		if err != nil {
			return nil, false, nil, err
		}
		return expr, false, nil, nil
	}
	value := obj.Get("value")
	if value == nil {
		return nil, true, nil, nil
	}
	return nil, true, value.Export(), nil
}
