// Copyright (c) 2026 The effectvm Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hostjs

import (
	"testing"

	"github.com/dop251/goja"

	"github.com/efflang/effectvm"
)

func TestInvokeCallsJSFunctionAndWrapsResultInPure(t *testing.T) {
	rt := New()
	v, err := rt.RunScript("test.js", `(function(a, b) { return a + b; })`)
	if err != nil {
		t.Fatalf("RunScript: %v", err)
	}
	callable, err := rt.WrapCallable(v)
	if err != nil {
		t.Fatalf("WrapCallable: %v", err)
	}

	expr, err := rt.Invoke(callable, []any{1, 2}, nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	res := effectvm.Run(expr, effectvm.Options{})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Value != int64(3) {
		t.Fatalf("got %v (%T), want int64(3)", res.Value, res.Value)
	}
}

func TestInvokeClassifiesPerformTaggedReturn(t *testing.T) {
	rt := New()
	v, err := rt.RunScript("test.js", `(function() { return {tag: "perform", effect: "ping"}; })`)
	if err != nil {
		t.Fatalf("RunScript: %v", err)
	}
	callable, err := rt.WrapCallable(v)
	if err != nil {
		t.Fatalf("WrapCallable: %v", err)
	}

	expr, err := rt.Invoke(callable, nil, nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	h := effectvm.NewHandler("ping", func(p any) bool {
		s, ok := p.(string)
		return ok && s == "ping"
	}, func(payload any, k *effectvm.Continuation) effectvm.DoExpr {
		return effectvm.Resume(k, "pong")
	})
	res := effectvm.Run(effectvm.WithHandler(h, expr), effectvm.Options{})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Value != "pong" {
		t.Fatalf("got %v, want pong", res.Value)
	}
}

func TestGeneratorStepsThroughYieldsToCompletion(t *testing.T) {
	rt := New()
	genFn, err := rt.RunScript("gen.js", `(function*() {
		yield {tag: "pure", value: 1};
		yield {tag: "pure", value: 2};
		return "done";
	})`)
	if err != nil {
		t.Fatalf("RunScript: %v", err)
	}
	callable, ok := goja.AssertFunction(genFn)
	if !ok {
		t.Fatal("generator function value is not callable")
	}
	genObj, err := callable(goja.Undefined())
	if err != nil {
		t.Fatalf("calling generator function: %v", err)
	}
	gen, err := rt.NewGenerator(genObj)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	expr1, done, _, err := gen.Next(nil)
	if err != nil || done {
		t.Fatalf("first Next: expr=%v done=%v err=%v", expr1, done, err)
	}
	if expr1.Tag() != effectvm.TagPure {
		t.Fatalf("got Tag %v, want TagPure", expr1.Tag())
	}

	_, done, _, err = gen.Next(nil)
	if err != nil || done {
		t.Fatalf("second Next: done=%v err=%v", done, err)
	}

	_, done, result, err := gen.Next(nil)
	if err != nil {
		t.Fatalf("third Next: %v", err)
	}
	if !done {
		t.Fatal("expected the generator to be done after its return")
	}
	if result != "done" {
		t.Fatalf("got result %v, want done", result)
	}
}
