// Copyright (c) 2026 The effectvm Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package effectvm

import "testing"

func TestRunPure(t *testing.T) {
	res := Run(Pure(42), Options{})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Value != 42 {
		t.Fatalf("got %v, want 42", res.Value)
	}
}

func TestRunMap(t *testing.T) {
	prog := MapNode(Pure(21), func(v any) any { return v.(int) * 2 })
	res := Run(prog, Options{})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Value != 42 {
		t.Fatalf("got %v, want 42", res.Value)
	}
}

func TestRunFlatMap(t *testing.T) {
	prog := FlatMapNode(Pure(1), func(v any) DoExpr {
		return FlatMapNode(Pure(v.(int)+1), func(v any) DoExpr {
			return Pure(v.(int) + 1)
		})
	})
	res := Run(prog, Options{})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Value != 3 {
		t.Fatalf("got %v, want 3", res.Value)
	}
}

func TestRunApplyGoFunc(t *testing.T) {
	fn := func(args []any, kwargs map[string]any) DoExpr {
		return Pure(args[0].(int) + args[1].(int))
	}
	res := Run(Apply(fn, []any{1, 2}, nil), Options{})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Value != 3 {
		t.Fatalf("got %v, want 3", res.Value)
	}
}

func TestRunApplyRejectsBadCallable(t *testing.T) {
	res := Run(Apply("not a func", nil, nil), Options{})
	if res.Err == nil {
		t.Fatal("expected an error")
	}
	if res.Err.Kind != BoundaryError {
		t.Fatalf("got Kind %v, want BoundaryError", res.Err.Kind)
	}
}

func TestRunUnhandledEffectFails(t *testing.T) {
	res := Run(Perform(struct{ tag string }{"nope"}), Options{})
	if res.Err == nil {
		t.Fatal("expected an UnhandledEffectErr")
	}
	if res.Err.Kind != UnhandledEffectErr {
		t.Fatalf("got Kind %v, want UnhandledEffectErr", res.Err.Kind)
	}
}

func TestGetCallStackAndHandlers(t *testing.T) {
	h := NewHandler("probe", func(any) bool { return true }, func(payload any, k *Continuation) DoExpr {
		return Resume(k, nil)
	})
	prog := WithHandler(h, FlatMapNode(GetHandlers(), func(ids any) DoExpr {
		list := ids.([]HandlerIdentity)
		if len(list) == 0 {
			t.Fatal("expected at least one installed handler")
		}
		return FlatMapNode(GetCallStack(), func(stack any) DoExpr {
			frames := stack.([]CallMetadata)
			if len(frames) == 0 {
				t.Fatal("expected GetCallStack to report at least one frame")
			}
			for _, f := range frames {
				if f.SourceFile == "" || f.SourceLine == 0 {
					t.Fatalf("frame missing source location: %+v", f)
				}
			}
			return Pure(len(list))
		})
	}))
	res := Run(prog, Options{})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
}

func TestGetContinuationOutsideHandlerIsBoundaryError(t *testing.T) {
	res := Run(GetContinuation(), Options{})
	if res.Err == nil || res.Err.Kind != BoundaryError {
		t.Fatalf("got %+v, want BoundaryError", res.Err)
	}
}
