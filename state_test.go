// Copyright (c) 2026 The effectvm Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package effectvm

import "testing"

func TestStateGetPut(t *testing.T) {
	entry, current := NewStateHandler(map[string]any{"n": 10})
	prog := WithHandler(entry, FlatMapNode(Perform(Get{Key: "n"}), func(s any) DoExpr {
		return FlatMapNode(Perform(Put{Key: "n", Value: s.(int) + 1}), func(any) DoExpr {
			return Perform(Get{Key: "n"})
		})
	}))

	res := Run(prog, Options{})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Value != 11 {
		t.Fatalf("got %v, want 11", res.Value)
	}
	if current()["n"] != 11 {
		t.Fatalf("current()[\"n\"] = %v, want 11", current()["n"])
	}
}

func TestStateModifyResumesWithOldValue(t *testing.T) {
	entry, current := NewStateHandler(map[string]any{"n": 5})
	prog := WithHandler(entry, Perform(Modify{Key: "n", Fn: func(v any) any { return v.(int) * 2 }}))

	res := Run(prog, Options{})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Value != 5 {
		t.Fatalf("Modify should resume with the old value: got %v, want 5", res.Value)
	}
	if current()["n"] != 10 {
		t.Fatalf("state should be updated to 10, got %v", current()["n"])
	}
}

func TestStateKeysAreIndependentCells(t *testing.T) {
	entry, current := NewStateHandler(nil)
	prog := WithHandler(entry, FlatMapNode(Perform(Put{Key: "a", Value: 1}), func(any) DoExpr {
		return FlatMapNode(Perform(Put{Key: "b", Value: 2}), func(any) DoExpr {
			return Perform(Get{Key: "a"})
		})
	}))

	res := Run(prog, Options{})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Value != 1 {
		t.Fatalf("got %v, want 1", res.Value)
	}
	store := current()
	if store["a"] != 1 || store["b"] != 2 {
		t.Fatalf("got store %+v, want a=1 b=2", store)
	}
}

// TestStateCounterScenario is the concrete scenario from the entry API's
// contract: Put a key to zero, Modify it, then Get it back.
func TestStateCounterScenario(t *testing.T) {
	entry, current := NewStateHandler(nil)
	prog := WithHandler(entry, FlatMapNode(Perform(Put{Key: "c", Value: 0}), func(any) DoExpr {
		return FlatMapNode(Perform(Modify{Key: "c", Fn: func(v any) any { return v.(int) + 1 }}), func(any) DoExpr {
			return Perform(Get{Key: "c"})
		})
	}))

	res := Run(prog, Options{})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Value != 1 {
		t.Fatalf("got %v, want 1", res.Value)
	}
	if current()["c"] != 1 {
		t.Fatalf("raw_store[\"c\"] = %v, want 1", current()["c"])
	}
}

func TestAtomicGetMatchesGet(t *testing.T) {
	entry, _ := NewStateHandler(map[string]any{"n": 7})
	prog := WithHandler(entry, Perform(AtomicGet{Key: "n"}))

	res := Run(prog, Options{})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Value != 7 {
		t.Fatalf("got %v, want 7", res.Value)
	}
}

func TestAtomicUpdateResumesWithNewValue(t *testing.T) {
	entry, current := NewStateHandler(map[string]any{"n": 5})
	prog := WithHandler(entry, Perform(AtomicUpdate{Key: "n", Fn: func(v any) any { return v.(int) * 2 }}))

	res := Run(prog, Options{})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Value != 10 {
		t.Fatalf("AtomicUpdate should resume with the new value: got %v, want 10", res.Value)
	}
	if current()["n"] != 10 {
		t.Fatalf("state should be updated to 10, got %v", current()["n"])
	}
}
