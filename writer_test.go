// Copyright (c) 2026 The effectvm Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package effectvm

import (
	"slices"
	"testing"
)

func TestWriterTell(t *testing.T) {
	entry, output := NewWriterHandler(nil)
	prog := WithHandler(entry, FlatMapNode(Perform(Tell{Value: "hello"}), func(any) DoExpr {
		return FlatMapNode(Perform(Tell{Value: "world"}), func(any) DoExpr {
			return Pure(42)
		})
	}))

	res := Run(prog, Options{})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Value != 42 {
		t.Fatalf("got %v, want 42", res.Value)
	}
	if !slices.Equal(output(), []any{"hello", "world"}) {
		t.Fatalf("output() = %v", output())
	}
}

func TestWriterListenIsolatesOutput(t *testing.T) {
	entry, output := NewWriterHandler(nil)
	prog := WithHandler(entry, FlatMapNode(Perform(Tell{Value: "outer"}), func(any) DoExpr {
		return Perform(Listen{Body: FlatMapNode(Perform(Tell{Value: "inner"}), func(any) DoExpr {
			return Pure("done")
		})})
	}))

	res := Run(prog, Options{})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	pair := res.Value.(Pair)
	if pair.Value != "done" {
		t.Fatalf("Value = %v, want done", pair.Value)
	}
	if !slices.Equal(pair.Output, []any{"inner"}) {
		t.Fatalf("Listen output = %v, want [inner]", pair.Output)
	}
	if !slices.Equal(output(), []any{"outer", "inner"}) {
		t.Fatalf("total output = %v", output())
	}
}

func TestWriterCensorRewritesOutput(t *testing.T) {
	entry, output := NewWriterHandler(nil)
	prog := WithHandler(entry, Perform(Censor{
		Fn: func(w []any) []any {
			out := make([]any, len(w))
			for i, v := range w {
				out[i] = v.(string) + "!"
			}
			return out
		},
		Body: FlatMapNode(Perform(Tell{Value: "a"}), func(any) DoExpr {
			return FlatMapNode(Perform(Tell{Value: "b"}), func(any) DoExpr {
				return Pure(nil)
			})
		}),
	}))

	res := Run(prog, Options{})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if !slices.Equal(output(), []any{"a!", "b!"}) {
		t.Fatalf("output() = %v", output())
	}
}
