// Copyright (c) 2026 The effectvm Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package effectvm

import "testing"

func TestReaderAsk(t *testing.T) {
	env := map[string]any{"debug": true, "port": 8080}
	prog := WithHandler(NewReaderHandler(env), Perform(Ask{Key: "port"}))

	res := Run(prog, Options{})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Value != 8080 {
		t.Fatalf("got %v, want 8080", res.Value)
	}
}

func TestReaderAskMissingKeyWithNoDefaultResumesNil(t *testing.T) {
	prog := WithHandler(NewReaderHandler(nil), Perform(Ask{Key: "missing"}))

	res := Run(prog, Options{})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Value != nil {
		t.Fatalf("got %v, want nil", res.Value)
	}
}

func TestReaderAskMissingKeyUsesDefault(t *testing.T) {
	prog := WithHandler(NewReaderHandler(nil), Perform(AskOr("region", "local")))

	res := Run(prog, Options{})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Value != "local" {
		t.Fatalf("got %v, want local", res.Value)
	}
}

func TestReaderLocalScopesTheModification(t *testing.T) {
	prog := WithHandler(NewReaderHandler(map[string]any{"r": "local"}), FlatMapNode(
		Perform(Local{
			Env:  map[string]any{"r": "us-west"},
			Body: Perform(Ask{Key: "r"}),
		}),
		func(inner any) DoExpr {
			return FlatMapNode(Perform(Ask{Key: "r"}), func(outer any) DoExpr {
				return Pure([2]any{inner, outer})
			})
		}))

	res := Run(prog, Options{})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	pair := res.Value.([2]any)
	if pair[0] != "us-west" {
		t.Fatalf("inner Ask = %v, want us-west", pair[0])
	}
	if pair[1] != "local" {
		t.Fatalf("outer Ask = %v, want local (Local must not leak out)", pair[1])
	}
}

func TestReaderLocalInheritsUnmentionedKeys(t *testing.T) {
	prog := WithHandler(NewReaderHandler(map[string]any{"r": "local", "stage": "prod"}), FlatMapNode(
		Perform(Local{
			Env:  map[string]any{"r": "us-west"},
			Body: Perform(Ask{Key: "stage"}),
		}),
		func(v any) DoExpr { return Pure(v) },
	))

	res := Run(prog, Options{})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Value != "prod" {
		t.Fatalf("got %v, want prod (Local must inherit keys it doesn't override)", res.Value)
	}
}
