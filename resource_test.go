// Copyright (c) 2026 The effectvm Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package effectvm

import "testing"

func TestBracketSuccess(t *testing.T) {
	var acquired, released bool
	acquire := FlatMapNode(Pure(struct{}{}), func(any) DoExpr {
		acquired = true
		return Pure("resource")
	})
	prog := WithHandler(NewResultHandler(), Bracket(
		acquire,
		func(resource any) DoExpr {
			released = true
			return Pure(struct{}{})
		},
		func(resource any) DoExpr {
			return Pure(7)
		},
	))

	res := Run(prog, Options{})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	either := res.Value.(Either[any, any])
	v, ok := either.GetRight()
	if !ok || v != 7 {
		t.Fatalf("got %v, want Right(7)", res.Value)
	}
	if !acquired || !released {
		t.Fatalf("acquired=%v released=%v", acquired, released)
	}
}

func TestBracketReleasesOnThrow(t *testing.T) {
	var released bool
	prog := WithHandler(NewResultHandler(), Bracket(
		Pure("resource"),
		func(resource any) DoExpr {
			released = true
			return Pure(struct{}{})
		},
		func(resource any) DoExpr {
			return Perform(Throw{Err: "boom"})
		},
	))

	res := Run(prog, Options{})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	either := res.Value.(Either[any, any])
	e, ok := either.GetLeft()
	if !ok || e != "boom" {
		t.Fatalf("got %v, want Left(boom)", res.Value)
	}
	if !released {
		t.Fatal("release must run even when use throws")
	}
}

func TestOnErrorRunsCleanupThenReraises(t *testing.T) {
	var cleaned bool
	prog := WithHandler(NewResultHandler(), Perform(Safe{Body: OnError(
		Perform(Throw{Err: "bad"}),
		func(err any) DoExpr {
			cleaned = true
			return Pure(struct{}{})
		},
	)}))

	res := Run(prog, Options{})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	either := res.Value.(Either[any, any])
	e, ok := either.GetLeft()
	if !ok || e != "bad" {
		t.Fatalf("got %v, want Left(bad)", res.Value)
	}
	if !cleaned {
		t.Fatal("cleanup did not run")
	}
}

func TestOnErrorSkipsCleanupOnSuccess(t *testing.T) {
	cleaned := false
	prog := WithHandler(NewResultHandler(), Perform(Safe{Body: OnError(
		Pure(3),
		func(err any) DoExpr {
			cleaned = true
			return Pure(struct{}{})
		},
	)}))

	res := Run(prog, Options{})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	either := res.Value.(Either[any, any])
	v, ok := either.GetRight()
	if !ok || v != 3 {
		t.Fatalf("got %v, want Right(3)", res.Value)
	}
	if cleaned {
		t.Fatal("cleanup must not run on success")
	}
}
