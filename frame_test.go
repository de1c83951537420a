// Copyright (c) 2026 The effectvm Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package effectvm

import "testing"

func TestPhaseString(t *testing.T) {
	cases := map[Phase]string{
		PhaseStart:    "start",
		PhaseResume:   "resume",
		PhaseDelegate: "delegate",
		Phase(99):     "phase(?)",
	}
	for p, want := range cases {
		if got := p.String(); got != want {
			t.Errorf("Phase(%d).String() = %q, want %q", p, got, want)
		}
	}
}

func TestFrameVariantsImplementFrame(t *testing.T) {
	var frames = []Frame{
		&ProgramFrame{Expr: Pure(1)},
		&HostStreamFrame{},
		&MapFrame{Fn: func(v any) any { return v }},
		&FlatMapFrame{Fn: func(v any) DoExpr { return Pure(v) }},
		&MarkerFrame{ID: 1, HandlerIdx: 0},
		&MaskFrame{},
		&HandlerFrame{EntryIdx: 0, Phase: PhaseStart, MarkerIdx: 0},
	}
	for _, f := range frames {
		f.frame()
	}
}

func TestIRTagsAreDistinct(t *testing.T) {
	nodes := map[Tag]DoExpr{
		TagPure:       Pure(1),
		TagEffect:     EffectExpr{},
		TagPerform:    Perform(struct{}{}),
		TagMap:        MapNode(Pure(1), func(v any) any { return v }),
		TagFlatMap:    FlatMapNode(Pure(1), func(v any) DoExpr { return Pure(v) }),
		TagApply:      Apply(func() {}, nil, nil),
		TagDelegate:   Delegate(),
		TagPass:       Pass(),
		TagGetContinuation: GetContinuation(),
		TagGetHandlers:     GetHandlers(),
		TagGetCallStack:    GetCallStack(),
	}
	for tag, node := range nodes {
		if node.Tag() != tag {
			t.Errorf("node %#v: Tag() = %v, want %v", node, node.Tag(), tag)
		}
	}
}

func TestClassifyRejectsNonDoExpr(t *testing.T) {
	_, err := classify(42)
	if err == nil {
		t.Fatal("expected a BoundaryError for a bare value")
	}
	e := err.(*Error)
	if e.Kind != BoundaryError {
		t.Fatalf("got Kind %v, want BoundaryError", e.Kind)
	}
}

func TestClassifyAcceptsDoExpr(t *testing.T) {
	expr, err := classify(Pure(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if expr.Tag() != TagPure {
		t.Fatalf("got Tag %v, want TagPure", expr.Tag())
	}
}
