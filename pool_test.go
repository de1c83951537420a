// Copyright (c) 2026 The effectvm Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package effectvm

import "testing"

func TestAcquireMapFrameSetsFn(t *testing.T) {
	called := false
	f := acquireMapFrame(func(v any) any {
		called = true
		return v
	}, CallMetadata{})
	defer releaseMapFrame(f)

	if f.Fn == nil {
		t.Fatal("Fn not set")
	}
	f.Fn(1)
	if !called {
		t.Fatal("Fn not callable")
	}
}

func TestReleaseMapFrameClearsFn(t *testing.T) {
	f := acquireMapFrame(func(v any) any { return v }, CallMetadata{})
	releaseMapFrame(f)
	if f.Fn != nil {
		t.Fatal("Fn not cleared on release")
	}
}

func TestMapFramePoolReuse(t *testing.T) {
	f1 := acquireMapFrame(func(v any) any { return v }, CallMetadata{})
	releaseMapFrame(f1)
	f2 := acquireMapFrame(func(v any) any { return v }, CallMetadata{})
	if f2.Fn == nil {
		t.Fatal("reacquired frame missing Fn")
	}
}

func TestAcquireFlatMapFrameSetsFn(t *testing.T) {
	f := acquireFlatMapFrame(func(v any) DoExpr { return Pure(v) }, CallMetadata{})
	defer releaseFlatMapFrame(f)
	if f.Fn == nil {
		t.Fatal("Fn not set")
	}
}

func TestReleaseFlatMapFrameClearsFn(t *testing.T) {
	f := acquireFlatMapFrame(func(v any) DoExpr { return Pure(v) }, CallMetadata{})
	releaseFlatMapFrame(f)
	if f.Fn != nil {
		t.Fatal("Fn not cleared on release")
	}
}
