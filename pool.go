// Copyright (c) 2026 The effectvm Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package effectvm

import "sync"

// Pools for the composition frames pushed on every Map/FlatMap step and
// discarded exactly once, in stepDelivering, after their single use —
// the two frame kinds in this VM with that churn-per-step shape.

var mapFramePool = sync.Pool{New: func() any { return new(MapFrame) }}
var flatMapFramePool = sync.Pool{New: func() any { return new(FlatMapFrame) }}

// acquireMapFrame returns a pooled MapFrame with Fn and Meta set.
func acquireMapFrame(fn func(any) any, meta CallMetadata) *MapFrame {
	f := mapFramePool.Get().(*MapFrame)
	f.Fn = fn
	f.Meta = meta
	return f
}

// releaseMapFrame zeroes and returns f to the pool.
func releaseMapFrame(f *MapFrame) {
	f.Fn = nil
	f.Meta = CallMetadata{}
	mapFramePool.Put(f)
}

// acquireFlatMapFrame returns a pooled FlatMapFrame with Fn and Meta set.
func acquireFlatMapFrame(fn func(any) DoExpr, meta CallMetadata) *FlatMapFrame {
	f := flatMapFramePool.Get().(*FlatMapFrame)
	f.Fn = fn
	f.Meta = meta
	return f
}

// releaseFlatMapFrame zeroes and returns f to the pool.
func releaseFlatMapFrame(f *FlatMapFrame) {
	f.Fn = nil
	f.Meta = CallMetadata{}
	flatMapFramePool.Put(f)
}
