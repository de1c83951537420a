// Copyright (c) 2026 The effectvm Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package effectvm

// TracebackHop is one link of a continuation's Delegate chain: the
// handler that declined (or observed, for Pass) the effect and handed it
// to the next one out.
type TracebackHop struct {
	Handler HandlerIdentity
}

// buildTraceback walks k's parent chain (one hop per Delegate/Pass),
// returning hops ordered from the innermost handler that first saw the
// effect to the outermost.
func buildTraceback(k *Continuation) []TracebackHop {
	var hops []TracebackHop
	for cur := k; cur != nil && cur.parent != nil; cur = cur.parent {
		hops = append(hops, TracebackHop{Handler: cur.delegatedBy})
	}
	return hops
}
