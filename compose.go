// Copyright (c) 2026 The effectvm Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package effectvm

// WithHandlers installs handlers around inner in the order given —
// handlers[0] outermost, handlers[len-1] innermost — so that effects
// performed in inner are resolved against whichever handler's CanHandle
// matches first, searching innermost-out exactly as a single WithHandler
// would.
//
// Composing multiple effect families here needs no dedicated combined
// dispatch type the way a single-handler-per-run design does: the VM's
// handler chain already tries each installed handler's CanHandle in turn,
// so nesting WithHandlers(body, reader, state, writer) behaves exactly
// like three nested WithHandler calls, each independent of the others'
// concerns.
func WithHandlers(inner DoExpr, handlers ...*HandlerEntry) DoExpr {
	expr := inner
	for i := len(handlers) - 1; i >= 0; i-- {
		expr = WithHandler(handlers[i], expr)
	}
	return expr
}
