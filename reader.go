// Copyright (c) 2026 The effectvm Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package effectvm

// Reader effect operations: read-only access to an ambient, keyed
// environment threaded through a computation without being passed
// explicitly.

// Ask is the effect operation for reading the environment.
// Perform(Ask{Key: k}) resumes with the handler's current value for k,
// or Default (if HasDefault) when k is absent from the environment.
type Ask struct {
	Key        string
	Default    any
	HasDefault bool
}

// AskOr is a convenience constructor for Ask with a default value.
func AskOr(key string, def any) Ask {
	return Ask{Key: key, Default: def, HasDefault: true}
}

// Local is the effect operation for running Body under an environment
// extended by Env: keys in Env override the outer environment for Body's
// dynamic extent; keys not mentioned in Env are inherited unchanged.
type Local struct {
	Env  map[string]any
	Body DoExpr
}

// NewReaderHandler builds a handler for the Reader effect family, closing
// over the current environment map. Local installs a nested instance of
// the same handler around Body with the merged environment — Ask calls
// inside Body see it, and the outer environment is restored once Body's
// WithHandler scope ends.
func NewReaderHandler(env map[string]any) *HandlerEntry {
	cell := make(map[string]any, len(env))
	for k, v := range env {
		cell[k] = v
	}
	canHandle := func(payload any) bool {
		switch payload.(type) {
		case Ask, Local:
			return true
		default:
			return false
		}
	}
	start := func(payload any, k *Continuation) DoExpr {
		switch op := payload.(type) {
		case Ask:
			if v, ok := cell[op.Key]; ok {
				return Resume(k, v)
			}
			if op.HasDefault {
				return Resume(k, op.Default)
			}
			return Resume(k, nil)
		case Local:
			merged := make(map[string]any, len(cell)+len(op.Env))
			for k, v := range cell {
				merged[k] = v
			}
			for k, v := range op.Env {
				merged[k] = v
			}
			inner := NewReaderHandler(merged)
			return FlatMapNode(WithHandler(inner, op.Body), func(v any) DoExpr {
				return Resume(k, v)
			})
		default:
			return nil
		}
	}
	return NewHandler("reader", canHandle, start)
}
