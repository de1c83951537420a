// Copyright (c) 2026 The effectvm Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package effectvm

import (
	"context"
	"log/slog"
)

// Writer effect operations: accumulating output (logging, tracing)
// alongside a computation's ordinary result.

// Tell is the effect operation for appending output. Perform(Tell{Value:
// w}) appends w to the accumulated output and resumes with struct{}{}.
type Tell struct{ Value any }

// Log is Tell fused with the ambient slog logger: it appends Msg/Args to
// the accumulated output exactly like Tell, and additionally writes
// through to the handler's *slog.Logger at Level.
type Log struct {
	Level slog.Level
	Msg   string
	Args  []any
}

// Listen runs Body and resumes with a Pair of its result and whatever it
// (and nothing outside it) wrote during its run.
type Listen struct{ Body DoExpr }

// Censor runs Body and resumes with its result, after replacing whatever
// it wrote with Fn's transformation of that slice.
type Censor struct {
	Fn   func([]any) []any
	Body DoExpr
}

// Pair holds two values, used as the result of Listen.
type Pair struct {
	Value  any
	Output []any
}

// NewWriterHandler builds a handler for the Writer effect family, closing
// over a mutable output slice. log may be nil, in which case Log behaves
// exactly like Tell. Output returns the accumulated slice at any point.
func NewWriterHandler(log *slog.Logger) (entry *HandlerEntry, output func() []any) {
	var out []any
	var h *HandlerEntry
	canHandle := func(payload any) bool {
		switch payload.(type) {
		case Tell, Log, Listen, Censor:
			return true
		default:
			return false
		}
	}
	start := func(payload any, k *Continuation) DoExpr {
		switch op := payload.(type) {
		case Tell:
			out = append(out, op.Value)
			return Resume(k, struct{}{})

		case Log:
			out = append(out, op.Msg)
			if log != nil {
				log.Log(context.Background(), op.Level, op.Msg, op.Args...)
			}
			return Resume(k, struct{}{})

		case Listen:
			startLen := len(out)
			return FlatMapNode(WithHandler(h, op.Body), func(v any) DoExpr {
				written := append([]any(nil), out[startLen:]...)
				return Resume(k, Pair{Value: v, Output: written})
			})

		case Censor:
			startLen := len(out)
			return FlatMapNode(WithHandler(h, op.Body), func(v any) DoExpr {
				newOut := op.Fn(append([]any(nil), out[startLen:]...))
				out = append(out[:startLen], newOut...)
				return Resume(k, v)
			})

		default:
			return nil
		}
	}
	h = NewHandler("writer", canHandle, start)
	return h, func() []any { return out }
}
