// Copyright (c) 2026 The effectvm Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package effectvm

// Resource safety primitives for exception-safe resource management,
// built on top of the Result effect family (Safe/Throw) rather than a
// bespoke error-context type.

// Bracket provides exception-safe resource acquisition and release: it
// follows the acquire → use → release pattern, where release always runs,
// even if use raises an error via Throw. Resolves to Right(value) or
// Left(err).
func Bracket(acquire DoExpr, release func(resource any) DoExpr, use func(resource any) DoExpr) DoExpr {
	return FlatMapNode(acquire, func(resource any) DoExpr {
		return FlatMapNode(Perform(Safe{Body: use(resource)}), func(outcome any) DoExpr {
			either := outcome.(Either[any, any])
			return FlatMapNode(release(resource), func(any) DoExpr {
				return Pure(either)
			})
		})
	})
}

// OnError runs cleanup only if body performs Throw, then re-raises the
// same error once cleanup finishes — cleanup never suppresses the
// failure, it only gets a chance to run before it propagates further.
func OnError(body DoExpr, cleanup func(err any) DoExpr) DoExpr {
	return FlatMapNode(Perform(Safe{Body: body}), func(outcome any) DoExpr {
		either := outcome.(Either[any, any])
		if either.IsLeft() {
			errVal, _ := either.GetLeft()
			return FlatMapNode(cleanup(errVal), func(any) DoExpr {
				return Perform(Throw{Err: errVal})
			})
		}
		v, _ := either.GetRight()
		return Pure(v)
	})
}
