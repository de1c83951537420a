// Copyright (c) 2026 The effectvm Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package effectvm

// State effect operations: mutable, keyed state threaded through a
// computation without being passed explicitly. Each key names an
// independent cell in the same store; a key performed before any Put
// reads as nil.

// Get is the effect operation for reading state. Perform(Get{Key: k})
// resumes with the current value stored at k.
type Get struct{ Key string }

// Put is the effect operation for writing state. Perform(Put{Key: k,
// Value: v}) replaces the value stored at k and resumes with struct{}{}.
type Put struct {
	Key   string
	Value any
}

// Modify is the effect operation for updating state in place.
// Perform(Modify{Key: k, Fn: f}) replaces the value at k with Fn(old) and
// resumes with the OLD value — the new value is available by performing
// Get(k) again.
type Modify struct {
	Key string
	Fn  func(any) any
}

// AtomicGet is functionally identical to Get: under this VM's
// single-threaded step machine every operation is already atomic with
// respect to other effects, so it exists as a distinct named operation
// for API symmetry with AtomicUpdate rather than because its behavior
// differs from Get.
type AtomicGet struct{ Key string }

// AtomicUpdate replaces the value at Key with Fn(old) and resumes with
// the NEW value, the complement of Modify's old-value resume — read the
// updated result back directly instead of issuing a follow-up Get.
type AtomicUpdate struct {
	Key string
	Fn  func(any) any
}

// NewStateHandler builds a handler for the State effect family, closing
// over a mutable map holding the current store. Current returns a copy
// of the store's live contents at any point — including after the run
// completes, for callers that want the final state alongside the
// result (the entry API's raw_store).
func NewStateHandler(initial map[string]any) (entry *HandlerEntry, current func() map[string]any) {
	store := make(map[string]any, len(initial))
	for k, v := range initial {
		store[k] = v
	}
	canHandle := func(payload any) bool {
		switch payload.(type) {
		case Get, Put, Modify, AtomicGet, AtomicUpdate:
			return true
		default:
			return false
		}
	}
	start := func(payload any, k *Continuation) DoExpr {
		switch op := payload.(type) {
		case Get:
			return Resume(k, store[op.Key])
		case Put:
			store[op.Key] = op.Value
			return Resume(k, struct{}{})
		case Modify:
			old := store[op.Key]
			store[op.Key] = op.Fn(old)
			return Resume(k, old)
		case AtomicGet:
			return Resume(k, store[op.Key])
		case AtomicUpdate:
			updated := op.Fn(store[op.Key])
			store[op.Key] = updated
			return Resume(k, updated)
		default:
			return nil
		}
	}
	entry = NewHandler("state", canHandle, start)
	current = func() map[string]any {
		out := make(map[string]any, len(store))
		for k, v := range store {
			out[k] = v
		}
		return out
	}
	return entry, current
}
