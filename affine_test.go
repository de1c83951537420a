// Copyright (c) 2026 The effectvm Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package effectvm

import (
	"sync"
	"testing"
)

func TestOneShotGuardFirstClaimWins(t *testing.T) {
	g := &oneShotGuard{}
	if g.claimed() {
		t.Fatal("fresh guard must not be claimed")
	}
	if !g.claim() {
		t.Fatal("first claim must succeed")
	}
	if g.claim() {
		t.Fatal("second claim must fail")
	}
	if !g.claimed() {
		t.Fatal("guard must report claimed after a successful claim")
	}
}

func TestOneShotGuardConcurrentClaimsExactlyOneWinner(t *testing.T) {
	g := &oneShotGuard{}
	const n = 64
	var wg sync.WaitGroup
	var wins int32
	var mu sync.Mutex
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if g.claim() {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("got %d winners, want exactly 1", wins)
	}
}

func TestResumeTwiceFailsWithContinuationAlreadyUsed(t *testing.T) {
	var saved *Continuation
	h := NewHandler("capture", func(any) bool { return true }, func(payload any, k *Continuation) DoExpr {
		saved = k
		return Resume(k, 1)
	})

	res := Run(WithHandler(h, Perform(struct{}{})), Options{})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if saved == nil {
		t.Fatal("handler never captured a continuation")
	}
	if saved.claim() {
		t.Fatal("continuation should already be claimed by the Resume above")
	}
}
