package testkit

import (
	"bytes"
	"context"
	"testing"
	"time"

	"xdao.co/committee/contract"
	"xdao.co/committee/scheduler"
)

// Harness is a scheduler.Backend under test plus the hooks the conformance
// suite needs to drive it.
type Harness struct {
	Backend scheduler.Backend

	// Contract is a canonical contract id the backend knows and announces to watchers.
	Contract []byte

	// Advance triggers a change that emits at least one committee of Contract
	// to every attached watcher.
	Advance func()

	// WaitWatchers blocks until n watchers are attached to the backend.
	WaitWatchers func(ctx context.Context, n int) bool
}

// NewHarness constructs a fresh, isolated harness for a test.
type NewHarness func(t *testing.T) Harness

const conformanceTimeout = 5 * time.Second

func RunBackendConformance(t *testing.T, newHarness NewHarness) {
	t.Helper()

	t.Run("GetCommitteesStable", func(t *testing.T) {
		h := newHarness(t)
		ctx, cancel := context.WithTimeout(context.Background(), conformanceTimeout)
		defer cancel()

		a, err := h.Backend.GetCommittees(ctx, contract.New(h.Contract))
		if err != nil {
			t.Fatalf("GetCommittees failed: %v", err)
		}
		if len(a) == 0 {
			t.Fatalf("expected at least one committee")
		}
		b, err := h.Backend.GetCommittees(ctx, contract.New(h.Contract))
		if err != nil {
			t.Fatalf("GetCommittees(2) failed: %v", err)
		}
		if len(a) != len(b) {
			t.Fatalf("committee count changed without an epoch change: %d vs %d", len(a), len(b))
		}
		for i := range a {
			if a[i].Kind != b[i].Kind || a[i].ValidFor != b[i].ValidFor {
				t.Fatalf("committee %d changed without an epoch change", i)
			}
			if a[i].Contract == nil || !bytes.Equal(a[i].Contract.ID, h.Contract) {
				t.Fatalf("committee %d does not name the requested contract", i)
			}
		}
	})

	t.Run("GetCommitteesRejectsMalformedID", func(t *testing.T) {
		h := newHarness(t)
		ctx, cancel := context.WithTimeout(context.Background(), conformanceTimeout)
		defer cancel()

		if _, err := h.Backend.GetCommittees(ctx, contract.New([]byte("short"))); err == nil {
			t.Fatalf("expected error for malformed contract id")
		}
	})

	t.Run("WatchSeesFutureChanges", func(t *testing.T) {
		h := newHarness(t)
		ctx, cancel := context.WithTimeout(context.Background(), conformanceTimeout)
		defer cancel()

		sub, err := h.Backend.WatchCommittees(ctx)
		if err != nil {
			t.Fatalf("WatchCommittees failed: %v", err)
		}
		defer sub.Close()
		if !h.WaitWatchers(ctx, 1) {
			t.Fatalf("watcher never attached")
		}

		h.Advance()
		select {
		case c, ok := <-sub.Committees():
			if !ok {
				t.Fatalf("feed ended before any update: %v", sub.Err())
			}
			if c == nil || c.Contract == nil {
				t.Fatalf("update without contract")
			}
		case <-ctx.Done():
			t.Fatalf("no update after Advance")
		}
	})

	t.Run("WatchEndsOnClose", func(t *testing.T) {
		h := newHarness(t)
		ctx, cancel := context.WithTimeout(context.Background(), conformanceTimeout)
		defer cancel()

		sub, err := h.Backend.WatchCommittees(ctx)
		if err != nil {
			t.Fatalf("WatchCommittees failed: %v", err)
		}
		if !h.WaitWatchers(ctx, 1) {
			t.Fatalf("watcher never attached")
		}
		sub.Close()
		drain(t, ctx, sub)
		if !h.WaitWatchers(ctx, 0) {
			t.Fatalf("watcher still attached after Close")
		}
	})

	t.Run("WatchEndsOnCancel", func(t *testing.T) {
		h := newHarness(t)
		ctx, cancel := context.WithTimeout(context.Background(), conformanceTimeout)
		defer cancel()

		watchCtx, stop := context.WithCancel(ctx)
		sub, err := h.Backend.WatchCommittees(watchCtx)
		if err != nil {
			t.Fatalf("WatchCommittees failed: %v", err)
		}
		defer sub.Close()
		if !h.WaitWatchers(ctx, 1) {
			t.Fatalf("watcher never attached")
		}
		stop()
		drain(t, ctx, sub)
	})
}

// drain reads sub until its feed ends, failing the test if ctx ends first.
func drain(t *testing.T, ctx context.Context, sub scheduler.Subscription) {
	t.Helper()
	for {
		select {
		case _, ok := <-sub.Committees():
			if !ok {
				return
			}
		case <-ctx.Done():
			t.Fatalf("feed did not end")
		}
	}
}
