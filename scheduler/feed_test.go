package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFeedDeliversInOrderThenEnds(t *testing.T) {
	f := NewFeed(3)
	for i := uint64(1); i <= 3; i++ {
		if !f.TrySend(&Committee{ValidFor: i}) {
			t.Fatalf("TrySend(%d): expected buffer space", i)
		}
	}
	f.End(nil)

	var got []uint64
	for c := range f.Committees() {
		got = append(got, c.ValidFor)
	}
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("unexpected order: %v", got)
	}
	if f.Err() != nil {
		t.Fatalf("expected clean end, got %v", f.Err())
	}
}

func TestFeedTrySendFullBuffer(t *testing.T) {
	f := NewFeed(1)
	if !f.TrySend(&Committee{}) {
		t.Fatalf("first TrySend should succeed")
	}
	if f.TrySend(&Committee{}) {
		t.Fatalf("second TrySend should report a full buffer")
	}
}

func TestFeedEndWithError(t *testing.T) {
	f := NewFeed(0)
	boom := errors.New("boom")
	f.End(boom)
	f.End(nil)
	if _, ok := <-f.Committees(); ok {
		t.Fatalf("expected closed channel")
	}
	if !errors.Is(f.Err(), boom) {
		t.Fatalf("Err: got %v want %v", f.Err(), boom)
	}
}

func TestFeedSendStopsOnCloseAndContext(t *testing.T) {
	f := NewFeed(0)
	f.Close()
	f.Close()
	if f.Send(context.Background(), &Committee{}) {
		t.Fatalf("Send after Close should fail")
	}

	g := NewFeed(0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if g.Send(ctx, &Committee{}) {
		t.Fatalf("Send without a reader should fail once ctx ends")
	}
}
