package scheduler

import (
	"context"
	"sync"
)

// Feed is a Subscription fed by a single producer.
//
// Send, TrySend and End MUST NOT be called concurrently with each other; the
// consumer side (Committees, Err, Close, Done) is safe from any goroutine.
type Feed struct {
	ch   chan *Committee
	done chan struct{}

	endOnce   sync.Once
	closeOnce sync.Once

	mu  sync.Mutex
	err error
}

var _ Subscription = (*Feed)(nil)

// NewFeed returns a Feed buffering up to buffer undelivered committees.
func NewFeed(buffer int) *Feed {
	if buffer < 0 {
		buffer = 0
	}
	return &Feed{
		ch:   make(chan *Committee, buffer),
		done: make(chan struct{}),
	}
}

func (f *Feed) Committees() <-chan *Committee { return f.ch }

func (f *Feed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Close signals that the consumer is gone.
func (f *Feed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}

// Done is closed once the consumer has called Close.
func (f *Feed) Done() <-chan struct{} { return f.done }

// Send delivers c, waiting for buffer space. It returns false if ctx ends or
// the consumer closed the feed first.
func (f *Feed) Send(ctx context.Context, c *Committee) bool {
	select {
	case <-f.done:
		return false
	default:
	}
	select {
	case f.ch <- c:
		return true
	case <-f.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// TrySend delivers c only if buffer space is available right now.
func (f *Feed) TrySend(c *Committee) bool {
	select {
	case <-f.done:
		return false
	default:
	}
	select {
	case f.ch <- c:
		return true
	default:
		return false
	}
}

// End terminates the feed with err (nil for a clean end). Later calls are no-ops.
func (f *Feed) End(err error) {
	f.endOnce.Do(func() {
		f.mu.Lock()
		f.err = err
		f.mu.Unlock()
		close(f.ch)
	})
}
