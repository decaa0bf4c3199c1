// Package testkit provides test doubles and a conformance suite for scheduler backends.
package testkit

import (
	"context"
	"sync"

	"xdao.co/committee/contract"
	"xdao.co/committee/scheduler"
)

// Fake is a scripted, call-counting scheduler.Backend.
//
// Every watcher first receives Updates in order. Then its feed ends with
// WatchErr, unless Hold is set, in which case it stays open for Publish until
// the watcher goes away or EndWatches is called.
type Fake struct {
	Committees []*scheduler.Committee
	GetErr     error

	Updates  []*scheduler.Committee
	WatchErr error
	// WatchOpenErr makes WatchCommittees itself fail.
	WatchOpenErr error
	Hold         bool

	mu           sync.Mutex
	getCalls     int
	watchCalls   int
	lastContract *contract.Contract
	watchers     map[*scheduler.Feed]context.Context
	changed      chan struct{}
}

var _ scheduler.Backend = (*Fake)(nil)

func (f *Fake) GetCommittees(ctx context.Context, c *contract.Contract) ([]*scheduler.Committee, error) {
	f.mu.Lock()
	f.getCalls++
	f.lastContract = c
	f.mu.Unlock()
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	return f.Committees, nil
}

func (f *Fake) WatchCommittees(ctx context.Context) (scheduler.Subscription, error) {
	f.mu.Lock()
	f.watchCalls++
	f.mu.Unlock()
	if f.WatchOpenErr != nil {
		return nil, f.WatchOpenErr
	}

	feed := scheduler.NewFeed(len(f.Updates) + 16)
	for _, u := range f.Updates {
		feed.TrySend(u)
	}
	if !f.Hold {
		feed.End(f.WatchErr)
		return feed, nil
	}

	f.mu.Lock()
	if f.watchers == nil {
		f.watchers = make(map[*scheduler.Feed]context.Context)
	}
	f.watchers[feed] = ctx
	f.notifyLocked()
	f.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-feed.Done():
		}
		f.mu.Lock()
		if _, ok := f.watchers[feed]; ok {
			delete(f.watchers, feed)
			feed.End(nil)
			f.notifyLocked()
		}
		f.mu.Unlock()
	}()
	return feed, nil
}

// Publish offers c to every held watcher and returns how many accepted it.
func (f *Fake) Publish(c *scheduler.Committee) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for feed := range f.watchers {
		if feed.TrySend(c) {
			n++
		}
	}
	return n
}

// EndWatches ends every held watcher with err.
func (f *Fake) EndWatches(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for feed := range f.watchers {
		delete(f.watchers, feed)
		feed.End(err)
	}
	f.notifyLocked()
}

// WaitWatchers blocks until exactly n held watchers are attached or ctx ends.
func (f *Fake) WaitWatchers(ctx context.Context, n int) bool {
	for {
		f.mu.Lock()
		if len(f.watchers) == n {
			f.mu.Unlock()
			return true
		}
		if f.changed == nil {
			f.changed = make(chan struct{})
		}
		ch := f.changed
		f.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return false
		}
	}
}

func (f *Fake) notifyLocked() {
	if f.changed != nil {
		close(f.changed)
		f.changed = nil
	}
}

func (f *Fake) GetCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls
}

func (f *Fake) WatchCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.watchCalls
}

func (f *Fake) LastContract() *contract.Contract {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastContract
}
