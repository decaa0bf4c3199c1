// Package scheduler defines the committee scheduler backend capability.
//
// A Backend resolves the committees serving a contract and publishes a live
// feed of committee changes. How committees are formed is entirely up to the
// implementation; the gRPC service in scheduler/grpcsched only translates.
package scheduler

import (
	"context"

	"xdao.co/committee/contract"
)

// Backend is the capability every scheduler implementation provides.
//
// Contract:
//   - Implementations MUST be safe for concurrent use; callers impose no locking.
//   - GetCommittees MUST return committees in a stable, backend-defined order
//     (e.g. by kind). Callers preserve that order.
//   - WatchCommittees MUST only deliver changes that happen after the call
//     (no historical replay). Each call gets an independent feed.
//   - Returned Committee values are owned by the backend and MUST NOT be mutated.
type Backend interface {
	GetCommittees(ctx context.Context, c *contract.Contract) ([]*Committee, error)
	WatchCommittees(ctx context.Context) (Subscription, error)
}

// Subscription is a live, non-restartable feed of committee changes.
type Subscription interface {
	// Committees delivers changes in emission order. The channel is closed
	// when the feed ends.
	Committees() <-chan *Committee

	// Err returns the error that ended the feed, or nil for a clean end.
	// It is only meaningful after Committees() has been closed.
	Err() error

	// Close releases the subscription. It is safe to call more than once.
	Close()
}
