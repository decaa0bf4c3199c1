package scheduler

import "errors"

var (
	ErrClosed            = errors.New("scheduler: backend closed")
	ErrNotEnoughNodes    = errors.New("scheduler: not enough nodes for committee")
	ErrSubscriberLagging = errors.New("scheduler: watcher fell behind")

	// ErrInvalidRequest and ErrBackend classify failures reported by a remote
	// scheduler service.
	ErrInvalidRequest = errors.New("scheduler: invalid request")
	ErrBackend        = errors.New("scheduler: backend failure")
)
