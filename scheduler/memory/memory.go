// Package memory is an in-process scheduler backend.
//
// Committees are elected deterministically from a fixed node set: the same
// (contract, epoch) always yields the same committees. Epochs advance on a
// timer (Run) or explicitly (AdvanceEpoch). On every transition the
// committees of the announced contracts are recomputed and watchers receive
// those whose membership changed.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ipfs/go-cid"
	"go.uber.org/zap"

	"xdao.co/committee/cidutil"
	"xdao.co/committee/contract"
	"xdao.co/committee/nodekeys"
	"xdao.co/committee/scheduler"
)

type Option func(*Backend)

func WithLogger(l *zap.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithEpoch sets the starting epoch.
func WithEpoch(epoch uint64) Option {
	return func(b *Backend) { b.epoch = epoch }
}

// Backend implements scheduler.Backend in memory.
type Backend struct {
	cfg    Config
	nodes  []nodekeys.PublicKey
	logger *zap.Logger
	state  *epochStore

	mu        sync.Mutex
	epoch     uint64
	contracts []*contract.Contract
	known     map[string]struct{}
	last      map[string]cid.Cid
	watchers  map[*scheduler.Feed]struct{}
	changed   chan struct{}
	closed    bool
	closing   chan struct{}
}

var _ scheduler.Backend = (*Backend)(nil)

// New builds a backend from cfg. Contracts listed in cfg are announced to watchers.
func New(cfg Config, opts ...Option) (*Backend, error) {
	if cfg.WatchBuffer <= 0 {
		cfg.WatchBuffer = DefaultConfig().WatchBuffer
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	nodes, err := cfg.nodeSet()
	if err != nil {
		return nil, err
	}
	b := &Backend{
		cfg:      cfg,
		nodes:    nodes,
		logger:   zap.NewNop(),
		known:    make(map[string]struct{}),
		last:     make(map[string]cid.Cid),
		watchers: make(map[*scheduler.Feed]struct{}),
		closing:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	for _, s := range cfg.Contracts {
		id, err := contract.ParseID(s)
		if err != nil {
			return nil, err
		}
		b.announceLocked(contract.New(id))
	}
	if cfg.StateFile != "" {
		st, err := openEpochStore(cfg.StateFile)
		if err != nil {
			return nil, err
		}
		epoch, ok, err := st.load()
		if err != nil {
			_ = st.close()
			return nil, err
		}
		if ok {
			b.epoch = epoch
			b.logger.Info("restored epoch", zap.Uint64("epoch", epoch), zap.String("state_file", cfg.StateFile))
		}
		b.state = st
	}
	return b, nil
}

// Announce adds c to the contracts whose committee changes are published.
func (b *Backend) Announce(c *contract.Contract) error {
	if err := c.CheckID(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.announceLocked(c)
	return nil
}

func (b *Backend) announceLocked(c *contract.Contract) {
	key := string(c.ID)
	if _, ok := b.known[key]; ok {
		return
	}
	b.known[key] = struct{}{}
	b.contracts = append(b.contracts, c)
}

// Epoch returns the current epoch.
func (b *Backend) Epoch() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.epoch
}

// Nodes returns the node set committees are drawn from.
func (b *Backend) Nodes() []nodekeys.PublicKey {
	return append([]nodekeys.PublicKey(nil), b.nodes...)
}

func (b *Backend) GetCommittees(ctx context.Context, c *contract.Contract) ([]*scheduler.Committee, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.CheckID(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	epoch, closed := b.epoch, b.closed
	b.mu.Unlock()
	if closed {
		return nil, scheduler.ErrClosed
	}
	return elect(b.nodes, c, epoch, b.sizesFor(c))
}

// WatchCommittees attaches a watcher that sees changes from the next epoch
// transition on. A watcher that falls WatchBuffer updates behind is ended
// with scheduler.ErrSubscriberLagging.
func (b *Backend) WatchCommittees(ctx context.Context) (scheduler.Subscription, error) {
	feed := scheduler.NewFeed(b.cfg.WatchBuffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, scheduler.ErrClosed
	}
	b.watchers[feed] = struct{}{}
	b.notifyLocked()
	b.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-feed.Done():
		case <-b.closing:
		}
		b.detach(feed, nil)
	}()
	return feed, nil
}

// Watchers returns the number of attached watchers.
func (b *Backend) Watchers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.watchers)
}

// WaitWatchers blocks until exactly n watchers are attached or ctx ends.
func (b *Backend) WaitWatchers(ctx context.Context, n int) bool {
	for {
		b.mu.Lock()
		if len(b.watchers) == n {
			b.mu.Unlock()
			return true
		}
		if b.changed == nil {
			b.changed = make(chan struct{})
		}
		ch := b.changed
		b.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return false
		}
	}
}

func (b *Backend) detach(feed *scheduler.Feed, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.detachLocked(feed, err)
}

func (b *Backend) detachLocked(feed *scheduler.Feed, err error) {
	if _, ok := b.watchers[feed]; !ok {
		return
	}
	delete(b.watchers, feed)
	feed.End(err)
	b.notifyLocked()
}

func (b *Backend) notifyLocked() {
	if b.changed != nil {
		close(b.changed)
		b.changed = nil
	}
}

// AdvanceEpoch moves to the next epoch and publishes every announced
// committee whose membership changed. It returns the new epoch.
func (b *Backend) AdvanceEpoch() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return b.epoch
	}
	b.epoch++
	if b.state != nil {
		if err := b.state.save(b.epoch); err != nil {
			b.logger.Warn("persisting epoch failed", zap.Uint64("epoch", b.epoch), zap.Error(err))
		}
	}

	var updates []*scheduler.Committee
	for _, c := range b.contracts {
		committees, err := elect(b.nodes, c, b.epoch, b.sizesFor(c))
		if err != nil {
			b.logger.Warn("election failed", zap.Stringer("contract", c), zap.Uint64("epoch", b.epoch), zap.Error(err))
			continue
		}
		for _, committee := range committees {
			digest, err := membershipDigest(committee)
			if err != nil {
				b.logger.Warn("committee digest failed", zap.Stringer("committee", committee), zap.Error(err))
				continue
			}
			key := string(c.ID) + "/" + committee.Kind.String()
			if prev, ok := b.last[key]; ok && prev.Equals(digest) {
				continue
			}
			b.last[key] = digest
			updates = append(updates, committee)
		}
	}

	for feed := range b.watchers {
		for _, u := range updates {
			if !feed.TrySend(u) {
				b.logger.Warn("dropping lagging committee watcher", zap.Uint64("epoch", b.epoch))
				b.detachLocked(feed, scheduler.ErrSubscriberLagging)
				break
			}
		}
	}
	b.logger.Info("epoch transition",
		zap.Uint64("epoch", b.epoch),
		zap.Int("updates", len(updates)),
		zap.Int("watchers", len(b.watchers)),
	)
	return b.epoch
}

// Run advances the epoch every EpochInterval until ctx ends. It returns
// immediately when the interval is zero.
func (b *Backend) Run(ctx context.Context) error {
	if b.cfg.EpochInterval <= 0 {
		return nil
	}
	t := time.NewTicker(b.cfg.EpochInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-b.closing:
			return nil
		case <-t.C:
			b.AdvanceEpoch()
		}
	}
}

// Close ends every watcher feed cleanly and rejects further calls.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	close(b.closing)
	for feed := range b.watchers {
		b.detachLocked(feed, nil)
	}
	if b.state != nil {
		return b.state.close()
	}
	return nil
}

type digestMember struct {
	Role string `cbor:"role"`
	Key  string `cbor:"key"`
}

type digestCommittee struct {
	Contract []byte         `cbor:"contract"`
	Kind     string         `cbor:"kind"`
	Members  []digestMember `cbor:"members"`
}

// membershipDigest identifies a committee's membership, ignoring the epoch,
// so an unchanged committee is not republished on every transition.
func membershipDigest(c *scheduler.Committee) (cid.Cid, error) {
	d := digestCommittee{Contract: c.Contract.ID, Kind: c.Kind.String()}
	for _, m := range c.Members {
		d.Members = append(d.Members, digestMember{Role: m.Role.String(), Key: m.PublicKey.String()})
	}
	return cidutil.DagCBORCID(d)
}
