// Package registry selects the committee backend a binary serves or queries.
//
// schedulerd and schedctl never name a backend type. They blank-import the
// backend packages they ship with, register every matching backend's flags
// on their own FlagSet, then call Open with the value of --backend. The
// memory backend elects committees in process; the grpc backend reaches a
// remote scheduler.
package registry

import (
	"flag"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"xdao.co/committee/scheduler"
)

// Env carries the host binary's ambient state into Open. Logger is never nil
// once Open hands it to a backend; backends name a child logger after
// themselves.
type Env struct {
	Logger *zap.Logger
}

// Backend describes one committee source, registered from its package's
// init():
//
//	registry.MustRegister(registry.Backend{Name: "memory", Usage: registry.UsageCLI | registry.UsageDaemon, ...})
type Backend struct {
	Name        string
	Description string
	Usage       Usage

	// RegisterFlags adds the backend's --<name>-* flags to fs. It is called
	// once for every FlagSet a binary builds, so it must not assume it runs
	// only once.
	RegisterFlags func(fs *flag.FlagSet)

	// Open builds the backend from the parsed flags. The close function may
	// be nil. When set, calling it ends every open watch feed, which
	// schedulerd relies on to drain WatchCommittees streams at shutdown.
	Open func(env Env) (scheduler.Backend, func() error, error)
}

var (
	mu       sync.RWMutex
	backends = map[string]Backend{}
)

// Register registers a backend.
func Register(b Backend) error {
	if b.Name == "" {
		return fmt.Errorf("registry: backend name is required")
	}
	if b.RegisterFlags == nil {
		return fmt.Errorf("registry: backend %q missing RegisterFlags", b.Name)
	}
	if b.Open == nil {
		return fmt.Errorf("registry: backend %q missing Open", b.Name)
	}
	if b.Usage == 0 {
		return fmt.Errorf("registry: backend %q missing Usage", b.Name)
	}

	mu.Lock()
	defer mu.Unlock()
	if _, exists := backends[b.Name]; exists {
		return fmt.Errorf("registry: backend %q already registered", b.Name)
	}
	backends[b.Name] = b
	return nil
}

// MustRegister is like Register but panics on error.
func MustRegister(b Backend) {
	if err := Register(b); err != nil {
		panic(err)
	}
}

// List returns backends matching usage, sorted by name.
func List(usage Usage) []Backend {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Backend, 0, len(backends))
	for _, b := range backends {
		if b.Usage.allows(usage) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns backend names matching usage, sorted.
func Names(usage Usage) []string {
	bs := List(usage)
	n := make([]string, 0, len(bs))
	for _, b := range bs {
		n = append(n, b.Name)
	}
	return n
}

// RegisterFlags adds the flags of every backend usable under usage, so a
// single fs.Parse accepts --backend together with any backend's options.
func RegisterFlags(fs *flag.FlagSet, usage Usage) {
	for _, b := range List(usage) {
		b.RegisterFlags(fs)
	}
}

// Open opens the backend chosen by --backend. A backend registered only for
// the other binary is rejected, as is an unknown name. A nil env.Logger is
// replaced with a no-op logger.
func Open(name string, usage Usage, env Env) (scheduler.Backend, func() error, error) {
	mu.RLock()
	b, ok := backends[name]
	mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("unknown backend %q", name)
	}
	if !b.Usage.allows(usage) {
		return nil, nil, fmt.Errorf("backend %q not supported in this binary", name)
	}
	if env.Logger == nil {
		env.Logger = zap.NewNop()
	}
	return b.Open(env)
}
