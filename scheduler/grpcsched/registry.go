package grpcsched

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"xdao.co/committee/internal/netaddr"
	"xdao.co/committee/scheduler"
	"xdao.co/committee/scheduler/registry"
)

var (
	flagTarget      string
	flagDialTimeout time.Duration
	flagTimeout     time.Duration
	flagMaxMsgBytes int
	flagWatchBuffer int
)

func init() {
	registry.MustRegister(registry.Backend{
		Name:        "grpc",
		Description: "gRPC scheduler client (talks to a Scheduler gRPC daemon, e.g. schedulerd)",
		Usage:       registry.UsageCLI | registry.UsageDaemon,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.StringVar(&flagTarget, "grpc-target", "", "gRPC target, host:port or multiaddr (for --backend=grpc)")
			fs.DurationVar(&flagDialTimeout, "grpc-dial-timeout", 5*time.Second, "Dial timeout (for --backend=grpc)")
			fs.DurationVar(&flagTimeout, "grpc-timeout", 0, "Per-call GetCommittees timeout (for --backend=grpc)")
			fs.IntVar(&flagMaxMsgBytes, "grpc-max-msg-bytes", 0, "Max gRPC message size in bytes (send+recv); 0 uses grpc defaults")
			fs.IntVar(&flagWatchBuffer, "grpc-watch-buffer", defaultWatchBuffer, "Undelivered watch updates buffered per watch (for --backend=grpc)")
		},
		Open: func(env registry.Env) (scheduler.Backend, func() error, error) {
			if strings.TrimSpace(flagTarget) == "" {
				return nil, nil, fmt.Errorf("missing --grpc-target")
			}
			target, err := netaddr.Target(flagTarget)
			if err != nil {
				return nil, nil, fmt.Errorf("--grpc-target: %w", err)
			}
			client, err := Dial(target, DialOptions{Timeout: flagDialTimeout, MaxMsgBytes: flagMaxMsgBytes})
			if err != nil {
				return nil, nil, err
			}
			client.Timeout = flagTimeout
			client.WatchBuffer = flagWatchBuffer
			env.Logger.Debug("opened grpc scheduler backend", zap.String("target", target))
			return client, client.Close, nil
		},
	})
}
