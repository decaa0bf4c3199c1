package memory

import (
	"flag"
	"strings"
	"time"

	"go.uber.org/zap"

	"xdao.co/committee/scheduler"
	"xdao.co/committee/scheduler/registry"
)

var (
	flagConfig        string
	flagEpochInterval time.Duration
	flagNodes         int
	flagContracts     stringList
	flagStateFile     string
)

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func init() {
	registry.MustRegister(registry.Backend{
		Name:        "memory",
		Description: "In-process deterministic scheduler (epoch timer, generated or configured nodes)",
		Usage:       registry.UsageDaemon,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.StringVar(&flagConfig, "memory-config", "", "YAML/JSON config file (for --backend=memory)")
			fs.DurationVar(&flagEpochInterval, "memory-epoch-interval", 0, "Override epoch interval (for --backend=memory)")
			fs.IntVar(&flagNodes, "memory-nodes", 0, "Override number of generated nodes (for --backend=memory)")
			fs.StringVar(&flagStateFile, "memory-state-file", "", "Bolt file keeping the epoch across restarts (for --backend=memory)")
			fs.Var(&flagContracts, "memory-contract", "Contract id to announce to watchers, hex or base58; repeatable (for --backend=memory)")
		},
		Open: func(env registry.Env) (scheduler.Backend, func() error, error) {
			cfg := DefaultConfig()
			if flagConfig != "" {
				var err error
				if cfg, err = LoadFile(flagConfig); err != nil {
					return nil, nil, err
				}
			}
			if flagEpochInterval > 0 {
				cfg.EpochInterval = flagEpochInterval
			}
			if flagNodes > 0 {
				cfg.GeneratedNodes = flagNodes
			}
			cfg.Contracts = append(cfg.Contracts, flagContracts...)
			if flagStateFile != "" {
				cfg.StateFile = flagStateFile
			}

			b, err := New(cfg, WithLogger(env.Logger.Named("memory")))
			if err != nil {
				return nil, nil, err
			}
			env.Logger.Info("opened memory scheduler backend",
				zap.Int("nodes", len(b.nodes)),
				zap.Int("contracts", len(cfg.Contracts)),
				zap.Duration("epoch_interval", cfg.EpochInterval),
			)
			return b, b.Close, nil
		},
	})
}
