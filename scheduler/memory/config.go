package memory

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"xdao.co/committee/contract"
	"xdao.co/committee/nodekeys"
)

// Config describes an in-process scheduler.
//
// Example (YAML; JSON is accepted too):
//
//	epoch_interval: 30s
//	compute_group_size: 3
//	compute_backup_size: 1
//	storage_group_size: 2
//	generated_nodes: 8
//	node_seed: 000102...1f
//	contracts:
//	  - 0101010101010101010101010101010101010101010101010101010101010101
//
// Either Nodes or GeneratedNodes must provide at least one node.
type Config struct {
	// EpochInterval drives Run. Zero disables automatic epoch transitions.
	EpochInterval time.Duration `yaml:"epoch_interval"`

	// Group sizes used when a contract does not request its own.
	ComputeGroupSize  int `yaml:"compute_group_size"`
	ComputeBackupSize int `yaml:"compute_backup_size"`
	StorageGroupSize  int `yaml:"storage_group_size"`

	// WatchBuffer is the number of undelivered updates a watcher may hold
	// before it is dropped as lagging.
	WatchBuffer int `yaml:"watch_buffer"`

	// Nodes lists node public keys ("<alg>:<base58>").
	Nodes []string `yaml:"nodes,omitempty"`

	// GeneratedNodes derives that many node keys from the root seed, given
	// either as NodeSeed (hex, 32 bytes) or as a BIP-39 NodeMnemonic.
	GeneratedNodes int    `yaml:"generated_nodes,omitempty"`
	NodeSeed       string `yaml:"node_seed,omitempty"`
	NodeMnemonic   string `yaml:"node_mnemonic,omitempty"`
	NodeKeyAlg     string `yaml:"node_key_alg,omitempty"`

	// Contracts lists contract ids (hex or base58) announced to watchers.
	Contracts []string `yaml:"contracts,omitempty"`

	// StateFile, when set, is a bolt database that keeps the current epoch
	// across restarts.
	StateFile string `yaml:"state_file,omitempty"`
}

// DefaultConfig returns a small single-host configuration.
func DefaultConfig() Config {
	return Config{
		EpochInterval:     30 * time.Second,
		ComputeGroupSize:  3,
		ComputeBackupSize: 1,
		StorageGroupSize:  2,
		WatchBuffer:       64,
		GeneratedNodes:    8,
		NodeKeyAlg:        nodekeys.AlgEd25519,
	}
}

// LoadFile reads a YAML or JSON config file on top of DefaultConfig.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, errors.New("memory: empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("memory: parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.ComputeGroupSize < 1 {
		return errors.New("memory: compute_group_size must be at least 1")
	}
	if c.ComputeBackupSize < 0 || c.StorageGroupSize < 0 {
		return errors.New("memory: group sizes must not be negative")
	}
	if c.EpochInterval < 0 {
		return errors.New("memory: epoch_interval must not be negative")
	}
	if c.GeneratedNodes < 0 {
		return errors.New("memory: generated_nodes must not be negative")
	}
	if len(c.Nodes) == 0 && c.GeneratedNodes == 0 {
		return errors.New("memory: no nodes configured")
	}
	if c.GeneratedNodes > 0 {
		if _, err := c.nodeSeed(); err != nil {
			return err
		}
	}
	for _, id := range c.Contracts {
		if _, err := contract.ParseID(id); err != nil {
			return fmt.Errorf("memory: contract %q: %w", id, err)
		}
	}
	return nil
}

func (c Config) nodeSeed() ([]byte, error) {
	if c.NodeMnemonic != "" {
		if c.NodeSeed != "" {
			return nil, errors.New("memory: node_seed and node_mnemonic are mutually exclusive")
		}
		seed, err := nodekeys.SeedFromMnemonic(c.NodeMnemonic)
		if err != nil {
			return nil, fmt.Errorf("memory: node_mnemonic: %w", err)
		}
		return seed, nil
	}
	if c.NodeSeed == "" {
		return make([]byte, nodekeys.SeedSize), nil
	}
	seed, err := hex.DecodeString(c.NodeSeed)
	if err != nil || len(seed) != nodekeys.SeedSize {
		return nil, fmt.Errorf("memory: node_seed must be %d hex-encoded bytes", nodekeys.SeedSize)
	}
	return seed, nil
}

// nodeSet resolves the configured and generated node keys, configured first.
func (c Config) nodeSet() ([]nodekeys.PublicKey, error) {
	out := make([]nodekeys.PublicKey, 0, len(c.Nodes)+c.GeneratedNodes)
	for _, s := range c.Nodes {
		k, err := nodekeys.ParsePublicKey(s)
		if err != nil {
			return nil, fmt.Errorf("memory: node %q: %w", s, err)
		}
		out = append(out, k)
	}
	if c.GeneratedNodes > 0 {
		seed, err := c.nodeSeed()
		if err != nil {
			return nil, err
		}
		alg := c.NodeKeyAlg
		if alg == "" {
			alg = nodekeys.AlgEd25519
		}
		gen, err := nodekeys.GenerateNodeSet(alg, seed, c.GeneratedNodes)
		if err != nil {
			return nil, err
		}
		out = append(out, gen...)
	}
	return out, nil
}
