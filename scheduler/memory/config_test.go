package memory

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"xdao.co/committee/nodekeys"
	"xdao.co/committee/scheduler/testkit"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return p
}

func TestLoadFileYAML(t *testing.T) {
	node := testkit.NodeKeys(t, 1)[0].String()
	p := writeFile(t, "sched.yaml", strings.Join([]string{
		"epoch_interval: 2s",
		"compute_group_size: 2",
		"storage_group_size: 1",
		"generated_nodes: 3",
		"node_key_alg: dilithium3",
		"nodes:",
		"  - " + node,
		"contracts:",
		"  - " + strings.Repeat("01", 32),
	}, "\n"))

	cfg, err := LoadFile(p)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.EpochInterval != 2*time.Second || cfg.ComputeGroupSize != 2 || cfg.ComputeBackupSize != 1 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	nodes, err := cfg.nodeSet()
	if err != nil {
		t.Fatalf("nodeSet: %v", err)
	}
	if len(nodes) != 4 || nodes[0].String() != node || nodes[1].Alg != nodekeys.AlgDilithium3 {
		t.Fatalf("unexpected node set (%d nodes)", len(nodes))
	}
}

func TestLoadFileJSON(t *testing.T) {
	p := writeFile(t, "sched.json", `{"compute_group_size": 1, "generated_nodes": 2, "storage_group_size": 0}`)
	cfg, err := LoadFile(p)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.GeneratedNodes != 2 || cfg.StorageGroupSize != 0 {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadFileRejects(t *testing.T) {
	cases := map[string]string{
		"unknown field":  "bogus: 1",
		"no nodes":       "generated_nodes: 0",
		"negative nodes": "nodes: [\"" + testkit.NodeKeys(t, 1)[0].String() + "\"]\ngenerated_nodes: -5",
		"bad seed":       "node_seed: zz",
		"bad contract":   "contracts: [nope]",
		"zero committee": "compute_group_size: 0",
		"bad mnemonic":   "node_mnemonic: abandon abandon abandon",
		"seed and words": "node_seed: " + strings.Repeat("00", 32) + "\nnode_mnemonic: " + strings.Repeat("abandon ", 23) + "art",
	}
	for name, body := range cases {
		if _, err := LoadFile(writeFile(t, "c.yaml", body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := LoadFile(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestNewRejectsNegativeGeneratedNodes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Nodes = []string{testkit.NodeKeys(t, 1)[0].String()}
	cfg.GeneratedNodes = -5
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Validate accepted generated_nodes -5")
	}
	if _, err := New(cfg); err == nil {
		t.Fatalf("New accepted generated_nodes -5")
	}
}

func TestMnemonicSeedMatchesHexSeed(t *testing.T) {
	words := strings.Repeat("abandon ", 23) + "art"
	seed, err := nodekeys.SeedFromMnemonic(words)
	if err != nil {
		t.Fatalf("SeedFromMnemonic: %v", err)
	}

	byWords := DefaultConfig()
	byWords.NodeMnemonic = words
	byHex := DefaultConfig()
	byHex.NodeSeed = hex.EncodeToString(seed)

	a, err := byWords.nodeSet()
	if err != nil {
		t.Fatalf("nodeSet(mnemonic): %v", err)
	}
	b, err := byHex.nodeSet()
	if err != nil {
		t.Fatalf("nodeSet(hex): %v", err)
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			t.Fatalf("node %d differs between mnemonic and hex seed", i)
		}
	}
}
