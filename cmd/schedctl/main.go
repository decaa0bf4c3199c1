package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/yaml.v3"

	"xdao.co/committee/contract"
	"xdao.co/committee/nodekeys"
	"xdao.co/committee/scheduler"
	"xdao.co/committee/scheduler/registry"

	_ "xdao.co/committee/scheduler/grpcsched"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "committees":
		return cmdCommittees(args[1:], out, errOut)
	case "watch":
		return cmdWatch(args[1:], out, errOut)
	case "node-keys":
		return cmdNodeKeys(args[1:], out, errOut)
	case "backends":
		return cmdBackends(out)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "schedctl: committee scheduler client")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  schedctl committees --grpc-target <host:port|multiaddr> --contract <id> [--format text|yaml]")
	fmt.Fprintln(w, "  schedctl watch --grpc-target <host:port|multiaddr> [--count <n>] [--format text|yaml]")
	fmt.Fprintln(w, "  schedctl node-keys [--alg ed25519|dilithium3] [--seed-hex <64hex> | --mnemonic \"<words>\"] [--count <n>]")
	fmt.Fprintln(w, "  schedctl backends")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - contract ids are 32 bytes, given as 64 hex chars or base58")
	fmt.Fprintln(w, "  - node-keys prints the node set a memory backend derives from the same seed")
	fmt.Fprintln(w, "  - watch runs until interrupted unless --count is given")
}

// openBackend parses args (backend flags included) and opens the selected backend.
func openBackend(fs *flag.FlagSet, args []string, errOut io.Writer) (scheduler.Backend, func() error, bool) {
	backend := fs.String("backend", "grpc", "Scheduler backend name")
	registry.RegisterFlags(fs, registry.UsageCLI)
	if err := fs.Parse(args); err != nil {
		return nil, nil, false
	}
	b, closeFn, err := registry.Open(*backend, registry.UsageCLI, registry.Env{})
	if err != nil {
		fmt.Fprintf(errOut, "open backend: %v\n", err)
		return nil, nil, false
	}
	if closeFn == nil {
		closeFn = func() error { return nil }
	}
	return b, closeFn, true
}

func cmdCommittees(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("committees", flag.ContinueOnError)
	fs.SetOutput(errOut)
	id := fs.String("contract", "", "Contract id (64 hex chars or base58)")
	format := fs.String("format", "text", "Output format: text or yaml")

	b, closeFn, ok := openBackend(fs, args, errOut)
	if !ok {
		return 2
	}
	defer func() { _ = closeFn() }()

	raw, err := contract.ParseID(*id)
	if err != nil {
		fmt.Fprintf(errOut, "--contract: %v\n", err)
		return 2
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	committees, err := b.GetCommittees(ctx, contract.New(raw))
	if err != nil {
		fmt.Fprintf(errOut, "get committees: %v\n", err)
		return 1
	}
	for _, c := range committees {
		if err := printCommittee(out, *format, c); err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
	}
	return 0
}

func cmdWatch(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(errOut)
	count := fs.Int("count", 0, "Stop after this many updates (0 = until interrupted)")
	format := fs.String("format", "text", "Output format: text or yaml")

	b, closeFn, ok := openBackend(fs, args, errOut)
	if !ok {
		return 2
	}
	defer func() { _ = closeFn() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sub, err := b.WatchCommittees(ctx)
	if err != nil {
		fmt.Fprintf(errOut, "watch committees: %v\n", err)
		return 1
	}
	defer sub.Close()

	seen := 0
	for c := range sub.Committees() {
		if err := printCommittee(out, *format, c); err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		seen++
		if *count > 0 && seen >= *count {
			return 0
		}
	}
	if err := sub.Err(); err != nil {
		fmt.Fprintf(errOut, "watch ended: %v\n", err)
		return 1
	}
	return 0
}

func cmdNodeKeys(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("node-keys", flag.ContinueOnError)
	fs.SetOutput(errOut)
	alg := fs.String("alg", nodekeys.AlgEd25519, "Key algorithm: ed25519 or dilithium3")
	seedHex := fs.String("seed-hex", "", "Root seed, 32 bytes as 64 hex chars (default all zero)")
	mnemonic := fs.String("mnemonic", "", "Root seed as a BIP-39 mnemonic (instead of --seed-hex)")
	count := fs.Int("count", 8, "Number of node keys")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *count < 0 {
		fmt.Fprintln(errOut, "--count must not be negative")
		return 2
	}

	seed := make([]byte, nodekeys.SeedSize)
	switch {
	case *seedHex != "" && *mnemonic != "":
		fmt.Fprintln(errOut, "--seed-hex and --mnemonic are mutually exclusive")
		return 2
	case *mnemonic != "":
		var err error
		seed, err = nodekeys.SeedFromMnemonic(*mnemonic)
		if err != nil {
			fmt.Fprintf(errOut, "--mnemonic: %v\n", err)
			return 2
		}
	case *seedHex != "":
		var err error
		seed, err = hex.DecodeString(*seedHex)
		if err != nil || len(seed) != nodekeys.SeedSize {
			fmt.Fprintf(errOut, "--seed-hex must be %d bytes (%d hex chars)\n", nodekeys.SeedSize, 2*nodekeys.SeedSize)
			return 2
		}
	}
	keys, err := nodekeys.GenerateNodeSet(*alg, seed, *count)
	if err != nil {
		fmt.Fprintf(errOut, "node-keys: %v\n", err)
		return 1
	}
	for _, k := range keys {
		_, _ = fmt.Fprintln(out, k)
	}
	return 0
}

func cmdBackends(out io.Writer) int {
	for _, b := range registry.List(registry.UsageCLI) {
		if b.Description == "" {
			_, _ = fmt.Fprintf(out, "%s\n", b.Name)
			continue
		}
		_, _ = fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
	}
	return 0
}

type memberView struct {
	Role      string `yaml:"role"`
	PublicKey string `yaml:"public_key"`
}

type committeeView struct {
	Kind       string       `yaml:"kind"`
	ValidFor   uint64       `yaml:"valid_for"`
	ContractID string       `yaml:"contract_id"`
	Members    []memberView `yaml:"members"`
}

func printCommittee(w io.Writer, format string, c *scheduler.Committee) error {
	switch format {
	case "yaml":
		v := committeeView{Kind: c.Kind.String(), ValidFor: c.ValidFor}
		if c.Contract != nil {
			v.ContractID = c.Contract.String()
		}
		for _, m := range c.Members {
			v.Members = append(v.Members, memberView{Role: m.Role.String(), PublicKey: m.PublicKey.String()})
		}
		b, err := yaml.Marshal([]committeeView{v})
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	case "text":
		if _, err := fmt.Fprintln(w, c); err != nil {
			return err
		}
		for _, m := range c.Members {
			if _, err := fmt.Fprintf(w, "  %s\t%s\n", m.Role, m.PublicKey); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
