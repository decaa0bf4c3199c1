package main

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc"

	"xdao.co/committee/contract"
	"xdao.co/committee/scheduler/grpcsched"
	"xdao.co/committee/scheduler/memory"
	"xdao.co/committee/scheduler/testkit"
)

func startDaemon(t *testing.T) (*memory.Backend, string) {
	t.Helper()
	cfg := memory.DefaultConfig()
	cfg.EpochInterval = 0
	cfg.Contracts = []string{contract.FormatID(testkit.ContractID(1))}
	b, err := memory.New(cfg)
	if err != nil {
		t.Fatalf("memory.New: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	srv := grpc.NewServer()
	grpcsched.RegisterSchedulerServer(srv, grpcsched.NewServer(b))
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)
	return b, lis.Addr().String()
}

func TestCommittees(t *testing.T) {
	_, addr := startDaemon(t)

	var out, errOut bytes.Buffer
	id := strings.Repeat("01", 32)
	if code := run([]string{"committees", "--grpc-target", addr, "--contract", id}, &out, &errOut); code != 0 {
		t.Fatalf("exit %d: %s", code, errOut.String())
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if !strings.HasPrefix(lines[0], "compute committee of ") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "storage committee of ") || !strings.Contains(out.String(), "leader\ted25519:") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}

	out.Reset()
	errOut.Reset()
	if code := run([]string{"committees", "--grpc-target", addr, "--contract", id, "--format", "yaml"}, &out, &errOut); code != 0 {
		t.Fatalf("yaml exit %d: %s", code, errOut.String())
	}
	if !strings.Contains(out.String(), "kind: compute") || !strings.Contains(out.String(), "contract_id: "+contract.FormatID(testkit.ContractID(1))) {
		t.Fatalf("unexpected yaml output:\n%s", out.String())
	}
}

func TestCommitteesBackendError(t *testing.T) {
	_, addr := startDaemon(t)
	var out, errOut bytes.Buffer
	// A base58 id that decodes to the wrong length is rejected locally.
	if code := run([]string{"committees", "--grpc-target", addr, "--contract", "abc"}, &out, &errOut); code != 2 {
		t.Fatalf("exit %d, want 2", code)
	}
	if code := run([]string{"committees", "--grpc-target", "", "--contract", strings.Repeat("01", 32)}, &out, &errOut); code != 2 {
		t.Fatalf("missing target: exit %d, want 2", code)
	}
}

func TestWatch(t *testing.T) {
	b, addr := startDaemon(t)

	var out, errOut bytes.Buffer
	done := make(chan int, 1)
	go func() {
		done <- run([]string{"watch", "--grpc-target", addr, "--count", "2"}, &out, &errOut)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if !b.WaitWatchers(ctx, 1) {
		t.Fatalf("watch never attached")
	}
	b.AdvanceEpoch()

	select {
	case code := <-done:
		if code != 0 {
			t.Fatalf("exit %d: %s", code, errOut.String())
		}
	case <-ctx.Done():
		t.Fatalf("watch did not return")
	}
	if n := strings.Count(out.String(), "(epoch 1,"); n != 2 {
		t.Fatalf("got %d epoch-1 updates:\n%s", n, out.String())
	}
}

func TestNodeKeys(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run([]string{"node-keys", "--count", "3"}, &out, &errOut); code != 0 {
		t.Fatalf("exit %d: %s", code, errOut.String())
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	want := testkit.NodeKeys(t, 3)
	if len(lines) != 3 {
		t.Fatalf("got %d keys", len(lines))
	}
	for i, l := range lines {
		if l != want[i].String() {
			t.Fatalf("key %d: got %s want %s", i, l, want[i])
		}
	}

	if code := run([]string{"node-keys", "--seed-hex", "abcd"}, &out, &errOut); code != 2 {
		t.Fatalf("short seed: exit %d, want 2", code)
	}
	if code := run([]string{"node-keys", "--count", "-1"}, &out, &errOut); code != 2 {
		t.Fatalf("negative count: exit %d, want 2", code)
	}
}

func TestBackendsAndUsage(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run([]string{"backends"}, &out, &errOut); code != 0 {
		t.Fatalf("exit %d", code)
	}
	if !strings.HasPrefix(out.String(), "grpc\t") || strings.Contains(out.String(), "memory") {
		t.Fatalf("unexpected backends:\n%s", out.String())
	}
	if code := run(nil, &out, &errOut); code != 2 {
		t.Fatalf("no args: exit %d, want 2", code)
	}
	if code := run([]string{"frobnicate"}, &out, &errOut); code != 2 {
		t.Fatalf("unknown command: exit %d, want 2", code)
	}
}
