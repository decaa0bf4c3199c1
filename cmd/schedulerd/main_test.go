package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"xdao.co/committee/contract"
	"xdao.co/committee/internal/metrics"
	"xdao.co/committee/internal/ratelimit"
	"xdao.co/committee/scheduler/grpcsched"
	"xdao.co/committee/scheduler/testkit"
)

func TestListBackends(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run([]string{"--list-backends"}, &out, &errOut); code != 0 {
		t.Fatalf("exit %d: %s", code, errOut.String())
	}
	for _, name := range []string{"grpc\t", "memory\t"} {
		if !strings.Contains(out.String(), name) {
			t.Fatalf("backend %q missing from:\n%s", strings.TrimSpace(name), out.String())
		}
	}
}

func TestStartupErrors(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run([]string{"--backend", "nope", "--log-level", "error"}, &out, &errOut); code != 2 {
		t.Fatalf("unknown backend: exit %d, want 2", code)
	}
	if code := run([]string{"--log-format", "xml"}, &out, &errOut); code != 2 {
		t.Fatalf("bad log format: exit %d, want 2", code)
	}
	if code := run([]string{"--no-such-flag"}, &out, &errOut); code != 2 {
		t.Fatalf("bad flag: exit %d, want 2", code)
	}
}

func TestShutdownWithOpenWatch(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "s.sock")

	var out, errOut bytes.Buffer
	done := make(chan int, 1)
	go func() {
		done <- run([]string{"--listen", "/unix" + sock, "--backend", "memory", "--log-level", "error"}, &out, &errOut)
	}()

	client, err := grpcsched.Dial("unix://"+sock, grpcsched.DialOptions{})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// A served call means the signal handler is installed.
	for {
		callCtx, callCancel := context.WithTimeout(ctx, 200*time.Millisecond)
		_, err := client.GetCommittees(callCtx, contract.New(testkit.ContractID(1)))
		callCancel()
		if err == nil {
			break
		}
		select {
		case code := <-done:
			t.Fatalf("schedulerd exited early with %d: %s", code, errOut.String())
		case <-ctx.Done():
			t.Fatalf("schedulerd never served: %v", err)
		case <-time.After(20 * time.Millisecond):
		}
	}

	sub, err := client.WatchCommittees(ctx)
	if err != nil {
		t.Fatalf("WatchCommittees: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if err := syscall.Kill(os.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("Kill: %v", err)
	}

	select {
	case code := <-done:
		if code != 0 {
			t.Fatalf("exit %d: %s", code, errOut.String())
		}
	case <-ctx.Done():
		t.Fatalf("schedulerd did not return after SIGTERM")
	}

	for range sub.Committees() {
	}
	if err := sub.Err(); err != nil {
		t.Fatalf("watch ended with %v, want clean end", err)
	}
}

func TestRateLimitedCallsAreNotCounted(t *testing.T) {
	m := metrics.NewRPC()
	srv := newGRPCServer(zap.NewNop(), m, ratelimit.New(1.0/3600, 1))
	backend := &testkit.Fake{}
	grpcsched.RegisterSchedulerServer(srv, grpcsched.NewServer(backend))

	lis := bufconn.Listen(1024 * 1024)
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	dialer := func(ctx context.Context, s string) (net.Conn, error) { return lis.Dial() }
	cc, err := grpc.DialContext(
		context.Background(),
		"bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("DialContext: %v", err)
	}
	t.Cleanup(func() { _ = cc.Close() })
	client := grpcsched.NewClient(cc)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := contract.New(testkit.ContractID(1))
	if _, err := client.GetCommittees(ctx, c); err != nil {
		t.Fatalf("first GetCommittees: %v", err)
	}
	if _, err := client.GetCommittees(ctx, c); err == nil {
		t.Fatalf("second GetCommittees admitted past the burst")
	}

	sub, err := client.WatchCommittees(ctx)
	if err != nil {
		t.Fatalf("WatchCommittees: %v", err)
	}
	for range sub.Committees() {
	}
	if sub.Err() == nil {
		t.Fatalf("rejected watch ended cleanly")
	}
	if n := backend.GetCalls(); n != 1 {
		t.Fatalf("backend saw %d GetCommittees calls, want 1", n)
	}
	if n := backend.WatchCalls(); n != 0 {
		t.Fatalf("backend saw %d watches, want 0", n)
	}

	// Only the admitted call has a handled series.
	n, err := testutil.GatherAndCount(m.Registry(), "committee_scheduler_rpcs_handled_total")
	if err != nil {
		t.Fatalf("GatherAndCount: %v", err)
	}
	if n != 1 {
		t.Fatalf("handled series: got %d want 1", n)
	}
}
