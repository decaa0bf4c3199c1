package registry

import (
	"context"
	"flag"
	"strings"
	"testing"

	"xdao.co/committee/contract"
	"xdao.co/committee/scheduler"
)

type nopBackend struct{}

func (nopBackend) GetCommittees(context.Context, *contract.Contract) ([]*scheduler.Committee, error) {
	return nil, nil
}

func (nopBackend) WatchCommittees(context.Context) (scheduler.Subscription, error) {
	f := scheduler.NewFeed(0)
	f.End(nil)
	return f, nil
}

func testBackend(name string, usage Usage, flagName string) Backend {
	return Backend{
		Name:  name,
		Usage: usage,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.String(flagName, "", "test flag")
		},
		Open: func(env Env) (scheduler.Backend, func() error, error) {
			if env.Logger == nil {
				panic("registry must supply a logger")
			}
			return nopBackend{}, nil, nil
		},
	}
}

func TestRegisterValidation(t *testing.T) {
	cases := []Backend{
		{},
		{Name: "x"},
		{Name: "x", RegisterFlags: func(*flag.FlagSet) {}},
		{Name: "x", RegisterFlags: func(*flag.FlagSet) {}, Open: testBackend("x", UsageCLI, "f").Open},
	}
	for i, b := range cases {
		if err := Register(b); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestRegisterListOpen(t *testing.T) {
	MustRegister(testBackend("test-daemon-only", UsageDaemon, "test-daemon-flag"))
	MustRegister(testBackend("test-both", UsageCLI|UsageDaemon, "test-both-flag"))

	if err := Register(testBackend("test-both", UsageCLI, "dup")); err == nil {
		t.Fatalf("expected duplicate registration error")
	}

	cli := strings.Join(Names(UsageCLI), ",")
	if strings.Contains(cli, "test-daemon-only") || !strings.Contains(cli, "test-both") {
		t.Fatalf("unexpected CLI backends: %s", cli)
	}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	RegisterFlags(fs, UsageDaemon)
	if fs.Lookup("test-daemon-flag") == nil || fs.Lookup("test-both-flag") == nil {
		t.Fatalf("expected daemon backend flags to be registered")
	}

	if _, _, err := Open("test-daemon-only", UsageCLI, Env{}); err == nil {
		t.Fatalf("expected usage mismatch error")
	}
	if _, _, err := Open("missing", UsageCLI, Env{}); err == nil {
		t.Fatalf("expected unknown backend error")
	}
	b, _, err := Open("test-both", UsageCLI, Env{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if b == nil {
		t.Fatalf("expected backend")
	}
}

func TestRegisterFlagsOnEveryFlagSet(t *testing.T) {
	var closed bool
	b := testBackend("test-reopen", UsageDaemon, "test-reopen-flag")
	open := b.Open
	b.Open = func(env Env) (scheduler.Backend, func() error, error) {
		be, _, err := open(env)
		return be, func() error { closed = true; return nil }, err
	}
	MustRegister(b)

	for i := 0; i < 2; i++ {
		fs := flag.NewFlagSet("schedulerd", flag.ContinueOnError)
		RegisterFlags(fs, UsageDaemon)
		if err := fs.Parse([]string{"--test-reopen-flag", "x"}); err != nil {
			t.Fatalf("pass %d: Parse: %v", i, err)
		}
	}

	_, closeFn, err := Open("test-reopen", UsageDaemon, Env{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if closeFn == nil {
		t.Fatalf("close function dropped")
	}
	if err := closeFn(); err != nil || !closed {
		t.Fatalf("close: err=%v closed=%v", err, closed)
	}
}
