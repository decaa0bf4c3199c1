package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"xdao.co/committee/internal/logging"
	"xdao.co/committee/internal/metrics"
	"xdao.co/committee/internal/netaddr"
	"xdao.co/committee/internal/ratelimit"
	"xdao.co/committee/internal/rpclog"
	"xdao.co/committee/scheduler/grpcsched"
	"xdao.co/committee/scheduler/registry"

	_ "xdao.co/committee/scheduler/memory"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("schedulerd", flag.ContinueOnError)
	fs.SetOutput(errOut)
	listen := fs.String("listen", "127.0.0.1:7878", "gRPC listen address, host:port or multiaddr")
	backend := fs.String("backend", "memory", "Scheduler backend name")
	listBackends := fs.Bool("list-backends", false, "List supported backends and exit")
	metricsListen := fs.String("metrics-listen", "", "Serve Prometheus metrics on this address (disabled when empty)")
	rateLimit := fs.Float64("rate-limit", 0, "Admit at most this many RPCs per second (0 = unlimited)")
	rateBurst := fs.Int("rate-burst", 16, "Burst allowance for --rate-limit")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "Wait this long for open RPCs on shutdown before closing them")
	streamErrors := fs.Bool("stream-errors", false, "End WatchCommittees with INTERNAL on feed errors instead of closing cleanly")

	logCfg := logging.DefaultConfig()
	logCfg.RegisterFlags(fs)
	registry.RegisterFlags(fs, registry.UsageDaemon)

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *listBackends {
		for _, b := range registry.List(registry.UsageDaemon) {
			if b.Description == "" {
				_, _ = fmt.Fprintf(out, "%s\n", b.Name)
				continue
			}
			_, _ = fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
		}
		return 0
	}

	logger, err := logging.New(logCfg)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	defer func() { _ = logger.Sync() }()

	sched, closeFn, err := registry.Open(*backend, registry.UsageDaemon, registry.Env{Logger: logger})
	if err != nil {
		logger.Error("open backend", zap.String("backend", *backend), zap.Error(err))
		return 2
	}
	// The backend is closed on shutdown before the gRPC server drains, so
	// open watches end and GracefulStop can return. The deferred call covers
	// early exits.
	var closeOnce sync.Once
	closeBackend := func() {
		closeOnce.Do(func() {
			if closeFn == nil {
				return
			}
			if err := closeFn(); err != nil {
				logger.Warn("close backend", zap.Error(err))
			}
		})
	}
	defer closeBackend()

	lis, err := netaddr.Listen(*listen)
	if err != nil {
		logger.Error("listen", zap.String("addr", *listen), zap.Error(err))
		return 1
	}

	m := metrics.NewRPC()
	s := newGRPCServer(logger, m, ratelimit.New(*rateLimit, *rateBurst))
	grpcsched.RegisterSchedulerServer(s, grpcsched.NewServer(sched,
		grpcsched.WithLogger(logger.Named("grpc")),
		grpcsched.WithStreamErrors(*streamErrors),
	))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("schedulerd listening", zap.String("addr", lis.Addr().String()), zap.String("backend", *backend))
		return s.Serve(lis)
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		closeBackend()
		stopped := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(*shutdownTimeout):
			logger.Warn("graceful stop timed out, closing remaining RPCs", zap.Duration("timeout", *shutdownTimeout))
			s.Stop()
		}
		return nil
	})
	if r, ok := sched.(interface{ Run(context.Context) error }); ok {
		g.Go(func() error { return r.Run(ctx) })
	}
	if *metricsListen != "" {
		r := chi.NewRouter()
		r.Method(http.MethodGet, "/metrics", m.Handler())
		r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "ok\n")
		})
		hs := &http.Server{Addr: *metricsListen, Handler: r, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			logger.Info("metrics listening", zap.String("addr", *metricsListen))
			if err := hs.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return hs.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		logger.Error("schedulerd stopped", zap.Error(err))
		return 1
	}
	return 0
}

// newGRPCServer chains request logging, admission and metrics. The limiter
// runs before metrics so rejected calls never count as handled or open.
func newGRPCServer(logger *zap.Logger, m *metrics.RPC, limiter *ratelimit.Limiter) *grpc.Server {
	rpcLogger := logger.Named("rpc")
	return grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			rpclog.UnaryInterceptor(rpcLogger),
			limiter.UnaryInterceptor(),
			m.UnaryInterceptor(),
		),
		grpc.ChainStreamInterceptor(
			rpclog.StreamInterceptor(rpcLogger),
			limiter.StreamInterceptor(),
			m.StreamInterceptor(),
		),
	)
}
