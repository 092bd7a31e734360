// Command ecod-dashboard serves the ECOD cluster review API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"ecodcluster/internal/adapters/httpapi"
	"ecodcluster/internal/blob"
	"ecodcluster/internal/config"
	"ecodcluster/internal/core"
	"ecodcluster/internal/logging"
	"ecodcluster/internal/server"
)

var exitFunc = os.Exit

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	exitFunc(code)
}

func cli(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ecod-dashboard", flag.ContinueOnError)
	fs.SetOutput(stderr)
	flags := config.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	cfg, err := flags.Resolve(nil)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	if err := run(ctx, cfg, stdout); err != nil {
		_, _ = fmt.Fprintf(stderr, "ecod-dashboard: %v\n", err)
		return 1
	}
	return 0
}

// run wires the service from cfg and serves until ctx is cancelled.
func run(ctx context.Context, cfg config.Config, stdout io.Writer) error {
	log, err := logging.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer log.Sync()

	tracer, shutdownTracer, err := core.OpenTracer(cfg.Tracing, stdout)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(flushCtx); err != nil {
			log.Warn("trace exporter shutdown failed", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := core.NewPrometheusMetricsRecorder(reg)
	if err != nil {
		return err
	}

	source, err := core.OpenClusterSource(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	svc := core.NewService(source,
		core.WithLogger(log.With("component", "service")),
		core.WithMetricsRecorder(metrics),
		core.WithTracer(tracer),
	)
	defer func() {
		if err := svc.Close(); err != nil {
			log.Warn("close cluster source failed", "error", err)
		}
	}()

	store, err := blob.Open(ctx, cfg.Blob, cfg.Server.PublicURL)
	if err != nil {
		return err
	}
	reports := core.NewReportService(svc, store)

	log.Info("ecod-dashboard starting",
		"addr", cfg.Server.Addr,
		"storage", cfg.Storage.Driver,
		"blob", cfg.Blob.Driver,
		"trace", cfg.Tracing.Exporter,
	)
	ready := func(ctx context.Context) error {
		_, err := svc.ListClusterSets(ctx)
		return err
	}
	handler := server.NewHandler(httpapi.NewHandler(svc, reports), reg, ready, log.With("component", "http"))
	return server.New(cfg.Server, handler, log).ListenAndServe(ctx)
}
