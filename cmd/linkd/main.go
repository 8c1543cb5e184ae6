package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/minimirror/linkd/internal/metrics"
	"github.com/minimirror/linkd/internal/monitor"
	"github.com/minimirror/linkd/internal/node"
	"github.com/minimirror/linkd/internal/serial"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "linkd:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, setFlags, err := parseFlags(os.Args[1:])
	if err != nil {
		return err
	}
	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		return err
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	logger, err := setupLogger(cfg.logFormat, cfg.logLevel)
	if err != nil {
		return err
	}
	logger.Info("linkd_starting", "version", version, "commit", commit, "node_id", cfg.nodeID)

	metrics.InitBuildInfo(version, commit, date)

	hub := initHub(cfg, logger)
	monSrv := monitor.NewServer(hub,
		monitor.WithListenAddr(cfg.monitorListenAddr),
		monitor.WithMaxClients(cfg.monitorMaxClients),
		monitor.WithHandshakeTimeout(cfg.monitorHandshakeTO),
		monitor.WithLogger(logger),
	)

	transport := serial.NewPortTransport(cfg.serialDev, cfg.baud, cfg.serialReadTimeout)
	if err := transport.Open(); err != nil {
		return fmt.Errorf("open serial %s: %w", cfg.serialDev, err)
	}
	defer transport.Close()

	n := node.New(cfg.nodeID, transport,
		node.WithEventSink(func(ev node.Event) {
			recordMetrics(ev)
			hub.Broadcast(monitor.FromNodeEvent(ev, time.Now()))
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		runPollLoop(ctx, n, cfg.pollInterval, logger)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := monSrv.Serve(ctx); err != nil {
			logger.Error("monitor_serve_exited", "error", err)
		}
	}()

	select {
	case <-monSrv.Ready():
	case <-time.After(5 * time.Second):
		logger.Warn("monitor_not_ready_in_time")
	}
	metrics.SetReadinessFunc(func() bool { return transport.IsOpen() })

	var mdnsCleanup func()
	if _, portStr, splitErr := net.SplitHostPort(monSrv.Addr()); splitErr == nil {
		if port, convErr := strconv.Atoi(portStr); convErr == nil {
			cleanup, mdnsErr := startMDNS(ctx, cfg, port)
			if mdnsErr != nil {
				logger.Warn("mdns_start_failed", "error", mdnsErr)
			} else {
				mdnsCleanup = cleanup
			}
		}
	}

	var metricsHTTP interface{ Close() error }
	if cfg.metricsAddr != "" {
		metricsHTTP = metrics.StartHTTP(cfg.metricsAddr)
	}

	startMetricsLogger(ctx, cfg.logMetricsEvery, logger, &wg)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("linkd_shutting_down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := monSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("monitor_shutdown_error", "error", err)
	}
	if mdnsCleanup != nil {
		mdnsCleanup()
	}
	if metricsHTTP != nil {
		_ = metricsHTTP.Close()
	}
	wg.Wait()
	return nil
}

// runPollLoop drives Node.Poll on a fixed tick. Poll itself never blocks, so
// the tick interval bounds reply latency, not throughput.
func runPollLoop(ctx context.Context, n *node.Node, interval time.Duration, l *slog.Logger) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := n.Poll(); err != nil {
				l.Warn("poll_error", "error", err)
			}
		}
	}
}

// recordMetrics mirrors node events into Prometheus counters; this is the
// only place node.EventKind is translated into a metric.
func recordMetrics(ev node.Event) {
	switch ev.Kind {
	case node.EventFrameAccepted:
		metrics.IncRx()
	case node.EventCRCReject:
		metrics.IncCRCReject()
	case node.EventResync:
		metrics.IncResync()
	case node.EventSequenceGap:
		metrics.AddSequenceGap(1)
	case node.EventSequenceRegression:
		metrics.IncSequenceRegression()
	case node.EventUnknownCommand:
		metrics.IncUnknownCommand()
	case node.EventFileStage:
		stage, outcome := "unknown", "ok"
		if parts := strings.Fields(ev.Detail); len(parts) > 0 {
			stage = parts[len(parts)-1]
		}
		metrics.IncFileTransferStage(stage, outcome)
	}
}
