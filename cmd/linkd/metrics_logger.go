package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/minimirror/linkd/internal/metrics"
)

// startMetricsLogger periodically logs a metrics snapshot so the counters
// show up even when nobody is scraping /metrics.
func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s := metrics.Snap()
				l.Info("metrics_summary",
					"rx", s.Rx,
					"tx", s.Tx,
					"crc_rejects", s.CRCRejects,
					"resyncs", s.Resyncs,
					"sequence_gaps", s.SequenceGaps,
					"sequence_regressions", s.SequenceRegression,
					"unknown_commands", s.UnknownCommands,
					"errors", s.Errors,
					"monitor_clients", s.MonitorClients,
					"monitor_fanout", s.MonitorFanout,
					"monitor_drops", s.MonitorDrops,
					"monitor_kicks", s.MonitorKicks,
				)
			}
		}
	}()
}
