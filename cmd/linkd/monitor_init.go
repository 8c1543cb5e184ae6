package main

import (
	"log/slog"

	"github.com/minimirror/linkd/internal/monitor"
)

// initHub builds the monitor Hub from config, logging the resolved
// backpressure policy so it shows up in the startup log line.
func initHub(cfg *appConfig, l *slog.Logger) *monitor.Hub {
	h := monitor.New()
	h.OutBufSize = cfg.monitorHubBuffer
	switch cfg.monitorHubPolicy {
	case "kick":
		h.Policy = monitor.PolicyKick
	default:
		h.Policy = monitor.PolicyDrop
	}
	l.Info("monitor_hub_config",
		"buffer", cfg.monitorHubBuffer,
		"policy", cfg.monitorHubPolicy,
		"max_clients", cfg.monitorMaxClients,
	)
	return h
}
