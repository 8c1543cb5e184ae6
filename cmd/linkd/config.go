package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// appConfig holds every runtime knob for linkd. Flags set defaults; env vars
// override only the flags the operator did not explicitly pass (see
// applyEnvOverrides).
type appConfig struct {
	nodeID uint16

	serialDev         string
	baud              int
	serialReadTimeout time.Duration
	pollInterval      time.Duration

	monitorListenAddr     string
	monitorHubBuffer      int
	monitorHubPolicy      string
	monitorMaxClients     int
	monitorHandshakeTO    time.Duration
	monitorClientReadTO   time.Duration

	logFormat       string
	logLevel        string
	logMetricsEvery time.Duration

	metricsAddr string

	mdnsEnable bool
	mdnsName   string
}

func defaultConfig() *appConfig {
	return &appConfig{
		nodeID:                1,
		serialDev:             "/dev/ttyUSB0",
		baud:                  115200,
		serialReadTimeout:     20 * time.Millisecond,
		pollInterval:          5 * time.Millisecond,
		monitorListenAddr:     ":7800",
		monitorHubBuffer:      64,
		monitorHubPolicy:      "drop",
		monitorMaxClients:     8,
		monitorHandshakeTO:    3 * time.Second,
		monitorClientReadTO:   60 * time.Second,
		logFormat:             "text",
		logLevel:              "info",
		logMetricsEvery:       30 * time.Second,
		metricsAddr:           ":9100",
		mdnsEnable:            false,
		mdnsName:              "",
	}
}

// parseFlags parses os.Args[1:] into an appConfig and reports which flag
// names were explicitly set, so applyEnvOverrides knows not to clobber them.
func parseFlags(args []string) (*appConfig, map[string]bool, error) {
	c := defaultConfig()
	fs := flag.NewFlagSet("linkd", flag.ContinueOnError)

	var nodeIDStr string
	fs.StringVar(&nodeIDStr, "id", fmt.Sprintf("%d", c.nodeID), "this node's link address (decimal or 0x-prefixed hex)")
	fs.StringVar(&c.serialDev, "serial", c.serialDev, "UART device path")
	fs.IntVar(&c.baud, "baud", c.baud, "UART baud rate")
	fs.DurationVar(&c.serialReadTimeout, "serial-read-timeout", c.serialReadTimeout, "UART read timeout")
	fs.DurationVar(&c.pollInterval, "poll-interval", c.pollInterval, "interval between Node.Poll calls")

	fs.StringVar(&c.monitorListenAddr, "monitor-listen", c.monitorListenAddr, "monitor TCP listen address")
	fs.IntVar(&c.monitorHubBuffer, "monitor-buffer", c.monitorHubBuffer, "per-client monitor event queue depth")
	fs.StringVar(&c.monitorHubPolicy, "monitor-policy", c.monitorHubPolicy, "backpressure policy for slow monitor clients: drop or kick")
	fs.IntVar(&c.monitorMaxClients, "monitor-max-clients", c.monitorMaxClients, "maximum concurrent monitor clients (0 = unlimited)")
	fs.DurationVar(&c.monitorHandshakeTO, "monitor-handshake-timeout", c.monitorHandshakeTO, "monitor handshake timeout")
	fs.DurationVar(&c.monitorClientReadTO, "monitor-client-read-timeout", c.monitorClientReadTO, "monitor client read timeout (not passed to the monitor server, which uses a fixed 60s read deadline)")

	fs.StringVar(&c.logFormat, "log-format", c.logFormat, "log format: text or json")
	fs.StringVar(&c.logLevel, "log-level", c.logLevel, "log level: debug, info, warn, error")
	fs.DurationVar(&c.logMetricsEvery, "log-metrics-interval", c.logMetricsEvery, "interval between metrics summary log lines (0 disables)")

	fs.StringVar(&c.metricsAddr, "metrics", c.metricsAddr, "Prometheus /metrics and /ready listen address (empty disables)")

	fs.BoolVar(&c.mdnsEnable, "mdns", c.mdnsEnable, "advertise the monitor endpoint via mDNS")
	fs.StringVar(&c.mdnsName, "mdns-name", c.mdnsName, "mDNS instance name (default linkd-<hostname>)")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	id, err := strconv.ParseUint(nodeIDStr, 0, 16)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid -id %q: %w", nodeIDStr, err)
	}
	c.nodeID = uint16(id)

	setFlags := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return c, setFlags, nil
}

// applyEnvOverrides fills in values from LINKD_* environment variables for
// any flag the operator did not explicitly pass.
func applyEnvOverrides(c *appConfig, setFlags map[string]bool) error {
	str := func(flagName, env string, dst *string) {
		if setFlags[flagName] {
			return
		}
		if v, ok := os.LookupEnv(env); ok {
			*dst = v
		}
	}
	boolean := func(flagName, env string, dst *bool) error {
		if setFlags[flagName] {
			return nil
		}
		v, ok := os.LookupEnv(env)
		if !ok {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s=%q: %w", env, v, err)
		}
		*dst = b
		return nil
	}
	integer := func(flagName, env string, dst *int) error {
		if setFlags[flagName] {
			return nil
		}
		v, ok := os.LookupEnv(env)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s=%q: %w", env, v, err)
		}
		*dst = n
		return nil
	}
	duration := func(flagName, env string, dst *time.Duration) error {
		if setFlags[flagName] {
			return nil
		}
		v, ok := os.LookupEnv(env)
		if !ok {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s=%q: %w", env, v, err)
		}
		*dst = d
		return nil
	}

	if !setFlags["id"] {
		if v, ok := os.LookupEnv("LINKD_ID"); ok {
			id, err := strconv.ParseUint(v, 0, 16)
			if err != nil {
				return fmt.Errorf("invalid LINKD_ID=%q: %w", v, err)
			}
			c.nodeID = uint16(id)
		}
	}

	str("serial", "LINKD_SERIAL", &c.serialDev)
	if err := integer("baud", "LINKD_BAUD", &c.baud); err != nil {
		return err
	}
	if err := duration("serial-read-timeout", "LINKD_SERIAL_READ_TIMEOUT", &c.serialReadTimeout); err != nil {
		return err
	}
	if err := duration("poll-interval", "LINKD_POLL_INTERVAL", &c.pollInterval); err != nil {
		return err
	}

	str("monitor-listen", "LINKD_MONITOR_LISTEN", &c.monitorListenAddr)
	if err := integer("monitor-buffer", "LINKD_MONITOR_BUFFER", &c.monitorHubBuffer); err != nil {
		return err
	}
	str("monitor-policy", "LINKD_MONITOR_POLICY", &c.monitorHubPolicy)
	if err := integer("monitor-max-clients", "LINKD_MONITOR_MAX_CLIENTS", &c.monitorMaxClients); err != nil {
		return err
	}
	if err := duration("monitor-handshake-timeout", "LINKD_MONITOR_HANDSHAKE_TIMEOUT", &c.monitorHandshakeTO); err != nil {
		return err
	}
	if err := duration("monitor-client-read-timeout", "LINKD_MONITOR_CLIENT_READ_TIMEOUT", &c.monitorClientReadTO); err != nil {
		return err
	}

	str("log-format", "LINKD_LOG_FORMAT", &c.logFormat)
	str("log-level", "LINKD_LOG_LEVEL", &c.logLevel)
	if err := duration("log-metrics-interval", "LINKD_LOG_METRICS_INTERVAL", &c.logMetricsEvery); err != nil {
		return err
	}

	str("metrics", "LINKD_METRICS", &c.metricsAddr)

	if err := boolean("mdns", "LINKD_MDNS_ENABLE", &c.mdnsEnable); err != nil {
		return err
	}
	str("mdns-name", "LINKD_MDNS_NAME", &c.mdnsName)

	return nil
}

func (c *appConfig) validate() error {
	if c.serialDev == "" {
		return fmt.Errorf("serial device must not be empty")
	}
	if c.baud <= 0 {
		return fmt.Errorf("baud must be positive, got %d", c.baud)
	}
	if c.pollInterval <= 0 {
		return fmt.Errorf("poll-interval must be positive")
	}
	switch c.monitorHubPolicy {
	case "drop", "kick":
	default:
		return fmt.Errorf("monitor-policy must be drop or kick, got %q", c.monitorHubPolicy)
	}
	if c.monitorHubBuffer <= 0 {
		return fmt.Errorf("monitor-buffer must be positive, got %d", c.monitorHubBuffer)
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log-format must be text or json, got %q", c.logFormat)
	}
	return nil
}
