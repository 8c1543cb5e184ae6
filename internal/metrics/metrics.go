package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/minimirror/linkd/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus collectors.
var (
	LinkRxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "link_rx_frames_total",
		Help: "Total frames accepted (CRC-valid, sequence-accepted) from the link.",
	})
	LinkTxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "link_tx_frames_total",
		Help: "Total frames written to the link, including replies.",
	})
	CRCRejects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "link_crc_rejects_total",
		Help: "Total frames dropped due to a CRC mismatch.",
	})
	Resyncs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "link_resyncs_total",
		Help: "Total times the receiver abandoned an in-progress frame and rescanned for the preamble.",
	})
	SequenceGaps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "link_sequence_gaps_total",
		Help: "Total forward sequence jumps observed (missed frames), summed across senders.",
	})
	SequenceRegressions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "link_sequence_regressions_total",
		Help: "Total frames dropped because their sequence number regressed.",
	})
	UnknownCommands = promauto.NewCounter(prometheus.CounterOpts{
		Name: "link_unknown_commands_total",
		Help: "Total frames accepted whose command code has no registered handler.",
	})
	FileTransferStages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "file_transfer_stage_total",
		Help: "File-receive sub-protocol stage frames by stage; recorded when the frame arrives, so outcome is always \"ok\".",
	}, []string{"stage", "outcome"})

	MonitorDroppedEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitor_dropped_events_total",
		Help: "Total monitor events dropped by the hub due to slow clients.",
	})
	MonitorKickedClients = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitor_kicked_clients_total",
		Help: "Total monitor clients disconnected due to the backpressure kick policy.",
	})
	MonitorRejectedClients = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitor_rejected_clients_total",
		Help: "Total monitor connection attempts rejected (e.g., max-clients).",
	})
	MonitorActiveClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "monitor_active_clients",
		Help: "Current number of connected monitor clients.",
	})
	MonitorBroadcastFanout = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "monitor_broadcast_fanout",
		Help: "Number of monitor clients targeted in the most recent broadcast.",
	})
	MonitorQueueDepthMax = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "monitor_queue_depth_max",
		Help: "Observed max queued events among monitor clients in the last sample.",
	})
	MonitorQueueDepthAvg = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "monitor_queue_depth_avg",
		Help: "Approximate average queued events per monitor client in the last sample.",
	})

	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality).
const (
	ErrSerialRead     = "serial_read"
	ErrSerialWrite    = "serial_write"
	ErrMonitorAccept  = "monitor_accept"
	ErrMonitorHandshk = "monitor_handshake"
	ErrMonitorRead    = "monitor_read"
	ErrMonitorWrite   = "monitor_write"
)

// StartHTTP serves Prometheus metrics at /metrics and a readiness probe at
// /ready on addr.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters, cheap to read for a log line without scraping.
var (
	localRx        uint64
	localTx        uint64
	localCRCReject uint64
	localResync    uint64
	localSeqGap    uint64
	localSeqRegr   uint64
	localUnknown   uint64
	localErrors    uint64
	localMonDrop   uint64
	localMonKick   uint64
	localMonReject uint64
	localMonClient uint64
	localMonFanout uint64
)

// Snapshot is a cheap copy of local counters, suitable for periodic logging.
type Snapshot struct {
	Rx                 uint64
	Tx                 uint64
	CRCRejects         uint64
	Resyncs            uint64
	SequenceGaps       uint64
	SequenceRegression uint64
	UnknownCommands    uint64
	Errors             uint64
	MonitorClients     uint64
	MonitorFanout      uint64
	MonitorDrops       uint64
	MonitorKicks       uint64
}

func Snap() Snapshot {
	return Snapshot{
		Rx:                 atomic.LoadUint64(&localRx),
		Tx:                 atomic.LoadUint64(&localTx),
		CRCRejects:         atomic.LoadUint64(&localCRCReject),
		Resyncs:            atomic.LoadUint64(&localResync),
		SequenceGaps:       atomic.LoadUint64(&localSeqGap),
		SequenceRegression: atomic.LoadUint64(&localSeqRegr),
		UnknownCommands:    atomic.LoadUint64(&localUnknown),
		Errors:             atomic.LoadUint64(&localErrors),
		MonitorClients:     atomic.LoadUint64(&localMonClient),
		MonitorFanout:      atomic.LoadUint64(&localMonFanout),
		MonitorDrops:       atomic.LoadUint64(&localMonDrop),
		MonitorKicks:       atomic.LoadUint64(&localMonKick),
	}
}

func IncRx() { LinkRxFrames.Inc(); atomic.AddUint64(&localRx, 1) }
func IncTx() { LinkTxFrames.Inc(); atomic.AddUint64(&localTx, 1) }

func IncCRCReject() { CRCRejects.Inc(); atomic.AddUint64(&localCRCReject, 1) }
func IncResync()    { Resyncs.Inc(); atomic.AddUint64(&localResync, 1) }

func AddSequenceGap(n uint32) {
	SequenceGaps.Add(float64(n))
	atomic.AddUint64(&localSeqGap, uint64(n))
}

func IncSequenceRegression() {
	SequenceRegressions.Inc()
	atomic.AddUint64(&localSeqRegr, 1)
}

func IncUnknownCommand() {
	UnknownCommands.Inc()
	atomic.AddUint64(&localUnknown, 1)
}

func IncFileTransferStage(stage, outcome string) {
	FileTransferStages.WithLabelValues(stage, outcome).Inc()
}

func IncMonitorDrop() {
	MonitorDroppedEvents.Inc()
	atomic.AddUint64(&localMonDrop, 1)
}

func IncMonitorKick() {
	MonitorKickedClients.Inc()
	atomic.AddUint64(&localMonKick, 1)
}

func IncMonitorReject() {
	MonitorRejectedClients.Inc()
	atomic.AddUint64(&localMonReject, 1)
}

func SetMonitorClients(n int) {
	MonitorActiveClients.Set(float64(n))
	atomic.StoreUint64(&localMonClient, uint64(n))
}

func SetMonitorFanout(n int) {
	MonitorBroadcastFanout.Set(float64(n))
	atomic.StoreUint64(&localMonFanout, uint64(n))
}

func SetMonitorQueueDepth(max, avg int) {
	MonitorQueueDepthMax.Set(float64(max))
	MonitorQueueDepthAvg.Set(float64(avg))
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// InitBuildInfo sets the build info gauge and pre-registers error label
// series so the first real error doesn't pay registration latency.
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	for _, lbl := range []string{
		ErrSerialRead, ErrSerialWrite,
		ErrMonitorAccept, ErrMonitorHandshk, ErrMonitorRead, ErrMonitorWrite,
	} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil {
		return true
	}
	return fn()
}
