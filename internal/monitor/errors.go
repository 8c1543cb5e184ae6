package monitor

import (
	"errors"

	"github.com/minimirror/linkd/internal/metrics"
)

// Sentinel errors used for wrapping so callers can classify via errors.Is.
var (
	ErrListen    = errors.New("listen")
	ErrAccept    = errors.New("accept")
	ErrHandshake = errors.New("handshake")
	ErrConnRead  = errors.New("conn_read")
	ErrConnWrite = errors.New("conn_write")
	ErrContext   = errors.New("context_cancelled")
)

// mapErrToMetric maps a wrapped sentinel error to a metrics label.
func mapErrToMetric(err error) string {
	switch {
	case errors.Is(err, ErrConnRead):
		return metrics.ErrMonitorRead
	case errors.Is(err, ErrConnWrite):
		return metrics.ErrMonitorWrite
	case errors.Is(err, ErrHandshake):
		return metrics.ErrMonitorHandshk
	case errors.Is(err, ErrAccept), errors.Is(err, ErrListen):
		return metrics.ErrMonitorAccept
	default:
		return "other"
	}
}
