package monitor

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/minimirror/linkd/internal/metrics"
)

// startReader drains (and discards) whatever the client sends, purely to
// detect disconnects promptly; the monitor protocol is one-directional.
func (s *Server) startReader(cl *Client, conn net.Conn, logger *slog.Logger) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			_ = conn.Close()
			s.Hub.Remove(cl)
			logger.Info("monitor_client_disconnected")
		}()
		buf := make([]byte, 256)
		for {
			_ = conn.SetReadDeadline(time.Now().Add(s.readDeadline))
			_, err := conn.Read(buf)
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					continue
				}
				wrap := fmt.Errorf("%w: %v", ErrConnRead, err)
				metrics.IncError(mapErrToMetric(wrap))
				return
			}
		}
	}()
}
