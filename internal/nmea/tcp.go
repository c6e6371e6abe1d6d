package nmea

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"
)

const (
	tcpDialTimeout    = 2 * time.Second
	tcpReconnectDelay = time.Second
)

// runTCP connects to an NMEA-over-TCP server (a multiplexer or another
// plotter sharing its feed) and reconnects after failures.
func (s *Service) runTCP(ctx context.Context) error {
	addr := strings.TrimSpace(s.cfg.TCPAddr)
	if addr == "" {
		return errors.New("nmea: tcp_addr is required for tcp source")
	}
	dialer := &net.Dialer{Timeout: tcpDialTimeout}

	for ctx.Err() == nil {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			s.update(func(sn *Snapshot) { sn.Connected = false; sn.LastError = err.Error() })
			if !sleepCtx(ctx, tcpReconnectDelay) {
				return nil
			}
			continue
		}
		s.log.Info("tcp connected", "addr", addr)
		s.update(func(sn *Snapshot) { sn.Connected = true; sn.Device = addr; sn.LastError = "" })

		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
		err = s.readLines(ctx, conn)
		stop()
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		s.log.Warn("tcp read stopped", "addr", addr, "err", err)
		s.update(func(sn *Snapshot) { sn.Connected = false; sn.LastError = err.Error() })
		if !sleepCtx(ctx, tcpReconnectDelay) {
			return nil
		}
	}
	return nil
}

// sleepCtx waits d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
