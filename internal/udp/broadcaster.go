// Package udp mirrors display commands to a remote chart view as JSON
// datagrams, one command per datagram.
package udp

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"

	"rotationctrl/internal/display"
)

type udpConn interface {
	Write(p []byte) (int, error)
	Close() error
}

type resolveFunc func(network, address string) (*net.UDPAddr, error)
type dialFunc func(network string, laddr, raddr *net.UDPAddr) (udpConn, error)

type Broadcaster struct {
	dest string
	conn udpConn
	log  *slog.Logger

	sent   atomic.Uint64
	failed atomic.Uint64
}

func NewBroadcaster(dest string, logger *slog.Logger) (*Broadcaster, error) {
	dial := func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
		return net.DialUDP(network, laddr, raddr)
	}
	b, err := newBroadcaster(dest, net.ResolveUDPAddr, dial)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		b.log = logger.With("component", "udp", "dest", dest)
	}
	return b, nil
}

func newBroadcaster(dest string, resolve resolveFunc, dial dialFunc) (*Broadcaster, error) {
	addr, err := resolve("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("resolve dest: %w", err)
	}

	// DialUDP selects a suitable local address automatically.
	conn, err := dial("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp: %w", err)
	}
	return &Broadcaster{dest: dest, conn: conn, log: slog.Default().With("component", "udp", "dest", dest)}, nil
}

// Display returns a rotation.Display that mirrors into b.
func (b *Broadcaster) Display() display.Remote {
	return display.Remote{S: b}
}

// Send encodes c and writes it. Failures are counted and logged at debug
// level; a missing listener must not disturb the controller.
func (b *Broadcaster) Send(c display.Command) {
	payload, err := json.Marshal(c)
	if err == nil {
		err = b.write(payload)
	}
	if err != nil {
		b.failed.Add(1)
		b.log.Debug("udp send failed", "type", c.Type, "err", err)
		return
	}
	b.sent.Add(1)
}

func (b *Broadcaster) write(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	_, err := b.conn.Write(payload)
	return err
}

// Counts returns datagrams sent and failed so far.
func (b *Broadcaster) Counts() (sent, failed uint64) {
	return b.sent.Load(), b.failed.Load()
}

func (b *Broadcaster) Close() error {
	if b.conn == nil {
		return nil
	}
	return b.conn.Close()
}
