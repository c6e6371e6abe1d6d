package udp

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"testing"
	"time"

	"rotationctrl/internal/display"
	"rotationctrl/internal/rotation"
)

type fakeConn struct {
	writes    [][]byte
	writeErr  error
	closed    bool
	closeErr  error
	writeHits int
}

func (c *fakeConn) Write(p []byte) (int, error) {
	c.writeHits++
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	cp := append([]byte(nil), p...)
	c.writes = append(c.writes, cp)
	return len(p), nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return c.closeErr
}

func newTestBroadcaster(fc *fakeConn) *Broadcaster {
	return &Broadcaster{dest: "x", conn: fc, log: slog.Default()}
}

func TestNewBroadcaster_DialsResolvedAddr(t *testing.T) {
	var gotNetwork string
	var gotRaddr *net.UDPAddr
	fc := &fakeConn{}

	resolve := func(network, address string) (*net.UDPAddr, error) {
		return net.ResolveUDPAddr(network, address)
	}

	dial := func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
		gotNetwork = network
		gotRaddr = raddr
		return fc, nil
	}

	b, err := newBroadcaster("127.0.0.1:4000", resolve, dial)
	if err != nil {
		t.Fatalf("newBroadcaster() error: %v", err)
	}
	defer b.Close()

	if gotNetwork != "udp" {
		t.Fatalf("network=%q want %q", gotNetwork, "udp")
	}
	if gotRaddr == nil || gotRaddr.Port != 4000 || !gotRaddr.IP.Equal(net.IPv4(127, 0, 0, 1)) {
		t.Fatalf("raddr=%v want 127.0.0.1:4000", gotRaddr)
	}
}

func TestNewBroadcaster_ResolveFailure(t *testing.T) {
	resolveErr := errors.New("nope")
	resolve := func(network, address string) (*net.UDPAddr, error) {
		return nil, resolveErr
	}
	dial := func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
		return &fakeConn{}, nil
	}

	_, err := newBroadcaster("bad:addr", resolve, dial)
	if !errors.Is(err, resolveErr) {
		t.Fatalf("err=%v want %v", err, resolveErr)
	}
}

func TestBroadcaster_DisplayWritesJSON(t *testing.T) {
	fc := &fakeConn{}
	b := newTestBroadcaster(fc)
	d := b.Display()

	d.SetRotation(0.5)
	d.SetActiveTool(rotation.WindUp)
	d.Notice("route changed")

	if fc.writeHits != 3 {
		t.Fatalf("expected 3 writes, got %d", fc.writeHits)
	}
	var c display.Command
	if err := json.Unmarshal(fc.writes[0], &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if c.Type != display.TypeSetRotation || c.Radians == nil || *c.Radians != 0.5 {
		t.Fatalf("command=%+v", c)
	}
	if err := json.Unmarshal(fc.writes[1], &c); err != nil || c.Tool != "wind_up" {
		t.Fatalf("command=%+v err=%v", c, err)
	}
	if sent, failed := b.Counts(); sent != 3 || failed != 0 {
		t.Fatalf("sent=%d failed=%d", sent, failed)
	}
}

func TestBroadcaster_Send_CountsErrors(t *testing.T) {
	fc := &fakeConn{writeErr: errors.New("boom")}
	b := newTestBroadcaster(fc)

	b.Send(display.Command{Type: display.TypeRefresh})
	if sent, failed := b.Counts(); sent != 0 || failed != 1 {
		t.Fatalf("sent=%d failed=%d want 0,1", sent, failed)
	}
}

func TestBroadcaster_Close_NilConnNoPanic(t *testing.T) {
	b := &Broadcaster{}
	if err := b.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
}

func TestBroadcaster_Loopback(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer pc.Close()

	b, err := NewBroadcaster(pc.LocalAddr().String(), nil)
	if err != nil {
		t.Fatalf("NewBroadcaster() error: %v", err)
	}
	defer b.Close()

	b.Display().RequestRefresh()

	_ = pc.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1500)
	n, _, err := pc.ReadFrom(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf[:n]) != `{"type":"refresh"}` {
		t.Fatalf("datagram=%s", buf[:n])
	}
}
