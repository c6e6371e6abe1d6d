package nmea

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"rotationctrl/internal/rotation"
)

// Config selects where sentences come from.
type Config struct {
	// Source is "serial", "udp", "tcp", "sim", "replay" or "none". For "sim" and
	// "replay" the caller feeds lines through HandleLine.
	Source string

	Device string
	Baud   int

	// UDPListen is host:port for Source=="udp".
	UDPListen string
	// TCPAddr is host:port for Source=="tcp".
	TCPAddr string

	// Tap, when set, sees every sentence that passed checksum validation.
	Tap func(line string)
}

// Sink receives every decoded event.
type Sink func(ev rotation.Event)

type Snapshot struct {
	Source    string    `json:"source"`
	Device    string    `json:"device,omitempty"`
	Connected bool      `json:"connected"`
	Sentences uint64    `json:"sentences"`
	Events    uint64    `json:"events"`
	Errors    uint64    `json:"errors"`
	LastRxUTC time.Time `json:"last_rx_utc,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

type Service struct {
	cfg  Config
	sink Sink
	log  *slog.Logger

	mu  sync.Mutex
	dec *Decoder

	sentences atomic.Uint64
	events    atomic.Uint64
	errs      atomic.Uint64
	last      atomic.Value // Snapshot
}

func New(cfg Config, sink Sink, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.Source = strings.ToLower(strings.TrimSpace(cfg.Source))
	if cfg.Source == "" {
		cfg.Source = "none"
	}
	s := &Service{cfg: cfg, sink: sink, log: logger.With("component", "nmea"), dec: NewDecoder()}
	s.last.Store(Snapshot{Source: cfg.Source, Device: cfg.Device})
	return s
}

// Run reads sentences until ctx is cancelled. Serial errors are retried
// with backoff; they never end Run.
func (s *Service) Run(ctx context.Context) error {
	switch s.cfg.Source {
	case "serial":
		return s.runSerial(ctx)
	case "udp":
		return s.runUDP(ctx)
	case "tcp":
		return s.runTCP(ctx)
	case "sim", "replay", "none":
		<-ctx.Done()
		return nil
	default:
		return fmt.Errorf("nmea: unknown source %q", s.cfg.Source)
	}
}

// HandleLine decodes one sentence and forwards the result to the sink.
func (s *Service) HandleLine(line string) {
	line = strings.TrimSpace(line)
	if line == "" || (line[0] != '$' && line[0] != '!') {
		return
	}
	s.sentences.Add(1)
	s.mu.Lock()
	ev, err := s.dec.Decode(line)
	s.mu.Unlock()
	if err != nil {
		s.errs.Add(1)
		s.update(func(sn *Snapshot) { sn.LastError = err.Error() })
		return
	}
	if s.cfg.Tap != nil {
		s.cfg.Tap(line)
	}
	s.update(func(sn *Snapshot) { sn.LastRxUTC = time.Now().UTC() })
	if ev == nil || s.sink == nil {
		return
	}
	s.events.Add(1)
	s.sink(ev)
}

func (s *Service) Snapshot() Snapshot {
	sn := s.last.Load().(Snapshot)
	sn.Sentences = s.sentences.Load()
	sn.Events = s.events.Load()
	sn.Errors = s.errs.Load()
	return sn
}

func (s *Service) update(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sn := s.last.Load().(Snapshot)
	fn(&sn)
	s.last.Store(sn)
}

func (s *Service) readLines(ctx context.Context, r io.Reader) error {
	sc := bufio.NewScanner(r)
	// Sentences are at most 82 chars; leave headroom for chatter.
	sc.Buffer(make([]byte, 0, 256), 4096)
	for sc.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		s.HandleLine(sc.Text())
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return io.EOF
}

func (s *Service) runSerial(ctx context.Context) error {
	device := strings.TrimSpace(s.cfg.Device)
	if device == "" {
		return errors.New("nmea: device is required for serial source")
	}
	baud := s.cfg.Baud
	if baud == 0 {
		baud = 4800
	}

	backoff := 250 * time.Millisecond
	const maxBackoff = 10 * time.Second
	for ctx.Err() == nil {
		f, err := openSerial(device, baud)
		if err != nil {
			s.log.Warn("serial open failed", "device", device, "baud", baud, "err", err)
			s.update(func(sn *Snapshot) { sn.Connected = false; sn.LastError = err.Error() })
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			if backoff < maxBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = 250 * time.Millisecond
		s.log.Info("serial open", "device", device, "baud", baud)
		s.update(func(sn *Snapshot) { sn.Connected = true })

		// Closing the file unblocks the scanner on shutdown.
		stop := context.AfterFunc(ctx, func() { _ = f.Close() })
		err = s.readLines(ctx, f)
		stop()
		_ = f.Close()
		if ctx.Err() != nil {
			return nil
		}
		s.log.Warn("serial read stopped", "device", device, "err", err)
		s.update(func(sn *Snapshot) { sn.Connected = false; sn.LastError = err.Error() })
	}
	return nil
}

func (s *Service) runUDP(ctx context.Context) error {
	addr := strings.TrimSpace(s.cfg.UDPListen)
	if addr == "" {
		addr = ":10110"
	}
	pc, err := net.ListenPacket("udp", addr)
	if err != nil {
		return fmt.Errorf("nmea: listen %s: %w", addr, err)
	}
	defer pc.Close()
	stop := context.AfterFunc(ctx, func() { _ = pc.Close() })
	defer stop()

	s.log.Info("udp listening", "addr", pc.LocalAddr().String())
	s.update(func(sn *Snapshot) { sn.Connected = true; sn.Device = pc.LocalAddr().String() })

	buf := make([]byte, 64*1024)
	for {
		n, _, err := pc.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("nmea: udp read: %w", err)
		}
		for _, line := range strings.Split(string(buf[:n]), "\n") {
			s.HandleLine(line)
		}
	}
}
