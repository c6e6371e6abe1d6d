package web

import (
	"sync/atomic"
	"time"

	"rotationctrl/internal/nmea"
	"rotationctrl/internal/rotation"
)

// Status collects the read-only views shown on /api/status. Sources are
// set once at startup; unset sources are omitted from the snapshot.
type Status struct {
	startUnixNano int64
	controller    atomic.Value // func() rotation.Status
	nmea          atomic.Value // func() nmea.Snapshot
	clients       atomic.Value // func() int
	source        atomic.Value // string
}

func NewStatus() *Status {
	s := &Status{}
	atomic.StoreInt64(&s.startUnixNano, time.Now().UTC().UnixNano())
	s.source.Store("")
	return s
}

func (s *Status) SetController(fn func() rotation.Status) { s.controller.Store(fn) }
func (s *Status) SetNMEA(fn func() nmea.Snapshot)         { s.nmea.Store(fn) }
func (s *Status) SetClients(fn func() int)                { s.clients.Store(fn) }
func (s *Status) SetSource(src string)                    { s.source.Store(src) }

type StatusSnapshot struct {
	Service    string           `json:"service"`
	NowUTC     string           `json:"now_utc"`
	UptimeSec  int64            `json:"uptime_sec"`
	Source     string           `json:"source"`
	Controller *rotation.Status `json:"controller,omitempty"`
	NMEA       *nmea.Snapshot   `json:"nmea,omitempty"`
	Clients    int              `json:"ws_clients"`
}

func (s *Status) Snapshot(nowUTC time.Time) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	start := time.Unix(0, atomic.LoadInt64(&s.startUnixNano)).UTC()

	snap := StatusSnapshot{
		Service:   "rotationctrl",
		NowUTC:    nowUTC.UTC().Format(time.RFC3339Nano),
		UptimeSec: int64(nowUTC.Sub(start).Seconds()),
		Source:    s.source.Load().(string),
	}
	if fn, ok := s.controller.Load().(func() rotation.Status); ok && fn != nil {
		st := fn()
		snap.Controller = &st
	}
	if fn, ok := s.nmea.Load().(func() nmea.Snapshot); ok && fn != nil {
		n := fn()
		snap.NMEA = &n
	}
	if fn, ok := s.clients.Load().(func() int); ok && fn != nil {
		snap.Clients = fn()
	}
	return snap
}
