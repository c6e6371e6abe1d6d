// Package waypoint provides the waypoint lookup service used by route-up
// tracking.
package waypoint

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

var ErrNotFound = errors.New("waypoint: not found")

type Waypoint struct {
	GUID   string  `json:"guid" yaml:"guid"`
	Name   string  `json:"name,omitempty" yaml:"name,omitempty"`
	LatDeg float64 `json:"lat_deg" yaml:"lat_deg"`
	LonDeg float64 `json:"lon_deg" yaml:"lon_deg"`
}

// Store is a concurrency-safe in-memory waypoint table.
type Store struct {
	mu  sync.RWMutex
	wps map[string]Waypoint
}

func NewStore(initial []Waypoint) *Store {
	s := &Store{wps: make(map[string]Waypoint)}
	for _, wp := range initial {
		_ = s.Put(wp)
	}
	return s
}

// Lookup returns the waypoint with the given GUID.
func (s *Store) Lookup(guid string) (Waypoint, error) {
	if s == nil {
		return Waypoint{}, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	wp, ok := s.wps[strings.TrimSpace(guid)]
	if !ok {
		return Waypoint{}, ErrNotFound
	}
	return wp, nil
}

func (s *Store) Put(wp Waypoint) error {
	wp.GUID = strings.TrimSpace(wp.GUID)
	if wp.GUID == "" {
		return errors.New("waypoint: guid is required")
	}
	if wp.LatDeg < -90 || wp.LatDeg > 90 {
		return errors.New("waypoint: lat_deg must be within [-90,90]")
	}
	if wp.LonDeg < -180 || wp.LonDeg > 180 {
		return errors.New("waypoint: lon_deg must be within [-180,180]")
	}
	s.mu.Lock()
	s.wps[wp.GUID] = wp
	s.mu.Unlock()
	return nil
}

// Replace swaps the whole table. Nothing changes if any entry is invalid.
func (s *Store) Replace(wps []Waypoint) error {
	next := NewStore(nil)
	for _, wp := range wps {
		if err := next.Put(wp); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.wps = next.wps
	s.mu.Unlock()
	return nil
}

// List returns all waypoints ordered by GUID.
func (s *Store) List() []Waypoint {
	s.mu.RLock()
	out := make([]Waypoint, 0, len(s.wps))
	for _, wp := range s.wps {
		out = append(out, wp)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].GUID < out[j].GUID })
	return out
}
