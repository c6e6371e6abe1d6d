package rotation

import (
	"time"

	"rotationctrl/internal/angle"
)

const (
	// DeclinationMaxAge is how long a received declination stays fresh.
	DeclinationMaxAge = 1200 * time.Second
	// DeclinationRequestInterval throttles requests to the provider.
	DeclinationRequestInterval = 6 * time.Second
)

// Declination caches the magnetic declination broadcast by an external
// provider.
type Declination struct {
	Deg         float64
	ReceivedAt  time.Time
	RequestedAt time.Time
}

// Set records a value received from the provider. Non-finite values are
// dropped.
func (d *Declination) Set(deg float64, now time.Time) {
	if !angle.Defined(deg) {
		return
	}
	d.Deg = deg
	d.ReceivedAt = now
}

// Valid reports whether a value was ever received.
func (d *Declination) Valid() bool { return !d.ReceivedAt.IsZero() }

// Get returns the cached declination and whether a fresh request should be
// sent to the provider now.
func (d *Declination) Get(now time.Time) (deg float64, request bool) {
	if !d.RequestedAt.IsZero() && now.Sub(d.RequestedAt) < DeclinationRequestInterval {
		return d.Deg, false
	}
	d.RequestedAt = now
	if d.ReceivedAt.IsZero() || now.Sub(d.ReceivedAt) > DeclinationMaxAge {
		return d.Deg, true
	}
	return d.Deg, false
}
