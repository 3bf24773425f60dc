// Package window implements the operational time-of-day gate controlling
// when enrichment work and notifications are permitted to proceed.
package window

import (
	"time"

	"github.com/patchflow/patchflow/internal/clock"
)

// Gate is a timezone-aware time-of-day predicate. Windows are expressed as
// "HH:MM" strings; a start lexicographically greater than the end denotes an
// overnight window (e.g. 22:00-06:00).
type Gate struct {
	start    string
	end      string
	timezone string
	clock    clock.Clock
}

// New creates a gate for the given window. Start and end are "HH:MM"
// time-of-day strings in the named IANA timezone.
func New(start, end, timezone string) *Gate {
	return &Gate{
		start:    start,
		end:      end,
		timezone: timezone,
		clock:    clock.Real{},
	}
}

// WithClock overrides the gate's clock (used in tests)
func (g *Gate) WithClock(c clock.Clock) *Gate {
	g.clock = c
	return g
}

// Open reports whether the gate is open right now
func (g *Gate) Open() bool {
	return g.OpenAt(g.clock.Now())
}

// OpenAt reports whether the gate is open at the given instant.
//
// On timezone conversion failure the gate fails open: enrichment must not
// be permanently blocked by a clock or timezone fault.
func (g *Gate) OpenAt(t time.Time) bool {
	loc, err := time.LoadLocation(g.timezone)
	if err != nil {
		return true
	}

	now := t.In(loc).Format("15:04")

	if g.start > g.end {
		// Overnight window, e.g. 22:00-06:00
		return now >= g.start || now <= g.end
	}
	return now >= g.start && now <= g.end
}
