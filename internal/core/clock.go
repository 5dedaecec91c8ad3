package core

import (
	"fmt"
	"time"
)

// TimestampLayout is ISO-8601 with microseconds and a numeric zone offset.
const TimestampLayout = "2006-01-02T15:04:05.000000-07:00"

// DefaultZoneOffset is the zone every published timestamp is rendered in
// unless configured otherwise.
const DefaultZoneOffset = "+05:30"

// Clock renders "now" in a fixed zone so timestamps do not depend on the
// host's local timezone.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// NewClock returns a clock rendering timestamps in loc. A nil loc means UTC.
func NewClock(loc *time.Location) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{loc: loc, now: time.Now}
}

// WithNow replaces the time source. Tests use it to pin timestamps.
func (c *Clock) WithNow(now func() time.Time) *Clock {
	return &Clock{loc: c.loc, now: now}
}

// Now returns the current time in the clock's zone.
func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// Timestamp returns the current time formatted with TimestampLayout.
func (c *Clock) Timestamp() string {
	return c.Now().Format(TimestampLayout)
}

// Location returns the fixed zone of the clock.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// ParseZoneOffset parses "+05:30", "-08:00", "Z" or "UTC" into a fixed zone.
func ParseZoneOffset(s string) (*time.Location, error) {
	switch s {
	case "", "Z", "UTC", "utc":
		return time.UTC, nil
	}
	t, err := time.Parse("-07:00", s)
	if err != nil {
		return nil, fmt.Errorf("%w: zone offset %q: expected ±HH:MM", ErrConfigInvalid, s)
	}
	_, offset := t.Zone()
	return time.FixedZone("UTC"+s, offset), nil
}
