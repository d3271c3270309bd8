// Package clock provides the exchange-time-zone wall-clock scheduler (C1):
// wall-clock waits and HH:MM parsing, with an injectable time source so
// tests never depend on real NY timezone wall-clock time. It has no
// market-hour predicates; trading-day checks go through MarketCalendar.
package clock

import (
	"context"
	"fmt"
	"time"
)

// pollInterval is the resolution at which wait_until re-checks the clock.
const pollInterval = 1 * time.Second

// Clock suspends the caller until a target time-of-day is reached in the
// exchange's local time zone, via a single wait_until operation.
type Clock struct {
	loc *time.Location
	now func() time.Time // overridable for tests; defaults to time.Now
}

// New returns a Clock bound to the given exchange time zone. Pass
// "America/New_York" for the US cash index session.
func New(loc *time.Location) *Clock {
	return &Clock{loc: loc, now: time.Now}
}

// WithNow overrides the time source, for deterministic tests.
func (c *Clock) WithNow(now func() time.Time) *Clock {
	c.now = now
	return c
}

// Location returns the exchange time zone this clock operates in.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// Now returns the current wall-clock time in the exchange time zone.
func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// Today returns the current trading date (year/month/day) in the exchange
// time zone, with the time-of-day zeroed.
func (c *Clock) Today() time.Time {
	n := c.Now()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, c.loc)
}

// AtTime returns today's date combined with the given hour:minute in the
// exchange time zone.
func (c *Clock) AtTime(hour, minute int) time.Time {
	n := c.Now()
	return time.Date(n.Year(), n.Month(), n.Day(), hour, minute, 0, 0, c.loc)
}

// WaitUntil suspends the caller until wall-clock in the exchange time zone
// reaches target on the current trading date. If already past target, it
// returns immediately. label is for log correlation only.
func (c *Clock) WaitUntil(ctx context.Context, target time.Time, label string) error {
	target = target.In(c.loc)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	if !c.Now().Before(target) {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait_until(%s) cancelled: %w", label, ctx.Err())
		case <-ticker.C:
			if !c.Now().Before(target) {
				return nil
			}
		}
	}
}

// ParseHM parses an "HH:MM" string against today's date in the exchange
// time zone.
func (c *Clock) ParseHM(hm string) (time.Time, error) {
	t, err := time.ParseInLocation("15:04", hm, c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time-of-day %q: %w", hm, err)
	}
	n := c.Now()
	return time.Date(n.Year(), n.Month(), n.Day(), t.Hour(), t.Minute(), 0, 0, c.loc), nil
}

// MarketCalendar is the port the scheduler consults before waiting out a
// trading day, so a holiday or weekend is recognized up front rather than
// discovered only after wait_until times out waiting for a bar that will
// never close. Implementations should cache per month so a full trading
// day's worth of checks never re-fetch it.
type MarketCalendar interface {
	// IsTradingDay reports whether date is a regular trading session.
	IsTradingDay(ctx context.Context, date time.Time) (bool, error)
}
