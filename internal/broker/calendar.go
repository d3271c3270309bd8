package broker

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// marketDayResponse is one session's status: whether the session trades
// at all.
type marketDayResponse struct {
	Date   string `json:"date"`
	Status string `json:"status"` // "open" or "closed"
}

// marketsResponse is the brokerage's market-calendar envelope for one
// month, flattened since this adapter only ever asks for the equity/index
// market.
type marketsResponse struct {
	Days []marketDayResponse `json:"days"`
}

// CalendarAdapter implements clock.MarketCalendar against the same
// brokerage transport the rest of the Adapter uses, caching per
// month/year so a full day's worth of wait_until calls never re-fetch it.
type CalendarAdapter struct {
	t *transport

	mu    sync.RWMutex
	month int
	year  int
	days  map[string]marketDayResponse // date "2006-01-02" -> day
}

// NewCalendarAdapter constructs a CalendarAdapter sharing t's transport.
func NewCalendarAdapter(t *transport) *CalendarAdapter {
	return &CalendarAdapter{t: t}
}

// IsTradingDay implements clock.MarketCalendar.
func (c *CalendarAdapter) IsTradingDay(ctx context.Context, date time.Time) (bool, error) {
	days, err := c.monthCalendar(ctx, int(date.Month()), date.Year())
	if err != nil {
		return false, err
	}
	dateKey := date.Format("2006-01-02")
	day, ok := days[dateKey]
	if !ok {
		return false, fmt.Errorf("broker: %s not present in market calendar for %d/%d", dateKey, date.Month(), date.Year())
	}
	return day.Status == "open", nil
}

func (c *CalendarAdapter) monthCalendar(ctx context.Context, month, year int) (map[string]marketDayResponse, error) {
	c.mu.RLock()
	if c.days != nil && c.month == month && c.year == year {
		cached := c.days
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	params := url.Values{}
	params.Set("month", fmt.Sprintf("%02d", month))
	params.Set("year", fmt.Sprintf("%04d", year))

	var resp marketsResponse
	if err := c.t.doJSON(ctx, http.MethodGet, "/marketdata/v1/markets/calendar?"+params.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("broker: fetching market calendar for %d/%d: %w", month, year, err)
	}

	days := make(map[string]marketDayResponse, len(resp.Days))
	for _, d := range resp.Days {
		days[d.Date] = d
	}

	c.mu.Lock()
	c.days, c.month, c.year = days, month, year
	c.mu.Unlock()

	return days, nil
}
