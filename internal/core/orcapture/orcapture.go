// Package orcapture implements the Opening-Range Capture (C8): reading
// the 09:30-10:00 bar and publishing the immutable OR record.
package orcapture

import (
	"context"
	"errors"
	"time"

	"github.com/eliywilner/spxspread/internal/core/marketdata"
	"github.com/eliywilner/spxspread/internal/core/money"
)

// ErrNoOpeningRangeBar is returned when the adapter has no candle for the
// 09:30 bar yet. Per §4.8 this is fatal for the trading day.
var ErrNoOpeningRangeBar = errors.New("orcapture: no 09:30 opening-range candle available")

// OpeningRange is the immutable first-30-minute bar of the session.
type OpeningRange struct {
	Open, High, Low, Close money.Decimal
	BarStart               time.Time
}

// Valid checks the OR invariant: ORL <= min(ORO,ORC) <= max(ORO,ORC) <= ORH.
func (or OpeningRange) Valid() bool {
	lo, hi := or.Open, or.Close
	if lo > hi {
		lo, hi = hi, lo
	}
	return or.Low <= lo && hi <= or.High
}

// Capture reads the 09:30-10:00 bar for date and publishes the OR record.
// Must be called at or after 10:00 exchange-time so the bar has closed.
func Capture(ctx context.Context, market marketdata.MarketData, date time.Time) (OpeningRange, error) {
	barStart := time.Date(date.Year(), date.Month(), date.Day(), 9, 30, 0, 0, date.Location())

	candles, err := market.Get30MinCandles(ctx, date, "09:30", "10:00")
	if err != nil {
		return OpeningRange{}, err
	}

	c, ok := marketdata.CandleAt(candles, barStart)
	if !ok {
		return OpeningRange{}, ErrNoOpeningRangeBar
	}

	return OpeningRange{
		Open:     c.Open,
		High:     c.High,
		Low:      c.Low,
		Close:    c.Close,
		BarStart: c.BarStart,
	}, nil
}
