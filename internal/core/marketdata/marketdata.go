// Package marketdata defines the Market Data Adapter contract (C2): index
// candles and option quote snapshots. Implementations live in
// internal/broker; this package is the broker-agnostic port the core
// decision engine depends on.
package marketdata

import (
	"context"
	"time"

	"github.com/eliywilner/spxspread/internal/core/money"
)

// Candle is an immutable sample of the underlying index for one 30-minute
// bar. Two candles for the same BarStart must compare equal.
type Candle struct {
	BarStart time.Time
	Open     money.Decimal
	High     money.Decimal
	Low      money.Decimal
	Close    money.Decimal
}

// Equal reports whether two candles describe the same bar and OHLC.
func (c Candle) Equal(o Candle) bool {
	return c.BarStart.Equal(o.BarStart) &&
		c.Open == o.Open && c.High == o.High && c.Low == o.Low && c.Close == o.Close
}

// QuoteSnapshot is a single option leg's bid/ask at the instant it was
// fetched. A leg with a zero Bid or Ask is "unquotable".
type QuoteSnapshot struct {
	Bid money.Decimal
	Ask money.Decimal
}

// Unquotable reports whether either side of the quote is absent.
func (q QuoteSnapshot) Unquotable() bool {
	return q.Bid <= 0 || q.Ask <= 0
}

// Mid returns (bid+ask)/2 and true, or zero and false when unquotable.
func (q QuoteSnapshot) Mid() (money.Decimal, bool) {
	if q.Unquotable() {
		return money.Zero, false
	}
	return money.FromCents((q.Bid.Cents() + q.Ask.Cents()) / 2), true
}

// LegPair is the paired short/long leg quote fetched in one round trip by
// the Credit Evaluator (C5).
type LegPair struct {
	Short QuoteSnapshot
	Long  QuoteSnapshot
}

// OptionType distinguishes the two spread legs' contract type.
type OptionType string

// The two option types the core ever trades.
const (
	Put  OptionType = "PUT"
	Call OptionType = "CALL"
)

// MarketData is the Market Data Adapter contract (C2). Implementations
// must not fabricate candles: a window with no closed bar yet returns an
// empty slice, never a synthesized one.
type MarketData interface {
	// Get30MinCandles returns all candles whose BarStart falls in the
	// inclusive-exclusive range [date@startHM, date@endHM), ascending.
	Get30MinCandles(ctx context.Context, date time.Time, startHM, endHM string) ([]Candle, error)

	// GetIndexClose returns the last print at or before date@16:00.
	GetIndexClose(ctx context.Context, date time.Time) (money.Decimal, error)

	// GetSpreadQuote fetches a paired snapshot for both legs of a
	// vertical spread in a single round trip.
	GetSpreadQuote(ctx context.Context, date time.Time, shortStrike, longStrike float64, optType OptionType) (LegPair, error)
}

// CandleAt finds the candle in candles whose BarStart exactly equals want.
// Step-B selection requires exact-BarStart matching rather than taking the
// first returned candle, since an adapter may return bars from earlier in
// the session.
func CandleAt(candles []Candle, want time.Time) (Candle, bool) {
	for _, c := range candles {
		if c.BarStart.Equal(want) {
			return c, true
		}
	}
	return Candle{}, false
}
