// Package credit implements the Credit Evaluator (C5): per-leg mid-price
// computation, gross/net credit, and the threshold predicate that gates
// the Quote-Monitor loop.
package credit

import (
	"context"
	"errors"
	"time"

	"github.com/eliywilner/spxspread/internal/core/marketdata"
	"github.com/eliywilner/spxspread/internal/core/money"
)

// ErrUnavailable is returned when either leg's mid is undefined because
// its quote is unquotable (bid or ask is zero).
var ErrUnavailable = errors.New("credit: quote unavailable")

// SpreadCredit is the derived, never-mutated credit reading for one poll.
type SpreadCredit struct {
	Gross money.Decimal // short.mid - long.mid
	Net   money.Decimal // Gross - slippage buffer S
}

// MeetsThreshold reports whether Net >= minNetCredit (inclusive).
func (c SpreadCredit) MeetsThreshold(minNetCredit money.Decimal) bool {
	return c.Net.GTE(minNetCredit)
}

// Evaluator computes SpreadCredit readings from paired leg quotes.
type Evaluator struct {
	market         marketdata.MarketData
	slippageBuffer money.Decimal
}

// NewEvaluator constructs an Evaluator against a market data adapter and
// the configured slippage buffer S.
func NewEvaluator(market marketdata.MarketData, slippageBuffer money.Decimal) *Evaluator {
	return &Evaluator{market: market, slippageBuffer: slippageBuffer}
}

// Evaluate fetches a single paired snapshot for both legs and computes the
// resulting SpreadCredit. Returns ErrUnavailable if either leg is
// unquotable; the order submission anchor is the mid, not the net credit.
func (e *Evaluator) Evaluate(ctx context.Context, date time.Time, shortStrike, longStrike float64, optType marketdata.OptionType) (SpreadCredit, error) {
	pair, err := e.market.GetSpreadQuote(ctx, date, shortStrike, longStrike, optType)
	if err != nil {
		return SpreadCredit{}, err
	}

	shortMid, ok := pair.Short.Mid()
	if !ok {
		return SpreadCredit{}, ErrUnavailable
	}
	longMid, ok := pair.Long.Mid()
	if !ok {
		return SpreadCredit{}, ErrUnavailable
	}

	gross := shortMid.Sub(longMid)
	net := gross.Sub(e.slippageBuffer)
	return SpreadCredit{Gross: gross, Net: net}, nil
}
