// Package setup implements the Setup Selector (C9): the branch decision
// on OR polarity, Step A's immediate bullish trigger, and Step B's
// bearish-breakout polling sub-loop.
package setup

import (
	"context"
	"fmt"
	"time"

	"github.com/eliywilner/spxspread/internal/core/clock"
	"github.com/eliywilner/spxspread/internal/core/marketdata"
	"github.com/eliywilner/spxspread/internal/core/money"
	"github.com/eliywilner/spxspread/internal/core/orcapture"
	"github.com/eliywilner/spxspread/internal/core/strike"
)

// Kind distinguishes the two mutually exclusive setups.
type Kind string

// The two setups the day may trigger.
const (
	BullishOR          Kind = "BullishOR"
	BearishORLBreakout Kind = "BearishORLBreakout"
)

// TradeType is the option type of the spread the setup enters.
type TradeType string

// The two trade types a setup ever produces.
const (
	TradeTypePut  TradeType = "PUT"
	TradeTypeCall TradeType = "CALL"
)

// Decision is the frozen branch outcome: SPXEntry, K_short, K_long are
// fixed at branch-entry time and never recomputed, per §4.10's
// determinism note.
type Decision struct {
	Kind        Kind
	TradeType   TradeType
	SPXEntry    money.Decimal
	TriggerTime time.Time
	Strikes     strike.Strikes
}

// Branch is the first-cut polarity decision made from the OR alone.
type Branch int

// Branch outcomes of comparing ORC to ORO.
const (
	NoTrade Branch = iota
	StepA
	StepB
)

// Classify implements the branch decision of §4.9: ORC > ORO is bullish
// (Step A), ORC < ORO is bearish (Step B), ORC == ORO is neutral.
func Classify(or orcapture.OpeningRange) Branch {
	switch {
	case or.Close > or.Open:
		return StepA
	case or.Close < or.Open:
		return StepB
	default:
		return NoTrade
	}
}

// DecideStepA computes the bullish PUT-spread decision: SPX_entry = ORC,
// strikes derived from it, trigger time frozen at call time.
func DecideStepA(or orcapture.OpeningRange, now time.Time) Decision {
	entry := or.Close
	return Decision{
		Kind:        BullishOR,
		TradeType:   TradeTypePut,
		SPXEntry:    entry,
		TriggerTime: now,
		Strikes:     strike.PutSpread(entry.Float64()),
	}
}

// stepBWindow is one of the four closed 30-minute bars Step B polls, and
// the wall-clock instant at which that bar is checked (its close).
type stepBWindow struct {
	barStartHM string
	pollAtHM   string
}

// stepBWindows is bar_start in {10:00,10:30,11:00,11:30}, polled at
// {10:30,11:00,11:30,12:00} respectively (§4.9).
var stepBWindows = []stepBWindow{
	{"10:00", "10:30"},
	{"10:30", "11:00"},
	{"11:00", "11:30"},
	{"11:30", "12:00"},
}

// Logger is the minimal logging seam Step B uses to note a missing
// candle window without aborting the scan.
type Logger interface {
	Printf(format string, v ...any)
}

// ScanStepB polls the four Step-B windows in order. For each, it waits
// until the window's poll instant, fetches candles over
// [bar_start, bar_start+30min), and selects the candle whose BarStart
// equals the window's intended start -- not merely the first candle
// returned, since the adapter may return bars from earlier in the
// session. A breakout (bar_close < ORL, strict) ends the scan with a
// Decision; reaching 12:00 without one ends it with ok=false (NO_TRADE).
func ScanStepB(ctx context.Context, clk *clock.Clock, market marketdata.MarketData, or orcapture.OpeningRange, date time.Time, log Logger) (Decision, bool, error) {
	for _, w := range stepBWindows {
		pollAt, err := clk.ParseHM(w.pollAtHM)
		if err != nil {
			return Decision{}, false, fmt.Errorf("setup: parsing step-B poll time: %w", err)
		}
		if err := clk.WaitUntil(ctx, pollAt, "step_b_window:"+w.barStartHM); err != nil {
			return Decision{}, false, err
		}

		barStart, err := clk.ParseHM(w.barStartHM)
		if err != nil {
			return Decision{}, false, fmt.Errorf("setup: parsing step-B bar start: %w", err)
		}

		candles, err := market.Get30MinCandles(ctx, date, w.barStartHM, w.pollAtHM)
		if err != nil {
			return Decision{}, false, err
		}

		candle, ok := marketdata.CandleAt(candles, barStart)
		if !ok {
			if log != nil {
				log.Printf("setup: no candle for step-B window bar_start=%s; proceeding to next window", w.barStartHM)
			}
			continue
		}

		if candle.Close.Cmp(or.Low) < 0 {
			entry := candle.Close
			return Decision{
				Kind:        BearishORLBreakout,
				TradeType:   TradeTypeCall,
				SPXEntry:    entry,
				TriggerTime: pollAt,
				Strikes:     strike.CallSpread(entry.Float64()),
			}, true, nil
		}
	}

	return Decision{}, false, nil
}
