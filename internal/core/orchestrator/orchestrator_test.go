package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/eliywilner/spxspread/internal/core/broker"
	"github.com/eliywilner/spxspread/internal/core/clock"
	"github.com/eliywilner/spxspread/internal/core/gate"
	"github.com/eliywilner/spxspread/internal/core/marketdata"
	"github.com/eliywilner/spxspread/internal/core/money"
	"github.com/eliywilner/spxspread/internal/core/traderecord"
)

// fakeMarket serves a fixed opening-range bar, an optional set of Step-B
// window candles keyed by bar-start "HH:MM", and a fixed spread quote and
// index close.
type fakeMarket struct {
	orOpen, orHigh, orLow, orClose float64
	stepBCloses                    map[string]float64
	spreadPair                     marketdata.LegPair
	spreadCalls                    int
	indexClose                     float64
}

func (m *fakeMarket) Get30MinCandles(ctx context.Context, date time.Time, startHM, endHM string) ([]marketdata.Candle, error) {
	if startHM == "09:30" && endHM == "10:00" {
		barStart := time.Date(date.Year(), date.Month(), date.Day(), 9, 30, 0, 0, date.Location())
		return []marketdata.Candle{{
			BarStart: barStart,
			Open:     money.FromFloat(m.orOpen),
			High:     money.FromFloat(m.orHigh),
			Low:      money.FromFloat(m.orLow),
			Close:    money.FromFloat(m.orClose),
		}}, nil
	}
	closePx, ok := m.stepBCloses[startHM]
	if !ok {
		return nil, nil
	}
	t, _ := time.ParseInLocation("15:04", startHM, date.Location())
	barStart := time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, date.Location())
	return []marketdata.Candle{{BarStart: barStart, Close: money.FromFloat(closePx)}}, nil
}

func (m *fakeMarket) GetIndexClose(context.Context, time.Time) (money.Decimal, error) {
	return money.FromFloat(m.indexClose), nil
}

func (m *fakeMarket) GetSpreadQuote(context.Context, time.Time, float64, float64, marketdata.OptionType) (marketdata.LegPair, error) {
	m.spreadCalls++
	return m.spreadPair, nil
}

type fakeBroker struct {
	equity float64
}

func (b *fakeBroker) GetAccountEquity(context.Context) (money.Decimal, error) {
	return money.FromFloat(b.equity), nil
}

func (b *fakeBroker) SubmitCreditSpread(context.Context, broker.SpreadOrderRequest) (broker.SubmissionOutcome, error) {
	return broker.SubmissionOutcome{OrderID: "should-not-be-called", Status: broker.StatusOpen}, nil
}

func (b *fakeBroker) GetTodayOrders(context.Context, int) ([]broker.Order, error) {
	return nil, nil
}

// seqClock returns each entry in times in order on successive calls,
// repeating the last entry once exhausted. Used to drive the
// orchestrator through its wait/deadline checkpoints in the precise
// sequence Run makes them, without any real sleeping.
type seqClock struct {
	times []time.Time
	i     int
}

func (s *seqClock) next() time.Time {
	t := s.times[s.i]
	if s.i < len(s.times)-1 {
		s.i++
	}
	return t
}

func baseConfig() Config {
	return Config{
		MinNetCredit: money.FromFloat(4.50),
		Slippage:     money.FromFloat(0.10),
		RiskPct:      0.03,
		MinContracts: 1,
		MaxContracts: 50,
		Safety:       gate.Safety{DryRun: true},
	}
}

func TestRun_BullishSettlesOutOfTheMoney(t *testing.T) {
	loc := time.UTC
	base := time.Date(2026, 7, 30, 0, 0, 0, 0, loc)
	seq := &seqClock{times: []time.Time{
		base.Add(9 * time.Hour),                     // 1: Today
		base.Add(9 * time.Hour),                     // 2: ParseHM(open)
		base.Add(9*time.Hour + 35*time.Minute),       // 3: WaitUntil(open) check, >= 09:30
		base.Add(9*time.Hour + 35*time.Minute),       // 4: ParseHM(orClose)
		base.Add(10*time.Hour + 5*time.Minute),       // 5: WaitUntil(orClose) check, >= 10:00
		base.Add(10*time.Hour + 5*time.Minute),       // 6: ParseHM(deadline)
		base.Add(10*time.Hour + 6*time.Minute),       // 7: DecideStepA trigger time
		base.Add(10*time.Hour + 10*time.Minute),      // 8: monitor deadline check, < 12:00
		base.Add(10*time.Hour + 12*time.Minute),      // 9: FillTime
		base.Add(10*time.Hour + 12*time.Minute),      // 10: ParseHM(marketClose)
		base.Add(16*time.Hour + 5*time.Minute),       // 11: WaitUntil(marketClose) check, >= 16:00
	}}
	clk := clock.New(loc).WithNow(seq.next)

	market := &fakeMarket{
		orOpen: 5430, orHigh: 5440, orLow: 5425, orClose: 5433, // bullish: close > open
		spreadPair: marketdata.LegPair{
			Short: marketdata.QuoteSnapshot{Bid: money.FromFloat(5.00), Ask: money.FromFloat(5.00)},
			Long:  marketdata.QuoteSnapshot{Bid: money.FromFloat(0.40), Ask: money.FromFloat(0.40)},
		},
		indexClose: 5440, // above K_short: put spread expires worthless
	}
	brk := &fakeBroker{equity: 100000}

	o := New(clk, market, brk, baseConfig(), nil)
	rec, phase, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if phase != PhaseDone {
		t.Errorf("phase = %v, want PhaseDone", phase)
	}
	if rec.Outcome != traderecord.OutcomeSettled {
		t.Fatalf("Outcome = %v, want OutcomeSettled", rec.Outcome)
	}
	if rec.Setup != "BullishOR" {
		t.Errorf("Setup = %q, want BullishOR", rec.Setup)
	}
	if rec.KShort != 5435 || rec.KLong != 5425 {
		t.Errorf("strikes = (%v,%v), want (5435,5425)", rec.KShort, rec.KLong)
	}
	if rec.CNetFill != 4.50 {
		t.Errorf("CNetFill = %v, want 4.50", rec.CNetFill)
	}
	if rec.Qty != 5 {
		t.Errorf("Qty = %d, want 5", rec.Qty)
	}
	if rec.SettlementValue != 0 {
		t.Errorf("SettlementValue = %v, want 0", rec.SettlementValue)
	}
	if rec.TotalPnL != 2250.0 {
		t.Errorf("TotalPnL = %v, want 2250.0", rec.TotalPnL)
	}
	if market.spreadCalls != 1 {
		t.Errorf("GetSpreadQuote called %d times, want 1 (fill on first poll)", market.spreadCalls)
	}
}

type fakeCalendar struct {
	tradingDay bool
	err        error
	calls      int
}

func (c *fakeCalendar) IsTradingDay(context.Context, time.Time) (bool, error) {
	c.calls++
	return c.tradingDay, c.err
}

func TestRun_CalendarHolidayShortCircuitsBeforeAnyWait(t *testing.T) {
	loc := time.UTC
	fixed := time.Date(2026, 7, 30, 9, 0, 0, 0, loc)
	// A clock fixed before market open: any wait_until call would never
	// return, so the test finishing proves the holiday short-circuit
	// returns before any wait.
	clk := clock.New(loc).WithNow(func() time.Time { return fixed })

	market := &fakeMarket{} // never queried
	brk := &fakeBroker{equity: 100000}
	cal := &fakeCalendar{tradingDay: false}

	o := New(clk, market, brk, baseConfig(), nil).WithCalendar(cal)
	rec, phase, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if phase != PhaseNoTrade {
		t.Errorf("phase = %v, want PhaseNoTrade", phase)
	}
	if rec.Outcome != traderecord.OutcomeNoTrade {
		t.Errorf("Outcome = %v, want OutcomeNoTrade", rec.Outcome)
	}
	if cal.calls != 1 {
		t.Errorf("IsTradingDay called %d times, want 1", cal.calls)
	}
	if market.spreadCalls != 0 {
		t.Errorf("GetSpreadQuote called %d times, want 0", market.spreadCalls)
	}
}

func TestRun_CalendarErrorFallsBackToRealTimeChecks(t *testing.T) {
	loc := time.UTC
	fixed := time.Date(2026, 7, 30, 11, 0, 0, 0, loc)
	clk := clock.New(loc).WithNow(func() time.Time { return fixed })

	market := &fakeMarket{orOpen: 5430, orHigh: 5435, orLow: 5425, orClose: 5430} // flat OR -> NO_TRADE anyway
	brk := &fakeBroker{equity: 100000}
	cal := &fakeCalendar{err: context.DeadlineExceeded}

	o := New(clk, market, brk, baseConfig(), nil).WithCalendar(cal)
	rec, phase, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if phase != PhaseNoTrade {
		t.Errorf("phase = %v, want PhaseNoTrade", phase)
	}
	if rec.Outcome != traderecord.OutcomeNoTrade {
		t.Errorf("Outcome = %v, want OutcomeNoTrade", rec.Outcome)
	}
}

func TestRun_NoTradeWhenOpeningRangeIsFlat(t *testing.T) {
	loc := time.UTC
	fixed := time.Date(2026, 7, 30, 11, 0, 0, 0, loc)
	clk := clock.New(loc).WithNow(func() time.Time { return fixed })

	market := &fakeMarket{orOpen: 5430, orHigh: 5435, orLow: 5425, orClose: 5430}
	brk := &fakeBroker{equity: 100000}

	o := New(clk, market, brk, baseConfig(), nil)
	rec, phase, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if phase != PhaseNoTrade {
		t.Errorf("phase = %v, want PhaseNoTrade", phase)
	}
	if rec.Outcome != traderecord.OutcomeNoTrade {
		t.Errorf("Outcome = %v, want OutcomeNoTrade", rec.Outcome)
	}
}

func TestRun_NoTradeWhenNoFillByDeadline(t *testing.T) {
	loc := time.UTC
	// Fixed past the 12:00 entry deadline: the monitor loop sees the
	// deadline already passed on its very first check and never polls
	// the market at all.
	fixed := time.Date(2026, 7, 30, 13, 0, 0, 0, loc)
	clk := clock.New(loc).WithNow(func() time.Time { return fixed })

	market := &fakeMarket{orOpen: 5430, orHigh: 5440, orLow: 5425, orClose: 5433}
	brk := &fakeBroker{equity: 100000}

	o := New(clk, market, brk, baseConfig(), nil)
	rec, phase, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if phase != PhaseNoTrade {
		t.Errorf("phase = %v, want PhaseNoTrade", phase)
	}
	if rec.Outcome != traderecord.OutcomeNoTrade {
		t.Errorf("Outcome = %v, want OutcomeNoTrade", rec.Outcome)
	}
	if market.spreadCalls != 0 {
		t.Errorf("GetSpreadQuote called %d times, want 0", market.spreadCalls)
	}
}

func TestRun_NoTradeWhenStepBNeverBreaksOut(t *testing.T) {
	loc := time.UTC
	// Fixed past 12:00: every Step-B poll wait and the monitor deadline
	// check all resolve immediately, and no window's close undercuts ORL.
	fixed := time.Date(2026, 7, 30, 13, 0, 0, 0, loc)
	clk := clock.New(loc).WithNow(func() time.Time { return fixed })

	market := &fakeMarket{
		orOpen: 5435, orHigh: 5440, orLow: 5425, orClose: 5430, // bearish: close < open
		stepBCloses: map[string]float64{
			"10:00": 5430,
			"10:30": 5432,
			"11:00": 5428,
			"11:30": 5426,
		},
	}
	brk := &fakeBroker{equity: 100000}

	o := New(clk, market, brk, baseConfig(), nil)
	rec, phase, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if phase != PhaseNoTrade {
		t.Errorf("phase = %v, want PhaseNoTrade", phase)
	}
	if rec.Outcome != traderecord.OutcomeNoTrade {
		t.Errorf("Outcome = %v, want OutcomeNoTrade", rec.Outcome)
	}
}
