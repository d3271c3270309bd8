// Package orchestrator implements the Day Orchestrator (C13): the single
// sequential driver that walks a trading day through OR capture, the
// setup branch, quote monitoring, submission, and settlement, producing
// at most one TradeRecord.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eliywilner/spxspread/internal/core/broker"
	"github.com/eliywilner/spxspread/internal/core/clock"
	"github.com/eliywilner/spxspread/internal/core/credit"
	"github.com/eliywilner/spxspread/internal/core/gate"
	"github.com/eliywilner/spxspread/internal/core/marketdata"
	"github.com/eliywilner/spxspread/internal/core/monitor"
	"github.com/eliywilner/spxspread/internal/core/money"
	"github.com/eliywilner/spxspread/internal/core/orcapture"
	"github.com/eliywilner/spxspread/internal/core/reconcile"
	"github.com/eliywilner/spxspread/internal/core/setup"
	"github.com/eliywilner/spxspread/internal/core/sizing"
	"github.com/eliywilner/spxspread/internal/core/traderecord"
)

// DayPhase is the state machine's current step, advanced only by the
// driver goroutine (§5): no other code ever mutates it.
type DayPhase string

// The linear sequence a trading day walks, plus the terminal NO_TRADE
// branch that can be reached from several points (§3).
const (
	PhasePreOpen      DayPhase = "PRE_OPEN"
	PhaseOpenWait     DayPhase = "OPEN_WAIT"
	PhaseORCapture    DayPhase = "OR_CAPTURE"
	PhaseStepAEval    DayPhase = "STEP_A_EVAL"
	PhaseStepAMonitor DayPhase = "STEP_A_MONITOR"
	PhaseStepBScan    DayPhase = "STEP_B_SCAN"
	PhaseStepBMonitor DayPhase = "STEP_B_MONITOR"
	PhaseAwaitClose   DayPhase = "AWAIT_CLOSE"
	PhaseReconcile    DayPhase = "RECONCILE"
	PhaseDone         DayPhase = "DONE"
	PhaseNoTrade      DayPhase = "NO_TRADE"
)

// Core constants fixed by the strategy, not configuration (§6).
const (
	marketOpenHM  = "09:30"
	orCloseHM     = "10:00"
	entryDeadline = "12:00"
	marketCloseHM = "16:00"
)

// Config bundles the per-day tunables; everything else is derived from
// the clock and adapters.
type Config struct {
	MinNetCredit money.Decimal // MIN_NET_CREDIT, default 4.60
	Slippage     money.Decimal // SLIPPAGE_BUFFER, default 0.10
	RiskPct      float64       // DAILY_RISK_PCT, default 0.03
	MinContracts int
	MaxContracts int
	Safety       gate.Safety
}

// Logger is the minimal seam the orchestrator and the Step-B sub-scan log
// through; satisfied directly by *logrus.Logger and friends.
type Logger interface {
	Printf(format string, v ...any)
}

// Orchestrator wires the core components together for one trading day.
type Orchestrator struct {
	Clock    *clock.Clock
	Market   marketdata.MarketData
	Broker   broker.Broker
	Config   Config
	Log      Logger
	Calendar clock.MarketCalendar // optional; nil skips the holiday short-circuit
}

// New constructs an Orchestrator from its collaborators.
func New(clk *clock.Clock, market marketdata.MarketData, brk broker.Broker, cfg Config, log Logger) *Orchestrator {
	return &Orchestrator{Clock: clk, Market: market, Broker: brk, Config: cfg, Log: log}
}

// WithCalendar attaches a MarketCalendar so Run can short-circuit a
// holiday or weekend before waiting out the whole day.
func (o *Orchestrator) WithCalendar(cal clock.MarketCalendar) *Orchestrator {
	o.Calendar = cal
	return o
}

func (o *Orchestrator) logf(format string, v ...any) {
	if o.Log != nil {
		o.Log.Printf(format, v...)
	}
}

// Run drives exactly one trading day to completion: wait market-open,
// wait 10:00, capture the OR, branch, monitor, submit if the threshold is
// met, wait market-close, reconcile, and emit. It never returns a
// non-nil error for an ordinary NO_TRADE day -- that outcome is recorded
// in the returned TradeRecord's Outcome field, not raised as an error.
// Only a context cancellation or a programmer-error invariant violation
// is surfaced as an error (§7 Invariant violation, Propagation).
func (o *Orchestrator) Run(ctx context.Context) (traderecord.TradeRecord, DayPhase, error) {
	rec := traderecord.TradeRecord{Date: o.Clock.Today()}

	phase := PhasePreOpen
	if o.Calendar != nil {
		tradingDay, err := o.Calendar.IsTradingDay(ctx, rec.Date)
		if err != nil {
			o.logf("orchestrator: market calendar check failed, proceeding on real-time checks only: %v", err)
		} else if !tradingDay {
			o.logf("orchestrator: %s is not a trading day, day is NO_TRADE", rec.Date.Format("2006-01-02"))
			return o.sealNoTrade(rec), PhaseNoTrade, nil
		}
	}

	phase = PhaseOpenWait
	open, err := o.Clock.ParseHM(marketOpenHM)
	if err != nil {
		return rec, phase, fmt.Errorf("orchestrator: parsing market open: %w", err)
	}
	if err := o.Clock.WaitUntil(ctx, open, "market_open"); err != nil {
		return rec, phase, err
	}

	phase = PhaseORCapture
	orClose, err := o.Clock.ParseHM(orCloseHM)
	if err != nil {
		return rec, phase, fmt.Errorf("orchestrator: parsing OR close: %w", err)
	}
	if err := o.Clock.WaitUntil(ctx, orClose, "or_capture"); err != nil {
		return rec, phase, err
	}

	or, err := orcapture.Capture(ctx, o.Market, rec.Date)
	if err != nil {
		o.logf("orchestrator: OR capture failed, day is NO_TRADE: %v", err)
		return o.sealNoTrade(rec), PhaseNoTrade, nil
	}
	rec.ORO, rec.ORH, rec.ORL, rec.ORC = or.Open.Float64(), or.High.Float64(), or.Low.Float64(), or.Close.Float64()

	branch := setup.Classify(or)
	if branch == setup.NoTrade {
		o.logf("orchestrator: OR flat (ORC == ORO), day is NO_TRADE")
		return o.sealNoTrade(rec), PhaseNoTrade, nil
	}

	deadline, err := o.Clock.ParseHM(entryDeadline)
	if err != nil {
		return rec, phase, fmt.Errorf("orchestrator: parsing entry deadline: %w", err)
	}

	var decision setup.Decision
	switch branch {
	case setup.StepA:
		phase = PhaseStepAEval
		decision = setup.DecideStepA(or, o.Clock.Now())
		phase = PhaseStepAMonitor
	case setup.StepB:
		phase = PhaseStepBScan
		var ok bool
		decision, ok, err = setup.ScanStepB(ctx, o.Clock, o.Market, or, rec.Date, o.Log)
		if err != nil {
			if ctx.Err() != nil {
				return rec, phase, err
			}
			o.logf("orchestrator: Step-B scan failed, day is NO_TRADE: %v", err)
			return o.sealNoTrade(rec), PhaseNoTrade, nil
		}
		if !ok {
			o.logf("orchestrator: no Step-B breakout by 12:00, day is NO_TRADE")
			return o.sealNoTrade(rec), PhaseNoTrade, nil
		}
		phase = PhaseStepBMonitor
	}
	o.applyDecision(&rec, decision)

	eval := credit.NewEvaluator(o.Market, o.Config.Slippage)
	reading, err := monitor.Run(ctx, eval, func() time.Time { return o.Clock.Now() }, monitor.DefaultSleep, monitor.Params{
		Date:         rec.Date,
		ShortStrike:  decision.Strikes.Short,
		LongStrike:   decision.Strikes.Long,
		OptionType:   optionTypeFor(decision.TradeType),
		Deadline:     deadline,
		MinNetCredit: o.Config.MinNetCredit,
	})
	if errors.Is(err, monitor.ErrNoFill) {
		o.logf("orchestrator: no fill by 12:00 deadline, day is NO_TRADE (setup=%s)", decision.Kind)
		return o.sealNoTrade(rec), PhaseNoTrade, nil
	}
	if err != nil {
		return rec, phase, err
	}
	rec.FillTime = o.Clock.Now()
	rec.CGrossFill = reading.Gross.Float64()
	rec.CNetFill = reading.Net.Float64()
	rec.SlippageBuffer = o.Config.Slippage.Float64()

	equity, err := o.Broker.GetAccountEquity(ctx)
	if err != nil {
		o.logf("orchestrator: equity read failed, day is NO_TRADE: %v", err)
		return o.sealNoTrade(rec), PhaseNoTrade, nil
	}
	rec.EquityBefore = equity.Float64()

	sz := sizing.Size(sizing.Params{
		Equity:       equity,
		NetCredit:    reading.Net,
		RiskPct:      o.Config.RiskPct,
		MinContracts: o.Config.MinContracts,
		MaxContracts: o.Config.MaxContracts,
	})
	rec.Qty = sz.Quantity
	rec.RDay = sz.RiskBudget.Float64()
	rec.MaxLossPerSpread = sz.MaxLossPerSpread.Float64()

	outcome, err := gate.Submit(ctx, o.Broker, gate.Request{
		Safety:         o.Config.Safety,
		ExpirationDate: rec.Date,
		ShortStrike:    decision.Strikes.Short,
		LongStrike:     decision.Strikes.Long,
		OptionType:     optionTypeFor(decision.TradeType),
		Quantity:       sz.Quantity,
		GrossCredit:    reading.Gross,
		ClientTag:      fmt.Sprintf("%s-%s", rec.Date.Format("20060102"), decision.Kind),
	})
	if err != nil {
		// No order id is recorded, so the day ends SETTLEMENT_SKIPPED below.
		o.logf("orchestrator: order submission failed, no order id recorded: %v", err)
	} else {
		rec.OrderID = outcome.OrderID
		rec.OrderStatus = string(outcome.Status)
	}

	phase = PhaseAwaitClose
	marketClose, err := o.Clock.ParseHM(marketCloseHM)
	if err != nil {
		return rec, phase, fmt.Errorf("orchestrator: parsing market close: %w", err)
	}
	if err := o.Clock.WaitUntil(ctx, marketClose, "market_close"); err != nil {
		return rec, phase, err
	}

	phase = PhaseReconcile
	if rec.OrderID == "" {
		o.logf("orchestrator: no order id at settlement, day is SETTLEMENT_SKIPPED")
		rec.Outcome = traderecord.OutcomeSettlementSkipped
		return rec, PhaseDone, nil
	}

	spxClose, err := o.Market.GetIndexClose(ctx, rec.Date)
	if err != nil {
		o.logf("orchestrator: SPX close unavailable, day is SETTLEMENT_SKIPPED: %v", err)
		rec.Outcome = traderecord.OutcomeSettlementSkipped
		return rec, PhaseDone, nil
	}

	settled := reconcile.Settle(decision.TradeType, decision.Strikes.Short, spxClose, reading.Net, sz.Quantity)
	rec.SPXClose = spxClose.Float64()
	rec.SettlementValue = settled.SettlementValue.Float64()
	rec.PnLPerSpread = settled.PnLPerSpread.Float64()
	rec.TotalPnL = settled.TotalPnL.Float64()
	rec.EquityAfter = equity.Add(settled.TotalPnL).Float64()
	rec.Outcome = traderecord.OutcomeSettled

	phase = PhaseDone
	return rec, phase, nil
}

func (o *Orchestrator) sealNoTrade(rec traderecord.TradeRecord) traderecord.TradeRecord {
	rec.Outcome = traderecord.OutcomeNoTrade
	return rec
}

func (o *Orchestrator) applyDecision(rec *traderecord.TradeRecord, d setup.Decision) {
	rec.Setup = string(d.Kind)
	rec.TradeType = string(d.TradeType)
	rec.TriggerTime = d.TriggerTime
	rec.SPXEntry = d.SPXEntry.Float64()
	rec.KShort = d.Strikes.Short
	rec.KLong = d.Strikes.Long
}

func optionTypeFor(t setup.TradeType) marketdata.OptionType {
	if t == setup.TradeTypeCall {
		return marketdata.Call
	}
	return marketdata.Put
}
