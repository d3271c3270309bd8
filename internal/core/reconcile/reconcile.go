// Package reconcile implements the P/L Reconciler (C7): the cash-
// settlement formula and per-spread/aggregate P/L.
package reconcile

import (
	"github.com/eliywilner/spxspread/internal/core/money"
	"github.com/eliywilner/spxspread/internal/core/setup"
	"github.com/eliywilner/spxspread/internal/core/strike"
)

// Result is the settlement outcome written into the TradeRecord.
type Result struct {
	SettlementValue money.Decimal // clamp(intrinsic, 0, W), in points
	PnLPerSpread    money.Decimal // (C_net_fill - settlement_value) * 100
	TotalPnL        money.Decimal // PnLPerSpread * qty
}

// Settle computes the settlement value and P/L for one trade's spread.
// PUT: value = clamp(K_short - SPXClose, 0, W).
// CALL: value = clamp(SPXClose - K_short, 0, W).
func Settle(tradeType setup.TradeType, kShort float64, spxClose money.Decimal, netCreditFill money.Decimal, qty int) Result {
	var intrinsicPoints float64
	switch tradeType {
	case setup.TradeTypePut:
		intrinsicPoints = kShort - spxClose.Float64()
	case setup.TradeTypeCall:
		intrinsicPoints = spxClose.Float64() - kShort
	}

	value := money.FromFloat(clampFloat(intrinsicPoints, 0, strike.Width))

	valueDollars := money.FromFloat(value.Float64() * 100)
	netCreditDollars := money.FromFloat(netCreditFill.Float64() * 100)
	pnlPerSpread := netCreditDollars.Sub(valueDollars)
	totalPnL := pnlPerSpread.MulInt(qty)

	return Result{
		SettlementValue: value,
		PnLPerSpread:    pnlPerSpread,
		TotalPnL:        totalPnL,
	}
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
