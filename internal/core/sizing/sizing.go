// Package sizing implements the Position Sizer (C6): a daily-risk budget
// turned into a contract count, floored and capped.
package sizing

import (
	"github.com/eliywilner/spxspread/internal/core/money"
	"github.com/eliywilner/spxspread/internal/core/strike"
)

// Result is the sizing outcome surfaced into the TradeRecord.
type Result struct {
	Quantity         int
	RiskBudget       money.Decimal // R_day = risk_pct * equity
	MaxLossPerSpread money.Decimal // (W - C_net) * 100
}

// Params bundles the account/risk inputs to Size.
type Params struct {
	Equity       money.Decimal
	NetCredit    money.Decimal
	RiskPct      float64 // e.g. 0.03
	MinContracts int
	MaxContracts int
}

// Size computes qty = clamp(floor(R_day / max_loss_per_spread), min, max).
// If max_loss_per_spread <= 0 (an arbitrage-like quote that should never
// occur intraday, C_net >= W), qty is forced to MinContracts per §4.6.
func Size(p Params) Result {
	riskBudget := money.FromFloat(p.RiskPct * p.Equity.Float64())

	widthDollars := money.FromFloat(float64(strike.Width) * 100)
	netCreditDollars := money.FromFloat(p.NetCredit.Float64() * 100)
	maxLoss := widthDollars.Sub(netCreditDollars)

	minContracts := p.MinContracts
	if minContracts < 1 {
		minContracts = 1
	}
	maxContracts := p.MaxContracts
	if maxContracts < minContracts {
		maxContracts = minContracts
	}

	if maxLoss.Cents() <= 0 {
		return Result{Quantity: minContracts, RiskBudget: riskBudget, MaxLossPerSpread: maxLoss}
	}

	qty := int(riskBudget.Cents() / maxLoss.Cents())
	if qty < minContracts {
		qty = minContracts
	}
	if qty > maxContracts {
		qty = maxContracts
	}

	return Result{Quantity: qty, RiskBudget: riskBudget, MaxLossPerSpread: maxLoss}
}
