// Package gate implements the Order Gate & Submitter (C11): the single
// safety predicate guarding live submission, and resolution of the
// broker's ambiguous-response variants into one outcome.
package gate

import (
	"context"
	"time"

	"github.com/eliywilner/spxspread/internal/core/broker"
	"github.com/eliywilner/spxspread/internal/core/marketdata"
	"github.com/eliywilner/spxspread/internal/core/money"
)

// DryRunOrderID is the synthetic order id returned whenever the safety
// gate holds (§4.11, §7 SafetyGate).
const DryRunOrderID = "DRY_RUN_MOCK_ORDER_ID"

// Safety is the two-flag predicate gating live submission. Both fields
// are false in a zero-value Safety, and EnableLiveTrading false alone
// holds the gate, so a zero-value Safety never submits live by accident.
type Safety struct {
	DryRun            bool
	EnableLiveTrading bool
}

// Live reports whether a real order should reach the broker. This is the
// single point of the dry_run/enable_live_trading check; callers must not
// re-derive it elsewhere (§9: impossible to bypass by code path).
func (s Safety) Live() bool {
	return !s.DryRun && s.EnableLiveTrading
}

// Request bundles everything the gate needs to submit or synthesize a
// spread order.
type Request struct {
	Safety         Safety
	ExpirationDate time.Time
	ShortStrike    float64
	LongStrike     float64
	OptionType     marketdata.OptionType
	Quantity       int
	GrossCredit    money.Decimal // limit price, fixed at threshold-met instant
	ClientTag      string
}

// Outcome is the record the gate hands back to the orchestrator: an order
// id, a status, and which of the three confirmation paths produced it.
type Outcome struct {
	OrderID     string
	Status      broker.OrderStatus
	Confirmed   bool
	ViaLocation bool
}

// Submit resolves the safety predicate first. When it does not hold, it
// returns the synthetic dry-run record without touching the broker at
// all -- the day continues as if filled (§4.11). When it holds, the
// two-leg payload is sent exactly once; there is no retry within a
// submission, since the broker is authoritative and a retry risks a
// duplicate order (§4.11, §7).
func Submit(ctx context.Context, b broker.Broker, req Request) (Outcome, error) {
	if !req.Safety.Live() {
		return Outcome{OrderID: DryRunOrderID, Status: broker.StatusDryRun}, nil
	}

	outcome, err := b.SubmitCreditSpread(ctx, broker.SpreadOrderRequest{
		ExpirationDate: req.ExpirationDate,
		ShortStrike:    req.ShortStrike,
		LongStrike:     req.LongStrike,
		OptionType:     req.OptionType,
		Quantity:       req.Quantity,
		LimitPrice:     req.GrossCredit,
		ClientTag:      req.ClientTag,
	})
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{
		OrderID:     outcome.OrderID,
		Status:      outcome.Status,
		Confirmed:   outcome.Confirmed,
		ViaLocation: outcome.ViaLocation,
	}, nil
}
