// Package broker defines the Broker Adapter contract (C3) as seen by the
// core decision engine. Concrete brokerage wiring lives in
// internal/broker (the top-level adapter package); this is the port.
package broker

import (
	"context"
	"time"

	"github.com/eliywilner/spxspread/internal/core/marketdata"
	"github.com/eliywilner/spxspread/internal/core/money"
)

// Side is the order side for one leg of the vertical spread.
type Side string

// The two leg sides a credit spread ever uses.
const (
	SellToOpen Side = "SELL_TO_OPEN"
	BuyToOpen  Side = "BUY_TO_OPEN"
)

// SpreadOrderRequest is the two-leg net-credit order payload (C3, §4.3).
type SpreadOrderRequest struct {
	ExpirationDate time.Time
	ShortStrike    float64
	LongStrike     float64
	OptionType     marketdata.OptionType
	Quantity       int
	LimitPrice     money.Decimal // net-credit limit, at C_gross
	// ClientTag is an idempotency token threaded through to the broker so
	// retries (there should be none within a submission) are
	// distinguishable.
	ClientTag string
}

// OrderStatus is the broker-reported lifecycle state of a submitted order.
type OrderStatus string

// Statuses the core ever assigns or reads back.
const (
	StatusDryRun                    OrderStatus = "DRY_RUN"
	StatusAcceptedUnconfirmed       OrderStatus = "ACCEPTED_UNCONFIRMED"
	StatusFilled                    OrderStatus = "filled"
	StatusOpen                      OrderStatus = "open"
	StatusRejected                  OrderStatus = "rejected"
	StatusPendingOrderIDPlaceholder OrderStatus = "PENDING"
)

// SubmissionOutcome is the three-way variant the order gate resolves a
// raw HTTP response into: the brokerage may answer with a confirmed body,
// an empty-bodied 201 carrying the id only in Location, or with nothing
// at all usable to identify the new order.
type SubmissionOutcome struct {
	OrderID     string
	Status      OrderStatus
	Confirmed   bool // true if OrderID was read from a parsed body or found in today's order list
	ViaLocation bool // true if OrderID was recovered from a Location header
	RawDetails  map[string]any
}

// Order is a lightweight view of an order returned by GetTodayOrders, used
// only to confirm a just-submitted order when the submission response body
// was empty (§4.3, §4.11).
type Order struct {
	ID     string
	Status OrderStatus
	Tag    string
}

// Broker is the Broker Adapter contract (C3).
type Broker interface {
	// GetAccountEquity returns the liquidation value used as equity for
	// sizing.
	GetAccountEquity(ctx context.Context) (money.Decimal, error)

	// SubmitCreditSpread places a two-leg net-credit order: short leg
	// SELL_TO_OPEN, long leg BUY_TO_OPEN, duration single-day.
	SubmitCreditSpread(ctx context.Context, req SpreadOrderRequest) (SubmissionOutcome, error)

	// GetTodayOrders returns up to max of today's orders, used only to
	// confirm the just-submitted order.
	GetTodayOrders(ctx context.Context, max int) ([]Order, error)
}
