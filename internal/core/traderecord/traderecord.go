// Package traderecord defines the TradeRecord (C12): the day's single,
// phased output. Fields are populated in three waves -- pre-trigger,
// post-fill, post-settlement -- and the external schema (field names) is
// part of the wire contract, not an implementation detail (§6).
package traderecord

import "time"

// Outcome is the terminal classification of a trading day, independent of
// whether a TradeRecord carries settlement fields.
type Outcome string

// The three ways a day can end, per §4.13 and §7.
const (
	OutcomeSettled            Outcome = "SETTLED"
	OutcomeNoTrade            Outcome = "NO_TRADE"
	OutcomeSettlementSkipped  Outcome = "SETTLEMENT_SKIPPED"
)

// TradeRecord is the single record a trading day may produce. At most one
// exists per calendar trading date (§8 property 8); it is created when a
// setup triggers and sealed after settlement.
type TradeRecord struct {
	Date      time.Time `json:"date"`
	Setup     string    `json:"setup"`
	TradeType string    `json:"trade_type"`

	// Pre-trigger fields.
	TriggerTime time.Time `json:"trigger_time"`
	SPXEntry    float64   `json:"SPX_entry"`
	ORO         float64   `json:"ORO"`
	ORH         float64   `json:"ORH"`
	ORL         float64   `json:"ORL"`
	ORC         float64   `json:"ORC"`
	KShort      float64   `json:"K_short"`
	KLong       float64   `json:"K_long"`

	// Post-fill fields.
	FillTime         time.Time `json:"fill_time"`
	CGrossFill       float64   `json:"C_gross_fill"`
	SlippageBuffer   float64   `json:"S"`
	CNetFill         float64   `json:"C_net_fill"`
	Qty              int       `json:"qty"`
	RDay             float64   `json:"R_day"`
	MaxLossPerSpread float64   `json:"maxLossPerSpread"`
	EquityBefore     float64   `json:"equity_before"`
	OrderID          string    `json:"order_id"`
	OrderStatus      string    `json:"order_status"`

	// Post-settlement fields.
	SPXClose         float64 `json:"SPX_close"`
	SettlementValue  float64 `json:"settlement_value"`
	PnLPerSpread     float64 `json:"pnl_per_spread"`
	TotalPnL         float64 `json:"total_pnl"`
	EquityAfter      float64 `json:"equity_after"`

	// Outcome is not part of the external schema list but records which
	// of the three day-ending classifications applies, so a partial
	// record (no settlement fields) is distinguishable from a settled one.
	Outcome Outcome `json:"outcome"`
}

// Sealed reports whether settlement fields have been written.
func (r TradeRecord) Sealed() bool {
	return r.Outcome == OutcomeSettled
}
