// Package model defines the core domain types shared across the market engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Valid reports whether s is a recognized trade side.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Market lifecycle states. Only a trading market accepts orders; the
// closed→resolved transition and payouts happen outside this engine.
const (
	StatusTrading  = "trading"
	StatusClosed   = "closed"
	StatusResolved = "resolved"
)

// Pricing model identifiers, stored on the market so a snapshot can be
// rebound to the strategy that priced it.
const (
	ModelLMSR   = "lmsr"
	ModelImpact = "impact"
)

// Outcome is one mutually-exclusive resolution branch of a market.
//
// Price is a probability in (0,1); across a market's outcomes, prices sum
// to 1 after initialization and after every executed trade. Quantity is
// the cumulative net shares issued (used by the LMSR model only).
// UserPosition is the owning session's net shares, never negative.
type Outcome struct {
	ID           string          `json:"id" db:"id"`
	Label        string          `json:"label" db:"label"`
	Price        decimal.Decimal `json:"price" db:"price"`
	Quantity     decimal.Decimal `json:"quantity" db:"quantity"`
	Volume       decimal.Decimal `json:"volume" db:"volume"`
	UserPosition decimal.Decimal `json:"user_position" db:"user_position"`
}

// Market is the state of one prediction market. The outcome set is fixed
// at creation; membership never changes for the market's lifetime.
type Market struct {
	ID           string          `json:"id" db:"id"`
	Title        string          `json:"title" db:"title"`
	Description  string          `json:"description" db:"description"`
	Category     string          `json:"category" db:"category"`
	Outcomes     []Outcome       `json:"outcomes" db:"outcomes"`
	PricingModel string          `json:"pricing_model" db:"pricing_model"`
	B            decimal.Decimal `json:"b" db:"b"` // LMSR liquidity parameter
	Status       string          `json:"status" db:"status"`
	EndTime      time.Time       `json:"end_time" db:"end_time"`
	TotalVolume  decimal.Decimal `json:"total_volume" db:"total_volume"`
	Participants int             `json:"participants" db:"participants"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// Clone returns a deep copy so callers can hand out snapshots without
// exposing the engine's mutable state.
func (m *Market) Clone() *Market {
	cp := *m
	cp.Outcomes = make([]Outcome, len(m.Outcomes))
	copy(cp.Outcomes, m.Outcomes)
	return &cp
}

// OutcomeIndex returns the position of the outcome with the given ID,
// or -1 if the market has no such outcome.
func (m *Market) OutcomeIndex(id string) int {
	for i := range m.Outcomes {
		if m.Outcomes[i].ID == id {
			return i
		}
	}
	return -1
}

// PriceSum returns the sum of all outcome prices.
func (m *Market) PriceSum() decimal.Decimal {
	sum := decimal.Zero
	for i := range m.Outcomes {
		sum = sum.Add(m.Outcomes[i].Price)
	}
	return sum
}

// Trade is an immutable record of an executed trade.
// Once created, these are never modified or deleted.
type Trade struct {
	ID        string          `json:"id" db:"id"`
	MarketID  string          `json:"market_id" db:"market_id"`
	OutcomeID string          `json:"outcome_id" db:"outcome_id"`
	Side      Side            `json:"side" db:"side"`
	Amount    decimal.Decimal `json:"amount" db:"amount"` // notional traded
	Shares    decimal.Decimal `json:"shares" db:"shares"` // shares moved
	Price     decimal.Decimal `json:"price" db:"price"`   // resulting outcome price
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
}

// TradeIntent is an ephemeral order: consumed once by Execute, never stored.
type TradeIntent struct {
	OutcomeID string          `json:"outcome_id"`
	Side      Side            `json:"side"`
	Amount    decimal.Decimal `json:"amount"`
}
