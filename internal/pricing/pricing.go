// Package pricing converts trade intents into priced outcomes and fully
// renormalized price vectors, without ever violating the sum-to-one and
// price-interval invariants.
//
// Two interchangeable strategies are provided: an LMSR cost-function model
// (softmax of quantities, prices in (0,1) by construction) and a linear
// price-impact model with proportional renormalization and [0.01, 0.99]
// clamping. Both sit behind the Strategy interface; the market's
// PricingModel field selects one at engine construction.
//
// All monetary values use shopspring/decimal — never float64 for money.
// Internal transcendental math uses the log-sum-exp trick for numerical
// stability, with results immediately converted to decimal.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/openpredict/market-engine/internal/model"
)

var (
	// ErrInvalidTrade is the base class for every trade rejection. All
	// rejections below match it via errors.Is, so callers can treat any
	// of them as "rejected, market unchanged".
	ErrInvalidTrade = errors.New("pricing: invalid trade")

	// ErrInvalidAmount is returned for a non-positive trade amount.
	ErrInvalidAmount = fmt.Errorf("%w: amount must be positive", ErrInvalidTrade)

	// ErrInvalidSide is returned for a side other than buy or sell.
	ErrInvalidSide = fmt.Errorf("%w: side must be buy or sell", ErrInvalidTrade)

	// ErrUnknownOutcome is returned when the outcome ID does not exist
	// in the market.
	ErrUnknownOutcome = fmt.Errorf("%w: unknown outcome", ErrInvalidTrade)

	// ErrNoPosition is returned for a sell with no shares held.
	ErrNoPosition = fmt.Errorf("%w: no position to sell", ErrInvalidTrade)

	// ErrMarketNotTrading is returned when the market status is not
	// "trading".
	ErrMarketNotTrading = fmt.Errorf("%w: market is not trading", ErrInvalidTrade)

	// ErrUnknownModel is returned when a market names a pricing model
	// no strategy implements.
	ErrUnknownModel = errors.New("pricing: unknown pricing model")
)

// Quote is a fully priced, not-yet-applied trade. It carries every field
// the engine needs to commit the trade, so quoting stays a pure function
// and Execute can validate everything before mutating anything.
type Quote struct {
	OutcomeIndex int
	Side         model.Side
	Amount       decimal.Decimal // requested trade size
	Shares       decimal.Decimal // shares actually moved (sells clamp to position)
	Cost         decimal.Decimal // signed cash flow: buy > 0, sell < 0
	Price        decimal.Decimal // post-trade price of the traded outcome
	Prices       []decimal.Decimal // full post-trade price vector
	Quantities   []decimal.Decimal // post-trade quantities; nil for the impact model
	VolumeDelta  decimal.Decimal // notional added to the traded outcome's volume

	// Degenerate is set when renormalization hit an all-zero non-traded
	// price sum and fell back to a uniform split.
	Degenerate bool
}

// Strategy prices a trade intent against a market snapshot. Quote must not
// mutate the market; committing a quote is the engine's job.
type Strategy interface {
	Name() string
	Quote(m *model.Market, outcomeIdx int, side model.Side, amount decimal.Decimal) (*Quote, error)
}

// ForModel returns the strategy named by a market's PricingModel field.
// The LMSR strategy takes its liquidity parameter from m.B.
func ForModel(m *model.Market) (Strategy, error) {
	switch m.PricingModel {
	case model.ModelLMSR:
		return NewLMSRStrategy(m.B)
	case model.ModelImpact:
		return NewImpactStrategy(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, m.PricingModel)
	}
}

// TradeLog is a bounded, most-recent-first ring of executed trades.
// The oldest record is evicted once the capacity is reached.
type TradeLog struct {
	capacity int
	trades   []model.Trade
}

// DefaultLogCapacity bounds the visible trade history.
const DefaultLogCapacity = 50

// NewTradeLog creates a trade log holding at most capacity records.
// Non-positive capacities get DefaultLogCapacity.
func NewTradeLog(capacity int) *TradeLog {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &TradeLog{capacity: capacity}
}

// Append records a trade at the head of the log, evicting the oldest
// record if the log is full.
func (l *TradeLog) Append(t model.Trade) {
	if len(l.trades) == l.capacity {
		l.trades = l.trades[:l.capacity-1]
	}
	l.trades = append([]model.Trade{t}, l.trades...)
}

// All returns a copy of the log, most recent first.
func (l *TradeLog) All() []model.Trade {
	out := make([]model.Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// Len returns the number of recorded trades.
func (l *TradeLog) Len() int {
	return len(l.trades)
}
