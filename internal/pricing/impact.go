package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/openpredict/market-engine/internal/model"
)

var (
	// MinPrice is the probability floor for the impact model. Prevents
	// degenerate markets where shares become worthless.
	MinPrice = decimal.NewFromFloat(0.01)

	// MaxPrice is the probability ceiling for the impact model. Prevents
	// markets where an outcome appears "certain".
	MaxPrice = decimal.NewFromFloat(0.99)

	// impactScale is the notional that moves a price by 1.0 — i.e. one
	// million in notional moves an outcome by 100 percentage points.
	impactScale = decimal.NewFromInt(1_000_000)
)

// ImpactStrategy prices trades by linear notional impact: a buy of
// notional N moves the traded outcome's price up by N / 1e6, clamped to
// [MinPrice, MaxPrice], and the non-traded outcomes are scaled
// proportionally so the vector keeps summing to 1.
//
// Trade sizes are notional amounts. Shares bought are amount / price at
// the pre-trade price; sells are clamped to the held position and settle
// at the pre-trade price.
type ImpactStrategy struct{}

// NewImpactStrategy creates the linear price-impact strategy. It is
// stateless: all market state lives on the outcomes themselves.
func NewImpactStrategy() *ImpactStrategy {
	return &ImpactStrategy{}
}

// Name implements Strategy.
func (s *ImpactStrategy) Name() string { return model.ModelImpact }

// clampPrice bounds a price to [MinPrice, MaxPrice].
func clampPrice(p decimal.Decimal) decimal.Decimal {
	if p.LessThan(MinPrice) {
		return MinPrice
	}
	if p.GreaterThan(MaxPrice) {
		return MaxPrice
	}
	return p
}

// renormalize rebuilds the full price vector after the traded outcome
// moved to newPrice: the non-traded outcomes share the remaining
// probability mass in proportion to their pre-trade prices. If their
// pre-trade sum is zero the remainder is split uniformly instead of
// dividing by zero; the returned flag reports that fallback.
func renormalize(m *model.Market, changedIdx int, newPrice decimal.Decimal) ([]decimal.Decimal, bool) {
	remaining := decimal.NewFromInt(1).Sub(newPrice)

	otherSum := decimal.Zero
	for i := range m.Outcomes {
		if i != changedIdx {
			otherSum = otherSum.Add(m.Outcomes[i].Price)
		}
	}

	prices := make([]decimal.Decimal, len(m.Outcomes))
	prices[changedIdx] = newPrice

	if otherSum.IsZero() {
		share := remaining.Div(decimal.NewFromInt(int64(len(m.Outcomes) - 1)))
		for i := range prices {
			if i != changedIdx {
				prices[i] = share
			}
		}
		return prices, true
	}

	for i := range m.Outcomes {
		if i != changedIdx {
			prices[i] = m.Outcomes[i].Price.Div(otherSum).Mul(remaining)
		}
	}
	return prices, false
}

// Quote implements Strategy. Amount is a notional for the impact model.
func (s *ImpactStrategy) Quote(m *model.Market, outcomeIdx int, side model.Side, amount decimal.Decimal) (*Quote, error) {
	out := &m.Outcomes[outcomeIdx]

	var (
		shares, cost, volumeDelta, newPrice decimal.Decimal
	)

	switch side {
	case model.SideBuy:
		shares = amount.Div(out.Price)
		newPrice = clampPrice(out.Price.Add(amount.Div(impactScale)))
		cost = amount
		volumeDelta = amount

	case model.SideSell:
		if out.UserPosition.LessThanOrEqual(decimal.Zero) {
			return nil, ErrNoPosition
		}
		shares = decimal.Min(amount.Div(out.Price), out.UserPosition)
		proceeds := shares.Mul(out.Price)
		newPrice = clampPrice(out.Price.Sub(proceeds.Div(impactScale)))
		cost = proceeds.Neg()
		volumeDelta = proceeds

	default:
		return nil, ErrInvalidSide
	}

	prices, degenerate := renormalize(m, outcomeIdx, newPrice)

	return &Quote{
		OutcomeIndex: outcomeIdx,
		Side:         side,
		Amount:       amount,
		Shares:       shares,
		Cost:         cost,
		Price:        newPrice,
		Prices:       prices,
		VolumeDelta:  volumeDelta,
		Degenerate:   degenerate,
	}, nil
}
