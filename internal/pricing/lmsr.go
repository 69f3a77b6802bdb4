package pricing

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"

	"github.com/openpredict/market-engine/internal/model"
)

// ErrInvalidLiquidity is returned when the LMSR liquidity parameter b <= 0.
var ErrInvalidLiquidity = errors.New("pricing: liquidity parameter b must be positive")

// CostScale is the number of decimal places for cost rounding.
const CostScale int32 = 8

// priceEpsilon keeps softmax output inside the open interval when
// float64 rounding would collapse an extreme ratio to exactly 0 or 1.
const priceEpsilon = 1e-15

// LMSRStrategy implements the Logarithmic Market Scoring Rule over N
// mutually-exclusive outcomes:
//
//	price_i = exp(q_i/b) / Σ_j exp(q_j/b)
//	C(q)    = b · ln Σ_j exp(q_j/b)
//
// Prices are strictly inside (0,1) and sum to 1 by construction for any
// finite quantity vector; the LMSR model has no probability clamp. The
// only guard is numeric: float64 rounds softmax ratios past ~1e-16 to
// exactly 0 or 1, so outputs are bounded into [priceEpsilon, 1-priceEpsilon]
// before the decimal conversion. Higher b → more liquidity, lower price
// impact per trade; the market maker's loss is bounded by b · ln(n).
//
// Trade sizes are share counts: the LMSR cost function is denominated in
// shares, and the cash cost falls out of the C(q) delta.
//
// Reference: Hanson, R. (2003) "Combinatorial Information Market Design"
type LMSRStrategy struct {
	b decimal.Decimal
}

// NewLMSRStrategy creates an LMSR strategy with liquidity parameter b.
func NewLMSRStrategy(b decimal.Decimal) (*LMSRStrategy, error) {
	if b.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidLiquidity
	}
	return &LMSRStrategy{b: b}, nil
}

// Name implements Strategy.
func (s *LMSRStrategy) Name() string { return model.ModelLMSR }

// B returns the liquidity parameter.
func (s *LMSRStrategy) B() decimal.Decimal { return s.b }

// logSumExp computes ln(Σ exp(x_i)) without overflowing float64. A naive
// exp(x) overflows for x > ~709; shifting by max(x) keeps every exponent
// in [0, 1] before summing:
//
//	LSE(x) = max(x) + ln(Σ exp(x_i - max(x)))
func logSumExp(xs []float64) float64 {
	if len(xs) == 0 {
		return math.Inf(-1)
	}

	maxVal := xs[0]
	for _, x := range xs[1:] {
		if x > maxVal {
			maxVal = x
		}
	}
	if math.IsInf(maxVal, -1) {
		return math.Inf(-1)
	}

	var sum float64
	for _, x := range xs {
		sum += math.Exp(x - maxVal)
	}
	return maxVal + math.Log(sum)
}

// scaled returns the quantity vector divided by b as float64 values.
func (s *LMSRStrategy) scaled(quantities []decimal.Decimal) []float64 {
	bf := s.b.InexactFloat64()
	xs := make([]float64, len(quantities))
	for i, q := range quantities {
		xs[i] = q.InexactFloat64() / bf
	}
	return xs
}

// boundPrice pulls a price into (0,1) when float64 rounding lands it on
// a boundary. The shift is at most priceEpsilon per outcome, far inside
// the sum-to-one tolerance.
func boundPrice(p float64) float64 {
	if p < priceEpsilon {
		return priceEpsilon
	}
	if p > 1-priceEpsilon {
		return 1 - priceEpsilon
	}
	return p
}

// PriceVector computes the softmax price for every outcome. The result
// sums to 1 up to float64 rounding; each price is bounded into the open
// interval so extreme quantity gaps cannot round an outcome to 0 or 1.
func (s *LMSRStrategy) PriceVector(quantities []decimal.Decimal) []decimal.Decimal {
	xs := s.scaled(quantities)

	maxVal := xs[0]
	for _, x := range xs[1:] {
		if x > maxVal {
			maxVal = x
		}
	}

	var total float64
	exps := make([]float64, len(xs))
	for i, x := range xs {
		exps[i] = math.Exp(x - maxVal)
		total += exps[i]
	}

	prices := make([]decimal.Decimal, len(xs))
	for i, e := range exps {
		prices[i] = decimal.NewFromFloat(boundPrice(e / total))
	}
	return prices
}

// Cost computes the cash cost of moving outcomeIdx's quantity by
// deltaShares:
//
//	cost = C(q + Δ·e_i) - C(q)
//
// Positive for buys, negative for sells (a refund to the trader).
func (s *LMSRStrategy) Cost(quantities []decimal.Decimal, outcomeIdx int, deltaShares decimal.Decimal) decimal.Decimal {
	bf := s.b.InexactFloat64()

	before := s.scaled(quantities)
	after := make([]float64, len(before))
	copy(after, before)
	after[outcomeIdx] += deltaShares.InexactFloat64() / bf

	cost := bf * (logSumExp(after) - logSumExp(before))
	return decimal.NewFromFloat(cost).Round(CostScale)
}

// FillPrice returns the average execution price per share for a trade.
// Positive for both buys (cost>0, delta>0) and sells (cost<0, delta<0).
func (s *LMSRStrategy) FillPrice(quantities []decimal.Decimal, outcomeIdx int, deltaShares decimal.Decimal) decimal.Decimal {
	if deltaShares.IsZero() {
		return s.PriceVector(quantities)[outcomeIdx]
	}
	cost := s.Cost(quantities, outcomeIdx, deltaShares)
	return cost.Div(deltaShares).Round(CostScale)
}

// QuantitiesForPrices inverts the softmax: it returns a quantity vector
// whose price vector reproduces the given initial prices, shifted so the
// largest quantity is zero. Used when seeding an LMSR market from an
// externally supplied price vector.
func (s *LMSRStrategy) QuantitiesForPrices(prices []decimal.Decimal) []decimal.Decimal {
	bf := s.b.InexactFloat64()

	logs := make([]float64, len(prices))
	maxLog := math.Inf(-1)
	for i, p := range prices {
		logs[i] = bf * math.Log(p.InexactFloat64())
		if logs[i] > maxLog {
			maxLog = logs[i]
		}
	}

	quantities := make([]decimal.Decimal, len(logs))
	for i, l := range logs {
		quantities[i] = decimal.NewFromFloat(l - maxLog).Round(CostScale)
	}
	return quantities
}

// Quote implements Strategy. Amount is a share count for the LMSR model.
func (s *LMSRStrategy) Quote(m *model.Market, outcomeIdx int, side model.Side, amount decimal.Decimal) (*Quote, error) {
	out := &m.Outcomes[outcomeIdx]

	quantities := make([]decimal.Decimal, len(m.Outcomes))
	for i := range m.Outcomes {
		quantities[i] = m.Outcomes[i].Quantity
	}

	shares := amount
	if side == model.SideSell {
		if out.UserPosition.LessThanOrEqual(decimal.Zero) {
			return nil, ErrNoPosition
		}
		shares = decimal.Min(amount, out.UserPosition)
	}

	delta := shares
	if side == model.SideSell {
		delta = shares.Neg()
	}

	cost := s.Cost(quantities, outcomeIdx, delta)

	newQuantities := make([]decimal.Decimal, len(quantities))
	copy(newQuantities, quantities)
	newQuantities[outcomeIdx] = newQuantities[outcomeIdx].Add(delta)

	prices := s.PriceVector(newQuantities)

	return &Quote{
		OutcomeIndex: outcomeIdx,
		Side:         side,
		Amount:       amount,
		Shares:       shares,
		Cost:         cost,
		Price:        prices[outcomeIdx],
		Prices:       prices,
		Quantities:   newQuantities,
		VolumeDelta:  cost.Abs(),
	}, nil
}
