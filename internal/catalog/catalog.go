// Package catalog validates market definitions supplied by the discovery
// layer and turns them into priced market snapshots. It owns the two
// construction paths: an explicit outcome list, or a binary
// yes-percentage that is expanded into a Yes/No pair at creation time —
// trade-time code never branches on market shape.
package catalog

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openpredict/market-engine/internal/model"
	"github.com/openpredict/market-engine/internal/pricing"
)

var (
	ErrInvalidDefinition = errors.New("catalog: invalid market definition")
	ErrBadPriceVector    = errors.New("catalog: initial prices must lie in (0,1) and sum to 1")
)

// DefaultB is the LMSR liquidity parameter used when a definition leaves
// it unset.
var DefaultB = decimal.NewFromInt(100)

// priceSumTolerance bounds the accepted deviation of an initial price
// vector from 1.
var priceSumTolerance = decimal.NewFromFloat(1e-9)

// OutcomeDef describes one outcome of a market to be created.
type OutcomeDef struct {
	ID     string          `json:"id"`
	Label  string          `json:"label"`
	Price  decimal.Decimal `json:"price"`
	Volume decimal.Decimal `json:"volume"` // pre-existing notional, display only
}

// Definition is the discovery-layer input for creating a market.
type Definition struct {
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Category     string          `json:"category"`
	EndTime      time.Time       `json:"end_time"`
	PricingModel string          `json:"pricing_model"`
	B            decimal.Decimal `json:"b"` // LMSR liquidity; zero → DefaultB
	Outcomes     []OutcomeDef    `json:"outcomes"`
}

// Validate checks a definition without building anything.
func (d *Definition) Validate() error {
	if d.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidDefinition)
	}
	if d.Category == "" {
		return fmt.Errorf("%w: category is required", ErrInvalidDefinition)
	}
	if d.PricingModel != model.ModelLMSR && d.PricingModel != model.ModelImpact {
		return fmt.Errorf("%w: pricing model must be %q or %q",
			ErrInvalidDefinition, model.ModelLMSR, model.ModelImpact)
	}
	if len(d.Outcomes) < 2 {
		return fmt.Errorf("%w: at least two outcomes are required", ErrInvalidDefinition)
	}

	one := decimal.NewFromInt(1)
	sum := decimal.Zero
	seen := make(map[string]bool, len(d.Outcomes))

	for _, o := range d.Outcomes {
		if o.ID == "" || o.Label == "" {
			return fmt.Errorf("%w: outcome id and label are required", ErrInvalidDefinition)
		}
		if seen[o.ID] {
			return fmt.Errorf("%w: duplicate outcome id %q", ErrInvalidDefinition, o.ID)
		}
		seen[o.ID] = true

		if o.Price.LessThanOrEqual(decimal.Zero) || o.Price.GreaterThanOrEqual(one) {
			return ErrBadPriceVector
		}
		sum = sum.Add(o.Price)
	}

	if sum.Sub(one).Abs().GreaterThan(priceSumTolerance) {
		return ErrBadPriceVector
	}
	return nil
}

// NewMarket builds a market from an explicit definition. For the LMSR
// model the outcome quantities are seeded so the softmax reproduces the
// supplied initial prices.
func NewMarket(def Definition) (*model.Market, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	b := def.B
	if b.LessThanOrEqual(decimal.Zero) {
		b = DefaultB
	}

	m := &model.Market{
		ID:           uuid.New().String(),
		Title:        def.Title,
		Description:  def.Description,
		Category:     def.Category,
		PricingModel: def.PricingModel,
		B:            b,
		Status:       model.StatusTrading,
		EndTime:      def.EndTime,
		CreatedAt:    time.Now().UTC(),
		Outcomes:     make([]model.Outcome, len(def.Outcomes)),
	}

	for i, o := range def.Outcomes {
		m.Outcomes[i] = model.Outcome{
			ID:     o.ID,
			Label:  o.Label,
			Price:  o.Price,
			Volume: o.Volume,
		}
		m.TotalVolume = m.TotalVolume.Add(o.Volume)
	}

	if def.PricingModel == model.ModelLMSR {
		strat, err := pricing.NewLMSRStrategy(b)
		if err != nil {
			return nil, err
		}
		prices := make([]decimal.Decimal, len(m.Outcomes))
		for i := range m.Outcomes {
			prices[i] = m.Outcomes[i].Price
		}
		for i, q := range strat.QuantitiesForPrices(prices) {
			m.Outcomes[i].Quantity = q
		}
	}

	return m, nil
}

// NewBinaryMarket expands a (title, yesPercentage) pair into a two-outcome
// Yes/No market. yesPercentage is in (0, 100).
func NewBinaryMarket(title, description, category string, endTime time.Time, pricingModel string, yesPercentage decimal.Decimal) (*model.Market, error) {
	hundred := decimal.NewFromInt(100)
	if yesPercentage.LessThanOrEqual(decimal.Zero) || yesPercentage.GreaterThanOrEqual(hundred) {
		return nil, fmt.Errorf("%w: yes percentage %s outside (0, 100)",
			ErrInvalidDefinition, yesPercentage)
	}

	yes := yesPercentage.Div(hundred)
	no := decimal.NewFromInt(1).Sub(yes)

	return NewMarket(Definition{
		Title:        title,
		Description:  description,
		Category:     category,
		EndTime:      endTime,
		PricingModel: pricingModel,
		Outcomes: []OutcomeDef{
			{ID: "yes", Label: "Yes", Price: yes},
			{ID: "no", Label: "No", Price: no},
		},
	})
}

// DeriveLiquidity computes an LMSR b parameter from the dispersion of
// initial outcome volumes. Uneven interest (wide spread relative to the
// mean) suggests more uncertainty, so the market gets more liquidity to
// encourage price discovery; a floor of 10 prevents degenerate markets.
//
// Formula: b = baseB × (max(v) - min(v)) / mean(v)
func DeriveLiquidity(volumes []decimal.Decimal, baseB decimal.Decimal) decimal.Decimal {
	minB := decimal.NewFromInt(10)
	if len(volumes) == 0 {
		return minB
	}

	minV, maxV := volumes[0], volumes[0]
	total := decimal.Zero
	for _, v := range volumes {
		if v.LessThan(minV) {
			minV = v
		}
		if v.GreaterThan(maxV) {
			maxV = v
		}
		total = total.Add(v)
	}

	if !total.IsPositive() {
		return minB
	}

	mean := total.Div(decimal.NewFromInt(int64(len(volumes))))
	b := baseB.Mul(maxV.Sub(minV)).Div(mean)

	if b.LessThan(minB) {
		return minB
	}
	return b.Round(2)
}
