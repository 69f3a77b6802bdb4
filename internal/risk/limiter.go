// Package risk enforces notional exposure limits on a trading session.
//
// Limits apply at two levels: the notional exposure held in any single
// outcome, and the aggregate exposure across every outcome the session
// has open. Both are checked before a trade is priced, so a rejected
// trade never reaches the pricing engine.
package risk

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrOutcomeLimitExceeded is returned when a trade would push a
	// single outcome's exposure beyond the per-outcome maximum.
	ErrOutcomeLimitExceeded = errors.New("risk: per-outcome exposure limit exceeded")

	// ErrAggregateLimitExceeded is returned when a trade would push the
	// session's total exposure beyond the aggregate maximum.
	ErrAggregateLimitExceeded = errors.New("risk: aggregate exposure limit exceeded")
)

// Limiter enforces session-level exposure limits.
type Limiter struct {
	// MaxPerOutcome is the maximum notional exposure in any single outcome.
	MaxPerOutcome decimal.Decimal

	// MaxAggregate is the maximum total notional exposure across all
	// outcomes the session holds.
	MaxAggregate decimal.Decimal
}

// NewLimiter creates a limiter with the given per-outcome and aggregate
// exposure limits.
func NewLimiter(maxPerOutcome, maxAggregate decimal.Decimal) *Limiter {
	return &Limiter{
		MaxPerOutcome: maxPerOutcome,
		MaxAggregate:  maxAggregate,
	}
}

// Check validates whether a trade respects exposure limits.
//
// Parameters:
//   - outcomeID: the outcome being traded
//   - notionalDelta: signed change in exposure (+buy / -sell)
//   - exposures: current notional exposure per outcome for this session
//
// Returns nil if the trade is within limits.
func (l *Limiter) Check(outcomeID string, notionalDelta decimal.Decimal, exposures map[string]decimal.Decimal) error {
	newExposure := exposures[outcomeID].Add(notionalDelta)

	if newExposure.Abs().GreaterThan(l.MaxPerOutcome) {
		return ErrOutcomeLimitExceeded
	}

	total := newExposure.Abs()
	for id, exp := range exposures {
		if id == outcomeID {
			continue // already counted via newExposure above
		}
		total = total.Add(exp.Abs())
	}

	if total.GreaterThan(l.MaxAggregate) {
		return ErrAggregateLimitExceeded
	}
	return nil
}
