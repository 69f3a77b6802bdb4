package pricing

import (
	"errors"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/openpredict/market-engine/internal/model"
)

func newImpactEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngineForMarket(electionMarket(t), 0)
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}
	return e
}

func buy(outcome string, amount float64) model.TradeIntent {
	return model.TradeIntent{OutcomeID: outcome, Side: model.SideBuy, Amount: d(amount)}
}

func sell(outcome string, amount float64) model.TradeIntent {
	return model.TradeIntent{OutcomeID: outcome, Side: model.SideSell, Amount: d(amount)}
}

func TestExecute_SumToOneAcrossTradeSequence(t *testing.T) {
	e := newImpactEngine(t)
	one := decimal.NewFromInt(1)
	tolerance := d(1e-9)

	intents := []model.TradeIntent{
		buy("trump", 25_000),
		buy("biden", 400_000),
		buy("other", 1_000),
		sell("biden", 50_000),
		buy("trump", 990_000),
		sell("trump", 300_000),
	}

	for i, intent := range intents {
		if _, _, err := e.Execute(intent); err != nil {
			t.Fatalf("trade %d rejected: %v", i, err)
		}
		sum := e.Snapshot().PriceSum()
		if sum.Sub(one).Abs().GreaterThan(tolerance) {
			t.Fatalf("after trade %d prices sum to %s", i, sum)
		}
	}
}

func TestExecute_ClampsTradedOutcomeOnly(t *testing.T) {
	e := newImpactEngine(t)

	// Saturating buys pin the traded outcome at the ceiling. The
	// renormalized outcomes take whatever remains — they may fall below
	// the floor, but must stay strictly inside (0,1).
	for i := 0; i < 5; i++ {
		if _, _, err := e.Execute(buy("trump", 1_000_000)); err != nil {
			t.Fatalf("trade %d rejected: %v", i, err)
		}
	}

	m := e.Snapshot()
	if !m.Outcomes[0].Price.Equal(MaxPrice) {
		t.Errorf("traded outcome should be pinned at %s, got %s", MaxPrice, m.Outcomes[0].Price)
	}

	one := decimal.NewFromInt(1)
	for _, o := range m.Outcomes[1:] {
		if !o.Price.IsPositive() || o.Price.GreaterThanOrEqual(one) {
			t.Errorf("outcome %s price %s outside (0,1)", o.ID, o.Price)
		}
	}
	if sum := m.PriceSum(); sum.Sub(one).Abs().GreaterThan(d(1e-9)) {
		t.Errorf("prices should sum to 1, got %s", sum)
	}
}

func TestExecute_VolumeMonotonic(t *testing.T) {
	e := newImpactEngine(t)
	prev := decimal.Zero

	for _, intent := range []model.TradeIntent{
		buy("trump", 1_000), buy("trump", 500), sell("trump", 200), buy("trump", 10),
	} {
		if _, _, err := e.Execute(intent); err != nil {
			t.Fatalf("trade rejected: %v", err)
		}
		vol := e.Snapshot().Outcomes[0].Volume
		if vol.LessThan(prev) {
			t.Fatalf("volume decreased: %s → %s", prev, vol)
		}
		prev = vol
	}
}

func TestExecute_PositionNeverNegative(t *testing.T) {
	e := newImpactEngine(t)

	if _, _, err := e.Execute(buy("trump", 1_000)); err != nil {
		t.Fatalf("buy rejected: %v", err)
	}
	// Sell far more notional than the position is worth.
	if _, _, err := e.Execute(sell("trump", 1_000_000)); err != nil {
		t.Fatalf("sell rejected: %v", err)
	}

	pos := e.Snapshot().Outcomes[0].UserPosition
	if pos.IsNegative() {
		t.Errorf("position went negative: %s", pos)
	}
}

func TestExecute_InvalidInputsLeaveMarketUnchanged(t *testing.T) {
	e := newImpactEngine(t)
	if _, _, err := e.Execute(buy("trump", 5_000)); err != nil {
		t.Fatalf("seed trade rejected: %v", err)
	}
	before := e.Snapshot()

	tests := []struct {
		name   string
		intent model.TradeIntent
		want   error
	}{
		{"zero amount", buy("trump", 0), ErrInvalidAmount},
		{"negative amount", buy("trump", -100), ErrInvalidAmount},
		{"unknown outcome", buy("nobody", 100), ErrUnknownOutcome},
		{"sell without position", sell("biden", 100), ErrNoPosition},
		{"bad side", model.TradeIntent{OutcomeID: "trump", Side: "short", Amount: d(100)}, ErrInvalidSide},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := e.Execute(tt.intent)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if !errors.Is(err, ErrInvalidTrade) {
				t.Errorf("%v should match ErrInvalidTrade", err)
			}
			after := e.Snapshot()
			if !reflect.DeepEqual(before, after) {
				t.Error("rejected trade must leave the market unchanged")
			}
		})
	}
}

func TestExecute_ClosedMarketRejected(t *testing.T) {
	m := electionMarket(t)
	m.Status = model.StatusClosed
	e, err := NewEngineForMarket(m, 0)
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}

	if _, _, err := e.Execute(buy("trump", 100)); !errors.Is(err, ErrMarketNotTrading) {
		t.Errorf("expected ErrMarketNotTrading, got %v", err)
	}
}

func TestQuote_Idempotent(t *testing.T) {
	e := newImpactEngine(t)
	intent := buy("biden", 12_345)

	q1, err := e.Quote(intent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	q2, err := e.Quote(intent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(q1, q2) {
		t.Error("identical quotes expected with no intervening execute")
	}
}

func TestExecute_ReturnsCommittedQuote(t *testing.T) {
	e := newImpactEngine(t)

	trade, q, err := e.Execute(buy("trump", 10_000))
	if err != nil {
		t.Fatalf("trade rejected: %v", err)
	}
	if q == nil {
		t.Fatal("execute should return the quote it committed")
	}
	if !q.VolumeDelta.Equal(trade.Amount) {
		t.Errorf("quote volume delta %s should match trade amount %s", q.VolumeDelta, trade.Amount)
	}
	if !q.Price.Equal(trade.Price) {
		t.Errorf("quote price %s should match trade price %s", q.Price, trade.Price)
	}
	if !q.Shares.Equal(trade.Shares) {
		t.Errorf("quote shares %s should match trade shares %s", q.Shares, trade.Shares)
	}
	// The committed vector is the market's new state.
	if !e.Snapshot().Outcomes[0].Price.Equal(q.Prices[0]) {
		t.Error("market price should match the returned quote's vector")
	}
}

func TestExecute_PropagatesDegenerateFlag(t *testing.T) {
	m := &model.Market{
		ID:           "degenerate",
		PricingModel: model.ModelImpact,
		Status:       model.StatusTrading,
		Outcomes: []model.Outcome{
			{ID: "a", Price: d(1)},
			{ID: "b", Price: d(0)},
			{ID: "c", Price: d(0)},
		},
	}
	e, err := NewEngineForMarket(m, 0)
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}

	_, q, err := e.Execute(buy("a", 10_000))
	if err != nil {
		t.Fatalf("trade rejected: %v", err)
	}
	if !q.Degenerate {
		t.Error("uniform-split fallback should be visible on the returned quote")
	}
}

func TestSnapshot_IsolatedFromEngineState(t *testing.T) {
	e := newImpactEngine(t)
	snap := e.Snapshot()
	snap.Outcomes[0].Price = d(0.999)

	if e.Snapshot().Outcomes[0].Price.Equal(d(0.999)) {
		t.Error("mutating a snapshot must not affect the engine")
	}
}

func TestExecute_LMSREngineSumToOne(t *testing.T) {
	m := lmsrMarket(t, 100)
	e, err := NewEngineForMarket(m, 0)
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}
	one := decimal.NewFromInt(1)

	for _, intent := range []model.TradeIntent{
		buy("a", 50), buy("b", 120), sell("a", 30), buy("c", 10),
	} {
		if _, _, err := e.Execute(intent); err != nil {
			t.Fatalf("trade rejected: %v", err)
		}
		snap := e.Snapshot()
		sum := snap.PriceSum()
		if sum.Sub(one).Abs().GreaterThan(d(1e-9)) {
			t.Fatalf("prices sum to %s", sum)
		}
		for _, o := range snap.Outcomes {
			if !o.Price.IsPositive() || o.Price.GreaterThanOrEqual(one) {
				t.Fatalf("outcome %s price %s outside (0,1)", o.ID, o.Price)
			}
		}
	}
}

// --- Trade log ---

func TestTradeLog_MostRecentFirstAndBounded(t *testing.T) {
	m := electionMarket(t)
	e, err := NewEngineForMarket(m, 3)
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}

	amounts := []float64{100, 200, 300, 400, 500}
	for _, a := range amounts {
		if _, _, err := e.Execute(buy("trump", a)); err != nil {
			t.Fatalf("trade rejected: %v", err)
		}
	}

	trades := e.Trades()
	if len(trades) != 3 {
		t.Fatalf("expected log capped at 3, got %d", len(trades))
	}
	// Most recent first: 500, 400, 300.
	for i, want := range []float64{500, 400, 300} {
		if !trades[i].Amount.Equal(d(want)) {
			t.Errorf("trade[%d] amount: want %v, got %s", i, want, trades[i].Amount)
		}
	}
}

func TestTradeLog_DefaultCapacity(t *testing.T) {
	l := NewTradeLog(0)
	for i := 0; i < DefaultLogCapacity+10; i++ {
		l.Append(model.Trade{ID: "t"})
	}
	if l.Len() != DefaultLogCapacity {
		t.Errorf("expected %d records, got %d", DefaultLogCapacity, l.Len())
	}
}

func TestForModel_Unknown(t *testing.T) {
	m := electionMarket(t)
	m.PricingModel = "orderbook"
	if _, err := ForModel(m); !errors.Is(err, ErrUnknownModel) {
		t.Errorf("expected ErrUnknownModel, got %v", err)
	}
}
