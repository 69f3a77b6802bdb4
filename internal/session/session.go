// Package session owns one market for the lifetime of a process: it is
// the single logical owner required for the engine's atomicity model.
// It gates trade submission on the wallet, applies exposure limits, and
// settles executed trades against the wallet balance.
package session

import (
	"log/slog"
	"math/rand"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/openpredict/market-engine/internal/model"
	"github.com/openpredict/market-engine/internal/pricing"
	"github.com/openpredict/market-engine/internal/risk"
	"github.com/openpredict/market-engine/internal/signer"
)

// Session wires an engine to a wallet and a risk limiter.
type Session struct {
	mu           sync.Mutex
	engine       *pricing.Engine
	wallet       *signer.Signer
	limiter      *risk.Limiter
	exposures    map[string]decimal.Decimal // outcome ID → notional cost basis
	participants int
}

// New creates a session over the given engine. The limiter may be nil to
// disable exposure checks.
func New(engine *pricing.Engine, wallet *signer.Signer, limiter *risk.Limiter) *Session {
	return &Session{
		engine:    engine,
		wallet:    wallet,
		limiter:   limiter,
		exposures: make(map[string]decimal.Decimal),
	}
}

// Snapshot returns the current market state, including the participants
// seen by this session.
func (s *Session) Snapshot() *model.Market {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.engine.Snapshot()
	m.Participants += s.participants
	return m
}

// Trades returns the session's trade history, most recent first.
func (s *Session) Trades() []model.Trade {
	return s.engine.Trades()
}

// Quote prices an intent without executing it.
func (s *Session) Quote(intent model.TradeIntent) (*pricing.Quote, error) {
	return s.engine.Quote(intent)
}

// SubmitTrade validates the wallet and exposure limits, executes the
// intent, and settles the cash flow. Rejections leave the market, the
// wallet, and the exposure book unchanged.
func (s *Session) SubmitTrade(intent model.TradeIntent) (*model.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.wallet.IsConnected() {
		return nil, signer.ErrNotConnected
	}

	q, err := s.engine.Quote(intent)
	if err != nil {
		return nil, err
	}

	if intent.Side == model.SideBuy && q.Cost.GreaterThan(s.wallet.Balance()) {
		return nil, signer.ErrInsufficientBalance
	}

	if s.limiter != nil {
		if err := s.limiter.Check(intent.OutcomeID, q.Cost, s.exposures); err != nil {
			return nil, err
		}
	}

	trade, _, err := s.engine.Execute(intent)
	if err != nil {
		return nil, err
	}

	// Settle: positive cost is a debit, negative cost is sale proceeds.
	if q.Cost.IsPositive() {
		if err := s.wallet.Debit(q.Cost); err != nil {
			// The balance was checked above under the session lock;
			// reaching this means the wallet disconnected mid-call.
			slog.Error("settlement failed after execution", "err", err)
			return trade, err
		}
	} else {
		s.wallet.Credit(q.Cost.Neg())
	}

	exp := s.exposures[intent.OutcomeID].Add(q.Cost)
	if exp.IsNegative() {
		exp = decimal.Zero
	}
	s.exposures[intent.OutcomeID] = exp
	s.participants++

	slog.Info("trade submitted",
		"trade_id", trade.ID,
		"outcome", trade.OutcomeID,
		"side", trade.Side,
		"amount", trade.Amount.String(),
		"price", trade.Price.String(),
	)

	return trade, nil
}

// Tick performs one simulated trade through the same SubmitTrade path
// the UI uses, driven by the supplied random source so tests can replay
// it deterministically. Buys dominate; sells are attempted only where a
// position exists.
func (s *Session) Tick(rng *rand.Rand) (*model.Trade, error) {
	m := s.engine.Snapshot()
	out := m.Outcomes[rng.Intn(len(m.Outcomes))]

	side := model.SideBuy
	if rng.Float64() < 0.3 && out.UserPosition.IsPositive() {
		side = model.SideSell
	}

	amount := decimal.NewFromInt(int64(rng.Intn(9990)) + 10)

	return s.SubmitTrade(model.TradeIntent{
		OutcomeID: out.ID,
		Side:      side,
		Amount:    amount,
	})
}
