package pricing

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openpredict/market-engine/internal/model"
)

// Engine binds one market to a pricing strategy and a bounded trade log.
// Quote is pure; Execute validates the whole trade first and only then
// commits, so a rejected trade leaves the market untouched. Execute is
// serialized by a mutex, which keeps the price-update, renormalization
// and log-append steps indivisible for concurrent callers.
type Engine struct {
	mu       sync.Mutex
	market   *model.Market
	strategy Strategy
	log      *TradeLog
}

// NewEngine creates an engine over the given market and strategy. The
// engine takes ownership of the market value; callers read state through
// Snapshot. logCapacity <= 0 selects DefaultLogCapacity.
func NewEngine(m *model.Market, s Strategy, logCapacity int) *Engine {
	return &Engine{
		market:   m,
		strategy: s,
		log:      NewTradeLog(logCapacity),
	}
}

// NewEngineForMarket creates an engine with the strategy named by the
// market's PricingModel field.
func NewEngineForMarket(m *model.Market, logCapacity int) (*Engine, error) {
	s, err := ForModel(m)
	if err != nil {
		return nil, err
	}
	return NewEngine(m, s, logCapacity), nil
}

// Strategy returns the bound pricing strategy.
func (e *Engine) Strategy() Strategy { return e.strategy }

// Snapshot returns a deep copy of the current market state.
func (e *Engine) Snapshot() *model.Market {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.market.Clone()
}

// Trades returns the trade log, most recent first.
func (e *Engine) Trades() []model.Trade {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.log.All()
}

// validate rejects malformed intents before any pricing happens.
// Decimal amounts are finite by construction; NaN and ±Inf are rejected
// where external input is parsed.
func (e *Engine) validate(intent model.TradeIntent) (int, error) {
	if e.market.Status != model.StatusTrading {
		return 0, ErrMarketNotTrading
	}
	if !intent.Side.Valid() {
		return 0, ErrInvalidSide
	}
	if !intent.Amount.IsPositive() {
		return 0, ErrInvalidAmount
	}
	idx := e.market.OutcomeIndex(intent.OutcomeID)
	if idx < 0 {
		return 0, ErrUnknownOutcome
	}
	return idx, nil
}

// Quote prices an intent without mutating the market. Quoting the same
// intent twice with no intervening Execute returns identical results.
func (e *Engine) Quote(intent model.TradeIntent) (*Quote, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx, err := e.validate(intent)
	if err != nil {
		return nil, err
	}
	return e.strategy.Quote(e.market, idx, intent.Side, intent.Amount)
}

// Execute prices an intent and commits it: prices (and quantities, for
// the LMSR model) are replaced with the quoted vector, volume and the
// session position are updated, and a trade record is appended to the
// log. The quote the trade was priced from is returned alongside the
// record so callers never price the same intent twice. On any rejection
// the market is returned to the caller unchanged.
func (e *Engine) Execute(intent model.TradeIntent) (*model.Trade, *Quote, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx, err := e.validate(intent)
	if err != nil {
		return nil, nil, err
	}

	q, err := e.strategy.Quote(e.market, idx, intent.Side, intent.Amount)
	if err != nil {
		return nil, nil, err
	}

	e.apply(q)

	trade := model.Trade{
		ID:        uuid.New().String(),
		MarketID:  e.market.ID,
		OutcomeID: intent.OutcomeID,
		Side:      intent.Side,
		Amount:    q.VolumeDelta,
		Shares:    q.Shares,
		Price:     q.Price,
		Timestamp: time.Now().UTC(),
	}
	e.log.Append(trade)

	return &trade, q, nil
}

// apply commits a quote to the market state.
func (e *Engine) apply(q *Quote) {
	for i := range e.market.Outcomes {
		e.market.Outcomes[i].Price = q.Prices[i]
		if q.Quantities != nil {
			e.market.Outcomes[i].Quantity = q.Quantities[i]
		}
	}

	out := &e.market.Outcomes[q.OutcomeIndex]
	out.Volume = out.Volume.Add(q.VolumeDelta)
	e.market.TotalVolume = e.market.TotalVolume.Add(q.VolumeDelta)

	if q.Side == model.SideBuy {
		out.UserPosition = out.UserPosition.Add(q.Shares)
	} else {
		out.UserPosition = out.UserPosition.Sub(q.Shares)
		if out.UserPosition.IsNegative() {
			out.UserPosition = decimal.Zero
		}
	}
}
