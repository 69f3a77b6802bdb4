// Package trade provides the HTTP handlers and business logic for
// creating markets, quoting and executing trades, and reading trade
// history.
//
// All monetary values use shopspring/decimal — never float64 for money.
package trade

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/openpredict/market-engine/internal/catalog"
	"github.com/openpredict/market-engine/internal/metrics"
	"github.com/openpredict/market-engine/internal/model"
	"github.com/openpredict/market-engine/internal/pricing"
	"github.com/openpredict/market-engine/internal/store"
)

// Service handles market operations. Uses a mutex for serialized trade
// execution (single-instance). For horizontal scaling, replace with
// distributed locking or database-level optimistic concurrency.
type Service struct {
	store store.Store
	mu    sync.Mutex
	wsHub *WSHub // optional WebSocket hub for real-time broadcasts
}

// NewService creates a new trade service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, hub *WSHub) *Service {
	return &Service{
		store: st,
		wsHub: hub,
	}
}

// --- Request/Response types ---

// CreateMarketRequest is the JSON body for market creation. Either an
// explicit outcome list or a binary yes_percentage must be supplied; the
// latter expands to a Yes/No pair at creation time.
type CreateMarketRequest struct {
	catalog.Definition
	YesPercentage decimal.Decimal `json:"yes_percentage"`
}

// TradeRequest is the JSON body for quote and execute calls. Amount is a
// notional for the impact model and a share count for the LMSR model.
type TradeRequest struct {
	OutcomeID string          `json:"outcome_id"`
	Side      model.Side      `json:"side"`
	Amount    decimal.Decimal `json:"amount"`
}

// QuoteResponse is the JSON body returned from POST .../quote.
type QuoteResponse struct {
	OutcomeID string                     `json:"outcome_id"`
	Side      model.Side                 `json:"side"`
	Shares    decimal.Decimal            `json:"shares"`
	Cost      decimal.Decimal            `json:"cost"`
	Price     decimal.Decimal            `json:"price"`
	Prices    map[string]decimal.Decimal `json:"prices"`
}

// TradeResponse is the JSON body returned from POST .../trades.
type TradeResponse struct {
	Trade  *model.Trade  `json:"trade"`
	Market *model.Market `json:"market"`
}

// --- HTTP Handlers ---

// CreateMarket handles POST /api/v1/markets
func (s *Service) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req CreateMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var (
		market *model.Market
		err    error
	)
	if len(req.Outcomes) == 0 && req.YesPercentage.IsPositive() {
		market, err = catalog.NewBinaryMarket(
			req.Title, req.Description, req.Category,
			req.EndTime, req.PricingModel, req.YesPercentage,
		)
	} else {
		market, err = catalog.NewMarket(req.Definition)
	}
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.store.CreateMarket(r.Context(), market); err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}

	metrics.ActiveMarkets.Inc()
	slog.Info("market created",
		"id", market.ID,
		"title", market.Title,
		"model", market.PricingModel,
		"outcomes", len(market.Outcomes),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(market)
}

// GetMarket handles GET /api/v1/markets/{marketID}
func (s *Service) GetMarket(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketID")

	market, err := s.store.GetMarket(r.Context(), marketID)
	if err != nil {
		writeError(w, "market not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(market)
}

// GetPrices handles GET /api/v1/markets/{marketID}/prices
func (s *Service) GetPrices(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketID")

	market, err := s.store.GetMarket(r.Context(), marketID)
	if err != nil {
		writeError(w, "market not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(priceVector(market))
}

// QuoteTrade handles POST /api/v1/markets/{marketID}/quote
// Prices a trade without executing it; the market is left unchanged.
func (s *Service) QuoteTrade(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketID")

	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	market, err := s.store.GetMarket(r.Context(), marketID)
	if err != nil {
		writeError(w, "market not found", http.StatusNotFound)
		return
	}

	engine, err := pricing.NewEngineForMarket(market, 0)
	if err != nil {
		writeError(w, "internal error: invalid market configuration", http.StatusInternalServerError)
		return
	}

	q, err := engine.Quote(model.TradeIntent{
		OutcomeID: req.OutcomeID,
		Side:      req.Side,
		Amount:    req.Amount,
	})
	if err != nil {
		writeError(w, err.Error(), tradeErrorStatus(err))
		return
	}

	prices := make(map[string]decimal.Decimal, len(market.Outcomes))
	for i := range market.Outcomes {
		prices[market.Outcomes[i].ID] = q.Prices[i]
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(QuoteResponse{
		OutcomeID: req.OutcomeID,
		Side:      req.Side,
		Shares:    q.Shares,
		Cost:      q.Cost,
		Price:     q.Price,
		Prices:    prices,
	})
}

// ExecuteTrade handles POST /api/v1/markets/{marketID}/trades
// Executes against the market's pricing model, persists the renormalized
// snapshot and the trade record, and broadcasts the new price vector.
func (s *Service) ExecuteTrade(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketID")

	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	start := time.Now()

	// Serialize trade execution.
	s.mu.Lock()
	defer s.mu.Unlock()

	market, err := s.store.GetMarket(ctx, marketID)
	if err != nil {
		writeError(w, "market not found", http.StatusNotFound)
		return
	}

	engine, err := pricing.NewEngineForMarket(market, 0)
	if err != nil {
		writeError(w, "internal error: invalid market configuration", http.StatusInternalServerError)
		return
	}

	intent := model.TradeIntent{
		OutcomeID: req.OutcomeID,
		Side:      req.Side,
		Amount:    req.Amount,
	}

	trade, q, err := engine.Execute(intent)
	if err != nil {
		metrics.TradesRejected.Inc()
		writeError(w, err.Error(), tradeErrorStatus(err))
		return
	}

	updated := engine.Snapshot()
	if err := s.store.UpdateMarketState(ctx, updated); err != nil {
		writeError(w, "failed to update market state", http.StatusInternalServerError)
		return
	}
	if err := s.store.InsertTrade(ctx, trade); err != nil {
		writeError(w, "failed to record trade", http.StatusInternalServerError)
		return
	}

	metrics.TradesTotal.WithLabelValues(string(req.Side), updated.PricingModel).Inc()
	metrics.TradeLatency.WithLabelValues(string(req.Side)).Observe(time.Since(start).Seconds())
	metrics.MarketVolume.WithLabelValues(marketID, string(req.Side)).Add(q.VolumeDelta.InexactFloat64())
	if q.Degenerate {
		metrics.DegenerateRenormalizations.Inc()
	}

	slog.Info("trade executed",
		"trade_id", trade.ID,
		"market", marketID,
		"outcome", req.OutcomeID,
		"side", req.Side,
		"amount", trade.Amount.String(),
		"shares", trade.Shares.String(),
		"price", trade.Price.String(),
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:      "trade_executed",
			MarketID:  marketID,
			OutcomeID: req.OutcomeID,
			Side:      string(req.Side),
			Amount:    trade.Amount.String(),
			Prices:    priceVector(updated),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TradeResponse{
		Trade:  trade,
		Market: updated,
	})
}

// ListMarkets handles GET /api/v1/markets
// Returns all markets, optionally filtered by ?category=<name>.
func (s *Service) ListMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := s.store.ListMarkets(r.Context())
	if err != nil {
		writeError(w, "failed to list markets", http.StatusInternalServerError)
		return
	}
	if markets == nil {
		markets = []model.Market{}
	}

	if category := r.URL.Query().Get("category"); category != "" {
		filtered := []model.Market{}
		for _, m := range markets {
			if m.Category == category {
				filtered = append(filtered, m)
			}
		}
		markets = filtered
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(markets)
}

// GetTradeHistory handles GET /api/v1/markets/{marketID}/trades
// Returns trade records most recent first; ?limit= bounds the page.
func (s *Service) GetTradeHistory(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketID")

	limit := pricing.DefaultLogCapacity
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	trades, err := s.store.ListTradesByMarket(r.Context(), marketID, limit)
	if err != nil {
		writeError(w, "failed to get trade history", http.StatusInternalServerError)
		return
	}
	if trades == nil {
		trades = []model.Trade{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(trades)
}

// priceVector maps outcome IDs to current prices.
func priceVector(m *model.Market) map[string]decimal.Decimal {
	prices := make(map[string]decimal.Decimal, len(m.Outcomes))
	for i := range m.Outcomes {
		prices[m.Outcomes[i].ID] = m.Outcomes[i].Price
	}
	return prices
}

// tradeErrorStatus maps pricing rejections to HTTP status codes.
func tradeErrorStatus(err error) int {
	switch {
	case errors.Is(err, pricing.ErrUnknownOutcome):
		return http.StatusNotFound
	case errors.Is(err, pricing.ErrMarketNotTrading):
		return http.StatusConflict
	case errors.Is(err, pricing.ErrInvalidTrade):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
