package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/openpredict/market-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// single-process deployments. Not suitable for production (no persistence).
type MemoryStore struct {
	mu      sync.RWMutex
	markets map[string]*model.Market
	trades  map[string][]model.Trade // market ID → trades, oldest first
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		markets: make(map[string]*model.Market),
		trades:  make(map[string][]model.Trade),
	}
}

func (s *MemoryStore) CreateMarket(_ context.Context, m *model.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.markets[m.ID]; exists {
		return fmt.Errorf("market %s already exists", m.ID)
	}
	s.markets[m.ID] = m.Clone()
	return nil
}

func (s *MemoryStore) GetMarket(_ context.Context, id string) (*model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.markets[id]
	if !ok {
		return nil, fmt.Errorf("market %s not found", id)
	}
	return m.Clone(), nil
}

func (s *MemoryStore) ListMarkets(_ context.Context) ([]model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	markets := make([]model.Market, 0, len(s.markets))
	for _, m := range s.markets {
		markets = append(markets, *m.Clone())
	}
	sort.Slice(markets, func(i, j int) bool {
		return markets[i].CreatedAt.After(markets[j].CreatedAt)
	})
	return markets, nil
}

func (s *MemoryStore) UpdateMarketState(_ context.Context, m *model.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.markets[m.ID]; !ok {
		return fmt.Errorf("market %s not found", m.ID)
	}
	s.markets[m.ID] = m.Clone()
	return nil
}

func (s *MemoryStore) InsertTrade(_ context.Context, t *model.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trades[t.MarketID] = append(s.trades[t.MarketID], *t)
	return nil
}

func (s *MemoryStore) ListTradesByMarket(_ context.Context, marketID string, limit int) ([]model.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.trades[marketID]
	n := len(all)
	if limit <= 0 || limit > n {
		limit = n
	}

	// Stored oldest first; return most recent first.
	result := make([]model.Trade, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		result = append(result, all[i])
	}
	return result, nil
}
