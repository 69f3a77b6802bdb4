// Package store defines the persistence interface for the market engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing and single-process sessions).
package store

import (
	"context"

	"github.com/openpredict/market-engine/internal/model"
)

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- Market operations ---

	// CreateMarket persists a new market.
	CreateMarket(ctx context.Context, m *model.Market) error

	// GetMarket retrieves a market by its ID.
	GetMarket(ctx context.Context, id string) (*model.Market, error)

	// ListMarkets returns all markets, newest first.
	ListMarkets(ctx context.Context) ([]model.Market, error)

	// UpdateMarketState replaces a market's outcome snapshot and volume
	// after a trade.
	UpdateMarketState(ctx context.Context, m *model.Market) error

	// --- Immutable trade records ---

	// InsertTrade appends an immutable trade record.
	InsertTrade(ctx context.Context, t *model.Trade) error

	// ListTradesByMarket returns up to limit trades for a market, most
	// recent first. limit <= 0 returns all.
	ListTradesByMarket(ctx context.Context, marketID string, limit int) ([]model.Trade, error)
}
