package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/openpredict/market-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Monetary values are stored as NUMERIC for exact decimal precision; the
// outcome snapshot is stored as JSONB since it is always read and written
// as a unit.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CreateMarket(ctx context.Context, m *model.Market) error {
	outcomes, err := json.Marshal(m.Outcomes)
	if err != nil {
		return fmt.Errorf("marshal outcomes: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO markets (id, title, description, category, outcomes, pricing_model, b, status, end_time, total_volume, participants, created_at)
		 VALUES ($1, $2, $3, $4, $5::JSONB, $6, $7::NUMERIC, $8, $9, $10::NUMERIC, $11, $12)`,
		m.ID, m.Title, m.Description, m.Category, outcomes,
		m.PricingModel, m.B.String(), m.Status, m.EndTime,
		m.TotalVolume.String(), m.Participants, m.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetMarket(ctx context.Context, id string) (*model.Market, error) {
	var m model.Market
	var outcomes []byte
	var b, totalVolume string

	err := s.pool.QueryRow(ctx,
		`SELECT id, title, description, category, outcomes,
		        pricing_model, b::TEXT, status, end_time,
		        total_volume::TEXT, participants, created_at
		 FROM markets WHERE id = $1`, id).
		Scan(&m.ID, &m.Title, &m.Description, &m.Category, &outcomes,
			&m.PricingModel, &b, &m.Status, &m.EndTime,
			&totalVolume, &m.Participants, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get market %s: %w", id, err)
	}

	if err := json.Unmarshal(outcomes, &m.Outcomes); err != nil {
		return nil, fmt.Errorf("unmarshal outcomes for market %s: %w", id, err)
	}
	m.B, _ = decimal.NewFromString(b)
	m.TotalVolume, _ = decimal.NewFromString(totalVolume)

	return &m, nil
}

func (s *PostgresStore) ListMarkets(ctx context.Context) ([]model.Market, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, description, category, outcomes,
		        pricing_model, b::TEXT, status, end_time,
		        total_volume::TEXT, participants, created_at
		 FROM markets ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var markets []model.Market
	for rows.Next() {
		var m model.Market
		var outcomes []byte
		var b, totalVolume string

		if err := rows.Scan(&m.ID, &m.Title, &m.Description, &m.Category, &outcomes,
			&m.PricingModel, &b, &m.Status, &m.EndTime,
			&totalVolume, &m.Participants, &m.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(outcomes, &m.Outcomes); err != nil {
			return nil, fmt.Errorf("unmarshal outcomes for market %s: %w", m.ID, err)
		}
		m.B, _ = decimal.NewFromString(b)
		m.TotalVolume, _ = decimal.NewFromString(totalVolume)
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

func (s *PostgresStore) UpdateMarketState(ctx context.Context, m *model.Market) error {
	outcomes, err := json.Marshal(m.Outcomes)
	if err != nil {
		return fmt.Errorf("marshal outcomes: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE markets
		 SET outcomes = $2::JSONB,
		     total_volume = $3::NUMERIC,
		     participants = $4,
		     status = $5
		 WHERE id = $1`,
		m.ID, outcomes, m.TotalVolume.String(), m.Participants, m.Status,
	)
	return err
}

func (s *PostgresStore) InsertTrade(ctx context.Context, t *model.Trade) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO trades (id, market_id, outcome_id, side, amount, shares, price, timestamp)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8)`,
		t.ID, t.MarketID, t.OutcomeID, string(t.Side),
		t.Amount.String(), t.Shares.String(), t.Price.String(),
		t.Timestamp,
	)
	return err
}

func (s *PostgresStore) ListTradesByMarket(ctx context.Context, marketID string, limit int) ([]model.Trade, error) {
	query := `SELECT id, market_id, outcome_id, side,
	                 amount::TEXT, shares::TEXT, price::TEXT, timestamp
	          FROM trades WHERE market_id = $1 ORDER BY timestamp DESC`
	args := []any{marketID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []model.Trade
	for rows.Next() {
		var t model.Trade
		var side, amount, shares, price string

		if err := rows.Scan(&t.ID, &t.MarketID, &t.OutcomeID, &side,
			&amount, &shares, &price, &t.Timestamp); err != nil {
			return nil, err
		}
		t.Side = model.Side(side)
		t.Amount, _ = decimal.NewFromString(amount)
		t.Shares, _ = decimal.NewFromString(shares)
		t.Price, _ = decimal.NewFromString(price)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}
