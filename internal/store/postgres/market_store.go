package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const upsertMarketQuery = `
	INSERT INTO markets (
		ticker, event_ticker, title, subtitle, category,
		status, yes_price, no_price, volume, open_interest,
		close_time, indexed_at
	) VALUES (
		$1, $2, $3, $4, $5,
		$6, $7, $8, $9, $10,
		$11, NOW()
	)
	ON CONFLICT (ticker) DO UPDATE SET
		event_ticker  = EXCLUDED.event_ticker,
		title         = EXCLUDED.title,
		subtitle      = EXCLUDED.subtitle,
		category      = EXCLUDED.category,
		status        = EXCLUDED.status,
		yes_price     = EXCLUDED.yes_price,
		no_price      = EXCLUDED.no_price,
		volume        = EXCLUDED.volume,
		open_interest = EXCLUDED.open_interest,
		close_time    = EXCLUDED.close_time,
		indexed_at    = NOW()`

// Upsert inserts or updates a single market keyed by ticker.
func (s *MarketStore) Upsert(ctx context.Context, m domain.Market) error {
	_, err := s.pool.Exec(ctx, upsertMarketQuery,
		m.Ticker, m.EventTicker, m.Title, m.Subtitle, m.Category,
		m.Status, m.YesPriceCents, m.NoPriceCents, m.Volume, m.OpenInterest,
		m.CloseTime,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert market %s: %w", m.Ticker, err)
	}
	return nil
}

// UpsertBatch inserts or updates multiple markets in a single batch operation.
func (s *MarketStore) UpsertBatch(ctx context.Context, markets []domain.Market) error {
	if len(markets) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, m := range markets {
		batch.Queue(upsertMarketQuery,
			m.Ticker, m.EventTicker, m.Title, m.Subtitle, m.Category,
			m.Status, m.YesPriceCents, m.NoPriceCents, m.Volume, m.OpenInterest,
			m.CloseTime,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range markets {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert market batch item %d: %w", i, err)
		}
	}
	return nil
}

const marketCols = `ticker, event_ticker, title, subtitle, category,
	status, yes_price, no_price, volume, open_interest,
	close_time, indexed_at`

// scanMarket scans a single market row into a domain.Market.
func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	err := row.Scan(
		&m.Ticker, &m.EventTicker, &m.Title, &m.Subtitle, &m.Category,
		&m.Status, &m.YesPriceCents, &m.NoPriceCents, &m.Volume, &m.OpenInterest,
		&m.CloseTime, &m.IndexedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	return m, nil
}

// GetByTicker retrieves a market by its ticker.
func (s *MarketStore) GetByTicker(ctx context.Context, ticker string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE ticker = $1`, ticker)
	m, err := scanMarket(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", ticker, err)
	}
	return m, nil
}

// Search runs a full-text query over open markets' titles and subtitles,
// optionally restricted to a category. Results carry a normalized relevance
// rank and come back best match first.
func (s *MarketStore) Search(ctx context.Context, query, category string, limit int) ([]domain.MarketMatch, error) {
	terms := strings.TrimSpace(query)
	if terms == "" {
		return nil, fmt.Errorf("postgres: search markets: %w", domain.ErrInvalidParameters)
	}
	if limit <= 0 {
		limit = 20
	}

	sql := `SELECT ` + marketCols + `,
		ts_rank(
			to_tsvector('english', title || ' ' || coalesce(subtitle, '')),
			websearch_to_tsquery('english', $1)
		) AS rank
		FROM markets
		WHERE status = 'open'
		AND to_tsvector('english', title || ' ' || coalesce(subtitle, '')) @@
			websearch_to_tsquery('english', $1)`
	args := []any{terms}

	if category != "" {
		sql += ` AND category = $2`
		args = append(args, category)
	}
	sql += fmt.Sprintf(` ORDER BY rank DESC, volume DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: search markets: %w", err)
	}
	defer rows.Close()

	var matches []domain.MarketMatch
	for rows.Next() {
		var m domain.Market
		var rank float64
		if err := rows.Scan(
			&m.Ticker, &m.EventTicker, &m.Title, &m.Subtitle, &m.Category,
			&m.Status, &m.YesPriceCents, &m.NoPriceCents, &m.Volume, &m.OpenInterest,
			&m.CloseTime, &m.IndexedAt, &rank,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan market match: %w", err)
		}
		matches = append(matches, domain.MarketMatch{Market: m, Relevance: normalizeRank(rank)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: search markets rows: %w", err)
	}
	return matches, nil
}

// normalizeRank squashes an unbounded ts_rank score into [0,1].
func normalizeRank(rank float64) float64 {
	if rank < 0 {
		return 0
	}
	return rank / (rank + 1)
}

// ListOpen returns open markets with pagination and optional time filtering
// on indexed_at.
func (s *MarketStore) ListOpen(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets WHERE status = 'open'`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND indexed_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND indexed_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY volume DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		var m domain.Market
		if err := rows.Scan(
			&m.Ticker, &m.EventTicker, &m.Title, &m.Subtitle, &m.Category,
			&m.Status, &m.YesPriceCents, &m.NoPriceCents, &m.Volume, &m.OpenInterest,
			&m.CloseTime, &m.IndexedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan open market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list open markets rows: %w", err)
	}
	return markets, nil
}

// Count returns the total number of markets in the index.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM markets").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return count, nil
}

// DeleteClosed removes markets that are no longer open and were last indexed
// before olderThan, returning the number of rows removed.
func (s *MarketStore) DeleteClosed(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM markets WHERE status <> 'open' AND indexed_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete closed markets: %w", err)
	}
	return tag.RowsAffected(), nil
}
