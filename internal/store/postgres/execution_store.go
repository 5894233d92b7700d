package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

// ExecutionStore implements domain.ExecutionStore using PostgreSQL. The
// executions table is append-only; rows are never updated once written.
type ExecutionStore struct {
	pool *pgxpool.Pool
}

// NewExecutionStore creates a new ExecutionStore backed by the given pool.
func NewExecutionStore(pool *pgxpool.Pool) *ExecutionStore {
	return &ExecutionStore{pool: pool}
}

// Insert records a confirmed trade. Inserting the same trade ID twice is an
// error: a trade executes at most once.
func (s *ExecutionStore) Insert(ctx context.Context, t domain.ConfirmedTrade) error {
	const query = `
		INSERT INTO executions (
			trade_id, order_id, ticker, side, contracts,
			fill_price, total_cost, executed_at, rationale
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		t.TradeID, t.OrderID, t.Ticker, string(t.Side), t.Contracts,
		t.FillPriceCents, t.TotalCost, t.ExecutedAt, t.Rationale,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return fmt.Errorf("postgres: insert execution %s: %w", t.TradeID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: insert execution %s: %w", t.TradeID, err)
	}
	return nil
}

const executionCols = `trade_id, order_id, ticker, side, contracts,
	fill_price, total_cost, executed_at, rationale`

func scanExecution(row pgx.Row) (domain.ConfirmedTrade, error) {
	var t domain.ConfirmedTrade
	var side string
	err := row.Scan(
		&t.TradeID, &t.OrderID, &t.Ticker, &side, &t.Contracts,
		&t.FillPriceCents, &t.TotalCost, &t.ExecutedAt, &t.Rationale,
	)
	if err != nil {
		return domain.ConfirmedTrade{}, err
	}
	t.Side = domain.Side(side)
	return t, nil
}

// GetByTradeID retrieves a confirmed trade by its proposal trade ID.
func (s *ExecutionStore) GetByTradeID(ctx context.Context, tradeID string) (domain.ConfirmedTrade, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+executionCols+` FROM executions WHERE trade_id = $1`, tradeID)
	t, err := scanExecution(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.ConfirmedTrade{}, domain.ErrNotFound
		}
		return domain.ConfirmedTrade{}, fmt.Errorf("postgres: get execution %s: %w", tradeID, err)
	}
	return t, nil
}

// ListRecent returns confirmed trades newest first with pagination and
// optional time filtering.
func (s *ExecutionStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.ConfirmedTrade, error) {
	query := `SELECT ` + executionCols + ` FROM executions WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND executed_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND executed_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY executed_at DESC"

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
		return nil, fmt.Errorf("postgres: list executions: %w", err)
	}
	defer rows.Close()

	var trades []domain.ConfirmedTrade
	for rows.Next() {
		var t domain.ConfirmedTrade
		var side string
		if err := rows.Scan(
			&t.TradeID, &t.OrderID, &t.Ticker, &side, &t.Contracts,
			&t.FillPriceCents, &t.TotalCost, &t.ExecutedAt, &t.Rationale,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan execution: %w", err)
		}
		t.Side = domain.Side(side)
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list executions rows: %w", err)
	}
	return trades, nil
}
