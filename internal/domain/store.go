package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// MarketStore persists the local market index.
type MarketStore interface {
	Upsert(ctx context.Context, market Market) error
	UpsertBatch(ctx context.Context, markets []Market) error
	GetByTicker(ctx context.Context, ticker string) (Market, error)
	Search(ctx context.Context, query string, category string, limit int) ([]MarketMatch, error)
	ListOpen(ctx context.Context, opts ListOpts) ([]Market, error)
	Count(ctx context.Context) (int64, error)
	DeleteClosed(ctx context.Context, olderThan time.Time) (int64, error)
}

// ExecutionStore persists the confirmed-trade journal. Entries are append-only;
// a ConfirmedTrade is never updated after insertion.
type ExecutionStore interface {
	Insert(ctx context.Context, trade ConfirmedTrade) error
	GetByTradeID(ctx context.Context, tradeID string) (ConfirmedTrade, error)
	ListRecent(ctx context.Context, opts ListOpts) ([]ConfirmedTrade, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log of the approval workflow
// (proposals, redemptions, replays blocked, cancellations, order outcomes).
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
