// Package pipeline keeps the local market index in sync with the Kalshi API
// and runs the recurring maintenance work around it.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/kalshibot/internal/domain"
	"github.com/alanyoungcy/kalshibot/internal/platform/kalshi"
)

// MarketSyncer persists a batch of markets to the store and cache.
type MarketSyncer interface {
	SyncMarkets(ctx context.Context, markets []domain.Market) error
}

// MarketFetcher retrieves one page of markets from the exchange.
type MarketFetcher interface {
	GetMarkets(ctx context.Context, limit int, cursor, status string) ([]kalshi.Market, string, error)
}

// Pacer throttles exchange calls so the indexer stays inside Kalshi's rate
// limits even when several instances share one API key.
type Pacer interface {
	Wait(ctx context.Context, key string, limit int, window time.Duration) error
}

// Archiver writes market snapshots to cold storage.
type Archiver interface {
	Write(ctx context.Context, markets []domain.Market, ts time.Time) (string, error)
	Prune(ctx context.Context, cutoff time.Time) (int, error)
}

// IndexerConfig holds the tunables for one index pass.
type IndexerConfig struct {
	MarketStatus    string // Kalshi status filter, usually "open"
	PageSize        int
	MaxPages        int
	SnapshotEnabled bool
}

// Indexer walks the exchange's market listing page by page, converts each
// market to the domain model, and hands batches to the syncer. When snapshots
// are enabled a completed pass is also archived as JSONL.
type Indexer struct {
	fetcher  MarketFetcher
	syncer   MarketSyncer
	pacer    Pacer
	archiver Archiver
	cfg      IndexerConfig
	logger   *slog.Logger
}

// NewIndexer creates an Indexer. pacer and archiver may be nil, disabling
// pacing and snapshots respectively.
func NewIndexer(fetcher MarketFetcher, syncer MarketSyncer, pacer Pacer, archiver Archiver, cfg IndexerConfig, logger *slog.Logger) *Indexer {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 200
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 50
	}
	if cfg.MarketStatus == "" {
		cfg.MarketStatus = "open"
	}
	return &Indexer{
		fetcher:  fetcher,
		syncer:   syncer,
		pacer:    pacer,
		archiver: archiver,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "indexer")),
	}
}

// kalshiRateKey is the shared pacer key for exchange reads.
const kalshiRateKey = "kalshi:markets"

// Run executes a single index pass and returns the number of markets synced.
func (ix *Indexer) Run(ctx context.Context) (int, error) {
	started := time.Now()
	cursor := ""
	total := 0
	var snapshot []domain.Market

	for page := 0; page < ix.cfg.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return total, fmt.Errorf("pipeline: index pass cancelled: %w", err)
		}

		if ix.pacer != nil {
			if err := ix.pacer.Wait(ctx, kalshiRateKey, 10, time.Second); err != nil {
				return total, err
			}
		}

		raw, next, err := ix.fetcher.GetMarkets(ctx, ix.cfg.PageSize, cursor, ix.cfg.MarketStatus)
		if err != nil {
			return total, fmt.Errorf("pipeline: fetch markets page %d: %w", page, err)
		}
		if len(raw) == 0 {
			break
		}

		batch := make([]domain.Market, 0, len(raw))
		for _, m := range raw {
			batch = append(batch, m.ToDomain())
		}

		if err := ix.syncer.SyncMarkets(ctx, batch); err != nil {
			return total, fmt.Errorf("pipeline: sync %d markets page %d: %w", len(batch), page, err)
		}

		total += len(batch)
		if ix.cfg.SnapshotEnabled && ix.archiver != nil {
			snapshot = append(snapshot, batch...)
		}

		ix.logger.Debug("indexed market page",
			slog.Int("page", page),
			slog.Int("batch_size", len(batch)),
			slog.Int("total", total))

		if next == "" {
			break
		}
		cursor = next
	}

	if len(snapshot) > 0 {
		path, err := ix.archiver.Write(ctx, snapshot, started)
		if err != nil {
			// The index itself succeeded; a failed snapshot is not fatal.
			ix.logger.Error("snapshot write failed", slog.Any("error", err))
		} else {
			ix.logger.Info("snapshot written", slog.String("path", path))
		}
	}

	ix.logger.Info("index pass complete",
		slog.Int("total", total),
		slog.Duration("elapsed", time.Since(started)))
	return total, nil
}

// RunLoop runs index passes on a repeating interval until the context is
// cancelled. The first pass starts immediately.
func (ix *Indexer) RunLoop(ctx context.Context, interval time.Duration) error {
	if _, err := ix.Run(ctx); err != nil {
		ix.logger.Error("index pass failed", slog.Any("error", err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ix.logger.Info("indexer loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := ix.Run(ctx); err != nil {
				ix.logger.Error("index pass failed", slog.Any("error", err))
			}
		}
	}
}
