package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

// MarketService handles market lookup, search, and index sync.
type MarketService struct {
	markets domain.MarketStore
	cache   domain.MarketCache
	logger  *slog.Logger
}

// NewMarketService creates a MarketService with all required dependencies.
func NewMarketService(
	markets domain.MarketStore,
	cache domain.MarketCache,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
		markets: markets,
		cache:   cache,
		logger:  logger,
	}
}

// SyncMarkets upserts a batch of markets into the persistent store and
// refreshes the cache so reads see the new prices immediately.
func (s *MarketService) SyncMarkets(ctx context.Context, markets []domain.Market) error {
	if len(markets) == 0 {
		return nil
	}

	if err := s.markets.UpsertBatch(ctx, markets); err != nil {
		return fmt.Errorf("market_service: upsert batch: %w", err)
	}

	for _, m := range markets {
		if err := s.cache.Set(ctx, m); err != nil {
			s.logger.WarnContext(ctx, "market_service: cache refresh failed",
				slog.String("ticker", m.Ticker),
				slog.String("error", err.Error()),
			)
			// Non-fatal: the cache entry will expire on its own.
		}
	}

	s.logger.InfoContext(ctx, "market_service: synced markets",
		slog.Int("count", len(markets)),
	)

	return nil
}

// GetMarket retrieves a market by ticker, checking the cache first and falling
// back to the persistent store on a cache miss.
func (s *MarketService) GetMarket(ctx context.Context, ticker string) (domain.Market, error) {
	m, err := s.cache.Get(ctx, ticker)
	if err == nil {
		return m, nil
	}

	// Cache miss or error -- fall through to store.
	m, err = s.markets.GetByTicker(ctx, ticker)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get %q: %w", ticker, err)
	}

	// Back-fill cache; log but do not fail on cache write errors.
	if cacheErr := s.cache.Set(ctx, m); cacheErr != nil {
		s.logger.WarnContext(ctx, "market_service: cache set failed",
			slog.String("ticker", ticker),
			slog.String("error", cacheErr.Error()),
		)
	}

	return m, nil
}

// Search finds open markets matching a free-text query, optionally scoped to
// a category.
func (s *MarketService) Search(ctx context.Context, query, category string, limit int) ([]domain.MarketMatch, error) {
	matches, err := s.markets.Search(ctx, query, category, limit)
	if err != nil {
		return nil, fmt.Errorf("market_service: search %q: %w", query, err)
	}
	return matches, nil
}

// SearchByKeywords joins extracted intent keywords into one search query.
func (s *MarketService) SearchByKeywords(ctx context.Context, keywords []string, limit int) ([]domain.MarketMatch, error) {
	query := strings.TrimSpace(strings.Join(keywords, " "))
	if query == "" {
		return nil, fmt.Errorf("market_service: search by keywords: %w", domain.ErrInvalidParameters)
	}
	return s.Search(ctx, query, "", limit)
}

// ListOpen returns open markets directly from the persistent store.
func (s *MarketService) ListOpen(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	markets, err := s.markets.ListOpen(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("market_service: list open: %w", err)
	}
	return markets, nil
}

// Count returns the size of the local market index.
func (s *MarketService) Count(ctx context.Context) (int64, error) {
	count, err := s.markets.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("market_service: count: %w", err)
	}
	return count, nil
}
