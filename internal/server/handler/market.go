package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

// MarketService defines the methods that the market handler requires from the
// service layer. It is declared locally so the handler package does not depend
// on the concrete service implementation.
type MarketService interface {
	GetMarket(ctx context.Context, ticker string) (domain.Market, error)
	Search(ctx context.Context, query, category string, limit int) ([]domain.MarketMatch, error)
	ListOpen(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error)
	Count(ctx context.Context) (int64, error)
}

// MarketHandler serves market index HTTP endpoints.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given service and logger.
func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		logger:  logHandler(logger, "market"),
	}
}

// listMarketsResponse wraps the list endpoint output with metadata.
type listMarketsResponse struct {
	Markets []domain.Market `json:"markets"`
	Total   int64           `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// ListMarkets returns open markets with pagination.
// GET /api/markets?limit=50&offset=0
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	markets, err := h.markets.ListOpen(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list markets failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list markets")
		return
	}

	total, err := h.markets.Count(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: count markets failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to count markets")
		return
	}

	writeJSON(w, http.StatusOK, listMarketsResponse{
		Markets: markets,
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}

// GetMarket returns a single market by ticker.
// GET /api/markets/{ticker}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	ticker := pathParam(r, "ticker")
	if ticker == "" {
		writeError(w, http.StatusBadRequest, "missing market ticker")
		return
	}

	market, err := h.markets.GetMarket(r.Context(), ticker)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get market failed",
			slog.String("ticker", ticker),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get market")
		return
	}

	writeJSON(w, http.StatusOK, market)
}

// searchMarketsResponse wraps search results with the query echoed back.
type searchMarketsResponse struct {
	Query   string               `json:"query"`
	Matches []domain.MarketMatch `json:"matches"`
}

// SearchMarkets runs a full-text search over the local market index.
// GET /api/markets/search?q=fed+rate+cut&category=Economics&limit=20
func (h *MarketHandler) SearchMarkets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}

	opts := parseListOpts(r)
	matches, err := h.markets.Search(r.Context(), query, q.Get("category"), opts.Limit)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidParameters) {
			writeError(w, http.StatusBadRequest, "invalid search query")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: search markets failed",
			slog.String("query", query),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	writeJSON(w, http.StatusOK, searchMarketsResponse{
		Query:   query,
		Matches: matches,
	})
}
