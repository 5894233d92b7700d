package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

// PortfolioService defines the account methods the portfolio handler needs.
type PortfolioService interface {
	GetBalance(ctx context.Context) (float64, error)
	GetPortfolio(ctx context.Context) (domain.Portfolio, error)
}

// PortfolioHandler serves account balance and position endpoints.
type PortfolioHandler struct {
	portfolio PortfolioService
	logger    *slog.Logger
}

// NewPortfolioHandler creates a PortfolioHandler.
func NewPortfolioHandler(portfolio PortfolioService, logger *slog.Logger) *PortfolioHandler {
	return &PortfolioHandler{
		portfolio: portfolio,
		logger:    logHandler(logger, "portfolio"),
	}
}

// GetBalance returns the available account balance.
// GET /api/balance
func (h *PortfolioHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.portfolio.GetBalance(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: get balance failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "failed to fetch balance")
		return
	}

	writeJSON(w, http.StatusOK, map[string]float64{"balance": balance})
}

// GetPortfolio returns open positions marked against current prices.
// GET /api/portfolio
func (h *PortfolioHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	portfolio, err := h.portfolio.GetPortfolio(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: get portfolio failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "failed to fetch portfolio")
		return
	}

	writeJSON(w, http.StatusOK, portfolio)
}
