package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

// BalanceProvider exposes the exchange-side account state.
type BalanceProvider interface {
	GetBalance(ctx context.Context) (float64, error)
	GetPositions(ctx context.Context) ([]domain.Position, error)
}

// PortfolioService reports the account balance and open positions marked
// against the local market index.
type PortfolioService struct {
	exchange BalanceProvider
	markets  *MarketService
	logger   *slog.Logger
}

// NewPortfolioService creates a PortfolioService.
func NewPortfolioService(exchange BalanceProvider, markets *MarketService, logger *slog.Logger) *PortfolioService {
	return &PortfolioService{
		exchange: exchange,
		markets:  markets,
		logger:   logger,
	}
}

// GetBalance returns the available account balance in USD.
func (s *PortfolioService) GetBalance(ctx context.Context) (float64, error) {
	balance, err := s.exchange.GetBalance(ctx)
	if err != nil {
		return 0, fmt.Errorf("portfolio_service: get balance: %w", err)
	}
	return balance, nil
}

// GetPortfolio returns every open position with its unrealized profit and
// loss marked against the current price from the market index. Positions in
// markets missing from the index keep their entry price as the mark.
func (s *PortfolioService) GetPortfolio(ctx context.Context) (domain.Portfolio, error) {
	positions, err := s.exchange.GetPositions(ctx)
	if err != nil {
		return domain.Portfolio{}, fmt.Errorf("portfolio_service: get positions: %w", err)
	}

	portfolio := domain.Portfolio{Positions: make([]domain.Position, 0, len(positions))}
	for _, pos := range positions {
		marked := s.mark(ctx, pos)
		portfolio.Positions = append(portfolio.Positions, marked)
		portfolio.TotalValue += marked.CurrentValue
		portfolio.TotalPnL += marked.UnrealizedPnL
	}

	portfolio.TotalValue = round2(portfolio.TotalValue)
	portfolio.TotalPnL = round2(portfolio.TotalPnL)

	return portfolio, nil
}

// mark fills in the current price, value, and unrealized PnL for one
// position.
func (s *PortfolioService) mark(ctx context.Context, pos domain.Position) domain.Position {
	current := pos.AvgPriceCents

	m, err := s.markets.GetMarket(ctx, pos.Ticker)
	if err != nil {
		s.logger.WarnContext(ctx, "portfolio_service: market not indexed, marking at entry price",
			slog.String("ticker", pos.Ticker),
		)
	} else {
		switch pos.Side {
		case domain.SideNo:
			current = m.NoPriceCents
		default:
			current = m.YesPriceCents
		}
		if pos.Title == "" {
			pos.Title = m.Title
		}
	}

	pos.CurrentPriceCents = current
	pos.CurrentValue = round2(float64(pos.Contracts) * float64(current) / 100.0)
	pos.UnrealizedPnL = round2(float64(pos.Contracts) * float64(current-pos.AvgPriceCents) / 100.0)

	return pos
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
