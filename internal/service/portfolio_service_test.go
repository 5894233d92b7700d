package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

type fakeExchange struct {
	balance   float64
	positions []domain.Position
	err       error
}

func (f *fakeExchange) GetBalance(_ context.Context) (float64, error) {
	return f.balance, f.err
}

func (f *fakeExchange) GetPositions(_ context.Context) ([]domain.Position, error) {
	return f.positions, f.err
}

type stubMarketStore struct {
	fakeMarketStore
	markets map[string]domain.Market
}

func (s *stubMarketStore) GetByTicker(_ context.Context, ticker string) (domain.Market, error) {
	m, ok := s.markets[ticker]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func TestGetPortfolioMarksAgainstIndex(t *testing.T) {
	exchange := &fakeExchange{positions: []domain.Position{
		{Ticker: "FED-CUT-SEP", Side: domain.SideYes, Contracts: 100, AvgPriceCents: 45},
		{Ticker: "BTC-100K", Side: domain.SideNo, Contracts: 50, AvgPriceCents: 60},
	}}
	store := &stubMarketStore{markets: map[string]domain.Market{
		"FED-CUT-SEP": {Ticker: "FED-CUT-SEP", Title: "Fed cuts rates?", YesPriceCents: 55, NoPriceCents: 45},
		"BTC-100K":    {Ticker: "BTC-100K", Title: "BTC above 100k?", YesPriceCents: 48, NoPriceCents: 52},
	}}
	markets := NewMarketService(store, noopCache{}, testLogger())
	svc := NewPortfolioService(exchange, markets, testLogger())

	portfolio, err := svc.GetPortfolio(context.Background())
	require.NoError(t, err)
	require.Len(t, portfolio.Positions, 2)

	yes := portfolio.Positions[0]
	assert.Equal(t, 55, yes.CurrentPriceCents)
	assert.InDelta(t, 55.0, yes.CurrentValue, 0.001)
	assert.InDelta(t, 10.0, yes.UnrealizedPnL, 0.001) // (55-45)*100/100

	no := portfolio.Positions[1]
	assert.Equal(t, 52, no.CurrentPriceCents)
	assert.InDelta(t, 26.0, no.CurrentValue, 0.001)
	assert.InDelta(t, -4.0, no.UnrealizedPnL, 0.001) // (52-60)*50/100

	assert.InDelta(t, 81.0, portfolio.TotalValue, 0.001)
	assert.InDelta(t, 6.0, portfolio.TotalPnL, 0.001)
}

func TestGetPortfolioUnindexedMarketMarksAtEntry(t *testing.T) {
	exchange := &fakeExchange{positions: []domain.Position{
		{Ticker: "UNKNOWN-MKT", Side: domain.SideYes, Contracts: 10, AvgPriceCents: 30},
	}}
	markets := NewMarketService(&fakeMarketStore{}, noopCache{}, testLogger())
	svc := NewPortfolioService(exchange, markets, testLogger())

	portfolio, err := svc.GetPortfolio(context.Background())
	require.NoError(t, err)
	require.Len(t, portfolio.Positions, 1)

	pos := portfolio.Positions[0]
	assert.Equal(t, 30, pos.CurrentPriceCents)
	assert.InDelta(t, 3.0, pos.CurrentValue, 0.001)
	assert.Zero(t, pos.UnrealizedPnL)
}

func TestGetBalance(t *testing.T) {
	exchange := &fakeExchange{balance: 1234.56}
	svc := NewPortfolioService(exchange, nil, testLogger())

	balance, err := svc.GetBalance(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 1234.56, balance, 0.001)
}
