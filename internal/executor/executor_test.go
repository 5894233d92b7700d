package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/kalshibot/internal/approval"
	"github.com/alanyoungcy/kalshibot/internal/domain"
	"github.com/alanyoungcy/kalshibot/internal/platform/kalshi"
)

type fakePlacer struct {
	result kalshi.OrderResult
	err    error
	calls  int

	lastTicker    string
	lastSide      domain.Side
	lastContracts int
	lastPrice     int
}

func (f *fakePlacer) PlaceOrder(_ context.Context, ticker string, side domain.Side, contracts, priceCents int) (kalshi.OrderResult, error) {
	f.calls++
	f.lastTicker = ticker
	f.lastSide = side
	f.lastContracts = contracts
	f.lastPrice = priceCents
	return f.result, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func registerProposal(t *testing.T, reg *approval.Registry) domain.Proposal {
	t.Helper()
	p := domain.Proposal{
		TradeID:         uuid.NewString(),
		Ticker:          "FED-CUT-SEP",
		Title:           "Fed cuts rates in September?",
		Side:            domain.SideYes,
		Contracts:       150,
		LimitPriceCents: 45,
		TotalCost:       67.50,
		Rationale:       "dovish minutes",
		CreatedAt:       time.Now(),
		ExpiresAt:       time.Now().Add(30 * time.Second),
	}
	reg.Register(p)
	return p
}

func TestExecuteSuccess(t *testing.T) {
	reg := approval.NewRegistry(testLogger())
	placer := &fakePlacer{result: kalshi.OrderResult{
		OrderID:           "ord-123",
		FillCount:         150,
		AvgFillPriceCents: 44,
	}}
	exec := NewExecutor(reg, placer, testLogger())

	p := registerProposal(t, reg)
	token := uuid.NewString()

	confirmed, err := exec.Execute(context.Background(), p.TradeID, token, time.Now().Unix())
	require.NoError(t, err)

	assert.Equal(t, p.TradeID, confirmed.TradeID)
	assert.Equal(t, "ord-123", confirmed.OrderID)
	assert.Equal(t, p.Ticker, confirmed.Ticker)
	assert.Equal(t, 150, confirmed.Contracts)
	assert.Equal(t, 44, confirmed.FillPriceCents)
	assert.Equal(t, p.Rationale, confirmed.Rationale)
	assert.False(t, confirmed.ExecutedAt.IsZero())

	assert.Equal(t, 1, placer.calls)
	assert.Equal(t, p.Ticker, placer.lastTicker)
	assert.Equal(t, domain.SideYes, placer.lastSide)
	assert.Equal(t, 150, placer.lastContracts)
	assert.Equal(t, 45, placer.lastPrice)
}

func TestExecuteRestingOrderReportsLimitPrice(t *testing.T) {
	reg := approval.NewRegistry(testLogger())
	placer := &fakePlacer{result: kalshi.OrderResult{OrderID: "ord-rest"}}
	exec := NewExecutor(reg, placer, testLogger())

	p := registerProposal(t, reg)

	confirmed, err := exec.Execute(context.Background(), p.TradeID, uuid.NewString(), time.Now().Unix())
	require.NoError(t, err)
	assert.Equal(t, p.LimitPriceCents, confirmed.FillPriceCents)
}

func TestExecuteApprovalErrorSkipsOrder(t *testing.T) {
	reg := approval.NewRegistry(testLogger())
	placer := &fakePlacer{}
	exec := NewExecutor(reg, placer, testLogger())

	_, err := exec.Execute(context.Background(), uuid.NewString(), uuid.NewString(), time.Now().Unix())
	require.ErrorIs(t, err, approval.ErrTradeNotFound)
	assert.Zero(t, placer.calls)
}

func TestExecuteInsufficientBalance(t *testing.T) {
	reg := approval.NewRegistry(testLogger())
	placer := &fakePlacer{err: &kalshi.APIError{
		Kind:    kalshi.KindInsufficientBalance,
		Status:  400,
		Code:    "insufficient_balance",
		Message: "balance too low",
	}}
	exec := NewExecutor(reg, placer, testLogger())

	p := registerProposal(t, reg)
	token := uuid.NewString()

	_, err := exec.Execute(context.Background(), p.TradeID, token, time.Now().Unix())
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.NotErrorIs(t, err, ErrOrderFailed)

	// The approval was consumed: the same token can never run again.
	_, err = exec.Execute(context.Background(), p.TradeID, token, time.Now().Unix())
	require.ErrorIs(t, err, approval.ErrTokenAlreadyUsed)
	assert.Equal(t, 1, placer.calls)
}

func TestExecuteOrderFailureIsNotRetryable(t *testing.T) {
	reg := approval.NewRegistry(testLogger())
	placer := &fakePlacer{err: &kalshi.APIError{
		Kind:    kalshi.KindMarketClosed,
		Status:  400,
		Code:    "market_closed",
		Message: "market is closed",
	}}
	exec := NewExecutor(reg, placer, testLogger())

	p := registerProposal(t, reg)
	token := uuid.NewString()

	_, err := exec.Execute(context.Background(), p.TradeID, token, time.Now().Unix())
	require.ErrorIs(t, err, ErrOrderFailed)

	// A second attempt must not reach the exchange.
	_, err = exec.Execute(context.Background(), p.TradeID, token, time.Now().Unix())
	require.Error(t, err)
	assert.Equal(t, 1, placer.calls)
}

func TestClassifyOrderError(t *testing.T) {
	wrapped := errors.Join(errors.New("kalshi: place order"), &kalshi.APIError{
		Kind: kalshi.KindInsufficientBalance,
	})
	assert.ErrorIs(t, classifyOrderError(wrapped), ErrInsufficientBalance)

	plain := errors.New("connection reset")
	assert.ErrorIs(t, classifyOrderError(plain), ErrOrderFailed)
}
