package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/kalshibot/internal/approval"
	"github.com/alanyoungcy/kalshibot/internal/domain"
	"github.com/alanyoungcy/kalshibot/internal/platform/kalshi"
)

// OrderPlacer is the interface through which the executor submits orders to
// the exchange. It is implemented by the Kalshi REST client.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, ticker string, side domain.Side, contracts, priceCents int) (kalshi.OrderResult, error)
}

var (
	// ErrInsufficientBalance means the exchange refused the order because
	// the account cannot cover its cost. The approval is already consumed.
	ErrInsufficientBalance = errors.New("executor: insufficient balance")

	// ErrOrderFailed covers every other exchange-side order failure. The
	// approval is already consumed.
	ErrOrderFailed = errors.New("executor: order failed")
)

// LatencyObserver receives the duration of each exchange order round trip.
type LatencyObserver interface {
	ObserveOrderLatency(seconds float64)
}

// Executor redeems approvals and places the corresponding orders. The
// approval is consumed before the order goes out, so a trade can never be
// submitted twice no matter how the exchange call ends.
type Executor struct {
	registry *approval.Registry
	placer   OrderPlacer
	latency  LatencyObserver
	now      func() time.Time
	logger   *slog.Logger
}

// NewExecutor wires the approval registry to the order placer.
func NewExecutor(registry *approval.Registry, placer OrderPlacer, logger *slog.Logger) *Executor {
	return &Executor{
		registry: registry,
		placer:   placer,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "executor")),
	}
}

// WithLatencyObserver attaches an order latency observer and returns e.
func (e *Executor) WithLatencyObserver(obs LatencyObserver) *Executor {
	e.latency = obs
	return e
}

// Execute validates and consumes the approval identified by tradeID and
// token, then places the order. Approval failures surface unchanged from the
// registry; order failures are classified as ErrInsufficientBalance or
// ErrOrderFailed. Once consumption succeeds the approval is gone: a failed
// order requires a fresh proposal, never a retry of the same token.
func (e *Executor) Execute(ctx context.Context, tradeID, token string, timestamp int64) (domain.ConfirmedTrade, error) {
	details, err := e.registry.ValidateAndConsume(tradeID, token, timestamp)
	if err != nil {
		return domain.ConfirmedTrade{}, err
	}

	e.logger.Info("approval redeemed, placing order",
		slog.String("trade_id", tradeID),
		slog.String("ticker", details.Ticker),
		slog.String("side", string(details.Side)),
		slog.Int("contracts", details.Contracts))

	started := e.now()
	result, err := e.placer.PlaceOrder(ctx, details.Ticker, details.Side, details.Contracts, details.LimitPriceCents)
	if e.latency != nil {
		e.latency.ObserveOrderLatency(e.now().Sub(started).Seconds())
	}
	if err != nil {
		e.logger.Error("order placement failed",
			slog.String("trade_id", tradeID),
			slog.String("ticker", details.Ticker),
			slog.Any("error", err))
		return domain.ConfirmedTrade{}, classifyOrderError(err)
	}

	fillPrice := result.AvgFillPriceCents
	if fillPrice == 0 {
		// Resting order: report the limit price until fills arrive.
		fillPrice = details.LimitPriceCents
	}

	confirmed := domain.ConfirmedTrade{
		TradeID:        tradeID,
		OrderID:        result.OrderID,
		Ticker:         details.Ticker,
		Side:           details.Side,
		Contracts:      details.Contracts,
		FillPriceCents: fillPrice,
		TotalCost:      details.TotalCost,
		ExecutedAt:     e.now().UTC(),
		Rationale:      details.Rationale,
	}

	e.logger.Info("order placed",
		slog.String("trade_id", tradeID),
		slog.String("order_id", result.OrderID),
		slog.Int("fill_price", fillPrice),
		slog.Int("fill_count", result.FillCount))

	return confirmed, nil
}

// classifyOrderError splits exchange failures into the two externally
// meaningful outcomes using the structured error kind, never error text.
func classifyOrderError(err error) error {
	var apiErr *kalshi.APIError
	if errors.As(err, &apiErr) && apiErr.Kind == kalshi.KindInsufficientBalance {
		return fmt.Errorf("%w: %v", ErrInsufficientBalance, err)
	}
	return fmt.Errorf("%w: %v", ErrOrderFailed, err)
}
