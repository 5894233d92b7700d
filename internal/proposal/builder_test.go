package proposal

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/kalshibot/internal/approval"
	"github.com/alanyoungcy/kalshibot/internal/domain"
)

func testBuilder(t *testing.T) (*Builder, *approval.Registry) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := approval.NewRegistry(logger, approval.WithTokenTTL(30*time.Second))
	return NewBuilder(reg, 100, logger), reg
}

func TestProposeArithmetic(t *testing.T) {
	b, reg := testBuilder(t)

	p, err := b.Propose(context.Background(), Request{
		Ticker:          "X",
		Title:           "test market",
		Side:            domain.SideYes,
		LimitPriceCents: 45,
		Conviction:      0.75,
		Rationale:       "testing",
		NotionalUSD:     90,
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.45, p.MarketImplied, 1e-9)
	assert.InDelta(t, 0.30, p.Edge, 1e-9)
	assert.Equal(t, 200, p.Contracts) // floor(90 / 0.45)
	assert.InDelta(t, 90.00, p.TotalCost, 1e-9)
	assert.InDelta(t, 110.00, p.MaxProfit, 1e-9) // 200 * (1 - 0.45)
	assert.InDelta(t, 90.00, p.MaxLoss, 1e-9)
	assert.Equal(t, p.TotalCost, p.MaxLoss)
	assert.Len(t, p.TradeID, 36)
	assert.Equal(t, p.CreatedAt.Add(30*time.Second), p.ExpiresAt)

	// The proposal is registered and peekable under its own ID.
	details, ok := reg.Peek(p.TradeID)
	require.True(t, ok)
	assert.Equal(t, p.TradeID, details.TradeID)
	assert.Equal(t, 200, details.Contracts)
}

func TestProposeNoSide(t *testing.T) {
	b, _ := testBuilder(t)

	p, err := b.Propose(context.Background(), Request{
		Ticker:          "X",
		Title:           "test market",
		Side:            domain.SideNo,
		LimitPriceCents: 40,
		Conviction:      0.80,
		Rationale:       "testing",
		NotionalUSD:     60,
	})
	require.NoError(t, err)

	// NO side: implied probability is the complement of the YES price.
	assert.InDelta(t, 0.60, p.MarketImplied, 1e-9)
	assert.InDelta(t, 0.20, p.Edge, 1e-9)
	assert.Equal(t, 150, p.Contracts) // floor(60 / 0.40)
	assert.InDelta(t, 60.00, p.TotalCost, 1e-9)
	assert.InDelta(t, 60.00, p.MaxProfit, 1e-9) // 150 * 0.40
}

func TestProposeSizesWhenNotionalOmitted(t *testing.T) {
	b, _ := testBuilder(t)

	p, err := b.Propose(context.Background(), Request{
		Ticker:          "X",
		Title:           "test market",
		Side:            domain.SideYes,
		LimitPriceCents: 50,
		Conviction:      0.85, // edge 0.35 -> 100 * 0.625 * 1.15 = 71.88
		Rationale:       "testing",
	})
	require.NoError(t, err)

	assert.Equal(t, 143, p.Contracts) // floor(71.88 / 0.50)
	assert.InDelta(t, 71.50, p.TotalCost, 1e-9)
}

func TestProposeCostRecomputedFromContracts(t *testing.T) {
	b, _ := testBuilder(t)

	// 70 / 0.33 = 212.12..., floored to 212 contracts; the cost must come
	// from the whole-contract count, not the requested notional.
	p, err := b.Propose(context.Background(), Request{
		Ticker:          "X",
		Title:           "test market",
		Side:            domain.SideYes,
		LimitPriceCents: 33,
		Conviction:      0.5,
		Rationale:       "testing",
		NotionalUSD:     70,
	})
	require.NoError(t, err)

	assert.Equal(t, 212, p.Contracts)
	assert.InDelta(t, 69.96, p.TotalCost, 1e-9)
	assert.Less(t, p.TotalCost, 70.0)
}

func TestProposeRejections(t *testing.T) {
	b, _ := testBuilder(t)
	ctx := context.Background()

	base := Request{
		Ticker:          "X",
		Title:           "test market",
		Side:            domain.SideYes,
		LimitPriceCents: 45,
		Conviction:      0.75,
		Rationale:       "testing",
		NotionalUSD:     90,
	}

	tests := []struct {
		name   string
		mutate func(*Request)
	}{
		{"price too low", func(r *Request) { r.LimitPriceCents = 0 }},
		{"price too high", func(r *Request) { r.LimitPriceCents = 100 }},
		{"conviction negative", func(r *Request) { r.Conviction = -0.1 }},
		{"conviction above one", func(r *Request) { r.Conviction = 1.1 }},
		{"bad side", func(r *Request) { r.Side = "MAYBE" }},
		{"notional above max", func(r *Request) { r.NotionalUSD = 101 }},
		{"zero contracts", func(r *Request) {
			r.LimitPriceCents = 99
			r.NotionalUSD = 0.50
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)
			_, err := b.Propose(ctx, req)
			assert.ErrorIs(t, err, domain.ErrInvalidParameters)
		})
	}
}
