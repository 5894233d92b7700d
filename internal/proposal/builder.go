// Package proposal validates trade requests and turns them into immutable,
// registry-backed proposals. Nothing here touches the exchange; a proposal
// is a quote for human review, not an order.
package proposal

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/kalshibot/internal/approval"
	"github.com/alanyoungcy/kalshibot/internal/domain"
	"github.com/alanyoungcy/kalshibot/internal/sizing"
)

// Request carries the parameters for a new trade proposal. NotionalUSD is
// optional; when zero the sizing engine recommends one from the conviction
// and edge.
type Request struct {
	Ticker          string
	Title           string
	Side            domain.Side
	LimitPriceCents int
	Conviction      float64
	Rationale       string
	NotionalUSD     float64
}

// Builder produces proposals and registers them for approval.
type Builder struct {
	registry    *approval.Registry
	maxNotional float64
	now         func() time.Time
	logger      *slog.Logger
}

// NewBuilder creates a Builder. maxNotional caps the size of any single
// trade in USD.
func NewBuilder(registry *approval.Registry, maxNotional float64, logger *slog.Logger) *Builder {
	return &Builder{
		registry:    registry,
		maxNotional: maxNotional,
		now:         time.Now,
		logger:      logger.With(slog.String("component", "proposal")),
	}
}

// Propose validates req, sizes the position, computes the contract count and
// profit/loss bounds, registers the proposal with the approval registry, and
// returns it. All validation failures wrap domain.ErrInvalidParameters and
// are fully recoverable by resubmitting a corrected request.
func (b *Builder) Propose(ctx context.Context, req Request) (domain.Proposal, error) {
	if req.LimitPriceCents < 1 || req.LimitPriceCents > 99 {
		return domain.Proposal{}, fmt.Errorf("%w: limit price must be 1-99 cents, got %d",
			domain.ErrInvalidParameters, req.LimitPriceCents)
	}
	if req.Conviction < 0 || req.Conviction > 1 {
		return domain.Proposal{}, fmt.Errorf("%w: conviction must be 0.0-1.0, got %.2f",
			domain.ErrInvalidParameters, req.Conviction)
	}
	if !req.Side.Valid() {
		return domain.Proposal{}, fmt.Errorf("%w: side must be YES or NO, got %q",
			domain.ErrInvalidParameters, req.Side)
	}

	// The price of the YES contract is the market's probability for the
	// event; the NO side gets the complement.
	marketImplied := float64(req.LimitPriceCents) / 100.0
	if req.Side == domain.SideNo {
		marketImplied = 1.0 - marketImplied
	}
	edge := req.Conviction - marketImplied

	notional := req.NotionalUSD
	if notional == 0 {
		notional = sizing.Recommend(req.Conviction, edge, b.maxNotional)
	}
	if notional > b.maxNotional {
		return domain.Proposal{}, fmt.Errorf("%w: notional $%.2f exceeds max $%.2f",
			domain.ErrInvalidParameters, notional, b.maxNotional)
	}

	pricePerContract := float64(req.LimitPriceCents) / 100.0
	contracts := int(math.Floor(notional / pricePerContract))
	if contracts < 1 {
		return domain.Proposal{}, fmt.Errorf("%w: $%.2f at %dc buys 0 contracts, minimum is 1",
			domain.ErrInvalidParameters, notional, req.LimitPriceCents)
	}

	// Recompute the exact cost from the whole-contract count so the figure
	// shown for approval is what the order would actually cost.
	totalCost := float64(contracts) * pricePerContract

	// Each contract pays $1 on the favorable outcome. A YES holder paid
	// price and receives 1; a NO holder paid (1-price) and receives 1,
	// which nets to price per contract.
	var maxProfit float64
	if req.Side == domain.SideYes {
		maxProfit = float64(contracts) * (1.0 - pricePerContract)
	} else {
		maxProfit = float64(contracts) * pricePerContract
	}

	now := b.now().UTC()
	p := domain.Proposal{
		TradeID:         uuid.NewString(),
		Ticker:          req.Ticker,
		Title:           req.Title,
		Side:            req.Side,
		Contracts:       contracts,
		LimitPriceCents: req.LimitPriceCents,
		TotalCost:       round2(totalCost),
		MaxProfit:       round2(maxProfit),
		MaxLoss:         round2(totalCost), // the premium paid is the most that can be lost
		Conviction:      req.Conviction,
		MarketImplied:   round4(marketImplied),
		Edge:            round4(edge),
		Rationale:       req.Rationale,
		CreatedAt:       now,
		ExpiresAt:       now.Add(b.registry.TokenTTL()),
	}

	b.registry.Register(p)

	b.logger.InfoContext(ctx, "proposal created",
		slog.String("trade_id", p.TradeID),
		slog.String("ticker", p.Ticker),
		slog.String("side", string(p.Side)),
		slog.Int("contracts", p.Contracts),
		slog.Float64("total_cost", p.TotalCost),
		slog.Float64("edge", p.Edge),
	)

	return p, nil
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
