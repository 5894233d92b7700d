package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/kalshibot/internal/approval"
	"github.com/alanyoungcy/kalshibot/internal/domain"
	"github.com/alanyoungcy/kalshibot/internal/executor"
	"github.com/alanyoungcy/kalshibot/internal/proposal"
)

// tradesChannel is the pub/sub channel workflow events are published on.
const tradesChannel = "trades"

// Notifier pushes a human-readable message for a workflow event.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// IntentExtractor turns a free-text statement into a structured trading
// intent.
type IntentExtractor interface {
	ExtractIntent(ctx context.Context, message string) (domain.Intent, error)
}

// MetricsRecorder receives workflow counters. A nil recorder disables
// instrumentation.
type MetricsRecorder interface {
	ProposalCreated(side string)
	ExecutionSucceeded()
	ExecutionFailed()
	ReplayBlocked()
}

// TradeService orchestrates the propose / approve / execute workflow. Every
// state change is journaled to the audit log, published on the signal bus,
// and pushed through the notifier; failures of those side channels never
// fail the workflow itself.
type TradeService struct {
	builder    *proposal.Builder
	registry   *approval.Registry
	exec       *executor.Executor
	executions domain.ExecutionStore
	audit      domain.AuditStore
	bus        domain.SignalBus
	notifier   Notifier
	metrics    MetricsRecorder
	extractor  IntentExtractor
	markets    *MarketService
	logger     *slog.Logger
}

// NewTradeService creates a TradeService. audit, bus, and notifier may be nil
// when the corresponding backend is not configured.
func NewTradeService(
	builder *proposal.Builder,
	registry *approval.Registry,
	exec *executor.Executor,
	executions domain.ExecutionStore,
	audit domain.AuditStore,
	bus domain.SignalBus,
	notifier Notifier,
	logger *slog.Logger,
) *TradeService {
	return &TradeService{
		builder:    builder,
		registry:   registry,
		exec:       exec,
		executions: executions,
		audit:      audit,
		bus:        bus,
		notifier:   notifier,
		logger:     logger,
	}
}

// WithMetrics attaches a metrics recorder and returns s for chaining.
func (s *TradeService) WithMetrics(m MetricsRecorder) *TradeService {
	s.metrics = m
	return s
}

// WithAnalyzer enables the Analyze operation by attaching an intent
// extractor and the market index to search for candidates.
func (s *TradeService) WithAnalyzer(extractor IntentExtractor, markets *MarketService) *TradeService {
	s.extractor = extractor
	s.markets = markets
	return s
}

// AnalysisResult pairs an extracted intent with the markets that match its
// keywords, giving the caller everything needed to build a proposal.
type AnalysisResult struct {
	Intent  domain.Intent        `json:"intent"`
	Markets []domain.MarketMatch `json:"markets,omitempty"`
}

// Propose builds and registers a trade proposal from req.
func (s *TradeService) Propose(ctx context.Context, req proposal.Request) (domain.Proposal, error) {
	p, err := s.builder.Propose(ctx, req)
	if err != nil {
		return domain.Proposal{}, err
	}

	if s.metrics != nil {
		s.metrics.ProposalCreated(string(p.Side))
	}
	s.record(ctx, "trade_proposed", map[string]any{
		"trade_id":   p.TradeID,
		"ticker":     p.Ticker,
		"side":       string(p.Side),
		"contracts":  p.Contracts,
		"total_cost": p.TotalCost,
		"edge":       p.Edge,
	})
	s.publish(ctx, "trade_proposed", p)
	s.notify(ctx, "trade_proposed", "Trade proposal",
		fmt.Sprintf("%s %s: %d contracts @ %dc ($%.2f) awaiting approval",
			p.Side, p.Ticker, p.Contracts, p.LimitPriceCents, p.TotalCost))

	return p, nil
}

// Execute redeems an approval token and places the order, journaling the
// confirmed trade on success. Journal failures are logged but do not undo
// the execution; the order is already on the exchange.
func (s *TradeService) Execute(ctx context.Context, tradeID, token string, timestamp int64) (domain.ConfirmedTrade, error) {
	trade, err := s.exec.Execute(ctx, tradeID, token, timestamp)
	if err != nil {
		s.recordExecutionFailure(ctx, tradeID, err)
		return domain.ConfirmedTrade{}, err
	}

	if s.metrics != nil {
		s.metrics.ExecutionSucceeded()
	}
	if s.executions != nil {
		if insErr := s.executions.Insert(ctx, trade); insErr != nil {
			s.logger.ErrorContext(ctx, "trade_service: execution journal insert failed",
				slog.String("trade_id", trade.TradeID),
				slog.String("order_id", trade.OrderID),
				slog.String("error", insErr.Error()),
			)
		}
	}

	s.record(ctx, "trade_executed", map[string]any{
		"trade_id":   trade.TradeID,
		"order_id":   trade.OrderID,
		"ticker":     trade.Ticker,
		"side":       string(trade.Side),
		"contracts":  trade.Contracts,
		"fill_price": trade.FillPriceCents,
		"total_cost": trade.TotalCost,
	})
	s.publish(ctx, "trade_executed", trade)
	s.notify(ctx, "trade_executed", "Trade executed",
		fmt.Sprintf("%s %s: %d contracts filled @ %dc (order %s)",
			trade.Side, trade.Ticker, trade.Contracts, trade.FillPriceCents, trade.OrderID))

	return trade, nil
}

// Cancel withdraws a pending proposal. Returns domain.ErrNotFound when no
// pending proposal exists under the trade ID.
func (s *TradeService) Cancel(ctx context.Context, tradeID string) error {
	if !s.registry.Cancel(tradeID) {
		return fmt.Errorf("trade_service: cancel %q: %w", tradeID, domain.ErrNotFound)
	}

	s.record(ctx, "trade_cancelled", map[string]any{"trade_id": tradeID})
	s.publish(ctx, "trade_cancelled", map[string]string{"trade_id": tradeID})
	s.notify(ctx, "trade_cancelled", "Proposal cancelled",
		fmt.Sprintf("proposal %s was withdrawn before execution", tradeID))

	return nil
}

// GetProposal returns the pending proposal under tradeID without consuming
// anything.
func (s *TradeService) GetProposal(tradeID string) (domain.TradeDetails, error) {
	details, ok := s.registry.Peek(tradeID)
	if !ok {
		return domain.TradeDetails{}, fmt.Errorf("trade_service: get proposal %q: %w", tradeID, domain.ErrNotFound)
	}
	return details, nil
}

// ListExecutions returns the confirmed-trade journal, newest first.
func (s *TradeService) ListExecutions(ctx context.Context, opts domain.ListOpts) ([]domain.ConfirmedTrade, error) {
	if s.executions == nil {
		return nil, nil
	}
	trades, err := s.executions.ListRecent(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("trade_service: list executions: %w", err)
	}
	return trades, nil
}

// Analyze extracts the trading intent from a free-text message and, when one
// is present, searches the local market index for candidate markets. It
// requires WithAnalyzer to have been called.
func (s *TradeService) Analyze(ctx context.Context, message string) (AnalysisResult, error) {
	if s.extractor == nil {
		return AnalysisResult{}, fmt.Errorf("trade_service: analyze: intent extraction not configured")
	}

	intent, err := s.extractor.ExtractIntent(ctx, message)
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("trade_service: analyze: %w", err)
	}

	result := AnalysisResult{Intent: intent}
	if !intent.HasTradingIntent || len(intent.Keywords) == 0 || s.markets == nil {
		return result, nil
	}

	matches, err := s.markets.SearchByKeywords(ctx, intent.Keywords, 10)
	if err != nil {
		// Intent extraction succeeded; return it even when the index
		// lookup fails.
		s.logger.WarnContext(ctx, "trade_service: market search failed",
			slog.String("topic", intent.Topic),
			slog.String("error", err.Error()),
		)
		return result, nil
	}
	result.Markets = matches

	return result, nil
}

// recordExecutionFailure journals a failed redemption or order, choosing the
// replay_blocked event when the failure was a spent token.
func (s *TradeService) recordExecutionFailure(ctx context.Context, tradeID string, err error) {
	event := "execution_failed"
	if errors.Is(err, approval.ErrTokenAlreadyUsed) {
		event = "replay_blocked"
	}

	if s.metrics != nil {
		s.metrics.ExecutionFailed()
		if event == "replay_blocked" {
			s.metrics.ReplayBlocked()
		}
	}

	s.record(ctx, event, map[string]any{
		"trade_id": tradeID,
		"error":    err.Error(),
	})
	s.notify(ctx, "execution_failed", "Execution failed",
		fmt.Sprintf("trade %s: %v", tradeID, err))
}

func (s *TradeService) record(ctx context.Context, event string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "trade_service: audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (s *TradeService) publish(ctx context.Context, event string, payload any) {
	if s.bus == nil {
		return
	}
	msg, err := json.Marshal(map[string]any{"event": event, "data": payload})
	if err != nil {
		s.logger.WarnContext(ctx, "trade_service: event marshal failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := s.bus.Publish(ctx, tradesChannel, msg); err != nil {
		s.logger.WarnContext(ctx, "trade_service: event publish failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (s *TradeService) notify(ctx context.Context, event, title, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event, title, message); err != nil {
		s.logger.WarnContext(ctx, "trade_service: notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
