package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/kalshibot/internal/approval"
	"github.com/alanyoungcy/kalshibot/internal/domain"
	"github.com/alanyoungcy/kalshibot/internal/executor"
	"github.com/alanyoungcy/kalshibot/internal/proposal"
)

// TradeService defines the workflow methods the trade handler requires.
type TradeService interface {
	Propose(ctx context.Context, req proposal.Request) (domain.Proposal, error)
	Execute(ctx context.Context, tradeID, token string, timestamp int64) (domain.ConfirmedTrade, error)
	Cancel(ctx context.Context, tradeID string) error
	GetProposal(tradeID string) (domain.TradeDetails, error)
	ListExecutions(ctx context.Context, opts domain.ListOpts) ([]domain.ConfirmedTrade, error)
}

// TradeHandler serves the propose / execute / cancel workflow endpoints.
type TradeHandler struct {
	trades TradeService
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler.
func NewTradeHandler(trades TradeService, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{
		trades: trades,
		logger: logHandler(logger, "trade"),
	}
}

// proposeRequest is the JSON body for creating a trade proposal.
type proposeRequest struct {
	Ticker          string  `json:"ticker"`
	Title           string  `json:"title"`
	Side            string  `json:"side"`
	LimitPriceCents int     `json:"limit_price"`
	Conviction      float64 `json:"conviction"`
	Rationale       string  `json:"rationale"`
	NotionalUSD     float64 `json:"notional,omitempty"`
}

// Propose creates a trade proposal awaiting approval.
// POST /api/trades/propose
func (h *TradeHandler) Propose(w http.ResponseWriter, r *http.Request) {
	var req proposeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Ticker == "" {
		writeError(w, http.StatusBadRequest, "missing ticker")
		return
	}

	p, err := h.trades.Propose(r.Context(), proposal.Request{
		Ticker:          req.Ticker,
		Title:           req.Title,
		Side:            domain.Side(req.Side),
		LimitPriceCents: req.LimitPriceCents,
		Conviction:      req.Conviction,
		Rationale:       req.Rationale,
		NotionalUSD:     req.NotionalUSD,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidParameters) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: propose failed",
			slog.String("ticker", req.Ticker),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create proposal")
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

// executeRequest is the JSON body for redeeming an approval token.
type executeRequest struct {
	TradeID       string `json:"trade_id"`
	ApprovalToken string `json:"approval_token"`
	Timestamp     int64  `json:"timestamp"`
}

// Execute redeems an approval token and places the order.
// POST /api/trades/execute
func (h *TradeHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TradeID == "" || req.ApprovalToken == "" {
		writeError(w, http.StatusBadRequest, "missing trade_id or approval_token")
		return
	}

	trade, err := h.trades.Execute(r.Context(), req.TradeID, req.ApprovalToken, req.Timestamp)
	if err != nil {
		h.writeExecuteError(w, r, req.TradeID, err)
		return
	}

	writeJSON(w, http.StatusOK, trade)
}

// writeExecuteError maps workflow failures to HTTP status codes. Replays get
// 409 so clients can distinguish "already done" from "rejected".
func (h *TradeHandler) writeExecuteError(w http.ResponseWriter, r *http.Request, tradeID string, err error) {
	switch {
	case errors.Is(err, approval.ErrTradeNotFound):
		writeError(w, http.StatusNotFound, "trade proposal not found")
	case errors.Is(err, approval.ErrTokenAlreadyUsed):
		writeError(w, http.StatusConflict, "approval token already used")
	case errors.Is(err, approval.ErrProposalExpired), errors.Is(err, approval.ErrTokenExpired):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, approval.ErrInvalidToken):
		writeError(w, http.StatusBadRequest, "approval token format invalid")
	case errors.Is(err, executor.ErrInsufficientBalance):
		writeError(w, http.StatusPaymentRequired, "insufficient balance")
	default:
		h.logger.ErrorContext(r.Context(), "handler: execute failed",
			slog.String("trade_id", tradeID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "order placement failed")
	}
}

// Cancel withdraws a pending proposal.
// DELETE /api/trades/{id}
func (h *TradeHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	tradeID := pathParam(r, "id")
	if tradeID == "" {
		writeError(w, http.StatusBadRequest, "missing trade id")
		return
	}

	if err := h.trades.Cancel(r.Context(), tradeID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "trade proposal not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: cancel failed",
			slog.String("trade_id", tradeID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to cancel proposal")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"trade_id": tradeID,
		"status":   "cancelled",
	})
}

// GetProposal returns a pending proposal without consuming anything.
// GET /api/trades/{id}
func (h *TradeHandler) GetProposal(w http.ResponseWriter, r *http.Request) {
	tradeID := pathParam(r, "id")
	if tradeID == "" {
		writeError(w, http.StatusBadRequest, "missing trade id")
		return
	}

	details, err := h.trades.GetProposal(tradeID)
	if err != nil {
		writeError(w, http.StatusNotFound, "trade proposal not found")
		return
	}

	writeJSON(w, http.StatusOK, details)
}

// ListExecutions returns the confirmed-trade journal, newest first.
// GET /api/trades/executions?limit=50&offset=0
func (h *TradeHandler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	trades, err := h.trades.ListExecutions(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list executions failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list executions")
		return
	}
	if trades == nil {
		trades = []domain.ConfirmedTrade{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"executions": trades,
		"limit":      opts.Limit,
		"offset":     opts.Offset,
	})
}
