package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/kalshibot/internal/service"
)

// ConvictionService turns a free-text statement into a structured intent
// with candidate markets.
type ConvictionService interface {
	Analyze(ctx context.Context, message string) (service.AnalysisResult, error)
}

// ConvictionHandler serves the conviction analysis endpoint.
type ConvictionHandler struct {
	analyzer ConvictionService
	logger   *slog.Logger
}

// NewConvictionHandler creates a ConvictionHandler.
func NewConvictionHandler(analyzer ConvictionService, logger *slog.Logger) *ConvictionHandler {
	return &ConvictionHandler{
		analyzer: analyzer,
		logger:   logHandler(logger, "conviction"),
	}
}

// analyzeRequest is the JSON body for the analysis endpoint.
type analyzeRequest struct {
	Message string `json:"message"`
}

// Analyze extracts the trading intent from a user statement and searches the
// market index for matching markets.
// POST /api/conviction
func (h *ConvictionHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "missing message")
		return
	}

	result, err := h.analyzer.Analyze(r.Context(), req.Message)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: conviction analysis failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "analysis failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
