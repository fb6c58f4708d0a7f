package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/thanhpn/alphavn/internal/contracts"
	"github.com/thanhpn/alphavn/internal/pipeline"
	"github.com/thanhpn/alphavn/pkg/logger"
)

// PortfolioHandler serves portfolio optimization requests.
type PortfolioHandler struct {
	pipe   *pipeline.Pipeline
	logger *logger.Logger
}

// NewPortfolioHandler creates a portfolio handler.
func NewPortfolioHandler(pipe *pipeline.Pipeline, log *logger.Logger) *PortfolioHandler {
	return &PortfolioHandler{pipe: pipe, logger: log}
}

type optimizeRequest struct {
	Symbols        []string           `json:"symbols"`
	Date           string             `json:"date,omitempty"`
	CurrentWeights map[string]float64 `json:"current_weights,omitempty"`
}

// Optimize analyzes the requested symbols and returns target weights.
// POST /api/v1/portfolio/optimize
func (h *PortfolioHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Symbols) == 0 {
		respondError(w, http.StatusBadRequest, "symbols is required")
		return
	}

	asOf, err := parseDate(req.Date)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
		return
	}

	ctx := r.Context()
	signals, failures := h.pipe.AnalyzeUniverse(ctx, req.Symbols, asOf)
	if len(signals) == 0 {
		respondError(w, http.StatusUnprocessableEntity, "No symbol produced a usable signal")
		return
	}

	est, err := h.pipe.BuildEstimates(ctx, symbolsOf(signals), asOf, req.CurrentWeights)
	if err != nil {
		h.logger.WithError(err).Error("Estimate construction failed")
		respondError(w, http.StatusInternalServerError, "Estimate construction failed")
		return
	}

	weights, err := h.pipe.Rebalance(ctx, signals, est, asOf)
	if err != nil {
		if errors.Is(err, contracts.ErrInfeasibleConstraints) {
			respondError(w, http.StatusUnprocessableEntity, "Constraints are infeasible for this universe")
			return
		}
		h.logger.WithError(err).Error("Optimization failed")
		respondError(w, http.StatusInternalServerError, "Optimization failed")
		return
	}

	failed := make(map[string]string, len(failures))
	for symbol, ferr := range failures {
		failed[symbol] = ferr.Error()
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"weights":  weights,
		"failures": failed,
	})
}

func symbolsOf(signals []contracts.EnhancedSignal) []string {
	out := make([]string, len(signals))
	for i, sig := range signals {
		out[i] = sig.Base.Symbol
	}
	return out
}
