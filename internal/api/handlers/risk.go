package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/thanhpn/alphavn/internal/contracts"
	"github.com/thanhpn/alphavn/internal/pipeline"
	"github.com/thanhpn/alphavn/pkg/logger"
)

// RiskHandler serves position sizing and portfolio risk checks.
type RiskHandler struct {
	pipe   *pipeline.Pipeline
	logger *logger.Logger
}

// NewRiskHandler creates a risk handler.
func NewRiskHandler(pipe *pipeline.Pipeline, log *logger.Logger) *RiskHandler {
	return &RiskHandler{pipe: pipe, logger: log}
}

type sizeRequest struct {
	Symbol string                    `json:"symbol"`
	Date   string                    `json:"date,omitempty"`
	State  *contracts.PortfolioState `json:"state,omitempty"`
}

// SizePosition sizes an entry for one symbol against a portfolio snapshot.
// POST /api/v1/risk/size
func (h *RiskHandler) SizePosition(w http.ResponseWriter, r *http.Request) {
	var req sizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Symbol == "" {
		respondError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	asOf, err := parseDate(req.Date)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
		return
	}

	sizing, err := h.pipe.SizePosition(r.Context(), req.Symbol, asOf, req.State)
	if err != nil {
		h.logger.WithError(err).Error("Position sizing failed")
		respondError(w, http.StatusInternalServerError, "Position sizing failed")
		return
	}

	respondJSON(w, http.StatusOK, sizing)
}

// CheckPortfolio reports risk warnings for a portfolio snapshot.
// POST /api/v1/risk/portfolio
func (h *RiskHandler) CheckPortfolio(w http.ResponseWriter, r *http.Request) {
	var state contracts.PortfolioState
	if err := json.NewDecoder(r.Body).Decode(&state); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	report := h.pipe.RiskManager().CheckPortfolioRisk(&state)
	respondJSON(w, http.StatusOK, report)
}
