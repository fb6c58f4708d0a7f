package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/thanhpn/alphavn/internal/contracts"
	"github.com/thanhpn/alphavn/internal/pipeline"
	"github.com/thanhpn/alphavn/pkg/logger"
)

// SignalHandler serves context-adjusted technical signals.
type SignalHandler struct {
	pipe     *pipeline.Pipeline
	universe []string
	logger   *logger.Logger
}

// NewSignalHandler creates a signal handler over the configured universe.
func NewSignalHandler(pipe *pipeline.Pipeline, universe []string, log *logger.Logger) *SignalHandler {
	return &SignalHandler{
		pipe:     pipe,
		universe: universe,
		logger:   log,
	}
}

// GetSymbol returns the signal for one symbol.
// GET /api/v1/signals/{symbol}?date=YYYY-MM-DD
func (h *SignalHandler) GetSymbol(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	asOf, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
		return
	}

	sig, err := h.pipe.AnalyzeSymbol(r.Context(), symbol, asOf)
	if err != nil {
		if errors.Is(err, contracts.ErrInsufficientData) {
			respondError(w, http.StatusUnprocessableEntity, "Insufficient history for "+symbol)
			return
		}
		h.logger.WithError(err).Error("Signal analysis failed")
		respondError(w, http.StatusInternalServerError, "Signal analysis failed")
		return
	}

	respondJSON(w, http.StatusOK, sig)
}

// GetUniverse returns signals for the whole configured universe.
// GET /api/v1/signals?date=YYYY-MM-DD
func (h *SignalHandler) GetUniverse(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
		return
	}

	signals, failures := h.pipe.AnalyzeUniverse(r.Context(), h.universe, asOf)

	failed := make(map[string]string, len(failures))
	for symbol, ferr := range failures {
		failed[symbol] = ferr.Error()
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"date":     asOf.Format("2006-01-02"),
		"signals":  signals,
		"failures": failed,
	})
}
