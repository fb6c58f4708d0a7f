package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/thanhpn/alphavn/internal/backtest"
	"github.com/thanhpn/alphavn/internal/marketdata"
	"github.com/thanhpn/alphavn/internal/pipeline"
	"github.com/thanhpn/alphavn/internal/strategyconfig"
	"github.com/thanhpn/alphavn/pkg/logger"
)

// BacktestHandler serves one-shot backtest runs and a websocket progress
// stream. Each request gets its own engine so concurrent runs do not share
// simulator state.
type BacktestHandler struct {
	store    marketdata.Store
	cfg      *strategyconfig.Config
	opts     pipeline.Options
	logger   *logger.Logger
	upgrader websocket.Upgrader
}

// NewBacktestHandler creates a backtest handler.
func NewBacktestHandler(store marketdata.Store, cfg *strategyconfig.Config, opts pipeline.Options, log *logger.Logger) *BacktestHandler {
	return &BacktestHandler{
		store:  store,
		cfg:    cfg,
		opts:   opts,
		logger: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type backtestRequest struct {
	Symbols []string `json:"symbols"`
	Start   string   `json:"start"`
	End     string   `json:"end"`
}

func (req *backtestRequest) parse() ([]string, time.Time, time.Time, error) {
	start, err := time.Parse("2006-01-02", req.Start)
	if err != nil {
		return nil, time.Time{}, time.Time{}, err
	}
	end, err := time.Parse("2006-01-02", req.End)
	if err != nil {
		return nil, time.Time{}, time.Time{}, err
	}
	return req.Symbols, start, end, nil
}

// Run executes a backtest synchronously and returns the full result.
// POST /api/v1/backtest
func (h *BacktestHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req backtestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	symbols, start, end, err := req.parse()
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid date range, expected YYYY-MM-DD")
		return
	}
	if len(symbols) == 0 {
		respondError(w, http.StatusBadRequest, "symbols is required")
		return
	}

	engine := backtest.NewEngine(h.store, h.cfg, h.opts, h.logger)
	result, err := engine.Run(r.Context(), symbols, start, end)
	if err != nil {
		h.logger.WithError(err).Error("Backtest failed")
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// streamMessage frames one websocket payload.
type streamMessage struct {
	Type     string      `json:"type"` // "progress", "result", "error"
	Progress interface{} `json:"progress,omitempty"`
	Result   interface{} `json:"result,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// Stream runs a backtest and pushes progress over a websocket.
// GET /ws/backtest?symbols=VNM,FPT&start=2024-01-02&end=2024-12-31
func (h *BacktestHandler) Stream(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := backtestRequest{
		Symbols: splitSymbols(query.Get("symbols")),
		Start:   query.Get("start"),
		End:     query.Get("end"),
	}
	symbols, start, end, err := req.parse()
	if err != nil || len(symbols) == 0 {
		respondError(w, http.StatusBadRequest, "symbols, start and end query parameters are required")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	engine := backtest.NewEngine(h.store, h.cfg, h.opts, h.logger)
	engine.SetProgressSink(backtest.ProgressFunc(func(e backtest.ProgressEvent) {
		// A slow or dead client drops its progress stream, not the run.
		_ = conn.WriteJSON(streamMessage{Type: "progress", Progress: e})
	}))

	result, err := engine.Run(r.Context(), symbols, start, end)
	if err != nil {
		_ = conn.WriteJSON(streamMessage{Type: "error", Error: err.Error()})
		return
	}

	_ = conn.WriteJSON(streamMessage{Type: "result", Result: result})
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
}

func splitSymbols(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
