package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/thanhpn/alphavn/internal/api/handlers"
	"github.com/thanhpn/alphavn/pkg/logger"
)

// NewRouter wires all routes and middleware.
func NewRouter(signalHandler *handlers.SignalHandler, portfolioHandler *handlers.PortfolioHandler, riskHandler *handlers.RiskHandler, backtestHandler *handlers.BacktestHandler, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/signals", signalHandler.GetUniverse).Methods("GET")
	api.HandleFunc("/signals/{symbol}", signalHandler.GetSymbol).Methods("GET")

	api.HandleFunc("/portfolio/optimize", portfolioHandler.Optimize).Methods("POST")

	api.HandleFunc("/risk/size", riskHandler.SizePosition).Methods("POST")
	api.HandleFunc("/risk/portfolio", riskHandler.CheckPortfolio).Methods("POST")

	api.HandleFunc("/backtest", backtestHandler.Run).Methods("POST")

	// Progress streaming sits outside the rate-limited API prefix.
	r.HandleFunc("/ws/backtest", backtestHandler.Stream).Methods("GET")

	api.Use(rateLimitMiddleware(rate.NewLimiter(rate.Limit(20), 40)))
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "alphavn-api",
	})
}

// rateLimitMiddleware sheds load above the shared request budget.
func rateLimitMiddleware(limiter *rate.Limiter) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"error": "Rate limit exceeded",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
