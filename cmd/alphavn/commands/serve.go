package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/thanhpn/alphavn/internal/api"
	"github.com/thanhpn/alphavn/internal/api/handlers"
	"github.com/thanhpn/alphavn/internal/marketdata"
	"github.com/thanhpn/alphavn/internal/pipeline"
	"github.com/thanhpn/alphavn/pkg/redis"
)

var serveUniverse []string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Starts the API server with signal, portfolio, risk and backtest
endpoints plus the backtest progress websocket.

Example:
  go run ./cmd/alphavn serve
  go run ./cmd/alphavn serve --universe VNM,FPT,HPG,VCB`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringSliceVar(&serveUniverse, "universe", nil, "universe symbols for /api/v1/signals")
}

func runServe(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	store := rt.store

	// Redis fronts the store when enabled; otherwise reads go straight
	// through.
	if rt.cfg.Redis.Enabled {
		client, err := redis.New(rt.cfg)
		if err != nil {
			rt.log.WithError(err).Warn("Redis unavailable, serving uncached")
		} else {
			defer client.Close()
			cache := redis.NewCache(client, "alphavn")
			store = marketdata.NewCachedStore(store, cache, 15*time.Minute)
		}
	}

	universe := serveUniverse
	if len(universe) == 0 {
		if mem, ok := rt.store.(*marketdata.MemoryStore); ok {
			universe = mem.Symbols()
		}
	}

	pipe := pipeline.New(store, rt.strategy, rt.opts, rt.log)

	signalHandler := handlers.NewSignalHandler(pipe, universe, rt.log)
	portfolioHandler := handlers.NewPortfolioHandler(pipe, rt.log)
	riskHandler := handlers.NewRiskHandler(pipe, rt.log)
	backtestHandler := handlers.NewBacktestHandler(store, rt.strategy, rt.opts, rt.log)

	router := api.NewRouter(signalHandler, portfolioHandler, riskHandler, backtestHandler, rt.log)
	server := api.New(rt.cfg, rt.log, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		rt.log.WithField("signal", sig.String()).Info("Shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
