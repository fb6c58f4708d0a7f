package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thanhpn/alphavn/internal/marketdata"
	"github.com/thanhpn/alphavn/internal/pipeline"
	"github.com/thanhpn/alphavn/internal/strategyconfig"
	"github.com/thanhpn/alphavn/pkg/config"
	"github.com/thanhpn/alphavn/pkg/database"
	"github.com/thanhpn/alphavn/pkg/logger"
)

var (
	// Global flags
	strategyPath string
	dataDir      string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "alphavn",
	Short: "AlphaVN - decision support for HOSE equities",
	Long: `AlphaVN Unified CLI

Signal scoring, context adjustment, portfolio optimization, risk sizing
and backtesting for the Vietnamese equity market.

Examples:
  go run ./cmd/alphavn analyze VNM FPT --date 2024-06-03
  go run ./cmd/alphavn optimize VNM FPT HPG VCB MWG SSI GAS VHM
  go run ./cmd/alphavn backtest --from 2023-01-02 --to 2024-12-31
  go run ./cmd/alphavn serve`,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&strategyPath, "strategy", "", "strategy config file (default from STRATEGY_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "load market data from a directory instead of Postgres")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// runtime bundles everything a command needs to run the pipeline.
type runtime struct {
	cfg      *config.Config
	strategy *strategyconfig.Config
	log      *logger.Logger
	store    marketdata.Store
	opts     pipeline.Options
	close    func()
}

// newRuntime loads config, opens the data store and prepares pipeline
// options. Commands must call rt.close when done.
func newRuntime() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	log := logger.New(cfg)

	path := strategyPath
	if path == "" {
		path = cfg.StrategyConfigPath
	}
	strategy, err := strategyconfig.LoadOrDefault(path)
	if err != nil {
		return nil, fmt.Errorf("load strategy config: %w", err)
	}

	hash, err := strategyconfig.Hash(strategy)
	if err == nil {
		log.WithField("config_hash", hash).Debug("Strategy config loaded")
	}

	rt := &runtime{
		cfg:      cfg,
		strategy: strategy,
		log:      log,
		opts: pipeline.Options{
			Workers:          cfg.Pipeline.Workers,
			OptimizerTimeout: cfg.Pipeline.OptimizerTimeout,
		},
		close: func() {},
	}

	if dataDir != "" {
		store, err := marketdata.LoadDir(dataDir)
		if err != nil {
			return nil, err
		}
		rt.store = store
		return rt, nil
	}

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	rt.store = marketdata.NewPostgresStore(db.Pool)
	rt.close = db.Close
	return rt, nil
}

// universe returns the symbols to operate on: explicit args, or every
// symbol in the data directory when one is loaded.
func (rt *runtime) universe(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if mem, ok := rt.store.(*marketdata.MemoryStore); ok {
		return mem.Symbols(), nil
	}
	return nil, fmt.Errorf("no symbols given")
}
