package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/thanhpn/alphavn/internal/backtest"
)

var (
	backtestFrom    string
	backtestTo      string
	backtestCapital float64
	backtestOutput  string
)

var backtestCmd = &cobra.Command{
	Use:   "backtest [symbols...]",
	Short: "Replay the strategy over history",
	Long: `Replays the full pipeline bar by bar over the given period and prints
performance metrics. Identical inputs produce identical results.

Example:
  go run ./cmd/alphavn backtest --data ./testdata/hose --from 2023-01-02 --to 2024-12-31
  go run ./cmd/alphavn backtest VNM FPT HPG --from 2023-01-02 --out result.json`,
	RunE: runBacktest,
}

func init() {
	rootCmd.AddCommand(backtestCmd)
	backtestCmd.Flags().StringVar(&backtestFrom, "from", "", "start date (YYYY-MM-DD, required)")
	backtestCmd.Flags().StringVar(&backtestTo, "to", "", "end date (YYYY-MM-DD, default: today)")
	backtestCmd.Flags().Float64Var(&backtestCapital, "capital", 0, "initial capital (VND, default from strategy config)")
	backtestCmd.Flags().StringVar(&backtestOutput, "out", "", "write full result JSON to a file")
	backtestCmd.MarkFlagRequired("from")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	start, err := time.Parse("2006-01-02", backtestFrom)
	if err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	end := time.Now()
	if backtestTo != "" {
		if end, err = time.Parse("2006-01-02", backtestTo); err != nil {
			return fmt.Errorf("invalid end date: %w", err)
		}
	}

	symbols, err := rt.universe(args)
	if err != nil {
		return err
	}

	if backtestCapital > 0 {
		rt.strategy.Backtest.InitialCapital = backtestCapital
	}

	fmt.Println("=== AlphaVN Backtest ===")
	fmt.Printf("Period:    %s ~ %s\n", start.Format("2006-01-02"), end.Format("2006-01-02"))
	fmt.Printf("Symbols:   %d\n", len(symbols))
	fmt.Printf("Capital:   %.0f VND\n", rt.strategy.Backtest.InitialCapital)
	fmt.Printf("Rebalance: every %d trading days\n\n", rt.strategy.Backtest.RebalanceDays)

	engine := backtest.NewEngine(rt.store, rt.strategy, rt.opts, rt.log)

	result, err := engine.Run(context.Background(), symbols, start, end)
	if err != nil {
		return err
	}

	fmt.Printf("Final capital:     %.0f VND\n", result.FinalCapital)
	fmt.Printf("Total return:      %+.2f%%\n", result.TotalReturn*100)
	fmt.Printf("Annualized return: %+.2f%%\n", result.AnnualizedReturn*100)
	fmt.Printf("Volatility:        %.2f%%\n", result.Volatility*100)
	fmt.Printf("Sharpe ratio:      %.2f\n", result.SharpeRatio)
	fmt.Printf("Sortino ratio:     %.2f\n", result.SortinoRatio)
	fmt.Printf("Max drawdown:      %.2f%%\n", result.MaxDrawdown*100)
	fmt.Printf("Win rate:          %.1f%% (%d/%d)\n",
		result.WinRate*100, result.WinningTrades, result.WinningTrades+result.LosingTrades)
	fmt.Printf("Trades:            %d over %d rebalances\n", result.TotalTrades, result.RebalanceCount)
	fmt.Printf("Costs:             %.0f commission, %.0f slippage\n",
		result.TotalCommission, result.TotalSlippage)
	if len(result.Failures) > 0 {
		fmt.Printf("Failures:          %d isolated (see result JSON)\n", len(result.Failures))
	}

	if backtestOutput != "" {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		if err := os.WriteFile(backtestOutput, data, 0o644); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
		fmt.Printf("\nFull result written to %s\n", backtestOutput)
	}

	return nil
}
