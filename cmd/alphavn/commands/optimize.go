package commands

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/thanhpn/alphavn/internal/pipeline"
)

var optimizeDate string

var optimizeCmd = &cobra.Command{
	Use:   "optimize [symbols...]",
	Short: "Compute target portfolio weights",
	Long: `Runs the full decision cycle: signal scoring, context adjustment and
mean-variance optimization, and prints the target weights.

Example:
  go run ./cmd/alphavn optimize VNM FPT HPG VCB MWG SSI GAS VHM
  go run ./cmd/alphavn optimize --data ./testdata/hose --date 2024-06-03`,
	RunE: runOptimize,
}

func init() {
	rootCmd.AddCommand(optimizeCmd)
	optimizeCmd.Flags().StringVar(&optimizeDate, "date", "", "as-of date (YYYY-MM-DD, default: today)")
}

func runOptimize(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	asOf, err := parseDateFlag(optimizeDate)
	if err != nil {
		return err
	}

	symbols, err := rt.universe(args)
	if err != nil {
		return err
	}

	pipe := pipeline.New(rt.store, rt.strategy, rt.opts, rt.log)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	result, err := pipe.Run(ctx, symbols, asOf, nil)
	if err != nil {
		return err
	}

	w := result.Weights
	fmt.Printf("=== AlphaVN Target Weights (%s) ===\n\n", asOf.Format("2006-01-02"))
	if w.Degraded {
		fmt.Println("NOTE: optimizer degraded to score-proportional weights")
	}

	held := make([]string, 0, len(w.Weights))
	for symbol, weight := range w.Weights {
		if weight > 0 {
			held = append(held, symbol)
		}
	}
	sort.Slice(held, func(i, j int) bool { return w.Weights[held[i]] > w.Weights[held[j]] })

	for _, symbol := range held {
		fmt.Printf("  %-8s %6.2f%%\n", symbol, w.Weights[symbol]*100)
	}
	fmt.Printf("  %-8s %6.2f%%\n", "CASH", w.CashReserve*100)

	fmt.Printf("\nExpected return: %.2f%%  risk: %.2f%%  Sharpe: %.2f\n",
		w.ExpectedReturn*100, w.ExpectedRisk*100, w.SharpeRatio)
	fmt.Printf("Run: %s (%.1fs)\n", result.RunID, result.Duration.Seconds())

	return nil
}
