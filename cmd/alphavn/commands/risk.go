package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/thanhpn/alphavn/internal/contracts"
	"github.com/thanhpn/alphavn/internal/pipeline"
)

var riskDate string

var riskCmd = &cobra.Command{
	Use:   "risk [symbols...]",
	Short: "Size positions with stop-loss and take-profit levels",
	Long: `Runs the risk manager for the given symbols against an empty portfolio
and prints the proposed entry, stop-loss and take-profit for each.

Example:
  go run ./cmd/alphavn risk VNM FPT --date 2024-06-03`,
	RunE: runRisk,
}

func init() {
	rootCmd.AddCommand(riskCmd)
	riskCmd.Flags().StringVar(&riskDate, "date", "", "as-of date (YYYY-MM-DD, default: today)")
}

func runRisk(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	asOf, err := parseDateFlag(riskDate)
	if err != nil {
		return err
	}

	symbols, err := rt.universe(args)
	if err != nil {
		return err
	}

	pipe := pipeline.New(rt.store, rt.strategy, rt.opts, rt.log)
	state := &contracts.PortfolioState{AsOf: asOf, Positions: map[string]contracts.Position{}}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	fmt.Printf("=== AlphaVN Position Sizing (%s) ===\n\n", asOf.Format("2006-01-02"))
	fmt.Printf("%-8s %6s %10s %10s %10s %s\n",
		"SYMBOL", "SIZE", "ENTRY", "STOP", "TARGET", "NOTES")
	for _, symbol := range symbols {
		sizing, err := pipe.SizePosition(ctx, symbol, asOf, state)
		if err != nil {
			fmt.Printf("%-8s %s\n", symbol, err)
			continue
		}
		if sizing.Rejected {
			fmt.Printf("%-8s %6s %10s %10s %10s rejected: %s\n",
				symbol, "-", "-", "-", "-", sizing.Reason)
			continue
		}
		fmt.Printf("%-8s %5.1f%% %10.0f %10.0f %10.0f %s\n",
			symbol, sizing.SizeFraction*100,
			sizing.EntryPrice, sizing.StopLossPrice, sizing.TakeProfitPrice,
			sizing.Reason)
	}

	return nil
}
