package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/thanhpn/alphavn/internal/pipeline"
)

var analyzeDate string

var analyzeCmd = &cobra.Command{
	Use:   "analyze [symbols...]",
	Short: "Score symbols and apply market context",
	Long: `Runs the technical signal engine and the context adjustment engine
for the given symbols and prints the adjusted scores.

Example:
  go run ./cmd/alphavn analyze VNM FPT HPG --date 2024-06-03
  go run ./cmd/alphavn analyze --data ./testdata/hose`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&analyzeDate, "date", "", "as-of date (YYYY-MM-DD, default: today)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	asOf, err := parseDateFlag(analyzeDate)
	if err != nil {
		return err
	}

	symbols, err := rt.universe(args)
	if err != nil {
		return err
	}

	pipe := pipeline.New(rt.store, rt.strategy, rt.opts, rt.log)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	signals, failures := pipe.AnalyzeUniverse(ctx, symbols, asOf)

	fmt.Printf("=== AlphaVN Signals (%s) ===\n\n", asOf.Format("2006-01-02"))
	fmt.Printf("%-8s %8s %8s %6s %6s %-12s %s\n",
		"SYMBOL", "BASE", "ADJ", "CONF", "SIZE", "ACTION", "NOTES")
	for _, sig := range signals {
		notes := ""
		if sig.Base.InsufficientData {
			notes = "insufficient data"
		}
		if sig.ConfirmationRequired {
			if notes != "" {
				notes += ", "
			}
			notes += "needs confirmation"
		}
		fmt.Printf("%-8s %8.1f %8.1f %6.2f %6.2f %-12s %s\n",
			sig.Base.Symbol, sig.Base.CompositeScore, sig.EnhancedScore,
			sig.Confidence, sig.SizeFactor, string(sig.RecommendedAction), notes)
	}

	if len(failures) > 0 {
		fmt.Printf("\n%d symbol(s) failed:\n", len(failures))
		for symbol, ferr := range failures {
			fmt.Printf("  %-8s %v\n", symbol, ferr)
		}
	}

	return nil
}

func parseDateFlag(value string) (time.Time, error) {
	if value == "" {
		return time.Now(), nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", value)
	}
	return t, nil
}
