package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/thanhpn/alphavn/internal/pipeline"
	"github.com/thanhpn/alphavn/internal/scheduler"
	"github.com/thanhpn/alphavn/internal/scheduler/jobs"
)

var schedulerUniverse []string

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the job scheduler",
	Long: `Starts the cron scheduler with the daily analysis job (16:00 ICT,
trading days) and the weekly rebalance job (Monday 16:30 ICT).

Example:
  go run ./cmd/alphavn scheduler --universe VNM,FPT,HPG,VCB`,
	RunE: runScheduler,
}

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.Flags().StringSliceVar(&schedulerUniverse, "universe", nil, "universe symbols (required unless --data is set)")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	universe, err := rt.universe(schedulerUniverse)
	if err != nil {
		return fmt.Errorf("scheduler needs a universe: %w", err)
	}

	pipe := pipeline.New(rt.store, rt.strategy, rt.opts, rt.log)

	sched := scheduler.New(rt.log)
	if err := sched.Register(jobs.NewDailyAnalysisJob(pipe, universe, rt.log)); err != nil {
		return err
	}
	if err := sched.Register(jobs.NewRebalanceJob(pipe, universe, rt.log)); err != nil {
		return err
	}

	sched.Start()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	sched.Stop()
	return nil
}
