package jobs

import (
	"context"
	"time"

	"github.com/thanhpn/alphavn/internal/pipeline"
	"github.com/thanhpn/alphavn/pkg/logger"
)

// RebalanceJob runs a full decision cycle on Monday evenings and logs the
// target weights. Order placement stays with the human operator.
type RebalanceJob struct {
	pipe     *pipeline.Pipeline
	universe []string
	logger   *logger.Logger
}

// NewRebalanceJob creates the weekly rebalance job.
func NewRebalanceJob(pipe *pipeline.Pipeline, universe []string, log *logger.Logger) *RebalanceJob {
	return &RebalanceJob{
		pipe:     pipe,
		universe: universe,
		logger:   log.WithField("job", "rebalance"),
	}
}

func (j *RebalanceJob) Name() string { return "rebalance" }

func (j *RebalanceJob) Schedule() string { return "0 30 16 * * MON" }

func (j *RebalanceJob) Run(ctx context.Context) error {
	result, err := j.pipe.Run(ctx, j.universe, time.Now(), nil)
	if err != nil {
		return err
	}

	for symbol, weight := range result.Weights.Weights {
		j.logger.WithFields(map[string]interface{}{
			"symbol": symbol,
			"weight": weight,
		}).Info("Target weight")
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id":   result.RunID,
		"holdings": result.Weights.HoldingCount(),
		"cash":     result.Weights.CashReserve,
		"sharpe":   result.Weights.SharpeRatio,
		"degraded": result.Weights.Degraded,
	}).Info("Rebalance targets computed")

	return nil
}
