package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/thanhpn/alphavn/internal/pipeline"
	"github.com/thanhpn/alphavn/pkg/logger"
)

// DailyAnalysisJob scores the universe after the HOSE close and logs the
// actionable signals. Runs at 16:00 ICT on trading days.
type DailyAnalysisJob struct {
	pipe     *pipeline.Pipeline
	universe []string
	logger   *logger.Logger
}

// NewDailyAnalysisJob creates the post-close analysis job.
func NewDailyAnalysisJob(pipe *pipeline.Pipeline, universe []string, log *logger.Logger) *DailyAnalysisJob {
	return &DailyAnalysisJob{
		pipe:     pipe,
		universe: universe,
		logger:   log.WithField("job", "daily_analysis"),
	}
}

func (j *DailyAnalysisJob) Name() string { return "daily_analysis" }

func (j *DailyAnalysisJob) Schedule() string { return "0 0 16 * * MON-FRI" }

func (j *DailyAnalysisJob) Run(ctx context.Context) error {
	asOf := time.Now()

	signals, failures := j.pipe.AnalyzeUniverse(ctx, j.universe, asOf)
	if len(signals) == 0 {
		return fmt.Errorf("daily analysis: no signals for %d symbols", len(j.universe))
	}

	actionable := 0
	for _, sig := range signals {
		if !sig.Actionable() {
			continue
		}
		actionable++
		j.logger.WithFields(map[string]interface{}{
			"symbol":     sig.Base.Symbol,
			"score":      sig.EnhancedScore,
			"confidence": sig.Confidence,
			"action":     string(sig.RecommendedAction),
		}).Info("Actionable signal")
	}

	j.logger.WithFields(map[string]interface{}{
		"date":       asOf.Format("2006-01-02"),
		"signals":    len(signals),
		"actionable": actionable,
		"failed":     len(failures),
	}).Info("Daily analysis completed")

	return nil
}
