package marketctx

import (
	"fmt"

	"github.com/thanhpn/alphavn/internal/contracts"
	"github.com/thanhpn/alphavn/internal/strategyconfig"
	"github.com/thanhpn/alphavn/pkg/logger"
)

// Rule names recorded in the audit trail, in application order.
const (
	RuleNegativeNews   = "negative_news_cap"
	RulePreHoliday     = "pre_holiday_damping"
	RulePostHoliday    = "post_holiday_damping"
	RuleSectorModifier = "sector_modifier"
	RuleVolumeAnomaly  = "volume_anomaly_confirmation"
	RuleNeutralContext = "neutral_context"
	RuleThinData       = "insufficient_history"
)

// Engine applies the market-context rule layer on top of a technical score
// set. Rules run in fixed priority order; each records itself in the audit
// list, and the news cap short-circuits the rest.
type Engine struct {
	cfg    strategyconfig.Context
	bands  strategyconfig.ScoreBands
	logger *logger.Logger
}

// NewEngine creates a context adjustment engine.
func NewEngine(cfg strategyconfig.Context, bands strategyconfig.ScoreBands, log *logger.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		bands:  bands,
		logger: log.WithField("component", "marketctx"),
	}
}

// Adjust produces the enhanced signal for a score set under the given
// context. The trailing bars feed the volume anomaly check only. A neutral
// (degraded) context applies no adjustment but reduces confidence; the
// engine never fails the pipeline.
func (e *Engine) Adjust(set contracts.TechnicalScoreSet, mctx contracts.MarketContext, series []contracts.PricePoint) contracts.EnhancedSignal {
	sig := contracts.EnhancedSignal{
		Base:          set,
		ContextDate:   mctx.Date,
		EnhancedScore: set.CompositeScore,
		Confidence:    1.0,
		SizeFactor:    1.0,
		Applied:       []contracts.Adjustment{},
	}

	if set.InsufficientData {
		before := sig.Confidence
		sig.Confidence *= 0.3
		sig.Applied = append(sig.Applied, contracts.Adjustment{
			Rule:   RuleThinData,
			Detail: fmt.Sprintf("%d bars available", set.BarsUsed),
			Before: before,
			After:  sig.Confidence,
		})
	}

	if mctx.Neutral {
		before := sig.Confidence
		sig.Confidence *= e.cfg.NeutralConfidencePenalty
		sig.ContextNeutral = true
		sig.Applied = append(sig.Applied, contracts.Adjustment{
			Rule:   RuleNeutralContext,
			Detail: "context feed unavailable, no adjustment applied",
			Before: before,
			After:  sig.Confidence,
		})
		sig.RecommendedAction = e.recommend(sig.EnhancedScore)
		return sig
	}

	// Rule 1: high-impact negative news caps strength and forces hold.
	// Short-circuits every later rule.
	if mctx.NewsImpactLevel >= e.cfg.NewsImpactThreshold && mctx.NewsSentiment == contracts.SentimentNegative {
		before := sig.EnhancedScore
		if sig.EnhancedScore > e.cfg.NewsScoreCeiling {
			sig.EnhancedScore = e.cfg.NewsScoreCeiling
		}
		sig.Confidence *= e.cfg.NewsConfidencePenalty
		sig.RecommendedAction = contracts.ActionHold
		sig.Applied = append(sig.Applied, contracts.Adjustment{
			Rule:   RuleNegativeNews,
			Detail: fmt.Sprintf("impact %.1f >= %.1f, sentiment negative", mctx.NewsImpactLevel, e.cfg.NewsImpactThreshold),
			Before: before,
			After:  sig.EnhancedScore,
		})

		e.logger.WithFields(map[string]interface{}{
			"symbol": set.Symbol,
			"impact": mctx.NewsImpactLevel,
		}).Debug("Negative news cap applied, holding")
		return sig
	}

	// Rule 2: holiday proximity damping. Pre-holiday window dominates; the
	// post-holiday window carries a smaller separate factor.
	if mctx.DaysToNextHoliday >= 0 && mctx.DaysToNextHoliday <= e.cfg.PreHolidayWindow {
		before := sig.EnhancedScore
		sig.EnhancedScore *= e.cfg.PreHolidayFactor
		sig.SizeFactor *= e.cfg.PreHolidayFactor
		sig.Confidence *= e.cfg.HolidayConfidencePenalty
		sig.Applied = append(sig.Applied, contracts.Adjustment{
			Rule:   RulePreHoliday,
			Detail: fmt.Sprintf("%d trading days to %s holiday", mctx.DaysToNextHoliday, mctx.HolidayType),
			Before: before,
			After:  sig.EnhancedScore,
		})
	} else if mctx.DaysAfterHoliday >= 0 && mctx.DaysAfterHoliday <= e.cfg.PostHolidayWindow {
		before := sig.EnhancedScore
		sig.EnhancedScore *= e.cfg.PostHolidayFactor
		sig.SizeFactor *= e.cfg.PostHolidayFactor
		sig.Confidence *= e.cfg.HolidayConfidencePenalty
		sig.Applied = append(sig.Applied, contracts.Adjustment{
			Rule:   RulePostHoliday,
			Detail: fmt.Sprintf("%d trading days after %s holiday", mctx.DaysAfterHoliday, mctx.HolidayType),
			Before: before,
			After:  sig.EnhancedScore,
		})
	}

	// Rule 3: data-driven sector modifier, additive on the score.
	if mod := mctx.SectorModifier(set.Sector); mod != 0 {
		before := sig.EnhancedScore
		sig.EnhancedScore = clamp(sig.EnhancedScore+mod, 0, 100)
		sig.Applied = append(sig.Applied, contracts.Adjustment{
			Rule:   RuleSectorModifier,
			Detail: fmt.Sprintf("sector %s modifier %+.1f", set.Sector, mod),
			Before: before,
			After:  sig.EnhancedScore,
		})
	}

	// Rule 4: volume anomaly requires confirming bars before acting.
	if rate, ok := volumeRate(series); ok && rate >= e.cfg.VolumeAnomalyRate {
		before := sig.Confidence
		sig.ConfirmationRequired = true
		sig.Confidence *= e.cfg.AnomalyConfidencePenalty
		sig.Applied = append(sig.Applied, contracts.Adjustment{
			Rule:   RuleVolumeAnomaly,
			Detail: fmt.Sprintf("volume rate of change %.2fx >= %.2fx", rate, e.cfg.VolumeAnomalyRate),
			Before: before,
			After:  sig.Confidence,
		})
	}

	sig.EnhancedScore = clamp(sig.EnhancedScore, 0, 100)
	sig.Confidence = clamp(sig.Confidence, 0, 1)
	sig.RecommendedAction = e.recommend(sig.EnhancedScore)
	return sig
}

// recommend maps the enhanced score to an action using the same bands as
// the base classification.
func (e *Engine) recommend(score float64) contracts.RecommendedAction {
	switch {
	case score >= e.bands.StrongBuy:
		return contracts.ActionStrongBuy
	case score >= e.bands.Buy:
		return contracts.ActionBuy
	case score >= e.bands.Hold:
		return contracts.ActionHold
	case score >= e.bands.Sell:
		return contracts.ActionReduce
	default:
		return contracts.ActionSell
	}
}

// volumeRate returns the last bar's volume relative to the bar before it.
func volumeRate(series []contracts.PricePoint) (float64, bool) {
	n := len(series)
	if n < 2 || series[n-2].Volume <= 0 {
		return 0, false
	}
	return float64(series[n-1].Volume) / float64(series[n-2].Volume), true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
