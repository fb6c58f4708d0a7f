package contracts

import "time"

// Classification partitions the composite score range into action bands.
type Classification string

const (
	ClassStrongBuy  Classification = "strong_buy"
	ClassBuy        Classification = "buy"
	ClassHold       Classification = "hold"
	ClassSell       Classification = "sell"
	ClassStrongSell Classification = "strong_sell"
)

// TechnicalScoreSet holds the per-symbol factor scores produced by the
// signal engine. Created fresh per analysis call; never mutated.
type TechnicalScoreSet struct {
	Symbol string    `json:"symbol"`
	AsOf   time.Time `json:"as_of"`
	Sector string    `json:"sector,omitempty"`

	// Sub-scores, each 0..100.
	VolumeScore       float64 `json:"volume_score"`
	PriceActionScore  float64 `json:"price_action_score"`
	MomentumScore     float64 `json:"momentum_score"`
	AccumulationScore float64 `json:"accumulation_score"`

	// CompositeScore is the weighted blend of the sub-scores, 0..100.
	CompositeScore float64        `json:"composite_score"`
	Classification Classification `json:"classification"`

	// InsufficientData marks a neutral result produced from a series
	// shorter than the configured lookback.
	InsufficientData bool `json:"insufficient_data,omitempty"`

	// BarsUsed records how many bars fed the analysis.
	BarsUsed int `json:"bars_used"`
}

// RecommendedAction is the action the context-adjusted signal suggests.
type RecommendedAction string

const (
	ActionStrongBuy RecommendedAction = "strong_buy"
	ActionBuy       RecommendedAction = "buy"
	ActionHold      RecommendedAction = "hold"
	ActionSell      RecommendedAction = "sell"
	ActionReduce    RecommendedAction = "reduce"
)

// Adjustment records one context rule that fired, in application order.
type Adjustment struct {
	Rule   string  `json:"rule"`
	Detail string  `json:"detail,omitempty"`
	Before float64 `json:"before"`
	After  float64 `json:"after"`
}

// EnhancedSignal is the context-adjusted signal: the base score set, the
// adjusted score and confidence, and an auditable list of applied rules.
type EnhancedSignal struct {
	Base        TechnicalScoreSet `json:"base"`
	ContextDate time.Time         `json:"context_date"`

	EnhancedScore float64 `json:"enhanced_score"` // 0..100
	Confidence    float64 `json:"confidence"`     // 0..1

	// SizeFactor scales the base position size downward, 0..1.
	SizeFactor float64 `json:"size_factor"`

	Applied              []Adjustment      `json:"applied"`
	RecommendedAction    RecommendedAction `json:"recommended_action"`
	ConfirmationRequired bool              `json:"confirmation_required,omitempty"`

	// ContextNeutral is set when the engine degraded to a neutral context.
	ContextNeutral bool `json:"context_neutral,omitempty"`
}

// Actionable reports whether the signal can be acted on without waiting for
// additional confirming bars.
func (s EnhancedSignal) Actionable() bool {
	return !s.ConfirmationRequired
}
