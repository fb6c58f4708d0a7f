package strategyconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeYAML(t *testing.T, cfg *Config) string {
	t.Helper()

	data, err := yaml.Marshal(cfg)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "strategy.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoad_RoundTrip(t *testing.T) {
	want := Default()
	want.Meta.Version = "2.3.1"
	want.Signals.LookbackDays = 90

	cfg, raw, err := Load(writeYAML(t, want))
	require.NoError(t, err)

	assert.Equal(t, want, cfg)
	assert.NotEmpty(t, raw)
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategy.yaml")
	content := `
meta:
  strategy_id: vn_equity_v1
  verison: "1.0.0"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, _, err := Load(path)
	require.Error(t, err, "misspelled field must not be silently dropped")
	assert.Contains(t, err.Error(), "verison")
}

func TestLoad_MissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	custom := Default()
	custom.Backtest.RebalanceDays = 10
	cfg, err = LoadOrDefault(writeYAML(t, custom))
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Backtest.RebalanceDays)
}

func TestValidate_DefaultIsValid(t *testing.T) {
	assert.NoError(t, Validate(Default()))
}

func TestValidate_Failures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "missing strategy id",
			mutate: func(c *Config) { c.Meta.StrategyID = "" },
			field:  "meta.strategy_id",
		},
		{
			name:   "factor weights not summing to one",
			mutate: func(c *Config) { c.Signals.Weights.Volume = 0.5 },
			field:  "signals.weights",
		},
		{
			name:   "bands not descending",
			mutate: func(c *Config) { c.Signals.Bands.Buy = 85 },
			field:  "signals.bands",
		},
		{
			name:   "ma windows inverted",
			mutate: func(c *Config) { c.Signals.Price.MAShort = 40 },
			field:  "signals.price_action",
		},
		{
			name:   "news threshold out of range",
			mutate: func(c *Config) { c.Context.NewsImpactThreshold = 11 },
			field:  "context.news_impact_threshold",
		},
		{
			name:   "zero confidence penalty",
			mutate: func(c *Config) { c.Context.NewsConfidencePenalty = 0 },
			field:  "context.news_confidence_penalty",
		},
		{
			name:   "infeasible caps",
			mutate: func(c *Config) { c.Constraints.MaxPositionWeight = 0.10 },
			field:  "constraints",
		},
		{
			name:   "sector cap below position cap",
			mutate: func(c *Config) { c.Constraints.MaxSectorWeight = 0.05 },
			field:  "constraints.max_sector_weight",
		},
		{
			name:   "non-positive capital",
			mutate: func(c *Config) { c.Backtest.InitialCapital = 0 },
			field:  "backtest.initial_capital",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)

			var verr ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestHash_StableAndSensitive(t *testing.T) {
	a, err := Hash(Default())
	require.NoError(t, err)
	b, err := Hash(Default())
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	changed := Default()
	changed.Optimizer.StepSize = 0.01
	c, err := Hash(changed)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}
