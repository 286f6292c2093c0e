package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"variatio/adapters/stats/cuped"
	"variatio/domain/metric"
	"variatio/internal/errors"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("ADJUSTMENT_MODE", "")
	t.Setenv("PVALUE_CORRECTION", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.Database.Enabled())
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, cuped.ModeLinear, cfg.Analysis.Mode)
	assert.Equal(t, metric.CorrectionNone, cfg.Analysis.Correction)
	assert.Equal(t, 100, cfg.Analysis.Boosting.Rounds)
	assert.Equal(t, 0.8, cfg.Analysis.Smoothing)
	assert.Equal(t, 0.05, cfg.Analysis.SignificanceLevel)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/variatio")
	t.Setenv("ADJUSTMENT_MODE", "gboost_cuped")
	t.Setenv("PVALUE_CORRECTION", "holm")
	t.Setenv("BOOST_ROUNDS", "20")
	t.Setenv("ANALYSIS_PARALLELISM", "2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Database.Enabled())
	assert.Equal(t, cuped.ModeBoosted, cfg.Analysis.Mode)
	assert.Equal(t, metric.CorrectionHolm, cfg.Analysis.Correction)
	assert.Equal(t, 20, cfg.Analysis.AdjusterOptions().Boosting.Rounds)
	assert.Equal(t, 2, cfg.Analysis.Parallelism)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"mode", "ADJUSTMENT_MODE", "magic"},
		{"correction", "PVALUE_CORRECTION", "bonferroni-ish"},
		{"parallelism", "ANALYSIS_PARALLELISM", "0"},
		{"alpha", "SIGNIFICANCE_LEVEL", "1.5"},
		{"learning rate", "BOOST_LEARNING_RATE", "3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
		})
	}
}
