package postgres

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"variatio/domain/core"
	"variatio/domain/metric"
	"variatio/ports"
)

var _ ports.MetricRepository = (*MetricRepository)(nil)

func TestMetricRow_KeepsDefinitionAndResult(t *testing.T) {
	computed := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	m := metric.Metric{
		ID:         core.NewMetricID(),
		Definition: metric.AttributeSum("purchase", "purchase_value"),
		Result: metric.NewResult(metric.ResultInput{
			ControlArm:    "A",
			TreatmentArms: []string{"B", "C"},
			Means:         map[string]float64{"A": 10, "B": 12},
			PValues:       map[string]float64{"B": 0.04, "C": math.NaN()},
			Method:        metric.MethodBoostedCupedTTest,
			Degraded:      true,
		}),
		ComputedAt: computed,
	}
	session := core.NewSessionID()

	row, err := toMetricRow(session, 3, m)
	require.NoError(t, err)
	assert.Equal(t, session.String(), row.SessionID)
	assert.Equal(t, 3, row.Position)
	assert.Equal(t, "attribute_sum", row.Kind)
	assert.True(t, row.AttributeName.Valid)
	assert.Equal(t, "gboost_cuped_t_test", row.Method)
	assert.True(t, row.Degraded)

	back, err := fromMetricRow(row)
	require.NoError(t, err)
	assert.Equal(t, m.ID, back.ID)
	assert.Equal(t, m.Definition, back.Definition)
	assert.Equal(t, computed, back.ComputedAt)

	mean, ok := back.Result.Mean("B")
	require.True(t, ok)
	assert.Equal(t, 12.0, mean)
	_, ok = back.Result.Mean("C")
	assert.False(t, ok)
	p, _ := back.Result.PValue("C")
	assert.True(t, math.IsNaN(p))
	assert.True(t, back.Result.Degraded())
}

func TestMetricRow_CountHasNullAttribute(t *testing.T) {
	row, err := toMetricRow(core.NewSessionID(), 0, metric.Metric{Definition: metric.Count("login")})
	require.NoError(t, err)
	assert.False(t, row.AttributeName.Valid)
}

func TestFromMetricRow_BadPayload(t *testing.T) {
	_, err := fromMetricRow(metricRow{ID: "x", Result: []byte("{")})
	assert.Error(t, err)
}
