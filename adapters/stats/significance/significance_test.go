package significance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"variatio/domain/metric"
)

func TestWelchTTest_KnownValues(t *testing.T) {
	res := WelchTTest([]float64{1, 2, 3}, []float64{4, 5, 6})

	assert.InDelta(t, -3/math.Sqrt(2.0/3.0), res.T, 1e-9)
	assert.InDelta(t, 4, res.DF, 1e-9)
	assert.InDelta(t, 0.02131, res.PValue, 1e-4)
}

func TestWelchTTest_Symmetric(t *testing.T) {
	a := []float64{1.2, 3.4, 2.2, 5.1, 4.4, 0.3}
	b := []float64{2.5, 6.1, 4.0, 7.7}

	ab := WelchTTest(a, b)
	ba := WelchTTest(b, a)

	assert.InDelta(t, ab.T, -ba.T, 1e-12)
	assert.InDelta(t, ab.DF, ba.DF, 1e-12)
	assert.InDelta(t, ab.PValue, ba.PValue, 1e-12)
	assert.Greater(t, ab.PValue, 0.0)
	assert.Less(t, ab.PValue, 1.0)
}

func TestWelchTTest_Undefined(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
	}{
		{"empty control", nil, []float64{1, 2}},
		{"single value", []float64{1}, []float64{1, 2, 3}},
		{"identical constants", []float64{3, 3, 3}, []float64{3, 3}},
		{"different constants", []float64{1, 1, 1}, []float64{2, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, math.IsNaN(WelchTTest(tt.a, tt.b).PValue))
		})
	}
}

func TestHolm(t *testing.T) {
	adjusted := Holm(map[string]float64{"B": 0.01, "C": 0.04, "D": 0.03, "E": math.NaN()})

	assert.InDelta(t, 0.03, adjusted["B"], 1e-12)
	assert.InDelta(t, 0.06, adjusted["D"], 1e-12)
	assert.InDelta(t, 0.06, adjusted["C"], 1e-12)
	assert.True(t, math.IsNaN(adjusted["E"]))
}

func TestHolm_CapsAtOne(t *testing.T) {
	adjusted := Holm(map[string]float64{"B": 0.6, "C": 0.7})
	assert.Equal(t, 1.0, adjusted["B"])
	assert.Equal(t, 1.0, adjusted["C"])
}

func TestTester_Compare(t *testing.T) {
	control := []float64{1, 2, 3}
	treatments := map[string][]float64{
		"B": {4, 5, 6},
		"C": {1, 2, 3},
	}

	plain := NewTester(metric.CorrectionNone).Compare(control, treatments, []string{"B", "C", "D"})
	require.Len(t, plain, 3)
	assert.InDelta(t, 0.02131, plain["B"], 1e-4)
	assert.InDelta(t, 1, plain["C"], 1e-12)
	assert.True(t, math.IsNaN(plain["D"]))

	holm := NewTester(metric.CorrectionHolm).Compare(control, treatments, []string{"B", "C", "D"})
	assert.InDelta(t, 2*plain["B"], holm["B"], 1e-12)
	assert.Equal(t, 1.0, holm["C"])
	assert.True(t, math.IsNaN(holm["D"]))
}

func TestNewTester_DefaultsToNone(t *testing.T) {
	assert.Equal(t, metric.CorrectionNone, NewTester("").Correction())
}
