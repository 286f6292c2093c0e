package boosting

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegressor_FitsStepFunction(t *testing.T) {
	var x [][]float64
	var y []float64
	for i := 0; i < 40; i++ {
		v := float64(i)
		x = append(x, []float64{v})
		if v < 20 {
			y = append(y, 1)
		} else {
			y = append(y, 5)
		}
	}

	model := NewRegressor(DefaultParams())
	require.NoError(t, model.Fit(x, y))
	assert.Equal(t, DefaultParams().Rounds, model.Trees())

	pred := model.Predict([][]float64{{3}, {35}})
	assert.InDelta(t, 1, pred[0], 0.05)
	assert.InDelta(t, 5, pred[1], 0.05)
}

func TestRegressor_ReducesResidualVariance(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var x [][]float64
	var y []float64
	for i := 0; i < 200; i++ {
		a := rng.Float64() * 10
		b := float64(rng.Intn(3))
		x = append(x, []float64{a, b})
		y = append(y, 2*a+3*b+rng.NormFloat64()*0.1)
	}

	model := NewRegressor(Params{Rounds: 50, MaxDepth: 4, LearningRate: 0.3, Lambda: 1, MinChildWeight: 1})
	require.NoError(t, model.Fit(x, y))

	pred := model.Predict(x)
	var sse, sst, mean float64
	for _, v := range y {
		mean += v
	}
	mean /= float64(len(y))
	for i := range y {
		sse += (y[i] - pred[i]) * (y[i] - pred[i])
		sst += (y[i] - mean) * (y[i] - mean)
	}
	assert.Less(t, sse/sst, 0.05)
}

func TestRegressor_ConstantTargetPredictsConstant(t *testing.T) {
	x := [][]float64{{1}, {2}, {3}, {4}}
	y := []float64{7, 7, 7, 7}

	model := NewRegressor(DefaultParams())
	require.NoError(t, model.Fit(x, y))
	for _, p := range model.Predict([][]float64{{0}, {10}}) {
		assert.InDelta(t, 7, p, 1e-9)
	}
}

func TestRegressor_FitErrors(t *testing.T) {
	tests := []struct {
		name string
		x    [][]float64
		y    []float64
	}{
		{"no rows", nil, nil},
		{"length mismatch", [][]float64{{1}, {2}}, []float64{1}},
		{"ragged rows", [][]float64{{1, 2}, {2}}, []float64{1, 2}},
		{"infinite feature", [][]float64{{math.Inf(1)}, {2}}, []float64{1, 2}},
		{"nan target", [][]float64{{1}, {2}}, []float64{math.NaN(), 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := NewRegressor(DefaultParams())
			assert.Error(t, model.Fit(tt.x, tt.y))
		})
	}

	bad := NewRegressor(Params{LearningRate: 2})
	assert.Error(t, bad.Fit([][]float64{{1}, {2}}, []float64{1, 2}))
}

func TestParams_Validate(t *testing.T) {
	assert.NoError(t, Params{}.Validate(), "zero values take the defaults")

	tests := []struct {
		params Params
		msg    string
	}{
		{Params{Rounds: -1}, "rounds must not be negative, got -1"},
		{Params{MaxDepth: -2}, "max depth must not be negative, got -2"},
		{Params{LearningRate: -0.1}, "learning rate must be in [0, 1], got -0.1"},
		{Params{LearningRate: 1.5}, "learning rate must be in [0, 1], got 1.5"},
		{Params{Lambda: -1}, "lambda must be non-negative, got -1"},
	}
	for _, tt := range tests {
		assert.EqualError(t, tt.params.Validate(), tt.msg)
	}
}

func TestRegressor_UnfittedPredictsZero(t *testing.T) {
	assert.Equal(t, []float64{0, 0}, NewRegressor(DefaultParams()).Predict([][]float64{{1}, {2}}))
}

func TestTargetEncoder_Smoothing(t *testing.T) {
	// 30 rows of "big" with mean 10, 2 rows of "small" with mean 0, 1 row of "single".
	var cats []string
	var y []float64
	for i := 0; i < 30; i++ {
		cats = append(cats, "big")
		y = append(y, 10)
	}
	cats = append(cats, "small", "small", "single")
	y = append(y, 0, 0, 0)

	enc := NewTargetEncoder(0.8, 20)
	require.NoError(t, enc.Fit(cats, y))

	prior := 300.0 / 33.0
	assert.InDelta(t, prior, enc.Prior(), 1e-12)

	out := enc.Transform([]string{"big", "small", "single", "unseen", ""})
	assert.InDelta(t, 10, out[0], 1e-3, "large category keeps its own mean")
	assert.InDelta(t, prior, out[1], 1e-3, "small category shrinks to prior")
	assert.Equal(t, prior, out[2], "single-row category is the prior")
	assert.Equal(t, prior, out[3])
	assert.Equal(t, prior, out[4])
}

func TestTargetEncoder_Errors(t *testing.T) {
	assert.Error(t, NewTargetEncoder(0.8, 20).Fit([]string{"a"}, nil))
	assert.Error(t, NewTargetEncoder(0.8, 20).Fit(nil, nil))
	assert.Error(t, NewTargetEncoder(0, 20).Fit([]string{"a"}, []float64{1}))
}
