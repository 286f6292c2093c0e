package cuped

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"variatio/domain/metric"
	"variatio/ports"
)

// Identity leaves intest values untouched
type Identity struct{}

func NewIdentity() *Identity { return &Identity{} }

func (*Identity) Method() metric.Method { return metric.MethodTTest }

func (*Identity) Fit(ports.Covariates, []float64) ports.FitResult {
	return ports.FitResult{Model: ZeroModel{}}
}

// Linear regresses control intest on control pretest by ordinary least squares
type Linear struct{}

func NewLinear() *Linear { return &Linear{} }

func (*Linear) Method() metric.Method { return metric.MethodPureCupedTTest }

// Fit estimates intest = alpha + beta*pretest on control rows. A constant
// pretest column gives beta = 0 and alpha = mean(intest).
func (*Linear) Fit(control ports.Covariates, target []float64) ports.FitResult {
	x := control.Pretest
	if len(x) == 0 {
		return degraded(fmt.Errorf("linear cuped: no control rows"))
	}
	if len(x) != len(target) {
		return degraded(fmt.Errorf("linear cuped: %d pretest values for %d intest values", len(x), len(target)))
	}
	if !finite(x) || !finite(target) {
		return degraded(fmt.Errorf("linear cuped: non-finite input"))
	}

	if len(x) < 2 || stat.Variance(x, nil) == 0 {
		return ports.FitResult{Model: LinearModel{Alpha: floats.Sum(target) / float64(len(target))}}
	}
	alpha, beta := stat.LinearRegression(x, target, nil, false)
	return ports.FitResult{Model: LinearModel{Alpha: alpha, Beta: beta}}
}

// LinearModel predicts Alpha + Beta*pretest
type LinearModel struct {
	Alpha float64
	Beta  float64
}

func (m LinearModel) Predict(c ports.Covariates) []float64 {
	out := make([]float64, c.Len())
	for i, v := range c.Pretest {
		out[i] = m.Alpha + m.Beta*v
	}
	return out
}

func finite(v []float64) bool {
	for _, f := range v {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
