// Package significance compares control and treatment samples with Welch's
// two-sample t-test.
package significance

import (
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

// WelchResult is the outcome of one Welch's t-test
type WelchResult struct {
	T      float64
	DF     float64
	PValue float64
}

// undefined is returned when the test cannot be computed
var undefined = WelchResult{T: math.NaN(), DF: math.NaN(), PValue: math.NaN()}

// WelchTTest performs a two-sided Welch's t-test of a against b. Samples
// with fewer than two values, or a zero standard error, give NaN. Two
// constant samples with different means therefore give NaN, where scipy's
// ttest_ind reports t=±inf and p=0.
func WelchTTest(a, b []float64) WelchResult {
	n1 := float64(len(a))
	n2 := float64(len(b))
	if n1 < 2 || n2 < 2 {
		return undefined
	}

	mean1, err := stats.Mean(a)
	if err != nil {
		return undefined
	}
	mean2, err := stats.Mean(b)
	if err != nil {
		return undefined
	}
	var1, err := stats.SampleVariance(a)
	if err != nil {
		return undefined
	}
	var2, err := stats.SampleVariance(b)
	if err != nil {
		return undefined
	}

	// t = (mean1 - mean2) / sqrt(var1/n1 + var2/n2)
	v1, v2 := var1/n1, var2/n2
	se := math.Sqrt(v1 + v2)
	if se == 0 || math.IsNaN(se) || math.IsInf(se, 0) {
		return undefined
	}
	t := (mean1 - mean2) / se

	// Welch-Satterthwaite degrees of freedom
	df := (v1 + v2) * (v1 + v2) / (v1*v1/(n1-1) + v2*v2/(n2-1))

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * dist.Survival(math.Abs(t))
	if p > 1 {
		p = 1
	}
	return WelchResult{T: t, DF: df, PValue: p}
}
