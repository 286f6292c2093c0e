package boosting

import (
	"fmt"
	"math"
)

// TargetEncoder replaces a category with a smoothed mean of the target over
// the rows carrying that category. Small categories shrink toward the prior
// (the global target mean) along a sigmoid in the category count.
type TargetEncoder struct {
	Smoothing      float64
	MinSamplesLeaf float64

	prior    float64
	encoding map[string]float64
	fitted   bool
}

// NewTargetEncoder creates an encoder with the given smoothing and minimum samples per leaf
func NewTargetEncoder(smoothing, minSamplesLeaf float64) *TargetEncoder {
	return &TargetEncoder{Smoothing: smoothing, MinSamplesLeaf: minSamplesLeaf}
}

// Fit learns per-category encodings. Empty strings are treated as missing
// and never get their own encoding.
func (e *TargetEncoder) Fit(categories []string, target []float64) error {
	if len(categories) != len(target) {
		return fmt.Errorf("target encoder: %d categories for %d targets", len(categories), len(target))
	}
	if len(target) == 0 {
		return fmt.Errorf("target encoder: no rows")
	}
	if e.Smoothing <= 0 {
		return fmt.Errorf("target encoder: smoothing must be positive, got %g", e.Smoothing)
	}

	sums := make(map[string]float64)
	counts := make(map[string]float64)
	total := 0.0
	for i, c := range categories {
		total += target[i]
		if c == "" {
			continue
		}
		sums[c] += target[i]
		counts[c]++
	}
	e.prior = total / float64(len(target))

	e.encoding = make(map[string]float64, len(counts))
	for c, n := range counts {
		if n == 1 {
			e.encoding[c] = e.prior
			continue
		}
		mean := sums[c] / n
		weight := 1 / (1 + math.Exp(-(n-e.MinSamplesLeaf)/e.Smoothing))
		e.encoding[c] = e.prior*(1-weight) + mean*weight
	}
	e.fitted = true
	return nil
}

// Transform encodes categories; unseen or missing categories map to the prior
func (e *TargetEncoder) Transform(categories []string) []float64 {
	out := make([]float64, len(categories))
	for i, c := range categories {
		if v, ok := e.encoding[c]; ok {
			out[i] = v
			continue
		}
		out[i] = e.prior
	}
	return out
}

// Prior returns the global target mean learned by Fit
func (e *TargetEncoder) Prior() float64 {
	return e.prior
}
