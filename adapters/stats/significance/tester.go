package significance

import (
	"math"
	"sort"

	"variatio/domain/metric"
)

// Tester compares every treatment arm to the control arm
type Tester struct {
	correction metric.Correction
}

// NewTester creates a tester applying the given multiple-comparison correction
func NewTester(correction metric.Correction) *Tester {
	if correction == "" {
		correction = metric.CorrectionNone
	}
	return &Tester{correction: correction}
}

// Correction returns the correction the tester applies
func (t *Tester) Correction() metric.Correction {
	return t.correction
}

// Compare runs Welch's t-test of each treatment arm (in arms order) against
// control. Arms missing from treatments get NaN.
func (t *Tester) Compare(control []float64, treatments map[string][]float64, arms []string) map[string]float64 {
	pValues := make(map[string]float64, len(arms))
	for _, arm := range arms {
		sample, ok := treatments[arm]
		if !ok {
			pValues[arm] = math.NaN()
			continue
		}
		pValues[arm] = WelchTTest(control, sample).PValue
	}

	if t.correction == metric.CorrectionHolm {
		return Holm(pValues)
	}
	return pValues
}

// Holm applies the Holm-Bonferroni step-down adjustment over the finite
// p-values. NaN entries stay NaN and do not count toward the family size.
func Holm(pValues map[string]float64) map[string]float64 {
	type entry struct {
		key string
		p   float64
	}
	adjusted := make(map[string]float64, len(pValues))
	var family []entry
	for k, p := range pValues {
		if math.IsNaN(p) {
			adjusted[k] = p
			continue
		}
		family = append(family, entry{k, p})
	}
	sort.Slice(family, func(i, j int) bool {
		if family[i].p == family[j].p {
			return family[i].key < family[j].key
		}
		return family[i].p < family[j].p
	})

	m := len(family)
	running := 0.0
	for j, e := range family {
		v := math.Min(1, float64(m-j)*e.p)
		running = math.Max(running, v)
		adjusted[e.key] = running
	}
	return adjusted
}
