// Package boosting implements gradient-boosted regression trees for squared
// error loss, plus the target encoder used to feed categorical columns to them.
package boosting

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Params configures the regressor. Zero Rounds, MaxDepth, LearningRate and
// MinChildWeight fall back to DefaultParams; a zero Lambda is kept.
type Params struct {
	Rounds         int     `json:"rounds"`
	MaxDepth       int     `json:"max_depth"`
	LearningRate   float64 `json:"learning_rate"`
	Lambda         float64 `json:"lambda"`
	MinChildWeight float64 `json:"min_child_weight"`
}

// DefaultParams mirrors common gradient boosting defaults for regression
func DefaultParams() Params {
	return Params{
		Rounds:         100,
		MaxDepth:       6,
		LearningRate:   0.3,
		Lambda:         1,
		MinChildWeight: 1,
	}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.Rounds == 0 {
		p.Rounds = d.Rounds
	}
	if p.MaxDepth == 0 {
		p.MaxDepth = d.MaxDepth
	}
	if p.LearningRate == 0 {
		p.LearningRate = d.LearningRate
	}
	if p.MinChildWeight == 0 {
		p.MinChildWeight = d.MinChildWeight
	}
	return p
}

// Validate rejects parameter sets the fitter cannot use. Zero Rounds,
// MaxDepth, LearningRate and MinChildWeight fall back to DefaultParams.
func (p Params) Validate() error {
	p = p.withDefaults()
	switch {
	case p.Rounds < 0:
		return fmt.Errorf("rounds must not be negative, got %d", p.Rounds)
	case p.MaxDepth < 0:
		return fmt.Errorf("max depth must not be negative, got %d", p.MaxDepth)
	case p.LearningRate < 0 || p.LearningRate > 1:
		return fmt.Errorf("learning rate must be in [0, 1], got %g", p.LearningRate)
	case p.Lambda < 0:
		return fmt.Errorf("lambda must be non-negative, got %g", p.Lambda)
	case p.MinChildWeight < 0:
		return fmt.Errorf("min child weight must be non-negative, got %g", p.MinChildWeight)
	}
	return nil
}

type node struct {
	leaf      bool
	weight    float64
	feature   int
	threshold float64
	left      *node
	right     *node
}

func (n *node) predict(row []float64) float64 {
	for !n.leaf {
		if row[n.feature] < n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.weight
}

// Regressor is a gradient-boosted ensemble of regression trees
type Regressor struct {
	params    Params
	baseScore float64
	trees     []*node
	features  int
	fitted    bool
}

// NewRegressor creates an unfitted regressor
func NewRegressor(params Params) *Regressor {
	return &Regressor{params: params.withDefaults()}
}

// Fit grows the ensemble on rows x and targets y. Each round fits a tree to
// the residuals of the current prediction with second-order leaf weights.
func (r *Regressor) Fit(x [][]float64, y []float64) error {
	if err := r.params.Validate(); err != nil {
		return err
	}
	if len(x) == 0 {
		return fmt.Errorf("no training rows")
	}
	if len(x) != len(y) {
		return fmt.Errorf("%d rows for %d targets", len(x), len(y))
	}
	r.features = len(x[0])
	for i, row := range x {
		if len(row) != r.features {
			return fmt.Errorf("row %d has %d features, expected %d", i, len(row), r.features)
		}
		if !allFinite(row) {
			return fmt.Errorf("row %d has a non-finite feature", i)
		}
	}
	if !allFinite(y) {
		return fmt.Errorf("target has a non-finite value")
	}

	r.baseScore = floats.Sum(y) / float64(len(y))
	r.trees = r.trees[:0]
	r.fitted = true

	pred := make([]float64, len(y))
	for i := range pred {
		pred[i] = r.baseScore
	}
	residual := make([]float64, len(y))
	all := make([]int, len(y))
	for i := range all {
		all[i] = i
	}

	for round := 0; round < r.params.Rounds; round++ {
		floats.SubTo(residual, y, pred)
		tree := r.grow(x, residual, all, 0)
		r.trees = append(r.trees, tree)
		for i, row := range x {
			pred[i] += r.params.LearningRate * tree.predict(row)
		}
	}
	return nil
}

// Predict scores rows; an unfitted regressor predicts zeros
func (r *Regressor) Predict(x [][]float64) []float64 {
	out := make([]float64, len(x))
	if !r.fitted {
		return out
	}
	for i, row := range x {
		v := r.baseScore
		for _, tree := range r.trees {
			v += r.params.LearningRate * tree.predict(row)
		}
		out[i] = v
	}
	return out
}

// Trees returns the number of fitted trees
func (r *Regressor) Trees() int {
	return len(r.trees)
}

// grow builds one tree over the given rows. With squared error every row has
// hessian 1, so the hessian sum of a node is its row count.
func (r *Regressor) grow(x [][]float64, residual []float64, rows []int, depth int) *node {
	sum := 0.0
	for _, i := range rows {
		sum += residual[i]
	}
	count := float64(len(rows))
	leaf := &node{leaf: true, weight: sum / (count + r.params.Lambda)}

	if depth >= r.params.MaxDepth || count < 2*r.params.MinChildWeight || len(rows) < 2 {
		return leaf
	}

	parentScore := sum * sum / (count + r.params.Lambda)
	bestGain := 0.0
	bestFeature := -1
	bestThreshold := 0.0

	sorted := make([]int, len(rows))
	for f := 0; f < r.features; f++ {
		copy(sorted, rows)
		sort.SliceStable(sorted, func(a, b int) bool { return x[sorted[a]][f] < x[sorted[b]][f] })

		leftSum := 0.0
		for k := 0; k < len(sorted)-1; k++ {
			leftSum += residual[sorted[k]]
			cur, next := x[sorted[k]][f], x[sorted[k+1]][f]
			if cur == next {
				continue
			}
			leftCount := float64(k + 1)
			rightCount := count - leftCount
			if leftCount < r.params.MinChildWeight || rightCount < r.params.MinChildWeight {
				continue
			}
			rightSum := sum - leftSum
			gain := leftSum*leftSum/(leftCount+r.params.Lambda) +
				rightSum*rightSum/(rightCount+r.params.Lambda) - parentScore
			if gain > bestGain+1e-12 {
				bestGain = gain
				bestFeature = f
				bestThreshold = cur + (next-cur)/2
			}
		}
	}

	if bestFeature < 0 {
		return leaf
	}

	var left, right []int
	for _, i := range rows {
		if x[i][bestFeature] < bestThreshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return &node{
		feature:   bestFeature,
		threshold: bestThreshold,
		left:      r.grow(x, residual, left, depth+1),
		right:     r.grow(x, residual, right, depth+1),
	}
}

func allFinite(v []float64) bool {
	for _, f := range v {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
