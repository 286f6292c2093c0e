package cuped

import (
	"fmt"
	"math"

	"variatio/adapters/stats/boosting"
	"variatio/domain/experiment"
	"variatio/domain/metric"
	"variatio/ports"
)

// Boosted predicts intest from the pretest value and user properties with
// gradient-boosted trees. Categorical properties are target encoded against
// the control intest values.
type Boosted struct {
	opts Options
}

func NewBoosted(opts Options) *Boosted {
	if opts.Smoothing == 0 {
		opts.Smoothing = DefaultOptions().Smoothing
	}
	if opts.MinSamplesLeaf == 0 {
		opts.MinSamplesLeaf = DefaultOptions().MinSamplesLeaf
	}
	return &Boosted{opts: opts}
}

func (*Boosted) Method() metric.Method { return metric.MethodBoostedCupedTTest }

// Fit builds the feature matrix from control rows and trains the regressor.
// Any failure yields a degraded result whose model predicts zeros.
func (b *Boosted) Fit(control ports.Covariates, target []float64) ports.FitResult {
	if control.Len() == 0 {
		return degraded(fmt.Errorf("boosted cuped: no control rows"))
	}
	if control.Len() != len(target) {
		return degraded(fmt.Errorf("boosted cuped: %d covariate rows for %d intest values", control.Len(), len(target)))
	}

	features, err := fitFeatures(control, target, b.opts)
	if err != nil {
		return degraded(fmt.Errorf("boosted cuped: %w", err))
	}

	regressor := boosting.NewRegressor(b.opts.Boosting)
	if err := regressor.Fit(features.transform(control), target); err != nil {
		return degraded(fmt.Errorf("boosted cuped: %w", err))
	}
	return ports.FitResult{Model: &BoostedModel{features: features, regressor: regressor}}
}

// BoostedModel is a fitted feature pipeline plus regressor
type BoostedModel struct {
	features  *featureSet
	regressor *boosting.Regressor
}

func (m *BoostedModel) Predict(c ports.Covariates) []float64 {
	return m.regressor.Predict(m.features.transform(c))
}

// featureSet turns covariates into a dense matrix: the pretest value first,
// then one column per property in schema order.
type featureSet struct {
	columns  experiment.Columns
	means    map[string]float64
	encoders map[string]*boosting.TargetEncoder
}

func fitFeatures(c ports.Covariates, target []float64, opts Options) (*featureSet, error) {
	fs := &featureSet{
		columns:  c.Columns,
		means:    make(map[string]float64),
		encoders: make(map[string]*boosting.TargetEncoder),
	}
	if len(c.Properties) != 0 && len(c.Properties) != c.Len() {
		return nil, fmt.Errorf("%d property rows for %d users", len(c.Properties), c.Len())
	}

	for _, col := range c.Columns {
		switch col.Kind {
		case experiment.KindNumeric:
			sum, n := 0.0, 0
			for i := 0; i < c.Len(); i++ {
				v, ok := numericAt(c, i, col.Name)
				if !ok {
					continue
				}
				if math.IsInf(v, 0) {
					return nil, fmt.Errorf("property %q is infinite for row %d", col.Name, i)
				}
				sum += v
				n++
			}
			if n > 0 {
				fs.means[col.Name] = sum / float64(n)
			}
		case experiment.KindCategorical:
			cats := make([]string, c.Len())
			for i := range cats {
				cats[i] = categoricalAt(c, i, col.Name)
			}
			enc := boosting.NewTargetEncoder(opts.Smoothing, opts.MinSamplesLeaf)
			if err := enc.Fit(cats, target); err != nil {
				return nil, fmt.Errorf("property %q: %w", col.Name, err)
			}
			fs.encoders[col.Name] = enc
		default:
			return nil, fmt.Errorf("property %q has unknown kind %q", col.Name, col.Kind)
		}
	}
	return fs, nil
}

func (fs *featureSet) transform(c ports.Covariates) [][]float64 {
	rows := make([][]float64, c.Len())
	for i := range rows {
		row := make([]float64, 1+len(fs.columns))
		row[0] = c.Pretest[i]
		rows[i] = row
	}

	for j, col := range fs.columns {
		if enc, ok := fs.encoders[col.Name]; ok {
			cats := make([]string, c.Len())
			for i := range cats {
				cats[i] = categoricalAt(c, i, col.Name)
			}
			for i, v := range enc.Transform(cats) {
				rows[i][j+1] = v
			}
			continue
		}
		for i := range rows {
			v, ok := numericAt(c, i, col.Name)
			if !ok {
				v = fs.means[col.Name]
			}
			rows[i][j+1] = v
		}
	}
	return rows
}

// numericAt reports false for a missing or NaN cell
func numericAt(c ports.Covariates, i int, name string) (float64, bool) {
	if i >= len(c.Properties) || c.Properties[i] == nil {
		return 0, false
	}
	v, ok := c.Properties[i][name]
	if !ok || v.Kind != experiment.KindNumeric || math.IsNaN(v.Num) {
		return 0, false
	}
	return v.Num, true
}

func categoricalAt(c ports.Covariates, i int, name string) string {
	if i >= len(c.Properties) || c.Properties[i] == nil {
		return ""
	}
	v, ok := c.Properties[i][name]
	if !ok || v.Kind != experiment.KindCategorical {
		return ""
	}
	return v.Cat
}
