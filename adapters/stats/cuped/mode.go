// Package cuped implements covariate adjusters for variance reduction: no
// adjustment, linear CUPED on the pretest value, and boosted CUPED on the
// pretest value plus user properties.
package cuped

import (
	"fmt"
	"strings"

	"variatio/adapters/stats/boosting"
	"variatio/ports"
)

// Mode selects the covariate adjuster of a session
type Mode int

const (
	ModeNone Mode = iota
	ModeLinear
	ModeBoosted
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeLinear:
		return "linear_cuped"
	case ModeBoosted:
		return "boosted_cuped"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode accepts the canonical names and the historical aliases
// (no_enhancement, cuped, gboost_cuped)
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "no_enhancement", "":
		return ModeNone, nil
	case "linear_cuped", "cuped":
		return ModeLinear, nil
	case "boosted_cuped", "gboost_cuped":
		return ModeBoosted, nil
	}
	return 0, fmt.Errorf("unknown adjustment mode %q", s)
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Options tunes the boosted adjuster; other modes ignore it
type Options struct {
	Boosting       boosting.Params
	Smoothing      float64
	MinSamplesLeaf float64
}

// DefaultOptions returns the boosted CUPED defaults
func DefaultOptions() Options {
	return Options{
		Boosting:       boosting.DefaultParams(),
		Smoothing:      0.8,
		MinSamplesLeaf: 20,
	}
}

// New returns the adjuster for a mode
func New(mode Mode, opts Options) (ports.CovariateAdjuster, error) {
	switch mode {
	case ModeNone:
		return NewIdentity(), nil
	case ModeLinear:
		return NewLinear(), nil
	case ModeBoosted:
		if err := opts.Boosting.Validate(); err != nil {
			return nil, fmt.Errorf("boosted cuped: %w", err)
		}
		return NewBoosted(opts), nil
	}
	return nil, fmt.Errorf("unknown adjustment mode %d", int(mode))
}

// Adjust returns intest minus the model's prediction for each user
func Adjust(model ports.Model, covariates ports.Covariates, intest []float64) ([]float64, error) {
	if covariates.Len() != len(intest) {
		return nil, fmt.Errorf("%d covariate rows for %d intest values", covariates.Len(), len(intest))
	}
	predicted := model.Predict(covariates)
	adjusted := make([]float64, len(intest))
	for i := range intest {
		adjusted[i] = intest[i] - predicted[i]
	}
	return adjusted, nil
}

// ZeroModel predicts 0 for every row, leaving values unadjusted
type ZeroModel struct{}

func (ZeroModel) Predict(c ports.Covariates) []float64 {
	return make([]float64, c.Len())
}

func degraded(err error) ports.FitResult {
	return ports.FitResult{Model: ZeroModel{}, Degraded: true, Err: err}
}
