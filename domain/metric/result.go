package metric

import (
	"encoding/json"
	"math"
)

// Result is the outcome of one metric computation. It is built once by
// NewResult and exposes read-only accessors; the maps it holds never leak.
type Result struct {
	controlArm    string
	treatmentArms []string
	means         map[string]float64
	pValues       map[string]float64
	method        Method
	correction    Correction
	degraded      bool
}

// ResultInput carries everything a Result is built from
type ResultInput struct {
	ControlArm    string
	TreatmentArms []string
	// Means holds the unadjusted per-arm mean. Arms without data are absent.
	Means map[string]float64
	// PValues holds one p-value per treatment arm. NaN means undefined.
	PValues    map[string]float64
	Method     Method
	Correction Correction
	// Degraded is set when covariate adjustment fell back to no adjustment.
	Degraded bool
}

// NewResult builds an immutable result. Only the control and treatment arms
// are kept; a treatment arm with no p-value is recorded as NaN.
func NewResult(in ResultInput) Result {
	r := Result{
		controlArm:    in.ControlArm,
		treatmentArms: append([]string(nil), in.TreatmentArms...),
		means:         make(map[string]float64, len(in.TreatmentArms)+1),
		pValues:       make(map[string]float64, len(in.TreatmentArms)),
		method:        in.Method,
		correction:    in.Correction,
		degraded:      in.Degraded,
	}
	if r.correction == "" {
		r.correction = CorrectionNone
	}

	for _, arm := range append([]string{in.ControlArm}, in.TreatmentArms...) {
		if v, ok := in.Means[arm]; ok {
			r.means[arm] = v
		}
	}
	for _, arm := range in.TreatmentArms {
		p, ok := in.PValues[arm]
		if !ok {
			p = math.NaN()
		}
		r.pValues[arm] = p
	}
	return r
}

func (r Result) ControlArm() string { return r.controlArm }

// TreatmentArms returns a copy of the treatment arm labels
func (r Result) TreatmentArms() []string {
	return append([]string(nil), r.treatmentArms...)
}

// Mean returns the unadjusted mean for an arm; ok is false when the arm had no data
func (r Result) Mean(arm string) (float64, bool) {
	v, ok := r.means[arm]
	return v, ok
}

// PValue returns the p-value of a treatment arm against control. NaN means
// the test was undefined; ok is false for arms that are not treatment arms.
func (r Result) PValue(arm string) (float64, bool) {
	v, ok := r.pValues[arm]
	return v, ok
}

// Means returns a copy of the per-arm mean map
func (r Result) Means() map[string]float64 {
	out := make(map[string]float64, len(r.means))
	for k, v := range r.means {
		out[k] = v
	}
	return out
}

// PValues returns a copy of the per-treatment-arm p-value map
func (r Result) PValues() map[string]float64 {
	out := make(map[string]float64, len(r.pValues))
	for k, v := range r.pValues {
		out[k] = v
	}
	return out
}

func (r Result) Method() Method         { return r.method }
func (r Result) Correction() Correction { return r.correction }
func (r Result) Degraded() bool         { return r.degraded }

// resultJSON is the wire form. NaN p-values and missing means encode as null.
type resultJSON struct {
	ControlArm    string              `json:"control_arm"`
	TreatmentArms []string            `json:"treatment_arms"`
	Means         map[string]*float64 `json:"means"`
	PValues       map[string]*float64 `json:"p_values"`
	Method        Method              `json:"method"`
	Correction    Correction          `json:"correction"`
	Degraded      bool                `json:"degraded"`
}

func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		ControlArm:    r.controlArm,
		TreatmentArms: r.treatmentArms,
		Means:         make(map[string]*float64),
		PValues:       make(map[string]*float64),
		Method:        r.method,
		Correction:    r.correction,
		Degraded:      r.degraded,
	}
	if out.TreatmentArms == nil {
		out.TreatmentArms = []string{}
	}
	for _, arm := range append([]string{r.controlArm}, r.treatmentArms...) {
		out.Means[arm] = finitePtr(r.means, arm)
	}
	for _, arm := range r.treatmentArms {
		out.PValues[arm] = finitePtr(r.pValues, arm)
	}
	return json.Marshal(out)
}

func (r *Result) UnmarshalJSON(data []byte) error {
	var in resultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	means := make(map[string]float64)
	for arm, v := range in.Means {
		if v != nil {
			means[arm] = *v
		}
	}
	pValues := make(map[string]float64)
	for arm, v := range in.PValues {
		if v != nil {
			pValues[arm] = *v
		}
	}
	*r = NewResult(ResultInput{
		ControlArm:    in.ControlArm,
		TreatmentArms: in.TreatmentArms,
		Means:         means,
		PValues:       pValues,
		Method:        in.Method,
		Correction:    in.Correction,
		Degraded:      in.Degraded,
	})
	return nil
}

func finitePtr(m map[string]float64, key string) *float64 {
	v, ok := m[key]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
