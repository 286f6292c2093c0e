package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"variatio/adapters/stats/aggregation"
	"variatio/adapters/stats/boosting"
	"variatio/adapters/stats/cuped"
	"variatio/adapters/stats/significance"
	"variatio/domain/core"
	"variatio/domain/experiment"
	"variatio/domain/metric"
	"variatio/internal/errors"
	"variatio/internal/validation"
	"variatio/ports"
)

// SessionInput carries the tables an analysis session owns
type SessionInput struct {
	Events      experiment.EventTable
	Allocations experiment.AllocationTable
	// Properties is optional; nil means no user properties.
	Properties *experiment.PropertyTable
	ControlArm string
}

// Session computes metrics over one experiment's tables and keeps the
// results in computation order
type Session struct {
	id          core.SessionID
	events      experiment.EventTable
	allocations experiment.AllocationTable
	properties  *experiment.PropertyTable
	propIndex   map[string]experiment.Attributes
	control     string
	treatments  []string

	mode        cuped.Mode
	adjOptions  cuped.Options
	correction  metric.Correction
	parallelism int

	aggregator *aggregation.EventAggregator
	adjuster   ports.CovariateAdjuster
	tester     *significance.Tester
	store      *MetricResultStore
	logger     *zap.Logger
}

// Option configures a session
type Option func(*Session)

// WithMode selects the covariate adjustment mode
func WithMode(mode cuped.Mode) Option {
	return func(s *Session) { s.mode = mode }
}

// WithCorrection selects the multiple-comparison correction
func WithCorrection(c metric.Correction) Option {
	return func(s *Session) { s.correction = c }
}

// WithLogger sets the session logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAdjusterOptions sets the boosted adjuster tuning
func WithAdjusterOptions(opts cuped.Options) Option {
	return func(s *Session) { s.adjOptions = opts }
}

// WithBoostingParams overrides only the tree ensemble parameters
func WithBoostingParams(p boosting.Params) Option {
	return func(s *Session) { s.adjOptions.Boosting = p }
}

// WithParallelism bounds how many metrics ComputeAll runs at once
func WithParallelism(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// NewSession validates the tables and prepares a session. Invalid tables
// fail with a SCHEMA_ERROR wrapping a core.ErrSchema sentinel.
func NewSession(in SessionInput, opts ...Option) (*Session, error) {
	s := &Session{
		id:          core.NewSessionID(),
		events:      in.Events,
		allocations: in.Allocations,
		properties:  in.Properties,
		control:     in.ControlArm,
		mode:        cuped.ModeNone,
		adjOptions:  cuped.DefaultOptions(),
		correction:  metric.CorrectionNone,
		parallelism: 4,
		aggregator:  aggregation.NewEventAggregator(),
		store:       NewMetricResultStore(),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := validation.Tables(in.Events, in.Allocations, in.Properties, in.ControlArm); err != nil {
		return nil, errors.WithCode(errors.CodeSchemaError, err)
	}

	adjuster, err := cuped.New(s.mode, s.adjOptions)
	if err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, err)
	}
	s.adjuster = adjuster
	s.tester = significance.NewTester(s.correction)

	for _, arm := range in.Allocations.Arms() {
		if arm != in.ControlArm {
			s.treatments = append(s.treatments, arm)
		}
	}
	if !in.Properties.Empty() {
		s.propIndex = in.Properties.Index()
	}

	s.logger = s.logger.With(zap.String("session", s.id.String()))
	s.logger.Info("session created",
		zap.String("mode", s.mode.String()),
		zap.String("control", s.control),
		zap.Strings("treatments", s.treatments),
		zap.Int("users", len(in.Allocations.Rows)),
		zap.Int("events", len(in.Events.Rows)))
	return s, nil
}

func (s *Session) ID() core.SessionID { return s.id }
func (s *Session) ControlArm() string { return s.control }
func (s *Session) Mode() cuped.Mode   { return s.mode }

// TreatmentArms returns every allocated arm except control, in first-appearance order
func (s *Session) TreatmentArms() []string {
	return append([]string(nil), s.treatments...)
}

// Metrics returns the computed metrics in computation order
func (s *Session) Metrics() []metric.Metric {
	return s.store.List()
}

// Count computes the number of eventName events per user
func (s *Session) Count(eventName string) (metric.Metric, error) {
	return s.Compute(metric.Count(eventName))
}

// AttributeSum computes the per-user sum of attributeName over eventName events
func (s *Session) AttributeSum(eventName, attributeName string) (metric.Metric, error) {
	return s.Compute(metric.AttributeSum(eventName, attributeName))
}

// Conversion computes whether each user fired eventName at least once
func (s *Session) Conversion(eventName string) (metric.Metric, error) {
	return s.Compute(metric.Conversion(eventName))
}

// Compute runs one metric and records it. A failed metric leaves the
// recorded metrics untouched.
func (s *Session) Compute(def metric.Definition) (metric.Metric, error) {
	in, err := s.evaluate(def)
	if err != nil {
		return metric.Metric{}, err
	}
	return s.store.Record(def, in), nil
}

// ComputeAll evaluates defs concurrently and records them in order once all
// succeed. The first error cancels the rest and nothing is recorded.
func (s *Session) ComputeAll(ctx context.Context, defs []metric.Definition) ([]metric.Metric, error) {
	inputs := make([]metric.ResultInput, len(defs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, def := range defs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			in, err := s.evaluate(def)
			if err != nil {
				return fmt.Errorf("metric %d (%s): %w", i, def.Describe(), err)
			}
			inputs[i] = in
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]metric.Metric, len(defs))
	for i, def := range defs {
		out[i] = s.store.Record(def, inputs[i])
	}
	return out, nil
}

// evaluate aggregates the metric and tests every treatment arm against
// control. Conversion metrics compare the raw intest values; every other kind
// is adjusted with the session's covariate model fitted on control.
func (s *Session) evaluate(def metric.Definition) (metric.ResultInput, error) {
	start := time.Now()
	if err := def.Validate(); err != nil {
		return metric.ResultInput{}, classify(err)
	}
	op, err := def.Kind.Operation()
	if err != nil {
		return metric.ResultInput{}, classify(err)
	}

	req := aggregation.Request{EventName: def.EventName, Operation: op, AttributeName: def.AttributeName}

	req.Window = experiment.Intest
	intest, means, err := s.aggregator.Aggregate(s.events, s.allocations, req)
	if err != nil {
		return metric.ResultInput{}, classify(err)
	}

	var (
		samples  map[string][]float64
		method   metric.Method
		degraded bool
	)
	if def.Kind == metric.KindConversion {
		samples = s.rawSamples(intest)
		method = metric.MethodTTest
	} else {
		req.Window = experiment.Pretest
		pretest, _, err := s.aggregator.Aggregate(s.events, s.allocations, req)
		if err != nil {
			return metric.ResultInput{}, classify(err)
		}
		samples, degraded, err = s.adjustedSamples(def, intest, pretest)
		if err != nil {
			return metric.ResultInput{}, err
		}
		method = s.adjuster.Method()
	}

	pValues := s.tester.Compare(samples[s.control], samples, s.treatments)

	s.logger.Debug("metric computed",
		zap.String("metric", def.Describe()),
		zap.String("method", string(method)),
		zap.Duration("elapsed", time.Since(start)),
		zap.Bool("degraded", degraded))

	return metric.ResultInput{
		ControlArm:    s.control,
		TreatmentArms: s.treatments,
		Means:         means,
		PValues:       pValues,
		Method:        method,
		Correction:    s.tester.Correction(),
		Degraded:      degraded,
	}, nil
}

// rawSamples returns each non-empty arm's intest values unadjusted
func (s *Session) rawSamples(intest aggregation.Table) map[string][]float64 {
	samples := make(map[string][]float64, len(s.treatments)+1)
	for _, arm := range append([]string{s.control}, s.treatments...) {
		if values := intest.Values(arm); len(values) > 0 {
			samples[arm] = values
		}
	}
	return samples
}

// adjustedSamples fits the adjuster on control and returns each non-empty
// arm's intest values minus the model's prediction
func (s *Session) adjustedSamples(def metric.Definition, intest, pretest aggregation.Table) (map[string][]float64, bool, error) {
	controlCov := s.covariates(pretest, s.control)
	fit := s.adjuster.Fit(controlCov, intest.Values(s.control))
	if fit.Degraded {
		s.logger.Warn("covariate adjustment degraded to no adjustment",
			zap.String("metric", def.Describe()),
			zap.String("method", string(s.adjuster.Method())),
			zap.String("mode", s.mode.String()),
			zap.Int("rows", controlCov.Len()),
			zap.Error(fit.Err))
	}

	adjusted := make(map[string][]float64, len(s.treatments)+1)
	for _, arm := range append([]string{s.control}, s.treatments...) {
		cov := s.covariates(pretest, arm)
		if cov.Len() == 0 {
			continue
		}
		values, err := cuped.Adjust(fit.Model, cov, intest.Values(arm))
		if err != nil {
			return nil, false, errors.Wrapf(err, "adjusting arm %s", arm)
		}
		adjusted[arm] = values
	}
	return adjusted, fit.Degraded, nil
}

// covariates gathers an arm's pretest values and property rows, aligned with
// the arm's rows in the aggregated tables
func (s *Session) covariates(pretest aggregation.Table, arm string) ports.Covariates {
	cov := ports.Covariates{Pretest: pretest.Values(arm)}
	if s.propIndex == nil {
		return cov
	}
	cov.Columns = s.properties.Columns
	for _, userID := range pretest.UserIDs(arm) {
		cov.Properties = append(cov.Properties, s.propIndex[userID])
	}
	return cov
}

func classify(err error) error {
	switch {
	case errors.Is(err, core.ErrInvalidAttribute):
		return errors.WithCode(errors.CodeInvalidAttribute, err)
	case errors.Is(err, core.ErrUnsupportedOperation):
		return errors.WithCode(errors.CodeUnsupportedOperation, err)
	default:
		return errors.WithCode(errors.CodeInvalidInput, err)
	}
}
