package ports

import (
	"variatio/domain/experiment"
	"variatio/domain/metric"
)

// Covariates is the design data of a set of users, aligned by position: each
// user's pretest metric value and, optionally, their user properties.
type Covariates struct {
	Pretest []float64
	// Properties holds one entry per user; nil when the user has no property row.
	Properties []experiment.Attributes
	Columns    experiment.Columns
}

// Len returns the number of users
func (c Covariates) Len() int {
	return len(c.Pretest)
}

// Model predicts the intest value of each user from their covariates
type Model interface {
	Predict(c Covariates) []float64
}

// FitResult is either a usable model or a degraded one. A degraded result
// still carries a model (predicting zeros) plus the error that caused it.
type FitResult struct {
	Model    Model
	Degraded bool
	Err      error
}

// CovariateAdjuster fits a covariate model on control-arm rows only
type CovariateAdjuster interface {
	// Method is the significance method id results computed with this adjuster carry.
	Method() metric.Method
	Fit(control Covariates, target []float64) FitResult
}
