package app

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"variatio/adapters/stats/cuped"
	"variatio/domain/metric"
)

// Plan is an analysis plan: which arm is control, how to adjust, and which
// metrics to compute.
//
//	control_arm: A
//	mode: linear_cuped
//	correction: holm
//	metrics:
//	  - kind: attribute_sum
//	    event: purchase
//	    attribute: purchase_value
type Plan struct {
	ControlArm string              `yaml:"control_arm" json:"control_arm"`
	Mode       string              `yaml:"mode,omitempty" json:"mode,omitempty"`
	Correction string              `yaml:"correction,omitempty" json:"correction,omitempty"`
	Metrics    []metric.Definition `yaml:"metrics" json:"metrics"`
}

// LoadPlan reads and validates a YAML plan file
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan %s: %w", path, err)
	}
	return ParsePlan(data)
}

// ParsePlan decodes and validates a YAML plan
func ParsePlan(data []byte) (*Plan, error) {
	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to decode plan: %w", err)
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

// Validate checks the control arm, the optional enums and every metric
func (p *Plan) Validate() error {
	if p.ControlArm == "" {
		return fmt.Errorf("plan: control_arm is required")
	}
	if len(p.Metrics) == 0 {
		return fmt.Errorf("plan: at least one metric is required")
	}
	if p.Mode != "" {
		if _, err := cuped.ParseMode(p.Mode); err != nil {
			return fmt.Errorf("plan: %w", err)
		}
	}
	if _, err := metric.ParseCorrection(p.Correction); err != nil {
		return fmt.Errorf("plan: %w", err)
	}
	for i, def := range p.Metrics {
		if err := def.Validate(); err != nil {
			return fmt.Errorf("plan: metric %d: %w", i, err)
		}
	}
	return nil
}

// Options turns the plan's mode and correction into session options. Fields
// left empty in the plan fall back to the given defaults.
func (p *Plan) Options(defaultMode cuped.Mode, defaultCorrection metric.Correction) ([]Option, error) {
	mode := defaultMode
	if p.Mode != "" {
		m, err := cuped.ParseMode(p.Mode)
		if err != nil {
			return nil, err
		}
		mode = m
	}
	correction := defaultCorrection
	if p.Correction != "" {
		c, err := metric.ParseCorrection(p.Correction)
		if err != nil {
			return nil, err
		}
		correction = c
	}
	return []Option{WithMode(mode), WithCorrection(correction)}, nil
}
