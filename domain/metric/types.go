package metric

import (
	"fmt"
	"strings"
	"time"

	"variatio/domain/core"
)

// Kind identifies what a metric measures
type Kind string

const (
	KindCount        Kind = "count"
	KindAttributeSum Kind = "attribute_sum"
	KindConversion   Kind = "conversion"
)

// ParseKind parses a metric kind
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindCount, KindAttributeSum, KindConversion:
		return k, nil
	}
	return "", fmt.Errorf("%w: metric kind %q", core.ErrUnsupportedOperation, s)
}

// Operation is the per-user aggregation applied to qualifying events
type Operation string

const (
	OpCount      Operation = "count"
	OpSum        Operation = "sum"
	OpConversion Operation = "conversion"
)

// Operation returns the aggregation a metric kind relies on
func (k Kind) Operation() (Operation, error) {
	switch k {
	case KindCount:
		return OpCount, nil
	case KindAttributeSum:
		return OpSum, nil
	case KindConversion:
		return OpConversion, nil
	}
	return "", fmt.Errorf("%w: metric kind %q", core.ErrUnsupportedOperation, k)
}

// Definition identifies what was measured. It is immutable once a metric is
// computed.
type Definition struct {
	Kind          Kind   `json:"kind" yaml:"kind"`
	EventName     string `json:"event_name" yaml:"event"`
	AttributeName string `json:"attribute_name,omitempty" yaml:"attribute,omitempty"`
}

// Count defines an events-per-user metric
func Count(eventName string) Definition {
	return Definition{Kind: KindCount, EventName: eventName}
}

// AttributeSum defines a sum-of-attribute-per-user metric
func AttributeSum(eventName, attributeName string) Definition {
	return Definition{Kind: KindAttributeSum, EventName: eventName, AttributeName: attributeName}
}

// Conversion defines a converted-at-least-once metric
func Conversion(eventName string) Definition {
	return Definition{Kind: KindConversion, EventName: eventName}
}

// Validate checks that the definition names everything its kind needs
func (d Definition) Validate() error {
	if _, err := d.Kind.Operation(); err != nil {
		return err
	}
	if strings.TrimSpace(d.EventName) == "" {
		return fmt.Errorf("metric %s: event name is required", d.Kind)
	}
	if d.Kind == KindAttributeSum && strings.TrimSpace(d.AttributeName) == "" {
		return core.NewInvalidAttributeError(d.AttributeName, "attribute name is required for attribute_sum")
	}
	return nil
}

// Describe renders a human readable metric name
func (d Definition) Describe() string {
	switch d.Kind {
	case KindCount:
		return fmt.Sprintf("Count of '%s' events per user.", d.EventName)
	case KindAttributeSum:
		return fmt.Sprintf("Sum of '%s' for '%s' events per user.", d.AttributeName, d.EventName)
	case KindConversion:
		return fmt.Sprintf("Conversion rate to '%s' event per user.", d.EventName)
	default:
		return "Unknown metric type."
	}
}

// Method identifies the significance procedure behind a p-value
type Method string

const (
	// MethodChiSquare is reserved; conversion metrics use MethodTTest.
	MethodChiSquare         Method = "chi_square"
	MethodTTest             Method = "t_test"
	MethodPureCupedTTest    Method = "pure_cuped_t_test"
	MethodBoostedCupedTTest Method = "gboost_cuped_t_test"
)

// Correction is the multiple-comparison adjustment applied across treatment arms
type Correction string

const (
	CorrectionNone Correction = "none"
	CorrectionHolm Correction = "holm"
)

// ParseCorrection parses a correction name; empty means none
func ParseCorrection(s string) (Correction, error) {
	switch c := Correction(strings.ToLower(strings.TrimSpace(s))); c {
	case "", CorrectionNone:
		return CorrectionNone, nil
	case CorrectionHolm, "holm-bonferroni", "holm_bonferroni":
		return CorrectionHolm, nil
	}
	return "", fmt.Errorf("unknown p-value correction %q", s)
}

// Metric is one computed metric as kept by a session
type Metric struct {
	ID         core.MetricID `json:"id"`
	Definition Definition    `json:"definition"`
	Result     Result        `json:"result"`
	ComputedAt time.Time     `json:"computed_at"`
}
