package aggregation

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"variatio/domain/core"
	"variatio/domain/experiment"
	"variatio/domain/metric"
)

// UserValue is the aggregated value of one allocated user in one window
type UserValue struct {
	UserID string
	Arm    string
	Value  float64
}

// Table holds exactly one row per allocated user, in allocation order
type Table struct {
	Rows []UserValue
}

// Values returns the per-user values of an arm, in table order
func (t Table) Values(arm string) []float64 {
	var out []float64
	for _, row := range t.Rows {
		if row.Arm == arm {
			out = append(out, row.Value)
		}
	}
	return out
}

// UserIDs returns the users of an arm, in table order
func (t Table) UserIDs(arm string) []string {
	var out []string
	for _, row := range t.Rows {
		if row.Arm == arm {
			out = append(out, row.UserID)
		}
	}
	return out
}

// Means maps arm to the mean per-user value. Arms without users are absent.
type Means map[string]float64

// Request describes one aggregation pass
type Request struct {
	EventName     string
	Operation     metric.Operation
	AttributeName string
	Window        experiment.Window
}

// EventAggregator turns raw events into per-user values anchored on allocations
type EventAggregator struct{}

// NewEventAggregator creates a new event aggregator
func NewEventAggregator() *EventAggregator {
	return &EventAggregator{}
}

// Aggregate filters events to req.EventName, joins them to each user's
// allocation instant, keeps those inside req.Window and folds them per user.
// Users allocated but without qualifying events get 0.
func (a *EventAggregator) Aggregate(events experiment.EventTable, allocations experiment.AllocationTable, req Request) (Table, Means, error) {
	if err := checkOperation(events, req); err != nil {
		return Table{}, nil, err
	}

	allocIndex := allocations.Index()
	perUser := make(map[string]float64, len(allocIndex))

	for _, ev := range events.Rows {
		if ev.Name != req.EventName {
			continue
		}
		alloc, ok := allocIndex[ev.UserID]
		if !ok {
			continue
		}
		if !req.Window.Contains(ev.Timestamp, alloc.Timestamp) {
			continue
		}

		switch req.Operation {
		case metric.OpCount:
			perUser[ev.UserID]++
		case metric.OpSum:
			// missing and NaN cells contribute nothing
			if v, ok := ev.Attributes[req.AttributeName]; ok && v.Kind == experiment.KindNumeric && !math.IsNaN(v.Num) {
				perUser[ev.UserID] += v.Num
			}
		case metric.OpConversion:
			perUser[ev.UserID] = 1
		}
	}

	table := Table{Rows: make([]UserValue, 0, len(allocations.Rows))}
	for _, alloc := range allocations.Rows {
		table.Rows = append(table.Rows, UserValue{
			UserID: alloc.UserID,
			Arm:    alloc.Arm,
			Value:  perUser[alloc.UserID],
		})
	}

	return table, armMeans(table, allocations.Arms()), nil
}

func checkOperation(events experiment.EventTable, req Request) error {
	switch req.Operation {
	case metric.OpCount, metric.OpConversion:
		return nil
	case metric.OpSum:
		col, ok := events.Columns.Lookup(req.AttributeName)
		if !ok {
			return core.NewInvalidAttributeError(req.AttributeName, "not found in event data")
		}
		if col.Kind != experiment.KindNumeric {
			return core.NewInvalidAttributeError(req.AttributeName, "not numeric")
		}
		return nil
	default:
		return fmt.Errorf("%w: aggregation %q", core.ErrUnsupportedOperation, req.Operation)
	}
}

func armMeans(table Table, arms []string) Means {
	means := make(Means, len(arms))
	for _, arm := range arms {
		mean, err := stats.Mean(table.Values(arm))
		if err != nil {
			continue
		}
		means[arm] = mean
	}
	return means
}
