// Package experiment holds the input tables of an A/B/n analysis: raw
// behavioral events, per-user arm allocations and optional user properties.
package experiment

import (
	"fmt"
	"strconv"
	"time"
)

// ValueKind distinguishes numeric from categorical attribute values
type ValueKind string

const (
	KindNumeric     ValueKind = "numeric"
	KindCategorical ValueKind = "categorical"
)

// Valid reports whether the kind is one of the known kinds
func (k ValueKind) Valid() bool {
	return k == KindNumeric || k == KindCategorical
}

// Value is a single attribute cell. Exactly one of Num or Cat is meaningful,
// selected by Kind.
type Value struct {
	Kind ValueKind `json:"kind"`
	Num  float64   `json:"num,omitempty"`
	Cat  string    `json:"cat,omitempty"`
}

// Numeric builds a numeric value
func Numeric(v float64) Value {
	return Value{Kind: KindNumeric, Num: v}
}

// Categorical builds a categorical value
func Categorical(v string) Value {
	return Value{Kind: KindCategorical, Cat: v}
}

// String renders the value for logs and reports
func (v Value) String() string {
	if v.Kind == KindNumeric {
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	}
	return v.Cat
}

// Attributes maps column name to cell value
type Attributes map[string]Value

// Column declares an attribute column and its kind
type Column struct {
	Name string    `json:"name"`
	Kind ValueKind `json:"kind"`
}

// Columns is an ordered attribute schema
type Columns []Column

// Lookup finds a column by name
func (cs Columns) Lookup(name string) (Column, bool) {
	for _, c := range cs {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Event is one behavioral event row: |timestamp|userid|event_name|attributes...|
type Event struct {
	Timestamp  time.Time  `json:"timestamp"`
	UserID     string     `json:"userid"`
	Name       string     `json:"event_name"`
	Attributes Attributes `json:"attributes,omitempty"`
}

// EventTable is the event log plus the schema of its attribute columns
type EventTable struct {
	Columns Columns `json:"columns"`
	Rows    []Event `json:"rows"`
}

// Allocation assigns a user to an arm at an instant: |timestamp|userid|arm|
type Allocation struct {
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"userid"`
	Arm       string    `json:"arm"`
}

// AllocationTable holds one allocation per user
type AllocationTable struct {
	Rows []Allocation `json:"rows"`
}

// Arms returns the distinct arm labels in order of first appearance
func (t AllocationTable) Arms() []string {
	seen := make(map[string]bool)
	var arms []string
	for _, row := range t.Rows {
		if !seen[row.Arm] {
			seen[row.Arm] = true
			arms = append(arms, row.Arm)
		}
	}
	return arms
}

// Index maps userid to its allocation. Callers rely on validated tables, so
// a duplicate userid keeps the last row.
func (t AllocationTable) Index() map[string]Allocation {
	idx := make(map[string]Allocation, len(t.Rows))
	for _, row := range t.Rows {
		idx[row.UserID] = row
	}
	return idx
}

// UserProperties is one row of per-user attributes: |userid|property...|
type UserProperties struct {
	UserID     string     `json:"userid"`
	Attributes Attributes `json:"attributes"`
}

// PropertyTable holds at most one property row per user
type PropertyTable struct {
	Columns Columns          `json:"columns"`
	Rows    []UserProperties `json:"rows"`
}

// Empty reports whether the table carries no usable properties
func (t *PropertyTable) Empty() bool {
	return t == nil || len(t.Rows) == 0 || len(t.Columns) == 0
}

// Index maps userid to its attributes
func (t *PropertyTable) Index() map[string]Attributes {
	if t == nil {
		return nil
	}
	idx := make(map[string]Attributes, len(t.Rows))
	for _, row := range t.Rows {
		idx[row.UserID] = row.Attributes
	}
	return idx
}

// Window selects events relative to the user's allocation instant
type Window int

const (
	// Pretest covers events strictly before allocation.
	Pretest Window = iota
	// Intest covers events at or after allocation.
	Intest
)

func (w Window) String() string {
	switch w {
	case Pretest:
		return "pretest"
	case Intest:
		return "intest"
	default:
		return fmt.Sprintf("window(%d)", int(w))
	}
}

// Contains reports whether an event at eventAt falls in the window for a
// user allocated at allocatedAt
func (w Window) Contains(eventAt, allocatedAt time.Time) bool {
	if w == Pretest {
		return eventAt.Before(allocatedAt)
	}
	return !eventAt.Before(allocatedAt)
}
