// Package validation checks experiment input tables before any metric is
// computed on them.
package validation

import (
	"fmt"

	"variatio/domain/core"
	"variatio/domain/experiment"
)

var (
	eventReserved    = map[string]bool{"timestamp": true, "userid": true, "event_name": true}
	propertyReserved = map[string]bool{"userid": true}
)

// Tables checks all input tables plus the control arm
func Tables(events experiment.EventTable, allocations experiment.AllocationTable, properties *experiment.PropertyTable, controlArm string) error {
	if err := Allocations(allocations, controlArm); err != nil {
		return err
	}
	if err := Events(events); err != nil {
		return err
	}
	if properties != nil {
		if err := Properties(*properties); err != nil {
			return err
		}
	}
	return nil
}

// Allocations requires one row per user, non-empty fields and the control arm
func Allocations(t experiment.AllocationTable, controlArm string) error {
	seen := make(map[string]int, len(t.Rows))
	hasControl := false
	for i, row := range t.Rows {
		switch {
		case row.UserID == "":
			return core.NewSchemaError(core.ErrMissingField, "allocations", i, "userid is empty")
		case row.Arm == "":
			return core.NewSchemaError(core.ErrMissingField, "allocations", i, "arm is empty")
		case row.Timestamp.IsZero():
			return core.NewSchemaError(core.ErrMissingField, "allocations", i, "timestamp is missing")
		}
		if first, ok := seen[row.UserID]; ok {
			return core.NewSchemaError(core.ErrDuplicateUser, "allocations", i,
				fmt.Sprintf("userid %q already allocated at row %d", row.UserID, first))
		}
		seen[row.UserID] = i
		if row.Arm == controlArm {
			hasControl = true
		}
	}
	if !hasControl {
		return fmt.Errorf("%w: %q", core.ErrMissingControl, controlArm)
	}
	return nil
}

// Events checks required fields and attribute cells against the column schema
func Events(t experiment.EventTable) error {
	if err := columns("events", t.Columns, eventReserved); err != nil {
		return err
	}
	for i, row := range t.Rows {
		switch {
		case row.UserID == "":
			return core.NewSchemaError(core.ErrMissingField, "events", i, "userid is empty")
		case row.Name == "":
			return core.NewSchemaError(core.ErrMissingField, "events", i, "event_name is empty")
		case row.Timestamp.IsZero():
			return core.NewSchemaError(core.ErrMissingField, "events", i, "timestamp is missing")
		}
		if err := cells("events", i, t.Columns, row.Attributes); err != nil {
			return err
		}
	}
	return nil
}

// Properties requires at most one row per user and cells matching the schema
func Properties(t experiment.PropertyTable) error {
	if err := columns("properties", t.Columns, propertyReserved); err != nil {
		return err
	}
	seen := make(map[string]bool, len(t.Rows))
	for i, row := range t.Rows {
		if row.UserID == "" {
			return core.NewSchemaError(core.ErrMissingField, "properties", i, "userid is empty")
		}
		if seen[row.UserID] {
			return core.NewSchemaError(core.ErrDuplicateUser, "properties", i, fmt.Sprintf("userid %q", row.UserID))
		}
		seen[row.UserID] = true
		if err := cells("properties", i, t.Columns, row.Attributes); err != nil {
			return err
		}
	}
	return nil
}

func columns(table string, cols experiment.Columns, reserved map[string]bool) error {
	names := make(map[string]bool, len(cols))
	for i, c := range cols {
		if c.Name == "" {
			return core.NewSchemaError(core.ErrMissingField, table, i, "column name is empty")
		}
		if reserved[c.Name] {
			return core.NewSchemaError(core.ErrReservedColumn, table, i, c.Name)
		}
		if names[c.Name] {
			return core.NewSchemaError(core.ErrDuplicateColumn, table, i, c.Name)
		}
		if !c.Kind.Valid() {
			return core.NewSchemaError(core.ErrKindMismatch, table, i, fmt.Sprintf("column %q has kind %q", c.Name, c.Kind))
		}
		names[c.Name] = true
	}
	return nil
}

func cells(table string, row int, cols experiment.Columns, attrs experiment.Attributes) error {
	for name, v := range attrs {
		col, ok := cols.Lookup(name)
		if !ok {
			return core.NewSchemaError(core.ErrUnknownColumn, table, row, name)
		}
		if v.Kind != col.Kind {
			return core.NewSchemaError(core.ErrKindMismatch, table, row,
				fmt.Sprintf("column %q is %s, got %s", name, col.Kind, v.Kind))
		}
	}
	return nil
}
