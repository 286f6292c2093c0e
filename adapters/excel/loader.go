package excel

import (
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"variatio/domain/experiment"
)

const (
	colTimestamp = "timestamp"
	colUserID    = "userid"
	colEventName = "event_name"
	colArm       = "arm"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Loader turns XLSX or CSV files into experiment tables
type Loader struct {
	logger *zap.Logger
}

// NewLoader creates a table loader
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger}
}

// LoadEvents reads |timestamp|userid|event_name|attributes...|
func (l *Loader) LoadEvents(path string) (experiment.EventTable, error) {
	data, err := NewDataReader(path, l.logger).ReadData()
	if err != nil {
		return experiment.EventTable{}, err
	}
	return EventsFromData(data)
}

// LoadAllocations reads |timestamp|userid|arm|
func (l *Loader) LoadAllocations(path string) (experiment.AllocationTable, error) {
	data, err := NewDataReader(path, l.logger).ReadData()
	if err != nil {
		return experiment.AllocationTable{}, err
	}
	return AllocationsFromData(data)
}

// LoadProperties reads |userid|property...|
func (l *Loader) LoadProperties(path string) (*experiment.PropertyTable, error) {
	data, err := NewDataReader(path, l.logger).ReadData()
	if err != nil {
		return nil, err
	}
	return PropertiesFromData(data)
}

// EventsFromData converts raw rows to an event table. Every header besides
// the three fixed columns becomes an attribute column.
func EventsFromData(data *ExcelData) (experiment.EventTable, error) {
	if err := requireHeaders(data, colTimestamp, colUserID, colEventName); err != nil {
		return experiment.EventTable{}, err
	}
	cols := InferColumns(data, colTimestamp, colUserID, colEventName)

	table := experiment.EventTable{Columns: cols, Rows: make([]experiment.Event, 0, len(data.Rows))}
	for i, row := range data.Rows {
		ts, err := ParseTimestamp(row[colTimestamp])
		if err != nil {
			return experiment.EventTable{}, fmt.Errorf("events row %d: %w", i+2, err)
		}
		table.Rows = append(table.Rows, experiment.Event{
			Timestamp:  ts,
			UserID:     row[colUserID],
			Name:       row[colEventName],
			Attributes: attributes(row, cols),
		})
	}
	return table, nil
}

// AllocationsFromData converts raw rows to an allocation table
func AllocationsFromData(data *ExcelData) (experiment.AllocationTable, error) {
	if err := requireHeaders(data, colTimestamp, colUserID, colArm); err != nil {
		return experiment.AllocationTable{}, err
	}

	var table experiment.AllocationTable
	for i, row := range data.Rows {
		ts, err := ParseTimestamp(row[colTimestamp])
		if err != nil {
			return experiment.AllocationTable{}, fmt.Errorf("allocations row %d: %w", i+2, err)
		}
		table.Rows = append(table.Rows, experiment.Allocation{
			Timestamp: ts,
			UserID:    row[colUserID],
			Arm:       row[colArm],
		})
	}
	return table, nil
}

// PropertiesFromData converts raw rows to a property table
func PropertiesFromData(data *ExcelData) (*experiment.PropertyTable, error) {
	if err := requireHeaders(data, colUserID); err != nil {
		return nil, err
	}
	cols := InferColumns(data, colUserID)

	table := &experiment.PropertyTable{Columns: cols}
	for _, row := range data.Rows {
		table.Rows = append(table.Rows, experiment.UserProperties{
			UserID:     row[colUserID],
			Attributes: attributes(row, cols),
		})
	}
	return table, nil
}

// InferColumns declares every header not in fixed as a column. A column is
// numeric when all its non-empty cells parse as floats, categorical otherwise.
// Columns with no values at all are categorical.
func InferColumns(data *ExcelData, fixed ...string) experiment.Columns {
	skip := make(map[string]bool, len(fixed))
	for _, f := range fixed {
		skip[f] = true
	}

	var cols experiment.Columns
	for _, header := range data.Headers {
		if skip[header] || header == "" {
			continue
		}
		numeric, seen := true, false
		for _, row := range data.Rows {
			cell := row[header]
			if cell == "" {
				continue
			}
			seen = true
			if _, err := strconv.ParseFloat(cell, 64); err != nil {
				numeric = false
				break
			}
		}
		kind := experiment.KindCategorical
		if numeric && seen {
			kind = experiment.KindNumeric
		}
		cols = append(cols, experiment.Column{Name: header, Kind: kind})
	}
	return cols
}

// ParseTimestamp accepts RFC 3339 and the common "2006-01-02 15:04:05" forms,
// interpreting zone-less values as UTC
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func requireHeaders(data *ExcelData, required ...string) error {
	present := make(map[string]bool, len(data.Headers))
	for _, h := range data.Headers {
		present[h] = true
	}
	for _, r := range required {
		if !present[r] {
			return fmt.Errorf("missing required column %q", r)
		}
	}
	return nil
}

// attributes keeps non-empty cells; parse errors cannot occur for numeric
// columns because InferColumns already checked every cell
func attributes(row RawRowData, cols experiment.Columns) experiment.Attributes {
	attrs := make(experiment.Attributes)
	for _, c := range cols {
		cell := row[c.Name]
		if cell == "" {
			continue
		}
		if c.Kind == experiment.KindNumeric {
			v, _ := strconv.ParseFloat(cell, 64)
			attrs[c.Name] = experiment.Numeric(v)
			continue
		}
		attrs[c.Name] = experiment.Categorical(cell)
	}
	return attrs
}
