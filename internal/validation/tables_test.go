package validation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"variatio/domain/core"
	"variatio/domain/experiment"
	"variatio/internal/testkit"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestTables_GeneratedDataIsValid(t *testing.T) {
	data := testkit.NewExperimentGenerator(testkit.DefaultExperimentConfig()).Generate()
	require.NoError(t, Tables(data.Events, data.Allocations, data.Properties, "A"))
}

func TestAllocations(t *testing.T) {
	tests := []struct {
		name    string
		rows    []experiment.Allocation
		want    error
		control string
	}{
		{
			name: "duplicate userid",
			rows: []experiment.Allocation{
				{Timestamp: t0, UserID: "u1", Arm: "A"},
				{Timestamp: t0, UserID: "u1", Arm: "B"},
			},
			control: "A",
			want:    core.ErrDuplicateUser,
		},
		{
			name:    "missing control",
			rows:    []experiment.Allocation{{Timestamp: t0, UserID: "u1", Arm: "B"}},
			control: "A",
			want:    core.ErrMissingControl,
		},
		{
			name:    "zero timestamp",
			rows:    []experiment.Allocation{{UserID: "u1", Arm: "A"}},
			control: "A",
			want:    core.ErrMissingField,
		},
		{
			name:    "empty arm",
			rows:    []experiment.Allocation{{Timestamp: t0, UserID: "u1"}},
			control: "A",
			want:    core.ErrMissingField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Allocations(experiment.AllocationTable{Rows: tt.rows}, tt.control)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), err.Error())
			assert.True(t, core.IsSchemaError(err))
		})
	}
}

func TestEvents(t *testing.T) {
	cols := experiment.Columns{{Name: "value", Kind: experiment.KindNumeric}}
	valid := experiment.Event{Timestamp: t0, UserID: "u1", Name: "purchase",
		Attributes: experiment.Attributes{"value": experiment.Numeric(3)}}
	require.NoError(t, Events(experiment.EventTable{Columns: cols, Rows: []experiment.Event{valid}}))

	tests := []struct {
		name  string
		table experiment.EventTable
		want  error
	}{
		{
			name: "kind mismatch",
			table: experiment.EventTable{Columns: cols, Rows: []experiment.Event{{
				Timestamp: t0, UserID: "u1", Name: "purchase",
				Attributes: experiment.Attributes{"value": experiment.Categorical("x")},
			}}},
			want: core.ErrKindMismatch,
		},
		{
			name: "undeclared column",
			table: experiment.EventTable{Columns: cols, Rows: []experiment.Event{{
				Timestamp: t0, UserID: "u1", Name: "purchase",
				Attributes: experiment.Attributes{"sku": experiment.Categorical("x")},
			}}},
			want: core.ErrUnknownColumn,
		},
		{
			name:  "reserved column",
			table: experiment.EventTable{Columns: experiment.Columns{{Name: "userid", Kind: experiment.KindCategorical}}},
			want:  core.ErrReservedColumn,
		},
		{
			name:  "duplicate column",
			table: experiment.EventTable{Columns: append(cols, cols[0])},
			want:  core.ErrDuplicateColumn,
		},
		{
			name:  "empty event name",
			table: experiment.EventTable{Rows: []experiment.Event{{Timestamp: t0, UserID: "u1"}}},
			want:  core.ErrMissingField,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Events(tt.table)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestProperties_DuplicateUser(t *testing.T) {
	table := experiment.PropertyTable{
		Columns: experiment.Columns{{Name: "country", Kind: experiment.KindCategorical}},
		Rows: []experiment.UserProperties{
			{UserID: "u1", Attributes: experiment.Attributes{"country": experiment.Categorical("US")}},
			{UserID: "u1", Attributes: experiment.Attributes{"country": experiment.Categorical("DE")}},
		},
	}
	assert.ErrorIs(t, Properties(table), core.ErrDuplicateUser)
}
