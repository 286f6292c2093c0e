package excel

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"variatio/domain/experiment"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoader_EventsCSV(t *testing.T) {
	path := writeFile(t, "events.csv", `timestamp,userid,event_name,purchase_value,platform
2024-01-02 10:00:00,u1,purchase,12.5,ios
2024-01-03T08:30:00Z,u2,login,,web

2024-01-04,u1,purchase,7,
`)

	table, err := NewLoader(nil).LoadEvents(path)
	require.NoError(t, err)

	assert.Equal(t, experiment.Columns{
		{Name: "purchase_value", Kind: experiment.KindNumeric},
		{Name: "platform", Kind: experiment.KindCategorical},
	}, table.Columns)
	require.Len(t, table.Rows, 3)

	first := table.Rows[0]
	assert.Equal(t, time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC), first.Timestamp)
	assert.Equal(t, "u1", first.UserID)
	assert.Equal(t, "purchase", first.Name)
	assert.Equal(t, experiment.Numeric(12.5), first.Attributes["purchase_value"])
	assert.Equal(t, experiment.Categorical("ios"), first.Attributes["platform"])

	_, ok := table.Rows[1].Attributes["purchase_value"]
	assert.False(t, ok, "empty cells are missing attributes")
	assert.Equal(t, time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), table.Rows[2].Timestamp)
}

func TestLoader_AllocationsXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"timestamp", "userid", "arm"},
		{"2024-01-01 00:00:00", "u1", "A"},
		{"2024-01-01 06:00:00", "u2", "B"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	path := filepath.Join(t.TempDir(), "allocations.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	table, err := NewLoader(nil).LoadAllocations(path)
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"A", "B"}, table.Arms())
	assert.Equal(t, time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC), table.Rows[1].Timestamp)
}

func TestLoader_Properties(t *testing.T) {
	path := writeFile(t, "props.csv", `userid,age,country
u1,31,US
u2,,DE
`)
	table, err := NewLoader(nil).LoadProperties(path)
	require.NoError(t, err)

	assert.Equal(t, experiment.Columns{
		{Name: "age", Kind: experiment.KindNumeric},
		{Name: "country", Kind: experiment.KindCategorical},
	}, table.Columns)
	assert.Equal(t, experiment.Attributes{"country": experiment.Categorical("DE")}, table.Rows[1].Attributes)
}

func TestLoader_Errors(t *testing.T) {
	l := NewLoader(nil)

	_, err := l.LoadEvents(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)

	_, err = l.LoadAllocations(writeFile(t, "alloc.csv", "timestamp,userid\n2024-01-01,u1\n"))
	assert.ErrorContains(t, err, `"arm"`)

	_, err = l.LoadAllocations(writeFile(t, "alloc.csv", "timestamp,userid,arm\nyesterday,u1,A\n"))
	assert.ErrorContains(t, err, "row 2")
}

func TestInferColumns_MixedCellsAreCategorical(t *testing.T) {
	data := &ExcelData{
		Headers: []string{"userid", "plan", "score", "blank"},
		Rows: []RawRowData{
			{"userid": "u1", "plan": "10", "score": "1.5", "blank": ""},
			{"userid": "u2", "plan": "gold", "score": "-2", "blank": ""},
		},
	}
	assert.Equal(t, experiment.Columns{
		{Name: "plan", Kind: experiment.KindCategorical},
		{Name: "score", Kind: experiment.KindNumeric},
		{Name: "blank", Kind: experiment.KindCategorical},
	}, InferColumns(data, "userid"))
}
