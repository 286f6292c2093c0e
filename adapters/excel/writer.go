package excel

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"variatio/domain/experiment"
)

// WriteEvents writes an event table in the layout LoadEvents reads
func WriteEvents(path string, table experiment.EventTable) error {
	header := append([]string{colTimestamp, colUserID, colEventName}, columnNames(table.Columns)...)
	rows := make([][]string, 0, len(table.Rows))
	for _, ev := range table.Rows {
		row := []string{ev.Timestamp.UTC().Format(time.RFC3339Nano), ev.UserID, ev.Name}
		rows = append(rows, append(row, cells(ev.Attributes, table.Columns)...))
	}
	return writeRows(path, header, rows)
}

// WriteAllocations writes an allocation table in the layout LoadAllocations reads
func WriteAllocations(path string, table experiment.AllocationTable) error {
	rows := make([][]string, 0, len(table.Rows))
	for _, a := range table.Rows {
		rows = append(rows, []string{a.Timestamp.UTC().Format(time.RFC3339Nano), a.UserID, a.Arm})
	}
	return writeRows(path, []string{colTimestamp, colUserID, colArm}, rows)
}

// WriteProperties writes a property table in the layout LoadProperties reads
func WriteProperties(path string, table *experiment.PropertyTable) error {
	if table == nil {
		return fmt.Errorf("no property table to write")
	}
	header := append([]string{colUserID}, columnNames(table.Columns)...)
	rows := make([][]string, 0, len(table.Rows))
	for _, p := range table.Rows {
		rows = append(rows, append([]string{p.UserID}, cells(p.Attributes, table.Columns)...))
	}
	return writeRows(path, header, rows)
}

func columnNames(cols experiment.Columns) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// cells renders attributes in column order; missing values are empty cells
func cells(attrs experiment.Attributes, cols experiment.Columns) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		v, ok := attrs[c.Name]
		if !ok {
			continue
		}
		if v.Kind == experiment.KindNumeric {
			out[i] = strconv.FormatFloat(v.Num, 'g', -1, 64)
		} else {
			out[i] = v.Cat
		}
	}
	return out
}

func writeRows(path string, header []string, rows [][]string) error {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return writeCSV(path, header, rows)
	}
	return writeExcel(path, header, rows)
}

func writeCSV(path string, header []string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write CSV rows: %w", err)
	}
	return nil
}

func writeExcel(path string, header []string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("failed to open sheet writer: %w", err)
	}
	for i, row := range append([][]string{header}, rows...) {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := sw.SetRow(cell, values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}
	return nil
}
