package pipeline

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// sheetName is the single worksheet the primary artifact is written to.
// excelize creates it by default in a new workbook.
const sheetName = "Sheet1"

// encodeCSV serializes the table as UTF-8 comma-separated text with a
// header row.
func encodeCSV(t *Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(t.Header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for _, row := range t.Rows {
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush: %w", err)
	}
	return buf.Bytes(), nil
}

// encodeXLSX serializes the table as a single-sheet workbook: header row
// first, one sheet row per data row. The stream writer keeps memory flat
// for wide exports.
//
// Cells over the spreadsheet limit would be silently truncated by the
// writer; partitioning keeps such rows out of this artifact entirely.
func encodeXLSX(t *Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return nil, fmt.Errorf("stream writer: %w", err)
	}

	if err := writeSheetRow(sw, 1, t.Header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i, row := range t.Rows {
		if err := writeSheetRow(sw, i+2, row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return nil, fmt.Errorf("flush: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// writeSheetRow writes one table row at the given 1-based sheet row.
func writeSheetRow(sw *excelize.StreamWriter, rowNum int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}

	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	return sw.SetRow(cell, row)
}

// ReparseXLSX reads a primary artifact payload back into a Table. Used by
// tests and by support tooling to verify round-trip fidelity.
func ReparseXLSX(payload []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("read sheet: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty sheet")
	}

	t := &Table{Header: rows[0]}
	for _, row := range rows[1:] {
		// GetRows trims trailing empty cells; restore the full width so the
		// table stays rectangular.
		for len(row) < len(t.Header) {
			row = append(row, "")
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}
