package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Table is an in-memory tabular dataset: an ordered header and the data
// rows beneath it. All rows share the header's column set; encoding/csv
// enforces a consistent field count during parsing.
type Table struct {
	Header []string
	Rows   [][]string
}

// ParseTable reads UTF-8 comma-separated data from r. The first record is
// the header; every following record is a data row. Fully empty rows are
// skipped, matching how exports pad trailing lines.
func ParseTable(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty file: no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	t := &Table{Header: header}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if isEmptyRow(record) {
			continue
		}
		t.Rows = append(t.Rows, record)
	}

	return t, nil
}

// isEmptyRow reports whether every cell is blank after trimming.
func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// ColumnIndex returns the position of the named column, or -1 if absent.
// Header names are matched exactly; exports are expected to use the
// canonical casing.
func (t *Table) ColumnIndex(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// RowCount returns the number of data rows.
func (t *Table) RowCount() int {
	return len(t.Rows)
}

// DropColumns removes the named columns from the table in place and returns
// the names actually removed, in the order they were requested. Columns not
// present are skipped silently.
func (t *Table) DropColumns(names []string) []string {
	var removed []string
	for _, name := range names {
		idx := t.ColumnIndex(name)
		if idx < 0 {
			continue
		}
		removed = append(removed, name)
		t.Header = append(t.Header[:idx], t.Header[idx+1:]...)
		for i, row := range t.Rows {
			t.Rows[i] = append(row[:idx], row[idx+1:]...)
		}
	}
	return removed
}

// effectiveKey returns the indices of the key columns that exist in the
// table, preserving the configured order. Absent key columns do not
// participate in deduplication.
func (t *Table) effectiveKey(keyColumns []string) []int {
	var idx []int
	for _, name := range keyColumns {
		if i := t.ColumnIndex(name); i >= 0 {
			idx = append(idx, i)
		}
	}
	return idx
}

// Deduplicate removes rows whose effective-key tuple matches an earlier
// row, keeping the first occurrence and preserving row order. It returns
// the number of rows removed.
//
// With an empty effective key (none of the key columns present) every row
// is trivially unique and nothing is removed.
func (t *Table) Deduplicate(keyColumns []string) int {
	key := t.effectiveKey(keyColumns)
	if len(key) == 0 {
		return 0
	}

	seen := make(map[string]struct{}, len(t.Rows))
	kept := t.Rows[:0]
	removed := 0

	var b strings.Builder
	for _, row := range t.Rows {
		b.Reset()
		for _, col := range key {
			// Length-prefix each value so tuple boundaries are unambiguous.
			// A separator byte is not enough: CSV cells can contain any
			// byte, so ("a<sep>b","c") and ("a","b<sep>c") would collide.
			fmt.Fprintf(&b, "%d:%s", len(row[col]), row[col])
		}
		k := b.String()
		if _, dup := seen[k]; dup {
			removed++
			continue
		}
		seen[k] = struct{}{}
		kept = append(kept, row)
	}

	t.Rows = kept
	return removed
}

// Partition splits the table into rows whose valueColumn cell is within
// maxLength characters (primary) and rows exceeding it (overflow). Length
// is measured in characters, not bytes, matching the spreadsheet cell
// limit. Row order is preserved in both partitions. If valueColumn is not
// present, every row lands in primary.
func (t *Table) Partition(valueColumn string, maxLength int) (primary, overflow *Table) {
	primary = &Table{Header: t.Header}
	overflow = &Table{Header: t.Header}

	idx := t.ColumnIndex(valueColumn)
	if idx < 0 {
		primary.Rows = t.Rows
		return primary, overflow
	}

	for _, row := range t.Rows {
		if utf8.RuneCountInString(row[idx]) > maxLength {
			overflow.Rows = append(overflow.Rows, row)
		} else {
			primary.Rows = append(primary.Rows, row)
		}
	}
	return primary, overflow
}
