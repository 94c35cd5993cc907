package pipeline

import (
	"reflect"
	"strings"
	"testing"
)

func TestEncodeCSV(t *testing.T) {
	table := &Table{
		Header: []string{"Entity", "Value"},
		Rows: [][]string{
			{"E1", "plain"},
			{"E2", "has,comma"},
			{"E3", "has\nnewline"},
		},
	}

	payload, err := encodeCSV(table)
	if err != nil {
		t.Fatalf("encodeCSV() error = %v", err)
	}

	reparsed, err := ParseTable(strings.NewReader(string(payload)))
	if err != nil {
		t.Fatalf("re-parse error = %v", err)
	}
	if !reflect.DeepEqual(reparsed.Header, table.Header) {
		t.Errorf("header = %v, want %v", reparsed.Header, table.Header)
	}
	if !reflect.DeepEqual(reparsed.Rows, table.Rows) {
		t.Errorf("rows = %v, want %v", reparsed.Rows, table.Rows)
	}
}

func TestEncodeXLSX_RoundTrip(t *testing.T) {
	table := &Table{
		Header: []string{"Entity", "Period", "Value"},
		Rows: [][]string{
			{"E1", "2024", "alpha"},
			{"E2", "2025", "béta"},
			{"E3", "2025", ""},
		},
	}

	payload, err := encodeXLSX(table)
	if err != nil {
		t.Fatalf("encodeXLSX() error = %v", err)
	}

	reparsed, err := ReparseXLSX(payload)
	if err != nil {
		t.Fatalf("ReparseXLSX() error = %v", err)
	}

	if !reflect.DeepEqual(reparsed.Header, table.Header) {
		t.Errorf("header = %v, want %v", reparsed.Header, table.Header)
	}
	if reparsed.RowCount() != table.RowCount() {
		t.Fatalf("rows = %d, want %d", reparsed.RowCount(), table.RowCount())
	}
	if !reflect.DeepEqual(reparsed.Rows, table.Rows) {
		t.Errorf("rows = %v, want %v", reparsed.Rows, table.Rows)
	}
}

func TestEncodeXLSX_EmptyTable(t *testing.T) {
	table := &Table{Header: []string{"Entity", "Value"}}

	payload, err := encodeXLSX(table)
	if err != nil {
		t.Fatalf("encodeXLSX() error = %v", err)
	}

	reparsed, err := ReparseXLSX(payload)
	if err != nil {
		t.Fatalf("ReparseXLSX() error = %v", err)
	}
	if reparsed.RowCount() != 0 {
		t.Errorf("rows = %d, want 0", reparsed.RowCount())
	}
}
