package pipeline

import (
	"reflect"
	"strings"
	"testing"
)

func mustParse(t *testing.T, data string) *Table {
	t.Helper()
	table, err := ParseTable(strings.NewReader(data))
	if err != nil {
		t.Fatalf("ParseTable() error = %v", err)
	}
	return table
}

func TestParseTable(t *testing.T) {
	table := mustParse(t, "Entity,Period,Value\nE1,2024,abc\nE2,2024,def\n")

	wantHeader := []string{"Entity", "Period", "Value"}
	if !reflect.DeepEqual(table.Header, wantHeader) {
		t.Errorf("Header = %v, want %v", table.Header, wantHeader)
	}
	if table.RowCount() != 2 {
		t.Errorf("RowCount() = %d, want 2", table.RowCount())
	}
}

func TestParseTable_SkipsEmptyRows(t *testing.T) {
	table := mustParse(t, "Entity,Value\nE1,a\n,\nE2,b\n")

	if table.RowCount() != 2 {
		t.Errorf("RowCount() = %d, want 2 (empty row skipped)", table.RowCount())
	}
}

func TestParseTable_Malformed(t *testing.T) {
	// Mismatched quoting makes the file unparsable.
	_, err := ParseTable(strings.NewReader("Entity,Value\n\"broken,row\nE2,b\n"))
	if err == nil {
		t.Fatal("ParseTable() expected error for malformed input, got nil")
	}
}

func TestParseTable_Empty(t *testing.T) {
	_, err := ParseTable(strings.NewReader(""))
	if err == nil {
		t.Fatal("ParseTable() expected error for empty input, got nil")
	}
	if !strings.Contains(err.Error(), "empty file") {
		t.Errorf("error = %q, want mention of empty file", err)
	}
}

func TestDropColumns(t *testing.T) {
	table := mustParse(t, "ESRS,Entity,DR,Value\ne1,E1,d1,v1\ne2,E2,d2,v2\n")

	removed := table.DropColumns([]string{"ESRS", "DR", "NotThere"})

	wantRemoved := []string{"ESRS", "DR"}
	if !reflect.DeepEqual(removed, wantRemoved) {
		t.Errorf("removed = %v, want %v", removed, wantRemoved)
	}
	wantHeader := []string{"Entity", "Value"}
	if !reflect.DeepEqual(table.Header, wantHeader) {
		t.Errorf("Header = %v, want %v", table.Header, wantHeader)
	}
	wantRow := []string{"E1", "v1"}
	if !reflect.DeepEqual(table.Rows[0], wantRow) {
		t.Errorf("Rows[0] = %v, want %v", table.Rows[0], wantRow)
	}
}

func TestDropColumns_Idempotent(t *testing.T) {
	table := mustParse(t, "ESRS,Entity,Value\ne1,E1,v1\n")

	table.DropColumns([]string{"ESRS"})
	headerAfterFirst := append([]string(nil), table.Header...)

	removed := table.DropColumns([]string{"ESRS"})
	if len(removed) != 0 {
		t.Errorf("second drop removed %v, want nothing", removed)
	}
	if !reflect.DeepEqual(table.Header, headerAfterFirst) {
		t.Errorf("Header changed on second drop: %v", table.Header)
	}
}

func TestDeduplicate(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		keys        []string
		wantRemoved int
		wantRows    [][]string
	}{
		{
			name:        "first occurrence wins",
			input:       "Entity,Period,Value\nE1,2024,first\nE1,2024,second\nE2,2024,third\n",
			keys:        []string{"Entity", "Period"},
			wantRemoved: 1,
			wantRows: [][]string{
				{"E1", "2024", "first"},
				{"E2", "2024", "third"},
			},
		},
		{
			name:        "no duplicates",
			input:       "Entity,Period,Value\nE1,2024,a\nE2,2024,b\n",
			keys:        []string{"Entity", "Period"},
			wantRemoved: 0,
			wantRows: [][]string{
				{"E1", "2024", "a"},
				{"E2", "2024", "b"},
			},
		},
		{
			name:        "absent key columns are skipped",
			input:       "Entity,Value\nE1,a\nE1,b\n",
			keys:        []string{"Entity", "Period"},
			wantRemoved: 1,
			wantRows: [][]string{
				{"E1", "a"},
			},
		},
		{
			name:        "empty effective key removes nothing",
			input:       "Other,Value\nx,a\nx,a\nx,a\n",
			keys:        []string{"Entity", "Period"},
			wantRemoved: 0,
			wantRows: [][]string{
				{"x", "a"},
				{"x", "a"},
				{"x", "a"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := mustParse(t, tt.input)
			removed := table.Deduplicate(tt.keys)

			if removed != tt.wantRemoved {
				t.Errorf("removed = %d, want %d", removed, tt.wantRemoved)
			}
			if !reflect.DeepEqual(table.Rows, tt.wantRows) {
				t.Errorf("Rows = %v, want %v", table.Rows, tt.wantRows)
			}
		})
	}
}

func TestDeduplicate_NoCompositeKeyCollisions(t *testing.T) {
	// Cells may contain any byte, including control characters. These two
	// rows have distinct ("Entity","Period") tuples whose concatenations
	// are identical, so a naive separator-joined key would merge them.
	table := &Table{
		Header: []string{"Entity", "Period", "Value"},
		Rows: [][]string{
			{"a\x1fb", "c", "v1"},
			{"a", "b\x1fc", "v2"},
		},
	}

	removed := table.Deduplicate([]string{"Entity", "Period"})

	if removed != 0 {
		t.Fatalf("removed = %d, want 0: distinct key tuples must not merge", removed)
	}
	if table.RowCount() != 2 {
		t.Errorf("RowCount() = %d, want 2", table.RowCount())
	}
}

func TestDeduplicate_FixedPoint(t *testing.T) {
	table := mustParse(t, "Entity,Value\nE1,a\nE1,b\nE2,c\nE2,d\n")
	keys := []string{"Entity"}

	table.Deduplicate(keys)
	rowsAfterFirst := make([][]string, len(table.Rows))
	copy(rowsAfterFirst, table.Rows)

	removed := table.Deduplicate(keys)
	if removed != 0 {
		t.Errorf("second dedup removed %d rows, want 0", removed)
	}
	if !reflect.DeepEqual(table.Rows, rowsAfterFirst) {
		t.Errorf("rows changed on second dedup: %v", table.Rows)
	}
}

func TestPartition(t *testing.T) {
	table := mustParse(t, "Entity,Value\nE1,"+strings.Repeat("a", 10)+"\nE2,"+strings.Repeat("b", 21)+"\n")

	primary, overflow := table.Partition("Value", 20)

	if primary.RowCount() != 1 || overflow.RowCount() != 1 {
		t.Fatalf("partition = %d/%d, want 1/1", primary.RowCount(), overflow.RowCount())
	}
	if primary.Rows[0][0] != "E1" {
		t.Errorf("primary row = %v, want E1", primary.Rows[0])
	}
	if overflow.Rows[0][0] != "E2" {
		t.Errorf("overflow row = %v, want E2", overflow.Rows[0])
	}
}

func TestPartition_ThresholdBoundary(t *testing.T) {
	threshold := 16
	table := mustParse(t, "Entity,Value\nExact,"+strings.Repeat("x", threshold)+"\nOver,"+strings.Repeat("x", threshold+1)+"\n")

	primary, overflow := table.Partition("Value", threshold)

	if primary.RowCount() != 1 || primary.Rows[0][0] != "Exact" {
		t.Errorf("row at exactly the threshold should be primary, got primary=%v", primary.Rows)
	}
	if overflow.RowCount() != 1 || overflow.Rows[0][0] != "Over" {
		t.Errorf("row one over the threshold should overflow, got overflow=%v", overflow.Rows)
	}
}

func TestPartition_CharactersNotBytes(t *testing.T) {
	// Four two-byte runes: 8 bytes but 4 characters, within a limit of 4.
	table := mustParse(t, "Entity,Value\nE1,éééé\n")

	primary, overflow := table.Partition("Value", 4)

	if primary.RowCount() != 1 || overflow.RowCount() != 0 {
		t.Errorf("partition = %d/%d, want 1/0 (length measured in characters)",
			primary.RowCount(), overflow.RowCount())
	}
}

func TestPartition_MissingValueColumn(t *testing.T) {
	table := mustParse(t, "Entity,Other\nE1,"+strings.Repeat("a", 100)+"\nE2,b\n")

	primary, overflow := table.Partition("Value", 10)

	if primary.RowCount() != 2 {
		t.Errorf("primary = %d, want all 2 rows when Value is absent", primary.RowCount())
	}
	if overflow.RowCount() != 0 {
		t.Errorf("overflow = %d, want 0 when Value is absent", overflow.RowCount())
	}
}

func TestPartition_CompleteAndDisjoint(t *testing.T) {
	var b strings.Builder
	b.WriteString("Entity,Value\n")
	for i := 0; i < 50; i++ {
		b.WriteString("E,")
		b.WriteString(strings.Repeat("v", i))
		b.WriteString("\n")
	}
	table := mustParse(t, b.String())
	total := table.RowCount()

	primary, overflow := table.Partition("Value", 25)

	if primary.RowCount()+overflow.RowCount() != total {
		t.Errorf("primary(%d) + overflow(%d) != total(%d)",
			primary.RowCount(), overflow.RowCount(), total)
	}
}
