package pipeline

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestBOMSkippingReader(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "file with BOM",
			input:    append([]byte{0xEF, 0xBB, 0xBF}, []byte("Entity,Value")...),
			expected: "Entity,Value",
		},
		{
			name:     "file without BOM",
			input:    []byte("Entity,Value"),
			expected: "Entity,Value",
		},
		{
			name:     "empty file",
			input:    []byte{},
			expected: "",
		},
		{
			name:     "only BOM",
			input:    []byte{0xEF, 0xBB, 0xBF},
			expected: "",
		},
		{
			name:     "partial BOM at start",
			input:    []byte{0xEF, 0xBB, 'a', 'b', 'c'},
			expected: string([]byte{0xEF, 0xBB, 'a', 'b', 'c'}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := NewBOMSkippingReader(bytes.NewReader(tt.input))
			result, err := io.ReadAll(reader)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(result) != tt.expected {
				t.Errorf("got %q, want %q", string(result), tt.expected)
			}
		})
	}
}

func TestSanitizingReader(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "valid ASCII",
			input:    []byte("Entity,Value"),
			expected: "Entity,Value",
		},
		{
			name:     "valid UTF-8 with multibyte",
			input:    []byte("Entité,Größe"),
			expected: "Entité,Größe",
		},
		{
			name:     "invalid single byte replaced",
			input:    []byte{'E', '1', 0x80, ',', 'v'},
			expected: "E1?,v",
		},
		{
			name:     "empty input",
			input:    []byte{},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := NewSanitizingReader(bytes.NewReader(tt.input))
			result, err := io.ReadAll(reader)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(result) != tt.expected {
				t.Errorf("got %q, want %q", string(result), tt.expected)
			}
		})
	}
}

func TestCountingReader(t *testing.T) {
	input := strings.Repeat("x", 1000)
	reader := NewCountingReader(strings.NewReader(input), int64(len(input)))

	buf := make([]byte, 100)
	totalRead := 0
	for {
		n, err := reader.Read(buf)
		totalRead += n
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if totalRead != len(input) {
		t.Errorf("total read = %d, want %d", totalRead, len(input))
	}
	if reader.BytesRead != int64(len(input)) {
		t.Errorf("BytesRead = %d, want %d", reader.BytesRead, len(input))
	}
}

func TestWrapInput(t *testing.T) {
	// BOM plus an invalid byte: both must be cleaned up.
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte{'E', '1', 0x80, ',', 'v'}...)

	reader := WrapInput(bytes.NewReader(input), int64(len(input)))
	result, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := "E1?,v"
	if string(result) != expected {
		t.Errorf("got %q, want %q", string(result), expected)
	}
	if reader.BytesRead == 0 {
		t.Error("BytesRead should be > 0")
	}
}

func TestWrapInput_ParsesBOMFile(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Entity,Value\nE1,v\n")...)

	table, err := ParseTable(WrapInput(bytes.NewReader(input), int64(len(input))))
	if err != nil {
		t.Fatalf("ParseTable() error = %v", err)
	}
	if table.Header[0] != "Entity" {
		t.Errorf("Header[0] = %q, want %q (BOM must not leak into the header)", table.Header[0], "Entity")
	}
}
