package pipeline

import (
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{
			name:     "invalid csv",
			err:      &ParseError{Err: errors.New("read row: wrong number of fields")},
			wantCode: "FILE002",
		},
		{
			name:     "empty file",
			err:      &ParseError{Err: errors.New("empty file: no header row")},
			wantCode: "FILE003",
		},
		{
			name:     "spreadsheet encode",
			err:      &SerializeError{Err: errors.New("write workbook: boom")},
			wantCode: "XLSX001",
		},
		{
			name:     "too many runs",
			err:      ErrTooManyRuns,
			wantCode: "RUN001",
		},
		{
			name:     "run not found",
			err:      fmt.Errorf("%w: abc", ErrRunNotFound),
			wantCode: "RUN002",
		},
		{
			name:     "cancelled",
			err:      errors.New("context canceled"),
			wantCode: "RUN003",
		},
		{
			name:     "timeout",
			err:      errors.New("context deadline exceeded"),
			wantCode: "RUN004",
		},
		{
			name:     "body too large",
			err:      errors.New("http: request body too large"),
			wantCode: "FILE001",
		},
		{
			name:     "unknown",
			err:      errors.New("something nobody anticipated"),
			wantCode: "ERR000",
		},
		{
			name:     "nil",
			err:      nil,
			wantCode: "ERR000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError(%v).Code = %q, want %q", tt.err, got.Code, tt.wantCode)
			}
			if got.Message == "" || got.Action == "" {
				t.Errorf("MapError(%v) has empty message or action: %+v", tt.err, got)
			}
		})
	}
}

func TestParseError_Unwrap(t *testing.T) {
	inner := errors.New("read header: boom")
	err := &ParseError{Err: inner}

	if !errors.Is(err, inner) {
		t.Error("errors.Is() failed to match wrapped error")
	}

	var pe *ParseError
	if !errors.As(error(err), &pe) {
		t.Error("errors.As() failed to match *ParseError")
	}
}
