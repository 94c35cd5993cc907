package pipeline

// errors.go defines the pipeline error taxonomy and the mapping from
// technical errors to user-facing messages.
//
// Only two conditions are fatal for a run:
//
//   - ParseError: the uploaded bytes are not a well-formed CSV table.
//   - SerializeError: the primary partition could not be encoded as a
//     spreadsheet.
//
// Missing-but-expected columns (drop-list entries, key columns, the value
// column) are never errors; each is handled by a presence check and logged
// informationally.

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRunNotFound is returned when a run ID is unknown or already expired.
var ErrRunNotFound = errors.New("run not found")

// ParseError reports that the input bytes could not be interpreted as a
// delimited table.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid csv: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SerializeError reports that the primary partition could not be encoded
// into the spreadsheet format.
type SerializeError struct {
	Err error
}

func (e *SerializeError) Error() string {
	return fmt.Sprintf("spreadsheet encode: %v", e.Err)
}

func (e *SerializeError) Unwrap() error { return e.Err }

// UserMessage provides user-friendly error information with actionable
// guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error substrings (case-insensitive) to user
// messages. The first matching pattern wins, so more specific patterns come
// before general ones.
var errorPatterns = []errorPattern{
	// File errors (FILE001-FILE005)
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "The file exceeds the maximum upload size",
			Action:  "Split the file into smaller chunks and retry",
			Code:    "FILE001",
		},
	},
	// "empty file" is wrapped in the parse error prefix, so it must be
	// matched before the general "invalid csv" pattern.
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Upload a CSV file with a header row and data rows",
			Code:    "FILE003",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "The file is not a valid CSV",
			Action:  "Ensure the file is comma-separated with consistent quoting",
			Code:    "FILE002",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Choose a CSV file before starting the run",
			Code:    "FILE004",
		},
	},
	{
		pattern: "unsupported file type",
		msg: UserMessage{
			Message: "Only CSV files can be processed",
			Action:  "Export the data as .csv and upload again",
			Code:    "FILE005",
		},
	},

	// Run errors (RUN001-RUN004)
	{
		pattern: "too many concurrent runs",
		msg: UserMessage{
			Message: "The server is busy with other runs",
			Action:  "Wait a moment and try again",
			Code:    "RUN001",
		},
	},
	{
		pattern: "run not found",
		msg: UserMessage{
			Message: "This run has expired or never existed",
			Action:  "Start a new run",
			Code:    "RUN002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "The run was cancelled",
			Action:  "Start a new run when ready",
			Code:    "RUN003",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "The run took too long and was aborted",
			Action:  "Try a smaller file",
			Code:    "RUN004",
		},
	},

	// Spreadsheet errors (XLSX001)
	{
		pattern: "spreadsheet encode",
		msg: UserMessage{
			Message: "The cleaned data could not be written as a spreadsheet",
			Action:  "Check the run log for the failing content and contact support",
			Code:    "XLSX001",
		},
	},

	// Rate limiting (RATE001)
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultUserMessage is returned when no pattern matches.
var defaultUserMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Try again or contact support with the error code",
	Code:    "ERR000",
}

// MapError converts a technical error into a user-friendly message with a
// support code. Matching is case-insensitive substring search over the
// pattern table.
func MapError(err error) UserMessage {
	if err == nil {
		return defaultUserMessage
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultUserMessage
}
