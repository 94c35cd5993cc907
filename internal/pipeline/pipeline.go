package pipeline

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// Run executes the full transform over the CSV data read from r and returns
// the outcome. Run never returns an error: every failure is converted into
// a Result with Success false, the accumulated log, and no artifacts.
//
// onStep, if non-nil, is invoked after each completed step with the 1-based
// step index. It must not block; it is called on the run's goroutine.
//
// The context is checked between steps. Cancellation aborts the run with
// the log collected so far; it does not interrupt a step in flight.
func Run(ctx context.Context, cfg Config, r io.Reader, onStep StepFunc) *Result {
	start := time.Now()
	res := &Result{Artifacts: make(map[string]Artifact)}

	fail := func(err error) *Result {
		res.Success = false
		res.Error = err.Error()
		res.Logs = append(res.Logs, fmt.Sprintf("Error: %v", err))
		// Discard partial progress: a failed run hands back no artifacts.
		res.Artifacts = map[string]Artifact{}
		res.Duration = time.Since(start)
		return res
	}

	step := func(n int) error {
		if onStep != nil {
			onStep(n)
		}
		return ctx.Err()
	}

	// Step 1: parse.
	table, err := ParseTable(r)
	if err != nil {
		return fail(&ParseError{Err: err})
	}
	res.InitialRows = table.RowCount()
	res.Logs = append(res.Logs, fmt.Sprintf(
		"CSV file read successfully. Initial record count: %d", res.InitialRows))
	if err := step(1); err != nil {
		return fail(err)
	}

	// Step 2: drop columns.
	removed := table.DropColumns(cfg.DropColumns)
	res.DroppedCols = len(removed)
	if len(removed) > 0 {
		res.Logs = append(res.Logs, fmt.Sprintf(
			"Dropped %d column(s): %s", len(removed), strings.Join(removed, ", ")))
	} else {
		res.Logs = append(res.Logs, "No droppable columns present; table left unchanged.")
	}
	if err := step(2); err != nil {
		return fail(err)
	}

	// Step 3: deduplicate.
	res.DuplicateRows = table.Deduplicate(cfg.KeyColumns)
	res.RemainingRows = table.RowCount()
	res.Logs = append(res.Logs, fmt.Sprintf(
		"Deduplication complete. %d duplicate(s) removed, %d record(s) remaining.",
		res.DuplicateRows, res.RemainingRows))
	if err := step(3); err != nil {
		return fail(err)
	}

	// Step 4: partition by cell length.
	primary, overflow := table.Partition(cfg.ValueColumn, cfg.MaxCellLength)
	res.PrimaryRows = primary.RowCount()
	res.OverflowRows = overflow.RowCount()
	res.Logs = append(res.Logs, fmt.Sprintf(
		"Length analysis: %d record(s) exceed %d characters.",
		res.OverflowRows, cfg.MaxCellLength))
	if err := step(4); err != nil {
		return fail(err)
	}

	// Step 5: serialize. Overflow first; a later spreadsheet failure still
	// discards it, since the run's overall success flag wins.
	if overflow.RowCount() > 0 {
		payload, err := encodeCSV(overflow)
		if err != nil {
			return fail(&SerializeError{Err: err})
		}
		res.Artifacts[ArtifactOverflow] = Artifact{
			Name:              ArtifactOverflow,
			SuggestedFileName: cfg.OverflowFileName,
			ContentType:       ContentTypeCSV,
			Payload:           payload,
		}
		res.Logs = append(res.Logs, fmt.Sprintf(
			"%d oversized record(s) ready for download as %s.",
			overflow.RowCount(), cfg.OverflowFileName))
	}

	if primary.RowCount() > 0 {
		payload, err := encodeXLSX(primary)
		if err != nil {
			return fail(&SerializeError{Err: err})
		}
		res.Artifacts[ArtifactPrimary] = Artifact{
			Name:              ArtifactPrimary,
			SuggestedFileName: cfg.PrimaryFileName,
			ContentType:       ContentTypeXLSX,
			Payload:           payload,
		}
		res.Logs = append(res.Logs, fmt.Sprintf(
			"%d record(s) ready for download as %s.",
			primary.RowCount(), cfg.PrimaryFileName))
	} else {
		res.Logs = append(res.Logs,
			"Primary partition is empty; no spreadsheet artifact produced.")
	}
	if err := step(5); err != nil {
		return fail(err)
	}

	res.Logs = append(res.Logs, "Processing finished successfully.")
	res.Success = true
	res.Duration = time.Since(start)
	return res
}
