// Package pipeline implements the CSV cleanup transform that is the heart
// of this application.
//
// This package has no UI or transport dependencies. It can be driven by web
// handlers, tests, or any other frontend without modification.
//
// # The transform
//
// A run consumes one uploaded CSV file and executes five sequential steps
// over an in-memory table:
//
//  1. Parse the raw bytes into a header-addressed table.
//  2. Drop the configured unwanted columns (absent columns are skipped).
//  3. Deduplicate rows on the configured business key, first occurrence wins.
//  4. Partition rows by the character length of the designated value column.
//  5. Serialize the partitions: rows within the spreadsheet cell limit go to
//     an .xlsx artifact, rows above it to an overflow .csv artifact.
//
// Every step appends one or more human-readable lines to the run log. A
// failed parse or a failed spreadsheet encode terminates the run; the caller
// receives the accumulated log and no artifacts.
//
// # Runs
//
// [Service] tracks in-flight and recently finished runs in process memory.
// Runs execute in the background with a concurrency limit; progress is
// broadcast to subscribers via [Service.SubscribeProgress]. Results and
// artifacts are retained for a configurable window after completion and are
// never persisted.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - FILE001-FILE005: File errors (size, encoding, format)
//   - RUN001-RUN004: Run errors (cancelled, timeout, not found)
//   - XLSX001: Spreadsheet serialization errors
package pipeline
