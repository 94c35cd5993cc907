package pipeline

// MaxSpreadsheetCellLength is the character limit a single spreadsheet cell
// may hold. Rows whose value column exceeds it cannot be written to the
// .xlsx artifact and are diverted to the overflow CSV instead.
const MaxSpreadsheetCellLength = 32767

// Artifact names, as exposed to the presentation layer.
const (
	ArtifactPrimary  = "primary"
	ArtifactOverflow = "overflow"
)

// Content types for the produced artifacts.
const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeCSV  = "text/csv"
)

// Config holds the per-run transform constants. A Config is immutable for
// the duration of a run; the pipeline never mutates it.
type Config struct {
	// DropColumns are removed from the table if present, in this order.
	DropColumns []string

	// KeyColumns form the composite deduplication key. Only the columns
	// actually present in the table participate, in this order.
	KeyColumns []string

	// ValueColumn is the column whose character length decides whether a
	// row fits in the spreadsheet. If absent, every row is within limit.
	ValueColumn string

	// MaxCellLength is the partition threshold. A length equal to the
	// threshold is still within limit; only greater lengths overflow.
	MaxCellLength int

	// PrimaryFileName and OverflowFileName are the download names suggested
	// for the two artifacts.
	PrimaryFileName  string
	OverflowFileName string
}

// DefaultConfig returns the transform constants for ESRS report exports:
// the schema bookkeeping columns to strip, the entity/period/element plus
// dimension tuple that identifies a fact, and the spreadsheet cell limit.
func DefaultConfig() Config {
	return Config{
		DropColumns: []string{
			"DefinedSchemaSystemId",
			"ESRS",
			"DR",
			"SUBDR",
			"TableLineItems",
			"ElementLabel",
		},
		KeyColumns: []string{
			"Entity", "Period", "Element",
			"DIM1", "VALUE1", "DIM2", "VALUE2", "DIM3", "VALUE3",
			"DIM4", "VALUE4", "DIM5", "VALUE5", "DIM6", "VALUE6",
			"DIM7", "VALUE7", "DIM8", "VALUE8", "DIM9", "VALUE9",
			"DIM10", "VALUE10",
		},
		ValueColumn:      "Value",
		MaxCellLength:    MaxSpreadsheetCellLength,
		PrimaryFileName:  "output_data.xlsx",
		OverflowFileName: "overflow_data.csv",
	}
}
