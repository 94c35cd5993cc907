package pipeline

import "time"

// Artifact is one downloadable output of a successful run. Artifacts are
// built once at the end of a run and never modified afterwards.
type Artifact struct {
	// Name is the artifact key: ArtifactPrimary or ArtifactOverflow.
	Name string

	// SuggestedFileName is the download name offered to the user.
	SuggestedFileName string

	// ContentType is the MIME type used when serving the payload.
	ContentType string

	// Payload is the encoded file content.
	Payload []byte
}

// Result is the outcome of one pipeline run. On failure, Artifacts is
// always empty: partial progress is discarded, not partially returned.
type Result struct {
	Success bool

	// Logs is the ordered, append-only journal of step outcomes, shown to
	// the user verbatim.
	Logs []string

	// Artifacts maps artifact names to their payloads. Zero, one, or two
	// entries depending on how the partitions came out.
	Artifacts map[string]Artifact

	// Step counters.
	InitialRows   int
	DroppedCols   int
	DuplicateRows int
	RemainingRows int
	PrimaryRows   int
	OverflowRows  int

	Duration time.Duration

	// Error is the technical failure message, empty on success.
	Error string
}

// StepCount is the number of observable pipeline steps: parse, drop,
// deduplicate, partition, serialize.
const StepCount = 5

// StepFunc observes pipeline progress. It is invoked after each completed
// step with the 1-based step index. Purely informational; returning is the
// only thing it can do.
type StepFunc func(step int)

// RunPhase indicates the coarse state of a tracked run.
type RunPhase string

const (
	PhaseStarting   RunPhase = "starting"
	PhaseProcessing RunPhase = "processing"
	PhaseComplete   RunPhase = "complete"
	PhaseFailed     RunPhase = "failed"
	PhaseCancelled  RunPhase = "cancelled"
)

// RunProgress is a snapshot of a run's state, broadcast to progress
// subscribers after every step transition.
type RunProgress struct {
	RunID    string   `json:"run_id"`
	FileName string   `json:"file_name"`
	Phase    RunPhase `json:"phase"`

	// Step is the number of completed pipeline steps (0..StepCount).
	Step int `json:"step"`

	// Error is non-empty when Phase is PhaseFailed.
	Error string `json:"error,omitempty"`
}

// Percent returns run progress as a percentage (0-100) derived from the
// completed step count.
func (p RunProgress) Percent() int {
	if p.Phase == PhaseComplete {
		return 100
	}
	if p.Step >= StepCount {
		return 100
	}
	return p.Step * 100 / StepCount
}
