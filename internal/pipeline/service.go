package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultRunTimeout is the maximum duration for one pipeline run.
var DefaultRunTimeout = 5 * time.Minute

// DefaultResultRetention is how long a finished run stays retrievable.
var DefaultResultRetention = 15 * time.Minute

// ServiceOptions configure a Service.
type ServiceOptions struct {
	Config          Config        // transform constants; zero value replaced by DefaultConfig
	MaxConcurrent   int           // parallel run limit
	MaxWaitTime     time.Duration // how long StartRun waits for a slot
	RunTimeout      time.Duration // per-run deadline
	ResultRetention time.Duration // how long finished runs stay retrievable
}

// Service tracks pipeline runs in process memory. Each run reconstructs
// its table, partitions, and log from scratch; nothing is shared between
// runs and nothing survives a restart.
type Service struct {
	cfg       Config
	limiter   *RunLimiter
	timeout   time.Duration
	retention time.Duration

	mu   sync.RWMutex
	runs map[string]*activeRun
}

type activeRun struct {
	ID       string
	FileName string
	Cancel   context.CancelFunc
	Progress RunProgress
	Result   *Result
	Done     chan struct{}

	Listeners  []chan RunProgress
	ListenerMu sync.Mutex

	// finished is set under ListenerMu once listeners have been closed, so
	// late subscribers get a closed channel instead of one nobody will ever
	// close.
	finished bool
}

// NewService creates a run service with the given options.
func NewService(opts ServiceOptions) *Service {
	cfg := opts.Config
	if len(cfg.KeyColumns) == 0 && cfg.ValueColumn == "" {
		cfg = DefaultConfig()
	}

	timeout := opts.RunTimeout
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	retention := opts.ResultRetention
	if retention <= 0 {
		retention = DefaultResultRetention
	}

	return &Service{
		cfg:       cfg,
		limiter:   NewRunLimiter(opts.MaxConcurrent, opts.MaxWaitTime),
		timeout:   timeout,
		retention: retention,
		runs:      make(map[string]*activeRun),
	}
}

// Config returns the transform constants the service runs with.
func (s *Service) Config() Config {
	return s.cfg
}

// StartRun begins an asynchronous pipeline run over the uploaded bytes.
// It returns the run ID immediately; use SubscribeProgress for updates and
// Result for the final outcome.
//
// Returns ErrTooManyRuns if the concurrent run limit is reached and no
// slot frees up within the wait timeout.
func (s *Service) StartRun(ctx context.Context, fileName string, data []byte) (string, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	runID := uuid.New().String()
	runCtx, cancel := context.WithTimeout(context.Background(), s.timeout)

	run := &activeRun{
		ID:       runID,
		FileName: fileName,
		Cancel:   cancel,
		Progress: RunProgress{
			RunID:    runID,
			FileName: fileName,
			Phase:    PhaseStarting,
		},
		Done:      make(chan struct{}),
		Listeners: make([]chan RunProgress, 0),
	}

	s.mu.Lock()
	s.runs[runID] = run
	s.mu.Unlock()

	// Process in background with panic recovery so the limiter slot is
	// always released.
	go func() {
		defer cancel()
		defer s.limiter.Release()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in pipeline run",
					"run_id", runID,
					"file", fileName,
					"panic", r,
				)
				run.setProgress(func(p *RunProgress) {
					p.Phase = PhaseFailed
					p.Error = fmt.Sprintf("internal error: %v", r)
				})
				run.closeListeners()
				close(run.Done)
				s.cleanup(runID)
			}
		}()
		s.process(runCtx, run, data)
	}()

	return runID, nil
}

// process executes the pipeline for one run and records the outcome.
func (s *Service) process(ctx context.Context, run *activeRun, data []byte) {
	defer func() {
		run.closeListeners()
		close(run.Done)
		s.cleanup(run.ID)
	}()

	logger := slog.With("run_id", run.ID, "file", run.FileName)
	logger.Info("run started", "bytes", len(data))

	run.setProgress(func(p *RunProgress) { p.Phase = PhaseProcessing })

	reader := WrapInput(bytes.NewReader(data), int64(len(data)))
	result := Run(ctx, s.cfg, reader, func(step int) {
		run.setProgress(func(p *RunProgress) { p.Step = step })
	})
	run.Result = result

	switch {
	case result.Success:
		run.setProgress(func(p *RunProgress) {
			p.Phase = PhaseComplete
			p.Step = StepCount
		})
		logger.Info("run complete",
			"initial_rows", result.InitialRows,
			"duplicates_removed", result.DuplicateRows,
			"overflow_rows", result.OverflowRows,
			"primary_rows", result.PrimaryRows,
			"artifacts", len(result.Artifacts),
			"duration", result.Duration,
		)
	case ctx.Err() != nil:
		run.setProgress(func(p *RunProgress) {
			p.Phase = PhaseCancelled
			p.Error = result.Error
		})
		logger.Warn("run cancelled", "error", result.Error)
	default:
		run.setProgress(func(p *RunProgress) {
			p.Phase = PhaseFailed
			p.Error = result.Error
		})
		logger.Error("run failed", "error", result.Error)
	}
}

// SubscribeProgress returns a channel receiving progress updates for the
// run. The channel is closed when the run completes.
func (s *Service) SubscribeProgress(runID string) (<-chan RunProgress, error) {
	s.mu.RLock()
	run, ok := s.runs[runID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	ch := make(chan RunProgress, 10)

	run.ListenerMu.Lock()
	if run.finished {
		// Run already completed; deliver the final snapshot and close.
		ch <- run.Progress
		close(ch)
		run.ListenerMu.Unlock()
		return ch, nil
	}
	run.Listeners = append(run.Listeners, ch)
	// Send current progress immediately so late subscribers catch up.
	select {
	case ch <- run.Progress:
	default:
	}
	run.ListenerMu.Unlock()

	return ch, nil
}

// CancelRun cancels an in-progress run.
func (s *Service) CancelRun(runID string) error {
	s.mu.RLock()
	run, ok := s.runs[runID]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	run.Cancel()
	return nil
}

// Result returns the outcome of a run, blocking until the run completes if
// it is still in progress.
func (s *Service) Result(runID string) (*Result, error) {
	s.mu.RLock()
	run, ok := s.runs[runID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	<-run.Done
	return run.Result, nil
}

// Progress returns the current progress without blocking.
func (s *Service) Progress(runID string) (RunProgress, error) {
	s.mu.RLock()
	run, ok := s.runs[runID]
	s.mu.RUnlock()

	if !ok {
		return RunProgress{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	return run.progress(), nil
}

// Artifact returns a named artifact of a completed, successful run.
// Failed runs expose no artifacts.
func (s *Service) Artifact(runID, name string) (Artifact, error) {
	res, err := s.Result(runID)
	if err != nil {
		return Artifact{}, err
	}
	if !res.Success {
		return Artifact{}, fmt.Errorf("run did not succeed, no artifacts available")
	}

	artifact, ok := res.Artifacts[name]
	if !ok {
		return Artifact{}, fmt.Errorf("no %q artifact was produced", name)
	}
	return artifact, nil
}

// LimiterStatus reports the current run-limiter state.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForRuns blocks until all active runs complete or the context is
// cancelled. Used during graceful shutdown.
func (s *Service) WaitForRuns(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// cleanup removes the run from tracking after the retention window.
func (s *Service) cleanup(runID string) {
	time.AfterFunc(s.retention, func() {
		s.mu.Lock()
		delete(s.runs, runID)
		s.mu.Unlock()
	})
}

// setProgress mutates the run's progress under the listener lock and
// broadcasts the new snapshot. Handler goroutines read Progress through the
// same lock, so updates and reads never race. Slow listeners miss
// intermediate updates rather than blocking the run.
func (run *activeRun) setProgress(mut func(*RunProgress)) {
	run.ListenerMu.Lock()
	defer run.ListenerMu.Unlock()

	mut(&run.Progress)
	for _, ch := range run.Listeners {
		select {
		case ch <- run.Progress:
		default:
		}
	}
}

// progress returns a snapshot of the run's progress.
func (run *activeRun) progress() RunProgress {
	run.ListenerMu.Lock()
	defer run.ListenerMu.Unlock()
	return run.Progress
}

// closeListeners closes all listener channels.
func (run *activeRun) closeListeners() {
	run.ListenerMu.Lock()
	defer run.ListenerMu.Unlock()

	for _, ch := range run.Listeners {
		close(ch)
	}
	run.Listeners = nil
	run.finished = true
}
