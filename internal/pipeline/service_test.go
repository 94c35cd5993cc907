package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"
)

func newTestService() *Service {
	cfg := DefaultConfig()
	cfg.MaxCellLength = 50
	return NewService(ServiceOptions{
		Config:          cfg,
		MaxConcurrent:   2,
		MaxWaitTime:     time.Second,
		RunTimeout:      10 * time.Second,
		ResultRetention: time.Minute,
	})
}

func TestService_StartRunAndResult(t *testing.T) {
	s := newTestService()

	data := []byte("Entity,Period,Value\nE1,2024,short\nE1,2024,short\n")
	runID, err := s.StartRun(context.Background(), "export.csv", data)
	if err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}

	res, err := s.Result(runID)
	if err != nil {
		t.Fatalf("Result() error = %v", err)
	}
	if !res.Success {
		t.Fatalf("run failed: %s", res.Error)
	}
	if res.DuplicateRows != 1 {
		t.Errorf("DuplicateRows = %d, want 1", res.DuplicateRows)
	}

	artifact, err := s.Artifact(runID, ArtifactPrimary)
	if err != nil {
		t.Fatalf("Artifact() error = %v", err)
	}
	if artifact.SuggestedFileName != "output_data.xlsx" {
		t.Errorf("SuggestedFileName = %q, want output_data.xlsx", artifact.SuggestedFileName)
	}
	if len(artifact.Payload) == 0 {
		t.Error("artifact payload is empty")
	}
}

func TestService_ProgressSubscription(t *testing.T) {
	s := newTestService()

	runID, err := s.StartRun(context.Background(), "export.csv", []byte("Entity,Value\nE1,v\n"))
	if err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}

	ch, err := s.SubscribeProgress(runID)
	if err != nil {
		t.Fatalf("SubscribeProgress() error = %v", err)
	}

	var last RunProgress
	for p := range ch {
		last = p
	}

	if last.Phase != PhaseComplete {
		t.Errorf("final phase = %q, want %q", last.Phase, PhaseComplete)
	}
	if last.Percent() != 100 {
		t.Errorf("final percent = %d, want 100", last.Percent())
	}
}

func TestService_ConcurrentProgressReads(t *testing.T) {
	s := newTestService()

	runID, err := s.StartRun(context.Background(), "export.csv",
		[]byte("Entity,Value\nE1,v\nE2,w\n"))
	if err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}

	// Poll progress from several goroutines while the run goroutine is
	// still publishing updates.
	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for {
				p, err := s.Progress(runID)
				if err != nil {
					t.Errorf("Progress() error = %v", err)
					return
				}
				switch p.Phase {
				case PhaseComplete, PhaseFailed, PhaseCancelled:
					return
				}
			}
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}

	res, err := s.Result(runID)
	if err != nil {
		t.Fatalf("Result() error = %v", err)
	}
	if !res.Success {
		t.Fatalf("run failed: %s", res.Error)
	}
}

func TestService_FailedRunHasNoArtifacts(t *testing.T) {
	s := newTestService()

	runID, err := s.StartRun(context.Background(), "broken.csv", []byte("Entity,Value\n\"bad\n"))
	if err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}

	res, err := s.Result(runID)
	if err != nil {
		t.Fatalf("Result() error = %v", err)
	}
	if res.Success {
		t.Fatal("run succeeded on malformed input")
	}

	if _, err := s.Artifact(runID, ArtifactPrimary); err == nil {
		t.Error("Artifact() returned data for a failed run")
	}
}

func TestService_UnknownRun(t *testing.T) {
	s := newTestService()

	if _, err := s.Result("no-such-run"); err == nil {
		t.Error("Result() expected error for unknown run")
	}
	if _, err := s.SubscribeProgress("no-such-run"); err == nil {
		t.Error("SubscribeProgress() expected error for unknown run")
	}
	if err := s.CancelRun("no-such-run"); err == nil {
		t.Error("CancelRun() expected error for unknown run")
	}
}

func TestService_WaitForRuns(t *testing.T) {
	s := newTestService()

	if _, err := s.StartRun(context.Background(), "export.csv", []byte("Entity,Value\nE1,v\n")); err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.WaitForRuns(ctx); err != nil {
		t.Errorf("WaitForRuns() error = %v", err)
	}
	if got := s.LimiterStatus().Active; got != 0 {
		t.Errorf("active runs after drain = %d, want 0", got)
	}
}

func TestRunLimiter_Acquire(t *testing.T) {
	l := NewRunLimiter(1, 50*time.Millisecond)

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("first Acquire() error = %v", err)
	}

	// Second acquire must time out while the slot is held.
	if err := l.Acquire(context.Background()); err != ErrTooManyRuns {
		t.Errorf("second Acquire() error = %v, want ErrTooManyRuns", err)
	}

	l.Release()
	if err := l.Acquire(context.Background()); err != nil {
		t.Errorf("Acquire() after Release() error = %v", err)
	}
	l.Release()
}

func TestService_LargeValueGoesToOverflow(t *testing.T) {
	s := newTestService()
	long := strings.Repeat("x", 60)

	runID, err := s.StartRun(context.Background(), "export.csv",
		[]byte("Entity,Value\nE1,"+long+"\nE2,ok\n"))
	if err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}

	res, err := s.Result(runID)
	if err != nil {
		t.Fatalf("Result() error = %v", err)
	}
	if res.OverflowRows != 1 || res.PrimaryRows != 1 {
		t.Errorf("partition = %d/%d, want 1/1", res.PrimaryRows, res.OverflowRows)
	}

	overflow, err := s.Artifact(runID, ArtifactOverflow)
	if err != nil {
		t.Fatalf("Artifact(overflow) error = %v", err)
	}
	if overflow.ContentType != ContentTypeCSV {
		t.Errorf("ContentType = %q, want %q", overflow.ContentType, ContentTypeCSV)
	}
}
