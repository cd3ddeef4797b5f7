package engine

import (
	"context"
	"testing"
	"time"

	"github.com/facefinder/facefinder/internal/face"
)

// slowDetector blocks for a fixed delay per call before returning nothing.
type slowDetector struct {
	delay time.Duration
}

func (s *slowDetector) Detect(_ context.Context, _ []byte) ([]face.Detection, error) {
	time.Sleep(s.delay)
	return nil, nil
}

func TestRunWithDeadlineExpires(t *testing.T) {
	dir := t.TempDir()
	writeJPEG(t, dir, "a.jpg", 100)
	writeJPEG(t, dir, "b.jpg", 100)
	writeJPEG(t, dir, "c.jpg", 100)

	runner := NewRunner(&slowDetector{delay: 200 * time.Millisecond}, NewAnnotator("#00ff00", 2, 0), []string{".jpg"})
	req := BatchRequest{
		Dir:       dir,
		Refs:      face.NewReferenceSet(unit(1, 0, 0)),
		Mode:      ModeIndividually,
		Threshold: 0.7,
	}

	summary, err := runner.RunWithDeadline(context.Background(), req, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("RunWithDeadline failed: %v", err)
	}

	if summary.Error != TimeoutMessage {
		t.Errorf("Error = %q; want %q", summary.Error, TimeoutMessage)
	}
	if summary.TotalImages != 3 {
		t.Errorf("TotalImages = %d; want the directory's file count 3", summary.TotalImages)
	}
	if summary.ProcessedImages != 0 || summary.SkippedImages != 0 || summary.TotalMatches != 0 {
		t.Errorf("timed-out summary should carry zero progress counters: %+v", summary)
	}
	if len(summary.Results) != 0 {
		t.Errorf("timed-out summary exposed %d partial results", len(summary.Results))
	}
}

func TestRunWithDeadlineCompletes(t *testing.T) {
	runner, req := scenarioSetup(t)
	req.Mode = ModeIndividually

	summary, err := runner.RunWithDeadline(context.Background(), req, 30*time.Second)
	if err != nil {
		t.Fatalf("RunWithDeadline failed: %v", err)
	}
	if summary.Error != "" {
		t.Errorf("unexpected error flag: %q", summary.Error)
	}
	if len(summary.Results) != 2 {
		t.Errorf("got %d results; want 2", len(summary.Results))
	}
}

func TestRunWithDeadlineDisabled(t *testing.T) {
	runner, req := scenarioSetup(t)
	req.Mode = ModeIndividually

	summary, err := runner.RunWithDeadline(context.Background(), req, 0)
	if err != nil {
		t.Fatalf("RunWithDeadline failed: %v", err)
	}
	if summary.Error != "" || summary.TotalImages != 3 {
		t.Errorf("unexpected summary with disabled deadline: %+v", summary)
	}
}

func TestRunWithDeadlinePropagatesSetupError(t *testing.T) {
	runner, req := scenarioSetup(t)
	req.Dir = req.Dir + "-missing"
	req.Mode = ModeIndividually

	if _, err := runner.RunWithDeadline(context.Background(), req, time.Second); err == nil {
		t.Error("expected setup error for missing directory")
	}
}
