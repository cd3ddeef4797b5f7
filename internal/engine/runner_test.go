package engine

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/facefinder/facefinder/internal/face"
)

// fakeDetector returns canned detections keyed by decoded image width, so
// tests can script per-image detector output without a real sidecar.
type fakeDetector struct {
	byWidth map[int][]face.Detection
	calls   int
}

func (f *fakeDetector) Detect(_ context.Context, imageData []byte) ([]face.Detection, error) {
	f.calls++
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, err
	}
	return f.byWidth[img.Bounds().Dx()], nil
}

func writeJPEG(t *testing.T, dir, name string, width int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, 80))
	for y := 0; y < 80; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 100, 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0600); err != nil {
		t.Fatalf("writing test image: %v", err)
	}
}

func unit(x, y, z float32) face.Embedding {
	return face.L2Normalize(face.Embedding{x, y, z})
}

// scenarioSetup builds the three-image directory from the matching contract:
// a.jpg has one detection matching reference 0 at ~0.82, b.jpg has detections
// matching reference 0 (~0.75) and reference 1 (~0.9), c.jpg has none.
func scenarioSetup(t *testing.T) (*Runner, BatchRequest) {
	t.Helper()
	dir := t.TempDir()
	writeJPEG(t, dir, "a.jpg", 100)
	writeJPEG(t, dir, "b.jpg", 120)
	writeJPEG(t, dir, "c.jpg", 140)

	det := &fakeDetector{byWidth: map[int][]face.Detection{
		100: {{Embedding: unit(0.82, 0.5724, 0), Box: face.BoundingBox{X1: 5, Y1: 5, X2: 40, Y2: 40}}},
		120: {
			{Embedding: unit(0.75, 0.6614, 0), Box: face.BoundingBox{X1: 10, Y1: 10, X2: 50, Y2: 50}},
			{Embedding: unit(0, 0.9, 0.4359), Box: face.BoundingBox{X1: 60, Y1: 10, X2: 100, Y2: 50}},
		},
		140: nil,
	}}

	runner := NewRunner(det, NewAnnotator("#00ff00", 2, 0), []string{".jpg", ".jpeg", ".png"})
	req := BatchRequest{
		Dir:       dir,
		Refs:      face.NewReferenceSet(unit(1, 0, 0), unit(0, 1, 0)),
		Threshold: 0.7,
		OutputDir: filepath.Join(t.TempDir(), "out"),
	}
	return runner, req
}

func TestRunIndividually(t *testing.T) {
	runner, req := scenarioSetup(t)
	req.Mode = ModeIndividually

	summary, err := runner.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.TotalImages != 3 {
		t.Errorf("TotalImages = %d; want 3", summary.TotalImages)
	}
	if summary.SkippedImages != 1 {
		t.Errorf("SkippedImages = %d; want 1 (c.jpg has no detections)", summary.SkippedImages)
	}
	if summary.ProcessedImages != 2 {
		t.Errorf("ProcessedImages = %d; want 2", summary.ProcessedImages)
	}
	if len(summary.Results) != 2 {
		t.Fatalf("got %d results; want 2", len(summary.Results))
	}
	if summary.Results[0].Filename != "a.jpg" || summary.Results[1].Filename != "b.jpg" {
		t.Errorf("results out of order: %s, %s", summary.Results[0].Filename, summary.Results[1].Filename)
	}
	if len(summary.Results[0].Matches) != 1 {
		t.Errorf("a.jpg should have 1 match record, got %d", len(summary.Results[0].Matches))
	}
	if len(summary.Results[1].Matches) != 2 {
		t.Errorf("b.jpg should have 2 match records, got %d", len(summary.Results[1].Matches))
	}
	if summary.TotalMatches != 3 {
		t.Errorf("TotalMatches = %d; want 3", summary.TotalMatches)
	}

	// Annotated copies are written under the output dir with original names.
	for _, r := range summary.Results {
		if r.SavedPath == "" {
			t.Fatalf("result %s has no saved path", r.Filename)
		}
		if _, err := os.Stat(r.SavedPath); err != nil {
			t.Errorf("annotated file missing for %s: %v", r.Filename, err)
		}
	}
}

func TestRunTogether(t *testing.T) {
	runner, req := scenarioSetup(t)
	req.Mode = ModeTogether

	summary, err := runner.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Only b.jpg covers both references; a.jpg covers reference 0 only.
	if len(summary.Results) != 1 || summary.Results[0].Filename != "b.jpg" {
		t.Fatalf("unexpected results: %+v", summary.Results)
	}
	if len(summary.Results[0].Matches) != 2 {
		t.Errorf("b.jpg should keep both records, got %d", len(summary.Results[0].Matches))
	}
	if summary.SkippedImages != 1 || summary.ProcessedImages != 2 {
		t.Errorf("skipped=%d processed=%d; want 1/2", summary.SkippedImages, summary.ProcessedImages)
	}
}

func TestRunDeterministic(t *testing.T) {
	runner, req := scenarioSetup(t)
	req.Mode = ModeIndividually

	first, err := runner.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	second, err := runner.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if first.TotalImages != second.TotalImages ||
		first.ProcessedImages != second.ProcessedImages ||
		first.SkippedImages != second.SkippedImages ||
		first.TotalMatches != second.TotalMatches {
		t.Errorf("counters differ between runs: %+v vs %+v", first, second)
	}
	for i := range first.Results {
		if first.Results[i].Filename != second.Results[i].Filename {
			t.Errorf("result order differs at %d: %s vs %s",
				i, first.Results[i].Filename, second.Results[i].Filename)
		}
	}
}

func TestRunThresholdMonotonic(t *testing.T) {
	runner, req := scenarioSetup(t)
	req.Mode = ModeIndividually

	req.Threshold = 0.7
	loose, err := runner.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	req.Threshold = 0.8
	strict, err := runner.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if strict.TotalMatches > loose.TotalMatches {
		t.Errorf("raising the threshold added matches: %d > %d", strict.TotalMatches, loose.TotalMatches)
	}
	// At 0.8 only a.jpg (0.82) and b.jpg's reference-1 record (0.9) survive.
	if strict.TotalMatches != 2 {
		t.Errorf("TotalMatches at 0.8 = %d; want 2", strict.TotalMatches)
	}

	// Every filename qualifying at the strict threshold also qualifies loose.
	looseNames := make(map[string]bool)
	for _, r := range loose.Results {
		looseNames[r.Filename] = true
	}
	for _, r := range strict.Results {
		if !looseNames[r.Filename] {
			t.Errorf("%s qualifies at 0.8 but not at 0.7", r.Filename)
		}
	}
}

func TestRunEmptyReferenceSet(t *testing.T) {
	for _, mode := range []Mode{ModeIndividually, ModeTogether} {
		t.Run(string(mode), func(t *testing.T) {
			runner, req := scenarioSetup(t)
			req.Refs = face.NewReferenceSet()
			req.Mode = mode

			summary, err := runner.Run(context.Background(), req)
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if len(summary.Results) != 0 {
				t.Errorf("empty reference set produced %d results", len(summary.Results))
			}
			if summary.ProcessedImages+summary.SkippedImages != summary.TotalImages {
				t.Errorf("counter mismatch: %+v", summary)
			}
		})
	}
}

func TestRunSkipsBadFiles(t *testing.T) {
	runner, req := scenarioSetup(t)
	req.Mode = ModeIndividually

	// An undecodable image is skipped; a non-image extension is not enumerated.
	if err := os.WriteFile(filepath.Join(req.Dir, "broken.jpg"), []byte("not a jpeg"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(req.Dir, "notes.txt"), []byte("readme"), 0600); err != nil {
		t.Fatal(err)
	}

	summary, err := runner.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.TotalImages != 4 {
		t.Errorf("TotalImages = %d; want 4 (txt file excluded)", summary.TotalImages)
	}
	if summary.SkippedImages != 2 {
		t.Errorf("SkippedImages = %d; want 2 (broken.jpg and c.jpg)", summary.SkippedImages)
	}
	if len(summary.Results) != 2 {
		t.Errorf("got %d results; want 2", len(summary.Results))
	}
}

func TestRunProgressCallback(t *testing.T) {
	runner, req := scenarioSetup(t)
	req.Mode = ModeIndividually

	var percents []int
	req.OnProgress = func(p int) { percents = append(percents, p) }

	if _, err := runner.Run(context.Background(), req); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []int{33, 66, 100}
	if len(percents) != len(want) {
		t.Fatalf("progress called %d times; want %d", len(percents), len(want))
	}
	for i := range want {
		if percents[i] != want[i] {
			t.Errorf("progress[%d] = %d; want %d", i, percents[i], want[i])
		}
	}
}

func TestRunUnreadableDirectory(t *testing.T) {
	runner, req := scenarioSetup(t)
	req.Dir = filepath.Join(req.Dir, "does-not-exist")
	req.Mode = ModeIndividually

	if _, err := runner.Run(context.Background(), req); err == nil {
		t.Error("expected hard failure for missing directory")
	}
}

func TestRunRejectsUnknownMode(t *testing.T) {
	runner, req := scenarioSetup(t)
	req.Mode = Mode("closest")

	if _, err := runner.Run(context.Background(), req); err == nil {
		t.Error("expected ErrUnknownPolicy")
	}
}

func TestRunWithoutOutputDir(t *testing.T) {
	runner, req := scenarioSetup(t)
	req.Mode = ModeIndividually
	req.OutputDir = ""

	summary, err := runner.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for _, r := range summary.Results {
		if r.SavedPath != "" {
			t.Errorf("no output dir configured but %s has saved path %s", r.Filename, r.SavedPath)
		}
	}
}

func TestCountImages(t *testing.T) {
	runner, req := scenarioSetup(t)
	if got := runner.CountImages(req.Dir); got != 3 {
		t.Errorf("CountImages = %d; want 3", got)
	}
	if got := runner.CountImages(filepath.Join(req.Dir, "missing")); got != 0 {
		t.Errorf("CountImages on missing dir = %d; want 0", got)
	}
}
