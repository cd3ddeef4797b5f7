package engine

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"

	"github.com/facefinder/facefinder/internal/detector"
	"github.com/facefinder/facefinder/internal/face"
)

// Runner walks a directory of candidate images and matches them against a
// reference set. One Run call uses exactly one goroutine and issues detector
// calls strictly sequentially, so a shared model service is never
// double-booked by a single batch.
type Runner struct {
	detector  detector.Detector
	annotator *Annotator
	exts      map[string]struct{}
}

// NewRunner creates a batch runner. Extensions is the allow-list of eligible
// image filename extensions (lowercase, with leading dot).
func NewRunner(det detector.Detector, annotator *Annotator, extensions []string) *Runner {
	exts := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		exts[strings.ToLower(e)] = struct{}{}
	}
	return &Runner{detector: det, annotator: annotator, exts: exts}
}

// BatchRequest describes one batch run.
type BatchRequest struct {
	Dir        string
	Refs       *face.ReferenceSet
	Mode       Mode
	Threshold  float64
	OutputDir  string
	OnProgress func(percent int) // optional, must not block
}

// listImages enumerates eligible image files in dir in lexicographic
// filename order, so results and progress are reproducible across runs.
func (r *Runner) listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}

	// os.ReadDir returns entries sorted by filename.
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := r.exts[strings.ToLower(filepath.Ext(e.Name()))]; ok {
			files = append(files, e.Name())
		}
	}
	return files, nil
}

// CountImages returns the number of eligible images in dir. Used by the
// deadline path, which must report the total without scanning any image.
func (r *Runner) CountImages(dir string) int {
	files, err := r.listImages(dir)
	if err != nil {
		return 0
	}
	return len(files)
}

// Run processes every eligible image in the request directory. Per-image
// failures (unreadable file, decode error, detector error, zero detections)
// increment the skipped counter and never abort the batch; only an unreadable
// directory or an unknown mode is a hard failure.
func (r *Runner) Run(ctx context.Context, req BatchRequest) (*face.Summary, error) {
	mode, err := ParseMode(string(req.Mode))
	if err != nil {
		return nil, err
	}

	files, err := r.listImages(req.Dir)
	if err != nil {
		return nil, err
	}

	summary := &face.Summary{
		TotalImages: len(files),
		Results:     []face.ImageResult{},
	}

	progress := func(done int) {
		if req.OnProgress != nil && len(files) > 0 {
			req.OnProgress(100 * done / len(files))
		}
	}

	for i, name := range files {
		if r.processImage(ctx, req, mode, name, summary) {
			summary.ProcessedImages++
		} else {
			summary.SkippedImages++
		}
		progress(i + 1)
	}

	return summary, nil
}

// processImage handles a single file. It returns false when the image was
// skipped (decode failure, detector failure, no detections, write failure).
func (r *Runner) processImage(ctx context.Context, req BatchRequest, mode Mode, name string, summary *face.Summary) bool {
	data, err := os.ReadFile(filepath.Join(req.Dir, name)) //nolint:gosec // name comes from directory enumeration
	if err != nil {
		return false
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return false
	}

	detections, err := r.detector.Detect(ctx, data)
	if err != nil || len(detections) == 0 {
		return false
	}

	bounds := img.Bounds()
	records := r.matchRecords(req.Refs, detections, req.Threshold, bounds.Dx(), bounds.Dy())

	qualifies, err := mode.Qualifies(records, req.Refs.Len())
	if err != nil || !qualifies {
		// Policy errors cannot occur here (mode was validated up front);
		// a non-qualifying image is processed, just not part of the result.
		return err == nil
	}

	result := face.ImageResult{Filename: name, Matches: records}
	if req.OutputDir != "" {
		outPath := filepath.Join(req.OutputDir, name)
		annotated := r.annotator.Annotate(img, records)
		if err := r.annotator.Save(annotated, outPath); err != nil {
			return false
		}
		result.SavedPath = outPath
	}

	summary.Results = append(summary.Results, result)
	summary.MatchedImages++
	summary.TotalMatches += len(records)
	return true
}

// matchRecords scores every (reference, detection) pair and keeps those at or
// above the threshold. Boxes are clipped to the image bounds. Record order is
// reference-major, matching result ordering across runs.
func (r *Runner) matchRecords(refs *face.ReferenceSet, detections []face.Detection, threshold float64, width, height int) []face.MatchRecord {
	var records []face.MatchRecord
	for refIdx := 0; refIdx < refs.Len(); refIdx++ {
		ref := refs.At(refIdx)
		for _, det := range detections {
			score := face.CosineSimilarity(ref, det.Embedding)
			if score >= threshold {
				records = append(records, face.MatchRecord{
					Box:      det.Box.Clip(width, height),
					Score:    score,
					RefIndex: refIdx,
				})
			}
		}
	}
	return records
}
