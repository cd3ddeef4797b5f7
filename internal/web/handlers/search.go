package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/facefinder/facefinder/internal/archive"
	"github.com/facefinder/facefinder/internal/config"
	"github.com/facefinder/facefinder/internal/constants"
	"github.com/facefinder/facefinder/internal/detector"
	"github.com/facefinder/facefinder/internal/engine"
	"github.com/facefinder/facefinder/internal/face"
	"github.com/facefinder/facefinder/internal/jobs"
)

// SearchHandler runs face searches over uploaded photo datasets. A search is
// either synchronous (the summary comes back in the response) or asynchronous
// (a job id comes back and the caller polls the jobs endpoint).
type SearchHandler struct {
	config   *config.Config
	detector detector.Detector
	runner   *engine.Runner
	registry *jobs.Registry
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(cfg *config.Config, det detector.Detector, runner *engine.Runner, registry *jobs.Registry) *SearchHandler {
	return &SearchHandler{config: cfg, detector: det, runner: runner, registry: registry}
}

// asyncResponse acknowledges an accepted background job.
type asyncResponse struct {
	JobID  string      `json:"job_id"`
	Status jobs.Status `json:"status"`
}

// Search handles a multipart search request with a reference image, a ZIP
// dataset, and optional form fields mode, threshold, indices, max_seconds
// and async.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	refData, _, err := readUpload(r, "reference", h.config.Defaults.Images.Extensions, constants.MaxImageUploadMB)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	zipData, _, err := readUpload(r, "dataset", []string{".zip"}, constants.MaxArchiveUploadMB)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	mode, err := engine.ParseMode(r.FormValue("mode"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	threshold := h.config.Engine.Threshold
	if s := r.FormValue("threshold"); s != "" {
		t, err := strconv.ParseFloat(s, 64)
		if err != nil || t < -1 || t > 1 {
			respondError(w, http.StatusBadRequest, "threshold must be a number between -1 and 1")
			return
		}
		threshold = t
	}

	maxSeconds := h.config.Engine.MaxSeconds
	if s := r.FormValue("max_seconds"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "max_seconds must be a non-negative integer")
			return
		}
		maxSeconds = n
	}

	detections, err := h.detector.Detect(r.Context(), refData)
	if err != nil {
		respondError(w, http.StatusBadGateway, fmt.Sprintf("face detection failed: %v", err))
		return
	}
	if len(detections) == 0 {
		respondError(w, http.StatusBadRequest, "No faces found in reference image")
		return
	}

	refs := face.NewReferenceSet()
	for _, det := range detections {
		refs.Add(det.Embedding)
	}
	if s := r.FormValue("indices"); s != "" {
		indices, err := parseIndices(s)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		refs, err = refs.Select(indices)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	datasetDir, err := archive.ExtractDataset(zipData, constants.MaxDatasetFiles)
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("unpacking dataset: %v", err))
		return
	}
	datasetDir = archive.FlattenSingleDir(datasetDir)

	jobID := uuid.New().String()
	req := engine.BatchRequest{
		Dir:       datasetDir,
		Refs:      refs,
		Mode:      mode,
		Threshold: threshold,
		OutputDir: filepath.Join(h.config.Engine.OutputDir, jobID),
	}
	deadline := time.Duration(maxSeconds) * time.Second

	if r.FormValue("async") == "true" {
		if err := h.registry.Create(jobID, req.OutputDir); err != nil {
			os.RemoveAll(datasetDir)
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		go h.runJob(jobID, req, deadline, datasetDir)
		respondJSON(w, http.StatusAccepted, asyncResponse{JobID: jobID, Status: jobs.StatusQueued})
		return
	}

	defer os.RemoveAll(datasetDir)
	summary, err := h.runner.RunWithDeadline(r.Context(), req, deadline)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	attachThumbnails(datasetDir, summary)
	respondJSON(w, http.StatusOK, summary)
}

// runJob drives one background search through the job lifecycle. The request
// context is long gone by the time the worker runs, so it uses Background.
func (h *SearchHandler) runJob(jobID string, req engine.BatchRequest, deadline time.Duration, datasetDir string) {
	defer os.RemoveAll(datasetDir)

	if err := h.registry.Transition(jobID, jobs.StatusRunning, nil); err != nil {
		log.Printf("job %s: cannot start: %v", jobID, err)
		return
	}

	summary, err := h.runner.RunWithDeadline(context.Background(), req, deadline)
	if err != nil {
		if terr := h.registry.Transition(jobID, jobs.StatusError, err.Error()); terr != nil {
			log.Printf("job %s: recording failure: %v", jobID, terr)
		}
		return
	}
	if summary.Error != "" {
		if terr := h.registry.Transition(jobID, jobs.StatusError, summary.Error); terr != nil {
			log.Printf("job %s: recording timeout: %v", jobID, terr)
		}
		return
	}

	attachThumbnails(datasetDir, summary)
	if terr := h.registry.Transition(jobID, jobs.StatusDone, summary); terr != nil {
		log.Printf("job %s: recording result: %v", jobID, terr)
	}
}

// parseIndices parses a comma-separated list of face indices.
func parseIndices(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	indices := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid face index %q", p)
		}
		indices = append(indices, n)
	}
	return indices, nil
}

// attachThumbnails adds a base64 JPEG thumbnail to every matched result,
// preferring the annotated copy when one was written. Thumbnail failures
// leave the result without one, they never fail the response.
func attachThumbnails(datasetDir string, summary *face.Summary) {
	for i := range summary.Results {
		res := &summary.Results[i]
		path := res.SavedPath
		if path == "" {
			path = filepath.Join(datasetDir, res.Filename)
		}
		data, err := os.ReadFile(path) //nolint:gosec // path comes from the run's own output
		if err != nil {
			continue
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			continue
		}
		var buf bytes.Buffer
		thumb := engine.Thumbnail(img, constants.ThumbnailHeight)
		if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 85}); err != nil {
			continue
		}
		res.ThumbnailB64 = base64.StdEncoding.EncodeToString(buf.Bytes())
	}
}
