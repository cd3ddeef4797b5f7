package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/facefinder/facefinder/internal/archive"
	"github.com/facefinder/facefinder/internal/jobs"
)

// JobsHandler serves the status and output of asynchronous search jobs.
type JobsHandler struct {
	registry *jobs.Registry
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(registry *jobs.Registry) *JobsHandler {
	return &JobsHandler{registry: registry}
}

// Status returns the current snapshot of one job.
func (h *JobsHandler) Status(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")

	view, err := h.registry.Get(jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// Download streams a ZIP of the job's annotated images. Only finished jobs
// have output to download.
func (h *JobsHandler) Download(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")

	view, err := h.registry.Get(jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if view.Status != jobs.StatusDone {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("job is %s, download requires done", view.Status))
		return
	}
	if _, err := os.Stat(view.OutputDir); err != nil {
		respondError(w, http.StatusNotFound, "job output is no longer available")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", jobID+".zip"))
	if err := archive.PackDir(w, view.OutputDir); err != nil {
		// Headers are already out; all we can do is log.
		log.Printf("packing job %s output: %v", jobID, err)
	}
}
