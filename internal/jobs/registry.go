// Package jobs provides the process-wide registry of asynchronous match jobs.
// A job is written by exactly one worker and read by any number of pollers.
package jobs

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/facefinder/facefinder/internal/face"
)

// Status is the lifecycle state of an async job.
type Status string

// Allowed job states. Transitions: queued -> running, running -> done,
// running -> error. Terminal states never transition again.
const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Job lifecycle errors. These indicate caller misuse and are never swallowed.
var (
	ErrDuplicateJob      = errors.New("job id already exists")
	ErrJobNotFound       = errors.New("job not found")
	ErrInvalidTransition = errors.New("invalid job transition")
)

// job is the registry's internal mutable record.
type job struct {
	id        string
	status    Status
	summary   *face.Summary
	errMsg    string
	outputDir string
	createdAt time.Time
	updatedAt time.Time
}

// View is a read-only snapshot of a job, safe to hand to concurrent pollers.
type View struct {
	ID        string        `json:"id"`
	Status    Status        `json:"status"`
	Result    *face.Summary `json:"result,omitempty"`
	Error     string        `json:"error,omitempty"`
	OutputDir string        `json:"-"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Registry is a concurrency-safe map from job id to job state.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*job
}

// NewRegistry creates an empty job registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*job)}
}

// Create inserts a new queued job. The output directory is recorded so the
// download endpoint can locate artifacts once the job finishes.
func (r *Registry) Create(id, outputDir string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, id)
	}
	now := time.Now()
	r.jobs[id] = &job{
		id:        id,
		status:    StatusQueued,
		outputDir: outputDir,
		createdAt: now,
		updatedAt: now,
	}
	return nil
}

// Transition atomically moves a job to a new status. The payload must be a
// *face.Summary for StatusDone, an error message string for StatusError, and
// nil for StatusRunning. Any transition outside the allowed table fails with
// ErrInvalidTransition.
func (r *Registry) Transition(id string, next Status, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, exists := r.jobs[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	if !allowed(j.status, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.status, next)
	}

	switch next {
	case StatusRunning:
		if payload != nil {
			return fmt.Errorf("%w: running takes no payload", ErrInvalidTransition)
		}
	case StatusDone:
		summary, ok := payload.(*face.Summary)
		if !ok || summary == nil {
			return fmt.Errorf("%w: done requires a summary payload", ErrInvalidTransition)
		}
		j.summary = summary
	case StatusError:
		msg, ok := payload.(string)
		if !ok || msg == "" {
			return fmt.Errorf("%w: error requires a message payload", ErrInvalidTransition)
		}
		j.errMsg = msg
	default:
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.status, next)
	}

	j.status = next
	j.updatedAt = time.Now()
	return nil
}

func allowed(from, to Status) bool {
	switch from {
	case StatusQueued:
		return to == StatusRunning
	case StatusRunning:
		return to == StatusDone || to == StatusError
	default:
		return false
	}
}

// Get returns a snapshot of the job. The summary pointer is shared but the
// worker never mutates a summary after handing it to Transition, so readers
// cannot observe a torn write.
func (r *Registry) Get(id string) (View, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	j, exists := r.jobs[id]
	if !exists {
		return View{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return View{
		ID:        j.id,
		Status:    j.status,
		Result:    j.summary,
		Error:     j.errMsg,
		OutputDir: j.outputDir,
		CreatedAt: j.createdAt,
		UpdatedAt: j.updatedAt,
	}, nil
}
