package queue

import (
	"context"
	"errors"

	"github.com/Nukesor/encarne/internal/metrics"
)

// ErrQueueUnavailable is returned when the queue cannot be reached or
// answers with something unusable.
var ErrQueueUnavailable = errors.New("queue unavailable")

// Status is the lifecycle state of a queued job.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Terminal reports whether no further transition can happen.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Job is a single entry in the queue.
type Job struct {
	ID      int64
	Command string
	Status  Status
}

// Queue is an external job runner.
type Queue interface {
	// Jobs lists every job the queue still knows about.
	Jobs(ctx context.Context) ([]Job, error)
	// Add submits command to run in dir.
	Add(ctx context.Context, command, dir string) error
}

// Newest returns the job with the highest ID whose command equals command.
// Older submissions of the same command never shadow a newer one.
func Newest(jobs []Job, command string) (Job, bool) {
	var best Job
	found := false
	for _, job := range jobs {
		if job.Command != command {
			continue
		}
		if !found || job.ID > best.ID {
			best = job
			found = true
		}
	}
	return best, found
}

func recordRequest(backend, operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.QueueRequests.WithLabelValues(backend, operation, status).Inc()
}
