package reconciler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Nukesor/encarne/internal/filesystem"
	"github.com/Nukesor/encarne/internal/logging"
	"github.com/Nukesor/encarne/internal/metrics"
	"github.com/Nukesor/encarne/internal/probe"
	"github.com/Nukesor/encarne/internal/queue"
	"github.com/Nukesor/encarne/internal/registry"
	"github.com/Nukesor/encarne/internal/task"
)

var (
	// ErrValidationRejected means the encoded file is not fit to replace
	// the origin.
	ErrValidationRejected = errors.New("validation rejected")
	// ErrInconclusive means the encoded file could not be judged.
	ErrInconclusive = errors.New("validation inconclusive")
)

// JobState is the terminal state of an external job.
type JobState string

const (
	JobDone     JobState = "done"
	JobFailed   JobState = "failed"
	JobVanished JobState = "vanished"
)

// Verdict is the result of validating an encoded file.
type Verdict string

const (
	Accepted     Verdict = "accepted"
	Rejected     Verdict = "rejected"
	Inconclusive Verdict = "inconclusive"
)

// Outcome is what happened to a task after reconciliation.
type Outcome string

const (
	OutcomeAccepted     Outcome = "accepted"
	OutcomeRejected     Outcome = "rejected"
	OutcomeInconclusive Outcome = "inconclusive"
	OutcomeFailed       Outcome = "failed"
	OutcomeVanished     Outcome = "vanished"
)

// Registry is the part of the movie registry the reconciler writes to.
type Registry interface {
	MarkEncoded(ctx context.Context, movie *registry.Movie, newName string, newSize int64, newHash string) error
	MarkFailed(ctx context.Context, movie *registry.Movie) error
}

// Config holds the reconciler settings.
type Config struct {
	// PollInterval is the wait between two queue status checks.
	PollInterval time.Duration
	// DurationThreshold is the largest accepted difference between the
	// durations of origin and encoded file.
	DurationThreshold time.Duration
}

// DefaultConfig returns a one minute poll and a one second threshold.
func DefaultConfig() Config {
	return Config{
		PollInterval:      60 * time.Second,
		DurationThreshold: time.Second,
	}
}

// Reconciler submits tasks and reconciles their results.
type Reconciler struct {
	queue    queue.Queue
	prober   probe.Prober
	registry Registry
	config   Config
	clock    Clock
}

// New creates a Reconciler using the wall clock.
func New(q queue.Queue, prober probe.Prober, reg Registry, config Config) *Reconciler {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}
	return &Reconciler{
		queue:    q,
		prober:   prober,
		registry: reg,
		config:   config,
		clock:    RealClock(),
	}
}

// WithClock replaces the time source.
func (r *Reconciler) WithClock(c Clock) *Reconciler {
	r.clock = c
	return r
}

// Submit adds the task to the queue unless a job with the same command
// already exists. A finished job whose output is gone is stale, for example
// after the failed flag was cleared, and is submitted again. It reports
// whether a new job was added.
func (r *Reconciler) Submit(ctx context.Context, t *task.Task) (bool, error) {
	jobs, err := r.queue.Jobs(ctx)
	if err != nil {
		return false, err
	}

	if job, ok := queue.Newest(jobs, t.Command); ok {
		if !job.Status.Terminal() || filesystem.Exists(t.TempPath) {
			logging.Info("%s is already queued as job %d (%s)", t.OriginFile, job.ID, job.Status)
			metrics.JobsSubmitted.WithLabelValues("existing").Inc()
			return false, nil
		}
		logging.Info("Job %d for %s is %s without output, submitting again", job.ID, t.OriginFile, job.Status)
		metrics.JobsSubmitted.WithLabelValues("stale").Inc()
	}

	removed, err := filesystem.RemoveIfExists(t.TempPath)
	if err != nil {
		return false, fmt.Errorf("failed to remove stale temp file %s: %w", t.TempPath, err)
	}
	if removed {
		logging.Info("Removed stale temp file %s", t.TempPath)
	}

	if err := r.queue.Add(ctx, t.Command, t.OriginFolder); err != nil {
		return false, err
	}
	metrics.JobsSubmitted.WithLabelValues("submitted").Inc()
	return true, nil
}

// Await polls the queue until the task's job is done, failed or gone. The
// first check happens immediately. On failure or disappearance the partial
// temp file is removed. Cancellation returns the context error and touches
// nothing.
func (r *Reconciler) Await(ctx context.Context, t *task.Task) (JobState, error) {
	start := r.clock.Now()

	for {
		jobs, err := r.queue.Jobs(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			return "", err
		}
		metrics.JobPolls.Inc()

		if state, terminal := jobState(jobs, t.Command); terminal {
			metrics.JobOutcomes.WithLabelValues(string(state)).Inc()
			metrics.JobWaitDuration.Observe(r.clock.Now().Sub(start).Seconds())

			if state != JobDone {
				if removed, err := filesystem.RemoveIfExists(t.TempPath); err != nil {
					logging.Warn("Failed to remove partial file %s: %v", t.TempPath, err)
				} else if removed {
					logging.Debug("Removed partial file %s", t.TempPath)
				}
			}
			return state, nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-r.clock.After(r.config.PollInterval):
		}
	}
}

func jobState(jobs []queue.Job, command string) (JobState, bool) {
	job, ok := queue.Newest(jobs, command)
	if !ok {
		return JobVanished, true
	}
	switch job.Status {
	case queue.StatusDone:
		return JobDone, true
	case queue.StatusFailed:
		return JobFailed, true
	}
	return "", false
}

// Validate decides whether the encoded file may replace the origin. The
// returned error explains a rejected or inconclusive verdict and wraps
// ErrValidationRejected or ErrInconclusive.
//
// When either duration is unknown the duration check is skipped and the
// size check alone decides. When either size cannot be read the verdict is
// inconclusive.
func (r *Reconciler) Validate(ctx context.Context, t *task.Task) (Verdict, error) {
	verdict, err := r.validate(ctx, t)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	metrics.ValidationVerdicts.WithLabelValues(string(verdict)).Inc()
	return verdict, err
}

func (r *Reconciler) validate(ctx context.Context, t *task.Task) (Verdict, error) {
	originDuration, originKnown := r.duration(ctx, t.OriginPath)
	tempDuration, tempKnown := r.duration(ctx, t.TempPath)

	if originKnown && tempKnown {
		diff := originDuration - tempDuration
		if diff < 0 {
			diff = -diff
		}
		if diff > r.config.DurationThreshold {
			return Rejected, fmt.Errorf("%w: duration differs by %s (origin %s, encoded %s)",
				ErrValidationRejected, diff, originDuration, tempDuration)
		}
	} else {
		logging.Warn("Duration of %s unknown, deciding on size alone", t.OriginFile)
	}

	originInfo, err := filesystem.StatWithRetry(t.OriginPath, filesystem.DefaultRetryConfig())
	if err != nil {
		return Inconclusive, fmt.Errorf("%w: cannot stat origin: %v", ErrInconclusive, err)
	}
	tempInfo, err := filesystem.StatWithRetry(t.TempPath, filesystem.DefaultRetryConfig())
	if err != nil {
		return Inconclusive, fmt.Errorf("%w: cannot stat encoded file: %v", ErrInconclusive, err)
	}

	if tempInfo.Size() >= originInfo.Size() {
		return Rejected, fmt.Errorf("%w: encoded file is not smaller (%d >= %d bytes)",
			ErrValidationRejected, tempInfo.Size(), originInfo.Size())
	}
	return Accepted, nil
}

func (r *Reconciler) duration(ctx context.Context, path string) (time.Duration, bool) {
	info, err := r.prober.Probe(ctx, path)
	if err != nil {
		logging.Debug("Failed to probe %s: %v", path, err)
		return 0, false
	}
	return info.Duration, info.DurationKnown
}

// stageFile is swapped in tests to simulate failing copies.
var stageFile = filesystem.Stage

// Commit replaces the origin with the encoded file and marks the movie
// encoded. The encoded file is staged next to the origin before the origin
// is removed. Once the origin is gone the remaining steps run even if ctx
// is cancelled.
func (r *Reconciler) Commit(ctx context.Context, t *task.Task) error {
	hash, err := filesystem.HashFile(t.TempPath)
	if err != nil {
		return fmt.Errorf("failed to hash %s: %w", t.TempPath, err)
	}
	tempInfo, err := filesystem.StatWithRetry(t.TempPath, filesystem.DefaultRetryConfig())
	if err != nil {
		return err
	}
	originInfo, err := filesystem.StatWithRetry(t.OriginPath, filesystem.DefaultRetryConfig())
	if err != nil {
		return err
	}

	staged, err := stageFile(t.TempPath, t.TargetPath)
	if err != nil {
		return fmt.Errorf("failed to stage %s in %s: %w", t.TempPath, t.OriginFolder, err)
	}

	if err := os.Remove(t.OriginPath); err != nil {
		unstage(staged, t.TempPath)
		return fmt.Errorf("failed to remove origin %s: %w", t.OriginPath, err)
	}
	ctx = context.WithoutCancel(ctx)

	if err := os.Rename(staged, t.TargetPath); err != nil {
		logging.Error("Origin %s was removed but the encoded file is still at %s", t.OriginPath, staged)
		return fmt.Errorf("failed to move %s to %s: %w", staged, t.TargetPath, err)
	}
	// left behind by a cross-device stage
	if _, err := filesystem.RemoveIfExists(t.TempPath); err != nil {
		logging.Warn("Failed to remove %s: %v", t.TempPath, err)
	}

	if err := filesystem.CopyAttributes(originInfo, t.TargetPath); err != nil {
		var ownErr *filesystem.OwnershipError
		if errors.As(err, &ownErr) {
			logging.Warn("%v", err)
		} else {
			logging.Error("Failed to copy permissions to %s: %v", t.TargetPath, err)
		}
	}

	if err := r.registry.MarkEncoded(ctx, t.Movie, t.TargetFile(), tempInfo.Size(), hash); err != nil {
		return err
	}

	saved := originInfo.Size() - tempInfo.Size()
	metrics.BytesReclaimed.Add(float64(saved))
	logging.Info("Encoded %s -> %s, saved %d bytes", t.OriginFile, t.TargetFile(), saved)
	return nil
}

// unstage undoes a stage when the origin could not be removed.
func unstage(staged, temp string) {
	if filesystem.Exists(temp) {
		if _, err := filesystem.RemoveIfExists(staged); err != nil {
			logging.Warn("Failed to remove staged file %s: %v", staged, err)
		}
		return
	}
	if err := filesystem.MoveFile(staged, temp); err != nil {
		logging.Error("Encoded file left at %s: %v", staged, err)
	}
}

// Reject deletes the encoded file and marks the movie failed. The origin is
// left as it is.
func (r *Reconciler) Reject(ctx context.Context, t *task.Task) error {
	if _, err := filesystem.RemoveIfExists(t.TempPath); err != nil {
		logging.Warn("Failed to remove rejected file %s: %v", t.TempPath, err)
	}
	return r.registry.MarkFailed(ctx, t.Movie)
}

// Reconcile waits for the task's job and acts on the result. Errors are
// returned only for context cancellation, an unreachable queue, or a failed
// registry or filesystem update; a rejected encode is an outcome, not an
// error.
func (r *Reconciler) Reconcile(ctx context.Context, t *task.Task) (Outcome, error) {
	state, err := r.Await(ctx, t)
	if err != nil {
		return "", err
	}

	switch state {
	case JobVanished:
		logging.Warn("Job for %s disappeared from the queue, it will be resubmitted on the next run", t.OriginFile)
		return OutcomeVanished, nil
	case JobFailed:
		logging.Error("Encoding %s failed", t.OriginFile)
		return OutcomeFailed, r.registry.MarkFailed(ctx, t.Movie)
	}

	if !filesystem.Exists(t.TempPath) {
		logging.Error("Job for %s finished without output at %s", t.OriginFile, t.TempPath)
		return OutcomeFailed, r.registry.MarkFailed(ctx, t.Movie)
	}

	verdict, reason := r.Validate(ctx, t)
	switch verdict {
	case Accepted:
		if err := r.Commit(ctx, t); err != nil {
			return "", err
		}
		return OutcomeAccepted, nil
	case Rejected:
		logging.Warn("Rejected %s: %v", t.TempPath, reason)
		return OutcomeRejected, r.Reject(ctx, t)
	case Inconclusive:
		logging.Warn("Cannot validate %s, left for manual review: %v", t.TempPath, reason)
		return OutcomeInconclusive, nil
	}
	// Validate only returns no verdict on cancellation
	return "", reason
}
