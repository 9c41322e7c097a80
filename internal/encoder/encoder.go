package encoder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Nukesor/encarne/internal/logging"
	"github.com/Nukesor/encarne/internal/metrics"
	"github.com/Nukesor/encarne/internal/queue"
	"github.com/Nukesor/encarne/internal/reconciler"
	"github.com/Nukesor/encarne/internal/scanner"
	"github.com/Nukesor/encarne/internal/task"
)

// Filter selects the files that need encoding.
type Filter interface {
	Filter(ctx context.Context, paths []string) ([]*task.Task, scanner.Stats, error)
}

// Reconciler submits and reconciles single tasks.
type Reconciler interface {
	Submit(ctx context.Context, t *task.Task) (bool, error)
	Reconcile(ctx context.Context, t *task.Task) (reconciler.Outcome, error)
}

// Summary counts what happened during a run.
type Summary struct {
	Found        int
	Tasks        int
	Submitted    int
	Skipped      int
	Accepted     int
	Rejected     int
	Inconclusive int
	Failed       int
	Vanished     int
	// Errors counts tasks that could not be submitted or reconciled.
	Errors   int
	Duration time.Duration
	// Review lists encoded files kept in scratch because they could not be
	// validated.
	Review []string
}

func (s *Summary) count(outcome reconciler.Outcome) {
	switch outcome {
	case reconciler.OutcomeAccepted:
		s.Accepted++
	case reconciler.OutcomeRejected:
		s.Rejected++
	case reconciler.OutcomeInconclusive:
		s.Inconclusive++
	case reconciler.OutcomeFailed:
		s.Failed++
	case reconciler.OutcomeVanished:
		s.Vanished++
	}
}

// Encoder sequences a run.
type Encoder struct {
	filter     Filter
	reconciler Reconciler
	scan       func(ctx context.Context, root string) ([]string, error)
}

// New creates an Encoder.
func New(filter Filter, rec Reconciler) *Encoder {
	return &Encoder{filter: filter, reconciler: rec, scan: scanner.Scan}
}

// Run processes every video below root. Zero eligible files is a clean run.
func (e *Encoder) Run(ctx context.Context, root string) (summary Summary, err error) {
	start := time.Now()
	metrics.SetRunActive(true)
	defer func() {
		metrics.SetRunActive(false)
		summary.Duration = time.Since(start)
		recordRun(summary)
		logSummary(summary, err)
	}()

	paths, err := e.scan(ctx, root)
	if err != nil {
		return summary, err
	}
	logging.Info("Found %d video files in %s", len(paths), root)

	tasks, stats, err := e.filter.Filter(ctx, paths)
	summary.Found = stats.Found
	summary.Tasks = stats.Tasks
	summary.Skipped = stats.Skipped()
	if err != nil {
		return summary, err
	}
	if len(tasks) == 0 {
		logging.Info("Nothing to encode")
		return summary, nil
	}

	var pending []*task.Task
	for _, t := range tasks {
		submitted, err := e.reconciler.Submit(ctx, t)
		if err != nil {
			if fatal(ctx, err) {
				return summary, err
			}
			logging.Error("Failed to submit %s: %v", t.OriginPath, err)
			summary.Errors++
			continue
		}
		if submitted {
			summary.Submitted++
		}
		pending = append(pending, t)
	}

	for i, t := range pending {
		logging.Info("Waiting for %s (%d/%d)", t.OriginFile, i+1, len(pending))
		outcome, err := e.reconciler.Reconcile(ctx, t)
		if err != nil {
			if fatal(ctx, err) {
				return summary, err
			}
			logging.Error("Failed to finish %s: %v", t.OriginPath, err)
			summary.Errors++
			continue
		}
		summary.count(outcome)
		if outcome == reconciler.OutcomeInconclusive {
			summary.Review = append(summary.Review, t.TempPath)
		}
	}
	return summary, nil
}

// fatal reports whether err must end the run.
func fatal(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, queue.ErrQueueUnavailable)
}

func recordRun(s Summary) {
	metrics.RunLastTimestamp.SetToCurrentTime()
	metrics.RunLastDuration.Set(s.Duration.Seconds())
	metrics.RunTasks.WithLabelValues("accepted").Set(float64(s.Accepted))
	metrics.RunTasks.WithLabelValues("rejected").Set(float64(s.Rejected))
	metrics.RunTasks.WithLabelValues("inconclusive").Set(float64(s.Inconclusive))
	metrics.RunTasks.WithLabelValues("failed").Set(float64(s.Failed))
	metrics.RunTasks.WithLabelValues("vanished").Set(float64(s.Vanished))
}

func logSummary(s Summary, err error) {
	status := "finished"
	if err != nil {
		status = fmt.Sprintf("aborted (%v)", err)
	}
	logging.Info("Run %s after %v: %d found, %d tasks, %d skipped, %d accepted, %d rejected, %d inconclusive, %d failed, %d vanished, %d errors",
		status, s.Duration.Round(time.Second), s.Found, s.Tasks, s.Skipped,
		s.Accepted, s.Rejected, s.Inconclusive, s.Failed, s.Vanished, s.Errors)
	for _, path := range s.Review {
		logging.Warn("Needs manual review: %s", path)
	}
}
