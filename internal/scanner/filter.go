package scanner

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/Nukesor/encarne/internal/command"
	"github.com/Nukesor/encarne/internal/filesystem"
	"github.com/Nukesor/encarne/internal/logging"
	"github.com/Nukesor/encarne/internal/mediatypes"
	"github.com/Nukesor/encarne/internal/metrics"
	"github.com/Nukesor/encarne/internal/probe"
	"github.com/Nukesor/encarne/internal/registry"
	"github.com/Nukesor/encarne/internal/task"
)

// Registry is the part of the movie registry the filter needs.
type Registry interface {
	Resolve(ctx context.Context, name, directory string, size int64) (*registry.Movie, error)
	MarkEncoded(ctx context.Context, movie *registry.Movie, newName string, newSize int64, newHash string) error
}

// Config holds the filter settings.
type Config struct {
	// MinSize is the smallest file, in bytes, worth encoding.
	MinSize    int64
	ScratchDir string
	Encoding   command.Encoding
}

// Stats counts filter decisions.
type Stats struct {
	Found          int
	Tasks          int
	Done           int
	AlreadyEncoded int
	TooSmall       int
	Duplicates     int
	Vanished       int
	Errors         int
}

// Skipped returns the number of files that did not become a task.
func (s Stats) Skipped() int {
	return s.Found - s.Tasks
}

// Filter turns candidate paths into encode tasks.
type Filter struct {
	registry Registry
	prober   probe.Prober
	config   Config
}

// NewFilter creates a Filter.
func NewFilter(reg Registry, prober probe.Prober, config Config) *Filter {
	return &Filter{registry: reg, prober: prober, config: config}
}

// Filter evaluates paths in order and returns a task for every file that
// still needs encoding. Errors on single files are logged and counted; only
// context cancellation is returned.
func (f *Filter) Filter(ctx context.Context, paths []string) ([]*task.Task, Stats, error) {
	stats := Stats{Found: len(paths)}
	seen := make(map[int64]bool)
	var tasks []*task.Task

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return tasks, stats, err
		}

		decision, t := f.evaluate(ctx, path, seen)
		metrics.FilterDecisions.WithLabelValues(decision).Inc()

		switch decision {
		case decisionTask:
			tasks = append(tasks, t)
			stats.Tasks++
		case decisionDone:
			stats.Done++
		case decisionAlreadyEncoded:
			stats.AlreadyEncoded++
		case decisionTooSmall:
			stats.TooSmall++
		case decisionDuplicate:
			stats.Duplicates++
		case decisionVanished:
			stats.Vanished++
		default:
			stats.Errors++
		}
	}

	return tasks, stats, nil
}

const (
	decisionTask           = "task"
	decisionDone           = "done"
	decisionAlreadyEncoded = "already_encoded"
	decisionTooSmall       = "too_small"
	decisionDuplicate      = "duplicate"
	decisionVanished       = "vanished"
	decisionError          = "error"
)

func (f *Filter) evaluate(ctx context.Context, path string, seen map[int64]bool) (string, *task.Task) {
	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		logging.Warn("Skipping %s: %v", path, err)
		return decisionVanished, nil
	}
	size := info.Size()

	movie, err := f.registry.Resolve(ctx, filepath.Base(path), filepath.Dir(path), size)
	if errors.Is(err, registry.ErrFileVanished) {
		logging.Warn("Skipping %s: file vanished", path)
		return decisionVanished, nil
	}
	if err != nil {
		logging.Error("Failed to resolve %s: %v", path, err)
		return decisionError, nil
	}

	if movie.Done() {
		logging.Debug("Skipping %s: encoded=%v failed=%v", path, movie.Encoded, movie.Failed)
		return decisionDone, nil
	}

	if seen[movie.ID] {
		logging.Info("Skipping %s: same content as another file in this run", path)
		return decisionDuplicate, nil
	}
	seen[movie.ID] = true

	if f.alreadyEncoded(ctx, path) {
		if err := f.registry.MarkEncoded(ctx, movie, movie.Name, movie.Size, movie.Hash); err != nil {
			logging.Error("Failed to mark %s as encoded: %v", path, err)
			return decisionError, nil
		}
		return decisionAlreadyEncoded, nil
	}

	if size < f.config.MinSize {
		logging.Debug("Skipping %s: smaller than min-size", path)
		return decisionTooSmall, nil
	}

	return decisionTask, task.New(path, f.config.ScratchDir, f.config.Encoding, movie)
}

// alreadyEncoded reports whether path is HEVC by name or by probe. A failed
// probe counts as not encoded.
func (f *Filter) alreadyEncoded(ctx context.Context, path string) bool {
	if mediatypes.HasTargetMarker(path) {
		logging.Debug("Skipping %s: name marks it as HEVC", path)
		return true
	}

	info, err := f.prober.Probe(ctx, path)
	if err != nil {
		metrics.ProbeFailures.Inc()
		logging.Info("Failed to get encoding for %s: %v", path, err)
		return false
	}
	if mediatypes.IsTargetCodec(info.Codec) || mediatypes.IsTargetCodec(info.Encoder) {
		logging.Debug("Skipping %s: already %s", path, info.CodecName())
		return true
	}
	return false
}
