package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Nukesor/encarne/internal/filesystem"
	"github.com/Nukesor/encarne/internal/logging"
	"github.com/Nukesor/encarne/internal/metrics"
)

var (
	// ErrFileVanished is returned when a file disappears before it could be
	// hashed. The registry is left unchanged.
	ErrFileVanished = errors.New("file vanished")

	// ErrNotFound is returned when no record matches.
	ErrNotFound = errors.New("movie not found")
)

// HashFunc computes the content fingerprint of a file.
type HashFunc func(path string) (string, error)

// Registry resolves files to movie records and records encode outcomes.
// All mutations are serialized through a single mutex.
type Registry struct {
	store Store
	hash  HashFunc
	mu    sync.Mutex
}

// New creates a Registry backed by store, hashing files with
// filesystem.HashFile.
func New(store Store) *Registry {
	return &Registry{store: store, hash: filesystem.HashFile}
}

// WithHashFunc replaces the hash function. Intended for tests.
func (r *Registry) WithHashFunc(fn HashFunc) *Registry {
	r.hash = fn
	return r
}

func (r *Registry) hashFile(path string) (string, error) {
	start := time.Now()
	h, err := r.hash(path)
	metrics.RegistryHashDuration.Observe(time.Since(start).Seconds())
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrFileVanished, path)
	}
	return h, err
}

// Resolve finds or creates the record for the file name in directory with
// the given size.
func (r *Registry) Resolve(ctx context.Context, name, directory string, size int64) (*Movie, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	movie, err := r.store.FindByLocation(ctx, name, directory, size)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", name, err)
	}
	if movie != nil {
		if movie.Hash == "" {
			if err := r.fillHash(ctx, movie); err != nil {
				return nil, err
			}
		}
		metrics.RegistryResolutions.WithLabelValues("location").Inc()
		return movie, nil
	}

	path := filepath.Join(directory, name)
	hash, err := r.hashFile(path)
	if err != nil {
		if errors.Is(err, ErrFileVanished) {
			metrics.RegistryResolutions.WithLabelValues("vanished").Inc()
		}
		return nil, err
	}

	movie, err = r.findByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if movie != nil {
		logging.Info("Movie %s moved to %s", movie.Path(), path)
		movie.Name = name
		movie.Directory = directory
		movie.Size = size
		if err := r.store.Update(ctx, movie); err != nil {
			return nil, fmt.Errorf("failed to follow rename of %s: %w", path, err)
		}
		metrics.RegistryResolutions.WithLabelValues("renamed").Inc()
		return movie, nil
	}

	movie = &Movie{
		Hash:         hash,
		Name:         name,
		Directory:    directory,
		Size:         size,
		OriginalSize: size,
	}
	if err := r.store.Insert(ctx, movie); err != nil {
		return nil, fmt.Errorf("failed to create record for %s: %w", path, err)
	}
	metrics.RegistryResolutions.WithLabelValues("created").Inc()
	logging.Debug("Registered new movie %s (id %d)", path, movie.ID)
	return movie, nil
}

// fillHash computes and stores the hash of a record found by location that
// was written before its hash was known.
func (r *Registry) fillHash(ctx context.Context, movie *Movie) error {
	hash, err := r.hashFile(movie.Path())
	if err != nil {
		return err
	}

	existing, err := r.findByHash(ctx, hash)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != movie.ID {
		// Another record already owns this content. Keep the older one.
		logging.Warn("Movie %s duplicates record %d, merging", movie.Path(), existing.ID)
		metrics.RegistryDuplicates.Inc()
		if err := r.store.Delete(ctx, movie.ID); err != nil {
			return fmt.Errorf("failed to drop duplicate record %d: %w", movie.ID, err)
		}
		existing.Name = movie.Name
		existing.Directory = movie.Directory
		existing.Size = movie.Size
		existing.Encoded = existing.Encoded || movie.Encoded
		existing.Failed = existing.Failed || movie.Failed
		if err := r.store.Update(ctx, existing); err != nil {
			return err
		}
		*movie = *existing
		return nil
	}

	movie.Hash = hash
	return r.store.Update(ctx, movie)
}

// findByHash returns the oldest record carrying hash and collapses any
// younger duplicates into it.
func (r *Registry) findByHash(ctx context.Context, hash string) (*Movie, error) {
	movies, err := r.store.FindByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to look up hash %s: %w", hash, err)
	}
	if len(movies) == 0 {
		return nil, nil
	}

	keep := movies[0]
	for _, dup := range movies[1:] {
		logging.Warn("Duplicate record %d (%s) shares hash %s with record %d, removing it",
			dup.ID, dup.Path(), hash, keep.ID)
		metrics.RegistryDuplicates.Inc()
		if err := r.store.Delete(ctx, dup.ID); err != nil {
			return nil, fmt.Errorf("failed to remove duplicate record %d: %w", dup.ID, err)
		}
	}
	return keep, nil
}

// MarkEncoded records that movie was replaced by the encoded file newName
// of newSize bytes with content hash newHash.
func (r *Registry) MarkEncoded(ctx context.Context, movie *Movie, newName string, newSize int64, newHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	updated := *movie
	updated.Encoded = true
	updated.Name = newName
	updated.Size = newSize
	updated.Hash = newHash
	if err := r.store.Update(ctx, &updated); err != nil {
		return fmt.Errorf("failed to mark %s encoded: %w", movie.Path(), err)
	}
	*movie = updated
	return nil
}

// MarkFailed records that encoding movie failed. It will not be submitted
// again until the flag is cleared.
func (r *Registry) MarkFailed(ctx context.Context, movie *Movie) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	updated := *movie
	updated.Failed = true
	if err := r.store.Update(ctx, &updated); err != nil {
		return fmt.Errorf("failed to mark %s failed: %w", movie.Path(), err)
	}
	*movie = updated
	return nil
}

// Lookup returns the movie recorded at path, or ErrNotFound.
func (r *Registry) Lookup(ctx context.Context, path string) (*Movie, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	movie, err := r.store.FindByPath(ctx, filepath.Base(abs), filepath.Dir(abs))
	if err != nil {
		return nil, err
	}
	if movie == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, abs)
	}
	return movie, nil
}

// ClearFailed resets the failed flag of the movie at path so the next run
// submits it again.
func (r *Registry) ClearFailed(ctx context.Context, path string) (*Movie, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	movie, err := r.Lookup(ctx, path)
	if err != nil {
		return nil, err
	}
	if !movie.Failed {
		return movie, nil
	}

	movie.Failed = false
	if err := r.store.Update(ctx, movie); err != nil {
		return nil, fmt.Errorf("failed to clear failed flag on %s: %w", movie.Path(), err)
	}
	return movie, nil
}

// PurgeResult counts the outcome of PurgeMissing.
type PurgeResult struct {
	Checked  int
	Followed int
	Deleted  int
}

// PurgeMissing drops records whose file no longer exists. Before deleting,
// the record's directory is searched for a file of the same size and hash,
// which is treated as a rename. Moves into other directories are not found
// here; they are followed by Resolve during the next run only if the record
// still exists.
func (r *Registry) PurgeMissing(ctx context.Context) (PurgeResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result PurgeResult
	movies, err := r.store.List(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list movies: %w", err)
	}

	for _, movie := range movies {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Checked++
		if filesystem.Exists(movie.Path()) {
			continue
		}

		if name, ok := r.relocate(movie); ok {
			logging.Info("Movie %s was renamed to %s", movie.Path(), name)
			movie.Name = name
			if err := r.store.Update(ctx, movie); err != nil {
				return result, err
			}
			result.Followed++
			metrics.RegistryPurged.WithLabelValues("followed").Inc()
			continue
		}

		if movie.Failed {
			logging.Info("Removing record of missing movie %s, it is no longer marked failed if it turns up elsewhere", movie.Path())
		} else {
			logging.Info("Removing record of missing movie %s", movie.Path())
		}
		if err := r.store.Delete(ctx, movie.ID); err != nil {
			return result, err
		}
		result.Deleted++
		metrics.RegistryPurged.WithLabelValues("deleted").Inc()
	}

	return result, nil
}

// relocate looks for movie's content under a different name in its
// directory.
func (r *Registry) relocate(movie *Movie) (string, bool) {
	if movie.Hash == "" {
		return "", false
	}
	entries, err := os.ReadDir(movie.Directory)
	if err != nil {
		return "", false
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.Size() != movie.Size {
			continue
		}
		hash, err := r.hashFile(filepath.Join(movie.Directory, entry.Name()))
		if err != nil {
			continue
		}
		if hash == movie.Hash {
			return entry.Name(), true
		}
	}
	return "", false
}

// Stats summarises the registry.
func (r *Registry) Stats(ctx context.Context) (Stats, error) {
	return r.store.Stats(ctx)
}

// LibraryStats implements metrics.StatsProvider.
func (r *Registry) LibraryStats() (metrics.LibraryStats, error) {
	st, err := r.store.Stats(context.Background())
	if err != nil {
		return metrics.LibraryStats{}, err
	}
	return metrics.LibraryStats{
		Encoded:    st.Encoded,
		Failed:     st.Failed,
		Pending:    st.Pending,
		SavedBytes: st.SavedBytes,
	}, nil
}
