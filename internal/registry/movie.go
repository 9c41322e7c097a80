package registry

import (
	"context"
	"path/filepath"
)

// Movie is the persisted record of a single tracked file.
type Movie struct {
	ID           int64
	Hash         string
	Name         string
	Directory    string
	Size         int64
	OriginalSize int64
	Encoded      bool
	Failed       bool
}

// Path returns the movie's last known location.
func (m *Movie) Path() string {
	return filepath.Join(m.Directory, m.Name)
}

// Done reports whether the movie must not be submitted again.
func (m *Movie) Done() bool {
	return m.Encoded || m.Failed
}

// Saved returns the bytes reclaimed by encoding this movie.
func (m *Movie) Saved() int64 {
	if !m.Encoded {
		return 0
	}
	return m.OriginalSize - m.Size
}

// Stats summarises the registry.
type Stats struct {
	Encoded    int
	Failed     int
	Pending    int
	SavedBytes int64
}

// Store persists movie records. Lookups return (nil, nil) when nothing
// matches. FindByHash returns matches ordered by ascending ID.
type Store interface {
	FindByLocation(ctx context.Context, name, directory string, size int64) (*Movie, error)
	FindByHash(ctx context.Context, hash string) ([]*Movie, error)
	FindByPath(ctx context.Context, name, directory string) (*Movie, error)
	Insert(ctx context.Context, m *Movie) error
	Update(ctx context.Context, m *Movie) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*Movie, error)
	Stats(ctx context.Context) (Stats, error)
}
