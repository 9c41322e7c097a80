package registry

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store. Records are copied on the way in and
// out, so callers never share state with the store.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	movies map[int64]Movie
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{movies: make(map[int64]Movie)}
}

func (s *MemoryStore) sorted() []Movie {
	out := make([]Movie, 0, len(s.movies))
	for _, m := range s.movies {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemoryStore) FindByLocation(_ context.Context, name, directory string, size int64) (*Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.sorted() {
		if m.Name == name && m.Directory == directory && m.Size == size {
			return &m, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) FindByHash(_ context.Context, hash string) ([]*Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Movie
	for _, m := range s.sorted() {
		m := m
		if m.Hash == hash {
			out = append(out, &m)
		}
	}
	return out, nil
}

func (s *MemoryStore) FindByPath(_ context.Context, name, directory string) (*Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.sorted() {
		if m.Name == name && m.Directory == directory {
			return &m, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) Insert(_ context.Context, m *Movie) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	m.ID = s.nextID
	s.movies[m.ID] = *m
	return nil
}

func (s *MemoryStore) Update(_ context.Context, m *Movie) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.movies[m.ID]; !ok {
		return ErrNotFound
	}
	s.movies[m.ID] = *m
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.movies, id)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]*Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Movie, 0, len(s.movies))
	for _, m := range s.sorted() {
		m := m
		out = append(out, &m)
	}
	return out, nil
}

func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st Stats
	for _, m := range s.movies {
		st.SavedBytes += m.OriginalSize - m.Size
		switch {
		case m.Failed:
			st.Failed++
		case m.Encoded:
			st.Encoded++
		default:
			st.Pending++
		}
	}
	return st, nil
}
