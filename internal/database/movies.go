package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Nukesor/encarne/internal/registry"
)

const movieColumns = `id, hash, name, directory, size, original_size, encoded, failed`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMovie(row rowScanner) (*registry.Movie, error) {
	var m registry.Movie
	err := row.Scan(&m.ID, &m.Hash, &m.Name, &m.Directory, &m.Size, &m.OriginalSize, &m.Encoded, &m.Failed)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (d *Database) queryOne(ctx context.Context, operation, query string, args ...any) (*registry.Movie, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery(operation, start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	movie, err := scanMovie(d.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return nil, nil
	}
	return movie, err
}

func (d *Database) queryMany(ctx context.Context, operation, query string, args ...any) ([]*registry.Movie, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery(operation, start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movies []*registry.Movie
	for rows.Next() {
		var m *registry.Movie
		m, err = scanMovie(rows)
		if err != nil {
			return nil, err
		}
		movies = append(movies, m)
	}
	err = rows.Err()
	return movies, err
}

// FindByLocation returns the oldest record at name/directory with size.
func (d *Database) FindByLocation(ctx context.Context, name, directory string, size int64) (*registry.Movie, error) {
	return d.queryOne(ctx, "find_by_location",
		`SELECT `+movieColumns+` FROM movies WHERE name = ? AND directory = ? AND size = ? ORDER BY id LIMIT 1`,
		name, directory, size)
}

// FindByPath returns the oldest record at name/directory regardless of size.
func (d *Database) FindByPath(ctx context.Context, name, directory string) (*registry.Movie, error) {
	return d.queryOne(ctx, "get_movie",
		`SELECT `+movieColumns+` FROM movies WHERE name = ? AND directory = ? ORDER BY id LIMIT 1`,
		name, directory)
}

// FindByHash returns all records with hash, oldest first.
func (d *Database) FindByHash(ctx context.Context, hash string) ([]*registry.Movie, error) {
	return d.queryMany(ctx, "find_by_hash",
		`SELECT `+movieColumns+` FROM movies WHERE hash = ? ORDER BY id`, hash)
}

// List returns every record, oldest first.
func (d *Database) List(ctx context.Context) ([]*registry.Movie, error) {
	return d.queryMany(ctx, "list_movies", `SELECT `+movieColumns+` FROM movies ORDER BY id`)
}

// exec runs a single mutation in its own transaction.
func (d *Database) exec(ctx context.Context, operation, query string, args ...any) (result sql.Result, err error) {
	start := time.Now()
	defer func() { recordQuery(operation, start, err) }()

	tx, err := d.BeginBatch()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err = tx.ExecContext(ctx, query, args...)
	err = d.EndBatch(tx, err)
	return result, err
}

// Insert stores a new record and sets its ID.
func (d *Database) Insert(ctx context.Context, m *registry.Movie) error {
	result, err := d.exec(ctx, "insert_movie", `
		INSERT INTO movies (hash, name, directory, size, original_size, encoded, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.Hash, m.Name, m.Directory, m.Size, m.OriginalSize, m.Encoded, m.Failed)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = id
	return nil
}

// Update overwrites the record with m.ID.
func (d *Database) Update(ctx context.Context, m *registry.Movie) error {
	result, err := d.exec(ctx, "update_movie", `
		UPDATE movies
		SET hash = ?, name = ?, directory = ?, size = ?, original_size = ?,
			encoded = ?, failed = ?, updated_at = strftime('%s', 'now')
		WHERE id = ?`,
		m.Hash, m.Name, m.Directory, m.Size, m.OriginalSize, m.Encoded, m.Failed, m.ID)
	if err != nil {
		return err
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: id %d", registry.ErrNotFound, m.ID)
	}
	return nil
}

// Delete removes the record with id.
func (d *Database) Delete(ctx context.Context, id int64) error {
	_, err := d.exec(ctx, "delete_movie", `DELETE FROM movies WHERE id = ?`, id)
	return err
}

// Stats aggregates the movies table. Failed takes precedence over encoded.
func (d *Database) Stats(ctx context.Context) (registry.Stats, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("stats", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var st registry.Stats
	err = d.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN failed = 0 AND encoded = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN failed = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN failed = 0 AND encoded = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(original_size - size), 0)
		FROM movies
	`).Scan(&st.Encoded, &st.Failed, &st.Pending, &st.SavedBytes)
	return st, err
}

var _ registry.Store = (*Database)(nil)
