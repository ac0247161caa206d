package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/route-geocoder/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS learned_locations (
	id          TEXT PRIMARY KEY,
	address_key TEXT NOT NULL UNIQUE,
	raw_address TEXT NOT NULL,
	bairro      TEXT NOT NULL DEFAULT '',
	cidade      TEXT NOT NULL DEFAULT '',
	estado      TEXT NOT NULL DEFAULT '',
	latitude    REAL NOT NULL,
	longitude   REAL NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_learned_locations_updated_at ON learned_locations(updated_at);
`

// Migrate creates the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteUpsert = `
INSERT INTO learned_locations (id, address_key, raw_address, bairro, cidade, estado, latitude, longitude, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(address_key) DO UPDATE SET
	raw_address = excluded.raw_address,
	bairro      = excluded.bairro,
	cidade      = excluded.cidade,
	estado      = excluded.estado,
	latitude    = excluded.latitude,
	longitude   = excluded.longitude,
	updated_at  = excluded.updated_at`

const sqliteSelect = `SELECT id, address_key, raw_address, bairro, cidade, estado, latitude, longitude, created_at, updated_at FROM learned_locations`

// GetLocation implements Store.
func (s *SQLiteStore) GetLocation(ctx context.Context, key string) (*model.LearnedLocation, error) {
	loc, err := scanLocation(s.db.QueryRowContext(ctx, sqliteSelect+` WHERE address_key = ?`, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get location")
	}
	return loc, nil
}

// PutLocation implements Store.
func (s *SQLiteStore) PutLocation(ctx context.Context, loc model.LearnedLocation) (*model.LearnedLocation, error) {
	if loc.Key == "" {
		return nil, eris.New("sqlite: put location: empty key")
	}
	if err := s.upsert(ctx, s.db, loc, time.Now().UTC()); err != nil {
		return nil, err
	}
	return s.GetLocation(ctx, loc.Key)
}

// PutLocations implements Store.
func (s *SQLiteStore) PutLocations(ctx context.Context, locs []model.LearnedLocation) (int64, error) {
	locs = dedupe(locs)
	if len(locs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: put locations: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for _, loc := range locs {
		if loc.Key == "" {
			return 0, eris.New("sqlite: put locations: empty key")
		}
		if err := s.upsert(ctx, tx, loc, now); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: put locations: commit")
	}
	return int64(len(locs)), nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) upsert(ctx context.Context, ex execer, loc model.LearnedLocation, now time.Time) error {
	_, err := ex.ExecContext(ctx, sqliteUpsert,
		uuid.New().String(), loc.Key, loc.RawAddress, loc.Bairro, loc.Cidade, loc.Estado,
		loc.Latitude, loc.Longitude, now, now,
	)
	return eris.Wrap(err, "sqlite: upsert location")
}

// ListLocations implements Store.
func (s *SQLiteStore) ListLocations(ctx context.Context, limit int) ([]model.LearnedLocation, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, sqliteSelect+` ORDER BY updated_at DESC, address_key LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list locations")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.LearnedLocation
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan location")
		}
		out = append(out, *loc)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list locations")
}

// rowScanner is satisfied by *sql.Row, *sql.Rows and pgx.Row.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanLocation(row rowScanner) (*model.LearnedLocation, error) {
	var loc model.LearnedLocation
	err := row.Scan(&loc.ID, &loc.Key, &loc.RawAddress, &loc.Bairro, &loc.Cidade, &loc.Estado,
		&loc.Latitude, &loc.Longitude, &loc.CreatedAt, &loc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &loc, nil
}
