package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/route-geocoder/internal/db"
	"github.com/sells-group/route-geocoder/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS learned_locations (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	address_key TEXT NOT NULL UNIQUE,
	raw_address TEXT NOT NULL,
	bairro      TEXT NOT NULL DEFAULT '',
	cidade      TEXT NOT NULL DEFAULT '',
	estado      TEXT NOT NULL DEFAULT '',
	latitude    DOUBLE PRECISION NOT NULL,
	longitude   DOUBLE PRECISION NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_learned_locations_updated_at ON learned_locations(updated_at DESC);
`

// Migrate creates the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const postgresSelect = `SELECT id, address_key, raw_address, bairro, cidade, estado, latitude, longitude, created_at, updated_at FROM learned_locations`

// GetLocation implements Store.
func (s *PostgresStore) GetLocation(ctx context.Context, key string) (*model.LearnedLocation, error) {
	loc, err := scanLocation(s.pool.QueryRow(ctx, postgresSelect+` WHERE address_key = $1`, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get location")
	}
	return loc, nil
}

// PutLocation implements Store.
func (s *PostgresStore) PutLocation(ctx context.Context, loc model.LearnedLocation) (*model.LearnedLocation, error) {
	if loc.Key == "" {
		return nil, eris.New("postgres: put location: empty key")
	}
	now := time.Now().UTC()
	stored, err := scanLocation(s.pool.QueryRow(ctx, `
		INSERT INTO learned_locations (id, address_key, raw_address, bairro, cidade, estado, latitude, longitude, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (address_key) DO UPDATE SET
			raw_address = EXCLUDED.raw_address,
			bairro      = EXCLUDED.bairro,
			cidade      = EXCLUDED.cidade,
			estado      = EXCLUDED.estado,
			latitude    = EXCLUDED.latitude,
			longitude   = EXCLUDED.longitude,
			updated_at  = EXCLUDED.updated_at
		RETURNING id, address_key, raw_address, bairro, cidade, estado, latitude, longitude, created_at, updated_at`,
		uuid.New().String(), loc.Key, loc.RawAddress, loc.Bairro, loc.Cidade, loc.Estado,
		loc.Latitude, loc.Longitude, now,
	))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: put location")
	}
	return stored, nil
}

var learnedUpsert = db.UpsertConfig{
	Table:        "learned_locations",
	Columns:      []string{"id", "address_key", "raw_address", "bairro", "cidade", "estado", "latitude", "longitude", "created_at", "updated_at"},
	ConflictKeys: []string{"address_key"},
	UpdateCols:   []string{"raw_address", "bairro", "cidade", "estado", "latitude", "longitude", "updated_at"},
}

// PutLocations implements Store.
func (s *PostgresStore) PutLocations(ctx context.Context, locs []model.LearnedLocation) (int64, error) {
	locs = dedupe(locs)
	now := time.Now().UTC()
	rows := make([][]any, 0, len(locs))
	for _, loc := range locs {
		if loc.Key == "" {
			return 0, eris.New("postgres: put locations: empty key")
		}
		rows = append(rows, []any{
			uuid.New().String(), loc.Key, loc.RawAddress, loc.Bairro, loc.Cidade, loc.Estado,
			loc.Latitude, loc.Longitude, now, now,
		})
	}
	n, err := db.BulkUpsert(ctx, s.pool, learnedUpsert, rows)
	return n, eris.Wrap(err, "postgres: put locations")
}

// ListLocations implements Store.
func (s *PostgresStore) ListLocations(ctx context.Context, limit int) ([]model.LearnedLocation, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, postgresSelect+` ORDER BY updated_at DESC, address_key LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list locations")
	}
	defer rows.Close()

	var out []model.LearnedLocation
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan location")
		}
		out = append(out, *loc)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list locations")
}
