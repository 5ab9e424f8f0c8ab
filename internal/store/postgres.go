package store

import (
	"context"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is the Store backend for shared deployments.
type Postgres struct {
	sqlStore
	pool *pgxpool.Pool
}

type pgDB struct{ pool *pgxpool.Pool }

func (d pgDB) query(ctx context.Context, q string, args ...any) (rows, error) {
	r, err := d.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres query: %w", err)
	}
	return r, nil
}

func (d pgDB) exec(ctx context.Context, q string, args ...any) error {
	_, err := d.pool.Exec(ctx, q, args...)
	return err
}

// Connect opens a pgx pool, pings it and creates the schema.
func Connect(ctx context.Context, databaseURL string, maxConns int) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	if maxConns > 0 && maxConns <= math.MaxInt32 {
		config.MaxConns = int32(maxConns) // #nosec G115 -- bounds checked above
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &Postgres{sqlStore: sqlStore{q: pgDB{pool: pool}, ph: dollar}, pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the pool.
func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}
