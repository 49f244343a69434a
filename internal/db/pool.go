package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of pgxpool.Pool used by this project. pgxmock
// satisfies it too, which keeps query paths testable without a server.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// SanitizeIdent quotes a single SQL identifier for safe interpolation
// into schema-qualified statements.
func SanitizeIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// Connect opens a pgx pool against the given URL and pings it.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, eris.New("db: database URL not configured")
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "db: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "db: ping")
	}
	return pool, nil
}

// EnsureSchemas creates the raw and processed schemas plus the PostGIS
// extension if they do not exist yet.
func EnsureSchemas(ctx context.Context, pool Pool, schemas ...string) error {
	if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS postgis"); err != nil {
		return eris.Wrap(err, "db: create postgis extension")
	}
	for _, s := range schemas {
		sql := "CREATE SCHEMA IF NOT EXISTS " + pgx.Identifier{s}.Sanitize()
		if _, err := pool.Exec(ctx, sql); err != nil {
			return eris.Wrapf(err, "db: create schema %s", s)
		}
	}
	return nil
}
