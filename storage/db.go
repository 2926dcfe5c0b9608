package storage

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Open connects to Postgres with the given DSN and wraps the connection in
// a bun.DB. The caller owns the returned handle and closes it on shutdown.
func Open(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

// Ping verifies the connection is usable.
func Ping(ctx context.Context, db *bun.DB) error {
	return db.PingContext(ctx)
}
