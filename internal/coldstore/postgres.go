// Package coldstore is the durable relational mirror: an append-only bids
// table plus a mirrored auctions row, both written through conditional
// updates and idempotent inserts so replayed jobs never corrupt state.
package coldstore

import (
	"context"
	"fmt"

	"github.com/XSAM/otelsql"
	"github.com/jmoiron/sqlx"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	_ "github.com/lib/pq"

	"github.com/nexusengine/liveauction/internal/config"
)

// Connect opens and verifies a Postgres connection instrumented with
// OpenTelemetry, wrapping the lib/pq driver.
func Connect(ctx context.Context, cfg config.ColdStoreConfig) (*sqlx.DB, error) {
	driverName, err := otelsql.Register("postgres",
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
	)
	if err != nil {
		return nil, fmt.Errorf("coldstore: registering otel driver: %w", err)
	}

	db, err := sqlx.ConnectContext(ctx, driverName, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("coldstore: connecting: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("coldstore: pinging: %w", err)
	}
	return db, nil
}
