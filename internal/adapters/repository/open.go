package repository

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

// Driver names a supported SQL backend.
type Driver string

// Supported drivers.
const (
	DriverMemory   Driver = "memory"
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open returns a Store for driver. The memory driver ignores dsn; SQL
// drivers get their schema ensured before the store is returned.
func Open(ctx context.Context, driver Driver, dsn string, opts ...Option) (Store, error) {
	var drvName string
	switch driver {
	case DriverMemory, "":
		return NewMemStore(opts...), nil
	case DriverSQLite:
		drvName = "sqlite"
		if dsn == "" {
			dsn = "file:competa.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx"
		if dsn == "" {
			dsn = "postgres://localhost:5432/competa?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("%q: %w", driver, ErrUnsupportedDriver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// sqlite allows a single writer at a time.
		db.SetMaxOpenConns(1)
	}
	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("schema %s: %w", driver, err)
	}
	return NewSQLStore(db, opts...), nil
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS evaluations (
			id TEXT PRIMARY KEY,
			student_id TEXT NOT NULL,
			competency_code TEXT NOT NULL,
			color TEXT NOT NULL,
			ts BIGINT NOT NULL,
			author_id TEXT NOT NULL DEFAULT '',
			comment TEXT NOT NULL DEFAULT '',
			assignment_key TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_evaluations_student ON evaluations(student_id)`,
		`CREATE INDEX IF NOT EXISTS idx_evaluations_assignment ON evaluations(assignment_key)`,
		`CREATE TABLE IF NOT EXISTS overrides (
			student_id TEXT NOT NULL,
			competency_code TEXT NOT NULL,
			color TEXT NOT NULL,
			ts BIGINT NOT NULL,
			author_id TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (student_id, competency_code)
		)`,
		`CREATE TABLE IF NOT EXISTS enrollments (
			class_id TEXT NOT NULL,
			student_id TEXT NOT NULL,
			PRIMARY KEY (class_id, student_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
