package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrStoreUnavailable wraps every driver or transport failure. Callers treat it as retryable.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrNotFound is returned by point lookups and scoped updates that match no row
	ErrNotFound = errors.New("not found")
)

// Dialect selects placeholder style and driver
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// Database is the transactional store behind the engine and orchestrator
type Database struct {
	db      *sql.DB
	dialect Dialect
}

// New opens a database of the given type. dsn is a Postgres DSN or a SQLite file path.
func New(dbType, dsn string) (*Database, error) {
	switch Dialect(strings.ToLower(dbType)) {
	case DialectPostgres, "postgresql", "":
		return NewPostgres(dsn)
	case DialectSQLite:
		return NewSQLite(dsn)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// DB exposes the underlying handle for components that manage their own tables
func (d *Database) DB() *sql.DB {
	return d.db
}

// Dialect returns the SQL dialect in use
func (d *Database) Dialect() Dialect {
	return d.dialect
}

// Ping checks connectivity
func (d *Database) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return unavailable("ping database", err)
	}
	return nil
}

// initSchema creates all tables and indexes
func (d *Database) initSchema() error {
	for _, stmt := range schemaStatements {
		if _, err := d.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// q adapts a query written with ? placeholders to the active dialect
func (d *Database) q(query string) string {
	if d.dialect == DialectPostgres {
		return rebind(query)
	}
	return query
}

// unavailable marks err as a store failure while keeping the driver error in the chain
func unavailable(op string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", op, ErrStoreUnavailable, err)
}

func newID() string {
	return uuid.New().String()
}

func utc(t time.Time) time.Time {
	return t.UTC()
}

func sqlNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func sqlNullTime(t *time.Time) sql.NullTime {
	if t == nil || t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func sqlNullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func intPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}

func marshalJSON(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal json column: %w", err)
	}
	return string(b), nil
}

func unmarshalJSON(raw sql.NullString, v interface{}) error {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw.String), v); err != nil {
		return fmt.Errorf("failed to unmarshal json column: %w", err)
	}
	return nil
}

// limitClause renders LIMIT n, or nothing when n <= 0
func limitClause(n int) string {
	if n <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", n)
}
