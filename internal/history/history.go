// Package history implements spec.md §6's peripheral persisted state: a
// SQLite-backed history of `{id, ask, req, res?, created_at}` rows plus
// a many-valued `values` table of `(http, type, scope, name, value)`
// tuples and a separate secrets table keyed by a criteria context.
//
// Grounded on the teacher's plugins/postgres/plugin.go: the same
// Initialize/Shutdown connection lifecycle, masked-DSN debug logging,
// and connection-pool sizing — the driver swapped from lib/pq to
// modernc.org/sqlite since spec §6 names SQLite specifically, not a
// client/server RDBMS (see DESIGN.md for the swap rationale).
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ValueKind names one of spec §6's `values.type` enumerants: the point
// in the pipeline a harvested value came from.
type ValueKind string

const (
	ValueEndpoint ValueKind = "endpoint"
	ValueAsk      ValueKind = "ask"
	ValueMatch    ValueKind = "match"
	ValueReq      ValueKind = "req"
	ValueRes      ValueKind = "res"
	ValueReqOut   ValueKind = "req+out"
	ValueResOut   ValueKind = "res+out"
)

// Config holds the Store's connection settings, mirroring the teacher's
// Postgres plugin Config shape (max-open/idle connections, lifetime).
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Record is one row of the `{id, ask, req, res?, created_at}` history
// table.
type Record struct {
	ID        string
	Ask       string
	Req       string
	Res       string
	CreatedAt time.Time
}

// Value is one row of the many-valued `values` table.
type Value struct {
	HTTP  string
	Kind  ValueKind
	Scope string
	Name  string
	Value string
}

// Store wraps a SQLite connection pool, spec §6's persisted history.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open connects to cfg.DSN, applies the schema if absent, and verifies
// the connection, mirroring the teacher's Initialize.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "history: opening store", "dsn", maskDSN(cfg.DSN))

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	} else {
		// SQLite allows only one writer at a time; a single connection
		// avoids SQLITE_BUSY under concurrent writers rather than
		// configuring WAL/busy-timeout pragmas.
		db.SetMaxOpenConns(1)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: ping: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Shutdown closes the underlying connection pool, mirroring the
// teacher's Shutdown.
func (s *Store) Shutdown(ctx context.Context) error {
	s.logger.InfoContext(ctx, "history: closing store")
	return s.db.Close()
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS history (
	id TEXT PRIMARY KEY,
	ask TEXT NOT NULL,
	req TEXT NOT NULL,
	res TEXT,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS history_values (
	http TEXT NOT NULL,
	type TEXT NOT NULL,
	scope TEXT NOT NULL,
	name TEXT NOT NULL,
	value TEXT
);
CREATE INDEX IF NOT EXISTS history_values_http_idx ON history_values (http);
CREATE TABLE IF NOT EXISTS history_secrets (
	criteria TEXT NOT NULL,
	name TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (criteria, name)
);
`

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("history: migrate: %w", err)
	}
	return nil
}

// Append inserts rec, generating an id via uuid if rec.ID is empty and a
// created_at timestamp if rec.CreatedAt is zero, mirroring
// runtime/execution.go's uuid.New().String() id convention.
func (s *Store) Append(ctx context.Context, rec Record) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO history (id, ask, req, res, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Ask, rec.Req, nullIfEmpty(rec.Res), rec.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("history: append: %w", err)
	}
	return rec.ID, nil
}

// Get retrieves the history row with the given id.
func (s *Store) Get(ctx context.Context, id string) (Record, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, ask, req, res, created_at FROM history WHERE id = ?`, id)

	var rec Record
	var res sql.NullString
	var createdAt string
	if err := row.Scan(&rec.ID, &rec.Ask, &rec.Req, &res, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("history: get: %w", err)
	}
	rec.Res = res.String
	parsed, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Record{}, false, fmt.Errorf("history: get: parse created_at: %w", err)
	}
	rec.CreatedAt = parsed
	return rec, true, nil
}

// RecordValue inserts one harvested value row.
func (s *Store) RecordValue(ctx context.Context, v Value) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO history_values (http, type, scope, name, value) VALUES (?, ?, ?, ?, ?)`,
		v.HTTP, string(v.Kind), v.Scope, v.Name, v.Value)
	if err != nil {
		return fmt.Errorf("history: record value: %w", err)
	}
	return nil
}

// ValuesFor returns every value row recorded against httpID, in
// insertion order.
func (s *Store) ValuesFor(ctx context.Context, httpID string) ([]Value, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT http, type, scope, name, value FROM history_values WHERE http = ? ORDER BY rowid`, httpID)
	if err != nil {
		return nil, fmt.Errorf("history: values for: %w", err)
	}
	defer rows.Close()

	var out []Value
	for rows.Next() {
		var v Value
		var kind string
		if err := rows.Scan(&v.HTTP, &kind, &v.Scope, &v.Name, &v.Value); err != nil {
			return nil, fmt.Errorf("history: values for: scan: %w", err)
		}
		v.Kind = ValueKind(kind)
		out = append(out, v)
	}
	return out, rows.Err()
}

// PutSecret stores or overwrites the value kept under (criteria, name).
func (s *Store) PutSecret(ctx context.Context, criteria, name, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO history_secrets (criteria, name, value) VALUES (?, ?, ?)
		 ON CONFLICT(criteria, name) DO UPDATE SET value = excluded.value`,
		criteria, name, value)
	if err != nil {
		return fmt.Errorf("history: put secret: %w", err)
	}
	return nil
}

// Secret retrieves the value kept under (criteria, name).
func (s *Store) Secret(ctx context.Context, criteria, name string) (string, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT value FROM history_secrets WHERE criteria = ? AND name = ?`, criteria, name)
	var value string
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("history: secret: %w", err)
	}
	return value, true, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var dsnCredentials = regexp.MustCompile(`://[^@/]+@`)

// maskDSN redacts embedded credentials before a DSN is logged, mirroring
// the teacher's maskConnectionString.
func maskDSN(dsn string) string {
	return dsnCredentials.ReplaceAllString(dsn, "://***@")
}
