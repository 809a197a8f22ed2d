// Package sqlstore persists audit entries in a relational table through database/sql.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mickamy/auditry"
	"github.com/mickamy/auditry/internal/codec"
	"github.com/mickamy/auditry/internal/ident"
)

// ErrNotFound is returned by Get when no entry has the requested ID.
var ErrNotFound = errors.New("sqlstore: entry not found")

// Dialect selects placeholder style and column types.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

func (d Dialect) placeholder(n int) string {
	if d == SQLite {
		return "?"
	}
	return "$" + strconv.Itoa(n)
}

// Config defines table options for Store.
type Config struct {
	Table             string  // e.g. "audit_entries" (default) or "audit.entries"
	Dialect           Dialect // default: Postgres
	CreateObjectIndex bool    // Migrate creates an index on (object_type, object_key)
}

// Store implements auditry.Store on a SQL table.
type Store struct {
	db    *sql.DB
	cfg   Config
	table string // quoted
}

var _ auditry.Store = (*Store)(nil)

// New creates a Store. It does not touch the database; call Migrate to create the table.
func New(db *sql.DB, cfg Config) (*Store, error) {
	if cfg.Table == "" {
		cfg.Table = "audit_entries"
	}
	parts := ident.SplitQualified(cfg.Table)
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("sqlstore: invalid table identifier %q", cfg.Table)
		}
	}
	table := ident.QuoteQualified(parts)
	if table == "" {
		return nil, fmt.Errorf("sqlstore: invalid table identifier %q", cfg.Table)
	}
	return &Store{db: db, cfg: cfg, table: table}, nil
}

// Migrate creates the audit table (and optional index) if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	var columns []string
	switch s.cfg.Dialect {
	case SQLite:
		columns = []string{
			"seq INTEGER PRIMARY KEY AUTOINCREMENT",
			"id TEXT NOT NULL UNIQUE",
			"object_type TEXT NOT NULL",
			"object_key TEXT",
			"object_changes TEXT",
		}
	default:
		columns = []string{
			"seq BIGSERIAL PRIMARY KEY",
			"id UUID NOT NULL UNIQUE",
			"object_type TEXT NOT NULL",
			"object_key JSONB",
			"object_changes JSONB",
		}
	}
	columns = append(columns,
		"query TEXT NOT NULL",
		"actor TEXT",
		"remote_origin TEXT NOT NULL",
		"type TEXT NOT NULL",
		"created_at VARCHAR(19) NOT NULL",
	)

	ddl := fmt.Sprintf(`
    CREATE TABLE IF NOT EXISTS %s (
        %s
    );
    `, s.table, strings.Join(columns, ",\n\t"))

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("sqlstore: failed to create table: %w", err)
	}
	if s.cfg.CreateObjectIndex {
		indexName := ident.IndexName(s.cfg.Table, "object")
		stmt := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (object_type, object_key);`, ident.Quote(indexName), s.table)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlstore: failed to create index: %w", err)
		}
	}
	return nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := auditry.TxFrom(ctx); ok {
		return tx
	}
	return s.db
}

// Append inserts e, assigning a new ID when e has none.
// When ctx carries a transaction (auditry.WithTx) the insert joins it.
func (s *Store) Append(ctx context.Context, e *auditry.Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	key, err := codec.Marshal(e.ObjectKey)
	if err != nil {
		return fmt.Errorf("sqlstore: failed to marshal object key: %w", err)
	}
	var changes, actor any
	if e.ObjectChanges != nil {
		changes = string(e.ObjectChanges)
	}
	if e.Actor != nil {
		actor = *e.Actor
	}

	ph := make([]string, 9)
	for i := range ph {
		ph[i] = s.cfg.Dialect.placeholder(i + 1)
	}
	stmt := fmt.Sprintf(`
INSERT INTO %s (id, object_type, object_key, object_changes, query, actor, remote_origin, type, created_at)
VALUES (%s)
`, s.table, strings.Join(ph, ", "))

	if _, err := s.execer(ctx).ExecContext(ctx, stmt,
		e.ID,
		e.ObjectType,
		string(key),
		changes,
		e.Query,
		actor,
		e.RemoteOrigin,
		string(e.Type),
		e.CreatedAtString(),
	); err != nil {
		return fmt.Errorf("sqlstore: failed to insert entry: %w", err)
	}
	return nil
}

const selectColumns = `id, object_type, object_key, object_changes, query, actor, remote_origin, type, created_at`

// Get returns the entry with the given ID.
func (s *Store) Get(ctx context.Context, id string) (*auditry.Entry, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE id = %s`, selectColumns, s.table, s.cfg.Dialect.placeholder(1))
	rows, err := s.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: failed to query entry: %w", err)
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNotFound
	}
	return &entries[0], nil
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	ObjectType string
	ObjectKey  any
	Type       auditry.OpType
	Limit      int
}

// List returns matching entries, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]auditry.Entry, error) {
	var (
		where []string
		args  []any
	)
	if f.ObjectType != "" {
		args = append(args, f.ObjectType)
		where = append(where, "object_type = "+s.cfg.Dialect.placeholder(len(args)))
	}
	if f.ObjectKey != nil {
		key, err := codec.Marshal(f.ObjectKey)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: failed to marshal object key: %w", err)
		}
		args = append(args, string(key))
		where = append(where, "object_key = "+s.cfg.Dialect.placeholder(len(args)))
	}
	if f.Type != "" {
		args = append(args, string(f.Type))
		where = append(where, "type = "+s.cfg.Dialect.placeholder(len(args)))
	}

	q := fmt.Sprintf(`SELECT %s FROM %s`, selectColumns, s.table)
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY seq DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += " LIMIT " + s.cfg.Dialect.placeholder(len(args))
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: failed to query entries: %w", err)
	}
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]auditry.Entry, error) {
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var entries []auditry.Entry
	for rows.Next() {
		var (
			e         auditry.Entry
			key       sql.NullString
			changes   sql.NullString
			actor     sql.NullString
			op        string
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.ObjectType, &key, &changes, &e.Query, &actor, &e.RemoteOrigin, &op, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlstore: failed to scan entry: %w", err)
		}
		if key.Valid {
			v, err := codec.Unmarshal([]byte(key.String))
			if err != nil {
				return nil, fmt.Errorf("sqlstore: failed to decode object key of %s: %w", e.ID, err)
			}
			e.ObjectKey = v
		}
		if changes.Valid {
			e.ObjectChanges = []byte(changes.String)
		}
		if actor.Valid {
			a := actor.String
			e.Actor = &a
		}
		e.Type = auditry.OpType(op)
		ts, err := time.ParseInLocation(auditry.TimeLayout, createdAt, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: failed to parse created_at of %s: %w", e.ID, err)
		}
		e.CreatedAt = ts
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: failed to iterate entries: %w", err)
	}
	return entries, nil
}
