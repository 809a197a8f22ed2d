package auditry

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mickamy/auditry/internal/query"
)

type txKey struct{}

// WithTx stores a SQL transaction in context so stores can append within it.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFrom extracts a SQL transaction from context if present.
func TxFrom(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	return tx, ok
}

// DB wraps a *sql.DB so entity statements are followed by the matching audit hook.
type DB struct {
	*sql.DB
	rec *Recorder
}

// WrapDB attaches the recorder to a *sql.DB connection.
func (r *Recorder) WrapDB(db *sql.DB) *DB {
	return &DB{DB: db, rec: r}
}

// Tx wraps a *sql.Tx; audit entries are appended inside the same transaction
// when the store supports it, so they commit or roll back with the mutation.
type Tx struct {
	*sql.Tx
	rec *Recorder
}

// BeginTx starts a wrapped transaction.
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	t, err := db.DB.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Tx{Tx: t, rec: db.rec}, nil
}

// ExecEntity executes q outside a transaction and runs the hook matching its statement kind.
func (db *DB) ExecEntity(ctx context.Context, entity Entity, q string, args ...any) (sql.Result, error) {
	res, err := db.DB.ExecContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return res, dispatch(ctx, db.rec, entity, q, res)
}

// ExecEntity executes q and, when it is an INSERT, UPDATE or DELETE, runs the matching hook.
// The entity must already reflect the statement: MarkNew before inserts, MarkDeleted before deletes,
// and the modified columns marked before updates. Other statements pass through unaudited.
//
// A new entity whose single integer key is still zero gets the key from LastInsertId before
// it is recorded. Drivers without LastInsertId (Postgres) fail with ErrKeyUnavailable; populate
// generated keys first there, e.g. via INSERT ... RETURNING and QueryRowContext.
func (t *Tx) ExecEntity(ctx context.Context, entity Entity, q string, args ...any) (sql.Result, error) {
	res, err := t.Tx.ExecContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return res, dispatch(WithTx(ctx, t.Tx), t.rec, entity, q, res)
}

func dispatch(ctx context.Context, rec *Recorder, entity Entity, q string, res sql.Result) error {
	dml, ok := query.ParseDML(q)
	if !ok {
		return nil
	}
	s, err := rec.schemaOf(entity)
	if err != nil {
		return err
	}
	if !s.SameTable(dml.Table) {
		return fmt.Errorf("%w: %s targets %s, %s maps to %s", ErrTableMismatch, dml.Op, dml.Table, s.ObjectType, s.Table)
	}
	switch dml.Op {
	case query.OpInsert:
		if entity.IsNew() {
			if err := fillGeneratedKey(s, entity, res); err != nil {
				return err
			}
		}
		_, err = rec.OnInsert(ctx, entity, q)
	case query.OpUpdate:
		n, rerr := res.RowsAffected()
		if rerr != nil {
			return fmt.Errorf("auditry: failed to read affected rows: %w", rerr)
		}
		_, err = rec.OnUpdate(ctx, entity, q, n)
	case query.OpDelete:
		_, err = rec.OnDelete(ctx, entity, q)
	}
	return err
}

func fillGeneratedKey(s *Schema, entity Entity, res sql.Result) error {
	f, ok := s.generatedKey(entity)
	if !ok {
		return nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrKeyUnavailable, s.ObjectType, err)
	}
	if f.CanInt() {
		f.SetInt(id)
	} else {
		f.SetUint(uint64(id))
	}
	return nil
}
