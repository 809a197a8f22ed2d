package sqlstore_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/auditry"
	"github.com/mickamy/auditry/store/sqlstore"
)

var entryCols = []string{
	"id", "object_type", "object_key", "object_changes", "query", "actor", "remote_origin", "type", "created_at",
}

func newMockStore(t *testing.T, cfg sqlstore.Config) (*sqlstore.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s, err := sqlstore.New(db, cfg)
	require.NoError(t, err)
	return s, mock
}

func TestNew_InvalidTable(t *testing.T) {
	t.Parallel()

	_, err := sqlstore.New(nil, sqlstore.Config{Table: "audit..entries"})
	require.Error(t, err)
}

func TestMigrate_Postgres(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t, sqlstore.Config{Table: "audit.entries", CreateObjectIndex: true})
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "audit"."entries"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE INDEX IF NOT EXISTS "idx_entries_object" ON "audit"."entries" (object_type, object_key);`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_Error(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t, sqlstore.Config{})
	mock.ExpectExec(`CREATE TABLE`).WillReturnError(errors.New("permission denied"))

	require.Error(t, s.Migrate(context.Background()))
}

func TestAppend_Postgres(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t, sqlstore.Config{})
	actor := "user-7"
	e := &auditry.Entry{
		ObjectType:    "billing.Invoice",
		ObjectKey:     int64(42),
		ObjectChanges: []byte(`{"v":1,"fields":{"status":{"t":"string","v":"sent"}}}`),
		Query:         "UPDATE invoices SET status = $1 WHERE id = $2",
		Actor:         &actor,
		RemoteOrigin:  "8.8.8.8",
		Type:          auditry.OpUpdate,
		CreatedAt:     time.Date(2026, 10, 18, 9, 30, 15, 0, time.UTC),
	}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "audit_entries" (id, object_type, object_key, object_changes, query, actor, remote_origin, type, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`)).
		WithArgs(sqlmock.AnyArg(), "billing.Invoice", `{"t":"int64","v":42}`, string(e.ObjectChanges),
			e.Query, "user-7", "8.8.8.8", "UPDATE", "2026-10-18 09:30:15").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, s.Append(context.Background(), e))
	assert.NotEmpty(t, e.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppend_Error(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t, sqlstore.Config{})
	mock.ExpectExec(`INSERT INTO "audit_entries"`).WillReturnError(errors.New("connection reset"))

	err := s.Append(context.Background(), &auditry.Entry{ObjectType: "billing.Invoice", Type: auditry.OpAdd})
	require.Error(t, err)
}

func TestList_Filters(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t, sqlstore.Config{})
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, object_type, object_key, object_changes, query, actor, remote_origin, type, created_at FROM "audit_entries" WHERE object_type = $1 AND object_key = $2 AND type = $3 ORDER BY seq DESC LIMIT $4`)).
		WithArgs("billing.Invoice", `{"t":"int64","v":42}`, "UPDATE", 10).
		WillReturnRows(sqlmock.NewRows(entryCols).
			AddRow("e-2", "billing.Invoice", `{"t":"int64","v":42}`, `{"v":1,"fields":{"status":{"t":"string","v":"paid"}}}`,
				"UPDATE invoices SET status = $1", "user-7", "8.8.8.8", "UPDATE", "2026-10-18 10:00:00").
			AddRow("e-1", "billing.Invoice", `{"t":"int64","v":42}`, nil,
				"UPDATE invoices SET updated_at = now()", nil, "127.0.0.1", "UPDATE", "2026-10-18 09:30:15"))

	entries, err := s.List(context.Background(), sqlstore.Filter{
		ObjectType: "billing.Invoice",
		ObjectKey:  int64(42),
		Type:       auditry.OpUpdate,
		Limit:      10,
	})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "e-2", entries[0].ID)
	assert.Equal(t, int64(42), entries[0].ObjectKey)
	require.NotNil(t, entries[0].Actor)
	assert.Equal(t, "user-7", *entries[0].Actor)
	changes, err := entries[0].Changes()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"status": "paid"}, changes)

	assert.Nil(t, entries[1].Actor)
	assert.Nil(t, entries[1].ObjectChanges)
	assert.Equal(t, time.Date(2026, 10, 18, 9, 30, 15, 0, time.UTC), entries[1].CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestList_NoFilters(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t, sqlstore.Config{})
	mock.ExpectQuery(regexp.QuoteMeta(`FROM "audit_entries" ORDER BY seq DESC`)).
		WillReturnRows(sqlmock.NewRows(entryCols))

	entries, err := s.List(context.Background(), sqlstore.Filter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestList_BadCreatedAt(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t, sqlstore.Config{})
	mock.ExpectQuery(`SELECT`).
		WillReturnRows(sqlmock.NewRows(entryCols).
			AddRow("e-1", "billing.Invoice", `{"t":"int64","v":1}`, nil, "q", nil, "127.0.0.1", "ADD", "yesterday"))

	_, err := s.List(context.Background(), sqlstore.Filter{})
	require.Error(t, err)
}

func TestGet_NotFound(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t, sqlstore.Config{})
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE id = $1`)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(entryCols))

	_, err := s.Get(context.Background(), "missing")
	require.ErrorIs(t, err, sqlstore.ErrNotFound)
}
