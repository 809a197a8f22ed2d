package query_test

import (
	"testing"

	"github.com/mickamy/auditry/internal/query"
)

func TestParseDML(t *testing.T) {
	t.Parallel()

	tcs := []struct {
		name    string
		sql     string
		wantDML query.DML
		wantOK  bool
	}{
		{
			name:    "insert simple",
			sql:     "INSERT INTO invoices (id, status) VALUES ($1, $2)",
			wantDML: query.DML{Op: query.OpInsert, Table: "invoices"},
			wantOK:  true,
		},
		{
			name: "insert lowercase multiline",
			sql: `insert into billing.invoices (id)
values ($1)
returning *`,
			wantDML: query.DML{Op: query.OpInsert, Table: "billing.invoices"},
			wantOK:  true,
		},
		{
			name:    "update with alias",
			sql:     `UPDATE invoices i SET status = $1 WHERE i.id = $2`,
			wantDML: query.DML{Op: query.OpUpdate, Table: "invoices"},
			wantOK:  true,
		},
		{
			name:    "quoted identifier with alias",
			sql:     `UPDATE "Billing"."Invoices" bi SET status = $1 WHERE bi.id = $2`,
			wantDML: query.DML{Op: query.OpUpdate, Table: `"Billing"."Invoices"`},
			wantOK:  true,
		},
		{
			name: "delete with cte",
			sql: `WITH c AS (
	SELECT id FROM invoices WHERE status = 'void'
) DELETE FROM billing.invoices i USING c WHERE i.id = c.id`,
			wantDML: query.DML{Op: query.OpDelete, Table: "billing.invoices"},
			wantOK:  true,
		},
		{
			name:   "select is not dml",
			sql:    "SELECT * FROM invoices",
			wantOK: false,
		},
		{
			name:   "ddl is not dml",
			sql:    "CREATE TABLE invoices (id BIGINT)",
			wantOK: false,
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := query.ParseDML(tc.sql)
			if ok != tc.wantOK {
				t.Fatalf("ParseDML ok = %t, want %t", ok, tc.wantOK)
			}
			if !ok {
				return
			}
			if got != tc.wantDML {
				t.Fatalf("ParseDML(%q) = %#v, want %#v", tc.sql, got, tc.wantDML)
			}
		})
	}
}
