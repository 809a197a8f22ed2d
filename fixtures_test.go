package auditry_test

import (
	"database/sql"
	"time"

	"github.com/mickamy/auditry"
)

type Invoice struct {
	auditry.Tracked
	ID        int64     `db:"id,pk"`
	Status    string    `db:"status"`
	Total     int64     `db:"total"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (*Invoice) ObjectTypeName() string { return "billing.Invoice" }

type InvoiceLine struct {
	auditry.Tracked
	InvoiceID int64  `db:"invoice_id,pk"`
	LineNo    int    `db:"line_no,pk"`
	Amount    int64  `db:"amount"`
	Memo      string `db:"memo" json:"note"`
}

// Customer has no pk tag; the key falls back to customer_id.
type Customer struct {
	auditry.Tracked
	CustomerID string
	Name       string
	Internal   string `db:"-"`
}

type Model struct {
	ID        int64     `db:"id,pk"`
	UpdatedAt time.Time `db:"UPDATED_AT"`
}

type Post struct {
	auditry.Tracked
	Model
	Title string `db:"title"`
}

func (*Post) TableName() string { return "blog.posts" }

// Note has a nullable column backed by a driver.Valuer pointer.
type Note struct {
	auditry.Tracked
	ID   int64           `db:"id,pk"`
	Memo *sql.NullString `db:"memo"`
}

type ghost struct {
	auditry.Tracked
}

type keyless struct {
	auditry.Tracked
	Name string `db:"name"`
}

func loadedInvoice(id int64, status string) *Invoice {
	inv := &Invoice{ID: id, Status: status, Total: 1200, UpdatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	inv.MarkLoaded()
	return inv
}
