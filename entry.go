package auditry

import (
	"time"

	"github.com/mickamy/auditry/internal/codec"
)

// OpType is the kind of mutation an Entry describes.
type OpType string

const (
	OpAdd    OpType = "ADD"
	OpUpdate OpType = "UPDATE"
	OpDelete OpType = "DELETE"
	// OpSelect is reserved; no hook emits it.
	OpSelect OpType = "SELECT"
)

// TimeLayout is the textual form of Entry.CreatedAt.
const TimeLayout = "2006-01-02 15:04:05"

// Entry is one immutable audit record.
type Entry struct {
	ID            string    // assigned by the store, may be empty
	ObjectType    string    // e.g. "github.com/acme/billing.Invoice"
	ObjectKey     any       // single value, or []any for composite keys
	ObjectChanges []byte    // encoded field changes; nil unless an UPDATE changed a tracked field
	Query         string    // executed statement text
	Actor         *string   // nil for anonymous and unattended operations
	RemoteOrigin  string    // best-guess client address
	Type          OpType    // ADD, UPDATE or DELETE
	CreatedAt     time.Time // UTC, second precision
}

// Changes decodes ObjectChanges.
func (e *Entry) Changes() (map[string]any, error) {
	return DecodeChanges(e.ObjectChanges)
}

// CreatedAtString formats CreatedAt with TimeLayout.
func (e *Entry) CreatedAtString() string {
	return e.CreatedAt.UTC().Format(TimeLayout)
}

// EncodeChanges serializes a field-name -> value mapping.
func EncodeChanges(m map[string]any) ([]byte, error) {
	return codec.Encode(m)
}

// DecodeChanges reverses EncodeChanges. A nil or empty payload yields an empty map.
func DecodeChanges(payload []byte) (map[string]any, error) {
	return codec.Decode(payload)
}
