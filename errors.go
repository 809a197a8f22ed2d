package auditry

import (
	"errors"
)

var (
	// ErrSchemaUnavailable reports that column metadata for an entity type could not be resolved.
	// It is a configuration error and is never retried.
	ErrSchemaUnavailable = errors.New("auditry: schema unavailable")

	// ErrStoreWrite reports that the audit store rejected or failed an append.
	// The recorder does not retry; callers decide whether to abort the mutation.
	ErrStoreWrite = errors.New("auditry: store write failed")

	// ErrKeyUnavailable reports that a database-generated primary key could not be read back after an insert.
	ErrKeyUnavailable = errors.New("auditry: generated key unavailable")

	// ErrTableMismatch reports that a statement targets a different table than the entity passed with it.
	ErrTableMismatch = errors.New("auditry: statement table does not match entity")
)
