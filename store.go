package auditry

import (
	"context"
)

// Store is append-only persistence for audit entries.
// Append must write the entry atomically; there is no update or delete.
type Store interface {
	Append(ctx context.Context, e *Entry) error
}

// StoreFunc adapts a function to Store.
type StoreFunc func(ctx context.Context, e *Entry) error

func (f StoreFunc) Append(ctx context.Context, e *Entry) error { return f(ctx, e) }
