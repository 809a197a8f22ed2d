// Package memory is an in-process audit store, for tests and single-process tools.
package memory

import (
	"context"
	"slices"

	"github.com/google/uuid"

	"github.com/mickamy/auditry"
	"github.com/mickamy/auditry/internal/buffer"
)

type Store struct {
	buf *buffer.Buffer[auditry.Entry]
}

var _ auditry.Store = (*Store)(nil)

func New() *Store {
	return &Store{buf: buffer.NewBuffer[auditry.Entry]()}
}

// Append stores a copy of e, assigning an ID when e has none.
func (s *Store) Append(_ context.Context, e *auditry.Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	cp := *e
	cp.ObjectChanges = slices.Clone(e.ObjectChanges)
	s.buf.Add(cp)
	return nil
}

// Entries returns all entries in append order.
func (s *Store) Entries() []auditry.Entry {
	return s.buf.Snapshot()
}

// ByObject returns the entries recorded for one object, in append order.
func (s *Store) ByObject(objectType string, key any) []auditry.Entry {
	var out []auditry.Entry
	for _, e := range s.buf.Snapshot() {
		if e.ObjectType == objectType && equalKey(e.ObjectKey, key) {
			out = append(out, e)
		}
	}
	return out
}

func (s *Store) Len() int {
	return s.buf.Len()
}

func equalKey(a, b any) bool {
	as, aok := a.([]any)
	bs, bok := b.([]any)
	if aok && bok {
		return slices.Equal(as, bs)
	}
	if aok || bok {
		return false
	}
	return a == b
}
