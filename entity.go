package auditry

import (
	"sync"
)

// Entity is a persisted object whose mutations are audited.
// State is reported relative to the entity's last-loaded (or last-saved) values.
type Entity interface {
	IsNew() bool
	IsModified() bool
	IsColumnModified(column string) bool
	IsDeleted() bool
}

// Tracked is an embeddable Entity implementation driven by explicit marks.
//
//	type Invoice struct {
//		auditry.Tracked
//		ID     int64  `db:"id,pk"`
//		Status string `db:"status"`
//	}
type Tracked struct {
	mu       sync.RWMutex
	isNew    bool
	deleted  bool
	modified map[string]struct{}
}

// MarkNew flags the entity as freshly inserted.
func (t *Tracked) MarkNew() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.isNew = true
	t.deleted = false
}

// MarkLoaded clears all flags, as after a load or a completed save.
func (t *Tracked) MarkLoaded() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.isNew = false
	t.deleted = false
	t.modified = nil
}

// MarkModified records storage columns whose values differ from the loaded state.
func (t *Tracked) MarkModified(columns ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.modified == nil {
		t.modified = make(map[string]struct{}, len(columns))
	}
	for _, c := range columns {
		t.modified[c] = struct{}{}
	}
}

// MarkDeleted flags the entity as removed from storage.
func (t *Tracked) MarkDeleted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deleted = true
}

func (t *Tracked) IsNew() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.isNew
}

func (t *Tracked) IsModified() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.modified) > 0
}

func (t *Tracked) IsColumnModified(column string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.modified[column]
	return ok
}

func (t *Tracked) IsDeleted() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.deleted
}
