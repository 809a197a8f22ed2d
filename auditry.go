package auditry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config defines the main configuration options for auditry.
type Config struct {
	Store              Store                 // required; receives every qualifying entry
	HousekeepingColumn string                // excluded from diffs (default: UPDATED_AT)
	Redact             RedactMap             // optional field-based redaction of recorded values
	SkipEmptyUpdates   bool                  // treat updates that changed only excluded columns as no-ops
	Introspector       Introspector          // default: NewIntrospector()
	Actors             ActorResolver         // default: ContextActorResolver
	Origins            OriginResolver        // default: ContextOriginResolver
	Logger             *slog.Logger          // default: slog.Default()
	Registerer         prometheus.Registerer // optional; metrics are registered here when set
	Now                func() time.Time      // default: time.Now
}

// Recorder observes completed mutations and appends audit entries.
// It holds no per-call state and is safe for concurrent use.
type Recorder struct {
	cfg     Config
	metrics *Metrics
}

// New creates a new Recorder with sensible defaults.
func New(cfg Config) *Recorder {
	if cfg.HousekeepingColumn == "" {
		cfg.HousekeepingColumn = DefaultHousekeepingColumn
	}
	if cfg.Redact == nil {
		cfg.Redact = RedactMap{}
	}
	if cfg.Introspector == nil {
		cfg.Introspector = NewIntrospector()
	}
	if cfg.Actors == nil {
		cfg.Actors = ContextActorResolver{}
	}
	if cfg.Origins == nil {
		cfg.Origins = ContextOriginResolver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Recorder{cfg: cfg, metrics: NewMetrics(cfg.Registerer)}
}

// OnInsert records an ADD entry when entity reports itself as newly created.
// It must be called after the insert executed, with the key already populated.
func (r *Recorder) OnInsert(ctx context.Context, entity Entity, query string) (bool, error) {
	s, err := r.schemaOf(entity)
	if err != nil {
		return false, err
	}
	if extractSkip(ctx) {
		return r.skip(ctx, s, OpAdd, skipContext), nil
	}
	if !entity.IsNew() {
		return r.skip(ctx, s, OpAdd, skipNotNew), nil
	}
	return r.record(ctx, s, entity, query, OpAdd, nil)
}

// OnUpdate records an UPDATE entry with the changed tracked fields.
// Nothing is recorded when entity is unmodified or affected is zero.
func (r *Recorder) OnUpdate(ctx context.Context, entity Entity, query string, affected int64) (bool, error) {
	s, err := r.schemaOf(entity)
	if err != nil {
		return false, err
	}
	if extractSkip(ctx) {
		return r.skip(ctx, s, OpUpdate, skipContext), nil
	}
	if !entity.IsModified() {
		return r.skip(ctx, s, OpUpdate, skipNotModified), nil
	}
	if affected == 0 {
		return r.skip(ctx, s, OpUpdate, skipNoRows), nil
	}

	changes := r.cfg.Redact.apply(ExtractChanges(entity, s, r.cfg.HousekeepingColumn))
	var payload []byte
	if len(changes) > 0 {
		payload, err = EncodeChanges(changes)
		if err != nil {
			return false, fmt.Errorf("auditry: failed to encode changes of %s: %w", s.ObjectType, err)
		}
	} else if r.cfg.SkipEmptyUpdates {
		return r.skip(ctx, s, OpUpdate, skipEmptyChanges), nil
	}
	return r.record(ctx, s, entity, query, OpUpdate, payload)
}

// OnDelete records a DELETE entry when entity reports itself as deleted.
func (r *Recorder) OnDelete(ctx context.Context, entity Entity, query string) (bool, error) {
	s, err := r.schemaOf(entity)
	if err != nil {
		return false, err
	}
	if extractSkip(ctx) {
		return r.skip(ctx, s, OpDelete, skipContext), nil
	}
	if !entity.IsDeleted() {
		return r.skip(ctx, s, OpDelete, skipNotDeleted), nil
	}
	return r.record(ctx, s, entity, query, OpDelete, nil)
}

func (r *Recorder) schemaOf(entity Entity) (*Schema, error) {
	if entity == nil {
		return nil, fmt.Errorf("%w: nil entity", ErrSchemaUnavailable)
	}
	return SchemaOf(r.cfg.Introspector, entity)
}

// record builds the entry, resolving actor and origin now, and appends it once.
func (r *Recorder) record(ctx context.Context, s *Schema, entity Entity, query string, op OpType, changes []byte) (bool, error) {
	e := &Entry{
		ObjectType:    s.ObjectType,
		ObjectKey:     s.PrimaryKey(entity),
		ObjectChanges: changes,
		Query:         query,
		RemoteOrigin:  r.cfg.Origins.ResolveOrigin(ctx),
		Type:          op,
		CreatedAt:     r.cfg.Now().UTC().Truncate(time.Second),
	}
	if actor, ok := r.cfg.Actors.CurrentActor(ctx); ok {
		e.Actor = &actor
	}

	if r.cfg.Store == nil {
		r.metrics.incStoreFailures()
		return false, fmt.Errorf("%w: no store configured", ErrStoreWrite)
	}
	if err := r.cfg.Store.Append(ctx, e); err != nil {
		r.metrics.incStoreFailures()
		r.cfg.Logger.ErrorContext(ctx, "auditry: failed to append entry",
			slog.String("object_type", e.ObjectType),
			slog.Any("object_key", e.ObjectKey),
			slog.String("type", string(op)),
			slog.Any("error", err),
		)
		return false, fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}
	r.metrics.incRecorded(op)
	return true, nil
}

func (r *Recorder) skip(ctx context.Context, s *Schema, op OpType, reason string) bool {
	r.metrics.incSkipped(reason)
	r.cfg.Logger.DebugContext(ctx, "auditry: mutation not recorded",
		slog.String("object_type", s.ObjectType),
		slog.String("type", string(op)),
		slog.String("reason", reason),
	)
	return false
}

// Metrics exposes the recorder's Prometheus collectors.
func (r *Recorder) Metrics() *Metrics {
	return r.metrics
}
