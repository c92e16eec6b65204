// Package service exposes the public mutation API of the engine.
//
// Engine funnels every entry point through the same preflight validator and
// mutation authority: listing, manual selection, and automated suggestion all
// share one ruleset. Mutations against one entity are serialized; mutations
// against different entities proceed independently.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/access"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/audit"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/authority"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/boundary"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/catalog"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/entity"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/mutation"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/observability/metrics"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/policy"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/preflight"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/storage"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/violation"
)

const tracerName = "swse-engine"

// SourceCascade marks mutations generated by cascade resolution.
const SourceCascade = "cascade"

// PolicyBlockedError reports that the enforcement policy blocked a mutation.
// Nothing was written.
type PolicyBlockedError struct {
	Verdict mutation.Verdict
}

func (e *PolicyBlockedError) Error() string {
	return fmt.Sprintf("mutation blocked: %s", e.Verdict.Reason)
}

// Engine is the single public entry point for entity mutations and derived
// queries.
type Engine struct {
	store     storage.EntityStore
	defense   *boundary.Defense
	auditDB   storage.AuditStore
	trail     *audit.Trail
	validator *preflight.Validator
	authority *authority.Authority
	catalog   *catalog.Catalog
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	now       func() time.Time
	auditCap  int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithAuditStore mirrors audit entries to a durable store.
func WithAuditStore(store storage.AuditStore) Option {
	return func(e *Engine) { e.auditDB = store }
}

// WithAuthority overrides the mutation authority, used by tests to count
// recomputes.
func WithAuthority(a *authority.Authority) Option {
	return func(e *Engine) {
		if a != nil {
			e.authority = a
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithAuditCap overrides the per-entity audit trail cap.
func WithAuditCap(cap int) Option {
	return func(e *Engine) { e.auditCap = cap }
}

// New builds an engine over an entity store and a read-only catalog.
//
// The entity store is wrapped by the boundary defense internally; callers
// hand in the raw store and every engine write carries the authority stamp.
func New(store storage.EntityStore, cat *catalog.Catalog, enforcement boundary.Enforcement, opts ...Option) *Engine {
	e := &Engine{
		validator: preflight.New(cat),
		authority: authority.New(),
		catalog:   cat,
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
		locks:     map[string]*sync.Mutex{},
		auditCap:  audit.DefaultCap,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.defense = boundary.NewDefense(store, enforcement)
	e.store = e.defense
	trailOpts := []audit.TrailOption{audit.WithCap(e.auditCap), audit.WithClock(e.now)}
	if e.auditDB != nil {
		trailOpts = append(trailOpts, audit.WithSink(e.auditDB))
	}
	e.trail = audit.NewTrail(trailOpts...)
	return e
}

// BoundaryReports exposes detected bypass writes for operational inspection.
func (e *Engine) BoundaryReports() []boundary.Report {
	return e.defense.Reports()
}

// CreateEntity registers a new entity and runs its initial field writes
// through the standard mutation pipeline.
func (e *Engine) CreateEntity(ctx context.Context, entityID string, baseFields map[string]any) (*entity.Entity, error) {
	unlock := e.lockEntity(entityID)
	defer unlock()

	if _, err := e.store.GetEntity(ctx, entityID); err == nil {
		return nil, fmt.Errorf("entity %s already exists", entityID)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	fresh := entity.New(entityID)
	m := mutation.Mutation{ID: uuid.NewString(), EntityID: entityID, Source: "create"}
	for path, value := range baseFields {
		m.Ops = append(m.Ops, mutation.Op{Kind: mutation.OpFieldWrite, Path: path, Value: value})
	}
	if len(m.Ops) == 0 {
		m.Ops = append(m.Ops, mutation.Op{Kind: mutation.OpFieldWrite, Path: entity.FieldLevel, Value: 1})
	}

	verdict, err := e.validateLocked(ctx, fresh, m)
	if err != nil {
		return nil, err
	}
	if verdict.Outcome != policy.OutcomeAllow {
		// Creation has no acknowledge-and-resubmit flow; anything short of a
		// clean verdict refuses the create.
		return nil, &PolicyBlockedError{Verdict: verdict}
	}
	return e.applyApproved(ctx, fresh, m)
}

// ValidateMutation produces a verdict for a proposed mutation without
// touching any state. Every verdict is recorded in the audit trail, including
// warnings the caller later abandons.
func (e *Engine) ValidateMutation(ctx context.Context, entityID string, m mutation.Mutation) (mutation.Verdict, error) {
	ctx, span := e.tracer.Start(ctx, "engine.ValidateMutation",
		trace.WithAttributes(attribute.String("entity.id", entityID)))
	defer span.End()

	unlock := e.lockEntity(entityID)
	defer unlock()

	target, err := e.store.GetEntity(ctx, entityID)
	if err != nil {
		return mutation.Verdict{}, err
	}
	return e.validateLocked(ctx, target, m)
}

// ApplyMutation validates, then applies the mutation when the policy did not
// block it. A BLOCK outcome performs zero writes and returns
// *PolicyBlockedError; a WARN outcome performs zero writes until the caller
// resubmits with AcknowledgeWarnings set.
func (e *Engine) ApplyMutation(ctx context.Context, entityID string, m mutation.Mutation) (*entity.Entity, mutation.Verdict, error) {
	ctx, span := e.tracer.Start(ctx, "engine.ApplyMutation",
		trace.WithAttributes(attribute.String("entity.id", entityID)))
	defer span.End()
	start := e.now()

	unlock := e.lockEntity(entityID)
	defer unlock()

	target, err := e.store.GetEntity(ctx, entityID)
	if err != nil {
		return nil, mutation.Verdict{}, err
	}

	verdict, err := e.validateLocked(ctx, target, m)
	if err != nil {
		return nil, mutation.Verdict{}, err
	}
	switch verdict.Outcome {
	case policy.OutcomeBlock:
		return target, verdict, &PolicyBlockedError{Verdict: verdict}
	case policy.OutcomeWarn:
		if !m.AcknowledgeWarnings {
			return target, verdict, nil
		}
	}
	if verdict.Outcome == policy.OutcomeAllow && len(verdict.Violations) > 0 {
		// Override/freebuild acceptance of a violating change is visibly
		// flagged, not silently absorbed.
		log.Printf("mutation accepted despite violations entity_id=%s mode=%s severity=%s summary=%s",
			entityID, target.Mode, verdict.Severity, m.Summary())
	}

	updated, err := e.applyApproved(ctx, target, m)
	if err != nil {
		return nil, verdict, err
	}
	e.metrics.ObserveApplyLatency(e.now().Sub(start))
	return updated, verdict, nil
}

// GetAllowedDomains returns the unlock domains currently granted by the
// entity's component set. Always recomputed, never cached.
func (e *Engine) GetAllowedDomains(ctx context.Context, entityID string) ([]string, error) {
	target, err := e.store.GetEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}
	return access.ResolveAllowedDomains(target.Components), nil
}

// GetAllowedSubtrees returns the content subtrees selectable for the slot.
func (e *Engine) GetAllowedSubtrees(ctx context.Context, entityID string, slot access.SlotContext) ([]string, error) {
	target, err := e.store.GetEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}
	return access.ResolveAllowedSubtrees(target.Components, e.catalog, slot), nil
}

// InstantiateComponent builds a component instance from a catalog item so
// callers never hand-assemble grants or prerequisites.
func (e *Engine) InstantiateComponent(itemID string, provenance entity.Provenance) (entity.Component, error) {
	return e.catalog.Instantiate(itemID, provenance)
}

// GetEntity loads the current entity record.
func (e *Engine) GetEntity(ctx context.Context, entityID string) (*entity.Entity, error) {
	return e.store.GetEntity(ctx, entityID)
}

// GetAuditTrail queries the capped audit trail for the entity.
func (e *Engine) GetAuditTrail(entityID string, filter audit.Filter) []audit.Entry {
	return e.trail.Query(entityID, filter)
}

// ClearAuditTrail drops the entity's audit history. Explicit operator action
// only; the clear itself is recorded as the first entry of the fresh trail.
func (e *Engine) ClearAuditTrail(ctx context.Context, entityID string) error {
	unlock := e.lockEntity(entityID)
	defer unlock()

	e.trail.Clear(entityID)
	if e.auditDB != nil {
		if err := e.auditDB.ClearAudit(ctx, entityID); err != nil {
			return fmt.Errorf("clear persisted audit: %w", err)
		}
	}
	e.trail.Record(ctx, audit.Entry{
		EntityID: entityID,
		Kind:     audit.KindClear,
		Summary:  "audit trail cleared",
	})
	return nil
}

// SetOperatingMode switches the enforcement mode and strict flag.
func (e *Engine) SetOperatingMode(ctx context.Context, entityID string, mode entity.Mode, strict bool) (*entity.Entity, error) {
	unlock := e.lockEntity(entityID)
	defer unlock()

	target, err := e.store.GetEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}
	updated, err := e.authority.SetMode(target, mode, strict)
	if err != nil {
		return nil, err
	}
	if err := e.flush(ctx, updated); err != nil {
		return nil, err
	}
	e.trail.Record(ctx, audit.Entry{
		EntityID: entityID,
		Kind:     audit.KindMode,
		Summary:  fmt.Sprintf("mode=%s strict=%t", mode, strict),
		Mode:     mode,
	})
	return updated, nil
}

// SweepIntegrity recomputes violations for every attached component without
// mutating anything.
func (e *Engine) SweepIntegrity(ctx context.Context, entityID string) ([]violation.Violation, error) {
	target, err := e.store.GetEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}
	return e.validator.SweepIntegrity(target), nil
}

// RestoreAuditHistory seeds the in-memory trail from the durable audit store
// on startup.
func (e *Engine) RestoreAuditHistory(ctx context.Context) error {
	if e.auditDB == nil {
		return nil
	}
	ids, err := e.store.ListEntityIDs(ctx)
	if err != nil {
		return fmt.Errorf("list entities for audit restore: %w", err)
	}
	for _, id := range ids {
		entries, err := e.auditDB.ListAudit(ctx, id, e.auditCap)
		if err != nil {
			return fmt.Errorf("restore audit for %s: %w", id, err)
		}
		e.trail.Restore(id, entries)
	}
	return nil
}

// validateLocked runs preflight and records the verdict. Callers hold the
// entity lock.
func (e *Engine) validateLocked(ctx context.Context, target *entity.Entity, m mutation.Mutation) (mutation.Verdict, error) {
	verdict, err := e.validator.Validate(target, m)
	if err != nil {
		// Malformed mutations are audited too: trail entries stay one-to-one
		// with mutation attempts.
		e.trail.Record(ctx, audit.Entry{
			EntityID: target.ID,
			Kind:     audit.KindVerdict,
			Summary:  m.Summary(),
			Outcome:  policy.OutcomeBlock,
			Severity: violation.SeverityStructural,
			Mode:     target.Mode,
		})
		e.metrics.IncVerdict(string(policy.OutcomeBlock), string(target.Mode))
		return mutation.Verdict{}, err
	}

	e.trail.Record(ctx, audit.Entry{
		EntityID:   target.ID,
		Kind:       audit.KindVerdict,
		Summary:    m.Summary(),
		Outcome:    verdict.Outcome,
		Severity:   verdict.Severity,
		Mode:       target.Mode,
		Violations: verdict.Violations,
	})
	e.metrics.IncVerdict(string(verdict.Outcome), string(target.Mode))
	return verdict, nil
}

// applyApproved writes an approved mutation, resolves cascades, flushes, and
// audits. Callers hold the entity lock.
func (e *Engine) applyApproved(ctx context.Context, target *entity.Entity, m mutation.Mutation) (*entity.Entity, error) {
	updated, step, err := e.authority.Apply(target, m)
	if err != nil {
		return nil, err
	}
	e.metrics.IncRecompute()

	e.trail.Record(ctx, audit.Entry{
		EntityID: target.ID,
		Kind:     audit.KindApply,
		Summary:  m.Summary(),
		Outcome:  policy.OutcomeAllow,
		Mode:     updated.Mode,
	})

	// Cascaded removals re-enter the authority through the same apply path so
	// recompute and audit guarantees hold for every step.
	for len(step.ComponentsToRemove) > 0 {
		removal := mutation.Mutation{
			ID:       uuid.NewString(),
			EntityID: target.ID,
			Source:   SourceCascade,
		}
		for _, componentID := range step.ComponentsToRemove {
			removal.Ops = append(removal.Ops, mutation.Op{
				Kind:        mutation.OpComponentRemove,
				ComponentID: componentID,
			})
		}

		next, nextStep, err := e.authority.Apply(updated, removal)
		if err != nil {
			// Degrade by leaving the stale components in place; deleting data
			// on a failed cascade would be worse than reporting it.
			log.Printf("cascade apply failed entity_id=%s: %v", target.ID, err)
			e.trail.Record(ctx, audit.Entry{
				EntityID: target.ID,
				Kind:     audit.KindCascade,
				Summary:  "cascade failed: " + removal.Summary(),
				Outcome:  policy.OutcomeBlock,
				Severity: violation.SeverityStructural,
				Mode:     updated.Mode,
			})
			break
		}
		e.metrics.IncRecompute()
		e.metrics.AddCascadeRemovals(len(step.ComponentsToRemove))

		e.trail.Record(ctx, audit.Entry{
			EntityID: target.ID,
			Kind:     audit.KindCascade,
			Summary:  fmt.Sprintf("relocked=%s %s", joinOrNone(step.DomainsRelocked), removal.Summary()),
			Outcome:  policy.OutcomeAllow,
			Mode:     updated.Mode,
		})
		updated = next
		step = nextStep
	}

	if err := e.flush(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// flush persists the updated entity with the authority stamp so the boundary
// defense can tell sanctioned writes from bypasses.
func (e *Engine) flush(ctx context.Context, updated *entity.Entity) error {
	if err := e.store.PutEntity(boundary.WithAuthorization(ctx), updated); err != nil {
		return fmt.Errorf("flush entity %s: %w", updated.ID, err)
	}
	return nil
}

// lockEntity serializes mutations per entity.
func (e *Engine) lockEntity(entityID string) func() {
	e.mu.Lock()
	lock, ok := e.locks[entityID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[entityID] = lock
	}
	e.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return "none"
	}
	result := values[0]
	for _, value := range values[1:] {
		result += "," + value
	}
	return result
}
