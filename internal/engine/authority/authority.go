// Package authority applies approved mutations to entity state.
//
// The Authority is the only component permitted to write entity base fields
// or attach/detach components. Every successful apply triggers exactly one
// derived recompute for the affected entity, and a re-entrancy guard rejects
// recursive applies started from within the same apply.
package authority

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/cascade"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/derived"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/entity"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/mutation"
)

// ErrReentrantApply indicates an apply was attempted for an entity that is
// already inside an apply on the same authority.
var ErrReentrantApply = errors.New("re-entrant apply rejected")

// Authority is the single writer for entity state.
type Authority struct {
	calc derived.Calculator
	now  func() time.Time

	mu      sync.Mutex
	inApply map[string]bool
}

// Option configures an Authority.
type Option func(*Authority)

// WithCalculator overrides the derived calculator, used by tests to count
// recompute invocations.
func WithCalculator(calc derived.Calculator) Option {
	return func(a *Authority) {
		if calc != nil {
			a.calc = calc
		}
	}
}

// WithClock overrides the snapshot timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Authority) {
		if now != nil {
			a.now = now
		}
	}
}

// New returns an authority using the production derived calculator.
func New(opts ...Option) *Authority {
	a := &Authority{
		calc:    derived.Compute,
		now:     time.Now,
		inApply: map[string]bool{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Apply writes an approved mutation to a clone of the entity and returns the
// updated entity together with the cascade step resolved for any removals.
//
// The input entity is never modified: callers swap in the returned clone only
// after the whole apply (including persistence) succeeds, so a failed apply
// leaves observable state byte-identical.
func (a *Authority) Apply(e *entity.Entity, m mutation.Mutation) (*entity.Entity, cascade.Result, error) {
	if e == nil {
		return nil, cascade.Result{}, fmt.Errorf("apply requires an entity")
	}
	if err := a.enter(e.ID); err != nil {
		return nil, cascade.Result{}, err
	}
	defer a.leave(e.ID)

	updated := e.Clone()
	for i, op := range m.Ops {
		switch op.Kind {
		case mutation.OpFieldWrite:
			updated.BaseFields[strings.TrimSpace(op.Path)] = op.Value
		case mutation.OpComponentAdd:
			if op.Component == nil {
				return nil, cascade.Result{}, fmt.Errorf("apply op %d: component payload is required", i)
			}
			updated.AttachComponent(op.Component.Clone())
		case mutation.OpComponentRemove:
			// Removing an already-absent component is a no-op so cascaded
			// removals stay idempotent.
			updated.DetachComponent(op.ComponentID)
		default:
			return nil, cascade.Result{}, fmt.Errorf("apply op %d: kind %q is not supported", i, op.Kind)
		}
	}

	// Exactly one recompute per apply, no matter how many ops ran.
	updated.Derived = a.calc(updated.BaseFields, updated.Components)
	updated.Derived.ComputedAt = a.now().UTC().UnixMilli()

	step := cascade.Result{}
	if removals := m.Removals(); len(removals) > 0 {
		step = cascade.Resolve(e.Components, removals)
	}
	return updated, step, nil
}

// SetMode writes the operating mode and strict flag through the authority so
// mode changes share the clone-and-swap write discipline.
func (a *Authority) SetMode(e *entity.Entity, mode entity.Mode, strict bool) (*entity.Entity, error) {
	if e == nil {
		return nil, fmt.Errorf("set mode requires an entity")
	}
	if err := a.enter(e.ID); err != nil {
		return nil, err
	}
	defer a.leave(e.ID)

	updated := e.Clone()
	updated.Mode = mode
	updated.Strict = strict
	return updated, nil
}

func (a *Authority) enter(entityID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.inApply[entityID] {
		return fmt.Errorf("%w: entity %s", ErrReentrantApply, entityID)
	}
	a.inApply[entityID] = true
	return nil
}

func (a *Authority) leave(entityID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.inApply, entityID)
}
