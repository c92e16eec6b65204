// Package preflight validates proposed mutations before any state is touched.
//
// The validator orchestrates prerequisite evaluation, domain gating, severity
// classification, and the enforcement policy into one verdict. It never
// mutates the entity: a BLOCK verdict is free to discard because nothing has
// been committed.
package preflight

import (
	"fmt"
	"strings"

	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/access"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/catalog"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/entity"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/mutation"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/policy"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/prereq"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/violation"
)

// Validator produces verdicts for proposed mutations.
type Validator struct {
	Catalog *catalog.Catalog
}

// New returns a validator bound to a read-only catalog snapshot.
func New(cat *catalog.Catalog) *Validator {
	return &Validator{Catalog: cat}
}

// Validate evaluates the whole mutation against current entity state and
// returns a verdict without writing anything.
//
// Malformed shapes and derived-field writes return a *mutation.ValidationError
// and are rejected regardless of operating mode.
func (v *Validator) Validate(e *entity.Entity, m mutation.Mutation) (mutation.Verdict, error) {
	if err := checkShape(e, m); err != nil {
		return mutation.Verdict{}, err
	}

	violations := v.gate(e, m)
	severity := violation.Classify(violations)
	outcome := policy.Decide(e.Mode, e.Strict, severity)

	return mutation.Verdict{
		Outcome:    outcome,
		Reason:     reasonFor(violations),
		Severity:   severity,
		Violations: violations,
	}, nil
}

// SweepIntegrity re-derives violations for every component already attached
// to the entity. Used by integrity sweeps; recomputes rather than reading any
// stored violation state.
func (v *Validator) SweepIntegrity(e *entity.Entity) []violation.Violation {
	if e == nil {
		return nil
	}
	var violations []violation.Violation
	for _, comp := range e.Components {
		violations = append(violations, v.gateComponent(e, comp)...)
	}
	return violations
}

// checkShape runs the structural phase: op kinds known, paths present, values
// scalar, and no write targeting a derived-only field path.
func checkShape(e *entity.Entity, m mutation.Mutation) error {
	if e == nil {
		return mutation.NewValidationError(mutation.CodeEntityRequired, "mutation target entity is required")
	}
	if len(m.Ops) == 0 {
		return mutation.NewValidationError(mutation.CodeMutationEmpty, "mutation requires at least one operation")
	}
	for i, op := range m.Ops {
		switch op.Kind {
		case mutation.OpFieldWrite:
			path := strings.TrimSpace(op.Path)
			if path == "" {
				return mutation.NewValidationError(mutation.CodeFieldPathEmpty, "op %d: field path is required", i)
			}
			if entity.IsDerivedPath(path) {
				return mutation.NewValidationError(mutation.CodeDerivedFieldWrite,
					"op %d: field %s is derived and write-protected", i, path)
			}
			if !entity.IsScalar(op.Value) {
				return mutation.NewValidationError(mutation.CodeFieldValueInvalid,
					"op %d: field %s value must be a scalar", i, path)
			}
		case mutation.OpComponentAdd:
			if op.Component == nil {
				return mutation.NewValidationError(mutation.CodeComponentRequired, "op %d: component payload is required", i)
			}
			if strings.TrimSpace(op.Component.ContentID) == "" {
				return mutation.NewValidationError(mutation.CodeComponentRequired, "op %d: component content id is required", i)
			}
		case mutation.OpComponentRemove:
			if strings.TrimSpace(op.ComponentID) == "" {
				return mutation.NewValidationError(mutation.CodeComponentIDMissing, "op %d: component id is required", i)
			}
		default:
			return mutation.NewValidationError(mutation.CodeOpKindUnknown, "op %d: kind %q is not supported", i, op.Kind)
		}
	}
	return nil
}

// gate runs prerequisite, domain, and structural gating for every component
// being added. Adds are gated in order against committed state plus the adds
// before them, so one atomic mutation can attach a domain grantor together
// with its dependents.
func (v *Validator) gate(e *entity.Entity, m mutation.Mutation) []violation.Violation {
	var violations []violation.Violation
	work := e.Clone()
	for _, op := range m.Ops {
		if op.Kind != mutation.OpComponentAdd || op.Component == nil {
			continue
		}
		violations = append(violations, v.gateComponent(work, *op.Component)...)
		work.Components = append(work.Components, op.Component.Clone())
	}
	return violations
}

// gateComponent evaluates one candidate component against entity state.
// During preflight the candidate is not yet part of that state, so it cannot
// satisfy its own prerequisites or unlock its own source domain.
func (v *Validator) gateComponent(e *entity.Entity, comp entity.Component) []violation.Violation {
	var violations []violation.Violation
	subject := componentSubject(comp)

	result := prereq.Evaluate(comp.Prerequisite, e)
	for _, missing := range result.Missing {
		violations = append(violations, violation.MissingPrerequisite(subject, missing))
	}

	if comp.SourceDomain != "" && !access.DomainUnlocked(e.Components, comp.SourceDomain) {
		violations = append(violations, violation.DomainLocked(subject, comp.SourceDomain))
	}

	if item, ok := v.Catalog.Item(comp.ContentID); ok {
		for _, excluded := range item.Excludes {
			if e.OwnsContent(excluded) {
				violations = append(violations, violation.Structural(subject,
					fmt.Sprintf("incompatible with %s", excluded)))
			}
		}
	}
	return violations
}

// componentSubject picks the identifier reported on violations: the stable
// content id when known, otherwise the instance id.
func componentSubject(comp entity.Component) string {
	if comp.ContentID != "" {
		return comp.ContentID
	}
	return comp.ID
}

// reasonFor renders the dominant violation as a specific, user-visible
// reason. BLOCK and WARN outcomes must show the exact missing prerequisite or
// locked domain, never a generic failure.
func reasonFor(violations []violation.Violation) string {
	if len(violations) == 0 {
		return ""
	}
	var structural, locked, missing []string
	for _, v := range violations {
		switch v.Kind {
		case violation.KindStructuralIncompatibility:
			structural = append(structural, v.Detail)
		case violation.KindDomainLocked:
			locked = append(locked, v.Detail)
		case violation.KindMissingPrerequisite:
			missing = append(missing, v.Detail)
		}
	}
	switch {
	case len(structural) > 0:
		return "structural incompatibility: " + strings.Join(structural, ", ")
	case len(locked) > 0:
		return "domain locked: " + strings.Join(locked, ", ")
	default:
		return "missing prerequisites: " + strings.Join(missing, ", ")
	}
}
