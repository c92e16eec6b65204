// Package mutation models proposed atomic entity changes and their verdicts.
//
// A mutation is a closed set of operations (field writes, component adds,
// component removes) evaluated as a whole before any write occurs. Mutations
// are never partially applied.
package mutation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/entity"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/policy"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/violation"
)

// OpKind identifies a mutation operation. The set is closed so validators and
// appliers can match exhaustively instead of branching on strings.
type OpKind string

const (
	// OpFieldWrite writes one scalar base field.
	OpFieldWrite OpKind = "field_write"
	// OpComponentAdd attaches a component instance.
	OpComponentAdd OpKind = "component_add"
	// OpComponentRemove detaches a component instance by id.
	OpComponentRemove OpKind = "component_remove"
)

// Op is one operation inside a mutation.
type Op struct {
	Kind OpKind `json:"kind"`
	// Path is the base field path for field_write.
	Path string `json:"path,omitempty"`
	// Value is the scalar value for field_write.
	Value any `json:"value,omitempty"`
	// Component is the instance to attach for component_add.
	Component *entity.Component `json:"component,omitempty"`
	// ComponentID is the instance to detach for component_remove.
	ComponentID string `json:"component_id,omitempty"`
}

// Mutation is a proposed atomic change set against one entity.
type Mutation struct {
	// ID identifies this mutation attempt for auditing.
	ID string `json:"id"`
	// EntityID addresses the target entity.
	EntityID string `json:"entity_id"`
	// Source records who or what proposed the change (player, cascade, seed).
	Source string `json:"source"`
	// Ops is the operation set, applied in order after approval.
	Ops []Op `json:"ops"`
	// AcknowledgeWarnings marks an explicit proceed-despite-warning resubmit.
	// WARN verdicts apply zero writes until the caller sets this.
	AcknowledgeWarnings bool `json:"acknowledge_warnings,omitempty"`
}

// Verdict is the result of validating a mutation.
type Verdict struct {
	Outcome    policy.Outcome        `json:"outcome"`
	Reason     string                `json:"reason,omitempty"`
	Severity   violation.Severity    `json:"severity"`
	Violations []violation.Violation `json:"violations,omitempty"`
}

// Summary renders a compact description for audit entries and logs.
func (m Mutation) Summary() string {
	if len(m.Ops) == 0 {
		return "empty"
	}
	parts := make([]string, 0, len(m.Ops))
	for _, op := range m.Ops {
		switch op.Kind {
		case OpFieldWrite:
			parts = append(parts, "field_write:"+op.Path)
		case OpComponentAdd:
			if op.Component != nil {
				parts = append(parts, "component_add:"+op.Component.ContentID)
			} else {
				parts = append(parts, "component_add:?")
			}
		case OpComponentRemove:
			parts = append(parts, "component_remove:"+op.ComponentID)
		default:
			parts = append(parts, "unknown:"+string(op.Kind))
		}
	}
	return strings.Join(parts, ",")
}

// Removals returns the component ids targeted by remove operations, sorted.
func (m Mutation) Removals() []string {
	var ids []string
	for _, op := range m.Ops {
		if op.Kind == OpComponentRemove && op.ComponentID != "" {
			ids = append(ids, op.ComponentID)
		}
	}
	sort.Strings(ids)
	return ids
}

// Validation error codes for malformed mutation shapes. These reject the
// mutation regardless of operating mode.
const (
	CodeMutationEmpty      = "MUTATION_EMPTY"
	CodeEntityRequired     = "ENTITY_REQUIRED"
	CodeOpKindUnknown      = "OP_KIND_UNKNOWN"
	CodeFieldPathEmpty     = "FIELD_PATH_EMPTY"
	CodeFieldValueInvalid  = "FIELD_VALUE_NOT_SCALAR"
	CodeDerivedFieldWrite  = "DERIVED_FIELD_WRITE"
	CodeComponentRequired  = "COMPONENT_REQUIRED"
	CodeComponentIDMissing = "COMPONENT_ID_REQUIRED"
)

// ValidationError reports a malformed mutation shape or a derived-field write
// attempt. It is always a hard rejection with zero writes.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewValidationError builds a ValidationError.
func NewValidationError(code, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}
