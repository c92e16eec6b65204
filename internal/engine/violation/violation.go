// Package violation models rule violations and classifies their severity.
//
// Violations are derived, never stored: they are recomputed whenever the
// preflight validator or an integrity sweep runs.
package violation

// Kind identifies the category of a rule violation.
type Kind string

const (
	// KindMissingPrerequisite marks an unsatisfied structured prerequisite.
	KindMissingPrerequisite Kind = "missing_prerequisite"
	// KindDomainLocked marks content whose source domain is not unlocked.
	KindDomainLocked Kind = "domain_locked"
	// KindStructuralIncompatibility marks content that cannot legally coexist
	// with the current build regardless of further choices.
	KindStructuralIncompatibility Kind = "structural_incompatibility"
)

// Severity is the ordinal severity of a violation set.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityWarning
	SeverityError
	SeverityStructural
)

func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "NONE"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	case SeverityStructural:
		return "STRUCTURAL"
	default:
		return "UNKNOWN"
	}
}

// Violation is one detected rule inconsistency.
type Violation struct {
	// ComponentID names the component instance or candidate content at fault.
	ComponentID string `json:"component_id"`
	// Kind categorizes the violation.
	Kind Kind `json:"kind"`
	// Severity is the per-violation severity used in classification.
	Severity Severity `json:"severity"`
	// Detail carries the specific missing predicate or locked domain so
	// callers can render the exact reason, never a generic failure.
	Detail string `json:"detail,omitempty"`
}

// MissingPrerequisite builds a missing-prerequisite violation.
func MissingPrerequisite(componentID, predicateID string) Violation {
	return Violation{
		ComponentID: componentID,
		Kind:        KindMissingPrerequisite,
		Severity:    SeverityWarning,
		Detail:      predicateID,
	}
}

// DomainLocked builds a domain-locked violation.
func DomainLocked(componentID, domain string) Violation {
	return Violation{
		ComponentID: componentID,
		Kind:        KindDomainLocked,
		Severity:    SeverityError,
		Detail:      domain,
	}
}

// Structural builds a structural-incompatibility violation.
func Structural(componentID, detail string) Violation {
	return Violation{
		ComponentID: componentID,
		Kind:        KindStructuralIncompatibility,
		Severity:    SeverityStructural,
		Detail:      detail,
	}
}

// Classify maps a violation set to one ordinal severity.
//
// The mapping is deterministic and monotonic: adding a violation never
// decreases the result.
//
//	0 violations                              -> NONE
//	1-2 missing-prerequisite violations       -> WARNING
//	>=3 missing-prerequisite, or any locked   -> ERROR
//	any structural incompatibility            -> STRUCTURAL
func Classify(violations []Violation) Severity {
	severity := SeverityNone
	missing := 0
	for _, v := range violations {
		switch v.Kind {
		case KindMissingPrerequisite:
			missing++
		case KindDomainLocked:
			severity = max(severity, SeverityError)
		case KindStructuralIncompatibility:
			severity = max(severity, SeverityStructural)
		default:
			// Unknown kinds fail closed at the strongest recoverable level.
			severity = max(severity, SeverityError)
		}
	}
	switch {
	case missing >= 3:
		severity = max(severity, SeverityError)
	case missing >= 1:
		severity = max(severity, SeverityWarning)
	}
	return severity
}
