// Package policy provides the enforcement decision for validated mutations.
//
// Decide is the only place allow/warn/block decisions are made. No other
// component embeds or short-circuits this table.
package policy

import (
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/entity"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/violation"
)

// Outcome is the enforcement decision for a proposed mutation.
type Outcome string

const (
	// OutcomeAllow accepts the mutation.
	OutcomeAllow Outcome = "ALLOW"
	// OutcomeWarn accepts the mutation only with explicit acknowledgement.
	OutcomeWarn Outcome = "WARN"
	// OutcomeBlock rejects the mutation with zero writes.
	OutcomeBlock Outcome = "BLOCK"
)

// Decide maps (mode, strict, severity) to an outcome.
//
//	OVERRIDE or FREEBUILD  any severity          -> ALLOW (still recorded)
//	NORMAL  non-strict     NONE                  -> ALLOW
//	NORMAL  non-strict     WARNING               -> WARN
//	NORMAL  non-strict     ERROR or STRUCTURAL   -> BLOCK
//	NORMAL  strict         NONE                  -> ALLOW
//	NORMAL  strict         anything else         -> BLOCK
func Decide(mode entity.Mode, strict bool, severity violation.Severity) Outcome {
	if mode.Bypasses() {
		return OutcomeAllow
	}
	if severity == violation.SeverityNone {
		return OutcomeAllow
	}
	if strict {
		return OutcomeBlock
	}
	if severity == violation.SeverityWarning {
		return OutcomeWarn
	}
	return OutcomeBlock
}
