package policy

import (
	"testing"

	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/entity"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/violation"
)

func TestDecideTable(t *testing.T) {
	tests := []struct {
		name     string
		mode     entity.Mode
		strict   bool
		severity violation.Severity
		want     Outcome
	}{
		{"normal none", entity.ModeNormal, false, violation.SeverityNone, OutcomeAllow},
		{"normal warning", entity.ModeNormal, false, violation.SeverityWarning, OutcomeWarn},
		{"normal error", entity.ModeNormal, false, violation.SeverityError, OutcomeBlock},
		{"normal structural", entity.ModeNormal, false, violation.SeverityStructural, OutcomeBlock},
		{"strict none", entity.ModeNormal, true, violation.SeverityNone, OutcomeAllow},
		{"strict warning", entity.ModeNormal, true, violation.SeverityWarning, OutcomeBlock},
		{"strict error", entity.ModeNormal, true, violation.SeverityError, OutcomeBlock},
		{"override structural", entity.ModeOverride, false, violation.SeverityStructural, OutcomeAllow},
		{"override strict error", entity.ModeOverride, true, violation.SeverityError, OutcomeAllow},
		{"freebuild error", entity.ModeFreebuild, false, violation.SeverityError, OutcomeAllow},
		{"freebuild strict structural", entity.ModeFreebuild, true, violation.SeverityStructural, OutcomeAllow},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Decide(tc.mode, tc.strict, tc.severity); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}
