package violation

import "testing"

func TestClassifyTable(t *testing.T) {
	missing := MissingPrerequisite("feat.x", "level>=3")
	locked := DomainLocked("talent.y", "force")
	structural := Structural("feat.z", "incompatible with feat.w")

	tests := []struct {
		name       string
		violations []Violation
		want       Severity
	}{
		{"none", nil, SeverityNone},
		{"one missing", []Violation{missing}, SeverityWarning},
		{"two missing", []Violation{missing, missing}, SeverityWarning},
		{"three missing", []Violation{missing, missing, missing}, SeverityError},
		{"locked", []Violation{locked}, SeverityError},
		{"locked plus missing", []Violation{missing, locked}, SeverityError},
		{"structural", []Violation{structural}, SeverityStructural},
		{"structural dominates", []Violation{missing, locked, structural}, SeverityStructural},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.violations); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestClassifyIsMonotonic(t *testing.T) {
	base := []Violation{MissingPrerequisite("a", "p1")}
	additions := []Violation{
		MissingPrerequisite("b", "p2"),
		MissingPrerequisite("c", "p3"),
		DomainLocked("d", "force"),
		Structural("e", "incompatible"),
	}

	previous := Classify(base)
	set := base
	for _, extra := range additions {
		set = append(set, extra)
		current := Classify(set)
		if current < previous {
			t.Fatalf("severity decreased from %s to %s after adding %s", previous, current, extra.Kind)
		}
		previous = current
	}
}

func TestClassifyUnknownKindFailsClosed(t *testing.T) {
	got := Classify([]Violation{{ComponentID: "x", Kind: Kind("mystery")}})
	if got != SeverityError {
		t.Fatalf("expected unknown kind to classify as ERROR, got %s", got)
	}
}

func TestSeverityString(t *testing.T) {
	tests := map[Severity]string{
		SeverityNone:       "NONE",
		SeverityWarning:    "WARNING",
		SeverityError:      "ERROR",
		SeverityStructural: "STRUCTURAL",
		Severity(99):       "UNKNOWN",
	}
	for severity, want := range tests {
		if got := severity.String(); got != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
	}
}
