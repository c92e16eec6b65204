package boundary

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/entity"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/storage/memory"
)

func TestAuthorizedWritePassesCleanly(t *testing.T) {
	defense := NewDefense(memory.NewStore(), EnforcementReport)
	ctx := WithAuthorization(context.Background())

	if err := defense.PutEntity(ctx, entity.New("char-1")); err != nil {
		t.Fatalf("authorized put: %v", err)
	}
	if reports := defense.Reports(); len(reports) != 0 {
		t.Fatalf("expected no reports, got %v", reports)
	}
}

func TestUnauthorizedWriteReportedButAllowed(t *testing.T) {
	store := memory.NewStore()
	defense := NewDefense(store, EnforcementReport)

	if err := defense.PutEntity(context.Background(), entity.New("char-1")); err != nil {
		t.Fatalf("report-mode put: %v", err)
	}

	reports := defense.Reports()
	if len(reports) != 1 {
		t.Fatalf("expected 1 report, got %d", len(reports))
	}
	if reports[0].EntityID != "char-1" {
		t.Fatalf("expected entity id recorded, got %q", reports[0].EntityID)
	}
	if reports[0].Origin == "" || reports[0].Origin == "unknown" {
		t.Fatalf("expected call origin captured, got %q", reports[0].Origin)
	}
	if !strings.Contains(reports[0].Origin, "defense_test.go") {
		t.Fatalf("expected origin to point at the bypassing caller, got %q", reports[0].Origin)
	}

	// The write went through under report enforcement.
	if _, err := store.GetEntity(context.Background(), "char-1"); err != nil {
		t.Fatalf("expected entity stored, got %v", err)
	}
}

func TestUnauthorizedWriteBlockedUnderBlockEnforcement(t *testing.T) {
	store := memory.NewStore()
	defense := NewDefense(store, EnforcementBlock)

	err := defense.PutEntity(context.Background(), entity.New("char-1"))
	if !errors.Is(err, ErrUnauthorizedWrite) {
		t.Fatalf("expected ErrUnauthorizedWrite, got %v", err)
	}
	if _, err := store.GetEntity(context.Background(), "char-1"); err == nil {
		t.Fatal("expected blocked write to not reach the store")
	}
}

func TestReadsAreNotMonitored(t *testing.T) {
	store := memory.NewStore()
	if err := store.PutEntity(context.Background(), entity.New("char-1")); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	defense := NewDefense(store, EnforcementBlock)

	if _, err := defense.GetEntity(context.Background(), "char-1"); err != nil {
		t.Fatalf("read through defense: %v", err)
	}
	if _, err := defense.ListEntityIDs(context.Background()); err != nil {
		t.Fatalf("list through defense: %v", err)
	}
	if len(defense.Reports()) != 0 {
		t.Fatal("expected reads to produce no reports")
	}
}

func TestParseEnforcement(t *testing.T) {
	tests := []struct {
		raw  string
		want Enforcement
		ok   bool
	}{
		{"report", EnforcementReport, true},
		{"", EnforcementReport, true},
		{"BLOCK", EnforcementBlock, true},
		{"audit", "", false},
	}
	for _, tc := range tests {
		got, ok := ParseEnforcement(tc.raw)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseEnforcement(%q): expected (%q,%t), got (%q,%t)", tc.raw, tc.want, tc.ok, got, ok)
		}
	}
}
