package derived

import (
	"reflect"
	"testing"

	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/entity"
)

func baseFields(level, con, dex, wis int) map[string]any {
	return map[string]any{
		entity.FieldLevel:       level,
		"abilities.constitution": con,
		"abilities.dexterity":    dex,
		"abilities.wisdom":       wis,
		"hp.base":                30,
	}
}

func TestComputeDefenses(t *testing.T) {
	snapshot := Compute(baseFields(4, 14, 12, 10), nil)

	if got := snapshot.Fields[PathDefenseFortitude]; got != 16 {
		t.Fatalf("expected fortitude 16 (10+4+2), got %d", got)
	}
	if got := snapshot.Fields[PathDefenseReflex]; got != 15 {
		t.Fatalf("expected reflex 15 (10+4+1), got %d", got)
	}
	if got := snapshot.Fields[PathDefenseWill]; got != 14 {
		t.Fatalf("expected will 14 (10+4+0), got %d", got)
	}
	if got := snapshot.Fields[PathHalfLevel]; got != 2 {
		t.Fatalf("expected half level 2, got %d", got)
	}
	if got := snapshot.Fields[PathDamageThreshold]; got != 16 {
		t.Fatalf("expected damage threshold to track fortitude, got %d", got)
	}
}

func TestComputeHitPointsFlooredAtZero(t *testing.T) {
	fields := map[string]any{
		entity.FieldLevel:        10,
		"abilities.constitution": 4,
		"hp.base":                5,
	}
	snapshot := Compute(fields, nil)
	if got := snapshot.Fields[PathHitPoints]; got != 0 {
		t.Fatalf("expected hp floored at 0, got %d", got)
	}
}

func TestComputeAppliesComponentBonuses(t *testing.T) {
	components := []entity.Component{
		{ID: "c1", ContentID: "talent.armored_defense", Bonuses: map[string]int{PathDefenseReflex: 2}},
		{ID: "c2", ContentID: "feat.toughness", Bonuses: map[string]int{PathHitPoints: 5}},
	}
	snapshot := Compute(baseFields(2, 10, 10, 10), components)

	if got := snapshot.Fields[PathDefenseReflex]; got != 14 {
		t.Fatalf("expected reflex 14 with +2 bonus, got %d", got)
	}
	if got := snapshot.Fields[PathHitPoints]; got != 35 {
		t.Fatalf("expected hp 35 with +5 bonus, got %d", got)
	}
}

func TestComputeIgnoresNonDerivedBonusPaths(t *testing.T) {
	components := []entity.Component{
		{ID: "c1", ContentID: "feat.sneaky", Bonuses: map[string]int{"level": 99}},
	}
	snapshot := Compute(baseFields(1, 10, 10, 10), components)
	if _, ok := snapshot.Fields["level"]; ok {
		t.Fatal("expected non-derived bonus path to be dropped")
	}
}

func TestComputeCarriesUnmodeledDerivedPaths(t *testing.T) {
	components := []entity.Component{
		{ID: "c1", ContentID: "talent.custom", Bonuses: map[string]int{"derived.speed": 2}},
	}
	snapshot := Compute(baseFields(1, 10, 10, 10), components)
	if got := snapshot.Fields["derived.speed"]; got != 2 {
		t.Fatalf("expected carried-through derived.speed 2, got %d", got)
	}
}

func TestComputeIsPure(t *testing.T) {
	fields := baseFields(6, 13, 15, 8)
	components := []entity.Component{
		{ID: "c1", ContentID: "feat.toughness", Bonuses: map[string]int{PathHitPoints: 6}},
	}

	first := Compute(fields, components)
	second := Compute(fields, components)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical snapshots, got %v vs %v", first.Fields, second.Fields)
	}
	if first.ComputedAt != 0 {
		t.Fatalf("expected compute to leave the timestamp unset, got %d", first.ComputedAt)
	}
}

func TestComputeOrderIndependent(t *testing.T) {
	a := entity.Component{ID: "a", ContentID: "x", Bonuses: map[string]int{PathForcePoints: 1}}
	b := entity.Component{ID: "b", ContentID: "y", Bonuses: map[string]int{PathForcePoints: 2}}

	forward := Compute(baseFields(3, 10, 10, 10), []entity.Component{a, b})
	reverse := Compute(baseFields(3, 10, 10, 10), []entity.Component{b, a})
	if !reflect.DeepEqual(forward.Fields, reverse.Fields) {
		t.Fatal("expected component order to not influence derived values")
	}
}

func TestAbilityModifierFloorsNegative(t *testing.T) {
	tests := []struct {
		score int
		want  int
	}{
		{10, 0}, {11, 0}, {12, 1}, {13, 1}, {14, 2},
		{9, -1}, {8, -1}, {7, -2}, {1, -5},
	}
	for _, tc := range tests {
		if got := abilityModifier(tc.score); got != tc.want {
			t.Fatalf("abilityModifier(%d): expected %d, got %d", tc.score, tc.want, got)
		}
	}
}
