// Package derived computes the derived snapshot for an entity.
//
// Compute is the single writer for every derived value. Downstream consumers
// read derived values only from the snapshot this package returned; nothing
// else in the engine recomputes attack bonuses, defenses, or pools locally.
package derived

import (
	"sort"
	"strings"

	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/entity"
)

// Derived field paths written by Compute.
const (
	PathHalfLevel        = "derived.half_level"
	PathDefenseFortitude = "derived.defense.fortitude"
	PathDefenseReflex    = "derived.defense.reflex"
	PathDefenseWill      = "derived.defense.will"
	PathBaseAttack       = "derived.attack.base"
	PathHitPoints        = "derived.hp.max"
	PathForcePoints      = "derived.force_points"
	PathDamageThreshold  = "derived.damage_threshold"

	abilityModPrefix = "derived.ability_mod."
)

const baseDefense = 10

var abilityNames = []string{"strength", "dexterity", "constitution", "intelligence", "wisdom", "charisma"}

// Calculator is the recompute entry point. It exists as a named function type
// so the mutation authority can count invocations in tests.
type Calculator func(baseFields map[string]any, components []entity.Component) entity.Snapshot

// Compute derives the full snapshot from base fields and attached components.
//
// Pure: same inputs produce the same snapshot regardless of call order or any
// previously attached snapshot. Component bonuses are additive, so the
// attached component order cannot influence the result.
func Compute(baseFields map[string]any, components []entity.Component) entity.Snapshot {
	fields := map[string]int{}

	level := entity.NumberFromFields(baseFields, entity.FieldLevel, 0)
	if level < 0 {
		level = 0
	}
	halfLevel := level / 2
	fields[PathHalfLevel] = halfLevel

	mods := map[string]int{}
	for _, name := range abilityNames {
		score := entity.NumberFromFields(baseFields, entity.AbilityFieldPrefix+name, 10)
		mod := abilityModifier(score)
		mods[name] = mod
		fields[abilityModPrefix+name] = mod
	}

	bonuses := foldBonuses(components)

	fields[PathDefenseFortitude] = baseDefense + level + mods["constitution"] + bonuses[PathDefenseFortitude]
	fields[PathDefenseReflex] = baseDefense + level + mods["dexterity"] + bonuses[PathDefenseReflex]
	fields[PathDefenseWill] = baseDefense + level + mods["wisdom"] + bonuses[PathDefenseWill]

	fields[PathBaseAttack] = bonuses[PathBaseAttack]

	baseHP := entity.NumberFromFields(baseFields, "hp.base", 0)
	hp := baseHP + mods["constitution"]*level + bonuses[PathHitPoints]
	if hp < 0 {
		hp = 0
	}
	fields[PathHitPoints] = hp

	fields[PathForcePoints] = 5 + halfLevel + bonuses[PathForcePoints]
	fields[PathDamageThreshold] = fields[PathDefenseFortitude] + bonuses[PathDamageThreshold]

	// Carry through bonuses targeting derived paths the calculator does not
	// model explicitly, so content can introduce new derived values.
	for path, amount := range bonuses {
		if _, handled := fields[path]; !handled {
			fields[path] = amount
		}
	}

	// ComputedAt is stamped by the mutation authority; Compute itself stays a
	// pure function of its inputs.
	return entity.Snapshot{Fields: fields}
}

// abilityModifier floors (score-10)/2 for negative scores as well.
func abilityModifier(score int) int {
	delta := score - 10
	if delta >= 0 {
		return delta / 2
	}
	return -((-delta + 1) / 2)
}

// foldBonuses sums component bonuses per derived path. Paths outside the
// derived prefix are ignored: components cannot smuggle base field writes
// through the bonus map.
func foldBonuses(components []entity.Component) map[string]int {
	totals := map[string]int{}
	for _, comp := range components {
		for path, amount := range comp.Bonuses {
			if !strings.HasPrefix(path, entity.DerivedFieldPrefix) {
				continue
			}
			totals[path] += amount
		}
	}
	return totals
}

// Paths returns the sorted derived paths present in a snapshot, for stable
// rendering and tests.
func Paths(snapshot entity.Snapshot) []string {
	paths := make([]string, 0, len(snapshot.Fields))
	for path := range snapshot.Fields {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
