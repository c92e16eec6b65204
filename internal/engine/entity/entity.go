package entity

import (
	"fmt"
	"strings"

	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/prereq"
)

// DerivedFieldPrefix marks field paths owned by the derived calculator.
// Mutations may never write under this prefix.
const DerivedFieldPrefix = "derived."

// Well-known base field paths.
const (
	FieldLevel   = "level"
	FieldSpecies = "species"
)

// AbilityFieldPrefix prefixes ability score paths, e.g. "abilities.strength".
const AbilityFieldPrefix = "abilities."

// SkillTrainedSuffix terminates trained-skill flag paths,
// e.g. "skills.use_the_force.trained".
const (
	skillFieldPrefix  = "skills."
	skillFieldSuffix  = ".trained"
	defaultAbilityVal = 10
)

// Entity is the mutable subject tracked by the engine: one character.
//
// Derived is always a pure function of BaseFields plus Components at the time
// of the last successful mutation. Nothing else may write it.
type Entity struct {
	ID         string
	BaseFields map[string]any
	Components []Component
	Derived    Snapshot
	Mode       Mode
	Strict     bool
}

// Snapshot is the derived-state payload attached to an entity.
//
// The concrete values live in package derived; the entity only carries the
// recomputed result so readers never recompute locally. Fields maps fully
// qualified derived paths ("derived.defense.fortitude") to scalar values.
type Snapshot struct {
	Fields     map[string]int
	ComputedAt int64
}

// New returns an entity with initialized field storage.
func New(id string) *Entity {
	return &Entity{
		ID:         id,
		BaseFields: map[string]any{},
		Mode:       ModeNormal,
	}
}

// Clone returns a deep copy. Rejected mutations operate on clones so the
// caller-visible entity can never observe a partial write.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	cloned := &Entity{
		ID:     e.ID,
		Mode:   e.Mode,
		Strict: e.Strict,
	}
	cloned.BaseFields = make(map[string]any, len(e.BaseFields))
	for key, value := range e.BaseFields {
		cloned.BaseFields[key] = value
	}
	cloned.Components = make([]Component, len(e.Components))
	for i, comp := range e.Components {
		cloned.Components[i] = comp.Clone()
	}
	cloned.Derived = Snapshot{ComputedAt: e.Derived.ComputedAt}
	if e.Derived.Fields != nil {
		cloned.Derived.Fields = make(map[string]int, len(e.Derived.Fields))
		for key, value := range e.Derived.Fields {
			cloned.Derived.Fields[key] = value
		}
	}
	return cloned
}

// IsDerivedPath reports whether a field path is owned by the derived
// calculator and therefore write-protected.
func IsDerivedPath(path string) bool {
	return strings.HasPrefix(strings.TrimSpace(path), DerivedFieldPrefix)
}

// IsScalar reports whether a value is an accepted base field scalar.
func IsScalar(value any) bool {
	switch value.(type) {
	case string, bool, int, int64, float64:
		return true
	default:
		return false
	}
}

// NumberField reads a numeric base field, returning fallback when the field
// is absent or non-numeric.
func (e *Entity) NumberField(path string, fallback int) int {
	if e == nil {
		return fallback
	}
	return numberFrom(e.BaseFields, path, fallback)
}

// StringField reads a string base field, returning fallback when absent.
func (e *Entity) StringField(path string, fallback string) string {
	if e == nil {
		return fallback
	}
	value, ok := e.BaseFields[path]
	if !ok {
		return fallback
	}
	str, ok := value.(string)
	if !ok {
		return fallback
	}
	return str
}

// Level returns the entity's character level.
func (e *Entity) Level() int {
	return e.NumberField(FieldLevel, 0)
}

// AbilityScore returns an ability score by name, defaulting to 10.
func (e *Entity) AbilityScore(name string) int {
	return e.NumberField(AbilityFieldPrefix+strings.ToLower(strings.TrimSpace(name)), defaultAbilityVal)
}

// SkillTrained reports whether the named skill is flagged trained.
func (e *Entity) SkillTrained(name string) bool {
	key := skillFieldPrefix + strings.ToLower(strings.TrimSpace(name)) + skillFieldSuffix
	value, ok := e.BaseFields[key]
	if !ok {
		return false
	}
	trained, ok := value.(bool)
	return ok && trained
}

// OwnsContent reports whether any attached component instantiates the given
// content item.
func (e *Entity) OwnsContent(contentID string) bool {
	if e == nil {
		return false
	}
	for _, comp := range e.Components {
		if comp.ContentID == contentID {
			return true
		}
	}
	return false
}

// Component returns the attached component with the given instance id.
func (e *Entity) Component(id string) (Component, bool) {
	for _, comp := range e.Components {
		if comp.ID == id {
			return comp, true
		}
	}
	return Component{}, false
}

// AttachComponent appends a component instance.
func (e *Entity) AttachComponent(comp Component) {
	e.Components = append(e.Components, comp)
}

// DetachComponent removes the component with the given instance id, reporting
// whether it was present.
func (e *Entity) DetachComponent(id string) bool {
	for i, comp := range e.Components {
		if comp.ID == id {
			e.Components = append(e.Components[:i], e.Components[i+1:]...)
			return true
		}
	}
	return false
}

// numberFrom coerces the supported scalar kinds into an int.
func numberFrom(fields map[string]any, path string, fallback int) int {
	value, ok := fields[path]
	if !ok {
		return fallback
	}
	switch v := value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}

// NumberFromFields reads a numeric value out of a raw base-field map. The
// derived calculator uses this so it can stay a pure function over maps.
func NumberFromFields(fields map[string]any, path string, fallback int) int {
	return numberFrom(fields, path, fallback)
}

var _ prereq.View = (*Entity)(nil)

func (e *Entity) String() string {
	if e == nil {
		return "<nil entity>"
	}
	return fmt.Sprintf("entity %s (level %d, %d components, mode %s)", e.ID, e.Level(), len(e.Components), e.Mode)
}
