// Package prereq evaluates structured prerequisite predicates against entity state.
//
// Predicates are closed, structured trees (ability thresholds, level
// thresholds, component ownership, trained skills, and AND/OR combinators).
// Free-text prerequisites are never accepted: content that cannot express a
// requirement as a predicate tree cannot gate on it.
package prereq

import (
	"fmt"
	"strings"
)

// Kind identifies a predicate node type.
type Kind string

const (
	// KindAbilityAtLeast requires an ability score at or above a threshold.
	KindAbilityAtLeast Kind = "ability_at_least"
	// KindLevelAtLeast requires the entity level at or above a threshold.
	KindLevelAtLeast Kind = "level_at_least"
	// KindOwnsComponent requires an attached component with the given content id.
	KindOwnsComponent Kind = "owns_component"
	// KindTrainedSkill requires the named skill to be trained.
	KindTrainedSkill Kind = "trained_skill"
	// KindAllOf is satisfied when every child predicate is satisfied.
	KindAllOf Kind = "all_of"
	// KindAnyOf is satisfied when at least one child predicate is satisfied.
	KindAnyOf Kind = "any_of"
)

// Predicate is one node in a prerequisite tree.
type Predicate struct {
	// Kind selects the evaluation rule. Unknown kinds fail closed.
	Kind Kind `yaml:"kind" json:"kind"`
	// ID is an optional stable identifier surfaced in missing-prerequisite
	// reporting. When empty, Describe output is used instead.
	ID string `yaml:"id,omitempty" json:"id,omitempty"`
	// Ability names the ability score for ability_at_least.
	Ability string `yaml:"ability,omitempty" json:"ability,omitempty"`
	// Threshold is the minimum value for ability_at_least and level_at_least.
	Threshold int `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	// ContentID names the required content item for owns_component.
	ContentID string `yaml:"content_id,omitempty" json:"content_id,omitempty"`
	// Skill names the skill for trained_skill.
	Skill string `yaml:"skill,omitempty" json:"skill,omitempty"`
	// Children holds combinator operands for all_of and any_of.
	Children []Predicate `yaml:"children,omitempty" json:"children,omitempty"`
}

// View exposes the entity state a predicate evaluation may read.
//
// The evaluator deliberately cannot reach arbitrary entity internals; gating
// decisions stay reproducible from this narrow read surface.
type View interface {
	AbilityScore(name string) int
	Level() int
	OwnsContent(contentID string) bool
	SkillTrained(name string) bool
}

// Result reports the outcome of evaluating one predicate tree.
type Result struct {
	// Satisfied is true when the whole tree is satisfied.
	Satisfied bool
	// Missing lists identifiers of unsatisfied leaf predicates.
	Missing []string
	// Unknown lists identifiers of predicate kinds the evaluator could not
	// interpret. Unknown predicates fail closed and also appear in Missing.
	Unknown []string
}

// Evaluate walks a predicate tree against the view.
//
// A nil predicate is vacuously satisfied: content with no prerequisites is
// always eligible at this layer.
func Evaluate(pred *Predicate, view View) Result {
	if pred == nil {
		return Result{Satisfied: true}
	}
	if view == nil {
		return Result{Missing: []string{pred.Describe()}}
	}
	return evaluate(*pred, view)
}

func evaluate(pred Predicate, view View) Result {
	switch pred.Kind {
	case KindAbilityAtLeast:
		if view.AbilityScore(pred.Ability) >= pred.Threshold {
			return Result{Satisfied: true}
		}
		return Result{Missing: []string{pred.Describe()}}

	case KindLevelAtLeast:
		if view.Level() >= pred.Threshold {
			return Result{Satisfied: true}
		}
		return Result{Missing: []string{pred.Describe()}}

	case KindOwnsComponent:
		if view.OwnsContent(pred.ContentID) {
			return Result{Satisfied: true}
		}
		return Result{Missing: []string{pred.Describe()}}

	case KindTrainedSkill:
		if view.SkillTrained(pred.Skill) {
			return Result{Satisfied: true}
		}
		return Result{Missing: []string{pred.Describe()}}

	case KindAllOf:
		combined := Result{Satisfied: true}
		for _, child := range pred.Children {
			result := evaluate(child, view)
			if !result.Satisfied {
				combined.Satisfied = false
				combined.Missing = append(combined.Missing, result.Missing...)
			}
			combined.Unknown = append(combined.Unknown, result.Unknown...)
		}
		return combined

	case KindAnyOf:
		if len(pred.Children) == 0 {
			return Result{Satisfied: true}
		}
		combined := Result{}
		for _, child := range pred.Children {
			result := evaluate(child, view)
			combined.Unknown = append(combined.Unknown, result.Unknown...)
			if result.Satisfied {
				return Result{Satisfied: true, Unknown: combined.Unknown}
			}
			combined.Missing = append(combined.Missing, result.Missing...)
		}
		return combined

	default:
		// Unknown predicate kinds fail closed rather than silently passing.
		id := pred.Describe()
		return Result{Missing: []string{id}, Unknown: []string{id}}
	}
}

// Describe returns the predicate ID when set, otherwise a deterministic
// human-readable identifier for reporting.
func (p Predicate) Describe() string {
	if id := strings.TrimSpace(p.ID); id != "" {
		return id
	}
	switch p.Kind {
	case KindAbilityAtLeast:
		return fmt.Sprintf("ability:%s>=%d", p.Ability, p.Threshold)
	case KindLevelAtLeast:
		return fmt.Sprintf("level>=%d", p.Threshold)
	case KindOwnsComponent:
		return fmt.Sprintf("owns:%s", p.ContentID)
	case KindTrainedSkill:
		return fmt.Sprintf("trained:%s", p.Skill)
	case KindAllOf:
		return "all_of"
	case KindAnyOf:
		return "any_of"
	default:
		return fmt.Sprintf("unknown:%s", string(p.Kind))
	}
}

// Validate checks a predicate tree for structural problems at catalog load
// time. Unknown kinds are allowed through (they fail closed at evaluation) so
// newer content packs do not break older engines.
func (p Predicate) Validate() error {
	switch p.Kind {
	case KindAbilityAtLeast:
		if strings.TrimSpace(p.Ability) == "" {
			return fmt.Errorf("ability_at_least predicate requires an ability name")
		}
	case KindLevelAtLeast:
		if p.Threshold <= 0 {
			return fmt.Errorf("level_at_least predicate requires a positive threshold")
		}
	case KindOwnsComponent:
		if strings.TrimSpace(p.ContentID) == "" {
			return fmt.Errorf("owns_component predicate requires a content id")
		}
	case KindTrainedSkill:
		if strings.TrimSpace(p.Skill) == "" {
			return fmt.Errorf("trained_skill predicate requires a skill name")
		}
	case KindAllOf, KindAnyOf:
		for i, child := range p.Children {
			if err := child.Validate(); err != nil {
				return fmt.Errorf("%s child %d: %w", p.Kind, i, err)
			}
		}
	}
	return nil
}
