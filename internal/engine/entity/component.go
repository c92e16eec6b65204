package entity

import "github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/prereq"

// ContentType tags the kind of rules content a component instantiates.
type ContentType string

const (
	ContentTypeFeat      ContentType = "feat"
	ContentTypeTalent    ContentType = "talent"
	ContentTypeClass     ContentType = "class"
	ContentTypeEquipment ContentType = "equipment"
	ContentTypeSpecies   ContentType = "species"
)

// KnownContentType reports whether the tag is part of the closed set.
func KnownContentType(t ContentType) bool {
	switch t {
	case ContentTypeFeat, ContentTypeTalent, ContentTypeClass, ContentTypeEquipment, ContentTypeSpecies:
		return true
	default:
		return false
	}
}

// Provenance records what created a component.
type Provenance string

const (
	// ProvenanceChosen marks a component selected by a player.
	ProvenanceChosen Provenance = "chosen"
	// ProvenanceGranted marks a component granted by another rule.
	ProvenanceGranted Provenance = "granted"
	// ProvenanceInherited marks a component inherited from species or template.
	ProvenanceInherited Provenance = "inherited"
)

// Component is an attached rule-bearing unit: a feat, talent, class level, or
// equipment instance.
//
// Components hold a one-way reference to their source domain tag. Domains are
// never back-populated with component pointers; unlock state is always
// recomputed by scanning the component list, which keeps the graph acyclic.
type Component struct {
	// ID is the unique instance identifier on this entity.
	ID string `json:"id"`
	// ContentID is the stable catalog item identifier.
	ContentID string `json:"content_id"`
	// Name is the display label copied from the catalog item.
	Name string `json:"name,omitempty"`
	// Type tags the content kind.
	Type ContentType `json:"type"`
	// SourceDomain names the unlock domain this component requires, if any.
	SourceDomain string `json:"source_domain,omitempty"`
	// GrantsDomains lists unlock domains this component is a source of.
	GrantsDomains []string `json:"grants_domains,omitempty"`
	// Provenance records what created the component.
	Provenance Provenance `json:"provenance"`
	// Prerequisite is the structured predicate tree gating this component.
	Prerequisite *prereq.Predicate `json:"prerequisite,omitempty"`
	// Bonuses maps derived field paths to flat bonuses folded in by the
	// derived calculator.
	Bonuses map[string]int `json:"bonuses,omitempty"`
}

// Clone returns a deep copy of the component.
func (c Component) Clone() Component {
	cloned := c
	if c.GrantsDomains != nil {
		cloned.GrantsDomains = append([]string(nil), c.GrantsDomains...)
	}
	if c.Bonuses != nil {
		cloned.Bonuses = make(map[string]int, len(c.Bonuses))
		for key, value := range c.Bonuses {
			cloned.Bonuses[key] = value
		}
	}
	if c.Prerequisite != nil {
		pred := clonePredicate(*c.Prerequisite)
		cloned.Prerequisite = &pred
	}
	return cloned
}

func clonePredicate(p prereq.Predicate) prereq.Predicate {
	cloned := p
	if p.Children != nil {
		cloned.Children = make([]prereq.Predicate, len(p.Children))
		for i, child := range p.Children {
			cloned.Children[i] = clonePredicate(child)
		}
	}
	return cloned
}
