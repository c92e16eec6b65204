// Package catalog holds the read-only rules-content snapshot the engine
// consults during gating.
//
// The catalog is loaded once at startup by an external collaborator and
// treated as immutable for the lifetime of every mutation. Items expose a
// stable id, an optional source-domain tag, and a structured prerequisite
// predicate tree; the engine never accepts natural-language prerequisites.
package catalog

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/entity"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/prereq"
)

// Item describes one selectable piece of rules content.
type Item struct {
	// ID is the stable content identifier, e.g. "feat.force_sensitivity".
	ID string `yaml:"id"`
	// Name is the display label.
	Name string `yaml:"name"`
	// Type tags the content kind.
	Type entity.ContentType `yaml:"type"`
	// SourceDomain names the unlock domain required to select this item.
	SourceDomain string `yaml:"source_domain,omitempty"`
	// GrantsDomains lists unlock domains this item is a source of when attached.
	GrantsDomains []string `yaml:"grants_domains,omitempty"`
	// Tree places the item inside a content subtree, if any.
	Tree string `yaml:"tree,omitempty"`
	// Prerequisite gates selection of this item.
	Prerequisite *prereq.Predicate `yaml:"prerequisite,omitempty"`
	// Bonuses maps derived field paths to flat bonuses.
	Bonuses map[string]int `yaml:"bonuses,omitempty"`
	// Excludes lists content ids structurally incompatible with this item.
	Excludes []string `yaml:"excludes,omitempty"`
}

// Tree describes a content subtree and its unlock requirement.
type Tree struct {
	// ID is the stable tree identifier, e.g. "tree.force_powers".
	ID string `yaml:"id"`
	// RequiredDomain names the unlock domain gating the whole subtree.
	// Empty means the subtree is always available.
	RequiredDomain string `yaml:"required_domain,omitempty"`
	// Tier scopes the subtree to a selection slot tier (heroic, class).
	// Empty means the subtree matches every slot.
	Tier string `yaml:"tier,omitempty"`
}

// Catalog is an immutable rules-content snapshot.
type Catalog struct {
	items map[string]Item
	trees map[string]Tree
}

// document is the on-disk YAML shape.
type document struct {
	Items []Item `yaml:"items"`
	Trees []Tree `yaml:"trees"`
}

// New builds a catalog from item and tree slices, validating references.
func New(items []Item, trees []Tree) (*Catalog, error) {
	cat := &Catalog{
		items: make(map[string]Item, len(items)),
		trees: make(map[string]Tree, len(trees)),
	}
	for _, tree := range trees {
		id := strings.TrimSpace(tree.ID)
		if id == "" {
			return nil, fmt.Errorf("catalog tree id is required")
		}
		if _, dup := cat.trees[id]; dup {
			return nil, fmt.Errorf("catalog tree %s is duplicated", id)
		}
		tree.ID = id
		cat.trees[id] = tree
	}
	for _, item := range items {
		id := strings.TrimSpace(item.ID)
		if id == "" {
			return nil, fmt.Errorf("catalog item id is required")
		}
		if _, dup := cat.items[id]; dup {
			return nil, fmt.Errorf("catalog item %s is duplicated", id)
		}
		if !entity.KnownContentType(item.Type) {
			return nil, fmt.Errorf("catalog item %s has unknown content type %q", id, item.Type)
		}
		if item.Tree != "" {
			if _, ok := cat.trees[item.Tree]; !ok {
				return nil, fmt.Errorf("catalog item %s references unknown tree %s", id, item.Tree)
			}
		}
		if item.Prerequisite != nil {
			if err := item.Prerequisite.Validate(); err != nil {
				return nil, fmt.Errorf("catalog item %s prerequisite: %w", id, err)
			}
		}
		item.ID = id
		cat.items[id] = item
	}
	return cat, nil
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog yaml: %w", err)
	}
	return New(doc.Items, doc.Trees)
}

// Load reads and parses a YAML catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	cat, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return cat, nil
}

// Item returns the content item with the given id.
func (c *Catalog) Item(id string) (Item, bool) {
	if c == nil {
		return Item{}, false
	}
	item, ok := c.items[id]
	return item, ok
}

// Tree returns the subtree with the given id.
func (c *Catalog) Tree(id string) (Tree, bool) {
	if c == nil {
		return Tree{}, false
	}
	tree, ok := c.trees[id]
	return tree, ok
}

// Trees returns every subtree sorted by id for deterministic iteration.
func (c *Catalog) Trees() []Tree {
	if c == nil {
		return nil
	}
	trees := make([]Tree, 0, len(c.trees))
	for _, tree := range c.trees {
		trees = append(trees, tree)
	}
	sort.Slice(trees, func(i, j int) bool { return trees[i].ID < trees[j].ID })
	return trees
}

// Items returns every item sorted by id.
func (c *Catalog) Items() []Item {
	if c == nil {
		return nil
	}
	items := make([]Item, 0, len(c.items))
	for _, item := range c.items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

// Instantiate builds a component instance from a catalog item.
func (c *Catalog) Instantiate(itemID string, provenance entity.Provenance) (entity.Component, error) {
	item, ok := c.Item(itemID)
	if !ok {
		return entity.Component{}, fmt.Errorf("catalog item %s not found", itemID)
	}
	comp := entity.Component{
		ID:            uuid.NewString(),
		ContentID:     item.ID,
		Name:          item.Name,
		Type:          item.Type,
		SourceDomain:  item.SourceDomain,
		GrantsDomains: append([]string(nil), item.GrantsDomains...),
		Provenance:    provenance,
		Prerequisite:  item.Prerequisite,
	}
	if item.Bonuses != nil {
		comp.Bonuses = make(map[string]int, len(item.Bonuses))
		for path, amount := range item.Bonuses {
			comp.Bonuses[path] = amount
		}
	}
	return comp.Clone(), nil
}
