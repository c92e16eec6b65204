// Package access resolves which unlock domains and content subtrees are
// currently available for an entity.
//
// This is the single source of truth for "what content is currently
// selectable". Every surface that lists or accepts candidates filters through
// these functions; no caller maintains a parallel notion of unlocked domains.
// Domain membership is never persisted on the entity: it is recomputed from
// the current component set on every call, which removes the class of stale
// unlock-flag bugs where a removed prerequisite leaves a cached domain behind.
package access

import (
	"sort"
	"strings"

	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/catalog"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/entity"
)

// SlotContext describes the selection slot a candidate list is for. The tier
// may widen or narrow the returned subtree set but never introduces
// nondeterminism.
type SlotContext struct {
	// Tier scopes subtrees to a slot tier (e.g. "heroic", "class").
	// Empty means no tier narrowing.
	Tier string
}

// ResolveAllowedDomains returns the sorted set of unlock domains granted by
// the current component set.
//
// Deterministic: identical component sets always return identical domain
// sets. Override and freebuild modes bypass gating elsewhere but do not
// change what this function reports.
func ResolveAllowedDomains(components []entity.Component) []string {
	seen := map[string]struct{}{}
	for _, comp := range components {
		for _, domain := range comp.GrantsDomains {
			domain = strings.TrimSpace(domain)
			if domain == "" {
				continue
			}
			seen[domain] = struct{}{}
		}
	}
	domains := make([]string, 0, len(seen))
	for domain := range seen {
		domains = append(domains, domain)
	}
	sort.Strings(domains)
	return domains
}

// DomainUnlocked reports whether the component set grants the named domain.
func DomainUnlocked(components []entity.Component, domain string) bool {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return true
	}
	for _, comp := range components {
		for _, granted := range comp.GrantsDomains {
			if strings.TrimSpace(granted) == domain {
				return true
			}
		}
	}
	return false
}

// ResolveAllowedSubtrees returns the sorted set of content subtrees currently
// selectable for the slot.
//
// A subtree is allowed when its required domain is unlocked (or it requires
// none) and its tier matches the slot tier (or either side declares no tier).
func ResolveAllowedSubtrees(components []entity.Component, cat *catalog.Catalog, slot SlotContext) []string {
	if cat == nil {
		return nil
	}
	tier := strings.TrimSpace(slot.Tier)
	var allowed []string
	for _, tree := range cat.Trees() {
		if tree.RequiredDomain != "" && !DomainUnlocked(components, tree.RequiredDomain) {
			continue
		}
		if tier != "" && tree.Tier != "" && tree.Tier != tier {
			continue
		}
		allowed = append(allowed, tree.ID)
	}
	sort.Strings(allowed)
	return allowed
}
