// Package cascade determines the follow-on removals when a component removal
// relocks an unlock domain.
//
// Resolution is pure over component sets. The follow-on removals themselves
// are re-applied through the mutation authority, never through a parallel
// write path, so audit and recompute guarantees hold for every cascaded step.
package cascade

import (
	"sort"

	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/access"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/entity"
)

// Result describes one cascade resolution step.
type Result struct {
	// DomainsRelocked lists domains that lost their last source, sorted.
	DomainsRelocked []string
	// ComponentsToRemove lists instance ids of surviving components whose
	// source domain was relocked, sorted.
	ComponentsToRemove []string
}

// Empty reports whether the step requires no further removals.
func (r Result) Empty() bool {
	return len(r.DomainsRelocked) == 0 && len(r.ComponentsToRemove) == 0
}

// Resolve computes the domains relocked and the dependents to remove when
// the given component instances are removed from the set.
//
// components is the set before removal. Resolve is idempotent: running it
// again over the post-cascade set with no new removals yields an empty
// result, because every relocked domain's dependents were already collected.
func Resolve(components []entity.Component, removedIDs []string) Result {
	if len(removedIDs) == 0 {
		return Result{}
	}
	removed := make(map[string]struct{}, len(removedIDs))
	for _, id := range removedIDs {
		removed[id] = struct{}{}
	}

	var survivors []entity.Component
	anyRemoved := false
	for _, comp := range components {
		if _, gone := removed[comp.ID]; gone {
			anyRemoved = true
			continue
		}
		survivors = append(survivors, comp)
	}
	if !anyRemoved {
		return Result{}
	}

	before := access.ResolveAllowedDomains(components)
	after := access.ResolveAllowedDomains(survivors)
	relocked := difference(before, after)
	if len(relocked) == 0 {
		return Result{}
	}

	lockedSet := make(map[string]struct{}, len(relocked))
	for _, domain := range relocked {
		lockedSet[domain] = struct{}{}
	}
	var toRemove []string
	for _, comp := range survivors {
		if comp.SourceDomain == "" {
			continue
		}
		if _, locked := lockedSet[comp.SourceDomain]; locked {
			toRemove = append(toRemove, comp.ID)
		}
	}
	sort.Strings(toRemove)

	return Result{DomainsRelocked: relocked, ComponentsToRemove: toRemove}
}

// difference returns the sorted elements of a not present in b. Both inputs
// are already sorted by the access resolver.
func difference(a, b []string) []string {
	present := make(map[string]struct{}, len(b))
	for _, value := range b {
		present[value] = struct{}{}
	}
	var missing []string
	for _, value := range a {
		if _, ok := present[value]; !ok {
			missing = append(missing, value)
		}
	}
	return missing
}
