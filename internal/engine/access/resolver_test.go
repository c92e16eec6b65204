package access

import (
	"reflect"
	"testing"

	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/catalog"
	"github.com/docflowGM/foundryvtt-swse-sub001/internal/engine/entity"
)

func grantingComponents() []entity.Component {
	return []entity.Component{
		{ID: "c1", ContentID: "feat.force_sensitivity", GrantsDomains: []string{"force"}},
		{ID: "c2", ContentID: "class.jedi", GrantsDomains: []string{"force", "lightsaber"}},
		{ID: "c3", ContentID: "feat.point_blank_shot"},
	}
}

func TestResolveAllowedDomainsSortedAndDeduped(t *testing.T) {
	domains := ResolveAllowedDomains(grantingComponents())
	want := []string{"force", "lightsaber"}
	if !reflect.DeepEqual(domains, want) {
		t.Fatalf("expected %v, got %v", want, domains)
	}
}

func TestResolveAllowedDomainsDeterministic(t *testing.T) {
	components := grantingComponents()
	first := ResolveAllowedDomains(components)
	for i := 0; i < 10; i++ {
		if got := ResolveAllowedDomains(components); !reflect.DeepEqual(first, got) {
			t.Fatalf("expected stable result, got %v then %v", first, got)
		}
	}
}

func TestResolveAllowedDomainsRoundTrip(t *testing.T) {
	components := grantingComponents()
	before := ResolveAllowedDomains(components)

	// Add then remove a component; the set must return to the original.
	extended := append(append([]entity.Component(nil), components...),
		entity.Component{ID: "c4", ContentID: "feat.dark_side_adept", GrantsDomains: []string{"dark_side"}})
	if got := ResolveAllowedDomains(extended); reflect.DeepEqual(before, got) {
		t.Fatal("expected extended set to differ")
	}
	if got := ResolveAllowedDomains(components); !reflect.DeepEqual(before, got) {
		t.Fatalf("expected round-trip to restore %v, got %v", before, got)
	}
}

func TestDomainUnlocked(t *testing.T) {
	components := grantingComponents()
	if !DomainUnlocked(components, "force") {
		t.Fatal("expected force to be unlocked")
	}
	if DomainUnlocked(components, "dark_side") {
		t.Fatal("expected dark_side to be locked")
	}
	if !DomainUnlocked(components, "") {
		t.Fatal("expected empty domain to always be unlocked")
	}
	if !DomainUnlocked(nil, "") {
		t.Fatal("expected empty domain to be unlocked with no components")
	}
}

func TestResolveAllowedSubtrees(t *testing.T) {
	cat, err := catalog.New(nil, []catalog.Tree{
		{ID: "tree.force_powers", RequiredDomain: "force"},
		{ID: "tree.force_secrets", RequiredDomain: "dark_side"},
		{ID: "tree.soldier_talents", Tier: "class"},
		{ID: "tree.general_feats"},
	})
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}
	components := grantingComponents()

	got := ResolveAllowedSubtrees(components, cat, SlotContext{})
	want := []string{"tree.force_powers", "tree.general_feats", "tree.soldier_talents"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	got = ResolveAllowedSubtrees(components, cat, SlotContext{Tier: "heroic"})
	want = []string{"tree.force_powers", "tree.general_feats"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected tier filter to drop class trees, got %v", got)
	}

	if got := ResolveAllowedSubtrees(components, nil, SlotContext{}); got != nil {
		t.Fatalf("expected nil catalog to yield nil, got %v", got)
	}
}
