package decision

import "testing"

func TestShadowRouteDeterministic(t *testing.T) {
	a := ShadowRoute("v2-candidate", "entity-42", 0.5)
	b := ShadowRoute("v2-candidate", "entity-42", 0.5)
	if a != b {
		t.Error("ShadowRoute not deterministic for the same (version, entity)")
	}
}

func TestShadowRouteZeroFraction(t *testing.T) {
	if ShadowRoute("v2-candidate", "entity-1", 0) {
		t.Error("ShadowRoute with fraction 0 must never route")
	}
}

func TestShadowRouteFullFraction(t *testing.T) {
	if !ShadowRoute("v2-candidate", "entity-1", 1) {
		t.Error("ShadowRoute with fraction 1 must always route")
	}
}

func TestShadowRouteApproximatelyProportional(t *testing.T) {
	routed := 0
	const n = 2000
	for i := 0; i < n; i++ {
		entity := "entity-" + string(rune('A'+i%26)) + string(rune(i))
		if ShadowRoute("v2-candidate", entity, 0.3) {
			routed++
		}
	}
	frac := float64(routed) / float64(n)
	if frac < 0.2 || frac > 0.4 {
		t.Errorf("routed fraction = %v, want roughly 0.3", frac)
	}
}
