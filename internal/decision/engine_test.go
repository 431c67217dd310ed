package decision

import (
	"testing"

	"github.com/enterprise/fraud-pipeline/internal/models"
)

func testPolicy() *Policy {
	return DefaultPolicy(0.90, 0.70, []string{"mobile"})
}

func TestBaselineActionAllow(t *testing.T) {
	action := baselineAction(0.50, testPolicy(), nil)
	if action != models.ActionAllow {
		t.Errorf("baselineAction = %v, want allow", action)
	}
}

func TestBaselineActionHoldOnThreshold(t *testing.T) {
	action := baselineAction(0.75, testPolicy(), []string{"untrusted_channel"})
	if action != models.ActionHold {
		t.Errorf("baselineAction = %v, want hold", action)
	}
}

func TestBaselineActionHoldOnVelocityHigh(t *testing.T) {
	action := baselineAction(0.50, testPolicy(), []string{"velocity_high"})
	if action != models.ActionHold {
		t.Errorf("baselineAction = %v, want hold (velocity_high)", action)
	}
}

func TestBaselineActionBlockOnThreshold(t *testing.T) {
	action := baselineAction(0.95, testPolicy(), nil)
	if action != models.ActionBlock {
		t.Errorf("baselineAction = %v, want block", action)
	}
}

func TestBaselineActionBlockOnIPProxyMatch(t *testing.T) {
	action := baselineAction(0.85, testPolicy(), []string{"ip_proxy_match"})
	if action != models.ActionBlock {
		t.Errorf("baselineAction = %v, want block (ip_proxy_match)", action)
	}
}

func TestNewCaseIDFormat(t *testing.T) {
	id := newCaseID()
	if len(id) != len("CASE-") + 8 {
		t.Fatalf("case id %q has unexpected length", id)
	}
	if id[:5] != "CASE-" {
		t.Errorf("case id %q missing CASE- prefix", id)
	}
	for _, c := range id[5:] {
		isHex := (c >= '0' && c <= '9') || (c >= 'A' && c <= 'F')
		if !isHex {
			t.Errorf("case id %q contains non-uppercase-hex char %q", id, c)
		}
	}
}

func TestNewCaseIDUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := newCaseID()
		if seen[id] {
			t.Fatalf("duplicate case id %q generated", id)
		}
		seen[id] = true
	}
}
