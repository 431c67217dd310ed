package decision

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/enterprise/fraud-pipeline/internal/models"
	"github.com/enterprise/fraud-pipeline/internal/store"
)

// Input bundles the per-event data the Decision Engine evaluates: the
// feature vector and the ensemble scorer's output.
type Input struct {
	FeatureVector *models.FeatureVector
	Scores        models.ModelScores
}

// Engine evaluates a Policy plus side-signal detectors against an Input
// and emits a DecisionOutput (spec.md §4.4).
type Engine struct {
	policies *PolicyStore
	entity   *store.EntityStore
}

// NewEngine builds an Engine over the given policy store and entity store.
func NewEngine(policies *PolicyStore, entity *store.EntityStore) *Engine {
	return &Engine{policies: policies, entity: entity}
}

// Decide runs the full reason-derivation, side-signal, override and
// baseline rule pipeline for in, against the currently-active policy.
func (e *Engine) Decide(ctx context.Context, in Input) (models.DecisionOutput, error) {
	start := time.Now()
	policy := e.policies.Current()
	fv := in.FeatureVector

	var reasons []string

	// Pre-rule reason derivation (spec.md §4.4).
	if fv.Velocity1h >= 8 {
		reasons = append(reasons, "velocity_high")
	}
	if fv.IPRiskScore >= 0.8 {
		reasons = append(reasons, "ip_proxy_match")
	}
	if !policy.IsTrusted(string(fv.Channel)) {
		reasons = append(reasons, "untrusted_channel")
	}

	watchlistHits, err := WatchlistHits(ctx, e.entity, fv.EntityID, fv.IPAddress, fv.DeviceFingerprint)
	if err != nil {
		return models.DecisionOutput{}, fmt.Errorf("decision: watchlist check: %w", err)
	}

	velocityAnomaly, err := VelocityAnomaly(ctx, e.entity, fv.EntityID, fv.Velocity1h, fv.Velocity24h)
	if err != nil {
		return models.DecisionOutput{}, fmt.Errorf("decision: velocity anomaly check: %w", err)
	}

	graphAnomaly, err := GraphAnomaly(ctx, e.entity, fv.DeviceFingerprint, fv.EntityID)
	if err != nil {
		return models.DecisionOutput{}, fmt.Errorf("decision: graph anomaly check: %w", err)
	}

	calibrated := in.Scores.Calibrated
	action := baselineAction(calibrated, policy, reasons)

	// Override rule 1: watchlist.
	if len(watchlistHits) > 0 {
		if calibrated >= 0.8 {
			action = models.ActionBlock
		} else {
			action = models.ActionHold
		}
		reasons = append(reasons, watchlistHits...)
	}

	// Override rule 2: velocity anomaly upgrades allow to hold.
	if velocityAnomaly && action == models.ActionAllow {
		action = models.ActionHold
		reasons = append(reasons, "velocity_anomaly")
	}

	// Override rule 3: graph anomaly upgrades allow to hold.
	if graphAnomaly && action == models.ActionAllow {
		action = models.ActionHold
		reasons = append(reasons, "graph_anomaly")
	}

	out := models.DecisionOutput{
		EventID:         fv.EventID,
		EntityID:        fv.EntityID,
		Risk:            calibrated,
		Action:          action,
		PolicyVersion:   policy.Version,
		Reasons:         reasons,
		WatchlistHits:   watchlistHits,
		VelocityAnomaly: velocityAnomaly,
		GraphAnomaly:    graphAnomaly,
		DecisionLatency: time.Since(start),
		DecidedAt:       time.Now().UTC(),
	}

	if action != models.ActionAllow {
		caseID := newCaseID()
		out.CaseID = &caseID
	}

	return out, nil
}

// DecideShadow evaluates in against the shadow policy instead of the
// active one, for entities ShadowRoute assigns to the shadow group at
// trafficFraction. It never produces the event's real decision or case id;
// callers log it for comparison against the active-policy decision
// (spec.md §9 supplemented feature).
func (e *Engine) DecideShadow(ctx context.Context, in Input, trafficFraction float64) (models.DecisionOutput, bool, error) {
	shadow := e.policies.Shadow()
	if shadow == nil {
		return models.DecisionOutput{}, false, nil
	}
	fv := in.FeatureVector
	if !ShadowRoute(shadow.Version, fv.EntityID, trafficFraction) {
		return models.DecisionOutput{}, false, nil
	}

	var reasons []string
	if fv.Velocity1h >= 8 {
		reasons = append(reasons, "velocity_high")
	}
	if fv.IPRiskScore >= 0.8 {
		reasons = append(reasons, "ip_proxy_match")
	}
	if !shadow.IsTrusted(string(fv.Channel)) {
		reasons = append(reasons, "untrusted_channel")
	}

	action := baselineAction(in.Scores.Calibrated, shadow, reasons)

	return models.DecisionOutput{
		EventID:       fv.EventID,
		EntityID:      fv.EntityID,
		Risk:          in.Scores.Calibrated,
		Action:        action,
		PolicyVersion: shadow.Version,
		Reasons:       reasons,
		DecidedAt:     time.Now().UTC(),
	}, true, nil
}

// baselineAction applies the baseline rules (spec.md §4.4) before any
// override fires.
func baselineAction(calibrated float64, policy *Policy, reasons []string) models.Action {
	hasReason := func(code string) bool {
		for _, r := range reasons {
			if r == code {
				return true
			}
		}
		return false
	}

	if calibrated >= policy.BlockThreshold || (hasReason("ip_proxy_match") && calibrated >= 0.80) {
		return models.ActionBlock
	}
	if calibrated >= policy.HoldThreshold || hasReason("velocity_high") {
		return models.ActionHold
	}
	return models.ActionAllow
}

// newCaseID generates a CASE-<8 hex uppercase> identifier (spec.md §4.4).
func newCaseID() string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return "CASE-" + strings.ToUpper(hex.EncodeToString(b[:]))
}
