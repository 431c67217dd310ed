// Package decision is the Decision Engine: it evaluates a versioned policy
// plus watchlist/velocity/graph side signals against a score record and
// emits a DecisionOutput (spec.md §4.4).
package decision

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/enterprise/fraud-pipeline/internal/postgres"
)

// Policy is one versioned, immutable snapshot of the thresholds and
// channel list the baseline rules evaluate against. It is never mutated in
// place; PolicyStore.Reload swaps in a new *Policy wholesale (spec.md §9's
// redesign note replacing the teacher/original's global mutable policy).
type Policy struct {
	Version         string
	BlockThreshold  float64
	HoldThreshold   float64
	TrustedChannels map[string]bool
}

// policyRow is the JSON shape stored in decision_policy.policy_config.
type policyRow struct {
	BlockThreshold  float64  `json:"block_threshold"`
	HoldThreshold   float64  `json:"hold_threshold"`
	TrustedChannels []string `json:"trusted_channels"`
}

func newPolicy(version string, row policyRow) *Policy {
	trusted := make(map[string]bool, len(row.TrustedChannels))
	for _, c := range row.TrustedChannels {
		trusted[c] = true
	}
	return &Policy{
		Version:         version,
		BlockThreshold:  row.BlockThreshold,
		HoldThreshold:   row.HoldThreshold,
		TrustedChannels: trusted,
	}
}

// IsTrusted reports whether channel is in this policy's trusted set.
func (p *Policy) IsTrusted(channel string) bool {
	return p.TrustedChannels[channel]
}

// PolicyStore holds the currently-active policy behind a pointer that is
// swapped wholesale on Reload, read under a RWMutex so readers never
// observe a partially-updated policy (spec.md §9).
type PolicyStore struct {
	mu      sync.RWMutex
	current *Policy
	shadow  *Policy // candidate version under shadow evaluation, may be nil
	db      *postgres.Database
}

// NewPolicyStore builds a PolicyStore seeded with a hardcoded fallback
// policy (so a service can start before the first DB load) and a handle to
// the index store for (re)loading the active row.
func NewPolicyStore(db *postgres.Database, fallback *Policy) *PolicyStore {
	return &PolicyStore{current: fallback, db: db}
}

// DefaultPolicy mirrors config.PolicyConfig's documented defaults so a
// service can run before any decision_policy row exists.
func DefaultPolicy(blockThreshold, holdThreshold float64, trustedChannels []string) *Policy {
	return newPolicy("v0-default", policyRow{
		BlockThreshold:  blockThreshold,
		HoldThreshold:   holdThreshold,
		TrustedChannels: trustedChannels,
	})
}

// Current returns the active policy snapshot.
func (s *PolicyStore) Current() *Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Shadow returns the candidate policy under shadow evaluation, if any.
func (s *PolicyStore) Shadow() *Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shadow
}

// SetShadow installs a candidate policy version for shadow routing without
// making it the active policy (spec.md §9 supplemented feature).
func (s *PolicyStore) SetShadow(p *Policy) {
	s.mu.Lock()
	s.shadow = p
	s.mu.Unlock()
}

// ReloadByVersion loads a specific version row (active or not) for use as
// a shadow candidate, rather than the single active row Reload targets.
func (s *PolicyStore) ReloadByVersion(ctx context.Context, version string) (*Policy, error) {
	const query = `SELECT policy_config FROM decision_policy WHERE version = $1 LIMIT 1`
	var raw []byte
	err := s.db.Retry(ctx, func(ctx context.Context) error {
		return s.db.Pool.QueryRow(ctx, query, version).Scan(&raw)
	})
	if err != nil {
		return nil, fmt.Errorf("decision: load policy version %s: %w", version, err)
	}
	var row policyRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, fmt.Errorf("decision: unmarshal policy_config: %w", err)
	}
	return newPolicy(version, row), nil
}

// Reload queries decision_policy for the row with is_active = true and the
// most recent effective_date, and swaps it in as the current policy. An
// empty result set leaves the current policy untouched.
func (s *PolicyStore) Reload(ctx context.Context) error {
	const query = `
		SELECT version, policy_config
		FROM decision_policy
		WHERE is_active = true
		ORDER BY effective_date DESC
		LIMIT 1
	`
	var version string
	var raw []byte
	err := s.db.Retry(ctx, func(ctx context.Context) error {
		return s.db.Pool.QueryRow(ctx, query).Scan(&version, &raw)
	})
	if err != nil {
		return fmt.Errorf("decision: load active policy: %w", err)
	}

	var row policyRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return fmt.Errorf("decision: unmarshal policy_config: %w", err)
	}

	next := newPolicy(version, row)

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	return nil
}

// InsertVersion appends a new decision_policy row. Setting isActive also
// requires a caller-side deactivation of the prior row if callers want
// strict single-active-row semantics; the append-only index store performs
// no implicit update (spec.md §5's shared-resource policy).
func InsertVersion(ctx context.Context, db *postgres.Database, version string, p Policy, isActive bool, effectiveDate time.Time) error {
	row := policyRow{
		BlockThreshold:  p.BlockThreshold,
		HoldThreshold:   p.HoldThreshold,
		TrustedChannels: keys(p.TrustedChannels),
	}
	raw, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("decision: marshal policy_config: %w", err)
	}

	const query = `
		INSERT INTO decision_policy (policy_config, version, is_active, effective_date)
		VALUES ($1, $2, $3, $4)
	`
	err = db.Retry(ctx, func(ctx context.Context) error {
		_, err := db.Pool.Exec(ctx, query, raw, version, isActive, effectiveDate)
		return err
	})
	if err != nil {
		return fmt.Errorf("decision: insert policy version: %w", err)
	}
	return nil
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
