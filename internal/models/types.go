// Package models defines the data types shared across every stage of the
// decisioning pipeline: the event the pipeline ingests, the feature vector
// derived from it, the scores and decision produced for it, and the
// evidence/audit records that make the whole path replayable.
package models

import "time"

// EventType distinguishes the two event variants the pipeline accepts.
type EventType string

const (
	EventTypeTransaction EventType = "transaction"
	EventTypeClaim       EventType = "claim"
)

// Channel is the origination channel of a transaction event.
type Channel string

const (
	ChannelWeb    Channel = "web"
	ChannelMobile Channel = "mobile"
	ChannelATM    Channel = "atm"
	ChannelPOS    Channel = "pos"
	ChannelPhone  Channel = "phone"
	ChannelAPI    Channel = "api"
)

// ClaimType is the kind of insurance claim an event represents.
type ClaimType string

const (
	ClaimTypeAuto    ClaimType = "auto"
	ClaimTypeHome    ClaimType = "home"
	ClaimTypeHealth  ClaimType = "health"
	ClaimTypeLife    ClaimType = "life"
	ClaimTypeTravel  ClaimType = "travel"
	ClaimTypeOther   ClaimType = "other"
)

// Event is the tagged-union wire shape for both events.txns.v1 and
// events.claims.v1. Per spec.md §9's redesign guidance, Transaction and
// Claim fields are separated rather than folded into one loose map; Metadata
// is the one free-form blob the core never interprets.
type Event struct {
	EventID       string            `json:"event_id"`
	EntityID      string            `json:"entity_id"`
	Timestamp     time.Time         `json:"timestamp"`
	Type          EventType         `json:"event_type"`
	Amount        float64           `json:"amount,omitempty"`
	Currency      string            `json:"currency,omitempty"`
	Channel       Channel           `json:"channel,omitempty"`
	ClaimType     ClaimType         `json:"claim_type,omitempty"`
	MerchantID    string            `json:"merchant_id,omitempty"`
	MerchantCat   string            `json:"merchant_category,omitempty"`
	IPAddress     string            `json:"ip_address,omitempty"`
	DeviceFP      string            `json:"device_fingerprint,omitempty"`
	SessionID     string            `json:"session_id,omitempty"`
	UserAgent     string            `json:"user_agent,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	ReceivedAt    time.Time         `json:"received_at"`
}

// Geolocation is an optional resolved location for a feature vector.
type Geolocation struct {
	Country string  `json:"country,omitempty"`
	Region  string  `json:"region,omitempty"`
	City    string  `json:"city,omitempty"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// ComputeMetadata records how a feature vector was produced, so a degraded
// computation is distinguishable from a fully-fresh one.
type ComputeMetadata struct {
	ComputeTimeMS        float64 `json:"compute_time_ms"`
	CacheHit             bool    `json:"cache_hit"`
	DataFreshnessMinutes float64 `json:"data_freshness_minutes"`
}

// FeatureVector is the per-event enrichment the feature engine publishes to
// features.online.v1.
type FeatureVector struct {
	EventID            string           `json:"event_id"`
	EntityID           string           `json:"entity_id"`
	ComputedAt         time.Time        `json:"computed_at"`
	Amount             float64          `json:"amount"`
	Currency           string           `json:"currency"`
	Channel            Channel          `json:"channel"`
	Velocity1h         int64            `json:"velocity_1h"`
	Velocity24h        int64            `json:"velocity_24h"`
	Velocity7d         int64            `json:"velocity_7d"`
	IPAddress          string           `json:"ip_address,omitempty"`
	IPRiskScore        float64          `json:"ip_risk_score"`
	MerchantRiskScore  float64          `json:"merchant_risk_score"`
	Geo                *Geolocation     `json:"geo,omitempty"`
	GeoDistanceKM      float64          `json:"geo_distance_km"`
	AccountAgeDays     float64          `json:"account_age_days"`
	DeviceFingerprint  string           `json:"device_fingerprint,omitempty"`
	SessionID          string           `json:"session_id,omitempty"`
	UserAgentHash      string           `json:"user_agent_hash,omitempty"`
	SchemaVersion      string           `json:"schema_version"`
	Compute            ComputeMetadata  `json:"compute"`
}

// LatLon is a bare coordinate pair, used for the usual-location baseline.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ModelScores holds every sub-score plus the ensemble and calibrated
// outputs, all bounded to [0,1].
type ModelScores struct {
	XGB        float64 `json:"xgb"`
	NN         float64 `json:"nn"`
	Rules      float64 `json:"rules"`
	Ensemble   float64 `json:"ensemble"`
	Calibrated float64 `json:"calibrated"`
}

// FeatureImportance is one entry of a score explanation.
type FeatureImportance struct {
	FeatureName string  `json:"feature_name"`
	Importance  float64 `json:"importance"`
}

// ScoreOutput is what the ensemble scorer publishes to alerts.scores.v1.
// It carries the feature vector it was computed from inline so the
// Decision Engine never needs its own copy of feature state (spec.md §9's
// note on avoiding stage-to-stage dependency cycles: every downstream
// stage gets what it needs off the event log, not by calling back
// upstream).
type ScoreOutput struct {
	EventID           string              `json:"event_id"`
	EntityID          string              `json:"entity_id"`
	Scores            ModelScores         `json:"scores"`
	Explain           []FeatureImportance `json:"explain"`
	ModelVersion      string              `json:"model_version"`
	ComputationTimeMS float64             `json:"computation_time_ms"`
	FeatureVector     *FeatureVector      `json:"feature_vector,omitempty"`
}

// Action is the decision verdict. The set is fixed to these four values
// everywhere in the pipeline (spec.md §9 open question on case-id coupling).
type Action string

const (
	ActionAllow    Action = "allow"
	ActionHold     Action = "hold"
	ActionBlock    Action = "block"
	ActionEscalate Action = "escalate"
)

// ValidAction reports whether a is one of the four allowed actions.
func ValidAction(a Action) bool {
	switch a {
	case ActionAllow, ActionHold, ActionBlock, ActionEscalate:
		return true
	}
	return false
}

// DecisionOutput is what the decision engine publishes to
// alerts.decisions.v1 and hands to the auditor.
type DecisionOutput struct {
	EventID         string        `json:"event_id"`
	EntityID        string        `json:"entity_id"`
	Risk            float64       `json:"risk"`
	Action          Action        `json:"action"`
	PolicyVersion   string        `json:"policy_version"`
	Reasons         []string      `json:"reasons"`
	CaseID          *string       `json:"case_id"`
	WatchlistHits   []string      `json:"watchlist_hits,omitempty"`
	VelocityAnomaly bool          `json:"velocity_anomaly"`
	GraphAnomaly    bool          `json:"graph_anomaly"`
	DecisionLatency time.Duration `json:"decision_latency_ns"`
	DecidedAt       time.Time     `json:"decided_at"`
}

// EvidenceType distinguishes what an evidence bundle preserves.
type EvidenceType string

const (
	EvidenceAuditEvent EvidenceType = "audit_event"
	EvidenceDecision   EvidenceType = "decision"
	EvidenceCaseEvent  EvidenceType = "case_event"
)

// EvidenceBundle is the immutable, content-addressed object the auditor
// writes for ingested events, decisions and records posted to its HTTP
// endpoints.
type EvidenceBundle struct {
	BundleID     string                 `json:"bundle_id"`
	EventID      string                 `json:"event_id"`
	EvidenceType EvidenceType           `json:"evidence_type"`
	Payload      map[string]interface{} `json:"payload"`
	CreatedAt    time.Time              `json:"created_at"`
	Hash         string                 `json:"hash"`
	SizeBytes    int                    `json:"size_bytes"`
}

// AuditIndexRow is one append-only row of the audit_events index table.
type AuditIndexRow struct {
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	EntityID      string    `json:"entity_id"`
	UserID        string    `json:"user_id,omitempty"`
	Action        string    `json:"action"`
	Details       string    `json:"details,omitempty"`
	EvidenceHash  string    `json:"evidence_hash"`
	EvidencePath  string    `json:"evidence_path"`
	CreatedAt     time.Time `json:"created_at"`
}

// IntegrityStatus is the outcome of an audit verification.
type IntegrityStatus string

const (
	IntegrityVerified    IntegrityStatus = "verified"
	IntegrityCompromised IntegrityStatus = "compromised"
	IntegrityNoEvidence  IntegrityStatus = "no_evidence"
)
