package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/enterprise/fraud-pipeline/internal/models"
)

// DecisionTapHandler builds an eventlog.Handler that writes a decision
// evidence bundle for every message on alerts.decisions.v1, so the
// decision stage never calls the Auditor directly (spec.md §9's
// cyclic-reference note: every stage reaches the auditor via the event
// log).
func DecisionTapHandler(a *Auditor) func(ctx context.Context, key, value []byte) error {
	return func(ctx context.Context, key, value []byte) error {
		var decision models.DecisionOutput
		if err := json.Unmarshal(value, &decision); err != nil {
			return fmt.Errorf("audit: unmarshal decision: %w", err)
		}

		payload := map[string]interface{}{
			"event_id":         decision.EventID,
			"entity_id":        decision.EntityID,
			"risk":             decision.Risk,
			"action":           decision.Action,
			"policy_version":   decision.PolicyVersion,
			"reasons":          decision.Reasons,
			"case_id":          decision.CaseID,
			"watchlist_hits":   decision.WatchlistHits,
			"velocity_anomaly": decision.VelocityAnomaly,
			"graph_anomaly":    decision.GraphAnomaly,
			"decided_at":       decision.DecidedAt,
		}

		_, err := a.Record(ctx, RecordParams{
			EventID:      decision.EventID,
			EventType:    "decision",
			EntityID:     decision.EntityID,
			Action:       string(decision.Action),
			EvidenceType: models.EvidenceDecision,
			Payload:      payload,
		})
		if err != nil {
			log.Error().Err(err).Str("event_id", decision.EventID).Msg("audit: failed to record decision evidence")
			return err
		}
		return nil
	}
}

// IngestTapHandler builds an eventlog.Handler that writes an audit_event
// evidence bundle for every raw event on events.txns.v1/events.claims.v1,
// preserving the original input even before a decision exists for it.
func IngestTapHandler(a *Auditor, eventType string) func(ctx context.Context, key, value []byte) error {
	return func(ctx context.Context, key, value []byte) error {
		var ev models.Event
		if err := json.Unmarshal(value, &ev); err != nil {
			return fmt.Errorf("audit: unmarshal event: %w", err)
		}

		var payload map[string]interface{}
		if err := json.Unmarshal(value, &payload); err != nil {
			return fmt.Errorf("audit: unmarshal event payload: %w", err)
		}

		_, err := a.Record(ctx, RecordParams{
			EventID:      ev.EventID,
			EventType:    eventType,
			EntityID:     ev.EntityID,
			Action:       "ingested",
			EvidenceType: models.EvidenceAuditEvent,
			Payload:      payload,
		})
		if err != nil {
			log.Error().Err(err).Str("event_id", ev.EventID).Msg("audit: failed to record ingest evidence")
			return err
		}
		return nil
	}
}
