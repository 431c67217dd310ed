package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/enterprise/fraud-pipeline/internal/models"
)

// Topics the Monitor taps. It never writes to these topics, only consumes
// (spec.md §4.6: "Monitor taps three intermediate topics and does not sit
// on the hot path").
const (
	TopicFeaturesOnline = "features.online.v1"
	TopicAlertsScores   = "alerts.scores.v1"
	TopicAlertsDecisions = "alerts.decisions.v1"
)

// FeatureTapHandler builds an eventlog.Handler that feeds every numeric
// FeatureVector field into its PSI drift buffer.
func FeatureTapHandler(t *Tracker) func(ctx context.Context, key, value []byte) error {
	return func(ctx context.Context, key, value []byte) error {
		var fv models.FeatureVector
		if err := json.Unmarshal(value, &fv); err != nil {
			return fmt.Errorf("monitor: unmarshal feature vector: %w", err)
		}

		t.ObserveFeature("amount", fv.Amount)
		t.ObserveFeature("velocity_1h", float64(fv.Velocity1h))
		t.ObserveFeature("velocity_24h", float64(fv.Velocity24h))
		t.ObserveFeature("velocity_7d", float64(fv.Velocity7d))
		t.ObserveFeature("ip_risk_score", fv.IPRiskScore)
		t.ObserveFeature("merchant_risk_score", fv.MerchantRiskScore)
		t.ObserveFeature("geo_distance_km", fv.GeoDistanceKM)
		t.ObserveFeature("account_age_days", fv.AccountAgeDays)
		return nil
	}
}

// ScoreTapHandler builds an eventlog.Handler that records the scorer's
// computation latency and remembers its sub-scores, keyed by event_id,
// until the matching decision supplies a ground-truth proxy label.
func ScoreTapHandler(t *Tracker) func(ctx context.Context, key, value []byte) error {
	return func(ctx context.Context, key, value []byte) error {
		var so models.ScoreOutput
		if err := json.Unmarshal(value, &so); err != nil {
			return fmt.Errorf("monitor: unmarshal score output: %w", err)
		}
		t.ObserveScoreLatency(so.ModelVersion, so.ComputationTimeMS)
		t.StorePendingScore(so.EventID, so.Scores)
		log.Debug().Str("event_id", so.EventID).Float64("calibrated", so.Scores.Calibrated).Msg("monitor: tapped score")
		return nil
	}
}

// DecisionTapHandler builds an eventlog.Handler that records decision
// latency and throughput, and (using the decision's action as the Brier
// ground-truth proxy) calibration for every tracked model's sub-score
// recorded by the matching ScoreTapHandler call.
func DecisionTapHandler(t *Tracker) func(ctx context.Context, key, value []byte) error {
	return func(ctx context.Context, key, value []byte) error {
		var do models.DecisionOutput
		if err := json.Unmarshal(value, &do); err != nil {
			return fmt.Errorf("monitor: unmarshal decision output: %w", err)
		}

		t.ObserveDecision(time.Now())
		t.ObserveDecisionLatency(string(do.Action), float64(do.DecisionLatency.Milliseconds()))

		label := DecisionLabel(string(do.Action))
		if scores, ok := t.TakePendingScore(do.EventID); ok {
			t.ObserveCalibration("xgb", scores.XGB, label)
			t.ObserveCalibration("nn", scores.NN, label)
			t.ObserveCalibration("rules", scores.Rules, label)
			t.ObserveCalibration("ensemble", scores.Ensemble, label)
			t.ObserveCalibration("calibrated", scores.Calibrated, label)
		} else {
			t.ObserveCalibration("calibrated", do.Risk, label)
		}

		log.Debug().
			Str("event_id", do.EventID).
			Str("action", string(do.Action)).
			Msg("monitor: tapped decision")
		return nil
	}
}
