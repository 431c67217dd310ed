package decision

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/enterprise/fraud-pipeline/internal/eventlog"
	"github.com/enterprise/fraud-pipeline/internal/models"
)

const TopicAlertsDecisions = "alerts.decisions.v1"

// Worker consumes alerts.scores.v1 and publishes the resulting decision to
// alerts.decisions.v1, plus a sidecar evidence write via the event log (the
// auditor consumes its own topic taps rather than being called directly,
// per spec.md §9's cyclic-reference note).
type Worker struct {
	engine   *Engine
	producer *eventlog.Producer
}

// NewWorker builds a Worker over the given decision Engine and producer.
func NewWorker(engine *Engine, producer *eventlog.Producer) *Worker {
	return &Worker{engine: engine, producer: producer}
}

// HandleMessage implements eventlog.Handler.
func (w *Worker) HandleMessage(ctx context.Context, key, value []byte) error {
	var msg models.ScoreOutput
	if err := json.Unmarshal(value, &msg); err != nil {
		return fmt.Errorf("decision: unmarshal score output: %w", err)
	}
	if msg.FeatureVector == nil {
		return fmt.Errorf("decision: score output for event %s missing feature_vector", msg.EventID)
	}

	out, err := w.engine.Decide(ctx, Input{FeatureVector: msg.FeatureVector, Scores: msg.Scores})
	if err != nil {
		return fmt.Errorf("decision: decide: %w", err)
	}

	if _, _, err := w.producer.Publish(TopicAlertsDecisions, out.EntityID, out); err != nil {
		return fmt.Errorf("decision: publish decision: %w", err)
	}

	log.Info().
		Str("event_id", out.EventID).
		Str("entity_id", out.EntityID).
		Str("action", string(out.Action)).
		Strs("reasons", out.Reasons).
		Msg("decision: decided")

	return nil
}

// DecideSync evaluates in synchronously, supporting the POST /decide test
// path (spec.md §6).
func (w *Worker) DecideSync(ctx context.Context, in Input) (models.DecisionOutput, error) {
	return w.engine.Decide(ctx, in)
}
