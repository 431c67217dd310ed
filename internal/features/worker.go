package features

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/enterprise/fraud-pipeline/internal/eventlog"
	"github.com/enterprise/fraud-pipeline/internal/models"
)

const TopicFeaturesOnline = "features.online.v1"

// Worker consumes raw events off the ingest topics and publishes derived
// feature vectors to the online feature topic, one message in, one message
// out (spec.md §4.2/§5).
type Worker struct {
	engine   *Engine
	producer *eventlog.Producer
}

// NewWorker builds a Worker over the given Engine and producer.
func NewWorker(engine *Engine, producer *eventlog.Producer) *Worker {
	return &Worker{engine: engine, producer: producer}
}

// HandleMessage implements eventlog.Handler.
func (w *Worker) HandleMessage(ctx context.Context, key, value []byte) error {
	var ev models.Event
	if err := json.Unmarshal(value, &ev); err != nil {
		return fmt.Errorf("features: unmarshal event: %w", err)
	}

	fv := w.engine.Compute(ctx, &ev)

	if _, _, err := w.producer.Publish(TopicFeaturesOnline, fv.EntityID, fv); err != nil {
		return fmt.Errorf("features: publish feature vector: %w", err)
	}

	log.Debug().
		Str("event_id", fv.EventID).
		Str("entity_id", fv.EntityID).
		Bool("cache_hit", fv.Compute.CacheHit).
		Float64("compute_ms", fv.Compute.ComputeTimeMS).
		Msg("features: computed feature vector")

	return nil
}

// ComputeSync derives the feature vector for ev without publishing,
// supporting the synchronous POST /process test path (spec.md §6).
func (w *Worker) ComputeSync(ctx context.Context, ev *models.Event) *models.FeatureVector {
	return w.engine.Compute(ctx, ev)
}
