package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/enterprise/fraud-pipeline/internal/eventlog"
	"github.com/enterprise/fraud-pipeline/internal/models"
)

const (
	TopicFeaturesOnline = "features.online.v1"
	TopicAlertsScores   = "alerts.scores.v1"
)

// Worker consumes feature vectors, scores them through the Ensemble, and
// publishes the result. Modeled on the teacher's internal/scoring/worker.go
// processLoop/processBatch shape, generalized from a Redis Streams poll
// loop to a Kafka consumer-group claim handler.
type Worker struct {
	ensemble *Ensemble
	producer *eventlog.Producer
}

// NewWorker builds a scoring Worker.
func NewWorker(ensemble *Ensemble, producer *eventlog.Producer) *Worker {
	return &Worker{ensemble: ensemble, producer: producer}
}

// HandleMessage implements eventlog.Handler: unmarshal the feature vector,
// score it, and publish a ScoreOutput.
func (w *Worker) HandleMessage(ctx context.Context, key, value []byte) error {
	start := time.Now()

	var fv models.FeatureVector
	if err := json.Unmarshal(value, &fv); err != nil {
		return fmt.Errorf("scoring: unmarshal feature vector: %w", err)
	}

	result := w.ensemble.Score(&fv)

	out := models.ScoreOutput{
		EventID:           fv.EventID,
		EntityID:          fv.EntityID,
		Scores:            result.Scores,
		Explain:           result.Explain,
		ModelVersion:      result.ModelVersion,
		ComputationTimeMS: float64(time.Since(start).Microseconds()) / 1000.0,
		FeatureVector:     &fv,
	}

	if _, _, err := w.producer.Publish(TopicAlertsScores, fv.EntityID, out); err != nil {
		log.Error().Err(err).Str("event_id", fv.EventID).Msg("scoring: failed to publish score output")
		return fmt.Errorf("scoring: publish score output: %w", err)
	}

	log.Info().
		Str("event_id", fv.EventID).
		Float64("calibrated", out.Scores.Calibrated).
		Float64("computation_time_ms", out.ComputationTimeMS).
		Msg("scored feature vector")

	return nil
}

// ScoreSync scores one feature vector synchronously, for the `POST /score`
// HTTP test path spec.md §6 names.
func (w *Worker) ScoreSync(fv *models.FeatureVector) models.ScoreOutput {
	start := time.Now()
	result := w.ensemble.Score(fv)
	return models.ScoreOutput{
		EventID:           fv.EventID,
		EntityID:          fv.EntityID,
		Scores:            result.Scores,
		Explain:           result.Explain,
		ModelVersion:      result.ModelVersion,
		ComputationTimeMS: float64(time.Since(start).Microseconds()) / 1000.0,
		FeatureVector:     fv,
	}
}
