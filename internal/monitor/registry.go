package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/enterprise/fraud-pipeline/internal/audit"
	"github.com/enterprise/fraud-pipeline/internal/config"
	"github.com/enterprise/fraud-pipeline/internal/models"
)

// indexSampleInterval bounds how often a PSI/Brier observation is persisted
// to the append-only index store: every indexSampleInterval-th observation
// per feature/model, so the hot tap doesn't turn into one index-store write
// per streamed event (spec.md §6's model_metrics/feature_drift tables).
const indexSampleInterval = 100

// pendingScoreCapacity bounds how many not-yet-decided ScoreOutput records
// the Monitor holds in memory awaiting the matching DecisionOutput, per
// spec.md §5's bounded-buffer backpressure rule.
const pendingScoreCapacity = 10000

// trackedFeatures names the numeric FeatureVector fields PSI drift is
// computed over (spec.md §4.6: "per tracked feature").
var trackedFeatures = []string{
	"amount",
	"velocity_1h",
	"velocity_24h",
	"velocity_7d",
	"ip_risk_score",
	"merchant_risk_score",
	"geo_distance_km",
	"account_age_days",
}

// trackedModels names the ModelScores fields Brier calibration is tracked
// for, one buffer per model per spec.md §4.6.
var trackedModels = []string{"xgb", "nn", "rules", "ensemble", "calibrated"}

// Tracker owns every rolling buffer and Prometheus collector the Monitor
// exposes. Grounded on the teacher's cmd/kafka-worker/main.go
// RealTimeMetrics: one mutex-guarded struct updated by a stream consumer,
// read by an independent reporting path — here a pull-based /metrics
// endpoint instead of a 30s log line.
type Tracker struct {
	mu sync.RWMutex

	psiThreshold   float64
	brierThreshold float64

	drift       map[string]*FeatureBuffer
	calibration map[string]*CalibrationBuffer
	throughput  *ThroughputCounter

	pendingMu     sync.Mutex
	pendingScores map[string]models.ModelScores
	pendingOrder  []string

	index *audit.IndexRepository

	sampleMu     sync.Mutex
	sampleCounts map[string]int

	psiGauge        *prometheus.GaugeVec
	brierGauge      *prometheus.GaugeVec
	throughputGauge prometheus.Gauge
	scoreLatency    *prometheus.HistogramVec
	decisionLatency *prometheus.HistogramVec
	driftAlerts     *prometheus.CounterVec
	calibAlerts     *prometheus.CounterVec
}

// NewTracker builds a Tracker with one buffer per tracked feature/model and
// registers its collectors against reg. index is optional (nil skips
// index-store persistence entirely, e.g. in tests) and, when set, receives
// a sampled stream of feature_drift/model_metrics rows so the Monitor's
// PSI/Brier computations reach the append-only index store the schema
// promises, not only the in-memory Prometheus gauges.
func NewTracker(reg *prometheus.Registry, policy config.PolicyConfig, index *audit.IndexRepository) *Tracker {
	t := &Tracker{
		psiThreshold:   policy.PSIAlertThresh,
		brierThreshold: policy.BrierAlertThresh,
		drift:          make(map[string]*FeatureBuffer, len(trackedFeatures)),
		calibration:    make(map[string]*CalibrationBuffer, len(trackedModels)),
		throughput:     NewThroughputCounter(),
		pendingScores:  make(map[string]models.ModelScores),
		index:          index,
		sampleCounts:   make(map[string]int),
	}
	for _, f := range trackedFeatures {
		t.drift[f] = NewFeatureBuffer(10000)
	}
	for _, m := range trackedModels {
		t.calibration[m] = NewCalibrationBuffer()
	}

	t.psiGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fraud_pipeline",
		Subsystem: "monitor",
		Name:      "feature_psi",
		Help:      "Population Stability Index of a tracked feature against its reference window.",
	}, []string{"feature"})

	t.brierGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fraud_pipeline",
		Subsystem: "monitor",
		Name:      "model_brier_score",
		Help:      "Brier score of a model's predictions over the last 100 observations.",
	}, []string{"model"})

	t.throughputGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fraud_pipeline",
		Subsystem: "monitor",
		Name:      "decisions_per_second",
		Help:      "Decisions per second over the last 60 observed decisions.",
	})

	t.scoreLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fraud_pipeline",
		Subsystem: "monitor",
		Name:      "scoring_latency_ms",
		Help:      "Ensemble scorer computation time in milliseconds.",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"model_version"})

	t.decisionLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fraud_pipeline",
		Subsystem: "monitor",
		Name:      "decision_latency_ms",
		Help:      "Decision engine evaluation time in milliseconds.",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"action"})

	t.driftAlerts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fraud_pipeline",
		Subsystem: "monitor",
		Name:      "drift_alerts_total",
		Help:      "Count of PSI observations exceeding the drift alert threshold, per feature.",
	}, []string{"feature"})

	t.calibAlerts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fraud_pipeline",
		Subsystem: "monitor",
		Name:      "calibration_alerts_total",
		Help:      "Count of Brier observations exceeding the calibration alert threshold, per model.",
	}, []string{"model"})

	reg.MustRegister(t.psiGauge, t.brierGauge, t.throughputGauge, t.scoreLatency, t.decisionLatency, t.driftAlerts, t.calibAlerts)

	return t
}

// ObserveFeature records one value for a tracked feature and refreshes its
// PSI gauge (and drift-alert counter, if the threshold is crossed).
func (t *Tracker) ObserveFeature(feature string, value float64) {
	t.mu.RLock()
	buf, ok := t.drift[feature]
	t.mu.RUnlock()
	if !ok {
		return
	}
	buf.Observe(value)
	psi, computed := buf.PSI(200)
	if !computed {
		return
	}
	t.psiGauge.WithLabelValues(feature).Set(psi)
	if psi > t.psiThreshold {
		t.driftAlerts.WithLabelValues(feature).Inc()
	}

	if t.index != nil && t.shouldSample("feature:"+feature) {
		refStart, refEnd, curStart, curEnd := buf.Periods()
		err := t.index.InsertFeatureDrift(context.Background(), feature, psi, refStart, refEnd, curStart, curEnd, time.Now())
		if err != nil {
			log.Error().Err(err).Str("feature", feature).Msg("monitor: failed to persist feature_drift row")
		}
	}
}

// shouldSample reports whether the indexSampleInterval-th observation for
// key has just occurred, to bound index-store write volume.
func (t *Tracker) shouldSample(key string) bool {
	t.sampleMu.Lock()
	defer t.sampleMu.Unlock()
	t.sampleCounts[key]++
	return t.sampleCounts[key]%indexSampleInterval == 0
}

// ObserveCalibration records one (predicted, label) pair for a tracked
// model and refreshes its Brier gauge (and calibration-alert counter, if
// the threshold is crossed).
func (t *Tracker) ObserveCalibration(model string, predicted, label float64) {
	t.mu.RLock()
	buf, ok := t.calibration[model]
	t.mu.RUnlock()
	if !ok {
		return
	}
	buf.Observe(predicted, label)
	brier, computed := buf.Brier()
	if !computed {
		return
	}
	t.brierGauge.WithLabelValues(model).Set(brier)
	if brier > t.brierThreshold {
		t.calibAlerts.WithLabelValues(model).Inc()
	}

	if t.index != nil && t.shouldSample("model:"+model) {
		metadata := fmt.Sprintf(`{"n":%d}`, buf.Len())
		err := t.index.InsertModelMetric(context.Background(), model, "brier_score", brier, metadata, time.Now())
		if err != nil {
			log.Error().Err(err).Str("model", model).Msg("monitor: failed to persist model_metrics row")
		}
	}
}

// StorePendingScore remembers a ScoreOutput's sub-scores by event_id until
// the matching DecisionOutput arrives, so calibration can be tracked per
// model (xgb, nn, rules, ensemble) and not only on the decision's final
// risk figure. Evicts the oldest pending entry once at capacity, matching
// FeatureBuffer's bounded-buffer behavior.
func (t *Tracker) StorePendingScore(eventID string, scores models.ModelScores) {
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	if _, exists := t.pendingScores[eventID]; !exists {
		t.pendingOrder = append(t.pendingOrder, eventID)
		if len(t.pendingOrder) > pendingScoreCapacity {
			evict := t.pendingOrder[0]
			t.pendingOrder = t.pendingOrder[1:]
			delete(t.pendingScores, evict)
		}
	}
	t.pendingScores[eventID] = scores
}

// TakePendingScore removes and returns the sub-scores stored for eventID,
// if any.
func (t *Tracker) TakePendingScore(eventID string) (models.ModelScores, bool) {
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	scores, ok := t.pendingScores[eventID]
	if ok {
		delete(t.pendingScores, eventID)
	}
	return scores, ok
}

// ObserveDecision marks one throughput tick and refreshes the throughput
// gauge.
func (t *Tracker) ObserveDecision(at time.Time) {
	t.throughput.Mark(at)
	if rate, ok := t.throughput.Rate(); ok {
		t.throughputGauge.Set(rate)
	}
}

// ObserveScoreLatency records one scorer computation time.
func (t *Tracker) ObserveScoreLatency(modelVersion string, ms float64) {
	t.scoreLatency.WithLabelValues(modelVersion).Observe(ms)
}

// ObserveDecisionLatency records one decision engine evaluation time.
func (t *Tracker) ObserveDecisionLatency(action string, ms float64) {
	t.decisionLatency.WithLabelValues(action).Observe(ms)
}

// DriftSnapshot is the JSON shape for GET /metrics/drift.
type DriftSnapshot struct {
	Feature string  `json:"feature"`
	PSI     float64 `json:"psi"`
	Alert   bool    `json:"alert"`
	Ready   bool    `json:"ready"`
}

// Drift returns a point-in-time PSI snapshot for every tracked feature.
func (t *Tracker) Drift() []DriftSnapshot {
	out := make([]DriftSnapshot, 0, len(trackedFeatures))
	for _, f := range trackedFeatures {
		buf := t.drift[f]
		psi, ready := buf.PSI(200)
		out = append(out, DriftSnapshot{Feature: f, PSI: psi, Alert: ready && psi > t.psiThreshold, Ready: ready})
	}
	return out
}

// CalibrationSnapshot is the JSON shape for GET /metrics/calibration.
type CalibrationSnapshot struct {
	Model string  `json:"model"`
	Brier float64 `json:"brier"`
	Alert bool    `json:"alert"`
	N     int     `json:"n"`
}

// Calibration returns a point-in-time Brier snapshot for every tracked
// model.
func (t *Tracker) Calibration() []CalibrationSnapshot {
	out := make([]CalibrationSnapshot, 0, len(trackedModels))
	for _, m := range trackedModels {
		buf := t.calibration[m]
		brier, ok := buf.Brier()
		out = append(out, CalibrationSnapshot{Model: m, Brier: brier, Alert: ok && brier > t.brierThreshold, N: buf.Len()})
	}
	return out
}

// Throughput returns the current decisions/sec rate; the histogram detail
// itself is only exact via the Prometheus /metrics text exposition, not
// this JSON convenience endpoint.
func (t *Tracker) Throughput() (float64, bool) {
	return t.throughput.Rate()
}
