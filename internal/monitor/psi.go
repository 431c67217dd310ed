// Package monitor is the Monitor: an off-hot-path stream tap computing PSI
// drift, Brier calibration, throughput, and latency, exposed as pull-based
// Prometheus metrics (spec.md §4.6). Grounded on the teacher's
// cmd/kafka-worker/main.go RealTimeMetrics (mutex-guarded rolling struct,
// periodic snapshot reporter, independent consumer group), generalized
// from CDC analytics counters to the spec's drift/calibration gauges.
package monitor

import (
	"math"
	"sync"
	"time"
)

const psiBins = 10

// FeatureBuffer is a bounded rolling buffer of observations for one
// tracked feature, used to compute PSI drift by splitting at the midpoint
// (spec.md §4.6).
type FeatureBuffer struct {
	mu        sync.Mutex
	obs       []float64
	capacity  int
	createdAt time.Time
	lastObsAt time.Time
}

// NewFeatureBuffer builds a buffer bounded to capacity observations
// (default 10000 per spec.md §4.6); oldest observations drop first.
func NewFeatureBuffer(capacity int) *FeatureBuffer {
	if capacity <= 0 {
		capacity = 10000
	}
	now := time.Now()
	return &FeatureBuffer{capacity: capacity, createdAt: now, lastObsAt: now}
}

// Observe appends v, dropping the oldest observation once at capacity.
func (b *FeatureBuffer) Observe(v float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.obs = append(b.obs, v)
	if len(b.obs) > b.capacity {
		b.obs = b.obs[len(b.obs)-b.capacity:]
	}
	b.lastObsAt = time.Now()
}

// Periods approximates the (reference, current) wall-clock windows the
// last PSI split covered, for the feature_drift index row. The buffer
// splits by observation count rather than by timestamp, so the boundary
// between the two halves is approximated as the midpoint between when the
// buffer was created and the most recent observation.
func (b *FeatureBuffer) Periods() (refStart, refEnd, curStart, curEnd time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	mid := b.createdAt.Add(b.lastObsAt.Sub(b.createdAt) / 2)
	return b.createdAt, mid, mid, b.lastObsAt
}

// PSI computes the Population Stability Index by splitting the current
// buffer at its midpoint into reference and current halves, bucketing each
// into psiBins equal-width bins over their joint min/max. Returns
// (psi, false) if fewer than minObservations (>=200 per spec.md §4.6) are
// buffered.
func (b *FeatureBuffer) PSI(minObservations int) (float64, bool) {
	if minObservations < 1 {
		minObservations = 200
	}
	b.mu.Lock()
	snapshot := append([]float64(nil), b.obs...)
	b.mu.Unlock()

	if len(snapshot) < minObservations {
		return 0, false
	}

	mid := len(snapshot) / 2
	ref := snapshot[:mid]
	cur := snapshot[mid:]

	return computePSI(ref, cur), true
}

func computePSI(ref, cur []float64) float64 {
	min, max := jointMinMax(ref, cur)
	if max <= min {
		return 0
	}
	width := (max - min) / float64(psiBins)

	refHist := bucket(ref, min, width)
	curHist := bucket(cur, min, width)

	const floor = 1e-6
	var psi float64
	for i := 0; i < psiBins; i++ {
		pRef := math.Max(refHist[i]/float64(len(ref)), floor)
		pCur := math.Max(curHist[i]/float64(len(cur)), floor)
		psi += (pCur - pRef) * math.Log(pCur/pRef)
	}
	return psi
}

func jointMinMax(a, b []float64) (min, max float64) {
	min, max = math.Inf(1), math.Inf(-1)
	for _, v := range a {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	for _, v := range b {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

func bucket(vals []float64, min, width float64) [psiBins]float64 {
	var hist [psiBins]float64
	for _, v := range vals {
		idx := int((v - min) / width)
		if idx < 0 {
			idx = 0
		}
		if idx >= psiBins {
			idx = psiBins - 1
		}
		hist[idx]++
	}
	return hist
}
