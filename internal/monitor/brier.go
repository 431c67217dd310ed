package monitor

import "sync"

const brierWindow = 100

// CalibrationBuffer tracks the last brierWindow (predicted, label) pairs
// for one model, producing a Brier score against a ground-truth proxy
// (spec.md §4.6: "external labels when available; a labeled proxy
// otherwise"). In the absence of a wired external label feed, the label
// supplied by callers is the decision outcome proxy (1.0 if the event was
// held/blocked/escalated, 0.0 if allowed) — the best available signal
// without a charge-back or confirmed-fraud feed.
type CalibrationBuffer struct {
	mu    sync.Mutex
	preds []float64
	labels []float64
}

func NewCalibrationBuffer() *CalibrationBuffer {
	return &CalibrationBuffer{}
}

// Observe records one (predicted probability, ground-truth label) pair,
// dropping the oldest once brierWindow entries are held.
func (b *CalibrationBuffer) Observe(predicted, label float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.preds = append(b.preds, predicted)
	b.labels = append(b.labels, label)
	if len(b.preds) > brierWindow {
		drop := len(b.preds) - brierWindow
		b.preds = b.preds[drop:]
		b.labels = b.labels[drop:]
	}
}

// Brier computes (1/n) Σ (p_i - y_i)^2 over the buffered window. Returns
// (0, false) if the buffer is empty.
func (b *CalibrationBuffer) Brier() (float64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.preds) == 0 {
		return 0, false
	}
	var sum float64
	for i, p := range b.preds {
		d := p - b.labels[i]
		sum += d * d
	}
	return sum / float64(len(b.preds)), true
}

// Len reports the number of buffered observations.
func (b *CalibrationBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.preds)
}

// DecisionLabel maps a decision action to the Brier ground-truth proxy:
// 1.0 for any action other than allow, 0.0 for allow.
func DecisionLabel(action string) float64 {
	if action == "allow" {
		return 0
	}
	return 1
}
