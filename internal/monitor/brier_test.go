package monitor

import "testing"

func TestBrierPerfectPredictionsIsZero(t *testing.T) {
	b := NewCalibrationBuffer()
	b.Observe(1.0, 1.0)
	b.Observe(0.0, 0.0)
	score, ok := b.Brier()
	if !ok {
		t.Fatal("expected Brier to be computed")
	}
	if score != 0 {
		t.Errorf("Brier = %v, want 0", score)
	}
}

func TestBrierWorstPredictionsIsOne(t *testing.T) {
	b := NewCalibrationBuffer()
	b.Observe(1.0, 0.0)
	b.Observe(0.0, 1.0)
	score, ok := b.Brier()
	if !ok {
		t.Fatal("expected Brier to be computed")
	}
	if score != 1 {
		t.Errorf("Brier = %v, want 1", score)
	}
}

func TestBrierEmptyBufferUnavailable(t *testing.T) {
	b := NewCalibrationBuffer()
	if _, ok := b.Brier(); ok {
		t.Error("expected Brier to be unavailable on an empty buffer")
	}
}

func TestBrierWindowBounded(t *testing.T) {
	b := NewCalibrationBuffer()
	for i := 0; i < 250; i++ {
		b.Observe(0.5, 0.5)
	}
	if b.Len() != brierWindow {
		t.Errorf("buffer len = %d, want %d", b.Len(), brierWindow)
	}
}

func TestDecisionLabel(t *testing.T) {
	if DecisionLabel("allow") != 0 {
		t.Error("allow should label 0")
	}
	for _, a := range []string{"hold", "block", "escalate"} {
		if DecisionLabel(a) != 1 {
			t.Errorf("%s should label 1", a)
		}
	}
}
