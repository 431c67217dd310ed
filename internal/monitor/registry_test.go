package monitor

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/enterprise/fraud-pipeline/internal/config"
	"github.com/enterprise/fraud-pipeline/internal/models"
)

func testTracker() *Tracker {
	reg := prometheus.NewRegistry()
	return NewTracker(reg, config.PolicyConfig{PSIAlertThresh: 0.2, BrierAlertThresh: 0.25}, nil)
}

func TestObserveFeatureUnknownNameIgnored(t *testing.T) {
	tr := testTracker()
	tr.ObserveFeature("not_a_tracked_feature", 1.0)
}

func TestObserveCalibrationUnknownModelIgnored(t *testing.T) {
	tr := testTracker()
	tr.ObserveCalibration("not_a_tracked_model", 0.5, 1.0)
}

func TestPendingScoreRoundTrip(t *testing.T) {
	tr := testTracker()
	scores := models.ModelScores{XGB: 0.4, NN: 0.5, Rules: 0.3, Ensemble: 0.45, Calibrated: 0.6}
	tr.StorePendingScore("evt-1", scores)

	got, ok := tr.TakePendingScore("evt-1")
	if !ok {
		t.Fatal("expected pending score to be found")
	}
	if got != scores {
		t.Errorf("got %+v, want %+v", got, scores)
	}

	if _, ok := tr.TakePendingScore("evt-1"); ok {
		t.Error("expected pending score to be consumed after first take")
	}
}

func TestPendingScoreMissingEventID(t *testing.T) {
	tr := testTracker()
	if _, ok := tr.TakePendingScore("never-stored"); ok {
		t.Error("expected no pending score for an unstored event id")
	}
}

func TestDriftSnapshotBeforeReady(t *testing.T) {
	tr := testTracker()
	snapshots := tr.Drift()
	if len(snapshots) != len(trackedFeatures) {
		t.Fatalf("got %d snapshots, want %d", len(snapshots), len(trackedFeatures))
	}
	for _, s := range snapshots {
		if s.Ready {
			t.Errorf("feature %s reported ready with no observations", s.Feature)
		}
	}
}

func TestCalibrationSnapshotCounts(t *testing.T) {
	tr := testTracker()
	tr.ObserveCalibration("xgb", 0.9, 1.0)
	tr.ObserveCalibration("xgb", 0.1, 0.0)

	for _, s := range tr.Calibration() {
		if s.Model == "xgb" && s.N != 2 {
			t.Errorf("xgb N = %d, want 2", s.N)
		}
	}
}
