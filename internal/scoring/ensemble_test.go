package scoring

import (
	"math"
	"testing"

	"github.com/enterprise/fraud-pipeline/internal/models"
)

func TestRulesScore(t *testing.T) {
	cases := []struct {
		name string
		in   RulesInput
		want float64
	}{
		{"quiet", RulesInput{Amount: 120, Velocity1h: 2, IPRiskScore: 0.3, GeoDistanceKM: 10, MerchantRisk: 0.1}, 0.0},
		{"large amount only", RulesInput{Amount: 10001}, 0.3},
		{"velocity high", RulesInput{Velocity1h: 11}, 0.4},
		{"velocity medium", RulesInput{Velocity1h: 6}, 0.2},
		{"ip risk high", RulesInput{IPRiskScore: 0.9}, 0.3},
		{"geo far", RulesInput{GeoDistanceKM: 1500}, 0.2},
		{"merchant risky", RulesInput{MerchantRisk: 0.8}, 0.2},
		{
			"everything fires, clamp to 1.0",
			RulesInput{Amount: 20000, Velocity1h: 20, IPRiskScore: 0.95, GeoDistanceKM: 2000, MerchantRisk: 0.9},
			1.0,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := RulesScore(c.in)
			if math.Abs(got-c.want) > 1e-9 {
				t.Errorf("RulesScore(%+v) = %v, want %v", c.in, got, c.want)
			}
			if got < 0 || got > 1 {
				t.Errorf("RulesScore(%+v) = %v out of [0,1]", c.in, got)
			}
		})
	}
}

func TestWeightsValidate(t *testing.T) {
	if err := (Weights{GBM: 0.5, NN: 0.3, Rules: 0.2}).Validate(); err != nil {
		t.Errorf("default weights should validate: %v", err)
	}
	if err := (Weights{GBM: 0.5, NN: 0.3, Rules: 0.3}).Validate(); err == nil {
		t.Errorf("weights summing to 1.1 should fail validation")
	}
}

func TestCalibrateMonotone(t *testing.T) {
	p := DefaultCalibration
	xs := []float64{0.0, 0.1, 0.3, 0.5, 0.7, 0.9, 1.0}
	prev := -1.0
	for _, x := range xs {
		c := Calibrate(x, p)
		if c <= prev {
			t.Errorf("calibration not monotone at x=%v: got %v after %v", x, c, prev)
		}
		if c < 0 || c > 1 {
			t.Errorf("calibrate(%v) = %v out of [0,1]", x, c)
		}
		prev = c
	}
}

func TestCalibrateMidpoint(t *testing.T) {
	// At x0 the logistic sits exactly at 0.5 regardless of k.
	got := Calibrate(0.5, DefaultCalibration)
	if math.Abs(got-0.5) > 1e-9 {
		t.Errorf("Calibrate(0.5, default) = %v, want 0.5", got)
	}
}

func TestEnsembleScoreRangeAndWeightConsistency(t *testing.T) {
	e, err := NewEnsemble(Weights{GBM: 0.5, NN: 0.3, Rules: 0.2}, DefaultCalibration, nil, nil)
	if err != nil {
		t.Fatalf("NewEnsemble: %v", err)
	}

	fv := &models.FeatureVector{
		Amount:            15000,
		Velocity1h:        12,
		Velocity24h:       40,
		Velocity7d:        100,
		IPRiskScore:       0.9,
		MerchantRiskScore: 0.8,
		GeoDistanceKM:     1200,
		AccountAgeDays:    30,
	}

	result := e.Score(fv)
	s := result.Scores

	for name, v := range map[string]float64{
		"xgb": s.XGB, "nn": s.NN, "rules": s.Rules, "ensemble": s.Ensemble, "calibrated": s.Calibrated,
	} {
		if v < 0 || v > 1 {
			t.Errorf("%s = %v out of [0,1]", name, v)
		}
	}

	wantEnsemble := 0.5*s.XGB + 0.3*s.NN + 0.2*s.Rules
	if math.Abs(s.Ensemble-wantEnsemble) > 1e-9 {
		t.Errorf("ensemble = %v, want %v (weighted sum of sub-scores)", s.Ensemble, wantEnsemble)
	}

	if len(result.Explain) == 0 {
		t.Error("explanation must never be empty when rules fire")
	}
	if len(result.Explain) > 5 {
		t.Errorf("explanation has %d entries, want at most 5", len(result.Explain))
	}
	for i := 1; i < len(result.Explain); i++ {
		if math.Abs(result.Explain[i-1].Importance) < math.Abs(result.Explain[i].Importance) {
			t.Error("explanation not sorted by |importance| descending")
		}
	}
}

func TestEnsembleModelAbsentSubstitutesNeutralScores(t *testing.T) {
	e, err := NewEnsemble(Weights{GBM: 0.5, NN: 0.3, Rules: 0.2}, DefaultCalibration, nil, nil)
	if err != nil {
		t.Fatalf("NewEnsemble: %v", err)
	}
	result := e.Score(&models.FeatureVector{})
	if result.Scores.XGB != NeutralGBMScore {
		t.Errorf("xgb = %v, want neutral %v when model absent", result.Scores.XGB, NeutralGBMScore)
	}
	if result.Scores.NN != NeutralNNScore {
		t.Errorf("nn = %v, want neutral %v when model absent", result.Scores.NN, NeutralNNScore)
	}
}

func TestLinearGBMDeterministic(t *testing.T) {
	m := NewLinearGBM([]float64{0.1, 0.2, 0, 0, 0.5, 0.3, 0.01, -0.01}, -1.0, "linear-gbm-v1")
	features := NumericFeatures(&models.FeatureVector{Amount: 500, Velocity1h: 3, IPRiskScore: 0.4, AccountAgeDays: 90})
	s1, _, ok1 := m.Score(features)
	s2, _, ok2 := m.Score(features)
	if !ok1 || !ok2 {
		t.Fatal("LinearGBM should report ok for a matching-length feature slice")
	}
	if s1 != s2 {
		t.Errorf("LinearGBM.Score is not deterministic: %v != %v", s1, s2)
	}
	if s1 < 0 || s1 > 1 {
		t.Errorf("LinearGBM.Score = %v out of [0,1]", s1)
	}
}
