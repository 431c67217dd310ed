// Package scoring implements the ensemble scorer: gradient-boosted, neural
// and rules sub-scores combined by configured weights, then Platt-style
// calibration, with an explanation of the top contributing features.
//
// Grounded on the teacher's internal/scoring/engine.go and ml_scorer.go
// (weighted hybrid scoring, sigmoid-based calibration) and rule_engine.go
// (condition evaluation), generalized from the teacher's hardcoded
// transaction rules to the fixed baseline rule set spec.md §4.3 names.
package scoring

import "github.com/enterprise/fraud-pipeline/internal/models"

// RulesInput is the slice of a feature vector the deterministic rules
// score reads.
type RulesInput struct {
	Amount        float64
	Velocity1h    int64
	IPRiskScore   float64
	GeoDistanceKM float64
	MerchantRisk  float64
}

// RulesScore computes the deterministic weighted-predicate score s_r,
// clamped to 1.0, exactly per spec.md §4.3's shipped baseline.
func RulesScore(in RulesInput) float64 {
	var s float64

	if in.Amount > 10000 {
		s += 0.3
	}

	switch {
	case in.Velocity1h > 10:
		s += 0.4
	case in.Velocity1h > 5:
		s += 0.2
	}

	switch {
	case in.IPRiskScore > 0.8:
		s += 0.3
	case in.IPRiskScore > 0.5:
		s += 0.1
	}

	switch {
	case in.GeoDistanceKM > 1000:
		s += 0.2
	case in.GeoDistanceKM > 500:
		s += 0.1
	}

	if in.MerchantRisk > 0.7 {
		s += 0.2
	}

	if s > 1.0 {
		s = 1.0
	}
	return s
}

// RulesInputFromFeatures builds a RulesInput from a feature vector.
func RulesInputFromFeatures(fv *models.FeatureVector) RulesInput {
	return RulesInput{
		Amount:        fv.Amount,
		Velocity1h:    fv.Velocity1h,
		IPRiskScore:   fv.IPRiskScore,
		GeoDistanceKM: fv.GeoDistanceKM,
		MerchantRisk:  fv.MerchantRiskScore,
	}
}
