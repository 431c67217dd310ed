package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/enterprise/fraud-pipeline/internal/models"
)

// sigmoid is the standard logistic function, shared by the calibration
// step and the lightweight model stand-ins.
func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// Weights is the ensemble's (w_g, w_n, w_r) combination, validated to sum
// to 1.0 within the tolerance spec.md §4.3 requires.
type Weights struct {
	GBM   float64
	NN    float64
	Rules float64
}

// Validate reports whether the weights sum to 1.0 within 1e-9.
func (w Weights) Validate() error {
	sum := w.GBM + w.NN + w.Rules
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("scoring: ensemble weights sum to %.12f, want 1.0 ± 1e-9", sum)
	}
	return nil
}

// CalibrationParams are the Platt-style logistic calibration parameters,
// attachable per model version (spec.md §9 open question resolution: fixed
// defaults k=5, x0=0.5, but carried as a field rather than a constant).
type CalibrationParams struct {
	K  float64
	X0 float64
}

// DefaultCalibration is the spec-mandated default (k=5, x0=0.5).
var DefaultCalibration = CalibrationParams{K: 5, X0: 0.5}

// Calibrate applies the Platt-style logistic transform s_c =
// 1/(1+exp(-k*(s_e-x0))).
func Calibrate(ensemble float64, p CalibrationParams) float64 {
	return sigmoid(p.K * (ensemble - p.X0))
}

// Ensemble combines sub-scores and calibration into the scorer's published
// output.
type Ensemble struct {
	Weights     Weights
	Calibration CalibrationParams
	GBM         GBMScorer
	NN          NNScorer
}

// NewEnsemble validates weights and builds an Ensemble. Model scorers may
// be nil, which is treated identically to a scorer reporting ok=false
// (model-absent failure, spec.md §7).
func NewEnsemble(w Weights, cal CalibrationParams, gbm GBMScorer, nn NNScorer) (*Ensemble, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if gbm == nil {
		gbm = NoOpGBM{}
	}
	if nn == nil {
		nn = NoOpNN{}
	}
	return &Ensemble{Weights: w, Calibration: cal, GBM: gbm, NN: nn}, nil
}

// Result is the fully-computed score record plus the model version string
// to stamp on the published ScoreOutput.
type Result struct {
	Scores       models.ModelScores
	Explain      []models.FeatureImportance
	ModelVersion string
}

// featureNames is the fixed order callers must supply numeric features in
// for Score; used only to label the explanation output.
var featureNames = []string{
	"amount", "velocity_1h", "velocity_24h", "velocity_7d",
	"ip_risk_score", "merchant_risk_score", "geo_distance_km", "account_age_days",
}

// NumericFeatures extracts the fixed, ordered numeric slice the model
// scorers consume from a feature vector.
func NumericFeatures(fv *models.FeatureVector) []float64 {
	return []float64{
		fv.Amount,
		float64(fv.Velocity1h),
		float64(fv.Velocity24h),
		float64(fv.Velocity7d),
		fv.IPRiskScore,
		fv.MerchantRiskScore,
		fv.GeoDistanceKM,
		fv.AccountAgeDays,
	}
}

// Score runs the full gradient-boosted + neural + rules + ensemble +
// calibration pipeline for one feature vector.
func (e *Ensemble) Score(fv *models.FeatureVector) Result {
	numeric := NumericFeatures(fv)

	gbmScore, contributions, gbmOK := e.GBM.Score(numeric)
	if !gbmOK {
		gbmScore = NeutralGBMScore
	}

	nnScore, nnOK := e.NN.Score(numeric)
	if !nnOK {
		nnScore = NeutralNNScore
	}

	rulesScore := RulesScore(RulesInputFromFeatures(fv))

	ensembleScore := clamp01(e.Weights.GBM*gbmScore + e.Weights.NN*nnScore + e.Weights.Rules*rulesScore)
	calibrated := clamp01(Calibrate(ensembleScore, e.Calibration))

	version := fmt.Sprintf("gbm:%s,nn:%s", e.GBM.Version(), e.NN.Version())

	explain := explanation(contributions, rulesScore, fv)

	return Result{
		Scores: models.ModelScores{
			XGB:        clamp01(gbmScore),
			NN:         clamp01(nnScore),
			Rules:      clamp01(rulesScore),
			Ensemble:   ensembleScore,
			Calibrated: calibrated,
		},
		Explain:      explain,
		ModelVersion: version,
	}
}

// explanation builds the up-to-5 (feature_name, importance) pairs, sorted
// by |importance| descending, per spec.md §4.3. When the gradient-boosted
// model produced per-feature contributions, those are used; otherwise the
// deterministic proxy is each rule predicate's signed contribution to
// rulesScore, matching spec's "fall back to a deterministic proxy... never
// omit the field".
func explanation(gbmContributions []float64, rulesScore float64, fv *models.FeatureVector) []models.FeatureImportance {
	var out []models.FeatureImportance

	if len(gbmContributions) == len(featureNames) {
		for i, c := range gbmContributions {
			out = append(out, models.FeatureImportance{FeatureName: featureNames[i], Importance: c})
		}
	} else {
		out = rulesProxyExplanation(fv)
	}

	sort.Slice(out, func(i, j int) bool {
		return math.Abs(out[i].Importance) > math.Abs(out[j].Importance)
	})
	if len(out) > 5 {
		out = out[:5]
	}
	return out
}

// rulesProxyExplanation reconstructs each predicate's signed contribution
// to the deterministic rules score, used whenever model attribution is
// unavailable.
func rulesProxyExplanation(fv *models.FeatureVector) []models.FeatureImportance {
	in := RulesInputFromFeatures(fv)
	var out []models.FeatureImportance

	if in.Amount > 10000 {
		out = append(out, models.FeatureImportance{FeatureName: "amount", Importance: 0.3})
	}
	switch {
	case in.Velocity1h > 10:
		out = append(out, models.FeatureImportance{FeatureName: "velocity_1h", Importance: 0.4})
	case in.Velocity1h > 5:
		out = append(out, models.FeatureImportance{FeatureName: "velocity_1h", Importance: 0.2})
	}
	switch {
	case in.IPRiskScore > 0.8:
		out = append(out, models.FeatureImportance{FeatureName: "ip_risk_score", Importance: 0.3})
	case in.IPRiskScore > 0.5:
		out = append(out, models.FeatureImportance{FeatureName: "ip_risk_score", Importance: 0.1})
	}
	switch {
	case in.GeoDistanceKM > 1000:
		out = append(out, models.FeatureImportance{FeatureName: "geo_distance_km", Importance: 0.2})
	case in.GeoDistanceKM > 500:
		out = append(out, models.FeatureImportance{FeatureName: "geo_distance_km", Importance: 0.1})
	}
	if in.MerchantRisk > 0.7 {
		out = append(out, models.FeatureImportance{FeatureName: "merchant_risk_score", Importance: 0.2})
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
