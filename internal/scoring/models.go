package scoring

// NeutralGBMScore and NeutralNNScore are the documented neutral substitutes
// used when a loaded model is absent (spec.md §4.3, §7 model-absent
// failure). The teacher's ml_scorer.go uses 0.1 as its "no ML model"
// baseline; we carry that exact constant forward for the gradient-boosted
// path and give the neural path its own (slightly higher, since a missing
// neural model is a different degradation than a missing tree model)
// documented neutral value.
const (
	NeutralGBMScore = 0.1
	NeutralNNScore  = 0.15
)

// GBMScorer produces the gradient-boosted sub-score s_g for an ordered
// numeric feature slice.
type GBMScorer interface {
	// Score returns s_g in [0,1] and the per-feature importances behind it,
	// one per input feature in the same order as features (the caller
	// labels them by position and then sorts them by magnitude).
	Score(features []float64) (score float64, importances []float64, ok bool)
	Version() string
}

// NNScorer produces the neural sub-score s_n for a standardized numeric
// feature slice.
type NNScorer interface {
	Score(standardized []float64) (score float64, ok bool)
	Version() string
}

// NoOpGBM is the documented "model absent" substitute: it never has a
// loaded model, so every call reports ok=false and the caller substitutes
// NeutralGBMScore.
type NoOpGBM struct{}

func (NoOpGBM) Score([]float64) (float64, []float64, bool) { return 0, nil, false }
func (NoOpGBM) Version() string                            { return "degraded" }

// NoOpNN is the neural-path analogue of NoOpGBM.
type NoOpNN struct{}

func (NoOpNN) Score([]float64) (float64, bool) { return 0, false }
func (NoOpNN) Version() string                 { return "degraded" }

// LinearGBM is a lightweight, deterministic stand-in gradient-boosted
// scorer: a fixed-weight linear combination passed through a logistic
// squashing function, grounded on the teacher's ml_scorer.go
// computeLightweightMLScore sigmoid-ensemble technique. It exists so the
// pipeline has a real, loaded scoring model rather than only ever running
// in the degraded "model absent" path; a production deployment swaps this
// for a model loaded from the training pipeline (out of scope, spec.md
// §1's Non-goals).
type LinearGBM struct {
	Weights []float64 // one per input feature, in feature-vector numeric order
	Bias    float64
	version string
}

// NewLinearGBM builds a LinearGBM with the given weights/bias and a fixed
// version label.
func NewLinearGBM(weights []float64, bias float64, version string) *LinearGBM {
	return &LinearGBM{Weights: weights, Bias: bias, version: version}
}

func (m *LinearGBM) Score(features []float64) (float64, []float64, bool) {
	if len(features) != len(m.Weights) {
		return 0, nil, false
	}
	z := m.Bias
	contributions := make([]float64, len(features))
	for i, f := range features {
		c := m.Weights[i] * f
		contributions[i] = c
		z += c
	}
	return sigmoid(z), contributions, true
}

func (m *LinearGBM) Version() string { return m.version }

// FeedForwardNN is a single hidden-layer feed-forward network, grounded on
// the same ml_scorer.go sigmoid-ensemble idiom, operating on an already
// standardized feature slice (the persisted scaler is applied by the
// caller, per spec.md §4.3's "standardized feature slice... scaler used
// verbatim").
type FeedForwardNN struct {
	HiddenWeights [][]float64 // [hidden_unit][input]
	HiddenBias    []float64
	OutputWeights []float64 // [hidden_unit]
	OutputBias    float64
	version       string
}

// NewFeedForwardNN builds a FeedForwardNN from its trained parameters.
func NewFeedForwardNN(hw [][]float64, hb []float64, ow []float64, ob float64, version string) *FeedForwardNN {
	return &FeedForwardNN{HiddenWeights: hw, HiddenBias: hb, OutputWeights: ow, OutputBias: ob, version: version}
}

func (m *FeedForwardNN) Score(standardized []float64) (float64, bool) {
	if len(m.HiddenWeights) == 0 || len(m.HiddenWeights) != len(m.HiddenBias) || len(m.HiddenWeights) != len(m.OutputWeights) {
		return 0, false
	}
	out := m.OutputBias
	for h, weights := range m.HiddenWeights {
		if len(weights) != len(standardized) {
			return 0, false
		}
		z := m.HiddenBias[h]
		for i, w := range weights {
			z += w * standardized[i]
		}
		out += m.OutputWeights[h] * sigmoid(z)
	}
	return sigmoid(out), true
}

func (m *FeedForwardNN) Version() string { return m.version }
