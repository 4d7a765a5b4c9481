package detectors

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"leadscope/domain/signal"
)

// RankCorrelation is the monotonic gate: Spearman's rho with a two-sided
// t-approximation p-value.
type RankCorrelation struct {
	minCorrelation float64
	maxPValue      float64
}

// NewRankCorrelation creates the gate. A pair passes when p < maxPValue and
// |rho| >= minCorrelation.
func NewRankCorrelation(minCorrelation, maxPValue float64) *RankCorrelation {
	return &RankCorrelation{
		minCorrelation: minCorrelation,
		maxPValue:      maxPValue,
	}
}

// Method returns the method tag
func (d *RankCorrelation) Method() signal.Method {
	return signal.MethodRankCorr
}

// Analyze computes Spearman's rank correlation between x and y
func (d *RankCorrelation) Analyze(x, y []float64) signal.Result {
	if reason := degenerate(x, y, 3); reason != "" {
		return signal.Inconclusive(reason, map[string]interface{}{
			"sample_size": len(x),
		})
	}

	rho, pValue := spearman(x, y)
	if math.IsNaN(rho) {
		return signal.Inconclusive(signal.ReasonDegenerateInput, map[string]interface{}{
			"sample_size": len(x),
		})
	}

	metadata := map[string]interface{}{
		"correlation": rho,
		"p_value":     pValue,
		"sample_size": len(x),
	}
	if pValue >= d.maxPValue || math.Abs(rho) < d.minCorrelation {
		return signal.NotFound(metadata)
	}

	signalType := signal.TypeParallel
	if rho < 0 {
		signalType = signal.TypeInverse
	}
	return signal.Result{
		Status:     signal.StatusFound,
		Method:     signal.MethodRankCorr,
		Confidence: math.Abs(rho),
		Lag:        0,
		SignalType: signalType,
		Metadata:   metadata,
	}
}

// spearman returns rho and its two-sided p-value
func spearman(x, y []float64) (float64, float64) {
	rho := stat.Correlation(rank(x), rank(y), nil)
	if math.IsNaN(rho) {
		return rho, 1
	}
	rho = math.Max(-1, math.Min(1, rho))

	if math.Abs(rho) >= 1 {
		return rho, 0
	}

	df := float64(len(x) - 2)
	t := rho * math.Sqrt(df/(1-rho*rho))
	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return rho, 2 * tDist.Survival(math.Abs(t))
}
