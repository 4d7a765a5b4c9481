package detectors

import (
	"math"

	"github.com/montanaflynn/stats"

	"leadscope/domain/signal"
)

// ElasticMatch aligns the pair with dynamic time warping inside a
// Sakoe-Chiba band and reads the lag off the warping path.
type ElasticMatch struct {
	maxDistance float64
	radius      int
}

// NewElasticMatch creates the matcher. maxDistance bounds the per-step
// normalized distance; radius bounds |i-j| on the warping path.
func NewElasticMatch(maxDistance float64, radius int) *ElasticMatch {
	return &ElasticMatch{
		maxDistance: maxDistance,
		radius:      radius,
	}
}

// Method returns the method tag
func (d *ElasticMatch) Method() signal.Method {
	return signal.MethodElasticMatch
}

// Analyze warps y onto x. Index i on the path walks the target x, j walks the
// candidate y; a positive mean of j-i means y repeats x later.
func (d *ElasticMatch) Analyze(x, y []float64) signal.Result {
	if reason := degenerate(x, y, 2); reason != "" {
		return signal.Inconclusive(reason, map[string]interface{}{
			"sample_size": len(x),
		})
	}

	distance, path, err := warp(x, y, d.radius)
	if err != nil || len(path) == 0 {
		metadata := map[string]interface{}{
			"sample_size": len(x),
			"radius":      d.radius,
		}
		if err != nil {
			metadata["error"] = err.Error()
		}
		return signal.Inconclusive(signal.ReasonAlignmentFailed, metadata)
	}

	normalized := distance / float64(len(path))
	metadata := map[string]interface{}{
		"dtw_distance":        distance,
		"normalized_distance": normalized,
		"path_length":         len(path),
		"radius":              d.radius,
	}
	if normalized > d.maxDistance {
		return signal.NotFound(metadata)
	}

	offsets := make([]float64, len(path))
	gaps := make([]float64, len(path))
	for idx, step := range path {
		offsets[idx] = float64(step.J - step.I)
		gaps[idx] = y[step.J] - x[step.I]
	}
	meanOffset, _ := stats.Mean(offsets)
	impact, _ := stats.Mean(gaps)
	lag := int(math.Round(meanOffset))

	recommendation := signal.RecommendWait
	if lag > 0 {
		recommendation = signal.RecommendPrepare
	}

	// TODO: derive INVERSE from the sign of the aligned differences once the
	// matcher also aligns against the negated candidate.
	return signal.Result{
		Status:          signal.StatusFound,
		Method:          signal.MethodElasticMatch,
		Confidence:      math.Max(0, 1-normalized/d.maxDistance),
		Lag:             lag,
		EstimatedImpact: impact,
		Recommendation:  recommendation,
		SignalType:      signal.TypeParallel,
		Metadata:        metadata,
	}
}
