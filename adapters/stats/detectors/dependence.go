package detectors

import (
	"math"

	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat"

	"leadscope/domain/signal"
)

// DefaultNeighbors is the k used by the KSG estimator
const DefaultNeighbors = 3

// minDependenceSamples keeps the neighbour search meaningful
const minDependenceSamples = 10

// Dependence estimates mutual information with the Kraskov-Stögbauer-Grassberger
// nearest-neighbour estimator. It catches non-monotonic structure the rank
// gate misses but cannot tell direction, so FOUND verdicts are PARALLEL.
//
// Confidence is the raw score in nats. It is unbounded and not comparable to
// the confidence of other layers.
type Dependence struct {
	minScore  float64
	neighbors int
}

// NewDependence creates the layer with the default neighbour count
func NewDependence(minScore float64) *Dependence {
	return &Dependence{minScore: minScore, neighbors: DefaultNeighbors}
}

// Method returns the method tag
func (d *Dependence) Method() signal.Method {
	return signal.MethodDependence
}

// Analyze scores the dependence between x and y
func (d *Dependence) Analyze(x, y []float64) signal.Result {
	if reason := degenerate(x, y, minDependenceSamples); reason != "" {
		return signal.Inconclusive(reason, map[string]interface{}{
			"sample_size": len(x),
		})
	}

	score := ksgMutualInformation(x, y, d.neighbors)
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return signal.Inconclusive(signal.ReasonDegenerateInput, map[string]interface{}{
			"sample_size": len(x),
		})
	}

	metadata := map[string]interface{}{
		"dependence_score": score,
		"k_neighbors":      d.neighbors,
		"sample_size":      len(x),
	}
	if score < d.minScore {
		return signal.NotFound(metadata)
	}

	return signal.Result{
		Status:     signal.StatusFound,
		Method:     signal.MethodDependence,
		Confidence: score,
		Lag:        0,
		SignalType: signal.TypeParallel,
		Metadata:   metadata,
	}
}

// ksgMutualInformation implements estimator 1 of Kraskov et al. (2004):
//
//	I = ψ(n) + ψ(k) - <ψ(nx+1) + ψ(ny+1)>
//
// Both marginals are scaled to unit standard deviation and the joint space
// uses the max norm. Marginal counts are strict (distance < eps). The result
// is clipped at zero.
func ksgMutualInformation(x, y []float64, k int) float64 {
	n := len(x)
	if n <= k {
		return math.NaN()
	}

	xs := scaleUnit(x)
	ys := scaleUnit(y)
	if xs == nil || ys == nil {
		return math.NaN()
	}

	nearest := make([]float64, k)
	var sumDigamma float64
	for i := 0; i < n; i++ {
		eps := kthJointDistance(xs, ys, i, nearest)
		// points strictly inside eps, matching a radius just below it
		radius := math.Nextafter(eps, 0)

		nx := countWithin(xs, i, radius)
		ny := countWithin(ys, i, radius)
		sumDigamma += mathext.Digamma(float64(nx+1)) + mathext.Digamma(float64(ny+1))
	}

	mi := mathext.Digamma(float64(n)) + mathext.Digamma(float64(k)) - sumDigamma/float64(n)
	return math.Max(0, mi)
}

// kthJointDistance returns the distance from point i to its k-th nearest
// neighbour under the max norm. nearest is scratch space of length k.
func kthJointDistance(xs, ys []float64, i int, nearest []float64) float64 {
	k := len(nearest)
	for j := range nearest {
		nearest[j] = math.Inf(1)
	}
	for j := range xs {
		if j == i {
			continue
		}
		d := math.Max(math.Abs(xs[j]-xs[i]), math.Abs(ys[j]-ys[i]))
		if d >= nearest[k-1] {
			continue
		}
		// insertion into the sorted k smallest
		pos := k - 1
		for pos > 0 && nearest[pos-1] > d {
			nearest[pos] = nearest[pos-1]
			pos--
		}
		nearest[pos] = d
	}
	return nearest[k-1]
}

// countWithin counts points other than i whose distance to point i is <= radius
func countWithin(values []float64, i int, radius float64) int {
	count := 0
	for j, v := range values {
		if j != i && math.Abs(v-values[i]) <= radius {
			count++
		}
	}
	return count
}

// scaleUnit divides by the standard deviation; nil when it is zero
func scaleUnit(values []float64) []float64 {
	sd := stat.StdDev(values, nil)
	if sd == 0 || math.IsNaN(sd) {
		return nil
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v / sd
	}
	return out
}
