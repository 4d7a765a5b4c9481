package detectors

import (
	"math"
	"sort"

	"leadscope/domain/signal"
)

// rank converts values to 1-based ranks, averaging ties
func rank(data []float64) []float64 {
	n := len(data)
	ranks := make([]float64, n)
	if n == 0 {
		return ranks
	}

	type pair struct {
		value float64
		index int
	}
	pairs := make([]pair, n)
	for i, v := range data {
		pairs[i] = pair{value: v, index: i}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].value < pairs[j].value
	})

	for i := 0; i < n; {
		j := i
		for j < n && pairs[j].value == pairs[i].value {
			j++
		}
		// positions i..j-1 share the average of ranks i+1..j
		avg := float64(i+1+j) / 2
		for k := i; k < j; k++ {
			ranks[pairs[k].index] = avg
		}
		i = j
	}
	return ranks
}

// isConstant reports whether every sample equals the first one
func isConstant(data []float64) bool {
	for _, v := range data {
		if v != data[0] {
			return false
		}
	}
	return true
}

func finite(data []float64) bool {
	for _, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// degenerate reports the inconclusive reason for a pair, or "" if usable.
func degenerate(x, y []float64, minSamples int) string {
	if len(x) != len(y) {
		return signal.ReasonLengthMismatch
	}
	if len(x) < minSamples {
		return signal.ReasonInsufficientData
	}
	if !finite(x) || !finite(y) {
		return signal.ReasonNonFiniteInput
	}
	if isConstant(x) || isConstant(y) {
		return signal.ReasonDegenerateInput
	}
	return ""
}
