// Package preprocess prepares raw series for the detection layers: an
// optional stationarity transform followed by optional min-max scaling.
package preprocess

import (
	"math"
	"strings"

	"github.com/montanaflynn/stats"

	"leadscope/internal/errors"
)

// Stationarity selects the transform applied before normalization
type Stationarity string

const (
	StationarityNone      Stationarity = "none"
	StationarityDiff      Stationarity = "diff"
	StationarityLogReturn Stationarity = "log_return"
)

// logFloor replaces non-positive samples before taking logarithms
const logFloor = 1e-9

// ParseStationarity maps a configured name onto a Stationarity.
func ParseStationarity(name string) (Stationarity, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return StationarityNone, nil
	case "diff", "difference":
		return StationarityDiff, nil
	case "log_return", "logreturn":
		return StationarityLogReturn, nil
	}
	return "", errors.ConfigInvalid("unsupported stationarity method: " + name)
}

// Prepare returns a transformed copy of series. The input is never mutated
// and the output always has the same length as the input.
func Prepare(series []float64, normalize bool, method Stationarity) ([]float64, error) {
	var out []float64
	switch method {
	case StationarityNone, "":
		out = append([]float64(nil), series...)
	case StationarityDiff:
		out = difference(series)
	case StationarityLogReturn:
		out = logReturn(series)
	default:
		return nil, errors.ConfigInvalid("unsupported stationarity method: " + string(method))
	}

	if normalize {
		minMaxInPlace(out)
	}
	return out, nil
}

// difference computes the first difference with the first sample prepended,
// so the leading output is always zero.
func difference(series []float64) []float64 {
	out := make([]float64, len(series))
	for i := 1; i < len(series); i++ {
		out[i] = series[i] - series[i-1]
	}
	return out
}

func logReturn(series []float64) []float64 {
	logs := make([]float64, len(series))
	for i, v := range series {
		if v <= 0 {
			v = logFloor
		}
		logs[i] = math.Log(v)
	}
	return difference(logs)
}

// minMaxInPlace scales values to [0, 1]. A constant series maps to zeros.
func minMaxInPlace(values []float64) {
	if len(values) == 0 {
		return
	}
	lo, err := stats.Min(values)
	if err != nil {
		return
	}
	hi, err := stats.Max(values)
	if err != nil {
		return
	}

	span := hi - lo
	if math.IsInf(span, 0) {
		// finite extremes whose distance overflows; scale by halves instead
		halfLo, halfSpan := lo/2, hi/2-lo/2
		for i, v := range values {
			values[i] = (v/2 - halfLo) / halfSpan
		}
		return
	}
	for i, v := range values {
		if span == 0 || math.IsNaN(span) {
			values[i] = 0
			continue
		}
		values[i] = (v - lo) / span
	}
}
