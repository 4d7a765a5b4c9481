package testkit

import (
	"math"
	"math/rand"
)

// SeriesGeneratorConfig configures the synthetic series generator
type SeriesGeneratorConfig struct {
	Length int   `json:"length"`
	Seed   int64 `json:"seed"`
}

// DefaultSeriesConfig returns the settings used by the demo scenario
func DefaultSeriesConfig() SeriesGeneratorConfig {
	return SeriesGeneratorConfig{
		Length: 100,
		Seed:   42,
	}
}

// SeriesGenerator produces reproducible synthetic series
type SeriesGenerator struct {
	config SeriesGeneratorConfig
	rng    *rand.Rand
}

// NewSeriesGenerator creates a generator; the same config always yields the
// same sequence of series.
func NewSeriesGenerator(config SeriesGeneratorConfig) *SeriesGenerator {
	return &SeriesGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Length returns the configured series length
func (g *SeriesGenerator) Length() int {
	return g.config.Length
}

// Noise draws iid samples from N(0, sigma²)
func (g *SeriesGenerator) Noise(sigma float64) []float64 {
	out := make([]float64, g.config.Length)
	for i := range out {
		out[i] = g.rng.NormFloat64() * sigma
	}
	return out
}

// RandomWalk is a cumulative sum of standard normal steps plus a linear drift
// of drift per sample.
func (g *SeriesGenerator) RandomWalk(drift float64) []float64 {
	out := make([]float64, g.config.Length)
	level := 0.0
	for i := range out {
		level += g.rng.NormFloat64()
		out[i] = level + drift*float64(i)
	}
	return out
}

// Regime is a level shift from low to high at the midpoint, with small noise
func (g *SeriesGenerator) Regime(low, high, sigma float64) []float64 {
	out := make([]float64, g.config.Length)
	mid := g.config.Length / 2
	for i := range out {
		level := low
		if i >= mid {
			level = high
		}
		out[i] = level + g.rng.NormFloat64()*sigma
	}
	return out
}

// Ramp returns evenly spaced values from start to end inclusive
func Ramp(n int, start, end float64) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = start
		return out
	}
	step := (end - start) / float64(n-1)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

// Sine returns amplitude*sin(2πi/period)
func Sine(n int, period, amplitude float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*float64(i)/period)
	}
	return out
}

// Roll shifts series forward by k with wrap-around, so out[i] = series[i-k]
func Roll(series []float64, k int) []float64 {
	n := len(series)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	k = ((k % n) + n) % n
	for i := range series {
		out[(i+k)%n] = series[i]
	}
	return out
}

// Delay shifts series forward by k and repeats the first k samples in place
// of the wrapped tail.
func Delay(series []float64, k int) []float64 {
	out := Roll(series, k)
	for i := 0; i < k && i < len(series); i++ {
		out[i] = series[i]
	}
	return out
}

// Map applies fn to each sample
func Map(series []float64, fn func(float64) float64) []float64 {
	out := make([]float64, len(series))
	for i, v := range series {
		out[i] = fn(v)
	}
	return out
}

// Add returns the element-wise sum of a and b
func Add(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out
}

// Constant returns n copies of v
func Constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// Scenario is a target plus named candidates
type Scenario struct {
	Target     []float64
	Candidates map[string][]float64
}

// LeadIndicatorScenario builds a trending random-walk target and four
// candidates: a noisy copy, its square, a five-step delayed copy and pure
// noise.
func LeadIndicatorScenario(config SeriesGeneratorConfig) Scenario {
	g := NewSeriesGenerator(config)
	target := g.RandomWalk(20.0 / float64(max(config.Length-1, 1)))

	return Scenario{
		Target: target,
		Candidates: map[string][]float64{
			"linear_strong":     Add(target, g.Noise(2)),
			"nonlinear_squared": Map(target, func(v float64) float64 { return v * v }),
			"time_warped_lag5":  Delay(target, 5),
			"pure_noise":        g.Noise(1),
		},
	}
}
