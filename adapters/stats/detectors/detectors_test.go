package detectors

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadscope/adapters/stats/preprocess"
	"leadscope/domain/signal"
	"leadscope/internal/testkit"
)

func normalized(t *testing.T, series []float64) []float64 {
	t.Helper()
	out, err := preprocess.Prepare(series, true, preprocess.StationarityNone)
	require.NoError(t, err)
	return out
}

func allLayers() []signal.Detector {
	return []signal.Detector{
		NewRankCorrelation(0.7, 0.05),
		NewDependence(0.3),
		NewElasticMatch(0.2, 5),
	}
}

func assertNotFoundInvariant(t *testing.T, r signal.Result) {
	t.Helper()
	assert.Equal(t, signal.StatusNotFound, r.Status)
	assert.Equal(t, signal.MethodNone, r.Method)
	assert.Equal(t, signal.TypeNone, r.SignalType)
	assert.Zero(t, r.Confidence)
}

func TestRank_AveragesTies(t *testing.T) {
	assert.Equal(t, []float64{1, 2.5, 2.5, 4}, rank([]float64{1, 3, 3, 7}))
	assert.Equal(t, []float64{3, 1, 2}, rank([]float64{9, -1, 4}))
	assert.Equal(t, []float64{2, 2, 2}, rank([]float64{5, 5, 5}))
	assert.Empty(t, rank(nil))
}

func TestRankCorrelation_SelfIsParallel(t *testing.T) {
	x := normalized(t, testkit.NewSeriesGenerator(testkit.DefaultSeriesConfig()).RandomWalk(0.2))

	r := NewRankCorrelation(0.7, 0.05).Analyze(x, x)

	require.Equal(t, signal.StatusFound, r.Status)
	assert.Equal(t, signal.MethodRankCorr, r.Method)
	assert.Equal(t, signal.TypeParallel, r.SignalType)
	assert.InDelta(t, 1.0, r.Confidence, 1e-9)
	assert.Equal(t, 0, r.Lag)
	assert.InDelta(t, 0.0, r.Metadata["p_value"], 1e-12)
}

func TestRankCorrelation_NegatedIsInverse(t *testing.T) {
	x := testkit.NewSeriesGenerator(testkit.DefaultSeriesConfig()).RandomWalk(0.2)
	neg := testkit.Map(x, func(v float64) float64 { return -v })

	r := NewRankCorrelation(0.7, 0.05).Analyze(normalized(t, x), normalized(t, neg))

	require.Equal(t, signal.StatusFound, r.Status)
	assert.Equal(t, signal.TypeInverse, r.SignalType)
	assert.InDelta(t, 1.0, r.Confidence, 1e-9)
	assert.InDelta(t, -1.0, r.Metadata["correlation"], 1e-9)
}

func TestRankCorrelation_MonotoneNonLinearPasses(t *testing.T) {
	x := testkit.Ramp(60, 0.1, 5)
	y := testkit.Map(x, math.Exp)

	r := NewRankCorrelation(0.7, 0.05).Analyze(x, y)
	require.True(t, r.Found())
	assert.InDelta(t, 1.0, r.Confidence, 1e-9)
}

func TestRankCorrelation_BelowThresholdCarriesDiagnostics(t *testing.T) {
	x := testkit.Ramp(201, -1, 1)
	y := testkit.Map(x, func(v float64) float64 { return v * v })

	r := NewRankCorrelation(0.7, 0.05).Analyze(x, y)

	assertNotFoundInvariant(t, r)
	assert.Empty(t, r.Reason())
	assert.Contains(t, r.Metadata, "correlation")
	assert.Contains(t, r.Metadata, "p_value")
	assert.Less(t, math.Abs(r.Metadata["correlation"].(float64)), 0.1)
}

func TestRankCorrelation_StrictPValue(t *testing.T) {
	x := testkit.NewSeriesGenerator(testkit.DefaultSeriesConfig()).RandomWalk(0.2)

	// no p-value can be strictly below zero
	r := NewRankCorrelation(0.0, 0.0).Analyze(x, x)
	assertNotFoundInvariant(t, r)
}

func TestRankCorrelation_TooShort(t *testing.T) {
	r := NewRankCorrelation(0.7, 0.05).Analyze([]float64{1, 2}, []float64{2, 1})
	assertNotFoundInvariant(t, r)
	assert.Equal(t, signal.ReasonInsufficientData, r.Reason())
}

func TestDependence_DetectsUShape(t *testing.T) {
	x := testkit.Ramp(201, -1, 1)
	y := testkit.Map(x, func(v float64) float64 { return v * v })

	r := NewDependence(0.3).Analyze(normalized(t, x), normalized(t, y))

	require.Equal(t, signal.StatusFound, r.Status)
	assert.Equal(t, signal.MethodDependence, r.Method)
	assert.Equal(t, signal.TypeParallel, r.SignalType)
	assert.Equal(t, 0, r.Lag)
	assert.Greater(t, r.Confidence, 0.3)
	assert.Equal(t, r.Confidence, r.Metadata["dependence_score"])
	assert.Equal(t, DefaultNeighbors, r.Metadata["k_neighbors"])
}

func TestDependence_IndependentNoiseIsNotFound(t *testing.T) {
	x := testkit.NewSeriesGenerator(testkit.SeriesGeneratorConfig{Length: 200, Seed: 1}).Noise(1)
	y := testkit.NewSeriesGenerator(testkit.SeriesGeneratorConfig{Length: 200, Seed: 2}).Noise(1)

	r := NewDependence(0.3).Analyze(x, y)

	assertNotFoundInvariant(t, r)
	score := r.Metadata["dependence_score"].(float64)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.Less(t, score, 0.3)
}

func TestDependence_Deterministic(t *testing.T) {
	g := testkit.NewSeriesGenerator(testkit.DefaultSeriesConfig())
	x := g.RandomWalk(0)
	y := testkit.Add(x, g.Noise(0.5))

	d := NewDependence(0.3)
	assert.Equal(t, d.Analyze(x, y), d.Analyze(x, y))
}

func TestKSG_ScaleInvariant(t *testing.T) {
	g := testkit.NewSeriesGenerator(testkit.DefaultSeriesConfig())
	x := g.RandomWalk(0)
	y := testkit.Add(x, g.Noise(1))
	// a power of two keeps the rescaling exact
	scaled := testkit.Map(y, func(v float64) float64 { return 1024 * v })

	assert.Equal(t,
		ksgMutualInformation(x, y, DefaultNeighbors),
		ksgMutualInformation(x, scaled, DefaultNeighbors))
}

func TestElasticMatch_RecoversForwardLag(t *testing.T) {
	g := testkit.NewSeriesGenerator(testkit.SeriesGeneratorConfig{Length: 120, Seed: 7})
	x := normalized(t, g.RandomWalk(0))
	y := testkit.Roll(x, 3)

	r := NewElasticMatch(0.2, 5).Analyze(x, y)

	require.Equal(t, signal.StatusFound, r.Status)
	assert.Equal(t, signal.MethodElasticMatch, r.Method)
	assert.Equal(t, signal.TypeParallel, r.SignalType)
	assert.InDelta(t, 3, r.Lag, 1)
	assert.Greater(t, r.Lag, 0)
	assert.Equal(t, signal.RecommendPrepare, r.Recommendation)
	assert.GreaterOrEqual(t, r.Confidence, 0.0)
	assert.LessOrEqual(t, r.Confidence, 1.0)
	assert.LessOrEqual(t, r.Metadata["normalized_distance"], 0.2)
}

func TestElasticMatch_BackwardLagWaits(t *testing.T) {
	g := testkit.NewSeriesGenerator(testkit.SeriesGeneratorConfig{Length: 120, Seed: 7})
	x := normalized(t, g.RandomWalk(0))
	y := testkit.Roll(x, -3)

	r := NewElasticMatch(0.2, 5).Analyze(x, y)

	require.Equal(t, signal.StatusFound, r.Status)
	assert.InDelta(t, -3, r.Lag, 1)
	assert.Less(t, r.Lag, 0)
	assert.Equal(t, signal.RecommendWait, r.Recommendation)
}

func TestElasticMatch_IdenticalSeries(t *testing.T) {
	x := normalized(t, testkit.Sine(50, 12, 1))

	r := NewElasticMatch(0.2, 5).Analyze(x, x)

	require.True(t, r.Found())
	assert.Equal(t, 0, r.Lag)
	assert.InDelta(t, 1.0, r.Confidence, 1e-12)
	assert.InDelta(t, 0.0, r.EstimatedImpact, 1e-12)
	assert.Equal(t, signal.RecommendWait, r.Recommendation)
	assert.Equal(t, 50, r.Metadata["path_length"])
}

func TestElasticMatch_RegimeVersusNoise(t *testing.T) {
	x := testkit.NewSeriesGenerator(testkit.SeriesGeneratorConfig{Length: 100, Seed: 11}).Regime(0, 1, 0.01)
	y := testkit.NewSeriesGenerator(testkit.SeriesGeneratorConfig{Length: 100, Seed: 12}).Noise(1)

	r := NewElasticMatch(0.2, 5).Analyze(normalized(t, x), normalized(t, y))

	assertNotFoundInvariant(t, r)
	assert.Greater(t, r.Metadata["normalized_distance"], 0.2)
}

func TestLayers_ConstantTargetIsNotFound(t *testing.T) {
	constant := testkit.Constant(80, 4.2)
	g := testkit.NewSeriesGenerator(testkit.SeriesGeneratorConfig{Length: 80, Seed: 3})
	others := map[string][]float64{
		"walk":     g.RandomWalk(0.1),
		"noise":    g.Noise(1),
		"constant": testkit.Constant(80, 4.2),
		"zeros":    testkit.Constant(80, 0),
	}

	for _, layer := range allLayers() {
		for name, y := range others {
			t.Run(string(layer.Method())+"/"+name, func(t *testing.T) {
				var r signal.Result
				require.NotPanics(t, func() { r = layer.Analyze(constant, y) })
				assertNotFoundInvariant(t, r)
				assert.Equal(t, signal.ReasonDegenerateInput, r.Reason())

				require.NotPanics(t, func() { r = layer.Analyze(normalized(t, constant), normalized(t, y)) })
				assertNotFoundInvariant(t, r)
			})
		}
	}
}

func TestLayers_RejectNonFiniteAndMismatch(t *testing.T) {
	x := testkit.Ramp(30, 0, 1)
	withNaN := testkit.Ramp(30, 0, 1)
	withNaN[10] = math.NaN()

	for _, layer := range allLayers() {
		r := layer.Analyze(x, withNaN)
		assertNotFoundInvariant(t, r)
		assert.Equal(t, signal.ReasonNonFiniteInput, r.Reason())

		r = layer.Analyze(x, x[:20])
		assertNotFoundInvariant(t, r)
		assert.Equal(t, signal.ReasonLengthMismatch, r.Reason())

		r = layer.Analyze(nil, nil)
		assertNotFoundInvariant(t, r)
	}
}

func TestLayers_DoNotMutateInputs(t *testing.T) {
	g := testkit.NewSeriesGenerator(testkit.DefaultSeriesConfig())
	x := g.RandomWalk(0)
	y := testkit.Roll(x, 2)
	xCopy := append([]float64(nil), x...)
	yCopy := append([]float64(nil), y...)

	for _, layer := range allLayers() {
		layer.Analyze(x, y)
	}
	assert.Equal(t, xCopy, x)
	assert.Equal(t, yCopy, y)
}
