// Package cascade runs the detection layers in order of increasing cost and
// stops at the first positive verdict.
package cascade

import (
	"math"
	"runtime"
	"time"

	"github.com/rs/zerolog"

	"leadscope/adapters/stats/detectors"
	"leadscope/adapters/stats/preprocess"
	"leadscope/domain/signal"
	"leadscope/internal/errors"
)

// Observer receives timings and verdicts. Implementations must be safe for
// concurrent use because Scan evaluates candidates in parallel.
type Observer interface {
	ObserveStage(method signal.Method, status signal.Status, elapsed time.Duration)
	ObservePair(result signal.Result, elapsed time.Duration)
	ObserveScan(candidates, found int, elapsed time.Duration)
}

type noopObserver struct{}

func (noopObserver) ObserveStage(signal.Method, signal.Status, time.Duration) {}
func (noopObserver) ObservePair(signal.Result, time.Duration)                 {}
func (noopObserver) ObserveScan(int, int, time.Duration)                      {}

// Engine is the cascade. It is immutable after New and safe for concurrent use.
type Engine struct {
	cfg          Config
	stationarity preprocess.Stationarity
	stages       []signal.Detector
	workers      int
	logger       zerolog.Logger
	observer     Observer
}

// Option customizes an Engine
type Option func(*Engine)

// WithStages replaces the configured layers with the given detectors, in order
func WithStages(stages ...signal.Detector) Option {
	return func(e *Engine) {
		e.stages = append([]signal.Detector(nil), stages...)
	}
}

// WithLogger sets the engine logger
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithObserver attaches a metrics observer
func WithObserver(observer Observer) Option {
	return func(e *Engine) {
		if observer != nil {
			e.observer = observer
		}
	}
}

// New validates cfg and builds the engine. Invalid settings fail here, never
// during analysis.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid cascade configuration")
	}
	stationarity, err := preprocess.ParseStationarity(cfg.Stationarity)
	if err != nil {
		return nil, err
	}

	stages, err := BuildStages(cfg)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:          cfg,
		stationarity: stationarity,
		stages:       stages,
		workers:      cfg.Workers,
		logger:       zerolog.Nop(),
		observer:     noopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}

	if len(e.stages) == 0 {
		return nil, errors.ConfigInvalid("cascade needs at least one layer")
	}
	if e.workers <= 0 {
		e.workers = runtime.GOMAXPROCS(0)
	}
	return e, nil
}

// BuildStages instantiates the configured layers in cascade order
func BuildStages(cfg Config) ([]signal.Detector, error) {
	names := cfg.StageNames()
	stages := make([]signal.Detector, 0, len(names))
	for _, name := range names {
		switch name {
		case LayerRankCorr:
			stages = append(stages, detectors.NewRankCorrelation(cfg.Layer1Threshold, cfg.Layer1PValue))
		case LayerDependence:
			stages = append(stages, detectors.NewDependence(cfg.Layer2Threshold))
		case LayerElasticMatch:
			stages = append(stages, detectors.NewElasticMatch(cfg.Layer3DistThreshold, cfg.Layer3Radius))
		default:
			return nil, errors.ConfigInvalid("unknown layer: " + name)
		}
	}
	return stages, nil
}

// Config returns the settings the engine was built with
func (e *Engine) Config() Config {
	return e.cfg
}

// Methods lists the stage methods in cascade order
func (e *Engine) Methods() []signal.Method {
	methods := make([]signal.Method, len(e.stages))
	for i, stage := range e.stages {
		methods[i] = stage.Method()
	}
	return methods
}

// AnalyzePair runs the cascade for one target/candidate pair. The first FOUND
// verdict is returned unchanged; when no layer fires, the verdict of the last
// layer is returned.
func (e *Engine) AnalyzePair(target, candidate []float64) signal.Result {
	start := time.Now()

	var result signal.Result
	x, rejected := e.prepareTarget(target)
	if rejected != nil {
		result = *rejected
	} else {
		result = e.evaluate(x, candidate)
	}

	e.observer.ObservePair(result, time.Since(start))
	return result
}

// prepareTarget preprocesses the target once; a non-nil result means the
// target cannot be analyzed at all.
func (e *Engine) prepareTarget(target []float64) ([]float64, *signal.Result) {
	if !allFinite(target) {
		r := signal.Inconclusive(signal.ReasonNonFiniteInput, map[string]interface{}{
			"series": "target",
		})
		return nil, &r
	}
	x, err := preprocess.Prepare(target, !e.cfg.SkipNormalization, e.stationarity)
	if err != nil {
		e.logger.Error().Err(err).Msg("target preprocessing failed")
		r := signal.NotFound(map[string]interface{}{"error": err.Error()})
		return nil, &r
	}
	return x, nil
}

// evaluate runs the stages against an already prepared target
func (e *Engine) evaluate(x, candidate []float64) signal.Result {
	if len(x) != len(candidate) {
		e.logger.Warn().
			Int("target_length", len(x)).
			Int("candidate_length", len(candidate)).
			Msg("series are not aligned")
		return signal.Inconclusive(signal.ReasonLengthMismatch, map[string]interface{}{
			"target_length":    len(x),
			"candidate_length": len(candidate),
		})
	}
	if !allFinite(candidate) {
		return signal.Inconclusive(signal.ReasonNonFiniteInput, map[string]interface{}{
			"series": "candidate",
		})
	}

	y, err := preprocess.Prepare(candidate, !e.cfg.SkipNormalization, e.stationarity)
	if err != nil {
		e.logger.Error().Err(err).Msg("candidate preprocessing failed")
		return signal.NotFound(map[string]interface{}{"error": err.Error()})
	}

	var result signal.Result
	for _, stage := range e.stages {
		stageStart := time.Now()
		result = stage.Analyze(x, y)
		elapsed := time.Since(stageStart)

		e.observer.ObserveStage(stage.Method(), result.Status, elapsed)
		e.logger.Debug().
			Str("method", string(stage.Method())).
			Str("status", string(result.Status)).
			Float64("confidence", result.Confidence).
			Dur("elapsed", elapsed).
			Msg("stage evaluated")

		if result.Found() {
			return result
		}
	}
	return result
}

func allFinite(series []float64) bool {
	for _, v := range series {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
