package app

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"
	"github.com/rs/zerolog"

	"leadscope/adapters/stats/backtest"
	"leadscope/adapters/stats/cascade"
	"leadscope/domain/signal"
	"leadscope/internal/errors"
)

// ScanService runs cascade analyses and consistency backtests on behalf of
// the CLI and the HTTP API
type ScanService struct {
	engine        *cascade.Engine
	backtester    *backtest.Backtester
	logger        zerolog.Logger
	engineOptions []cascade.Option
}

// AnalyzeRequest asks for a single pair verdict
type AnalyzeRequest struct {
	Target     []float64
	Candidate  []float64
	WindowSize int                    // > 0 adds a consistency backtest
	Overrides  map[string]interface{} // per-call engine settings
}

// AnalyzeReport is the verdict for one pair
type AnalyzeReport struct {
	RunID       string           `json:"run_id"`
	Result      signal.Result    `json:"result"`
	Consistency *backtest.Report `json:"consistency,omitempty"`
	Elapsed     time.Duration    `json:"elapsed"`
}

// ScanRequest asks for a verdict on every candidate
type ScanRequest struct {
	Target     []float64
	Candidates map[string][]float64
	WindowSize int // > 0 backtests every FOUND candidate
	Overrides  map[string]interface{}
}

// ScanSummary aggregates the verdicts of a scan. Confidence is averaged per
// method only: rank correlation is bounded to [0,1] while dependence is an
// unbounded score in nats.
type ScanSummary struct {
	Candidates             int                `json:"candidates"`
	Found                  int                `json:"found"`
	ByMethod               map[string]int     `json:"by_method"`
	MeanConfidenceByMethod map[string]float64 `json:"mean_confidence_by_method"` // over FOUND results
}

// ScanReport is the outcome of a scan. Ranked lists FOUND candidates by
// cascade layer, then by descending confidence.
type ScanReport struct {
	RunID       string                      `json:"run_id"`
	StartedAt   time.Time                   `json:"started_at"`
	Elapsed     time.Duration               `json:"elapsed"`
	Methods     []signal.Method             `json:"methods"`
	Results     map[string]signal.Result    `json:"results"`
	Ranked      []string                    `json:"ranked"`
	Consistency map[string]*backtest.Report `json:"consistency,omitempty"`
	Summary     ScanSummary                 `json:"summary"`
}

// BacktestRequest asks for the rolling consistency of one pair
type BacktestRequest struct {
	Target     []float64
	Candidate  []float64
	WindowSize int
	Overrides  map[string]interface{}
}

// NewScanService creates the service. engineOptions are reapplied whenever a
// request carries overrides and a dedicated engine has to be built.
func NewScanService(
	engine *cascade.Engine,
	backtester *backtest.Backtester,
	logger zerolog.Logger,
	engineOptions ...cascade.Option,
) *ScanService {
	return &ScanService{
		engine:        engine,
		backtester:    backtester,
		logger:        logger,
		engineOptions: engineOptions,
	}
}

// Analyze runs the cascade on one pair
func (s *ScanService) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeReport, error) {
	start := time.Now()
	if err := validatePair(req.Target, req.Candidate); err != nil {
		return nil, err
	}
	engine, err := s.engineFor(req.Overrides)
	if err != nil {
		return nil, err
	}

	report := &AnalyzeReport{
		RunID:  uuid.NewString(),
		Result: engine.AnalyzePair(req.Target, req.Candidate),
	}
	if req.WindowSize > 0 {
		consistency, err := s.backtester.RollingConsistency(ctx, engine, req.Target, req.Candidate, req.WindowSize)
		if err != nil {
			return nil, err
		}
		report.Consistency = consistency
	}
	report.Elapsed = time.Since(start)

	s.logger.Info().
		Str("run_id", report.RunID).
		Str("status", string(report.Result.Status)).
		Str("method", string(report.Result.Method)).
		Dur("elapsed", report.Elapsed).
		Msg("pair analyzed")
	return report, nil
}

// Scan runs the cascade for every candidate against the target
func (s *ScanService) Scan(ctx context.Context, req ScanRequest) (*ScanReport, error) {
	startedAt := time.Now()
	if len(req.Target) == 0 {
		return nil, errors.InvalidInput("target series is empty")
	}
	if len(req.Candidates) == 0 {
		return nil, errors.InvalidInput("no candidates to scan")
	}
	for name, series := range req.Candidates {
		if len(series) != len(req.Target) {
			return nil, errors.Newf(errors.CodeInvalidInput,
				"candidate %s has %d samples, target has %d", name, len(series), len(req.Target))
		}
	}
	engine, err := s.engineFor(req.Overrides)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logger := s.logger.With().Str("run_id", runID).Logger()
	logger.Info().Int("candidates", len(req.Candidates)).Msg("scan started")

	results := engine.Scan(ctx, req.Target, req.Candidates)
	report := &ScanReport{
		RunID:     runID,
		StartedAt: startedAt,
		Methods:   engine.Methods(),
		Results:   results,
		Ranked:    rankFound(results, engine.Methods()),
		Summary:   summarize(results),
	}

	if req.WindowSize > 0 && len(report.Ranked) > 0 && ctx.Err() == nil {
		report.Consistency = make(map[string]*backtest.Report, len(report.Ranked))
		for _, name := range report.Ranked {
			consistency, err := s.backtester.RollingConsistency(ctx, engine, req.Target, req.Candidates[name], req.WindowSize)
			if err != nil {
				return nil, err
			}
			report.Consistency[name] = consistency
		}
	}

	report.Elapsed = time.Since(startedAt)
	logger.Info().
		Int("found", report.Summary.Found).
		Strs("ranked", report.Ranked).
		Dur("elapsed", report.Elapsed).
		Msg("scan completed")
	return report, nil
}

// Backtest measures how often the cascade fires across history slices
func (s *ScanService) Backtest(ctx context.Context, req BacktestRequest) (*backtest.Report, error) {
	if err := validatePair(req.Target, req.Candidate); err != nil {
		return nil, err
	}
	engine, err := s.engineFor(req.Overrides)
	if err != nil {
		return nil, err
	}
	return s.backtester.RollingConsistency(ctx, engine, req.Target, req.Candidate, req.WindowSize)
}

func (s *ScanService) engineFor(overrides map[string]interface{}) (*cascade.Engine, error) {
	if len(overrides) == 0 {
		return s.engine, nil
	}
	cfg, err := s.engine.Config().WithOverrides(overrides)
	if err != nil {
		return nil, errors.Wrap(err, "invalid engine overrides")
	}
	return cascade.New(cfg, s.engineOptions...)
}

func validatePair(target, candidate []float64) error {
	if len(target) == 0 {
		return errors.InvalidInput("target series is empty")
	}
	if len(candidate) != len(target) {
		return errors.Newf(errors.CodeInvalidInput,
			"series are not aligned: target has %d samples, candidate has %d", len(target), len(candidate))
	}
	return nil
}

func rankFound(results map[string]signal.Result, methods []signal.Method) []string {
	order := make(map[signal.Method]int, len(methods))
	for i, method := range methods {
		order[method] = i
	}

	var ranked []string
	for name, result := range results {
		if result.Found() {
			ranked = append(ranked, name)
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := results[ranked[i]], results[ranked[j]]
		if order[a.Method] != order[b.Method] {
			return order[a.Method] < order[b.Method]
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return ranked[i] < ranked[j]
	})
	return ranked
}

func summarize(results map[string]signal.Result) ScanSummary {
	summary := ScanSummary{
		Candidates:             len(results),
		ByMethod:               make(map[string]int),
		MeanConfidenceByMethod: make(map[string]float64),
	}
	confidences := make(map[string][]float64)
	for _, result := range results {
		if !result.Found() {
			continue
		}
		method := string(result.Method)
		summary.Found++
		summary.ByMethod[method]++
		confidences[method] = append(confidences[method], result.Confidence)
	}
	for method, values := range confidences {
		if mean, err := stats.Mean(values); err == nil {
			summary.MeanConfidenceByMethod[method] = mean
		}
	}
	return summary
}
