// Package backtest measures how consistently a pair keeps producing a signal
// across disjoint slices of its history.
package backtest

import (
	"context"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"leadscope/domain/signal"
	"leadscope/internal/errors"
)

// Analyzer is anything that can judge a single aligned pair
type Analyzer interface {
	AnalyzePair(target, candidate []float64) signal.Result
}

// Status of a consistency report
type Status string

const (
	StatusOK               Status = "OK"
	StatusInsufficientData Status = "INSUFFICIENT_DATA"
)

// Config configures the backtester
type Config struct {
	Chunks  int `yaml:"chunks" json:"chunks" default:"4" validate:"gte=2"` // history is cut into this many slices
	Workers int `yaml:"workers" json:"workers" validate:"gte=0"`           // 0 means GOMAXPROCS
}

// Window is the verdict for one history slice
type Window struct {
	Index  int           `json:"index"`
	Start  int           `json:"start"` // inclusive
	End    int           `json:"end"`   // exclusive
	Result signal.Result `json:"result"`
}

// Report is the outcome of a rolling consistency run. When Status is
// INSUFFICIENT_DATA there is no score and Windows is empty.
type Report struct {
	Status           Status        `json:"status"`
	ConsistencyScore float64       `json:"consistency_score"`
	Hits             int           `json:"hits"`
	TotalWindows     int           `json:"total_windows"`
	ChunkSize        int           `json:"chunk_size"`
	WindowSize       int           `json:"window_size"`
	Note             string        `json:"note,omitempty"`
	Windows          []Window      `json:"windows,omitempty"`
	Elapsed          time.Duration `json:"elapsed"`
}

// Sufficient reports whether a score was computed
func (r *Report) Sufficient() bool {
	return r.Status == StatusOK
}

// Backtester runs rolling consistency checks
type Backtester struct {
	config Config
	logger zerolog.Logger
}

// NewBacktester creates a backtester; zero values fall back to four chunks and
// GOMAXPROCS workers.
func NewBacktester(config Config, logger zerolog.Logger) *Backtester {
	if config.Chunks < 2 {
		config.Chunks = 4
	}
	if config.Workers <= 0 {
		config.Workers = runtime.GOMAXPROCS(0)
	}
	return &Backtester{config: config, logger: logger}
}

// RollingConsistency cuts the history into equal, contiguous, non-overlapping
// chunks of len/Chunks samples, analyzes each chunk independently and reports
// the fraction that came back FOUND. Trailing samples that do not fill a
// whole chunk are ignored. Every full chunk counts, so an evenly divisible
// history yields exactly Chunks windows; a loop over start offsets bounded by
// len-chunkSize would silently drop the last one.
func (b *Backtester) RollingConsistency(
	ctx context.Context,
	analyzer Analyzer,
	target, candidate []float64,
	windowSize int,
) (*Report, error) {
	if analyzer == nil {
		return nil, errors.InvalidInput("backtest needs an analyzer")
	}
	if windowSize <= 0 {
		return nil, errors.Newf(errors.CodeInvalidInput, "window size must be positive, got %d", windowSize)
	}
	if len(target) != len(candidate) {
		return nil, errors.Newf(errors.CodeInvalidInput,
			"series are not aligned: target has %d samples, candidate has %d", len(target), len(candidate))
	}

	start := time.Now()
	chunkSize := len(target) / b.config.Chunks
	if chunkSize < windowSize {
		b.logger.Warn().
			Int("length", len(target)).
			Int("chunk_size", chunkSize).
			Int("window_size", windowSize).
			Msg("history too short for backtest")
		return &Report{
			Status:     StatusInsufficientData,
			ChunkSize:  chunkSize,
			WindowSize: windowSize,
			Note:       "data too short for backtest",
			Elapsed:    time.Since(start),
		}, nil
	}

	windows := make([]Window, b.config.Chunks)
	for i := range windows {
		windows[i] = Window{Index: i, Start: i * chunkSize, End: (i + 1) * chunkSize}
	}

	type chunkOutcome struct {
		index  int
		result signal.Result
	}
	outcomes := make(chan chunkOutcome, len(windows))
	sem := semaphore.NewWeighted(int64(b.config.Workers))

	launched := 0
	for i, w := range windows {
		if ctx.Err() != nil || sem.Acquire(ctx, 1) != nil {
			break
		}
		launched++
		go func(index int, w Window) {
			defer sem.Release(1)
			outcomes <- chunkOutcome{
				index:  index,
				result: analyzer.AnalyzePair(target[w.Start:w.End], candidate[w.Start:w.End]),
			}
		}(i, w)
	}

	for i := 0; i < launched; i++ {
		outcome := <-outcomes
		windows[outcome.index].Result = outcome.result
	}
	if launched < len(windows) {
		return nil, errors.Wrap(ctx.Err(), "backtest cancelled")
	}

	hits := 0
	for _, w := range windows {
		if w.Result.Found() {
			hits++
		}
	}

	report := &Report{
		Status:           StatusOK,
		ConsistencyScore: float64(hits) / float64(len(windows)),
		Hits:             hits,
		TotalWindows:     len(windows),
		ChunkSize:        chunkSize,
		WindowSize:       windowSize,
		Windows:          windows,
		Elapsed:          time.Since(start),
	}
	b.logger.Debug().
		Int("hits", hits).
		Int("windows", len(windows)).
		Float64("consistency", report.ConsistencyScore).
		Msg("backtest complete")
	return report, nil
}
