package cascade

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"leadscope/domain/signal"
)

// WithWorkers bounds the number of candidates analyzed at once
func WithWorkers(workers int) Option {
	return func(e *Engine) {
		e.workers = workers
	}
}

type scanOutcome struct {
	name   string
	result signal.Result
}

// Scan analyzes every candidate against target in parallel. The returned map
// has exactly the candidate names as keys. Candidates not yet started when ctx
// is done are reported as cancelled; analyses already running complete.
func (e *Engine) Scan(ctx context.Context, target []float64, candidates map[string][]float64) map[string]signal.Result {
	start := time.Now()
	results := make(map[string]signal.Result, len(candidates))
	if len(candidates) == 0 {
		return results
	}

	names := make([]string, 0, len(candidates))
	for name := range candidates {
		names = append(names, name)
	}
	sort.Strings(names)

	x, rejected := e.prepareTarget(target)

	sem := semaphore.NewWeighted(int64(e.workers))
	outcomes := make(chan scanOutcome, len(names))
	var wg sync.WaitGroup

	for _, name := range names {
		if ctx.Err() != nil || sem.Acquire(ctx, 1) != nil {
			outcomes <- scanOutcome{name: name, result: signal.Inconclusive(signal.ReasonCancelled, nil)}
			continue
		}

		wg.Add(1)
		go func(name string, candidate []float64) {
			defer wg.Done()
			defer sem.Release(1)

			pairStart := time.Now()
			var result signal.Result
			if rejected != nil {
				result = copyResult(*rejected)
			} else {
				result = e.evaluate(x, candidate)
			}
			e.observer.ObservePair(result, time.Since(pairStart))
			outcomes <- scanOutcome{name: name, result: result}
		}(name, candidates[name])
	}

	wg.Wait()
	close(outcomes)

	found := 0
	for outcome := range outcomes {
		results[outcome.name] = outcome.result
		if outcome.result.Found() {
			found++
		}
	}

	elapsed := time.Since(start)
	e.observer.ObserveScan(len(names), found, elapsed)
	e.logger.Info().
		Int("candidates", len(names)).
		Int("found", found).
		Int("workers", e.workers).
		Dur("elapsed", elapsed).
		Msg("scan complete")
	return results
}

// copyResult gives each candidate its own metadata map
func copyResult(r signal.Result) signal.Result {
	metadata := make(map[string]interface{}, len(r.Metadata))
	for k, v := range r.Metadata {
		metadata[k] = v
	}
	r.Metadata = metadata
	return r
}
