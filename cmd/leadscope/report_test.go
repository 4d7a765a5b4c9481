package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"leadscope/adapters/stats/backtest"
	"leadscope/app"
	"leadscope/domain/signal"
)

func TestPrintIntelligence_ElasticMatch(t *testing.T) {
	var buf bytes.Buffer
	printIntelligence(&buf, "searches", signal.Result{
		Status:          signal.StatusFound,
		Method:          signal.MethodElasticMatch,
		Confidence:      0.8,
		Lag:             5,
		EstimatedImpact: -0.12,
		Recommendation:  signal.RecommendPrepare,
		SignalType:      signal.TypeParallel,
	}, &backtest.Report{Status: backtest.StatusOK, ConsistencyScore: 0.75, Hits: 3, TotalWindows: 4})

	out := buf.String()
	assert.Contains(t, out, "searches: SIGNAL DETECTED via ELASTIC_MATCH")
	assert.Contains(t, out, "Confidence: 80.0%")
	assert.Contains(t, out, "DETECTED LAG: 5 steps")
	assert.Contains(t, out, "reacts 5 steps AFTER")
	assert.Contains(t, out, "runs below the target")
	assert.Contains(t, out, "RECOMMENDATION: PREPARE")
	assert.Contains(t, out, "Consistency: 75.0% (3 of 4 windows)")
}

func TestPrintIntelligence_Dependence(t *testing.T) {
	var buf bytes.Buffer
	printIntelligence(&buf, "squared", signal.Result{
		Status:     signal.StatusFound,
		Method:     signal.MethodDependence,
		Confidence: 1.2345,
	}, &backtest.Report{Status: backtest.StatusInsufficientData, ChunkSize: 10, WindowSize: 30})

	out := buf.String()
	assert.Contains(t, out, "1.2345 nats")
	assert.NotContains(t, out, "DETECTED LAG")
	assert.NotContains(t, out, "RECOMMENDATION")
	assert.Contains(t, out, "insufficient data (chunk of 10 samples, window 30)")
}

func TestPrintScanReport_NoSignal(t *testing.T) {
	var buf bytes.Buffer
	printScanReport(&buf, &app.ScanReport{
		RunID:   "run-1",
		Methods: []signal.Method{signal.MethodRankCorr, signal.MethodDependence},
		Results: map[string]signal.Result{
			"b": signal.NotFound(nil),
			"a": signal.Inconclusive(signal.ReasonDegenerateInput, nil),
		},
		Summary: app.ScanSummary{Candidates: 2},
	})

	out := buf.String()
	assert.Contains(t, out, "Layers: RANK_CORR -> DEPENDENCE")
	assert.Contains(t, out, "❌ a: NOT_FOUND | method: none | confidence: 0.0000 | reason: degenerate_input")
	assert.Contains(t, out, "No actionable signal found.")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("❌ a")), bytes.Index(buf.Bytes(), []byte("❌ b")))
}

func TestLagInterpretation(t *testing.T) {
	assert.Contains(t, lagInterpretation(3), "AFTER")
	assert.Contains(t, lagInterpretation(-2), "trails the target by 2")
	assert.Equal(t, "candidate and target move together", lagInterpretation(0))
}
