package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"leadscope/adapters/stats/backtest"
	"leadscope/app"
	"leadscope/domain/signal"
)

const rule = "------------------------------"

func printScanReport(w io.Writer, report *app.ScanReport) {
	fmt.Fprintf(w, "=== LEADSCOPE SCAN %s ===\n", report.RunID)
	fmt.Fprintf(w, "Layers: %s\n", joinMethods(report.Methods))
	fmt.Fprintf(w, "Candidates: %d, found: %d, elapsed: %v\n\n",
		report.Summary.Candidates, report.Summary.Found, report.Elapsed)

	names := make([]string, 0, len(report.Results))
	for name := range report.Results {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		result := report.Results[name]
		icon := "❌"
		method := "none"
		if result.Found() {
			icon = "✅"
			method = string(result.Method)
		}
		line := fmt.Sprintf("%s %s: %s | method: %s | confidence: %.4f", icon, name, result.Status, method, result.Confidence)
		if reason := result.Reason(); reason != "" {
			line += " | reason: " + reason
		}
		fmt.Fprintln(w, line)
	}

	if len(report.Ranked) == 0 {
		fmt.Fprintln(w, "\nNo actionable signal found.")
		return
	}
	fmt.Fprintln(w, "\n--- ACTIONABLE INTELLIGENCE ---")
	for _, name := range report.Ranked {
		fmt.Fprintln(w)
		printIntelligence(w, name, report.Results[name], report.Consistency[name])
	}
}

// printIntelligence explains one FOUND verdict in plain words
func printIntelligence(w io.Writer, name string, result signal.Result, consistency *backtest.Report) {
	fmt.Fprintf(w, "%s: SIGNAL DETECTED via %s\n", name, result.Method)
	fmt.Fprintf(w, "Confidence: %s\n", confidenceText(result))
	if result.SignalType != "" {
		fmt.Fprintf(w, "Direction: %s\n", result.SignalType)
	}

	if result.Method == signal.MethodElasticMatch {
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "DETECTED LAG: %d steps\n", result.Lag)
		fmt.Fprintf(w, "  -> %s\n", lagInterpretation(result.Lag))
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "ESTIMATED IMPACT: %.4f (normalized scale)\n", result.EstimatedImpact)
		fmt.Fprintf(w, "  -> %s\n", impactInterpretation(result.EstimatedImpact))
	}
	if result.Recommendation != "" {
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "RECOMMENDATION: %s\n", result.Recommendation)
		if result.Recommendation == signal.RecommendPrepare {
			fmt.Fprintf(w, "  -> watch %s; a move in it precedes the target by about %d steps\n", name, result.Lag)
		}
	}
	if consistency != nil {
		fmt.Fprintln(w, rule)
		printConsistency(w, consistency)
	}
}

func printConsistency(w io.Writer, report *backtest.Report) {
	if !report.Sufficient() {
		fmt.Fprintf(w, "Consistency: insufficient data (chunk of %d samples, window %d)\n",
			report.ChunkSize, report.WindowSize)
		return
	}
	fmt.Fprintf(w, "Consistency: %.1f%% (%d of %d windows)\n",
		report.ConsistencyScore*100, report.Hits, report.TotalWindows)
	for _, window := range report.Windows {
		method := string(window.Result.Method)
		if method == "" {
			method = "-"
		}
		fmt.Fprintf(w, "  window %d [%d,%d): %s %s\n", window.Index, window.Start, window.End, window.Result.Status, method)
	}
}

// confidenceText renders confidence on the scale of its method
func confidenceText(result signal.Result) string {
	switch result.Method {
	case signal.MethodDependence:
		return fmt.Sprintf("%.4f nats of mutual information", result.Confidence)
	case signal.MethodRankCorr:
		return fmt.Sprintf("%.1f%% (|rho|)", result.Confidence*100)
	}
	return fmt.Sprintf("%.1f%%", result.Confidence*100)
}

func lagInterpretation(lag int) string {
	switch {
	case lag > 0:
		return fmt.Sprintf("the target reacts %d steps AFTER the candidate moves", lag)
	case lag < 0:
		return fmt.Sprintf("the candidate trails the target by %d steps", -lag)
	}
	return "candidate and target move together"
}

func impactInterpretation(impact float64) string {
	switch {
	case impact > 0:
		return "the candidate runs above the target along the alignment"
	case impact < 0:
		return "the candidate runs below the target along the alignment"
	}
	return "no level difference along the alignment"
}

func joinMethods(methods []signal.Method) string {
	parts := make([]string, len(methods))
	for i, m := range methods {
		parts[i] = string(m)
	}
	return strings.Join(parts, " -> ")
}
