// Package temporal analyzes temporal patterns across multiple time
// scales: identity coherence, commitment rhythms, cognitive evolution,
// and activity cycles. Every analyzer is a pure function of a ledger
// window — replayable, cacheable by (start_id, end_id).
package temporal

import (
	"math"
	"sync"

	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/eventlog"
)

// Pattern is one detected temporal pattern.
type Pattern struct {
	Type        string
	Confidence  float64
	StartID     int64
	EndID       int64
	Description string
	Metrics     map[string]interface{}
	Severity    string // low, medium, high, critical
}

// Window describes the event range a Result was computed over.
type Window struct {
	StartID    int64
	EndID      int64
	EventCount int
}

// Result is one sub-analyzer's (or the orchestrator's) output for a window.
type Result struct {
	Window    Window
	Patterns  []Pattern
	Anomalies []string
	Insights  []string
	Metrics   map[string]interface{}
}

func emptyResult(start, end int64) Result {
	return Result{Window: Window{StartID: start, EndID: end}}
}

// Analyzer orchestrates the four sub-analyzers over a shared ledger,
// caching results per (start_id, end_id) window.
type Analyzer struct {
	log *eventlog.EventLog

	mu    sync.Mutex
	cache map[[2]int64]Result

	identity    *identityAnalyzer
	commitments *commitmentAnalyzer
	cognitive   *cognitiveAnalyzer
	rhythm      *rhythmAnalyzer
}

// New constructs an Analyzer bound to log.
func New(log *eventlog.EventLog) *Analyzer {
	return &Analyzer{
		log:         log,
		cache:       make(map[[2]int64]Result),
		identity:    &identityAnalyzer{log: log},
		commitments: &commitmentAnalyzer{log: log},
		cognitive:   &cognitiveAnalyzer{log: log},
		rhythm:      &rhythmAnalyzer{log: log},
	}
}

// AnalyzeWindow runs all four sub-analyzers over [start, end] and merges
// their patterns, anomalies, insights, and metrics into one Result.
func (a *Analyzer) AnalyzeWindow(start, end int64) Result {
	key := [2]int64{start, end}

	a.mu.Lock()
	if cached, ok := a.cache[key]; ok {
		a.mu.Unlock()
		return cached
	}
	a.mu.Unlock()

	events := a.log.ReadRange(start, end, 0)

	identityResult := a.identity.analyzeWindow(events, start, end)
	commitmentResult := a.commitments.analyzeWindow(events, start, end)
	cognitiveResult := a.cognitive.analyzeWindow(events, start, end)
	rhythmResult := a.rhythm.analyzeWindow(events, start, end)

	result := Result{
		Window:  Window{StartID: start, EndID: end, EventCount: len(events)},
		Metrics: map[string]interface{}{},
	}
	for _, r := range []Result{identityResult, commitmentResult, cognitiveResult, rhythmResult} {
		result.Patterns = append(result.Patterns, r.Patterns...)
		result.Anomalies = append(result.Anomalies, r.Anomalies...)
		result.Insights = append(result.Insights, r.Insights...)
	}
	result.Metrics["identity"] = identityResult.Metrics
	result.Metrics["commitments"] = commitmentResult.Metrics
	result.Metrics["cognitive"] = cognitiveResult.Metrics
	result.Metrics["rhythms"] = rhythmResult.Metrics

	a.mu.Lock()
	a.cache[key] = result
	a.mu.Unlock()

	return result
}

// GetPatterns analyzes the full ledger and groups detected patterns by
// type, optionally filtered to the given set of types.
func (a *Analyzer) GetPatterns(types []string) map[string][]Pattern {
	n := a.log.Count()
	if n == 0 {
		return nil
	}
	result := a.AnalyzeWindow(1, n)

	allow := make(map[string]bool, len(types))
	for _, t := range types {
		allow[t] = true
	}

	out := make(map[string][]Pattern)
	for _, p := range result.Patterns {
		if len(types) > 0 && !allow[p.Type] {
			continue
		}
		out[p.Type] = append(out[p.Type], p)
	}
	return out
}

// DetectAnomalies analyzes the most recent 500 events and returns
// descriptions of high/critical severity patterns at or above sensitivity,
// plus any window-level anomalies.
func (a *Analyzer) DetectAnomalies(sensitivity float64) []string {
	tail := a.log.ReadTail(500)
	if len(tail) < 50 {
		return nil
	}
	start, end := tail[0].ID, tail[len(tail)-1].ID
	result := a.AnalyzeWindow(start, end)

	var out []string
	for _, p := range result.Patterns {
		if p.Confidence >= sensitivity && (p.Severity == "high" || p.Severity == "critical") {
			out = append(out, p.Type+": "+p.Description)
		}
	}
	out = append(out, result.Anomalies...)
	return out
}

// ClearCache drops all cached window results.
func (a *Analyzer) ClearCache() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cache = make(map[[2]int64]Result)
}

func shannonEntropy(counts map[string]int, total int) float64 {
	entropy := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / float64(total)
		entropy -= p * math.Log2(p)
	}
	return entropy
}
