// Package commitment computes metrics, distributions, and temporal
// patterns of commitment open/close events. Every computation is a pure
// function of ledger state: replayable and auditable, never mutating the
// log it reads from.
package commitment

import (
	"sort"
	"time"

	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/eventlog"
)

// Metrics summarizes commitment lifecycle outcomes over a set of opens.
type Metrics struct {
	OpenCount         int
	ClosedCount       int
	StillOpen         int
	SuccessRate       float64
	AvgDurationEvents float64
	AbandonmentRate   float64
}

// CriteriaStats tracks fulfillment of a single named success criterion.
type CriteriaStats struct {
	TimesUsed       int
	TimesMet        int
	FulfillmentRate float64
}

// VelocityWindow reports open/close counts within one id window.
type VelocityWindow struct {
	StartID int64
	Opens   int
	Closes  int
}

// TrendWindow reports average outcome_score within one id window.
type TrendWindow struct {
	StartID int64
	AvgScore float64
}

type lifecycleEntry struct {
	open     eventlog.Event
	close    *eventlog.Event
	duration int64
}

// Analyzer computes commitment metrics from an EventLog.
type Analyzer struct {
	log *eventlog.EventLog
}

// New constructs an Analyzer bound to log.
func New(log *eventlog.EventLog) *Analyzer {
	return &Analyzer{log: log}
}

func cidOf(e eventlog.Event) (string, bool) {
	v, ok := e.Meta["cid"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

func outcomeScore(e eventlog.Event) float64 {
	if v, ok := e.Meta["outcome_score"]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		case int64:
			return float64(n)
		}
	}
	return 1.0 // default for legacy/unstructured closes
}

func (a *Analyzer) buildLifecycle() map[string]*lifecycleEntry {
	opens := a.log.ReadByKind(eventlog.KindCommitmentOpen, 0, false)
	closes := a.log.ReadByKind(eventlog.KindCommitmentClose, 0, false)

	lifecycle := make(map[string]*lifecycleEntry, len(opens))
	for _, ev := range opens {
		if cid, ok := cidOf(ev); ok {
			e := ev
			lifecycle[cid] = &lifecycleEntry{open: e}
		}
	}
	for _, ev := range closes {
		cid, ok := cidOf(ev)
		if !ok {
			continue
		}
		entry, exists := lifecycle[cid]
		if !exists {
			continue
		}
		e := ev
		entry.close = &e
		entry.duration = e.ID - entry.open.ID
	}
	return lifecycle
}

// ComputeMetrics returns the core commitment evolution metrics.
func (a *Analyzer) ComputeMetrics() Metrics {
	lifecycle := a.buildLifecycle()
	if len(lifecycle) == 0 {
		return Metrics{}
	}

	openCount := len(lifecycle)
	closedCount := 0
	var scores []float64
	var durations []int64
	for _, v := range lifecycle {
		if v.close == nil {
			continue
		}
		closedCount++
		scores = append(scores, outcomeScore(*v.close))
		durations = append(durations, v.duration)
	}
	stillOpen := openCount - closedCount

	successRate := avgF(scores)
	avgDuration := avgI(durations)
	abandonmentRate := float64(stillOpen) / float64(openCount)

	return Metrics{
		OpenCount:         openCount,
		ClosedCount:       closedCount,
		StillOpen:         stillOpen,
		SuccessRate:       successRate,
		AvgDurationEvents: avgDuration,
		AbandonmentRate:   abandonmentRate,
	}
}

// StaleOpenCount returns the number of commitments still open whose
// opening event is older than staleness relative to now.
func (a *Analyzer) StaleOpenCount(now time.Time, staleness time.Duration) int {
	lifecycle := a.buildLifecycle()
	count := 0
	for _, v := range lifecycle {
		if v.close != nil {
			continue
		}
		opened, err := time.Parse(eventlog.TimestampFormat, v.open.Ts)
		if err != nil {
			continue
		}
		if now.Sub(opened) >= staleness {
			count++
		}
	}
	return count
}

// OutcomeDistribution buckets closed commitments by outcome score:
// high (>=0.7), partial (>=0.3), low (<0.3).
func (a *Analyzer) OutcomeDistribution() map[string]int {
	lifecycle := a.buildLifecycle()
	dist := map[string]int{"high": 0, "partial": 0, "low": 0}
	for _, v := range lifecycle {
		if v.close == nil {
			continue
		}
		score := outcomeScore(*v.close)
		switch {
		case score >= 0.7:
			dist["high"]++
		case score >= 0.3:
			dist["partial"]++
		default:
			dist["low"]++
		}
	}
	return dist
}

// DurationDistribution buckets closed commitments by event-id duration:
// fast (<10), medium (10-50), slow (>50).
func (a *Analyzer) DurationDistribution() map[string]int {
	lifecycle := a.buildLifecycle()
	dist := map[string]int{"fast": 0, "medium": 0, "slow": 0}
	for _, v := range lifecycle {
		if v.close == nil {
			continue
		}
		switch {
		case v.duration < 10:
			dist["fast"]++
		case v.duration <= 50:
			dist["medium"]++
		default:
			dist["slow"]++
		}
	}
	return dist
}

// CriteriaAnalysis reports fulfillment rates for each named criterion
// seen across all closed commitments.
func (a *Analyzer) CriteriaAnalysis() map[string]CriteriaStats {
	lifecycle := a.buildLifecycle()
	type acc struct{ used, met int }
	stats := make(map[string]*acc)

	for _, v := range lifecycle {
		if v.close == nil {
			continue
		}
		criteriaMet, _ := v.close.Meta["criteria_met"].(map[string]interface{})
		for criterion, metVal := range criteriaMet {
			if stats[criterion] == nil {
				stats[criterion] = &acc{}
			}
			stats[criterion].used++
			if b, ok := metVal.(bool); ok && b {
				stats[criterion].met++
			}
		}
	}

	out := make(map[string]CriteriaStats, len(stats))
	for name, s := range stats {
		rate := 0.0
		if s.used > 0 {
			rate = float64(s.met) / float64(s.used)
		}
		out[name] = CriteriaStats{TimesUsed: s.used, TimesMet: s.met, FulfillmentRate: rate}
	}
	return out
}

// Velocity reports opens/closes per fixed-size id window.
func (a *Analyzer) Velocity(windowSize int64) []VelocityWindow {
	if windowSize <= 0 {
		windowSize = 50
	}
	events := a.log.ReadAll()
	if len(events) == 0 {
		return nil
	}

	var windows []VelocityWindow
	windowStart := int64(1)
	cur := VelocityWindow{StartID: windowStart}

	for _, ev := range events {
		for ev.ID >= windowStart+windowSize {
			cur.StartID = windowStart
			windows = append(windows, cur)
			windowStart += windowSize
			cur = VelocityWindow{StartID: windowStart}
		}
		switch ev.Kind {
		case eventlog.KindCommitmentOpen:
			cur.Opens++
		case eventlog.KindCommitmentClose:
			cur.Closes++
		}
	}
	if cur.Opens > 0 || cur.Closes > 0 {
		cur.StartID = windowStart
		windows = append(windows, cur)
	}
	return windows
}

// SuccessTrend reports the average outcome_score per fixed-size id window.
func (a *Analyzer) SuccessTrend(windowSize int64) []TrendWindow {
	if windowSize <= 0 {
		windowSize = 50
	}
	events := a.log.ReadAll()
	if len(events) == 0 {
		return nil
	}

	var windows []TrendWindow
	windowStart := int64(1)
	var scores []float64

	for _, ev := range events {
		for ev.ID >= windowStart+windowSize {
			if len(scores) > 0 {
				windows = append(windows, TrendWindow{StartID: windowStart, AvgScore: avgF(scores)})
			}
			windowStart += windowSize
			scores = nil
		}
		if ev.Kind == eventlog.KindCommitmentClose {
			scores = append(scores, outcomeScore(ev))
		}
	}
	if len(scores) > 0 {
		windows = append(windows, TrendWindow{StartID: windowStart, AvgScore: avgF(scores)})
	}
	return windows
}

// ByOrigin groups metrics by the origin meta field
// (user/assistant/autonomy_kernel/unknown).
func (a *Analyzer) ByOrigin() map[string]Metrics {
	opens := a.log.ReadByKind(eventlog.KindCommitmentOpen, 0, false)
	closes := a.log.ReadByKind(eventlog.KindCommitmentClose, 0, false)

	closeByCID := make(map[string]eventlog.Event, len(closes))
	for _, ev := range closes {
		if cid, ok := cidOf(ev); ok {
			closeByCID[cid] = ev
		}
	}

	type bucket struct {
		opens  []eventlog.Event
		closes []eventlog.Event
	}
	origins := make(map[string]*bucket)

	originOf := func(ev eventlog.Event) string {
		if v, ok := ev.Meta["origin"].(string); ok && v != "" {
			return v
		}
		return "unknown"
	}

	for _, ev := range opens {
		origin := originOf(ev)
		if origins[origin] == nil {
			origins[origin] = &bucket{}
		}
		origins[origin].opens = append(origins[origin].opens, ev)

		if cid, ok := cidOf(ev); ok {
			if close, found := closeByCID[cid]; found {
				origins[origin].closes = append(origins[origin].closes, close)
			}
		}
	}

	result := make(map[string]Metrics, len(origins))
	for origin, data := range origins {
		openCount := len(data.opens)
		closedCount := len(data.closes)
		stillOpen := openCount - closedCount

		var scores []float64
		for _, close := range data.closes {
			scores = append(scores, outcomeScore(close))
		}

		successRate := avgF(scores)
		abandonmentRate := 0.0
		if openCount > 0 {
			abandonmentRate = float64(stillOpen) / float64(openCount)
		}

		result[origin] = Metrics{
			OpenCount:         openCount,
			ClosedCount:       closedCount,
			StillOpen:         stillOpen,
			SuccessRate:       successRate,
			AvgDurationEvents: 0.0, // simplified for origin analysis
			AbandonmentRate:   abandonmentRate,
		}
	}
	return result
}

// SortedOrigins returns ByOrigin's keys in a stable order, for display.
func SortedOrigins(m map[string]Metrics) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func avgF(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func avgI(xs []int64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum int64
	for _, x := range xs {
		sum += x
	}
	return float64(sum) / float64(len(xs))
}
