package temporal

import (
	"sort"
	"strings"

	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/eventlog"
)

var commitmentThemeKeywords = map[string][]string{
	"learning":        {"learn", "study", "understand", "research", "read"},
	"creation":        {"create", "build", "make", "develop", "design"},
	"improvement":     {"improve", "optimize", "enhance", "refine", "better"},
	"organization":    {"organize", "plan", "structure", "arrange", "system"},
	"communication":   {"communicate", "write", "explain", "share", "discuss"},
	"problem_solving": {"solve", "fix", "resolve", "address", "handle"},
	"analysis":        {"analyze", "examine", "review", "assess", "evaluate"},
	"relationships":   {"connect", "collaborate", "support", "help", "assist"},
	"health":          {"exercise", "health", "wellness", "care", "rest"},
	"productivity":    {"complete", "finish", "achieve", "accomplish", "produce"},
}

var causalPairs = [][2]string{
	{"because", "therefore"},
	{"since", "next"},
	{"after", "then"},
	{"first", "second"},
	{"before", "after"},
}

// Cascade is a detected causal link between two commitment opens.
type Cascade struct {
	ParentID     int64
	ChildID      int64
	Relationship string
	Gap          int64
}

// Burst is an event-id span with 5+ commitment opens.
type Burst struct {
	StartID int64
	EndID   int64
}

// CommitmentTemporalMetrics summarizes commitment rhythm over a window.
type CommitmentTemporalMetrics struct {
	CreationRhythm    map[string]float64
	CompletionCycles  map[string]float64
	ThemeRecurrence   map[string]int
	CascadePatterns   []Cascade
	ClusteringScore   float64
	BurstEvents       []Burst
}

type commitmentAnalyzer struct {
	log *eventlog.EventLog
}

func extractCommitmentThemes(content string) []string {
	lower := strings.ToLower(content)
	var found []string
	for theme, keywords := range commitmentThemeKeywords {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				found = append(found, theme)
				break
			}
		}
	}
	sort.Strings(found)
	return found
}

func areCommitmentRelated(content1, content2 string) bool {
	themes1 := extractCommitmentThemes(content1)
	themes2 := extractCommitmentThemes(content2)
	set2 := make(map[string]bool, len(themes2))
	for _, t := range themes2 {
		set2[t] = true
	}
	for _, t := range themes1 {
		if set2[t] {
			return true
		}
	}

	c1, c2 := strings.ToLower(content1), strings.ToLower(content2)
	for _, pair := range causalPairs {
		if strings.Contains(c1, pair[0]) && strings.Contains(c2, pair[1]) {
			return true
		}
	}
	return false
}

func sortedByID(events []eventlog.Event) []eventlog.Event {
	sorted := append([]eventlog.Event(nil), events...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return sorted
}

func (a *commitmentAnalyzer) analyzeCreationRhythms(opens []eventlog.Event) map[string]float64 {
	if len(opens) == 0 {
		return map[string]float64{}
	}
	total := len(opens)
	const segments = 4
	out := make(map[string]float64, segments+1)
	segSize := float64(total) / float64(segments)
	for i := 0; i < segments; i++ {
		start := int(float64(i) * segSize)
		end := int(float64(i+1) * segSize)
		if end > total {
			end = total
		}
		if start > end {
			start = end
		}
		out["segment_"+itoa(int64(i+1))] = float64(end-start) / float64(total)
	}
	out["creation_rate"] = float64(total)
	return out
}

func commitmentOutcomeScore(e eventlog.Event) float64 {
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
	return 1.0
}

func (a *commitmentAnalyzer) analyzeCompletionCycles(closes []eventlog.Event) map[string]float64 {
	if len(closes) == 0 {
		return map[string]float64{}
	}

	var scores []float64
	for _, c := range closes {
		if cid, ok := cidOf(c); ok && cid != "" {
			scores = append(scores, commitmentOutcomeScore(c))
		}
	}
	if len(scores) == 0 {
		return map[string]float64{}
	}

	cycles := map[string]float64{
		"overall_success": sumF(scores) / float64(len(scores)),
	}
	_, stdev := meanStdev(scores)
	cycles["success_variance"] = stdev

	if len(scores) >= 3 {
		third := len(scores) / 3
		firstThird := sumF(scores[:third]) / float64(third)
		lastThird := sumF(scores[len(scores)-third:]) / float64(third)
		cycles["success_trend"] = lastThird - firstThird
	} else {
		cycles["success_trend"] = 0.0
	}
	return cycles
}

func cidOf(e eventlog.Event) (string, bool) {
	v, ok := e.Meta["cid"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

func (a *commitmentAnalyzer) analyzeThemeRecurrence(opens []eventlog.Event) map[string]int {
	counts := make(map[string]int)
	for _, e := range opens {
		for _, theme := range extractCommitmentThemes(e.Content) {
			counts[theme]++
		}
	}
	return counts
}

func (a *commitmentAnalyzer) detectCascades(opens []eventlog.Event) []Cascade {
	sorted := sortedByID(opens)
	var cascades []Cascade

	for i, open := range sorted {
		eventID := open.ID
		hi := i + 5
		if hi > len(sorted) {
			hi = len(sorted)
		}
		lo := i + 1
		if lo > hi {
			continue
		}
		var subsequent []eventlog.Event
		for _, e := range sorted[lo:hi] {
			if e.ID-eventID <= 10 {
				subsequent = append(subsequent, e)
			}
		}
		if len(subsequent) == 0 {
			continue
		}
		content1 := strings.ToLower(open.Content)
		for _, sub := range subsequent {
			content2 := strings.ToLower(sub.Content)
			if areCommitmentRelated(content1, content2) {
				cascades = append(cascades, Cascade{
					ParentID:     eventID,
					ChildID:      sub.ID,
					Relationship: "causal",
					Gap:          sub.ID - eventID,
				})
				break
			}
		}
	}
	return cascades
}

func (a *commitmentAnalyzer) computeClusteringScore(opens []eventlog.Event) float64 {
	if len(opens) < 2 {
		return 0
	}
	sorted := sortedByID(opens)
	var gaps []float64
	for i := 1; i < len(sorted); i++ {
		gaps = append(gaps, float64(sorted[i].ID-sorted[i-1].ID))
	}
	if len(gaps) == 0 {
		return 0
	}
	avgGap := sumF(gaps) / float64(len(gaps))
	maxGap := gaps[0]
	for _, g := range gaps {
		if g > maxGap {
			maxGap = g
		}
	}
	if maxGap <= 0 {
		return 0
	}
	return 1.0 - (avgGap / maxGap)
}

func (a *commitmentAnalyzer) detectBursts(opens []eventlog.Event) []Burst {
	if len(opens) < 3 {
		return nil
	}
	sorted := sortedByID(opens)
	const windowSize = 5
	const threshold = 10

	var bursts []Burst
	for i := 0; i <= len(sorted)-windowSize; i++ {
		windowStart := sorted[i].ID
		windowEnd := sorted[i+windowSize-1].ID
		if windowEnd-windowStart <= threshold {
			bursts = append(bursts, Burst{StartID: windowStart, EndID: windowEnd})
		}
	}
	return bursts
}

func (a *commitmentAnalyzer) computeTemporalMetrics(events []eventlog.Event) CommitmentTemporalMetrics {
	var opens, closes []eventlog.Event
	for _, e := range events {
		switch e.Kind {
		case eventlog.KindCommitmentOpen:
			opens = append(opens, e)
		case eventlog.KindCommitmentClose:
			closes = append(closes, e)
		}
	}

	return CommitmentTemporalMetrics{
		CreationRhythm:   a.analyzeCreationRhythms(opens),
		CompletionCycles: a.analyzeCompletionCycles(closes),
		ThemeRecurrence:  a.analyzeThemeRecurrence(opens),
		CascadePatterns:  a.detectCascades(opens),
		ClusteringScore:  a.computeClusteringScore(opens),
		BurstEvents:      a.detectBursts(opens),
	}
}

func (a *commitmentAnalyzer) detectPatterns(metrics CommitmentTemporalMetrics, start, end int64) []Pattern {
	var patterns []Pattern

	if metrics.ClusteringScore > 0.7 {
		patterns = append(patterns, Pattern{
			Type:        "commitment_clustering",
			Confidence:  metrics.ClusteringScore,
			StartID:     start,
			EndID:       end,
			Description: "high commitment clustering detected",
			Metrics:     map[string]interface{}{"clustering_score": metrics.ClusteringScore},
			Severity:    "medium",
		})
	}

	if len(metrics.BurstEvents) > 0 {
		patterns = append(patterns, Pattern{
			Type:        "commitment_burst",
			Confidence:  minF(float64(len(metrics.BurstEvents))*0.2, 1.0),
			StartID:     start,
			EndID:       end,
			Description: "detected commitment creation bursts",
			Metrics:     map[string]interface{}{"burst_count": len(metrics.BurstEvents)},
			Severity:    "medium",
		})
	}

	var topTheme string
	topCount := 0
	recurringCount := 0
	for theme, count := range metrics.ThemeRecurrence {
		if count >= 3 {
			recurringCount++
			if count > topCount {
				topCount = count
				topTheme = theme
			}
		}
	}
	if recurringCount > 0 {
		patterns = append(patterns, Pattern{
			Type:        "recurring_theme",
			Confidence:  float64(topCount) / float64(len(metrics.ThemeRecurrence)),
			StartID:     start,
			EndID:       end,
			Description: "recurring commitment theme: " + topTheme,
			Metrics:     map[string]interface{}{"theme": topTheme, "count": topCount},
			Severity:    "low",
		})
	}

	if trend, ok := metrics.CompletionCycles["success_trend"]; ok && abs(trend) > 0.2 {
		dir := "improving"
		severity := "low"
		if trend <= 0 {
			dir = "declining"
			severity = "medium"
		}
		patterns = append(patterns, Pattern{
			Type:        "success_cycle",
			Confidence:  minF(abs(trend)*2, 1.0),
			StartID:     start,
			EndID:       end,
			Description: dir + " commitment success trend",
			Metrics:     map[string]interface{}{"trend": trend, "direction": dir},
			Severity:    severity,
		})
	}

	return patterns
}

func (a *commitmentAnalyzer) detectAnomalies(metrics CommitmentTemporalMetrics) []string {
	var out []string
	if metrics.ClusteringScore > 0.9 {
		out = append(out, "extreme commitment clustering detected")
	}
	if rate, ok := metrics.CompletionCycles["overall_success"]; ok {
		if rate < 0.1 {
			out = append(out, "critical commitment failure rate")
		} else if rate < 0.3 {
			out = append(out, "very low commitment success rate")
		}
	}
	if len(metrics.CascadePatterns) > 5 {
		out = append(out, "high commitment cascade complexity")
	}
	return out
}

func (a *commitmentAnalyzer) generateInsights(metrics CommitmentTemporalMetrics, patterns []Pattern) []string {
	var out []string
	switch {
	case metrics.ClusteringScore > 0.6:
		out = append(out, "commitments tend to be created in clustered bursts rather than evenly distributed")
	case metrics.ClusteringScore < 0.3:
		out = append(out, "commitments are created with good temporal distribution")
	}

	if len(metrics.ThemeRecurrence) > 0 {
		type kv struct {
			k string
			v int
		}
		pairs := make([]kv, 0, len(metrics.ThemeRecurrence))
		for k, v := range metrics.ThemeRecurrence {
			pairs = append(pairs, kv{k, v})
		}
		sort.Slice(pairs, func(i, j int) bool { return pairs[i].v > pairs[j].v })
		limit := 3
		if len(pairs) < limit {
			limit = len(pairs)
		}
		names := make([]string, limit)
		for i := 0; i < limit; i++ {
			names[i] = pairs[i].k
		}
		out = append(out, "primary commitment themes: "+strings.Join(names, ", "))
	}

	if trend, ok := metrics.CompletionCycles["success_trend"]; ok {
		if trend > 0.1 {
			out = append(out, "commitment execution is improving over time")
		} else if trend < -0.1 {
			out = append(out, "commitment execution quality is declining")
		}
	}

	if len(metrics.CascadePatterns) > 0 {
		out = append(out, "detected commitment dependency chains")
	}
	if len(metrics.BurstEvents) > 0 {
		out = append(out, "periods of high commitment creation activity detected")
	}

	for _, p := range patterns {
		if p.Type == "recurring_theme" {
			out = append(out, "consistent focus on a recurring commitment theme")
		} else if p.Type == "success_cycle" && p.Metrics["direction"] == "improving" {
			out = append(out, "positive development in commitment execution capability")
		}
	}
	return out
}

func (a *commitmentAnalyzer) analyzeWindow(events []eventlog.Event, start, end int64) Result {
	var commitmentEvents []eventlog.Event
	for _, e := range events {
		if e.Kind == eventlog.KindCommitmentOpen || e.Kind == eventlog.KindCommitmentClose {
			commitmentEvents = append(commitmentEvents, e)
		}
	}
	if len(commitmentEvents) == 0 {
		return emptyResult(start, end)
	}

	metrics := a.computeTemporalMetrics(commitmentEvents)
	patterns := a.detectPatterns(metrics, start, end)
	anomalies := a.detectAnomalies(metrics)
	insights := a.generateInsights(metrics, patterns)

	return Result{
		Window:    Window{StartID: start, EndID: end, EventCount: len(commitmentEvents)},
		Patterns:  patterns,
		Anomalies: anomalies,
		Insights:  insights,
		Metrics: map[string]interface{}{
			"creation_rhythm":   metrics.CreationRhythm,
			"completion_cycles": metrics.CompletionCycles,
			"theme_recurrence":  metrics.ThemeRecurrence,
			"cascade_patterns":  metrics.CascadePatterns,
			"clustering_score":  metrics.ClusteringScore,
			"burst_events":      metrics.BurstEvents,
		},
	}
}
