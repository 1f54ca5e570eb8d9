package temporal

import (
	"math"
	"sort"

	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/eventlog"
)

var rhythmKinds = map[eventlog.Kind]bool{
	eventlog.KindUserMessage:        true,
	eventlog.KindAssistantMessage:   true,
	eventlog.KindReflection:         true,
	eventlog.KindCommitmentOpen:     true,
	eventlog.KindCommitmentClose:    true,
	eventlog.KindRetrievalSelection: true,
	eventlog.KindConceptDefine:      true,
	eventlog.KindConceptBindEvent:   true,
}

var intensityWeights = map[eventlog.Kind]float64{
	eventlog.KindUserMessage:        1.0,
	eventlog.KindAssistantMessage:   1.0,
	eventlog.KindReflection:         2.0,
	eventlog.KindCommitmentOpen:     1.5,
	eventlog.KindCommitmentClose:    1.5,
	eventlog.KindRetrievalSelection: 2.0,
	eventlog.KindConceptDefine:      2.5,
	eventlog.KindConceptBindEvent:   2.0,
}

// EngagementPeriod is one sliding-window activity classification.
type EngagementPeriod struct {
	StartEvent int64
	EndEvent   int64
	Intensity  float64
	PeriodType string // high_engagement, medium_engagement, low_engagement
}

// RhythmMetrics summarizes activity cycles and predictability.
type RhythmMetrics struct {
	DailyCycle         map[string]float64
	WeeklyCycle        map[string]float64
	EngagementPeriods  []EngagementPeriod
	RetrievalPatterns  map[string]float64
	PredictabilityScore float64
	EntropyScore       float64
}

type rhythmAnalyzer struct {
	log *eventlog.EventLog
}

func activityIntensity(events []eventlog.Event) float64 {
	if len(events) == 0 {
		return 0
	}
	total := 0.0
	for _, e := range events {
		score, ok := intensityWeights[e.Kind]
		if !ok {
			score = 1.0
		}
		contentLen := float64(len(e.Content)) / 100.0
		total += score + contentLen*0.1
	}
	return total / float64(len(events))
}

func (r *rhythmAnalyzer) identifyEngagementPeriods(events []eventlog.Event) []EngagementPeriod {
	if len(events) < 10 {
		return nil
	}
	windowSize := len(events) / 10
	if windowSize < 5 {
		windowSize = 5
	}
	if windowSize > len(events) {
		return nil
	}

	n := len(events) - windowSize + 1
	intensities := make([]float64, n)
	for i := 0; i < n; i++ {
		intensities[i] = activityIntensity(events[i : i+windowSize])
	}

	sorted := append([]float64(nil), intensities...)
	sort.Float64s(sorted)
	m := len(sorted)
	hi := sorted[clampIdx(int(0.75*float64(m-1)), m)]
	lo := sorted[clampIdx(int(0.25*float64(m-1)), m)]

	periods := make([]EngagementPeriod, 0, n)
	for i := 0; i < n; i++ {
		intensity := intensities[i]
		periodType := "medium_engagement"
		switch {
		case intensity >= hi:
			periodType = "high_engagement"
		case intensity <= lo:
			periodType = "low_engagement"
		}
		periods = append(periods, EngagementPeriod{
			StartEvent: events[i].ID,
			EndEvent:   events[i+windowSize-1].ID,
			Intensity:  intensity,
			PeriodType: periodType,
		})
	}
	return periods
}

func clampIdx(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func (r *rhythmAnalyzer) analyzeRetrievalPatterns(events []eventlog.Event) map[string]float64 {
	var retrievals []eventlog.Event
	for _, e := range events {
		if e.Kind == eventlog.KindRetrievalSelection {
			retrievals = append(retrievals, e)
		}
	}
	if len(retrievals) == 0 {
		return map[string]float64{"retrieval_frequency": 0}
	}

	out := map[string]float64{
		"retrieval_frequency": float64(len(retrievals)) / float64(maxI(len(events), 1)),
	}
	if len(retrievals) >= 2 {
		ids := make([]int64, len(retrievals))
		for i, e := range retrievals {
			ids[i] = e.ID
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		var gaps []float64
		for i := 1; i < len(ids); i++ {
			gaps = append(gaps, float64(ids[i]-ids[i-1]))
		}
		mean, stdev := meanStdev(gaps)
		out["avg_retrieval_gap"] = mean
		out["retrieval_regularity"] = 1.0 / (stdev + 1)
	}
	return out
}

func computePredictability(events []eventlog.Event) float64 {
	if len(events) < 4 {
		return 0
	}
	counts := make(map[string]int)
	for _, e := range events {
		counts[string(e.Kind)]++
	}
	entropy := shannonEntropy(counts, len(events))
	maxEntropy := math.Log2(float64(len(counts)))
	if maxEntropy <= 0 {
		return 1.0
	}
	return 1.0 - entropy/maxEntropy
}

func computeIntervalEntropy(events []eventlog.Event) float64 {
	if len(events) < 2 {
		return 0
	}
	sorted := append([]eventlog.Event(nil), events...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	counts := make(map[int64]int)
	n := 0
	for i := 1; i < len(sorted); i++ {
		counts[sorted[i].ID-sorted[i-1].ID]++
		n++
	}
	if n == 0 {
		return 0
	}
	strCounts := make(map[string]int, len(counts))
	for k, v := range counts {
		strCounts[itoa(k)] = v
	}
	return shannonEntropy(strCounts, n)
}

func (r *rhythmAnalyzer) analyzeDailyCycle(events []eventlog.Event) map[string]float64 {
	return segmentedIntensity(events, 4, "segment_")
}

func (r *rhythmAnalyzer) analyzeWeeklyCycle(events []eventlog.Event) map[string]float64 {
	if len(events) < 7 {
		return map[string]float64{"insufficient_data": 0}
	}
	return segmentedIntensity(events, 7, "day_")
}

func segmentedIntensity(events []eventlog.Event, segments int, prefix string) map[string]float64 {
	out := make(map[string]float64, segments)
	segSize := float64(len(events)) / float64(segments)
	for i := 0; i < segments; i++ {
		start := int(float64(i) * segSize)
		end := int(float64(i+1) * segSize)
		if end > len(events) {
			end = len(events)
		}
		if start > end {
			start = end
		}
		out[prefix+itoa(int64(i+1))] = activityIntensity(events[start:end])
	}
	return out
}

func (r *rhythmAnalyzer) detectPatterns(metrics RhythmMetrics, start, end int64) []Pattern {
	var patterns []Pattern

	if metrics.PredictabilityScore > 0.7 {
		patterns = append(patterns, Pattern{
			Type:        "high_predictability",
			Confidence:  metrics.PredictabilityScore,
			StartID:     start,
			EndID:       end,
			Description: "highly predictable activity patterns",
			Metrics:     map[string]interface{}{"predictability": metrics.PredictabilityScore},
			Severity:    "low",
		})
		if metrics.EntropyScore < 1.0 {
			patterns = append(patterns, Pattern{
				Type:        "high_regularity",
				Confidence:  1.0 - metrics.EntropyScore/3.0,
				StartID:     start,
				EndID:       end,
				Description: "high regularity in activity patterns",
				Metrics:     map[string]interface{}{"entropy": metrics.EntropyScore},
				Severity:    "low",
			})
		}
	}

	if len(metrics.DailyCycle) >= 4 {
		values := dailyValues(metrics.DailyCycle)
		mean, stdev := meanStdev(values)
		if mean > 0 && stdev > mean*0.3 {
			patterns = append(patterns, Pattern{
				Type:        "daily_rhythm",
				Confidence:  minF(stdev/mean, 1.0),
				StartID:     start,
				EndID:       end,
				Description: "strong daily rhythm variance",
				Metrics:     map[string]interface{}{"daily_variance": stdev, "daily_mean": mean},
				Severity:    "low",
			})
		}
	}

	highCount := 0
	for _, p := range metrics.EngagementPeriods {
		if p.PeriodType == "high_engagement" {
			highCount++
		}
	}
	if highCount > 0 {
		total := maxI(len(metrics.EngagementPeriods), 1)
		patterns = append(patterns, Pattern{
			Type:        "engagement_periods",
			Confidence:  float64(highCount) / float64(total),
			StartID:     start,
			EndID:       end,
			Description: "identified high engagement periods",
			Metrics:     map[string]interface{}{"high_engagement_count": highCount, "total_periods": total},
			Severity:    "medium",
		})
	}

	return patterns
}

func dailyValues(cycle map[string]float64) []float64 {
	out := make([]float64, 0, len(cycle))
	for _, v := range cycle {
		out = append(out, v)
	}
	return out
}

func (r *rhythmAnalyzer) detectAnomalies(metrics RhythmMetrics) []string {
	var out []string
	if metrics.PredictabilityScore < 0.3 {
		out = append(out, "very low pattern predictability")
	}
	if metrics.EntropyScore > 3.0 {
		out = append(out, "high entropy in activity patterns")
	}
	if freq, ok := metrics.RetrievalPatterns["retrieval_frequency"]; ok && freq > 0.5 {
		out = append(out, "excessive memory retrieval")
	}
	return out
}

func (r *rhythmAnalyzer) generateInsights(metrics RhythmMetrics, patterns []Pattern) []string {
	var out []string

	switch {
	case metrics.PredictabilityScore > 0.8:
		out = append(out, "highly regular and predictable activity patterns")
	case metrics.PredictabilityScore < 0.4:
		out = append(out, "irregular and unpredictable activity patterns")
	default:
		out = append(out, "moderately regular activity patterns")
	}

	if len(metrics.DailyCycle) >= 4 {
		values := dailyValues(metrics.DailyCycle)
		maxV, minV := values[0], values[0]
		for _, v := range values {
			if v > maxV {
				maxV = v
			}
			if v < minV {
				minV = v
			}
		}
		if maxV > minV*2 {
			out = append(out, "strong daily activity variations - consider workload balancing")
		}
	}

	if _, insufficient := metrics.WeeklyCycle["insufficient_data"]; !insufficient && len(metrics.WeeklyCycle) >= 7 {
		out = append(out, "weekly activity patterns detected")
	}

	if len(metrics.EngagementPeriods) > 0 {
		highCount := 0
		for _, p := range metrics.EngagementPeriods {
			if p.PeriodType == "high_engagement" {
				highCount++
			}
		}
		total := len(metrics.EngagementPeriods)
		switch {
		case float64(highCount)/float64(total) > 0.3:
			out = append(out, "multiple periods of high cognitive engagement detected")
		case highCount == 0:
			out = append(out, "consistent engagement without distinct high-intensity periods")
		}
	}

	if freq, ok := metrics.RetrievalPatterns["retrieval_frequency"]; ok {
		switch {
		case freq > 0.3:
			out = append(out, "active memory retrieval and access patterns")
		case freq < 0.1:
			out = append(out, "limited memory retrieval activity")
		}
	}

	for _, p := range patterns {
		switch p.Type {
		case "high_regularity":
			out = append(out, "consistent behavioral patterns support reliable routines")
		case "daily_rhythm":
			out = append(out, "daily rhythm patterns suggest good time-awareness")
		}
	}

	return out
}

func (r *rhythmAnalyzer) analyzeWindow(events []eventlog.Event, start, end int64) Result {
	var rhythmEvents []eventlog.Event
	for _, e := range events {
		if rhythmKinds[e.Kind] {
			rhythmEvents = append(rhythmEvents, e)
		}
	}
	if len(rhythmEvents) == 0 {
		return emptyResult(start, end)
	}

	metrics := RhythmMetrics{
		DailyCycle:          r.analyzeDailyCycle(rhythmEvents),
		WeeklyCycle:         r.analyzeWeeklyCycle(rhythmEvents),
		EngagementPeriods:   r.identifyEngagementPeriods(rhythmEvents),
		RetrievalPatterns:   r.analyzeRetrievalPatterns(rhythmEvents),
		PredictabilityScore: computePredictability(rhythmEvents),
		EntropyScore:        computeIntervalEntropy(rhythmEvents),
	}

	patterns := r.detectPatterns(metrics, start, end)
	anomalies := r.detectAnomalies(metrics)
	insights := r.generateInsights(metrics, patterns)

	return Result{
		Window:    Window{StartID: start, EndID: end, EventCount: len(rhythmEvents)},
		Patterns:  patterns,
		Anomalies: anomalies,
		Insights:  insights,
		Metrics: map[string]interface{}{
			"daily_cycle":          metrics.DailyCycle,
			"weekly_cycle":         metrics.WeeklyCycle,
			"engagement_periods":   metrics.EngagementPeriods,
			"retrieval_patterns":   metrics.RetrievalPatterns,
			"predictability_score": metrics.PredictabilityScore,
			"entropy_score":        metrics.EntropyScore,
		},
	}
}

func meanStdev(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	if len(xs) < 2 {
		return mean, 0
	}
	var variance float64
	for _, x := range xs {
		variance += (x - mean) * (x - mean)
	}
	variance /= float64(len(xs) - 1)
	return mean, math.Sqrt(variance)
}

func itoa(i int64) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
