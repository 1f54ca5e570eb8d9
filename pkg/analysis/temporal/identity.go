package temporal

import (
	"sort"
	"strings"

	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/eventlog"
)

var identityKinds = map[eventlog.Kind]bool{
	eventlog.KindIdentityAdoption: true,
	eventlog.KindReflection:       true,
	eventlog.KindCommitmentOpen:   true,
	eventlog.KindClaim:            true,
}

var contradictoryPairs = [][2]string{
	{"introverted", "extroverted"},
	{"confident", "insecure"},
	{"careful", "reckless"},
	{"consistent", "inconsistent"},
	{"open", "closed"},
	{"honest", "deceptive"},
}

var fragmentedIndicators = []string{
	"but wait", "on second thought", "actually", "never mind",
	"scratch that", "let me reconsider", "conflicted", "uncertain", "mixed feelings",
}

var themeKeywords = map[string][]string{
	"learning":      {"learn", "study", "understand", "knowledge"},
	"growth":        {"grow", "improve", "develop", "evolve"},
	"relationships": {"connect", "relate", "interact", "social"},
	"performance":   {"achieve", "complete", "succeed", "accomplish"},
	"creativity":    {"create", "design", "innovate", "imagine"},
	"stability":     {"consistent", "stable", "reliable", "steady"},
	"exploration":   {"explore", "discover", "investigate", "curious"},
}

// IdentityMetrics summarizes identity coherence over a window.
type IdentityMetrics struct {
	StabilityScore        float64
	FragmentationEvents   int
	CoherenceGaps         int
	ClaimConsistency      float64
	ReflectionDensity     float64
	IdentityEvolutionRate float64
}

type identityAnalyzer struct {
	log *eventlog.EventLog
}

func contentSimilarity(contents []string) float64 {
	if len(contents) < 2 {
		return 1.0
	}
	var similarities []float64
	for i := 0; i < len(contents); i++ {
		for j := i + 1; j < len(contents); j++ {
			wi := wordSet(contents[i])
			wj := wordSet(contents[j])
			var sim float64
			switch {
			case len(wi) == 0 && len(wj) == 0:
				sim = 1.0
			case len(wi) == 0 || len(wj) == 0:
				sim = 0.0
			default:
				inter := 0
				for w := range wi {
					if wj[w] {
						inter++
					}
				}
				union := len(wi) + len(wj) - inter
				if union > 0 {
					sim = float64(inter) / float64(union)
				}
			}
			similarities = append(similarities, sim)
		}
	}
	return sumF(similarities) / float64(maxI(len(similarities), 1))
}

func wordSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		out[w] = true
	}
	return out
}

func areContradictory(content1, content2 string) bool {
	for _, pair := range contradictoryPairs {
		w1, w2 := pair[0], pair[1]
		if (strings.Contains(content1, w1) && strings.Contains(content2, w2)) ||
			(strings.Contains(content1, w2) && strings.Contains(content2, w1)) {
			return true
		}
	}
	return false
}

func isFragmentedReflection(content string) bool {
	lower := strings.ToLower(content)
	count := 0
	for _, ind := range fragmentedIndicators {
		if strings.Contains(lower, ind) {
			count++
		}
	}
	return count >= 2
}

func extractThemes(events []eventlog.Event) []string {
	themes := make(map[string]bool)
	for _, e := range events {
		content := strings.ToLower(e.Content)
		for theme, keywords := range themeKeywords {
			for _, kw := range keywords {
				if strings.Contains(content, kw) {
					themes[theme] = true
					break
				}
			}
		}
	}
	out := make([]string, 0, len(themes))
	for t := range themes {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (a *identityAnalyzer) computeStabilityScore(events []eventlog.Event) float64 {
	if len(events) < 2 {
		return 1.0
	}
	byKind := make(map[eventlog.Kind][]eventlog.Event)
	for _, e := range events {
		byKind[e.Kind] = append(byKind[e.Kind], e)
	}

	var scores []float64
	for kind, kindEvents := range byKind {
		if kind != eventlog.KindIdentityAdoption && kind != eventlog.KindReflection {
			continue
		}
		contents := make([]string, len(kindEvents))
		for i, e := range kindEvents {
			contents[i] = e.Content
		}
		scores = append(scores, contentSimilarity(contents))
	}
	if len(scores) == 0 {
		return 1.0
	}
	return sumF(scores) / float64(maxI(len(scores), 1))
}

func (a *identityAnalyzer) countFragmentationEvents(events []eventlog.Event) int {
	count := 0
	for i, e := range events {
		switch e.Kind {
		case eventlog.KindIdentityAdoption:
			if i > 0 && events[i-1].Kind == eventlog.KindIdentityAdoption {
				if areContradictory(strings.ToLower(e.Content), strings.ToLower(events[i-1].Content)) {
					count++
				}
			}
		case eventlog.KindReflection:
			if isFragmentedReflection(e.Content) {
				count++
			}
		}
	}
	return count
}

func countCoherenceGaps(events []eventlog.Event) int {
	if len(events) < 3 {
		return 0
	}
	sorted := append([]eventlog.Event(nil), events...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	gaps := 0
	for i := 1; i < len(sorted); i++ {
		if sorted[i].ID-sorted[i-1].ID > 50 {
			gaps++
		}
	}
	return gaps
}

func computeClaimConsistency(claims, commitments []eventlog.Event) float64 {
	if len(claims) == 0 && len(commitments) == 0 {
		return 1.0
	}
	claimThemes := extractThemes(claims)
	commitmentThemes := extractThemes(commitments)

	all := make(map[string]bool)
	for _, t := range claimThemes {
		all[t] = true
	}
	for _, t := range commitmentThemes {
		all[t] = true
	}
	if len(all) == 0 {
		return 1.0
	}

	claimSet := make(map[string]bool, len(claimThemes))
	for _, t := range claimThemes {
		claimSet[t] = true
	}
	common := 0
	for _, t := range commitmentThemes {
		if claimSet[t] {
			common++
		}
	}
	return float64(common) / float64(len(all))
}

func computeEvolutionRate(adoptions, reflections []eventlog.Event) float64 {
	total := len(adoptions) + len(reflections)
	if total < 2 {
		return 0
	}
	adoptionRatio := float64(len(adoptions)) / float64(total)
	reflectionRatio := float64(len(reflections)) / float64(total)
	balance := 1.0 - abs(adoptionRatio-reflectionRatio)
	norm := float64(total) / 10.0
	if norm > 1.0 {
		norm = 1.0
	}
	return balance * norm
}

func (a *identityAnalyzer) computeMetrics(events []eventlog.Event) IdentityMetrics {
	var adoptions, reflections, commitments, claims []eventlog.Event
	for _, e := range events {
		switch e.Kind {
		case eventlog.KindIdentityAdoption:
			adoptions = append(adoptions, e)
		case eventlog.KindReflection:
			reflections = append(reflections, e)
		case eventlog.KindCommitmentOpen:
			commitments = append(commitments, e)
		case eventlog.KindClaim:
			claims = append(claims, e)
		}
	}

	return IdentityMetrics{
		StabilityScore:        a.computeStabilityScore(events),
		FragmentationEvents:   a.countFragmentationEvents(events),
		CoherenceGaps:         countCoherenceGaps(events),
		ClaimConsistency:      computeClaimConsistency(claims, commitments),
		ReflectionDensity:     float64(len(reflections)) / float64(maxI(len(adoptions), 1)),
		IdentityEvolutionRate: computeEvolutionRate(adoptions, reflections),
	}
}

func (a *identityAnalyzer) detectPatterns(metrics IdentityMetrics, start, end int64) []Pattern {
	var patterns []Pattern

	if metrics.FragmentationEvents > 0 {
		severity := "medium"
		if metrics.FragmentationEvents > 2 {
			severity = "high"
		}
		patterns = append(patterns, Pattern{
			Type:        "identity_fragmentation",
			Confidence:  minF(float64(metrics.FragmentationEvents)/5.0, 1.0),
			StartID:     start,
			EndID:       end,
			Description: "detected identity fragmentation events",
			Metrics:     map[string]interface{}{"fragmentation_count": metrics.FragmentationEvents},
			Severity:    severity,
		})
	}

	if metrics.CoherenceGaps > 0 {
		patterns = append(patterns, Pattern{
			Type:        "coherence_gaps",
			Confidence:  minF(float64(metrics.CoherenceGaps)/3.0, 1.0),
			StartID:     start,
			EndID:       end,
			Description: "found temporal gaps in identity continuity",
			Metrics:     map[string]interface{}{"gap_count": metrics.CoherenceGaps},
			Severity:    "medium",
		})
	}

	if metrics.StabilityScore < 0.6 {
		severity := "medium"
		if metrics.StabilityScore < 0.4 {
			severity = "high"
		}
		patterns = append(patterns, Pattern{
			Type:        "low_identity_stability",
			Confidence:  1.0 - metrics.StabilityScore,
			StartID:     start,
			EndID:       end,
			Description: "identity stability below threshold",
			Metrics:     map[string]interface{}{"stability_score": metrics.StabilityScore},
			Severity:    severity,
		})
	}

	if metrics.IdentityEvolutionRate > 0.8 {
		patterns = append(patterns, Pattern{
			Type:        "rapid_identity_evolution",
			Confidence:  metrics.IdentityEvolutionRate,
			StartID:     start,
			EndID:       end,
			Description: "rapid identity evolution detected",
			Metrics:     map[string]interface{}{"evolution_rate": metrics.IdentityEvolutionRate},
			Severity:    "low",
		})
	}

	return patterns
}

func (a *identityAnalyzer) detectAnomalies(metrics IdentityMetrics) []string {
	var out []string
	if metrics.FragmentationEvents > 3 {
		out = append(out, "critical identity fragmentation")
	}
	if metrics.StabilityScore < 0.3 {
		out = append(out, "extremely low identity stability")
	}
	if metrics.ClaimConsistency < 0.4 {
		out = append(out, "poor claim-action consistency")
	}
	if metrics.CoherenceGaps > 5 {
		out = append(out, "excessive identity discontinuity")
	}
	return out
}

func (a *identityAnalyzer) generateInsights(metrics IdentityMetrics, patterns []Pattern) []string {
	var out []string
	if metrics.StabilityScore > 0.8 {
		out = append(out, "strong identity stability with consistent self-expression")
	}
	if metrics.ReflectionDensity > 2.0 {
		out = append(out, "high reflection density indicates strong metacognition")
	} else if metrics.ReflectionDensity < 0.5 {
		out = append(out, "low reflection density may indicate reduced metacognitive processing")
	}
	if metrics.ClaimConsistency > 0.8 {
		out = append(out, "excellent alignment between claimed identity and enacted behavior")
	} else if metrics.ClaimConsistency < 0.5 {
		out = append(out, "misalignment between stated identity and behavioral commitments")
	}
	if metrics.IdentityEvolutionRate > 0.7 && metrics.StabilityScore > 0.6 {
		out = append(out, "healthy identity evolution maintaining coherence during growth")
	}
	for _, p := range patterns {
		switch p.Type {
		case "rapid_identity_evolution":
			out = append(out, "active identity exploration and adaptation patterns detected")
		case "identity_fragmentation":
			out = append(out, "consider resolving identity contradictions for improved coherence")
		}
	}
	return out
}

func (a *identityAnalyzer) analyzeWindow(events []eventlog.Event, start, end int64) Result {
	var identityEvents []eventlog.Event
	for _, e := range events {
		if identityKinds[e.Kind] {
			identityEvents = append(identityEvents, e)
		}
	}
	if len(identityEvents) == 0 {
		return emptyResult(start, end)
	}

	metrics := a.computeMetrics(identityEvents)
	patterns := a.detectPatterns(metrics, start, end)
	anomalies := a.detectAnomalies(metrics)
	insights := a.generateInsights(metrics, patterns)

	return Result{
		Window:    Window{StartID: start, EndID: end, EventCount: len(identityEvents)},
		Patterns:  patterns,
		Anomalies: anomalies,
		Insights:  insights,
		Metrics: map[string]interface{}{
			"stability_score":         metrics.StabilityScore,
			"fragmentation_events":    metrics.FragmentationEvents,
			"coherence_gaps":          metrics.CoherenceGaps,
			"claim_consistency":       metrics.ClaimConsistency,
			"reflection_density":      metrics.ReflectionDensity,
			"identity_evolution_rate": metrics.IdentityEvolutionRate,
		},
	}
}

func sumF(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s
}

func maxI(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
