package temporal

import (
	"sort"
	"strings"

	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/eventlog"
)

var cognitiveKinds = map[eventlog.Kind]bool{
	eventlog.KindConceptDefine:      true,
	eventlog.KindConceptAlias:       true,
	eventlog.KindConceptBindEvent:   true,
	eventlog.KindConceptRelate:      true,
	eventlog.KindReflection:         true,
	eventlog.KindClaim:              true,
	eventlog.KindAssistantMessage:   true,
	eventlog.KindUserMessage:        true,
}

var conceptKinds = map[eventlog.Kind]bool{
	eventlog.KindConceptDefine:    true,
	eventlog.KindConceptAlias:     true,
	eventlog.KindConceptBindEvent: true,
	eventlog.KindConceptRelate:    true,
}

var domainKeywords = map[string][]string{
	"technical":     {"code", "algorithm", "system", "technical", "programming", "software"},
	"personal":      {"feel", "emotion", "personal", "myself", "identity", "character"},
	"learning":      {"learn", "study", "understand", "knowledge", "education", "research"},
	"work":          {"work", "project", "task", "job", "career", "professional"},
	"social":        {"people", "relationship", "social", "friend", "family", "community"},
	"creative":      {"create", "design", "art", "creative", "imagine", "innovate"},
	"analytical":    {"analyze", "data", "logic", "reason", "think", "consider"},
	"health":        {"health", "body", "exercise", "wellness", "medical", "physical"},
	"philosophical": {"meaning", "purpose", "philosophy", "existential", "life", "value"},
}

// LearningLoop is a reflection -> concept-operation(s) -> reflection cycle.
type LearningLoop struct {
	ReflectionID         int64
	ConceptOperations    []int64
	ClosingReflectionID  int64
	LoopLength           int64
}

// AttentionShift is a detected domain transition between consecutive events.
type AttentionShift struct {
	FromDomain string
	ToDomain   string
	EventID    int64
	ShiftType  string
}

// CognitiveMetrics summarizes concept and reflection activity over a window.
type CognitiveMetrics struct {
	ConceptEmergenceRate         float64
	OntologyExpansionScore       float64
	ReflectionLearningCorrelation float64
	LearningLoopPatterns         []LearningLoop
	AttentionShifts              []AttentionShift
	KnowledgeGrowthVelocity      float64
}

type cognitiveAnalyzer struct {
	log *eventlog.EventLog
}

func computeConceptEmergenceRate(conceptEvents []eventlog.Event, start, end int64) float64 {
	if len(conceptEvents) == 0 {
		return 0
	}
	definitions := 0
	for _, e := range conceptEvents {
		if e.Kind == eventlog.KindConceptDefine {
			definitions++
		}
	}
	totalEvents := end - start + 1
	if totalEvents < 1 {
		totalEvents = 1
	}
	return float64(definitions) / float64(totalEvents)
}

func computeOntologyExpansionScore(conceptEvents []eventlog.Event) float64 {
	if len(conceptEvents) == 0 {
		return 0
	}
	definitions, relations := 0, 0
	for _, e := range conceptEvents {
		switch e.Kind {
		case eventlog.KindConceptDefine:
			definitions++
		case eventlog.KindConceptRelate:
			relations++
		}
	}
	return float64(definitions+relations) / float64(len(conceptEvents))
}

func computeReflectionLearningCorrelation(reflections, allEvents []eventlog.Event) float64 {
	if len(reflections) == 0 || len(allEvents) == 0 {
		return 0
	}
	reflectionDensity := float64(len(reflections)) / float64(len(allEvents))

	learningIndicators := 0
	for _, e := range allEvents {
		if e.Kind == eventlog.KindConceptDefine || e.Kind == eventlog.KindConceptRelate || e.Kind == eventlog.KindClaim {
			learningIndicators++
		}
	}
	learningRate := float64(learningIndicators) / float64(len(allEvents))
	return reflectionDensity * learningRate
}

func detectLearningLoops(events []eventlog.Event) []LearningLoop {
	sorted := sortedByID(events)
	var loops []LearningLoop

	for i, e := range sorted {
		if e.Kind != eventlog.KindReflection {
			continue
		}
		var subsequentConcepts []eventlog.Event
		hi := i + 10
		if hi > len(sorted) {
			hi = len(sorted)
		}
		for j := i + 1; j < hi; j++ {
			next := sorted[j]
			if next.Kind == eventlog.KindConceptDefine || next.Kind == eventlog.KindConceptRelate {
				subsequentConcepts = append(subsequentConcepts, next)
			} else if next.Kind == eventlog.KindReflection && len(subsequentConcepts) > 0 {
				ops := make([]int64, len(subsequentConcepts))
				for k, c := range subsequentConcepts {
					ops[k] = c.ID
				}
				loops = append(loops, LearningLoop{
					ReflectionID:        e.ID,
					ConceptOperations:   ops,
					ClosingReflectionID: next.ID,
					LoopLength:          next.ID - e.ID,
				})
				break
			}
		}
	}
	return loops
}

func extractDomain(content string) string {
	lower := strings.ToLower(content)
	scores := make(map[string]int)
	for domain, keywords := range domainKeywords {
		score := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if score > 0 {
			scores[domain] = score
		}
	}
	if len(scores) == 0 {
		return "general"
	}
	best, bestScore := "", -1
	names := make([]string, 0, len(scores))
	for d := range scores {
		names = append(names, d)
	}
	sort.Strings(names)
	for _, d := range names {
		if scores[d] > bestScore {
			best, bestScore = d, scores[d]
		}
	}
	return best
}

func detectAttentionShifts(events []eventlog.Event) []AttentionShift {
	sorted := sortedByID(events)
	domains := make([]string, len(sorted))
	for i, e := range sorted {
		domains[i] = extractDomain(e.Content)
	}

	var shifts []AttentionShift
	for i := 1; i < len(domains); i++ {
		if domains[i] != domains[i-1] {
			shifts = append(shifts, AttentionShift{
				FromDomain: domains[i-1],
				ToDomain:   domains[i],
				EventID:    sorted[i].ID,
				ShiftType:  "domain_change",
			})
		}
	}
	return shifts
}

func computeKnowledgeGrowthVelocity(conceptEvents, messageEvents []eventlog.Event) float64 {
	if len(conceptEvents) == 0 || len(messageEvents) == 0 {
		return 0
	}
	return float64(len(conceptEvents)) / float64(len(messageEvents))
}

func (a *cognitiveAnalyzer) computeMetrics(events []eventlog.Event, start, end int64) CognitiveMetrics {
	var conceptEvents, reflections, messages []eventlog.Event
	for _, e := range events {
		if conceptKinds[e.Kind] {
			conceptEvents = append(conceptEvents, e)
		}
		switch e.Kind {
		case eventlog.KindReflection:
			reflections = append(reflections, e)
		case eventlog.KindAssistantMessage, eventlog.KindUserMessage:
			messages = append(messages, e)
		}
	}

	return CognitiveMetrics{
		ConceptEmergenceRate:          computeConceptEmergenceRate(conceptEvents, start, end),
		OntologyExpansionScore:        computeOntologyExpansionScore(conceptEvents),
		ReflectionLearningCorrelation: computeReflectionLearningCorrelation(reflections, events),
		LearningLoopPatterns:          detectLearningLoops(events),
		AttentionShifts:               detectAttentionShifts(events),
		KnowledgeGrowthVelocity:       computeKnowledgeGrowthVelocity(conceptEvents, messages),
	}
}

func (a *cognitiveAnalyzer) detectPatterns(metrics CognitiveMetrics, start, end int64) []Pattern {
	var patterns []Pattern

	if metrics.ConceptEmergenceRate > 0.1 {
		patterns = append(patterns, Pattern{
			Type:        "rapid_concept_emergence",
			Confidence:  minF(metrics.ConceptEmergenceRate*5, 1.0),
			StartID:     start,
			EndID:       end,
			Description: "high concept emergence rate",
			Metrics:     map[string]interface{}{"emergence_rate": metrics.ConceptEmergenceRate},
			Severity:    "low",
		})
	}

	switch {
	case metrics.OntologyExpansionScore > 0.7:
		patterns = append(patterns, Pattern{
			Type:        "ontology_expansion",
			Confidence:  metrics.OntologyExpansionScore,
			StartID:     start,
			EndID:       end,
			Description: "active ontology expansion phase",
			Metrics:     map[string]interface{}{"expansion_score": metrics.OntologyExpansionScore},
			Severity:    "low",
		})
	case metrics.OntologyExpansionScore < 0.3:
		patterns = append(patterns, Pattern{
			Type:        "ontology_consolidation",
			Confidence:  1.0 - metrics.OntologyExpansionScore,
			StartID:     start,
			EndID:       end,
			Description: "ontology consolidation phase",
			Metrics:     map[string]interface{}{"expansion_score": metrics.OntologyExpansionScore},
			Severity:    "low",
		})
	}

	if len(metrics.LearningLoopPatterns) > 0 {
		patterns = append(patterns, Pattern{
			Type:        "learning_loops",
			Confidence:  minF(float64(len(metrics.LearningLoopPatterns))*0.3, 1.0),
			StartID:     start,
			EndID:       end,
			Description: "detected reflective learning loops",
			Metrics:     map[string]interface{}{"loop_count": len(metrics.LearningLoopPatterns)},
			Severity:    "low",
		})
	}

	if len(metrics.AttentionShifts) > 5 {
		patterns = append(patterns, Pattern{
			Type:        "frequent_attention_shifts",
			Confidence:  minF(float64(len(metrics.AttentionShifts))*0.1, 1.0),
			StartID:     start,
			EndID:       end,
			Description: "frequent attention shifts across domains",
			Metrics:     map[string]interface{}{"shift_count": len(metrics.AttentionShifts)},
			Severity:    "medium",
		})
	}

	if metrics.ReflectionLearningCorrelation > 0.5 {
		patterns = append(patterns, Pattern{
			Type:        "reflective_learning",
			Confidence:  metrics.ReflectionLearningCorrelation,
			StartID:     start,
			EndID:       end,
			Description: "strong reflection-learning correlation",
			Metrics:     map[string]interface{}{"correlation": metrics.ReflectionLearningCorrelation},
			Severity:    "low",
		})
	}

	return patterns
}

func (a *cognitiveAnalyzer) detectAnomalies(events []eventlog.Event, metrics CognitiveMetrics) []string {
	var out []string
	if metrics.ConceptEmergenceRate > 0.5 {
		out = append(out, "extreme concept emergence rate")
	}
	if metrics.ReflectionLearningCorrelation < 0.1 && len(events) > 10 {
		out = append(out, "poor reflection-learning integration")
	}
	if len(metrics.AttentionShifts) > 10 {
		out = append(out, "excessive attention shifting")
	}
	return out
}

func (a *cognitiveAnalyzer) generateInsights(metrics CognitiveMetrics, patterns []Pattern) []string {
	var out []string

	switch {
	case metrics.ConceptEmergenceRate > 0.2:
		out = append(out, "active concept formation and vocabulary expansion")
	case metrics.ConceptEmergenceRate < 0.05:
		out = append(out, "stable conceptual framework with limited new concept formation")
	}

	switch {
	case metrics.OntologyExpansionScore > 0.6:
		out = append(out, "exploration phase: actively building new conceptual connections")
	case metrics.OntologyExpansionScore < 0.4:
		out = append(out, "consolidation phase: strengthening existing conceptual framework")
	}

	if len(metrics.LearningLoopPatterns) > 0 {
		out = append(out, "structured learning patterns detected")
	}

	switch {
	case metrics.ReflectionLearningCorrelation > 0.6:
		out = append(out, "strong metacognitive integration between reflection and learning")
	case metrics.ReflectionLearningCorrelation < 0.2:
		out = append(out, "consider strengthening connection between reflection and action")
	}

	if len(metrics.AttentionShifts) > 0 {
		domains := make(map[string]bool)
		for _, s := range metrics.AttentionShifts {
			domains[s.ToDomain] = true
		}
		out = append(out, "attention spans "+itoa(int64(len(domains)))+" conceptual domains")
	}

	switch {
	case metrics.KnowledgeGrowthVelocity > 1.0:
		out = append(out, "high knowledge acquisition velocity")
	case metrics.KnowledgeGrowthVelocity < 0.2:
		out = append(out, "measured knowledge acquisition pace")
	}

	for _, p := range patterns {
		switch p.Type {
		case "learning_loops":
			out = append(out, "effective reflective learning cycles detected")
		case "frequent_attention_shifts":
			out = append(out, "consider focusing attention for deeper learning")
		}
	}
	return out
}

func (a *cognitiveAnalyzer) analyzeWindow(events []eventlog.Event, start, end int64) Result {
	var cognitiveEvents []eventlog.Event
	for _, e := range events {
		if cognitiveKinds[e.Kind] {
			cognitiveEvents = append(cognitiveEvents, e)
		}
	}
	if len(cognitiveEvents) == 0 {
		return emptyResult(start, end)
	}

	metrics := a.computeMetrics(cognitiveEvents, start, end)
	patterns := a.detectPatterns(metrics, start, end)
	anomalies := a.detectAnomalies(cognitiveEvents, metrics)
	insights := a.generateInsights(metrics, patterns)

	return Result{
		Window:    Window{StartID: start, EndID: end, EventCount: len(cognitiveEvents)},
		Patterns:  patterns,
		Anomalies: anomalies,
		Insights:  insights,
		Metrics: map[string]interface{}{
			"concept_emergence_rate":          metrics.ConceptEmergenceRate,
			"ontology_expansion_score":        metrics.OntologyExpansionScore,
			"reflection_learning_correlation": metrics.ReflectionLearningCorrelation,
			"learning_loop_patterns":          metrics.LearningLoopPatterns,
			"attention_shifts":                metrics.AttentionShifts,
			"knowledge_growth_velocity":       metrics.KnowledgeGrowthVelocity,
		},
	}
}
