package topology

import "sort"

// Thresholds configures the warn/critical bands used for identity topology
// alerting, along with a hysteresis margin that prevents a metric hovering
// near a boundary from flapping between levels.
type Thresholds struct {
	CohesionWarn          float64
	CohesionCritical      float64
	FragmentationWarn     int
	FragmentationCritical int
	BridgeWarn            float64
	BridgeCritical        float64
	Hysteresis            float64
}

// DefaultThresholds returns the bands used when no override is supplied.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CohesionWarn:          0.45,
		CohesionCritical:      0.30,
		FragmentationWarn:     2,
		FragmentationCritical: 3,
		BridgeWarn:            0.35,
		BridgeCritical:        0.50,
		Hysteresis:            0.25,
	}
}

// IdentityMetrics summarizes structural identity coherence over the
// subgraph induced by the identity token set.
type IdentityMetrics struct {
	TotalIdentityTokens   int
	PresentIdentityNodes  int
	MissingIdentityTokens int
	Cohesion              float64
	FragmentationCount    int
	BridgeDependency      float64
	BridgeNodes           []ScoredNode
	ArticulationPoints    []string
	Components            [][]string
}

// Alert reports an identity topology signal that has crossed a threshold.
type Alert struct {
	Type     string
	Level    string
	Value    float64
	Warn     float64
	Critical float64
}

// IdentityReport bundles computed metrics with the alerts they triggered.
type IdentityReport struct {
	Metrics IdentityMetrics
	Alerts  []Alert
}

// IdentityAnalyzer evaluates structural coherence of a fixed identity token
// set against the current concept topology, with hysteresis-banded
// alerting keyed by graph version so repeated calls within one version are
// idempotent and cheap.
type IdentityAnalyzer struct {
	analyzer   *Analyzer
	tokens     []string
	thresholds Thresholds

	lastLevels   map[string]string
	lastVersions map[string]int64
}

// NewIdentityAnalyzer builds an identity topology analyzer over the given
// token set. Empty tokens are dropped.
func NewIdentityAnalyzer(analyzer *Analyzer, tokens []string, thresholds Thresholds) *IdentityAnalyzer {
	filtered := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t != "" {
			filtered = append(filtered, t)
		}
	}
	return &IdentityAnalyzer{
		analyzer:   analyzer,
		tokens:     filtered,
		thresholds: thresholds,
		lastLevels: map[string]string{
			"cohesion":      "ok",
			"fragmentation": "ok",
			"bridge":        "ok",
		},
		lastVersions: make(map[string]int64),
	}
}

// Tokens returns a copy of the configured identity token set.
func (ia *IdentityAnalyzer) Tokens() []string {
	return append([]string(nil), ia.tokens...)
}

// Analyze computes identity metrics and evaluates their alert levels.
func (ia *IdentityAnalyzer) Analyze() IdentityReport {
	metrics := ia.computeMetrics()
	alerts := ia.evaluateAlerts(metrics)
	return IdentityReport{Metrics: metrics, Alerts: alerts}
}

func (ia *IdentityAnalyzer) computeMetrics() IdentityMetrics {
	ia.analyzer.Sync()

	present := make([]string, 0, len(ia.tokens))
	missing := make([]string, 0)
	for _, t := range ia.tokens {
		if ia.analyzer.hasNode(t) {
			present = append(present, t)
		} else {
			missing = append(missing, t)
		}
	}

	if len(present) == 0 {
		return IdentityMetrics{
			TotalIdentityTokens:   len(ia.tokens),
			PresentIdentityNodes:  0,
			MissingIdentityTokens: len(missing),
		}
	}

	sub := ia.analyzer.directedSubgraph(present)
	components := weaklyConnectedComponents(present, sub)
	largest := 0
	for _, c := range components {
		if len(c) > largest {
			largest = len(c)
		}
	}
	cohesion := float64(largest) / float64(len(present))

	bridgeNodes := bridgeNodesForSubgraph(present, sub)
	dependency := bridgeDependency(bridgeNodes)

	var articulation []string
	if len(present) > 2 {
		articulation = articulationPoints(present, toUndirected(present, sub))
	} else {
		articulation = []string{}
	}

	return IdentityMetrics{
		TotalIdentityTokens:   len(ia.tokens),
		PresentIdentityNodes:  len(present),
		MissingIdentityTokens: len(missing),
		Cohesion:              cohesion,
		FragmentationCount:    len(components),
		BridgeDependency:      dependency,
		BridgeNodes:           bridgeNodes,
		ArticulationPoints:    articulation,
		Components:            components,
	}
}

func bridgeNodesForSubgraph(nodes []string, sub map[string]map[string]bool) []ScoredNode {
	if len(nodes) == 0 {
		return nil
	}
	scores := betweennessCentrality(nodes, sub)
	out := make([]ScoredNode, 0, len(scores))
	for n, v := range scores {
		out = append(out, ScoredNode{Node: n, Score: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Node < out[j].Node
	})
	if len(out) > 5 {
		out = out[:5]
	}
	return out
}

func bridgeDependency(nodes []ScoredNode) float64 {
	if len(nodes) == 0 {
		return 0
	}
	total := 0.0
	max := 0.0
	for _, n := range nodes {
		total += n.Score
		if n.Score > max {
			max = n.Score
		}
	}
	if total <= 0 {
		return 0
	}
	return max / total
}

func (ia *IdentityAnalyzer) evaluateAlerts(metrics IdentityMetrics) []Alert {
	if metrics.PresentIdentityNodes < 2 {
		return nil
	}
	t := ia.thresholds
	var alerts []Alert

	cohesionLevel := ia.applyHysteresis("cohesion", metrics.Cohesion, t.CohesionWarn, t.CohesionCritical, "below")
	if cohesionLevel != "ok" {
		alerts = append(alerts, Alert{Type: "cohesion", Level: cohesionLevel, Value: metrics.Cohesion, Warn: t.CohesionWarn, Critical: t.CohesionCritical})
	}

	fragLevel := ia.applyHysteresis("fragmentation", float64(metrics.FragmentationCount), float64(t.FragmentationWarn), float64(t.FragmentationCritical), "above")
	if fragLevel != "ok" {
		alerts = append(alerts, Alert{Type: "fragmentation", Level: fragLevel, Value: float64(metrics.FragmentationCount), Warn: float64(t.FragmentationWarn), Critical: float64(t.FragmentationCritical)})
	}

	bridgeLevel := ia.applyHysteresis("bridge", metrics.BridgeDependency, t.BridgeWarn, t.BridgeCritical, "above")
	if bridgeLevel != "ok" {
		alerts = append(alerts, Alert{Type: "bridge_dependency", Level: bridgeLevel, Value: metrics.BridgeDependency, Warn: t.BridgeWarn, Critical: t.BridgeCritical})
	}

	return alerts
}

// applyHysteresis evaluates a metric's alert level, holding the previous
// level steady while the value drifts back across its boundary by less
// than the configured hysteresis margin. Recompute is skipped entirely
// when the graph hasn't changed since the last call for this key.
func (ia *IdentityAnalyzer) applyHysteresis(key string, value, warn, critical float64, direction string) string {
	version := ia.analyzer.GraphVersion()
	lastVersion, seen := ia.lastVersions[key]
	lastLevel := ia.lastLevels[key]
	if seen && version == lastVersion {
		return lastLevel
	}

	level := evaluateLevel(value, warn, critical, direction)
	if lastLevel == "critical" && level != "critical" {
		if direction == "below" {
			if value < critical*(1+ia.thresholds.Hysteresis) {
				level = "critical"
			}
		} else if value > critical*(1-ia.thresholds.Hysteresis) {
			level = "critical"
		}
	}
	if lastLevel == "warning" && level == "ok" {
		if direction == "below" {
			if value < warn*(1+ia.thresholds.Hysteresis) {
				level = "warning"
			}
		} else if value > warn*(1-ia.thresholds.Hysteresis) {
			level = "warning"
		}
	}

	ia.lastLevels[key] = level
	ia.lastVersions[key] = version
	return level
}

func evaluateLevel(value, warn, critical float64, direction string) string {
	if direction == "below" {
		if value <= critical {
			return "critical"
		}
		if value <= warn {
			return "warning"
		}
		return "ok"
	}
	if value >= critical {
		return "critical"
	}
	if value >= warn {
		return "warning"
	}
	return "ok"
}
