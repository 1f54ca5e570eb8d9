package topology

import (
	"sync"

	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/eventlog"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/projections"
)

// IdentityConceptsV1 is the canonical identity token set used for
// structural identity topology analysis.
var IdentityConceptsV1 = []string{
	"identity.continuity",
	"identity.coherence",
	"identity.stability",
	"identity.ledger_bound_self",
	"identity.formation",
	"identity.evolution",
	"identity.fragmentation",
	"identity.emergence",
	"identity.chain",
	"identity.anchor",
	"identity.gap",
	"identity.nexus",
	"identity.awareness",
	"identity.model",
	"identity.ontology",
	"identity.validation",
	"identity.user_interaction",
	"identity.graph_binding",
	"identity.temporal_binding",
	"identity.evidence_binding",
}

// Window identifies the ledger span a topology snapshot was computed over.
type Window struct {
	StartID    int64
	EndID      int64
	EventCount int
}

// Snapshot captures the topology summary and identity report for one
// ledger window.
type Snapshot struct {
	Window   Window
	Summary  Summary
	Identity IdentityReport
}

// Comparison reports numeric deltas between two window snapshots.
type Comparison struct {
	From          Snapshot
	To            Snapshot
	SummaryDelta  map[string]float64
	IdentityDelta map[string]float64
}

type windowKey struct {
	start, end int64
}

// EvolutionTracker computes topology deltas across ledger windows, caching
// one snapshot per distinct (start, end) span so repeated comparisons
// against the same span never rebuild the graph twice.
type EvolutionTracker struct {
	mu sync.Mutex

	log        *eventlog.EventLog
	tokens     []string
	thresholds Thresholds

	snapshots map[windowKey]Snapshot
}

// NewEvolutionTracker builds a tracker over the given ledger. A nil tokens
// slice defaults to IdentityConceptsV1.
func NewEvolutionTracker(log *eventlog.EventLog, tokens []string, thresholds Thresholds) *EvolutionTracker {
	if tokens == nil {
		tokens = append([]string(nil), IdentityConceptsV1...)
	}
	return &EvolutionTracker{
		log:        log,
		tokens:     tokens,
		thresholds: thresholds,
		snapshots:  make(map[windowKey]Snapshot),
	}
}

// SnapshotWindow computes (or returns a cached) topology snapshot for the
// ledger span [startID, endID].
func (t *EvolutionTracker) SnapshotWindow(startID, endID int64) Snapshot {
	key := windowKey{startID, endID}
	t.mu.Lock()
	if snap, ok := t.snapshots[key]; ok {
		t.mu.Unlock()
		return snap
	}
	t.mu.Unlock()

	events := t.log.ReadRange(startID, endID, 0)
	concepts := projections.NewConceptGraph()
	concepts.Rebuild(events)
	analyzer := NewAnalyzer(concepts)
	identity := NewIdentityAnalyzer(analyzer, t.tokens, t.thresholds)

	snapshot := Snapshot{
		Window:   Window{StartID: startID, EndID: endID, EventCount: len(events)},
		Summary:  analyzer.Summary(),
		Identity: identity.Analyze(),
	}

	t.mu.Lock()
	t.snapshots[key] = snapshot
	t.mu.Unlock()
	return snapshot
}

// CompareWindows snapshots both spans and diffs their numeric metrics.
func (t *EvolutionTracker) CompareWindows(startA, endA, startB, endB int64) Comparison {
	from := t.SnapshotWindow(startA, endA)
	to := t.SnapshotWindow(startB, endB)
	return Comparison{
		From:          from,
		To:            to,
		SummaryDelta:  diffSummary(from.Summary, to.Summary),
		IdentityDelta: diffIdentity(from.Identity.Metrics, to.Identity.Metrics),
	}
}

// ClearCache discards all cached window snapshots.
func (t *EvolutionTracker) ClearCache() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshots = make(map[windowKey]Snapshot)
}

func diffSummary(a, b Summary) map[string]float64 {
	return map[string]float64{
		"node_count":             float64(b.NodeCount - a.NodeCount),
		"edge_count":             float64(b.EdgeCount - a.EdgeCount),
		"density":                b.Density - a.Density,
		"clustering_coefficient": b.ClusteringCoefficient - a.ClusteringCoefficient,
		"weak_component_count":   float64(b.WeakComponentCount - a.WeakComponentCount),
		"strong_component_count": float64(b.StrongComponentCount - a.StrongComponentCount),
		"avg_path_length":        b.AvgPathLength - a.AvgPathLength,
		"diameter":               float64(b.Diameter - a.Diameter),
		"largest_component_size": float64(b.LargestComponentSize - a.LargestComponentSize),
	}
}

func diffIdentity(a, b IdentityMetrics) map[string]float64 {
	return map[string]float64{
		"total_identity_tokens":   float64(b.TotalIdentityTokens - a.TotalIdentityTokens),
		"present_identity_nodes":  float64(b.PresentIdentityNodes - a.PresentIdentityNodes),
		"missing_identity_tokens": float64(b.MissingIdentityTokens - a.MissingIdentityTokens),
		"cohesion":                b.Cohesion - a.Cohesion,
		"fragmentation_count":     float64(b.FragmentationCount - a.FragmentationCount),
		"bridge_dependency":       b.BridgeDependency - a.BridgeDependency,
	}
}
