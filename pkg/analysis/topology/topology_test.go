package topology

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/eventlog"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/projections"
)

func newTestLog(t *testing.T) *eventlog.EventLog {
	t.Helper()
	l, err := eventlog.Open(context.Background())
	require.NoError(t, err)
	return l
}

func buildAnalyzer(t *testing.T, log *eventlog.EventLog) *Analyzer {
	t.Helper()
	cg := projections.NewConceptGraph()
	log.RegisterListener(cg.Sync)
	return NewAnalyzer(cg)
}

func TestAnalyzer_EmptyGraphHasZeroMetrics(t *testing.T) {
	log := newTestLog(t)
	a := buildAnalyzer(t, log)

	assert.Equal(t, 0, a.NodeCount())
	assert.Equal(t, 0, a.EdgeCount())
	assert.Equal(t, 0.0, a.Density())
	assert.Equal(t, 0.0, a.ClusteringCoefficient())
}

func TestAnalyzer_DegreeMetricsCountsEdges(t *testing.T) {
	log := newTestLog(t)
	a := buildAnalyzer(t, log)
	ctx := context.Background()

	_, err := log.Append(ctx, eventlog.KindConceptRelate, `{"from":"a","to":"b","relation":"causes"}`, nil)
	require.NoError(t, err)
	_, err = log.Append(ctx, eventlog.KindConceptRelate, `{"from":"b","to":"c","relation":"causes"}`, nil)
	require.NoError(t, err)

	metrics := a.DegreeMetrics()
	assert.Equal(t, 1.0, metrics.OutDegree["a"])
	assert.Equal(t, 2.0, metrics.Degree["b"])
}

func TestAnalyzer_ConnectivitySeparatesComponents(t *testing.T) {
	log := newTestLog(t)
	a := buildAnalyzer(t, log)
	ctx := context.Background()

	_, err := log.Append(ctx, eventlog.KindConceptRelate, `{"from":"a","to":"b","relation":"r"}`, nil)
	require.NoError(t, err)
	_, err = log.Append(ctx, eventlog.KindConceptDefine, `{"token":"isolated"}`, nil)
	require.NoError(t, err)

	connectivity := a.Connectivity()
	assert.Equal(t, 2, connectivity.WeakCount)
}

func TestAnalyzer_BetweennessIdentifiesBridge(t *testing.T) {
	log := newTestLog(t)
	a := buildAnalyzer(t, log)
	ctx := context.Background()

	_, err := log.Append(ctx, eventlog.KindConceptRelate, `{"from":"a","to":"bridge","relation":"r"}`, nil)
	require.NoError(t, err)
	_, err = log.Append(ctx, eventlog.KindConceptRelate, `{"from":"bridge","to":"c","relation":"r"}`, nil)
	require.NoError(t, err)

	scores := a.Centrality("betweenness")
	assert.Greater(t, scores["bridge"], scores["a"])
}

func TestAnalyzer_ShortestPathFindsRoute(t *testing.T) {
	log := newTestLog(t)
	a := buildAnalyzer(t, log)
	ctx := context.Background()

	_, err := log.Append(ctx, eventlog.KindConceptRelate, `{"from":"a","to":"b","relation":"r"}`, nil)
	require.NoError(t, err)
	_, err = log.Append(ctx, eventlog.KindConceptRelate, `{"from":"b","to":"c","relation":"r"}`, nil)
	require.NoError(t, err)

	path := a.ShortestPath("a", "c")
	assert.Equal(t, []string{"a", "b", "c"}, path)

	assert.Nil(t, a.ShortestPath("c", "a"))
}

func TestAnalyzer_StructuralVulnerabilitiesFindsCutVertex(t *testing.T) {
	log := newTestLog(t)
	a := buildAnalyzer(t, log)
	ctx := context.Background()

	_, err := log.Append(ctx, eventlog.KindConceptRelate, `{"from":"a","to":"hub","relation":"r"}`, nil)
	require.NoError(t, err)
	_, err = log.Append(ctx, eventlog.KindConceptRelate, `{"from":"hub","to":"b","relation":"r"}`, nil)
	require.NoError(t, err)

	vulnerabilities := a.StructuralVulnerabilities()
	assert.Contains(t, vulnerabilities, "hub")
}

func TestAnalyzer_CommunitiesGroupDenseCluster(t *testing.T) {
	log := newTestLog(t)
	a := buildAnalyzer(t, log)
	ctx := context.Background()

	for _, pair := range [][2]string{{"a", "b"}, {"b", "c"}, {"a", "c"}} {
		_, err := log.Append(ctx, eventlog.KindConceptRelate,
			`{"from":"`+pair[0]+`","to":"`+pair[1]+`","relation":"r"}`, nil)
		require.NoError(t, err)
	}
	_, err := log.Append(ctx, eventlog.KindConceptDefine, `{"token":"isolated"}`, nil)
	require.NoError(t, err)

	communities := a.Communities()
	assignA := communities.Assignments["a"]
	assignB := communities.Assignments["b"]
	assignIsolated := communities.Assignments["isolated"]
	assert.Equal(t, assignA, assignB)
	assert.NotEqual(t, assignA, assignIsolated)
}

func TestAnalyzer_SyncPicksUpNewEdgesAfterVersionAdvance(t *testing.T) {
	log := newTestLog(t)
	a := buildAnalyzer(t, log)
	ctx := context.Background()

	assert.Equal(t, 0, a.NodeCount())

	_, err := log.Append(ctx, eventlog.KindConceptDefine, `{"token":"fresh"}`, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, a.NodeCount())
}

func TestIdentityAnalyzer_CohesionReflectsSingleComponent(t *testing.T) {
	log := newTestLog(t)
	a := buildAnalyzer(t, log)
	ctx := context.Background()

	_, err := log.Append(ctx, eventlog.KindConceptRelate,
		`{"from":"identity.continuity","to":"identity.coherence","relation":"supports"}`, nil)
	require.NoError(t, err)

	identity := NewIdentityAnalyzer(a, []string{"identity.continuity", "identity.coherence", "identity.stability"}, DefaultThresholds())
	report := identity.Analyze()

	assert.Equal(t, 2, report.Metrics.PresentIdentityNodes)
	assert.Equal(t, 1, report.Metrics.MissingIdentityTokens)
	assert.Equal(t, 1.0, report.Metrics.Cohesion)
}

func TestIdentityAnalyzer_FragmentationTriggersAlert(t *testing.T) {
	log := newTestLog(t)
	a := buildAnalyzer(t, log)
	ctx := context.Background()

	// Three identity tokens defined but never connected: fully fragmented.
	for _, token := range []string{"identity.continuity", "identity.coherence", "identity.stability"} {
		_, err := log.Append(ctx, eventlog.KindConceptDefine, `{"token":"`+token+`"}`, nil)
		require.NoError(t, err)
	}

	thresholds := DefaultThresholds()
	identity := NewIdentityAnalyzer(a, []string{"identity.continuity", "identity.coherence", "identity.stability"}, thresholds)
	report := identity.Analyze()

	assert.Equal(t, 3, report.Metrics.FragmentationCount)
	found := false
	for _, alert := range report.Alerts {
		if alert.Type == "fragmentation" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestIdentityAnalyzer_HysteresisHoldsLevelWithinSameVersion(t *testing.T) {
	log := newTestLog(t)
	a := buildAnalyzer(t, log)
	ctx := context.Background()

	for _, token := range []string{"identity.continuity", "identity.coherence"} {
		_, err := log.Append(ctx, eventlog.KindConceptDefine, `{"token":"`+token+`"}`, nil)
		require.NoError(t, err)
	}

	identity := NewIdentityAnalyzer(a, []string{"identity.continuity", "identity.coherence"}, DefaultThresholds())
	first := identity.Analyze()
	second := identity.Analyze()

	assert.Equal(t, first.Alerts, second.Alerts)
}

func TestEvolutionTracker_SnapshotWindowCaches(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()

	id, err := log.Append(ctx, eventlog.KindConceptDefine, `{"token":"a"}`, nil)
	require.NoError(t, err)

	tracker := NewEvolutionTracker(log, nil, DefaultThresholds())
	first := tracker.SnapshotWindow(1, id)

	_, err = log.Append(ctx, eventlog.KindConceptDefine, `{"token":"b"}`, nil)
	require.NoError(t, err)

	second := tracker.SnapshotWindow(1, id)
	assert.Equal(t, first.Summary.NodeCount, second.Summary.NodeCount)
}

func TestEvolutionTracker_CompareWindowsComputesDelta(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()

	firstID, err := log.Append(ctx, eventlog.KindConceptDefine, `{"token":"a"}`, nil)
	require.NoError(t, err)
	secondID, err := log.Append(ctx, eventlog.KindConceptDefine, `{"token":"b"}`, nil)
	require.NoError(t, err)

	tracker := NewEvolutionTracker(log, nil, DefaultThresholds())
	comparison := tracker.CompareWindows(1, firstID, 1, secondID)

	assert.Equal(t, 1.0, comparison.SummaryDelta["node_count"])
}

func TestArticulationPoints_LinearChainMiddleIsCut(t *testing.T) {
	adj := map[string]map[string]bool{
		"a": {"b": true},
		"b": {"a": true, "c": true},
		"c": {"b": true},
	}
	points := articulationPoints([]string{"a", "b", "c"}, adj)
	assert.Equal(t, []string{"b"}, points)
}

func TestLabelPropagationCommunities_IsolatedNodeOwnCommunity(t *testing.T) {
	adj := map[string]map[string]bool{
		"a":        {"b": true},
		"b":        {"a": true},
		"isolated": {},
	}
	communities := labelPropagationCommunities([]string{"a", "b", "isolated"}, adj)
	assert.Len(t, communities, 2)
}
