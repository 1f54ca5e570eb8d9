package temporal

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/eventlog"
)

func newTestLog(t *testing.T) *eventlog.EventLog {
	t.Helper()
	l, err := eventlog.Open(context.Background())
	require.NoError(t, err)
	return l
}

func TestAnalyzeWindow_EmptyWindowReturnsEmptyMetrics(t *testing.T) {
	log := newTestLog(t)
	a := New(log)

	result := a.AnalyzeWindow(1, 10)
	assert.Equal(t, 0, result.Window.EventCount)
	assert.Empty(t, result.Patterns)
}

func TestAnalyzeWindow_CachesResultsPerWindow(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()
	a := New(log)

	id, err := log.Append(ctx, eventlog.KindUserMessage, "hello", nil)
	require.NoError(t, err)

	first := a.AnalyzeWindow(1, id)

	_, err = log.Append(ctx, eventlog.KindUserMessage, "world", nil)
	require.NoError(t, err)

	second := a.AnalyzeWindow(1, id)
	assert.Equal(t, first.Window.EventCount, second.Window.EventCount)

	a.ClearCache()
	third := a.AnalyzeWindow(1, id)
	assert.Equal(t, first.Window.EventCount, third.Window.EventCount)
}

func TestAnalyzeWindow_MergesSubAnalyzerMetrics(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()
	a := New(log)

	var last int64
	for i := 0; i < 6; i++ {
		id, err := log.Append(ctx, eventlog.KindUserMessage, "message content here", nil)
		require.NoError(t, err)
		last = id
	}

	result := a.AnalyzeWindow(1, last)
	require.Contains(t, result.Metrics, "identity")
	require.Contains(t, result.Metrics, "commitments")
	require.Contains(t, result.Metrics, "cognitive")
	require.Contains(t, result.Metrics, "rhythms")
}

func TestGetPatterns_FiltersByType(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()
	a := New(log)

	for i := 0; i < 3; i++ {
		_, err := log.Append(ctx, eventlog.KindIdentityAdoption, "I am introverted and careful", nil)
		require.NoError(t, err)
		_, err = log.Append(ctx, eventlog.KindIdentityAdoption, "I am extroverted and reckless", nil)
		require.NoError(t, err)
	}

	patterns := a.GetPatterns(nil)
	require.NotNil(t, patterns)

	filtered := a.GetPatterns([]string{"identity_fragmentation"})
	for pType := range filtered {
		assert.Equal(t, "identity_fragmentation", pType)
	}
}

func TestIdentityAnalyzer_DetectsFragmentation(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()
	analyzer := &identityAnalyzer{log: log}

	_, err := log.Append(ctx, eventlog.KindIdentityAdoption, "I am introverted", nil)
	require.NoError(t, err)
	_, err = log.Append(ctx, eventlog.KindIdentityAdoption, "I am extroverted", nil)
	require.NoError(t, err)

	events := log.ReadAll()
	result := analyzer.analyzeWindow(events, events[0].ID, events[len(events)-1].ID)

	fragmentation, _ := result.Metrics["fragmentation_events"].(int)
	assert.Equal(t, 1, fragmentation)
}

func TestIdentityAnalyzer_EmptyWindowReturnsEmptyResult(t *testing.T) {
	log := newTestLog(t)
	analyzer := &identityAnalyzer{log: log}
	result := analyzer.analyzeWindow(nil, 1, 10)
	assert.Equal(t, 0, result.Window.EventCount)
}

func TestCommitmentAnalyzer_DetectsBurstsAndCascades(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()
	analyzer := &commitmentAnalyzer{log: log}

	for i := 0; i < 5; i++ {
		_, err := log.Append(ctx, eventlog.KindCommitmentOpen, "build the system and improve it", map[string]interface{}{"cid": "c"})
		require.NoError(t, err)
	}

	events := log.ReadAll()
	result := analyzer.analyzeWindow(events, events[0].ID, events[len(events)-1].ID)

	bursts, _ := result.Metrics["burst_events"].([]Burst)
	assert.NotEmpty(t, bursts)
}

func TestCognitiveAnalyzer_TracksConceptEmergence(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()
	analyzer := &cognitiveAnalyzer{log: log}

	_, err := log.Append(ctx, eventlog.KindConceptDefine, "defining a new concept", nil)
	require.NoError(t, err)
	_, err = log.Append(ctx, eventlog.KindConceptRelate, "relating concepts", nil)
	require.NoError(t, err)

	events := log.ReadAll()
	result := analyzer.analyzeWindow(events, events[0].ID, events[len(events)-1].ID)

	rate, _ := result.Metrics["concept_emergence_rate"].(float64)
	assert.Greater(t, rate, 0.0)
}

func TestRhythmAnalyzer_ComputesPredictability(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()
	analyzer := &rhythmAnalyzer{log: log}

	for i := 0; i < 10; i++ {
		_, err := log.Append(ctx, eventlog.KindUserMessage, strings.Repeat("x", 20), nil)
		require.NoError(t, err)
	}

	events := log.ReadAll()
	result := analyzer.analyzeWindow(events, events[0].ID, events[len(events)-1].ID)

	predictability, _ := result.Metrics["predictability_score"].(float64)
	assert.GreaterOrEqual(t, predictability, 0.0)
}

func TestRhythmAnalyzer_WeeklyCycleInsufficientData(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()
	analyzer := &rhythmAnalyzer{log: log}

	for i := 0; i < 3; i++ {
		_, err := log.Append(ctx, eventlog.KindUserMessage, "hi", nil)
		require.NoError(t, err)
	}

	events := log.ReadAll()
	weekly := analyzer.analyzeWeeklyCycle(events)
	assert.Contains(t, weekly, "insufficient_data")
}

func TestShannonEntropy_ZeroForSingleCategory(t *testing.T) {
	entropy := shannonEntropy(map[string]int{"a": 10}, 10)
	assert.Equal(t, 0.0, entropy)
}

func TestDetectAnomalies_RequiresMinimumTailSize(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()
	a := New(log)

	_, err := log.Append(ctx, eventlog.KindUserMessage, "hi", nil)
	require.NoError(t, err)

	anomalies := a.DetectAnomalies(0.5)
	assert.Empty(t, anomalies)
}
