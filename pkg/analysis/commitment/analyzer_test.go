package commitment

import (
	"context"
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

func TestComputeMetrics_EmptyLedger(t *testing.T) {
	a := New(newTestLog(t))
	m := a.ComputeMetrics()
	assert.Equal(t, Metrics{}, m)
}

func TestComputeMetrics_MixedOutcomes(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()
	a := New(log)

	_, err := log.Append(ctx, eventlog.KindCommitmentOpen, "a", map[string]interface{}{"cid": "c1"})
	require.NoError(t, err)
	_, err = log.Append(ctx, eventlog.KindCommitmentOpen, "b", map[string]interface{}{"cid": "c2"})
	require.NoError(t, err)
	_, err = log.Append(ctx, eventlog.KindCommitmentClose, "close a", map[string]interface{}{"cid": "c1", "outcome_score": 1.0})
	require.NoError(t, err)

	m := a.ComputeMetrics()
	assert.Equal(t, 2, m.OpenCount)
	assert.Equal(t, 1, m.ClosedCount)
	assert.Equal(t, 1, m.StillOpen)
	assert.InDelta(t, 1.0, m.SuccessRate, 0.0001)
	assert.InDelta(t, 0.5, m.AbandonmentRate, 0.0001)
}

func TestOutcomeDistribution_Buckets(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()
	a := New(log)

	cases := []struct {
		cid   string
		score float64
	}{
		{"high1", 0.9},
		{"partial1", 0.5},
		{"low1", 0.1},
	}
	for _, c := range cases {
		_, err := log.Append(ctx, eventlog.KindCommitmentOpen, c.cid, map[string]interface{}{"cid": c.cid})
		require.NoError(t, err)
		_, err = log.Append(ctx, eventlog.KindCommitmentClose, c.cid, map[string]interface{}{"cid": c.cid, "outcome_score": c.score})
		require.NoError(t, err)
	}

	dist := a.OutcomeDistribution()
	assert.Equal(t, 1, dist["high"])
	assert.Equal(t, 1, dist["partial"])
	assert.Equal(t, 1, dist["low"])
}

func TestCriteriaAnalysis_FulfillmentRate(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()
	a := New(log)

	_, err := log.Append(ctx, eventlog.KindCommitmentOpen, "x", map[string]interface{}{"cid": "cx"})
	require.NoError(t, err)
	_, err = log.Append(ctx, eventlog.KindCommitmentClose, "x done", map[string]interface{}{
		"cid":           "cx",
		"outcome_score": 0.5,
		"criteria_met":  map[string]interface{}{"a": true, "b": false},
	})
	require.NoError(t, err)

	stats := a.CriteriaAnalysis()
	require.Contains(t, stats, "a")
	require.Contains(t, stats, "b")
	assert.Equal(t, 1, stats["a"].TimesMet)
	assert.Equal(t, 0, stats["b"].TimesMet)
}

func TestByOrigin_GroupsSeparately(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()
	a := New(log)

	_, err := log.Append(ctx, eventlog.KindCommitmentOpen, "user one", map[string]interface{}{"cid": "u1", "origin": "user"})
	require.NoError(t, err)
	_, err = log.Append(ctx, eventlog.KindCommitmentOpen, "kernel one", map[string]interface{}{"cid": "k1", "origin": "autonomy_kernel"})
	require.NoError(t, err)
	_, err = log.Append(ctx, eventlog.KindCommitmentClose, "user close", map[string]interface{}{"cid": "u1", "outcome_score": 1.0})
	require.NoError(t, err)

	byOrigin := a.ByOrigin()
	require.Contains(t, byOrigin, "user")
	require.Contains(t, byOrigin, "autonomy_kernel")
	assert.Equal(t, 0, byOrigin["user"].StillOpen)
	assert.Equal(t, 1, byOrigin["autonomy_kernel"].StillOpen)
}

func TestVelocity_WindowBuckets(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()
	a := New(log)

	for i := 0; i < 3; i++ {
		_, err := log.Append(ctx, eventlog.KindCommitmentOpen, "o", map[string]interface{}{"cid": "v"})
		require.NoError(t, err)
	}

	windows := a.Velocity(2)
	require.NotEmpty(t, windows)
	total := 0
	for _, w := range windows {
		total += w.Opens
	}
	assert.Equal(t, 3, total)
}

func TestSuccessTrend_AveragesPerWindow(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()
	a := New(log)

	_, err := log.Append(ctx, eventlog.KindCommitmentOpen, "o", map[string]interface{}{"cid": "s1"})
	require.NoError(t, err)
	_, err = log.Append(ctx, eventlog.KindCommitmentClose, "c", map[string]interface{}{"cid": "s1", "outcome_score": 0.8})
	require.NoError(t, err)

	trend := a.SuccessTrend(50)
	require.Len(t, trend, 1)
	assert.InDelta(t, 0.8, trend[0].AvgScore, 0.0001)
}
