package ontology

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/analysis/commitment"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/eventlog"
)

func newTestLog(t *testing.T) *eventlog.EventLog {
	t.Helper()
	l, err := eventlog.Open(context.Background())
	require.NoError(t, err)
	return l
}

func TestAutonomy_MaybeEmitSnapshot_WaitsForInterval(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()
	analyzer := commitment.New(log)
	a := New(log, analyzer, 10)

	for i := 0; i < 5; i++ {
		_, err := log.Append(ctx, eventlog.KindUserMessage, "hi", nil)
		require.NoError(t, err)
	}

	emitted, err := a.MaybeEmitSnapshot(ctx)
	require.NoError(t, err)
	assert.False(t, emitted)
}

func TestAutonomy_MaybeEmitSnapshot_EmitsAtBoundary(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()
	analyzer := commitment.New(log)
	a := New(log, analyzer, 5)

	for i := 0; i < 5; i++ {
		_, err := log.Append(ctx, eventlog.KindUserMessage, "hi", nil)
		require.NoError(t, err)
	}

	emitted, err := a.MaybeEmitSnapshot(ctx)
	require.NoError(t, err)
	assert.True(t, emitted)

	snapshots := log.ReadByKind(eventlog.KindOntologySnapshot, 0, false)
	require.Len(t, snapshots, 1)

	// Below the next boundary: no second snapshot.
	_, err = log.Append(ctx, eventlog.KindUserMessage, "hi", nil)
	require.NoError(t, err)
	emitted, err = a.MaybeEmitSnapshot(ctx)
	require.NoError(t, err)
	assert.False(t, emitted)
}

func TestAutonomy_DetectInsights_NeedsTwoSnapshots(t *testing.T) {
	log := newTestLog(t)
	analyzer := commitment.New(log)
	a := New(log, analyzer, 5)

	insights := a.DetectInsights()
	assert.Empty(t, insights)
}

func TestAutonomy_DetectInsights_FlagsAbandonmentSpike(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()

	snapshot := func(atEvent int64, abandonment float64) {
		content := fmt.Sprintf(`{"at_event":%d,"metrics":{"open_count":1,"closed_count":0,"still_open":1,"success_rate":0,"avg_duration_events":0,"abandonment_rate":%.2f},"distributions":{"outcome":{},"duration":{}},"by_origin":{}}`, atEvent, abandonment)
		_, err := log.Append(ctx, eventlog.KindOntologySnapshot, content, map[string]interface{}{"source": "ontology_autonomy"})
		require.NoError(t, err)
	}
	snapshot(10, 0.1)
	snapshot(20, 0.5)

	analyzer := commitment.New(log)
	a := New(log, analyzer, 10)

	insights := a.DetectInsights()
	found := false
	for _, insight := range insights {
		if insight.Pattern == "abandonment_spike" {
			found = true
		}
	}
	assert.True(t, found)
}
