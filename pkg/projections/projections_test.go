package projections

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

func TestMirror_OpenCommitmentsInvariant(t *testing.T) {
	log := newTestLog(t)
	mirror := NewMirror()
	log.RegisterListener(mirror.Sync)
	ctx := context.Background()

	_, err := log.Append(ctx, eventlog.KindCommitmentOpen, "a", map[string]interface{}{"cid": "c1"})
	require.NoError(t, err)
	_, err = log.Append(ctx, eventlog.KindCommitmentOpen, "b", map[string]interface{}{"cid": "c2"})
	require.NoError(t, err)
	_, err = log.Append(ctx, eventlog.KindCommitmentClose, "c1", map[string]interface{}{"cid": "c1"})
	require.NoError(t, err)

	open := mirror.OpenCommitments()
	assert.Len(t, open, 1)
	_, stillOpen := open["c2"]
	assert.True(t, stillOpen)
}

func TestMirror_CurrentRetrievalConfig(t *testing.T) {
	log := newTestLog(t)
	mirror := NewMirror()
	log.RegisterListener(mirror.Sync)
	ctx := context.Background()

	_, err := log.Append(ctx, eventlog.KindConfig, `{"type":"retrieval","strategy":"hybrid","limit":20}`, nil)
	require.NoError(t, err)

	cfg, ok := mirror.CurrentRetrievalConfig()
	require.True(t, ok)
	assert.Equal(t, "hybrid", cfg.Strategy)
	assert.Equal(t, 20, cfg.Limit)
}

func TestConceptGraph_CanonicalizeTransitive(t *testing.T) {
	log := newTestLog(t)
	cg := NewConceptGraph()
	log.RegisterListener(cg.Sync)
	ctx := context.Background()

	_, err := log.Append(ctx, eventlog.KindConceptAlias, `{"alias":"a1","canonical":"a2"}`, nil)
	require.NoError(t, err)
	_, err = log.Append(ctx, eventlog.KindConceptAlias, `{"alias":"a2","canonical":"identity.continuity"}`, nil)
	require.NoError(t, err)

	assert.Equal(t, "identity.continuity", cg.Canonicalize("a1"))
}

func TestConceptGraph_CycleBrokenByLexicographicMinimum(t *testing.T) {
	log := newTestLog(t)
	cg := NewConceptGraph()
	log.RegisterListener(cg.Sync)
	ctx := context.Background()

	_, err := log.Append(ctx, eventlog.KindConceptAlias, `{"alias":"zeta","canonical":"alpha"}`, nil)
	require.NoError(t, err)
	_, err = log.Append(ctx, eventlog.KindConceptAlias, `{"alias":"alpha","canonical":"zeta"}`, nil)
	require.NoError(t, err)

	assert.Equal(t, "alpha", cg.Canonicalize("zeta"))
}

func TestConceptGraph_FragmentationNoEdgeBetweenIdentityTokens(t *testing.T) {
	log := newTestLog(t)
	cg := NewConceptGraph()
	log.RegisterListener(cg.Sync)
	ctx := context.Background()

	_, err := log.Append(ctx, eventlog.KindConceptDefine, `{"token":"identity.a"}`, nil)
	require.NoError(t, err)
	_, err = log.Append(ctx, eventlog.KindConceptDefine, `{"token":"identity.b"}`, nil)
	require.NoError(t, err)

	assert.Len(t, cg.Edges(), 0)
	assert.Len(t, cg.Tokens(), 2)
}

func TestCommitmentManager_TurnScenario(t *testing.T) {
	log := newTestLog(t)
	mirror := NewMirror()
	cm := NewCommitmentManager(log)
	log.RegisterListener(mirror.Sync)
	log.RegisterListener(cm.Sync)
	ctx := context.Background()

	_, err := log.Append(ctx, eventlog.KindCommitmentOpen, "existing", map[string]interface{}{"cid": "cid_xyz"})
	require.NoError(t, err)

	newCid, err := cm.OpenCommitment(ctx, "Analyze Q1", "assistant")
	require.NoError(t, err)
	assert.NotEmpty(t, newCid)

	closed, err := cm.ApplyClosures(ctx, []string{"cid_xyz", "unknown_cid"}, "assistant")
	require.NoError(t, err)
	assert.Equal(t, []string{"cid_xyz"}, closed)

	open := mirror.OpenCommitments()
	_, stillOpenNew := open[newCid]
	assert.True(t, stillOpenNew)
	_, stillOpenXYZ := open["cid_xyz"]
	assert.False(t, stillOpenXYZ)
}

func TestCommitmentManager_CloseStructuredOutcomeScore(t *testing.T) {
	log := newTestLog(t)
	cm := NewCommitmentManager(log)
	log.RegisterListener(cm.Sync)
	ctx := context.Background()

	cid, err := cm.OpenCommitmentStructured(ctx, "Ship feature", "improve UX", []string{"a", "b"}, "user")
	require.NoError(t, err)

	err = cm.CloseCommitmentStructured(ctx, cid, "done", map[string]bool{"a": true, "b": false}, "user")
	require.NoError(t, err)

	closes := log.ReadByKind(eventlog.KindCommitmentClose, 0, false)
	require.Len(t, closes, 1)
	assert.InDelta(t, 0.5, closes[0].Meta["outcome_score"], 0.0001)
}

func TestMemeGraph_SharedConceptAdjacency(t *testing.T) {
	log := newTestLog(t)
	mg := NewMemeGraph()
	log.RegisterListener(mg.Sync)
	ctx := context.Background()

	_, err := log.Append(ctx, eventlog.KindConceptBindEvent, `{"token":"identity.continuity"}`,
		map[string]interface{}{"user_event_id": int64(1), "assistant_event_id": int64(2)})
	require.NoError(t, err)

	neighbors := mg.Neighbors(1)
	assert.Contains(t, neighbors, int64(2))
}
