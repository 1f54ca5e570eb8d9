package autonomy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/analysis/commitment"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/analysis/temporal"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/analysis/topology"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/config"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/eventlog"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/projections"
)

func buildKernel(t *testing.T, log *eventlog.EventLog, tokens []string) *Kernel {
	t.Helper()
	cg := projections.NewConceptGraph()
	log.RegisterListener(cg.Sync)
	cg.Rebuild(log.ReadAll())
	analyzer := topology.NewAnalyzer(cg)
	identity := topology.NewIdentityAnalyzer(analyzer, tokens, topology.DefaultThresholds())
	return NewKernel(log, identity, temporal.New(log), commitment.New(log), config.Default().Thresholds)
}

func TestKernel_IdentityCriticalFragmentationYieldsReflect(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()
	tokens := []string{"identity.continuity", "identity.coherence", "identity.stability"}

	for _, token := range tokens {
		_, err := log.Append(ctx, eventlog.KindConceptDefine, `{"token":"`+token+`"}`, nil)
		require.NoError(t, err)
	}

	k := buildKernel(t, log, tokens)
	decision := k.DecideNextAction()

	assert.Equal(t, ActionReflect, decision.Action)
	assert.Equal(t, "fragmentation", decision.Evidence["alert"])
}

func TestKernel_NoSignalsYieldsNone(t *testing.T) {
	log := newTestLog(t)
	k := buildKernel(t, log, []string{"identity.continuity"})

	decision := k.DecideNextAction()
	assert.Equal(t, ActionNone, decision.Action)
}

func TestKernel_StaleOpenCommitmentsYieldsReflect(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := log.Append(ctx, eventlog.KindCommitmentOpen, "do the thing", map[string]interface{}{"cid": "c" + string(rune('a'+i))})
		require.NoError(t, err)
	}

	thresholds := config.Default().Thresholds
	thresholds.CommitmentStalenessS = 0
	thresholds.StaleCommitmentCount = 3

	cg := projections.NewConceptGraph()
	log.RegisterListener(cg.Sync)
	analyzer := topology.NewAnalyzer(cg)
	identity := topology.NewIdentityAnalyzer(analyzer, nil, topology.DefaultThresholds())
	k := NewKernel(log, identity, temporal.New(log), commitment.New(log), thresholds)

	decision := k.DecideNextAction()
	assert.Equal(t, ActionReflect, decision.Action)
}

func TestKernel_UnindexedEventsYieldsIndex(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()

	thresholds := config.Default().Thresholds
	thresholds.SummaryEventInterval = 3
	thresholds.CommitmentStalenessS = 999999999
	thresholds.StaleCommitmentCount = 999

	_, err := log.Append(ctx, eventlog.KindSummaryUpdate, "summary", nil)
	require.NoError(t, err)
	_, err = log.Append(ctx, eventlog.KindUserMessage, "hi", nil)
	require.NoError(t, err)
	_, err = log.Append(ctx, eventlog.KindUserMessage, "hi again", nil)
	require.NoError(t, err)

	cg := projections.NewConceptGraph()
	log.RegisterListener(cg.Sync)
	analyzer := topology.NewAnalyzer(cg)
	identity := topology.NewIdentityAnalyzer(analyzer, nil, topology.DefaultThresholds())
	k := NewKernel(log, identity, temporal.New(log), commitment.New(log), thresholds)

	decision := k.DecideNextAction()
	assert.Equal(t, ActionIndex, decision.Action)
}
