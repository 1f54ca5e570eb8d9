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

type reflectExecutor struct {
	log *eventlog.EventLog
}

func (r *reflectExecutor) Execute(ctx context.Context, decision Decision) error {
	_, err := r.log.Append(ctx, eventlog.KindReflection, decision.Reasoning, nil)
	return err
}

func TestDispatcher_HandleStimulus_RecordsSuccessWhenExpectedKindAppears(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()

	tokens := []string{"identity.continuity", "identity.coherence", "identity.stability"}
	for _, token := range tokens {
		_, err := log.Append(ctx, eventlog.KindConceptDefine, `{"token":"`+token+`"}`, nil)
		require.NoError(t, err)
	}

	cg := projections.NewConceptGraph()
	log.RegisterListener(cg.Sync)
	cg.Rebuild(log.ReadAll())
	analyzer := topology.NewAnalyzer(cg)
	identity := topology.NewIdentityAnalyzer(analyzer, tokens, topology.DefaultThresholds())
	kernel := NewKernel(log, identity, temporal.New(log), commitment.New(log), config.Default().Thresholds)

	executor := &reflectExecutor{log: log}
	dispatcher := NewDispatcher(log, kernel, executor, nil)

	stimulusID, err := log.Append(ctx, eventlog.KindAutonomyStimulus, "tick", nil)
	require.NoError(t, err)
	stimulus, ok := log.Get(stimulusID)
	require.True(t, ok)

	dispatcher.HandleStimulus(ctx, stimulus)

	outcomes := log.ReadByKind(eventlog.KindOutcomeObservation, 0, false)
	require.Len(t, outcomes, 1)
	assert.Equal(t, true, outcomes[0].Meta["success"])
	assert.Equal(t, "reflect", outcomes[0].Meta["action"])
}

func TestDispatcher_HandleStimulus_EmptyLedgerFallsThroughToIndex(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()

	cg := projections.NewConceptGraph()
	log.RegisterListener(cg.Sync)
	analyzer := topology.NewAnalyzer(cg)
	identity := topology.NewIdentityAnalyzer(analyzer, nil, topology.DefaultThresholds())
	kernel := NewKernel(log, identity, temporal.New(log), commitment.New(log), config.Default().Thresholds)

	dispatcher := NewDispatcher(log, kernel, nil, nil)
	stimulusID, err := log.Append(ctx, eventlog.KindAutonomyStimulus, "tick", nil)
	require.NoError(t, err)
	stimulus, ok := log.Get(stimulusID)
	require.True(t, ok)

	// With no concept-binding events anywhere in the ledger, the unindexed
	// check (rule 6) fires before the no-op fallback (rule 7) is reached.
	dispatcher.HandleStimulus(ctx, stimulus)

	outcomes := log.ReadByKind(eventlog.KindOutcomeObservation, 0, false)
	require.Len(t, outcomes, 1)
	assert.Equal(t, "index", outcomes[0].Meta["action"])
	assert.Equal(t, false, outcomes[0].Meta["success"])
}
