package autonomy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/analysis/commitment"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/analysis/temporal"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/analysis/topology"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/eventlog"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/projections"
)

func buildTelemetry(t *testing.T, log *eventlog.EventLog, interval int64) *Telemetry {
	t.Helper()
	cg := projections.NewConceptGraph()
	log.RegisterListener(cg.Sync)
	analyzer := topology.NewAnalyzer(cg)
	identity := topology.NewIdentityAnalyzer(analyzer, nil, topology.DefaultThresholds())
	return NewTelemetry(log, identity, temporal.New(log), commitment.New(log), interval)
}

func TestTelemetry_EmitsOnceIntervalReached(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()
	telemetry := buildTelemetry(t, log, 10)

	for i := 0; i < 10; i++ {
		_, err := log.Append(ctx, eventlog.KindUserMessage, "hi", nil)
		require.NoError(t, err)
	}

	telemetry.MaybeEmit(ctx)

	assert.Len(t, log.ReadByKind(eventlog.KindStabilityMetrics, 0, false), 1)
	assert.Len(t, log.ReadByKind(eventlog.KindCoherenceCheck, 0, false), 1)
	assert.Len(t, log.ReadByKind(eventlog.KindPolicyUpdate, 0, false), 1)
	assert.Len(t, log.ReadByKind(eventlog.KindMetaPolicyUpdate, 0, false), 1)
}

func TestTelemetry_IdempotentWithinInterval(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()
	telemetry := buildTelemetry(t, log, 10)

	for i := 0; i < 10; i++ {
		_, err := log.Append(ctx, eventlog.KindUserMessage, "hi", nil)
		require.NoError(t, err)
	}
	telemetry.MaybeEmit(ctx)

	// A second call with no new source events, even though the prior call's
	// own output events nudged the tail id forward, must not re-fire.
	telemetry.MaybeEmit(ctx)

	assert.Len(t, log.ReadByKind(eventlog.KindStabilityMetrics, 0, false), 1)
}
