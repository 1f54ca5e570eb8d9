package autonomy

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/analysis/commitment"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/analysis/temporal"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/analysis/topology"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/eventlog"
)

// Telemetry emits the four adaptive-telemetry event kinds the kernel
// invokes after executing a decision: stability_metrics, coherence_check,
// policy_update and meta_policy_update (concept_maintenance is handled by
// the ontology-autonomy package, which already owns concept-graph upkeep
// via ontology_snapshot). Each kind is gated by its own rolling-interval
// threshold and keyed by the event id it last fired at, so repeated ticks
// within the same interval are no-ops.
type Telemetry struct {
	log        *eventlog.EventLog
	identity   *topology.IdentityAnalyzer
	temporal   *temporal.Analyzer
	commitment *commitment.Analyzer
	interval   int64
}

// NewTelemetry builds a Telemetry emitter. interval is the rolling event
// count between emissions of each telemetry kind.
func NewTelemetry(log *eventlog.EventLog, identity *topology.IdentityAnalyzer, temporalAnalyzer *temporal.Analyzer, commitmentAnalyzer *commitment.Analyzer, interval int64) *Telemetry {
	if interval <= 0 {
		interval = 50
	}
	return &Telemetry{log: log, identity: identity, temporal: temporalAnalyzer, commitment: commitmentAnalyzer, interval: interval}
}

func (t *Telemetry) dueFor(kind eventlog.Kind, current int64) bool {
	last, ok := t.log.LastOfKind(kind)
	if !ok {
		return current >= t.interval
	}
	return current-last.ID >= t.interval
}

// MaybeEmit appends whichever telemetry kinds are due, in the order the
// autonomy kernel's own per-tick maintenance runs them: stability, then
// coherence, then meta-policy, then policy.
func (t *Telemetry) MaybeEmit(ctx context.Context) {
	current := t.currentEventID()

	if t.dueFor(eventlog.KindStabilityMetrics, current) {
		t.emitStabilityMetrics(ctx)
	}
	if t.dueFor(eventlog.KindCoherenceCheck, current) {
		t.emitCoherenceCheck(ctx)
	}
	if t.dueFor(eventlog.KindMetaPolicyUpdate, current) {
		t.emitMetaPolicyUpdate(ctx)
	}
	if t.dueFor(eventlog.KindPolicyUpdate, current) {
		t.emitPolicyUpdate(ctx)
	}
}

func (t *Telemetry) currentEventID() int64 {
	tail := t.log.ReadTail(1)
	if len(tail) == 0 {
		return 0
	}
	return tail[0].ID
}

func (t *Telemetry) append(ctx context.Context, kind eventlog.Kind, payload map[string]interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		slog.Error("failed to marshal telemetry payload", "kind", kind, "error", err)
		return
	}
	if _, err := t.log.Append(ctx, kind, string(raw), map[string]interface{}{"source": "autonomy_telemetry"}); err != nil {
		slog.Error("failed to append telemetry event", "kind", kind, "error", err)
	}
}

func (t *Telemetry) emitStabilityMetrics(ctx context.Context) {
	report := t.identity.Analyze()
	t.append(ctx, eventlog.KindStabilityMetrics, map[string]interface{}{
		"cohesion":            report.Metrics.Cohesion,
		"fragmentation_count": report.Metrics.FragmentationCount,
		"bridge_dependency":   report.Metrics.BridgeDependency,
	})
}

func (t *Telemetry) emitCoherenceCheck(ctx context.Context) {
	tail := t.log.ReadTail(200)
	if len(tail) == 0 {
		return
	}
	result := t.temporal.AnalyzeWindow(tail[0].ID, tail[len(tail)-1].ID)
	t.append(ctx, eventlog.KindCoherenceCheck, map[string]interface{}{
		"pattern_count":   len(result.Patterns),
		"anomaly_count":   len(result.Anomalies),
		"insight_count":   len(result.Insights),
	})
}

func (t *Telemetry) emitPolicyUpdate(ctx context.Context) {
	metrics := t.commitment.ComputeMetrics()
	t.append(ctx, eventlog.KindPolicyUpdate, map[string]interface{}{
		"success_rate":     metrics.SuccessRate,
		"abandonment_rate": metrics.AbandonmentRate,
	})
}

func (t *Telemetry) emitMetaPolicyUpdate(ctx context.Context) {
	report := t.identity.Analyze()
	alertLevels := make(map[string]string, len(report.Alerts))
	for _, a := range report.Alerts {
		alertLevels[a.Type] = a.Level
	}
	t.append(ctx, eventlog.KindMetaPolicyUpdate, map[string]interface{}{
		"identity_alert_levels": alertLevels,
	})
}
