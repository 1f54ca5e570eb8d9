package runtimeloop

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/autonomy"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/eventlog"
)

// TickExecutor adapts the runtime loop's own reflection, summary, and
// indexing machinery to autonomy.ActionExecutor, so the autonomy dispatcher
// can drive them off an autonomy_stimulus without knowing their internals.
type TickExecutor struct {
	loop *RuntimeLoop
}

// NewTickExecutor builds a TickExecutor bound to the given loop.
func NewTickExecutor(loop *RuntimeLoop) *TickExecutor {
	return &TickExecutor{loop: loop}
}

// Execute dispatches on decision.Action exactly as the reference tick
// handler does: reflect/temporal_reflection synthesize a reflection whose
// text includes the staleness/auto-close scans, summarize appends a
// summary_update on schedule, index runs one indexing cycle, and
// temporal_analysis appends a coherence_check diagnostic (temporal_analysis
// itself is not a ledger kind, so nothing else is recorded for it beyond the
// diagnostic that outcome observation looks for).
func (x *TickExecutor) Execute(ctx context.Context, decision autonomy.Decision) error {
	r := x.loop
	switch decision.Action {
	case autonomy.ActionReflect, autonomy.ActionTemporalReflection:
		delta := TurnDelta{ReflectBlock: decision.Reasoning}
		_, err := synthesizeReflection(ctx, r.Log, r.CommitmentAnalyzer, r.Log.Count(), delta,
			r.Thresholds.CommitmentStalenessS, r.Thresholds.CommitmentAutoCloseS, "autonomy_kernel")
		return err
	case autonomy.ActionSummarize:
		_, err := maybeAppendSummary(ctx, r.Log, 1)
		return err
	case autonomy.ActionIndex:
		return x.runIndexingCycle(ctx)
	case autonomy.ActionTemporalAnalysis:
		payload, _ := json.Marshal(map[string]interface{}{"reasoning": decision.Reasoning, "source": "autonomy_kernel"})
		_, err := r.Log.Append(ctx, eventlog.KindCoherenceCheck, string(payload), map[string]interface{}{"source": "autonomy_kernel"})
		return err
	default:
		return nil
	}
}

// runIndexingCycle scans the user/assistant turns among the last 30 events
// and, for each concept graph token literally present in a turn's text but
// not yet bound to that turn, appends a concept_bind_async. It does not
// extract claims, so it never appends claim_from_text.
func (x *TickExecutor) runIndexingCycle(ctx context.Context) error {
	r := x.loop
	tail := r.Log.ReadTail(30)

	produced := false
	for _, e := range tail {
		if e.Kind != eventlog.KindUserMessage && e.Kind != eventlog.KindAssistantMessage {
			continue
		}
		for _, token := range r.Concepts.Tokens() {
			bound := false
			for _, id := range r.Concepts.EventsFor(token) {
				if id == e.ID {
					bound = true
					break
				}
			}
			if bound {
				continue
			}
			if !strings.Contains(strings.ToLower(e.Content), strings.ToLower(token)) {
				continue
			}
			payload, _ := json.Marshal(map[string]string{"token": token})
			if _, err := r.Log.Append(ctx, eventlog.KindConceptBindAsync, string(payload), map[string]interface{}{
				"source":       "autonomy_kernel",
				"ref_event_id": e.ID,
			}); err != nil {
				return err
			}
			produced = true
		}
	}
	_ = produced
	return nil
}
