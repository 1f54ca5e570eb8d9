package autonomy

import (
	"context"
	"log/slog"

	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/eventlog"
)

// ActionExecutor performs the side effects behind a Decision. Callers
// (typically the runtime loop) implement this against their own
// reflection/summary/indexing machinery.
type ActionExecutor interface {
	Execute(ctx context.Context, decision Decision) error
}

// outcomeKindFor maps an action to the event kinds whose appearance during
// the tick counts as success: an outcome_observation is "success" iff any
// of the corresponding kinds appeared since the tick started. Index success
// accepts either claim_from_text or concept_bind_async, since a run of the
// indexing cycle may produce either depending on what it finds.
var outcomeKindFor = map[Action][]eventlog.Kind{
	ActionReflect:            {eventlog.KindReflection},
	ActionTemporalReflection: {eventlog.KindReflection},
	ActionSummarize:          {eventlog.KindSummaryUpdate},
	ActionIndex:              {eventlog.KindClaimFromText, eventlog.KindConceptBindAsync},
	ActionTemporalAnalysis:   {eventlog.KindCoherenceCheck},
}

// Dispatcher listens for autonomy_stimulus events, asks the Kernel for a
// decision, runs it through an ActionExecutor, and records the outcome.
type Dispatcher struct {
	log      *eventlog.EventLog
	kernel   *Kernel
	executor ActionExecutor
	telemetry *Telemetry
}

// NewDispatcher builds a Dispatcher. Call Attach to wire it as a ledger
// listener.
func NewDispatcher(log *eventlog.EventLog, kernel *Kernel, executor ActionExecutor, telemetry *Telemetry) *Dispatcher {
	return &Dispatcher{log: log, kernel: kernel, executor: executor, telemetry: telemetry}
}

// Attach registers the dispatcher as a listener for autonomy_stimulus
// events.
func (d *Dispatcher) Attach() {
	d.log.RegisterListener(func(e eventlog.Event) {
		if e.Kind != eventlog.KindAutonomyStimulus {
			return
		}
		d.HandleStimulus(context.Background(), e)
	})
}

// HandleStimulus runs one decide-execute-observe tick for a single
// autonomy_stimulus event.
func (d *Dispatcher) HandleStimulus(ctx context.Context, stimulus eventlog.Event) {
	decision := d.kernel.DecideNextAction()
	tickStart := d.log.Count()

	var execErr error
	if decision.Action != ActionNone && d.executor != nil {
		execErr = d.executor.Execute(ctx, decision)
		if execErr != nil {
			slog.Error("autonomy action execution failed", "action", decision.Action, "error", execErr)
		}
	}

	d.observeOutcome(ctx, stimulus, decision, tickStart, execErr)

	if d.telemetry != nil {
		d.telemetry.MaybeEmit(ctx)
	}
}

func (d *Dispatcher) observeOutcome(ctx context.Context, stimulus eventlog.Event, decision Decision, tickStart int64, execErr error) {
	success := decision.Action == ActionNone && execErr == nil
	if kinds, ok := outcomeKindFor[decision.Action]; ok {
	since:
		for _, e := range d.log.ReadSince(tickStart, 0) {
			for _, kind := range kinds {
				if e.Kind == kind {
					success = true
					break since
				}
			}
		}
	}

	meta := map[string]interface{}{
		"stimulus_id": stimulus.ID,
		"action":      string(decision.Action),
		"success":     success,
		"reasoning":   decision.Reasoning,
	}
	if _, err := d.log.Append(ctx, eventlog.KindOutcomeObservation, decision.Reasoning, meta); err != nil {
		slog.Error("failed to append outcome_observation", "error", err)
	}
}
