package autonomy

import (
	"fmt"
	"time"

	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/analysis/commitment"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/analysis/temporal"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/analysis/topology"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/config"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/eventlog"
)

// Action is one of the fixed set the kernel can decide on.
type Action string

const (
	ActionReflect           Action = "reflect"
	ActionSummarize         Action = "summarize"
	ActionIndex             Action = "index"
	ActionTemporalReflection Action = "temporal_reflection"
	ActionTemporalAnalysis  Action = "temporal_analysis"
	ActionNone              Action = "none"
)

var conceptIndexKinds = map[eventlog.Kind]bool{
	eventlog.KindConceptDefine:     true,
	eventlog.KindConceptAlias:      true,
	eventlog.KindConceptBindEvent:  true,
	eventlog.KindConceptRelate:     true,
	eventlog.KindConceptBindThread: true,
	eventlog.KindConceptBindAsync:  true,
}

// Decision is the kernel's verdict for one tick: an action, the reason it
// was chosen, and the evidence backing that reason.
type Decision struct {
	Action    Action
	Reasoning string
	Evidence  map[string]interface{}
}

// Kernel decides what the runtime should do next, evaluating a fixed
// first-match-wins rule chain over the ledger's current derived state.
type Kernel struct {
	log        *eventlog.EventLog
	identity   *topology.IdentityAnalyzer
	temporal   *temporal.Analyzer
	commitment *commitment.Analyzer
	thresholds config.ThresholdsConfig
	clock      func() time.Time
}

// NewKernel builds a Kernel over the given analyzers and thresholds.
func NewKernel(log *eventlog.EventLog, identity *topology.IdentityAnalyzer, temporalAnalyzer *temporal.Analyzer, commitmentAnalyzer *commitment.Analyzer, thresholds config.ThresholdsConfig) *Kernel {
	return &Kernel{
		log:        log,
		identity:   identity,
		temporal:   temporalAnalyzer,
		commitment: commitmentAnalyzer,
		thresholds: thresholds,
		clock:      time.Now,
	}
}

// DecideNextAction walks the rule chain in order and returns the first
// action whose condition holds.
func (k *Kernel) DecideNextAction() Decision {
	if d, ok := k.identityCritical(); ok {
		return d
	}
	if d, ok := k.lowIdentityStability(); ok {
		return d
	}
	if d, ok := k.anomalyThreshold(); ok {
		return d
	}
	if d, ok := k.staleCommitments(); ok {
		return d
	}
	if d, ok := k.summaryDue(); ok {
		return d
	}
	if d, ok := k.unindexedEvents(); ok {
		return d
	}
	return Decision{Action: ActionNone, Reasoning: "no condition in the decision chain matched"}
}

func (k *Kernel) currentEventID() int64 {
	tail := k.log.ReadTail(1)
	if len(tail) == 0 {
		return 0
	}
	return tail[0].ID
}

func (k *Kernel) identityCritical() (Decision, bool) {
	report := k.identity.Analyze()
	for _, alert := range report.Alerts {
		if alert.Level != "critical" {
			continue
		}
		if alert.Type != "cohesion" && alert.Type != "fragmentation" {
			continue
		}
		return Decision{
			Action:    ActionReflect,
			Reasoning: fmt.Sprintf("identity topology %s alert is critical", alert.Type),
			Evidence: map[string]interface{}{
				"source": "identity topology",
				"alert":  alert.Type,
				"value":  alert.Value,
			},
		}, true
	}
	return Decision{}, false
}

func (k *Kernel) lowIdentityStability() (Decision, bool) {
	p, ok := k.recentPattern("low_identity_stability", 0.8)
	if !ok {
		return Decision{}, false
	}
	return Decision{
		Action:    ActionTemporalReflection,
		Reasoning: "recent high-confidence low_identity_stability pattern",
		Evidence:  map[string]interface{}{"confidence": p.Confidence, "description": p.Description},
	}, true
}

func (k *Kernel) recentPattern(patternType string, minConfidence float64) (temporal.Pattern, bool) {
	tail := k.log.ReadTail(50)
	if len(tail) == 0 {
		return temporal.Pattern{}, false
	}
	result := k.temporal.AnalyzeWindow(tail[0].ID, tail[len(tail)-1].ID)
	for _, p := range result.Patterns {
		if p.Type == patternType && p.Confidence > minConfidence {
			return p, true
		}
	}
	return temporal.Pattern{}, false
}

func (k *Kernel) anomalyThreshold() (Decision, bool) {
	anomalies := k.temporal.DetectAnomalies(0.5)
	threshold := k.thresholds.AnomalyCountThreshold
	if threshold <= 0 {
		threshold = 3
	}
	if len(anomalies) < threshold {
		return Decision{}, false
	}
	return Decision{
		Action:    ActionTemporalAnalysis,
		Reasoning: fmt.Sprintf("%d anomalies at or above threshold %d", len(anomalies), threshold),
		Evidence:  map[string]interface{}{"anomalies": anomalies},
	}, true
}

func (k *Kernel) staleCommitments() (Decision, bool) {
	staleness := time.Duration(k.thresholds.CommitmentStalenessS) * time.Second
	count := k.commitment.StaleOpenCount(k.clock(), staleness)
	threshold := k.thresholds.StaleCommitmentCount
	if threshold <= 0 {
		threshold = 3
	}
	if count < threshold {
		return Decision{}, false
	}
	return Decision{
		Action:    ActionReflect,
		Reasoning: fmt.Sprintf("%d open commitments exceed staleness threshold", count),
		Evidence:  map[string]interface{}{"stale_open_count": count},
	}, true
}

func (k *Kernel) summaryDue() (Decision, bool) {
	threshold := int64(k.thresholds.SummaryEventInterval)
	if threshold <= 0 {
		threshold = 50
	}
	current := k.currentEventID()
	var since int64
	if last, ok := k.log.LastOfKind(eventlog.KindSummaryUpdate); ok {
		since = current - last.ID
	} else {
		since = current
	}
	if since < threshold {
		return Decision{}, false
	}
	return Decision{
		Action:    ActionSummarize,
		Reasoning: fmt.Sprintf("%d events since last summary_update exceeds %d", since, threshold),
		Evidence:  map[string]interface{}{"events_since_summary": since},
	}, true
}

func (k *Kernel) unindexedEvents() (Decision, bool) {
	window := k.thresholds.SummaryEventInterval
	if window <= 0 {
		window = 50
	}
	tail := k.log.ReadTail(window)
	for _, e := range tail {
		if conceptIndexKinds[e.Kind] {
			return Decision{}, false
		}
	}
	if len(tail) == 0 {
		return Decision{}, false
	}
	return Decision{
		Action:    ActionIndex,
		Reasoning: fmt.Sprintf("no concept bindings in the last %d events", window),
		Evidence:  map[string]interface{}{"window": window},
	}, true
}
