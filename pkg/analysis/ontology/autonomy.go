// Package ontology periodically snapshots commitment metrics into the
// ledger and detects notable shifts between consecutive snapshots. Unlike
// pkg/analysis/commitment and pkg/analysis/temporal, which are read-only
// derived views, this package writes: snapshots and insights are ledger
// events in their own right, replayable like any other.
package ontology

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/analysis/commitment"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/eventlog"
)

// Insight is a detected shift in commitment evolution between two
// snapshots.
type Insight struct {
	Pattern     string
	Description string
	Evidence    []int64
	Severity    string // positive, neutral, negative
}

type snapshotMetrics struct {
	OpenCount         int     `json:"open_count"`
	ClosedCount       int     `json:"closed_count"`
	StillOpen         int     `json:"still_open"`
	SuccessRate       float64 `json:"success_rate"`
	AvgDurationEvents float64 `json:"avg_duration_events"`
	AbandonmentRate   float64 `json:"abandonment_rate"`
}

type snapshotOriginMetrics struct {
	OpenCount   int     `json:"open_count"`
	ClosedCount int     `json:"closed_count"`
	SuccessRate float64 `json:"success_rate"`
}

type snapshotContent struct {
	AtEvent       int64                            `json:"at_event"`
	Metrics       snapshotMetrics                  `json:"metrics"`
	Distributions snapshotDistributions            `json:"distributions"`
	ByOrigin      map[string]snapshotOriginMetrics `json:"by_origin"`
}

type snapshotDistributions struct {
	Outcome  map[string]int `json:"outcome"`
	Duration map[string]int `json:"duration"`
}

// Autonomy emits periodic ontology_snapshot events from commitment metrics
// and flags significant success-rate or abandonment shifts as
// ontology_insight events.
type Autonomy struct {
	log      *eventlog.EventLog
	analyzer *commitment.Analyzer
	interval int64

	lastSnapshotAt int64
	hasSnapshot    bool
}

// New builds an Autonomy instance, resuming from the most recent
// ontology_snapshot already in the ledger, if any.
func New(log *eventlog.EventLog, analyzer *commitment.Analyzer, interval int64) *Autonomy {
	a := &Autonomy{log: log, analyzer: analyzer, interval: interval}
	a.lastSnapshotAt, a.hasSnapshot = a.findLastSnapshot()
	return a
}

func (a *Autonomy) findLastSnapshot() (int64, bool) {
	snapshots := a.log.ReadByKind(eventlog.KindOntologySnapshot, 1, true)
	if len(snapshots) == 0 {
		return 0, false
	}
	var content snapshotContent
	if err := json.Unmarshal([]byte(snapshots[0].Content), &content); err != nil {
		return 0, false
	}
	return content.AtEvent, true
}

func (a *Autonomy) currentEventID() int64 {
	tail := a.log.ReadTail(1)
	if len(tail) == 0 {
		return 0
	}
	return tail[0].ID
}

// MaybeEmitSnapshot appends an ontology_snapshot once the ledger has
// advanced past the next interval boundary. Returns true if one was
// emitted.
func (a *Autonomy) MaybeEmitSnapshot(ctx context.Context) (bool, error) {
	if a.interval <= 0 {
		return false, nil
	}
	current := a.currentEventID()

	var snapshotAt int64
	if !a.hasSnapshot {
		if current < a.interval {
			return false, nil
		}
		snapshotAt = (current / a.interval) * a.interval
	} else {
		next := a.lastSnapshotAt + a.interval
		if current < next {
			return false, nil
		}
		snapshotAt = next
	}

	metrics := a.analyzer.ComputeMetrics()
	byOrigin := a.analyzer.ByOrigin()
	origins := make(map[string]snapshotOriginMetrics, len(byOrigin))
	for origin, m := range byOrigin {
		origins[origin] = snapshotOriginMetrics{
			OpenCount:   m.OpenCount,
			ClosedCount: m.ClosedCount,
			SuccessRate: m.SuccessRate,
		}
	}

	content := snapshotContent{
		AtEvent: snapshotAt,
		Metrics: snapshotMetrics{
			OpenCount:         metrics.OpenCount,
			ClosedCount:       metrics.ClosedCount,
			StillOpen:         metrics.StillOpen,
			SuccessRate:       metrics.SuccessRate,
			AvgDurationEvents: metrics.AvgDurationEvents,
			AbandonmentRate:   metrics.AbandonmentRate,
		},
		Distributions: snapshotDistributions{
			Outcome:  a.analyzer.OutcomeDistribution(),
			Duration: a.analyzer.DurationDistribution(),
		},
		ByOrigin: origins,
	}

	raw, err := json.Marshal(content)
	if err != nil {
		return false, err
	}

	if _, err := a.log.Append(ctx, eventlog.KindOntologySnapshot, string(raw), map[string]interface{}{"source": "ontology_autonomy"}); err != nil {
		return false, err
	}

	a.lastSnapshotAt = snapshotAt
	a.hasSnapshot = true
	return true, nil
}

// DetectInsights compares the two most recent snapshots for a success-rate
// swing of 20% or more, or an abandonment rate of 30% or more.
func (a *Autonomy) DetectInsights() []Insight {
	snapshots := a.log.ReadByKind(eventlog.KindOntologySnapshot, 2, true)
	if len(snapshots) < 2 {
		return nil
	}

	var current, previous snapshotContent
	if err := json.Unmarshal([]byte(snapshots[0].Content), &current); err != nil {
		return nil
	}
	if err := json.Unmarshal([]byte(snapshots[1].Content), &previous); err != nil {
		return nil
	}

	var insights []Insight
	currSuccess := current.Metrics.SuccessRate
	prevSuccess := previous.Metrics.SuccessRate

	if prevSuccess > 0 && currSuccess > prevSuccess {
		improvement := (currSuccess - prevSuccess) / prevSuccess
		if improvement >= 0.2 {
			insights = append(insights, Insight{
				Pattern:     "success_improvement",
				Description: fmt.Sprintf("success rate increased %.0f%% (from %.2f to %.2f)", improvement*100, prevSuccess, currSuccess),
				Evidence:    []int64{current.AtEvent, previous.AtEvent},
				Severity:    "positive",
			})
		}
	}

	if prevSuccess > 0 && currSuccess < prevSuccess {
		decline := (prevSuccess - currSuccess) / prevSuccess
		if decline >= 0.2 {
			insights = append(insights, Insight{
				Pattern:     "success_decline",
				Description: fmt.Sprintf("success rate decreased %.0f%% (from %.2f to %.2f)", decline*100, prevSuccess, currSuccess),
				Evidence:    []int64{current.AtEvent, previous.AtEvent},
				Severity:    "negative",
			})
		}
	}

	if current.Metrics.AbandonmentRate >= 0.3 {
		insights = append(insights, Insight{
			Pattern:     "abandonment_spike",
			Description: fmt.Sprintf("high abandonment rate: %.0f%% of commitments still open", current.Metrics.AbandonmentRate*100),
			Evidence:    []int64{current.AtEvent},
			Severity:    "negative",
		})
	}

	return insights
}

// EmitInsights appends one ontology_insight event per detected insight.
func (a *Autonomy) EmitInsights(ctx context.Context, insights []Insight) error {
	for _, insight := range insights {
		content := map[string]interface{}{
			"pattern":     insight.Pattern,
			"description": insight.Description,
			"evidence":    insight.Evidence,
			"severity":    insight.Severity,
		}
		raw, err := json.Marshal(content)
		if err != nil {
			return err
		}
		if _, err := a.log.Append(ctx, eventlog.KindOntologyInsight, string(raw), map[string]interface{}{"source": "ontology_autonomy"}); err != nil {
			return err
		}
	}
	return nil
}
