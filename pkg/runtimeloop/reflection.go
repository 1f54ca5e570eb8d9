package runtimeloop

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/analysis/commitment"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/eventlog"
)

// TurnDelta is the net set of ledger-visible changes a turn produced,
// assembled just before the closing reflection is synthesized.
type TurnDelta struct {
	Opened        []string
	Closed        []string
	FailedClaims  []string
	ReflectBlock  string
}

func (d TurnDelta) empty() bool {
	return len(d.Opened) == 0 && len(d.Closed) == 0 && len(d.FailedClaims) == 0 && d.ReflectBlock == ""
}

// synthesizeReflection renders deterministic reflection text from a
// TurnDelta plus a staleness scan (open commitments past staleness without
// progress) and an auto-close scan (open commitments past auto-close with
// no close at all), and appends a reflection event pointing at the
// triggering event id.
func synthesizeReflection(ctx context.Context, log *eventlog.EventLog, analyzer *commitment.Analyzer, triggerEventID int64, delta TurnDelta, stalenessS, autoCloseS int, source string) (int64, error) {
	var b strings.Builder

	if len(delta.Opened) > 0 {
		fmt.Fprintf(&b, "Opened: %s. ", strings.Join(delta.Opened, ", "))
	}
	if len(delta.Closed) > 0 {
		fmt.Fprintf(&b, "Closed: %s. ", strings.Join(delta.Closed, ", "))
	}
	if len(delta.FailedClaims) > 0 {
		fmt.Fprintf(&b, "Failed claims: %s. ", strings.Join(delta.FailedClaims, ", "))
	}
	if delta.ReflectBlock != "" {
		fmt.Fprintf(&b, "%s ", delta.ReflectBlock)
	}

	now := time.Now()
	stale := staleCIDs(log, now, time.Duration(stalenessS)*time.Second)
	if len(stale) > 0 {
		fmt.Fprintf(&b, "Stale without progress: %s. ", strings.Join(stale, ", "))
	}
	abandoned := staleCIDs(log, now, time.Duration(autoCloseS)*time.Second)
	if len(abandoned) > 0 {
		fmt.Fprintf(&b, "Past auto-close horizon: %s. ", strings.Join(abandoned, ", "))
	}

	content := strings.TrimSpace(b.String())
	if content == "" {
		content = "No notable delta this turn."
	}

	meta := map[string]interface{}{
		"source":          source,
		"trigger_event_id": triggerEventID,
	}
	return log.Append(ctx, eventlog.KindReflection, content, meta)
}

// staleCIDs returns the ids of commitments with no close event whose
// opening event's timestamp is at least window old.
func staleCIDs(log *eventlog.EventLog, now time.Time, window time.Duration) []string {
	var out []string
	for _, e := range log.ReadByKind(eventlog.KindCommitmentOpen, 0, false) {
		cid, _ := e.Meta["cid"].(string)
		if cid == "" {
			continue
		}
		opened, err := time.Parse(eventlog.TimestampFormat, e.Ts)
		if err != nil {
			continue
		}
		if now.Sub(opened) >= window && !hasClose(log, cid) {
			out = append(out, cid)
		}
	}
	sort.Strings(out)
	return out
}

func hasClose(log *eventlog.EventLog, cid string) bool {
	for _, e := range log.ReadByKind(eventlog.KindCommitmentClose, 0, false) {
		if c, _ := e.Meta["cid"].(string); c == cid {
			return true
		}
	}
	return false
}

// maybeAppendSummary appends a summary_update when the rolling event count
// since the last one crosses the configured threshold.
func maybeAppendSummary(ctx context.Context, log *eventlog.EventLog, threshold int) (bool, error) {
	if threshold <= 0 {
		threshold = 50
	}
	current := currentEventID(log)
	var since int64
	if last, ok := log.LastOfKind(eventlog.KindSummaryUpdate); ok {
		since = current - last.ID
	} else {
		since = current
	}
	if since < int64(threshold) {
		return false, nil
	}

	tail := log.ReadTail(threshold)
	counts := map[eventlog.Kind]int{}
	for _, e := range tail {
		counts[e.Kind]++
	}
	payload, err := json.Marshal(map[string]interface{}{"events_covered": len(tail), "kind_counts": counts})
	if err != nil {
		return false, err
	}
	if _, err := log.Append(ctx, eventlog.KindSummaryUpdate, string(payload), map[string]interface{}{"source": "runtime_loop"}); err != nil {
		return false, err
	}
	return true, nil
}

// maybeAppendLifetimeMemory appends a lifetime_memory event every interval
// events, summarizing long-horizon commitment outcomes.
func maybeAppendLifetimeMemory(ctx context.Context, log *eventlog.EventLog, analyzer *commitment.Analyzer, interval int) (bool, error) {
	if interval <= 0 {
		interval = 200
	}
	current := currentEventID(log)
	var since int64
	if last, ok := log.LastOfKind(eventlog.KindLifetimeMemory); ok {
		since = current - last.ID
	} else {
		since = current
	}
	if since < int64(interval) {
		return false, nil
	}

	metrics := analyzer.ComputeMetrics()
	payload, err := json.Marshal(map[string]interface{}{
		"total_events":     current,
		"success_rate":     metrics.SuccessRate,
		"abandonment_rate": metrics.AbandonmentRate,
		"still_open":       metrics.StillOpen,
	})
	if err != nil {
		return false, err
	}
	if _, err := log.Append(ctx, eventlog.KindLifetimeMemory, string(payload), map[string]interface{}{"source": "runtime_loop"}); err != nil {
		return false, err
	}
	return true, nil
}

func currentEventID(log *eventlog.EventLog) int64 {
	tail := log.ReadTail(1)
	if len(tail) == 0 {
		return 0
	}
	return tail[0].ID
}
