// Package autonomy drives the runtime's unprompted activity: a
// slot-based scheduler that emits autonomy_stimulus events on a fixed
// cadence, and a kernel that turns each stimulus into one of a fixed set
// of actions.
package autonomy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/analysis/temporal"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/config"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/eventlog"
)

var temporalContextLabels = map[string]string{
	"engagement_periods": "high_engagement",
	"commitment_burst":   "commitment_clustering",
	"low_identity_stability": "identity_drift",
}

// Supervisor emits one autonomy_stimulus per scheduler slot, adapting the
// base interval to recent activity rhythm and deduplicating against
// slot ids already present in the ledger.
type Supervisor struct {
	log      *eventlog.EventLog
	temporal *temporal.Analyzer
	cfg      config.SupervisorConfig
	clock    func() time.Time

	mu      sync.Mutex
	seen    map[string]bool
	stopCh  chan struct{}
	stopOnce sync.Once
	wg      sync.WaitGroup
}

// NewSupervisor builds a Supervisor, seeding its dedup set from the most
// recent autonomy_stimulus events already in the ledger (bounded by
// cfg.SeedLimit).
func NewSupervisor(log *eventlog.EventLog, analyzer *temporal.Analyzer, cfg config.SupervisorConfig) *Supervisor {
	s := &Supervisor{
		log:      log,
		temporal: analyzer,
		cfg:      cfg,
		clock:    time.Now,
		seen:     make(map[string]bool),
		stopCh:   make(chan struct{}),
	}
	s.seedSlotIDs()
	return s
}

func (s *Supervisor) seedSlotIDs() {
	limit := s.cfg.SeedLimit
	if limit <= 0 {
		limit = 2000
	}
	events := s.log.ReadByKind(eventlog.KindAutonomyStimulus, limit, true)
	for _, e := range events {
		if id, ok := e.Meta["slot_id"].(string); ok {
			s.seen[id] = true
		}
	}
}

// currentSlot returns floor((now-epoch)/interval_s), clamped to 0 when
// the epoch lies in the future.
func (s *Supervisor) currentSlot(now time.Time) int64 {
	delta := now.Sub(s.cfg.ParsedEpoch()).Seconds()
	if delta < 0 {
		return 0
	}
	return int64(delta) / int64(s.cfg.IntervalS)
}

func slotID(epoch time.Time, intervalS int, slot int64) string {
	raw := fmt.Sprintf("%s%d%d", epoch.Format(time.RFC3339), intervalS, slot)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// AdaptiveInterval recomputes the slot interval from rhythm analysis over
// the most recent events: faster when activity is highly predictable,
// slower when it is highly entropic. Falls back to the base interval
// when fewer than cfg.AdaptiveMinEvents recent events exist.
func (s *Supervisor) AdaptiveInterval() float64 {
	base := float64(s.cfg.IntervalS)
	minEvents := s.cfg.AdaptiveMinEvents
	if minEvents <= 0 {
		minEvents = 20
	}
	tail := s.log.ReadTail(50)
	if len(tail) < minEvents {
		return base
	}

	result := s.temporal.AnalyzeWindow(tail[0].ID, tail[len(tail)-1].ID)
	rhythms, _ := result.Metrics["rhythms"].(map[string]interface{})
	predictability, _ := rhythms["predictability_score"].(float64)
	entropy, _ := rhythms["entropy_score"].(float64)

	interval := base
	switch {
	case predictability > s.cfg.PredictabilityHi:
		interval = base * s.cfg.FastFactor
	case entropy > s.cfg.EntropyHi:
		interval = base * s.cfg.SlowFactor
	}

	min, max := float64(s.cfg.MinIntervalS), float64(s.cfg.MaxIntervalS)
	if interval < min {
		interval = min
	}
	if interval > max {
		interval = max
	}
	return interval
}

// TemporalSummary maps the most recent high-confidence pattern (over the
// last 30 events) to a short label, or "" when none qualifies.
func (s *Supervisor) TemporalSummary() string {
	minEvents := s.cfg.AdaptiveMinEvents
	if minEvents <= 0 {
		minEvents = 20
	}
	tail := s.log.ReadTail(30)
	if len(tail) < minEvents {
		return ""
	}

	result := s.temporal.AnalyzeWindow(tail[0].ID, tail[len(tail)-1].ID)
	for _, p := range result.Patterns {
		if p.Confidence <= 0.8 {
			continue
		}
		if label, ok := temporalContextLabels[p.Type]; ok {
			return label
		}
	}
	return ""
}

// EmitStimulusIfNeeded appends an autonomy_stimulus for the current slot
// if one has not already been recorded. Returns true if one was emitted.
func (s *Supervisor) EmitStimulusIfNeeded(ctx context.Context) (bool, error) {
	now := s.clock()
	slot := s.currentSlot(now)
	id := slotID(s.cfg.ParsedEpoch(), s.cfg.IntervalS, slot)

	s.mu.Lock()
	already := s.seen[id]
	s.mu.Unlock()
	if already {
		return false, nil
	}

	meta := map[string]interface{}{
		"slot_id":         id,
		"adaptive_timing": s.AdaptiveInterval(),
	}
	if summary := s.TemporalSummary(); summary != "" {
		meta["temporal_context"] = summary
	}

	if _, err := s.log.Append(ctx, eventlog.KindAutonomyStimulus, fmt.Sprintf("autonomy stimulus for slot %d", slot), meta); err != nil {
		return false, err
	}

	s.mu.Lock()
	s.seen[id] = true
	s.mu.Unlock()
	return true, nil
}

// Start begins the scheduler loop in a goroutine.
func (s *Supervisor) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop signals the loop to stop and waits for it to finish. Safe to call
// more than once.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

func (s *Supervisor) run(ctx context.Context) {
	defer s.wg.Done()
	log := slog.With("component", "autonomy_supervisor")
	log.Info("supervisor started")

	for {
		select {
		case <-s.stopCh:
			log.Info("supervisor stopping")
			return
		case <-ctx.Done():
			log.Info("context cancelled, supervisor stopping")
			return
		default:
		}

		if _, err := s.EmitStimulusIfNeeded(ctx); err != nil {
			log.Error("failed to emit autonomy stimulus", "error", err)
		}

		s.sleep(s.untilNextBoundary())
	}
}

// untilNextBoundary returns the wait until the next base-interval slot
// boundary, computed against the current time to avoid drift.
func (s *Supervisor) untilNextBoundary() time.Duration {
	now := s.clock()
	elapsed := now.Sub(s.cfg.ParsedEpoch()).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	interval := float64(s.cfg.IntervalS)
	remainder := elapsed - float64(int64(elapsed/interval))*interval
	wait := interval - remainder
	if wait <= 0 {
		wait = interval
	}
	return time.Duration(wait * float64(time.Second))
}

func (s *Supervisor) sleep(d time.Duration) {
	select {
	case <-s.stopCh:
	case <-time.After(d):
	}
}
