package projections

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/eventlog"
)

// CommitmentManager exposes the mutation API for opening and closing
// commitments. It is also a listener: it tracks the open-cid set from
// the log so apply_closures can silently skip unknown or already-closed
// cids.
type CommitmentManager struct {
	mu   sync.Mutex
	log  *eventlog.EventLog
	open map[string]eventlog.Event
}

// NewCommitmentManager constructs a manager bound to log for appends.
func NewCommitmentManager(log *eventlog.EventLog) *CommitmentManager {
	return &CommitmentManager{
		log:  log,
		open: make(map[string]eventlog.Event),
	}
}

// Sync implements eventlog.Listener.
func (c *CommitmentManager) Sync(e eventlog.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applyLocked(e)
}

// Rebuild replays the given sequence from scratch.
func (c *CommitmentManager) Rebuild(events []eventlog.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = make(map[string]eventlog.Event)
	for _, e := range events {
		c.applyLocked(e)
	}
}

func (c *CommitmentManager) applyLocked(e eventlog.Event) {
	switch e.Kind {
	case eventlog.KindCommitmentOpen:
		if cid, ok := cidOf(e); ok {
			c.open[cid] = e
		}
	case eventlog.KindCommitmentClose:
		if cid, ok := cidOf(e); ok {
			delete(c.open, cid)
		}
	}
}

// newCID generates a short hex token. Both this shape and arbitrary
// caller-supplied tokens are accepted as a valid cid elsewhere (see Open
// Question (a) in the design notes); the manager never enforces a
// stricter schema on cids it did not itself generate.
func newCID() string {
	return uuid.New().String()[:8]
}

// OpenCommitment appends a commitment_open event from free text and
// returns its cid.
func (c *CommitmentManager) OpenCommitment(ctx context.Context, text, source string) (string, error) {
	cid := newCID()
	_, err := c.log.Append(ctx, eventlog.KindCommitmentOpen, text, map[string]interface{}{
		"cid":    cid,
		"source": source,
		"origin": originOf(source),
	})
	if err != nil {
		return "", err
	}
	return cid, nil
}

// OpenCommitmentStructured appends a commitment_open event carrying the
// optional structured fields.
func (c *CommitmentManager) OpenCommitmentStructured(ctx context.Context, title, intendedOutcome string, criteria []string, source string) (string, error) {
	cid := newCID()
	meta := map[string]interface{}{
		"cid":    cid,
		"source": source,
		"origin": originOf(source),
	}
	if intendedOutcome != "" {
		meta["intended_outcome"] = intendedOutcome
	}
	if len(criteria) > 0 {
		meta["success_criteria"] = criteria
	}
	_, err := c.log.Append(ctx, eventlog.KindCommitmentOpen, title, meta)
	if err != nil {
		return "", err
	}
	return cid, nil
}

// ApplyClosures closes each currently-open cid in cids with a default
// outcome_score of 1.0 (legacy close). Unknown or already-closed cids are
// silently skipped. Returns the cids actually closed.
func (c *CommitmentManager) ApplyClosures(ctx context.Context, cids []string, source string) ([]string, error) {
	var actuallyClosed []string
	for _, cid := range cids {
		c.mu.Lock()
		_, isOpen := c.open[cid]
		c.mu.Unlock()
		if !isOpen {
			continue
		}
		_, err := c.log.Append(ctx, eventlog.KindCommitmentClose, cid, map[string]interface{}{
			"cid":           cid,
			"source":        source,
			"outcome_score": 1.0,
		})
		if err != nil {
			return actuallyClosed, err
		}
		actuallyClosed = append(actuallyClosed, cid)
	}
	return actuallyClosed, nil
}

// CloseCommitmentStructured closes cid with full criteria accounting:
// outcome_score = count(criteria_met=true) / len(criteria_met).
func (c *CommitmentManager) CloseCommitmentStructured(ctx context.Context, cid, actualOutcome string, criteriaMet map[string]bool, source string) error {
	c.mu.Lock()
	_, isOpen := c.open[cid]
	c.mu.Unlock()
	if !isOpen {
		return nil
	}

	score := 1.0
	if len(criteriaMet) > 0 {
		met := 0
		for _, v := range criteriaMet {
			if v {
				met++
			}
		}
		score = float64(met) / float64(len(criteriaMet))
	}

	meta := map[string]interface{}{
		"cid":           cid,
		"source":        source,
		"outcome_score": score,
	}
	if actualOutcome != "" {
		meta["actual_outcome"] = actualOutcome
	}
	if len(criteriaMet) > 0 {
		meta["criteria_met"] = criteriaMet
	}
	_, err := c.log.Append(ctx, eventlog.KindCommitmentClose, cid, meta)
	return err
}

// IsOpen reports whether cid is currently open.
func (c *CommitmentManager) IsOpen(cid string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.open[cid]
	return ok
}

// originOf maps a raw source string to the closed origin enumeration.
func originOf(source string) string {
	switch source {
	case "user", "assistant", "autonomy_kernel":
		return source
	default:
		return "unknown"
	}
}
