// Package projections implements the listener-driven, in-memory views
// kept consistent with the event ledger: Mirror, ConceptGraph, MemeGraph,
// and CommitmentManager. Every projection is a pure derivation — it
// never writes to the log except through CommitmentManager's explicit
// mutation API, which itself appends through the ledger like any other
// caller.
package projections

import (
	"encoding/json"
	"sync"

	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/eventlog"
)

// RetrievalConfig mirrors the persisted "config" event of type "retrieval".
type RetrievalConfig struct {
	Strategy string `json:"strategy"`
	Limit    int    `json:"limit"`
	Model    string `json:"model"`
	Dims     int    `json:"dims"`
}

// PolicyConfig mirrors the persisted "config" event of type "policy".
type PolicyConfig struct {
	ForbidSources map[string][]string `json:"forbid_sources"`
}

// Mirror tracks the currently open commitments, the last adopted
// identity event, the active retrieval/policy config, and aggregate
// counters. Rebuildable by replay.
type Mirror struct {
	mu sync.RWMutex

	openCommitments map[string]eventlog.Event // cid -> opening event
	lastIdentity    *eventlog.Event
	retrieval       *RetrievalConfig
	policy          *PolicyConfig
	counters        map[eventlog.Kind]int
	lastProcessed   int64
}

// NewMirror constructs an empty Mirror.
func NewMirror() *Mirror {
	return &Mirror{
		openCommitments: make(map[string]eventlog.Event),
		counters:        make(map[eventlog.Kind]int),
	}
}

// Sync implements eventlog.Listener.
func (m *Mirror) Sync(e eventlog.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyLocked(e)
}

// Rebuild replays the given sequence from scratch.
func (m *Mirror) Rebuild(events []eventlog.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openCommitments = make(map[string]eventlog.Event)
	m.lastIdentity = nil
	m.retrieval = nil
	m.policy = nil
	m.counters = make(map[eventlog.Kind]int)
	m.lastProcessed = 0
	for _, e := range events {
		m.applyLocked(e)
	}
}

func (m *Mirror) applyLocked(e eventlog.Event) {
	m.counters[e.Kind]++
	m.lastProcessed = e.ID

	switch e.Kind {
	case eventlog.KindCommitmentOpen:
		if cid, ok := cidOf(e); ok {
			m.openCommitments[cid] = e
		}
	case eventlog.KindCommitmentClose:
		if cid, ok := cidOf(e); ok {
			delete(m.openCommitments, cid)
		}
	case eventlog.KindIdentityAdoption:
		ev := e
		m.lastIdentity = &ev
	case eventlog.KindConfig:
		var probe struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal([]byte(e.Content), &probe); err != nil {
			return
		}
		switch probe.Type {
		case "retrieval":
			var rc RetrievalConfig
			if json.Unmarshal([]byte(e.Content), &rc) == nil {
				m.retrieval = &rc
			}
		case "policy":
			var pc PolicyConfig
			if json.Unmarshal([]byte(e.Content), &pc) == nil {
				m.policy = &pc
			}
		}
	}
}

// cidOf extracts the commitment id from an event's meta.
func cidOf(e eventlog.Event) (string, bool) {
	v, ok := e.Meta["cid"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

// OpenCommitments returns a snapshot of cid -> opening event.
func (m *Mirror) OpenCommitments() map[string]eventlog.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]eventlog.Event, len(m.openCommitments))
	for k, v := range m.openCommitments {
		out[k] = v
	}
	return out
}

// LastIdentity returns the last adopted identity event, if any.
func (m *Mirror) LastIdentity() (eventlog.Event, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.lastIdentity == nil {
		return eventlog.Event{}, false
	}
	return *m.lastIdentity, true
}

// CurrentRetrievalConfig returns the last "config" event of type "retrieval".
func (m *Mirror) CurrentRetrievalConfig() (RetrievalConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.retrieval == nil {
		return RetrievalConfig{}, false
	}
	return *m.retrieval, true
}

// CurrentPolicyConfig returns the last "config" event of type "policy".
func (m *Mirror) CurrentPolicyConfig() (PolicyConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.policy == nil {
		return PolicyConfig{}, false
	}
	return *m.policy, true
}

// Counter returns the count of events of the given kind seen so far.
func (m *Mirror) Counter(kind eventlog.Kind) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counters[kind]
}

// LastProcessed returns the id of the last event folded into this Mirror.
func (m *Mirror) LastProcessed() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastProcessed
}
