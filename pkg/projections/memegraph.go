package projections

import (
	"encoding/json"
	"sync"

	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/eventlog"
)

// MemeGraph maintains adjacency between events that share any concept
// binding: two events are connected iff some token's bound-event set
// contains both.
type MemeGraph struct {
	mu sync.RWMutex

	eventTokens map[int64]map[string]struct{} // event id -> tokens it's bound to
	tokenEvents map[string]map[int64]struct{} // inverse index
	adjacency   map[int64]map[int64]struct{}
}

// NewMemeGraph constructs an empty MemeGraph.
func NewMemeGraph() *MemeGraph {
	return &MemeGraph{
		eventTokens: make(map[int64]map[string]struct{}),
		tokenEvents: make(map[string]map[int64]struct{}),
		adjacency:   make(map[int64]map[int64]struct{}),
	}
}

// Sync implements eventlog.Listener.
func (g *MemeGraph) Sync(e eventlog.Event) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.applyLocked(e)
}

// Rebuild replays the given sequence from scratch.
func (g *MemeGraph) Rebuild(events []eventlog.Event) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.eventTokens = make(map[int64]map[string]struct{})
	g.tokenEvents = make(map[string]map[int64]struct{})
	g.adjacency = make(map[int64]map[int64]struct{})
	for _, e := range events {
		g.applyLocked(e)
	}
}

func (g *MemeGraph) applyLocked(e eventlog.Event) {
	switch e.Kind {
	case eventlog.KindConceptBindEvent, eventlog.KindConceptBindThread, eventlog.KindConceptBindAsync:
	default:
		return
	}
	var p conceptBindPayload
	if err := json.Unmarshal([]byte(e.Content), &p); err != nil || p.Token == "" {
		return
	}

	ids := []int64{e.ID}
	if uID, ok := intMeta(e.Meta, "user_event_id"); ok {
		ids = append(ids, uID)
	}
	if aID, ok := intMeta(e.Meta, "assistant_event_id"); ok {
		ids = append(ids, aID)
	}

	for _, id := range ids {
		g.bindLocked(id, p.Token)
	}
	g.connectAllLocked(ids)
}

func (g *MemeGraph) bindLocked(eventID int64, token string) {
	if g.eventTokens[eventID] == nil {
		g.eventTokens[eventID] = make(map[string]struct{})
	}
	g.eventTokens[eventID][token] = struct{}{}

	if g.tokenEvents[token] == nil {
		g.tokenEvents[token] = make(map[int64]struct{})
	}
	for other := range g.tokenEvents[token] {
		g.connectLocked(eventID, other)
	}
	g.tokenEvents[token][eventID] = struct{}{}
}

func (g *MemeGraph) connectAllLocked(ids []int64) {
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			g.connectLocked(ids[i], ids[j])
		}
	}
}

func (g *MemeGraph) connectLocked(a, b int64) {
	if a == b {
		return
	}
	if g.adjacency[a] == nil {
		g.adjacency[a] = make(map[int64]struct{})
	}
	if g.adjacency[b] == nil {
		g.adjacency[b] = make(map[int64]struct{})
	}
	g.adjacency[a][b] = struct{}{}
	g.adjacency[b][a] = struct{}{}
}

// Neighbors returns the events connected to eventID through a shared
// concept binding.
func (g *MemeGraph) Neighbors(eventID int64) []int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	set := g.adjacency[eventID]
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
