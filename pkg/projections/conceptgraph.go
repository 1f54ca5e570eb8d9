package projections

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/eventlog"
)

// Edge is a directed labeled relation between two canonical concept tokens.
type Edge struct {
	From  string
	To    string
	Label string
}

// ConceptGraph maintains the canonical token set, alias map, event/cid
// bindings, and directed labeled edges that make up the Concept Token
// Layer.
type ConceptGraph struct {
	mu sync.RWMutex

	tokens        map[string]struct{}
	aliases       map[string]string // non-canonical -> canonical (one hop, as declared)
	conceptEvents map[string]map[int64]struct{}
	conceptCIDs   map[string]map[string]struct{}
	edges         []Edge
	lastProcessed int64
}

// NewConceptGraph constructs an empty ConceptGraph.
func NewConceptGraph() *ConceptGraph {
	return &ConceptGraph{
		tokens:        make(map[string]struct{}),
		aliases:       make(map[string]string),
		conceptEvents: make(map[string]map[int64]struct{}),
		conceptCIDs:   make(map[string]map[string]struct{}),
	}
}

type conceptDefinePayload struct {
	Token string `json:"token"`
}

type conceptAliasPayload struct {
	Alias     string `json:"alias"`
	Canonical string `json:"canonical"`
}

type conceptBindPayload struct {
	Token string `json:"token"`
	CID   string `json:"cid"`
}

type conceptRelatePayload struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label"`
}

// Sync implements eventlog.Listener.
func (g *ConceptGraph) Sync(e eventlog.Event) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.applyLocked(e)
}

// Rebuild replays the given sequence from scratch.
func (g *ConceptGraph) Rebuild(events []eventlog.Event) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tokens = make(map[string]struct{})
	g.aliases = make(map[string]string)
	g.conceptEvents = make(map[string]map[int64]struct{})
	g.conceptCIDs = make(map[string]map[string]struct{})
	g.edges = nil
	g.lastProcessed = 0
	for _, e := range events {
		g.applyLocked(e)
	}
}

func (g *ConceptGraph) applyLocked(e eventlog.Event) {
	g.lastProcessed = e.ID

	switch e.Kind {
	case eventlog.KindConceptDefine:
		var p conceptDefinePayload
		if err := json.Unmarshal([]byte(e.Content), &p); err == nil && p.Token != "" {
			g.tokens[p.Token] = struct{}{}
		}
	case eventlog.KindConceptAlias:
		var p conceptAliasPayload
		if err := json.Unmarshal([]byte(e.Content), &p); err == nil && p.Alias != "" && p.Canonical != "" {
			g.aliases[p.Alias] = p.Canonical
			g.tokens[p.Canonical] = struct{}{}
		}
	case eventlog.KindConceptBindEvent, eventlog.KindConceptBindThread, eventlog.KindConceptBindAsync:
		var p conceptBindPayload
		if err := json.Unmarshal([]byte(e.Content), &p); err != nil || p.Token == "" {
			return
		}
		token := g.CanonicalizeLocked(p.Token)
		g.tokens[token] = struct{}{}
		if p.CID != "" {
			if g.conceptCIDs[token] == nil {
				g.conceptCIDs[token] = make(map[string]struct{})
			}
			g.conceptCIDs[token][p.CID] = struct{}{}
		} else {
			if g.conceptEvents[token] == nil {
				g.conceptEvents[token] = make(map[int64]struct{})
			}
			// Bind to the referencing event itself; specific user/assistant
			// event ids are supplied via meta by the caller (RuntimeLoop).
			g.conceptEvents[token][e.ID] = struct{}{}
			if uID, ok := intMeta(e.Meta, "user_event_id"); ok {
				g.conceptEvents[token][uID] = struct{}{}
			}
			if aID, ok := intMeta(e.Meta, "assistant_event_id"); ok {
				g.conceptEvents[token][aID] = struct{}{}
			}
		}
	case eventlog.KindConceptRelate:
		var p conceptRelatePayload
		if err := json.Unmarshal([]byte(e.Content), &p); err == nil && p.From != "" && p.To != "" {
			from := g.CanonicalizeLocked(p.From)
			to := g.CanonicalizeLocked(p.To)
			g.tokens[from] = struct{}{}
			g.tokens[to] = struct{}{}
			g.edges = append(g.edges, Edge{From: from, To: to, Label: p.Label})
		}
	}
}

func intMeta(meta map[string]interface{}, key string) (int64, bool) {
	v, ok := meta[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

// Canonicalize applies the alias map transitively until a fixed point.
// Cycles are broken by lexicographic minimum among the visited set.
func (g *ConceptGraph) Canonicalize(token string) string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.CanonicalizeLocked(token)
}

// CanonicalizeLocked is Canonicalize for callers already holding the lock.
func (g *ConceptGraph) CanonicalizeLocked(token string) string {
	visited := map[string]struct{}{token: {}}
	cur := token
	for {
		next, ok := g.aliases[cur]
		if !ok {
			return cur
		}
		if _, seen := visited[next]; seen {
			// Cycle: break by lexicographic minimum among visited nodes.
			min := next
			for v := range visited {
				if v < min {
					min = v
				}
			}
			return min
		}
		visited[next] = struct{}{}
		cur = next
	}
}

// Tokens returns the canonical token set, sorted.
func (g *ConceptGraph) Tokens() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.tokens))
	for t := range g.tokens {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// EventsFor returns the sorted event ids bound to a canonical token.
func (g *ConceptGraph) EventsFor(token string) []int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	set := g.conceptEvents[g.CanonicalizeLocked(token)]
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CIDsFor returns the commitment ids bound to a canonical token.
func (g *ConceptGraph) CIDsFor(token string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	set := g.conceptCIDs[g.CanonicalizeLocked(token)]
	out := make([]string, 0, len(set))
	for cid := range set {
		out = append(out, cid)
	}
	sort.Strings(out)
	return out
}

// Edges returns a copy of all directed labeled edges.
func (g *ConceptGraph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]Edge(nil), g.edges...)
}

// LastProcessed returns the id of the last event folded into this graph.
func (g *ConceptGraph) LastProcessed() int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.lastProcessed
}

// GraphVersion aliases LastProcessed: topology caches are keyed by it.
func (g *ConceptGraph) GraphVersion() int64 { return g.LastProcessed() }
