package runtimeloop

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/config"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/eventlog"
	"github.com/ProbabilityEngineer/persistent-mind-model/pkg/projections"
)

// RetrievalResult is what the retrieval pipeline hands back to the prompt
// composer: the chosen event ids, the concept tokens that drove selection,
// and a human-readable explanation of why each event was included.
type RetrievalResult struct {
	EventIDs      []int64
	ConceptTokens []string
	Rationale     map[int64]string
}

var cidLikePattern = regexp.MustCompile(`\bmc_[0-9a-fA-F]{3,12}\b|\b[0-9a-fA-F]{8,64}\b`)

var claimAliasExpansions = map[string]string{
	"identity ratification": "identity_ratify",
	"identity adoption":     "identity_adopt",
	"commitment closure":    "commitment_close",
}

// queryVariants builds the raw/lowercased/normalized/phrase/alias query
// forms the retrieval pipeline searches with.
func queryVariants(query string) []string {
	variants := map[string]struct{}{query: {}}
	lower := strings.ToLower(query)
	variants[lower] = struct{}{}
	variants[strings.NewReplacer("-", "_").Replace(lower)] = struct{}{}
	variants[strings.NewReplacer("_", "-").Replace(lower)] = struct{}{}

	punctStripped := regexp.MustCompile(`[^\w\s]`).ReplaceAllString(lower, "")
	variants[strings.TrimSpace(punctStripped)] = struct{}{}

	for _, m := range regexp.MustCompile(`"([^"]+)"`).FindAllStringSubmatch(query, -1) {
		variants[m[1]] = struct{}{}
	}
	for phrase, alias := range claimAliasExpansions {
		if strings.Contains(lower, phrase) {
			variants[alias] = struct{}{}
		}
	}

	out := make([]string, 0, len(variants))
	for v := range variants {
		if v != "" {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// Retriever selects a bounded list of event ids to render into a turn's
// prompt context, explaining why each was included.
type Retriever struct {
	log     *eventlog.EventLog
	concept *projections.ConceptGraph
	cfg     config.RetrievalConfig
}

// NewRetriever builds a Retriever over the given ledger, concept graph, and
// retrieval configuration.
func NewRetriever(log *eventlog.EventLog, concept *projections.ConceptGraph, cfg config.RetrievalConfig) *Retriever {
	return &Retriever{log: log, concept: concept, cfg: cfg}
}

// Retrieve builds the retrieval result for the given query text and sticky
// concepts. Vector similarity is out of scope (see the model-adapter
// boundary); keyword and concept-seeded candidates are combined with
// recency-based ranking, matching the "hybrid" strategy without the
// vector term when no embedding index is wired.
func (r *Retriever) Retrieve(query string, stickyConcepts []string) RetrievalResult {
	limit := r.cfg.Limit
	if limit <= 0 {
		limit = 20
	}

	seedTokens := r.seedConcepts(query, stickyConcepts)
	rationale := make(map[int64]string)
	scores := make(map[int64]float64)

	for _, token := range seedTokens {
		for _, id := range r.concept.EventsFor(token) {
			scores[id] += 3
			appendRationale(rationale, id, "concept:"+token)
		}
	}

	for _, variant := range queryVariants(query) {
		if len(variant) < 3 {
			continue
		}
		for _, e := range r.findEntries(variant) {
			scores[e.ID] += 1
			appendRationale(rationale, e.ID, "keyword:"+variant)
		}
	}

	type scored struct {
		id    int64
		score float64
	}
	all := make([]scored, 0, len(scores))
	for id, s := range scores {
		all = append(all, scored{id: id, score: s})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].id > all[j].id
	})

	ids := make([]int64, 0, limit)
	for _, s := range all {
		if len(ids) >= limit {
			break
		}
		ids = append(ids, s.id)
	}

	return RetrievalResult{EventIDs: ids, ConceptTokens: seedTokens, Rationale: rationale}
}

func appendRationale(m map[int64]string, id int64, reason string) {
	if existing, ok := m[id]; ok {
		if !strings.Contains(existing, reason) {
			m[id] = existing + "," + reason
		}
		return
	}
	m[id] = reason
}

// seedConcepts unions the CTL concepts present in the query with the
// caller's sticky concepts. A token counts as present when it appears
// literally, or with its '.' and '_' separators read as spaces.
func (r *Retriever) seedConcepts(query string, sticky []string) []string {
	seen := make(map[string]struct{})
	var out []string
	lower := strings.ToLower(query)
	for _, token := range r.concept.Tokens() {
		lowerToken := strings.ToLower(token)
		spaced := strings.NewReplacer(".", " ", "_", " ").Replace(lowerToken)
		if strings.Contains(lower, lowerToken) || strings.Contains(lower, spaced) {
			if _, ok := seen[token]; !ok {
				seen[token] = struct{}{}
				out = append(out, token)
			}
		}
	}
	for _, token := range sticky {
		if _, ok := seen[token]; !ok {
			seen[token] = struct{}{}
			out = append(out, token)
		}
	}
	sort.Strings(out)
	return out
}

// findEntries performs the eventlog's substring-fallback search directly,
// since FTS availability is a storage-layer concern outside this package.
func (r *Retriever) findEntries(query string) []eventlog.Event {
	var out []eventlog.Event
	for _, e := range r.log.ReadAll() {
		if strings.Contains(strings.ToLower(e.Content), query) {
			out = append(out, e)
		}
	}
	if len(out) > 50 {
		out = out[len(out)-50:]
	}
	return out
}
