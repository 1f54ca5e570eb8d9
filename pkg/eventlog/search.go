package eventlog

import (
	"context"
	"encoding/json"
	"strings"
)

// FindEntries implements find_entries: FTS when a store is configured and
// the query is FTS-admissible, substring matching on content and
// meta-JSON otherwise. Results are ordered by id descending.
func (l *EventLog) FindEntries(ctx context.Context, query string, kind *Kind, startID, endID *int64, limit int) []Event {
	if limit <= 0 || limit > 50 {
		limit = 50
	}

	if query != "" && l.store != nil && ftsAdmissible(query) {
		ids, err := l.store.SearchEvents(ctx, SearchParams{Query: query, Kind: kind, StartID: startID, EndID: endID, Limit: limit})
		if err == nil {
			return l.resolveIDsDesc(ids)
		}
		l.logger.Warn("FTS search failed, falling back to substring match", "error", err)
	}

	return l.substringFindEntries(query, kind, startID, endID, limit)
}

// ftsAdmissible rejects queries with no tokenizable content (e.g. pure
// punctuation), for which Postgres's plainto_tsquery would return an
// empty predicate that matches everything.
func ftsAdmissible(query string) bool {
	for _, r := range query {
		if ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') {
			return true
		}
	}
	return false
}

func (l *EventLog) substringFindEntries(query string, kind *Kind, startID, endID *int64, limit int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	lowerQuery := strings.ToLower(query)
	var out []Event
	for i := len(l.events) - 1; i >= 0; i-- {
		e := l.events[i]
		if kind != nil && e.Kind != *kind {
			continue
		}
		if startID != nil && e.ID < *startID {
			continue
		}
		if endID != nil && e.ID > *endID {
			continue
		}
		if query != "" && !matchesSubstring(e, lowerQuery) {
			continue
		}
		out = append(out, e)
		if len(out) >= limit {
			break
		}
	}
	return out
}

func matchesSubstring(e Event, lowerQuery string) bool {
	if strings.Contains(strings.ToLower(e.Content), lowerQuery) {
		return true
	}
	if metaJSON, err := json.Marshal(e.Meta); err == nil {
		if strings.Contains(strings.ToLower(string(metaJSON)), lowerQuery) {
			return true
		}
	}
	return false
}

func (l *EventLog) resolveIDsDesc(ids []int64) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, 0, len(ids))
	for _, id := range ids {
		if e, ok := l.eventByIDLocked(id); ok {
			out = append(out, e)
		}
	}
	return out
}

// FindMatchingChunks implements find_matching_chunks: chunk-level hits
// with a snippet centered on the query match. Regenerates chunks on the
// fly from matching events when the chunk index is empty for a hit.
func (l *EventLog) FindMatchingChunks(ctx context.Context, query string, kind *Kind, startID, endID *int64, limit, snippetChars int) []ChunkHit {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if snippetChars < 40 {
		snippetChars = 40
	}

	if query != "" && l.store != nil && ftsAdmissible(query) {
		hits, err := l.store.SearchChunks(ctx, SearchParams{Query: query, Kind: kind, StartID: startID, EndID: endID, Limit: limit})
		if err == nil && len(hits) > 0 {
			return hits
		}
		if err != nil {
			l.logger.Warn("FTS chunk search failed, falling back", "error", err)
		}
	}

	return l.substringFindChunks(query, kind, startID, endID, limit, snippetChars)
}

func (l *EventLog) substringFindChunks(query string, kind *Kind, startID, endID *int64, limit, snippetChars int) []ChunkHit {
	l.mu.Lock()
	defer l.mu.Unlock()

	lowerQuery := strings.ToLower(query)
	var out []ChunkHit
	for i := len(l.events) - 1; i >= 0; i-- {
		e := l.events[i]
		if kind != nil && e.Kind != *kind {
			continue
		}
		if startID != nil && e.ID < *startID {
			continue
		}
		if endID != nil && e.ID > *endID {
			continue
		}

		cs, ok := l.chunks[e.ID]
		if !ok {
			cs = chunksFor(e.ID, e.Content)
		}
		for _, c := range cs {
			if query != "" && !strings.Contains(strings.ToLower(c.ChunkText), lowerQuery) {
				continue
			}
			out = append(out, ChunkHit{
				EventID:  e.ID,
				Kind:     e.Kind,
				ChunkIdx: c.ChunkIdx,
				Snippet:  snippetAround(c.ChunkText, query, snippetChars),
			})
			if len(out) >= limit {
				return out
			}
		}
	}
	return out
}
