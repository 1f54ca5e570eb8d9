package eventlog

import "context"

// SearchParams narrows a search to an optional kind and id range.
type SearchParams struct {
	Query   string
	Kind    *Kind
	StartID *int64
	EndID   *int64
	Limit   int
}

// Store is the durability mirror for the ledger. EventLog remains the
// source of truth for in-process reads (tail/kind/range/since) and the
// hash chain; a Store, when configured, additionally persists rows and
// answers full-text queries against PostgreSQL's GIN-indexed tsvector
// columns. A nil Store is valid: the log then runs in-memory only, with
// find_entries/find_matching_chunks falling back to substring matching.
type Store interface {
	AppendEvent(ctx context.Context, e Event) error
	SaveChunks(ctx context.Context, chunks []Chunk) error
	SearchEvents(ctx context.Context, p SearchParams) ([]int64, error)
	SearchChunks(ctx context.Context, p SearchParams) ([]ChunkHit, error)
	// LoadAllEvents replays the durable row set in id order, used to
	// rebuild the in-memory log on reopen.
	LoadAllEvents(ctx context.Context) ([]Event, error)
	Close() error
}
