// Package eventlog implements the hash-chained, content-addressed event
// ledger: the sole source of durable truth for the runtime.
package eventlog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Listener is notified synchronously after a row is durably appended and
// before Append returns. Panics and errors from listeners never propagate.
type Listener func(Event)

// EventLog is the append-only, hash-chained store. All public operations
// serialize through mu; Store, when non-nil, is written through
// synchronously for durability and FTS.
type EventLog struct {
	mu sync.Mutex

	events    []Event
	hashIndex map[string]int64 // hash -> id
	kindIndex map[Kind][]int64 // kind -> ids ascending
	chunks    map[int64][]Chunk

	listeners []Listener
	store     Store
	logger    *slog.Logger

	clock func() time.Time
}

// Option configures an EventLog at construction.
type Option func(*EventLog)

// WithStore attaches a durability/FTS-backing store.
func WithStore(s Store) Option {
	return func(l *EventLog) { l.store = s }
}

// WithLogger overrides the default component logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *EventLog) { l.logger = logger }
}

// WithClock overrides the wall clock, for deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(l *EventLog) { l.clock = clock }
}

// maxChunkBackfillBatch bounds the startup chunk-index rebuild so cold
// start on a large ledger stays responsive.
const maxChunkBackfillBatch = 300

// Open constructs an EventLog, replaying from store (if any) and
// performing a bounded chunk/FTS backfill. Lock-contention style errors
// during backfill are swallowed (fail-open): the process still starts.
func Open(ctx context.Context, opts ...Option) (*EventLog, error) {
	l := &EventLog{
		hashIndex: make(map[string]int64),
		kindIndex: make(map[Kind][]int64),
		chunks:    make(map[int64][]Chunk),
		logger:    slog.Default().With("component", "eventlog"),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	if l.store != nil {
		events, err := l.store.LoadAllEvents(ctx)
		if err != nil {
			l.logger.Warn("failed to replay events from store, starting empty", "error", err)
		} else {
			for _, e := range events {
				l.events = append(l.events, e)
				l.hashIndex[e.Hash] = e.ID
				l.kindIndex[e.Kind] = append(l.kindIndex[e.Kind], e.ID)
			}
		}
	}

	l.backfillChunks(ctx)

	return l, nil
}

// backfillChunks regenerates the in-memory chunk index for events that
// don't have one yet, up to maxChunkBackfillBatch rows per call.
func (l *EventLog) backfillChunks(ctx context.Context) {
	done := 0
	for _, e := range l.events {
		if done >= maxChunkBackfillBatch {
			break
		}
		if _, ok := l.chunks[e.ID]; ok {
			continue
		}
		cs := chunksFor(e.ID, e.Content)
		l.chunks[e.ID] = cs
		if l.store != nil {
			if err := l.store.SaveChunks(ctx, cs); err != nil {
				l.logger.Warn("chunk backfill write failed, continuing fail-open", "event_id", e.ID, "error", err)
			}
		}
		done++
	}
}

// RegisterListener adds a synchronous append observer.
func (l *EventLog) RegisterListener(fn Listener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, fn)
}

// Append validates, hash-chains, and durably records a new event.
// Idempotent: an append whose computed hash already exists returns the
// existing row's id without modifying the log.
func (l *EventLog) Append(ctx context.Context, kind Kind, content string, meta map[string]interface{}) (int64, error) {
	if !IsValidKind(kind) {
		return 0, &AppendError{Kind: kind, Err: ErrInvalidKind}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if isSensitiveKind(kind) {
		policy := latestPolicy(l.events)
		source, _ := meta["source"].(string)
		if policyForbids(policy, source, kind) {
			violationContent := fmt.Sprintf("policy_violation:%s:%s", source, kind)
			if _, err := l.appendLocked(ctx, KindViolation, violationContent, map[string]interface{}{
				"attempt_kind": string(kind),
				"source":       source,
			}); err != nil {
				l.logger.Error("failed to record policy violation", "error", err)
			}
			return 0, &AppendError{Kind: kind, Err: ErrPolicyForbidden}
		}
	}

	return l.appendLocked(ctx, kind, content, meta)
}

// AppendValue is the loosely-typed entry point used by callers parsing
// untyped JSON (marker parsing, tool-call dispatch) where content has not
// yet been narrowed to a string. Non-string content is rejected with
// ErrTypeMismatch before anything is touched.
func (l *EventLog) AppendValue(ctx context.Context, kind Kind, content interface{}, meta map[string]interface{}) (int64, error) {
	s, ok := content.(string)
	if !ok {
		return 0, &AppendError{Kind: kind, Err: ErrTypeMismatch}
	}
	return l.Append(ctx, kind, s, meta)
}

// appendLocked performs the actual insert; caller holds mu.
func (l *EventLog) appendLocked(ctx context.Context, kind Kind, content string, meta map[string]interface{}) (int64, error) {
	if meta == nil {
		meta = map[string]interface{}{}
	}

	var prevHash string
	if n := len(l.events); n > 0 {
		prevHash = l.events[n-1].Hash
	}

	hash, err := computeHash(kind, content, meta, prevHash)
	if err != nil {
		return 0, fmt.Errorf("compute hash: %w", err)
	}

	if existingID, ok := l.hashIndex[hash]; ok {
		return existingID, nil // idempotent duplicate
	}

	id := int64(len(l.events) + 1)
	e := Event{
		ID:       id,
		Ts:       formatTimestamp(l.clock()),
		Kind:     kind,
		Content:  content,
		Meta:     meta,
		PrevHash: prevHash,
		Hash:     hash,
	}

	if l.store != nil {
		if err := l.store.AppendEvent(ctx, e); err != nil {
			return 0, fmt.Errorf("persist event: %w", err)
		}
	}

	l.events = append(l.events, e)
	l.hashIndex[hash] = id
	l.kindIndex[kind] = append(l.kindIndex[kind], id)

	cs := chunksFor(id, content)
	l.chunks[id] = cs
	if l.store != nil {
		if err := l.store.SaveChunks(ctx, cs); err != nil {
			l.logger.Warn("chunk persist failed", "event_id", id, "error", err)
		}
	}

	for _, fn := range l.listeners {
		l.safeNotify(fn, e)
	}

	return id, nil
}

// safeNotify invokes a listener, swallowing panics and errors: listener
// failures must never break a write.
func (l *EventLog) safeNotify(fn Listener, e Event) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("listener panicked, dropping", "event_id", e.ID, "recover", r)
		}
	}()
	fn(e)
}
