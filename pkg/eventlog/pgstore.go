package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PostgresStore persists events and chunks to PostgreSQL and answers
// find_entries/find_matching_chunks via to_tsvector/plainto_tsquery over
// the GIN indexes created by the pkg/database migrations.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an already-migrated *sql.DB.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Close() error { return nil } // db lifecycle owned by the caller

func (s *PostgresStore) AppendEvent(ctx context.Context, e Event) error {
	metaJSON, err := json.Marshal(e.Meta)
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}
	var prevHash interface{}
	if e.PrevHash != "" {
		prevHash = e.PrevHash
	}
	ts, err := time.Parse(TimestampFormat, e.Ts)
	if err != nil {
		ts = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO events (id, ts, kind, content, meta, prev_hash, hash)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (hash) DO NOTHING`,
		e.ID, ts, string(e.Kind), e.Content, metaJSON, prevHash, e.Hash)
	return err
}

func (s *PostgresStore) SaveChunks(ctx context.Context, chunks []Chunk) error {
	for _, c := range chunks {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO event_chunks (event_id, chunk_idx, chunk_text)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (event_id, chunk_idx) DO UPDATE SET chunk_text = EXCLUDED.chunk_text`,
			c.EventID, c.ChunkIdx, c.ChunkText); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) LoadAllEvents(ctx context.Context) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ts, kind, content, meta, COALESCE(prev_hash, ''), hash
		 FROM events ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var kind string
		var metaJSON []byte
		var ts time.Time
		if err := rows.Scan(&e.ID, &ts, &kind, &e.Content, &metaJSON, &e.PrevHash, &e.Hash); err != nil {
			return nil, err
		}
		e.Ts = formatTimestamp(ts)
		e.Kind = Kind(kind)
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &e.Meta); err != nil {
				return nil, fmt.Errorf("unmarshal meta for event %d: %w", e.ID, err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *PostgresStore) SearchEvents(ctx context.Context, p SearchParams) ([]int64, error) {
	var where []string
	var args []interface{}
	argN := 1

	if p.Query != "" {
		where = append(where, fmt.Sprintf("to_tsvector('english', content) @@ plainto_tsquery('english', $%d)", argN))
		args = append(args, p.Query)
		argN++
	}
	if p.Kind != nil {
		where = append(where, fmt.Sprintf("kind = $%d", argN))
		args = append(args, string(*p.Kind))
		argN++
	}
	if p.StartID != nil {
		where = append(where, fmt.Sprintf("id >= $%d", argN))
		args = append(args, *p.StartID)
		argN++
	}
	if p.EndID != nil {
		where = append(where, fmt.Sprintf("id <= $%d", argN))
		args = append(args, *p.EndID)
		argN++
	}

	limit := p.Limit
	if limit <= 0 || limit > 50 {
		limit = 50
	}

	query := "SELECT id FROM events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT %d", limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) SearchChunks(ctx context.Context, p SearchParams) ([]ChunkHit, error) {
	var where []string
	var args []interface{}
	argN := 1

	where = append(where, fmt.Sprintf("to_tsvector('english', ec.chunk_text) @@ plainto_tsquery('english', $%d)", argN))
	args = append(args, p.Query)
	argN++

	if p.Kind != nil {
		where = append(where, fmt.Sprintf("e.kind = $%d", argN))
		args = append(args, string(*p.Kind))
		argN++
	}
	if p.StartID != nil {
		where = append(where, fmt.Sprintf("e.id >= $%d", argN))
		args = append(args, *p.StartID)
		argN++
	}
	if p.EndID != nil {
		where = append(where, fmt.Sprintf("e.id <= $%d", argN))
		args = append(args, *p.EndID)
		argN++
	}

	limit := p.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	query := fmt.Sprintf(`SELECT e.id, e.kind, ec.chunk_idx, ec.chunk_text
		FROM event_chunks ec JOIN events e ON e.id = ec.event_id
		WHERE %s ORDER BY e.id DESC LIMIT %d`, strings.Join(where, " AND "), limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []ChunkHit
	for rows.Next() {
		var id int64
		var kind string
		var idx int
		var text string
		if err := rows.Scan(&id, &kind, &idx, &text); err != nil {
			return nil, err
		}
		hits = append(hits, ChunkHit{
			EventID:  id,
			Kind:     Kind(kind),
			ChunkIdx: idx,
			Snippet:  snippetAround(text, p.Query, 120),
		})
	}
	return hits, rows.Err()
}
