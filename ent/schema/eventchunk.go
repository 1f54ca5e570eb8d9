package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// EventChunk holds the declarative schema for a fixed-size window over an
// event's content, used for chunk-level full-text search.
type EventChunk struct {
	ent.Schema
}

// Fields of the EventChunk.
func (EventChunk) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("event_id").Immutable(),
		field.Int("chunk_idx").Immutable(),
		field.Text("chunk_text").Immutable(),
	}
}

// Edges of the EventChunk.
func (EventChunk) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("event", Event.Type).
			Ref("chunks").
			Field("event_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the EventChunk.
func (EventChunk) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("event_id", "chunk_idx").Unique(),
	}
}
