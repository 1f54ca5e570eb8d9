package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Event holds the declarative schema definition for the ledger's sole
// persistent record. Runtime reads and writes go through pkg/database's
// raw SQL, not a generated ent client (see DESIGN.md); this schema is the
// documentation-as-code description of the table golang-migrate creates.
type Event struct {
	ent.Schema
}

// Fields of the Event.
func (Event) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("id").
			Immutable().
			Comment("monotonic, dense, assigned at append"),
		field.Time("ts").
			Default(time.Now).
			Immutable().
			Comment("excluded from hash"),
		field.String("kind").
			Immutable().
			Comment("member of the closed kind enumeration"),
		field.Text("content").
			Immutable(),
		field.JSON("meta", map[string]interface{}{}).
			Optional().
			Immutable(),
		field.String("prev_hash").
			Optional().
			Nillable().
			Immutable(),
		field.String("hash").
			Unique().
			Immutable().
			Comment("sha256 hex of canonical_json({kind,content,meta,prev_hash})"),
	}
}

// Edges of the Event.
func (Event) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("chunks", EventChunk.Type),
	}
}

// Indexes of the Event.
func (Event) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("kind", "id"),
		index.Fields("hash").Unique(),
	}
}
