package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
)

// OntologySnapshot documents the shape of an ontology_snapshot event's
// meta payload: a point-in-time capture of CommitmentAnalyzer metrics,
// anchored to the event id at which it was taken.
type OntologySnapshot struct {
	ent.Schema
}

// Fields of the OntologySnapshot.
func (OntologySnapshot) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("anchor_event_id").Immutable(),
		field.Float("success_rate").Immutable(),
		field.Float("abandonment_rate").Immutable(),
		field.Int("open_count").Immutable(),
		field.Int("closed_count").Immutable(),
	}
}
