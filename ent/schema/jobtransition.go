package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// JobTransition holds the schema definition for one row of the
// write-only status-transition audit log. This package is
// kept as the schema-description source of truth for the
// job_transitions table pkg/database/migrations creates by hand; no
// generated ent client is produced from it in this environment, so
// pkg/audit writes through plain SQL against the same shape.
type JobTransition struct {
	ent.Schema
}

func (JobTransition) Fields() []ent.Field {
	return []ent.Field{
		field.String("request_id").
			Comment("Job Store requestId this transition belongs to"),
		field.String("from_status"),
		field.String("to_status"),
		field.String("reason_code").
			Optional().
			Default(""),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

func (JobTransition) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("request_id"),
	}
}
