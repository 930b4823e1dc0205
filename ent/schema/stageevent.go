package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// StageEvent holds the schema definition for one row of the pipeline
// stage-timing log — one row per timed orchestrator stage
// run (gate, intent, route, provider, assistant).
// Mirrors stage.go's original per-agent-stage shape, narrowed to the
// fields the deterministic pipeline actually reports.
type StageEvent struct {
	ent.Schema
}

func (StageEvent) Fields() []ent.Field {
	return []ent.Field{
		field.String("request_id"),
		field.String("stage_name"),
		field.Int64("duration_ms"),
		field.String("status").
			Comment("completed | failed"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

func (StageEvent) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("request_id"),
	}
}
