package engine

import (
	"github.com/Renzios/sharerapy-harness/internal/model"
	"github.com/Renzios/sharerapy-harness/internal/query"
)

// Schema declares everything the engine needs to know about one entity
// family.
type Schema[T any] struct {
	// Entity is the singular name used in logs, metrics and event types.
	Entity string
	Table  string

	// ListRelations are embedded on list results, DetailRelations on get.
	ListRelations   []query.Relation
	DetailRelations []query.Relation

	Normalizer query.Normalizer

	// Nested returns the report collections deduplicated on list results.
	Nested []func(*T) *[]model.Report

	// Fallback builds the synthetic record used when the backend is
	// unavailable.
	Fallback func(g *Generator) T

	// ReadOnly lists JSON keys never written to the backend, such as embedded
	// relations and derived fields.
	ReadOnly []string
}

// dedup collapses every nested report collection to one report per type.
func (s Schema[T]) dedup(rec *T) {
	for _, nested := range s.Nested {
		reports := nested(rec)
		*reports = DedupByKey(*reports, model.Report.TypeLabel)
	}
}
