// Package service holds the relation projections shared by the entity
// services in its sub-packages.
package service

import "github.com/Renzios/sharerapy-harness/internal/query"

var (
	CountryRelation = query.Relation{Name: "country", Table: "countries", ForeignKey: "country_id"}

	ClinicRelation = query.Relation{
		Name:       "clinic",
		Table:      "clinics",
		ForeignKey: "clinic_id",
		Children:   []query.Relation{CountryRelation},
	}

	TypeRelation     = query.Relation{Name: "type", Table: "types", ForeignKey: "type_id"}
	LanguageRelation = query.Relation{Name: "language", Table: "languages", ForeignKey: "language_id"}
)

// ReportTypes embeds a parent's reports reduced to their type label, the
// projection used by list results.
func ReportTypes(foreignKey string) query.Relation {
	return query.Relation{
		Name:       "reports",
		Table:      "reports",
		ForeignKey: foreignKey,
		Many:       true,
		Columns:    []string{"id", "type_id"},
		Children: []query.Relation{
			{Name: "type", Table: "types", ForeignKey: "type_id", Columns: []string{"type"}},
		},
	}
}

// Reports embeds a parent's full reports with their own relations.
func Reports(foreignKey string, children ...query.Relation) query.Relation {
	return query.Relation{
		Name:       "reports",
		Table:      "reports",
		ForeignKey: foreignKey,
		Many:       true,
		Children:   children,
	}
}
