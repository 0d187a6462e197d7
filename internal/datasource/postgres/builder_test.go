package postgres

import (
	"encoding/json"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Renzios/sharerapy-harness/internal/datasource"
	"github.com/Renzios/sharerapy-harness/internal/query"
)

func patientList() *query.Descriptor {
	return &query.Descriptor{
		Entity: "patient",
		Table:  "patients",
		Action: query.ActionList,
		Relations: []query.Relation{
			{Name: "country", Table: "countries", ForeignKey: "country_id"},
			{Name: "reports", Table: "reports", ForeignKey: "patient_id", Many: true, Columns: []string{"id"}, Children: []query.Relation{
				{Name: "type", Table: "types", ForeignKey: "type_id", Columns: []string{"type"}},
			}},
		},
		Predicates: []query.Predicate{{Column: "country_id", Op: query.OpEq, Value: 3}},
		Search:     &query.Search{Text: "50%_off", Columns: []string{"name"}},
		Order:      &query.Order{Column: "name", Ascending: false},
		Range:      &query.Range{Start: 20, End: 39},
		Count:      true,
	}
}

func TestBuildList(t *testing.T) {
	st, err := build(patientList())
	require.NoError(t, err)

	assert.Contains(t, st.sql, `SELECT json_build_object('data', COALESCE((SELECT json_agg(row_to_json(r)) FROM (SELECT t0.*`)
	assert.Contains(t, st.sql, `(SELECT row_to_json(s) FROM (SELECT t1.* FROM "countries" t1 WHERE t1."id" = t0."country_id" LIMIT 1) s) AS "country"`)
	assert.Contains(t, st.sql, `(SELECT COALESCE(json_agg(row_to_json(s)), '[]'::json) FROM (SELECT t2."id", (SELECT row_to_json(s) FROM (SELECT t3."type" FROM "types" t3 WHERE t3."id" = t2."type_id" LIMIT 1) s) AS "type" FROM "reports" t2 WHERE t2."patient_id" = t0."id") s) AS "reports"`)
	assert.Contains(t, st.sql, ` WHERE t0."country_id" = $1 AND (t0."name" ILIKE $2) ORDER BY t0."name" DESC LIMIT $3 OFFSET $4`)
	assert.Contains(t, st.sql, `'count', (SELECT count(*) FROM "patients" t0 WHERE t0."country_id" = $1 AND (t0."name" ILIKE $2))`)
	assert.Equal(t, []interface{}{3, `%50\%\_off%`, 20, 20}, st.args)
	assert.False(t, st.exec)
}

func TestBuildListWithoutCountOrRange(t *testing.T) {
	st, err := build(&query.Descriptor{Entity: "country", Table: "countries", Action: query.ActionList, Order: &query.Order{Column: "country", Ascending: true}})
	require.NoError(t, err)

	assert.Equal(t, `SELECT json_build_object('data', COALESCE((SELECT json_agg(row_to_json(r)) FROM (SELECT t0.* FROM "countries" t0 ORDER BY t0."country" ASC) r), '[]'::json))`, st.sql)
	assert.Empty(t, st.args)
}

func TestBuildRelationPredicateUsesExists(t *testing.T) {
	d := &query.Descriptor{
		Entity: "report",
		Table:  "reports",
		Action: query.ActionList,
		Relations: []query.Relation{
			{Name: "therapist", Table: "therapists", ForeignKey: "therapist_id", Children: []query.Relation{
				{Name: "clinic", Table: "clinics", ForeignKey: "clinic_id"},
			}},
		},
		Predicates: []query.Predicate{
			{Column: "type_id", Op: query.OpIn, Value: []int{1, 2}},
			{Relation: "therapist.clinic", Column: "country_id", Op: query.OpEq, Value: 9},
		},
	}

	st, err := build(d)
	require.NoError(t, err)
	assert.Contains(t, st.sql, `t0."type_id" = ANY($1)`)
	assert.Contains(t, st.sql, `EXISTS (SELECT 1 FROM "therapists" t1 WHERE t1."id" = t0."therapist_id" AND EXISTS (SELECT 1 FROM "clinics" t2 WHERE t2."id" = t1."clinic_id" AND t2."country_id" = $2))`)
	assert.Equal(t, pq.Array([]int64{1, 2}), st.args[0])
}

func TestBuildUnknownRelationIsUnsupported(t *testing.T) {
	d := &query.Descriptor{Table: "reports", Action: query.ActionList, Predicates: []query.Predicate{
		{Relation: "clinic", Column: "country_id", Op: query.OpEq, Value: 1},
	}}
	_, err := build(d)
	assert.ErrorIs(t, err, datasource.ErrUnsupported)
}

func TestBuildGet(t *testing.T) {
	st, err := build(&query.Descriptor{Table: "reports", Action: query.ActionGet, ID: "r1"})
	require.NoError(t, err)
	assert.Equal(t, `SELECT row_to_json(r) FROM (SELECT t0.* FROM "reports" t0 WHERE t0."id" = $1 LIMIT 1) r`, st.sql)
	assert.Equal(t, []interface{}{"r1"}, st.args)
}

func TestBuildInsertSortsColumnsAndEncodesJSON(t *testing.T) {
	st, err := build(&query.Descriptor{Table: "reports", Action: query.ActionInsert, Payload: map[string]interface{}{
		"title":   "Gait",
		"id":      "r1",
		"content": map[string]interface{}{"blocks": []interface{}{}},
		"type_id": json.Number("2"),
	}})
	require.NoError(t, err)

	assert.Equal(t, `WITH ins AS (INSERT INTO "reports" ("content", "id", "title", "type_id") VALUES ($1, $2, $3, $4) RETURNING *) SELECT row_to_json(ins) FROM ins`, st.sql)
	assert.Equal(t, []interface{}{`{"blocks":[]}`, "r1", "Gait", "2"}, st.args)
}

func TestBuildUpdate(t *testing.T) {
	st, err := build(&query.Descriptor{Table: "patients", Action: query.ActionUpdate, ID: "p1", Payload: map[string]interface{}{"last_name": "Roe"}})
	require.NoError(t, err)
	assert.Equal(t, `WITH upd AS (UPDATE "patients" SET "last_name" = $1 WHERE "id" = $2 RETURNING *) SELECT row_to_json(upd) FROM upd`, st.sql)
	assert.Equal(t, []interface{}{"Roe", "p1"}, st.args)

	st, err = build(&query.Descriptor{Table: "patients", Action: query.ActionUpdate, ID: "p1"})
	require.NoError(t, err)
	assert.Contains(t, st.sql, `SELECT row_to_json(r)`)
}

func TestBuildDelete(t *testing.T) {
	st, err := build(&query.Descriptor{Table: "patients", Action: query.ActionDelete, ID: "p1"})
	require.NoError(t, err)
	assert.True(t, st.exec)
	assert.Equal(t, `DELETE FROM "patients" WHERE "id" = $1`, st.sql)
}

func TestBuildRejectsAuthActions(t *testing.T) {
	_, err := build(&query.Descriptor{Table: "users", Action: query.ActionSignup})
	assert.ErrorIs(t, err, datasource.ErrUnsupported)
}
