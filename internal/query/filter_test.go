package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var patientNormalizer = Normalizer{
	Filters: []FilterSpec{
		{Param: "sex", Column: "sex", Kind: KindText},
		{Param: "country_id", Column: "country_id", Kind: KindInt},
	},
	SearchColumns: []string{"name"},
	OrderColumn:   "name",
}

var reportNormalizer = Normalizer{
	Filters: []FilterSpec{
		{Param: "type_ids", Column: "type_id", Kind: KindIntList},
		{Param: "country_id", Column: "country_id", Relation: "therapist.clinic", Kind: KindInt},
		{Param: "start_date", Column: "created_at", Kind: KindDateFrom},
		{Param: "end_date", Column: "created_at", Kind: KindDateTo},
		{Param: "patient_id", Column: "patient_id", Kind: KindText},
	},
	SearchColumns: []string{"title", "description"},
	OrderColumn:   "title",
	OrderColumns:  []string{"title", "created_at"},
}

func TestNormalizeOmitsAbsentFilters(t *testing.T) {
	f := patientNormalizer.Normalize(Params{
		"sex":        "",
		"country_id": nil,
		"search":     "   ",
	})

	assert.Empty(t, f.Predicates)
	assert.Nil(t, f.Search)
	require.NotNil(t, f.Order)
	assert.Equal(t, Order{Column: "name", Ascending: true}, *f.Order)
}

func TestNormalizeCoercesNumericFilters(t *testing.T) {
	f := patientNormalizer.Normalize(Params{"country_id": "42", "sex": "Female"})

	assert.Equal(t, []Predicate{
		{Column: "country_id", Op: OpEq, Value: 42},
		{Column: "sex", Op: OpEq, Value: "Female"},
	}, f.Predicates)
}

func TestNormalizeReadsLeadingZerosAsDecimal(t *testing.T) {
	for raw, want := range map[string]int{"010": 10, "08": 8, " 007 ": 7} {
		f := patientNormalizer.Normalize(Params{"country_id": raw})
		assert.Equal(t, []Predicate{{Column: "country_id", Op: OpEq, Value: want}}, f.Predicates, "value %q", raw)
	}

	f := reportNormalizer.Normalize(Params{"type_ids": "010,02"})
	assert.Equal(t, []Predicate{{Column: "type_id", Op: OpIn, Value: []int{2, 10}}}, f.Predicates)
}

func TestNormalizeDropsUncoercibleNumbers(t *testing.T) {
	for _, raw := range []interface{}{"abc", true, "4.5x", "0x1F", []string{"1"}} {
		f := patientNormalizer.Normalize(Params{"country_id": raw})
		assert.Empty(t, f.Predicates, "value %v", raw)
	}
}

func TestNormalizeSearchIsTrimmedContains(t *testing.T) {
	f := reportNormalizer.Normalize(Params{"search": "  knee "})

	require.NotNil(t, f.Search)
	assert.Equal(t, "knee", f.Search.Text)
	assert.Equal(t, []string{"title", "description"}, f.Search.Columns)
}

func TestNormalizeAscendingFlag(t *testing.T) {
	cases := map[string]struct {
		raw  interface{}
		want bool
	}{
		"absent":  {raw: nil, want: true},
		"false":   {raw: false, want: false},
		"string":  {raw: "false", want: false},
		"garbage": {raw: "sideways", want: true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := patientNormalizer.Normalize(Params{"ascending": tc.raw})
			require.NotNil(t, f.Order)
			assert.Equal(t, tc.want, f.Order.Ascending)
		})
	}
}

func TestNormalizeIsOrderIndependent(t *testing.T) {
	a := reportNormalizer.Normalize(Params{
		"patient_id": "p-1",
		"type_ids":   "3,1,3",
		"country_id": 7,
	})
	b := reportNormalizer.Normalize(Params{
		"country_id": "7",
		"type_ids":   []interface{}{1, "3"},
		"patient_id": " p-1 ",
	})

	assert.Equal(t, a, b)
	assert.Equal(t, "therapist.clinic", a.Predicates[len(a.Predicates)-1].Relation)
	assert.Contains(t, a.Predicates, Predicate{Column: "type_id", Op: OpIn, Value: []int{1, 3}})
}

func TestNormalizeIntListRejectsBadElements(t *testing.T) {
	f := reportNormalizer.Normalize(Params{"type_ids": "1,two"})
	assert.Empty(t, f.Predicates)
}

func TestNormalizeDateRange(t *testing.T) {
	f := reportNormalizer.Normalize(Params{
		"start_date": "2024-01-01",
		"end_date":   "not-a-date",
	})

	assert.Equal(t, []Predicate{
		{Column: "created_at", Op: OpGte, Value: "2024-01-01T00:00:00Z"},
	}, f.Predicates)
}

func TestNormalizeOrderColumnAllowList(t *testing.T) {
	f := reportNormalizer.Normalize(Params{"column": "created_at", "ascending": "0"})
	assert.Equal(t, &Order{Column: "created_at", Ascending: false}, f.Order)

	f = reportNormalizer.Normalize(Params{"column": "password; drop table"})
	assert.Equal(t, "title", f.Order.Column)
}
