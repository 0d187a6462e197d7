package query

import (
	"sort"
	"time"

	"github.com/spf13/cast"
)

// Kind selects how a raw parameter is coerced and compared.
type Kind int

const (
	KindText Kind = iota
	KindInt
	KindIntList
	KindDateFrom
	KindDateTo
)

// Operator is a predicate comparison.
type Operator string

const (
	OpEq       Operator = "eq"
	OpIn       Operator = "in"
	OpGte      Operator = "gte"
	OpLte      Operator = "lte"
	OpContains Operator = "contains"
)

// FilterSpec declares one categorical filter an entity accepts.
type FilterSpec struct {
	Param  string
	Column string
	// Relation is the dotted path of the embedded relation owning Column,
	// empty for the root table.
	Relation string
	Kind     Kind
}

type Predicate struct {
	Relation string      `json:"relation,omitempty"`
	Column   string      `json:"column"`
	Op       Operator    `json:"op"`
	Value    interface{} `json:"value"`
}

// Search is a case-insensitive substring match OR'ed across Columns.
type Search struct {
	Text    string   `json:"text"`
	Columns []string `json:"columns"`
}

type Order struct {
	Column    string `json:"column"`
	Ascending bool   `json:"ascending"`
}

// Filter is the canonical, order-independent result of normalisation.
type Filter struct {
	Predicates []Predicate `json:"predicates,omitempty"`
	Search     *Search     `json:"search,omitempty"`
	Order      *Order      `json:"order,omitempty"`
}

// Normalizer turns raw parameters into a Filter. It never fails; invalid
// input drops the affected filter.
type Normalizer struct {
	Filters       []FilterSpec
	SearchColumns []string
	// OrderColumn is the default sort column. When OrderColumns is set the
	// caller may pick another one through the "column" parameter.
	OrderColumn  string
	OrderColumns []string
}

const (
	ParamSearch    = "search"
	ParamAscending = "ascending"
	ParamColumn    = "column"
)

func (n Normalizer) Normalize(params Params) Filter {
	var f Filter

	for _, spec := range n.Filters {
		if p, ok := compile(spec, params); ok {
			f.Predicates = append(f.Predicates, p)
		}
	}
	sort.SliceStable(f.Predicates, func(i, j int) bool {
		a, b := f.Predicates[i], f.Predicates[j]
		if a.Relation != b.Relation {
			return a.Relation < b.Relation
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return a.Op < b.Op
	})

	if text, ok := params.String(ParamSearch); ok && len(n.SearchColumns) > 0 {
		f.Search = &Search{Text: text, Columns: append([]string(nil), n.SearchColumns...)}
	}

	if column := n.orderColumn(params); column != "" {
		f.Order = &Order{Column: column, Ascending: params.Bool(ParamAscending, true)}
	}

	return f
}

func (n Normalizer) orderColumn(params Params) string {
	requested, ok := params.String(ParamColumn)
	if !ok {
		return n.OrderColumn
	}
	for _, allowed := range n.OrderColumns {
		if allowed == requested {
			return requested
		}
	}
	return n.OrderColumn
}

func compile(spec FilterSpec, params Params) (Predicate, bool) {
	p := Predicate{Relation: spec.Relation, Column: spec.Column}

	switch spec.Kind {
	case KindText:
		s, ok := params.String(spec.Param)
		if !ok {
			return p, false
		}
		p.Op, p.Value = OpEq, s
	case KindInt:
		v, ok := params.Int(spec.Param)
		if !ok {
			return p, false
		}
		p.Op, p.Value = OpEq, v
	case KindIntList:
		v, ok := params.IntList(spec.Param)
		if !ok {
			return p, false
		}
		p.Op, p.Value = OpIn, v
	case KindDateFrom, KindDateTo:
		raw, ok := params.Get(spec.Param)
		if !ok {
			return p, false
		}
		t, err := cast.ToTimeE(raw)
		if err != nil {
			return p, false
		}
		p.Op = OpGte
		if spec.Kind == KindDateTo {
			p.Op = OpLte
		}
		p.Value = t.UTC().Format(time.RFC3339)
	default:
		return p, false
	}

	return p, true
}
