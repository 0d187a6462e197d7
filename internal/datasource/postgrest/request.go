package postgrest

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/Renzios/sharerapy-harness/internal/query"
)

// selectClause renders the PostgREST embedded-resource syntax, e.g.
// "*,country:countries(*),reports(id,type:types(type))". Relations named in
// inner are embedded with !inner so that filters on them restrict the parent.
func selectClause(columns []string, relations []query.Relation, inner map[string]bool, prefix string) string {
	parts := append([]string(nil), columns...)
	if len(parts) == 0 {
		parts = []string{"*"}
	}
	for _, rel := range relations {
		path := prefix + rel.Name
		hint := ""
		if inner[path] {
			hint = "!inner"
		}
		parts = append(parts, fmt.Sprintf("%s:%s%s(%s)", rel.Name, rel.Table, hint, selectClause(rel.Columns, rel.Children, inner, path+".")))
	}
	return strings.Join(parts, ",")
}

// innerPaths collects every relation path, including ancestors, that a
// predicate filters on.
func innerPaths(predicates []query.Predicate) map[string]bool {
	paths := make(map[string]bool)
	for _, p := range predicates {
		if p.Relation == "" {
			continue
		}
		segments := strings.Split(p.Relation, ".")
		for i := range segments {
			paths[strings.Join(segments[:i+1], ".")] = true
		}
	}
	return paths
}

// listValues builds the query string for a list descriptor.
func listValues(d *query.Descriptor) (url.Values, error) {
	q := url.Values{}
	q.Set("select", selectClause(d.Columns, d.Relations, innerPaths(d.Predicates), ""))

	for _, p := range d.Predicates {
		if p.Relation != "" {
			if _, err := d.FindRelation(p.Relation); err != nil {
				return nil, err
			}
		}
		key := p.Column
		if p.Relation != "" {
			key = p.Relation + "." + p.Column
		}
		value, err := filterValue(p)
		if err != nil {
			return nil, err
		}
		q.Add(key, value)
	}

	if s := d.Search; s != nil && len(s.Columns) > 0 {
		pattern := "*" + escapeLike(s.Text) + "*"
		if len(s.Columns) == 1 {
			q.Add(s.Columns[0], "ilike."+pattern)
		} else {
			ors := make([]string, len(s.Columns))
			for i, col := range s.Columns {
				ors[i] = col + ".ilike." + quote(pattern)
			}
			q.Add("or", "("+strings.Join(ors, ",")+")")
		}
	}

	if d.Order != nil {
		dir := "asc"
		if !d.Order.Ascending {
			dir = "desc"
		}
		q.Set("order", d.Order.Column+"."+dir)
	}

	if d.Range != nil {
		q.Set("offset", strconv.Itoa(d.Range.Offset()))
		q.Set("limit", strconv.Itoa(d.Range.Limit()))
	}

	return q, nil
}

func filterValue(p query.Predicate) (string, error) {
	switch p.Op {
	case query.OpEq, query.OpGte, query.OpLte:
		return fmt.Sprintf("%s.%v", p.Op, p.Value), nil
	case query.OpIn:
		ids, ok := p.Value.([]int)
		if !ok {
			return "", fmt.Errorf("in predicate on %s needs []int", p.Column)
		}
		items := make([]string, len(ids))
		for i, id := range ids {
			items[i] = strconv.Itoa(id)
		}
		return "in.(" + strings.Join(items, ",") + ")", nil
	case query.OpContains:
		return "ilike.*" + escapeLike(fmt.Sprint(p.Value)) + "*", nil
	default:
		return "", fmt.Errorf("unsupported operator %s", p.Op)
	}
}

// escapeLike makes user text match literally inside an ilike pattern.
// PostgREST turns every * into %, so a literal * can only be matched by the
// single-character wildcard.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`, `*`, `_`).Replace(s)
}

// quote wraps a value in double quotes so reserved characters survive
// inside or=(...) lists.
func quote(v string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(v) + `"`
}

// totalCount parses the total from a Content-Range header such as
// "0-19/57" or "*/0".
func totalCount(contentRange string) (int, bool) {
	i := strings.LastIndex(contentRange, "/")
	if i < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(contentRange[i+1:])
	if err != nil {
		return 0, false
	}
	return n, true
}
