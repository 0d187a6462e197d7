package postgres

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"

	"github.com/Renzios/sharerapy-harness/internal/datasource"
	"github.com/Renzios/sharerapy-harness/internal/query"
)

const rootAlias = "t0"

// statement is a compiled descriptor. Statements with exec set report
// affected rows instead of returning JSON.
type statement struct {
	sql  string
	args []interface{}
	exec bool
}

type builder struct {
	args  []interface{}
	alias int
}

// build compiles a descriptor into SQL that returns the descriptor's JSON
// response shape as a single json value.
func build(d *query.Descriptor) (statement, error) {
	if d.Table == "" {
		return statement{}, fmt.Errorf("%w: descriptor has no table", datasource.ErrUnsupported)
	}

	b := &builder{}
	switch d.Action {
	case query.ActionList:
		return b.list(d)
	case query.ActionGet:
		return b.get(d)
	case query.ActionInsert:
		return b.insert(d)
	case query.ActionUpdate:
		return b.update(d)
	case query.ActionDelete:
		return b.delete(d)
	default:
		return statement{}, fmt.Errorf("%w: %s", datasource.ErrUnsupported, d.Action)
	}
}

func (b *builder) list(d *query.Descriptor) (statement, error) {
	where, err := b.where(d)
	if err != nil {
		return statement{}, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s %s%s", b.projection(rootAlias, d.Columns, d.Relations), pq.QuoteIdentifier(d.Table), rootAlias, where)
	if d.Order != nil {
		dir := "ASC"
		if !d.Order.Ascending {
			dir = "DESC"
		}
		fmt.Fprintf(&sb, " ORDER BY %s.%s %s", rootAlias, pq.QuoteIdentifier(d.Order.Column), dir)
	}
	if d.Range != nil {
		fmt.Fprintf(&sb, " LIMIT %s OFFSET %s", b.bind(d.Range.Limit()), b.bind(d.Range.Offset()))
	}

	data := fmt.Sprintf("COALESCE((SELECT json_agg(row_to_json(r)) FROM (%s) r), '[]'::json)", sb.String())
	sql := fmt.Sprintf("SELECT json_build_object('data', %s)", data)
	if d.Count {
		count := fmt.Sprintf("(SELECT count(*) FROM %s %s%s)", pq.QuoteIdentifier(d.Table), rootAlias, where)
		sql = fmt.Sprintf("SELECT json_build_object('data', %s, 'count', %s)", data, count)
	}

	return statement{sql: sql, args: b.args}, nil
}

func (b *builder) get(d *query.Descriptor) (statement, error) {
	sql := fmt.Sprintf("SELECT row_to_json(r) FROM (SELECT %s FROM %s %s WHERE %s.\"id\" = %s LIMIT 1) r",
		b.projection(rootAlias, d.Columns, d.Relations),
		pq.QuoteIdentifier(d.Table), rootAlias, rootAlias, b.bind(d.ID))
	return statement{sql: sql, args: b.args}, nil
}

func (b *builder) insert(d *query.Descriptor) (statement, error) {
	cols, err := payloadColumns(d.Payload)
	if err != nil {
		return statement{}, err
	}
	if len(cols) == 0 {
		return statement{}, fmt.Errorf("%w: empty insert payload", datasource.ErrUnsupported)
	}

	names := make([]string, len(cols))
	values := make([]string, len(cols))
	for i, col := range cols {
		v, err := sqlValue(d.Payload[col])
		if err != nil {
			return statement{}, err
		}
		names[i] = pq.QuoteIdentifier(col)
		values[i] = b.bind(v)
	}

	sql := fmt.Sprintf("WITH ins AS (INSERT INTO %s (%s) VALUES (%s) RETURNING *) SELECT row_to_json(ins) FROM ins",
		pq.QuoteIdentifier(d.Table), strings.Join(names, ", "), strings.Join(values, ", "))
	return statement{sql: sql, args: b.args}, nil
}

func (b *builder) update(d *query.Descriptor) (statement, error) {
	cols, err := payloadColumns(d.Payload)
	if err != nil {
		return statement{}, err
	}
	if len(cols) == 0 {
		return b.get(&query.Descriptor{Table: d.Table, ID: d.ID})
	}

	sets := make([]string, len(cols))
	for i, col := range cols {
		v, err := sqlValue(d.Payload[col])
		if err != nil {
			return statement{}, err
		}
		sets[i] = fmt.Sprintf("%s = %s", pq.QuoteIdentifier(col), b.bind(v))
	}

	sql := fmt.Sprintf("WITH upd AS (UPDATE %s SET %s WHERE \"id\" = %s RETURNING *) SELECT row_to_json(upd) FROM upd",
		pq.QuoteIdentifier(d.Table), strings.Join(sets, ", "), b.bind(d.ID))
	return statement{sql: sql, args: b.args}, nil
}

func (b *builder) delete(d *query.Descriptor) (statement, error) {
	sql := fmt.Sprintf("DELETE FROM %s WHERE \"id\" = %s", pq.QuoteIdentifier(d.Table), b.bind(d.ID))
	return statement{sql: sql, args: b.args, exec: true}, nil
}

func (b *builder) bind(v interface{}) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *builder) nextAlias() string {
	b.alias++
	return fmt.Sprintf("t%d", b.alias)
}

// projection selects the row's columns plus one JSON column per relation.
func (b *builder) projection(alias string, columns []string, relations []query.Relation) string {
	var parts []string
	if len(columns) == 0 {
		parts = append(parts, alias+".*")
	}
	for _, col := range columns {
		parts = append(parts, alias+"."+pq.QuoteIdentifier(col))
	}
	for _, rel := range relations {
		parts = append(parts, fmt.Sprintf("%s AS %s", b.embed(alias, rel), pq.QuoteIdentifier(rel.Name)))
	}
	return strings.Join(parts, ", ")
}

func (b *builder) embed(parent string, rel query.Relation) string {
	alias := b.nextAlias()
	inner := fmt.Sprintf("SELECT %s FROM %s %s WHERE %s",
		b.projection(alias, rel.Columns, rel.Children), pq.QuoteIdentifier(rel.Table), alias, join(parent, alias, rel))
	if rel.Many {
		return fmt.Sprintf("(SELECT COALESCE(json_agg(row_to_json(s)), '[]'::json) FROM (%s) s)", inner)
	}
	return fmt.Sprintf("(SELECT row_to_json(s) FROM (%s LIMIT 1) s)", inner)
}

func join(parent, alias string, rel query.Relation) string {
	if rel.Many {
		return fmt.Sprintf("%s.%s = %s.\"id\"", alias, pq.QuoteIdentifier(rel.ForeignKey), parent)
	}
	return fmt.Sprintf("%s.\"id\" = %s.%s", alias, parent, pq.QuoteIdentifier(rel.ForeignKey))
}

func (b *builder) where(d *query.Descriptor) (string, error) {
	var conds []string
	for _, p := range d.Predicates {
		cond, err := b.predicate(d, p)
		if err != nil {
			return "", err
		}
		conds = append(conds, cond)
	}

	if d.Search != nil && len(d.Search.Columns) > 0 {
		pattern := b.bind("%" + escapeLike(d.Search.Text) + "%")
		ors := make([]string, len(d.Search.Columns))
		for i, col := range d.Search.Columns {
			ors[i] = fmt.Sprintf("%s.%s ILIKE %s", rootAlias, pq.QuoteIdentifier(col), pattern)
		}
		conds = append(conds, "("+strings.Join(ors, " OR ")+")")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), nil
}

// predicate compiles a comparison. Predicates on relations become nested
// EXISTS clauses so they filter the parent rows.
func (b *builder) predicate(d *query.Descriptor, p query.Predicate) (string, error) {
	if p.Relation == "" {
		return b.compare(rootAlias, p)
	}

	chain, err := d.FindRelation(p.Relation)
	if err != nil {
		return "", fmt.Errorf("%w: %v", datasource.ErrUnsupported, err)
	}

	var sb strings.Builder
	parent := rootAlias
	for _, rel := range chain {
		alias := b.nextAlias()
		fmt.Fprintf(&sb, "EXISTS (SELECT 1 FROM %s %s WHERE %s AND ", pq.QuoteIdentifier(rel.Table), alias, join(parent, alias, rel))
		parent = alias
	}
	cmp, err := b.compare(parent, p)
	if err != nil {
		return "", err
	}
	sb.WriteString(cmp)
	sb.WriteString(strings.Repeat(")", len(chain)))
	return sb.String(), nil
}

func (b *builder) compare(alias string, p query.Predicate) (string, error) {
	col := alias + "." + pq.QuoteIdentifier(p.Column)
	switch p.Op {
	case query.OpEq:
		return fmt.Sprintf("%s = %s", col, b.bind(p.Value)), nil
	case query.OpGte:
		return fmt.Sprintf("%s >= %s", col, b.bind(p.Value)), nil
	case query.OpLte:
		return fmt.Sprintf("%s <= %s", col, b.bind(p.Value)), nil
	case query.OpIn:
		ids, ok := p.Value.([]int)
		if !ok {
			return "", fmt.Errorf("%w: in predicate on %s needs []int", datasource.ErrUnsupported, p.Column)
		}
		values := make([]int64, len(ids))
		for i, id := range ids {
			values[i] = int64(id)
		}
		return fmt.Sprintf("%s = ANY(%s)", col, b.bind(pq.Array(values))), nil
	case query.OpContains:
		return fmt.Sprintf("%s ILIKE %s", col, b.bind("%"+escapeLike(fmt.Sprint(p.Value))+"%")), nil
	default:
		return "", fmt.Errorf("%w: operator %s", datasource.ErrUnsupported, p.Op)
	}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func payloadColumns(payload map[string]interface{}) ([]string, error) {
	cols := make([]string, 0, len(payload))
	for col := range payload {
		if col == "" {
			return nil, fmt.Errorf("%w: empty column name", datasource.ErrUnsupported)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols, nil
}

// sqlValue passes scalars through and encodes objects and arrays as JSON
// text for json/jsonb columns.
func sqlValue(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case nil, string, bool, int, int64, float64:
		return t, nil
	case json.Number:
		return t.String(), nil
	case json.RawMessage:
		return string(t), nil
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return nil, fmt.Errorf("%w: encode value: %v", datasource.ErrUnsupported, err)
		}
		return string(b), nil
	}
}
