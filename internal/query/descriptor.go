package query

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Action is the operation a data source performs for a Descriptor.
type Action string

const (
	ActionList   Action = "list"
	ActionGet    Action = "get"
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionSignup Action = "signup"
	ActionLogin  Action = "login"
)

// Relation describes an embedded projection of a related table.
//
// For a to-one relation ForeignKey is the column on the parent referencing
// the related row's id. For a to-many relation (Many) it is the column on the
// related rows referencing the parent's id.
type Relation struct {
	Name       string     `json:"name"`
	Table      string     `json:"table"`
	ForeignKey string     `json:"foreign_key"`
	Many       bool       `json:"many,omitempty"`
	Columns    []string   `json:"columns,omitempty"`
	Children   []Relation `json:"children,omitempty"`
}

// Descriptor is the declarative query handed to a data source.
//
// Response contract per action:
//   - list:   {"data": [...], "count": n}
//   - get:    record or null
//   - insert: record
//   - update: record or null
//   - delete: true or false
//   - signup: user record
//   - login:  session object or null
type Descriptor struct {
	Entity     string                 `json:"entity"`
	Table      string                 `json:"table,omitempty"`
	Action     Action                 `json:"action"`
	Columns    []string               `json:"columns,omitempty"`
	Relations  []Relation             `json:"relations,omitempty"`
	Predicates []Predicate            `json:"predicates,omitempty"`
	Search     *Search                `json:"search,omitempty"`
	Order      *Order                 `json:"order,omitempty"`
	Range      *Range                 `json:"range,omitempty"`
	Count      bool                   `json:"count,omitempty"`
	ID         string                 `json:"id,omitempty"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
}

// NewList builds a list descriptor from a normalised filter and a row range.
func NewList(entity, table string, relations []Relation, f Filter, r Range) *Descriptor {
	return &Descriptor{
		Entity:     entity,
		Table:      table,
		Action:     ActionList,
		Relations:  relations,
		Predicates: f.Predicates,
		Search:     f.Search,
		Order:      f.Order,
		Range:      &r,
		Count:      true,
	}
}

// FindRelation resolves a dotted relation path such as "therapist.clinic".
func (d *Descriptor) FindRelation(path string) ([]Relation, error) {
	var chain []Relation
	candidates := d.Relations
	for _, name := range strings.Split(path, ".") {
		found := false
		for _, rel := range candidates {
			if rel.Name == name {
				chain = append(chain, rel)
				candidates = rel.Children
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown relation %q on %s", path, d.Table)
		}
	}
	return chain, nil
}

type descriptorAlias Descriptor

// String renders the descriptor as compact JSON for logs. Payload values are
// replaced by their sorted keys since signup and login payloads carry
// passwords.
func (d *Descriptor) String() string {
	var keys []string
	for k := range d.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b, err := json.Marshal(struct {
		descriptorAlias
		Payload []string `json:"payload,omitempty"`
	}{descriptorAlias(*d), keys})
	if err != nil {
		return fmt.Sprintf("%s %s", d.Action, d.Entity)
	}
	return string(b)
}
