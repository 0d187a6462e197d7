package model

import (
	"time"
)

// Entity is implemented by every record the CRUD engine manages.
type Entity interface {
	EntityID() string
	AssignID(id string)
	Stamp(created, updated *Timestamp)
}

// Base contains common fields for all top-level records
type Base struct {
	ID        string     `json:"id" db:"id"`
	CreatedAt *Timestamp `json:"created_at,omitempty" db:"created_at"`
	UpdatedAt *Timestamp `json:"updated_at,omitempty" db:"updated_at"`
}

func (b *Base) EntityID() string {
	return b.ID
}

func (b *Base) AssignID(id string) {
	b.ID = id
}

// Stamp overwrites the timestamps that are non-nil.
func (b *Base) Stamp(created, updated *Timestamp) {
	if created != nil {
		b.CreatedAt = created
	}
	if updated != nil {
		b.UpdatedAt = updated
	}
}

// ListResult is the canonical list response shape.
type ListResult[T any] struct {
	Data  []T `json:"data"`
	Count int `json:"count"`
}

// JSONMap represents a generic JSON object
type JSONMap map[string]interface{}

// Clone returns a shallow copy of the map.
func (m JSONMap) Clone() JSONMap {
	out := make(JSONMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Without returns a copy of the map minus the given keys.
func (m JSONMap) Without(keys ...string) JSONMap {
	out := m.Clone()
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// PlaceholderTime is the fixed timestamp carried by synthetic records.
var PlaceholderTime = time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
