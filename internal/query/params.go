package query

import (
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// Params carries caller-supplied optional parameters. Values may be strings,
// numbers, booleans, slices or nil; every accessor degrades to "absent" rather
// than failing.
type Params map[string]interface{}

// Get returns the raw value, treating nil and blank strings as absent.
func (p Params) Get(key string) (interface{}, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return nil, false
	}
	if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
		return nil, false
	}
	return v, true
}

func (p Params) String(key string) (string, bool) {
	v, ok := p.Get(key)
	if !ok {
		return "", false
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func (p Params) Int(key string) (int, bool) {
	v, ok := p.Get(key)
	if !ok {
		return 0, false
	}
	return toInt(v)
}

// IntList accepts a slice or a comma separated string. Any element that fails
// coercion drops the whole list.
func (p Params) IntList(key string) ([]int, bool) {
	v, ok := p.Get(key)
	if !ok {
		return nil, false
	}

	var items []interface{}
	switch t := v.(type) {
	case string:
		for _, part := range strings.Split(t, ",") {
			if part = strings.TrimSpace(part); part != "" {
				items = append(items, part)
			}
		}
	case []interface{}:
		items = t
	case []string:
		for _, s := range t {
			items = append(items, s)
		}
	case []int:
		for _, n := range t {
			items = append(items, n)
		}
	default:
		items = []interface{}{t}
	}

	seen := make(map[int]struct{}, len(items))
	out := make([]int, 0, len(items))
	for _, item := range items {
		n, ok := toInt(item)
		if !ok {
			return nil, false
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, false
	}
	sort.Ints(out)
	return out, true
}

// Bool returns def when the value is absent or not a recognisable boolean.
func (p Params) Bool(key string, def bool) bool {
	v, ok := p.Get(key)
	if !ok {
		return def
	}
	if s, isString := v.(string); isString {
		v = strings.TrimSpace(s)
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return def
	}
	return b
}

// toInt reads strings as base-10 only, so "010" is 10 and "0x1F" is not a
// number.
func toInt(v interface{}) (int, bool) {
	switch t := v.(type) {
	case bool:
		return 0, false
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, false
		}
		return n, true
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
