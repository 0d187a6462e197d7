package query

import "math"

const DefaultPageSize = 20

const (
	ParamPage     = "page"
	ParamPageSize = "page_size"
	ParamOffset   = "offset"
	ParamLimit    = "limit"
)

// Range is an inclusive, zero-based row window.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (r Range) Len() int {
	return r.End - r.Start + 1
}

func (r Range) Offset() int {
	return r.Start
}

func (r Range) Limit() int {
	return r.Len()
}

// Page is the equivalent 1-based page number for backends that page by number.
func (r Range) Page() int {
	return r.Start/r.Len() + 1
}

// Pager converts paging parameters into a Range. Missing or malformed values
// fall back to page 0 and DefaultPageSize field by field.
type Pager struct {
	DefaultPageSize int
	// MaxPageSize clamps oversized requests when positive.
	MaxPageSize int
}

func NewPager(defaultPageSize, maxPageSize int) Pager {
	if defaultPageSize <= 0 {
		defaultPageSize = DefaultPageSize
	}
	return Pager{DefaultPageSize: defaultPageSize, MaxPageSize: maxPageSize}
}

func (p Pager) FromPage(page, pageSize interface{}) Range {
	n := nonNegative(page)
	size := p.size(pageSize)
	if last := lastStart(size) / size; n > last {
		n = last
	}
	start := n * size
	return Range{Start: start, End: start + size - 1}
}

func (p Pager) FromOffset(offset, limit interface{}) Range {
	start := nonNegative(offset)
	size := p.size(limit)
	if last := lastStart(size); start > last {
		start = last
	}
	return Range{Start: start, End: start + size - 1}
}

// lastStart is the largest start whose window of size rows ends at or before
// math.MaxInt.
func lastStart(size int) int {
	return math.MaxInt - size + 1
}

// FromParams uses the offset/limit form when either key is present and the
// page/page_size form otherwise.
func (p Pager) FromParams(params Params) Range {
	_, hasOffset := params[ParamOffset]
	_, hasLimit := params[ParamLimit]
	if hasOffset || hasLimit {
		return p.FromOffset(params[ParamOffset], params[ParamLimit])
	}
	return p.FromPage(params[ParamPage], params[ParamPageSize])
}

func (p Pager) size(v interface{}) int {
	def := p.DefaultPageSize
	if def <= 0 {
		def = DefaultPageSize
	}
	n, ok := coerce(v)
	if !ok || n <= 0 {
		n = def
	}
	if p.MaxPageSize > 0 && n > p.MaxPageSize {
		n = p.MaxPageSize
	}
	return n
}

func nonNegative(v interface{}) int {
	n, ok := coerce(v)
	if !ok || n < 0 {
		return 0
	}
	return n
}

func coerce(v interface{}) (int, bool) {
	if v == nil {
		return 0, false
	}
	return toInt(v)
}
