package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cast"
)

// Timestamp accepts the timestamp layouts produced by Postgres and PostgREST
// (with or without zone, fractional seconds) and always renders RFC 3339.
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) *Timestamp {
	return &Timestamp{Time: t.UTC()}
}

// Now returns the current time truncated to microseconds, matching Postgres precision.
func Now() *Timestamp {
	return NewTimestamp(time.Now().Truncate(time.Microsecond))
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.UTC().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return nil
	}
	parsed, err := cast.ToTimeE(raw)
	if err != nil {
		return fmt.Errorf("invalid timestamp %s: %w", string(data), err)
	}
	t.Time = parsed.UTC()
	return nil
}
