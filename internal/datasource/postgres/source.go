package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/Renzios/sharerapy-harness/internal/datasource"
	"github.com/Renzios/sharerapy-harness/internal/query"
)

type queryer interface {
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	PingContext(ctx context.Context) error
}

// Source executes descriptors directly against Postgres. Auth actions are
// not supported.
type Source struct {
	db queryer
}

func NewSource(db *sqlx.DB) *Source {
	return &Source{db: db}
}

func (s *Source) Execute(ctx context.Context, d *query.Descriptor) (json.RawMessage, error) {
	st, err := build(d)
	if err != nil {
		return nil, err
	}

	if st.exec {
		res, err := s.db.ExecContext(ctx, st.sql, st.args...)
		if err != nil {
			return nil, datasource.Unavailablef("%s %s: %v", d.Action, d.Table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, datasource.Unavailablef("%s %s: %v", d.Action, d.Table, err)
		}
		return json.RawMessage(fmt.Sprint(n > 0)), nil
	}

	var raw []byte
	if err := s.db.QueryRowxContext(ctx, st.sql, st.args...).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return json.RawMessage("null"), nil
		}
		return nil, datasource.Unavailablef("%s %s: %v", d.Action, d.Table, err)
	}
	return datasource.CheckJSON(raw)
}

func (s *Source) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
