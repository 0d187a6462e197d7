package engine

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Renzios/sharerapy-harness/internal/datasource"
	"github.com/Renzios/sharerapy-harness/internal/model"
	"github.com/Renzios/sharerapy-harness/internal/query"
	"github.com/Renzios/sharerapy-harness/pkg/errors"
	"github.com/Renzios/sharerapy-harness/pkg/logger"
	"github.com/Renzios/sharerapy-harness/pkg/messaging"
	"github.com/Renzios/sharerapy-harness/pkg/metrics"
	"github.com/Renzios/sharerapy-harness/pkg/validator"
)

var errMockMode = stderrors.New("mock mode")

// serverFields are never accepted from a caller's patch.
var serverFields = []string{"id", "created_at", "updated_at"}

type Options struct {
	// Mock skips the backend and answers every call from the classifier and
	// the fallback generator.
	Mock       bool
	Classifier Classifier
	// Ledger is shared by all engines of a run so identifiers are never
	// reissued across entity families.
	Ledger    *Ledger
	Pager     query.Pager
	Validator *validator.Validator
	Publisher messaging.Publisher
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Engine implements list, get, create, update and delete for one entity
// family described by a Schema. Only validation errors are returned to the
// caller; backend failures are absorbed into local results.
type Engine[T any, PT interface {
	*T
	model.Entity
}] struct {
	schema Schema[T]
	source datasource.Source
	opts   Options
	gen    *Generator
	logger zerolog.Logger

	mu      sync.RWMutex
	records map[string]T
}

func New[T any, PT interface {
	*T
	model.Entity
}](schema Schema[T], source datasource.Source, opts Options) *Engine[T, PT] {
	if source == nil {
		source = datasource.Unavailable()
	}
	if opts.Ledger == nil {
		opts.Ledger = NewLedger()
	}
	if opts.Classifier == (Classifier{}) {
		opts.Classifier = DefaultClassifier()
	}
	if opts.Pager.DefaultPageSize <= 0 {
		opts.Pager = query.NewPager(query.DefaultPageSize, opts.Pager.MaxPageSize)
	}
	if opts.Validator == nil {
		opts.Validator = validator.New()
	}
	if opts.Publisher == nil {
		opts.Publisher = messaging.Noop{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Engine[T, PT]{
		schema:  schema,
		source:  source,
		opts:    opts,
		gen:     NewGenerator(opts.Ledger),
		logger:  logger.Component(opts.Logger, "engine").With().Str("entity", schema.Entity).Logger(),
		records: make(map[string]T),
	}
}

func (e *Engine[T, PT]) Schema() Schema[T] {
	return e.schema
}

func (e *Engine[T, PT]) Mock() bool {
	return e.opts.Mock
}

// List returns one page of records. Nested report collections are reduced to
// one report per type. Any backend failure yields a one-record fallback page.
func (e *Engine[T, PT]) List(ctx context.Context, params query.Params) (*model.ListResult[T], error) {
	f := e.schema.Normalizer.Normalize(params)
	r := e.opts.Pager.FromParams(params)

	if e.opts.Mock {
		return e.fallbackPage(errMockMode), nil
	}

	d := query.NewList(e.schema.Entity, e.schema.Table, e.schema.ListRelations, f, r)
	raw, err := e.source.Execute(ctx, d)
	if err != nil {
		return e.fallbackPage(err), nil
	}
	res, err := decodeList[T](raw)
	if err != nil {
		return e.fallbackPage(err), nil
	}

	for i := range res.Data {
		e.schema.dedup(&res.Data[i])
	}
	return res, nil
}

// Get returns the full record or nil when it does not exist.
func (e *Engine[T, PT]) Get(ctx context.Context, id string) (*T, error) {
	if e.never(id) {
		return nil, nil
	}

	cause := errMockMode
	if !e.opts.Mock {
		raw, err := e.source.Execute(ctx, &query.Descriptor{
			Entity:    e.schema.Entity,
			Table:     e.schema.Table,
			Action:    query.ActionGet,
			Relations: e.schema.DetailRelations,
			ID:        id,
		})
		if err == nil {
			if datasource.IsNull(raw) {
				return nil, nil
			}
			rec, derr := decode[T](raw)
			if derr == nil {
				return rec, nil
			}
			err = derr
		}
		cause = err
	}

	v := e.opts.Classifier.Classify(id, e.opts.Ledger)
	if !e.opts.Classifier.Found(v) {
		return nil, nil
	}

	e.fallback(query.ActionGet, cause)
	if rec, ok := e.recall(id); ok {
		return &rec, nil
	}
	rec := e.schema.Fallback(e.gen)
	PT(&rec).AssignID(id)
	return &rec, nil
}

// Create validates rec and stores a copy under a freshly issued id. Any id or
// timestamps supplied by the caller are replaced. The record is returned even
// when the backend write fails.
func (e *Engine[T, PT]) Create(ctx context.Context, rec *T) (*T, error) {
	if rec == nil {
		return nil, errors.Validation(map[string]string{"body": "required"})
	}
	if err := e.opts.Validator.Validate(rec); err != nil {
		return nil, err
	}

	out := *rec
	now := model.NewTimestamp(e.opts.Now())
	PT(&out).AssignID(e.opts.Ledger.Issue(VerdictCreated))
	PT(&out).Stamp(now, now)

	cause := errMockMode
	if !e.opts.Mock {
		cause = e.insert(ctx, &out)
	}
	if cause != nil {
		e.fallback(query.ActionInsert, cause)
	}

	e.remember(out)
	e.publish(ctx, "created", out)
	return &out, nil
}

// insert writes rec and replaces it with the stored row when the backend
// echoes it back under the same id.
func (e *Engine[T, PT]) insert(ctx context.Context, rec *T) error {
	payload, err := e.payload(rec)
	if err != nil {
		return err
	}
	raw, err := e.source.Execute(ctx, &query.Descriptor{
		Entity:  e.schema.Entity,
		Table:   e.schema.Table,
		Action:  query.ActionInsert,
		Payload: payload,
	})
	if err != nil {
		return err
	}
	stored, err := decode[T](raw)
	if err != nil {
		return err
	}
	if PT(stored).EntityID() != PT(rec).EntityID() {
		return fmt.Errorf("%w: insert returned id %q", datasource.ErrMalformed, PT(stored).EntityID())
	}
	*rec = *stored
	return nil
}

// Update applies patch to the record and returns the merged result, or nil
// when the record does not exist.
func (e *Engine[T, PT]) Update(ctx context.Context, id string, patch model.JSONMap) (*T, error) {
	changes := patch.Without(append(append([]string(nil), serverFields...), e.schema.ReadOnly...)...)
	if err := checkPatch[T](changes); err != nil {
		return nil, err
	}
	if e.never(id) {
		return nil, nil
	}

	cause := errMockMode
	if !e.opts.Mock {
		raw, err := e.source.Execute(ctx, &query.Descriptor{
			Entity:  e.schema.Entity,
			Table:   e.schema.Table,
			Action:  query.ActionUpdate,
			ID:      id,
			Payload: changes,
		})
		if err == nil {
			if datasource.IsNull(raw) {
				return nil, nil
			}
			rec, derr := decode[T](raw)
			if derr == nil {
				e.refresh(*rec)
				e.publish(ctx, "updated", rec)
				return rec, nil
			}
			err = derr
		}
		cause = err
	}

	v := e.opts.Classifier.Classify(id, e.opts.Ledger)
	if !e.opts.Classifier.Exists(v) {
		return nil, nil
	}

	e.fallback(query.ActionUpdate, cause)
	rec, err := e.merge(id, changes)
	if err != nil {
		return nil, err
	}
	e.refresh(*rec)
	e.publish(ctx, "updated", rec)
	return rec, nil
}

// Delete removes the record and reports whether it existed.
func (e *Engine[T, PT]) Delete(ctx context.Context, id string) (bool, error) {
	if e.never(id) {
		return false, nil
	}

	cause := errMockMode
	if !e.opts.Mock {
		raw, err := e.source.Execute(ctx, &query.Descriptor{
			Entity: e.schema.Entity,
			Table:  e.schema.Table,
			Action: query.ActionDelete,
			ID:     id,
		})
		if err == nil {
			var deleted bool
			if derr := json.Unmarshal(raw, &deleted); derr == nil {
				if deleted {
					e.forget(ctx, id)
				}
				return deleted, nil
			}
			err = fmt.Errorf("%w: delete returned %s", datasource.ErrMalformed, string(raw))
		}
		cause = err
	}

	v := e.opts.Classifier.Classify(id, e.opts.Ledger)
	if !e.opts.Classifier.Exists(v) {
		return false, nil
	}

	e.fallback(query.ActionDelete, cause)
	e.forget(ctx, id)
	return true, nil
}

// never reports ids that cannot name a backend row: malformed ids and ids
// issued for fallback records. They are answered without a remote call.
func (e *Engine[T, PT]) never(id string) bool {
	switch e.opts.Classifier.Classify(id, e.opts.Ledger) {
	case VerdictMalformed, VerdictSynthetic:
		return true
	default:
		return false
	}
}

func (e *Engine[T, PT]) fallbackPage(cause error) *model.ListResult[T] {
	e.fallback(query.ActionList, cause)
	return Page(e.schema.Fallback(e.gen))
}

func (e *Engine[T, PT]) fallback(action query.Action, cause error) {
	e.opts.Metrics.Fallback(e.schema.Entity, string(action))

	ev := e.logger.Warn()
	if stderrors.Is(cause, errMockMode) {
		ev = e.logger.Debug()
	}
	ev.Err(cause).Str("action", string(action)).Msg("substituting local result")
}

func (e *Engine[T, PT]) remember(rec T) {
	e.mu.Lock()
	e.records[PT(&rec).EntityID()] = rec
	e.mu.Unlock()
}

// refresh replaces a remembered record. Records never created in this run
// are not remembered.
func (e *Engine[T, PT]) refresh(rec T) {
	id := PT(&rec).EntityID()
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.records[id]; ok {
		e.records[id] = rec
	}
}

func (e *Engine[T, PT]) recall(id string) (T, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rec, ok := e.records[id]
	return rec, ok
}

func (e *Engine[T, PT]) forget(ctx context.Context, id string) {
	e.mu.Lock()
	delete(e.records, id)
	e.mu.Unlock()

	e.opts.Ledger.Mark(id, VerdictDeleted)
	e.publish(ctx, "deleted", map[string]string{"id": id})
}

// merge overlays changes on the remembered record, or on an empty one.
func (e *Engine[T, PT]) merge(id string, changes model.JSONMap) (*T, error) {
	base, _ := e.recall(id)
	fields, err := toMap(&base)
	if err != nil {
		return nil, err
	}
	for k, v := range changes {
		fields[k] = v
	}

	b, err := json.Marshal(fields)
	if err != nil {
		return nil, patchError(err)
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, patchError(err)
	}
	PT(&out).AssignID(id)
	PT(&out).Stamp(nil, model.NewTimestamp(e.opts.Now()))
	return &out, nil
}

func (e *Engine[T, PT]) payload(rec *T) (map[string]interface{}, error) {
	fields, err := toMap(rec)
	if err != nil {
		return nil, err
	}
	return fields.Without(e.schema.ReadOnly...), nil
}

func (e *Engine[T, PT]) publish(ctx context.Context, op string, payload interface{}) {
	event := e.schema.Entity + "." + op
	if err := e.opts.Publisher.Publish(ctx, event, payload); err != nil {
		e.logger.Warn().Err(err).Str("event", event).Msg("failed to publish event")
	}
}

func toMap(v interface{}) (model.JSONMap, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	fields := model.JSONMap{}
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// checkPatch rejects patches whose values do not fit the record's fields.
func checkPatch[T any](changes model.JSONMap) error {
	b, err := json.Marshal(changes)
	if err != nil {
		return patchError(err)
	}
	var probe T
	if err := json.Unmarshal(b, &probe); err != nil {
		return patchError(err)
	}
	return nil
}

func patchError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if stderrors.As(err, &typeErr) && typeErr.Field != "" {
		return errors.Validation(map[string]string{typeErr.Field: "type"})
	}
	return errors.Validation(map[string]string{"body": "invalid"})
}

func decode[T any](raw json.RawMessage) (*T, error) {
	var rec T
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", datasource.ErrMalformed, err)
	}
	return &rec, nil
}

func decodeList[T any](raw json.RawMessage) (*model.ListResult[T], error) {
	var page struct {
		Data  *[]T `json:"data"`
		Count *int `json:"count"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("%w: %v", datasource.ErrMalformed, err)
	}
	if page.Data == nil {
		return nil, fmt.Errorf("%w: list response without data", datasource.ErrMalformed)
	}

	res := &model.ListResult[T]{Data: *page.Data, Count: len(*page.Data)}
	if res.Data == nil {
		res.Data = []T{}
	}
	if page.Count != nil {
		res.Count = *page.Count
	}
	return res, nil
}
