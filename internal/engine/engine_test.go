package engine

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Renzios/sharerapy-harness/internal/datasource"
	"github.com/Renzios/sharerapy-harness/internal/model"
	"github.com/Renzios/sharerapy-harness/internal/query"
	"github.com/Renzios/sharerapy-harness/pkg/errors"
	"github.com/Renzios/sharerapy-harness/pkg/metrics"
)

var fixedNow = time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) Publish(_ context.Context, eventType string, _ interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
	return nil
}

// stub answers every call with the same response and records descriptors.
type stub struct {
	raw   string
	err   error
	calls []*query.Descriptor
}

func (s *stub) Execute(_ context.Context, d *query.Descriptor) (json.RawMessage, error) {
	s.calls = append(s.calls, d)
	if s.err != nil {
		return nil, s.err
	}
	return json.RawMessage(s.raw), nil
}

func testSchema() Schema[model.Patient] {
	return Schema[model.Patient]{
		Entity: "patient",
		Table:  "patients",
		ListRelations: []query.Relation{
			{Name: "reports", Table: "reports", ForeignKey: "patient_id", Many: true, Children: []query.Relation{
				{Name: "type", Table: "types", ForeignKey: "type_id"},
			}},
		},
		Normalizer: query.Normalizer{
			Filters:       []query.FilterSpec{{Param: "country_id", Column: "country_id", Kind: query.KindInt}},
			SearchColumns: []string{"name"},
			OrderColumn:   "name",
		},
		Nested:   []func(*model.Patient) *[]model.Report{model.PatientReports},
		Fallback: FallbackPatient,
		ReadOnly: []string{"country", "reports", "age"},
	}
}

func newTestEngine(src datasource.Source, opts Options) *Engine[model.Patient, *model.Patient] {
	opts.Logger = zerolog.Nop()
	opts.Now = func() time.Time { return fixedNow }
	return New[model.Patient, *model.Patient](testSchema(), src, opts)
}

func TestListMockReturnsOneSyntheticRecord(t *testing.T) {
	e := newTestEngine(nil, Options{Mock: true})

	res, err := e.List(context.Background(), query.Params{"search": "John", "page": 0, "page_size": 20})
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, "John", res.Data[0].FirstName)

	got, err := e.Get(context.Background(), res.Data[0].ID)
	require.NoError(t, err)
	assert.Nil(t, got, "list-derived ids are never found")

	ok, err := e.Delete(context.Background(), res.Data[0].ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListBuildsDescriptorAndDedups(t *testing.T) {
	src := &stub{raw: `{"data":[{"id":"p1","first_name":"Ann","last_name":"Lee","reports":[
		{"id":"r1","type":{"type":"Assessment"}},
		{"id":"r2","type":{"type":"Assessment"}},
		{"id":"r3","type":null},
		{"id":"r4","type":{"type":"Progress Note"}}
	]}],"count":57}`}
	e := newTestEngine(src, Options{})

	res, err := e.List(context.Background(), query.Params{"search": " Ann ", "country_id": "3", "page": "2", "page_size": "10", "ascending": "false"})
	require.NoError(t, err)
	assert.Equal(t, 57, res.Count)
	require.Len(t, res.Data, 1)
	assert.Equal(t, []string{"r1", "r4"}, ids(res.Data[0].Reports))

	require.Len(t, src.calls, 1)
	d := src.calls[0]
	assert.Equal(t, query.ActionList, d.Action)
	assert.Equal(t, "patients", d.Table)
	assert.Equal(t, []query.Predicate{{Column: "country_id", Op: query.OpEq, Value: 3}}, d.Predicates)
	assert.Equal(t, &query.Search{Text: "Ann", Columns: []string{"name"}}, d.Search)
	assert.Equal(t, &query.Order{Column: "name", Ascending: false}, d.Order)
	assert.Equal(t, &query.Range{Start: 20, End: 29}, d.Range)
	assert.True(t, d.Count)
}

func TestListFallsBackOnFailure(t *testing.T) {
	cases := []struct {
		name string
		src  *stub
	}{
		{"unavailable", &stub{err: datasource.Unavailablef("connection refused")}},
		{"not json", &stub{raw: `oops`}},
		{"null", &stub{raw: `null`}},
		{"missing data", &stub{raw: `{"count":3}`}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEngine(tc.src, Options{})
			res, err := e.List(context.Background(), nil)
			require.NoError(t, err)
			require.Len(t, res.Data, 1)
			assert.Equal(t, 1, res.Count)
			assert.Len(t, tc.src.calls, 1, "no retries")
		})
	}
}

func TestListEmptyResultIsNotAFailure(t *testing.T) {
	e := newTestEngine(&stub{raw: `{"data":[],"count":0}`}, Options{})

	res, err := e.List(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Data)
	assert.NotNil(t, res.Data)
	assert.Equal(t, 0, res.Count)
}

func TestListCountDefaultsToRows(t *testing.T) {
	e := newTestEngine(&stub{raw: `{"data":[{"id":"a"},{"id":"b"}]}`}, Options{})

	res, err := e.List(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
}

func TestListCountsFallbacks(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry(), "test")
	e := newTestEngine(nil, Options{Mock: true, Metrics: m})

	_, _ = e.List(context.Background(), nil)
	_, _ = e.List(context.Background(), nil)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.Fallbacks.WithLabelValues("patient", "list")))
}

func TestGetRandomIDIsNotFound(t *testing.T) {
	e := newTestEngine(nil, Options{Mock: true})

	got, err := e.Get(context.Background(), "11111111-1111-1111-1111-111111111111")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetUnknownFoundReturnsFallbackWithID(t *testing.T) {
	c := DefaultClassifier()
	c.UnknownFound = true
	e := newTestEngine(nil, Options{Mock: true, Classifier: c})

	got, err := e.Get(context.Background(), "11111111-1111-1111-1111-111111111111")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", got.ID)
	assert.Equal(t, "John", got.FirstName)

	got, err = e.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetRemote(t *testing.T) {
	src := &stub{raw: `{"id":"p1","first_name":"Ann","last_name":"Lee","reports":[{"type":{"type":"A"}},{"type":{"type":"A"}}]}`}
	e := newTestEngine(src, Options{})

	got, err := e.Get(context.Background(), "p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Len(t, got.Reports, 2, "detail reads keep every report")
	assert.Equal(t, "p1", src.calls[0].ID)

	src.raw = `null`
	got, err = e.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetRemoteFailureUsesRememberedRecord(t *testing.T) {
	src := &stub{err: datasource.Unavailablef("down")}
	e := newTestEngine(src, Options{})

	created, err := e.Create(context.Background(), &model.Patient{FirstName: "Ann", LastName: "Lee"})
	require.NoError(t, err)

	got, err := e.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Ann", got.FirstName)

	got, err = e.Get(context.Background(), "11111111-1111-1111-1111-111111111111")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCreateValidates(t *testing.T) {
	e := newTestEngine(nil, Options{Mock: true})

	_, err := e.Create(context.Background(), &model.Patient{FirstName: "Ann"})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	_, err = e.Create(context.Background(), nil)
	assert.True(t, errors.IsValidation(err))
}

func TestCreateAssignsFreshIDs(t *testing.T) {
	pub := &recorder{}
	e := newTestEngine(nil, Options{Mock: true, Publisher: pub})

	in := &model.Patient{Base: model.Base{ID: "client-id"}, FirstName: "Ann", LastName: "Lee"}
	seen := make(map[string]bool)
	for i := 0; i < 25; i++ {
		out, err := e.Create(context.Background(), in)
		require.NoError(t, err)
		assert.NotEqual(t, "client-id", out.ID)
		assert.False(t, seen[out.ID])
		seen[out.ID] = true
		require.NotNil(t, out.CreatedAt)
		assert.True(t, out.CreatedAt.Equal(fixedNow))
	}
	assert.Equal(t, "client-id", in.ID, "input is not modified")
	assert.Len(t, pub.events, 25)
	assert.Equal(t, "patient.created", pub.events[0])
}

func TestCreateRemote(t *testing.T) {
	src := &stub{}
	e := newTestEngine(src, Options{})
	country := 1

	src.err = datasource.Unavailablef("down")
	out, err := e.Create(context.Background(), &model.Patient{
		FirstName: "Ann",
		LastName:  "Lee",
		CountryID: &country,
		Country:   &model.Country{ID: 1, Country: "Chile"},
	})
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.NotEmpty(t, out.ID)

	payload := src.calls[0].Payload
	assert.Equal(t, query.ActionInsert, src.calls[0].Action)
	assert.Equal(t, out.ID, payload["id"])
	assert.Equal(t, "Ann", payload["first_name"])
	assert.Equal(t, json.Number("1"), payload["country_id"])
	assert.NotContains(t, payload, "country")
	assert.NotContains(t, payload, "reports")
}

func TestCreateRemoteUsesStoredRow(t *testing.T) {
	src := datasource.SourceFunc(func(_ context.Context, d *query.Descriptor) (json.RawMessage, error) {
		row := map[string]interface{}{}
		for k, v := range d.Payload {
			row[k] = v
		}
		row["contact_number"] = "from-db"
		return json.Marshal(row)
	})
	e := newTestEngine(src, Options{})

	out, err := e.Create(context.Background(), &model.Patient{FirstName: "Ann", LastName: "Lee"})
	require.NoError(t, err)
	assert.Equal(t, "from-db", out.ContactNumber)
}

func TestUpdateAndDeleteShortCircuitMalformedIDs(t *testing.T) {
	e := newTestEngine(nil, Options{Mock: true})
	long := strings.Repeat("x", 37)

	for _, id := range []string{"missing", long, ""} {
		got, err := e.Update(context.Background(), id, model.JSONMap{"first_name": "x"})
		require.NoError(t, err)
		assert.Nil(t, got, id)

		ok, err := e.Delete(context.Background(), id)
		require.NoError(t, err)
		assert.False(t, ok, id)
	}
}

func TestUpdateMergesRememberedRecord(t *testing.T) {
	e := newTestEngine(nil, Options{Mock: true})

	created, err := e.Create(context.Background(), &model.Patient{FirstName: "Ann", LastName: "Lee", ContactNumber: "123"})
	require.NoError(t, err)

	updated, err := e.Update(context.Background(), created.ID, model.JSONMap{"last_name": "Roe", "id": "hijack"})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Ann", updated.FirstName)
	assert.Equal(t, "Roe", updated.LastName)
	assert.Equal(t, "123", updated.ContactNumber)
	require.NotNil(t, updated.UpdatedAt)

	got, err := e.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Roe", got.LastName)
}

func TestUpdateUnknownIDMergesIntoEmptyRecord(t *testing.T) {
	e := newTestEngine(nil, Options{Mock: true})
	id := "11111111-1111-1111-1111-111111111111"

	updated, err := e.Update(context.Background(), id, model.JSONMap{"first_name": "x"})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, id, updated.ID)
	assert.Equal(t, "x", updated.FirstName)
}

func TestUpdateRejectsMistypedPatch(t *testing.T) {
	e := newTestEngine(nil, Options{Mock: true})

	_, err := e.Update(context.Background(), "p1", model.JSONMap{"first_name": 5})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestUpdateRemote(t *testing.T) {
	src := &stub{raw: `{"id":"p1","first_name":"Ann","last_name":"Roe"}`}
	e := newTestEngine(src, Options{})

	got, err := e.Update(context.Background(), "p1", model.JSONMap{"last_name": "Roe", "country": map[string]interface{}{"id": 1}})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Roe", got.LastName)
	assert.Equal(t, map[string]interface{}{"last_name": "Roe"}, src.calls[0].Payload)

	src.raw = `null`
	got, err = e.Update(context.Background(), "p1", model.JSONMap{"last_name": "Roe"})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteTwice(t *testing.T) {
	pub := &recorder{}
	e := newTestEngine(nil, Options{Mock: true, Publisher: pub})

	created, err := e.Create(context.Background(), &model.Patient{FirstName: "Ann", LastName: "Lee"})
	require.NoError(t, err)

	ok, err := e.Delete(context.Background(), created.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Delete(context.Background(), created.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := e.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, []string{"patient.created", "patient.deleted"}, pub.events)
}

func TestDeleteRemote(t *testing.T) {
	src := &stub{raw: `false`}
	e := newTestEngine(src, Options{})

	ok, err := e.Delete(context.Background(), "p1")
	require.NoError(t, err)
	assert.False(t, ok)

	src.raw = `true`
	ok, err = e.Delete(context.Background(), "p1")
	require.NoError(t, err)
	assert.True(t, ok)

	src.err = datasource.Unavailablef("down")
	ok, err = e.Delete(context.Background(), "11111111-1111-1111-1111-111111111111")
	require.NoError(t, err)
	assert.True(t, ok, "plausible ids are assumed deleted when the backend is down")
}

func TestEnginesShareLedger(t *testing.T) {
	ledger := NewLedger()
	a := newTestEngine(nil, Options{Mock: true, Ledger: ledger})
	b := newTestEngine(nil, Options{Mock: true, Ledger: ledger})

	created, err := a.Create(context.Background(), &model.Patient{FirstName: "Ann", LastName: "Lee"})
	require.NoError(t, err)

	ok, err := b.Delete(context.Background(), created.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := a.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Nil(t, got, "deletion through one engine is visible to every engine of the run")

	v, _ := ledger.Verdict(created.ID)
	assert.Equal(t, VerdictDeleted, v)
}

func TestRemoteSkipsIDsThatCannotExist(t *testing.T) {
	ledger := NewLedger()
	synthetic := ledger.Issue(VerdictSynthetic)
	src := &stub{raw: `{"id":"p1","first_name":"Ann","last_name":"Lee"}`}
	e := newTestEngine(src, Options{Ledger: ledger})

	for _, id := range []string{"missing", strings.Repeat("x", 37), "", synthetic} {
		got, err := e.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Nil(t, got, id)

		updated, err := e.Update(context.Background(), id, model.JSONMap{"first_name": "x"})
		require.NoError(t, err)
		assert.Nil(t, updated, id)

		src.raw = `true`
		ok, err := e.Delete(context.Background(), id)
		require.NoError(t, err)
		assert.False(t, ok, id)
		src.raw = `{"id":"p1","first_name":"Ann","last_name":"Lee"}`
	}
	assert.Empty(t, src.calls)

	got, err := e.Get(context.Background(), "p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Len(t, src.calls, 1)
}
