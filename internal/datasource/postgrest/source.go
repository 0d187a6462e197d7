package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Renzios/sharerapy-harness/internal/datasource"
	"github.com/Renzios/sharerapy-harness/internal/query"
)

const maxErrorBody = 4 << 10

type Config struct {
	URL    string
	APIKey string
}

// Source talks to a PostgREST backend with a GoTrue auth endpoint, the
// layout exposed by a Supabase project.
type Source struct {
	base   *url.URL
	apiKey string
	client *http.Client
}

func NewSource(cfg Config, client *http.Client) (*Source, error) {
	if cfg.URL == "" || cfg.APIKey == "" {
		return nil, fmt.Errorf("postgrest: url and api key are required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("postgrest: invalid url: %w", err)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Source{base: base, apiKey: cfg.APIKey, client: client}, nil
}

func (s *Source) Execute(ctx context.Context, d *query.Descriptor) (json.RawMessage, error) {
	switch d.Action {
	case query.ActionList:
		return s.list(ctx, d)
	case query.ActionGet:
		return s.get(ctx, d)
	case query.ActionInsert:
		return s.insert(ctx, d)
	case query.ActionUpdate:
		return s.update(ctx, d)
	case query.ActionDelete:
		return s.delete(ctx, d)
	case query.ActionSignup:
		return s.signup(ctx, d)
	case query.ActionLogin:
		return s.login(ctx, d)
	default:
		return nil, fmt.Errorf("%w: %s", datasource.ErrUnsupported, d.Action)
	}
}

// Ping checks that the REST root answers.
func (s *Source) Ping(ctx context.Context) error {
	_, _, err := s.do(ctx, http.MethodGet, "/rest/v1/", nil, nil, nil)
	return err
}

func (s *Source) list(ctx context.Context, d *query.Descriptor) (json.RawMessage, error) {
	q, err := listValues(d)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", datasource.ErrUnsupported, err)
	}
	header := http.Header{}
	if d.Count {
		header.Set("Prefer", "count=exact")
	}

	body, resp, err := s.do(ctx, http.MethodGet, "/rest/v1/"+d.Table, q, header, nil)
	if err != nil {
		return nil, err
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", datasource.ErrMalformed, d.Table, err)
	}
	if rows == nil {
		rows = []json.RawMessage{}
	}

	count, ok := totalCount(resp.Header.Get("Content-Range"))
	if !ok {
		count = len(rows)
	}
	return json.Marshal(map[string]interface{}{"data": rows, "count": count})
}

func (s *Source) get(ctx context.Context, d *query.Descriptor) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("select", selectClause(d.Columns, d.Relations, nil, ""))
	q.Set("id", "eq."+d.ID)
	q.Set("limit", "1")

	body, _, err := s.do(ctx, http.MethodGet, "/rest/v1/"+d.Table, q, nil, nil)
	if err != nil {
		return nil, err
	}
	return first(body, d, true)
}

func (s *Source) insert(ctx context.Context, d *query.Descriptor) (json.RawMessage, error) {
	header := http.Header{"Prefer": []string{"return=representation"}}
	body, _, err := s.do(ctx, http.MethodPost, "/rest/v1/"+d.Table, nil, header, d.Payload)
	if err != nil {
		return nil, err
	}
	return first(body, d, false)
}

func (s *Source) update(ctx context.Context, d *query.Descriptor) (json.RawMessage, error) {
	if len(d.Payload) == 0 {
		return s.get(ctx, &query.Descriptor{Entity: d.Entity, Table: d.Table, Action: query.ActionGet, ID: d.ID})
	}
	q := url.Values{"id": []string{"eq." + d.ID}}
	header := http.Header{"Prefer": []string{"return=representation"}}
	body, _, err := s.do(ctx, http.MethodPatch, "/rest/v1/"+d.Table, q, header, d.Payload)
	if err != nil {
		return nil, err
	}
	return first(body, d, true)
}

func (s *Source) delete(ctx context.Context, d *query.Descriptor) (json.RawMessage, error) {
	q := url.Values{"id": []string{"eq." + d.ID}}
	header := http.Header{"Prefer": []string{"return=representation"}}
	body, _, err := s.do(ctx, http.MethodDelete, "/rest/v1/"+d.Table, q, header, nil)
	if err != nil {
		return nil, err
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("%w: delete %s: %v", datasource.ErrMalformed, d.Table, err)
	}
	return json.RawMessage(fmt.Sprint(len(rows) > 0)), nil
}

func (s *Source) signup(ctx context.Context, d *query.Descriptor) (json.RawMessage, error) {
	payload := map[string]interface{}{
		"email":    d.Payload["email"],
		"password": d.Payload["password"],
		"data": map[string]interface{}{
			"first_name": d.Payload["first_name"],
			"last_name":  d.Payload["last_name"],
		},
	}
	body, _, err := s.do(ctx, http.MethodPost, "/auth/v1/signup", nil, nil, payload)
	if err != nil {
		return nil, err
	}

	// Depending on e-mail confirmation settings the user is returned either
	// bare or inside a session.
	var envelope struct {
		User json.RawMessage `json:"user"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: signup: %v", datasource.ErrMalformed, err)
	}
	if len(envelope.User) > 0 && !datasource.IsNull(envelope.User) {
		return envelope.User, nil
	}
	return datasource.CheckJSON(body)
}

func (s *Source) login(ctx context.Context, d *query.Descriptor) (json.RawMessage, error) {
	payload := map[string]interface{}{
		"email":    d.Payload["email"],
		"password": d.Payload["password"],
	}
	q := url.Values{"grant_type": []string{"password"}}

	body, resp, err := s.do(ctx, http.MethodPost, "/auth/v1/token", q, nil, payload)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized) {
			return json.RawMessage("null"), nil
		}
		return nil, err
	}

	var session struct {
		AccessToken string `json:"access_token"`
		User        struct {
			Email string `json:"email"`
		} `json:"user"`
	}
	if err := json.Unmarshal(body, &session); err != nil || session.AccessToken == "" {
		return nil, fmt.Errorf("%w: login response without access token", datasource.ErrMalformed)
	}
	return json.Marshal(map[string]string{"email": session.User.Email, "access_token": session.AccessToken})
}

// do sends one request. Non-2xx responses are returned as ErrUnavailable
// together with the response so callers can inspect the status.
func (s *Source) do(ctx context.Context, method, path string, q url.Values, header http.Header, payload interface{}) ([]byte, *http.Response, error) {
	u := *s.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if q != nil {
		u.RawQuery = q.Encode()
	}

	var reader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: encode payload: %v", datasource.ErrUnsupported, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", datasource.ErrUnsupported, err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, datasource.Unavailablef("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp, datasource.Unavailablef("%s %s: read body: %v", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, resp, datasource.Unavailablef("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, resp, nil
}

// first returns the first row of an array response. An empty array is null
// when allowNull is set and malformed otherwise.
func first(body []byte, d *query.Descriptor, allowNull bool) (json.RawMessage, error) {
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", datasource.ErrMalformed, d.Action, d.Table, err)
	}
	if len(rows) == 0 {
		if allowNull {
			return json.RawMessage("null"), nil
		}
		return nil, fmt.Errorf("%w: %s %s returned no rows", datasource.ErrMalformed, d.Action, d.Table)
	}
	return rows[0], nil
}
