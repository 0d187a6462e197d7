package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/Renzios/sharerapy-harness/internal/datasource"
	"github.com/Renzios/sharerapy-harness/internal/engine"
	"github.com/Renzios/sharerapy-harness/internal/model"
	"github.com/Renzios/sharerapy-harness/internal/query"
	"github.com/Renzios/sharerapy-harness/internal/service"
	"github.com/Renzios/sharerapy-harness/pkg/logger"
	"github.com/Renzios/sharerapy-harness/pkg/metrics"
)

const DefaultTTL = 5 * time.Minute

type LookupService interface {
	Countries(ctx context.Context) ([]model.Country, error)
	Clinics(ctx context.Context, countryID int) ([]model.Clinic, error)
	Languages(ctx context.Context) ([]model.Language, error)
	ReportTypes(ctx context.Context) ([]model.ReportType, error)
}

// Service reads the reference tables. Successful remote reads are cached;
// failures are answered from the static fallback lists and never cached.
type Service struct {
	source  datasource.Source
	mock    bool
	cache   *cache.Cache
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewService(source datasource.Source, opts engine.Options, ttl time.Duration) *Service {
	if source == nil {
		source = datasource.Unavailable()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		source:  source,
		mock:    opts.Mock,
		cache:   cache.New(ttl, 2*ttl),
		metrics: opts.Metrics,
		logger:  logger.Component(opts.Logger, "lookup"),
	}
}

func (s *Service) Countries(ctx context.Context) ([]model.Country, error) {
	return read(ctx, s, "countries", "country", nil, nil, engine.FallbackCountries)
}

// Clinics lists clinics with their country. A positive countryID restricts
// the list to that country.
func (s *Service) Clinics(ctx context.Context, countryID int) ([]model.Clinic, error) {
	key := "clinics"
	var predicates []query.Predicate
	if countryID > 0 {
		key += ":" + strconv.Itoa(countryID)
		predicates = []query.Predicate{{Column: "country_id", Op: query.OpEq, Value: countryID}}
	}

	fallback := func() []model.Clinic {
		clinics := engine.FallbackClinics()
		countries := engine.FallbackCountries()
		out := make([]model.Clinic, 0, len(clinics))
		for _, c := range clinics {
			if countryID > 0 && c.CountryID != countryID {
				continue
			}
			for i := range countries {
				if countries[i].ID == c.CountryID {
					c.Country = &countries[i]
				}
			}
			out = append(out, c)
		}
		return out
	}

	clinics, err := readKey(ctx, s, key, "clinics", "clinic", []query.Relation{service.CountryRelation}, predicates, fallback)
	if err != nil {
		return nil, err
	}
	// Countries are pointers shared with the cached slice.
	for i := range clinics {
		if c := clinics[i].Country; c != nil {
			country := *c
			clinics[i].Country = &country
		}
	}
	return clinics, nil
}

func (s *Service) Languages(ctx context.Context) ([]model.Language, error) {
	return read(ctx, s, "languages", "language", nil, nil, engine.FallbackLanguages)
}

func (s *Service) ReportTypes(ctx context.Context) ([]model.ReportType, error) {
	return read(ctx, s, "types", "type", nil, nil, engine.FallbackReportTypes)
}

// Flush drops every cached list.
func (s *Service) Flush() {
	s.cache.Flush()
}

func read[T any](ctx context.Context, s *Service, table, order string, relations []query.Relation, predicates []query.Predicate, fallback func() []T) ([]T, error) {
	return readKey(ctx, s, table, table, order, relations, predicates, fallback)
}

func readKey[T any](ctx context.Context, s *Service, key, table, order string, relations []query.Relation, predicates []query.Predicate, fallback func() []T) ([]T, error) {
	if cached, found := s.cache.Get(key); found {
		return clone(cached.([]T)), nil
	}

	if s.mock {
		s.metrics.Fallback(table, string(query.ActionList))
		return fallback(), nil
	}

	rows, err := fetch[T](ctx, s.source, &query.Descriptor{
		Entity:     table,
		Table:      table,
		Action:     query.ActionList,
		Relations:  relations,
		Predicates: predicates,
		Order:      &query.Order{Column: order, Ascending: true},
	})
	if err != nil {
		s.metrics.Fallback(table, string(query.ActionList))
		s.logger.Warn().Err(err).Str("table", table).Msg("substituting static lookup list")
		return fallback(), nil
	}

	s.cache.Set(key, rows, cache.DefaultExpiration)
	return clone(rows), nil
}

func clone[T any](rows []T) []T {
	out := make([]T, len(rows))
	copy(out, rows)
	return out
}

func fetch[T any](ctx context.Context, source datasource.Source, d *query.Descriptor) ([]T, error) {
	raw, err := source.Execute(ctx, d)
	if err != nil {
		return nil, err
	}

	var page struct {
		Data *[]T `json:"data"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("%w: %v", datasource.ErrMalformed, err)
	}
	if page.Data == nil {
		return nil, fmt.Errorf("%w: list response without data", datasource.ErrMalformed)
	}
	if *page.Data == nil {
		return []T{}, nil
	}
	return *page.Data, nil
}
