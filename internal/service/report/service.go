package report

import (
	"context"
	"fmt"
	"time"

	"github.com/Renzios/sharerapy-harness/internal/datasource"
	"github.com/Renzios/sharerapy-harness/internal/engine"
	"github.com/Renzios/sharerapy-harness/internal/model"
	"github.com/Renzios/sharerapy-harness/internal/query"
	"github.com/Renzios/sharerapy-harness/internal/service"
)

type ReportService interface {
	ListReports(ctx context.Context, params query.Params) (*model.ListResult[model.Report], error)
	GetReport(ctx context.Context, id string) (*model.Report, error)
	CreateReport(ctx context.Context, report *model.Report) (*model.Report, error)
	UpdateReport(ctx context.Context, id string, patch model.JSONMap) (*model.Report, error)
	DeleteReport(ctx context.Context, id string) (bool, error)
}

// OrderColumns are the columns a caller may sort reports by.
var OrderColumns = []string{"title", "created_at", "updated_at"}

func Schema() engine.Schema[model.Report] {
	relations := []query.Relation{
		{Name: "therapist", Table: "therapists", ForeignKey: "therapist_id", Children: []query.Relation{service.ClinicRelation}},
		service.TypeRelation,
		service.LanguageRelation,
		{Name: "patient", Table: "patients", ForeignKey: "patient_id", Children: []query.Relation{service.CountryRelation}},
	}

	return engine.Schema[model.Report]{
		Entity:          "report",
		Table:           "reports",
		ListRelations:   relations,
		DetailRelations: relations,
		Normalizer: query.Normalizer{
			Filters: []query.FilterSpec{
				{Param: "type_id", Column: "type_id", Kind: query.KindInt},
				{Param: "type_ids", Column: "type_id", Kind: query.KindIntList},
				{Param: "language_id", Column: "language_id", Kind: query.KindInt},
				{Param: "patient_id", Column: "patient_id", Kind: query.KindText},
				{Param: "therapist_id", Column: "therapist_id", Kind: query.KindText},
				{Param: "clinic_id", Column: "clinic_id", Relation: "therapist", Kind: query.KindInt},
				{Param: "country_id", Column: "country_id", Relation: "therapist.clinic", Kind: query.KindInt},
				{Param: "start_date", Column: "created_at", Kind: query.KindDateFrom},
				{Param: "end_date", Column: "created_at", Kind: query.KindDateTo},
			},
			SearchColumns: []string{"title", "description"},
			OrderColumn:   "title",
			OrderColumns:  OrderColumns,
		},
		Fallback: engine.FallbackReport,
		ReadOnly: []string{"type", "language", "patient", "therapist"},
	}
}

type Service struct {
	engine *engine.Engine[model.Report, *model.Report]
	now    func() time.Time
}

func NewService(source datasource.Source, opts engine.Options) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		engine: engine.New[model.Report, *model.Report](Schema(), source, opts),
		now:    now,
	}
}

func (s *Service) ListReports(ctx context.Context, params query.Params) (*model.ListResult[model.Report], error) {
	return s.engine.List(ctx, params)
}

// GetReport returns the report with its patient's age filled in when the
// patient has a birthdate.
func (s *Service) GetReport(ctx context.Context, id string) (*model.Report, error) {
	r, err := s.engine.Get(ctx, id)
	if err != nil || r == nil {
		return r, err
	}
	if r.Patient != nil && r.Patient.Birthdate != "" {
		if age, ok := model.AgeAt(r.Patient.Birthdate, s.now()); ok {
			p := *r.Patient
			p.Age = age
			r.Patient = &p
		}
	}
	return r, nil
}

func (s *Service) CreateReport(ctx context.Context, report *model.Report) (*model.Report, error) {
	created, err := s.engine.Create(ctx, report)
	if err != nil {
		return nil, fmt.Errorf("invalid report data: %w", err)
	}
	return created, nil
}

func (s *Service) UpdateReport(ctx context.Context, id string, patch model.JSONMap) (*model.Report, error) {
	updated, err := s.engine.Update(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("invalid report data: %w", err)
	}
	return updated, nil
}

func (s *Service) DeleteReport(ctx context.Context, id string) (bool, error) {
	return s.engine.Delete(ctx, id)
}
