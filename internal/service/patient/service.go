package patient

import (
	"context"
	"fmt"

	"github.com/Renzios/sharerapy-harness/internal/datasource"
	"github.com/Renzios/sharerapy-harness/internal/engine"
	"github.com/Renzios/sharerapy-harness/internal/model"
	"github.com/Renzios/sharerapy-harness/internal/query"
	"github.com/Renzios/sharerapy-harness/internal/service"
)

type PatientService interface {
	ListPatients(ctx context.Context, params query.Params) (*model.ListResult[model.Patient], error)
	GetPatient(ctx context.Context, id string) (*model.Patient, error)
	CreatePatient(ctx context.Context, patient *model.Patient) (*model.Patient, error)
	UpdatePatient(ctx context.Context, id string, patch model.JSONMap) (*model.Patient, error)
	DeletePatient(ctx context.Context, id string) (bool, error)
}

// Schema describes the patients table and its projections.
func Schema() engine.Schema[model.Patient] {
	return engine.Schema[model.Patient]{
		Entity: "patient",
		Table:  "patients",
		ListRelations: []query.Relation{
			service.CountryRelation,
			service.ReportTypes("patient_id"),
		},
		DetailRelations: []query.Relation{
			service.CountryRelation,
			service.Reports("patient_id",
				query.Relation{Name: "therapist", Table: "therapists", ForeignKey: "therapist_id", Children: []query.Relation{service.ClinicRelation}},
				service.TypeRelation,
				service.LanguageRelation,
			),
		},
		Normalizer: query.Normalizer{
			Filters: []query.FilterSpec{
				{Param: "country_id", Column: "country_id", Kind: query.KindInt},
				{Param: "sex", Column: "sex", Kind: query.KindText},
			},
			SearchColumns: []string{"name"},
			OrderColumn:   "name",
		},
		Nested:   []func(*model.Patient) *[]model.Report{model.PatientReports},
		Fallback: engine.FallbackPatient,
		ReadOnly: []string{"name", "country", "reports", "age"},
	}
}

type Service struct {
	engine *engine.Engine[model.Patient, *model.Patient]
}

func NewService(source datasource.Source, opts engine.Options) *Service {
	return &Service{
		engine: engine.New[model.Patient, *model.Patient](Schema(), source, opts),
	}
}

// ListPatients accepts search, country_id, sex, ascending and either
// page/page_size or offset/limit.
func (s *Service) ListPatients(ctx context.Context, params query.Params) (*model.ListResult[model.Patient], error) {
	return s.engine.List(ctx, params)
}

func (s *Service) GetPatient(ctx context.Context, id string) (*model.Patient, error) {
	return s.engine.Get(ctx, id)
}

func (s *Service) CreatePatient(ctx context.Context, patient *model.Patient) (*model.Patient, error) {
	created, err := s.engine.Create(ctx, patient)
	if err != nil {
		return nil, fmt.Errorf("invalid patient data: %w", err)
	}
	return created, nil
}

func (s *Service) UpdatePatient(ctx context.Context, id string, patch model.JSONMap) (*model.Patient, error) {
	updated, err := s.engine.Update(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("invalid patient data: %w", err)
	}
	return updated, nil
}

func (s *Service) DeletePatient(ctx context.Context, id string) (bool, error) {
	return s.engine.Delete(ctx, id)
}
