package therapist

import (
	"context"
	"fmt"

	"github.com/Renzios/sharerapy-harness/internal/datasource"
	"github.com/Renzios/sharerapy-harness/internal/engine"
	"github.com/Renzios/sharerapy-harness/internal/model"
	"github.com/Renzios/sharerapy-harness/internal/query"
	"github.com/Renzios/sharerapy-harness/internal/service"
)

type TherapistService interface {
	ListTherapists(ctx context.Context, params query.Params) (*model.ListResult[model.Therapist], error)
	GetTherapist(ctx context.Context, id string) (*model.Therapist, error)
	CreateTherapist(ctx context.Context, therapist *model.Therapist) (*model.Therapist, error)
	UpdateTherapist(ctx context.Context, id string, patch model.JSONMap) (*model.Therapist, error)
	DeleteTherapist(ctx context.Context, id string) (bool, error)
}

func Schema() engine.Schema[model.Therapist] {
	return engine.Schema[model.Therapist]{
		Entity: "therapist",
		Table:  "therapists",
		ListRelations: []query.Relation{
			service.ClinicRelation,
			service.ReportTypes("therapist_id"),
		},
		DetailRelations: []query.Relation{
			service.ClinicRelation,
			service.Reports("therapist_id",
				service.TypeRelation,
				service.LanguageRelation,
				query.Relation{Name: "patient", Table: "patients", ForeignKey: "patient_id", Children: []query.Relation{service.CountryRelation}},
			),
		},
		Normalizer: query.Normalizer{
			Filters: []query.FilterSpec{
				{Param: "specialization", Column: "specialization", Kind: query.KindText},
				{Param: "clinic_id", Column: "clinic_id", Kind: query.KindInt},
				{Param: "country_id", Column: "country_id", Relation: "clinic", Kind: query.KindInt},
			},
			SearchColumns: []string{"name"},
			OrderColumn:   "name",
		},
		Nested:   []func(*model.Therapist) *[]model.Report{model.TherapistReports},
		Fallback: engine.FallbackTherapist,
		ReadOnly: []string{"name", "clinic", "reports"},
	}
}

type Service struct {
	engine *engine.Engine[model.Therapist, *model.Therapist]
}

func NewService(source datasource.Source, opts engine.Options) *Service {
	return &Service{
		engine: engine.New[model.Therapist, *model.Therapist](Schema(), source, opts),
	}
}

func (s *Service) ListTherapists(ctx context.Context, params query.Params) (*model.ListResult[model.Therapist], error) {
	return s.engine.List(ctx, params)
}

func (s *Service) GetTherapist(ctx context.Context, id string) (*model.Therapist, error) {
	return s.engine.Get(ctx, id)
}

func (s *Service) CreateTherapist(ctx context.Context, therapist *model.Therapist) (*model.Therapist, error) {
	created, err := s.engine.Create(ctx, therapist)
	if err != nil {
		return nil, fmt.Errorf("invalid therapist data: %w", err)
	}
	return created, nil
}

func (s *Service) UpdateTherapist(ctx context.Context, id string, patch model.JSONMap) (*model.Therapist, error) {
	updated, err := s.engine.Update(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("invalid therapist data: %w", err)
	}
	return updated, nil
}

func (s *Service) DeleteTherapist(ctx context.Context, id string) (bool, error) {
	return s.engine.Delete(ctx, id)
}
