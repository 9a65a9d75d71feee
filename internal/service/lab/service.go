package lab

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/hms/internal/model"
	"github.com/jwalitptl/hms/internal/repository"
	"github.com/jwalitptl/hms/pkg/errors"
	"github.com/jwalitptl/hms/pkg/metrics"
	"github.com/jwalitptl/hms/pkg/validator"
)

const kind = "lab"

type Service struct {
	repo     repository.LabRepository
	users    repository.UserRepository
	validate validator.Validator
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

func NewService(repo repository.LabRepository, users repository.UserRepository, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		users:    users,
		validate: validator.New(),
		metrics:  m,
		logger:   logger,
	}
}

// Create stores a lab record for a registered patient. Patient identity
// fields are taken from the patient's account.
func (s *Service) Create(ctx context.Context, draft *model.LabDraft) (*model.LabRecord, error) {
	if err := s.validate.Validate(draft); err != nil {
		return nil, err
	}

	patient, err := s.users.GetByUniqueID(ctx, draft.PatientUniqueID)
	if errors.IsNotFound(err) || (err == nil && patient.Role != model.RolePatient) {
		return nil, errors.NotFound("Patient", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find patient: %w", err)
	}
	draft.ForPatient(patient)

	rec := draft.Record()
	if err := s.repo.Create(ctx, &rec); err != nil {
		return nil, fmt.Errorf("failed to create lab record: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordsCreated.WithLabelValues(kind).Inc()
	}
	s.logger.Info().Str("record_id", rec.ID).Str("patient", rec.PatientUniqueID).Msg("lab record created")
	return &rec, nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.LabRecord, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get lab record: %w", err)
	}
	return rec, nil
}

func (s *Service) List(ctx context.Context, q model.ListQuery) (model.Page[model.LabRecord], error) {
	q = q.Normalize()
	recs, total, err := s.repo.List(ctx, q)
	if err != nil {
		return model.Page[model.LabRecord]{}, fmt.Errorf("failed to list lab records: %w", err)
	}

	page := model.Page[model.LabRecord]{
		Records:    make([]model.LabRecord, len(recs)),
		Pagination: model.NewPagination(q.Page, q.Limit, total),
	}
	for i, r := range recs {
		page.Records[i] = *r
	}
	return page, nil
}

func (s *Service) Update(ctx context.Context, id string, upd *model.LabUpdate) (*model.LabRecord, error) {
	if err := s.validate.Validate(upd); err != nil {
		return nil, err
	}

	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get lab record: %w", err)
	}
	upd.Apply(rec)
	for i := range rec.Parameters {
		if rec.Parameters[i].Flag == "" {
			rec.Parameters[i].Flag = model.FlagNormal
		}
	}

	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to update lab record: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordsUpdated.WithLabelValues(kind).Inc()
	}
	return rec, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete lab record: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordsDeleted.WithLabelValues(kind).Inc()
	}
	return nil
}
