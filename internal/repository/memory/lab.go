package memory

import (
	"context"
	"time"

	"github.com/jwalitptl/hms/internal/model"
	"github.com/jwalitptl/hms/internal/repository"
	"github.com/jwalitptl/hms/pkg/errors"
)

type labRepository struct {
	records *table[model.LabRecord]
}

func NewLabRepository() repository.LabRepository {
	return &labRepository{records: newTable[model.LabRecord]()}
}

func (r *labRepository) Create(ctx context.Context, rec *model.LabRecord) error {
	stamp(&rec.Base, time.Now().UTC())
	r.records.put(rec.ID, cloneLab(*rec))
	return nil
}

func (r *labRepository) Get(ctx context.Context, id string) (*model.LabRecord, error) {
	rec, ok := r.records.get(id)
	if !ok {
		return nil, errors.NotFound("lab record", nil)
	}
	rec = cloneLab(rec)
	return &rec, nil
}

func (r *labRepository) Update(ctx context.Context, rec *model.LabRecord) error {
	existing, ok := r.records.get(rec.ID)
	if !ok {
		return errors.NotFound("lab record", nil)
	}
	rec.CreatedAt = existing.CreatedAt
	rec.UpdatedAt = time.Now().UTC()
	r.records.put(rec.ID, cloneLab(*rec))
	return nil
}

func (r *labRepository) Delete(ctx context.Context, id string) error {
	if !r.records.remove(id) {
		return errors.NotFound("lab record", nil)
	}
	return nil
}

func (r *labRepository) List(ctx context.Context, q model.ListQuery) ([]*model.LabRecord, int, error) {
	matches := r.records.snapshot(func(rec model.LabRecord) bool {
		return matchRecord(q, rec.DateKey(), string(rec.Status), string(rec.Priority), rec.Category,
			rec.PatientName, rec.PatientUniqueID, rec.DoctorName, rec.TestName, rec.Diagnosis)
	}, func(rec model.LabRecord) time.Time { return rec.CreatedAt })

	page, total := paginate(matches, q)
	out := make([]*model.LabRecord, len(page))
	for i := range page {
		rec := cloneLab(page[i])
		out[i] = &rec
	}
	return out, total, nil
}

func cloneLab(rec model.LabRecord) model.LabRecord {
	rec.Parameters = append(model.Parameters(nil), rec.Parameters...)
	return rec
}
