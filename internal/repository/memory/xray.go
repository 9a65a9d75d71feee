package memory

import (
	"context"
	"time"

	"github.com/jwalitptl/hms/internal/model"
	"github.com/jwalitptl/hms/internal/repository"
	"github.com/jwalitptl/hms/pkg/errors"
)

type xrayRepository struct {
	records *table[model.XrayRecord]
}

func NewXrayRepository() repository.XrayRepository {
	return &xrayRepository{records: newTable[model.XrayRecord]()}
}

func (r *xrayRepository) Create(ctx context.Context, rec *model.XrayRecord) error {
	stamp(&rec.Base, time.Now().UTC())
	r.records.put(rec.ID, cloneXray(*rec))
	return nil
}

func (r *xrayRepository) Get(ctx context.Context, id string) (*model.XrayRecord, error) {
	rec, ok := r.records.get(id)
	if !ok {
		return nil, errors.NotFound("x-ray record", nil)
	}
	rec = cloneXray(rec)
	return &rec, nil
}

func (r *xrayRepository) Update(ctx context.Context, rec *model.XrayRecord) error {
	existing, ok := r.records.get(rec.ID)
	if !ok {
		return errors.NotFound("x-ray record", nil)
	}
	rec.CreatedAt = existing.CreatedAt
	rec.WalkIn = existing.WalkIn
	rec.UpdatedAt = time.Now().UTC()
	r.records.put(rec.ID, cloneXray(*rec))
	return nil
}

func (r *xrayRepository) Delete(ctx context.Context, id string) error {
	if !r.records.remove(id) {
		return errors.NotFound("x-ray record", nil)
	}
	return nil
}

func (r *xrayRepository) List(ctx context.Context, q model.ListQuery) ([]*model.XrayRecord, int, error) {
	matches := r.records.snapshot(func(rec model.XrayRecord) bool {
		if q.WalkIn != nil && rec.WalkIn != *q.WalkIn {
			return false
		}
		return matchRecord(q, rec.DateKey(), string(rec.Status), string(rec.Priority), rec.Category,
			rec.PatientName, rec.PatientUniqueID, rec.DoctorName, rec.TestName, rec.Diagnosis)
	}, func(rec model.XrayRecord) time.Time { return rec.CreatedAt })

	page, total := paginate(matches, q)
	return clones(page), total, nil
}

func (r *xrayRepository) ListWalkIns(ctx context.Context) ([]*model.XrayRecord, error) {
	matches := r.records.snapshot(func(rec model.XrayRecord) bool { return rec.WalkIn },
		func(rec model.XrayRecord) time.Time { return rec.CreatedAt })
	return clones(matches), nil
}

func clones(records []model.XrayRecord) []*model.XrayRecord {
	out := make([]*model.XrayRecord, len(records))
	for i := range records {
		rec := cloneXray(records[i])
		out[i] = &rec
	}
	return out
}

func cloneXray(rec model.XrayRecord) model.XrayRecord {
	rec.Images = append(model.Images(nil), rec.Images...)
	return rec
}
