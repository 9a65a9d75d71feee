package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hms/internal/model"
	"github.com/jwalitptl/hms/internal/repository"
)

type xrayRepository struct {
	BaseRepository
}

func NewXrayRepository(base BaseRepository) repository.XrayRepository {
	return &xrayRepository{base}
}

func (r *xrayRepository) Create(ctx context.Context, rec *model.XrayRecord) error {
	query := r.db.Rebind(`
		INSERT INTO xray_records (
			id, patient_id, patient_name, patient_unique_id, age, gender,
			doctor_id, doctor_name, test_name, category, diagnosis,
			overall_notes, instructions, performed_by, performed_date,
			priority, status, walk_in, images, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.CreatedAt = time.Now().UTC()
	rec.UpdatedAt = rec.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.PatientID,
		rec.PatientName,
		rec.PatientUniqueID,
		rec.Age,
		rec.Gender,
		rec.DoctorID,
		rec.DoctorName,
		rec.TestName,
		rec.Category,
		rec.Diagnosis,
		rec.OverallNotes,
		rec.Instructions,
		rec.PerformedBy,
		rec.PerformedDate,
		rec.Priority,
		rec.Status,
		rec.WalkIn,
		rec.Images,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create xray record: %w", err)
	}
	return nil
}

func (r *xrayRepository) Get(ctx context.Context, id string) (*model.XrayRecord, error) {
	var rec model.XrayRecord
	if err := r.db.GetContext(ctx, &rec, r.db.Rebind(`SELECT * FROM xray_records WHERE id = ?`), id); err != nil {
		return nil, notFound(err, "x-ray record", "get xray record")
	}
	return &rec, nil
}

func (r *xrayRepository) Update(ctx context.Context, rec *model.XrayRecord) error {
	query := r.db.Rebind(`
		UPDATE xray_records SET
			patient_name = ?, age = ?, gender = ?, doctor_name = ?,
			test_name = ?, category = ?, diagnosis = ?, overall_notes = ?,
			instructions = ?, performed_by = ?, performed_date = ?,
			priority = ?, status = ?, images = ?, updated_at = ?
		WHERE id = ?
	`)
	rec.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, query,
		rec.PatientName,
		rec.Age,
		rec.Gender,
		rec.DoctorName,
		rec.TestName,
		rec.Category,
		rec.Diagnosis,
		rec.OverallNotes,
		rec.Instructions,
		rec.PerformedBy,
		rec.PerformedDate,
		rec.Priority,
		rec.Status,
		rec.Images,
		rec.UpdatedAt,
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update xray record: %w", err)
	}
	return expectOne(res, "x-ray record")
}

func (r *xrayRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM xray_records WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete xray record: %w", err)
	}
	return expectOne(res, "x-ray record")
}

func (r *xrayRepository) List(ctx context.Context, q model.ListQuery) ([]*model.XrayRecord, int, error) {
	f := &filter{}
	if q.WalkIn != nil {
		f.add("walk_in = ?", *q.WalkIn)
	}
	f.records(q)
	f.search(q.Search, "patient_name", "patient_unique_id", "doctor_name", "test_name", "diagnosis")
	return page[model.XrayRecord](ctx, r.db, "xray_records", f, q)
}

func (r *xrayRepository) ListWalkIns(ctx context.Context) ([]*model.XrayRecord, error) {
	query := r.db.Rebind(`SELECT * FROM xray_records WHERE walk_in = ? ORDER BY created_at DESC`)

	records := []*model.XrayRecord{}
	if err := r.db.SelectContext(ctx, &records, query, true); err != nil {
		return nil, fmt.Errorf("failed to list walk-in records: %w", err)
	}
	return records, nil
}
