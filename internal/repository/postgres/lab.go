package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/hms/internal/model"
	"github.com/jwalitptl/hms/internal/repository"
)

type labRepository struct {
	BaseRepository
}

func NewLabRepository(base BaseRepository) repository.LabRepository {
	return &labRepository{base}
}

func (r *labRepository) Create(ctx context.Context, rec *model.LabRecord) error {
	query := r.db.Rebind(`
		INSERT INTO lab_records (
			id, patient_id, patient_name, patient_unique_id, age, gender,
			doctor_id, doctor_name, test_name, category, diagnosis, priority,
			status, performed_by, performed_date, report_date, notes,
			instructions, parameters, created_at, updated_at
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
		rec.Priority,
		rec.Status,
		rec.PerformedBy,
		rec.PerformedDate,
		rec.ReportDate,
		rec.Notes,
		rec.Instructions,
		rec.Parameters,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create lab record: %w", err)
	}
	return nil
}

func (r *labRepository) Get(ctx context.Context, id string) (*model.LabRecord, error) {
	var rec model.LabRecord
	if err := r.db.GetContext(ctx, &rec, r.db.Rebind(`SELECT * FROM lab_records WHERE id = ?`), id); err != nil {
		return nil, notFound(err, "lab record", "get lab record")
	}
	return &rec, nil
}

func (r *labRepository) Update(ctx context.Context, rec *model.LabRecord) error {
	query := r.db.Rebind(`
		UPDATE lab_records SET
			doctor_name = ?, test_name = ?, category = ?, diagnosis = ?,
			priority = ?, status = ?, performed_by = ?, performed_date = ?,
			report_date = ?, notes = ?, instructions = ?, parameters = ?,
			updated_at = ?
		WHERE id = ?
	`)
	rec.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, query,
		rec.DoctorName,
		rec.TestName,
		rec.Category,
		rec.Diagnosis,
		rec.Priority,
		rec.Status,
		rec.PerformedBy,
		rec.PerformedDate,
		rec.ReportDate,
		rec.Notes,
		rec.Instructions,
		rec.Parameters,
		rec.UpdatedAt,
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update lab record: %w", err)
	}
	return expectOne(res, "lab record")
}

func (r *labRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM lab_records WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete lab record: %w", err)
	}
	return expectOne(res, "lab record")
}

func (r *labRepository) List(ctx context.Context, q model.ListQuery) ([]*model.LabRecord, int, error) {
	f := &filter{}
	f.records(q)
	f.search(q.Search, "patient_name", "patient_unique_id", "doctor_name", "test_name", "diagnosis")
	return page[model.LabRecord](ctx, r.db, "lab_records", f, q)
}
