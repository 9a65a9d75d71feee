package model

import (
	"database/sql/driver"
	"strings"
)

// Flag classifies a measured value against its normal range
type Flag string

const (
	FlagNormal   Flag = "Normal"
	FlagHigh     Flag = "High"
	FlagLow      Flag = "Low"
	FlagCritical Flag = "Critical"
)

// Parameter is one measured value of a lab test
type Parameter struct {
	Name        string `json:"parameter" validate:"required,notblank"`
	Value       string `json:"value" validate:"required,notblank"`
	Unit        string `json:"unit"`
	NormalRange string `json:"normalRange"`
	Flag        Flag   `json:"flag" validate:"omitempty,oneof=Normal High Low Critical"`
	Notes       string `json:"notes"`
}

// Parameters is stored as a JSON column.
type Parameters []Parameter

func (p *Parameters) Scan(src interface{}) error { return scanJSON(src, p) }

func (p Parameters) Value() (driver.Value, error) {
	if p == nil {
		p = Parameters{}
	}
	return valueJSON(p)
}

// LabRecord is a laboratory test result for one patient
type LabRecord struct {
	Base
	PatientID       string     `json:"patientId" db:"patient_id"`
	PatientName     string     `json:"patientName" db:"patient_name"`
	PatientUniqueID string     `json:"patientUniqueId" db:"patient_unique_id"`
	Age             int        `json:"age" db:"age"`
	Gender          string     `json:"gender" db:"gender"`
	DoctorID        string     `json:"doctorId" db:"doctor_id"`
	DoctorName      string     `json:"doctorName" db:"doctor_name"`
	TestName        string     `json:"testName" db:"test_name"`
	Category        string     `json:"category" db:"category"`
	Diagnosis       string     `json:"diagnosis" db:"diagnosis"`
	Priority        Priority   `json:"priority" db:"priority"`
	Status          Status     `json:"status" db:"status"`
	PerformedBy     string     `json:"performedBy" db:"performed_by"`
	PerformedDate   string     `json:"performedDate" db:"performed_date"`
	ReportDate      string     `json:"reportDate" db:"report_date"`
	Notes           string     `json:"notes" db:"notes"`
	Instructions    string     `json:"instructions" db:"instructions"`
	Parameters      Parameters `json:"parameters" db:"parameters"`
}

func (r LabRecord) RecordID() string    { return r.ID }
func (r LabRecord) PatientKey() string  { return r.PatientUniqueID }
func (r LabRecord) StatusLabel() string { return string(r.Status) }

func (r LabRecord) DateKey() string {
	if r.PerformedDate != "" {
		return r.PerformedDate
	}
	return ISODate(r.CreatedAt)
}

func (r LabRecord) SearchFields() []string {
	return []string{r.PatientName, r.PatientUniqueID, r.DoctorName, r.TestName, r.Category, r.Diagnosis}
}

// LabDraft is the payload for creating a lab record
type LabDraft struct {
	PatientID       string     `json:"patientId" validate:"required"`
	PatientName     string     `json:"patientName" validate:"required,notblank"`
	PatientUniqueID string     `json:"patientUniqueId" validate:"required,notblank"`
	Age             int        `json:"age" validate:"min=0,max=150"`
	Gender          string     `json:"gender"`
	DoctorID        string     `json:"doctorId"`
	DoctorName      string     `json:"doctorName" validate:"required,notblank"`
	TestName        string     `json:"testName" validate:"required,notblank"`
	Category        string     `json:"category" validate:"required,notblank"`
	Diagnosis       string     `json:"diagnosis"`
	Priority        Priority   `json:"priority" validate:"omitempty,oneof=Routine Urgent Emergency"`
	Status          Status     `json:"status" validate:"omitempty,oneof=Pending Completed"`
	PerformedBy     string     `json:"performedBy"`
	PerformedDate   string     `json:"performedDate"`
	ReportDate      string     `json:"reportDate"`
	Notes           string     `json:"notes"`
	Instructions    string     `json:"instructions"`
	Parameters      Parameters `json:"parameters" validate:"dive"`
}

// ForPatient copies the patient identity fields from u.
func (d *LabDraft) ForPatient(u *User) {
	d.PatientID = u.ID
	d.PatientName = u.Name
	d.PatientUniqueID = u.UniqueID
	d.Age = u.Age
	d.Gender = u.Gender
}

// Record builds the record a draft describes, defaulting priority, status and flags.
func (d LabDraft) Record() LabRecord {
	rec := LabRecord{
		PatientID:       d.PatientID,
		PatientName:     strings.TrimSpace(d.PatientName),
		PatientUniqueID: d.PatientUniqueID,
		Age:             d.Age,
		Gender:          d.Gender,
		DoctorID:        d.DoctorID,
		DoctorName:      d.DoctorName,
		TestName:        strings.TrimSpace(d.TestName),
		Category:        d.Category,
		Diagnosis:       d.Diagnosis,
		Priority:        d.Priority,
		Status:          d.Status,
		PerformedBy:     d.PerformedBy,
		PerformedDate:   d.PerformedDate,
		ReportDate:      d.ReportDate,
		Notes:           d.Notes,
		Instructions:    d.Instructions,
		Parameters:      make(Parameters, len(d.Parameters)),
	}
	copy(rec.Parameters, d.Parameters)
	if rec.Priority == "" {
		rec.Priority = PriorityRoutine
	}
	if rec.Status == "" {
		rec.Status = StatusPending
	}
	for i := range rec.Parameters {
		if rec.Parameters[i].Flag == "" {
			rec.Parameters[i].Flag = FlagNormal
		}
	}
	return rec
}

// LabUpdate is a partial update of a lab record
type LabUpdate struct {
	DoctorName    *string     `json:"doctorName,omitempty"`
	TestName      *string     `json:"testName,omitempty" validate:"omitempty,notblank"`
	Category      *string     `json:"category,omitempty" validate:"omitempty,notblank"`
	Diagnosis     *string     `json:"diagnosis,omitempty"`
	Priority      *Priority   `json:"priority,omitempty" validate:"omitempty,oneof=Routine Urgent Emergency"`
	Status        *Status     `json:"status,omitempty" validate:"omitempty,oneof=Pending Completed"`
	PerformedBy   *string     `json:"performedBy,omitempty"`
	PerformedDate *string     `json:"performedDate,omitempty"`
	ReportDate    *string     `json:"reportDate,omitempty"`
	Notes         *string     `json:"notes,omitempty"`
	Instructions  *string     `json:"instructions,omitempty"`
	Parameters    *Parameters `json:"parameters,omitempty" validate:"omitempty,dive"`
}

// Apply copies the non-nil fields onto r.
func (u LabUpdate) Apply(r *LabRecord) {
	if u.DoctorName != nil {
		r.DoctorName = *u.DoctorName
	}
	if u.TestName != nil {
		r.TestName = *u.TestName
	}
	if u.Category != nil {
		r.Category = *u.Category
	}
	if u.Diagnosis != nil {
		r.Diagnosis = *u.Diagnosis
	}
	if u.Priority != nil {
		r.Priority = *u.Priority
	}
	if u.Status != nil {
		r.Status = *u.Status
	}
	if u.PerformedBy != nil {
		r.PerformedBy = *u.PerformedBy
	}
	if u.PerformedDate != nil {
		r.PerformedDate = *u.PerformedDate
	}
	if u.ReportDate != nil {
		r.ReportDate = *u.ReportDate
	}
	if u.Notes != nil {
		r.Notes = *u.Notes
	}
	if u.Instructions != nil {
		r.Instructions = *u.Instructions
	}
	if u.Parameters != nil {
		r.Parameters = *u.Parameters
	}
}
