package model

import (
	"database/sql/driver"
	"strings"
	"time"
)

// Image is a stored x-ray image reference
type Image struct {
	URL         string `json:"url"`
	Key         string `json:"key,omitempty"`
	Filename    string `json:"filename"`
	Note        string `json:"note"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

// Images is stored as a JSON column.
type Images []Image

func (i *Images) Scan(src interface{}) error { return scanJSON(src, i) }

func (i Images) Value() (driver.Value, error) {
	if i == nil {
		i = Images{}
	}
	return valueJSON(i)
}

// ImageFile is an image selected for upload, held in memory
type ImageFile struct {
	Filename string
	Note     string
	Data     []byte
}

// XrayRecord is an imaging study for one patient, registered or walk-in
type XrayRecord struct {
	Base
	PatientID       string   `json:"patientId" db:"patient_id"`
	PatientName     string   `json:"patientName" db:"patient_name"`
	PatientUniqueID string   `json:"patientUniqueId" db:"patient_unique_id"`
	Age             int      `json:"age" db:"age"`
	Gender          string   `json:"gender" db:"gender"`
	DoctorID        string   `json:"doctorId" db:"doctor_id"`
	DoctorName      string   `json:"doctorName" db:"doctor_name"`
	TestName        string   `json:"testName" db:"test_name"`
	Category        string   `json:"category" db:"category"`
	Diagnosis       string   `json:"diagnosis" db:"diagnosis"`
	OverallNotes    string   `json:"overallNotes" db:"overall_notes"`
	Instructions    string   `json:"instructions" db:"instructions"`
	PerformedBy     string   `json:"performedBy" db:"performed_by"`
	PerformedDate   string   `json:"performedDate" db:"performed_date"`
	Priority        Priority `json:"priority" db:"priority"`
	Status          Status   `json:"status" db:"status"`
	WalkIn          bool     `json:"walkIn" db:"walk_in"`
	Images          Images   `json:"images" db:"images"`
}

func (r XrayRecord) RecordID() string    { return r.ID }
func (r XrayRecord) PatientKey() string  { return r.PatientUniqueID }
func (r XrayRecord) StatusLabel() string { return string(r.Status) }

func (r XrayRecord) DateKey() string {
	if r.PerformedDate != "" {
		return r.PerformedDate
	}
	return ISODate(r.CreatedAt)
}

func (r XrayRecord) SearchFields() []string {
	return []string{r.PatientName, r.PatientUniqueID, r.DoctorName, r.TestName, r.Category, r.Diagnosis}
}

// XrayDraft is the payload for creating an x-ray record. Images are sent
// as multipart parts; Notes[i] belongs to Images[i].
type XrayDraft struct {
	PatientID       string      `json:"patientId"`
	PatientName     string      `json:"patientName" validate:"required,notblank"`
	PatientUniqueID string      `json:"patientUniqueId"`
	Age             int         `json:"age" validate:"min=0,max=150"`
	Gender          string      `json:"gender"`
	DoctorID        string      `json:"doctorId"`
	DoctorName      string      `json:"doctorName"`
	TestName        string      `json:"testName" validate:"required,notblank"`
	Category        string      `json:"category" validate:"required,notblank"`
	Diagnosis       string      `json:"diagnosis"`
	OverallNotes    string      `json:"overallNotes"`
	Instructions    string      `json:"instructions"`
	PerformedBy     string      `json:"performedBy"`
	PerformedDate   string      `json:"performedDate"`
	Priority        Priority    `json:"priority" validate:"omitempty,oneof=Routine Urgent Emergency"`
	WalkIn          bool        `json:"walkIn"`
	Images          []ImageFile `json:"-" validate:"min=1"`
}

// ForPatient copies the patient identity fields from u.
func (d *XrayDraft) ForPatient(u *User) {
	d.PatientID = u.ID
	d.PatientName = u.Name
	d.PatientUniqueID = u.UniqueID
	d.Age = u.Age
	d.Gender = u.Gender
}

// Notes returns the per-image notes aligned with Images.
func (d XrayDraft) Notes() []string {
	notes := make([]string, len(d.Images))
	for i, img := range d.Images {
		notes[i] = img.Note
	}
	return notes
}

// Record builds the record a draft describes without its images.
func (d XrayDraft) Record() XrayRecord {
	rec := XrayRecord{
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
		OverallNotes:    d.OverallNotes,
		Instructions:    d.Instructions,
		PerformedBy:     d.PerformedBy,
		PerformedDate:   d.PerformedDate,
		Priority:        d.Priority,
		Status:          StatusPending,
		WalkIn:          d.WalkIn,
	}
	if rec.Priority == "" {
		rec.Priority = PriorityRoutine
	}
	return rec
}

// XrayUpdate is a partial update of an x-ray record
type XrayUpdate struct {
	PatientName   *string   `json:"patientName,omitempty" validate:"omitempty,notblank"`
	Age           *int      `json:"age,omitempty" validate:"omitempty,min=0,max=150"`
	Gender        *string   `json:"gender,omitempty"`
	DoctorName    *string   `json:"doctorName,omitempty"`
	TestName      *string   `json:"testName,omitempty" validate:"omitempty,notblank"`
	Category      *string   `json:"category,omitempty" validate:"omitempty,notblank"`
	Diagnosis     *string   `json:"diagnosis,omitempty"`
	OverallNotes  *string   `json:"overallNotes,omitempty"`
	Instructions  *string   `json:"instructions,omitempty"`
	PerformedBy   *string   `json:"performedBy,omitempty"`
	PerformedDate *string   `json:"performedDate,omitempty"`
	Priority      *Priority `json:"priority,omitempty" validate:"omitempty,oneof=Routine Urgent Emergency"`
	Status        *Status   `json:"status,omitempty" validate:"omitempty,oneof=Pending Completed"`
	// ImageNotes replaces the note of the image at the same position.
	ImageNotes []string `json:"imageNotes,omitempty"`
}

// Apply copies the non-nil fields onto r.
func (u XrayUpdate) Apply(r *XrayRecord) {
	if u.PatientName != nil {
		r.PatientName = *u.PatientName
	}
	if u.Age != nil {
		r.Age = *u.Age
	}
	if u.Gender != nil {
		r.Gender = *u.Gender
	}
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
	if u.OverallNotes != nil {
		r.OverallNotes = *u.OverallNotes
	}
	if u.Instructions != nil {
		r.Instructions = *u.Instructions
	}
	if u.PerformedBy != nil {
		r.PerformedBy = *u.PerformedBy
	}
	if u.PerformedDate != nil {
		r.PerformedDate = *u.PerformedDate
	}
	if u.Priority != nil {
		r.Priority = *u.Priority
	}
	if u.Status != nil {
		r.Status = *u.Status
	}
	for i, note := range u.ImageNotes {
		if i < len(r.Images) {
			r.Images[i].Note = note
		}
	}
}

// WalkInStatistics summarises walk-in x-ray activity
type WalkInStatistics struct {
	Total      int            `json:"total"`
	Today      int            `json:"today"`
	Pending    int            `json:"pending"`
	Completed  int            `json:"completed"`
	ByPriority map[string]int `json:"byPriority"`
}

// NewWalkInStatistics tallies records against the calendar date of now.
func NewWalkInStatistics(records []XrayRecord, now time.Time) WalkInStatistics {
	stats := WalkInStatistics{ByPriority: map[string]int{}}
	today := ISODate(now)
	for _, r := range records {
		stats.Total++
		if strings.HasPrefix(r.DateKey(), today) {
			stats.Today++
		}
		switch r.Status {
		case StatusCompleted:
			stats.Completed++
		default:
			stats.Pending++
		}
		stats.ByPriority[string(r.Priority)]++
	}
	return stats
}
