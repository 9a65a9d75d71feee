package model

import (
	"time"
)

// Base contains common fields for all persisted records
type Base struct {
	ID        string    `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Priority of a lab or x-ray request
type Priority string

const (
	PriorityRoutine   Priority = "Routine"
	PriorityUrgent    Priority = "Urgent"
	PriorityEmergency Priority = "Emergency"
)

// Status is the lifecycle state of a lab or x-ray record
type Status string

const (
	StatusPending   Status = "Pending"
	StatusCompleted Status = "Completed"
)

// Listable is implemented by every record kind shown in a list view.
type Listable interface {
	RecordID() string
	// PatientKey identifies the patient the record belongs to.
	PatientKey() string
	StatusLabel() string
	// DateKey is the ISO-8601 date (or timestamp) used for "today" and date filters.
	DateKey() string
	SearchFields() []string
}

// ISODate formats t as a calendar date in the local time zone, so stored
// UTC timestamps and the local "today" compare on the same calendar.
func ISODate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02")
}
