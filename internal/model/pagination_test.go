package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewPagination(t *testing.T) {
	p := NewPagination(2, 10, 35)
	assert.Equal(t, 2, p.CurrentPage)
	assert.Equal(t, 4, p.TotalPages)
	assert.Equal(t, 35, p.TotalRecords)
	assert.Equal(t, 10, p.Limit)
	assert.Equal(t, 10, p.Offset())
}

func TestNewPagination_ClampsCurrentPage(t *testing.T) {
	assert.Equal(t, 4, NewPagination(9, 10, 35).CurrentPage)
	assert.Equal(t, 1, NewPagination(0, 10, 35).CurrentPage)
	assert.Equal(t, 1, NewPagination(-3, 10, 35).CurrentPage)
}

func TestNewPagination_Empty(t *testing.T) {
	p := NewPagination(1, 20, 0)
	assert.Equal(t, 0, p.TotalPages)
	assert.Equal(t, 1, p.CurrentPage)
	assert.Equal(t, 0, p.Offset())
}

func TestNewPagination_DefaultLimit(t *testing.T) {
	p := NewPagination(1, 0, 25)
	assert.Equal(t, DefaultPageSize, p.Limit)
	assert.Equal(t, 3, p.TotalPages)
}

func TestListQueryNormalize(t *testing.T) {
	q := ListQuery{Page: 0, Limit: 1000}.Normalize()
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, MaxPageSize, q.Limit)

	q = ListQuery{}.Normalize()
	assert.Equal(t, DefaultPageSize, q.Limit)
}

func TestLabDraftRecordDefaults(t *testing.T) {
	d := LabDraft{
		TestName:   " CBC ",
		Parameters: Parameters{{Name: "Glucose", Value: "110"}},
	}
	rec := d.Record()
	assert.Equal(t, "CBC", rec.TestName)
	assert.Equal(t, PriorityRoutine, rec.Priority)
	assert.Equal(t, StatusPending, rec.Status)
	assert.Equal(t, FlagNormal, rec.Parameters[0].Flag)
	assert.Equal(t, Flag(""), d.Parameters[0].Flag, "draft must not be mutated")
}

func TestLabUpdateApply(t *testing.T) {
	rec := LabRecord{TestName: "CBC", Status: StatusPending}
	done := StatusCompleted
	LabUpdate{Status: &done}.Apply(&rec)
	assert.Equal(t, StatusCompleted, rec.Status)
	assert.Equal(t, "CBC", rec.TestName)
}

func TestParametersScan(t *testing.T) {
	var p Parameters
	assert.NoError(t, p.Scan([]byte(`[{"parameter":"Glucose","value":"110","flag":"Normal"}]`)))
	assert.Len(t, p, 1)
	assert.Equal(t, "Glucose", p[0].Name)

	v, err := Parameters(nil).Value()
	assert.NoError(t, err)
	assert.Equal(t, "[]", v)
}

func TestWalkInStatistics(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.Local)
	records := []XrayRecord{
		{PerformedDate: "2026-10-15", Status: StatusPending, Priority: PriorityUrgent},
		{PerformedDate: "2026-10-15T08:30:00Z", Status: StatusCompleted, Priority: PriorityRoutine},
		{PerformedDate: "2026-10-14", Status: StatusPending, Priority: PriorityUrgent},
	}
	stats := NewWalkInStatistics(records, now)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Today)
	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 2, stats.ByPriority["Urgent"])
}

func TestISODateUsesLocalZone(t *testing.T) {
	orig := time.Local
	time.Local = time.FixedZone("IST", 5*3600+1800)
	t.Cleanup(func() { time.Local = orig })

	created := time.Date(2026, 10, 14, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-10-15", ISODate(created))
	assert.Equal(t, ISODate(time.Date(2026, 10, 15, 9, 0, 0, 0, time.Local)), ISODate(created))
	assert.Empty(t, ISODate(time.Time{}))

	rec := XrayRecord{Base: Base{CreatedAt: created}}
	stats := NewWalkInStatistics([]XrayRecord{rec}, time.Date(2026, 10, 15, 1, 0, 0, 0, time.Local))
	assert.Equal(t, 1, stats.Today)
}

func TestUserStatusLabel(t *testing.T) {
	assert.Equal(t, "verified", User{IsVerified: true}.StatusLabel())
	assert.Equal(t, "unverified", User{}.StatusLabel())
	var nilUser *User
	assert.False(t, nilUser.HasRole(RoleAdmin))
}
