package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jwalitptl/hms/internal/model"
	"github.com/jwalitptl/hms/internal/notify"
)

// fakeLabs is an in-memory lab backend. listFn, when set, replaces List.
type fakeLabs struct {
	mu        sync.Mutex
	records   []model.LabRecord
	creates   int
	deleteErr error
	listFn    func(ctx context.Context, q model.ListQuery) (model.Page[model.LabRecord], error)
	createFn  func(d model.LabDraft) (*model.LabRecord, error)
}

func (f *fakeLabs) List(ctx context.Context, q model.ListQuery) (model.Page[model.LabRecord], error) {
	if f.listFn != nil {
		return f.listFn(ctx, q)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	p := model.NewPagination(q.Page, q.Limit, len(f.records))
	end := p.Offset() + p.Limit
	if end > len(f.records) {
		end = len(f.records)
	}
	out := append([]model.LabRecord(nil), f.records[p.Offset():end]...)
	return model.Page[model.LabRecord]{Records: out, Pagination: p}, nil
}

func (f *fakeLabs) Search(ctx context.Context, q model.ListQuery) (model.Page[model.LabRecord], error) {
	return f.List(ctx, q)
}

func (f *fakeLabs) Get(ctx context.Context, id string) (*model.LabRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, errors.New("Lab record not found")
}

func (f *fakeLabs) Create(ctx context.Context, d model.LabDraft) (*model.LabRecord, error) {
	f.mu.Lock()
	f.creates++
	fn := f.createFn
	f.mu.Unlock()
	if fn != nil {
		return fn(d)
	}

	rec := d.Record()
	rec.ID = fmt.Sprintf("lab-%d", f.creates)
	f.mu.Lock()
	f.records = append(f.records, rec)
	f.mu.Unlock()
	return &rec, nil
}

func (f *fakeLabs) Update(ctx context.Context, id string, u model.LabUpdate) (*model.LabRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.records {
		if f.records[i].ID == id {
			u.Apply(&f.records[i])
			rec := f.records[i]
			return &rec, nil
		}
	}
	return nil, errors.New("Lab record not found")
}

func (f *fakeLabs) Delete(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.records {
		if f.records[i].ID == id {
			f.records = append(f.records[:i], f.records[i+1:]...)
			return nil
		}
	}
	return errors.New("Lab record not found")
}

func seeded(n int) *fakeLabs {
	f := &fakeLabs{}
	for i := 1; i <= n; i++ {
		f.records = append(f.records, model.LabRecord{
			Base:     model.Base{ID: fmt.Sprintf("seed-%02d", i)},
			TestName: "CBC",
			Status:   model.StatusPending,
		})
	}
	return f
}

func newLabStore(api *fakeLabs) (*LabStore, *notify.Recorder) {
	rec := notify.NewRecorder()
	return New[model.LabRecord, model.LabDraft, model.LabUpdate]("Lab record", api, rec, zap.NewNop()), rec
}

func validDraft() model.LabDraft {
	return model.LabDraft{
		PatientID:       "p1",
		PatientName:     "Asha",
		PatientUniqueID: "PAT-AAAAAA",
		DoctorName:      "Dr. Rao",
		TestName:        "Blood Sugar",
		Category:        "Biochemistry",
		Parameters: model.Parameters{
			{Name: "Glucose", Value: "110", Unit: "mg/dL", NormalRange: "70-110", Flag: model.FlagNormal},
		},
	}
}

func TestFetchPage(t *testing.T) {
	api := seeded(23)
	s, notices := newLabStore(api)
	ctx := context.Background()

	page, err := s.FetchPage(ctx, model.ListQuery{Page: 2, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Pagination.CurrentPage)
	assert.Equal(t, 3, page.Pagination.TotalPages)
	assert.LessOrEqual(t, len(page.Records), 10)

	snap := s.Snapshot()
	assert.Len(t, snap.Records, 10)
	assert.Equal(t, "seed-11", snap.Records[0].ID)
	assert.False(t, snap.Loading)

	again, err := s.FetchPage(ctx, model.ListQuery{Page: 2, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, page, again)
	assert.Empty(t, notices.Notices())
}

func TestFetchPageFailureKeepsRecords(t *testing.T) {
	api := seeded(5)
	s, notices := newLabStore(api)
	ctx := context.Background()

	_, err := s.FetchPage(ctx, model.ListQuery{})
	require.NoError(t, err)

	api.listFn = func(context.Context, model.ListQuery) (model.Page[model.LabRecord], error) {
		return model.Page[model.LabRecord]{}, errors.New("connection refused")
	}
	_, err = s.FetchPage(ctx, model.ListQuery{Page: 2})
	require.Error(t, err)

	snap := s.Snapshot()
	assert.Len(t, snap.Records, 5)
	assert.Equal(t, "connection refused", snap.Err)
	assert.False(t, snap.Loading)
	assert.Equal(t, []string{"connection refused"}, notices.Errors())
}

func TestFetchPageIgnoresStaleResponse(t *testing.T) {
	api := seeded(30)
	s, notices := newLabStore(api)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	api.listFn = func(ctx context.Context, q model.ListQuery) (model.Page[model.LabRecord], error) {
		if q.Page == 1 {
			close(started)
			<-release
		}
		return model.Page[model.LabRecord]{
			Records:    []model.LabRecord{{Base: model.Base{ID: fmt.Sprintf("p%d", q.Page)}}},
			Pagination: model.NewPagination(q.Page, q.Limit, 30),
		}, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.FetchPage(ctx, model.ListQuery{Page: 1})
		done <- err
	}()
	<-started
	assert.True(t, s.Snapshot().Loading)

	_, err := s.FetchPage(ctx, model.ListQuery{Page: 2})
	require.NoError(t, err)
	assert.True(t, s.Snapshot().Loading)

	close(release)
	assert.ErrorIs(t, <-done, ErrStale)

	snap := s.Snapshot()
	assert.Equal(t, 2, snap.Pagination.CurrentPage)
	assert.Equal(t, "p2", snap.Records[0].ID)
	assert.False(t, snap.Loading)
	assert.Empty(t, notices.Notices())
}

func TestCreate(t *testing.T) {
	api := seeded(0)
	s, notices := newLabStore(api)
	ctx := context.Background()

	res := s.Create(ctx, validDraft())
	require.True(t, res.Success, res.Error)
	assert.Equal(t, model.FlagNormal, res.Data.Parameters[0].Flag)

	snap := s.Snapshot()
	require.Len(t, snap.Records, 1)
	assert.Equal(t, res.Data.ID, snap.Records[0].ID)
	assert.Equal(t, []notify.Notice{{Level: notify.LevelSuccess, Message: "Lab record created"}}, notices.Notices())
}

func TestCreateNeverDuplicates(t *testing.T) {
	api := seeded(0)
	api.createFn = func(d model.LabDraft) (*model.LabRecord, error) {
		rec := d.Record()
		rec.ID = "lab-fixed"
		return &rec, nil
	}
	s, _ := newLabStore(api)
	ctx := context.Background()

	require.True(t, s.Create(ctx, validDraft()).Success)
	require.True(t, s.Create(ctx, validDraft()).Success)

	count := 0
	for _, r := range s.Snapshot().Records {
		if r.ID == "lab-fixed" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestCreateValidationSkipsNetwork(t *testing.T) {
	api := seeded(0)
	s, notices := newLabStore(api)

	draft := validDraft()
	draft.TestName = ""
	draft.Parameters[0].Value = ""

	res := s.Create(context.Background(), draft)
	assert.False(t, res.Success)
	assert.Equal(t, []string{"testName is required", "parameters[0].value is required"}, res.Fields)
	assert.Zero(t, api.creates)
	assert.Len(t, notices.Errors(), 1)
	assert.Equal(t, res.Error, s.Snapshot().Err)
}

func TestResetDiscardsInFlightFetch(t *testing.T) {
	api := seeded(3)
	s, notices := newLabStore(api)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	api.listFn = func(ctx context.Context, q model.ListQuery) (model.Page[model.LabRecord], error) {
		close(started)
		<-release
		return model.Page[model.LabRecord]{}, errors.New("401 Unauthorized")
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.FetchPage(ctx, model.ListQuery{Page: 1})
		done <- err
	}()
	<-started
	s.Reset()
	close(release)

	err := <-done
	assert.ErrorIs(t, err, ErrStale)
	assert.ErrorContains(t, err, "401 Unauthorized")
	assert.Empty(t, notices.Notices())
	assert.Empty(t, s.Snapshot().Records)
	assert.False(t, s.Snapshot().Loading)
}

func TestCreateRejectsBlankFields(t *testing.T) {
	api := seeded(0)
	s, _ := newLabStore(api)

	draft := validDraft()
	draft.TestName = "   "
	draft.Category = "\t "

	res := s.Create(context.Background(), draft)
	assert.False(t, res.Success)
	assert.Equal(t, []string{"testName is required", "category is required"}, res.Fields)
	assert.Zero(t, api.creates)

	blank := "  "
	upd := s.Update(context.Background(), "seed-01", model.LabUpdate{TestName: &blank})
	assert.False(t, upd.Success)
	assert.Equal(t, []string{"testName is required"}, upd.Fields)
}

func TestCreatePrecondition(t *testing.T) {
	api := seeded(0)
	s, notices := newLabStore(api)
	s.prepare = func(*model.LabDraft) error { return ErrNoPatient }

	res := s.Create(context.Background(), validDraft())
	assert.False(t, res.Success)
	assert.Equal(t, MsgNoPatient, res.Error)
	assert.Zero(t, api.creates)
	assert.Equal(t, []string{MsgNoPatient}, notices.Errors())
}

func TestMutationsAreSingleFlight(t *testing.T) {
	api := seeded(0)
	started := make(chan struct{})
	release := make(chan struct{})
	api.createFn = func(d model.LabDraft) (*model.LabRecord, error) {
		close(started)
		<-release
		rec := d.Record()
		rec.ID = "slow"
		return &rec, nil
	}
	s, notices := newLabStore(api)
	ctx := context.Background()

	done := make(chan Result[model.LabRecord], 1)
	go func() { done <- s.Create(ctx, validDraft()) }()
	<-started

	second := s.Create(ctx, validDraft())
	assert.False(t, second.Success)
	assert.Equal(t, MsgBusy, second.Error)
	assert.False(t, s.Delete(ctx, "slow"))

	close(release)
	select {
	case res := <-done:
		assert.True(t, res.Success)
	case <-time.After(time.Second):
		t.Fatal("create did not finish")
	}
	assert.Equal(t, 1, api.creates)
	assert.Equal(t, []string{MsgBusy, MsgBusy}, notices.Errors())
}

func TestDelete(t *testing.T) {
	api := seeded(3)
	s, _ := newLabStore(api)
	ctx := context.Background()

	_, err := s.FetchPage(ctx, model.ListQuery{})
	require.NoError(t, err)
	require.NotNil(t, s.GetByID(ctx, "seed-02"))

	assert.True(t, s.Delete(ctx, "seed-02"))
	snap := s.Snapshot()
	assert.Len(t, snap.Records, 2)
	assert.Equal(t, 2, snap.Pagination.TotalRecords)
	assert.Nil(t, snap.Selected)
	for _, r := range snap.Records {
		assert.NotEqual(t, "seed-02", r.ID)
	}
}

func TestDeleteFailureLeavesCollection(t *testing.T) {
	api := seeded(3)
	s, notices := newLabStore(api)
	ctx := context.Background()

	_, err := s.FetchPage(ctx, model.ListQuery{})
	require.NoError(t, err)
	before := s.Snapshot().Records

	assert.False(t, s.Delete(ctx, "not-there"))
	assert.Equal(t, before, s.Snapshot().Records)

	api.deleteErr = errors.New("Network Error")
	assert.False(t, s.Delete(ctx, "seed-01"))
	assert.Equal(t, before, s.Snapshot().Records)
	assert.Equal(t, []string{"Lab record not found", "Network Error"}, notices.Errors())
}

func TestGetByIDAndUpdate(t *testing.T) {
	api := seeded(2)
	s, notices := newLabStore(api)
	ctx := context.Background()

	_, err := s.FetchPage(ctx, model.ListQuery{})
	require.NoError(t, err)

	assert.Nil(t, s.GetByID(ctx, "nope"))
	assert.Nil(t, s.Snapshot().Selected)
	assert.Len(t, notices.Errors(), 1)

	got := s.GetByID(ctx, "seed-01")
	require.NotNil(t, got)
	assert.Equal(t, "seed-01", s.Snapshot().Selected.ID)
	assert.Empty(t, s.Snapshot().Err)

	done := model.StatusCompleted
	res := s.Update(ctx, "seed-01", model.LabUpdate{Status: &done})
	require.True(t, res.Success)

	snap := s.Snapshot()
	assert.Equal(t, model.StatusCompleted, snap.Selected.Status)
	assert.Equal(t, model.StatusCompleted, snap.Records[0].Status)

	bad := model.Priority("Whenever")
	res = s.Update(ctx, "seed-01", model.LabUpdate{Priority: &bad})
	assert.False(t, res.Success)
	assert.Equal(t, "priority must be one of: Routine, Urgent, Emergency", res.Error)
}

func TestSnapshotIsACopy(t *testing.T) {
	s, _ := newLabStore(seeded(1))
	_, err := s.FetchPage(context.Background(), model.ListQuery{})
	require.NoError(t, err)

	snap := s.Snapshot()
	snap.Records[0].TestName = "changed"
	assert.Equal(t, "CBC", s.Snapshot().Records[0].TestName)
}
