package xray

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hms/internal/blob"
	"github.com/jwalitptl/hms/internal/model"
	"github.com/jwalitptl/hms/internal/repository/memory"
	"github.com/jwalitptl/hms/internal/upload"
	"github.com/jwalitptl/hms/pkg/errors"
)

var (
	png  = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)
	jpeg = append([]byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}, make([]byte, 64)...)
	gif  = append([]byte("GIF89a"), make([]byte, 64)...)
)

func newService(t *testing.T) (*Service, *blob.Memory) {
	t.Helper()
	users := memory.NewUserRepository()
	require.NoError(t, users.Create(context.Background(), &model.User{
		Name: "Asha Rao", Email: "asha@example.com", Role: model.RolePatient, UniqueID: "PAT-ABC234", Age: 33,
	}))
	blobs := blob.NewMemory()
	return NewService(memory.NewXrayRepository(), users, blobs, nil, zerolog.Nop()), blobs
}

func draft(walkIn bool) *model.XrayDraft {
	d := &model.XrayDraft{
		PatientName: "Walk In Patient",
		TestName:    "Chest PA",
		Category:    "Chest",
		WalkIn:      walkIn,
		Images: []model.ImageFile{
			{Filename: "front.png", Note: "frontal", Data: png},
			{Filename: "side.jpg", Note: "lateral", Data: jpeg},
		},
	}
	if !walkIn {
		d.PatientUniqueID = "PAT-ABC234"
	}
	return d
}

func TestCreate_StoresImages(t *testing.T) {
	svc, blobs := newService(t)
	ctx := context.Background()

	rec, err := svc.Create(ctx, draft(false))
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", rec.PatientName)
	assert.Equal(t, model.StatusPending, rec.Status)
	require.Len(t, rec.Images, 2)
	assert.Equal(t, 2, blobs.Len())

	img := rec.Images[0]
	assert.Equal(t, "frontal", img.Note)
	assert.Equal(t, "image/png", img.ContentType)
	assert.Equal(t, ImagePath+img.Key, img.URL)
	assert.Regexp(t, `^xray/`+rec.ID+`/[0-9a-f-]+\.png$`, img.Key)

	info, rc, err := svc.Image(ctx, img.Key)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, png, data)
	assert.Equal(t, int64(len(png)), info.Size)
}

func TestCreate_RejectsGIF(t *testing.T) {
	svc, blobs := newService(t)

	d := draft(false)
	d.Images = append(d.Images, model.ImageFile{Filename: "scan.gif", Data: gif})
	_, err := svc.Create(context.Background(), d)

	appErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrBadRequest, appErr.Code)
	assert.Contains(t, appErr.Message, upload.MessageUnsupportedType)
	assert.Zero(t, blobs.Len())
}

func TestCreate_RequiresImage(t *testing.T) {
	svc, _ := newService(t)

	d := draft(false)
	d.Images = nil
	_, err := svc.Create(context.Background(), d)
	require.Error(t, err)
}

func TestCreate_WalkInGetsID(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	rec, err := svc.Create(ctx, draft(true))
	require.NoError(t, err)
	assert.True(t, rec.WalkIn)
	assert.Regexp(t, `^WALKIN-[A-Z2-9]{6}$`, rec.PatientUniqueID)
	assert.Equal(t, "Walk In Patient", rec.PatientName)

	_, err = svc.GetWalkIn(ctx, rec.ID)
	require.NoError(t, err)

	registered, err := svc.Create(ctx, draft(false))
	require.NoError(t, err)
	_, err = svc.GetWalkIn(ctx, registered.ID)
	assert.True(t, errors.IsNotFound(err))

	page, err := svc.ListWalkIns(ctx, model.ListQuery{})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, rec.ID, page.Records[0].ID)
}

func TestStatistics_InvalidatedOnChange(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	svc.now = func() time.Time { return time.Now().UTC() }

	first, err := svc.Create(ctx, draft(true))
	require.NoError(t, err)

	stats, err := svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Today)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.ByPriority["Routine"])

	status := model.StatusCompleted
	_, err = svc.UpdateWalkIn(ctx, first.ID, &model.XrayUpdate{Status: &status})
	require.NoError(t, err)

	stats, err = svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Pending)
	assert.Equal(t, 1, stats.Completed)
}

func TestDelete_RemovesImages(t *testing.T) {
	svc, blobs := newService(t)
	ctx := context.Background()

	rec, err := svc.Create(ctx, draft(false))
	require.NoError(t, err)
	require.Equal(t, 2, blobs.Len())

	require.NoError(t, svc.Delete(ctx, rec.ID))
	assert.Zero(t, blobs.Len())
	assert.True(t, errors.IsNotFound(svc.Delete(ctx, rec.ID)))

	_, _, err = svc.Image(ctx, rec.Images[0].Key)
	assert.True(t, errors.IsNotFound(err))
}

func TestImage_RejectsForeignKeys(t *testing.T) {
	svc, _ := newService(t)
	_, _, err := svc.Image(context.Background(), "secrets/config.yml")
	assert.True(t, errors.IsNotFound(err))
}

func TestUpdate_ImageNotes(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	rec, err := svc.Create(ctx, draft(false))
	require.NoError(t, err)

	diag := "No acute findings"
	updated, err := svc.Update(ctx, rec.ID, &model.XrayUpdate{Diagnosis: &diag, ImageNotes: []string{"PA view"}})
	require.NoError(t, err)
	assert.Equal(t, "No acute findings", updated.Diagnosis)
	assert.Equal(t, "PA view", updated.Images[0].Note)
	assert.Equal(t, "lateral", updated.Images[1].Note)
}
