package blob

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hms/config"
)

func exercise(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	info, err := s.Put(ctx, "xray/r1/a.png", strings.NewReader("png-bytes"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, int64(9), info.Size)

	_, err = s.Put(ctx, "xray/r1/a.png", strings.NewReader("again"), "image/png")
	assert.Error(t, err, "keys are create-only")

	got, rc, err := s.Get(ctx, "xray/r1/a.png")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(body))
	assert.Equal(t, "image/png", got.ContentType)

	existed, err := s.Delete(ctx, "xray/r1/a.png")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = s.Delete(ctx, "xray/r1/a.png")
	require.NoError(t, err)
	assert.False(t, existed)

	_, _, err = s.Get(ctx, "xray/r1/a.png")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Put(ctx, "../escape", strings.NewReader("x"), "")
	assert.Error(t, err)
}

func TestMemory(t *testing.T) {
	exercise(t, NewMemory())
}

func TestFilesystem(t *testing.T) {
	s, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)
	exercise(t, s)
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), config.StorageConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, s.Driver())

	s, err = Open(context.Background(), config.StorageConfig{Driver: "fs", Root: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, DriverFilesystem, s.Driver())

	_, err = Open(context.Background(), config.StorageConfig{Driver: "s3"})
	assert.EqualError(t, err, "s3 bucket required")

	_, err = Open(context.Background(), config.StorageConfig{Driver: "ftp"})
	assert.Error(t, err)
}
