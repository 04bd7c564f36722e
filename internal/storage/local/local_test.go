package local

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muazhazali/lepakmasjid/internal/config"
	"github.com/muazhazali/lepakmasjid/internal/storage"
)

func newTestStorage(t *testing.T) (*LocalStorage, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := New(&config.LocalStorageConfig{BasePath: dir}, "http://localhost:8080/")
	require.NoError(t, err)
	return s, dir
}

func sha(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// ---------------------------------------------------------------------------
// New
// ---------------------------------------------------------------------------

func TestNew(t *testing.T) {
	sub := filepath.Join(t.TempDir(), "a", "b")
	_, err := New(&config.LocalStorageConfig{BasePath: sub}, "")
	require.NoError(t, err)
	assert.DirExists(t, sub)

	_, err = New(&config.LocalStorageConfig{}, "")
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// Upload / Download / Delete
// ---------------------------------------------------------------------------

func TestUploadDownloadDelete(t *testing.T) {
	s, dir := newTestStorage(t)
	ctx := context.Background()
	const p = "mosques/m00000000000001/photo.jpg"

	res, err := s.Upload(ctx, p, strings.NewReader("jpeg bytes"), 10)
	require.NoError(t, err)
	assert.Equal(t, p, res.Path)
	assert.Equal(t, int64(10), res.Size)
	assert.Equal(t, sha("jpeg bytes"), res.Checksum)

	rc, err := s.Download(ctx, p)
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "jpeg bytes", string(body))

	ok, err := s.Exists(ctx, p)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, p))
	ok, _ = s.Exists(ctx, p)
	assert.False(t, ok)
	assert.NoDirExists(t, filepath.Join(dir, "mosques"), "empty parents are removed")

	assert.NoError(t, s.Delete(ctx, p), "delete is idempotent")
}

func TestUpload_LeavesNoTempFiles(t *testing.T) {
	s, dir := newTestStorage(t)
	_, err := s.Upload(context.Background(), "mosques/m1/a.jpg", strings.NewReader("x"), 1)
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(dir, "mosques", "m1"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.jpg", entries[0].Name())
}

func TestDownload_NotFound(t *testing.T) {
	s, _ := newTestStorage(t)
	_, err := s.Download(context.Background(), "mosques/missing.jpg")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPathsCannotEscapeBase(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()
	for _, p := range []string{"../outside.jpg", "mosques/../../x", "/etc/passwd", "", "."} {
		_, err := s.Upload(ctx, p, strings.NewReader("x"), 1)
		assert.Error(t, err, p)
		_, err = s.Download(ctx, p)
		assert.Error(t, err, p)
	}
}

// ---------------------------------------------------------------------------
// GetURL / GetMetadata
// ---------------------------------------------------------------------------

func TestGetURL(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	_, err := s.GetURL(ctx, "mosques/m1/a.jpg", 0)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.Upload(ctx, "mosques/m1/a.jpg", strings.NewReader("x"), 1)
	require.NoError(t, err)
	u, err := s.GetURL(ctx, "mosques/m1/a.jpg", 0)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/api/v1/files/mosques/m1/a.jpg", u)
}

func TestGetMetadata(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()
	_, err := s.Upload(ctx, "mosques/m1/a.jpg", strings.NewReader("image"), 5)
	require.NoError(t, err)

	md, err := s.GetMetadata(ctx, "mosques/m1/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, int64(5), md.Size)
	assert.Equal(t, sha("image"), md.Checksum)
	assert.Equal(t, "image/jpeg", md.ContentType)
	assert.False(t, md.LastModified.IsZero())

	_, err = s.GetMetadata(ctx, "mosques/m1/none.jpg")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
