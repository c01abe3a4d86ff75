package service

import (
	"aerovision_backend/internal/config"
	"aerovision_backend/internal/util"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocalMedia(t *testing.T) (*MediaService, string) {
	t.Helper()
	root := t.TempDir()
	storage := NewStorageService(&config.StorageConfig{Type: util.StorageLocal, LocalPath: root})
	return NewMediaService(storage, 5), root
}

func TestStorageKeyFromURL(t *testing.T) {
	media, _ := newLocalMedia(t)

	key, ok := media.Storage.KeyFromURL("/uploads/courses/images/2026/10/a.png")
	require.True(t, ok)
	assert.Equal(t, "courses/images/2026/10/a.png", key)

	for _, url := range []string{
		"",
		"/uploads/",
		"https://cdn.example.com/courses/images/a.png",
		"/uploads/courses/../configs/config.yaml",
		"/uploads/other/a.png",
	} {
		_, ok := media.Storage.KeyFromURL(url)
		assert.False(t, ok, url)
	}
}

func TestMediaDeleteRemovesVideoAndPoster(t *testing.T) {
	media, root := newLocalMedia(t)
	ctx := context.Background()

	url, err := media.Storage.Upload(ctx, "courses/videos/2026/10/clip.mp4", strings.NewReader("video"), 5, "video/mp4")
	require.NoError(t, err)
	_, err = media.Storage.Upload(ctx, "courses/videos/2026/10/clip.jpg", strings.NewReader("poster"), 6, "image/jpeg")
	require.NoError(t, err)

	require.NoError(t, media.Delete(ctx, url))
	assert.NoFileExists(t, filepath.Join(root, "courses/videos/2026/10/clip.mp4"))
	assert.NoFileExists(t, filepath.Join(root, "courses/videos/2026/10/clip.jpg"))

	assert.ErrorIs(t, media.Delete(ctx, url), util.ErrNotFound)
	assert.ErrorIs(t, media.Delete(ctx, "/uploads/../secret"), util.ErrInvalidUpload)
}

func TestMediaDeleteImageKeepsSiblings(t *testing.T) {
	media, root := newLocalMedia(t)
	ctx := context.Background()

	url, err := media.Storage.Upload(ctx, "courses/images/2026/10/a.png", strings.NewReader("png"), 3, "image/png")
	require.NoError(t, err)
	_, err = media.Storage.Upload(ctx, "courses/images/2026/10/b.png", strings.NewReader("png"), 3, "image/png")
	require.NoError(t, err)

	require.NoError(t, media.Delete(ctx, url))
	_, err = os.Stat(filepath.Join(root, "courses/images/2026/10/b.png"))
	assert.NoError(t, err)
}
