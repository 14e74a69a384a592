package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/comesee-snapshots/pkg/driver/mock"
)

func TestScreenshotterFileName(t *testing.T) {
	assert.Equal(t, "01-home.png", newScreenshotter("", "", nil).FileName(ShotHome))
	assert.Equal(t, "iPad Pro-01-home.png", newScreenshotter("", "iPad Pro", nil).FileName(ShotHome))
}

func TestScreenshotterSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	dev := mock.New(mock.Config{Home: "home"})
	require.NoError(t, dev.Launch(context.Background()))

	att, err := newScreenshotter(dir, "", dev).Save(context.Background(), ShotPhotoAccess)
	require.NoError(t, err)
	assert.Equal(t, "02-photo-access.png", att.Path)

	data, err := os.ReadFile(filepath.Join(dir, att.Path))
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG\r\n\x1a\nhome", string(data))
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "wait-for-home", slug("wait for home"))
	assert.Equal(t, "open-share-my-photos", slug("  Open Share-My Photos! "))
}
