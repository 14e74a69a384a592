package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/devicelab-dev/comesee-snapshots/pkg/core"
)

// Snapshot names, in capture order.
const (
	ShotHome        = "01-home"
	ShotPhotoAccess = "02-photo-access"
	ShotPhotoViewer = "03-photo-viewer"
	ShotAccessEmpty = "03-photo-access-empty"
	ShotGuest       = "04-guest-session"
)

// FailuresDir holds artifacts captured when a step fails.
const FailuresDir = "failures"

// screenshotter writes named screenshots into the output directory.
type screenshotter struct {
	dir    string
	prefix string
	dev    screenSource
}

type screenSource interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

func newScreenshotter(dir, deviceName string, dev screenSource) *screenshotter {
	prefix := ""
	if deviceName != "" {
		prefix = deviceName + "-"
	}
	return &screenshotter{dir: dir, prefix: prefix, dev: dev}
}

// FileName returns the file a snapshot is written to, relative to the dir.
func (s *screenshotter) FileName(name string) string {
	return s.prefix + name + ".png"
}

// Save captures the screen and writes it as name.
func (s *screenshotter) Save(ctx context.Context, name string) (core.Attachment, error) {
	data, err := s.dev.Screenshot(ctx)
	if err != nil {
		return core.Attachment{}, fmt.Errorf("capture %s: %w", name, err)
	}
	file := s.FileName(name)
	if err := writeFile(filepath.Join(s.dir, file), data); err != nil {
		return core.Attachment{}, fmt.Errorf("save %s: %w", name, err)
	}
	return core.NewScreenshotAttachment(file, data), nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

var unsafeChars = regexp.MustCompile(`[^a-z0-9]+`)

// slug turns a step name into a file-name fragment.
func slug(name string) string {
	return strings.Trim(unsafeChars.ReplaceAllString(strings.ToLower(name), "-"), "-")
}
