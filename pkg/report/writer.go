package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devicelab-dev/comesee-snapshots/pkg/core"
)

// Writer accumulates steps and persists the manifest after every change so a
// crashed run still leaves a readable manifest behind.
type Writer struct {
	mu        sync.Mutex
	outputDir string
	manifest  *Manifest
}

// NewWriter starts a manifest for a run against info.
func NewWriter(outputDir string, info *core.PlatformInfo) *Writer {
	m := &Manifest{
		Version:   Version,
		RunID:     uuid.New().String(),
		Status:    core.StatusRunning,
		StartTime: time.Now(),
		Steps:     []Step{},
		Snapshots: []string{},
	}
	if info != nil {
		m.Device = Device{
			ID:          info.DeviceID,
			Name:        info.DeviceName,
			Platform:    info.Platform,
			OSVersion:   info.OSVersion,
			IsSimulator: info.IsSimulator,
		}
		m.App = App{ID: info.AppID}
	}
	return &Writer{outputDir: outputDir, manifest: m}
}

// RunID returns the generated run identifier.
func (w *Writer) RunID() string {
	return w.manifest.RunID
}

// AddStep records a finished step and flushes. Steps still in progress are
// rejected; the manifest only lists outcomes.
func (w *Writer) AddStep(step Step) error {
	if !step.Status.IsTerminal() {
		return fmt.Errorf("step %q: status %s is not final", step.Name, step.Status)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.manifest.Steps = append(w.manifest.Steps, step)
	if step.Snapshot != "" {
		w.manifest.Snapshots = append(w.manifest.Snapshots, step.Snapshot)
	}
	return w.flushLocked()
}

// SetLibraryState records the resolved photo-library state.
func (w *Writer) SetLibraryState(state string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.manifest.LibraryState = state
}

// Finish stamps the end time and final status and flushes.
func (w *Writer) Finish(runErr error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	w.manifest.EndTime = &now
	w.manifest.Status = core.StatusForError(runErr)
	w.manifest.Error = NewError(runErr)
	return w.flushLocked()
}

func (w *Writer) flushLocked() error {
	return atomicWriteJSON(filepath.Join(w.outputDir, ManifestFile), w.manifest)
}

// Load reads a manifest from an output directory.
func Load(outputDir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(outputDir, ManifestFile)) //#nosec G304 -- output dir
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

// atomicWriteJSON writes v to a temp file and renames it into place.
func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func asExecutionError(err error) *core.ExecutionError {
	var execErr *core.ExecutionError
	if errors.As(err, &execErr) {
		return execErr
	}
	return nil
}
