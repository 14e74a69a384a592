package report

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/comesee-snapshots/pkg/core"
)

func newTestWriter(t *testing.T) (*Writer, string) {
	dir := t.TempDir()
	w := NewWriter(dir, &core.PlatformInfo{
		Platform:    "ios",
		DeviceName:  "iPhone 15 Pro",
		DeviceID:    "SIM-1",
		IsSimulator: true,
		AppID:       "com.comesee.app",
	})
	return w, dir
}

func TestWriterFlushesEveryStep(t *testing.T) {
	w, dir := newTestWriter(t)

	_, err := uuid.Parse(w.RunID())
	require.NoError(t, err)

	require.NoError(t, w.AddStep(Step{Name: "wait for home", Status: core.StatusPassed, Snapshot: "01-home.png"}))

	m, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, core.StatusRunning, m.Status)
	assert.Equal(t, []string{"01-home.png"}, m.Snapshots)
	assert.Equal(t, "com.comesee.app", m.App.ID)
	assert.Equal(t, "iPhone 15 Pro", m.Device.Name)

	_, err = os.Stat(filepath.Join(dir, ManifestFile+".tmp"))
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")
}

func TestWriterFinishSuccess(t *testing.T) {
	w, dir := newTestWriter(t)
	w.SetLibraryState("grid")
	require.NoError(t, w.AddStep(Step{Name: "poll library state", Status: core.StatusPassed, Snapshot: "02-photo-access.png"}))
	require.NoError(t, w.Finish(nil))

	m, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPassed, m.Status)
	assert.Equal(t, "grid", m.LibraryState)
	assert.NotNil(t, m.EndTime)
	assert.Nil(t, m.Error)
}

func TestWriterFinishFailure(t *testing.T) {
	w, dir := newTestWriter(t)
	runErr := core.ErrElementNotFound.WithMessage("Home screen did not appear")
	require.NoError(t, w.AddStep(Step{Name: "wait for home", Status: core.StatusFailed, Error: NewError(runErr)}))
	require.NoError(t, w.Finish(runErr))

	m, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, m.Status)
	require.NotNil(t, m.Error)
	assert.Equal(t, "assertion", m.Error.Category)
	assert.Equal(t, "element_not_found", m.Error.Code)
	assert.Equal(t, map[string]int{"failed": 1}, m.Summary())
}

func TestNewError(t *testing.T) {
	assert.Nil(t, NewError(nil))

	plain := NewError(errors.New("socket closed"))
	assert.Equal(t, "none", plain.Category)
	assert.Empty(t, plain.Code)

	state := NewError(core.ErrIndeterminateState)
	assert.Equal(t, "state", state.Category)
	assert.Equal(t, "indeterminate_state", state.Code)
}

func TestAddStepRejectsRunningStatus(t *testing.T) {
	w, dir := newTestWriter(t)
	require.NoError(t, w.AddStep(Step{Name: "a", Status: core.StatusPassed}))

	err := w.AddStep(Step{Name: "b", Status: core.StatusRunning})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not final")

	m, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, m.Steps, 1)
	assert.Equal(t, "a", m.Steps[0].Name)
}

func TestAddStepRecordsSkipped(t *testing.T) {
	w, dir := newTestWriter(t)
	require.NoError(t, w.AddStep(Step{Name: "a", Status: core.StatusFailed}))
	require.NoError(t, w.AddStep(Step{Name: "b", Status: core.StatusSkipped, Message: "not run: a failed"}))

	m, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, core.StatusSkipped, m.Steps[1].Status)
	assert.Equal(t, "not run: a failed", m.Steps[1].Message)
	assert.Equal(t, 1, m.Summary()["skipped"])
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.Error(t, err)
}
