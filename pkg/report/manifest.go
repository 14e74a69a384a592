// Package report writes the run manifest that accompanies the screenshots.
//
// Layout of an output directory:
//   - <prefix><name>.png: one file per snapshot, ready for store packaging
//   - manifest.json: run metadata and ordered step results
//   - failures/: screenshot and page source captured when a step fails
package report

import (
	"time"

	"github.com/devicelab-dev/comesee-snapshots/pkg/core"
)

// Version is the manifest schema version.
const Version = "1.0.0"

// ManifestFile is the manifest's name inside the output directory.
const ManifestFile = "manifest.json"

// Manifest describes one scenario run.
type Manifest struct {
	Version      string          `json:"version"`
	RunID        string          `json:"runId"`
	Status       core.StepStatus `json:"status"`
	StartTime    time.Time       `json:"startTime"`
	EndTime      *time.Time      `json:"endTime,omitempty"`
	Device       Device          `json:"device"`
	App          App             `json:"app"`
	LibraryState string          `json:"libraryState,omitempty"`
	Steps        []Step          `json:"steps"`
	Snapshots    []string        `json:"snapshots"`
	Error        *Error          `json:"error,omitempty"`
}

// Device contains device information.
type Device struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Platform    string `json:"platform"`
	OSVersion   string `json:"osVersion,omitempty"`
	IsSimulator bool   `json:"isSimulator"`
}

// App contains application information.
type App struct {
	ID string `json:"id"` // Bundle ID
}

// Step is the outcome of one scenario step.
type Step struct {
	Name       string          `json:"name"`
	Status     core.StepStatus `json:"status"`
	DurationMs int64           `json:"durationMs"`
	Snapshot   string          `json:"snapshot,omitempty"` // file name relative to the output dir
	Message    string          `json:"message,omitempty"`
	Error      *Error          `json:"error,omitempty"`
	Artifacts  []string        `json:"artifacts,omitempty"`
}

// Error is the manifest form of a step failure.
type Error struct {
	Category string `json:"category"`
	Code     string `json:"code,omitempty"`
	Message  string `json:"message"`
}

// NewError converts err for the manifest.
func NewError(err error) *Error {
	if err == nil {
		return nil
	}
	out := &Error{Category: core.ErrCategoryNone.String(), Message: err.Error()}
	if execErr := asExecutionError(err); execErr != nil {
		out.Category = execErr.Category.String()
		out.Code = execErr.Code
	}
	return out
}

// Summary counts steps by status.
func (m *Manifest) Summary() map[string]int {
	counts := make(map[string]int)
	for _, s := range m.Steps {
		counts[s.Status.String()]++
	}
	return counts
}
