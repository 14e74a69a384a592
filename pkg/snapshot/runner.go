// Package snapshot drives the ComeSee app through its store-listing path and
// captures a screenshot at each stop.
package snapshot

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/devicelab-dev/comesee-snapshots/pkg/config"
	"github.com/devicelab-dev/comesee-snapshots/pkg/core"
	"github.com/devicelab-dev/comesee-snapshots/pkg/interrupt"
	"github.com/devicelab-dev/comesee-snapshots/pkg/logger"
	"github.com/devicelab-dev/comesee-snapshots/pkg/poller"
	"github.com/devicelab-dev/comesee-snapshots/pkg/report"
	"github.com/devicelab-dev/comesee-snapshots/pkg/uitree"
)

// Device is the app-under-test collaborator: accessibility tree reads,
// input injection, screen capture and system alerts.
type Device interface {
	interrupt.AlertSource
	poller.Source

	Launch(ctx context.Context) error
	Terminate(ctx context.Context) error
	Hierarchy(ctx context.Context) ([]byte, error)
	Tap(ctx context.Context, el *uitree.Element) error
	TapScreen(ctx context.Context) error
	SwipeRight(ctx context.Context) error
	Screenshot(ctx context.Context) ([]byte, error)
	GetPlatformInfo() *core.PlatformInfo
}

// artifactTimeout bounds the failure screenshot and page source reads.
const artifactTimeout = 10 * time.Second

// Result summarizes a finished run.
type Result struct {
	RunID        string
	Library      poller.PollResult
	OpenedPhoto  bool
	ReturnedHome bool
	Snapshots    []string
}

// Runner executes the snapshot scenario against one device.
type Runner struct {
	dev       Device
	cfg       *config.Config
	outputDir string
	interval  time.Duration

	monitor *interrupt.Monitor
	poller  *poller.Poller
	shots   *screenshotter
	report  *report.Writer

	lastUnhandled string
	result        Result
}

// New creates a runner writing into outputDir.
func New(dev Device, cfg *config.Config, outputDir string) *Runner {
	r := &Runner{
		dev:       dev,
		cfg:       cfg,
		outputDir: outputDir,
		interval:  cfg.PollInterval,
		monitor:   interrupt.NewMonitor(),
		shots:     newScreenshotter(outputDir, cfg.DeviceName, dev),
	}
	if r.interval <= 0 {
		r.interval = poller.DefaultInterval
	}

	r.poller = poller.New(dev, poller.Indicators{
		DeniedText: cfg.Labels.DeniedText,
		EmptyText:  cfg.Labels.EmptyText,
	})
	r.poller.Interval = r.interval
	r.poller.StrictFallback = cfg.StrictFallback
	r.poller.BeforeSample = r.dispatchAlerts
	return r
}

// Monitor exposes the interruption monitor so callers can register extra
// alert handlers before Run.
func (r *Runner) Monitor() *interrupt.Monitor {
	return r.monitor
}

// Run executes the scenario. The returned error is the first fatal step
// failure; the manifest is written either way.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	info := r.dev.GetPlatformInfo()
	if info != nil && info.AppID == "" {
		withApp := *info
		withApp.AppID = r.cfg.AppID
		info = &withApp
	}
	r.report = report.NewWriter(r.outputDir, info)
	r.result = Result{RunID: r.report.RunID()}
	logger.Info("snapshot: run %s for %s", r.result.RunID, r.cfg.AppID)

	err := r.run(ctx)
	if err != nil {
		logger.Error("snapshot: run failed: %v", err)
	}
	if ferr := r.report.Finish(err); ferr != nil {
		logger.Warn("snapshot: write manifest: %v", ferr)
	}
	res := r.result
	return &res, err
}

// stepFunc runs one step and reports the snapshot it captured, if any.
type stepFunc func(ctx context.Context) (snapshot string, err error)

// plannedStep is one entry of the scenario. A failed optional step is
// recorded as a warning and the run continues.
type plannedStep struct {
	name     string
	fn       stepFunc
	optional bool
}

func (r *Runner) plan() []plannedStep {
	steps := []plannedStep{
		{name: "launch", fn: r.launch},
		{name: "wait for home", fn: r.waitForHome},
		{name: "open share my photos", fn: r.openShareMyPhotos},
		{name: "wait for photo access screen", fn: r.waitForPhotoAccessScreen},
		{name: "poll library state", fn: r.pollLibraryState},
		{name: "capture library", fn: r.captureLibrary},
		{name: "return home", fn: r.returnHome, optional: true},
	}
	if r.cfg.GuestSession {
		steps = append(steps,
			plannedStep{name: "open guest session", fn: r.openGuestSession},
			plannedStep{name: "leave guest session", fn: r.returnHome, optional: true},
		)
	}
	return steps
}

// run executes the plan. After a fatal failure the remaining steps are
// recorded as skipped so the manifest always lists the whole scenario.
func (r *Runner) run(ctx context.Context) error {
	steps := r.plan()
	for i, s := range steps {
		if err := r.record(ctx, s.name, s.fn, s.optional); err != nil {
			r.skip(steps[i+1:], s.name)
			return err
		}
	}
	return nil
}

func (r *Runner) skip(rest []plannedStep, failed string) {
	for _, s := range rest {
		logger.Debug("snapshot: step %q skipped", s.name)
		r.addStep(report.Step{
			Name:    s.name,
			Status:  core.StatusSkipped,
			Message: fmt.Sprintf("not run: %s failed", failed),
		})
	}
}

func (r *Runner) addStep(entry report.Step) {
	if err := r.report.AddStep(entry); err != nil {
		logger.Warn("snapshot: write manifest: %v", err)
	}
}

func (r *Runner) record(ctx context.Context, name string, fn stepFunc, optional bool) error {
	logger.Info("snapshot: step %q", name)
	start := time.Now()
	shot, err := fn(ctx)

	status := core.StatusForError(err)
	if err != nil && optional {
		status = core.StatusWarned
	}
	entry := report.Step{
		Name:       name,
		Status:     status,
		DurationMs: time.Since(start).Milliseconds(),
		Error:      report.NewError(err),
	}
	if shot != "" {
		entry.Snapshot = r.shots.FileName(shot)
		r.result.Snapshots = append(r.result.Snapshots, entry.Snapshot)
	}
	if err != nil {
		logger.Warn("snapshot: step %q %s: %v", name, status, err)
		if !optional && r.cfg.Artifacts.ShouldCapture(status) {
			entry.Artifacts = r.captureFailure(ctx, name)
		}
	}
	r.addStep(entry)

	if optional {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// captureFailure saves the screen and page source for a failed step. It
// still runs when ctx was cancelled, bounded by artifactTimeout.
func (r *Runner) captureFailure(ctx context.Context, name string) []string {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), artifactTimeout)
	defer cancel()

	var paths []string
	base := filepath.Join(FailuresDir, slug(name))

	if r.cfg.Artifacts.Screenshot {
		if data, err := r.dev.Screenshot(ctx); err == nil {
			if err := writeFile(filepath.Join(r.outputDir, base+".png"), data); err == nil {
				paths = append(paths, core.NewScreenshotAttachment(base+".png", data).Path)
			}
		}
	}
	if r.cfg.Artifacts.UIHierarchy {
		if data, err := r.dev.Hierarchy(ctx); err == nil {
			if err := writeFile(filepath.Join(r.outputDir, base+".xml"), data); err == nil {
				paths = append(paths, core.NewHierarchyAttachment(base+".xml", data).Path)
			}
		}
	}
	return paths
}

// snapshot captures name and returns it for the step record.
func (r *Runner) snapshot(ctx context.Context, name string) (string, error) {
	att, err := r.shots.Save(ctx, name)
	if err != nil {
		return "", err
	}
	logger.Info("snapshot: saved %s", att.Path)
	return name, nil
}
