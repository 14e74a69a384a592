package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/comesee-snapshots/pkg/core"
	"github.com/devicelab-dev/comesee-snapshots/pkg/logger"
	"github.com/devicelab-dev/comesee-snapshots/pkg/report"
	"github.com/devicelab-dev/comesee-snapshots/pkg/simulator"
	"github.com/devicelab-dev/comesee-snapshots/pkg/snapshot"
)

// teardownTimeout bounds app termination and session cleanup, which still
// run after an interrupt.
const teardownTimeout = 10 * time.Second

var runCommand = &cli.Command{
	Name:  "run",
	Usage: "Run the snapshot scenario and save screenshots",
	Description: `Launch the app, walk home -> Share My Photos -> photo library and save
01-home, 02-photo-access and 03-photo-viewer (or 03-photo-access-empty).

Examples:
  comesee-snapshots run
  comesee-snapshots run --guest-session
  comesee-snapshots -o ./fastlane/screenshots run --flatten`,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "flatten",
			Usage: "Write directly into the output directory instead of a timestamped subfolder",
		},
		&cli.BoolFlag{
			Name:    "strict-fallback",
			Usage:   "Fail with an indeterminate state instead of assuming an empty library on timeout",
			EnvVars: []string{"COMESEE_STRICT_FALLBACK"},
		},
		&cli.BoolFlag{
			Name:  "guest-session",
			Usage: "Also capture the Join a Friend screen",
		},
		&cli.BoolFlag{
			Name:  "clean-status-bar",
			Usage: "Pin the simulator status bar to 9:41, full battery and signal",
		},
		&cli.BoolFlag{
			Name:  "no-terminate",
			Usage: "Leave the app running after the scenario",
		},
	},
	Action: runSnapshots,
}

func runSnapshots(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("strict-fallback") {
		cfg.StrictFallback = c.Bool("strict-fallback")
	}
	if c.IsSet("guest-session") {
		cfg.GuestSession = c.Bool("guest-session")
	}
	if c.IsSet("clean-status-bar") {
		cfg.CleanStatusBar = c.Bool("clean-status-bar")
	}

	outputDir := resolveOutputDir(cfg.OutputDir, c.Bool("flatten"))
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	logPath := filepath.Join(outputDir, "runner.log")
	if err := logger.Init(logPath); err != nil {
		fmt.Printf("Warning: Failed to initialize logger: %v\n", err)
	}
	defer logger.Close()

	logger.Info("=== Snapshot run started ===")
	logger.Info("Output directory: %s", outputDir)
	logger.Info("App: %s", cfg.AppID)
	logger.Info("WDA: %s", cfg.WDAURL)

	printBanner(outputDir)

	ctx := c.Context
	dev, cleanup, err := newDevice(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if cfg.CleanStatusBar {
		if restore := cleanStatusBar(ctx, dev.GetPlatformInfo()); restore != nil {
			defer restore()
		}
	}

	runner := snapshot.New(dev, cfg, outputDir)
	_, runErr := runner.Run(ctx)

	if !c.Bool("no-terminate") {
		tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), teardownTimeout)
		if err := dev.Terminate(tctx); err != nil {
			logger.Warn("terminate app: %v", err)
		}
		cancel()
	}

	if m, err := report.Load(outputDir); err == nil {
		printSummary(m)
	} else {
		logger.Warn("read manifest: %v", err)
	}

	if runErr != nil {
		return fmt.Errorf("snapshot run failed: %w", runErr)
	}
	fmt.Printf("  %s✓%s Screenshots saved to %s\n\n", color(colorGreen), color(colorReset), outputDir)
	return nil
}

// cleanStatusBar overrides the simulator status bar and returns the func
// that clears it, or nil when the device is not a simulator.
func cleanStatusBar(ctx context.Context, info *core.PlatformInfo) func() {
	if info == nil || !info.IsSimulator || info.DeviceID == "" {
		logger.Warn("clean status bar: not a simulator, skipping")
		return nil
	}
	if err := simulator.OverrideStatusBar(ctx, info.DeviceID, simulator.DefaultStatusBar); err != nil {
		logger.Warn("clean status bar: %v", err)
		return nil
	}
	udid := info.DeviceID
	return func() {
		if err := simulator.ClearStatusBar(context.Background(), udid); err != nil {
			logger.Warn("clear status bar: %v", err)
		}
	}
}
