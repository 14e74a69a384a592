// Package cli provides the command-line interface for comesee-snapshots.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to snapshots.yaml (default: ./snapshots.yaml if present)",
		EnvVars: []string{"COMESEE_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "wda-url",
		Usage:   "WebDriverAgent base URL",
		EnvVars: []string{"COMESEE_WDA_URL"},
	},
	&cli.StringFlag{
		Name:    "app-id",
		Usage:   "Bundle ID of the app under test",
		EnvVars: []string{"COMESEE_APP_ID"},
	},
	&cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Directory for screenshots and the run manifest",
		EnvVars: []string{"COMESEE_OUTPUT"},
	},
	&cli.StringFlag{
		Name:    "device-name",
		Usage:   "Device name prefixed to screenshot files (e.g. \"iPhone 15 Pro\")",
		EnvVars: []string{"COMESEE_DEVICE_NAME"},
	},
	&cli.StringFlag{
		Name:    "simulator",
		Aliases: []string{"udid"},
		Usage:   "UDID of the booted simulator (default: first booted)",
		EnvVars: []string{"COMESEE_SIMULATOR"},
	},
	&cli.DurationFlag{
		Name:    "poll-interval",
		Usage:   "Interval between UI samples",
		EnvVars: []string{"COMESEE_POLL_INTERVAL"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable verbose logging",
		EnvVars: []string{"COMESEE_VERBOSE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// NewApp builds the CLI application.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "comesee-snapshots",
		Usage:   "Capture App Store screenshots of ComeSee through WebDriverAgent",
		Version: Version,
		Description: `comesee-snapshots launches ComeSee on a simulator or device that already
runs WebDriverAgent, walks home -> Share My Photos -> photo library, and saves a
screenshot at each stop.

Examples:
  comesee-snapshots run
  comesee-snapshots --device-name "iPhone 15 Pro" run --flatten -o ./fastlane/screenshots
  comesee-snapshots state --timeout 5s
  comesee-snapshots hierarchy --compact`,
		Flags: GlobalFlags,
		Before: func(c *cli.Context) error {
			if c.Bool("no-ansi") {
				colorsEnabled = false
			}
			return nil
		},
		Commands: []*cli.Command{
			runCommand,
			stateCommand,
			hierarchyCommand,
		},
	}
}

// Execute runs the CLI.
func Execute() {
	// Cancelled on SIGINT/SIGTERM, before any device connection is made.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewApp().RunContext(ctx, os.Args)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
