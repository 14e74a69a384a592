package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/devicelab-dev/comesee-snapshots/pkg/core"
	"github.com/devicelab-dev/comesee-snapshots/pkg/report"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// Slow step threshold in milliseconds (5 seconds)
const slowThresholdMs = 5000

// colorsEnabled determines if ANSI colors should be used
var colorsEnabled = true

func init() {
	// Respect NO_COLOR environment variable
	if os.Getenv("NO_COLOR") != "" {
		colorsEnabled = false
		return
	}
	// Check if stdout is a terminal
	if fileInfo, err := os.Stdout.Stat(); err == nil {
		if (fileInfo.Mode() & os.ModeCharDevice) == 0 {
			colorsEnabled = false
		}
	}
}

// color returns the color code if colors are enabled, empty string otherwise
func color(c string) string {
	if colorsEnabled {
		return c
	}
	return ""
}

func printBanner(outputDir string) {
	fmt.Println()
	fmt.Printf("  %scomesee-snapshots %s%s\n", color(colorBold), Version, color(colorReset))
	fmt.Printf("  %soutput: %s%s\n", color(colorGray), outputDir, color(colorReset))
	fmt.Println(strings.Repeat("─", 60))
}

// printSetupStep prints a setup step with spinner-style prefix
func printSetupStep(msg string) {
	fmt.Printf("  %s⏳%s %s\n", color(colorCyan), color(colorReset), msg)
}

// printSetupSuccess prints a success message for setup
func printSetupSuccess(msg string) {
	fmt.Printf("  %s✓%s %s\n", color(colorGreen), color(colorReset), msg)
}

func printStep(s report.Step) {
	durStr := formatDuration(s.DurationMs)
	switch {
	case s.Status == core.StatusSkipped:
		fmt.Printf("    %s-%s %s %s(%s)%s\n", color(colorGray), color(colorReset), s.Name, color(colorGray), s.Message, color(colorReset))
		return
	case !s.Status.IsSuccess():
		fmt.Printf("    %s✗%s %s (%s)\n", color(colorRed), color(colorReset), s.Name, durStr)
	case s.Status == core.StatusWarned:
		fmt.Printf("    %s⚠%s %s (%s)\n", color(colorYellow), color(colorReset), s.Name, durStr)
	default:
		symbol, symbolColor, durColor := "✓", color(colorGreen), ""
		if s.DurationMs >= slowThresholdMs {
			symbol, symbolColor, durColor = "⚠", color(colorYellow), color(colorYellow)
		}
		fmt.Printf("    %s%s%s %s %s(%s)%s\n",
			symbolColor, symbol, color(colorReset), s.Name, durColor, durStr, color(colorReset))
	}
	if s.Snapshot != "" {
		fmt.Printf("      %s╰─%s %s\n", color(colorGray), color(colorReset), s.Snapshot)
	}
	if s.Error != nil {
		fmt.Printf("      %s╰─%s %s\n", color(colorGray), color(colorReset), s.Error.Message)
	}
}

func printSummary(m *report.Manifest) {
	for _, s := range m.Steps {
		printStep(s)
	}

	var totalMs int64
	for _, s := range m.Steps {
		totalMs += s.DurationMs
	}
	counts := m.Summary()

	fmt.Println()
	if n := counts[core.StatusPassed.String()]; n > 0 {
		fmt.Printf("  %s%d steps passing%s (%s)\n", color(colorGreen), n, color(colorReset), formatDuration(totalMs))
	}
	if n := counts[core.StatusWarned.String()]; n > 0 {
		fmt.Printf("  %s%d steps with warnings%s\n", color(colorYellow), n, color(colorReset))
	}
	if n := counts[core.StatusFailed.String()] + counts[core.StatusErrored.String()]; n > 0 {
		fmt.Printf("  %s%d steps failing%s\n", color(colorRed), n, color(colorReset))
	}
	if n := counts[core.StatusSkipped.String()]; n > 0 {
		fmt.Printf("  %s%d steps skipped%s\n", color(colorGray), n, color(colorReset))
	}
	if m.LibraryState != "" {
		fmt.Printf("  library: %s%s%s\n", color(colorBold), m.LibraryState, color(colorReset))
	}
	fmt.Printf("  %d screenshots\n", len(m.Snapshots))
	fmt.Println()
}

// formatDuration formats milliseconds to a human-readable string.
// Shows milliseconds for values < 1s, seconds otherwise.
func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	mins := ms / 60000
	secs := (ms % 60000) / 1000
	return fmt.Sprintf("%dm %ds", mins, secs)
}
