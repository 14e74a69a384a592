package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/comesee-snapshots/pkg/logger"
	"github.com/devicelab-dev/comesee-snapshots/pkg/poller"
	"github.com/devicelab-dev/comesee-snapshots/pkg/uitree"
)

var stateCommand = &cli.Command{
	Name:  "state",
	Usage: "Classify the photo library screen currently on display",
	Description: `Poll the visible screen until it shows the photo grid, the empty
message or the permission message, then print the result.

Examples:
  comesee-snapshots state
  comesee-snapshots state --timeout 3s --json`,
	Flags: []cli.Flag{
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "How long to poll before falling back (default: timeouts.libraryState)",
		},
		&cli.BoolFlag{
			Name:  "strict-fallback",
			Usage: "Report unknown instead of empty when nothing resolves",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Print the result as JSON",
		},
	},
	Action: runState,
}

var hierarchyCommand = &cli.Command{
	Name:  "hierarchy",
	Usage: "Print the accessibility tree of the current screen",
	Description: `Print the page source of the current screen as WebDriverAgent XML, or as
an indented outline with --compact.

Examples:
  comesee-snapshots hierarchy
  comesee-snapshots hierarchy --compact`,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "compact",
			Usage: "Print one line per element",
		},
	},
	Action: runHierarchy,
}

func runState(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.Bool("verbose") {
		logger.InitWriter(c.App.ErrWriter)
	}

	dev, cleanup, err := newDevice(c.Context, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	timeout := cfg.Timeouts.LibraryState
	if c.IsSet("timeout") {
		timeout = c.Duration("timeout")
	}

	p := poller.New(dev, poller.Indicators{
		DeniedText: cfg.Labels.DeniedText,
		EmptyText:  cfg.Labels.EmptyText,
	})
	p.Interval = cfg.PollInterval
	p.StrictFallback = cfg.StrictFallback || c.Bool("strict-fallback")

	res := p.Wait(c.Context, timeout)

	out := c.App.Writer
	if c.Bool("json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(stateOutput{
			State:     res.State,
			TimedOut:  res.TimedOut,
			Polls:     res.Polls,
			ElapsedMs: res.Elapsed.Milliseconds(),
		})
	}
	fmt.Fprintf(out, "%s (polls: %d, elapsed: %s", res.State, res.Polls, formatDuration(res.Elapsed.Milliseconds()))
	if res.TimedOut {
		fmt.Fprint(out, ", timed out")
	}
	fmt.Fprintln(out, ")")
	return nil
}

type stateOutput struct {
	State     poller.ScreenState `json:"state"`
	TimedOut  bool               `json:"timedOut"`
	Polls     int                `json:"polls"`
	ElapsedMs int64              `json:"elapsedMs"`
}

func runHierarchy(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	dev, cleanup, err := newDevice(c.Context, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	out := c.App.Writer
	if !c.Bool("compact") {
		data, err := dev.Hierarchy(c.Context)
		if err != nil {
			return fmt.Errorf("read hierarchy: %w", err)
		}
		_, err = out.Write(data)
		return err
	}

	root, err := dev.Source(c.Context)
	if err != nil {
		return fmt.Errorf("read hierarchy: %w", err)
	}
	fmt.Fprint(out, outline(root))
	return nil
}

// outline renders one line per element: type, label and frame.
func outline(root *uitree.Element) string {
	var b strings.Builder
	var walk func(*uitree.Element, int)
	walk = func(e *uitree.Element, depth int) {
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString(strings.TrimPrefix(e.Type, "XCUIElementType"))
		if e.Label != "" {
			fmt.Fprintf(&b, " %q", e.Label)
		} else if e.Name != "" {
			fmt.Fprintf(&b, " #%s", e.Name)
		}
		if !e.Bounds.IsEmpty() {
			fmt.Fprintf(&b, " [%d,%d %dx%d]", e.Bounds.X, e.Bounds.Y, e.Bounds.Width, e.Bounds.Height)
		}
		b.WriteByte('\n')
		for _, c := range e.Children {
			walk(c, depth+1)
		}
	}
	walk(root, 0)
	return b.String()
}
