// Package mock provides a scripted in-memory device for testing without a
// simulator or WebDriverAgent.
package mock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/devicelab-dev/comesee-snapshots/pkg/core"
	"github.com/devicelab-dev/comesee-snapshots/pkg/uitree"
)

// ErrAlertBlocking is returned by interactions while an alert is visible.
var ErrAlertBlocking = errors.New("mock: interaction blocked by system alert")

// Screen is a named app screen. Successive Source calls walk Frames; the
// last frame sticks, which models content that settles after loading.
type Screen struct {
	Frames []*uitree.Element
}

// Config configures mock device behavior.
type Config struct {
	Home    string             // screen shown after Launch
	Screens map[string]*Screen // by name
	// Taps maps "<screen>|<label>" to the destination screen.
	Taps map[string]string
	// Back maps a screen to the one a right swipe returns to.
	Back map[string]string
	// Alerts are shown one at a time, starting at Launch.
	Alerts []core.Alert

	Platform   string
	DeviceName string
	SourceErr  error

	// SourceDelay stalls every Source call, like a hung WDA request.
	SourceDelay time.Duration
}

// Device is a mock implementation of the snapshot device contract.
type Device struct {
	Config Config

	mu      sync.Mutex
	current string
	frame   int
	alerts  []core.Alert

	// Recorded interactions
	Launches    int
	Terminates  int
	Tapped      []string
	ScreenTaps  int
	Swipes      int
	AlertTaps   []string
	Screenshots int
	SourceCalls int
}

// New creates a new mock device.
func New(cfg Config) *Device {
	if cfg.Platform == "" {
		cfg.Platform = "mock"
	}
	if cfg.DeviceName == "" {
		cfg.DeviceName = "mock-device"
	}
	return &Device{Config: cfg}
}

// Key builds a Taps map key.
func Key(screen, label string) string {
	return screen + "|" + label
}

// Current returns the name of the visible screen.
func (d *Device) Current() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// Launch shows the home screen and queues configured alerts.
func (d *Device) Launch(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Launches++
	d.show(d.Config.Home)
	d.alerts = append([]core.Alert(nil), d.Config.Alerts...)
	return nil
}

// Terminate records app termination.
func (d *Device) Terminate(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Terminates++
	d.current = ""
	return nil
}

// Source returns the current frame of the visible screen. While an alert is
// up only the alert is returned, so app lookups fail.
func (d *Device) Source(ctx context.Context) (*uitree.Element, error) {
	if err := stall(ctx, d.Config.SourceDelay); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.SourceCalls++

	if d.Config.SourceErr != nil {
		return nil, d.Config.SourceErr
	}
	if len(d.alerts) > 0 {
		return alertTree(d.alerts[0]), nil
	}
	screen := d.Config.Screens[d.current]
	if screen == nil || len(screen.Frames) == 0 {
		return uitree.New(uitree.TypeApplication, ""), nil
	}
	f := screen.Frames[d.frame]
	if d.frame < len(screen.Frames)-1 {
		d.frame++
	}
	return f, nil
}

// Hierarchy renders the current screen as indented text.
func (d *Device) Hierarchy(ctx context.Context) ([]byte, error) {
	root, err := d.Source(ctx)
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	var walk func(*uitree.Element, int)
	walk = func(e *uitree.Element, depth int) {
		fmt.Fprintf(&b, "%s%s %q\n", strings.Repeat("  ", depth), e.Type, e.Label)
		for _, c := range e.Children {
			walk(c, depth+1)
		}
	}
	walk(root, 0)
	return []byte(b.String()), nil
}

// Tap navigates according to Config.Taps.
func (d *Device) Tap(ctx context.Context, el *uitree.Element) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.alerts) > 0 {
		return ErrAlertBlocking
	}

	label := el.Label
	if label == "" {
		label = el.Name
	}
	d.Tapped = append(d.Tapped, label)
	if dest, ok := d.Config.Taps[Key(d.current, label)]; ok {
		d.show(dest)
	}
	return nil
}

// TapScreen records a tap on the app's root element.
func (d *Device) TapScreen(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ScreenTaps++
	return nil
}

// SwipeRight navigates according to Config.Back.
func (d *Device) SwipeRight(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.alerts) > 0 {
		return ErrAlertBlocking
	}
	d.Swipes++
	if dest, ok := d.Config.Back[d.current]; ok {
		d.show(dest)
	}
	return nil
}

// Screenshot returns a tiny PNG header tagged with the screen name.
func (d *Device) Screenshot(ctx context.Context) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Screenshots++
	return append([]byte("\x89PNG\r\n\x1a\n"), d.current...), nil
}

// Alert returns the visible alert, or nil.
func (d *Device) Alert(ctx context.Context) (*core.Alert, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.alerts) == 0 {
		return nil, nil
	}
	a := d.alerts[0]
	return &a, nil
}

// TapAlertButton dismisses the visible alert when it offers label.
func (d *Device) TapAlertButton(ctx context.Context, label string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.alerts) == 0 {
		return errors.New("mock: no alert visible")
	}
	if !d.alerts[0].HasButton(label) {
		return fmt.Errorf("mock: alert has no button %q", label)
	}
	d.AlertTaps = append(d.AlertTaps, label)
	d.alerts = d.alerts[1:]
	return nil
}

// GetPlatformInfo returns mock platform info.
func (d *Device) GetPlatformInfo() *core.PlatformInfo {
	return &core.PlatformInfo{
		Platform:    d.Config.Platform,
		DeviceName:  d.Config.DeviceName,
		DeviceID:    "mock-udid",
		IsSimulator: true,
	}
}

// stall blocks for delay or until ctx is done.
func stall(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (d *Device) show(screen string) {
	d.current = screen
	d.frame = 0
}

func alertTree(a core.Alert) *uitree.Element {
	alert := uitree.New(uitree.TypeAlert, a.Text)
	for _, b := range a.Buttons {
		alert.Append(uitree.New(uitree.TypeButton, b))
	}
	return uitree.New(uitree.TypeApplication, "", alert)
}
