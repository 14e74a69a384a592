package wda

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/devicelab-dev/comesee-snapshots/pkg/core"
	"github.com/devicelab-dev/comesee-snapshots/pkg/logger"
	"github.com/devicelab-dev/comesee-snapshots/pkg/uitree"
)

// Swipe tuning for edge-swipe back navigation.
const (
	swipeDuration   = 0.3 // seconds
	swipeStartRatio = 0.02
	swipeEndRatio   = 0.8
)

// infoTimeout bounds the window size lookup behind GetPlatformInfo.
const infoTimeout = 5 * time.Second

// Driver drives the app under test through WebDriverAgent.
type Driver struct {
	client   *Client
	info     *core.PlatformInfo
	bundleID string

	sizeMu sync.Mutex
	width  int
	height int
}

// NewDriver creates a new WDA driver for bundleID.
func NewDriver(client *Client, info *core.PlatformInfo, bundleID string) *Driver {
	if info == nil {
		info = &core.PlatformInfo{Platform: "ios"}
	}
	info.AppID = bundleID
	return &Driver{
		client:   client,
		info:     info,
		bundleID: bundleID,
	}
}

// Launch starts the app, creating a session on first use.
func (d *Driver) Launch(ctx context.Context) error {
	if !d.client.HasSession() {
		logger.Info("wda: creating session for %s", d.bundleID)
		if err := d.client.CreateSession(ctx, d.bundleID); err != nil {
			return core.ErrServerUnreachable.WithCause(err)
		}
		return nil
	}
	logger.Info("wda: launching %s", d.bundleID)
	if err := d.client.LaunchApp(ctx, d.bundleID); err != nil {
		return core.ErrAppNotRunning.WithCause(err)
	}
	return nil
}

// Terminate stops the app and ends the session.
func (d *Driver) Terminate(ctx context.Context) error {
	if !d.client.HasSession() {
		return nil
	}
	if err := d.client.TerminateApp(ctx, d.bundleID); err != nil {
		logger.Warn("wda: terminate %s: %v", d.bundleID, err)
	}
	return d.client.DeleteSession(ctx)
}

// Source returns the current accessibility tree.
func (d *Driver) Source(ctx context.Context) (*uitree.Element, error) {
	xmlData, err := d.client.Source(ctx)
	if err != nil {
		return nil, err
	}
	return ParsePageSource(xmlData)
}

// Hierarchy returns the raw page source XML.
func (d *Driver) Hierarchy(ctx context.Context) ([]byte, error) {
	source, err := d.client.Source(ctx)
	if err != nil {
		return nil, err
	}
	return []byte(source), nil
}

// Tap taps the center of el.
func (d *Driver) Tap(ctx context.Context, el *uitree.Element) error {
	if el == nil {
		return fmt.Errorf("tap: nil element")
	}
	if el.Bounds.IsEmpty() {
		return fmt.Errorf("tap %s %q: element has no bounds", el.Type, el.Label)
	}
	x, y := boundsCenter(el.Bounds)
	logger.Debug("wda: tap %s %q at (%.0f, %.0f)", el.Type, el.Label, x, y)
	return d.client.Tap(ctx, x, y)
}

// TapScreen taps the center of the window.
func (d *Driver) TapScreen(ctx context.Context) error {
	w, h, err := d.windowSize(ctx)
	if err != nil {
		return err
	}
	return d.client.Tap(ctx, float64(w)/2, float64(h)/2)
}

// SwipeRight swipes from the left edge across the screen, which pops the
// navigation stack.
func (d *Driver) SwipeRight(ctx context.Context) error {
	w, h, err := d.windowSize(ctx)
	if err != nil {
		return err
	}
	y := float64(h) / 2
	return d.client.Swipe(ctx, float64(w)*swipeStartRatio, y, float64(w)*swipeEndRatio, y, swipeDuration)
}

// Screenshot captures the current screen as PNG.
func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	return d.client.Screenshot(ctx)
}

// Alert returns the visible system alert, or nil.
func (d *Driver) Alert(ctx context.Context) (*core.Alert, error) {
	text, err := d.client.AlertText(ctx)
	if err != nil {
		if IsNoSuchAlert(err) {
			return nil, nil
		}
		return nil, err
	}
	buttons, err := d.client.AlertButtons(ctx)
	if err != nil {
		if IsNoSuchAlert(err) {
			return nil, nil
		}
		return nil, err
	}
	return &core.Alert{Text: text, Buttons: buttons}, nil
}

// TapAlertButton taps the named button on the visible alert.
func (d *Driver) TapAlertButton(ctx context.Context, label string) error {
	return d.client.AcceptAlert(ctx, label)
}

// GetPlatformInfo returns device/platform information.
func (d *Driver) GetPlatformInfo() *core.PlatformInfo {
	ctx, cancel := context.WithTimeout(context.Background(), infoTimeout)
	defer cancel()
	if w, h, err := d.windowSize(ctx); err == nil {
		d.info.ScreenWidth = w
		d.info.ScreenHeight = h
	}
	return d.info
}

func (d *Driver) windowSize(ctx context.Context) (int, int, error) {
	d.sizeMu.Lock()
	defer d.sizeMu.Unlock()

	if d.width > 0 && d.height > 0 {
		return d.width, d.height, nil
	}
	w, h, err := d.client.WindowSize(ctx)
	if err != nil {
		return 0, 0, err
	}
	d.width, d.height = w, h
	return w, h, nil
}
