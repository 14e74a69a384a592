package cli

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/comesee-snapshots/pkg/config"
	"github.com/devicelab-dev/comesee-snapshots/pkg/core"
	"github.com/devicelab-dev/comesee-snapshots/pkg/driver/wda"
	"github.com/devicelab-dev/comesee-snapshots/pkg/logger"
	"github.com/devicelab-dev/comesee-snapshots/pkg/simulator"
	"github.com/devicelab-dev/comesee-snapshots/pkg/snapshot"
)

// newDevice connects to the device described by cfg. The returned cleanup
// func releases the session. Tests replace it with a mock.
var newDevice = createWDADevice

func createWDADevice(ctx context.Context, cfg *config.Config) (snapshot.Device, func(), error) {
	printSetupStep(fmt.Sprintf("Connecting to WebDriverAgent at %s...", cfg.WDAURL))
	client := wda.NewClient(cfg.WDAURL)
	if err := wda.WaitReady(ctx, client, cfg.Timeouts.WDAReady); err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, core.ErrServerUnreachable.
			WithMessage(fmt.Sprintf("WebDriverAgent not reachable at %s", cfg.WDAURL)).
			WithCause(err)
	}
	printSetupSuccess("WebDriverAgent ready")

	info := &core.PlatformInfo{Platform: "ios", DeviceName: cfg.DeviceName}
	if cfg.Simulator != "" || isLocalWDA(cfg.WDAURL) {
		if sim, err := simulator.Booted(ctx, cfg.Simulator); err == nil {
			info = sim.PlatformInfo()
			printSetupSuccess(fmt.Sprintf("Simulator %s (iOS %s)", sim.Name, sim.OSVersion))
		} else {
			logger.Debug("simulator lookup: %v", err)
		}
	} else {
		logger.Debug("simulator lookup skipped: %s is not local", cfg.WDAURL)
	}
	driver := wda.NewDriver(client, info, cfg.AppID)
	cleanup := func() {
		if !client.HasSession() {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
		defer cancel()
		if err := client.DeleteSession(ctx); err != nil {
			logger.Debug("delete session: %v", err)
		}
	}
	return driver, cleanup, nil
}

// isLocalWDA reports whether rawURL points at this machine, where a booted
// simulator may be the device WebDriverAgent drives. A remote host is
// usually a physical device or another Mac.
func isLocalWDA(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// loadConfig reads the config file and applies global flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromDir(".")
	}
	if err != nil {
		return nil, err
	}

	if c.IsSet("wda-url") {
		cfg.WDAURL = c.String("wda-url")
	}
	if c.IsSet("app-id") {
		cfg.AppID = c.String("app-id")
	}
	if c.IsSet("output") {
		cfg.OutputDir = c.String("output")
	}
	if c.IsSet("device-name") {
		cfg.DeviceName = c.String("device-name")
	}
	if c.IsSet("simulator") {
		cfg.Simulator = c.String("simulator")
	}
	if c.IsSet("poll-interval") {
		cfg.PollInterval = c.Duration("poll-interval")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveOutputDir returns a timestamped run directory under base, or base
// itself when flatten is set (the layout fastlane expects).
func resolveOutputDir(base string, flatten bool) string {
	base = config.ResolveOutputDir(base)
	if flatten {
		return filepath.Clean(base)
	}
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(base, timestamp)
}
