// Package simulator discovers booted iOS simulators and prepares them for
// screenshots through xcrun simctl.
package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"github.com/devicelab-dev/comesee-snapshots/pkg/logger"
)

// ErrNoBootedSimulator is returned by Booted when no simulator is running.
var ErrNoBootedSimulator = errors.New("no booted iOS simulator")

// simctl runs xcrun simctl with args. Tests replace it.
var simctl = func(ctx context.Context, args ...string) ([]byte, error) {
	if _, err := exec.LookPath("xcrun"); err != nil {
		return nil, fmt.Errorf("xcrun not found; install Xcode Command Line Tools: xcode-select --install")
	}
	cmd := exec.CommandContext(ctx, "xcrun", append([]string{"simctl"}, args...)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("simctl %s: %s", strings.Join(args, " "), strings.TrimSpace(string(out)))
	}
	return out, nil
}

// simctlDevicesOutput represents the JSON output from xcrun simctl list devices.
type simctlDevicesOutput struct {
	Devices map[string][]simctlDevice `json:"devices"`
}

type simctlDevice struct {
	Name        string `json:"name"`
	UDID        string `json:"udid"`
	State       string `json:"state"`
	IsAvailable bool   `json:"isAvailable"`
}

// List returns all available iOS simulators, ordered by runtime and name.
func List(ctx context.Context) ([]Device, error) {
	output, err := simctl(ctx, "list", "devices", "available", "-j")
	if err != nil {
		return nil, fmt.Errorf("failed to list simulators: %w", err)
	}
	return parseDevices(output)
}

func parseDevices(output []byte) ([]Device, error) {
	var data simctlDevicesOutput
	if err := json.Unmarshal(output, &data); err != nil {
		return nil, fmt.Errorf("failed to parse simctl output: %w", err)
	}

	var sims []Device
	for runtime, devices := range data.Devices {
		osVersion := extractOSVersion(runtime)
		for _, dev := range devices {
			if !dev.IsAvailable {
				continue
			}
			sims = append(sims, Device{
				Name:      dev.Name,
				UDID:      dev.UDID,
				Runtime:   runtime,
				OSVersion: osVersion,
				State:     dev.State,
			})
		}
	}
	sort.Slice(sims, func(i, j int) bool {
		if sims[i].Runtime != sims[j].Runtime {
			return sims[i].Runtime < sims[j].Runtime
		}
		return sims[i].Name < sims[j].Name
	})

	logger.Debug("Found %d available simulators", len(sims))
	return sims, nil
}

// Booted returns the booted simulator. With several booted, udid picks
// one; an empty udid takes the first.
func Booted(ctx context.Context, udid string) (*Device, error) {
	sims, err := List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range sims {
		if !sims[i].IsBooted() {
			continue
		}
		if udid == "" || sims[i].UDID == udid {
			return &sims[i], nil
		}
	}
	return nil, ErrNoBootedSimulator
}

// OverrideStatusBar pins the status bar of a booted simulator.
func OverrideStatusBar(ctx context.Context, udid string, sb StatusBar) error {
	logger.Info("Overriding status bar: %s", udid)
	_, err := simctl(ctx, "status_bar", udid, "override",
		"--time", sb.Time,
		"--batteryState", sb.BatteryCharge,
		"--batteryLevel", strconv.Itoa(sb.BatteryLevel),
		"--cellularBars", strconv.Itoa(sb.CellularBars),
		"--wifiBars", strconv.Itoa(sb.WifiBars),
	)
	return err
}

// ClearStatusBar removes a status bar override.
func ClearStatusBar(ctx context.Context, udid string) error {
	_, err := simctl(ctx, "status_bar", udid, "clear")
	return err
}

// extractOSVersion extracts version from runtime string.
// e.g., "com.apple.CoreSimulator.SimRuntime.iOS-17-2" -> "17.2"
func extractOSVersion(runtime string) string {
	for _, prefix := range []string{"iOS-", "watchOS-", "tvOS-", "xrOS-"} {
		if idx := strings.LastIndex(runtime, prefix); idx != -1 {
			return strings.ReplaceAll(runtime[idx+len(prefix):], "-", ".")
		}
	}
	return ""
}
