package simulator

import "github.com/devicelab-dev/comesee-snapshots/pkg/core"

// Device is an available iOS simulator from simctl list.
type Device struct {
	Name      string // e.g., "iPhone 15 Pro"
	UDID      string // e.g., "A1B2C3D4-E5F6-..."
	Runtime   string // e.g., "com.apple.CoreSimulator.SimRuntime.iOS-17-2"
	OSVersion string // e.g., "17.2" (extracted from Runtime)
	State     string // "Shutdown", "Booted", etc.
}

// IsBooted reports whether the simulator is running.
func (d Device) IsBooted() bool {
	return d.State == "Booted"
}

// PlatformInfo describes the simulator for run reports.
func (d Device) PlatformInfo() *core.PlatformInfo {
	return &core.PlatformInfo{
		Platform:    "ios",
		OSVersion:   d.OSVersion,
		DeviceName:  d.Name,
		DeviceID:    d.UDID,
		IsSimulator: true,
	}
}

// StatusBar is the status bar shown in store screenshots.
type StatusBar struct {
	Time          string // e.g., "9:41"
	BatteryLevel  int
	CellularBars  int
	WifiBars      int
	BatteryCharge string // "charged", "charging", "discharging"
}

// DefaultStatusBar is Apple's marketing status bar.
var DefaultStatusBar = StatusBar{
	Time:          "9:41",
	BatteryLevel:  100,
	CellularBars:  4,
	WifiBars:      3,
	BatteryCharge: "charged",
}
