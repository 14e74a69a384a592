package core

// Bounds represents element position and size in screen points.
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Center returns the center point of the bounds
func (b Bounds) Center() (int, int) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// IsEmpty reports whether the bounds have no area.
func (b Bounds) IsEmpty() bool {
	return b.Width <= 0 || b.Height <= 0
}

// PlatformInfo contains device and platform details
type PlatformInfo struct {
	Platform     string `json:"platform"`               // ios
	OSVersion    string `json:"osVersion"`              // e.g., "17.0"
	DeviceName   string `json:"deviceName"`             // e.g., "iPhone 15 Pro"
	DeviceID     string `json:"deviceId"`               // Unique device identifier
	IsSimulator  bool   `json:"isSimulator"`            // Simulator vs real device
	ScreenWidth  int    `json:"screenWidth,omitempty"`  // Screen width in points
	ScreenHeight int    `json:"screenHeight,omitempty"` // Screen height in points
	AppID        string `json:"appId,omitempty"`        // Bundle ID
}

// Alert is a system dialog that interrupts the app under test.
type Alert struct {
	Text    string   `json:"text"`
	Buttons []string `json:"buttons"`
}

// HasButton reports whether the alert offers a button with the exact label.
func (a Alert) HasButton(label string) bool {
	for _, b := range a.Buttons {
		if b == label {
			return true
		}
	}
	return false
}
