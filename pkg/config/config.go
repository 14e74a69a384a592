// Package config handles configuration for comesee-snapshots.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/comesee-snapshots/pkg/core"
	"github.com/devicelab-dev/comesee-snapshots/pkg/interrupt"
)

// FileName is the workspace configuration file looked up by LoadFromDir.
const FileName = "snapshots.yaml"

// Config represents the workspace configuration (snapshots.yaml).
type Config struct {
	AppID      string `yaml:"appId"`      // Bundle ID of the app under test
	WDAURL     string `yaml:"wdaUrl"`     // WebDriverAgent base URL
	OutputDir  string `yaml:"outputDir"`  // Screenshot and manifest directory
	DeviceName string `yaml:"deviceName"` // Prefix for screenshot files
	Simulator  string `yaml:"simulator"`  // UDID of the booted simulator to describe; first booted if empty

	CleanStatusBar bool `yaml:"cleanStatusBar"` // Pin the simulator status bar to 9:41 while capturing

	PollInterval   time.Duration `yaml:"pollInterval"`
	StrictFallback bool          `yaml:"strictFallback"` // Unknown instead of Empty on ambiguous timeout
	GuestSession   bool          `yaml:"guestSession"`   // Also capture the join-a-friend screen

	Timeouts  Timeouts            `yaml:"timeouts"`
	Labels    Labels              `yaml:"labels"`
	Alerts    Alerts              `yaml:"alerts"`
	Artifacts core.ArtifactConfig `yaml:"artifacts"`
}

// Timeouts bound every wait in the scenario.
type Timeouts struct {
	Home         time.Duration `yaml:"home"`         // home screen after launch
	Button       time.Duration `yaml:"button"`       // a button before tapping it
	PhotoAccess  time.Duration `yaml:"photoAccess"`  // photo-access screen after navigation
	LibraryState time.Duration `yaml:"libraryState"` // poller deadline
	Grid         time.Duration `yaml:"grid"`         // grid before opening the first photo
	PhotoTitle   time.Duration `yaml:"photoTitle"`   // photo viewer title
	BackButton   time.Duration `yaml:"backButton"`   // navigation-bar back button
	HomeReturn   time.Duration `yaml:"homeReturn"`   // home after each back attempt
	GuestScreen  time.Duration `yaml:"guestScreen"`  // guest-session title
	WDAReady     time.Duration `yaml:"wdaReady"`     // WebDriverAgent /status before giving up
}

type namedTimeout struct {
	name  string
	value time.Duration
}

// named lists every timeout under its YAML key.
func (t Timeouts) named() []namedTimeout {
	return []namedTimeout{
		{"home", t.Home},
		{"button", t.Button},
		{"photoAccess", t.PhotoAccess},
		{"libraryState", t.LibraryState},
		{"grid", t.Grid},
		{"photoTitle", t.PhotoTitle},
		{"backButton", t.BackButton},
		{"homeReturn", t.HomeReturn},
		{"guestScreen", t.GuestScreen},
		{"wdaReady", t.WDAReady},
	}
}

// Labels are the accessibility labels the scenario looks up.
type Labels struct {
	ShareButton      string `yaml:"shareButton"`
	NavigationTitle  string `yaml:"navigationTitle"`
	PermissionButton string `yaml:"permissionButton"`
	RefreshButton    string `yaml:"refreshButton"`
	EmptyText        string `yaml:"emptyText"`
	DeniedText       string `yaml:"deniedText"`
	PhotoTitlePrefix string `yaml:"photoTitlePrefix"`
	JoinButton       string `yaml:"joinButton"`
	GuestTitle       string `yaml:"guestTitle"`
}

// Alerts configures the system permission dialog handler.
type Alerts struct {
	Allow []string `yaml:"allow"`
	Deny  string   `yaml:"deny"`
}

// Default returns the configuration the ComeSee app ships with.
func Default() *Config {
	return &Config{
		AppID:        "com.comesee.app",
		WDAURL:       "http://localhost:8100",
		OutputDir:    "screenshots",
		PollInterval: 400 * time.Millisecond,
		Timeouts: Timeouts{
			Home:         10 * time.Second,
			Button:       5 * time.Second,
			PhotoAccess:  10 * time.Second,
			LibraryState: 12 * time.Second,
			Grid:         10 * time.Second,
			PhotoTitle:   5 * time.Second,
			BackButton:   2 * time.Second,
			HomeReturn:   3 * time.Second,
			GuestScreen:  10 * time.Second,
			WDAReady:     30 * time.Second,
		},
		Labels: Labels{
			ShareButton:      "Share My Photos",
			NavigationTitle:  "ComeSee",
			PermissionButton: "권한 요청",
			RefreshButton:    "권한/목록 새로고침",
			EmptyText:        "사진을 찾을 수 없습니다",
			DeniedText:       "사진 접근 권한이 필요합니다",
			PhotoTitlePrefix: "Photo",
			JoinButton:       "Join a Friend",
			GuestTitle:       "Join Session",
		},
		Alerts: Alerts{
			Allow: append([]string(nil), interrupt.DefaultAllowLabels...),
			Deny:  interrupt.DefaultDenyLabel,
		},
		Artifacts: core.DefaultArtifactConfig(),
	}
}

// Load loads configuration from a file on top of Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, core.ErrInvalidConfig.WithMessage(fmt.Sprintf("parse %s", path)).WithCause(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir looks for snapshots.yaml or snapshots.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	configPath := filepath.Join(dir, FileName)
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	configPath = filepath.Join(dir, "snapshots.yml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// No config file found, use defaults
	return Default(), nil
}

// Validate rejects configurations the scenario cannot run with.
func (c *Config) Validate() error {
	if c.AppID == "" {
		return core.ErrInvalidConfig.WithMessage("appId is required")
	}
	if c.WDAURL == "" {
		return core.ErrInvalidConfig.WithMessage("wdaUrl is required")
	}
	if c.PollInterval <= 0 {
		return core.ErrInvalidConfig.WithMessage("pollInterval must be positive")
	}
	for _, t := range c.Timeouts.named() {
		if t.value <= 0 {
			return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("timeouts.%s must be positive, got %s", t.name, t.value))
		}
	}
	if c.Timeouts.LibraryState < c.PollInterval {
		return core.ErrInvalidConfig.WithMessage("timeouts.libraryState must be at least pollInterval")
	}
	if c.Labels.ShareButton == "" || c.Labels.EmptyText == "" || c.Labels.DeniedText == "" {
		return core.ErrInvalidConfig.WithMessage("labels.shareButton, labels.emptyText and labels.deniedText are required")
	}
	return nil
}
