package config

import (
	"os"
	"path/filepath"
	"sync"
)

const envHome = "COMESEE_SNAPSHOTS_HOME"

var (
	homeOnce sync.Once
	homeDir  string

	executable = os.Executable
)

// GetHome returns the comesee-snapshots home directory.
//
// Resolution order:
//  1. $COMESEE_SNAPSHOTS_HOME environment variable
//  2. Parent of the binary's directory (if binary is in <home>/bin/)
//  3. Current working directory (development fallback)
func GetHome() string {
	homeOnce.Do(func() {
		homeDir = resolveHome()
	})
	return homeDir
}

// ResolveOutputDir makes a relative output directory absolute. It is
// anchored at $COMESEE_SNAPSHOTS_HOME when that is set, and at the working
// directory otherwise; the binary's location never moves output.
func ResolveOutputDir(dir string) string {
	if dir == "" {
		dir = "screenshots"
	}
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	if env := os.Getenv(envHome); env != "" {
		return filepath.Join(env, dir)
	}
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return filepath.Clean(dir)
}

func resolveHome() string {
	// 1. Environment variable
	if env := os.Getenv(envHome); env != "" {
		return env
	}

	// 2. Binary-relative: if binary is at <home>/bin/comesee-snapshots, use <home>
	if execPath, err := executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
			execPath = resolved
		}
		binDir := filepath.Dir(execPath)
		if filepath.Base(binDir) == "bin" {
			return filepath.Dir(binDir)
		}
	}

	// 3. Current working directory
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}

	return "."
}

// ResetHome resets the cached home directory (for testing).
func ResetHome() {
	homeOnce = sync.Once{}
	homeDir = ""
}
