// Package filesystem resolves where pmpilot keeps local state.
package filesystem

import (
	"os"
	"path/filepath"
	"strings"
)

// HomeEnv relocates the home directory pmpilot resolves "~" against.
const HomeEnv = "PMPILOT_HOME"

// UserHomeDir returns PMPILOT_HOME when set, else the current user's home
// directory, else ".".
func UserHomeDir() string {
	if home := strings.TrimSpace(os.Getenv(HomeEnv)); home != "" {
		return home
	}
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}

// ExpandHome resolves a leading "~/" against UserHomeDir and cleans the rest.
func ExpandHome(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if path == "~" {
		return UserHomeDir()
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(UserHomeDir(), path[2:])
	}
	return filepath.Clean(path)
}

// EnsureParentDir creates the directory that will hold path.
func EnsureParentDir(path string, perm os.FileMode) error {
	return os.MkdirAll(filepath.Dir(path), perm)
}
