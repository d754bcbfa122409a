package platform

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
)

// Platform represents the operating system platform
type Platform string

const (
	MacOS   Platform = "darwin"
	Linux   Platform = "linux"
	Unknown Platform = "unknown"
)

// Info contains platform-specific directory locations used by the scanner
// and the trash engine.
type Info struct {
	OS           Platform
	HomeDir      string
	Username     string
	CacheDirs    []string
	TempDirs     []string
	LogDirs      []string
	DownloadsDir string
	// PackageCacheDirs are the package-manager cache locations permitted
	// for cleanup even though they fall outside the home directory.
	PackageCacheDirs []string
	// DataDir holds the record store and quarantine root.
	DataDir string
}

// Detect returns the current platform
func Detect() Platform {
	switch runtime.GOOS {
	case "darwin":
		return MacOS
	case "linux":
		return Linux
	default:
		return Unknown
	}
}

// GetInfo returns platform-specific information for the current user.
func GetInfo() (*Info, error) {
	p := Detect()

	currentUser, err := user.Current()
	if err != nil {
		return nil, err
	}

	homeDir := currentUser.HomeDir
	username := currentUser.Username

	var info *Info
	switch p {
	case MacOS:
		info = getMacOSInfo(homeDir, username)
	case Linux:
		info = getLinuxInfo(homeDir, username)
	default:
		return nil, ErrUnsupportedPlatform
	}

	return info, nil
}

// QuarantineRoot returns the directory holding quarantined objects.
func (i *Info) QuarantineRoot() string {
	return filepath.Join(i.DataDir, "trash")
}

// StorePath returns the location of the structured record store.
func (i *Info) StorePath() string {
	return filepath.Join(i.DataDir, "sweeper.db")
}

// GetUserConfigDir returns the user's config directory.
func GetUserConfigDir() (string, error) {
	if configDir := os.Getenv("XDG_CONFIG_HOME"); configDir != "" && Detect() == Linux {
		return configDir, nil
	}
	currentUser, err := user.Current()
	if err != nil {
		return "", err
	}
	switch Detect() {
	case MacOS:
		return filepath.Join(currentUser.HomeDir, "Library", "Application Support"), nil
	case Linux:
		return filepath.Join(currentUser.HomeDir, ".config"), nil
	default:
		return "", ErrUnsupportedPlatform
	}
}

// Errors
var ErrUnsupportedPlatform = &PlatformError{"unsupported platform"}

// PlatformError represents a platform-related error
type PlatformError struct {
	Message string
}

func (e *PlatformError) Error() string {
	return e.Message
}
