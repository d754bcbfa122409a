package platform

import "path/filepath"

// getLinuxInfo returns platform-specific information for Linux
func getLinuxInfo(homeDir, username string) *Info {
	return &Info{
		OS:       Linux,
		HomeDir:  homeDir,
		Username: username,
		CacheDirs: []string{
			filepath.Join(homeDir, ".cache"),
			filepath.Join(homeDir, ".thumbnails"),
		},
		TempDirs: []string{
			filepath.Join(homeDir, "tmp"),
			filepath.Join(homeDir, ".tmp"),
			filepath.Join(homeDir, ".local", "share", "Trash"),
		},
		LogDirs: []string{
			filepath.Join(homeDir, ".local", "share"),
			filepath.Join(homeDir, ".local", "state"),
		},
		DownloadsDir: filepath.Join(homeDir, "Downloads"),
		PackageCacheDirs: []string{
			"/var/cache/apt/archives",
			"/var/cache/yum",
			"/var/cache/dnf",
			"/var/cache/pacman/pkg",
			filepath.Join(homeDir, ".cache", "pip"),
			filepath.Join(homeDir, ".npm", "_cacache"),
			filepath.Join(homeDir, ".cargo", "registry", "cache"),
			filepath.Join(homeDir, ".cache", "go-build"),
		},
		DataDir: filepath.Join(homeDir, ".local", "share", "sweeper"),
	}
}
