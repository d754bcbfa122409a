package platform

import "path/filepath"

// getMacOSInfo returns platform-specific information for macOS
func getMacOSInfo(homeDir, username string) *Info {
	return &Info{
		OS:       MacOS,
		HomeDir:  homeDir,
		Username: username,
		CacheDirs: []string{
			filepath.Join(homeDir, "Library", "Caches"),
			filepath.Join(homeDir, ".cache"),
		},
		TempDirs: []string{
			filepath.Join(homeDir, "tmp"),
			filepath.Join(homeDir, ".tmp"),
		},
		LogDirs: []string{
			filepath.Join(homeDir, "Library", "Logs"),
		},
		DownloadsDir: filepath.Join(homeDir, "Downloads"),
		PackageCacheDirs: []string{
			filepath.Join(homeDir, "Library", "Caches", "Homebrew"),
			filepath.Join(homeDir, "Library", "Caches", "pip"),
			filepath.Join(homeDir, ".npm", "_cacache"),
			filepath.Join(homeDir, ".cargo", "registry", "cache"),
			filepath.Join(homeDir, "Library", "Caches", "go-build"),
		},
		DataDir: filepath.Join(homeDir, "Library", "Application Support", "sweeper"),
	}
}
