package config

// GetDefault returns the default configuration
func GetDefault() *Config {
	return &Config{
		Passes: Passes{
			Caches:           true,
			Logs:             true,
			Packages:         true,
			FilesystemHealth: true,
			StorageRecovery:  true,
		},
		AgeThresholds: AgeThresholds{
			Downloads:    90, // days before a download counts as stale
			Logs:         30,
			OrphanedTemp: 30,
		},
		Scan: ScanConfig{
			IncludeHidden:      false,
			MaxDepth:           10,
			MaxItems:           50_000,
			LargeFileThreshold: "100MB",
			DuplicateMinSize:   "1KB",
			HashWorkers:        4,
			TimeoutMinutes:     5,
		},
		Trash: TrashConfig{
			RetentionDays: 3,
			SweepHours:    6,
		},
		Monitor: MonitorConfig{
			Enabled:       false,
			WatchPaths:    nil, // defaults to platform cache dirs
			SnapshotHours: 6,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		ProtectedPaths: nil,
		Verbose:        false,
	}
}
