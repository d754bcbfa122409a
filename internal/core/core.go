// Package core exposes sweeper's operations behind one facade. Every
// entry point takes a context, applies the timeout class for its kind of
// work and collapses concurrent duplicate calls, so callers (CLI or
// daemon) can invoke it without coordinating.
package core

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"golang.org/x/sync/singleflight"

	"github.com/dverbeek/sweeper/internal/analytics"
	"github.com/dverbeek/sweeper/internal/classify"
	"github.com/dverbeek/sweeper/internal/config"
	"github.com/dverbeek/sweeper/internal/pkgmgr"
	"github.com/dverbeek/sweeper/internal/platform"
	"github.com/dverbeek/sweeper/internal/scanner"
	"github.com/dverbeek/sweeper/internal/security"
	"github.com/dverbeek/sweeper/internal/store"
	"github.com/dverbeek/sweeper/internal/trash"
)

// Timeout classes. Quick lookups get seconds, scans get longer, and
// anything that shells out to the package manager gets the long class.
const (
	quickTimeout = 10 * time.Second
	scanTimeout  = 15 * time.Minute
	longTimeout  = 5 * time.Minute
)

// App wires the subsystems together.
type App struct {
	cfg       *config.Config
	platform  *platform.Info
	validator *security.Validator
	scanner   *scanner.Scanner
	store     *store.Store
	trash     *trash.Engine
	packages  *pkgmgr.Resolver
	analytics *analytics.Analyzer

	flight singleflight.Group
}

// New assembles the application. The store is opened (and migrated) under
// the platform data directory, and quarantine state is reconciled before
// any operation runs.
func New(cfg *config.Config, info *platform.Info) (*App, error) {
	validator := security.NewValidator(info.HomeDir, info.PackageCacheDirs)
	validator.AddProtectedPath(info.DataDir)
	for _, p := range cfg.ProtectedPaths {
		validator.AddProtectedPath(p)
	}

	sc, err := scanner.New(info, validator, cfg)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(info.StorePath())
	if err != nil {
		return nil, err
	}

	engine, err := trash.NewEngine(info.QuarantineRoot(), st, validator, cfg.Trash.RetentionDays)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	if err := engine.Reconcile(context.Background()); err != nil {
		log.Warn().Err(err).Msg("quarantine reconciliation failed")
	}

	return &App{
		cfg:       cfg,
		platform:  info,
		validator: validator,
		scanner:   sc,
		store:     st,
		trash:     engine,
		packages:  pkgmgr.NewResolver(),
		analytics: analytics.New(st),
	}, nil
}

// Close releases the store.
func (a *App) Close() error {
	return a.store.Close()
}

// Config returns the active configuration.
func (a *App) Config() *config.Config { return a.cfg }

// Platform returns the resolved platform info.
func (a *App) Platform() *platform.Info { return a.platform }

// Store exposes the record store to the daemon wiring.
func (a *App) Store() *store.Store { return a.store }

// Trash exposes the quarantine engine to the daemon wiring.
func (a *App) Trash() *trash.Engine { return a.trash }

// Scan runs the enabled category passes. Concurrent calls share one
// underlying scan.
func (a *App) Scan(ctx context.Context) (*scanner.ScanReport, error) {
	return a.sharedScan(ctx, "scan", func(ctx context.Context) (*scanner.ScanReport, error) {
		report, err := a.scanner.Scan(ctx, a.cfg.Passes)
		a.recordScan("scan", report)
		return report, err
	})
}

// ScanFilesystemHealth runs the health pass: empty directories, broken
// symlinks and orphaned temp files.
func (a *App) ScanFilesystemHealth(ctx context.Context) (*scanner.ScanReport, error) {
	return a.sharedScan(ctx, "health", func(ctx context.Context) (*scanner.ScanReport, error) {
		report, err := a.scanner.ScanFilesystemHealth(ctx)
		a.recordScan("health", report)
		return report, err
	})
}

// StorageRecoveryResult pairs the flat report with its duplicate groups.
type StorageRecoveryResult struct {
	Report *scanner.ScanReport      `json:"report"`
	Groups []scanner.DuplicateGroup `json:"groups"`
}

// ScanStorageRecovery runs the recovery pass: duplicates, large files and
// stale downloads.
func (a *App) ScanStorageRecovery(ctx context.Context) (*StorageRecoveryResult, error) {
	ctx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()

	v, err, _ := a.flight.Do("recovery", func() (any, error) {
		report, groups, err := a.scanner.ScanStorageRecovery(ctx)
		if err != nil && !isTruncation(err) {
			return nil, err
		}
		a.dropRecentlyUsedDownloads(report)
		a.recordScan("recovery", report)
		return &StorageRecoveryResult{Report: report, Groups: groups}, err
	})
	if v == nil {
		return nil, err
	}
	return v.(*StorageRecoveryResult), err
}

// dropRecentlyUsedDownloads removes old-download candidates the watcher
// has seen in use within the age cutoff. The classifier already consults
// stat-level atime; the store's observations cover filesystems mounted
// noatime.
func (a *App) dropRecentlyUsedDownloads(report *scanner.ScanReport) {
	cutoff := time.Duration(a.cfg.AgeThresholds.Downloads) * 24 * time.Hour
	if report == nil || cutoff <= 0 {
		return
	}
	kept := report.Items[:0]
	var size int64
	for _, item := range report.Items {
		if item.Category == classify.CategoryOldDownload {
			if at, ok, err := a.store.LastAccess(item.Path); err == nil && ok && time.Since(at) < cutoff {
				continue
			}
		}
		kept = append(kept, item)
		size += item.Size
	}
	report.Items = kept
	report.TotalSize = size
	report.TotalCount = len(kept)
}

func (a *App) sharedScan(ctx context.Context, key string, fn func(context.Context) (*scanner.ScanReport, error)) (*scanner.ScanReport, error) {
	ctx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()

	v, err, _ := a.flight.Do(key, func() (any, error) {
		report, err := fn(ctx)
		if err != nil && !isTruncation(err) {
			return nil, err
		}
		return report, err
	})
	if v == nil {
		return nil, err
	}
	return v.(*scanner.ScanReport), err
}

// isTruncation reports whether a scan error still carries a usable
// partial report.
func isTruncation(err error) bool {
	return errors.Is(err, scanner.ErrScanTimeout) || errors.Is(err, scanner.ErrResourceLimit)
}

func (a *App) recordScan(pass string, report *scanner.ScanReport) {
	if report == nil {
		return
	}
	h := &store.ScanHistory{
		Pass:       pass,
		ItemCount:  report.TotalCount,
		TotalSize:  report.TotalSize,
		DurationMS: report.Elapsed.Milliseconds(),
		RanAt:      time.Now(),
	}
	if err := a.store.AppendScanHistory(h); err != nil {
		log.Warn().Err(err).Msg("cannot record scan history")
	}
}

// SystemStats is a point-in-time view of the host.
type SystemStats struct {
	Hostname      string  `json:"hostname"`
	UptimeSeconds uint64  `json:"uptime_seconds"`
	DiskTotal     uint64  `json:"disk_total"`
	DiskUsed      uint64  `json:"disk_used"`
	DiskFree      uint64  `json:"disk_free"`
	DiskPercent   float64 `json:"disk_percent"`
	MemTotal      uint64  `json:"mem_total"`
	MemUsed       uint64  `json:"mem_used"`
	MemPercent    float64 `json:"mem_percent"`
}

// GetSystemStats samples disk, memory and host state.
func (a *App) GetSystemStats(ctx context.Context) (*SystemStats, error) {
	ctx, cancel := context.WithTimeout(ctx, quickTimeout)
	defer cancel()

	usage, err := disk.UsageWithContext(ctx, a.platform.HomeDir)
	if err != nil {
		return nil, err
	}
	stats := &SystemStats{
		DiskTotal:   usage.Total,
		DiskUsed:    usage.Used,
		DiskFree:    usage.Free,
		DiskPercent: usage.UsedPercent,
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats.MemTotal = vm.Total
		stats.MemUsed = vm.Used
		stats.MemPercent = vm.UsedPercent
	}
	if hi, err := host.InfoWithContext(ctx); err == nil {
		stats.Hostname = hi.Hostname
		stats.UptimeSeconds = hi.Uptime
	}
	return stats, nil
}

// GetCacheAnalytics reports growth rates, the 7-day trend and suggested
// cache limits.
func (a *App) GetCacheAnalytics(ctx context.Context) (*analytics.Report, error) {
	ctx, cancel := context.WithTimeout(ctx, quickTimeout)
	defer cancel()
	return a.analytics.Report(ctx, a.platform.HomeDir, time.Now())
}
