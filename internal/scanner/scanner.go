// Package scanner walks the filesystem and produces cleanup candidates.
// Each pass is read-only; nothing here deletes or moves files.
package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dverbeek/sweeper/internal/classify"
	"github.com/dverbeek/sweeper/internal/config"
	"github.com/dverbeek/sweeper/internal/platform"
	"github.com/dverbeek/sweeper/internal/security"
	"github.com/dverbeek/sweeper/pkg/utils"
)

// Scanner runs the scan passes against the current platform's well-known
// directories.
type Scanner struct {
	platformInfo *platform.Info
	validator    *security.Validator
	classifyOpts classify.Options

	includeHidden bool
	maxDepth      int
	maxItems      int
	hashWorkers   int
	dupMinSize    int64
	timeout       time.Duration
}

// New builds a Scanner from configuration. Thresholds expressed as size
// strings in the config are parsed here, once.
func New(info *platform.Info, validator *security.Validator, cfg *config.Config) (*Scanner, error) {
	largeThreshold, err := utils.ParseSize(cfg.Scan.LargeFileThreshold)
	if err != nil {
		return nil, err
	}
	dupMinSize, err := utils.ParseSize(cfg.Scan.DuplicateMinSize)
	if err != nil {
		return nil, err
	}
	// A config file that omits hash_workers parses as zero, which would
	// stall the hashing pool.
	hashWorkers := cfg.Scan.HashWorkers
	if hashWorkers < 1 {
		hashWorkers = config.GetDefault().Scan.HashWorkers
	}
	return &Scanner{
		platformInfo: info,
		validator:    validator,
		classifyOpts: classify.Options{
			DownloadsDir:       info.DownloadsDir,
			DownloadAgeCutoff:  time.Duration(cfg.AgeThresholds.Downloads) * 24 * time.Hour,
			LargeFileThreshold: largeThreshold,
			TempAgeCutoff:      time.Duration(cfg.AgeThresholds.OrphanedTemp) * 24 * time.Hour,
		},
		includeHidden: cfg.Scan.IncludeHidden,
		maxDepth:      cfg.Scan.MaxDepth,
		maxItems:      cfg.Scan.MaxItems,
		hashWorkers:   hashWorkers,
		dupMinSize:    dupMinSize,
		timeout:       time.Duration(cfg.Scan.TimeoutMinutes) * time.Minute,
	}, nil
}

// ClassifyPath stats a single path and runs it through the rule table.
func (s *Scanner) ClassifyPath(path string) (classify.Category, classify.RiskTier, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return classify.CategoryOther, classify.RiskLargeFile, err
	}
	res := classify.Classify(path, info, s.classifyOpts)
	return res.Category, res.Risk, nil
}

// Scan runs the category passes enabled by the pass set and merges their
// reports.
func (s *Scanner) Scan(ctx context.Context, passes config.Passes) (*ScanReport, error) {
	start := time.Now()
	ctx, cancel := s.withBudget(ctx)
	defer cancel()

	report := &ScanReport{}
	if passes.Caches {
		report.Merge(s.ScanCaches(ctx))
	}
	if passes.Logs {
		report.Merge(s.ScanLogs(ctx))
	}
	if passes.Packages {
		report.Merge(s.ScanPackageCaches(ctx))
	}
	if passes.FilesystemHealth {
		// Errors from the sub-passes are truncation-shaped and carried
		// by the merged Truncated flag.
		sub, _ := s.ScanFilesystemHealth(ctx)
		report.Merge(sub)
	}
	if passes.StorageRecovery {
		sub, _, _ := s.ScanStorageRecovery(ctx)
		report.Merge(sub)
	}
	report.Elapsed = time.Since(start)
	return report, s.truncationError(report)
}

// ScanCaches reports cache directories under the platform's cache roots.
// Each top-level cache entry becomes one item with aggregated size.
func (s *Scanner) ScanCaches(ctx context.Context) *ScanReport {
	report := &ScanReport{}
	for _, root := range s.platformInfo.CacheDirs {
		s.scanAggregatedRoot(ctx, root, report)
	}
	return report
}

// ScanLogs reports log files under the platform's log roots and any
// rotated logs beside them.
func (s *Scanner) ScanLogs(ctx context.Context) *ScanReport {
	report := &ScanReport{}
	for _, root := range s.platformInfo.LogDirs {
		if _, err := os.Stat(root); err != nil {
			continue
		}
		err := s.walk(ctx, root, func(path string, info os.FileInfo, _ bool) bool {
			if info.IsDir() {
				return true
			}
			res := s.classifyInfo(path, info)
			if res.Category != classify.CategoryLog || res.Risk >= classify.RiskProtected {
				return true
			}
			item := NewScanItem(path, info.Name(), res.Category, res.Risk, info.Size(), info.ModTime(), false)
			report.add(item)
			return true
		})
		s.recordWalkError(report, err)
	}
	return report
}

// ScanPackageCaches reports user-level package manager stores (npm, pip,
// cargo and friends) as aggregated directory items.
func (s *Scanner) ScanPackageCaches(ctx context.Context) *ScanReport {
	report := &ScanReport{}
	for _, root := range s.platformInfo.PackageCacheDirs {
		info, err := os.Stat(root)
		if err != nil {
			continue
		}
		size, count, risk := s.dirStats(ctx, root)
		if count == 0 || risk >= classify.RiskProtected {
			continue
		}
		item := NewScanItem(root, filepath.Base(root), classify.CategoryPackageArtifact, classify.RiskPackage, size, info.ModTime(), true)
		item.Reason = "package manager cache"
		report.add(item)
	}
	return report
}

// ScanFilesystemHealth runs the health pass: empty directories, broken
// symlinks and orphaned temp files under the home directory and the
// platform temp roots.
func (s *Scanner) ScanFilesystemHealth(ctx context.Context) (*ScanReport, error) {
	start := time.Now()
	ctx, cancel := s.withBudget(ctx)
	defer cancel()

	report := &ScanReport{}
	seen := make(map[string]struct{})
	roots := append([]string{s.platformInfo.HomeDir}, s.platformInfo.TempDirs...)
	for _, root := range roots {
		if _, err := os.Stat(root); err != nil {
			continue
		}
		err := s.walk(ctx, root, func(path string, info os.FileInfo, broken bool) bool {
			if _, dup := seen[path]; dup {
				// Temp roots nested under home were already covered.
				return false
			}
			seen[path] = struct{}{}
			switch {
			case broken:
				item := NewScanItem(path, info.Name(), classify.CategoryBrokenSymlink, classify.RiskSafe, 0, info.ModTime(), false)
				item.Reason = "symlink target does not exist"
				report.add(item)
			case info.IsDir():
				if s.isEmptyDir(path) {
					item := NewScanItem(path, info.Name(), classify.CategoryEmptyDirectory, classify.RiskSafe, 0, info.ModTime(), true)
					report.add(item)
					return false
				}
			default:
				res := s.classifyInfo(path, info)
				if res.Category == classify.CategoryOrphanedTemp {
					item := NewScanItem(path, info.Name(), res.Category, res.Risk, info.Size(), info.ModTime(), false)
					item.Reason = "temp file past age threshold"
					report.add(item)
				}
			}
			return true
		})
		s.recordWalkError(report, err)
	}
	report.Elapsed = time.Since(start)
	return report, s.truncationError(report)
}

// ScanStorageRecovery runs the storage-recovery pass: duplicate groups,
// large files and stale downloads.
func (s *Scanner) ScanStorageRecovery(ctx context.Context) (*ScanReport, []DuplicateGroup, error) {
	start := time.Now()
	ctx, cancel := s.withBudget(ctx)
	defer cancel()

	report := &ScanReport{}

	roots := []string{
		s.platformInfo.DownloadsDir,
		filepath.Join(s.platformInfo.HomeDir, "Documents"),
		filepath.Join(s.platformInfo.HomeDir, "Desktop"),
	}

	var candidates []ScanItem
	for _, root := range roots {
		if root == "" {
			continue
		}
		if _, err := os.Stat(root); err != nil {
			continue
		}
		err := s.walk(ctx, root, func(path string, info os.FileInfo, broken bool) bool {
			if info.IsDir() || broken {
				return true
			}
			res := s.classifyInfo(path, info)
			if res.Risk >= classify.RiskProtected {
				return true
			}
			switch res.Category {
			case classify.CategoryLargeFile:
				item := NewScanItem(path, info.Name(), res.Category, res.Risk, info.Size(), info.ModTime(), false)
				item.Reason = "exceeds large file threshold"
				report.add(item)
			case classify.CategoryOldDownload:
				item := NewScanItem(path, info.Name(), res.Category, res.Risk, info.Size(), info.ModTime(), false)
				item.Reason = "download past age threshold"
				report.add(item)
			}
			if info.Size() >= s.dupMinSize {
				candidates = append(candidates, ScanItem{
					Path:    path,
					Name:    info.Name(),
					Size:    info.Size(),
					ModTime: info.ModTime(),
				})
			}
			return true
		})
		s.recordWalkError(report, err)
	}

	groups := s.findDuplicates(ctx, candidates)
	for _, g := range groups {
		for _, item := range g.Redundant {
			report.add(item)
		}
	}
	report.Elapsed = time.Since(start)
	return report, groups, s.truncationError(report)
}

// scanAggregatedRoot reports each direct child of root as a single item
// with the summed size of its contents.
func (s *Scanner) scanAggregatedRoot(ctx context.Context, root string, report *ScanReport) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return
	}
	for _, de := range entries {
		path := filepath.Join(root, de.Name())
		if s.validator.IsProtectedPath(path) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		res := s.classifyInfo(path, info)
		if res.Risk >= classify.RiskProtected {
			continue
		}
		if res.Category != classify.CategoryCache {
			// Children of a cache root inherit the category even when
			// their own name carries no cache marker.
			res.Category = classify.CategoryCache
			res.Risk = classify.RiskSafe
		}
		var size int64
		if info.IsDir() {
			var childRisk classify.RiskTier
			size, _, childRisk = s.dirStats(ctx, path)
			if childRisk >= classify.RiskProtected {
				continue
			}
			res.Risk = classify.MaxRisk(res.Risk, childRisk)
		} else {
			size = info.Size()
		}
		item := NewScanItem(path, de.Name(), res.Category, res.Risk, size, info.ModTime(), info.IsDir())
		report.add(item)
	}
}

func (s *Scanner) isEmptyDir(path string) bool {
	entries, err := os.ReadDir(path)
	return err == nil && len(entries) == 0
}

func (s *Scanner) withBudget(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Scanner) recordWalkError(report *ScanReport, err error) {
	if err == nil {
		return
	}
	report.Truncated = true
	report.Errors = append(report.Errors, err)
	log.Warn().Err(err).Msg("scan pass truncated")
}

// truncationError surfaces a budget error without discarding the partial
// report the caller already holds.
func (s *Scanner) truncationError(report *ScanReport) error {
	for _, err := range report.Errors {
		if errors.Is(err, ErrScanTimeout) || errors.Is(err, ErrResourceLimit) {
			return err
		}
	}
	return nil
}
