// Package classify assigns a semantic category and risk tier to filesystem
// entries. Classification is a pure function of the path and an
// already-obtained stat; it performs no I/O of its own.
package classify

import (
	"io/fs"
	"path/filepath"
	"strings"
	"time"
)

// Category is the semantic bucket a scan item falls into.
type Category string

const (
	CategoryCache           Category = "cache"
	CategoryLog             Category = "log"
	CategoryPackageArtifact Category = "package_artifact"
	CategoryLargeFile       Category = "large_file"
	CategoryOldDownload     Category = "old_download"
	CategoryEmptyDirectory  Category = "empty_directory"
	CategoryBrokenSymlink   Category = "broken_symlink"
	CategoryOrphanedTemp    Category = "orphaned_temp"
	CategoryDuplicate       Category = "duplicate"
	CategoryProtected       Category = "protected"
	CategoryOther           Category = "other"
)

// RiskTier orders cleanup candidates from safe (0) to never-offered (5).
type RiskTier int

const (
	// RiskSafe covers regenerable caches, logs and temp files.
	RiskSafe RiskTier = 0
	// RiskOldDownload covers downloads beyond the age cutoff.
	RiskOldDownload RiskTier = 1
	// RiskLargeFile covers large files with no known-regenerable pattern.
	RiskLargeFile RiskTier = 2
	// RiskDuplicate covers the redundant members of a duplicate group.
	RiskDuplicate RiskTier = 3
	// RiskPackage covers package artifacts needing dependency checks.
	RiskPackage RiskTier = 4
	// RiskProtected is never surfaced for cleanup.
	RiskProtected RiskTier = 5
)

// Options are the tunables that influence classification.
type Options struct {
	DownloadsDir       string
	DownloadAgeCutoff  time.Duration
	LargeFileThreshold int64
	TempAgeCutoff      time.Duration
}

// Result pairs a category with its risk tier.
type Result struct {
	Category Category
	Risk     RiskTier
}

// rule is one entry of the ordered classification table. Rules are
// evaluated top to bottom; when several match, the highest risk wins.
type rule struct {
	category Category
	risk     RiskTier
	match    func(path string, info fs.FileInfo, opts Options) bool
}

var protectedPatterns = []string{
	".ssh", ".gnupg", ".gpg", ".password-store", ".kube", ".aws",
	"id_rsa", "id_ed25519", ".pem", ".keychain",
	".git", // repository metadata is never a cleanup candidate
}

var cacheSegments = []string{
	"/.cache/", "/Library/Caches/", "/.thumbnails/", "/Cache/", "/cache/",
}

var tempSuffixes = []string{
	".tmp", ".temp", ".swp", ".bak", ".orig", ".old", ".lock", ".pid", "~",
}

var packageArtifactSegments = []string{
	"/.npm/", "/.cargo/registry/", "/.m2/repository/", "/.gradle/caches/",
	"/archives/", // apt style package cache
	"/node_modules/", "/__pycache__/",
}

var rules = []rule{
	{CategoryProtected, RiskProtected, matchProtected},
	{CategoryPackageArtifact, RiskPackage, matchPackageArtifact},
	{CategoryLargeFile, RiskLargeFile, matchLargeFile},
	{CategoryOldDownload, RiskOldDownload, matchOldDownload},
	{CategoryOrphanedTemp, RiskSafe, matchOrphanedTemp},
	{CategoryLog, RiskSafe, matchLog},
	{CategoryCache, RiskSafe, matchCache},
}

// Classify runs the ordered rule table against a path and its stat.
// When multiple rules match, the highest risk tier wins (fail toward
// caution). Entries matching nothing are CategoryOther at the large-file
// tier so they are never auto-cleaned.
func Classify(path string, info fs.FileInfo, opts Options) Result {
	best := Result{Category: CategoryOther, Risk: -1}
	for _, r := range rules {
		if !r.match(path, info, opts) {
			continue
		}
		if r.risk > best.Risk {
			best = Result{Category: r.category, Risk: r.risk}
		}
	}
	if best.Risk < 0 {
		return Result{Category: CategoryOther, Risk: RiskLargeFile}
	}
	return best
}

func matchProtected(path string, _ fs.FileInfo, _ Options) bool {
	base := filepath.Base(path)
	for _, pat := range protectedPatterns {
		if base == pat || strings.HasSuffix(base, pat) {
			return true
		}
		if strings.Contains(path, "/"+pat+"/") {
			return true
		}
	}
	return false
}

func matchCache(path string, _ fs.FileInfo, _ Options) bool {
	for _, seg := range cacheSegments {
		if strings.Contains(path, seg) {
			return true
		}
	}
	return false
}

func matchLog(path string, _ fs.FileInfo, _ Options) bool {
	base := filepath.Base(path)
	if strings.HasSuffix(base, ".log") {
		return true
	}
	// rotated logs: app.log.1, app.log.2.gz
	if strings.Contains(base, ".log.") {
		return true
	}
	return false
}

func matchOrphanedTemp(path string, info fs.FileInfo, opts Options) bool {
	base := filepath.Base(path)
	matched := false
	for _, suffix := range tempSuffixes {
		if strings.HasSuffix(base, suffix) {
			matched = true
			break
		}
	}
	if !matched && strings.HasPrefix(base, "~") {
		matched = true
	}
	if !matched {
		return false
	}
	if info == nil || opts.TempAgeCutoff <= 0 {
		return matched
	}
	return time.Since(info.ModTime()) >= opts.TempAgeCutoff
}

func matchOldDownload(path string, info fs.FileInfo, opts Options) bool {
	if opts.DownloadsDir == "" || info == nil {
		return false
	}
	if !strings.HasPrefix(path, opts.DownloadsDir+"/") {
		return false
	}
	if opts.DownloadAgeCutoff <= 0 {
		return false
	}
	// "Old" means unused, not just unmodified. Reading a download
	// refreshes its atime and keeps it out of this category.
	lastUsed := info.ModTime()
	if atime, ok := accessTime(info); ok && atime.After(lastUsed) {
		lastUsed = atime
	}
	return time.Since(lastUsed) >= opts.DownloadAgeCutoff
}

func matchLargeFile(path string, info fs.FileInfo, opts Options) bool {
	if info == nil || info.IsDir() || opts.LargeFileThreshold <= 0 {
		return false
	}
	if info.Size() < opts.LargeFileThreshold {
		return false
	}
	// Regenerable content stays in its own lower-risk categories.
	if matchCache(path, info, opts) || matchLog(path, info, opts) {
		return false
	}
	return true
}

func matchPackageArtifact(path string, _ fs.FileInfo, _ Options) bool {
	for _, seg := range packageArtifactSegments {
		if strings.Contains(path, seg) {
			return true
		}
	}
	base := filepath.Base(path)
	return strings.HasSuffix(base, ".deb") || strings.HasSuffix(base, ".rpm") ||
		strings.HasSuffix(base, ".pkg.tar.zst")
}

// MaxRisk returns the higher of two tiers. Directories inherit the maximum
// risk of their children.
func MaxRisk(a, b RiskTier) RiskTier {
	if a > b {
		return a
	}
	return b
}
