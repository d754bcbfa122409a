package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dverbeek/sweeper/internal/classify"
	"github.com/dverbeek/sweeper/internal/config"
	"github.com/dverbeek/sweeper/internal/platform"
	"github.com/dverbeek/sweeper/internal/store"
)

func newApp(t *testing.T, mutate func(cfg *config.Config)) (*App, string) {
	t.Helper()
	home, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	info := &platform.Info{
		OS:           platform.Linux,
		HomeDir:      home,
		CacheDirs:    []string{filepath.Join(home, ".cache")},
		TempDirs:     []string{filepath.Join(home, "tmp")},
		LogDirs:      []string{filepath.Join(home, "logs")},
		DownloadsDir: filepath.Join(home, "Downloads"),
		DataDir:      filepath.Join(home, ".local", "share", "sweeper"),
	}
	cfg := config.GetDefault()
	cfg.Scan.IncludeHidden = true
	if mutate != nil {
		mutate(cfg)
	}

	app, err := New(cfg, info)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app, home
}

func mkFile(t *testing.T, path string, size int, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	if !mtime.IsZero() {
		require.NoError(t, os.Chtimes(path, mtime, mtime))
	}
}

func TestScanRecordsHistory(t *testing.T) {
	app, home := newApp(t, nil)
	mkFile(t, filepath.Join(home, ".cache", "app", "blob"), 256, time.Time{})

	report, err := app.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalCount)
	assert.Equal(t, int64(256), report.TotalSize)

	hist, err := app.Store().RecentScanHistory(5)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "scan", hist[0].Pass)
	assert.Equal(t, int64(256), hist[0].TotalSize)
}

func TestScanFilesystemHealth(t *testing.T) {
	app, home := newApp(t, nil)
	empty := filepath.Join(home, "projects", "empty")
	require.NoError(t, os.MkdirAll(empty, 0o755))

	report, err := app.ScanFilesystemHealth(context.Background())
	require.NoError(t, err)

	var found bool
	for _, item := range report.Items {
		if item.Path == empty {
			found = true
			assert.Equal(t, classify.CategoryEmptyDirectory, item.Category)
		}
	}
	assert.True(t, found)
}

func TestScanStorageRecoveryFindsDuplicates(t *testing.T) {
	app, home := newApp(t, func(cfg *config.Config) {
		cfg.Scan.DuplicateMinSize = "1B"
	})
	content := []byte("duplicate content for recovery scan")
	a := filepath.Join(home, "Documents", "one.dat")
	b := filepath.Join(home, "Documents", "two.dat")
	for _, p := range []string{a, b} {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, content, 0o644))
	}
	older := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(a, older, older))

	result, err := app.ScanStorageRecovery(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Groups, 1)
	assert.Equal(t, a, result.Groups[0].Kept.Path)
}

func TestRecoverySkipsDownloadsSeenInUse(t *testing.T) {
	app, home := newApp(t, nil)
	old := time.Now().Add(-120 * 24 * time.Hour)

	stale := filepath.Join(home, "Downloads", "stale.iso")
	used := filepath.Join(home, "Downloads", "used.iso")
	mkFile(t, stale, 10, old)
	mkFile(t, used, 20, old)
	require.NoError(t, app.Store().TouchFileAccess(used, time.Now().Add(-time.Hour)))

	result, err := app.ScanStorageRecovery(context.Background())
	require.NoError(t, err)

	paths := make([]string, 0, len(result.Report.Items))
	var total int64
	for _, item := range result.Report.Items {
		paths = append(paths, item.Path)
		total += item.Size
	}
	assert.Contains(t, paths, stale)
	assert.NotContains(t, paths, used)
	assert.Equal(t, total, result.Report.TotalSize)
	assert.Equal(t, len(paths), result.Report.TotalCount)
}

func TestCleanItemsWithTrashRoundTrip(t *testing.T) {
	app, home := newApp(t, nil)
	path := filepath.Join(home, ".cache", "app", "blob")
	mkFile(t, path, 512, time.Time{})

	result, err := app.CleanItems(context.Background(), []CleanTarget{
		{Path: path, Category: "cache"},
	}, CleanOptions{UseTrash: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Cleaned)
	assert.Zero(t, result.Failed)
	assert.Equal(t, int64(512), result.TotalSize)
	require.Len(t, result.TrashIDs, 1)
	assert.NoFileExists(t, path)

	restored, err := app.RestoreFromTrash(context.Background(), result.TrashIDs[0])
	require.NoError(t, err)
	assert.Equal(t, path, restored.OriginalPath)
	assert.FileExists(t, path)
}

func TestCleanItemsPermanent(t *testing.T) {
	app, home := newApp(t, nil)
	path := filepath.Join(home, ".cache", "blob")
	mkFile(t, path, 128, time.Time{})

	result, err := app.CleanItems(context.Background(), []CleanTarget{
		{Path: path, Category: "cache"},
	}, CleanOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Cleaned)
	assert.Equal(t, int64(128), result.TotalSize)
	assert.NoFileExists(t, path)

	trash, err := app.ListTrash(context.Background())
	require.NoError(t, err)
	assert.Empty(t, trash)
}

func TestCleanItemsFailuresAreIndependent(t *testing.T) {
	app, home := newApp(t, nil)
	good := filepath.Join(home, ".cache", "good")
	mkFile(t, good, 64, time.Time{})

	result, err := app.CleanItems(context.Background(), []CleanTarget{
		{Path: "/etc/passwd", Category: "cache"},
		{Path: good, Category: "cache"},
		{Path: filepath.Join(home, "does-not-exist"), Category: "cache"},
	}, CleanOptions{UseTrash: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Cleaned)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Failures, 2)
	assert.NoFileExists(t, good)
}

func TestCleanItemsRefusesDataDir(t *testing.T) {
	app, home := newApp(t, nil)
	target := filepath.Join(home, ".local", "share", "sweeper", "sweeper.db")

	result, err := app.CleanItems(context.Background(), []CleanTarget{
		{Path: target, Category: "cache"},
	}, CleanOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.FileExists(t, target)
}

func TestEmptyTrash(t *testing.T) {
	app, home := newApp(t, nil)
	a := filepath.Join(home, ".cache", "a")
	b := filepath.Join(home, ".cache", "b")
	mkFile(t, a, 10, time.Time{})
	mkFile(t, b, 20, time.Time{})

	_, err := app.CleanItems(context.Background(), []CleanTarget{
		{Path: a}, {Path: b},
	}, CleanOptions{UseTrash: true})
	require.NoError(t, err)

	purged, freed, err := app.EmptyTrash(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, purged)
	assert.Equal(t, int64(30), freed)
}

func TestDeleteFromTrash(t *testing.T) {
	app, home := newApp(t, nil)
	path := filepath.Join(home, ".cache", "blob")
	mkFile(t, path, 10, time.Time{})

	result, err := app.CleanItems(context.Background(), []CleanTarget{{Path: path}}, CleanOptions{UseTrash: true})
	require.NoError(t, err)
	require.Len(t, result.TrashIDs, 1)

	require.NoError(t, app.DeleteFromTrash(context.Background(), result.TrashIDs[0]))
	_, err = app.RestoreFromTrash(context.Background(), result.TrashIDs[0])
	require.Error(t, err)
	assert.Equal(t, "no such trash item", RestoreTrashError(err))
}

func TestGetCacheAnalytics(t *testing.T) {
	app, _ := newApp(t, nil)
	require.NoError(t, app.Store().AppendCacheEvent(&store.CacheEvent{
		Source: "npm", Path: "/x", Delta: 1000, Timestamp: time.Now().Add(-24 * time.Hour),
	}))

	report, err := app.GetCacheAnalytics(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Sources, 1)
	assert.Equal(t, "npm", report.Sources[0].Source)
	assert.Len(t, report.Trend, 7)
	require.NotNil(t, report.Disk)
}

func TestGetSystemStats(t *testing.T) {
	app, _ := newApp(t, nil)
	stats, err := app.GetSystemStats(context.Background())
	require.NoError(t, err)
	assert.Greater(t, stats.DiskTotal, uint64(0))
}

func TestSweepExpiredTrash(t *testing.T) {
	app, home := newApp(t, nil)
	path := filepath.Join(home, ".cache", "blob")
	mkFile(t, path, 10, time.Time{})

	result, err := app.CleanItems(context.Background(), []CleanTarget{{Path: path}},
		CleanOptions{UseTrash: true, Retention: time.Nanosecond})
	require.NoError(t, err)
	require.Equal(t, 1, result.Cleaned)

	time.Sleep(5 * time.Millisecond)
	purged, _, err := app.SweepExpiredTrash(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, purged)
}
