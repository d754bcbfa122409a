package analytics

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dverbeek/sweeper/internal/store"
)

func newAnalyzer(t *testing.T) (*Analyzer, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "sweeper.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return New(st), st
}

func appendEvent(t *testing.T, st *store.Store, source string, delta int64, at time.Time) {
	t.Helper()
	require.NoError(t, st.AppendCacheEvent(&store.CacheEvent{
		Source: source, Path: "/cache/" + source, Delta: delta, Timestamp: at,
	}))
}

func TestReportPerSourceGrowth(t *testing.T) {
	a, st := newAnalyzer(t)
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	appendEvent(t, st, "npm", 500, now.AddDate(0, 0, -4))
	appendEvent(t, st, "npm", -100, now.AddDate(0, 0, -2))
	appendEvent(t, st, "pip", 50, now.AddDate(0, 0, -1))
	// outside the 7-day window, must be ignored
	appendEvent(t, st, "npm", 9999, now.AddDate(0, 0, -10))

	report, err := a.Report(context.Background(), "", now)
	require.NoError(t, err)
	require.Len(t, report.Sources, 2)

	npm := report.Sources[0]
	assert.Equal(t, "npm", npm.Source, "largest growth first")
	assert.Equal(t, int64(400), npm.NetGrowth)
	assert.Equal(t, 2, npm.EventCount)
	assert.InDelta(t, 100.0, npm.DailyGrowthRate, 0.01, "400 bytes over 4 days")

	pip := report.Sources[1]
	assert.Equal(t, int64(50), pip.NetGrowth)
	assert.InDelta(t, 50.0, pip.DailyGrowthRate, 0.01, "sub-day spans count as one day")
}

func TestReportTrendCoversSevenDays(t *testing.T) {
	a, st := newAnalyzer(t)
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	appendEvent(t, st, "npm", 100, now.AddDate(0, 0, -6).Add(time.Hour))
	appendEvent(t, st, "npm", 200, now.AddDate(0, 0, -6).Add(2*time.Hour))
	appendEvent(t, st, "pip", 50, now)

	report, err := a.Report(context.Background(), "", now)
	require.NoError(t, err)
	require.Len(t, report.Trend, 7)

	assert.Equal(t, int64(300), report.Trend[0].NetGrowth, "same-day events aggregate")
	for i := 1; i < 6; i++ {
		assert.Zero(t, report.Trend[i].NetGrowth, "flat days appear as zero")
	}
	assert.Equal(t, int64(50), report.Trend[6].NetGrowth)
	assert.True(t, report.Trend[0].Day.Before(report.Trend[6].Day))
}

func TestRecommendedLimit(t *testing.T) {
	a, _ := newAnalyzer(t)

	// 100 MiB/day grows past the floor: 14 days of growth.
	rate := float64(100 * 1024 * 1024)
	assert.Equal(t, int64(rate)*14, a.recommendLimit(rate))

	// Tiny growth and shrinkage both land on the floor.
	assert.Equal(t, a.recommendedFloor, a.recommendLimit(1024))
	assert.Equal(t, a.recommendedFloor, a.recommendLimit(-5000))
	assert.Equal(t, a.recommendedFloor, a.recommendLimit(0))
}

func TestReportEmptyStore(t *testing.T) {
	a, _ := newAnalyzer(t)
	report, err := a.Report(context.Background(), "", time.Now())
	require.NoError(t, err)
	assert.Empty(t, report.Sources)
	assert.Len(t, report.Trend, 7)
}

func TestReportIncludesDiskUsage(t *testing.T) {
	a, _ := newAnalyzer(t)
	report, err := a.Report(context.Background(), "/", time.Now())
	require.NoError(t, err)
	require.NotNil(t, report.Disk)
	assert.Equal(t, "/", report.Disk.Mount)
	assert.Greater(t, report.Disk.Total, uint64(0))
}
