// Package analytics turns recorded cache events and disk snapshots into
// growth rates, trends and recommended cache limits.
package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/shirou/gopsutil/v4/disk"

	"github.com/dverbeek/sweeper/internal/store"
)

const trendDays = 7

// SourceStats summarizes one watched cache source over the analysis
// window.
type SourceStats struct {
	Source           string  `json:"source"`
	NetGrowth        int64   `json:"net_growth"`         // bytes over the window
	DailyGrowthRate  float64 `json:"daily_growth_rate"`  // bytes per day
	EventCount       int     `json:"event_count"`
	RecommendedLimit int64   `json:"recommended_limit"` // bytes
}

// TrendPoint is one day of aggregate cache growth.
type TrendPoint struct {
	Day       time.Time `json:"day"`
	NetGrowth int64     `json:"net_growth"`
}

// DiskUsage is the current state of the filesystem holding the home
// directory.
type DiskUsage struct {
	Mount       string  `json:"mount"`
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	Free        uint64  `json:"free"`
	UsedPercent float64 `json:"used_percent"`
}

// Report is the full analytics answer.
type Report struct {
	Sources   []SourceStats `json:"sources"`
	Trend     []TrendPoint  `json:"trend"`
	Disk      *DiskUsage    `json:"disk,omitempty"`
	WindowEnd time.Time     `json:"window_end"`
}

// Analyzer computes reports from the store.
type Analyzer struct {
	store *store.Store

	// recommendedLimitDays sizes the suggested cap as this many days of
	// observed growth, never below recommendedFloor.
	recommendedLimitDays int
	recommendedFloor     int64
}

// New returns an Analyzer with the default sizing policy: a cache cap of
// fourteen days of growth, floored at 512 MiB.
func New(st *store.Store) *Analyzer {
	return &Analyzer{
		store:                st,
		recommendedLimitDays: 14,
		recommendedFloor:     512 * 1024 * 1024,
	}
}

// Report builds the analytics report for the trailing seven days.
func (a *Analyzer) Report(ctx context.Context, mount string, now time.Time) (*Report, error) {
	cutoff := now.AddDate(0, 0, -trendDays)
	events, err := a.store.CacheEventsSince(cutoff)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Sources:   a.perSource(events, now),
		Trend:     a.trend(events, now),
		WindowEnd: now,
	}

	if mount != "" {
		usage, err := disk.UsageWithContext(ctx, mount)
		if err == nil {
			report.Disk = &DiskUsage{
				Mount:       mount,
				Total:       usage.Total,
				Used:        usage.Used,
				Free:        usage.Free,
				UsedPercent: usage.UsedPercent,
			}
		}
	}
	return report, nil
}

func (a *Analyzer) perSource(events []store.CacheEvent, now time.Time) []SourceStats {
	type agg struct {
		net      int64
		count    int
		earliest time.Time
	}
	bySource := make(map[string]*agg)
	for _, ev := range events {
		s, ok := bySource[ev.Source]
		if !ok {
			s = &agg{earliest: ev.Timestamp}
			bySource[ev.Source] = s
		}
		if ev.Timestamp.Before(s.earliest) {
			s.earliest = ev.Timestamp
		}
		s.net += ev.Delta
		s.count++
	}

	stats := make([]SourceStats, 0, len(bySource))
	for source, s := range bySource {
		spanDays := now.Sub(s.earliest).Hours() / 24
		if spanDays < 1 {
			spanDays = 1
		}
		rate := float64(s.net) / spanDays
		stats = append(stats, SourceStats{
			Source:           source,
			NetGrowth:        s.net,
			DailyGrowthRate:  rate,
			EventCount:       s.count,
			RecommendedLimit: a.recommendLimit(rate),
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].NetGrowth != stats[j].NetGrowth {
			return stats[i].NetGrowth > stats[j].NetGrowth
		}
		return stats[i].Source < stats[j].Source
	})
	return stats
}

// trend buckets net growth by calendar day over the trailing window,
// emitting a point for every day so flat days show as zero.
func (a *Analyzer) trend(events []store.CacheEvent, now time.Time) []TrendPoint {
	end := now.Truncate(24 * time.Hour)
	byDay := make(map[time.Time]int64)
	for _, ev := range events {
		byDay[ev.Timestamp.Truncate(24*time.Hour)] += ev.Delta
	}

	points := make([]TrendPoint, 0, trendDays)
	for i := trendDays - 1; i >= 0; i-- {
		day := end.AddDate(0, 0, -i)
		points = append(points, TrendPoint{Day: day, NetGrowth: byDay[day]})
	}
	return points
}

// recommendLimit converts a growth rate into a suggested cache cap.
// Shrinking or idle caches get the floor.
func (a *Analyzer) recommendLimit(dailyRate float64) int64 {
	if dailyRate <= 0 {
		return a.recommendedFloor
	}
	limit := int64(dailyRate) * int64(a.recommendedLimitDays)
	if limit < a.recommendedFloor {
		return a.recommendedFloor
	}
	return limit
}
