// Package reporter renders scan and trash results for the CLI.
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dverbeek/sweeper/internal/classify"
	"github.com/dverbeek/sweeper/internal/scanner"
	"github.com/dverbeek/sweeper/internal/store"
	"github.com/dverbeek/sweeper/pkg/utils"
)

// OutputFormat selects how results are rendered.
type OutputFormat string

const (
	FormatTable   OutputFormat = "table"
	FormatJSON    OutputFormat = "json"
	FormatYAML    OutputFormat = "yaml"
	FormatSummary OutputFormat = "summary"
)

// ParseFormat validates a format flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case FormatTable, FormatJSON, FormatYAML, FormatSummary:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unsupported format %q (table, json, yaml, summary)", s)
	}
}

// Reporter writes reports in one format to one destination.
type Reporter struct {
	writer io.Writer
	format OutputFormat
}

// New creates a Reporter.
func New(writer io.Writer, format OutputFormat) *Reporter {
	return &Reporter{writer: writer, format: format}
}

// ScanReport renders a scan pass result.
func (r *Reporter) ScanReport(report *scanner.ScanReport) error {
	switch r.format {
	case FormatTable:
		return r.scanTable(report)
	case FormatJSON:
		return r.encodeJSON(scanEnvelope(report))
	case FormatYAML:
		return r.encodeYAML(scanEnvelope(report))
	case FormatSummary:
		return r.scanSummary(report)
	default:
		return fmt.Errorf("unsupported format: %s", r.format)
	}
}

func (r *Reporter) scanSummary(report *scanner.ScanReport) error {
	fmt.Fprintf(r.writer, "Items: %d\n", report.TotalCount)
	fmt.Fprintf(r.writer, "Reclaimable: %s\n", utils.FormatBytes(report.TotalSize))

	type bucket struct {
		count int
		size  int64
	}
	byCategory := make(map[classify.Category]*bucket)
	for _, item := range report.Items {
		b, ok := byCategory[item.Category]
		if !ok {
			b = &bucket{}
			byCategory[item.Category] = b
		}
		b.count++
		b.size += item.Size
	}
	categories := make([]classify.Category, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool {
		return byCategory[categories[i]].size > byCategory[categories[j]].size
	})
	for _, c := range categories {
		b := byCategory[c]
		fmt.Fprintf(r.writer, "  %-18s %6d items  %s\n", c, b.count, utils.FormatBytes(b.size))
	}

	if report.Truncated {
		fmt.Fprintln(r.writer, "Note: the scan hit its budget; results are partial.")
	}
	return nil
}

func (r *Reporter) scanTable(report *scanner.ScanReport) error {
	fmt.Fprintf(r.writer, "%-56s  %-10s  %-18s  %-4s  %s\n", "PATH", "SIZE", "CATEGORY", "RISK", "MODIFIED")
	fmt.Fprintln(r.writer, strings.Repeat("-", 110))
	for _, item := range report.Items {
		fmt.Fprintf(r.writer, "%-56s  %-10s  %-18s  %-4d  %s\n",
			truncatePath(item.Path, 56),
			utils.FormatBytes(item.Size),
			item.Category,
			item.Risk,
			item.ModTime.Format("2006-01-02 15:04"))
	}
	fmt.Fprintln(r.writer, strings.Repeat("-", 110))
	fmt.Fprintf(r.writer, "Total: %d items, %s\n", report.TotalCount, utils.FormatBytes(report.TotalSize))
	return nil
}

func scanEnvelope(report *scanner.ScanReport) any {
	return struct {
		Timestamp string             `json:"timestamp" yaml:"timestamp"`
		Items     []scanner.ScanItem `json:"items" yaml:"items"`
		Count     int                `json:"total_count" yaml:"total_count"`
		Size      int64              `json:"total_size" yaml:"total_size"`
		SizeHuman string             `json:"total_size_formatted" yaml:"total_size_formatted"`
		Truncated bool               `json:"truncated" yaml:"truncated"`
	}{
		Timestamp: time.Now().Format(time.RFC3339),
		Items:     report.Items,
		Count:     report.TotalCount,
		Size:      report.TotalSize,
		SizeHuman: utils.FormatBytes(report.TotalSize),
		Truncated: report.Truncated,
	}
}

// DuplicateGroups renders duplicate sets with the kept member marked.
func (r *Reporter) DuplicateGroups(groups []scanner.DuplicateGroup) error {
	switch r.format {
	case FormatJSON:
		return r.encodeJSON(groups)
	case FormatYAML:
		return r.encodeYAML(groups)
	default:
		for _, g := range groups {
			fmt.Fprintf(r.writer, "%s each, %s reclaimable\n",
				utils.FormatBytes(g.Size), utils.FormatBytes(g.Reclaimable))
			fmt.Fprintf(r.writer, "  keep   %s\n", g.Kept.Path)
			for _, m := range g.Redundant {
				fmt.Fprintf(r.writer, "  remove %s\n", m.Path)
			}
		}
		return nil
	}
}

// TrashListing renders the quarantine contents.
func (r *Reporter) TrashListing(recs []store.TrashRecord) error {
	switch r.format {
	case FormatJSON:
		return r.encodeJSON(recs)
	case FormatYAML:
		return r.encodeYAML(recs)
	default:
		if len(recs) == 0 {
			fmt.Fprintln(r.writer, "Trash is empty.")
			return nil
		}
		fmt.Fprintf(r.writer, "%-36s  %-10s  %-16s  %s\n", "ID", "SIZE", "EXPIRES", "ORIGINAL PATH")
		fmt.Fprintln(r.writer, strings.Repeat("-", 100))
		var total int64
		for _, rec := range recs {
			fmt.Fprintf(r.writer, "%-36s  %-10s  %-16s  %s\n",
				rec.ID,
				utils.FormatBytes(rec.Size),
				rec.ExpiresAt.Format("2006-01-02 15:04"),
				truncatePath(rec.OriginalPath, 50))
			total += rec.Size
		}
		fmt.Fprintf(r.writer, "Total: %d items, %s\n", len(recs), utils.FormatBytes(total))
		return nil
	}
}

func (r *Reporter) encodeJSON(v any) error {
	enc := json.NewEncoder(r.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (r *Reporter) encodeYAML(v any) error {
	enc := yaml.NewEncoder(r.writer)
	defer enc.Close()
	return enc.Encode(v)
}

func truncatePath(path string, max int) string {
	if len(path) <= max {
		return path
	}
	return "..." + path[len(path)-max+3:]
}
