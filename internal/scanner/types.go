package scanner

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dverbeek/sweeper/internal/classify"
)

// ErrScanTimeout is returned when a scan exceeds its time budget. Partial
// results collected before the deadline are still returned alongside it.
var ErrScanTimeout = errors.New("scan timed out")

// ErrResourceLimit is returned when a scan hits its item budget.
var ErrResourceLimit = errors.New("scan item limit reached")

// ScanItem is one cleanup candidate. Directories carry their children;
// a directory's size is the sum of its children and its risk tier is the
// maximum tier among them.
type ScanItem struct {
	ID       string            `json:"id"`
	Path     string            `json:"path"`
	Name     string            `json:"name"`
	Category classify.Category `json:"category"`
	Risk     classify.RiskTier `json:"risk"`
	Size     int64             `json:"size"`
	ModTime  time.Time         `json:"mod_time"`
	IsDir    bool              `json:"is_dir"`
	Reason   string            `json:"reason,omitempty"`
	Children []ScanItem        `json:"children,omitempty"`
}

// NewScanItem builds an item with a fresh identifier.
func NewScanItem(path, name string, cat classify.Category, risk classify.RiskTier, size int64, modTime time.Time, isDir bool) ScanItem {
	return ScanItem{
		ID:       uuid.NewString(),
		Path:     path,
		Name:     name,
		Category: cat,
		Risk:     risk,
		Size:     size,
		ModTime:  modTime,
		IsDir:    isDir,
	}
}

// ScanReport is the result of one scan pass.
type ScanReport struct {
	Items      []ScanItem    `json:"items"`
	TotalSize  int64         `json:"total_size"`
	TotalCount int           `json:"total_count"`
	Elapsed    time.Duration `json:"elapsed"`
	Truncated  bool          `json:"truncated"`
	Errors     []error       `json:"-"`
}

func (r *ScanReport) add(item ScanItem) {
	r.Items = append(r.Items, item)
	r.TotalSize += item.Size
	r.TotalCount++
}

// Merge folds another report into this one.
func (r *ScanReport) Merge(other *ScanReport) {
	if other == nil {
		return
	}
	r.Items = append(r.Items, other.Items...)
	r.TotalSize += other.TotalSize
	r.TotalCount += other.TotalCount
	r.Truncated = r.Truncated || other.Truncated
	r.Errors = append(r.Errors, other.Errors...)
}

// DuplicateGroup is a set of byte-identical files. Kept names the member
// that cleanup must preserve; Reclaimable is the space freed by removing
// every other member.
type DuplicateGroup struct {
	Fingerprint string     `json:"fingerprint"`
	Size        int64      `json:"size"`
	Kept        ScanItem   `json:"kept"`
	Redundant   []ScanItem `json:"redundant"`
	Reclaimable int64      `json:"reclaimable"`
}
