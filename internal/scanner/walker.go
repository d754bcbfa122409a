package scanner

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/dverbeek/sweeper/internal/classify"
)

// walkEntry is one pending directory in the iterative walk.
type walkEntry struct {
	path  string
	depth int
}

// visitFunc receives every entry the walker admits. Returning false stops
// descent into a directory; files ignore the return value.
type visitFunc func(path string, info os.FileInfo, isBrokenSymlink bool) bool

// walk traverses a root iteratively with an explicit work queue, so deep
// trees cannot exhaust the goroutine stack. Symlinks are never followed;
// a link whose target is gone is reported with isBrokenSymlink set. The
// walk stops early on context cancellation or when the item budget runs
// out, returning ErrScanTimeout or ErrResourceLimit respectively.
func (s *Scanner) walk(ctx context.Context, root string, visit visitFunc) error {
	queue := []walkEntry{{path: root, depth: 0}}
	visited := 0

	for len(queue) > 0 {
		select {
		case <-ctx.Done():
			return ErrScanTimeout
		default:
		}

		entry := queue[0]
		queue = queue[1:]

		dirents, err := os.ReadDir(entry.path)
		if err != nil {
			log.Debug().Err(err).Str("path", entry.path).Msg("skipping unreadable directory")
			continue
		}

		for _, de := range dirents {
			if visited >= s.maxItems {
				return ErrResourceLimit
			}
			path := filepath.Join(entry.path, de.Name())

			if s.validator.IsProtectedPath(path) {
				continue
			}
			if !s.includeHidden && isHidden(de.Name()) {
				continue
			}

			info, broken, err := lstatEntry(path, de)
			if err != nil {
				continue
			}
			visited++

			descend := visit(path, info, broken)
			if info.IsDir() && descend && entry.depth+1 < s.maxDepth {
				queue = append(queue, walkEntry{path: path, depth: entry.depth + 1})
			}
		}
	}
	return nil
}

// lstatEntry stats without following symlinks and reports whether the
// entry is a symlink with a missing target.
func lstatEntry(path string, de os.DirEntry) (os.FileInfo, bool, error) {
	info, err := de.Info()
	if err != nil {
		return nil, false, err
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return info, false, nil
	}
	if _, err := os.Stat(path); err != nil {
		return info, os.IsNotExist(err), nil
	}
	return info, false, nil
}

func isHidden(name string) bool {
	return len(name) > 1 && name[0] == '.'
}

// dirStats sums the direct and nested contents of a directory, bounded by
// the remaining item budget, without following symlinks.
func (s *Scanner) dirStats(ctx context.Context, root string) (size int64, count int, risk classify.RiskTier) {
	_ = s.walk(ctx, root, func(path string, info os.FileInfo, _ bool) bool {
		if !info.IsDir() {
			size += info.Size()
			count++
		}
		// A directory is never reported at a lower tier than anything
		// inside it.
		risk = classify.MaxRisk(risk, s.classifyInfo(path, info).Risk)
		return true
	})
	return size, count, risk
}

// classifyInfo is a shorthand that runs the rule table with the scanner's
// configured thresholds.
func (s *Scanner) classifyInfo(path string, info os.FileInfo) classify.Result {
	return classify.Classify(path, info, s.classifyOpts)
}
