package core

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dverbeek/sweeper/internal/pkgmgr"
	"github.com/dverbeek/sweeper/internal/security"
	"github.com/dverbeek/sweeper/internal/store"
	"github.com/dverbeek/sweeper/internal/trash"
)

// CleanTarget names one item to remove. Risk and Reason carry the
// classifier's verdict onto the trash record when the item is
// quarantined.
type CleanTarget struct {
	Path     string `json:"path"`
	Category string `json:"category"`
	Risk     int    `json:"risk"`
	Reason   string `json:"reason,omitempty"`
}

// CleanFailure records one item that could not be removed.
type CleanFailure struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// CleanResult summarizes a batch removal. Items are independent: one
// failure never aborts the rest.
type CleanResult struct {
	Cleaned   int            `json:"cleaned"`
	Failed    int            `json:"failed"`
	TotalSize int64          `json:"total_size"`
	TrashIDs  []string       `json:"trash_ids,omitempty"`
	Failures  []CleanFailure `json:"failures,omitempty"`
}

// CleanOptions control how a batch is removed.
type CleanOptions struct {
	// UseTrash quarantines items instead of deleting them outright.
	UseTrash bool
	// Retention overrides the default quarantine retention when set.
	Retention time.Duration
}

// CleanItems removes the given targets one by one. With UseTrash each
// item is quarantined and can be restored until its retention lapses;
// without it the item is validated and deleted permanently.
func (a *App) CleanItems(ctx context.Context, targets []CleanTarget, opts CleanOptions) (*CleanResult, error) {
	ctx, cancel := context.WithTimeout(ctx, longTimeout)
	defer cancel()

	result := &CleanResult{}
	for _, target := range targets {
		select {
		case <-ctx.Done():
			result.Failed++
			result.Failures = append(result.Failures, CleanFailure{Path: target.Path, Reason: ctx.Err().Error()})
			continue
		default:
		}

		size, err := a.cleanOne(ctx, target, opts, result)
		if err != nil {
			result.Failed++
			result.Failures = append(result.Failures, CleanFailure{Path: target.Path, Reason: err.Error()})
			log.Warn().Err(err).Str("path", target.Path).Msg("clean failed")
			continue
		}
		result.Cleaned++
		result.TotalSize += size
	}
	return result, nil
}

func (a *App) cleanOne(ctx context.Context, target CleanTarget, opts CleanOptions, result *CleanResult) (int64, error) {
	if opts.UseTrash {
		if target.Category == "" {
			if category, risk, err := a.scanner.ClassifyPath(target.Path); err == nil {
				target.Category = string(category)
				target.Risk = int(risk)
			}
		}
		rec, err := a.trash.Quarantine(ctx, target.Path, target.Category, target.Risk, target.Reason, opts.Retention)
		if err != nil {
			return 0, err
		}
		result.TrashIDs = append(result.TrashIDs, rec.ID)
		return rec.Size, nil
	}

	canonical, err := a.validator.Validate(target.Path, security.IntentDelete)
	if err != nil {
		return 0, err
	}
	info, err := os.Lstat(canonical)
	if err != nil {
		return 0, err
	}
	size := info.Size()
	if info.IsDir() {
		size = dirSize(canonical)
	}
	if err := os.RemoveAll(canonical); err != nil {
		return 0, err
	}
	return size, nil
}

// ListTrash returns every quarantined item, newest first.
func (a *App) ListTrash(ctx context.Context) ([]store.TrashRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, quickTimeout)
	defer cancel()
	return a.trash.List(ctx)
}

// RestoreFromTrash puts a quarantined item back at its original path.
func (a *App) RestoreFromTrash(ctx context.Context, id string) (*store.TrashRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, quickTimeout)
	defer cancel()
	return a.trash.Restore(ctx, id)
}

// DeleteFromTrash permanently removes one quarantined item.
func (a *App) DeleteFromTrash(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, quickTimeout)
	defer cancel()
	return a.trash.Purge(ctx, id)
}

// EmptyTrash permanently removes everything in quarantine.
func (a *App) EmptyTrash(ctx context.Context) (int, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, longTimeout)
	defer cancel()
	return a.trash.Empty(ctx)
}

// SweepExpiredTrash purges every item whose retention lapsed.
func (a *App) SweepExpiredTrash(ctx context.Context) (int, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, longTimeout)
	defer cancel()
	return a.trash.SweepExpired(ctx, time.Now())
}

// PackageCleanResult summarizes a package cleanup run.
type PackageCleanResult struct {
	Removed   []string       `json:"removed"`
	Failed    []CleanFailure `json:"failed"`
	TotalSize int64          `json:"total_size"`
}

// CleanPackages removes the named orphaned packages and runs an apt cache
// autoclean. Every name is validated and re-checked for orphan status
// immediately before removal.
func (a *App) CleanPackages(ctx context.Context, names []string) (*PackageCleanResult, error) {
	ctx, cancel := context.WithTimeout(ctx, longTimeout)
	defer cancel()

	if !a.packages.Available() {
		return nil, errors.New("no supported package manager found")
	}

	// No explicit names means clean every orphan the resolver finds.
	if len(names) == 0 {
		report, err := a.packages.FindOrphans(ctx)
		if err != nil {
			return nil, err
		}
		for _, pkg := range report.Orphans {
			names = append(names, pkg.Name)
		}
	}

	result := &PackageCleanResult{}
	for _, name := range names {
		if err := a.packages.RemoveOrphan(ctx, name); err != nil {
			result.Failed = append(result.Failed, CleanFailure{Path: name, Reason: err.Error()})
			continue
		}
		result.Removed = append(result.Removed, name)
	}
	if err := a.packages.AutocleanCache(ctx); err != nil {
		log.Warn().Err(err).Msg("apt autoclean failed")
	}
	return result, nil
}

// FindOrphanedPackages lists removable packages without touching them.
func (a *App) FindOrphanedPackages(ctx context.Context) (*pkgmgr.OrphanReport, error) {
	ctx, cancel := context.WithTimeout(ctx, longTimeout)
	defer cancel()
	if !a.packages.Available() {
		return nil, errors.New("no supported package manager found")
	}
	return a.packages.FindOrphans(ctx)
}

// RestoreTrashError maps engine sentinels onto user-facing text.
func RestoreTrashError(err error) string {
	switch {
	case errors.Is(err, trash.ErrNotFound):
		return "no such trash item"
	case errors.Is(err, trash.ErrDestinationExists):
		return "a file already exists at the original location"
	case errors.Is(err, trash.ErrObjectMissing):
		return "the quarantined data is gone; the entry was removed"
	default:
		return err.Error()
	}
}

func dirSize(root string) int64 {
	var size int64
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0
	}
	for _, de := range entries {
		sub := root + string(os.PathSeparator) + de.Name()
		if de.IsDir() {
			size += dirSize(sub)
			continue
		}
		if info, err := de.Info(); err == nil {
			size += info.Size()
		}
	}
	return size
}
