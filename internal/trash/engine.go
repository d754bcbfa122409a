// Package trash implements the quarantine engine. Deleting through the
// engine moves an item into a quarantine directory and records it, so it
// can be restored until its retention lapses.
//
// Crash consistency follows from operation order. Quarantine moves the
// object first and writes the record second; restore moves the object
// back before deleting the record; purge removes the object before the
// record. A crash can therefore leave an object without a record (swept
// by Reconcile) or a record without an object (reported as already
// purged), but never an unrecoverable state.
package trash

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/dverbeek/sweeper/internal/security"
	"github.com/dverbeek/sweeper/internal/store"
)

// Engine quarantines, restores and purges filesystem items. All mutating
// methods hold a single writer lock; the engine is safe for concurrent
// use.
type Engine struct {
	mu        sync.Mutex
	root      string
	store     *store.Store
	validator *security.Validator
	retention time.Duration
}

// NewEngine creates the quarantine directory if needed and returns an
// engine with the given default retention.
func NewEngine(root string, st *store.Store, validator *security.Validator, retentionDays int) (*Engine, error) {
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, err
	}
	return &Engine{
		root:      root,
		store:     st,
		validator: validator,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
	}, nil
}

// Retention returns the default retention period.
func (e *Engine) Retention() time.Duration { return e.retention }

// Quarantine validates the path, moves it under the quarantine root and
// records it along with why it was taken. On success the returned
// record's ID is the handle for restore and purge.
func (e *Engine) Quarantine(ctx context.Context, path, category string, risk int, reason string, retention time.Duration) (*store.TrashRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	canonical, err := e.validator.Validate(path, security.IntentDelete)
	if err != nil {
		return nil, err
	}

	info, err := os.Lstat(canonical)
	if err != nil {
		return nil, categorize(canonical, err)
	}
	size := info.Size()
	if info.IsDir() {
		size = treeSize(canonical)
	}

	id := uuid.NewString()
	dest := filepath.Join(e.root, id)

	if err := move(canonical, dest); err != nil {
		return nil, categorize(canonical, err)
	}

	// The move only counts if the object landed and the source is gone.
	if _, err := os.Lstat(dest); err != nil {
		return nil, categorize(dest, ErrObjectMissing)
	}
	if _, err := os.Lstat(canonical); err == nil {
		return nil, categorize(canonical, errors.New("source still present after move"))
	}

	if retention <= 0 {
		retention = e.retention
	}
	now := time.Now()
	rec := &store.TrashRecord{
		ID:           id,
		OriginalPath: canonical,
		TrashPath:    dest,
		Size:         size,
		IsDir:        info.IsDir(),
		Category:     category,
		Risk:         risk,
		Reason:       reason,
		DeletedAt:    now,
		ExpiresAt:    now.Add(retention),
	}
	if err := e.store.WithContext(ctx).PutTrashRecord(rec); err != nil {
		// Undo the move so the item is not stranded without a record.
		if undoErr := move(dest, canonical); undoErr != nil {
			log.Error().Err(undoErr).Str("path", canonical).Msg("could not undo quarantine after record failure")
		}
		return nil, err
	}

	log.Info().Str("id", id).Str("path", canonical).Int64("size", size).Msg("quarantined")
	return rec, nil
}

// Restore moves a quarantined item back to its original path and drops
// the record. Restoring twice returns ErrNotFound the second time.
func (e *Engine) Restore(ctx context.Context, id string) (*store.TrashRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.store.WithContext(ctx)
	rec, err := st.GetTrashRecord(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if _, err := os.Lstat(rec.OriginalPath); err == nil {
		return nil, ErrDestinationExists
	}
	if _, err := os.Lstat(rec.TrashPath); err != nil {
		// The object is gone; the record is stale. Drop it so the
		// entry does not linger in listings.
		_ = st.DeleteTrashRecord(id)
		return nil, ErrObjectMissing
	}

	if err := os.MkdirAll(filepath.Dir(rec.OriginalPath), 0o755); err != nil {
		return nil, categorize(rec.OriginalPath, err)
	}
	if err := move(rec.TrashPath, rec.OriginalPath); err != nil {
		return nil, categorize(rec.TrashPath, err)
	}

	// Record goes last: a crash here leaves a record without an object,
	// which reads as already purged, never a lost file.
	if err := st.DeleteTrashRecord(id); err != nil {
		return nil, err
	}
	log.Info().Str("id", id).Str("path", rec.OriginalPath).Msg("restored")
	return rec, nil
}

// Purge permanently removes a quarantined item. A record whose object is
// already gone still purges cleanly.
func (e *Engine) Purge(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.purgeLocked(e.store.WithContext(ctx), id)
}

func (e *Engine) purgeLocked(st *store.Store, id string) error {
	rec, err := st.GetTrashRecord(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	// Object first, record second.
	if err := os.RemoveAll(rec.TrashPath); err != nil {
		return categorize(rec.TrashPath, err)
	}
	if err := st.DeleteTrashRecord(id); err != nil {
		return err
	}
	log.Info().Str("id", id).Str("path", rec.OriginalPath).Msg("purged")
	return nil
}

// List returns all quarantined items, newest first.
func (e *Engine) List(ctx context.Context) ([]store.TrashRecord, error) {
	return e.store.WithContext(ctx).ListTrashRecords()
}

// Empty purges everything. It returns the number of items purged and the
// bytes freed. Cancellation stops before the next item; the one in
// flight finishes.
func (e *Engine) Empty(ctx context.Context) (int, int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.store.WithContext(ctx)
	recs, err := st.ListTrashRecords()
	if err != nil {
		return 0, 0, err
	}
	var purged int
	var freed int64
	for _, rec := range recs {
		if ctx.Err() != nil {
			break
		}
		if err := e.purgeLocked(st, rec.ID); err != nil {
			log.Warn().Err(err).Str("id", rec.ID).Msg("purge failed during empty")
			continue
		}
		purged++
		freed += rec.Size
	}
	return purged, freed, nil
}

// SweepExpired purges every item whose retention lapsed at or before now.
// Running it twice over the same instant is a no-op the second time.
func (e *Engine) SweepExpired(ctx context.Context, now time.Time) (int, int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.store.WithContext(ctx)
	recs, err := st.ExpiredTrashRecords(now)
	if err != nil {
		return 0, 0, err
	}
	var purged int
	var freed int64
	for _, rec := range recs {
		if ctx.Err() != nil {
			break
		}
		if err := e.purgeLocked(st, rec.ID); err != nil && !errors.Is(err, ErrNotFound) {
			log.Warn().Err(err).Str("id", rec.ID).Msg("expired purge failed")
			continue
		}
		purged++
		freed += rec.Size
	}
	if purged > 0 {
		log.Info().Int("purged", purged).Int64("freed", freed).Msg("expired trash swept")
	}
	return purged, freed, nil
}

// Reconcile repairs quarantine state after a crash: records whose object
// vanished are dropped, and objects no record names are removed.
func (e *Engine) Reconcile(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.store.WithContext(ctx)
	recs, err := st.ListTrashRecords()
	if err != nil {
		return err
	}
	known := make(map[string]struct{}, len(recs))
	for _, rec := range recs {
		known[rec.ID] = struct{}{}
		if _, err := os.Lstat(rec.TrashPath); err != nil {
			log.Warn().Str("id", rec.ID).Str("path", rec.OriginalPath).Msg("dropping record with missing object")
			_ = st.DeleteTrashRecord(rec.ID)
		}
	}

	entries, err := os.ReadDir(e.root)
	if err != nil {
		return err
	}
	for _, de := range entries {
		if _, ok := known[de.Name()]; ok {
			continue
		}
		orphan := filepath.Join(e.root, de.Name())
		log.Warn().Str("path", orphan).Msg("removing quarantine object with no record")
		_ = os.RemoveAll(orphan)
	}
	return nil
}

// move renames src to dst, falling back to copy-and-delete when the two
// sit on different filesystems.
func move(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) {
		return err
	}
	if !errors.Is(linkErr.Err, syscall.EXDEV) {
		return err
	}
	if copyErr := copyTree(src, dst); copyErr != nil {
		_ = os.RemoveAll(dst)
		return copyErr
	}
	return os.RemoveAll(src)
}

func copyTree(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(src)
		if err != nil {
			return err
		}
		return os.Symlink(target, dst)
	case info.IsDir():
		if err := os.MkdirAll(dst, info.Mode().Perm()); err != nil {
			return err
		}
		entries, err := os.ReadDir(src)
		if err != nil {
			return err
		}
		for _, de := range entries {
			if err := copyTree(filepath.Join(src, de.Name()), filepath.Join(dst, de.Name())); err != nil {
				return err
			}
		}
		return nil
	default:
		return copyFile(src, dst, info.Mode().Perm())
	}
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// treeSize sums the file sizes under a directory, ignoring unreadable
// entries.
func treeSize(root string) int64 {
	var size int64
	_ = filepath.WalkDir(root, func(_ string, de os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if info, err := de.Info(); err == nil && !de.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size
}
