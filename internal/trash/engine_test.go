package trash

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dverbeek/sweeper/internal/security"
	"github.com/dverbeek/sweeper/internal/store"
)

type fixture struct {
	home   string
	engine *Engine
	store  *store.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	home, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	st, err := store.Open(filepath.Join(home, ".local", "share", "sweeper", "sweeper.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	validator := security.NewValidator(home, nil)
	engine, err := NewEngine(filepath.Join(home, ".local", "share", "sweeper", "trash"), st, validator, 3)
	require.NoError(t, err)
	return &fixture{home: home, engine: engine, store: st}
}

func (f *fixture) writeFile(t *testing.T, rel string, content []byte) string {
	t.Helper()
	path := filepath.Join(f.home, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestCancelledContextStopsTrashWork(t *testing.T) {
	f := newFixture(t)
	path := f.writeFile(t, "work/a.bin", []byte("aa"))
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.engine.Quarantine(cancelled, path, "cache", 0, "", 0)
	require.Error(t, err)
	assert.FileExists(t, path)

	rec, err := f.engine.Quarantine(context.Background(), path, "cache", 0, "", 0)
	require.NoError(t, err)

	_, _, err = f.engine.Empty(cancelled)
	assert.Error(t, err)
	assert.FileExists(t, rec.TrashPath)
}

func TestQuarantineRestoreRoundTrip(t *testing.T) {
	f := newFixture(t)
	content := []byte("payload")
	path := f.writeFile(t, "work/data.bin", content)

	rec, err := f.engine.Quarantine(context.Background(), path, "cache", 2, "stale build cache", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, path, rec.OriginalPath)
	assert.Equal(t, int64(len(content)), rec.Size)
	assert.Equal(t, "cache", rec.Category)
	assert.Equal(t, 2, rec.Risk)
	assert.Equal(t, "stale build cache", rec.Reason)
	assert.NoFileExists(t, path)
	assert.FileExists(t, rec.TrashPath)

	restored, err := f.engine.Restore(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, path, restored.OriginalPath)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, got)
	assert.NoFileExists(t, rec.TrashPath)
}

func TestQuarantineDirectoryKeepsTree(t *testing.T) {
	f := newFixture(t)
	f.writeFile(t, "proj/cache/a.bin", []byte("aa"))
	f.writeFile(t, "proj/cache/sub/b.bin", []byte("bbbb"))
	dir := filepath.Join(f.home, "proj", "cache")

	rec, err := f.engine.Quarantine(context.Background(), dir, "cache", 0, "", 0)
	require.NoError(t, err)
	assert.True(t, rec.IsDir)
	assert.Equal(t, int64(6), rec.Size)

	_, err = f.engine.Restore(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "sub", "b.bin"))
}

func TestQuarantineRejectsUnsafePath(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Quarantine(context.Background(), "/etc/passwd", "cache", 0, "", 0)
	var sv *security.SecurityViolation
	assert.ErrorAs(t, err, &sv)
}

func TestDoubleRestoreReturnsNotFound(t *testing.T) {
	f := newFixture(t)
	path := f.writeFile(t, "data.bin", []byte("x"))

	rec, err := f.engine.Quarantine(context.Background(), path, "cache", 0, "", 0)
	require.NoError(t, err)

	_, err = f.engine.Restore(context.Background(), rec.ID)
	require.NoError(t, err)

	_, err = f.engine.Restore(context.Background(), rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRestoreRefusesExistingDestination(t *testing.T) {
	f := newFixture(t)
	path := f.writeFile(t, "data.bin", []byte("old"))

	rec, err := f.engine.Quarantine(context.Background(), path, "cache", 0, "", 0)
	require.NoError(t, err)

	// The path reappears before restore.
	f.writeFile(t, "data.bin", []byte("new"))

	_, err = f.engine.Restore(context.Background(), rec.ID)
	assert.ErrorIs(t, err, ErrDestinationExists)

	got, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, []byte("new"), got, "existing file must be untouched")
}

func TestRestoreWithMissingObjectDropsRecord(t *testing.T) {
	f := newFixture(t)
	path := f.writeFile(t, "data.bin", []byte("x"))

	rec, err := f.engine.Quarantine(context.Background(), path, "cache", 0, "", 0)
	require.NoError(t, err)
	require.NoError(t, os.Remove(rec.TrashPath))

	_, err = f.engine.Restore(context.Background(), rec.ID)
	assert.ErrorIs(t, err, ErrObjectMissing)

	_, err = f.engine.Restore(context.Background(), rec.ID)
	assert.ErrorIs(t, err, ErrNotFound, "stale record must be gone")
}

func TestPurge(t *testing.T) {
	f := newFixture(t)
	path := f.writeFile(t, "data.bin", []byte("x"))

	rec, err := f.engine.Quarantine(context.Background(), path, "cache", 0, "", 0)
	require.NoError(t, err)

	require.NoError(t, f.engine.Purge(context.Background(), rec.ID))
	assert.NoFileExists(t, rec.TrashPath)

	assert.ErrorIs(t, f.engine.Purge(context.Background(), rec.ID), ErrNotFound)
	_, err = f.engine.Restore(context.Background(), rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPurgeDanglingRecordSucceeds(t *testing.T) {
	f := newFixture(t)
	path := f.writeFile(t, "data.bin", []byte("x"))

	rec, err := f.engine.Quarantine(context.Background(), path, "cache", 0, "", 0)
	require.NoError(t, err)
	require.NoError(t, os.Remove(rec.TrashPath))

	assert.NoError(t, f.engine.Purge(context.Background(), rec.ID))
}

func TestSweepExpiredIsIdempotent(t *testing.T) {
	f := newFixture(t)
	expired := f.writeFile(t, "old.bin", []byte("oldold"))
	live := f.writeFile(t, "new.bin", []byte("new"))

	recOld, err := f.engine.Quarantine(context.Background(), expired, "cache", 0, "", time.Hour)
	require.NoError(t, err)
	recLive, err := f.engine.Quarantine(context.Background(), live, "cache", 0, "", 48*time.Hour)
	require.NoError(t, err)

	cutoff := time.Now().Add(2 * time.Hour)
	purged, freed, err := f.engine.SweepExpired(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)
	assert.Equal(t, int64(6), freed)
	assert.NoFileExists(t, recOld.TrashPath)
	assert.FileExists(t, recLive.TrashPath)

	purged, freed, err = f.engine.SweepExpired(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Zero(t, purged)
	assert.Zero(t, freed)
}

func TestExpiryIsAfterDeletion(t *testing.T) {
	f := newFixture(t)
	path := f.writeFile(t, "data.bin", []byte("x"))

	rec, err := f.engine.Quarantine(context.Background(), path, "cache", 0, "", 0)
	require.NoError(t, err)
	assert.True(t, rec.ExpiresAt.After(rec.DeletedAt))
	assert.WithinDuration(t, rec.DeletedAt.Add(72*time.Hour), rec.ExpiresAt, time.Minute)
}

func TestEmpty(t *testing.T) {
	f := newFixture(t)
	a := f.writeFile(t, "a.bin", []byte("aa"))
	b := f.writeFile(t, "b.bin", []byte("bbb"))

	_, err := f.engine.Quarantine(context.Background(), a, "cache", 0, "", 0)
	require.NoError(t, err)
	_, err = f.engine.Quarantine(context.Background(), b, "log", 0, "", 0)
	require.NoError(t, err)

	purged, freed, err := f.engine.Empty(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, purged)
	assert.Equal(t, int64(5), freed)

	recs, err := f.engine.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestReconcileDropsStaleRecordsAndOrphans(t *testing.T) {
	f := newFixture(t)
	path := f.writeFile(t, "data.bin", []byte("x"))

	rec, err := f.engine.Quarantine(context.Background(), path, "cache", 0, "", 0)
	require.NoError(t, err)

	// Simulate a crash: object gone but record present, plus an object
	// nothing references.
	require.NoError(t, os.Remove(rec.TrashPath))
	orphan := filepath.Join(filepath.Dir(rec.TrashPath), "orphan-object")
	require.NoError(t, os.WriteFile(orphan, []byte("x"), 0o644))

	require.NoError(t, f.engine.Reconcile(context.Background()))

	recs, err := f.engine.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.NoFileExists(t, orphan)
}

func TestListNewestFirst(t *testing.T) {
	f := newFixture(t)
	a := f.writeFile(t, "a.bin", []byte("a"))
	b := f.writeFile(t, "b.bin", []byte("b"))

	_, err := f.engine.Quarantine(context.Background(), a, "cache", 0, "", 0)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	recB, err := f.engine.Quarantine(context.Background(), b, "cache", 0, "", 0)
	require.NoError(t, err)

	recs, err := f.engine.List(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, recB.ID, recs[0].ID)
}
