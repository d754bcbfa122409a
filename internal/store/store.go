// Package store persists sweeper's durable state: trash records, cache
// growth events, file access observations, scan history and disk usage
// snapshots. Everything lives in a single sqlite database under the
// platform data directory.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TrashRecord is the durable side of a quarantined item. The object
// itself lives under the quarantine root named by TrashPath.
type TrashRecord struct {
	ID           string    `gorm:"primaryKey"`
	OriginalPath string    `gorm:"index;not null"`
	TrashPath    string    `gorm:"not null"`
	Size         int64     `gorm:"not null"`
	IsDir        bool      `gorm:"not null"`
	Category     string    `gorm:"index"`
	Risk         int       `gorm:"not null;default:0"`
	Reason       string
	DeletedAt    time.Time `gorm:"index;not null"`
	ExpiresAt    time.Time `gorm:"index;not null"`
}

// CacheEvent is one observed size change of a watched cache path.
type CacheEvent struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Source    string    `gorm:"index;not null"`
	Path      string    `gorm:"not null"`
	Delta     int64     `gorm:"not null"`
	Timestamp time.Time `gorm:"index;not null"`
}

// FileAccess records when a tracked file was last seen in use.
type FileAccess struct {
	Path       string    `gorm:"primaryKey"`
	AccessedAt time.Time `gorm:"index;not null"`
}

// ScanHistory is one completed scan pass, kept for trend display.
type ScanHistory struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	Pass       string    `gorm:"index;not null"`
	ItemCount  int       `gorm:"not null"`
	TotalSize  int64     `gorm:"not null"`
	DurationMS int64     `gorm:"not null"`
	RanAt      time.Time `gorm:"index;not null"`
}

// DiskSnapshot is a periodic disk usage sample.
type DiskSnapshot struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Mount     string    `gorm:"index;not null"`
	Total     uint64    `gorm:"not null"`
	Used      uint64    `gorm:"not null"`
	Free      uint64    `gorm:"not null"`
	Timestamp time.Time `gorm:"index;not null"`
}

// Store wraps the sqlite database.
type Store struct {
	db *gorm.DB
}

// WithContext returns a store whose queries are bound to ctx, so the
// caller's deadline cancels in-flight database work.
func (s *Store) WithContext(ctx context.Context) *Store {
	return &Store{db: s.db.WithContext(ctx)}
}

// Open creates or opens the database at path, migrating the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	if err := db.AutoMigrate(
		&TrashRecord{},
		&CacheEvent{},
		&FileAccess{},
		&ScanHistory{},
		&DiskSnapshot{},
	); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// --- trash records ---

// PutTrashRecord inserts a record for a freshly quarantined item.
func (s *Store) PutTrashRecord(rec *TrashRecord) error {
	return s.db.Create(rec).Error
}

// GetTrashRecord returns the record with the given id, or
// gorm.ErrRecordNotFound.
func (s *Store) GetTrashRecord(id string) (*TrashRecord, error) {
	var rec TrashRecord
	if err := s.db.First(&rec, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListTrashRecords returns all records, newest deletion first.
func (s *Store) ListTrashRecords() ([]TrashRecord, error) {
	var recs []TrashRecord
	err := s.db.Order("deleted_at DESC").Find(&recs).Error
	return recs, err
}

// ExpiredTrashRecords returns records whose retention lapsed at or before
// now.
func (s *Store) ExpiredTrashRecords(now time.Time) ([]TrashRecord, error) {
	var recs []TrashRecord
	err := s.db.Where("expires_at <= ?", now).Find(&recs).Error
	return recs, err
}

// DeleteTrashRecord removes a record by id.
func (s *Store) DeleteTrashRecord(id string) error {
	return s.db.Delete(&TrashRecord{}, "id = ?", id).Error
}

// --- cache events ---

// AppendCacheEvent records one observed cache size change.
func (s *Store) AppendCacheEvent(ev *CacheEvent) error {
	return s.db.Create(ev).Error
}

// CacheEventsSince returns events at or after the cutoff, oldest first.
func (s *Store) CacheEventsSince(cutoff time.Time) ([]CacheEvent, error) {
	var events []CacheEvent
	err := s.db.Where("timestamp >= ?", cutoff).Order("timestamp ASC").Find(&events).Error
	return events, err
}

// PruneCacheEvents drops events older than the cutoff.
func (s *Store) PruneCacheEvents(cutoff time.Time) error {
	return s.db.Where("timestamp < ?", cutoff).Delete(&CacheEvent{}).Error
}

// --- file access ---

// TouchFileAccess upserts the last-seen time for a path.
func (s *Store) TouchFileAccess(path string, at time.Time) error {
	rec := FileAccess{Path: path, AccessedAt: at}
	return s.db.Save(&rec).Error
}

// LastAccess returns the recorded access time for a path, if any.
func (s *Store) LastAccess(path string) (time.Time, bool, error) {
	var rec FileAccess
	err := s.db.First(&rec, "path = ?", path).Error
	if err == gorm.ErrRecordNotFound {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return rec.AccessedAt, true, nil
}

// --- scan history ---

// AppendScanHistory records a completed scan pass.
func (s *Store) AppendScanHistory(h *ScanHistory) error {
	return s.db.Create(h).Error
}

// RecentScanHistory returns the most recent entries, newest first.
func (s *Store) RecentScanHistory(limit int) ([]ScanHistory, error) {
	var hist []ScanHistory
	err := s.db.Order("ran_at DESC").Limit(limit).Find(&hist).Error
	return hist, err
}

// --- disk snapshots ---

// AppendDiskSnapshot records a disk usage sample.
func (s *Store) AppendDiskSnapshot(snap *DiskSnapshot) error {
	return s.db.Create(snap).Error
}

// DiskSnapshotsSince returns samples at or after the cutoff, oldest
// first.
func (s *Store) DiskSnapshotsSince(cutoff time.Time) ([]DiskSnapshot, error) {
	var snaps []DiskSnapshot
	err := s.db.Where("timestamp >= ?", cutoff).Order("timestamp ASC").Find(&snaps).Error
	return snaps, err
}
