// Package store persists the session compile cache (§6.3 added): a record
// per evaluated module keyed by absolute path and content digest, plus the
// session-task tree of the run that produced it, so repeated CLI
// invocations against an unchanged module tree can skip re-evaluation.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// CompiledModule is one cache entry: the module's absolute path, the
// SHA-256 digest of the source text it was last evaluated from, and that
// source text itself (kept so a cache miss can report what changed). A
// cache hit requires both path and digest to match.
type CompiledModule struct {
	Path      string    `gorm:"primaryKey;type:varchar(1024)"`
	Digest    string    `gorm:"type:varchar(64);not null"`
	Source    string    `gorm:"type:text"`
	Failed    bool      `gorm:"default:false"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TaskRecord persists one session.Task from the run that produced a
// CompiledModule. The store writes these records; it has no method that
// reads them back.
type TaskRecord struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	RunPath       string `gorm:"type:varchar(1024);index"`
	Name          string `gorm:"type:varchar(64)"`
	Category      string `gorm:"type:varchar(32)"`
	ElapsedMicros int64
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

// Store wraps the gorm connection backing the compile cache.
type Store struct {
	db *gorm.DB
}

// Open connects to the sqlite file at path (created if absent) and applies
// migrations. debug enables gorm's query logger.
func Open(path string, debug bool) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	cfg := &gorm.Config{}
	if debug {
		cfg.Logger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("opening compile cache: %w", err)
	}
	if err := db.AutoMigrate(&CompiledModule{}, &TaskRecord{}); err != nil {
		return nil, fmt.Errorf("migrating compile cache: %w", err)
	}
	return &Store{db: db}, nil
}

// Digest returns the hex SHA-256 of source, the form CompiledModule.Digest
// is compared against.
func Digest(source []byte) string {
	sum := sha256.Sum256(source)
	return hex.EncodeToString(sum[:])
}

// IsCached reports whether path's previously recorded digest matches source
// and the run it came from did not fail, meaning evaluation can be skipped.
func (s *Store) IsCached(path string, source []byte) bool {
	var rec CompiledModule
	if err := s.db.First(&rec, "path = ?", path).Error; err != nil {
		return false
	}
	return !rec.Failed && rec.Digest == Digest(source)
}

// Record upserts path's cache entry after a compile attempt.
func (s *Store) Record(path string, source []byte, failed bool) error {
	rec := CompiledModule{Path: path, Digest: Digest(source), Source: string(source), Failed: failed, UpdatedAt: time.Now()}
	return s.db.Save(&rec).Error
}

// Diff reports the unified diff between path's previously recorded source
// and the source of the current run, when a prior record exists and the
// two differ. ok is false if there is no prior record to compare against.
func (s *Store) Diff(path string, source []byte) (text string, ok bool, err error) {
	var rec CompiledModule
	if dbErr := s.db.First(&rec, "path = ?", path).Error; dbErr != nil {
		return "", false, nil
	}
	if rec.Source == string(source) {
		return "", false, nil
	}
	d := difflib.UnifiedDiff{
		A:        difflib.SplitLines(rec.Source),
		B:        difflib.SplitLines(string(source)),
		FromFile: path + " (cached)",
		ToFile:   path,
		Context:  2,
	}
	text, err = difflib.GetUnifiedDiffString(d)
	if err != nil {
		return "", false, fmt.Errorf("computing diff for %s: %w", path, err)
	}
	return text, true, nil
}

// RecordTasks persists every task of one run, tagged with runPath (the main
// module's path) so they can be queried back per invocation.
func (s *Store) RecordTasks(runPath string, tasks []Task) error {
	records := make([]TaskRecord, 0, len(tasks))
	for _, t := range tasks {
		records = append(records, TaskRecord{
			RunPath:       runPath,
			Name:          t.Name,
			Category:      t.Category,
			ElapsedMicros: t.ElapsedMicros,
		})
	}
	if len(records) == 0 {
		return nil
	}
	return s.db.Create(&records).Error
}

// Task mirrors session.Task without importing the session package, keeping
// store free of a dependency cycle with the component it caches for.
type Task struct {
	Name          string
	Category      string
	ElapsedMicros int64
}

// Close releases the underlying sqlite connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
