package journal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"go.klb.dev/clipstash/internal/history"
)

// clipRecord is the row layout of the clips table.
type clipRecord struct {
	ID         string    `gorm:"primaryKey;size:36"`
	Text       string    `gorm:"not null"`
	Day        string    `gorm:"index;size:10;not null"`
	CapturedAt time.Time `gorm:"index;not null"`
}

func (clipRecord) TableName() string { return "clips" }

// SQLite stores entries in a single table through GORM, using the pure-Go
// glebarez driver so no cgo toolchain is required.
type SQLite struct {
	db *gorm.DB
}

// OpenSQLite opens (and migrates) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.AutoMigrate(&clipRecord{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Append(ctx context.Context, e history.Entry) error {
	rec := clipRecord{ID: e.ID, Text: e.Text, Day: e.Day(), CapturedAt: e.CapturedAt}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("insert clip: %w", err)
	}
	return nil
}

func (s *SQLite) Load(ctx context.Context) ([]history.Entry, error) {
	var recs []clipRecord
	if err := s.db.WithContext(ctx).Order("captured_at desc").Order("rowid desc").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("load clips: %w", err)
	}
	return toEntries(recs), nil
}

func toEntries(recs []clipRecord) []history.Entry {
	out := make([]history.Entry, len(recs))
	for i, r := range recs {
		out[i] = history.Entry{ID: r.ID, Text: r.Text, CapturedAt: r.CapturedAt}
	}
	return out
}

func (s *SQLite) ByDay(ctx context.Context, day string) ([]history.Entry, error) {
	var recs []clipRecord
	err := s.db.WithContext(ctx).Where("day = ?", day).
		Order("captured_at desc").Order("rowid desc").Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("load day %s: %w", day, err)
	}
	return toEntries(recs), nil
}

func (s *SQLite) Days(ctx context.Context) ([]string, error) {
	var days []string
	err := s.db.WithContext(ctx).Model(&clipRecord{}).
		Distinct("day").Order("day desc").Pluck("day", &days).Error
	if err != nil {
		return nil, fmt.Errorf("list days: %w", err)
	}
	return days, nil
}

func (s *SQLite) Prune(ctx context.Context, cutoff string) (int, error) {
	var n int64
	db := s.db.WithContext(ctx)
	if err := db.Model(&clipRecord{}).Where("day < ?", cutoff).Distinct("day").Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count expired days: %w", err)
	}
	if err := db.Where("day < ?", cutoff).Delete(&clipRecord{}).Error; err != nil {
		return 0, fmt.Errorf("delete expired clips: %w", err)
	}
	return int(n), nil
}

func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
