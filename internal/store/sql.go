package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/i474232898/forecast-digest/internal/forecast"
)

// runRow is the SQLite row for one run.
type runRow struct {
	ID         string    `gorm:"primaryKey"`
	StartedAt  time.Time `gorm:"index"`
	FinishedAt time.Time
	State      string
	FailedAt   string
	SourceID   string
	Marker     string
	Notified   bool
	MessageID  int64
	Error      string
}

func (runRow) TableName() string {
	return "runs"
}

// SQLHistory persists run records in SQLite through gorm.
type SQLHistory struct {
	db *gorm.DB
}

// OpenSQLHistory opens (and migrates) the database at path.
func OpenSQLHistory(path string) (*SQLHistory, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if err := db.AutoMigrate(&runRow{}); err != nil {
		return nil, fmt.Errorf("migrate runs table: %w", err)
	}
	return &SQLHistory{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *SQLHistory) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLHistory) SaveRun(ctx context.Context, rec forecast.RunRecord) error {
	row := runRow{
		ID:         rec.ID,
		StartedAt:  rec.StartedAt.UTC(),
		FinishedAt: rec.FinishedAt.UTC(),
		State:      string(rec.State),
		FailedAt:   string(rec.FailedAt),
		SourceID:   string(rec.SourceID),
		Marker:     rec.Marker,
		Notified:   rec.Notified,
		MessageID:  rec.MessageID,
		Error:      rec.Error,
	}
	return s.db.WithContext(ctx).Save(&row).Error
}

func (s *SQLHistory) LatestRun(ctx context.Context) (forecast.RunRecord, error) {
	var row runRow
	err := s.db.WithContext(ctx).Order("started_at desc").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return forecast.RunRecord{}, ErrNotFound
	}
	if err != nil {
		return forecast.RunRecord{}, err
	}
	return row.record(), nil
}

func (s *SQLHistory) RunsBetween(ctx context.Context, from, to time.Time) ([]forecast.RunRecord, error) {
	var rows []runRow
	err := s.db.WithContext(ctx).
		Where("started_at >= ? AND started_at <= ?", from.UTC(), to.UTC()).
		Order("started_at asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}

	out := make([]forecast.RunRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.record())
	}
	return out, nil
}

func (r runRow) record() forecast.RunRecord {
	return forecast.RunRecord{
		ID:         r.ID,
		StartedAt:  r.StartedAt.UTC(),
		FinishedAt: r.FinishedAt.UTC(),
		State:      forecast.State(r.State),
		FailedAt:   forecast.State(r.FailedAt),
		SourceID:   forecast.SourceID(r.SourceID),
		Marker:     r.Marker,
		Notified:   r.Notified,
		MessageID:  r.MessageID,
		Error:      r.Error,
	}
}
