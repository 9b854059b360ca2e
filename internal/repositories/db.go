package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rohits-web03/lockbox/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// ConnectDatabase opens the Postgres connection and migrates the files
// table.
func ConnectDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	// Run migrations
	if err := db.AutoMigrate(&models.FileRecord{}); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return db, nil
}

// PostgresRecordStore keeps file records in the files table.
type PostgresRecordStore struct {
	db *gorm.DB
}

func NewPostgresRecordStore(db *gorm.DB) *PostgresRecordStore {
	return &PostgresRecordStore{db: db}
}

func (s *PostgresRecordStore) Insert(ctx context.Context, rec *models.FileRecord) error {
	return s.db.WithContext(ctx).Create(rec).Error
}

func (s *PostgresRecordStore) Upsert(ctx context.Context, rec *models.FileRecord) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.FileRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("company_id = ? AND project_id = ? AND filename = ?", rec.CompanyID, rec.ProjectID, rec.Filename).
			First(&existing).Error

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(rec).Error
		case err != nil:
			return err
		}

		err = tx.Model(&existing).Updates(map[string]any{
			"download_link": rec.DownloadLink,
			"is_locked":     rec.IsLocked,
			"updated_at":    time.Now(),
		}).Error
		if err != nil {
			return err
		}
		existing.DownloadLink = rec.DownloadLink
		existing.IsLocked = rec.IsLocked
		*rec = existing
		return nil
	})
}

func (s *PostgresRecordStore) Query(ctx context.Context, match Match, limit int) ([]models.FileRecord, error) {
	var recs []models.FileRecord
	q := s.db.WithContext(ctx).Where(match.Fields())
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

func (s *PostgresRecordStore) Update(ctx context.Context, id string, patch Patch) error {
	fields := map[string]any{"updated_at": time.Now()}
	if patch.IsLocked != nil {
		fields["is_locked"] = *patch.IsLocked
	}
	if patch.DownloadLink != nil {
		fields["download_link"] = *patch.DownloadLink
	}

	res := s.db.WithContext(ctx).Model(&models.FileRecord{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrFileNotFound
	}
	return nil
}

func (s *PostgresRecordStore) List(ctx context.Context) ([]models.FileRecord, error) {
	var recs []models.FileRecord
	if err := s.db.WithContext(ctx).Order("created_at").Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}
