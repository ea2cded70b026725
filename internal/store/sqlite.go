package store

import (
	"context"
	"errors"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

type sqliteStore struct {
	db *gorm.DB
}

func openSQLite(path string) (Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&VideoRecord{}, &UserRecord{}); err != nil {
		return nil, err
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) GetVideo(ctx context.Context, sourceID string) (*VideoRecord, error) {
	var rec VideoRecord
	err := s.db.WithContext(ctx).First(&rec, "source_id = ?", sourceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *sqliteStore) PutVideo(ctx context.Context, sourceID, fileID, title string) error {
	rec := VideoRecord{
		SourceID:  sourceID,
		FileID:    fileID,
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"file_id", "title", "created_at"}),
	}).Create(&rec).Error
}

func (s *sqliteStore) DeleteVideo(ctx context.Context, sourceID string) (bool, error) {
	res := s.db.WithContext(ctx).Delete(&VideoRecord{}, "source_id = ?", sourceID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *sqliteStore) AddUser(ctx context.Context, userID int64, displayName, username string) error {
	rec := UserRecord{
		UserID:      userID,
		DisplayName: displayName,
		Username:    username,
		JoinedAt:    time.Now().UTC(),
	}
	// Existing rows keep their original JoinedAt and name.
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&rec).Error
}

func (s *sqliteStore) AllUserIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&UserRecord{}).Pluck("user_id", &ids).Error
	return ids, err
}

func (s *sqliteStore) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
