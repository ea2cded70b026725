// Package store persists the sourceId→file_id cache and the known-user
// table behind one interface with two interchangeable backends: an
// embedded SQLite file and a MongoDB deployment. The backend is chosen
// by configuration, never by code paths diverging elsewhere.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okatsuo/teravault/internal/config"
)

// ErrNotFound is returned by GetVideo when no record exists for the key.
var ErrNotFound = errors.New("record not found")

// VideoRecord maps a canonical source identifier to the Telegram file_id
// obtained from the first successful upload. One row per SourceID; writes
// replace.
type VideoRecord struct {
	SourceID  string    `gorm:"column:source_id;primaryKey;size:128" bson:"source_id"`
	FileID    string    `gorm:"column:file_id;size:512;not null" bson:"file_id"`
	Title     string    `gorm:"column:title;size:512" bson:"title"`
	CreatedAt time.Time `gorm:"column:created_at" bson:"created_at"`
}

func (VideoRecord) TableName() string { return "videos" }

// UserRecord is one row per distinct requester. JoinedAt is set on first
// insert and never overwritten.
type UserRecord struct {
	UserID      int64     `gorm:"column:user_id;primaryKey" bson:"user_id"`
	DisplayName string    `gorm:"column:display_name;size:256" bson:"display_name"`
	Username    string    `gorm:"column:username;size:256" bson:"username"`
	JoinedAt    time.Time `gorm:"column:joined_at" bson:"joined_at"`
}

func (UserRecord) TableName() string { return "users" }

// Store is the only dependency the pipeline has on persistence.
type Store interface {
	GetVideo(ctx context.Context, sourceID string) (*VideoRecord, error)
	PutVideo(ctx context.Context, sourceID, fileID, title string) error
	DeleteVideo(ctx context.Context, sourceID string) (bool, error)

	AddUser(ctx context.Context, userID int64, displayName, username string) error
	AllUserIDs(ctx context.Context) ([]int64, error)

	Close(ctx context.Context) error
}

// Open picks a backend from config.StoreBackend.
func Open(ctx context.Context) (Store, error) {
	switch config.StoreBackend {
	case "sqlite":
		return openSQLite(config.SQLitePath)
	case "mongo":
		return openMongo(ctx, config.MongoURL, config.MongoDB)
	default:
		return nil, fmt.Errorf("unknown store backend %q", config.StoreBackend)
	}
}
