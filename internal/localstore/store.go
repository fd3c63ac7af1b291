// Package localstore is the process-durable fallback cache. It keeps
// whole-value JSON snapshots in a sqlite table keyed by namespaced
// strings, so reads keep working while the remote store is down.
package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Snapshot is one stored value. Value holds the JSON encoding of
// whatever the caller handed Save.
type Snapshot struct {
	Key       string    `gorm:"primaryKey"`
	Value     []byte    `gorm:"type:blob"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Snapshot) TableName() string { return "snapshots" }

type Store struct {
	db *gorm.DB
}

// Open creates or opens the sqlite file at path and ensures the
// snapshot table exists.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening local store %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Snapshot{}); err != nil {
		return nil, fmt.Errorf("migrating local store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Save upserts the JSON encoding of value under key.
func (s *Store) Save(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding snapshot %s: %w", key, err)
	}
	snap := Snapshot{Key: key, Value: raw, UpdatedAt: time.Now()}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&snap).Error
	if err != nil {
		return fmt.Errorf("saving snapshot %s: %w", key, err)
	}
	return nil
}

// Load decodes the snapshot under key into out. Returns false when no
// snapshot exists.
func (s *Store) Load(ctx context.Context, key string, out any) (bool, error) {
	var snap Snapshot
	err := s.db.WithContext(ctx).First(&snap, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("loading snapshot %s: %w", key, err)
	}
	if err := json.Unmarshal(snap.Value, out); err != nil {
		return false, fmt.Errorf("decoding snapshot %s: %w", key, err)
	}
	return true, nil
}

// Delete removes the snapshot under key, if any.
func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.db.WithContext(ctx).Delete(&Snapshot{}, "key = ?", key).Error
	if err != nil {
		return fmt.Errorf("deleting snapshot %s: %w", key, err)
	}
	return nil
}

// Keys for the snapshot namespaces used across the module.

func CartKey(customerID string) string   { return "cart:" + customerID }
func WaiverKey(customerID string) string { return "waiver:" + customerID }
func CollectionKey(name string) string   { return "collection:" + name }
