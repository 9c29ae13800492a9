// Package repo – bot state repository (small key/value rows).
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qotdbot/qotdbot/internal/domain"
)

// State keys used by the bot.
const (
	StateMetaMessage = "meta_message_id"
)

// GetState returns the value stored under key, or ErrNotFound.
func GetState(ctx context.Context, db *gorm.DB, key string) (string, error) {
	var s domain.BotState
	if err := db.WithContext(ctx).First(&s, "key = ?", key).Error; err != nil {
		return "", err
	}
	return s.Value, nil
}

// SetState upserts the value stored under key.
func SetState(ctx context.Context, db *gorm.DB, key, value string) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&domain.BotState{Key: key, Value: value}).Error
}
