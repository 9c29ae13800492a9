// Package repo – Game rotation repository.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/qotdbot/qotdbot/internal/domain"
)

// CreateGame adds a game to the rotation. Names are unique; a duplicate name
// surfaces the driver's constraint error.
func CreateGame(ctx context.Context, db *gorm.DB, name, downloadLink, imageLink string) (*domain.Game, error) {
	g := &domain.Game{Name: name, DownloadLink: downloadLink, ImageLink: imageLink}
	if err := db.WithContext(ctx).Create(g).Error; err != nil {
		return nil, err
	}
	return g, nil
}

// GetGameByName fetches a game by name, or ErrNotFound.
func GetGameByName(ctx context.Context, db *gorm.DB, name string) (*domain.Game, error) {
	var g domain.Game
	if err := db.WithContext(ctx).First(&g, "name = ?", name).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

// ListGames returns the rotation ordered by name.
func ListGames(ctx context.Context, db *gorm.DB) ([]domain.Game, error) {
	var out []domain.Game
	err := db.WithContext(ctx).Order("name asc").Find(&out).Error
	return out, err
}
