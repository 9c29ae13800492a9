// Package repo – Club repository. Reads and column updates are issued by the
// club cache in internal/club; nothing else touches club rows.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/qotdbot/qotdbot/internal/domain"
)

// CreateClub inserts a new club record.
func CreateClub(ctx context.Context, db *gorm.DB, c *domain.Club) error {
	return db.WithContext(ctx).Create(c).Error
}

// GetClub fetches a club by id, or ErrNotFound.
func GetClub(ctx context.Context, db *gorm.DB, id int) (*domain.Club, error) {
	var c domain.Club
	if err := db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetClubByName fetches a club by its unique name, or ErrNotFound.
func GetClubByName(ctx context.Context, db *gorm.DB, name string) (*domain.Club, error) {
	var c domain.Club
	if err := db.WithContext(ctx).First(&c, "name = ?", name).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListClubs returns all clubs ordered by name.
func ListClubs(ctx context.Context, db *gorm.DB) ([]domain.Club, error) {
	var out []domain.Club
	err := db.WithContext(ctx).Order("name asc").Find(&out).Error
	return out, err
}

// UpdateClubColumns applies a partial column update to a club row.
func UpdateClubColumns(ctx context.Context, db *gorm.DB, id int, updates map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.Club{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
