// Package repo – Member repository.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/qotdbot/qotdbot/internal/domain"
)

// EnsureMember returns the member row for id, creating it if missing. Vote
// writes go through this first so the selection join table never references a
// member the bot has not seen.
func EnsureMember(ctx context.Context, db *gorm.DB, id string) (*domain.Member, error) {
	var m domain.Member
	err := db.WithContext(ctx).
		Where(domain.Member{ID: id}).
		FirstOrCreate(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMember fetches a member by id, or ErrNotFound.
func GetMember(ctx context.Context, db *gorm.DB, id string) (*domain.Member, error) {
	var m domain.Member
	if err := db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// GrantVoteReward atomically adds xp and saves to the member's ledger.
func GrantVoteReward(ctx context.Context, db *gorm.DB, id string, xp int, saves float64) error {
	res := db.WithContext(ctx).
		Model(&domain.Member{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"xp":    gorm.Expr("xp + ?", xp),
			"saves": gorm.Expr("saves + ?", saves),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
