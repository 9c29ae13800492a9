// Package repo – MegaPoll repository.
//
// Mega polls are the menu variant: a running checklist where members select
// any subset of options through an ephemeral select menu. The selection set
// is edited with connect/disconnect pairs computed by the menu machine, and
// is always re-read from the store after an edit.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/qotdbot/qotdbot/internal/domain"
)

const megaPollSelections = "mega_poll_selections"

// CreateMegaPoll inserts a mega poll with its ordered options and the custom
// id of its vote button.
func CreateMegaPoll(ctx context.Context, db *gorm.DB, title, authorID, buttonID string, options []string) (*domain.MegaPoll, error) {
	p := &domain.MegaPoll{
		Title:    title,
		AuthorID: authorID,
		ButtonID: buttonID,
		Open:     true,
	}
	for i, label := range options {
		p.Options = append(p.Options, domain.MegaPollOption{Position: i, Label: label})
	}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// GetMegaPoll fetches a mega poll with options in creation order and their
// selection sets. Returns ErrNotFound if missing.
func GetMegaPoll(ctx context.Context, db *gorm.DB, id int) (*domain.MegaPoll, error) {
	var p domain.MegaPoll
	err := db.WithContext(ctx).
		Preload("Options", func(tx *gorm.DB) *gorm.DB { return tx.Order("position asc") }).
		Preload("Options.Selected").
		First(&p, id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetMegaPollByButton fetches a mega poll by the custom id of its vote
// button. Returns ErrNotFound if no poll owns that button.
func GetMegaPollByButton(ctx context.Context, db *gorm.DB, buttonID string) (*domain.MegaPoll, error) {
	var p domain.MegaPoll
	err := db.WithContext(ctx).
		Preload("Options", func(tx *gorm.DB) *gorm.DB { return tx.Order("position asc") }).
		Preload("Options.Selected").
		Where("button_id = ?", buttonID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListOpenMegaPolls returns every open mega poll with options and selections,
// the recovery surface for the menu machine.
func ListOpenMegaPolls(ctx context.Context, db *gorm.DB) ([]domain.MegaPoll, error) {
	var out []domain.MegaPoll
	err := db.WithContext(ctx).
		Preload("Options", func(tx *gorm.DB) *gorm.DB { return tx.Order("position asc") }).
		Preload("Options.Selected").
		Where("open = ?", true).
		Order("id asc").
		Find(&out).Error
	return out, err
}

// SetMegaPollMessage records where the mega poll message was posted.
func SetMegaPollMessage(ctx context.Context, db *gorm.DB, id int, channel, link string) error {
	res := db.WithContext(ctx).
		Model(&domain.MegaPoll{}).
		Where("id = ?", id).
		Updates(map[string]any{"channel": channel, "link": link})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CloseMegaPoll flips the open flag; the message keeps its last rendering.
func CloseMegaPoll(ctx context.Context, db *gorm.DB, id int) error {
	res := db.WithContext(ctx).
		Model(&domain.MegaPoll{}).
		Where("id = ?", id).
		Update("open", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MegaSelectionsForUser returns the ids of every option of the poll the user
// currently selects, in option creation order.
func MegaSelectionsForUser(ctx context.Context, db *gorm.DB, pollID int, userID string) ([]int, error) {
	var ids []int
	err := db.WithContext(ctx).
		Table(megaPollSelections+" AS ms").
		Joins("JOIN mega_poll_options mo ON mo.id = ms.mega_poll_option_id").
		Where("mo.poll_id = ? AND ms.member_id = ?", pollID, userID).
		Order("mo.position asc").
		Pluck("mo.id", &ids).Error
	return ids, err
}

// ConnectMegaVote records that userID selects optionID. Idempotent.
func ConnectMegaVote(ctx context.Context, db *gorm.DB, optionID int, userID string) error {
	return db.WithContext(ctx).
		Model(&domain.MegaPollOption{ID: optionID}).
		Association("Selected").
		Append(&domain.Member{ID: userID})
}

// DisconnectMegaVote revokes userID's selection of optionID.
func DisconnectMegaVote(ctx context.Context, db *gorm.DB, optionID int, userID string) error {
	return db.WithContext(ctx).
		Model(&domain.MegaPollOption{ID: optionID}).
		Association("Selected").
		Delete(&domain.Member{ID: userID})
}

// TallyMegaPoll counts selections per option in creation order.
func TallyMegaPoll(ctx context.Context, db *gorm.DB, pollID int) ([]OptionTally, error) {
	var opts []domain.MegaPollOption
	if err := db.WithContext(ctx).
		Where("poll_id = ?", pollID).
		Order("position asc").
		Find(&opts).Error; err != nil {
		return nil, err
	}

	out := make([]OptionTally, 0, len(opts))
	for _, o := range opts {
		var n int64
		if err := db.WithContext(ctx).
			Table(megaPollSelections).
			Where("mega_poll_option_id = ?", o.ID).
			Count(&n).Error; err != nil {
			return nil, err
		}
		out = append(out, OptionTally{OptionID: o.ID, Position: o.Position, Label: o.Label, Count: int(n)})
	}
	return out, nil
}
