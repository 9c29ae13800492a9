// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Poll model
// and its vote relation.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a poll is not found, functions return gorm.ErrRecordNotFound
//     (also exported in this package as ErrNotFound).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// The vote relation (poll_selections) is always queried fresh: tallies are
// recomputed by counting selection rows rather than kept as counters, so a
// missed or duplicated event self-corrects instead of drifting.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/qotdbot/qotdbot/internal/domain"
)

// pollSelections is the join table behind PollOption.Selected.
const pollSelections = "poll_selections"

// OptionTally is the per-option vote count of a poll, in creation order.
type OptionTally struct {
	OptionID int
	Position int
	Label    string
	Count    int
}

// CreatePoll inserts a new poll with its ordered options. Option positions are
// assigned from slice order and never change afterwards.
func CreatePoll(ctx context.Context, db *gorm.DB, title, authorID string, options []string) (*domain.Poll, error) {
	p := &domain.Poll{
		Title:    title,
		AuthorID: authorID,
		Open:     true,
	}
	for i, label := range options {
		p.Options = append(p.Options, domain.PollOption{Position: i, Label: label})
	}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// GetPoll fetches a poll by ID with its options in creation order and the
// current selection sets. Returns ErrNotFound if the poll does not exist.
func GetPoll(ctx context.Context, db *gorm.DB, id int) (*domain.Poll, error) {
	var p domain.Poll
	err := db.WithContext(ctx).
		Preload("Options", func(tx *gorm.DB) *gorm.DB { return tx.Order("position asc") }).
		Preload("Options.Selected").
		First(&p, id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPollByLink fetches a poll by the id of its posted message.
// Returns ErrNotFound when no poll was posted as that message.
func GetPollByLink(ctx context.Context, db *gorm.DB, link string) (*domain.Poll, error) {
	var p domain.Poll
	err := db.WithContext(ctx).
		Preload("Options", func(tx *gorm.DB) *gorm.DB { return tx.Order("position asc") }).
		Preload("Options.Selected").
		Where("link = ?", link).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListOpenPolls returns every poll that was asked and is still open. This is
// the recovery query surface: on startup each returned poll gets a voting
// machine re-attached to its existing message.
func ListOpenPolls(ctx context.Context, db *gorm.DB) ([]domain.Poll, error) {
	var out []domain.Poll
	err := db.WithContext(ctx).
		Preload("Options", func(tx *gorm.DB) *gorm.DB { return tx.Order("position asc") }).
		Where("asked = ? AND open = ?", true, true).
		Order("id asc").
		Find(&out).Error
	return out, err
}

// ListOpenPollsInChannel returns asked, still-open polls posted to channel.
func ListOpenPollsInChannel(ctx context.Context, db *gorm.DB, channel string) ([]domain.Poll, error) {
	var out []domain.Poll
	err := db.WithContext(ctx).
		Where("asked = ? AND open = ? AND channel = ?", true, true, channel).
		Order("id asc").
		Find(&out).Error
	return out, err
}

// ListAskedPollsWithoutDate returns asked polls whose Date column is still
// null, for the startup backfill pass.
func ListAskedPollsWithoutDate(ctx context.Context, db *gorm.DB) ([]domain.Poll, error) {
	var out []domain.Poll
	err := db.WithContext(ctx).
		Where("asked = ? AND date IS NULL", true).
		Find(&out).Error
	return out, err
}

// SetPollDate backfills the asked timestamp of a poll.
func SetPollDate(ctx context.Context, db *gorm.DB, id int, t time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Poll{}).
		Where("id = ?", id).
		Update("date", t)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkPollAsked records that a poll was posted: sets asked, the channel and
// message id, and the asked timestamp.
func MarkPollAsked(ctx context.Context, db *gorm.DB, id int, channel, link string, t time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Poll{}).
		Where("id = ?", id).
		Updates(map[string]any{"asked": true, "channel": channel, "link": link, "date": t})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ClosePoll marks a poll closed and records the id of the results message.
// Calling it on an already-closed poll simply overwrites the results link;
// idempotency is the caller's concern.
func ClosePoll(ctx context.Context, db *gorm.DB, id int, resultsLink string) error {
	res := db.WithContext(ctx).
		Model(&domain.Poll{}).
		Where("id = ?", id).
		Updates(map[string]any{"open": false, "results_link": resultsLink})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SelectedOptionIDs returns every option of the poll the user currently
// selects. The reaction machine keeps this set at size <= 1 but revokes the
// whole set before connecting a new vote, so rows that predate the
// single-choice enforcement are cleaned up on the user's next vote.
func SelectedOptionIDs(ctx context.Context, db *gorm.DB, pollID int, userID string) ([]int, error) {
	var ids []int
	err := db.WithContext(ctx).
		Table(pollSelections+" AS ps").
		Joins("JOIN poll_options po ON po.id = ps.poll_option_id").
		Where("po.poll_id = ? AND ps.member_id = ?", pollID, userID).
		Order("po.position asc").
		Pluck("po.id", &ids).Error
	return ids, err
}

// ConnectVote records that userID selects optionID. Idempotent: appending an
// existing association does not create a duplicate row.
func ConnectVote(ctx context.Context, db *gorm.DB, optionID int, userID string) error {
	return db.WithContext(ctx).
		Model(&domain.PollOption{ID: optionID}).
		Association("Selected").
		Append(&domain.Member{ID: userID})
}

// DisconnectVote revokes userID's selection of optionID. A no-op when the
// selection does not exist.
func DisconnectVote(ctx context.Context, db *gorm.DB, optionID int, userID string) error {
	return db.WithContext(ctx).
		Model(&domain.PollOption{ID: optionID}).
		Association("Selected").
		Delete(&domain.Member{ID: userID})
}

// TallyPoll recomputes per-option vote counts by counting selection rows,
// returned in option creation order. It never reads incremental counters, so
// two calls without intervening votes yield identical results.
func TallyPoll(ctx context.Context, db *gorm.DB, pollID int) ([]OptionTally, error) {
	var opts []domain.PollOption
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
			Table(pollSelections).
			Where("poll_option_id = ?", o.ID).
			Count(&n).Error; err != nil {
			return nil, err
		}
		out = append(out, OptionTally{OptionID: o.ID, Position: o.Position, Label: o.Label, Count: int(n)})
	}
	return out, nil
}
