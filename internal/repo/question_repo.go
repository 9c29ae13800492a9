// Package repo – Question repository.
//
// Questions are append-mostly: they are created by the submit command, marked
// asked exactly once by the daily send, and backfilled with a date at startup
// when the row predates the date column.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/qotdbot/qotdbot/internal/domain"
)

// CreateQuestion inserts a new unasked question. For rich prompts, isEmbed is
// true and embedJSON carries the serialized embed; prompt then holds the
// embed title for listing purposes.
func CreateQuestion(ctx context.Context, db *gorm.DB, prompt, authorID string, isEmbed bool, embedJSON string) (*domain.Question, error) {
	q := &domain.Question{
		Prompt:    prompt,
		AuthorID:  authorID,
		IsEmbed:   isEmbed,
		EmbedJSON: embedJSON,
	}
	if err := db.WithContext(ctx).Create(q).Error; err != nil {
		return nil, err
	}
	return q, nil
}

// GetQuestion fetches a question by ID, or ErrNotFound.
func GetQuestion(ctx context.Context, db *gorm.DB, id int) (*domain.Question, error) {
	var q domain.Question
	if err := db.WithContext(ctx).First(&q, id).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

// MarkQuestionAsked records that a question was posted.
func MarkQuestionAsked(ctx context.Context, db *gorm.DB, id int, channel, link string, t time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Question{}).
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

// ListAskedQuestionsWithoutDate returns asked questions missing a date, for
// the startup backfill pass.
func ListAskedQuestionsWithoutDate(ctx context.Context, db *gorm.DB) ([]domain.Question, error) {
	var out []domain.Question
	err := db.WithContext(ctx).
		Where("asked = ? AND date IS NULL", true).
		Find(&out).Error
	return out, err
}

// SetQuestionDate backfills the asked timestamp of a question.
func SetQuestionDate(ctx context.Context, db *gorm.DB, id int, t time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Question{}).
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
