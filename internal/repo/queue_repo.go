// Package repo – send-queue repository.
//
// The queue is the durable FIFO of pending questions and polls awaiting the
// daily send. Order is the autoincrement id; dequeue deletes the row, so the
// queue survives restarts with no in-memory copy to rebuild.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/qotdbot/qotdbot/internal/domain"
)

// Queue entry kinds.
const (
	QueueKindQuestion = "question"
	QueueKindPoll     = "poll"
)

// PushQueue appends a reference to the end of the send queue.
func PushQueue(ctx context.Context, db *gorm.DB, kind string, refID int) (*domain.QueueEntry, error) {
	e := &domain.QueueEntry{Kind: kind, RefID: refID}
	if err := db.WithContext(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return e, nil
}

// PopQueue removes and returns the oldest queue entry. Returns ErrNotFound
// when the queue is empty.
//
// Read-then-delete runs in a transaction so two concurrent sends cannot pop
// the same entry.
func PopQueue(ctx context.Context, db *gorm.DB) (*domain.QueueEntry, error) {
	var e domain.QueueEntry
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Order("id asc").First(&e).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.QueueEntry{}, e.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListQueue returns the pending entries in send order.
func ListQueue(ctx context.Context, db *gorm.DB) ([]domain.QueueEntry, error) {
	var out []domain.QueueEntry
	err := db.WithContext(ctx).Order("id asc").Find(&out).Error
	return out, err
}

// QueueLen returns the number of pending entries.
func QueueLen(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.QueueEntry{}).Count(&n).Error
	return n, err
}
