package repo

import (
	"context"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMemberDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:memberrepo_"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestEnsureMember_CreatesOnce(t *testing.T) {
	db := newMemberDB(t)
	ctx := context.Background()

	m1, err := EnsureMember(ctx, db, "u1")
	if err != nil {
		t.Fatalf("EnsureMember: %v", err)
	}
	m2, err := EnsureMember(ctx, db, "u1")
	if err != nil {
		t.Fatalf("EnsureMember (repeat): %v", err)
	}
	if m1.ID != m2.ID {
		t.Fatalf("different rows for same id: %+v vs %+v", m1, m2)
	}

	var n int64
	db.Table("members").Count(&n)
	if n != 1 {
		t.Fatalf("expected 1 member row, got %d", n)
	}
}

func TestGrantVoteReward_Accumulates(t *testing.T) {
	db := newMemberDB(t)
	ctx := context.Background()

	EnsureMember(ctx, db, "u1")
	if err := GrantVoteReward(ctx, db, "u1", 3, 0.25); err != nil {
		t.Fatalf("GrantVoteReward: %v", err)
	}
	if err := GrantVoteReward(ctx, db, "u1", 3, 0.25); err != nil {
		t.Fatalf("GrantVoteReward (second): %v", err)
	}

	m, err := GetMember(ctx, db, "u1")
	if err != nil {
		t.Fatalf("GetMember: %v", err)
	}
	if m.XP != 6 || m.Saves != 0.5 {
		t.Fatalf("unexpected ledger: xp=%d saves=%v", m.XP, m.Saves)
	}

	if err := GrantVoteReward(ctx, db, "missing", 3, 0.25); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for unknown member, got %v", err)
	}
}
