package repo

import (
	"context"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMegaDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:megarepo_"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
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

func TestMegaPoll_SelectionEdits(t *testing.T) {
	db := newMegaDB(t)
	ctx := context.Background()

	p, err := CreateMegaPoll(ctx, db, "checklist", "u1", "btn-1", []string{"one", "two", "three"})
	if err != nil {
		t.Fatalf("CreateMegaPoll: %v", err)
	}
	EnsureMember(ctx, db, "voter")

	// first submit: {one, three}
	ConnectMegaVote(ctx, db, p.Options[0].ID, "voter")
	ConnectMegaVote(ctx, db, p.Options[2].ID, "voter")

	sel, err := MegaSelectionsForUser(ctx, db, p.ID, "voter")
	if err != nil {
		t.Fatalf("MegaSelectionsForUser: %v", err)
	}
	if len(sel) != 2 || sel[0] != p.Options[0].ID || sel[1] != p.Options[2].ID {
		t.Fatalf("unexpected selections: %v", sel)
	}

	// resubmit with {three}: option one disconnected, three stays, no dup rows
	DisconnectMegaVote(ctx, db, p.Options[0].ID, "voter")
	ConnectMegaVote(ctx, db, p.Options[2].ID, "voter")

	sel, _ = MegaSelectionsForUser(ctx, db, p.ID, "voter")
	if len(sel) != 1 || sel[0] != p.Options[2].ID {
		t.Fatalf("unexpected selections after resubmit: %v", sel)
	}

	tally, err := TallyMegaPoll(ctx, db, p.ID)
	if err != nil {
		t.Fatalf("TallyMegaPoll: %v", err)
	}
	if tally[0].Count != 0 || tally[1].Count != 0 || tally[2].Count != 1 {
		t.Fatalf("unexpected tally: %+v", tally)
	}
}

func TestGetMegaPollByButton(t *testing.T) {
	db := newMegaDB(t)
	ctx := context.Background()

	p, _ := CreateMegaPoll(ctx, db, "t", "u1", "btn-xyz", []string{"a"})

	got, err := GetMegaPollByButton(ctx, db, "btn-xyz")
	if err != nil {
		t.Fatalf("GetMegaPollByButton: %v", err)
	}
	if got.ID != p.ID {
		t.Fatalf("wrong poll: %+v", got)
	}

	if _, err := GetMegaPollByButton(ctx, db, "nope"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListOpenMegaPolls_ExcludesClosed(t *testing.T) {
	db := newMegaDB(t)
	ctx := context.Background()

	open, _ := CreateMegaPoll(ctx, db, "open", "u1", "b1", []string{"a"})
	closed, _ := CreateMegaPoll(ctx, db, "closed", "u1", "b2", []string{"a"})
	if err := CloseMegaPoll(ctx, db, closed.ID); err != nil {
		t.Fatalf("CloseMegaPoll: %v", err)
	}

	got, err := ListOpenMegaPolls(ctx, db)
	if err != nil {
		t.Fatalf("ListOpenMegaPolls: %v", err)
	}
	if len(got) != 1 || got[0].ID != open.ID {
		t.Fatalf("expected only the open mega poll, got %+v", got)
	}
}
