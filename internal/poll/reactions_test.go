package poll

import (
	"context"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/qotdbot/qotdbot/internal/chat"
	"github.com/qotdbot/qotdbot/internal/chat/chattest"
	"github.com/qotdbot/qotdbot/internal/config"
	"github.com/qotdbot/qotdbot/internal/domain"
	"github.com/qotdbot/qotdbot/internal/repo"
)

func newPollDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:poll_"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newMachine(t *testing.T, db *gorm.DB, client chat.Client) *Reactions {
	t.Helper()
	return NewReactions(db, client, config.RewardConfig{XP: 3, Saves: 0.25}, zerolog.Nop())
}

// seedAskedPoll creates a poll, marks it asked on a seeded fake message, and
// returns it reloaded from the store.
func seedAskedPoll(t *testing.T, db *gorm.DB, fake *chattest.Fake, title string, options []string) *domain.Poll {
	t.Helper()
	ctx := context.Background()
	p, err := repo.CreatePoll(ctx, db, title, "author", options)
	if err != nil {
		t.Fatalf("CreatePoll: %v", err)
	}
	link := "live-" + title
	fake.Seed("chan", link)
	if err := repo.MarkPollAsked(ctx, db, p.ID, "chan", link, time.Now().UTC()); err != nil {
		t.Fatalf("MarkPollAsked: %v", err)
	}
	got, err := repo.GetPoll(ctx, db, p.ID)
	if err != nil {
		t.Fatalf("GetPoll: %v", err)
	}
	return got
}

func react(m *Reactions, messageID, userID, emoji string) bool {
	return m.HandleReaction(context.Background(), chat.ReactionEvent{
		ChannelID: "chan",
		MessageID: messageID,
		User:      chat.User{ID: userID},
		Emoji:     emoji,
	})
}

func TestHandleReaction_SingleChoiceChangeOfMind(t *testing.T) {
	db := newPollDB(t)
	fake := chattest.New()
	m := newMachine(t, db, fake)
	ctx := context.Background()

	p := seedAskedPoll(t, db, fake, "pets", []string{"Cats", "Dogs", "Birds"})
	if err := m.Attach(ctx, "chan", p.Link, p.ID); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	if !react(m, p.Link, "alice", "🔴") { // Cats
		t.Fatalf("first vote not accepted")
	}
	if !react(m, p.Link, "alice", "🔵") { // Dogs
		t.Fatalf("second vote not accepted")
	}

	ids, err := repo.SelectedOptionIDs(ctx, db, p.ID, "alice")
	if err != nil {
		t.Fatalf("SelectedOptionIDs: %v", err)
	}
	if len(ids) != 1 || ids[0] != p.Options[1].ID {
		t.Fatalf("expected only Dogs selected, got %v", ids)
	}

	tally, _ := repo.TallyPoll(ctx, db, p.ID)
	if tally[0].Count != 0 || tally[1].Count != 1 || tally[2].Count != 0 {
		t.Fatalf("unexpected tally: %+v", tally)
	}

	// visible reactions are removed on every event
	if len(fake.RemovedReactions) != 2 {
		t.Fatalf("expected 2 reaction removals, got %d", len(fake.RemovedReactions))
	}
}

func TestHandleReaction_RewardGrantedOncePerPoll(t *testing.T) {
	db := newPollDB(t)
	fake := chattest.New()
	m := newMachine(t, db, fake)
	ctx := context.Background()

	p := seedAskedPoll(t, db, fake, "reward", []string{"a", "b"})
	m.Attach(ctx, "chan", p.Link, p.ID)

	react(m, p.Link, "bob", "🔴")
	react(m, p.Link, "bob", "🔵")
	react(m, p.Link, "bob", "🔴")

	member, err := repo.GetMember(ctx, db, "bob")
	if err != nil {
		t.Fatalf("GetMember: %v", err)
	}
	if member.XP != 3 || member.Saves != 0.25 {
		t.Fatalf("reward not granted exactly once: xp=%d saves=%v", member.XP, member.Saves)
	}
}

func TestHandleReaction_UnknownEmojiConsumedWithoutVote(t *testing.T) {
	db := newPollDB(t)
	fake := chattest.New()
	m := newMachine(t, db, fake)
	ctx := context.Background()

	p := seedAskedPoll(t, db, fake, "unknown", []string{"a", "b"})
	m.Attach(ctx, "chan", p.Link, p.ID)

	if !react(m, p.Link, "carol", "😀") {
		t.Fatalf("unknown emoji should be consumed")
	}
	// palette emoji beyond the option count behaves the same
	if !react(m, p.Link, "carol", "🟣") {
		t.Fatalf("out-of-range palette emoji should be consumed")
	}

	tally, _ := repo.TallyPoll(ctx, db, p.ID)
	for _, tl := range tally {
		if tl.Count != 0 {
			t.Fatalf("vote recorded for unknown emoji: %+v", tally)
		}
	}
	if len(fake.RemovedReactions) != 2 {
		t.Fatalf("reactions not removed: %d", len(fake.RemovedReactions))
	}
}

func TestHandleReaction_ClosedPollFailsClosedAndDetaches(t *testing.T) {
	db := newPollDB(t)
	fake := chattest.New()
	m := newMachine(t, db, fake)
	ctx := context.Background()

	p := seedAskedPoll(t, db, fake, "stale", []string{"a"})
	m.Attach(ctx, "chan", p.Link, p.ID)

	if err := repo.ClosePoll(ctx, db, p.ID, "res"); err != nil {
		t.Fatalf("ClosePoll: %v", err)
	}

	if react(m, p.Link, "dave", "🔴") {
		t.Fatalf("closed poll accepted a vote")
	}
	if m.Watching(p.Link) {
		t.Fatalf("watcher not detached after stale event")
	}
	if len(fake.RemovedReactions) != 1 {
		t.Fatalf("late reaction not removed from message")
	}
}

func TestHandleReaction_IgnoresBotsAndUnwatchedMessages(t *testing.T) {
	db := newPollDB(t)
	fake := chattest.New()
	m := newMachine(t, db, fake)
	ctx := context.Background()

	p := seedAskedPoll(t, db, fake, "ignore", []string{"a"})
	m.Attach(ctx, "chan", p.Link, p.ID)

	if m.HandleReaction(ctx, chat.ReactionEvent{
		ChannelID: "chan", MessageID: p.Link,
		User: chat.User{ID: "bot", Bot: true}, Emoji: "🔴",
	}) {
		t.Fatalf("bot reaction accepted")
	}
	if react(m, "unrelated-message", "eve", "🔴") {
		t.Fatalf("unwatched message accepted")
	}
	if len(fake.RemovedReactions) != 0 {
		t.Fatalf("removal issued for ignored events")
	}
}

func TestClose_PostsResultsAndIsRepeatable(t *testing.T) {
	db := newPollDB(t)
	fake := chattest.New()
	m := newMachine(t, db, fake)
	ctx := context.Background()

	p := seedAskedPoll(t, db, fake, "close", []string{"a", "b"})
	m.Attach(ctx, "chan", p.Link, p.ID)
	react(m, p.Link, "u1", "🔴")
	react(m, p.Link, "u2", "🔵")
	react(m, p.Link, "u3", "🔵")

	res, err := m.Close(ctx, p.ID, nil)
	if err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, _ := repo.GetPoll(ctx, db, p.ID)
	if got.Open || got.ResultsLink != res.ID {
		t.Fatalf("poll not closed properly: %+v", got)
	}
	if len(fake.Cleared) != 1 || fake.Cleared[0] != p.Link {
		t.Fatalf("reactions not cleared: %v", fake.Cleared)
	}
	if m.Watching(p.Link) {
		t.Fatalf("watcher still attached after close")
	}

	sent := fake.LastSent()
	if sent == nil || len(sent.Embeds) != 1 {
		t.Fatalf("no results embed sent")
	}
	fields := sent.Embeds[0].Fields
	if fields[0].Value != " 0" || fields[1].Value != "██ 2" {
		t.Fatalf("unexpected bar chart: %+v", fields)
	}

	// closing again re-renders but never mutates counts
	before, _ := repo.TallyPoll(ctx, db, p.ID)
	if _, err := m.Close(ctx, p.ID, nil); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	after, _ := repo.TallyPoll(ctx, db, p.ID)
	for i := range before {
		if before[i].Count != after[i].Count {
			t.Fatalf("double close mutated votes: %+v vs %+v", before, after)
		}
	}
}

func TestClose_EditsInPlaceInDesignatedChannel(t *testing.T) {
	db := newPollDB(t)
	fake := chattest.New()
	m := newMachine(t, db, fake)
	m.EditInPlaceChannel = "chan"
	ctx := context.Background()

	p := seedAskedPoll(t, db, fake, "meta", []string{"a"})
	m.Attach(ctx, "chan", p.Link, p.ID)

	res, err := m.Close(ctx, p.ID, nil)
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if res.ID != p.Link {
		t.Fatalf("expected results to edit the original message, got %s", res.ID)
	}
	if len(fake.Edits) != 1 || fake.Edits[0].MessageID != p.Link {
		t.Fatalf("original message not edited: %+v", fake.Edits)
	}
}

func TestAttach_ReplaysOfflineReactions(t *testing.T) {
	db := newPollDB(t)
	fake := chattest.New()
	m := newMachine(t, db, fake)
	ctx := context.Background()

	p := seedAskedPoll(t, db, fake, "recover", []string{"a", "b", "c"})

	// two selections persisted before the restart
	repo.EnsureMember(ctx, db, "old1")
	repo.EnsureMember(ctx, db, "old2")
	repo.ConnectVote(ctx, db, p.Options[0].ID, "old1")
	repo.ConnectVote(ctx, db, p.Options[1].ID, "old2")

	// reactions left on the live message while the process was down
	fake.AddReaction(p.Link, "🟣", chat.User{ID: "new1"})          // picks option c
	fake.AddReaction(p.Link, "🔵", chat.User{ID: "old1"})          // old1 changes to b
	fake.AddReaction(p.Link, "🔴", chat.User{ID: "ghost", Bot: true}) // ignored

	if err := m.Attach(ctx, "chan", p.Link, p.ID); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	tally, err := repo.TallyPoll(ctx, db, p.ID)
	if err != nil {
		t.Fatalf("TallyPoll: %v", err)
	}
	// old1 moved a->b, old2 stays on b, new1 on c
	if tally[0].Count != 0 || tally[1].Count != 2 || tally[2].Count != 1 {
		t.Fatalf("recovery tallies wrong: %+v", tally)
	}

	// replayed reactions are removed like live ones
	if got := len(fake.RemovedReactions); got != 2 {
		t.Fatalf("expected 2 removals for replayed human reactions, got %d", got)
	}

	// identical to a close computed without recovery
	tally2, _ := repo.TallyPoll(ctx, db, p.ID)
	for i := range tally {
		if tally[i] != tally2[i] {
			t.Fatalf("tally not stable: %+v vs %+v", tally, tally2)
		}
	}
}

func TestPost_CapacityBound(t *testing.T) {
	db := newPollDB(t)
	fake := chattest.New()
	m := newMachine(t, db, fake)
	ctx := context.Background()

	labels := make([]string, MaxReactionOptions+1)
	for i := range labels {
		labels[i] = "opt"
	}
	p, err := repo.CreatePoll(ctx, db, "big", "author", labels)
	if err != nil {
		t.Fatalf("CreatePoll: %v", err)
	}
	p, _ = repo.GetPoll(ctx, db, p.ID)

	if _, err := m.Post(ctx, p, "chan", "", nil); err != ErrTooManyOptions {
		t.Fatalf("expected ErrTooManyOptions, got %v", err)
	}
}

func TestPost_SeedsReactionsAndAttaches(t *testing.T) {
	db := newPollDB(t)
	fake := chattest.New()
	m := newMachine(t, db, fake)
	ctx := context.Background()

	p, _ := repo.CreatePoll(ctx, db, "fresh", "author", []string{"x", "y"})
	p, _ = repo.GetPoll(ctx, db, p.ID)

	msg, err := m.Post(ctx, p, "chan", "hello", nil)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}

	if len(fake.OwnReactions) != 2 {
		t.Fatalf("expected 2 seed reactions, got %v", fake.OwnReactions)
	}
	if !m.Watching(msg.ID) {
		t.Fatalf("machine not attached to the fresh message")
	}

	got, _ := repo.GetPoll(ctx, db, p.ID)
	if !got.Asked || got.Link != msg.ID || got.Channel != "chan" || got.Date == nil {
		t.Fatalf("poll not marked asked: %+v", got)
	}
}
