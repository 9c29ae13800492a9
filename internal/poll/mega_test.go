package poll

import (
	"context"
	"sort"
	"strconv"
	"testing"

	"github.com/rs/zerolog"

	"github.com/qotdbot/qotdbot/internal/chat"
	"github.com/qotdbot/qotdbot/internal/chat/chattest"
	"github.com/qotdbot/qotdbot/internal/repo"
)

// fakeInteraction is a recording chat.Interaction.
type fakeInteraction struct {
	userID   string
	customID string
	values   []string

	responded *chat.Menu
	updated   *chat.Menu
	content   string
}

func (f *fakeInteraction) UserID() string   { return f.userID }
func (f *fakeInteraction) CustomID() string { return f.customID }
func (f *fakeInteraction) Values() []string { return f.values }

func (f *fakeInteraction) RespondMenu(ctx context.Context, content string, menu chat.Menu) error {
	f.responded = &menu
	f.content = content
	return nil
}

func (f *fakeInteraction) UpdateMenu(ctx context.Context, content string, menu chat.Menu) error {
	f.updated = &menu
	f.content = content
	return nil
}

func optionValues(t *testing.T, menu *chat.Menu, onlyDefaults bool) []string {
	t.Helper()
	var out []string
	for _, o := range menu.Options {
		if onlyDefaults && !o.Default {
			continue
		}
		out = append(out, o.Value)
	}
	sort.Strings(out)
	return out
}

func TestMega_ButtonOpensPrefilledMenu(t *testing.T) {
	db := newPollDB(t)
	fake := chattest.New()
	m := NewMega(db, fake, zerolog.Nop())
	ctx := context.Background()

	p, err := m.Create(ctx, "books", "author", "chan", []string{"one", "two", "three"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sent := fake.LastSent(); sent == nil || sent.Button == nil || sent.Button.CustomID != p.ButtonID {
		t.Fatalf("poll message missing vote button")
	}

	press := &fakeInteraction{userID: "alice", customID: p.ButtonID}
	if !m.HandleButton(ctx, press) {
		t.Fatalf("button press not handled")
	}
	if press.responded == nil {
		t.Fatalf("no menu response")
	}
	if len(press.responded.Options) != 3 || press.responded.MaxValues != 3 {
		t.Fatalf("menu shape wrong: %+v", press.responded)
	}
	if got := optionValues(t, press.responded, true); len(got) != 0 {
		t.Fatalf("fresh user should have no defaults, got %v", got)
	}
}

func TestMega_SubmitReplacesSelectionSet(t *testing.T) {
	db := newPollDB(t)
	fake := chattest.New()
	m := NewMega(db, fake, zerolog.Nop())
	ctx := context.Background()

	p, err := m.Create(ctx, "diff", "author", "chan", []string{"one", "two", "three"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	one := strconv.Itoa(p.Options[0].ID)
	three := strconv.Itoa(p.Options[2].ID)

	// first submission: {one, three}
	press := &fakeInteraction{userID: "bob", customID: p.ButtonID}
	m.HandleButton(ctx, press)
	submit := &fakeInteraction{
		userID:   "bob",
		customID: press.responded.CustomID,
		values:   []string{one, three},
	}
	if !m.HandleSelect(ctx, submit) {
		t.Fatalf("first submit not handled")
	}

	got, _ := repo.MegaSelectionsForUser(ctx, db, p.ID, "bob")
	if len(got) != 2 {
		t.Fatalf("expected 2 selections, got %v", got)
	}

	// second submission through the refreshed menu: {three}
	resubmit := &fakeInteraction{
		userID:   "bob",
		customID: submit.updated.CustomID,
		values:   []string{three},
	}
	if !m.HandleSelect(ctx, resubmit) {
		t.Fatalf("second submit not handled")
	}

	got, _ = repo.MegaSelectionsForUser(ctx, db, p.ID, "bob")
	if len(got) != 1 || got[0] != p.Options[2].ID {
		t.Fatalf("expected only option three selected, got %v", got)
	}

	tally, _ := repo.TallyMegaPoll(ctx, db, p.ID)
	if tally[0].Count != 0 || tally[1].Count != 0 || tally[2].Count != 1 {
		t.Fatalf("tally wrong after resubmit: %+v", tally)
	}

	// defaults of the re-rendered menu reflect the saved state
	if def := optionValues(t, resubmit.updated, true); len(def) != 1 || def[0] != three {
		t.Fatalf("menu defaults stale: %v", def)
	}
	if resubmit.content != "Vote counted. You can change your vote anytime." {
		t.Fatalf("unexpected confirmation: %q", resubmit.content)
	}
}

func TestMega_SubmitIgnoresForeignOptionIDs(t *testing.T) {
	db := newPollDB(t)
	fake := chattest.New()
	m := NewMega(db, fake, zerolog.Nop())
	ctx := context.Background()

	p, _ := m.Create(ctx, "strict", "author", "chan", []string{"one", "two"})
	press := &fakeInteraction{userID: "eve", customID: p.ButtonID}
	m.HandleButton(ctx, press)

	submit := &fakeInteraction{
		userID:   "eve",
		customID: press.responded.CustomID,
		values:   []string{"999999", "garbage", strconv.Itoa(p.Options[1].ID)},
	}
	if !m.HandleSelect(ctx, submit) {
		t.Fatalf("submit not handled")
	}

	got, _ := repo.MegaSelectionsForUser(ctx, db, p.ID, "eve")
	if len(got) != 1 || got[0] != p.Options[1].ID {
		t.Fatalf("foreign values leaked into selections: %v", got)
	}
}

func TestMega_ClosedPollIgnoresButton(t *testing.T) {
	db := newPollDB(t)
	fake := chattest.New()
	m := NewMega(db, fake, zerolog.Nop())
	ctx := context.Background()

	p, _ := m.Create(ctx, "done", "author", "chan", []string{"one"})
	if err := repo.CloseMegaPoll(ctx, db, p.ID); err != nil {
		t.Fatalf("CloseMegaPoll: %v", err)
	}

	press := &fakeInteraction{userID: "late", customID: p.ButtonID}
	if m.HandleButton(ctx, press) {
		t.Fatalf("closed mega poll answered a button press")
	}
	if press.responded != nil {
		t.Fatalf("closed mega poll opened a menu")
	}
}

func TestMega_UnknownComponentsNotHandled(t *testing.T) {
	db := newPollDB(t)
	fake := chattest.New()
	m := NewMega(db, fake, zerolog.Nop())
	ctx := context.Background()

	if m.HandleButton(ctx, &fakeInteraction{userID: "x", customID: "nope"}) {
		t.Fatalf("unknown button handled")
	}
	if m.HandleSelect(ctx, &fakeInteraction{userID: "x", customID: "nope"}) {
		t.Fatalf("unknown menu handled")
	}
}

func TestMega_ButtonRepressReplacesMenuRouting(t *testing.T) {
	db := newPollDB(t)
	fake := chattest.New()
	m := NewMega(db, fake, zerolog.Nop())
	ctx := context.Background()

	p, _ := m.Create(ctx, "repress", "author", "chan", []string{"one"})

	first := &fakeInteraction{userID: "alice", customID: p.ButtonID}
	m.HandleButton(ctx, first)
	second := &fakeInteraction{userID: "alice", customID: p.ButtonID}
	m.HandleButton(ctx, second)

	// a stale menu from the earlier press no longer routes
	stale := &fakeInteraction{userID: "alice", customID: first.responded.CustomID}
	if m.HandleSelect(ctx, stale) {
		t.Fatalf("stale menu still routed after re-press")
	}
	live := &fakeInteraction{userID: "alice", customID: second.responded.CustomID}
	if !m.HandleSelect(ctx, live) {
		t.Fatalf("latest menu not routed")
	}

	// another user pressing does not evict alice's menu
	other := &fakeInteraction{userID: "bob", customID: p.ButtonID}
	m.HandleButton(ctx, other)

	m.mu.Lock()
	menus, userMenus := len(m.menus), len(m.userMenus)
	m.mu.Unlock()
	if menus != 2 || userMenus != 2 {
		t.Fatalf("registry not bounded to one menu per user: menus=%d userMenus=%d", menus, userMenus)
	}
}

func TestMega_AttachRecoversButtonRouting(t *testing.T) {
	db := newPollDB(t)
	fake := chattest.New()
	ctx := context.Background()

	first := NewMega(db, fake, zerolog.Nop())
	p, _ := first.Create(ctx, "restart", "author", "chan", []string{"one"})

	// a fresh machine, as after a process restart
	second := NewMega(db, fake, zerolog.Nop())
	press := &fakeInteraction{userID: "alice", customID: p.ButtonID}
	if second.HandleButton(ctx, press) {
		t.Fatalf("unattached machine should not route the button")
	}

	open, err := repo.ListOpenMegaPolls(ctx, db)
	if err != nil {
		t.Fatalf("ListOpenMegaPolls: %v", err)
	}
	for i := range open {
		second.Attach(&open[i])
	}

	if !second.HandleButton(ctx, press) {
		t.Fatalf("button not routed after recovery attach")
	}
}
