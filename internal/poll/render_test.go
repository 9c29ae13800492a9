package poll

import (
	"strings"
	"testing"

	"github.com/qotdbot/qotdbot/internal/chat"
	"github.com/qotdbot/qotdbot/internal/domain"
	"github.com/qotdbot/qotdbot/internal/repo"
)

func TestRenderOpen_PairsOptionsWithPalette(t *testing.T) {
	p := &domain.Poll{
		ID:    7,
		Title: "favourite pet",
		Options: []domain.PollOption{
			{Label: "Cats"},
			{Label: "Dogs"},
		},
	}
	e := RenderOpen(p, &chat.EmbedAuthor{Name: "alice"})

	if e.Title != "favourite pet" || e.Footer != "Id: 7" {
		t.Fatalf("header wrong: %+v", e)
	}
	if e.Author == nil || e.Author.Name != "alice" {
		t.Fatalf("author dropped")
	}
	if len(e.Fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(e.Fields))
	}
	if e.Fields[0].Name != "🔴: Cats" || e.Fields[1].Name != "🔵: Dogs" {
		t.Fatalf("palette pairing wrong: %+v", e.Fields)
	}
}

func TestRenderResults_BarChart(t *testing.T) {
	p := &domain.Poll{ID: 3, Title: "t"}
	tally := []repo.OptionTally{
		{Label: "a", Count: 0},
		{Label: "b", Count: 4},
	}
	e := RenderResults(p, tally, nil)

	if e.Description != "Results:" {
		t.Fatalf("description: %q", e.Description)
	}
	if e.Fields[0].Value != " 0" {
		t.Fatalf("zero-vote bar: %q", e.Fields[0].Value)
	}
	if e.Fields[1].Value != strings.Repeat("█", 4)+" 4" {
		t.Fatalf("bar: %q", e.Fields[1].Value)
	}
}

func TestRenderMega_ListsOptionsInOrder(t *testing.T) {
	p := &domain.MegaPoll{
		ID:    1,
		Title: "reading list",
		Options: []domain.MegaPollOption{
			{Label: "one"},
			{Label: "two"},
		},
	}
	e := RenderMega(p)

	if e.Description != "- one\n- two\n" {
		t.Fatalf("description: %q", e.Description)
	}
}

func TestEmojiIndex(t *testing.T) {
	if emojiIndex("🔴") != 0 || emojiIndex("⚫") != 8 {
		t.Fatalf("palette order broken")
	}
	if emojiIndex("😀") != -1 {
		t.Fatalf("non-palette emoji should map to -1")
	}
}
