package poll

import (
	"fmt"
	"strings"

	"github.com/qotdbot/qotdbot/internal/chat"
	"github.com/qotdbot/qotdbot/internal/domain"
	"github.com/qotdbot/qotdbot/internal/repo"
)

// RenderOpen projects an open poll into an embed: one field per option,
// pairing the option label with its palette emoji by position. Pure; the
// caller supplies the poll as read from the store.
func RenderOpen(p *domain.Poll, author *chat.EmbedAuthor) chat.Embed {
	e := chat.Embed{
		Title:  p.Title,
		Footer: fmt.Sprintf("Id: %d", p.ID),
		Author: author,
	}
	for i, o := range p.Options {
		emoji := ""
		if i < len(EmojiList) {
			emoji = EmojiList[i]
		}
		e.Fields = append(e.Fields, chat.EmbedField{
			Name:  emoji + ": " + o.Label,
			Value: " ",
		})
	}
	return e
}

// RenderResults projects a closed poll and its tally into a results embed
// with a bar chart: one block character per vote, followed by the count.
func RenderResults(p *domain.Poll, tally []repo.OptionTally, author *chat.EmbedAuthor) chat.Embed {
	e := chat.Embed{
		Title:       p.Title,
		Description: "Results:",
		Footer:      fmt.Sprintf("Id: %d", p.ID),
		Author:      author,
	}
	for _, t := range tally {
		e.Fields = append(e.Fields, chat.EmbedField{
			Name:  t.Label + ":",
			Value: strings.Repeat("█", t.Count) + " " + fmt.Sprint(t.Count),
		})
	}
	return e
}

// RenderMega projects a mega poll into its message embed: the checklist in
// creation order.
func RenderMega(p *domain.MegaPoll) chat.Embed {
	e := chat.Embed{
		Title:  p.Title,
		Footer: fmt.Sprintf("Id: %d", p.ID),
	}
	var b strings.Builder
	for _, o := range p.Options {
		fmt.Fprintf(&b, "- %s\n", o.Label)
	}
	e.Description = b.String()
	return e
}
