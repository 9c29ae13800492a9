// Package poll implements the poll lifecycle engine: rendering and tallying
// polls, the reaction-driven single-choice voting machine, the menu-driven
// multi-select variant, and closure with results rendering.
//
// The package holds no vote state of its own. Every decision is made against
// a fresh read of the store: poll lookup by message id on each reaction,
// selection sets re-read before every edit, tallies recomputed by counting
// selection rows. In-memory structures are limited to the watcher registries
// mapping message/component ids to poll ids, which are rebuilt from the store
// on startup.
package poll

import "errors"

// EmojiList is the fixed prioritized emoji palette for reaction polls.
// Options are paired with emojis by position at render time; the list length
// is the hard capacity bound of the reaction variant.
var EmojiList = []string{"🔴", "🔵", "🟣", "🟢", "🟡", "🟠", "🟤", "⚪", "⚫"}

// MaxReactionOptions is the option capacity of the reaction variant.
// Polls with more options must use the mega (menu) variant.
var MaxReactionOptions = len(EmojiList)

var (
	// ErrTooManyOptions is returned when a reaction poll is created with
	// more options than the emoji palette can show.
	ErrTooManyOptions = errors.New("too many options for a reaction poll")

	// ErrPollClosed is returned when an operation requires an open poll.
	ErrPollClosed = errors.New("poll is closed")

	// ErrNoOptions is returned when a poll is created with no options.
	ErrNoOptions = errors.New("poll needs at least one option")
)

// emojiIndex returns the option position an emoji maps to, or -1 when the
// emoji is not part of the palette.
func emojiIndex(emoji string) int {
	for i, e := range EmojiList {
		if e == emoji {
			return i
		}
	}
	return -1
}
