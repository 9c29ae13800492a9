// Package chat defines the narrow chat-platform surface the bot consumes:
// posting and editing messages with embeds, reacting, observing reaction and
// component events, threads, and ephemeral component replies.
//
// Core packages depend only on the Client and Interaction types declared
// here; the gateway-backed implementation lives in session.go. Connection
// handling, command plumbing, and everything else the platform library does
// stays behind this boundary.
package chat

import (
	"context"
	"time"
)

// User is the projection of a platform user the core needs.
type User struct {
	ID  string
	Bot bool
}

// Reaction is one emoji currently present on a message.
type Reaction struct {
	Emoji string
	Count int
}

// Message is the projection of a posted message the core needs. IDs are the
// platform snowflakes in decimal string form.
type Message struct {
	ID        string
	ChannelID string
	Timestamp time.Time
	Reactions []Reaction
}

// EmbedField is one name/value pair of an embed.
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// EmbedAuthor credits the author of an embed.
type EmbedAuthor struct {
	Name    string
	IconURL string
}

// Embed is a platform-agnostic structured message body.
type Embed struct {
	Title       string
	Description string
	Fields      []EmbedField
	Footer      string
	Author      *EmbedAuthor
	ImageURL    string
	Timestamp   *time.Time
}

// Button is a single action button attached to a message.
type Button struct {
	CustomID string
	Label    string
}

// MenuOption is one entry of a select menu.
type MenuOption struct {
	Label   string
	Value   string
	Default bool
}

// Menu is a multi-select menu presented in an ephemeral reply.
type Menu struct {
	CustomID  string
	MaxValues int
	Options   []MenuOption
}

// ReactionEvent is a live reaction-add on some message.
type ReactionEvent struct {
	ChannelID string
	MessageID string
	User      User
	Emoji     string
}

// Client is the message surface consumed by the core. All methods issue
// platform calls; implementations must be safe for concurrent use.
type Client interface {
	// SendMessage posts content (and optional embeds) to a channel.
	SendMessage(ctx context.Context, channelID, content string, embeds ...Embed) (*Message, error)

	// SendButtonMessage posts a message carrying a single action button.
	SendButtonMessage(ctx context.Context, channelID, content string, embed *Embed, button Button) (*Message, error)

	// EditMessage replaces the content and embeds of an existing message.
	EditMessage(ctx context.Context, channelID, messageID, content string, embeds ...Embed) (*Message, error)

	// Message fetches a message, including its current reactions.
	Message(ctx context.Context, channelID, messageID string) (*Message, error)

	// React adds the bot's own reaction to a message.
	React(ctx context.Context, channelID, messageID, emoji string) error

	// ReactionUsers lists the users currently reacting to a message with emoji.
	ReactionUsers(ctx context.Context, channelID, messageID, emoji string) ([]User, error)

	// RemoveUserReaction removes one user's reaction from a message.
	RemoveUserReaction(ctx context.Context, channelID, messageID, userID, emoji string) error

	// RemoveAllReactions clears every reaction from a message.
	RemoveAllReactions(ctx context.Context, channelID, messageID string) error

	// StartThread starts a discussion thread on a message.
	StartThread(ctx context.Context, channelID, messageID, name string) error

	// SendThreadMessage posts into the thread started on the given message.
	SendThreadMessage(ctx context.Context, parentMessageID, content string) (*Message, error)
}

// Interaction is a single component activation (button press or menu submit)
// that can be answered exactly once. Values is non-empty only for menu
// submissions.
type Interaction interface {
	// UserID identifies the acting user.
	UserID() string

	// CustomID identifies the activated component.
	CustomID() string

	// Values returns the selected option values of a menu submission.
	Values() []string

	// RespondMenu sends an ephemeral reply carrying a select menu.
	RespondMenu(ctx context.Context, content string, menu Menu) error

	// UpdateMenu edits the component message the interaction came from,
	// replacing content and menu. Used to re-render after a submit.
	UpdateMenu(ctx context.Context, content string, menu Menu) error
}
