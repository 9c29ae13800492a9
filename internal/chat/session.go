// Gateway-backed implementation of the Client interface on top of arikawa.
// The Session owns the websocket connection and fans inbound reaction and
// component events out to registered handlers.
package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/diamondburned/arikawa/v3/api"
	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/state"
	"github.com/diamondburned/arikawa/v3/utils/json/option"
	"github.com/rs/zerolog"
)

// ReactionHandler consumes live reaction-add events.
type ReactionHandler func(ev ReactionEvent)

// ComponentHandler consumes button presses or menu submissions.
type ComponentHandler func(ctx context.Context, it Interaction)

// Session is the arikawa-backed chat client. It implements Client and
// delivers gateway events to handlers registered before Open.
type Session struct {
	// State is the underlying arikawa state; the command layer uses it
	// directly for slash-command registration and dispatch.
	State *state.State

	log zerolog.Logger

	mu               sync.RWMutex
	reactionHandlers []ReactionHandler
	buttonHandlers   []ComponentHandler
	selectHandlers   []ComponentHandler
}

// Compile-time check that Session satisfies the consumed surface.
var _ Client = (*Session)(nil)

// NewSession builds a Session for the given bot token. Handlers can be added
// until Open is called.
func NewSession(token string, log zerolog.Logger) *Session {
	st := state.New("Bot " + token)
	st.AddIntents(gateway.IntentGuilds |
		gateway.IntentGuildMessages |
		gateway.IntentGuildMessageReactions)

	s := &Session{
		State: st,
		log:   log.With().Str("component", "chat").Logger(),
	}
	st.AddHandler(s.onReactionAdd)
	st.AddHandler(s.onInteraction)
	return s
}

// Open connects to the gateway.
func (s *Session) Open(ctx context.Context) error {
	return s.State.Open(ctx)
}

// Close tears the gateway connection down.
func (s *Session) Close() error {
	return s.State.Close()
}

// OnReaction registers a handler for reaction-add events.
func (s *Session) OnReaction(h ReactionHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reactionHandlers = append(s.reactionHandlers, h)
}

// OnButton registers a handler for button presses.
func (s *Session) OnButton(h ComponentHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buttonHandlers = append(s.buttonHandlers, h)
}

// OnSelect registers a handler for menu submissions.
func (s *Session) OnSelect(h ComponentHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectHandlers = append(s.selectHandlers, h)
}

func (s *Session) onReactionAdd(ev *gateway.MessageReactionAddEvent) {
	e := ReactionEvent{
		ChannelID: ev.ChannelID.String(),
		MessageID: ev.MessageID.String(),
		User:      User{ID: ev.UserID.String()},
		Emoji:     ev.Emoji.Name,
	}
	if ev.Member != nil {
		e.User.Bot = ev.Member.User.Bot
	}

	s.mu.RLock()
	handlers := s.reactionHandlers
	s.mu.RUnlock()
	for _, h := range handlers {
		h(e)
	}
}

func (s *Session) onInteraction(ev *gateway.InteractionCreateEvent) {
	var (
		it       *gatewayInteraction
		handlers []ComponentHandler
	)

	switch data := ev.Data.(type) {
	case *discord.ButtonInteraction:
		it = &gatewayInteraction{s: s, ev: ev, customID: string(data.CustomID)}
		s.mu.RLock()
		handlers = s.buttonHandlers
		s.mu.RUnlock()
	case *discord.StringSelectInteraction:
		it = &gatewayInteraction{s: s, ev: ev, customID: string(data.CustomID), values: data.Values}
		s.mu.RLock()
		handlers = s.selectHandlers
		s.mu.RUnlock()
	default:
		// slash commands are dispatched by the command layer
		return
	}

	for _, h := range handlers {
		h(context.Background(), it)
	}
}

// SendMessage posts content and embeds to a channel.
func (s *Session) SendMessage(ctx context.Context, channelID, content string, embeds ...Embed) (*Message, error) {
	chID, err := parseChannelID(channelID)
	if err != nil {
		return nil, err
	}
	msg, err := s.State.SendMessage(chID, content, toDiscordEmbeds(embeds)...)
	if err != nil {
		return nil, err
	}
	return fromDiscordMessage(msg), nil
}

// SendButtonMessage posts a message carrying a single action button.
func (s *Session) SendButtonMessage(ctx context.Context, channelID, content string, embed *Embed, button Button) (*Message, error) {
	chID, err := parseChannelID(channelID)
	if err != nil {
		return nil, err
	}

	data := api.SendMessageData{
		Content: content,
		Components: discord.ContainerComponents{
			&discord.ActionRowComponent{
				&discord.ButtonComponent{
					CustomID: discord.ComponentID(button.CustomID),
					Label:    button.Label,
					Style:    discord.PrimaryButtonStyle(),
				},
			},
		},
	}
	if embed != nil {
		data.Embeds = toDiscordEmbeds([]Embed{*embed})
	}

	msg, err := s.State.SendMessageComplex(chID, data)
	if err != nil {
		return nil, err
	}
	return fromDiscordMessage(msg), nil
}

// EditMessage replaces content and embeds of a message.
func (s *Session) EditMessage(ctx context.Context, channelID, messageID, content string, embeds ...Embed) (*Message, error) {
	chID, err := parseChannelID(channelID)
	if err != nil {
		return nil, err
	}
	msgID, err := parseMessageID(messageID)
	if err != nil {
		return nil, err
	}

	es := toDiscordEmbeds(embeds)
	msg, err := s.State.EditMessageComplex(chID, msgID, api.EditMessageData{
		Content: option.NewNullableString(content),
		Embeds:  &es,
	})
	if err != nil {
		return nil, err
	}
	return fromDiscordMessage(msg), nil
}

// Message fetches a message with its current reactions.
func (s *Session) Message(ctx context.Context, channelID, messageID string) (*Message, error) {
	chID, err := parseChannelID(channelID)
	if err != nil {
		return nil, err
	}
	msgID, err := parseMessageID(messageID)
	if err != nil {
		return nil, err
	}
	msg, err := s.State.Message(chID, msgID)
	if err != nil {
		return nil, err
	}
	return fromDiscordMessage(msg), nil
}

// React adds the bot's own reaction.
func (s *Session) React(ctx context.Context, channelID, messageID, emoji string) error {
	chID, err := parseChannelID(channelID)
	if err != nil {
		return err
	}
	msgID, err := parseMessageID(messageID)
	if err != nil {
		return err
	}
	return s.State.React(chID, msgID, discord.APIEmoji(emoji))
}

// ReactionUsers lists users currently reacting with emoji.
func (s *Session) ReactionUsers(ctx context.Context, channelID, messageID, emoji string) ([]User, error) {
	chID, err := parseChannelID(channelID)
	if err != nil {
		return nil, err
	}
	msgID, err := parseMessageID(messageID)
	if err != nil {
		return nil, err
	}
	users, err := s.State.Reactions(chID, msgID, discord.APIEmoji(emoji), 0)
	if err != nil {
		return nil, err
	}
	out := make([]User, 0, len(users))
	for _, u := range users {
		out = append(out, User{ID: u.ID.String(), Bot: u.Bot})
	}
	return out, nil
}

// RemoveUserReaction removes one user's reaction.
func (s *Session) RemoveUserReaction(ctx context.Context, channelID, messageID, userID, emoji string) error {
	chID, err := parseChannelID(channelID)
	if err != nil {
		return err
	}
	msgID, err := parseMessageID(messageID)
	if err != nil {
		return err
	}
	uID, err := parseUserID(userID)
	if err != nil {
		return err
	}
	return s.State.DeleteUserReaction(chID, msgID, uID, discord.APIEmoji(emoji))
}

// RemoveAllReactions clears every reaction from a message.
func (s *Session) RemoveAllReactions(ctx context.Context, channelID, messageID string) error {
	chID, err := parseChannelID(channelID)
	if err != nil {
		return err
	}
	msgID, err := parseMessageID(messageID)
	if err != nil {
		return err
	}
	return s.State.DeleteAllReactions(chID, msgID)
}

// StartThread starts a one-day-archive discussion thread on a message.
func (s *Session) StartThread(ctx context.Context, channelID, messageID, name string) error {
	chID, err := parseChannelID(channelID)
	if err != nil {
		return err
	}
	msgID, err := parseMessageID(messageID)
	if err != nil {
		return err
	}
	_, err = s.State.StartThreadWithMessage(chID, msgID, api.StartThreadData{
		Name:                name,
		AutoArchiveDuration: discord.OneDayArchive,
	})
	return err
}

// SendThreadMessage posts into the thread started on a message. Threads
// started from a message share its id, so the parent message id doubles as
// the thread channel id.
func (s *Session) SendThreadMessage(ctx context.Context, parentMessageID, content string) (*Message, error) {
	return s.SendMessage(ctx, parentMessageID, content)
}

// ---- conversions ----

func parseChannelID(s string) (discord.ChannelID, error) {
	sf, err := discord.ParseSnowflake(s)
	if err != nil {
		return 0, fmt.Errorf("invalid channel id %q: %w", s, err)
	}
	return discord.ChannelID(sf), nil
}

func parseMessageID(s string) (discord.MessageID, error) {
	sf, err := discord.ParseSnowflake(s)
	if err != nil {
		return 0, fmt.Errorf("invalid message id %q: %w", s, err)
	}
	return discord.MessageID(sf), nil
}

func parseUserID(s string) (discord.UserID, error) {
	sf, err := discord.ParseSnowflake(s)
	if err != nil {
		return 0, fmt.Errorf("invalid user id %q: %w", s, err)
	}
	return discord.UserID(sf), nil
}

func toDiscordEmbeds(embeds []Embed) []discord.Embed {
	out := make([]discord.Embed, 0, len(embeds))
	for _, e := range embeds {
		de := discord.Embed{
			Title:       e.Title,
			Description: e.Description,
		}
		for _, f := range e.Fields {
			de.Fields = append(de.Fields, discord.EmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
		}
		if e.Footer != "" {
			de.Footer = &discord.EmbedFooter{Text: e.Footer}
		}
		if e.Author != nil {
			de.Author = &discord.EmbedAuthor{Name: e.Author.Name, Icon: e.Author.IconURL}
		}
		if e.ImageURL != "" {
			de.Image = &discord.EmbedImage{URL: e.ImageURL}
		}
		if e.Timestamp != nil {
			de.Timestamp = discord.NewTimestamp(*e.Timestamp)
		}
		out = append(out, de)
	}
	return out
}

func fromDiscordMessage(m *discord.Message) *Message {
	out := &Message{
		ID:        m.ID.String(),
		ChannelID: m.ChannelID.String(),
		Timestamp: m.Timestamp.Time(),
	}
	for _, r := range m.Reactions {
		out.Reactions = append(out.Reactions, Reaction{Emoji: r.Emoji.Name, Count: r.Count})
	}
	return out
}
