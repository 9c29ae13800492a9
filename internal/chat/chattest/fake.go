// Package chattest provides an in-memory chat.Client used by package tests.
// It records every call and keeps a reaction table that tests can seed to
// simulate reactions left while the process was offline.
package chattest

import (
	"context"
	"fmt"
	"sync"

	"github.com/qotdbot/qotdbot/internal/chat"
)

// Sent records one posted or edited message.
type Sent struct {
	MessageID string
	ChannelID string
	Content   string
	Embeds    []chat.Embed
	Button    *chat.Button
}

// Removed records one removed user reaction.
type Removed struct {
	MessageID string
	UserID    string
	Emoji     string
}

// Fake is an in-memory chat.Client.
type Fake struct {
	mu     sync.Mutex
	nextID int

	// Sent holds every SendMessage/SendButtonMessage call in order.
	Sent []Sent
	// Edits holds every EditMessage call in order.
	Edits []Sent
	// Reactions is messageID -> emoji -> reacting users.
	Reactions map[string]map[string][]chat.User
	// RemovedReactions records RemoveUserReaction calls.
	RemovedReactions []Removed
	// Cleared records message ids passed to RemoveAllReactions.
	Cleared []string
	// OwnReactions records the bot's own React calls as "msgID/emoji".
	OwnReactions []string
	// Threads is messageID -> thread name.
	Threads map[string]string
	// ThreadMessages is parent messageID -> posted contents.
	ThreadMessages map[string][]string

	messages map[string]*chat.Message
}

var _ chat.Client = (*Fake)(nil)

// New returns an empty fake client.
func New() *Fake {
	return &Fake{
		Reactions:      make(map[string]map[string][]chat.User),
		Threads:        make(map[string]string),
		ThreadMessages: make(map[string][]string),
		messages:       make(map[string]*chat.Message),
	}
}

// AddReaction seeds a reaction, as if a user reacted while the bot was away.
func (f *Fake) AddReaction(messageID, emoji string, user chat.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Reactions[messageID] == nil {
		f.Reactions[messageID] = make(map[string][]chat.User)
	}
	f.Reactions[messageID][emoji] = append(f.Reactions[messageID][emoji], user)
}

// Seed registers an existing message id so Message and reaction calls on it
// succeed, as for polls posted in an earlier process run.
func (f *Fake) Seed(channelID, messageID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[messageID] = &chat.Message{ID: messageID, ChannelID: channelID}
}

// LastSent returns the most recent posted message record.
func (f *Fake) LastSent() *Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Sent) == 0 {
		return nil
	}
	s := f.Sent[len(f.Sent)-1]
	return &s
}

func (f *Fake) newID() string {
	f.nextID++
	return fmt.Sprintf("msg-%d", f.nextID)
}

func (f *Fake) SendMessage(ctx context.Context, channelID, content string, embeds ...chat.Embed) (*chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.newID()
	f.Sent = append(f.Sent, Sent{MessageID: id, ChannelID: channelID, Content: content, Embeds: embeds})
	m := &chat.Message{ID: id, ChannelID: channelID}
	f.messages[id] = m
	return m, nil
}

func (f *Fake) SendButtonMessage(ctx context.Context, channelID, content string, embed *chat.Embed, button chat.Button) (*chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.newID()
	s := Sent{MessageID: id, ChannelID: channelID, Content: content, Button: &button}
	if embed != nil {
		s.Embeds = []chat.Embed{*embed}
	}
	f.Sent = append(f.Sent, s)
	m := &chat.Message{ID: id, ChannelID: channelID}
	f.messages[id] = m
	return m, nil
}

func (f *Fake) EditMessage(ctx context.Context, channelID, messageID, content string, embeds ...chat.Embed) (*chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.messages[messageID]; !ok {
		return nil, fmt.Errorf("chattest: unknown message %s", messageID)
	}
	f.Edits = append(f.Edits, Sent{MessageID: messageID, ChannelID: channelID, Content: content, Embeds: embeds})
	return f.messages[messageID], nil
}

func (f *Fake) Message(ctx context.Context, channelID, messageID string) (*chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[messageID]
	if !ok {
		return nil, fmt.Errorf("chattest: unknown message %s", messageID)
	}
	out := &chat.Message{ID: m.ID, ChannelID: m.ChannelID, Timestamp: m.Timestamp}
	for emoji, users := range f.Reactions[messageID] {
		out.Reactions = append(out.Reactions, chat.Reaction{Emoji: emoji, Count: len(users)})
	}
	return out, nil
}

func (f *Fake) React(ctx context.Context, channelID, messageID, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.OwnReactions = append(f.OwnReactions, messageID+"/"+emoji)
	return nil
}

func (f *Fake) ReactionUsers(ctx context.Context, channelID, messageID, emoji string) ([]chat.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chat.User(nil), f.Reactions[messageID][emoji]...), nil
}

func (f *Fake) RemoveUserReaction(ctx context.Context, channelID, messageID, userID, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RemovedReactions = append(f.RemovedReactions, Removed{MessageID: messageID, UserID: userID, Emoji: emoji})
	users := f.Reactions[messageID][emoji]
	for i, u := range users {
		if u.ID == userID {
			f.Reactions[messageID][emoji] = append(users[:i], users[i+1:]...)
			break
		}
	}
	return nil
}

func (f *Fake) RemoveAllReactions(ctx context.Context, channelID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Cleared = append(f.Cleared, messageID)
	delete(f.Reactions, messageID)
	return nil
}

func (f *Fake) StartThread(ctx context.Context, channelID, messageID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Threads[messageID] = name
	return nil
}

func (f *Fake) SendThreadMessage(ctx context.Context, parentMessageID, content string) (*chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ThreadMessages[parentMessageID] = append(f.ThreadMessages[parentMessageID], content)
	id := f.newID()
	m := &chat.Message{ID: id, ChannelID: parentMessageID}
	f.messages[id] = m
	return m, nil
}
