// Package qotd implements the question-of-the-day feature: the submission
// queue, the daily automatic send, meta-channel polls with their delayed
// close, startup recovery, and the meta status message.
//
// The durable queue and the poll tables are the single source of truth; the
// component keeps no send state in memory. Timers are fire-and-revalidate:
// a fired timer re-reads the store and does nothing when the work was already
// done by hand.
package qotd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/qotdbot/qotdbot/internal/chat"
	"github.com/qotdbot/qotdbot/internal/config"
	"github.com/qotdbot/qotdbot/internal/domain"
	"github.com/qotdbot/qotdbot/internal/metrics"
	"github.com/qotdbot/qotdbot/internal/poll"
	"github.com/qotdbot/qotdbot/internal/repo"
	"github.com/qotdbot/qotdbot/internal/schedule"
	"github.com/qotdbot/qotdbot/internal/utils"
)

// fallback posted when the daily send finds an empty queue.
const emptyQueueMessage = "No questions :skull:\n(pls `/qotd ask`)"

// Component wires the queue, the voting machines, the daily timer, and the
// meta channel together.
type Component struct {
	DB     *gorm.DB
	Client chat.Client
	Cfg    config.Config

	// Polls is the reaction voting machine; Mega the menu variant.
	Polls *poll.Reactions
	Mega  *poll.Mega

	Log zerolog.Logger

	daily *schedule.Daily
}

// New builds the component. Call Init before handling events.
func New(db *gorm.DB, client chat.Client, cfg config.Config, polls *poll.Reactions, mega *poll.Mega, log zerolog.Logger) *Component {
	return &Component{
		DB:     db,
		Client: client,
		Cfg:    cfg,
		Polls:  polls,
		Mega:   mega,
		Log:    log.With().Str("component", "qotd").Logger(),
	}
}

// Init restores durable state after a process start: it ensures the meta
// status message exists, backfills missing posted dates from live message
// timestamps, re-attaches the voting machines to every open poll, re-arms
// the delayed close of open meta polls, and starts the daily timer.
//
// Recovery failures for individual polls are logged and skipped; one deleted
// message must not block the rest of the bootstrap.
func (c *Component) Init(ctx context.Context) error {
	if err := c.ensureMetaMessage(ctx); err != nil {
		return err
	}
	c.backfillDates(ctx)

	open, err := repo.ListOpenPolls(ctx, c.DB)
	if err != nil {
		return fmt.Errorf("list open polls: %w", err)
	}
	for i := range open {
		p := &open[i]
		if err := c.Polls.Attach(ctx, p.Channel, p.Link, p.ID); err != nil {
			c.Log.Warn().Err(err).Int("poll_id", p.ID).Msg("poll recovery failed")
			continue
		}
		if c.isMeta(p.Channel) && p.Date != nil {
			c.scheduleMetaClose(ctx, p.ID, *p.Date)
		}
	}
	c.Log.Info().Int("polls", len(open)).Msg("open polls recovered")

	mega, err := repo.ListOpenMegaPolls(ctx, c.DB)
	if err != nil {
		return fmt.Errorf("list open mega polls: %w", err)
	}
	for i := range mega {
		c.Mega.Attach(&mega[i])
	}

	if err := c.RefreshMetaMessage(ctx); err != nil {
		c.Log.Warn().Err(err).Msg("meta message refresh failed")
	}

	c.daily = &schedule.Daily{
		Hour:   c.Cfg.SendHour,
		Minute: c.Cfg.SendMinute,
		Log:    c.Log,
		Run:    c.runDaily,
	}
	c.daily.Start(ctx)
	return nil
}

// runDaily is the daily timer callback: yesterday's daily-channel polls are
// closed first, then the next queue entry goes out.
func (c *Component) runDaily(ctx context.Context) {
	c.closePreviousPolls(ctx)
	if err := c.Send(ctx); err != nil {
		c.Log.Error().Err(err).Msg("daily send failed")
	}
}

// closePreviousPolls closes every poll still open in the daily channel. A
// daily poll lives exactly until the next send; one failed close is logged
// and skipped so the send still happens.
func (c *Component) closePreviousPolls(ctx context.Context) {
	open, err := repo.ListOpenPollsInChannel(ctx, c.DB, c.Cfg.QOTDChannel)
	if err != nil {
		c.Log.Error().Err(err).Msg("open poll scan failed")
		return
	}
	for _, p := range open {
		if _, err := c.ClosePoll(ctx, p.ID); err != nil {
			c.Log.Error().Err(err).Int("poll_id", p.ID).Msg("daily close failed")
		}
	}
}

// Stop disarms the daily timer.
func (c *Component) Stop() {
	if c.daily != nil {
		c.daily.Stop()
	}
}

// SubmitQuestion stores a question and appends it to the send queue. For
// embed questions, embedJSON must be a valid embed object.
func (c *Component) SubmitQuestion(ctx context.Context, prompt, authorID string, isEmbed bool, embedJSON string) (*domain.Question, error) {
	if isEmbed {
		if _, err := parseEmbedJSON(embedJSON); err != nil {
			return nil, fmt.Errorf("invalid embed: %w", err)
		}
	}
	q, err := repo.CreateQuestion(ctx, c.DB, prompt, authorID, isEmbed, embedJSON)
	if err != nil {
		return nil, err
	}
	if _, err := repo.PushQueue(ctx, c.DB, repo.QueueKindQuestion, q.ID); err != nil {
		return nil, err
	}
	c.Log.Info().Int("question_id", q.ID).Str("author_id", authorID).Msg("question queued")
	return q, nil
}

// SubmitPoll stores a reaction poll and appends it to the send queue.
func (c *Component) SubmitPoll(ctx context.Context, title, authorID string, options []string) (*domain.Poll, error) {
	if len(options) == 0 {
		return nil, poll.ErrNoOptions
	}
	if len(options) > poll.MaxReactionOptions {
		return nil, poll.ErrTooManyOptions
	}
	p, err := repo.CreatePoll(ctx, c.DB, title, authorID, options)
	if err != nil {
		return nil, err
	}
	if _, err := repo.PushQueue(ctx, c.DB, repo.QueueKindPoll, p.ID); err != nil {
		return nil, err
	}
	c.Log.Info().Int("poll_id", p.ID).Str("author_id", authorID).Msg("poll queued")
	return p, nil
}

// Send performs one daily send: it pops the oldest queue entry and posts it
// to the daily channel with the announcement mention and a discussion thread.
// An empty queue posts the fallback message instead. Called by the daily
// timer and by the manual send command; both paths are identical.
func (c *Component) Send(ctx context.Context) error {
	entry, err := repo.PopQueue(ctx, c.DB)
	if errors.Is(err, repo.ErrNotFound) {
		_, err := c.Client.SendMessage(ctx, c.Cfg.QOTDChannel, emptyQueueMessage)
		return err
	}
	if err != nil {
		return err
	}

	switch entry.Kind {
	case repo.QueueKindQuestion:
		err = c.sendQuestion(ctx, entry.RefID)
	case repo.QueueKindPoll:
		err = c.sendPoll(ctx, entry.RefID)
	default:
		err = fmt.Errorf("unknown queue kind %q", entry.Kind)
	}
	if err != nil {
		return err
	}

	metrics.DailySends.Inc()
	return nil
}

func (c *Component) sendQuestion(ctx context.Context, id int) error {
	q, err := repo.GetQuestion(ctx, c.DB, id)
	if err != nil {
		return fmt.Errorf("question %d: %w", id, err)
	}

	var embed chat.Embed
	if q.IsEmbed {
		e, err := parseEmbedJSON(q.EmbedJSON)
		if err != nil {
			return fmt.Errorf("question %d: %w", id, err)
		}
		embed = *e
	} else {
		embed = chat.Embed{Title: q.Prompt}
	}
	embed.Author = &chat.EmbedAuthor{Name: chat.UserMention(q.AuthorID)}

	msg, err := c.Client.SendMessage(ctx, c.Cfg.QOTDChannel, c.announceMention(), embed)
	if err != nil {
		return err
	}
	if err := repo.MarkQuestionAsked(ctx, c.DB, q.ID, c.Cfg.QOTDChannel, msg.ID, time.Now().UTC()); err != nil {
		return err
	}

	c.startThread(ctx, c.Cfg.QOTDChannel, msg.ID, threadName(q.Prompt, q.IsEmbed, embed.Title))
	c.Log.Info().Int("question_id", q.ID).Msg("question sent")
	return nil
}

func (c *Component) sendPoll(ctx context.Context, id int) error {
	p, err := repo.GetPoll(ctx, c.DB, id)
	if err != nil {
		return fmt.Errorf("poll %d: %w", id, err)
	}

	msg, err := c.Polls.Post(ctx, p, c.Cfg.QOTDChannel, c.announceMention(), &chat.EmbedAuthor{Name: chat.UserMention(p.AuthorID)})
	if err != nil {
		return err
	}

	c.startThread(ctx, c.Cfg.QOTDChannel, msg.ID, utils.Shorten(p.Title, 100))
	c.Log.Info().Int("poll_id", p.ID).Msg("poll sent")
	return nil
}

// PostMetaPoll posts a poll to the meta channel immediately, skipping the
// queue, and arms its delayed close. The meta status message is refreshed to
// reflect the new count.
func (c *Component) PostMetaPoll(ctx context.Context, title, authorID string, options []string) (*domain.Poll, error) {
	if c.Cfg.MetaChannel == "" {
		return nil, errors.New("meta channel not configured")
	}
	if len(options) == 0 {
		return nil, poll.ErrNoOptions
	}
	if len(options) > poll.MaxReactionOptions {
		return nil, poll.ErrTooManyOptions
	}

	p, err := repo.CreatePoll(ctx, c.DB, title, authorID, options)
	if err != nil {
		return nil, err
	}
	if _, err := c.Polls.Post(ctx, p, c.Cfg.MetaChannel, "", &chat.EmbedAuthor{Name: chat.UserMention(authorID)}); err != nil {
		return nil, err
	}

	c.scheduleMetaClose(ctx, p.ID, time.Now())
	if err := c.RefreshMetaMessage(ctx); err != nil {
		c.Log.Warn().Err(err).Msg("meta message refresh failed")
	}
	return repo.GetPoll(ctx, c.DB, p.ID)
}

// ClosePoll closes a poll through the reaction machine, crediting author in
// the results embed, and refreshes the meta status message when the poll
// lived in the meta channel.
func (c *Component) ClosePoll(ctx context.Context, pollID int) (*chat.Message, error) {
	p, err := repo.GetPoll(ctx, c.DB, pollID)
	if err != nil {
		return nil, err
	}

	msg, err := c.Polls.Close(ctx, pollID, &chat.EmbedAuthor{Name: chat.UserMention(p.AuthorID)})
	if err != nil {
		return nil, err
	}
	if c.isMeta(p.Channel) {
		if err := c.RefreshMetaMessage(ctx); err != nil {
			c.Log.Warn().Err(err).Msg("meta message refresh failed")
		}
	}
	return msg, nil
}

// RefreshMetaMessage rewrites the pinned meta status message with the number
// of open polls in the meta channel. No-op without a meta channel.
func (c *Component) RefreshMetaMessage(ctx context.Context) error {
	if c.Cfg.MetaChannel == "" {
		return nil
	}
	id, err := repo.GetState(ctx, c.DB, repo.StateMetaMessage)
	if err != nil {
		return err
	}

	open, err := repo.ListOpenPollsInChannel(ctx, c.DB, c.Cfg.MetaChannel)
	if err != nil {
		return err
	}

	var text string
	switch len(open) {
	case 0:
		text = "Nothing here right now. Check back later."
	case 1:
		text = "There is 1 active post here."
	default:
		text = fmt.Sprintf("There are %d active posts here.", len(open))
	}

	_, err = c.Client.EditMessage(ctx, c.Cfg.MetaChannel, id, text)
	return err
}

// ensureMetaMessage creates the meta status message on first run and records
// its id in bot state.
func (c *Component) ensureMetaMessage(ctx context.Context) error {
	if c.Cfg.MetaChannel == "" {
		return nil
	}
	_, err := repo.GetState(ctx, c.DB, repo.StateMetaMessage)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return err
	}

	msg, err := c.Client.SendMessage(ctx, c.Cfg.MetaChannel, "Nothing here right now. Check back later.")
	if err != nil {
		return fmt.Errorf("create meta message: %w", err)
	}
	return repo.SetState(ctx, c.DB, repo.StateMetaMessage, msg.ID)
}

// backfillDates fills the posted date of asked rows that predate the date
// column, reading the timestamp from the live message. Rows whose message is
// gone are left untouched.
func (c *Component) backfillDates(ctx context.Context) {
	questions, err := repo.ListAskedQuestionsWithoutDate(ctx, c.DB)
	if err != nil {
		c.Log.Warn().Err(err).Msg("question backfill scan failed")
	}
	for _, q := range questions {
		msg, err := c.Client.Message(ctx, q.Channel, q.Link)
		if err != nil {
			continue
		}
		if err := repo.SetQuestionDate(ctx, c.DB, q.ID, msg.Timestamp); err != nil {
			c.Log.Warn().Err(err).Int("question_id", q.ID).Msg("question backfill failed")
		}
	}

	polls, err := repo.ListAskedPollsWithoutDate(ctx, c.DB)
	if err != nil {
		c.Log.Warn().Err(err).Msg("poll backfill scan failed")
	}
	for _, p := range polls {
		msg, err := c.Client.Message(ctx, p.Channel, p.Link)
		if err != nil {
			continue
		}
		if err := repo.SetPollDate(ctx, c.DB, p.ID, msg.Timestamp); err != nil {
			c.Log.Warn().Err(err).Int("poll_id", p.ID).Msg("poll backfill failed")
		}
	}
}

// scheduleMetaClose arms a one-shot close of a meta poll at askedAt+TTL.
// Deadlines already passed fire immediately. The callback re-reads the poll
// and does nothing when it was closed by hand in the meantime.
func (c *Component) scheduleMetaClose(ctx context.Context, pollID int, askedAt time.Time) {
	wait := time.Until(askedAt.Add(c.Cfg.MetaTTL))
	if wait < 0 {
		wait = 0
	}
	c.Log.Info().Int("poll_id", pollID).Dur("in", wait).Msg("meta close scheduled")

	time.AfterFunc(wait, func() {
		if ctx.Err() != nil {
			return
		}
		p, err := repo.GetPoll(ctx, c.DB, pollID)
		if err != nil || !p.Open {
			return
		}

		// results edit the poll message in place; no author credit on the
		// automatic close
		if _, err := c.Polls.Close(ctx, pollID, nil); err != nil {
			c.Log.Error().Err(err).Int("poll_id", pollID).Msg("meta close failed")
			return
		}

		if c.Cfg.MetaResultsRole != "" {
			content := chat.RoleMention(c.Cfg.MetaResultsRole) + " poll results have been released."
			if _, err := c.Client.SendThreadMessage(ctx, p.Link, content); err != nil {
				c.Log.Warn().Err(err).Int("poll_id", pollID).Msg("results ping failed")
			}
		}
		if err := c.RefreshMetaMessage(ctx); err != nil {
			c.Log.Warn().Err(err).Msg("meta message refresh failed")
		}
	})
}

func (c *Component) announceMention() string {
	if c.Cfg.AnnounceRole == "" {
		return ""
	}
	return chat.RoleMention(c.Cfg.AnnounceRole)
}

func (c *Component) isMeta(channel string) bool {
	return c.Cfg.MetaChannel != "" && channel == c.Cfg.MetaChannel
}

func (c *Component) startThread(ctx context.Context, channelID, messageID, name string) {
	if name == "" {
		name = "discussion"
	}
	if err := c.Client.StartThread(ctx, channelID, messageID, name); err != nil {
		c.Log.Warn().Err(err).Str("message_id", messageID).Msg("thread create failed")
	}
}

func threadName(prompt string, isEmbed bool, embedTitle string) string {
	if isEmbed && embedTitle != "" {
		return utils.Shorten(embedTitle, 100)
	}
	return utils.Shorten(prompt, 100)
}

// embedJSON is the accepted submission shape for embed questions.
type embedJSON struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Fields      []struct {
		Name   string `json:"name"`
		Value  string `json:"value"`
		Inline bool   `json:"inline"`
	} `json:"fields"`
	Image struct {
		URL string `json:"url"`
	} `json:"image"`
}

// parseEmbedJSON converts a submitted embed JSON document into the chat
// embed shape. An embed with neither title nor description is rejected.
func parseEmbedJSON(raw string) (*chat.Embed, error) {
	var in embedJSON
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return nil, err
	}
	if in.Title == "" && in.Description == "" {
		return nil, errors.New("embed needs a title or description")
	}

	e := &chat.Embed{
		Title:       in.Title,
		Description: in.Description,
		ImageURL:    in.Image.URL,
	}
	for _, f := range in.Fields {
		e.Fields = append(e.Fields, chat.EmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return e, nil
}
