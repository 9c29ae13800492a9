package poll

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/qotdbot/qotdbot/internal/chat"
	"github.com/qotdbot/qotdbot/internal/config"
	"github.com/qotdbot/qotdbot/internal/domain"
	"github.com/qotdbot/qotdbot/internal/metrics"
	"github.com/qotdbot/qotdbot/internal/repo"
)

// Reactions is the reaction-driven voting machine. It watches poll messages
// for reaction-add events, enforces single-choice-per-user against the store,
// grants the one-time first-vote reward, and closes polls with a results
// render.
//
// The watch registry maps a message id to the poll it belongs to; everything
// else (open flag, option list, selections) is read fresh from the store on
// every event, so a watcher that survived a poll closure fails closed instead
// of acting on stale state.
type Reactions struct {
	// DB is the GORM handle used for all poll state.
	DB *gorm.DB
	// Client is the chat surface used to post, edit, and clean reactions.
	Client chat.Client
	// Reward is granted once per poll on a user's first vote.
	Reward config.RewardConfig
	// EditInPlaceChannel, when set, is the long-lived channel whose polls
	// render results by editing the original message rather than posting a
	// new one.
	EditInPlaceChannel string

	Log zerolog.Logger

	mu      sync.Mutex
	watched map[string]int // message id -> poll id
}

// NewReactions builds a reaction voting machine.
func NewReactions(db *gorm.DB, client chat.Client, reward config.RewardConfig, log zerolog.Logger) *Reactions {
	return &Reactions{
		DB:      db,
		Client:  client,
		Reward:  reward,
		Log:     log.With().Str("component", "poll").Logger(),
		watched: make(map[string]int),
	}
}

// Post renders and sends a freshly created poll to channel, adds the palette
// reactions, marks the poll asked, and attaches the voting machine to the new
// message. content is prepended above the embed (role mentions).
func (r *Reactions) Post(ctx context.Context, p *domain.Poll, channelID, content string, author *chat.EmbedAuthor) (*chat.Message, error) {
	if len(p.Options) == 0 {
		return nil, ErrNoOptions
	}
	if len(p.Options) > MaxReactionOptions {
		return nil, ErrTooManyOptions
	}

	msg, err := r.Client.SendMessage(ctx, channelID, content, RenderOpen(p, author))
	if err != nil {
		return nil, err
	}

	for i := range p.Options {
		if err := r.Client.React(ctx, channelID, msg.ID, EmojiList[i]); err != nil {
			r.Log.Warn().Err(err).Int("poll_id", p.ID).Str("emoji", EmojiList[i]).Msg("seed reaction failed")
		}
	}

	if err := repo.MarkPollAsked(ctx, r.DB, p.ID, channelID, msg.ID, time.Now().UTC()); err != nil {
		return nil, err
	}

	return msg, r.Attach(ctx, channelID, msg.ID, p.ID)
}

// Attach begins observing reaction-add events on an existing poll message and
// replays every reaction already present through the same handling logic as
// live events, covering votes cast while the process was offline. Attaching
// to an already-watched message replaces the old watch.
func (r *Reactions) Attach(ctx context.Context, channelID, messageID string, pollID int) error {
	r.mu.Lock()
	r.watched[messageID] = pollID
	r.mu.Unlock()

	msg, err := r.Client.Message(ctx, channelID, messageID)
	if err != nil {
		return err
	}

	for _, reaction := range msg.Reactions {
		users, err := r.Client.ReactionUsers(ctx, channelID, messageID, reaction.Emoji)
		if err != nil {
			return err
		}
		for _, u := range users {
			if u.Bot {
				continue
			}
			r.HandleReaction(ctx, chat.ReactionEvent{
				ChannelID: channelID,
				MessageID: messageID,
				User:      u,
				Emoji:     reaction.Emoji,
			})
		}
	}
	return nil
}

// Watching reports whether the machine observes the given message.
func (r *Reactions) Watching(messageID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.watched[messageID]
	return ok
}

// Detach stops observing a message.
func (r *Reactions) Detach(messageID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.watched, messageID)
}

// HandleReaction processes one reaction-add event. It reports whether the
// event was consumed as a vote interaction (accepted or deliberately
// swallowed); events for unwatched messages or from bots return false.
//
// Behavior, in order:
//   - bot reactors and unwatched messages are ignored,
//   - the user's visible reaction is always removed, keeping the displayed
//     counts meaningless and forcing re-votes through fresh clicks,
//   - poll state is read fresh by message id; a closed or vanished poll
//     detaches the watcher and rejects the event,
//   - an emoji outside the palette (or beyond the option count) is consumed
//     without a vote change,
//   - any prior selection by the user in this poll is revoked, then the new
//     one is recorded. The two writes are separate; a crash in between
//     leaves the user with zero selections, which self-heals on their next
//     vote and never skews tallies since those are recomputed from rows,
//   - a user voting with no prior selection is granted the reward once.
func (r *Reactions) HandleReaction(ctx context.Context, ev chat.ReactionEvent) bool {
	if ev.User.Bot {
		return false
	}

	r.mu.Lock()
	_, ok := r.watched[ev.MessageID]
	r.mu.Unlock()
	if !ok {
		return false
	}

	// Always remove the visible reaction, whatever the outcome.
	if err := r.Client.RemoveUserReaction(ctx, ev.ChannelID, ev.MessageID, ev.User.ID, ev.Emoji); err != nil {
		r.Log.Warn().Err(err).Str("user_id", ev.User.ID).Msg("remove reaction failed")
	}

	p, err := repo.GetPollByLink(ctx, r.DB, ev.MessageID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			r.Detach(ev.MessageID)
			return false
		}
		r.Log.Error().Err(err).Str("message_id", ev.MessageID).Msg("poll lookup failed")
		return false
	}

	if !p.Open {
		// late event racing a close: fail closed and stop observing
		metrics.VotesRejected.WithLabelValues("reaction", "closed").Inc()
		r.Detach(ev.MessageID)
		return false
	}

	idx := emojiIndex(ev.Emoji)
	if idx < 0 || idx >= len(p.Options) {
		// unknown emoji: consumed, no vote change
		metrics.VotesRejected.WithLabelValues("reaction", "unknown_emoji").Inc()
		return true
	}
	target := p.Options[idx].ID

	prior, err := repo.SelectedOptionIDs(ctx, r.DB, p.ID, ev.User.ID)
	if err != nil {
		r.Log.Error().Err(err).Int("poll_id", p.ID).Msg("selection lookup failed")
		return false
	}

	for _, optID := range prior {
		if err := repo.DisconnectVote(ctx, r.DB, optID, ev.User.ID); err != nil {
			r.Log.Error().Err(err).Int("poll_id", p.ID).Int("option_id", optID).Msg("revoke failed")
			return false
		}
	}

	if _, err := repo.EnsureMember(ctx, r.DB, ev.User.ID); err != nil {
		r.Log.Error().Err(err).Str("user_id", ev.User.ID).Msg("ensure member failed")
		return false
	}

	if len(prior) == 0 {
		if err := repo.GrantVoteReward(ctx, r.DB, ev.User.ID, r.Reward.XP, r.Reward.Saves); err != nil {
			r.Log.Warn().Err(err).Str("user_id", ev.User.ID).Msg("reward grant failed")
		} else {
			metrics.RewardsGranted.Inc()
		}
	}

	if err := repo.ConnectVote(ctx, r.DB, target, ev.User.ID); err != nil {
		r.Log.Error().Err(err).Int("poll_id", p.ID).Int("option_id", target).Msg("connect failed")
		return false
	}

	metrics.VotesProcessed.WithLabelValues("reaction").Inc()
	r.Log.Debug().Int("poll_id", p.ID).Str("user_id", ev.User.ID).Int("option_id", target).Msg("vote recorded")
	return true
}

// Close finishes a poll: clears all reactions, tallies by counting selection
// rows, renders the results embed, posts it (editing the original message in
// the edit-in-place channel, otherwise sending a new message), marks the poll
// closed with the results message id, and detaches the watcher.
//
// Closing an already-closed poll re-renders results without touching votes;
// idempotency is the caller's concern.
func (r *Reactions) Close(ctx context.Context, pollID int, author *chat.EmbedAuthor) (*chat.Message, error) {
	p, err := repo.GetPoll(ctx, r.DB, pollID)
	if err != nil {
		return nil, err
	}

	r.Log.Info().Int("poll_id", p.ID).Str("title", p.Title).Msg("closing poll")

	if err := r.Client.RemoveAllReactions(ctx, p.Channel, p.Link); err != nil {
		r.Log.Warn().Err(err).Int("poll_id", p.ID).Msg("clear reactions failed")
	}

	tally, err := repo.TallyPoll(ctx, r.DB, p.ID)
	if err != nil {
		return nil, err
	}
	embed := RenderResults(p, tally, author)

	var res *chat.Message
	if r.EditInPlaceChannel != "" && p.Channel == r.EditInPlaceChannel {
		res, err = r.Client.EditMessage(ctx, p.Channel, p.Link, "", embed)
	} else {
		res, err = r.Client.SendMessage(ctx, p.Channel, "", embed)
	}
	if err != nil {
		return nil, err
	}

	if err := repo.ClosePoll(ctx, r.DB, p.ID, res.ID); err != nil {
		return nil, err
	}

	r.Detach(p.Link)
	metrics.PollsClosed.Inc()
	return res, nil
}
