// Package commands registers the bot's slash commands and dispatches their
// invocations to the feature components. It is thin glue: every command
// handler validates input, calls one component operation, and answers with an
// ephemeral confirmation.
package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/diamondburned/arikawa/v3/api"
	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/state"
	"github.com/diamondburned/arikawa/v3/utils/json/option"
	"github.com/rs/zerolog"

	"github.com/qotdbot/qotdbot/internal/chat"
	"github.com/qotdbot/qotdbot/internal/club"
	"github.com/qotdbot/qotdbot/internal/config"
	"github.com/qotdbot/qotdbot/internal/domain"
	"github.com/qotdbot/qotdbot/internal/game"
	"github.com/qotdbot/qotdbot/internal/qotd"
	"github.com/qotdbot/qotdbot/internal/repo"
)

// Handler owns slash-command registration and dispatch.
type Handler struct {
	State *state.State
	Cfg   config.Config

	QOTD  *qotd.Component
	Games *game.Rotation
	Clubs *club.Cache

	Log zerolog.Logger
}

// New wires the handler into the session's gateway events.
func New(s *chat.Session, cfg config.Config, q *qotd.Component, games *game.Rotation, clubs *club.Cache, log zerolog.Logger) *Handler {
	h := &Handler{
		State: s.State,
		Cfg:   cfg,
		QOTD:  q,
		Games: games,
		Clubs: clubs,
		Log:   log.With().Str("component", "commands").Logger(),
	}
	s.State.AddHandler(h.onInteraction)
	return h
}

// Register overwrites the command set, guild-scoped when GUILD_ID is set and
// global otherwise. Call after the gateway connection is open.
func (h *Handler) Register(ctx context.Context) error {
	app, err := h.State.CurrentApplication()
	if err != nil {
		return fmt.Errorf("current application: %w", err)
	}

	cmds := commandSet()
	if h.Cfg.GuildID != "" {
		sf, err := discord.ParseSnowflake(h.Cfg.GuildID)
		if err != nil {
			return fmt.Errorf("invalid GUILD_ID: %w", err)
		}
		_, err = h.State.BulkOverwriteGuildCommands(app.ID, discord.GuildID(sf), cmds)
		return err
	}
	_, err = h.State.BulkOverwriteCommands(app.ID, cmds)
	return err
}

func commandSet() []api.CreateCommandData {
	str := func(name, desc string, required bool) discord.CommandOptionValue {
		return &discord.StringOption{OptionName: name, Description: desc, Required: required}
	}
	pollOptions := str("options", "Options separated by |", true)

	return []api.CreateCommandData{
		{
			Name:        "qotd",
			Description: "Question of the day",
			Options: discord.CommandOptions{
				&discord.SubcommandOption{
					OptionName:  "ask",
					Description: "Queue a question",
					Options: []discord.CommandOptionValue{
						str("prompt", "The question", true),
						str("embed", "Embed JSON instead of a plain prompt", false),
					},
				},
				&discord.SubcommandOption{
					OptionName:  "poll",
					Description: "Queue a reaction poll",
					Options: []discord.CommandOptionValue{
						str("title", "Poll title", true),
						pollOptions,
					},
				},
				&discord.SubcommandOption{OptionName: "queue", Description: "Show the pending queue"},
				&discord.SubcommandOption{OptionName: "send", Description: "Send the next entry now"},
			},
		},
		{
			Name:        "closepoll",
			Description: "Close a poll and post its results",
			Options: discord.CommandOptions{
				&discord.IntegerOption{OptionName: "id", Description: "Poll id (embed footer)", Required: true},
			},
		},
		{
			Name:        "megapoll",
			Description: "Post a multi-select poll in this channel",
			Options: discord.CommandOptions{
				str("title", "Poll title", true),
				pollOptions,
			},
		},
		{
			Name:        "metapoll",
			Description: "Post a poll to the meta channel",
			Options: discord.CommandOptions{
				str("title", "Poll title", true),
				pollOptions,
			},
		},
		{
			Name:        "game",
			Description: "Game night rotation",
			Options: discord.CommandOptions{
				&discord.SubcommandOption{
					OptionName:  "add",
					Description: "Add a game to the rotation",
					Options: []discord.CommandOptionValue{
						str("name", "Game name", true),
						str("download", "Download link", false),
						str("image", "Image link", false),
					},
				},
				&discord.SubcommandOption{OptionName: "list", Description: "List the rotation"},
				&discord.SubcommandOption{
					OptionName:  "pick",
					Description: "Announce this week's game",
					Options: []discord.CommandOptionValue{
						str("name", "Force a game instead of rolling", false),
					},
				},
			},
		},
		{
			Name:        "club",
			Description: "Student clubs",
			Options: discord.CommandOptions{
				&discord.SubcommandOption{
					OptionName:  "create",
					Description: "Register a club",
					Options: []discord.CommandOptionValue{
						str("name", "Club name", true),
					},
				},
				&discord.SubcommandOption{
					OptionName:  "info",
					Description: "Show a club's info card",
					Options: []discord.CommandOptionValue{
						str("name", "Club name", true),
					},
				},
				&discord.SubcommandOption{
					OptionName:  "set",
					Description: "Update a club field",
					Options: []discord.CommandOptionValue{
						str("name", "Club name", true),
						&discord.StringOption{
							OptionName:  "field",
							Description: "Field to update",
							Required:    true,
							Choices: []discord.StringChoice{
								{Name: "description", Value: "desc"},
								{Name: "channel", Value: "channel"},
								{Name: "role", Value: "role"},
								{Name: "manager", Value: "manager"},
								{Name: "meeting time", Value: "meeting_time"},
								{Name: "meeting location", Value: "meeting_location"},
							},
						},
						str("value", "New value", true),
					},
				},
			},
		},
	}
}

func (h *Handler) onInteraction(ev *gateway.InteractionCreateEvent) {
	data, ok := ev.Data.(*discord.CommandInteraction)
	if !ok {
		return
	}
	ctx := context.Background()

	var reply string
	var err error
	switch data.Name {
	case "qotd":
		reply, err = h.handleQOTD(ctx, ev, data)
	case "closepoll":
		reply, err = h.handleClosePoll(ctx, data)
	case "megapoll":
		reply, err = h.handleMegaPoll(ctx, ev, data)
	case "metapoll":
		reply, err = h.handleMetaPoll(ctx, ev, data)
	case "game":
		reply, err = h.handleGame(ctx, ev, data)
	case "club":
		reply, err = h.handleClub(ctx, ev, data)
	default:
		return
	}

	if err != nil {
		h.Log.Warn().Err(err).Str("command", data.Name).Msg("command failed")
		reply = "That didn't work: " + err.Error()
	}
	h.respond(ev, reply)
}

func (h *Handler) handleQOTD(ctx context.Context, ev *gateway.InteractionCreateEvent, data *discord.CommandInteraction) (string, error) {
	if len(data.Options) == 0 {
		return "", fmt.Errorf("missing subcommand")
	}
	sub := data.Options[0]

	switch sub.Name {
	case "ask":
		prompt := optString(sub.Options, "prompt")
		embedJSON := optString(sub.Options, "embed")
		q, err := h.QOTD.SubmitQuestion(ctx, prompt, userID(ev), embedJSON != "", embedJSON)
		if err != nil {
			return "", err
		}
		n, _ := repo.QueueLen(ctx, h.QOTD.DB)
		return fmt.Sprintf("Question queued at position %d (id %d).", n, q.ID), nil

	case "poll":
		title := optString(sub.Options, "title")
		options := splitOptions(optString(sub.Options, "options"))
		p, err := h.QOTD.SubmitPoll(ctx, title, userID(ev), options)
		if err != nil {
			return "", err
		}
		n, _ := repo.QueueLen(ctx, h.QOTD.DB)
		return fmt.Sprintf("Poll queued at position %d (id %d).", n, p.ID), nil

	case "queue":
		entries, err := repo.ListQueue(ctx, h.QOTD.DB)
		if err != nil {
			return "", err
		}
		if len(entries) == 0 {
			return "The queue is empty.", nil
		}
		var b strings.Builder
		for i, e := range entries {
			fmt.Fprintf(&b, "%d. %s #%d\n", i+1, e.Kind, e.RefID)
		}
		return b.String(), nil

	case "send":
		if err := h.QOTD.Send(ctx); err != nil {
			return "", err
		}
		return "Sent.", nil
	}
	return "", fmt.Errorf("unknown subcommand %q", sub.Name)
}

func (h *Handler) handleClosePoll(ctx context.Context, data *discord.CommandInteraction) (string, error) {
	id, err := optInt(data.Options, "id")
	if err != nil {
		return "", err
	}
	if _, err := h.QOTD.ClosePoll(ctx, id); err != nil {
		return "", err
	}
	return fmt.Sprintf("Poll %d closed.", id), nil
}

func (h *Handler) handleMegaPoll(ctx context.Context, ev *gateway.InteractionCreateEvent, data *discord.CommandInteraction) (string, error) {
	title := optString(data.Options, "title")
	options := splitOptions(optString(data.Options, "options"))
	p, err := h.QOTD.Mega.Create(ctx, title, userID(ev), ev.ChannelID.String(), options)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Mega poll %d posted.", p.ID), nil
}

func (h *Handler) handleMetaPoll(ctx context.Context, ev *gateway.InteractionCreateEvent, data *discord.CommandInteraction) (string, error) {
	title := optString(data.Options, "title")
	options := splitOptions(optString(data.Options, "options"))
	p, err := h.QOTD.PostMetaPoll(ctx, title, userID(ev), options)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Meta poll %d posted.", p.ID), nil
}

func (h *Handler) handleGame(ctx context.Context, ev *gateway.InteractionCreateEvent, data *discord.CommandInteraction) (string, error) {
	if len(data.Options) == 0 {
		return "", fmt.Errorf("missing subcommand")
	}
	sub := data.Options[0]

	switch sub.Name {
	case "list":
		games, err := h.Games.List(ctx)
		if err != nil {
			return "", err
		}
		if len(games) == 0 {
			return "The rotation is empty.", nil
		}
		var b strings.Builder
		for _, g := range games {
			fmt.Fprintf(&b, "- %s\n", g.Name)
		}
		return b.String(), nil

	case "add":
		if !h.isGameMod(ev) {
			return "You need the game moderator role for that.", nil
		}
		g, err := h.Games.Add(ctx,
			optString(sub.Options, "name"),
			optString(sub.Options, "download"),
			optString(sub.Options, "image"))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s added to the rotation.", g.Name), nil

	case "pick":
		if !h.isGameMod(ev) {
			return "You need the game moderator role for that.", nil
		}
		g, err := h.Games.Pick(ctx, optString(sub.Options, "name"))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s it is.", g.Name), nil
	}
	return "", fmt.Errorf("unknown subcommand %q", sub.Name)
}

func (h *Handler) handleClub(ctx context.Context, ev *gateway.InteractionCreateEvent, data *discord.CommandInteraction) (string, error) {
	if len(data.Options) == 0 {
		return "", fmt.Errorf("missing subcommand")
	}
	sub := data.Options[0]
	name := optString(sub.Options, "name")

	switch sub.Name {
	case "create":
		if _, err := h.Clubs.Create(ctx, domain.Club{Name: name}); err != nil {
			return "", err
		}
		return fmt.Sprintf("Club %q registered.", name), nil

	case "info":
		cl, err := h.Clubs.GetByName(ctx, name)
		if err != nil {
			return "", err
		}
		// info cards are public
		h.respondEmbed(ev, cl.InfoEmbed())
		return "", nil

	case "set":
		cl, err := h.Clubs.GetByName(ctx, name)
		if err != nil {
			return "", err
		}
		value := optString(sub.Options, "value")
		switch optString(sub.Options, "field") {
		case "desc":
			err = cl.SetDesc(ctx, value)
		case "channel":
			err = cl.SetChannel(ctx, value)
		case "role":
			err = cl.SetRole(ctx, value)
		case "manager":
			err = cl.SetManager(ctx, value)
		case "meeting_time":
			err = cl.SetMeeting(ctx, value, cl.Snapshot().MeetingLocation)
		case "meeting_location":
			err = cl.SetMeeting(ctx, cl.Snapshot().MeetingTime, value)
		default:
			err = fmt.Errorf("unknown field")
		}
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Club %q updated.", name), nil
	}
	return "", fmt.Errorf("unknown subcommand %q", sub.Name)
}

// respond answers the interaction with an ephemeral message.
func (h *Handler) respond(ev *gateway.InteractionCreateEvent, content string) {
	if content == "" {
		return
	}
	err := h.State.RespondInteraction(ev.ID, ev.Token, api.InteractionResponse{
		Type: api.MessageInteractionWithSource,
		Data: &api.InteractionResponseData{
			Content: option.NewNullableString(content),
			Flags:   discord.EphemeralMessage,
		},
	})
	if err != nil {
		h.Log.Warn().Err(err).Msg("interaction respond failed")
	}
}

// respondEmbed answers the interaction with a public embed.
func (h *Handler) respondEmbed(ev *gateway.InteractionCreateEvent, embed chat.Embed) {
	de := discord.Embed{Title: embed.Title, Description: embed.Description}
	for _, f := range embed.Fields {
		de.Fields = append(de.Fields, discord.EmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	err := h.State.RespondInteraction(ev.ID, ev.Token, api.InteractionResponse{
		Type: api.MessageInteractionWithSource,
		Data: &api.InteractionResponseData{
			Embeds: &[]discord.Embed{de},
		},
	})
	if err != nil {
		h.Log.Warn().Err(err).Msg("interaction respond failed")
	}
}

func (h *Handler) isGameMod(ev *gateway.InteractionCreateEvent) bool {
	if h.Cfg.GameModRole == "" {
		return true
	}
	if ev.Member == nil {
		return false
	}
	for _, r := range ev.Member.RoleIDs {
		if r.String() == h.Cfg.GameModRole {
			return true
		}
	}
	return false
}

func userID(ev *gateway.InteractionCreateEvent) string {
	if ev.Member != nil {
		return ev.Member.User.ID.String()
	}
	if ev.User != nil {
		return ev.User.ID.String()
	}
	return ""
}

// ---- option helpers ----

func optString(opts []discord.CommandInteractionOption, name string) string {
	for _, o := range opts {
		if o.Name == name {
			return o.String()
		}
	}
	return ""
}

func optInt(opts []discord.CommandInteractionOption, name string) (int, error) {
	for _, o := range opts {
		if o.Name == name {
			v, err := o.IntValue()
			return int(v), err
		}
	}
	return 0, fmt.Errorf("missing option %q", name)
}

// splitOptions parses the pipe-separated option list of the poll commands.
func splitOptions(s string) []string {
	var out []string
	for _, part := range strings.Split(s, "|") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
