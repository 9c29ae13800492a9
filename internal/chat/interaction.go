package chat

import (
	"context"

	"github.com/diamondburned/arikawa/v3/api"
	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/utils/json/option"
)

// gatewayInteraction adapts an arikawa component interaction to the
// Interaction interface.
type gatewayInteraction struct {
	s        *Session
	ev       *gateway.InteractionCreateEvent
	customID string
	values   []string
}

var _ Interaction = (*gatewayInteraction)(nil)

func (i *gatewayInteraction) UserID() string {
	if i.ev.Member != nil {
		return i.ev.Member.User.ID.String()
	}
	if i.ev.User != nil {
		return i.ev.User.ID.String()
	}
	return ""
}

func (i *gatewayInteraction) CustomID() string { return i.customID }

func (i *gatewayInteraction) Values() []string { return i.values }

func (i *gatewayInteraction) RespondMenu(ctx context.Context, content string, menu Menu) error {
	return i.s.State.RespondInteraction(i.ev.ID, i.ev.Token, api.InteractionResponse{
		Type: api.MessageInteractionWithSource,
		Data: &api.InteractionResponseData{
			Content:    option.NewNullableString(content),
			Components: menuComponents(menu),
			Flags:      discord.EphemeralMessage,
		},
	})
}

func (i *gatewayInteraction) UpdateMenu(ctx context.Context, content string, menu Menu) error {
	return i.s.State.RespondInteraction(i.ev.ID, i.ev.Token, api.InteractionResponse{
		Type: api.UpdateMessage,
		Data: &api.InteractionResponseData{
			Content:    option.NewNullableString(content),
			Components: menuComponents(menu),
		},
	})
}

func menuComponents(menu Menu) *discord.ContainerComponents {
	opts := make([]discord.SelectOption, 0, len(menu.Options))
	for _, o := range menu.Options {
		opts = append(opts, discord.SelectOption{
			Label:   o.Label,
			Value:   o.Value,
			Default: o.Default,
		})
	}
	return &discord.ContainerComponents{
		&discord.ActionRowComponent{
			&discord.StringSelectComponent{
				CustomID:    discord.ComponentID(menu.CustomID),
				Options:     opts,
				ValueLimits: [2]int{0, menu.MaxValues},
			},
		},
	}
}

// RoleMention renders a role mention for message content.
func RoleMention(id string) string { return "<@&" + id + ">" }

// UserMention renders a user mention for message content.
func UserMention(id string) string { return "<@" + id + ">" }
