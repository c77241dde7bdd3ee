package music

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/v3se/streambot/internal/command"
	"github.com/v3se/streambot/internal/resolver"
)

func init() {
	command.Register(&PlayTagsCommand{})
}

type PlayTagsCommand struct{}

func (c *PlayTagsCommand) Name() string { return "playtags" }
func (c *PlayTagsCommand) Description() string {
	return "Play a random station matching the given tags"
}

func (c *PlayTagsCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Type:        discordgo.ChatApplicationCommand,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "tags",
				Description: "Comma separated tags to search for (e.g. rock, pop)",
				Required:    true,
			},
		},
	}
}

func (c *PlayTagsCommand) Run(ctx *command.Context) error {
	tagText := ctx.StringOption("tags")
	tags := resolver.SplitTags(tagText)
	if len(tags) == 0 {
		return ctx.RespondEphemeral("Please provide tags to search for radio stations.")
	}

	ctx.LogUsage(c.Name(), tagText)

	guildID := ctx.Event.GuildID
	deps := ctx.Deps

	vs, err := deps.Voice.FindUserVoiceState(guildID, ctx.Event.Member.User.ID)
	if err != nil {
		return ctx.RespondEphemeral("You must be in a voice channel.")
	}

	if err := ctx.Defer(); err != nil {
		return fmt.Errorf("failed to send deferred response: %w", err)
	}

	err = deps.Pool.Submit("playtags:"+guildID, func(taskCtx context.Context) error {
		if err := deps.Voice.Connect(guildID, vs.ChannelID); err != nil {
			ctx.Followup(fmt.Sprintf("Failed to join voice channel: %v", err))
			return err
		}

		in := resolver.Input{Kind: resolver.KindTagSet, Tags: tags}
		np, err := deps.Controller.PlayImmediate(taskCtx, guildID, in)
		if err != nil {
			ctx.Followup(playError(err))
			return err
		}
		ctx.Followup(fmt.Sprintf("Now playing: **%s**\n%s", np.Title, np.SourceRef))
		return nil
	})
	if err != nil {
		ctx.Followup("The bot is busy right now, try again in a moment.")
	}
	return nil
}
