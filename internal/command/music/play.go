package music

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/v3se/streambot/internal/command"
	"github.com/v3se/streambot/internal/resolver"
)

func init() {
	command.Register(&PlayCommand{})
}

type PlayCommand struct{}

func (c *PlayCommand) Name() string { return "play" }
func (c *PlayCommand) Description() string {
	return "Play a station by name, a URL, or search for a track"
}

func (c *PlayCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Type:        discordgo.ChatApplicationCommand,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "input",
				Description: "Station name, stream/YouTube URL, or search query",
				Required:    true,
			},
		},
	}
}

func (c *PlayCommand) Run(ctx *command.Context) error {
	input := ctx.StringOption("input")
	if input == "" {
		return ctx.RespondEphemeral("Please tell me what to play.")
	}

	ctx.LogUsage(c.Name(), input)

	guildID := ctx.Event.GuildID
	deps := ctx.Deps

	vs, err := deps.Voice.FindUserVoiceState(guildID, ctx.Event.Member.User.ID)
	if err != nil {
		return ctx.RespondEphemeral("You must be in a voice channel.")
	}

	if err := ctx.Defer(); err != nil {
		return fmt.Errorf("failed to send deferred response: %w", err)
	}

	in := deps.Resolver.Classify(input)

	err = deps.Pool.Submit("play:"+guildID, func(taskCtx context.Context) error {
		if err := deps.Voice.Connect(guildID, vs.ChannelID); err != nil {
			ctx.Followup(fmt.Sprintf("Failed to join voice channel: %v", err))
			return err
		}

		// Named stations replace the current stream outright; tracks and
		// searches queue behind whatever is playing.
		if in.Kind == resolver.KindStationName {
			np, err := deps.Controller.PlayImmediate(taskCtx, guildID, in)
			if err != nil {
				ctx.Followup(playError(err))
				return err
			}
			ctx.Followup(fmt.Sprintf("Now playing: **%s**", np.Title))
			return nil
		}

		res, err := deps.Controller.Enqueue(taskCtx, guildID, in, ctx.Event.Member.User.Username)
		if err != nil {
			ctx.Followup(playError(err))
			return err
		}
		if res.Started {
			ctx.Followup(fmt.Sprintf("Now playing: **%s**", res.Title))
		} else {
			ctx.Followup(fmt.Sprintf("Added to queue at position %d: %s", res.Position, res.Title))
		}
		return nil
	})
	if err != nil {
		ctx.Followup("The bot is busy right now, try again in a moment.")
	}
	return nil
}

func playError(err error) string {
	switch {
	case errors.Is(err, resolver.ErrNotFound):
		return "Nothing playable found for that input."
	case errors.Is(err, resolver.ErrNoStation):
		return "Unknown station."
	default:
		return fmt.Sprintf("An error occurred: %v", err)
	}
}
