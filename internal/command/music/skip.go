package music

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/v3se/streambot/internal/command"
	"github.com/v3se/streambot/internal/session"
)

func init() {
	command.Register(&SkipCommand{})
}

type SkipCommand struct{}

func (c *SkipCommand) Name() string        { return "skip" }
func (c *SkipCommand) Description() string { return "Skip to the next song in the queue" }

func (c *SkipCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Type:        discordgo.ChatApplicationCommand,
	}
}

func (c *SkipCommand) Run(ctx *command.Context) error {
	ctx.LogUsage(c.Name(), "")

	remaining, err := ctx.Deps.Controller.Skip(ctx.Event.GuildID)
	if err != nil {
		if errors.Is(err, session.ErrNotPlaying) {
			return ctx.RespondEphemeral("Nothing is playing right now.")
		}
		return err
	}

	if remaining > 0 {
		return ctx.Respond(fmt.Sprintf("Skipping to next song... (%d songs left in queue)", remaining))
	}
	return ctx.Respond("Skipping current song... (no more songs in queue)")
}
