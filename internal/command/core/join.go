package core

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/v3se/streambot/internal/command"
)

func init() {
	command.Register(&JoinCommand{})
}

type JoinCommand struct{}

func (c *JoinCommand) Name() string        { return "join" }
func (c *JoinCommand) Description() string { return "Join the voice channel you are in" }

func (c *JoinCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Type:        discordgo.ChatApplicationCommand,
	}
}

func (c *JoinCommand) Run(ctx *command.Context) error {
	ctx.LogUsage(c.Name(), "")

	vs, err := ctx.Deps.Voice.FindUserVoiceState(ctx.Event.GuildID, ctx.Event.Member.User.ID)
	if err != nil {
		return ctx.RespondEphemeral("You must be in a voice channel.")
	}

	if err := ctx.Deps.Voice.Connect(ctx.Event.GuildID, vs.ChannelID); err != nil {
		return ctx.RespondEphemeral(fmt.Sprintf("Failed to join: %v", err))
	}

	return ctx.Respond("Joined your voice channel.")
}
