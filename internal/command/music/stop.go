package music

import (
	"github.com/bwmarrin/discordgo"

	"github.com/v3se/streambot/internal/command"
)

func init() {
	command.Register(&StopCommand{})
}

type StopCommand struct{}

func (c *StopCommand) Name() string        { return "stop" }
func (c *StopCommand) Description() string { return "Stop playing and disconnect" }

func (c *StopCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Type:        discordgo.ChatApplicationCommand,
	}
}

func (c *StopCommand) Run(ctx *command.Context) error {
	ctx.LogUsage(c.Name(), "")

	guildID := ctx.Event.GuildID
	if !ctx.Deps.Voice.Connected(guildID) {
		return ctx.RespondEphemeral("Not connected to a voice channel.")
	}

	ctx.Deps.Controller.Stop(guildID)
	ctx.Deps.Voice.Disconnect(guildID)
	return ctx.Respond("Disconnected from voice channel.")
}
