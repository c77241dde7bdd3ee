package core

import (
	"github.com/bwmarrin/discordgo"

	"github.com/v3se/streambot/internal/command"
)

func init() {
	command.Register(&PingCommand{})
}

type PingCommand struct{}

func (c *PingCommand) Name() string        { return "ping" }
func (c *PingCommand) Description() string { return "Check if the bot is alive" }

func (c *PingCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Type:        discordgo.ChatApplicationCommand,
	}
}

func (c *PingCommand) Run(ctx *command.Context) error {
	return ctx.Respond("Pong!")
}
