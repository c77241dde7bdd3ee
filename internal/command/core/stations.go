package core

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/v3se/streambot/internal/command"
)

func init() {
	command.Register(&StationsCommand{})
}

type StationsCommand struct{}

func (c *StationsCommand) Name() string        { return "stations" }
func (c *StationsCommand) Description() string { return "List all available radio stations" }

func (c *StationsCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Type:        discordgo.ChatApplicationCommand,
	}
}

func (c *StationsCommand) Run(ctx *command.Context) error {
	ctx.LogUsage(c.Name(), "")

	stations := ctx.Deps.Resolver.Stations()
	if len(stations) == 0 {
		return ctx.Respond("No stations configured.")
	}

	var sb strings.Builder
	sb.WriteString("Available stations:\n")
	for _, st := range stations {
		fmt.Fprintf(&sb, "%s: %s\n", st.Name, st.StreamURL)
	}
	return ctx.Respond(sb.String())
}
