package core

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/v3se/streambot/internal/command"
)

func init() {
	command.Register(&QueueCommand{})
}

type QueueCommand struct{}

func (c *QueueCommand) Name() string        { return "queue" }
func (c *QueueCommand) Description() string { return "Show the current queue" }

func (c *QueueCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Type:        discordgo.ChatApplicationCommand,
	}
}

func (c *QueueCommand) Run(ctx *command.Context) error {
	ctx.LogUsage(c.Name(), "")

	snap := ctx.Deps.Controller.Snapshot(ctx.Event.GuildID)

	if snap.NowPlaying == "" && len(snap.Entries) == 0 {
		return ctx.Respond("Queue is empty and nothing is playing!")
	}

	var sb strings.Builder
	if snap.NowPlaying != "" {
		fmt.Fprintf(&sb, "Currently playing: **%s**\n\n", snap.NowPlaying)
	}

	if len(snap.Entries) == 0 {
		sb.WriteString("Queue is empty!")
		return ctx.Respond(sb.String())
	}

	fmt.Fprintf(&sb, "**Queue (%d songs):**\n", len(snap.Entries))
	for i, e := range snap.Entries {
		fmt.Fprintf(&sb, "%d. %s (requested by %s)\n", i+1, e.Input.Display(), e.Requester)
	}
	return ctx.Respond(sb.String())
}
