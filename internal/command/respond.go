package command

import (
	"github.com/bwmarrin/discordgo"
)

// Respond sends an immediate plain-text interaction response.
func (c *Context) Respond(text string) error {
	return c.Session.InteractionRespond(c.Event.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: text},
	})
}

// RespondEphemeral sends an immediate response visible only to the caller.
func (c *Context) RespondEphemeral(text string) error {
	return c.Session.InteractionRespond(c.Event.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: text,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

// Defer acknowledges the interaction so slow work can follow up later.
func (c *Context) Defer() error {
	return c.Session.InteractionRespond(c.Event.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
}

// Followup sends a follow-up message after Defer.
func (c *Context) Followup(text string) {
	if _, err := c.Session.FollowupMessageCreate(c.Event.Interaction, true, &discordgo.WebhookParams{
		Content: text,
	}); err != nil {
		c.Deps.Log.Warn().Err(err).Msg("failed to send followup")
	}
}

// StringOption returns a named string option of the command, or "".
func (c *Context) StringOption(name string) string {
	for _, opt := range c.Event.ApplicationCommandData().Options {
		if opt.Name == name {
			return opt.StringValue()
		}
	}
	return ""
}

// LogUsage records the invocation in the command history store.
func (c *Context) LogUsage(commandName, param string) {
	if c.Deps.Storage == nil || c.Event.Member == nil {
		return
	}
	user := c.Event.Member.User
	if err := c.Deps.Storage.LogCommand(c.Event.GuildID, c.Event.ChannelID,
		user.ID, user.Username, commandName, param); err != nil {
		c.Deps.Log.Warn().Err(err).Str("command", commandName).Msg("failed to log command usage")
	}
}
