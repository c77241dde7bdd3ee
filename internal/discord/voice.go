package discord

import (
	"fmt"

	"github.com/v3se/streambot/internal/command"
)

// Connect joins the guild's voice channel through the player adapter.
func (b *Bot) Connect(guildID, channelID string) error {
	return b.adapter.Connect(guildID, channelID)
}

// Disconnect leaves the guild's voice channel.
func (b *Bot) Disconnect(guildID string) {
	b.adapter.Disconnect(guildID)
}

// Connected reports whether the bot holds a voice connection in the guild.
func (b *Bot) Connected(guildID string) bool {
	return b.adapter.Connected(guildID)
}

// FindUserVoiceState finds the voice state of a user.
func (b *Bot) FindUserVoiceState(guildID, userID string) (*command.VoiceState, error) {
	guild, err := b.dg.State.Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("error retrieving guild: %w", err)
	}

	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID {
			return &command.VoiceState{
				ChannelID: vs.ChannelID,
				UserID:    vs.UserID,
			}, nil
		}
	}
	return nil, fmt.Errorf("user not in any voice channel")
}
