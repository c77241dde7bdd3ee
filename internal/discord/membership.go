package discord

import "github.com/bwmarrin/discordgo"

// onVoiceStateUpdate tears the session down when the bot's voice channel no
// longer holds any human listener. Pure policy over the guild's voice state
// snapshot.
func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, vsu *discordgo.VoiceStateUpdate) {
	botChannel := b.adapter.ChannelID(vsu.GuildID)
	if botChannel == "" {
		return
	}

	// Only react to people leaving or moving out of the bot's channel.
	if vsu.BeforeUpdate == nil || vsu.BeforeUpdate.ChannelID != botChannel {
		return
	}
	if vsu.UserID == s.State.User.ID {
		return
	}

	if b.humansInChannel(vsu.GuildID, botChannel) > 0 {
		return
	}

	b.log.Info().Str("guild", vsu.GuildID).Str("channel", botChannel).
		Msg("no listeners left, disconnecting")
	b.ctrl.Stop(vsu.GuildID)
	b.adapter.Disconnect(vsu.GuildID)
	b.sessions.Drop(vsu.GuildID)
}

func (b *Bot) humansInChannel(guildID, channelID string) int {
	guild, err := b.dg.State.Guild(guildID)
	if err != nil {
		return 0
	}

	count := 0
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID != channelID {
			continue
		}
		member, err := b.dg.State.Member(guildID, vs.UserID)
		if err != nil || member.User == nil || member.User.Bot {
			continue
		}
		count++
	}
	return count
}
