package discord

import "github.com/bwmarrin/discordgo"

// Presence reports "listening to ..." status. Best effort only: callers
// ignore failures beyond logging.
type Presence struct {
	dg *discordgo.Session
}

func NewPresence(dg *discordgo.Session) *Presence {
	return &Presence{dg: dg}
}

func (p *Presence) SetStatus(text string) error {
	return p.dg.UpdateListeningStatus(text)
}

func (p *Presence) ClearStatus() error {
	return p.dg.UpdateListeningStatus("")
}
