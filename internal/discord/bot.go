// Package discord wires the bot together: session setup, slash command
// registration and dispatch, presence updates and voice membership watching.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/v3se/streambot/internal/command"
	"github.com/v3se/streambot/internal/config"
	"github.com/v3se/streambot/internal/player"
	"github.com/v3se/streambot/internal/resolver"
	"github.com/v3se/streambot/internal/session"
	"github.com/v3se/streambot/internal/storage"
	"github.com/v3se/streambot/pkg/workerpool"
)

// Bot is the Discord adapter around the playback controller.
type Bot struct {
	dg       *discordgo.Session
	cfg      *config.Config
	adapter  *player.Adapter
	ctrl     *session.Controller
	sessions *session.Store
	deps     *command.Deps
	log      zerolog.Logger
}

// StartBot runs the bot until the context is cancelled.
func StartBot(ctx context.Context, cfg *config.Config, stations []config.Station, store *storage.Storage, log zerolog.Logger) error {
	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	botLog := log.With().Str("component", "discord").Logger()

	adapter := player.NewAdapter(dg, log)
	res := resolver.New(stations, log)
	sessions := session.NewStore()
	presence := NewPresence(dg)
	ctrl := session.NewController(sessions, adapter, res, presence, log)
	adapter.SetCompletionFunc(ctrl.OnCompletion)

	pool := workerpool.New(4, func(msg string) {
		botLog.Debug().Str("task", msg).Msg("pool")
	})
	defer pool.Shutdown()

	b := &Bot{
		dg:       dg,
		cfg:      cfg,
		adapter:  adapter,
		ctrl:     ctrl,
		sessions: sessions,
		log:      botLog,
	}
	b.deps = &command.Deps{
		Controller: ctrl,
		Resolver:   res,
		Voice:      b,
		Storage:    store,
		Pool:       pool,
		Log:        log,
	}

	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMessages

	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onInteractionCreate)
	dg.AddHandler(b.onVoiceStateUpdate)
	dg.AddHandler(b.onGuildCreate)

	if err := dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer dg.Close()

	<-ctx.Done()
	b.log.Info().Msg("shutdown signal received, cleaning up")
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	for _, g := range r.Guilds {
		if err := b.registerCommands(g.ID); err != nil {
			b.log.Error().Err(err).Str("guild", g.ID).Msg("failed to register slash commands")
		}
	}
	b.log.Info().Str("user", s.State.User.Username).Msg("bot is running")
}

func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	b.log.Info().Str("guild", g.Guild.ID).Str("name", g.Guild.Name).Msg("bot added to guild")
	if err := b.registerCommands(g.Guild.ID); err != nil {
		b.log.Error().Err(err).Str("guild", g.Guild.ID).Msg("failed to register slash commands")
	}
}

func (b *Bot) registerCommands(guildID string) error {
	appID := b.dg.State.User.ID
	if appID == "" {
		user, err := b.dg.User("@me")
		if err != nil {
			return err
		}
		appID = user.ID
	}

	for _, cmd := range command.DefaultRegistry.GetAll() {
		def := cmd.SlashDefinition()
		if def == nil {
			continue
		}
		if _, err := b.dg.ApplicationCommandCreate(appID, guildID, def); err != nil {
			b.log.Error().Err(err).Str("guild", guildID).Str("command", def.Name).
				Msg("failed to create command")
		}
	}
	return nil
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	name := i.ApplicationCommandData().Name
	cmd := command.DefaultRegistry.Get(name)
	if cmd == nil {
		b.log.Warn().Str("command", name).Msg("unknown command")
		return
	}

	if i.GuildID == "" {
		_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: "This command can only be used in a server.",
				Flags:   discordgo.MessageFlagsEphemeral,
			},
		})
		return
	}

	ctx := &command.Context{Session: s, Event: i, Deps: b.deps}
	if err := cmd.Run(ctx); err != nil {
		b.log.Error().Err(err).Str("command", name).Str("guild", i.GuildID).
			Msg("command failed")
	}
}
