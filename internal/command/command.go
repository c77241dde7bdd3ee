// Package command defines the slash command contract and registry. Commands
// register themselves from init(); the Discord adapter looks them up and
// invokes them with its context.
package command

import (
	"sort"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/v3se/streambot/internal/resolver"
	"github.com/v3se/streambot/internal/session"
	"github.com/v3se/streambot/internal/storage"
	"github.com/v3se/streambot/pkg/workerpool"
)

// VoiceState holds minimal voice channel state for a user.
type VoiceState struct {
	ChannelID string
	UserID    string
}

// VoiceBot is what commands need from the Discord voice layer.
type VoiceBot interface {
	Connect(guildID, channelID string) error
	Disconnect(guildID string)
	Connected(guildID string) bool
	FindUserVoiceState(guildID, userID string) (*VoiceState, error)
}

// Deps carries the collaborators commands run against.
type Deps struct {
	Controller *session.Controller
	Resolver   *resolver.Resolver
	Voice      VoiceBot
	Storage    *storage.Storage
	Pool       *workerpool.Pool
	Log        zerolog.Logger
}

// Context is one slash command invocation.
type Context struct {
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
	Deps    *Deps
}

// Command is the universal contract: identity, slash definition, execution.
type Command interface {
	Name() string
	Description() string
	SlashDefinition() *discordgo.ApplicationCommand
	Run(ctx *Context) error
}

// Registry stores commands by name. It does not perform dispatch; the
// Discord adapter looks up commands and invokes them.
type Registry struct {
	commands map[string]Command
}

// DefaultRegistry is the global registry commands register into.
var DefaultRegistry = NewRegistry()

func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register adds a command. Usually called from init().
func (r *Registry) Register(c Command) {
	r.commands[c.Name()] = c
}

// Get returns the command with the given name, or nil.
func (r *Registry) Get(name string) Command {
	return r.commands[name]
}

// GetAll returns all registered commands, sorted by name.
func (r *Registry) GetAll() []Command {
	list := make([]Command, 0, len(r.commands))
	for _, c := range r.commands {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name() < list[j].Name()
	})
	return list
}

// Register adds a command to the default registry.
func Register(c Command) {
	DefaultRegistry.Register(c)
}
