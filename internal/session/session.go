// Package session holds per-guild playback state and the controller that
// decides what plays next. All mutation of a session goes through the
// controller; operations on one guild are serialized by the session mutex.
package session

import (
	"sync"
	"time"

	"github.com/v3se/streambot/internal/player"
	"github.com/v3se/streambot/internal/resolver"
)

// Track is the currently playing (or just-stopped, pending a decision) item.
type Track struct {
	Input         resolver.Input
	Descriptor    resolver.StreamDescriptor
	StartTime     time.Time
	RetryCount    int
	Handle        player.Handle
	SkipRequested bool
}

// retryInput rebuilds a resolvable input for the same source ref, so a retry
// never re-runs the original search or tag lottery.
func (t *Track) retryInput() resolver.Input {
	return resolver.Input{Kind: resolver.KindDirectURL, Value: t.Descriptor.SourceRef}
}

// QueueEntry is one pending request. Requester is informational only.
type QueueEntry struct {
	Input     resolver.Input
	Requester string
}

// Session is the playback context of one guild.
type Session struct {
	mu      sync.Mutex
	GuildID string
	Current *Track
	Queue   []QueueEntry
}

// Store maps guild IDs to sessions. Sessions are created lazily and kept
// (empty) after stop; dropping them is equivalent.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Get returns the session for a guild, or nil.
func (s *Store) Get(guildID string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[guildID]
}

// GetOrCreate returns the session for a guild, creating it on first use.
func (s *Store) GetOrCreate(guildID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[guildID]; ok {
		return sess
	}
	sess := &Session{GuildID: guildID}
	s.sessions[guildID] = sess
	return sess
}

// Drop removes a guild's session entirely.
func (s *Store) Drop(guildID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, guildID)
}
