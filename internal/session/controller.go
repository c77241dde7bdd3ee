package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/v3se/streambot/internal/player"
	"github.com/v3se/streambot/internal/resolver"
)

const (
	// retryWindow separates "stream hiccuped" from "track legitimately
	// finished": a stream that dies this quickly is assumed transient.
	retryWindow = 10 * time.Second
	maxRetries  = 3

	resolveTimeout = 30 * time.Second
)

var (
	ErrNotPlaying = errors.New("nothing is playing right now")
)

// PlayerAdapter is the transport the controller starts and stops streams on.
type PlayerAdapter interface {
	Start(ctx context.Context, guildID string, desc resolver.StreamDescriptor) (player.Handle, error)
	Stop(h player.Handle)
}

// TrackResolver maps classified inputs to stream descriptors.
type TrackResolver interface {
	Resolve(ctx context.Context, in resolver.Input) (resolver.StreamDescriptor, error)
}

// PresenceSink reports "now playing" status. Best effort: failures are
// logged and never influence playback decisions.
type PresenceSink interface {
	SetStatus(text string) error
	ClearStatus() error
}

// NowPlaying describes what a play operation ended up doing.
type NowPlaying struct {
	Title     string
	SourceRef string
}

// EnqueueResult reports whether the entry started immediately or was queued.
type EnqueueResult struct {
	Started  bool
	Position int // 1-based queue position when queued
	Title    string
}

// Controller is the single authority over per-guild playback: it resolves
// inputs, starts and stops transport handles, applies the completion/retry
// protocol and advances the queue.
type Controller struct {
	store    *Store
	adapter  PlayerAdapter
	resolver TrackResolver
	presence PresenceSink
	log      zerolog.Logger
}

func NewController(store *Store, adapter PlayerAdapter, res TrackResolver, presence PresenceSink, log zerolog.Logger) *Controller {
	return &Controller{
		store:    store,
		adapter:  adapter,
		resolver: res,
		presence: presence,
		log:      log.With().Str("component", "controller").Logger(),
	}
}

// PlayImmediate resolves the input and plays it now, replacing whatever is
// currently streaming. The superseded handle's completion event becomes
// stale. On failure the session reverts to idle and the error is returned.
func (c *Controller) PlayImmediate(ctx context.Context, guildID string, in resolver.Input) (*NowPlaying, error) {
	s := c.store.GetOrCreate(guildID)
	s.mu.Lock()
	defer s.mu.Unlock()

	desc, err := c.resolver.Resolve(ctx, in)
	if err != nil {
		return nil, err
	}
	return c.playLocked(ctx, s, in, desc)
}

// Enqueue appends the input to the queue when something is playing and
// returns its 1-based position. When idle it behaves as PlayImmediate.
func (c *Controller) Enqueue(ctx context.Context, guildID string, in resolver.Input, requester string) (*EnqueueResult, error) {
	s := c.store.GetOrCreate(guildID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Current != nil {
		s.Queue = append(s.Queue, QueueEntry{Input: in, Requester: requester})
		c.log.Info().Str("guild", guildID).Str("input", in.Display()).
			Int("position", len(s.Queue)).Msg("queued")
		return &EnqueueResult{Position: len(s.Queue), Title: in.Display()}, nil
	}

	desc, err := c.resolver.Resolve(ctx, in)
	if err != nil {
		return nil, err
	}
	np, err := c.playLocked(ctx, s, in, desc)
	if err != nil {
		return nil, err
	}
	return &EnqueueResult{Started: true, Title: np.Title}, nil
}

// playLocked replaces the current track and starts the new one. Caller holds
// the session mutex.
func (c *Controller) playLocked(ctx context.Context, s *Session, in resolver.Input, desc resolver.StreamDescriptor) (*NowPlaying, error) {
	if s.Current != nil {
		// The old handle keeps tearing down on its own; its completion
		// event no longer matches s.Current and will be discarded.
		c.adapter.Stop(s.Current.Handle)
	}

	track := &Track{
		Input:      in,
		Descriptor: desc,
		StartTime:  time.Now(),
	}
	s.Current = track

	h, err := c.adapter.Start(ctx, s.GuildID, desc)
	if err != nil {
		s.Current = nil
		c.clearStatus()
		return nil, fmt.Errorf("failed to start playback: %w", err)
	}
	track.Handle = h

	c.setStatus(desc.Title)
	c.log.Info().Str("guild", s.GuildID).Str("title", desc.Title).
		Uint64("handle", uint64(h)).Msg("now playing")

	return &NowPlaying{Title: desc.Title, SourceRef: desc.SourceRef}, nil
}

// OnCompletion handles the terminal status of a transport handle. Stale
// handles are discarded; a skipped track always advances; a short-lived
// stream is retried up to maxRetries before the queue advances.
func (c *Controller) OnCompletion(guildID string, h player.Handle, outcome player.Outcome) {
	defer func() {
		// A single session's failure must never take the process down.
		if r := recover(); r != nil {
			c.log.Error().Str("guild", guildID).Interface("panic", r).
				Msg("panic in completion handler")
		}
	}()

	s := c.store.Get(guildID)
	if s == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.Current
	if cur == nil || cur.Handle != h {
		c.log.Debug().Str("guild", guildID).Uint64("handle", uint64(h)).
			Msg("ignoring stale completion event")
		return
	}

	if cur.SkipRequested {
		c.advanceLocked(s)
		return
	}

	if outcome.Elapsed < retryWindow && cur.RetryCount < maxRetries {
		c.log.Warn().Str("guild", guildID).Err(outcome.Err).
			Dur("elapsed", outcome.Elapsed).
			Int("attempt", cur.RetryCount+1).Int("max", maxRetries).
			Msg("stream ended prematurely, retrying")
		if c.retryLocked(s, cur) {
			return
		}
	}

	c.advanceLocked(s)
}

// retryLocked restarts the same source ref with an incremented retry
// counter. Returns false when the retry could not be started.
func (c *Controller) retryLocked(s *Session, cur *Track) bool {
	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()

	desc, err := c.resolver.Resolve(ctx, cur.retryInput())
	if err != nil {
		c.log.Warn().Str("guild", s.GuildID).Err(err).Msg("retry resolution failed")
		return false
	}

	h, err := c.adapter.Start(ctx, s.GuildID, desc)
	if err != nil {
		c.log.Warn().Str("guild", s.GuildID).Err(err).Msg("retry start failed")
		return false
	}

	cur.RetryCount++
	cur.Descriptor = desc
	cur.StartTime = time.Now()
	cur.Handle = h
	return true
}

// advanceLocked pops queue entries until one starts or the queue drains.
// Each iteration removes an entry, so the loop is bounded by queue length.
func (c *Controller) advanceLocked(s *Session) {
	for len(s.Queue) > 0 {
		entry := s.Queue[0]
		s.Queue = s.Queue[1:]

		ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
		desc, err := c.resolver.Resolve(ctx, entry.Input)
		if err != nil {
			cancel()
			c.log.Warn().Str("guild", s.GuildID).Str("input", entry.Input.Display()).
				Err(err).Msg("skipping unresolvable queue entry")
			continue
		}

		track := &Track{
			Input:      entry.Input,
			Descriptor: desc,
			StartTime:  time.Now(),
		}

		h, err := c.adapter.Start(ctx, s.GuildID, desc)
		cancel()
		if err != nil {
			c.log.Warn().Str("guild", s.GuildID).Str("title", desc.Title).
				Err(err).Msg("skipping queue entry, transport start failed")
			continue
		}
		track.Handle = h
		s.Current = track

		c.setStatus(desc.Title)
		c.log.Info().Str("guild", s.GuildID).Str("title", desc.Title).
			Int("remaining", len(s.Queue)).Msg("advanced to next track")
		return
	}

	s.Current = nil
	c.clearStatus()
	c.log.Info().Str("guild", s.GuildID).Msg("queue finished, going idle")
}

// Skip stops the current track and forces an advance regardless of how long
// it has been playing. Returns the queue length remaining.
func (c *Controller) Skip(guildID string) (int, error) {
	s := c.store.Get(guildID)
	if s == nil {
		return 0, ErrNotPlaying
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Current == nil {
		return 0, ErrNotPlaying
	}

	s.Current.SkipRequested = true
	remaining := len(s.Queue)
	c.adapter.Stop(s.Current.Handle)
	return remaining, nil
}

// Stop clears the queue and current track from any state. Idempotent.
func (c *Controller) Stop(guildID string) {
	s := c.store.Get(guildID)
	if s == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.Queue = nil
	if s.Current != nil {
		c.adapter.Stop(s.Current.Handle)
		s.Current = nil
	}
	c.clearStatus()
	c.log.Info().Str("guild", guildID).Msg("playback stopped")
}

// QueueSnapshot describes state for display: the current title (empty when
// idle) and queue entries in order.
type QueueSnapshot struct {
	NowPlaying string
	Entries    []QueueEntry
}

// Snapshot returns a copy of the session's visible state.
func (c *Controller) Snapshot(guildID string) QueueSnapshot {
	s := c.store.Get(guildID)
	if s == nil {
		return QueueSnapshot{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := QueueSnapshot{Entries: append([]QueueEntry(nil), s.Queue...)}
	if s.Current != nil {
		snap.NowPlaying = s.Current.Descriptor.Title
	}
	return snap
}

func (c *Controller) setStatus(text string) {
	if err := c.presence.SetStatus(text); err != nil {
		c.log.Warn().Err(err).Msg("presence update failed")
	}
}

func (c *Controller) clearStatus() {
	if err := c.presence.ClearStatus(); err != nil {
		c.log.Warn().Err(err).Msg("presence clear failed")
	}
}
