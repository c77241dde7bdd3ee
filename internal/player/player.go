// Package player wraps Discord voice transport behind a start/stop adapter.
// Each started stream gets a process-unique handle; exactly one completion
// event is delivered per handle, asynchronously, carrying the error (if any)
// and the elapsed wall-clock time since start.
package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/v3se/streambot/internal/resolver"
)

var (
	ErrNotConnected = errors.New("not connected to a voice channel")
)

// completionTimeout bounds how long we wait for ffmpeg to exit after a stop
// request before the process is killed outright.
const completionTimeout = 5 * time.Second

// Handle identifies one active transport instance.
type Handle uint64

// Outcome describes how a stream ended.
type Outcome struct {
	Err     error
	Elapsed time.Duration
}

// CompletionFunc receives the terminal status of a handle. Called exactly
// once per started handle, from the playback goroutine.
type CompletionFunc func(guildID string, h Handle, outcome Outcome)

type playback struct {
	guildID  string
	handle   Handle
	stop     chan struct{}
	stopOnce sync.Once
}

// Adapter owns voice connections and running streams per guild.
type Adapter struct {
	mu     sync.Mutex
	dg     *discordgo.Session
	conns  map[string]*discordgo.VoiceConnection
	active map[Handle]*playback
	nextID atomic.Uint64
	onDone CompletionFunc
	log    zerolog.Logger
}

func NewAdapter(dg *discordgo.Session, log zerolog.Logger) *Adapter {
	return &Adapter{
		dg:     dg,
		conns:  make(map[string]*discordgo.VoiceConnection),
		active: make(map[Handle]*playback),
		log:    log.With().Str("component", "player").Logger(),
	}
}

// SetCompletionFunc wires the completion sink. Must be called before Start.
func (a *Adapter) SetCompletionFunc(fn CompletionFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onDone = fn
}

// Connect joins (or reuses) the voice channel for a guild.
func (a *Adapter) Connect(guildID, channelID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if vc, ok := a.conns[guildID]; ok && vc.ChannelID == channelID {
		return nil
	}

	vc, err := a.dg.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return fmt.Errorf("failed to join voice channel: %w", err)
	}
	a.conns[guildID] = vc
	a.log.Info().Str("guild", guildID).Str("channel", channelID).Msg("joined voice channel")
	return nil
}

// Connected reports whether the adapter holds a voice connection for a guild.
func (a *Adapter) Connected(guildID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.conns[guildID]
	return ok
}

// ChannelID returns the voice channel the bot occupies in a guild, or "".
func (a *Adapter) ChannelID(guildID string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if vc, ok := a.conns[guildID]; ok {
		return vc.ChannelID
	}
	return ""
}

// Disconnect leaves the guild's voice channel. Any running stream is stopped
// first; its completion event fires as usual and is expected to be stale by
// the time it arrives.
func (a *Adapter) Disconnect(guildID string) {
	a.mu.Lock()
	vc, ok := a.conns[guildID]
	delete(a.conns, guildID)
	for _, pb := range a.active {
		if pb.guildID == guildID {
			pb.requestStop()
		}
	}
	a.mu.Unlock()

	if ok {
		if err := vc.Disconnect(); err != nil {
			a.log.Warn().Err(err).Str("guild", guildID).Msg("voice disconnect failed")
		}
	}
}

// Start begins streaming the descriptor to the guild's voice channel and
// returns the new handle. The transport must already be connected.
func (a *Adapter) Start(ctx context.Context, guildID string, desc resolver.StreamDescriptor) (Handle, error) {
	a.mu.Lock()
	vc, ok := a.conns[guildID]
	onDone := a.onDone
	a.mu.Unlock()

	if !ok {
		return 0, ErrNotConnected
	}

	stream, err := openFFmpegStream(ctx, desc.StreamURL)
	if err != nil {
		return 0, fmt.Errorf("failed to start transport: %w", err)
	}

	h := Handle(a.nextID.Add(1))
	pb := &playback{
		guildID: guildID,
		handle:  h,
		stop:    make(chan struct{}),
	}

	a.mu.Lock()
	a.active[h] = pb
	a.mu.Unlock()

	a.log.Info().Str("guild", guildID).Uint64("handle", uint64(h)).
		Str("title", desc.Title).Msg("starting stream")

	go a.run(pb, vc, stream, onDone)

	return h, nil
}

// Stop requests termination of a handle. Non-blocking; the handle's
// completion event is still delivered by the playback goroutine.
func (a *Adapter) Stop(h Handle) {
	a.mu.Lock()
	pb, ok := a.active[h]
	a.mu.Unlock()
	if ok {
		pb.requestStop()
	}
}

func (pb *playback) requestStop() {
	pb.stopOnce.Do(func() { close(pb.stop) })
}

// run streams PCM from ffmpeg to the voice connection and delivers the
// completion event when the stream ends for any reason.
func (a *Adapter) run(pb *playback, vc *discordgo.VoiceConnection, stream *ffmpegStream, onDone CompletionFunc) {
	start := time.Now()

	done := make(chan struct{})
	go func() {
		// A hung ffmpeg blocks the PCM read; closing the pipe on stop
		// unblocks it so the completion event always fires.
		select {
		case <-pb.stop:
			stream.reader.Close()
		case <-done:
		}
	}()

	err := streamToDiscord(stream, pb.stop, vc)
	close(done)
	stream.close()

	select {
	case <-pb.stop:
		err = nil // read errors during a requested teardown are expected
	default:
	}

	a.mu.Lock()
	delete(a.active, pb.handle)
	a.mu.Unlock()

	outcome := Outcome{Err: err, Elapsed: time.Since(start)}
	if err != nil {
		a.log.Warn().Err(err).Str("guild", pb.guildID).Uint64("handle", uint64(pb.handle)).
			Dur("elapsed", outcome.Elapsed).Msg("stream ended with error")
	} else {
		a.log.Info().Str("guild", pb.guildID).Uint64("handle", uint64(pb.handle)).
			Dur("elapsed", outcome.Elapsed).Msg("stream finished")
	}

	if onDone != nil {
		onDone(pb.guildID, pb.handle, outcome)
	}
}
