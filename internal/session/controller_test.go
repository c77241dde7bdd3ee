package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/v3se/streambot/internal/player"
	"github.com/v3se/streambot/internal/resolver"
)

const testGuild = "guild-1"

type startCall struct {
	guildID string
	desc    resolver.StreamDescriptor
}

// fakeAdapter assigns increasing handles and records starts and stops.
type fakeAdapter struct {
	mu       sync.Mutex
	next     uint64
	starts   []startCall
	stopped  []player.Handle
	startErr map[string]error // keyed by SourceRef
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{startErr: make(map[string]error)}
}

func (a *fakeAdapter) Start(_ context.Context, guildID string, desc resolver.StreamDescriptor) (player.Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err, ok := a.startErr[desc.SourceRef]; ok {
		return 0, err
	}
	a.next++
	a.starts = append(a.starts, startCall{guildID: guildID, desc: desc})
	return player.Handle(a.next), nil
}

func (a *fakeAdapter) Stop(h player.Handle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = append(a.stopped, h)
}

func (a *fakeAdapter) startCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.starts)
}

// fakeResolver resolves inputs from a fixed table. Unknown inputs fail with
// ErrNotFound.
type fakeResolver struct {
	descriptors map[string]resolver.StreamDescriptor // keyed by Input.Value
	failing     map[string]error
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		descriptors: make(map[string]resolver.StreamDescriptor),
		failing:     make(map[string]error),
	}
}

func (r *fakeResolver) add(ref, title string) {
	r.descriptors[ref] = resolver.StreamDescriptor{SourceRef: ref, StreamURL: ref, Title: title}
}

func (r *fakeResolver) Resolve(_ context.Context, in resolver.Input) (resolver.StreamDescriptor, error) {
	if err, ok := r.failing[in.Value]; ok {
		return resolver.StreamDescriptor{}, err
	}
	if d, ok := r.descriptors[in.Value]; ok {
		return d, nil
	}
	return resolver.StreamDescriptor{}, fmt.Errorf("%w: %s", resolver.ErrNotFound, in.Value)
}

type fakePresence struct {
	mu      sync.Mutex
	current string
	history []string
}

func (p *fakePresence) SetStatus(text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = text
	p.history = append(p.history, text)
	return nil
}

func (p *fakePresence) ClearStatus() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = ""
	p.history = append(p.history, "")
	return nil
}

func (p *fakePresence) status() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func urlInput(ref string) resolver.Input {
	return resolver.Input{Kind: resolver.KindDirectURL, Value: ref}
}

func newTestController() (*Controller, *Store, *fakeAdapter, *fakeResolver, *fakePresence) {
	store := NewStore()
	adapter := newFakeAdapter()
	res := newFakeResolver()
	presence := &fakePresence{}
	ctrl := NewController(store, adapter, res, presence, zerolog.Nop())
	return ctrl, store, adapter, res, presence
}

func TestPlayImmediateStartsAndSetsPresence(t *testing.T) {
	ctrl, store, adapter, res, presence := newTestController()
	res.add("http://a", "Track A")

	np, err := ctrl.PlayImmediate(context.Background(), testGuild, urlInput("http://a"))
	if err != nil {
		t.Fatalf("PlayImmediate failed: %v", err)
	}
	if np.Title != "Track A" {
		t.Errorf("expected title Track A, got %q", np.Title)
	}
	if adapter.startCount() != 1 {
		t.Fatalf("expected 1 start, got %d", adapter.startCount())
	}
	if presence.status() != "Track A" {
		t.Errorf("expected presence Track A, got %q", presence.status())
	}

	s := store.Get(testGuild)
	if s.Current == nil || s.Current.RetryCount != 0 {
		t.Fatal("expected current track with retry count 0")
	}
}

func TestPlayImmediateStartFailureRevertsToIdle(t *testing.T) {
	ctrl, store, adapter, res, _ := newTestController()
	res.add("http://a", "Track A")
	adapter.startErr["http://a"] = errors.New("transport exploded")

	_, err := ctrl.PlayImmediate(context.Background(), testGuild, urlInput("http://a"))
	if err == nil {
		t.Fatal("expected start failure to be surfaced")
	}
	if s := store.Get(testGuild); s.Current != nil {
		t.Error("expected session to revert to idle")
	}
}

func TestEnqueueWhileIdleStartsImmediately(t *testing.T) {
	ctrl, store, adapter, res, _ := newTestController()
	res.add("http://a", "Track A")

	result, err := ctrl.Enqueue(context.Background(), testGuild, urlInput("http://a"), "alice")
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if !result.Started {
		t.Error("expected enqueue on idle session to start immediately")
	}
	if adapter.startCount() != 1 {
		t.Errorf("expected 1 start, got %d", adapter.startCount())
	}
	if s := store.Get(testGuild); len(s.Queue) != 0 {
		t.Errorf("expected empty queue, got %d entries", len(s.Queue))
	}
}

func TestEnqueueWhilePlayingReturnsPosition(t *testing.T) {
	ctrl, _, adapter, res, _ := newTestController()
	res.add("http://a", "Track A")
	res.add("http://b", "Track B")
	res.add("http://c", "Track C")

	if _, err := ctrl.PlayImmediate(context.Background(), testGuild, urlInput("http://a")); err != nil {
		t.Fatal(err)
	}

	r1, err := ctrl.Enqueue(context.Background(), testGuild, urlInput("http://b"), "alice")
	if err != nil {
		t.Fatal(err)
	}
	r2, err := ctrl.Enqueue(context.Background(), testGuild, urlInput("http://c"), "bob")
	if err != nil {
		t.Fatal(err)
	}

	if r1.Started || r2.Started {
		t.Error("queued entries must not start immediately")
	}
	if r1.Position != 1 || r2.Position != 2 {
		t.Errorf("expected positions 1 and 2, got %d and %d", r1.Position, r2.Position)
	}
	if adapter.startCount() != 1 {
		t.Errorf("queueing must not start transport, got %d starts", adapter.startCount())
	}
}

func TestShortLivedStreamIsRetried(t *testing.T) {
	ctrl, store, adapter, res, _ := newTestController()
	res.add("http://a", "Track A")

	if _, err := ctrl.PlayImmediate(context.Background(), testGuild, urlInput("http://a")); err != nil {
		t.Fatal(err)
	}
	h1 := store.Get(testGuild).Current.Handle

	ctrl.OnCompletion(testGuild, h1, player.Outcome{Err: errors.New("reset"), Elapsed: 3 * time.Second})

	s := store.Get(testGuild)
	if s.Current == nil {
		t.Fatal("expected track to still be current after retry")
	}
	if s.Current.RetryCount != 1 {
		t.Errorf("expected retry count 1, got %d", s.Current.RetryCount)
	}
	if s.Current.Descriptor.SourceRef != "http://a" {
		t.Errorf("retry must restart the same source ref, got %s", s.Current.Descriptor.SourceRef)
	}
	if s.Current.Handle == h1 {
		t.Error("retry must produce a new handle")
	}
	if adapter.startCount() != 2 {
		t.Errorf("expected 2 starts, got %d", adapter.startCount())
	}
}

func TestRetryStopsAfterMaxAttempts(t *testing.T) {
	ctrl, store, adapter, res, _ := newTestController()
	res.add("http://a", "Track A")
	res.add("http://b", "Track B")

	if _, err := ctrl.PlayImmediate(context.Background(), testGuild, urlInput("http://a")); err != nil {
		t.Fatal(err)
	}
	if _, err := ctrl.Enqueue(context.Background(), testGuild, urlInput("http://b"), "alice"); err != nil {
		t.Fatal(err)
	}

	// Three short-lived completions burn through the retry budget.
	for i := 0; i < 3; i++ {
		h := store.Get(testGuild).Current.Handle
		ctrl.OnCompletion(testGuild, h, player.Outcome{Elapsed: 2 * time.Second})
	}

	s := store.Get(testGuild)
	if s.Current.RetryCount != 3 {
		t.Fatalf("expected retry count 3, got %d", s.Current.RetryCount)
	}

	// The fourth short completion must advance, not retry a fourth time.
	h := s.Current.Handle
	ctrl.OnCompletion(testGuild, h, player.Outcome{Elapsed: 2 * time.Second})

	s = store.Get(testGuild)
	if s.Current == nil || s.Current.Descriptor.SourceRef != "http://b" {
		t.Fatal("expected controller to advance to Track B")
	}
	if s.Current.RetryCount != 0 {
		t.Errorf("retry count must reset on a new source ref, got %d", s.Current.RetryCount)
	}
	if got := adapter.startCount(); got != 5 {
		t.Errorf("expected 5 starts (1 + 3 retries + 1 advance), got %d", got)
	}
}

func TestLongPlaybackAdvancesWithoutRetry(t *testing.T) {
	ctrl, store, _, res, presence := newTestController()
	res.add("http://a", "Track A")

	if _, err := ctrl.PlayImmediate(context.Background(), testGuild, urlInput("http://a")); err != nil {
		t.Fatal(err)
	}
	h := store.Get(testGuild).Current.Handle

	ctrl.OnCompletion(testGuild, h, player.Outcome{Elapsed: 4 * time.Minute})

	if s := store.Get(testGuild); s.Current != nil {
		t.Error("expected idle after natural completion with empty queue")
	}
	if presence.status() != "" {
		t.Errorf("expected presence cleared, got %q", presence.status())
	}
}

func TestRetryWindowBoundaryAdvances(t *testing.T) {
	ctrl, store, _, res, _ := newTestController()
	res.add("http://a", "Track A")

	if _, err := ctrl.PlayImmediate(context.Background(), testGuild, urlInput("http://a")); err != nil {
		t.Fatal(err)
	}
	h := store.Get(testGuild).Current.Handle

	// Exactly at the window is not "short-lived".
	ctrl.OnCompletion(testGuild, h, player.Outcome{Elapsed: retryWindow})

	if s := store.Get(testGuild); s.Current != nil {
		t.Error("completion at the retry window boundary must advance, not retry")
	}
}

func TestSkipForcesAdvanceNotRetry(t *testing.T) {
	ctrl, store, adapter, res, _ := newTestController()
	res.add("http://a", "Track A")
	res.add("http://b", "Track B")
	res.add("http://c", "Track C")

	if _, err := ctrl.PlayImmediate(context.Background(), testGuild, urlInput("http://a")); err != nil {
		t.Fatal(err)
	}
	h1 := store.Get(testGuild).Current.Handle
	if _, err := ctrl.Enqueue(context.Background(), testGuild, urlInput("http://b"), "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := ctrl.Enqueue(context.Background(), testGuild, urlInput("http://c"), "bob"); err != nil {
		t.Fatal(err)
	}

	remaining, err := ctrl.Skip(testGuild)
	if err != nil {
		t.Fatalf("Skip failed: %v", err)
	}
	if remaining != 2 {
		t.Errorf("expected 2 remaining, got %d", remaining)
	}

	// Completion arrives quickly, which would normally trigger a retry.
	ctrl.OnCompletion(testGuild, h1, player.Outcome{Elapsed: 1 * time.Second})

	s := store.Get(testGuild)
	if s.Current == nil || s.Current.Descriptor.SourceRef != "http://b" {
		t.Fatal("skip must advance to Track B, never retry Track A")
	}
	if len(s.Queue) != 1 || s.Queue[0].Input.Value != "http://c" {
		t.Fatalf("expected queue [http://c], got %v", s.Queue)
	}
	if adapter.startCount() != 2 {
		t.Errorf("Track A must not be restarted after skip, got %d starts", adapter.startCount())
	}
}

func TestSkipWhenIdleFails(t *testing.T) {
	ctrl, _, _, _, _ := newTestController()
	if _, err := ctrl.Skip(testGuild); !errors.Is(err, ErrNotPlaying) {
		t.Errorf("expected ErrNotPlaying, got %v", err)
	}
}

func TestStaleCompletionIsIgnored(t *testing.T) {
	ctrl, store, adapter, res, _ := newTestController()
	res.add("http://a", "Track A")
	res.add("http://b", "Track B")
	res.add("http://c", "Track C")

	if _, err := ctrl.PlayImmediate(context.Background(), testGuild, urlInput("http://a")); err != nil {
		t.Fatal(err)
	}
	h1 := store.Get(testGuild).Current.Handle
	if _, err := ctrl.Enqueue(context.Background(), testGuild, urlInput("http://b"), "alice"); err != nil {
		t.Fatal(err)
	}

	// Replacing the stream supersedes h1; queue must stay untouched.
	if _, err := ctrl.PlayImmediate(context.Background(), testGuild, urlInput("http://c")); err != nil {
		t.Fatal(err)
	}
	h2 := store.Get(testGuild).Current.Handle
	if h2 == h1 {
		t.Fatal("expected a fresh handle for the replacing track")
	}

	// The old handle's completion races in afterwards and must be dropped.
	ctrl.OnCompletion(testGuild, h1, player.Outcome{Elapsed: 1 * time.Second})

	s := store.Get(testGuild)
	if s.Current == nil || s.Current.Handle != h2 {
		t.Fatal("stale completion must not disturb the current track")
	}
	if len(s.Queue) != 1 || s.Queue[0].Input.Value != "http://b" {
		t.Fatalf("stale completion must not touch the queue, got %v", s.Queue)
	}
	if got := len(adapter.stopped); got != 1 {
		t.Errorf("expected exactly the superseded handle stopped, got %d", got)
	}
}

func TestCompletionForUnknownGuildIsIgnored(t *testing.T) {
	ctrl, _, _, _, _ := newTestController()
	// Must not panic or create state.
	ctrl.OnCompletion("nope", 42, player.Outcome{Elapsed: time.Second})
}

func TestAdvanceSkipsUnresolvableEntries(t *testing.T) {
	ctrl, store, _, res, _ := newTestController()
	res.add("http://a", "Track A")
	res.add("http://c", "Track C")
	res.failing["http://b"] = errors.New("provider unreachable")

	if _, err := ctrl.PlayImmediate(context.Background(), testGuild, urlInput("http://a")); err != nil {
		t.Fatal(err)
	}
	h := store.Get(testGuild).Current.Handle
	if _, err := ctrl.Enqueue(context.Background(), testGuild, urlInput("http://b"), "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := ctrl.Enqueue(context.Background(), testGuild, urlInput("http://c"), "bob"); err != nil {
		t.Fatal(err)
	}

	ctrl.OnCompletion(testGuild, h, player.Outcome{Elapsed: time.Minute})

	s := store.Get(testGuild)
	if s.Current == nil || s.Current.Descriptor.SourceRef != "http://c" {
		t.Fatal("expected unresolvable entry to be skipped and Track C started")
	}
	if len(s.Queue) != 0 {
		t.Errorf("expected drained queue, got %d entries", len(s.Queue))
	}
}

func TestAdvanceGoesIdleWhenNothingResolves(t *testing.T) {
	ctrl, store, _, res, presence := newTestController()
	res.add("http://a", "Track A")
	res.failing["http://b"] = errors.New("gone")
	res.failing["http://c"] = errors.New("gone")

	if _, err := ctrl.PlayImmediate(context.Background(), testGuild, urlInput("http://a")); err != nil {
		t.Fatal(err)
	}
	h := store.Get(testGuild).Current.Handle
	if _, err := ctrl.Enqueue(context.Background(), testGuild, urlInput("http://b"), "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := ctrl.Enqueue(context.Background(), testGuild, urlInput("http://c"), "bob"); err != nil {
		t.Fatal(err)
	}

	ctrl.OnCompletion(testGuild, h, player.Outcome{Elapsed: time.Minute})

	s := store.Get(testGuild)
	if s.Current != nil || len(s.Queue) != 0 {
		t.Fatal("expected idle session with empty queue")
	}
	if presence.status() != "" {
		t.Errorf("expected presence cleared, got %q", presence.status())
	}
}

func TestStopClearsEverythingAndIsIdempotent(t *testing.T) {
	ctrl, store, adapter, res, presence := newTestController()
	res.add("http://a", "Track A")
	res.add("http://b", "Track B")

	if _, err := ctrl.PlayImmediate(context.Background(), testGuild, urlInput("http://a")); err != nil {
		t.Fatal(err)
	}
	h := store.Get(testGuild).Current.Handle
	if _, err := ctrl.Enqueue(context.Background(), testGuild, urlInput("http://b"), "alice"); err != nil {
		t.Fatal(err)
	}

	ctrl.Stop(testGuild)

	s := store.Get(testGuild)
	if s.Current != nil || len(s.Queue) != 0 {
		t.Fatal("expected idle session with empty queue after stop")
	}
	if presence.status() != "" {
		t.Errorf("expected presence cleared, got %q", presence.status())
	}

	// Second stop and the stopped handle's late completion are both no-ops.
	ctrl.Stop(testGuild)
	ctrl.OnCompletion(testGuild, h, player.Outcome{Elapsed: time.Second})
	if s := store.Get(testGuild); s.Current != nil {
		t.Error("late completion after stop must be ignored")
	}

	ctrl.Stop("never-seen-guild")
	if got := len(adapter.stopped); got != 1 {
		t.Errorf("expected 1 stop call, got %d", got)
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	ctrl, store, _, res, _ := newTestController()
	res.add("http://a", "Track A")
	res.add("http://b", "Track B")

	if _, err := ctrl.PlayImmediate(context.Background(), "guild-1", urlInput("http://a")); err != nil {
		t.Fatal(err)
	}
	if _, err := ctrl.PlayImmediate(context.Background(), "guild-2", urlInput("http://b")); err != nil {
		t.Fatal(err)
	}

	ctrl.Stop("guild-1")

	if s := store.Get("guild-2"); s.Current == nil || s.Current.Descriptor.Title != "Track B" {
		t.Fatal("stopping one guild must not affect another")
	}
}

func TestSnapshotReflectsState(t *testing.T) {
	ctrl, _, _, res, _ := newTestController()
	res.add("http://a", "Track A")

	if snap := ctrl.Snapshot(testGuild); snap.NowPlaying != "" || len(snap.Entries) != 0 {
		t.Error("expected empty snapshot for unknown guild")
	}

	if _, err := ctrl.PlayImmediate(context.Background(), testGuild, urlInput("http://a")); err != nil {
		t.Fatal(err)
	}
	if _, err := ctrl.Enqueue(context.Background(), testGuild, resolver.Input{Kind: resolver.KindSearchQuery, Value: "lofi beats"}, "alice"); err != nil {
		t.Fatal(err)
	}

	snap := ctrl.Snapshot(testGuild)
	if snap.NowPlaying != "Track A" {
		t.Errorf("expected Track A playing, got %q", snap.NowPlaying)
	}
	if len(snap.Entries) != 1 || snap.Entries[0].Requester != "alice" {
		t.Fatalf("unexpected queue snapshot: %+v", snap.Entries)
	}
}
