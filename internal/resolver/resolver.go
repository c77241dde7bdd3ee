// Package resolver turns user input (station names, URLs, search queries,
// tag lists) into playable stream descriptors.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/v3se/streambot/internal/config"
)

var (
	ErrNotFound  = errors.New("no playable stream found")
	ErrNoStation = errors.New("unknown station")
)

// InputKind tells the resolver how to interpret an input. The kind is decided
// once at the command boundary, never re-guessed downstream.
type InputKind int

const (
	KindDirectURL InputKind = iota
	KindSearchQuery
	KindTagSet
	KindStationName
)

// Input is a classified playback request.
type Input struct {
	Kind  InputKind
	Value string   // URL, query text or station name
	Tags  []string // set for KindTagSet only
}

// Display returns a short human-readable form for queue listings.
func (in Input) Display() string {
	switch in.Kind {
	case KindSearchQuery:
		return "Search: " + in.Value
	case KindTagSet:
		return "Tags: " + strings.Join(in.Tags, ", ")
	default:
		return in.Value
	}
}

// StreamDescriptor is the result of resolution. Immutable once produced.
type StreamDescriptor struct {
	SourceRef string // canonical locator, stable across retries
	StreamURL string // direct playable URL
	Title     string
	Duration  time.Duration // zero for live streams
}

// Resolver dispatches inputs to the matching provider.
type Resolver struct {
	stations []config.Station
	youtube  *YouTubeProvider
	browser  *RadioBrowserClient
	probe    *StreamProbe
	log      zerolog.Logger
}

func New(stations []config.Station, log zerolog.Logger) *Resolver {
	return &Resolver{
		stations: stations,
		youtube:  NewYouTubeProvider(),
		browser:  NewRadioBrowserClient(log),
		probe:    NewStreamProbe(),
		log:      log.With().Str("component", "resolver").Logger(),
	}
}

// Stations returns the configured station list.
func (r *Resolver) Stations() []config.Station {
	return r.stations
}

// Resolve maps an input to a stream descriptor. ErrNotFound and ErrNoStation
// are returned for empty results; provider failures are wrapped.
func (r *Resolver) Resolve(ctx context.Context, in Input) (StreamDescriptor, error) {
	switch in.Kind {
	case KindStationName:
		return r.resolveStation(in.Value)
	case KindTagSet:
		return r.browser.SearchByTags(ctx, in.Tags)
	case KindSearchQuery:
		return r.youtube.Resolve(ctx, in)
	case KindDirectURL:
		if isYouTubeURL(in.Value) {
			return r.youtube.Resolve(ctx, in)
		}
		// Anything else is treated as a raw stream link and validated by
		// header inspection before playback.
		if err := r.probe.Check(ctx, in.Value); err != nil {
			return StreamDescriptor{}, fmt.Errorf("invalid stream URL: %w", err)
		}
		return StreamDescriptor{SourceRef: in.Value, StreamURL: in.Value, Title: in.Value}, nil
	default:
		return StreamDescriptor{}, fmt.Errorf("unsupported input kind %d", in.Kind)
	}
}

func (r *Resolver) resolveStation(name string) (StreamDescriptor, error) {
	for _, st := range r.stations {
		if strings.EqualFold(st.Name, name) {
			return StreamDescriptor{
				SourceRef: st.StreamURL,
				StreamURL: st.StreamURL,
				Title:     st.Name,
			}, nil
		}
	}
	return StreamDescriptor{}, fmt.Errorf("%w: %s", ErrNoStation, name)
}

// Classify decides the input kind for free-form play input: a configured
// station name wins, then a URL, everything else is a search query.
func (r *Resolver) Classify(text string) Input {
	for _, st := range r.stations {
		if strings.EqualFold(st.Name, text) {
			return Input{Kind: KindStationName, Value: st.Name}
		}
	}
	if IsURL(text) {
		return Input{Kind: KindDirectURL, Value: text}
	}
	return Input{Kind: KindSearchQuery, Value: text}
}

// IsURL reports whether text parses as an absolute http(s) URL.
func IsURL(text string) bool {
	u, err := url.Parse(text)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// SplitTags splits tag input by comma when present, otherwise by whitespace.
func SplitTags(text string) []string {
	var parts []string
	if strings.Contains(text, ",") {
		parts = strings.Split(text, ",")
	} else {
		parts = strings.Fields(text)
	}
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
