package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	youtube "github.com/kkdai/youtube/v2"
)

var (
	watchURLPattern = regexp.MustCompile(`"url":"/watch\?v=([a-zA-Z0-9_-]{11})`)

	errNoVideoMatch = errors.New("no video found for the given query")
)

// YouTubeProvider resolves YouTube URLs and free-text queries into direct
// audio stream URLs.
type YouTubeProvider struct {
	client     *youtube.Client
	httpClient *http.Client
	searchURL  string
}

func NewYouTubeProvider() *YouTubeProvider {
	return &YouTubeProvider{
		client: &youtube.Client{
			HTTPClient: &http.Client{Timeout: 15 * time.Second},
		},
		httpClient: &http.Client{Timeout: 10 * time.Second},
		searchURL:  "https://www.youtube.com/results",
	}
}

func (p *YouTubeProvider) Resolve(ctx context.Context, in Input) (StreamDescriptor, error) {
	videoURL := in.Value
	if in.Kind == KindSearchQuery {
		found, err := p.searchFirstVideoURL(ctx, in.Value)
		if err != nil {
			return StreamDescriptor{}, err
		}
		videoURL = found
	}

	videoID, err := extractVideoID(videoURL)
	if err != nil {
		return StreamDescriptor{}, err
	}

	video, err := p.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return StreamDescriptor{}, fmt.Errorf("failed to fetch video info: %w", err)
	}

	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return StreamDescriptor{}, fmt.Errorf("%w: no audio formats for %s", ErrNotFound, videoID)
	}
	formats.Sort()

	streamURL, err := p.client.GetStreamURLContext(ctx, video, &formats[0])
	if err != nil {
		return StreamDescriptor{}, fmt.Errorf("failed to get stream URL: %w", err)
	}

	return StreamDescriptor{
		SourceRef: "https://www.youtube.com/watch?v=" + videoID,
		StreamURL: streamURL,
		Title:     video.Title,
		Duration:  video.Duration,
	}, nil
}

// searchFirstVideoURL scrapes the results page and returns the first watch URL.
func (p *YouTubeProvider) searchFirstVideoURL(ctx context.Context, query string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		p.searchURL+"?search_query="+url.QueryEscape(query), nil)
	if err != nil {
		return "", err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("youtube search failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("youtube search returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", err
	}

	m := watchURLPattern.FindSubmatch(body)
	if m == nil {
		return "", fmt.Errorf("%w: %s", errNoVideoMatch, query)
	}
	return "https://www.youtube.com/watch?v=" + string(m[1]), nil
}

func isYouTubeURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	switch host {
	case "youtube.com", "m.youtube.com", "music.youtube.com", "youtu.be":
		return true
	}
	return false
}

func extractVideoID(rawURL string) (string, error) {
	switch {
	case strings.Contains(rawURL, "youtu.be/"):
		parts := strings.Split(rawURL, "youtu.be/")
		if len(parts) != 2 {
			return "", errors.New("invalid YouTube URL format")
		}
		return strings.SplitN(parts[1], "?", 2)[0], nil

	case strings.Contains(rawURL, "watch?v="):
		parts := strings.Split(rawURL, "v=")
		if len(parts) < 2 {
			return "", errors.New("invalid YouTube URL format")
		}
		return strings.SplitN(parts[len(parts)-1], "&", 2)[0], nil

	default:
		return "", fmt.Errorf("unsupported URL format: %s", rawURL)
	}
}
