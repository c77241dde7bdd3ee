package resolver

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"
)

var allowedContentTypes = []string{
	"audio/",
	"video/",
	"application/vnd.apple.mpegurl",
	"application/x-mpegurl",
	"application/ogg",
	"application/x-scpls",
	"application/xspf+xml",
	"application/octet-stream", // risky but often used for streams
}

var playlistExtensions = []string{".m3u", ".m3u8", ".pls", ".xspf"}

// StreamProbe validates direct stream links by checking response headers.
type StreamProbe struct {
	client *http.Client
}

func NewStreamProbe() *StreamProbe {
	return &StreamProbe{
		client: &http.Client{
			Timeout: 5 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
	}
}

// Check verifies that rawURL looks like a playable audio stream. It issues a
// GET (many icecast servers reject HEAD) and inspects the content type.
func (p *StreamProbe) Check(ctx context.Context, rawURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("invalid stream URL: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch stream headers: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("stream returned status %d", resp.StatusCode)
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if isAllowedType(contentType) || isLikelyPlaylist(resp.Request.URL.Path) {
		return nil
	}
	return fmt.Errorf("unsupported content type %q", contentType)
}

func isAllowedType(contentType string) bool {
	for _, t := range allowedContentTypes {
		if strings.HasPrefix(contentType, t) {
			return true
		}
	}
	return false
}

func isLikelyPlaylist(urlPath string) bool {
	ext := strings.ToLower(path.Ext(urlPath))
	for _, e := range playlistExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
