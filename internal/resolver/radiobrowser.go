package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/v3se/streambot/pkg/retrylimit"
)

const defaultRadioBrowserURL = "https://de1.api.radio-browser.info"

// radioBrowserStation is the subset of the Radio Browser station record the
// bot cares about.
type radioBrowserStation struct {
	Name        string `json:"name"`
	URLResolved string `json:"url_resolved"`
}

type httpStatusError struct {
	code int
}

func (e *httpStatusError) Error() string   { return fmt.Sprintf("radio browser returned status %d", e.code) }
func (e *httpStatusError) StatusCode() int { return e.code }

// RadioBrowserClient queries the community Radio Browser API for stations
// matching a tag list. Calls are rate limited and retried.
type RadioBrowserClient struct {
	baseURL string
	client  *http.Client
	limiter *retrylimit.AdaptiveLimiter
	pick    func(n int) int
	log     zerolog.Logger
}

func NewRadioBrowserClient(log zerolog.Logger) *RadioBrowserClient {
	return &RadioBrowserClient{
		baseURL: defaultRadioBrowserURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: retrylimit.NewAdaptiveLimiter(2, 1, 10, 1, 0.5),
		pick:    rand.Intn,
		log:     log.With().Str("component", "radiobrowser").Logger(),
	}
}

// SearchByTags returns one uniformly random station among the candidates
// that carry a non-empty resolved stream URL. Candidates without a usable
// URL never take part in the selection.
func (c *RadioBrowserClient) SearchByTags(ctx context.Context, tags []string) (StreamDescriptor, error) {
	if len(tags) == 0 {
		return StreamDescriptor{}, fmt.Errorf("%w: no tags given", ErrNotFound)
	}

	query := url.Values{}
	query.Set("tagList", strings.Join(tags, ","))
	query.Set("hidebroken", "true")
	endpoint := c.baseURL + "/json/stations/search?" + query.Encode()

	var stations []radioBrowserStation
	err := retrylimit.WithRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return &retrylimit.FatalError{Err: err}
		}
		req.Header.Set("User-Agent", "streambot/1.0")

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return &httpStatusError{code: resp.StatusCode}
		}

		stations = stations[:0]
		if err := json.NewDecoder(resp.Body).Decode(&stations); err != nil {
			return fmt.Errorf("failed to decode station list: %w", err)
		}
		return nil
	}, c.limiter, retrylimit.DefaultConfig())
	if err != nil {
		return StreamDescriptor{}, fmt.Errorf("radio browser search failed: %w", err)
	}

	valid := stations[:0]
	for _, st := range stations {
		if st.URLResolved != "" {
			valid = append(valid, st)
		}
	}

	if len(valid) == 0 {
		return StreamDescriptor{}, fmt.Errorf("%w: tags %s", ErrNotFound, strings.Join(tags, ","))
	}

	chosen := valid[c.pick(len(valid))]
	c.log.Info().Str("station", chosen.Name).Str("url", chosen.URLResolved).
		Int("candidates", len(valid)).Msg("selected station")

	return StreamDescriptor{
		SourceRef: chosen.URLResolved,
		StreamURL: chosen.URLResolved,
		Title:     chosen.Name,
	}, nil
}
