// YouTube Data API [Searcher] implementation
//
// Calls the v3 search endpoint with an API key. Rate limited responses are retried with backoff.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tuneflow/internal/models"
	"github.com/desertthunder/tuneflow/internal/retry"
	"github.com/desertthunder/tuneflow/internal/shared"
)

const defaultYTBaseURL string = "https://www.googleapis.com/youtube/v3"

// Error reasons the Data API uses for throttling on a 403 response.
var rateLimitReasons = map[string]bool{
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
}

// YouTubeThumbnail is a single thumbnail rendition.
type YouTubeThumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// YouTubeSnippet is the snippet part of a search result.
type YouTubeSnippet struct {
	Title        string                      `json:"title"`
	Description  string                      `json:"description"`
	ChannelTitle string                      `json:"channelTitle"`
	Thumbnails   map[string]YouTubeThumbnail `json:"thumbnails"`
}

// YouTubeSearchItem is one element of a search response.
type YouTubeSearchItem struct {
	ID struct {
		Kind    string `json:"kind"`
		VideoID string `json:"videoId"`
	} `json:"id"`
	Snippet *YouTubeSnippet `json:"snippet"`
}

// YouTubeSearchResponse is the body of GET /search.
type YouTubeSearchResponse struct {
	Items []YouTubeSearchItem `json:"items"`
}

type youtubeErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

// YouTubeOpts configures a [YouTubeService].
type YouTubeOpts struct {
	APIKey     string
	BaseURL    string
	MaxResults int
	HTTPClient *http.Client
	Retry      retry.Policy
	Logger     *log.Logger
}

// YouTubeService implements the Searcher interface for the YouTube Data API.
type YouTubeService struct {
	apiKey     string
	baseURL    string
	maxResults int
	httpClient *http.Client
	retry      retry.Policy
	logger     *log.Logger
}

// NewYouTubeService creates a new YouTube search service instance.
func NewYouTubeService(opts YouTubeOpts) *YouTubeService {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultYTBaseURL
	}
	if opts.MaxResults <= 0 || opts.MaxResults > shared.MaxSearchResults {
		opts.MaxResults = shared.MaxSearchResults
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Retry.Logger == nil {
		opts.Retry.Logger = opts.Logger
	}

	return &YouTubeService{
		apiKey:     opts.APIKey,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		maxResults: opts.MaxResults,
		httpClient: opts.HTTPClient,
		retry:      opts.Retry,
		logger:     opts.Logger,
	}
}

// Name returns the service name.
func (y *YouTubeService) Name() string {
	return "YouTube"
}

// Search resolves query to at most MaxResults tracks, preserving upstream order.
//
// Calls GET /search?part=snippet&type=video on the Data API.
func (y *YouTubeService) Search(ctx context.Context, query string) ([]models.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query must be a non-empty string", shared.ErrInvalidInput)
	}

	y.logger.Info("processing search request", "query", query)

	resp, err := retry.Do(ctx, y.retry, func(ctx context.Context) (*YouTubeSearchResponse, error) {
		return y.doSearch(ctx, query)
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("%w: the search query returned no results", shared.ErrNoResults)
	}

	tracks := make([]models.Track, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.ID.VideoID == "" || item.Snippet == nil {
			continue
		}
		if len(tracks) == y.maxResults {
			break
		}
		tracks = append(tracks, models.NewTrack(
			item.ID.VideoID,
			item.Snippet.Title,
			item.Snippet.ChannelTitle,
			pickThumbnail(item.Snippet.Thumbnails),
			item.Snippet.Description,
		))
	}

	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: no results matched the required format", shared.ErrNoValidResults)
	}

	y.logger.Info("search complete", "query", query, "results", len(tracks))
	return tracks, nil
}

func (y *YouTubeService) searchURL(query string) string {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("maxResults", strconv.Itoa(y.maxResults))
	params.Set("q", query)
	params.Set("type", "video")
	params.Set("key", y.apiKey)
	return y.baseURL + "/search?" + params.Encode()
}

func (y *YouTubeService) doSearch(ctx context.Context, query string) (*YouTubeSearchResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.searchURL(query), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", shared.ErrAPIRequest, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyStatus(resp.StatusCode, body)
	}

	var result YouTubeSearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
	}

	return &result, nil
}

// classifyStatus converts a non-2xx response into an error, marking throttling with [shared.ErrRateLimited].
func classifyStatus(status int, body []byte) error {
	var errResp youtubeErrorResponse
	_ = json.Unmarshal(body, &errResp)

	detail := errResp.Error.Message
	if detail == "" {
		detail = http.StatusText(status)
	}

	if status == http.StatusTooManyRequests {
		return fmt.Errorf("%w: API request failed with status %d: %s", shared.ErrRateLimited, status, detail)
	}
	if status == http.StatusForbidden {
		for _, e := range errResp.Error.Errors {
			if rateLimitReasons[e.Reason] {
				return fmt.Errorf("%w: API request failed with status %d (%s): %s", shared.ErrRateLimited, status, e.Reason, detail)
			}
		}
	}

	return fmt.Errorf("%w: API request failed with status %d: %s", shared.ErrAPIRequest, status, detail)
}

// pickThumbnail prefers the medium rendition, falling back to default.
func pickThumbnail(thumbs map[string]YouTubeThumbnail) string {
	for _, key := range []string{"medium", "default"} {
		if t, ok := thumbs[key]; ok && t.URL != "" {
			return t.URL
		}
	}
	return ""
}
