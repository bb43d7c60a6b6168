package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"SeekBeat/core/apperr"
)

const (
	// apiMaxResults is the largest page the search endpoint serves.
	apiMaxResults = 50
	// apiMaxPages bounds pagination; the API stops paging near 500 results.
	apiMaxPages = 10
)

// Hit is one primary-provider result before durations are known.
type Hit struct {
	VideoID string
	Result  Result
}

// PrimaryProvider is the metered, key-gated search API.
type PrimaryProvider interface {
	// Configured reports whether a key exists for the given mode.
	Configured(bulk bool) bool
	Search(ctx context.Context, term string, limit int, bulk bool) ([]Hit, error)
	Duration(ctx context.Context, videoID string, bulk bool) (int, error)
}

// YouTubeAPI talks to the YouTube Data API v3. Errors it returns carry
// apperr kinds: QuotaExceeded, UnrecoverableProvider or TransientProvider.
type YouTubeAPI struct {
	baseURL string
	key     string
	bulkKey string
	http    *http.Client
}

// NewYouTubeAPI creates a client. bulkKey falls back to key when empty.
func NewYouTubeAPI(baseURL, key, bulkKey string, client *http.Client) *YouTubeAPI {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if bulkKey == "" {
		bulkKey = key
	}
	return &YouTubeAPI{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		bulkKey: bulkKey,
		http:    client,
	}
}

func (c *YouTubeAPI) keyFor(bulk bool) string {
	if bulk {
		return c.bulkKey
	}
	return c.key
}

func (c *YouTubeAPI) Configured(bulk bool) bool {
	return c.keyFor(bulk) != ""
}

type apiThumbnails map[string]Thumbnail

type apiSearchItem struct {
	ID struct {
		VideoID string `json:"videoId"`
	} `json:"id"`
	Snippet struct {
		Title        string        `json:"title"`
		ChannelTitle string        `json:"channelTitle"`
		PublishedAt  string        `json:"publishedAt"`
		Thumbnails   apiThumbnails `json:"thumbnails"`
	} `json:"snippet"`
}

type apiSearchResponse struct {
	NextPageToken string          `json:"nextPageToken"`
	Items         []apiSearchItem `json:"items"`
}

type apiVideosResponse struct {
	Items []struct {
		ID             string `json:"id"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

// Search asks for up to limit videos matching term, following page tokens
// until limit hits are collected or the API runs out of pages.
func (c *YouTubeAPI) Search(ctx context.Context, term string, limit int, bulk bool) ([]Hit, error) {
	key := c.keyFor(bulk)
	if key == "" {
		return nil, apperr.New(apperr.UnrecoverableProvider, "YouTube API key not configured")
	}
	if limit <= 0 {
		limit = 10
	}
	// 超出 API 可翻页的范围时交给 yt-dlp
	if limit > apiMaxResults*apiMaxPages {
		return nil, apperr.New(apperr.UnrecoverableProvider,
			fmt.Sprintf("requested %d results, the search API serves at most %d", limit, apiMaxResults*apiMaxPages))
	}

	hits := make([]Hit, 0, limit)
	pageToken := ""
	for page := 0; page < apiMaxPages && len(hits) < limit; page++ {
		val := url.Values{}
		val.Set("part", "snippet")
		val.Set("type", "video")
		val.Set("maxResults", strconv.Itoa(min(limit-len(hits), apiMaxResults)))
		val.Set("q", term)
		val.Set("key", key)
		if pageToken != "" {
			val.Set("pageToken", pageToken)
		}

		var body apiSearchResponse
		if err := c.get(ctx, "/search", val, &body); err != nil {
			return nil, err
		}
		for _, it := range body.Items {
			if it.ID.VideoID == "" || strings.TrimSpace(it.Snippet.Title) == "" {
				continue
			}
			hits = append(hits, Hit{VideoID: it.ID.VideoID, Result: fromAPIItem(it)})
		}
		if body.NextPageToken == "" {
			break
		}
		pageToken = body.NextPageToken
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Duration looks up one video's length in seconds.
func (c *YouTubeAPI) Duration(ctx context.Context, videoID string, bulk bool) (int, error) {
	val := url.Values{}
	val.Set("part", "contentDetails")
	val.Set("id", videoID)
	val.Set("key", c.keyFor(bulk))

	var body apiVideosResponse
	if err := c.get(ctx, "/videos", val, &body); err != nil {
		return 0, err
	}
	if len(body.Items) == 0 {
		return 0, apperr.New(apperr.NotFound, "video not found")
	}
	return parseISO8601Duration(body.Items[0].ContentDetails.Duration)
}

func (c *YouTubeAPI) get(ctx context.Context, path string, val url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+val.Encode(), nil)
	if err != nil {
		return apperr.Wrap(apperr.UnrecoverableProvider, "invalid YouTube API request", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return apperr.Wrap(apperr.TransientProvider, "YouTube API request timed out", err)
		}
		return apperr.Wrap(apperr.TransientProvider, "YouTube API unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Wrap(apperr.TransientProvider, "malformed YouTube API response", err)
	}
	return nil
}

// statusError classifies a non-200 response. Quota errors are hard failures,
// 5xx is worth retrying, anything else is not.
func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body apiErrorResponse
	_ = json.Unmarshal(raw, &body)

	reason := ""
	if len(body.Error.Errors) > 0 {
		reason = body.Error.Errors[0].Reason
	}
	cause := fmt.Errorf("youtube status %d: %s", resp.StatusCode, reason)

	switch {
	case resp.StatusCode == http.StatusForbidden && (reason == "quotaExceeded" || reason == "userRateLimitExceeded"):
		return apperr.Wrap(apperr.QuotaExceeded, "YouTube API quota exceeded", cause)
	case resp.StatusCode >= 500:
		return apperr.Wrap(apperr.TransientProvider, "YouTube API temporarily unavailable", cause)
	default:
		return apperr.Wrap(apperr.UnrecoverableProvider, fmt.Sprintf("YouTube API rejected the request (%d)", resp.StatusCode), cause)
	}
}

var isoDurationPattern = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// parseISO8601Duration handles the PnDTnHnMnS subset the API emits.
func parseISO8601Duration(s string) (int, error) {
	m := isoDurationPattern.FindStringSubmatch(s)
	if m == nil || s == "P" || s == "PT" {
		return 0, fmt.Errorf("invalid ISO 8601 duration %q", s)
	}
	units := [4]int{86400, 3600, 60, 1}
	total := 0
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0, err
		}
		total += n * unit
	}
	return total, nil
}
