package videosearch

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/nwalsh/weathervault/internal/httputil"
	"github.com/nwalsh/weathervault/internal/metrics"
	"github.com/nwalsh/weathervault/internal/models"
)

const defaultBaseURL = "https://www.googleapis.com/youtube/v3/search"

// DefaultMaxResults is used when the caller passes maxResults <= 0.
const DefaultMaxResults = 5

// Client searches YouTube for videos related to a location. The whole
// adapter fails open: enrichment is best-effort and a failure here must
// never block record creation, so errors degrade to an empty result.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func New(apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client:  httputil.NewClient(timeout),
		logger:  logger,
	}
}

type searchResponse struct {
	Items []searchItem `json:"items"`
}

type searchItem struct {
	ID *struct {
		VideoID *string `json:"videoId"`
	} `json:"id"`
	Snippet *struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Thumbnails  *struct {
			Default *struct {
				URL *string `json:"url"`
			} `json:"default"`
		} `json:"thumbnails"`
	} `json:"snippet"`
}

// Search returns up to maxResults videos in provider relevance order.
// Transport or status errors are logged and produce an empty slice.
// Items missing a required field are skipped individually.
func (c *Client) Search(ctx context.Context, query string, maxResults int) []models.Video {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("key", c.apiKey)
	params.Set("maxResults", strconv.Itoa(maxResults))
	params.Set("order", "relevance")

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		c.logger.Error("video search: create request", "error", err)
		return nil
	}

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.VideoAPICallsTotal.WithLabelValues("transport_error").Inc()
		c.logger.Error("video search failed", "query", query, "error", err)
		return nil
	}
	defer resp.Body.Close()

	metrics.VideoAPICallsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("video search failed", "query", query, "status", resp.StatusCode)
		return nil
	}

	var data searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		c.logger.Error("video search: decode response", "query", query, "error", err)
		return nil
	}

	return c.parseItems(data.Items, maxResults)
}

func (c *Client) parseItems(items []searchItem, maxResults int) []models.Video {
	var videos []models.Video
	for _, item := range items {
		v, ok := parseItem(item)
		if !ok {
			metrics.VideoItemsDropped.Inc()
			c.logger.Warn("video search: skipping malformed item")
			continue
		}
		videos = append(videos, v)
		if len(videos) == maxResults {
			break
		}
	}
	return videos
}

func parseItem(item searchItem) (models.Video, bool) {
	if item.ID == nil || item.ID.VideoID == nil {
		return models.Video{}, false
	}
	if item.Snippet == nil || item.Snippet.Title == nil || item.Snippet.Description == nil {
		return models.Video{}, false
	}
	if item.Snippet.Thumbnails == nil || item.Snippet.Thumbnails.Default == nil || item.Snippet.Thumbnails.Default.URL == nil {
		return models.Video{}, false
	}
	return models.Video{
		VideoID:      *item.ID.VideoID,
		Title:        *item.Snippet.Title,
		Description:  *item.Snippet.Description,
		ThumbnailURL: *item.Snippet.Thumbnails.Default.URL,
	}, true
}
