// Path: internal/scraper/youtube.go
package scraper

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"viral-scout/internal/domain"

	"go.uber.org/zap"
)

const (
	searchEndpoint   = "search"
	videosEndpoint   = "videos"
	channelsEndpoint = "channels"
)

// Client maps the search API's three operations onto typed records.
type Client struct {
	fetcher *Fetcher
	apiKey  string
	logger  *zap.Logger
}

// NewClient wraps a Fetcher. apiKey is sent as the "key" parameter when set.
func NewClient(f *Fetcher, apiKey string, logger *zap.Logger) *Client {
	return &Client{fetcher: f, apiKey: apiKey, logger: logger}
}

type searchResponse struct {
	Items []searchItem `json:"items"`
}

type searchItem struct {
	ID struct {
		VideoID string `json:"videoId"`
	} `json:"id"`
	Snippet struct {
		ChannelID   string `json:"channelId"`
		Title       string `json:"title"`
		Description string `json:"description"`
		PublishedAt string `json:"publishedAt"`
		Thumbnails  struct {
			High struct {
				URL string `json:"url"`
			} `json:"high"`
		} `json:"thumbnails"`
	} `json:"snippet"`
}

type videosResponse struct {
	Items []struct {
		ID         string           `json:"id"`
		Statistics domain.ItemStats `json:"statistics"`
	} `json:"items"`
}

type channelsResponse struct {
	Items []struct {
		ID         string            `json:"id"`
		Statistics domain.OwnerStats `json:"statistics"`
	} `json:"items"`
}

// Search runs one keyword query. Hits without a video ID are dropped.
func (c *Client) Search(ctx context.Context, q domain.Query) []domain.RawItem {
	params := c.params()
	params.Set("part", "snippet")
	params.Set("q", q.Term)
	params.Set("type", "video")
	params.Set("order", "viewCount")
	params.Set("publishedAfter", q.PublishedAfter.UTC().Format(time.RFC3339))
	params.Set("maxResults", strconv.Itoa(q.MaxResults))
	if q.RegionCode != "" {
		params.Set("regionCode", q.RegionCode)
	}

	var resp searchResponse
	if !c.decode(ctx, searchEndpoint, params, &resp) {
		return nil
	}

	items := make([]domain.RawItem, 0, len(resp.Items))
	for _, it := range resp.Items {
		if it.ID.VideoID == "" {
			continue
		}
		published, _ := time.Parse(time.RFC3339, it.Snippet.PublishedAt)
		title := it.Snippet.Title
		if title == "" {
			title = "N/A"
		}
		items = append(items, domain.RawItem{
			ID:           it.ID.VideoID,
			ChannelID:    it.Snippet.ChannelID,
			Term:         q.Term,
			Title:        title,
			Description:  it.Snippet.Description,
			ThumbnailURL: it.Snippet.Thumbnails.High.URL,
			PublishedAt:  published,
		})
	}
	return items
}

// ItemStats looks up video counters for ids in a single call.
func (c *Client) ItemStats(ctx context.Context, ids []string) map[string]domain.ItemStats {
	stats := make(map[string]domain.ItemStats, len(ids))
	if len(ids) == 0 {
		return stats
	}
	params := c.params()
	params.Set("part", "statistics,contentDetails")
	params.Set("id", strings.Join(ids, ","))

	var resp videosResponse
	if !c.decode(ctx, videosEndpoint, params, &resp) {
		return stats
	}
	for _, it := range resp.Items {
		if it.ID != "" {
			stats[it.ID] = it.Statistics
		}
	}
	return stats
}

// OwnerStats looks up channel counters for ids in a single call.
func (c *Client) OwnerStats(ctx context.Context, ids []string) map[string]domain.OwnerStats {
	stats := make(map[string]domain.OwnerStats, len(ids))
	if len(ids) == 0 {
		return stats
	}
	params := c.params()
	params.Set("part", "statistics")
	params.Set("id", strings.Join(ids, ","))

	var resp channelsResponse
	if !c.decode(ctx, channelsEndpoint, params, &resp) {
		return stats
	}
	for _, it := range resp.Items {
		if it.ID != "" {
			stats[it.ID] = it.Statistics
		}
	}
	return stats
}

func (c *Client) params() url.Values {
	params := url.Values{}
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}
	return params
}

// decode fetches endpoint into v. A body that does not match the expected
// shape is logged and treated like an empty result.
func (c *Client) decode(ctx context.Context, endpoint string, params url.Values, v any) bool {
	body := c.fetcher.Fetch(ctx, endpoint, params)
	if err := json.Unmarshal(body, v); err != nil {
		c.logger.Warn("unexpected response shape",
			zap.String("endpoint", endpoint),
			zap.Error(err),
		)
		return false
	}
	return true
}
