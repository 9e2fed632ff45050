// Path: internal/domain/models.go
package domain

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// LastSeenLayout is the date format stored in HistoryRecord.LastSeen.
const LastSeenLayout = "2006-01-02"

// DescriptionLimit is the maximum stored description length, ellipsis included.
const DescriptionLimit = 200

// --- Custom Type for the statistics counters ---

// FlexibleCount is a non-negative counter that can be unmarshaled from
// a JSON number (123) or a JSON string ("123"). The statistics endpoints
// return counters as strings; anything unparsable decodes to 0.
type FlexibleCount int64

// UnmarshalJSON implements the json.Unmarshaler interface for FlexibleCount.
func (fc *FlexibleCount) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*fc = clampCount(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*fc = 0
		return nil
	}

	parsed, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		*fc = 0
		return nil
	}
	*fc = clampCount(parsed)
	return nil
}

func clampCount(n int64) FlexibleCount {
	if n < 0 {
		return 0
	}
	return FlexibleCount(n)
}

// RunState represents the lifecycle state of a pipeline run.
type RunState string

const (
	// RunStateRunning indicates a run is currently fetching or enriching.
	RunStateRunning RunState = "RUNNING"
	// RunStateCompleted indicates the run finished and produced a result list.
	RunStateCompleted RunState = "COMPLETED"
	// RunStateFailed indicates the run was rejected or could not be persisted.
	RunStateFailed RunState = "FAILED"
)

// Query is one search term plus its recency floor and results cap.
type Query struct {
	Term           string
	PublishedAfter time.Time
	MaxResults     int
	// RegionCode is attached to the search request verbatim when non-empty.
	RegionCode string
}

// RawItem is a single search hit. Term is the query that first produced it.
type RawItem struct {
	ID           string    `json:"id"`
	ChannelID    string    `json:"channel_id"`
	Term         string    `json:"term"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ThumbnailURL string    `json:"thumbnail_url"`
	PublishedAt  time.Time `json:"published_at"`
}

// ItemStats holds the video-level counters returned by the statistics lookup.
type ItemStats struct {
	ViewCount FlexibleCount `json:"viewCount"`
}

// OwnerStats holds the channel-level counters returned by the statistics lookup.
type OwnerStats struct {
	SubscriberCount FlexibleCount `json:"subscriberCount"`
}

// EnrichedItem is a RawItem joined with its video and channel counters.
type EnrichedItem struct {
	RawItem
	Views       int64 `json:"views"`
	Subscribers int64 `json:"subscribers"`
}

// ScoredItem is an EnrichedItem that passed filtering, with its viral score.
type ScoredItem struct {
	EnrichedItem
	Score float64 `json:"score"`
}

// ViralScore is views / (subscribers + 1).
func ViralScore(views, subscribers int64) float64 {
	return float64(views) / (float64(subscribers) + 1)
}

// HistoryRecord is the persisted form of a ScoredItem, keyed by video ID.
// It includes struct tags for JSON serialization and BSON mapping for MongoDB.
type HistoryRecord struct {
	ID           string    `json:"id" bson:"_id"`
	Terms        TermSet   `json:"query_terms" bson:"terms"`
	Title        string    `json:"title" bson:"title"`
	Description  string    `json:"description" bson:"description"`
	ThumbnailURL string    `json:"thumbnail_url" bson:"thumbnailUrl"`
	Views        int64     `json:"views" bson:"views"`
	Subscribers  int64     `json:"subscribers" bson:"subscribers"`
	PublishedAt  time.Time `json:"published_at" bson:"publishedAt"`
	LastSeen     string    `json:"last_seen" bson:"lastSeen"`
}

// Score returns the viral score of the stored counters.
func (r HistoryRecord) Score() float64 {
	return ViralScore(r.Views, r.Subscribers)
}

// NewHistoryRecord converts a scored item into its durable form, stamped
// with the UTC date of now.
func NewHistoryRecord(item ScoredItem, now time.Time) HistoryRecord {
	return HistoryRecord{
		ID:           item.ID,
		Terms:        TermSet{}.Add(item.Term),
		Title:        item.Title,
		Description:  ShortText(item.Description, DescriptionLimit),
		ThumbnailURL: item.ThumbnailURL,
		Views:        item.Views,
		Subscribers:  item.Subscribers,
		PublishedAt:  item.PublishedAt,
		LastSeen:     now.UTC().Format(LastSeenLayout),
	}
}

// ShortText truncates s to limit characters, replacing the tail with "..."
// when it is too long.
func ShortText(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}

// RunSummary records the outcome of the most recent pipeline run.
// This allows the daemon to report its state across restarts.
type RunSummary struct {
	ID         string    `json:"id" bson:"_id"`
	State      RunState  `json:"state" bson:"state"`
	Terms      []string  `json:"terms" bson:"terms"`
	StartedAt  time.Time `json:"started_at" bson:"startedAt"`
	FinishedAt time.Time `json:"finished_at,omitempty" bson:"finishedAt,omitempty"`
	Searched   int       `json:"searched" bson:"searched"`
	Unique     int       `json:"unique" bson:"unique"`
	Accepted   int       `json:"accepted" bson:"accepted"`
	Saved      int       `json:"saved" bson:"saved"`
	Error      string    `json:"error,omitempty" bson:"error,omitempty"`
}
