// Path: internal/export/csv.go
// Package export writes history records and run results as CSV.
package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"viral-scout/internal/domain"
)

// WatchURLPrefix is prepended to a video ID to build its watch link.
const WatchURLPrefix = "https://www.youtube.com/watch?v="

var (
	historyHeader = []string{
		"video_id", "query_terms", "title", "description", "thumbnail",
		"views", "subscribers", "viral_score", "published_at", "last_seen", "url",
	}
	resultsHeader = []string{
		"video_id", "keyword", "channel_id", "title", "description", "thumbnail",
		"views", "subscribers", "viral_score", "published_at", "url",
	}
)

// WriteHistory writes recs in the order given, one row per record.
func WriteHistory(w io.Writer, recs []domain.HistoryRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(historyHeader); err != nil {
		return err
	}
	for _, r := range recs {
		row := []string{
			r.ID,
			r.Terms.String(),
			r.Title,
			r.Description,
			r.ThumbnailURL,
			strconv.FormatInt(r.Views, 10),
			strconv.FormatInt(r.Subscribers, 10),
			formatScore(r.Score()),
			formatTime(r.PublishedAt),
			r.LastSeen,
			WatchURLPrefix + r.ID,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteResults writes the accepted items of a run.
func WriteResults(w io.Writer, items []domain.ScoredItem) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(resultsHeader); err != nil {
		return err
	}
	for _, it := range items {
		row := []string{
			it.ID,
			it.Term,
			it.ChannelID,
			it.Title,
			it.Description,
			it.ThumbnailURL,
			strconv.FormatInt(it.Views, 10),
			strconv.FormatInt(it.Subscribers, 10),
			formatScore(it.Score),
			formatTime(it.PublishedAt),
			WatchURLPrefix + it.ID,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatScore(s float64) string {
	return strconv.FormatFloat(s, 'f', 2, 64)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
