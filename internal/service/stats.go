// Path: internal/service/stats.go
package service

import (
	"sort"

	"viral-scout/internal/domain"
)

// TermCount is the number of saved videos carrying a term.
type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// HistoryStats summarises the saved history.
type HistoryStats struct {
	Total              int                    `json:"total"`
	AverageViews       int64                  `json:"average_views"`
	AverageSubscribers int64                  `json:"average_subscribers"`
	TopTerms           []TermCount            `json:"top_terms"`
	TopScored          []domain.HistoryRecord `json:"top_scored"`
}

// SortByScore orders records by descending viral score, ties by ID.
func SortByScore(recs []domain.HistoryRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		si, sj := recs[i].Score(), recs[j].Score()
		if si != sj {
			return si > sj
		}
		return recs[i].ID < recs[j].ID
	})
}

// ComputeStats counts terms across the set of each record and keeps the
// topN terms and topN records by score.
func ComputeStats(recs []domain.HistoryRecord, topN int) HistoryStats {
	stats := HistoryStats{Total: len(recs), TopTerms: []TermCount{}, TopScored: []domain.HistoryRecord{}}
	if len(recs) == 0 {
		return stats
	}

	var views, subs int64
	counts := map[string]int{}
	for _, r := range recs {
		views += r.Views
		subs += r.Subscribers
		for _, term := range r.Terms {
			counts[term]++
		}
	}
	stats.AverageViews = views / int64(len(recs))
	stats.AverageSubscribers = subs / int64(len(recs))

	for term, n := range counts {
		stats.TopTerms = append(stats.TopTerms, TermCount{Term: term, Count: n})
	}
	sort.Slice(stats.TopTerms, func(i, j int) bool {
		if stats.TopTerms[i].Count != stats.TopTerms[j].Count {
			return stats.TopTerms[i].Count > stats.TopTerms[j].Count
		}
		return stats.TopTerms[i].Term < stats.TopTerms[j].Term
	})

	scored := make([]domain.HistoryRecord, len(recs))
	copy(scored, recs)
	SortByScore(scored)

	if topN > 0 {
		if len(stats.TopTerms) > topN {
			stats.TopTerms = stats.TopTerms[:topN]
		}
		if len(scored) > topN {
			scored = scored[:topN]
		}
	}
	stats.TopScored = scored
	return stats
}
