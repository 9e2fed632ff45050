// Path: internal/pipeline/score.go
package pipeline

import (
	"sort"

	"viral-scout/internal/domain"
)

// ScoreAndFilter keeps items with at least minViews views and at most
// maxSubscribers subscribers, scored and sorted by descending score.
// Equal scores keep their input order.
func ScoreAndFilter(items []domain.EnrichedItem, minViews, maxSubscribers int64) []domain.ScoredItem {
	scored := make([]domain.ScoredItem, 0, len(items))
	for _, item := range items {
		if item.Views < minViews || item.Subscribers > maxSubscribers {
			continue
		}
		scored = append(scored, domain.ScoredItem{
			EnrichedItem: item,
			Score:        domain.ViralScore(item.Views, item.Subscribers),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}
