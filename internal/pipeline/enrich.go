// Path: internal/pipeline/enrich.go
package pipeline

import (
	"context"

	"viral-scout/internal/domain"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Enrich joins video and channel counters onto items, batchSize items at a
// time. Batches run one after another; within a batch the two lookups run
// concurrently. Items without statistics keep zero counters.
func (p *Pipeline) Enrich(ctx context.Context, items []domain.RawItem, onProgress ProgressFunc) ([]domain.EnrichedItem, error) {
	total := len(items)
	enriched := make([]domain.EnrichedItem, 0, total)

	for start := 0; start < total; start += p.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+p.batchSize, total)
		batch := items[start:end]

		videoIDs := make([]string, len(batch))
		channelIDs := make([]string, 0, len(batch))
		seenChannels := make(map[string]struct{}, len(batch))
		for i, item := range batch {
			videoIDs[i] = item.ID
			if item.ChannelID == "" {
				continue
			}
			if _, ok := seenChannels[item.ChannelID]; !ok {
				seenChannels[item.ChannelID] = struct{}{}
				channelIDs = append(channelIDs, item.ChannelID)
			}
		}

		var (
			itemStats  map[string]domain.ItemStats
			ownerStats map[string]domain.OwnerStats
		)
		g, gCtx := errgroup.WithContext(ctx)
		g.Go(func() error {
			itemStats = p.source.ItemStats(gCtx, videoIDs)
			return nil
		})
		g.Go(func() error {
			ownerStats = p.source.OwnerStats(gCtx, channelIDs)
			return nil
		})
		_ = g.Wait()

		for _, item := range batch {
			enriched = append(enriched, domain.EnrichedItem{
				RawItem:     item,
				Views:       int64(itemStats[item.ID].ViewCount),
				Subscribers: int64(ownerStats[item.ChannelID].SubscriberCount),
			})
		}

		p.logger.Debug("batch enriched",
			zap.Int("done", end),
			zap.Int("total", total),
			zap.Int("channels", len(channelIDs)),
		)
		if onProgress != nil {
			onProgress(end, total)
		}
	}

	return enriched, nil
}
