// Path: internal/pipeline/fanout.go
package pipeline

import (
	"context"

	"viral-scout/internal/domain"

	"golang.org/x/sync/errgroup"
)

// PerQueryResult holds the hits of one query.
type PerQueryResult struct {
	Term  string
	Items []domain.RawItem
}

// SearchAll runs every query concurrently, at most p.concurrency at a time.
// result[i] always belongs to queries[i]; a failed query has no items.
func (p *Pipeline) SearchAll(ctx context.Context, queries []domain.Query) []PerQueryResult {
	results := make([]PerQueryResult, len(queries))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i, q := range queries {
		g.Go(func() error {
			results[i] = PerQueryResult{
				Term:  q.Term,
				Items: p.source.Search(gCtx, q),
			}
			return nil
		})
	}

	// Search never fails; Wait only joins.
	_ = g.Wait()
	return results
}
