// Path: internal/pipeline/pipeline.go
// Package pipeline implements the search, dedupe, enrich and score stages
// of a run. Upstream failures never surface here: a failed lookup simply
// contributes no data.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"viral-scout/internal/config"
	"viral-scout/internal/domain"

	"go.uber.org/zap"
)

// DefaultConcurrency bounds in-flight search requests.
const DefaultConcurrency = 20

// ErrInvalidRequest is returned for caller input errors, before any network activity.
var ErrInvalidRequest = errors.New("invalid request")

// Source is the search API as seen by the pipeline.
type Source interface {
	Search(ctx context.Context, q domain.Query) []domain.RawItem
	ItemStats(ctx context.Context, ids []string) map[string]domain.ItemStats
	OwnerStats(ctx context.Context, ids []string) map[string]domain.OwnerStats
}

// ProgressFunc is called once per enrichment batch with the number of
// unique items processed so far and the total.
type ProgressFunc func(done, total int)

// Request describes one run.
type Request struct {
	Terms          []string
	Days           int
	MaxResults     int
	RegionCode     string
	MinViews       int64
	MaxSubscribers int64
}

// Result is the output of a run.
type Result struct {
	Queries  []domain.Query
	Searched int // hits across all queries, duplicates included
	Unique   int
	Items    []domain.ScoredItem
}

// Pipeline runs requests against a Source.
type Pipeline struct {
	source      Source
	batchSize   int
	concurrency int
	logger      *zap.Logger
	now         func() time.Time
}

// New creates a Pipeline. batchSize must be within 1..config.MaxIDsPerCall.
func New(source Source, batchSize, concurrency int, logger *zap.Logger) (*Pipeline, error) {
	if batchSize <= 0 || batchSize > config.MaxIDsPerCall {
		return nil, fmt.Errorf("%w: batch size %d outside 1..%d", ErrInvalidRequest, batchSize, config.MaxIDsPerCall)
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Pipeline{
		source:      source,
		batchSize:   batchSize,
		concurrency: concurrency,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// Queries validates req and builds one Query per term.
func (p *Pipeline) Queries(req Request) ([]domain.Query, error) {
	if len(req.Terms) == 0 {
		return nil, fmt.Errorf("%w: no search terms", ErrInvalidRequest)
	}
	if req.Days <= 0 {
		return nil, fmt.Errorf("%w: days must be positive, got %d", ErrInvalidRequest, req.Days)
	}
	if req.MaxResults <= 0 || req.MaxResults > config.MaxIDsPerCall {
		return nil, fmt.Errorf("%w: max results %d outside 1..%d", ErrInvalidRequest, req.MaxResults, config.MaxIDsPerCall)
	}
	if req.MinViews < 0 || req.MaxSubscribers < 0 {
		return nil, fmt.Errorf("%w: thresholds must not be negative", ErrInvalidRequest)
	}

	publishedAfter := p.now().UTC().AddDate(0, 0, -req.Days)
	queries := make([]domain.Query, 0, len(req.Terms))
	for _, term := range req.Terms {
		term = strings.TrimSpace(term)
		if term == "" {
			return nil, fmt.Errorf("%w: blank search term", ErrInvalidRequest)
		}
		if strings.Contains(term, domain.TermDelimiter) {
			return nil, fmt.Errorf("%w: term %q contains %q", ErrInvalidRequest, term, domain.TermDelimiter)
		}
		queries = append(queries, domain.Query{
			Term:           term,
			PublishedAfter: publishedAfter,
			MaxResults:     req.MaxResults,
			RegionCode:     req.RegionCode,
		})
	}
	return queries, nil
}

// Run executes search, dedupe, enrichment and scoring for req.
func (p *Pipeline) Run(ctx context.Context, req Request, onProgress ProgressFunc) (*Result, error) {
	queries, err := p.Queries(req)
	if err != nil {
		return nil, err
	}

	perQuery := p.SearchAll(ctx, queries)
	searched := 0
	for _, r := range perQuery {
		searched += len(r.Items)
	}

	unique := Dedupe(perQuery)
	p.logger.Info("search finished",
		zap.Int("queries", len(queries)),
		zap.Int("hits", searched),
		zap.Int("unique", unique.Len()),
	)

	enriched, err := p.Enrich(ctx, unique.Items(), onProgress)
	if err != nil {
		return nil, err
	}

	scored := ScoreAndFilter(enriched, req.MinViews, req.MaxSubscribers)
	p.logger.Info("run finished",
		zap.Int("unique", unique.Len()),
		zap.Int("accepted", len(scored)),
	)

	return &Result{
		Queries:  queries,
		Searched: searched,
		Unique:   unique.Len(),
		Items:    scored,
	}, nil
}
