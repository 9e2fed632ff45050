// Path: internal/service/service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"viral-scout/internal/config"
	"viral-scout/internal/domain"
	"viral-scout/internal/events"
	"viral-scout/internal/pipeline"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// Event topics
	EventRunStarted   = "run:started"
	EventRunProgress  = "run:progress"
	EventRunCompleted = "run:completed"
)

// ErrRunInProgress is returned when a run is requested while another is active.
var ErrRunInProgress = errors.New("a run is already in progress")

// SourceFactory opens a search session for one run. The returned func
// releases it and is called when the run ends.
type SourceFactory func() (pipeline.Source, func())

// Progress is the payload of EventRunProgress.
type Progress struct {
	RunID string `json:"run_id"`
	Done  int    `json:"done"`
	Total int    `json:"total"`
}

// RunRequest is a pipeline request plus whether accepted items are saved.
type RunRequest struct {
	pipeline.Request
	Save bool
}

// RunReport is what a finished run hands back to its caller.
type RunReport struct {
	Summary domain.RunSummary   `json:"summary"`
	Items   []domain.ScoredItem `json:"items"`
}

// Service is the central orchestrator of runs and history.
type Service struct {
	cfg        *config.Config
	openSource SourceFactory
	history    HistoryStorage
	runs       RunStorage
	broker     *events.Broker
	logger     *zap.Logger
	runMu      sync.Mutex
	stopChan   chan struct{} // Used for graceful shutdown
	stopOnce   sync.Once
	now        func() time.Time
}

// NewService creates a new core application service.
func NewService(
	cfg *config.Config,
	openSource SourceFactory,
	history HistoryStorage,
	runs RunStorage,
	broker *events.Broker,
	logger *zap.Logger,
) *Service {
	return &Service{
		cfg:        cfg,
		openSource: openSource,
		history:    history,
		runs:       runs,
		broker:     broker,
		logger:     logger,
		stopChan:   make(chan struct{}),
		now:        time.Now,
	}
}

// DefaultRequest builds a request from the configured search settings.
func (s *Service) DefaultRequest() pipeline.Request {
	sc := s.cfg.Search
	return pipeline.Request{
		Terms:          sc.Keywords,
		Days:           sc.Days,
		MaxResults:     sc.MaxResults,
		RegionCode:     sc.RegionCode,
		MinViews:       sc.MinViews,
		MaxSubscribers: sc.MaxSubscribers,
	}
}

// Run executes one search-enrich-score pass. Invalid requests are rejected
// before any request is sent. Only one run executes at a time.
func (s *Service) Run(ctx context.Context, req RunRequest) (*RunReport, error) {
	if !s.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.runMu.Unlock()

	source, release := s.openSource()
	defer release()

	runID := uuid.NewString()
	logger := s.logger.With(zap.String("run_id", runID))

	p, err := pipeline.New(source, s.cfg.Search.BatchSize, s.cfg.Fetcher.MaxConnections, logger)
	if err != nil {
		return nil, err
	}
	queries, err := p.Queries(req.Request)
	if err != nil {
		return nil, err
	}

	summary := domain.RunSummary{
		ID:        runID,
		State:     domain.RunStateRunning,
		StartedAt: s.now().UTC(),
	}
	for _, q := range queries {
		summary.Terms = append(summary.Terms, q.Term)
	}
	s.recordRun(ctx, logger, summary)
	s.broker.Publish(EventRunStarted, summary)
	logger.Info("run started", zap.Strings("terms", summary.Terms))

	res, err := p.Run(ctx, req.Request, func(done, total int) {
		s.broker.Publish(EventRunProgress, Progress{RunID: runID, Done: done, Total: total})
	})
	if err != nil {
		return nil, s.failRun(ctx, logger, summary, err)
	}
	summary.Searched = res.Searched
	summary.Unique = res.Unique
	summary.Accepted = len(res.Items)

	if req.Save {
		saved, err := s.SaveItems(ctx, res.Items)
		if err != nil {
			return nil, s.failRun(ctx, logger, summary, err)
		}
		summary.Saved = saved
	}

	summary.State = domain.RunStateCompleted
	summary.FinishedAt = s.now().UTC()
	s.recordRun(ctx, logger, summary)
	s.broker.Publish(EventRunCompleted, summary)
	logger.Info("run completed",
		zap.Int("unique", summary.Unique),
		zap.Int("accepted", summary.Accepted),
		zap.Int("saved", summary.Saved),
		zap.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
	)

	return &RunReport{Summary: summary, Items: res.Items}, nil
}

func (s *Service) failRun(ctx context.Context, logger *zap.Logger, summary domain.RunSummary, err error) error {
	summary.State = domain.RunStateFailed
	summary.FinishedAt = s.now().UTC()
	summary.Error = err.Error()
	// The run context may be the reason we failed; record with a fresh one.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	s.recordRun(recordCtx, logger, summary)
	s.broker.Publish(EventRunCompleted, summary)
	logger.Warn("run failed", zap.Error(err))
	return fmt.Errorf("run %s: %w", summary.ID, err)
}

// recordRun persists the summary. Failures are logged; they never fail the run.
func (s *Service) recordRun(ctx context.Context, logger *zap.Logger, summary domain.RunSummary) {
	if err := s.runs.SaveRun(ctx, summary); err != nil {
		logger.Warn("failed to record run status", zap.Error(err))
	}
}

// SaveItems merges scored items into the history and returns how many were written.
func (s *Service) SaveItems(ctx context.Context, items []domain.ScoredItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	now := s.now()
	recs := make([]domain.HistoryRecord, len(items))
	for i, item := range items {
		recs[i] = domain.NewHistoryRecord(item, now)
	}
	if err := s.history.BulkUpsert(ctx, recs); err != nil {
		return 0, fmt.Errorf("saving %d items: %w", len(recs), err)
	}
	return len(recs), nil
}

// SaveItem merges a single scored item into the history and returns the
// stored record.
func (s *Service) SaveItem(ctx context.Context, item domain.ScoredItem) (*domain.HistoryRecord, error) {
	if item.ID == "" {
		return nil, fmt.Errorf("%w: item has no video id", pipeline.ErrInvalidRequest)
	}
	if err := s.history.Upsert(ctx, domain.NewHistoryRecord(item, s.now())); err != nil {
		return nil, fmt.Errorf("saving %s: %w", item.ID, err)
	}
	return s.history.FindByID(ctx, item.ID)
}

// Start runs the periodic watch loop when it is enabled.
// It is a long-running, blocking method.
func (s *Service) Start(ctx context.Context) error {
	wc := s.cfg.Watcher
	if !wc.Enabled {
		s.logger.Info("Watch Mode disabled.")
		return nil
	}
	if len(s.cfg.Search.Keywords) == 0 {
		return errors.New("watch mode needs search.keywords")
	}
	if wc.IntervalMinutes <= 0 {
		return fmt.Errorf("invalid watcher interval: %d minutes", wc.IntervalMinutes)
	}

	s.logger.Info("Starting Watch Mode.", zap.Int("interval_minutes", wc.IntervalMinutes))
	ticker := time.NewTicker(time.Duration(wc.IntervalMinutes) * time.Minute)
	defer ticker.Stop()

	// Run the first cycle immediately on startup.
	s.runWatchCycle(ctx)

	for {
		select {
		case <-ticker.C:
			s.runWatchCycle(ctx)
		case <-s.stopChan:
			s.logger.Info("Watch Mode stopped.")
			return nil
		case <-ctx.Done():
			s.logger.Info("Watch Mode context cancelled.")
			return nil
		}
	}
}

// Stop gracefully shuts down the service's background processes.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Service stopping...")
		close(s.stopChan)
	})
}

// runWatchCycle performs one run over the configured keywords.
func (s *Service) runWatchCycle(ctx context.Context) {
	_, err := s.Run(ctx, RunRequest{Request: s.DefaultRequest(), Save: s.cfg.Watcher.AutoSave})
	switch {
	case errors.Is(err, ErrRunInProgress):
		s.logger.Info("Watch Cycle: skipped, another run is active.")
	case err != nil:
		s.logger.Warn("Watch Cycle failed", zap.Error(err))
	}
}

// LastRun returns the most recent run summary, or nil.
func (s *Service) LastRun(ctx context.Context) (*domain.RunSummary, error) {
	return s.runs.LastRun(ctx)
}

// History returns every saved record sorted by descending viral score.
func (s *Service) History(ctx context.Context) ([]domain.HistoryRecord, error) {
	recs, err := s.history.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	SortByScore(recs)
	return recs, nil
}

// GetRecord provides a simple data-retrieval method for the Delivery Layer.
func (s *Service) GetRecord(ctx context.Context, id string) (*domain.HistoryRecord, error) {
	return s.history.FindByID(ctx, id)
}

// DeleteRecord removes one saved video.
func (s *Service) DeleteRecord(ctx context.Context, id string) error {
	return s.history.Delete(ctx, id)
}

// RemoveTerm detaches one query term from a saved video.
func (s *Service) RemoveTerm(ctx context.Context, id, term string) error {
	return s.history.RemoveQueryTerm(ctx, id, term)
}

// ClearHistory deletes every saved video.
func (s *Service) ClearHistory(ctx context.Context) (int64, error) {
	n, err := s.history.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info("history cleared", zap.Int64("deleted", n))
	return n, nil
}

// Stats summarises the saved history.
func (s *Service) Stats(ctx context.Context, topN int) (HistoryStats, error) {
	recs, err := s.history.ListAll(ctx)
	if err != nil {
		return HistoryStats{}, err
	}
	return ComputeStats(recs, topN), nil
}
