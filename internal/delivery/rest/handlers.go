// Path: internal/delivery/rest/handlers.go
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"viral-scout/internal/domain"
	"viral-scout/internal/events"
	"viral-scout/internal/export"
	"viral-scout/internal/pipeline"
	"viral-scout/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const defaultTopN = 10

// runService defines the interface required by the handlers from the core service.
// This keeps the delivery layer decoupled from the full service implementation.
type runService interface {
	DefaultRequest() pipeline.Request
	Run(ctx context.Context, req service.RunRequest) (*service.RunReport, error)
	LastRun(ctx context.Context) (*domain.RunSummary, error)
	History(ctx context.Context) ([]domain.HistoryRecord, error)
	Stats(ctx context.Context, topN int) (service.HistoryStats, error)
	GetRecord(ctx context.Context, id string) (*domain.HistoryRecord, error)
	DeleteRecord(ctx context.Context, id string) error
	RemoveTerm(ctx context.Context, id, term string) error
	SaveItem(ctx context.Context, item domain.ScoredItem) (*domain.HistoryRecord, error)
	ClearHistory(ctx context.Context) (int64, error)
}

// Handlers holds dependencies for the HTTP handlers.
type Handlers struct {
	service runService
	broker  *events.Broker
	logger  *zap.Logger
}

// NewHandlers creates a new handler struct.
func NewHandlers(s runService, broker *events.Broker, logger *zap.Logger) *Handlers {
	return &Handlers{service: s, broker: broker, logger: logger}
}

// runBody is the POST /runs payload. Omitted fields fall back to the
// configured search settings.
type runBody struct {
	Terms          []string `json:"terms"`
	Days           *int     `json:"days"`
	MaxResults     *int     `json:"max_results"`
	RegionCode     *string  `json:"region_code"`
	MinViews       *int64   `json:"min_views"`
	MaxSubscribers *int64   `json:"max_subscribers"`
	Save           bool     `json:"save"`
}

func (b runBody) request(base pipeline.Request) service.RunRequest {
	req := service.RunRequest{Request: base, Save: b.Save}
	if len(b.Terms) > 0 {
		req.Terms = b.Terms
	}
	if b.Days != nil {
		req.Days = *b.Days
	}
	if b.MaxResults != nil {
		req.MaxResults = *b.MaxResults
	}
	if b.RegionCode != nil {
		req.RegionCode = *b.RegionCode
	}
	if b.MinViews != nil {
		req.MinViews = *b.MinViews
	}
	if b.MaxSubscribers != nil {
		req.MaxSubscribers = *b.MaxSubscribers
	}
	return req
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// StartRun executes a run and returns its report once it finishes.
// Progress is streamed on /runs/events meanwhile.
func (h *Handlers) StartRun(w http.ResponseWriter, r *http.Request) {
	var body runBody
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	report, err := h.service.Run(r.Context(), body.request(h.service.DefaultRequest()))
	switch {
	case errors.Is(err, pipeline.ErrInvalidRequest):
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, service.ErrRunInProgress):
		h.respondError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.logger.Error("run failed", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, report)
}

func (h *Handlers) LastRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.LastRun(r.Context())
	if err != nil {
		h.logger.Error("last run lookup failed", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if run == nil {
		h.respondError(w, http.StatusNotFound, "no runs recorded")
		return
	}
	h.respondJSON(w, http.StatusOK, run)
}

// RunEvents streams run events as server-sent events until the client leaves.
func (h *Handlers) RunEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ch := h.broker.Subscribe(service.EventRunStarted, service.EventRunProgress, service.EventRunCompleted)
	defer h.broker.Unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(ev.Data)
			if err != nil {
				h.logger.Warn("encoding event", zap.String("topic", ev.Topic), zap.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Topic, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *Handlers) ListHistory(w http.ResponseWriter, r *http.Request) {
	recs, err := h.service.History(r.Context())
	if err != nil {
		h.logger.Error("listing history failed", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	h.respondJSON(w, http.StatusOK, recs)
}

func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	topN := defaultTopN
	if v := r.URL.Query().Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.respondError(w, http.StatusBadRequest, "top must be a positive integer")
			return
		}
		topN = n
	}
	stats, err := h.service.Stats(r.Context(), topN)
	if err != nil {
		h.logger.Error("computing stats failed", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	h.respondJSON(w, http.StatusOK, stats)
}

func (h *Handlers) ExportHistory(w http.ResponseWriter, r *http.Request) {
	recs, err := h.service.History(r.Context())
	if err != nil {
		h.logger.Error("listing history failed", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="youtube_saved.csv"`)
	if err := export.WriteHistory(w, recs); err != nil {
		h.logger.Warn("writing csv failed", zap.Error(err))
	}
}

// GetRecord handles the request for a single saved video.
// Path: /history/{id}
func (h *Handlers) GetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.GetRecord(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.logger.Error("record lookup failed", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if rec == nil {
		h.respondError(w, http.StatusNotFound, "record not found")
		return
	}
	h.respondJSON(w, http.StatusOK, rec)
}

// SaveItem handles POST /history. The body is one scored item as it
// appears in a run report.
func (h *Handlers) SaveItem(w http.ResponseWriter, r *http.Request) {
	var item domain.ScoredItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rec, err := h.service.SaveItem(r.Context(), item)
	switch {
	case errors.Is(err, pipeline.ErrInvalidRequest):
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.Error("save item failed", zap.String("id", item.ID), zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.respondJSON(w, http.StatusCreated, rec)
}

func (h *Handlers) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.DeleteRecord(r.Context(), id); err != nil {
		h.logger.Error("delete failed", zap.String("id", id), zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveTerm handles DELETE /history/{id}/terms/{term}. The term is
// path-escaped by the client. chi matches on RawPath when the request has
// one, so the segment is only still escaped in that case.
func (h *Handlers) RemoveTerm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	term := chi.URLParam(r, "term")
	if r.URL.RawPath != "" {
		var err error
		if term, err = url.PathUnescape(term); err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid term")
			return
		}
	}
	if term == "" {
		h.respondError(w, http.StatusBadRequest, "invalid term")
		return
	}
	if err := h.service.RemoveTerm(r.Context(), id, term); err != nil {
		h.logger.Error("remove term failed", zap.String("id", id), zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ClearHistory(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.ClearHistory(r.Context())
	if err != nil {
		h.logger.Error("clear history failed", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
