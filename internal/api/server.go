// Package api exposes the enrichment pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/lexicon-cli/internal/config"
	"github.com/sells-group/lexicon-cli/internal/metrics"
	"github.com/sells-group/lexicon-cli/internal/model"
	"github.com/sells-group/lexicon-cli/internal/queue"
	"github.com/sells-group/lexicon-cli/internal/store"
)

// Service is the pipeline surface the API serves.
type Service interface {
	EnrichWord(ctx context.Context, word string) (*model.EnrichmentResult, error)
	GetProfile(ctx context.Context, id string) (*model.WordProfile, error)
	GetProfileByWord(ctx context.Context, word string) (*model.WordProfile, error)
	Search(ctx context.Context, query string, limit int) ([]model.WordProfile, error)
	GetQualityReport(ctx context.Context, profileID string) (*model.QualityReport, error)
	QualityTrends(ctx context.Context, profileID string, days int) ([]model.QualityTrendPoint, error)
	QualityStatistics(ctx context.Context) (*model.QualityStatistics, error)
	Enqueue(ctx context.Context, profileID string, priority int) (*model.QueueItem, error)
	ProcessQueue(ctx context.Context, maxItems int) (queue.ProcessSummary, error)
	ListQueue(ctx context.Context, status model.QueueStatus, limit int) ([]model.QueueItem, error)
	QueueStats(ctx context.Context) (*model.QueueStats, error)
}

const requestTimeout = 2 * time.Minute

// errBadRequest marks client errors.
var errBadRequest = errors.New("bad request")

// NewRouter builds the HTTP handler. m may be nil, in which case /metrics
// serves the default Prometheus registry and no request metrics are kept.
func NewRouter(svc Service, cfg config.ServerConfig, m *metrics.Metrics) http.Handler {
	h := &handler{svc: svc, log: zap.L().With(zap.String("component", "api"))}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(m.Middleware)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", h.health)
	if cfg.MetricsEnabled {
		r.Handle("/metrics", m.Handler())
	}

	r.Route("/words", func(r chi.Router) {
		r.Get("/", h.search)
		r.Get("/{word}", h.getByWord)
		r.Post("/{word}/enrich", h.enrich)
	})
	r.Route("/profiles/{id}", func(r chi.Router) {
		r.Get("/", h.getByID)
		r.Get("/quality", h.qualityReport)
		r.Get("/quality/trends", h.qualityTrends)
	})
	r.Route("/queue", func(r chi.Router) {
		r.Get("/", h.listQueue)
		r.Post("/", h.enqueue)
		r.Post("/process", h.processQueue)
		r.Get("/stats", h.queueStats)
	})
	r.Get("/stats", h.stats)
	return r
}

type handler struct {
	svc Service
	log *zap.Logger
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) search(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 0)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out, err := h.svc.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) getByWord(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetProfileByWord(r.Context(), chi.URLParam(r, "word"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handler) enrich(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.EnrichWord(r.Context(), chi.URLParam(r, "word"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) getByID(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetProfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handler) qualityReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.GetQualityReport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *handler) qualityTrends(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days", 30)
	if err != nil {
		h.writeError(w, err)
		return
	}
	points, err := h.svc.QualityTrends(r.Context(), chi.URLParam(r, "id"), days)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

type enqueueRequest struct {
	WordProfileID string `json:"word_profile_id"`
	Priority      int    `json:"priority"`
}

func (h *handler) enqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, badRequest("invalid request body"))
		return
	}
	if strings.TrimSpace(req.WordProfileID) == "" {
		h.writeError(w, badRequest("word_profile_id is required"))
		return
	}
	item, err := h.svc.Enqueue(r.Context(), req.WordProfileID, req.Priority)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, item)
}

func (h *handler) processQueue(w http.ResponseWriter, r *http.Request) {
	maxItems, err := intParam(r, "max", 10)
	if err != nil {
		h.writeError(w, err)
		return
	}
	sum, err := h.svc.ProcessQueue(r.Context(), maxItems)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *handler) listQueue(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 0)
	if err != nil {
		h.writeError(w, err)
		return
	}
	status := model.QueueStatus(r.URL.Query().Get("status"))
	if status != "" && !status.IsValid() {
		h.writeError(w, badRequest("invalid status "+strconv.Quote(string(status))))
		return
	}
	items, err := h.svc.ListQueue(r.Context(), status, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if items == nil {
		items = []model.QueueItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *handler) queueStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.QueueStats(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.QualityStatistics(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type clientError struct{ msg string }

func (e *clientError) Error() string { return e.msg }

func (e *clientError) Unwrap() error { return errBadRequest }

func badRequest(msg string) error { return &clientError{msg: msg} }

func intParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, badRequest(name + " must be a non-negative integer")
	}
	return n, nil
}

func (h *handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := err.Error()
	var ce *clientError
	switch {
	case errors.As(err, &ce):
		status = http.StatusBadRequest
		msg = ce.msg
	case store.IsNotFound(err):
		status = http.StatusNotFound
		msg = "not found"
	case errors.Is(err, queue.ErrDrainInProgress):
		status = http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	if status >= http.StatusInternalServerError {
		h.log.Error("api: request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
