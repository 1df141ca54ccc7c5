package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hypexbt/hypexbt/internal/queue"
	"github.com/hypexbt/hypexbt/internal/scheduler"
)

func (s *Service) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	if s.cfg.Pprof {
		r.Mount("/debug", middleware.Profiler())
	}

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(api chi.Router) {
		api.Get("/status", s.handleStatus)
		api.Post("/jobs", s.handleSubmitJob)
		api.Route("/queue", func(q chi.Router) {
			q.Get("/stats", s.handleQueueStats)
			q.Get("/peek", s.handleQueuePeek)
			q.Delete("/", s.handleQueueClear)
		})
		api.Route("/dlq", func(d chi.Router) {
			d.Get("/", s.handleDLQPeek)
			d.Delete("/", s.handleDLQClear)
		})
	})
	return r
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.Stats(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	Worker queue.WorkerStats `json:"worker"`
	Queue  queue.Stats       `json:"queue"`
	Plan   []scheduler.Slot  `json:"plan,omitempty"`
}

func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	resp := statusResponse{Worker: s.wrk.Stats(), Queue: stats}
	if s.sched != nil {
		resp.Plan = s.sched.Plan()
	}
	writeJSON(w, http.StatusOK, resp)
}

type submitJobRequest struct {
	JobType  string         `json:"job_type"`
	Priority int            `json:"priority"`
	Params   map[string]any `json:"params"`
}

// handleSubmitJob enqueues an arbitrary registered job. Payloads are
// validated here so a bad request is rejected synchronously instead of
// bouncing through the dead-letter queue.
func (s *Service) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req submitJobRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if !queue.ValidPriority(req.Priority) {
		writeError(w, http.StatusBadRequest,
			fmt.Errorf("priority must be between %d and %d", queue.MinPriority, queue.MaxPriority))
		return
	}

	p := queue.NewPayload(req.JobType, req.Params)
	if _, err := s.reg.CreateJob(p); err != nil {
		switch {
		case errors.Is(err, queue.ErrUnknownJobType):
			writeError(w, http.StatusNotFound, err)
		case errors.Is(err, queue.ErrInvalidParameters):
			writeError(w, http.StatusBadRequest, err)
		default:
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	id, err := s.store.Enqueue(r.Context(), p, req.Priority)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"job_id": id, "priority": req.Priority})
}

func (s *Service) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Service) handleQueuePeek(w http.ResponseWriter, r *http.Request) {
	priority := intQuery(r, "priority", queue.MinPriority)
	count := intQuery(r, "count", 10)
	if !queue.ValidPriority(priority) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid priority %d", priority))
		return
	}

	entries, err := s.store.Peek(r.Context(), priority, count)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"priority": priority, "jobs": entries})
}

func (s *Service) handleQueueClear(w http.ResponseWriter, r *http.Request) {
	priority := intQuery(r, "priority", 0) // 0 clears every tier
	if priority != 0 && !queue.ValidPriority(priority) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid priority %d", priority))
		return
	}
	removed, err := s.store.Clear(r.Context(), priority)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

func (s *Service) handleDLQPeek(w http.ResponseWriter, r *http.Request) {
	count := intQuery(r, "count", 20)
	entries, err := s.store.PeekDeadLetter(r.Context(), count)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": entries})
}

func (s *Service) handleDLQClear(w http.ResponseWriter, r *http.Request) {
	removed, err := s.store.ClearDeadLetter(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

func intQuery(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
