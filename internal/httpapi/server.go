// Package httpapi exposes the analysis pipeline over HTTP. Submission is
// asynchronous: POST returns 202 with a job id, and clients poll the
// status and result endpoints.
package httpapi

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

	"github.com/sells-group/insight-api/internal/model"
	"github.com/sells-group/insight-api/internal/store"
)

// JobRunner executes the pipeline for a created job. Run is expected to
// absorb its own failures into the job record.
type JobRunner interface {
	Run(ctx context.Context, jobID string)
}

// Server holds the handler dependencies.
type Server struct {
	store  store.Store
	runner JobRunner

	// baseCtx detaches job execution from the request lifetime, so a
	// client disconnect cannot cancel an accepted job.
	baseCtx context.Context
}

// NewServer creates the API server. baseCtx bounds background job
// execution; pass the process's signal context.
func NewServer(baseCtx context.Context, st store.Store, runner JobRunner) *Server {
	return &Server{store: st, runner: runner, baseCtx: baseCtx}
}

// Router builds the chi handler with middleware and all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/analyze", s.handleSubmit)
		r.Get("/analyze", s.handleList)
		r.Get("/analyze/{id}/status", s.handleStatus)
		r.Get("/analyze/{id}", s.handleResult)
	})
	return r
}

type submitRequest struct {
	Question string `json:"research_question"`
}

type submitResponse struct {
	AnalysisID string          `json:"analysis_id"`
	Status     model.JobStatus `json:"status"`
	Message    string          `json:"message"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errTypeValidation, "invalid request body")
		return
	}

	question := strings.TrimSpace(req.Question)
	if len(question) < model.MinQuestionLen || len(question) > model.MaxQuestionLen {
		writeError(w, http.StatusBadRequest, errTypeValidation,
			"research_question must be between "+strconv.Itoa(model.MinQuestionLen)+
				" and "+strconv.Itoa(model.MaxQuestionLen)+" characters")
		return
	}

	job, err := s.store.CreateJob(r.Context(), question)
	if err != nil {
		zap.L().Error("create job failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, errTypeInternal, "could not create analysis job")
		return
	}

	go s.runner.Run(s.baseCtx, job.ID)

	zap.L().Info("analysis accepted", zap.String("job_id", job.ID))
	writeJSON(w, http.StatusAccepted, submitResponse{
		AnalysisID: job.ID,
		Status:     job.Status,
		Message:    "Analysis started. Poll the status endpoint for progress.",
	})
}

type statusResponse struct {
	AnalysisID   string          `json:"analysis_id"`
	Status       model.JobStatus `json:"status"`
	Progress     int             `json:"progress"`
	CurrentStep  string          `json:"current_step,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		AnalysisID:   job.ID,
		Status:       job.Status,
		Progress:     job.Progress,
		CurrentStep:  job.CurrentStep,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
	})
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}

	// Retention is enforced here, on retrieval: rows are not reaped, they
	// just stop being served once past their TTL.
	if job.Status != model.JobStatusComplete || job.Result == nil || job.Expired(time.Now().UTC()) {
		writeError(w, http.StatusNotFound, errTypeNotFound, "result not available: analysis is not complete or has expired")
		return
	}

	writeJSON(w, http.StatusOK, job.Result)
}

type jobSummary struct {
	AnalysisID string          `json:"analysis_id"`
	Question   string          `json:"research_question"`
	Status     model.JobStatus `json:"status"`
	Progress   int             `json:"progress"`
	CreatedAt  time.Time       `json:"created_at"`
}

type listResponse struct {
	Jobs []jobSummary `json:"jobs"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	filter := store.JobFilter{
		Status: model.JobStatus(r.URL.Query().Get("status")),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, errTypeValidation, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	jobs, err := s.store.ListJobs(r.Context(), filter)
	if err != nil {
		zap.L().Error("list jobs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, errTypeInternal, "could not list analysis jobs")
		return
	}

	out := listResponse{Jobs: make([]jobSummary, 0, len(jobs))}
	for _, j := range jobs {
		out.Jobs = append(out.Jobs, jobSummary{
			AnalysisID: j.ID,
			Question:   j.Question,
			Status:     j.Status,
			Progress:   j.Progress,
			CreatedAt:  j.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		zap.L().Error("store ping failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// loadJob resolves the {id} path param, writing a 404 on miss.
func (s *Server) loadJob(w http.ResponseWriter, r *http.Request) (*model.Job, bool) {
	id := chi.URLParam(r, "id")
	job, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, errTypeNotFound, "no analysis found with id "+id)
			return nil, false
		}
		zap.L().Error("get job failed", zap.String("job_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, errTypeInternal, "could not load analysis job")
		return nil, false
	}
	return job, true
}
