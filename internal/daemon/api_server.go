package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"youtuberag/internal/config"
	"youtuberag/internal/logging"
	"youtuberag/internal/queue"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api"),
		daemon: d,
	}

	mux := http.NewServeMux()
	token := cfg.Paths.APIToken
	mux.HandleFunc("/api/status", authMiddleware(token, srv.handleStatus))
	mux.HandleFunc("/api/v1/videos/ingest", authMiddleware(token, srv.handleIngest))
	mux.HandleFunc("/api/v1/jobs", authMiddleware(token, srv.handleJobs))
	mux.HandleFunc("/api/v1/jobs/", authMiddleware(token, srv.handleJob))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

type ingestRequest struct {
	URL      string `json:"url"`
	UserID   string `json:"user_id"`
	Priority int    `json:"priority"`
}

type ingestResponse struct {
	VideoID string `json:"video_id"`
	JobID   int64  `json:"job_id"`
	Status  string `json:"status"`
}

func (s *apiServer) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		s.writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	priority := queue.Priority(req.Priority)
	if priority < queue.PriorityLow || priority > queue.PriorityHigh {
		s.writeError(w, http.StatusBadRequest, "priority must be 0 (low), 1 (normal), or 2 (high)")
		return
	}

	ctx := r.Context()
	video, err := s.daemon.videoStore.Create(ctx, req.URL, req.UserID)
	if err != nil {
		s.logger.Error("ingest: create video failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to create video")
		return
	}
	job, err := s.daemon.store.NewJob(ctx, video.ID, req.UserID, queue.JobTypeTranscription, priority)
	if err != nil {
		s.logger.Error("ingest: create job failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}
	s.daemon.manager.Wake()

	s.logger.Info("video ingested",
		logging.String(logging.FieldVideoID, video.ID),
		logging.Int64(logging.FieldJobID, job.ID),
		logging.Int("priority", int(priority)),
	)
	s.writeJSON(w, http.StatusAccepted, ingestResponse{
		VideoID: video.ID,
		JobID:   job.ID,
		Status:  string(job.Status),
	})
}

type jobView struct {
	ID                  int64             `json:"id"`
	VideoID             string            `json:"video_id"`
	Type                string            `json:"type"`
	Status              string            `json:"status"`
	CurrentStage        string            `json:"current_stage"`
	Progress            int               `json:"progress"`
	StageProgress       map[string]int    `json:"stage_progress,omitempty"`
	Metadata            map[string]string `json:"metadata,omitempty"`
	RetryCount          int               `json:"retry_count"`
	MaxRetries          int               `json:"max_retries"`
	LastFailureCategory string            `json:"last_failure_category,omitempty"`
	ErrorMessage        string            `json:"error_message,omitempty"`
	NextRetryAt         *time.Time        `json:"next_retry_at,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

func viewForJob(job *queue.Job) jobView {
	view := jobView{
		ID:                  job.ID,
		VideoID:             job.VideoID,
		Type:                string(job.Type),
		Status:              string(job.Status),
		CurrentStage:        string(job.CurrentStage),
		Progress:            job.Progress,
		Metadata:            job.Metadata,
		RetryCount:          job.RetryCount,
		MaxRetries:          job.MaxRetries,
		LastFailureCategory: job.LastFailureCategory,
		ErrorMessage:        job.ErrorMessage,
		NextRetryAt:         job.NextRetryAt,
		CreatedAt:           job.CreatedAt,
		UpdatedAt:           job.UpdatedAt,
	}
	if len(job.StageProgress) > 0 {
		view.StageProgress = make(map[string]int, len(job.StageProgress))
		for stage, percent := range job.StageProgress {
			view.StageProgress[string(stage)] = percent
		}
	}
	return view
}

func (s *apiServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var statuses []queue.Status
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, ok := queue.ParseStatus(raw)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "unknown status filter")
			return
		}
		statuses = append(statuses, status)
	}
	jobs, err := s.daemon.store.List(r.Context(), statuses...)
	if err != nil {
		s.logger.Error("list jobs failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	views := make([]jobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, viewForJob(job))
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *apiServer) handleJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	idStr := strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	job, err := s.daemon.store.GetByID(r.Context(), id)
	if err != nil {
		s.logger.Error("get job failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, viewForJob(job))
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]any{
		"running": status.Running,
		"queue": map[string]int{
			"total":     status.Queue.Total,
			"pending":   status.Queue.Pending,
			"running":   status.Queue.Running,
			"failed":    status.Queue.Failed,
			"completed": status.Queue.Completed,
		},
	})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Debug("write response failed", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, code int, message string) {
	s.writeJSON(w, code, map[string]string{"error": message})
}
