package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/arbitragevault/backend/middleware"
	"github.com/arbitragevault/backend/models"
	"github.com/arbitragevault/backend/utils"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateJobRequest represents a request to create an autosourcing job
type CreateJobRequest struct {
	Name            string             `json:"name" validate:"required,max=200"`
	Category        string             `json:"category" validate:"required,max=100"`
	Criteria        models.JobCriteria `json:"criteria"`
	IntervalMinutes int                `json:"interval_minutes" validate:"required,gte=15"`
}

// SetJobEnabledRequest toggles a job's schedule
type SetJobEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// AutosourcingService defines the interface for autosourcing operations
type AutosourcingService interface {
	CreateJob(ctx context.Context, userID uuid.UUID, name, category string, criteria models.JobCriteria, intervalMinutes int) (*models.AutosourcingJob, error)
	GetJob(ctx context.Context, jobID, userID uuid.UUID) (*models.AutosourcingJob, error)
	ListJobs(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.AutosourcingJob, error)
	SetEnabled(ctx context.Context, jobID, userID uuid.UUID, enabled bool) (*models.AutosourcingJob, error)
	DeleteJob(ctx context.Context, jobID, userID uuid.UUID) error
	ListPicks(ctx context.Context, jobID, userID uuid.UUID) ([]*models.JobPick, error)
	RunJob(ctx context.Context, job *models.AutosourcingJob) error
}

// AutosourcingHandler handles autosourcing job HTTP requests
type AutosourcingHandler struct {
	jobs   AutosourcingService
	logger *zap.Logger
}

// NewAutosourcingHandler creates a new AutosourcingHandler
func NewAutosourcingHandler(jobs AutosourcingService, logger *zap.Logger) *AutosourcingHandler {
	return &AutosourcingHandler{
		jobs:   jobs,
		logger: logger,
	}
}

// HandleCreateJob handles POST /api/v1/autosourcing
func (h *AutosourcingHandler) HandleCreateJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserIDFromContext(ctx)
	if userID == uuid.Nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	job, err := h.jobs.CreateJob(ctx, userID, req.Name, req.Category, req.Criteria, req.IntervalMinutes)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteCreated(w, job)
}

// HandleGetJob handles GET /api/v1/autosourcing/{jobID}
func (h *AutosourcingHandler) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserIDFromContext(ctx)
	if userID == uuid.Nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid job ID format", nil)
		return
	}

	job, err := h.jobs.GetJob(ctx, jobID, userID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, job)
}

// HandleListJobs handles GET /api/v1/autosourcing
func (h *AutosourcingHandler) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserIDFromContext(ctx)
	if userID == uuid.Nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	limit, offset := parsePagination(r)
	jobs, err := h.jobs.ListJobs(ctx, userID, limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, jobs)
}

// HandleSetJobEnabled handles PUT /api/v1/autosourcing/{jobID}/enabled
func (h *AutosourcingHandler) HandleSetJobEnabled(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserIDFromContext(ctx)
	if userID == uuid.Nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid job ID format", nil)
		return
	}

	var req SetJobEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	job, err := h.jobs.SetEnabled(ctx, jobID, userID, req.Enabled)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, job)
}

// HandleDeleteJob handles DELETE /api/v1/autosourcing/{jobID}
func (h *AutosourcingHandler) HandleDeleteJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserIDFromContext(ctx)
	if userID == uuid.Nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid job ID format", nil)
		return
	}

	if err := h.jobs.DeleteJob(ctx, jobID, userID); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	utils.WriteNoContent(w)
}

// HandleListPicks handles GET /api/v1/autosourcing/{jobID}/picks
func (h *AutosourcingHandler) HandleListPicks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserIDFromContext(ctx)
	if userID == uuid.Nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid job ID format", nil)
		return
	}

	picks, err := h.jobs.ListPicks(ctx, jobID, userID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, picks)
}

// HandleRunJob handles POST /api/v1/autosourcing/{jobID}/run
// Triggers an immediate discovery run outside the schedule
func (h *AutosourcingHandler) HandleRunJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)
	userID := middleware.GetUserIDFromContext(ctx)
	if userID == uuid.Nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid job ID format", nil)
		return
	}

	job, err := h.jobs.GetJob(ctx, jobID, userID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := h.jobs.RunJob(ctx, job); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	picks, err := h.jobs.ListPicks(ctx, jobID, userID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("autosourcing run triggered",
		zap.String("request_id", requestID),
		zap.String("job_id", jobID.String()),
		zap.Int("picks", len(picks)))

	_ = utils.WriteOK(w, picks)
}
