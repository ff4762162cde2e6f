package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/arbitragevault/backend/middleware"
	"github.com/arbitragevault/backend/models"
	"github.com/arbitragevault/backend/services/tokenguard"
	"github.com/arbitragevault/backend/utils"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateBatchRequest represents a request to create an analysis batch.
// ASINs is free-form user input: whitespace, comma or newline separated.
type CreateBatchRequest struct {
	Name  string `json:"name" validate:"required,max=200"`
	ASINs string `json:"asins" validate:"required"`
}

// CreateBatchResponse carries the created batch with its token estimate
type CreateBatchResponse struct {
	Batch    *models.Batch       `json:"batch"`
	Estimate tokenguard.Estimate `json:"estimate"`
}

// BatchListResponse is a paginated page of batches
type BatchListResponse struct {
	Batches []*models.Batch `json:"batches"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// AnalysisListResponse is a paginated page of batch results
type AnalysisListResponse struct {
	Analyses []*models.Analysis `json:"analyses"`
	Total    int                `json:"total"`
	Limit    int                `json:"limit"`
	Offset   int                `json:"offset"`
}

// BatchService defines the interface for batch operations
type BatchService interface {
	CreateBatch(ctx context.Context, userID uuid.UUID, name, rawASINs string) (*models.Batch, tokenguard.Estimate, error)
	RunBatch(ctx context.Context, batchID, userID uuid.UUID) (*models.Batch, error)
	GetBatch(ctx context.Context, batchID, userID uuid.UUID) (*models.Batch, error)
	ListBatches(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Batch, int, error)
	ListResults(ctx context.Context, batchID, userID uuid.UUID, limit, offset int) ([]*models.Analysis, int, error)
}

// BatchHandler handles batch-related HTTP requests
type BatchHandler struct {
	batches BatchService
	logger  *zap.Logger
}

// NewBatchHandler creates a new BatchHandler
func NewBatchHandler(batches BatchService, logger *zap.Logger) *BatchHandler {
	return &BatchHandler{
		batches: batches,
		logger:  logger,
	}
}

// HandleCreateBatch handles POST /api/v1/batches
func (h *BatchHandler) HandleCreateBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)
	userID := middleware.GetUserIDFromContext(ctx)
	if userID == uuid.Nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req CreateBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	batch, est, err := h.batches.CreateBatch(ctx, userID, req.Name, req.ASINs)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("batch created",
		zap.String("request_id", requestID),
		zap.String("batch_id", batch.ID.String()),
		zap.Int("tokens_estimated", est.Tokens))

	_ = utils.WriteCreated(w, CreateBatchResponse{Batch: batch, Estimate: est})
}

// HandleRunBatch handles POST /api/v1/batches/{batchID}/run
func (h *BatchHandler) HandleRunBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserIDFromContext(ctx)
	if userID == uuid.Nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	batchID, err := uuid.Parse(chi.URLParam(r, "batchID"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid batch ID format", nil)
		return
	}

	batch, err := h.batches.RunBatch(ctx, batchID, userID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, batch)
}

// HandleGetBatch handles GET /api/v1/batches/{batchID}
func (h *BatchHandler) HandleGetBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserIDFromContext(ctx)
	if userID == uuid.Nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	batchID, err := uuid.Parse(chi.URLParam(r, "batchID"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid batch ID format", nil)
		return
	}

	batch, err := h.batches.GetBatch(ctx, batchID, userID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, batch)
}

// HandleListBatches handles GET /api/v1/batches
func (h *BatchHandler) HandleListBatches(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserIDFromContext(ctx)
	if userID == uuid.Nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	limit, offset := parsePagination(r)
	batches, total, err := h.batches.ListBatches(ctx, userID, limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, BatchListResponse{
		Batches: batches,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	})
}

// HandleListResults handles GET /api/v1/batches/{batchID}/results
func (h *BatchHandler) HandleListResults(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserIDFromContext(ctx)
	if userID == uuid.Nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	batchID, err := uuid.Parse(chi.URLParam(r, "batchID"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid batch ID format", nil)
		return
	}

	limit, offset := parsePagination(r)
	analyses, total, err := h.batches.ListResults(ctx, batchID, userID, limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, AnalysisListResponse{
		Analyses: analyses,
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	})
}

// parsePagination reads limit/offset query parameters with defaults
func parsePagination(r *http.Request) (limit, offset int) {
	limit = 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}
