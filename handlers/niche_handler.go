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

// CreateNicheRequest represents a request to save a niche
type CreateNicheRequest struct {
	Name     string          `json:"name" validate:"required,max=200"`
	Category string          `json:"category" validate:"required,max=100"`
	Filters  json.RawMessage `json:"filters,omitempty"`
}

// UpdateNicheRequest represents a request to update a saved niche
type UpdateNicheRequest struct {
	Name    string          `json:"name,omitempty" validate:"omitempty,max=200"`
	Filters json.RawMessage `json:"filters,omitempty"`
}

// NicheService defines the interface for saved niche operations
type NicheService interface {
	Create(ctx context.Context, userID uuid.UUID, name, category string, filters json.RawMessage) (*models.SavedNiche, error)
	Get(ctx context.Context, nicheID, userID uuid.UUID) (*models.SavedNiche, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.SavedNiche, error)
	Update(ctx context.Context, nicheID, userID uuid.UUID, name string, filters json.RawMessage) (*models.SavedNiche, error)
	Delete(ctx context.Context, nicheID, userID uuid.UUID) error
	Rescore(ctx context.Context, nicheID, userID uuid.UUID) (*models.SavedNiche, error)
}

// NicheHandler handles saved niche HTTP requests
type NicheHandler struct {
	niches NicheService
	logger *zap.Logger
}

// NewNicheHandler creates a new NicheHandler
func NewNicheHandler(niches NicheService, logger *zap.Logger) *NicheHandler {
	return &NicheHandler{
		niches: niches,
		logger: logger,
	}
}

// HandleCreateNiche handles POST /api/v1/niches
func (h *NicheHandler) HandleCreateNiche(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserIDFromContext(ctx)
	if userID == uuid.Nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req CreateNicheRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	niche, err := h.niches.Create(ctx, userID, req.Name, req.Category, req.Filters)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteCreated(w, niche)
}

// HandleGetNiche handles GET /api/v1/niches/{nicheID}
func (h *NicheHandler) HandleGetNiche(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserIDFromContext(ctx)
	if userID == uuid.Nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	nicheID, err := uuid.Parse(chi.URLParam(r, "nicheID"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid niche ID format", nil)
		return
	}

	niche, err := h.niches.Get(ctx, nicheID, userID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, niche)
}

// HandleListNiches handles GET /api/v1/niches
func (h *NicheHandler) HandleListNiches(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserIDFromContext(ctx)
	if userID == uuid.Nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	limit, offset := parsePagination(r)
	niches, err := h.niches.List(ctx, userID, limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, niches)
}

// HandleUpdateNiche handles PUT /api/v1/niches/{nicheID}
func (h *NicheHandler) HandleUpdateNiche(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserIDFromContext(ctx)
	if userID == uuid.Nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	nicheID, err := uuid.Parse(chi.URLParam(r, "nicheID"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid niche ID format", nil)
		return
	}

	var req UpdateNicheRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	niche, err := h.niches.Update(ctx, nicheID, userID, req.Name, req.Filters)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, niche)
}

// HandleDeleteNiche handles DELETE /api/v1/niches/{nicheID}
func (h *NicheHandler) HandleDeleteNiche(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserIDFromContext(ctx)
	if userID == uuid.Nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	nicheID, err := uuid.Parse(chi.URLParam(r, "nicheID"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid niche ID format", nil)
		return
	}

	if err := h.niches.Delete(ctx, nicheID, userID); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	utils.WriteNoContent(w)
}

// HandleRescoreNiche handles POST /api/v1/niches/{nicheID}/rescore
func (h *NicheHandler) HandleRescoreNiche(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)
	userID := middleware.GetUserIDFromContext(ctx)
	if userID == uuid.Nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	nicheID, err := uuid.Parse(chi.URLParam(r, "nicheID"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid niche ID format", nil)
		return
	}

	niche, err := h.niches.Rescore(ctx, nicheID, userID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("niche rescored",
		zap.String("request_id", requestID),
		zap.String("niche_id", niche.ID.String()))

	_ = utils.WriteOK(w, niche)
}
