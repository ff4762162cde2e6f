package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arbitragevault/backend/middleware"
	"github.com/arbitragevault/backend/models"
	"github.com/arbitragevault/backend/services"
	"github.com/arbitragevault/backend/services/tokenguard"
	"github.com/arbitragevault/backend/utils"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeBatchService struct {
	batch    *models.Batch
	estimate tokenguard.Estimate
	analyses []*models.Analysis
	err      error

	gotUserID uuid.UUID
	gotName   string
	gotASINs  string
}

func (s *fakeBatchService) CreateBatch(_ context.Context, userID uuid.UUID, name, rawASINs string) (*models.Batch, tokenguard.Estimate, error) {
	s.gotUserID = userID
	s.gotName = name
	s.gotASINs = rawASINs
	if s.err != nil {
		return nil, s.estimate, s.err
	}
	return s.batch, s.estimate, nil
}

func (s *fakeBatchService) RunBatch(_ context.Context, batchID, userID uuid.UUID) (*models.Batch, error) {
	s.gotUserID = userID
	if s.err != nil {
		return nil, s.err
	}
	return s.batch, nil
}

func (s *fakeBatchService) GetBatch(_ context.Context, batchID, userID uuid.UUID) (*models.Batch, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.batch, nil
}

func (s *fakeBatchService) ListBatches(_ context.Context, userID uuid.UUID, limit, offset int) ([]*models.Batch, int, error) {
	if s.err != nil {
		return nil, 0, s.err
	}
	return []*models.Batch{s.batch}, 1, nil
}

func (s *fakeBatchService) ListResults(_ context.Context, batchID, userID uuid.UUID, limit, offset int) ([]*models.Analysis, int, error) {
	if s.err != nil {
		return nil, 0, s.err
	}
	return s.analyses, len(s.analyses), nil
}

func authedRequest(method, target string, body []byte, userID uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	ctx := middleware.WithUserID(req.Context(), userID)
	return req.WithContext(ctx)
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestBatchHandler_HandleCreateBatch(t *testing.T) {
	userID := uuid.New()

	t.Run("creates and returns the estimate", func(t *testing.T) {
		svc := &fakeBatchService{
			batch:    models.NewBatch(userID, "textbooks", []string{"B000TEST01"}, 1),
			estimate: tokenguard.Estimate{Tokens: 1, Breakdown: map[string]int{"products": 1}},
		}
		h := NewBatchHandler(svc, zaptest.NewLogger(t))

		body, _ := json.Marshal(CreateBatchRequest{Name: "textbooks", ASINs: "B000TEST01"})
		w := httptest.NewRecorder()
		h.HandleCreateBatch(w, authedRequest(http.MethodPost, "/api/v1/batches", body, userID))

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, userID, svc.gotUserID)
		assert.Equal(t, "B000TEST01", svc.gotASINs)

		var response utils.SuccessResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		data := response.Data.(map[string]interface{})
		assert.Contains(t, data, "batch")
		estimate := data["estimate"].(map[string]interface{})
		assert.Equal(t, float64(1), estimate["tokens"])
	})

	t.Run("rejects unauthenticated requests", func(t *testing.T) {
		h := NewBatchHandler(&fakeBatchService{}, zaptest.NewLogger(t))

		body, _ := json.Marshal(CreateBatchRequest{Name: "textbooks", ASINs: "B000TEST01"})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/batches", bytes.NewReader(body))
		w := httptest.NewRecorder()
		h.HandleCreateBatch(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		h := NewBatchHandler(&fakeBatchService{}, zaptest.NewLogger(t))

		w := httptest.NewRecorder()
		h.HandleCreateBatch(w, authedRequest(http.MethodPost, "/api/v1/batches", []byte("{"), userID))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		h := NewBatchHandler(&fakeBatchService{}, zaptest.NewLogger(t))

		body, _ := json.Marshal(CreateBatchRequest{Name: "textbooks"})
		w := httptest.NewRecorder()
		h.HandleCreateBatch(w, authedRequest(http.MethodPost, "/api/v1/batches", body, userID))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("budget rejection surfaces as 429", func(t *testing.T) {
		svc := &fakeBatchService{
			err: services.NewDomainError(services.ErrorTypeTokenBudget, "insufficient token budget", nil).
				WithDetail("tokens_remaining", 20).
				WithDetail("tokens_required", 100).
				WithDetail("tokens_deficit", 80),
		}
		h := NewBatchHandler(svc, zaptest.NewLogger(t))

		body, _ := json.Marshal(CreateBatchRequest{Name: "big", ASINs: "B000TEST01"})
		w := httptest.NewRecorder()
		h.HandleCreateBatch(w, authedRequest(http.MethodPost, "/api/v1/batches", body, userID))

		assert.Equal(t, http.StatusTooManyRequests, w.Code)

		var response utils.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, float64(80), response.Details["tokens_deficit"])
	})
}

func TestBatchHandler_HandleRunBatch(t *testing.T) {
	userID := uuid.New()
	batch := models.NewBatch(userID, "run", []string{"B000TEST01"}, 1)
	batch.Status = models.BatchStatusCompleted

	t.Run("runs and returns the batch", func(t *testing.T) {
		svc := &fakeBatchService{batch: batch}
		h := NewBatchHandler(svc, zaptest.NewLogger(t))

		req := authedRequest(http.MethodPost, "/api/v1/batches/"+batch.ID.String()+"/run", nil, userID)
		req = withURLParam(req, "batchID", batch.ID.String())
		w := httptest.NewRecorder()
		h.HandleRunBatch(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("invalid batch id", func(t *testing.T) {
		h := NewBatchHandler(&fakeBatchService{}, zaptest.NewLogger(t))

		req := authedRequest(http.MethodPost, "/api/v1/batches/nope/run", nil, userID)
		req = withURLParam(req, "batchID", "nope")
		w := httptest.NewRecorder()
		h.HandleRunBatch(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("breaker open surfaces as 503 with header", func(t *testing.T) {
		svc := &fakeBatchService{
			err: services.NewDomainError(services.ErrorTypeCircuitOpen, "pricing API circuit breaker is open", nil).
				WithDetail("retry_after_seconds", 30),
		}
		h := NewBatchHandler(svc, zaptest.NewLogger(t))

		req := authedRequest(http.MethodPost, "/api/v1/batches/"+batch.ID.String()+"/run", nil, userID)
		req = withURLParam(req, "batchID", batch.ID.String())
		w := httptest.NewRecorder()
		h.HandleRunBatch(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "30", w.Header().Get("Retry-After"))
	})

	t.Run("already running surfaces as conflict", func(t *testing.T) {
		svc := &fakeBatchService{err: services.ErrBatchNotIdle}
		h := NewBatchHandler(svc, zaptest.NewLogger(t))

		req := authedRequest(http.MethodPost, "/api/v1/batches/"+batch.ID.String()+"/run", nil, userID)
		req = withURLParam(req, "batchID", batch.ID.String())
		w := httptest.NewRecorder()
		h.HandleRunBatch(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestBatchHandler_HandleListBatches(t *testing.T) {
	userID := uuid.New()
	svc := &fakeBatchService{batch: models.NewBatch(userID, "list", []string{"B000TEST01"}, 1)}
	h := NewBatchHandler(svc, zaptest.NewLogger(t))

	w := httptest.NewRecorder()
	h.HandleListBatches(w, authedRequest(http.MethodGet, "/api/v1/batches?limit=5&offset=10", nil, userID))

	assert.Equal(t, http.StatusOK, w.Code)

	var response utils.SuccessResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	data := response.Data.(map[string]interface{})
	assert.Equal(t, float64(1), data["total"])
	assert.Equal(t, float64(5), data["limit"])
	assert.Equal(t, float64(10), data["offset"])
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"defaults", "", 20, 0},
		{"explicit values", "?limit=50&offset=100", 50, 100},
		{"garbage ignored", "?limit=abc&offset=-5", 20, 0},
		{"zero limit ignored", "?limit=0", 20, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/batches"+tt.query, nil)
			limit, offset := parsePagination(req)
			assert.Equal(t, tt.wantLimit, limit)
			assert.Equal(t, tt.wantOffset, offset)
		})
	}
}
