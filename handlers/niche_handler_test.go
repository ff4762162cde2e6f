package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arbitragevault/backend/models"
	"github.com/arbitragevault/backend/services"
	"github.com/arbitragevault/backend/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeNicheService struct {
	niche *models.SavedNiche
	err   error

	gotName    string
	gotFilters json.RawMessage
	deleted    bool
}

func (s *fakeNicheService) Create(_ context.Context, userID uuid.UUID, name, category string, filters json.RawMessage) (*models.SavedNiche, error) {
	s.gotName = name
	s.gotFilters = filters
	if s.err != nil {
		return nil, s.err
	}
	return s.niche, nil
}

func (s *fakeNicheService) Get(_ context.Context, nicheID, userID uuid.UUID) (*models.SavedNiche, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.niche, nil
}

func (s *fakeNicheService) List(_ context.Context, userID uuid.UUID, limit, offset int) ([]*models.SavedNiche, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []*models.SavedNiche{s.niche}, nil
}

func (s *fakeNicheService) Update(_ context.Context, nicheID, userID uuid.UUID, name string, filters json.RawMessage) (*models.SavedNiche, error) {
	s.gotName = name
	s.gotFilters = filters
	if s.err != nil {
		return nil, s.err
	}
	return s.niche, nil
}

func (s *fakeNicheService) Delete(_ context.Context, nicheID, userID uuid.UUID) error {
	s.deleted = true
	return s.err
}

func (s *fakeNicheService) Rescore(_ context.Context, nicheID, userID uuid.UUID) (*models.SavedNiche, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.niche, nil
}

func TestNicheHandler_HandleCreateNiche(t *testing.T) {
	userID := uuid.New()

	t.Run("creates the niche", func(t *testing.T) {
		svc := &fakeNicheService{
			niche: models.NewSavedNiche(userID, "vintage textbooks", "Books", json.RawMessage(`{"max_sales_rank":100000}`)),
		}
		h := NewNicheHandler(svc, zaptest.NewLogger(t))

		body, _ := json.Marshal(CreateNicheRequest{
			Name:     "vintage textbooks",
			Category: "Books",
			Filters:  json.RawMessage(`{"max_sales_rank":100000}`),
		})
		w := httptest.NewRecorder()
		h.HandleCreateNiche(w, authedRequest(http.MethodPost, "/api/v1/niches", body, userID))

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "vintage textbooks", svc.gotName)
		assert.JSONEq(t, `{"max_sales_rank":100000}`, string(svc.gotFilters))
	})

	t.Run("rejects unauthenticated requests", func(t *testing.T) {
		h := NewNicheHandler(&fakeNicheService{}, zaptest.NewLogger(t))

		body, _ := json.Marshal(CreateNicheRequest{Name: "n", Category: "Books"})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/niches", bytes.NewReader(body))
		w := httptest.NewRecorder()
		h.HandleCreateNiche(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("rejects missing category", func(t *testing.T) {
		h := NewNicheHandler(&fakeNicheService{}, zaptest.NewLogger(t))

		body, _ := json.Marshal(CreateNicheRequest{Name: "no category"})
		w := httptest.NewRecorder()
		h.HandleCreateNiche(w, authedRequest(http.MethodPost, "/api/v1/niches", body, userID))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestNicheHandler_HandleGetNiche(t *testing.T) {
	userID := uuid.New()
	niche := models.NewSavedNiche(userID, "lookup", "Books", nil)

	t.Run("returns the niche", func(t *testing.T) {
		h := NewNicheHandler(&fakeNicheService{niche: niche}, zaptest.NewLogger(t))

		req := authedRequest(http.MethodGet, "/api/v1/niches/"+niche.ID.String(), nil, userID)
		req = withURLParam(req, "nicheID", niche.ID.String())
		w := httptest.NewRecorder()
		h.HandleGetNiche(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response utils.SuccessResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		data := response.Data.(map[string]interface{})
		assert.Equal(t, niche.ID.String(), data["id"])
	})

	t.Run("invalid id", func(t *testing.T) {
		h := NewNicheHandler(&fakeNicheService{}, zaptest.NewLogger(t))

		req := authedRequest(http.MethodGet, "/api/v1/niches/nope", nil, userID)
		req = withURLParam(req, "nicheID", "nope")
		w := httptest.NewRecorder()
		h.HandleGetNiche(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown niche", func(t *testing.T) {
		h := NewNicheHandler(&fakeNicheService{err: services.ErrNicheNotFound}, zaptest.NewLogger(t))

		id := uuid.NewString()
		req := authedRequest(http.MethodGet, "/api/v1/niches/"+id, nil, userID)
		req = withURLParam(req, "nicheID", id)
		w := httptest.NewRecorder()
		h.HandleGetNiche(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestNicheHandler_HandleDeleteNiche(t *testing.T) {
	userID := uuid.New()

	svc := &fakeNicheService{}
	h := NewNicheHandler(svc, zaptest.NewLogger(t))

	id := uuid.NewString()
	req := authedRequest(http.MethodDelete, "/api/v1/niches/"+id, nil, userID)
	req = withURLParam(req, "nicheID", id)
	w := httptest.NewRecorder()
	h.HandleDeleteNiche(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, svc.deleted)
}

func TestNicheHandler_HandleRescoreNiche(t *testing.T) {
	userID := uuid.New()
	niche := models.NewSavedNiche(userID, "rescore", "Books", nil)

	t.Run("returns the rescored niche", func(t *testing.T) {
		h := NewNicheHandler(&fakeNicheService{niche: niche}, zaptest.NewLogger(t))

		req := authedRequest(http.MethodPost, "/api/v1/niches/"+niche.ID.String()+"/rescore", nil, userID)
		req = withURLParam(req, "nicheID", niche.ID.String())
		w := httptest.NewRecorder()
		h.HandleRescoreNiche(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("budget rejection surfaces as 429", func(t *testing.T) {
		svc := &fakeNicheService{
			err: services.NewDomainError(services.ErrorTypeTokenBudget, "insufficient token budget", nil).
				WithDetail("tokens_deficit", 40),
		}
		h := NewNicheHandler(svc, zaptest.NewLogger(t))

		req := authedRequest(http.MethodPost, "/api/v1/niches/"+niche.ID.String()+"/rescore", nil, userID)
		req = withURLParam(req, "nicheID", niche.ID.String())
		w := httptest.NewRecorder()
		h.HandleRescoreNiche(w, req)

		assert.Equal(t, http.StatusTooManyRequests, w.Code)

		var response utils.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, float64(40), response.Details["tokens_deficit"])
	})
}
