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

type fakeAutosourcingService struct {
	job    *models.AutosourcingJob
	picks  []*models.JobPick
	err    error
	runErr error

	gotEnabled bool
	ran        bool
}

func (s *fakeAutosourcingService) CreateJob(_ context.Context, userID uuid.UUID, name, category string, criteria models.JobCriteria, intervalMinutes int) (*models.AutosourcingJob, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.job, nil
}

func (s *fakeAutosourcingService) GetJob(_ context.Context, jobID, userID uuid.UUID) (*models.AutosourcingJob, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.job, nil
}

func (s *fakeAutosourcingService) ListJobs(_ context.Context, userID uuid.UUID, limit, offset int) ([]*models.AutosourcingJob, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []*models.AutosourcingJob{s.job}, nil
}

func (s *fakeAutosourcingService) SetEnabled(_ context.Context, jobID, userID uuid.UUID, enabled bool) (*models.AutosourcingJob, error) {
	s.gotEnabled = enabled
	if s.err != nil {
		return nil, s.err
	}
	return s.job, nil
}

func (s *fakeAutosourcingService) DeleteJob(_ context.Context, jobID, userID uuid.UUID) error {
	return s.err
}

func (s *fakeAutosourcingService) ListPicks(_ context.Context, jobID, userID uuid.UUID) ([]*models.JobPick, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.picks, nil
}

func (s *fakeAutosourcingService) RunJob(_ context.Context, job *models.AutosourcingJob) error {
	s.ran = true
	return s.runErr
}

func testCriteria() models.JobCriteria {
	return models.JobCriteria{MinROIPercent: 30, MinVelocityScore: 50, MaxResults: 10}
}

func TestAutosourcingHandler_HandleCreateJob(t *testing.T) {
	userID := uuid.New()

	t.Run("creates the job", func(t *testing.T) {
		svc := &fakeAutosourcingService{
			job: models.NewAutosourcingJob(userID, "nightly textbooks", "Books", testCriteria(), 60),
		}
		h := NewAutosourcingHandler(svc, zaptest.NewLogger(t))

		body, _ := json.Marshal(CreateJobRequest{
			Name:            "nightly textbooks",
			Category:        "Books",
			Criteria:        testCriteria(),
			IntervalMinutes: 60,
		})
		w := httptest.NewRecorder()
		h.HandleCreateJob(w, authedRequest(http.MethodPost, "/api/v1/autosourcing", body, userID))

		assert.Equal(t, http.StatusCreated, w.Code)

		var response utils.SuccessResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		data := response.Data.(map[string]interface{})
		assert.Equal(t, string(models.JobStatusNever), data["last_status"])
	})

	t.Run("rejects unauthenticated requests", func(t *testing.T) {
		h := NewAutosourcingHandler(&fakeAutosourcingService{}, zaptest.NewLogger(t))

		body, _ := json.Marshal(CreateJobRequest{Name: "n", Category: "Books", Criteria: testCriteria(), IntervalMinutes: 60})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/autosourcing", bytes.NewReader(body))
		w := httptest.NewRecorder()
		h.HandleCreateJob(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("rejects interval below the floor", func(t *testing.T) {
		h := NewAutosourcingHandler(&fakeAutosourcingService{}, zaptest.NewLogger(t))

		body, _ := json.Marshal(CreateJobRequest{Name: "fast", Category: "Books", Criteria: testCriteria(), IntervalMinutes: 5})
		w := httptest.NewRecorder()
		h.HandleCreateJob(w, authedRequest(http.MethodPost, "/api/v1/autosourcing", body, userID))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAutosourcingHandler_HandleSetJobEnabled(t *testing.T) {
	userID := uuid.New()
	job := models.NewAutosourcingJob(userID, "toggle", "Books", testCriteria(), 60)

	t.Run("disables the job", func(t *testing.T) {
		job.Enabled = false
		svc := &fakeAutosourcingService{job: job}
		h := NewAutosourcingHandler(svc, zaptest.NewLogger(t))

		body, _ := json.Marshal(SetJobEnabledRequest{Enabled: false})
		req := authedRequest(http.MethodPut, "/api/v1/autosourcing/"+job.ID.String()+"/enabled", body, userID)
		req = withURLParam(req, "jobID", job.ID.String())
		w := httptest.NewRecorder()
		h.HandleSetJobEnabled(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.False(t, svc.gotEnabled)
	})

	t.Run("unknown job", func(t *testing.T) {
		h := NewAutosourcingHandler(&fakeAutosourcingService{err: services.ErrJobNotFound}, zaptest.NewLogger(t))

		id := uuid.NewString()
		body, _ := json.Marshal(SetJobEnabledRequest{Enabled: true})
		req := authedRequest(http.MethodPut, "/api/v1/autosourcing/"+id+"/enabled", body, userID)
		req = withURLParam(req, "jobID", id)
		w := httptest.NewRecorder()
		h.HandleSetJobEnabled(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestAutosourcingHandler_HandleRunJob(t *testing.T) {
	userID := uuid.New()
	job := models.NewAutosourcingJob(userID, "manual", "Books", testCriteria(), 60)

	t.Run("runs and returns picks", func(t *testing.T) {
		svc := &fakeAutosourcingService{
			job:   job,
			picks: []*models.JobPick{{ID: uuid.New(), JobID: job.ID, ASIN: "B000TEST01"}},
		}
		h := NewAutosourcingHandler(svc, zaptest.NewLogger(t))

		req := authedRequest(http.MethodPost, "/api/v1/autosourcing/"+job.ID.String()+"/run", nil, userID)
		req = withURLParam(req, "jobID", job.ID.String())
		w := httptest.NewRecorder()
		h.HandleRunJob(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, svc.ran)

		var response utils.SuccessResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		picks := response.Data.([]interface{})
		require.Len(t, picks, 1)
		pick := picks[0].(map[string]interface{})
		assert.Equal(t, "B000TEST01", pick["asin"])
	})

	t.Run("breaker open surfaces as 503", func(t *testing.T) {
		svc := &fakeAutosourcingService{
			job: job,
			runErr: services.NewDomainError(services.ErrorTypeCircuitOpen, "pricing API circuit breaker is open", nil).
				WithDetail("retry_after_seconds", 12),
		}
		h := NewAutosourcingHandler(svc, zaptest.NewLogger(t))

		req := authedRequest(http.MethodPost, "/api/v1/autosourcing/"+job.ID.String()+"/run", nil, userID)
		req = withURLParam(req, "jobID", job.ID.String())
		w := httptest.NewRecorder()
		h.HandleRunJob(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "12", w.Header().Get("Retry-After"))
	})
}

func TestAutosourcingHandler_HandleListPicks(t *testing.T) {
	userID := uuid.New()
	job := models.NewAutosourcingJob(userID, "picks", "Books", testCriteria(), 60)

	svc := &fakeAutosourcingService{
		job: job,
		picks: []*models.JobPick{
			{ID: uuid.New(), JobID: job.ID, ASIN: "B000TEST01"},
			{ID: uuid.New(), JobID: job.ID, ASIN: "B000TEST02"},
		},
	}
	h := NewAutosourcingHandler(svc, zaptest.NewLogger(t))

	req := authedRequest(http.MethodGet, "/api/v1/autosourcing/"+job.ID.String()+"/picks", nil, userID)
	req = withURLParam(req, "jobID", job.ID.String())
	w := httptest.NewRecorder()
	h.HandleListPicks(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response utils.SuccessResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	picks := response.Data.([]interface{})
	assert.Len(t, picks, 2)
}
