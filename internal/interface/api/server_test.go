package api_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resellkit/correlate/internal/interface/api"
	"github.com/resellkit/correlate/internal/module/correlation/application"
	testutil "github.com/resellkit/correlate/internal/module/correlation/testing"
	"github.com/resellkit/correlate/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestServer はモックを使ったオーケストレータごとサーバを組み立てます
func newTestServer(t *testing.T, jobRepo *testutil.MockJobRepository, correlationRepo *testutil.MockCorrelationRepository) (*api.Server, *application.Orchestrator) {
	t.Helper()

	seed := testutil.TestProduct("B01KJEOCDW", "LEGO Creator Set", "LEGO", 165793011)
	catalog := &testutil.MockCatalogClient{
		LookupByIDsFunc: func(ctx context.Context, asins []string) ([]models.ProductDescriptor, error) {
			if len(asins) == 1 && asins[0] == "B01KJEOCDW" {
				return []models.ProductDescriptor{seed}, nil
			}
			return nil, nil
		},
	}

	orchestrator := application.NewOrchestrator(
		catalog, &testutil.MockSimilarityJudge{}, correlationRepo, jobRepo,
		application.DefaultPipelineConfig(), testLogger())

	return api.NewServer(orchestrator, "", testLogger()), orchestrator
}

func TestServer_Submit_Accepted(t *testing.T) {
	// Setup
	server, orchestrator := newTestServer(t, &testutil.MockJobRepository{}, &testutil.MockCorrelationRepository{})
	defer orchestrator.Wait()

	body := `{"seedAsin": "B01KJEOCDW", "ownerId": "owner-1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/correlations/jobs", strings.NewReader(body))
	rec := httptest.NewRecorder()

	// Execute
	server.Router().ServeHTTP(rec, req)

	// Assert
	assert.Equal(t, http.StatusAccepted, rec.Code)

	var resp struct {
		JobID  uuid.UUID        `json:"jobId"`
		Status models.JobStatus `json:"status"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEqual(t, uuid.Nil, resp.JobID)
	assert.Equal(t, models.JobStatusPending, resp.Status)
}

func TestServer_Submit_InvalidASIN(t *testing.T) {
	// Setup
	server, _ := newTestServer(t, &testutil.MockJobRepository{}, &testutil.MockCorrelationRepository{})

	body := `{"seedAsin": "short", "ownerId": "owner-1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/correlations/jobs", strings.NewReader(body))
	rec := httptest.NewRecorder()

	// Execute
	server.Router().ServeHTTP(rec, req)

	// Assert
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Submit_MissingFields(t *testing.T) {
	// Setup
	server, _ := newTestServer(t, &testutil.MockJobRepository{}, &testutil.MockCorrelationRepository{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/correlations/jobs", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	// Execute
	server.Router().ServeHTTP(rec, req)

	// Assert
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Submit_ConflictWhenActive(t *testing.T) {
	// Setup
	jobRepo := &testutil.MockJobRepository{
		FindActiveFunc: func(ctx context.Context, seedASIN, ownerID string) (*models.CorrelationJob, error) {
			return &models.CorrelationJob{ID: uuid.New(), Status: models.JobStatusProcessing}, nil
		},
	}
	server, _ := newTestServer(t, jobRepo, &testutil.MockCorrelationRepository{})

	body := `{"seedAsin": "B01KJEOCDW", "ownerId": "owner-1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/correlations/jobs", strings.NewReader(body))
	rec := httptest.NewRecorder()

	// Execute
	server.Router().ServeHTTP(rec, req)

	// Assert
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_Status_NotFound(t *testing.T) {
	// Setup
	server, _ := newTestServer(t, &testutil.MockJobRepository{}, &testutil.MockCorrelationRepository{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/correlations/jobs/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()

	// Execute
	server.Router().ServeHTTP(rec, req)

	// Assert
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Status_InvalidID(t *testing.T) {
	// Setup
	server, _ := newTestServer(t, &testutil.MockJobRepository{}, &testutil.MockCorrelationRepository{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/correlations/jobs/not-a-uuid", nil)
	rec := httptest.NewRecorder()

	// Execute
	server.Router().ServeHTTP(rec, req)

	// Assert
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Check_ReturnsCorrelations(t *testing.T) {
	// Setup
	correlationRepo := &testutil.MockCorrelationRepository{
		QueryBySeedFunc: func(ctx context.Context, seedASIN, ownerID string) ([]models.CorrelationRecord, error) {
			return []models.CorrelationRecord{
				{OwnerID: ownerID, SeedASIN: seedASIN, CandidateASIN: "B01VARAAAA", Origin: models.OriginVariation},
			}, nil
		},
	}
	server, _ := newTestServer(t, &testutil.MockJobRepository{}, correlationRepo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/correlations/?asin=B01KJEOCDW&ownerId=owner-1", nil)
	rec := httptest.NewRecorder()

	// Execute
	server.Router().ServeHTTP(rec, req)

	// Assert
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Exists       bool                       `json:"exists"`
		Correlations []models.CorrelationRecord `json:"correlations"`
		Count        int                        `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Exists)
	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.Correlations, 1)
	assert.Equal(t, "B01VARAAAA", resp.Correlations[0].CandidateASIN)
}

func TestServer_Check_EmptyResult(t *testing.T) {
	// Setup
	server, _ := newTestServer(t, &testutil.MockJobRepository{}, &testutil.MockCorrelationRepository{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/correlations/?asin=B01KJEOCDW&ownerId=owner-1", nil)
	rec := httptest.NewRecorder()

	// Execute
	server.Router().ServeHTTP(rec, req)

	// Assert
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Exists bool `json:"exists"`
		Count  int  `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Exists)
	assert.Equal(t, 0, resp.Count)
}

func TestServer_BearerAuth(t *testing.T) {
	// Setup
	orchestrator := application.NewOrchestrator(
		&testutil.MockCatalogClient{}, &testutil.MockSimilarityJudge{},
		&testutil.MockCorrelationRepository{}, &testutil.MockJobRepository{},
		application.DefaultPipelineConfig(), testLogger())
	server := api.NewServer(orchestrator, "secret-token", testLogger())

	// Execute: トークンなし
	req := httptest.NewRequest(http.MethodGet, "/api/v1/correlations/?asin=B01KJEOCDW&ownerId=owner-1", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	// Assert
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Execute: 正しいトークン
	req = httptest.NewRequest(http.MethodGet, "/api/v1/correlations/?asin=B01KJEOCDW&ownerId=owner-1", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	rec = httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	// Assert
	assert.Equal(t, http.StatusOK, rec.Code)
}
