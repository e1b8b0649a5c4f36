package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schnillerman/care-contracts-api/internal/models"
	"github.com/schnillerman/care-contracts-api/internal/service"
	appErrors "github.com/schnillerman/care-contracts-api/pkg/errors"
)

type contractServiceMock struct {
	validateResp *models.ContractVerdict
	validateErr  error
	createResp   *models.ContractPeriod
	createErr    error
	updateResp   *models.ContractPeriod
	updateErr    error
	deleteErr    error
	getResp      *models.ContractPeriod
	getErr       error
	listResp     []models.ContractPeriod
	listErr      error
	byClientResp []models.ContractPeriod
	byClientErr  error
	categories   []models.CareCategory

	lastCheck  service.CheckContractRequest
	lastFilter models.ContractFilter
}

func (m *contractServiceMock) Validate(ctx context.Context, req service.CheckContractRequest) (*models.ContractVerdict, error) {
	m.lastCheck = req
	return m.validateResp, m.validateErr
}

func (m *contractServiceMock) Create(ctx context.Context, req service.CreateContractRequest) (*models.ContractPeriod, error) {
	return m.createResp, m.createErr
}

func (m *contractServiceMock) Update(ctx context.Context, id string, req service.UpdateContractRequest) (*models.ContractPeriod, error) {
	return m.updateResp, m.updateErr
}

func (m *contractServiceMock) Delete(ctx context.Context, id string) error {
	return m.deleteErr
}

func (m *contractServiceMock) Get(ctx context.Context, id string) (*models.ContractPeriod, error) {
	return m.getResp, m.getErr
}

func (m *contractServiceMock) List(ctx context.Context, filter models.ContractFilter) ([]models.ContractPeriod, *models.Pagination, error) {
	m.lastFilter = filter
	return m.listResp, &models.Pagination{Page: 1, PageSize: 20, TotalCount: len(m.listResp)}, m.listErr
}

func (m *contractServiceMock) ListByClient(ctx context.Context, clientID string) ([]models.ContractPeriod, error) {
	return m.byClientResp, m.byClientErr
}

func (m *contractServiceMock) ListCategories(ctx context.Context) ([]models.CareCategory, error) {
	return m.categories, nil
}

type exportServiceMock struct {
	result *service.ExportResult
	err    error
}

func (m *exportServiceMock) ClientOverview(ctx context.Context, clientID string, format service.ExportFormat) (*service.ExportResult, error) {
	return m.result, m.err
}

func postJSON(c *gin.Context, path string, body string) {
	req, _ := http.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
}

func TestContractHandlerValidateWireShape(t *testing.T) {
	gin.SetMode(gin.TestMode)
	end := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	mockSvc := &contractServiceMock{
		validateResp: &models.ContractVerdict{
			Overlap: true,
			Message: "client already has a Personal care contract period (2024-01-01 - 2024-03-31)",
			Conflict: &models.ContractConflict{
				PeriodID:   "p-1",
				StartDate:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
				EndDate:    &end,
				CategoryID: "cat-1",
			},
		},
	}
	handler := NewContractHandler(mockSvc, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	postJSON(c, "/contracts/validate", `{"client_id":"client-1","category_id":"cat-1","start_date":"2024-02-01","end_date":"2024-04-01","exclude_id":"p-9"}`)

	handler.Validate(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "p-9", mockSvc.lastCheck.ExcludeID)

	var envelope struct {
		Data struct {
			Overlap  bool                     `json:"overlap"`
			Message  string                   `json:"message"`
			Conflict *models.ContractConflict `json:"conflict"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.True(t, envelope.Data.Overlap)
	assert.Contains(t, envelope.Data.Message, "Personal care")
	require.NotNil(t, envelope.Data.Conflict)
	assert.Equal(t, "p-1", envelope.Data.Conflict.PeriodID)
}

func TestContractHandlerValidateNoOverlap(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &contractServiceMock{validateResp: &models.ContractVerdict{Overlap: false}}
	handler := NewContractHandler(mockSvc, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	postJSON(c, "/contracts/validate", `{"client_id":"client-1","category_id":"cat-1","start_date":"2024-02-01"}`)

	handler.Validate(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, false, envelope.Data["overlap"])
	assert.NotContains(t, envelope.Data, "conflict")
}

func TestContractHandlerValidateInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewContractHandler(&contractServiceMock{}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	postJSON(c, "/contracts/validate", `{"client_id":"client-1"`)

	handler.Validate(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestContractHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &contractServiceMock{
		createResp: &models.ContractPeriod{ID: "p-1", ClientID: "client-1", CategoryID: "cat-1"},
	}
	handler := NewContractHandler(mockSvc, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	postJSON(c, "/contracts", `{"client_id":"client-1","category_id":"cat-1","start_date":"2024-02-01"}`)

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestContractHandlerCreateConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &contractServiceMock{
		createErr: appErrors.Clone(appErrors.ErrConflict, "client already has a Personal care contract period (2024-01-01 - open)"),
	}
	handler := NewContractHandler(mockSvc, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	postJSON(c, "/contracts", `{"client_id":"client-1","category_id":"cat-1","start_date":"2024-02-01"}`)

	handler.Create(c)
	require.Equal(t, http.StatusConflict, w.Code)

	var envelope struct {
		Error *appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, appErrors.ErrConflict.Code, envelope.Error.Code)
	assert.Contains(t, envelope.Error.Message, "Personal care")
}

func TestContractHandlerUpdateLockTimeout(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &contractServiceMock{updateErr: appErrors.ErrLockTimeout}
	handler := NewContractHandler(mockSvc, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "id", Value: "p-1"}}
	req, _ := http.NewRequest(http.MethodPut, "/contracts/p-1", bytes.NewBufferString(`{"client_id":"client-1","category_id":"cat-1","start_date":"2024-02-01"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Update(c)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestContractHandlerListParsesFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &contractServiceMock{}
	handler := NewContractHandler(mockSvc, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/contracts?clientId=client-1&activeOn=2024-06-01&page=2&limit=10", nil)
	c.Request = req

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "client-1", mockSvc.lastFilter.ClientID)
	require.NotNil(t, mockSvc.lastFilter.ActiveOn)
	assert.Equal(t, 2, mockSvc.lastFilter.Page)
	assert.Equal(t, 10, mockSvc.lastFilter.PageSize)
}

func TestContractHandlerListRejectsBadActiveOn(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewContractHandler(&contractServiceMock{}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/contracts?activeOn=June", nil)
	c.Request = req

	handler.List(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestContractHandlerExportDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewContractHandler(&contractServiceMock{}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "id", Value: "client-1"}}
	req, _ := http.NewRequest(http.MethodGet, "/clients/client-1/contracts/export", nil)
	c.Request = req

	handler.Export(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestContractHandlerExport(t *testing.T) {
	gin.SetMode(gin.TestMode)
	export := &exportServiceMock{result: &service.ExportResult{
		Content:     []byte("Category,Start,End\n"),
		ContentType: "text/csv",
		Filename:    "contracts-client-1.csv",
	}}
	handler := NewContractHandler(&contractServiceMock{}, export)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "id", Value: "client-1"}}
	req, _ := http.NewRequest(http.MethodGet, "/clients/client-1/contracts/export?format=csv", nil)
	c.Request = req

	handler.Export(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "contracts-client-1.csv")
}
