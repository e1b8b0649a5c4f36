package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/schnillerman/care-contracts-api/internal/models"
	"github.com/schnillerman/care-contracts-api/internal/service"
	appErrors "github.com/schnillerman/care-contracts-api/pkg/errors"
	"github.com/schnillerman/care-contracts-api/pkg/response"
)

type contractService interface {
	Validate(ctx context.Context, req service.CheckContractRequest) (*models.ContractVerdict, error)
	Create(ctx context.Context, req service.CreateContractRequest) (*models.ContractPeriod, error)
	Update(ctx context.Context, id string, req service.UpdateContractRequest) (*models.ContractPeriod, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*models.ContractPeriod, error)
	List(ctx context.Context, filter models.ContractFilter) ([]models.ContractPeriod, *models.Pagination, error)
	ListByClient(ctx context.Context, clientID string) ([]models.ContractPeriod, error)
	ListCategories(ctx context.Context) ([]models.CareCategory, error)
}

type exportService interface {
	ClientOverview(ctx context.Context, clientID string, format service.ExportFormat) (*service.ExportResult, error)
}

// ContractHandler manages contract period endpoints.
type ContractHandler struct {
	service contractService
	export  exportService
}

// NewContractHandler constructs handler. export may be nil when exports are disabled.
func NewContractHandler(svc contractService, export exportService) *ContractHandler {
	return &ContractHandler{service: svc, export: export}
}

// Validate godoc
// @Summary Advisory overlap check for a contract period
// @Tags Contracts
// @Accept json
// @Produce json
// @Param payload body service.CheckContractRequest true "Candidate period"
// @Success 200 {object} response.Envelope
// @Router /contracts/validate [post]
func (h *ContractHandler) Validate(c *gin.Context) {
	var req service.CheckContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	verdict, err := h.service.Validate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, verdict, nil)
}

// Create godoc
// @Summary Create contract period
// @Tags Contracts
// @Accept json
// @Produce json
// @Param payload body service.CreateContractRequest true "Contract payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /contracts [post]
func (h *ContractHandler) Create(c *gin.Context) {
	var req service.CreateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	period, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, period)
}

// Update godoc
// @Summary Update contract period
// @Tags Contracts
// @Accept json
// @Produce json
// @Param id path string true "Contract period ID"
// @Param payload body service.UpdateContractRequest true "Contract payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /contracts/{id} [put]
func (h *ContractHandler) Update(c *gin.Context) {
	var req service.UpdateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	period, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, period, nil)
}

// Delete godoc
// @Summary Delete contract period
// @Tags Contracts
// @Param id path string true "Contract period ID"
// @Success 204
// @Router /contracts/{id} [delete]
func (h *ContractHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Get godoc
// @Summary Get contract period
// @Tags Contracts
// @Produce json
// @Param id path string true "Contract period ID"
// @Success 200 {object} response.Envelope
// @Router /contracts/{id} [get]
func (h *ContractHandler) Get(c *gin.Context) {
	period, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, period, nil)
}

// List godoc
// @Summary List contract periods
// @Tags Contracts
// @Produce json
// @Param clientId query string false "Filter by client"
// @Param categoryId query string false "Filter by category"
// @Param activeOn query string false "Only periods covering this date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /contracts [get]
func (h *ContractHandler) List(c *gin.Context) {
	var filter models.ContractFilter
	filter.ClientID = c.Query("clientId")
	filter.CategoryID = c.Query("categoryId")
	if raw := c.Query("activeOn"); raw != "" {
		day, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "activeOn must be a YYYY-MM-DD date"))
			return
		}
		filter.ActiveOn = &day
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	periods, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, periods, pagination)
}

// ListByClient godoc
// @Summary List a client's contract periods
// @Tags Contracts
// @Produce json
// @Param id path string true "Client ID"
// @Success 200 {object} response.Envelope
// @Router /clients/{id}/contracts [get]
func (h *ContractHandler) ListByClient(c *gin.Context) {
	periods, err := h.service.ListByClient(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, periods, nil)
}

// ListCategories godoc
// @Summary List care categories
// @Tags Categories
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /categories [get]
func (h *ContractHandler) ListCategories(c *gin.Context) {
	categories, err := h.service.ListCategories(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, categories, nil)
}

// Export godoc
// @Summary Export a client's contract overview
// @Tags Contracts
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Client ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200
// @Router /clients/{id}/contracts/export [get]
func (h *ContractHandler) Export(c *gin.Context) {
	if h.export == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "exports are disabled"))
		return
	}
	format := service.ExportFormat(c.DefaultQuery("format", string(service.ExportFormatCSV)))
	result, err := h.export.ClientOverview(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Content)
}
