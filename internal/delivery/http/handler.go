package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/usecase"
)

// maxImportBytes bounds the size of an uploaded export document
const maxImportBytes = 8 << 20

// Handler holds dependencies for HTTP handlers
type Handler struct {
	service *usecase.DashboardService
}

// NewHandler creates a new HTTP handler. A nil service makes every
// dashboard endpoint answer 503.
func NewHandler(service *usecase.DashboardService) *Handler {
	return &Handler{service: service}
}

// ComparisonResponse adds display strings to a comparison row
type ComparisonResponse struct {
	domain.Comparison
	SavingsDisplay       string `json:"savingsDisplay"`
	SavingsAmountDisplay string `json:"savingsAmountDisplay"`
}

// StatsResponse adds display strings to dashboard stats
type StatsResponse struct {
	domain.Stats
	AverageSavingsDisplay string             `json:"averageSavingsDisplay"`
	LastRefresh           *domain.RefreshJob `json:"lastRefresh,omitempty"`
}

type priceRequest struct {
	Price *float64 `json:"price" binding:"omitempty,min=0"`
}

type supplierStatusRequest struct {
	Status domain.SupplierStatus `json:"status" binding:"required,oneof=active pending inactive error"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	body := gin.H{
		"status":  "healthy",
		"service": "pricelens-backend",
		"version": "1.0.0",
	}
	if h.service != nil {
		snapshot := h.service.Current()
		body["snapshotVersion"] = snapshot.Version
		body["lastUpdated"] = snapshot.UpdatedAt
	}
	c.JSON(http.StatusOK, body)
}

// ListProducts returns the catalog
func (h *Handler) ListProducts(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": h.service.Products()})
}

// CreateProduct adds a product to the catalog
func (h *Handler) CreateProduct(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	var input domain.ProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
		return
	}

	product, err := h.service.CreateProduct(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

// UpdateProduct edits a product
func (h *Handler) UpdateProduct(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	id, ok := productIDParam(c, "id")
	if !ok {
		return
	}

	var input domain.ProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
		return
	}

	product, err := h.service.UpdateProduct(c.Request.Context(), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// DeleteProduct removes a product and its prices
func (h *Handler) DeleteProduct(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	id, ok := productIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteProduct(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListSuppliers returns the supplier roster
func (h *Handler) ListSuppliers(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"suppliers": h.service.Suppliers()})
}

// CreateSupplier registers a new supplier in pending state
func (h *Handler) CreateSupplier(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	var input domain.SupplierInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
		return
	}

	supplier, err := h.service.CreateSupplier(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, supplier)
}

// SetSupplierStatus changes a supplier's lifecycle status
func (h *Handler) SetSupplierStatus(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	id, ok := supplierIDParam(c, "id")
	if !ok {
		return
	}

	var req supplierStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
		return
	}

	supplier, err := h.service.SetSupplierStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, supplier)
}

// DeleteSupplier removes a supplier and its price column
func (h *Handler) DeleteSupplier(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	id, ok := supplierIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteSupplier(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetPrice records a price, or clears it when the body carries null
func (h *Handler) SetPrice(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	productID, ok := productIDParam(c, "productId")
	if !ok {
		return
	}
	supplierID, ok := supplierIDParam(c, "supplierId")
	if !ok {
		return
	}

	var req priceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", domain.ErrInvalidPrice, err))
		return
	}

	if err := h.service.SetPrice(c.Request.Context(), productID, supplierID, req.Price); err != nil {
		respondError(c, err)
		return
	}

	comparison, err := h.service.Comparison(c.Request.Context(), productID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toComparisonResponse(comparison))
}

// ListComparisons returns the comparison table, optionally filtered and sorted
func (h *Handler) ListComparisons(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	query, err := parseComparisonQuery(c)
	if err != nil {
		respondError(c, err)
		return
	}

	comparisons, err := h.service.Comparisons(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}

	rows := make([]ComparisonResponse, 0, len(comparisons))
	for _, cmp := range comparisons {
		rows = append(rows, toComparisonResponse(cmp))
	}
	c.JSON(http.StatusOK, gin.H{
		"comparisons": rows,
		"count":       len(rows),
	})
}

// GetComparison returns one product's comparison
func (h *Handler) GetComparison(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	id, ok := productIDParam(c, "productId")
	if !ok {
		return
	}

	comparison, err := h.service.Comparison(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toComparisonResponse(comparison))
}

// GetStats returns the dashboard headline figures
func (h *Handler) GetStats(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	stats := h.service.Stats(c.Request.Context())
	resp := StatsResponse{
		Stats:                 stats,
		AverageSavingsDisplay: stats.AverageSavingsDisplay(),
	}
	if job, ok := h.service.RefreshStatus(); ok {
		resp.LastRefresh = &job
	}
	c.JSON(http.StatusOK, resp)
}

// StartRefresh launches a background refresh and answers 202 with the job
func (h *Handler) StartRefresh(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	job, err := h.service.StartRefresh(c.Request.Context())
	if err != nil {
		if errors.Is(err, domain.ErrRefreshInProgress) {
			c.JSON(http.StatusConflict, gin.H{
				"error": err.Error(),
				"job":   job,
			})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, job)
}

// GetRefresh returns the latest refresh job
func (h *Handler) GetRefresh(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	job, ok := h.service.RefreshStatus()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no refresh has run yet"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// CancelRefresh aborts the running refresh
func (h *Handler) CancelRefresh(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	if err := h.service.CancelRefresh(); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Export downloads the current snapshot as a JSON document
func (h *Handler) Export(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	file, err := h.service.Export(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, file.Filename))
	c.Data(http.StatusOK, "application/json", file.Data)
}

// Import replaces the catalog with an uploaded export document
func (h *Handler) Import(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportBytes))
	if err != nil {
		respondError(c, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
		return
	}

	snapshot, err := h.service.Import(c.Request.Context(), data)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"version":   snapshot.Version,
		"products":  len(snapshot.Products),
		"suppliers": len(snapshot.Suppliers),
	})
}

// GetSubscription reports the tier and its quota usage
func (h *Handler) GetSubscription(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	c.JSON(http.StatusOK, h.service.Usage())
}

func (h *Handler) ready(c *gin.Context) bool {
	if h.service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "dashboard service not configured"})
		return false
	}
	return true
}

func toComparisonResponse(cmp domain.Comparison) ComparisonResponse {
	return ComparisonResponse{
		Comparison:           cmp,
		SavingsDisplay:       cmp.SavingsDisplay(),
		SavingsAmountDisplay: domain.FormatCurrency(cmp.SavingsAmount),
	}
}

// parseComparisonQuery reads ?category=a&category=b&q=&min_price=&max_price=&sort=&dir=
func parseComparisonQuery(c *gin.Context) (usecase.ComparisonQuery, error) {
	query := usecase.ComparisonQuery{
		Search:    c.Query("q"),
		Sort:      usecase.SortField(strings.ToLower(c.Query("sort"))),
		Direction: usecase.SortDirection(strings.ToLower(c.Query("dir"))),
	}

	for _, raw := range c.QueryArray("category") {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				query.Categories = append(query.Categories, domain.Category(part))
			}
		}
	}

	var err error
	if query.MinPrice, err = optionalFloat(c, "min_price"); err != nil {
		return query, err
	}
	if query.MaxPrice, err = optionalFloat(c, "max_price"); err != nil {
		return query, err
	}
	return query, nil
}

func optionalFloat(c *gin.Context, key string) (*float64, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a number", domain.ErrInvalidRequest, key)
	}
	return &v, nil
}

func productIDParam(c *gin.Context, name string) (domain.ProductID, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		respondError(c, fmt.Errorf("%w: invalid product id %q", domain.ErrInvalidRequest, c.Param(name)))
		return 0, false
	}
	return domain.ProductID(id), true
}

func supplierIDParam(c *gin.Context, name string) (domain.SupplierID, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		respondError(c, fmt.Errorf("%w: invalid supplier id %q", domain.ErrInvalidRequest, c.Param(name)))
		return 0, false
	}
	return domain.SupplierID(id), true
}

// respondError maps domain errors onto HTTP status codes
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrProductNotFound), errors.Is(err, domain.ErrSupplierNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrInvalidPrice), errors.Is(err, domain.ErrInvalidExport):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrQuotaExceeded):
		status = http.StatusPaymentRequired
	case errors.Is(err, domain.ErrFeatureUnavailable):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrRefreshInProgress), errors.Is(err, domain.ErrNoRefreshInProgress):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrPriceFeedFailure):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		log.WithFields(log.Fields{
			"component": "http",
			"path":      c.FullPath(),
		}).WithError(err).Error("request failed")
	}

	c.JSON(status, gin.H{
		"error":     err.Error(),
		"timestamp": time.Now().UTC(),
	})
}
