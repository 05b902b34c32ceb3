package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"proposals-service/internal/models"
)

// MockProposalsRepository is a mock implementation of repository.ProposalsRepository
type MockProposalsRepository struct {
	mock.Mock
}

func (m *MockProposalsRepository) SaveExtractionRun(ctx context.Context, run *models.ExtractionRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockProposalsRepository) GetRun(tenantID string, runID uuid.UUID, includeProducts bool) (*models.ExtractionRun, error) {
	args := m.Called(tenantID, runID, includeProducts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ExtractionRun), args.Error(1)
}

func (m *MockProposalsRepository) ListRuns(tenantID string, req *models.ListRunsRequest) ([]models.ExtractionRun, int64, error) {
	args := m.Called(tenantID, req)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]models.ExtractionRun), args.Get(1).(int64), args.Error(2)
}

func (m *MockProposalsRepository) DeleteRun(tenantID string, runID uuid.UUID) error {
	args := m.Called(tenantID, runID)
	return args.Error(0)
}

func (m *MockProposalsRepository) FindRunsByHash(tenantID, fileHash string) ([]models.ExtractionRun, error) {
	args := m.Called(tenantID, fileHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ExtractionRun), args.Error(1)
}

func (m *MockProposalsRepository) GetProduct(tenantID string, productID uuid.UUID) (*models.Product, error) {
	args := m.Called(tenantID, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProposalsRepository) ListProducts(tenantID string, req *models.ListProductsRequest) ([]models.Product, int64, error) {
	args := m.Called(tenantID, req)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]models.Product), args.Get(1).(int64), args.Error(2)
}

func (m *MockProposalsRepository) ListUnresolvedImages(tenantID string, runID uuid.UUID) ([]models.ProductImage, error) {
	args := m.Called(tenantID, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ProductImage), args.Error(1)
}

func (m *MockProposalsRepository) ReassignImage(tenantID string, imageID, productID uuid.UUID, imageType models.ImageType) error {
	args := m.Called(tenantID, imageID, productID, imageType)
	return args.Error(0)
}

// Helper to setup test router
func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	return r
}

// Helper to set context values normally provided by middleware
func setContextValues(c *gin.Context, tenantID, userID string) {
	c.Set("tenant_id", tenantID)
	c.Set("user_id", userID)
}

// ===========================================
// List Runs Handler Tests
// ===========================================

func TestListRuns_Handler_Success(t *testing.T) {
	router := setupTestRouter()
	mockRepo := new(MockProposalsRepository)
	handler := NewProposalsHandler(mockRepo)

	runs := []models.ExtractionRun{
		{ID: uuid.New(), TenantID: "tenant-123", FileName: "proposal.xlsx", Status: models.ExtractionStatusCompleted},
		{ID: uuid.New(), TenantID: "tenant-123", FileName: "catalog.xlsx", Status: models.ExtractionStatusFailed},
	}
	mockRepo.On("ListRuns", "tenant-123", mock.AnythingOfType("*models.ListRunsRequest")).
		Return(runs, int64(2), nil)

	router.GET("/api/v1/proposals/runs", func(c *gin.Context) {
		setContextValues(c, "tenant-123", uuid.New().String())
		handler.ListRuns(c)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/proposals/runs?page=1&limit=20", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response models.ExtractionRunListResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response.Success)
	assert.Len(t, response.Data, 2)
	assert.Equal(t, int64(2), response.Pagination.Total)
	assert.Equal(t, 1, response.Pagination.TotalPages)
	assert.False(t, response.Pagination.HasNext)
	mockRepo.AssertExpectations(t)
}

func TestListRuns_Handler_NormalizesPaging(t *testing.T) {
	router := setupTestRouter()
	mockRepo := new(MockProposalsRepository)
	handler := NewProposalsHandler(mockRepo)

	mockRepo.On("ListRuns", "tenant-123", mock.MatchedBy(func(req *models.ListRunsRequest) bool {
		return req.Page == 1 && req.Limit == 100
	})).Return([]models.ExtractionRun{}, int64(0), nil)

	router.GET("/api/v1/proposals/runs", func(c *gin.Context) {
		setContextValues(c, "tenant-123", uuid.New().String())
		handler.ListRuns(c)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/proposals/runs?page=0&limit=500", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockRepo.AssertExpectations(t)
}

func TestListRuns_Handler_RepositoryError(t *testing.T) {
	router := setupTestRouter()
	mockRepo := new(MockProposalsRepository)
	handler := NewProposalsHandler(mockRepo)

	mockRepo.On("ListRuns", "tenant-123", mock.AnythingOfType("*models.ListRunsRequest")).
		Return(nil, int64(0), errors.New("db down"))

	router.GET("/api/v1/proposals/runs", func(c *gin.Context) {
		setContextValues(c, "tenant-123", uuid.New().String())
		handler.ListRuns(c)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/proposals/runs", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var response models.ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "LIST_FAILED", response.Error.Code)
}

// ===========================================
// Get Run Handler Tests
// ===========================================

func TestGetRun_Handler_Success(t *testing.T) {
	router := setupTestRouter()
	mockRepo := new(MockProposalsRepository)
	handler := NewProposalsHandler(mockRepo)

	runID := uuid.New()
	run := &models.ExtractionRun{
		ID:           runID,
		TenantID:     "tenant-123",
		FileName:     "proposal.xlsx",
		Status:       models.ExtractionStatusCompleted,
		ProductCount: 3,
	}
	mockRepo.On("GetRun", "tenant-123", runID, true).Return(run, nil)

	router.GET("/api/v1/proposals/runs/:id", func(c *gin.Context) {
		setContextValues(c, "tenant-123", uuid.New().String())
		handler.GetRun(c)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/proposals/runs/"+runID.String(), nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response models.ExtractionRunResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response.Success)
	assert.Equal(t, runID, response.Data.ID)
	assert.Equal(t, 3, response.Data.ProductCount)
	mockRepo.AssertExpectations(t)
}

func TestGetRun_Handler_ExcludeProducts(t *testing.T) {
	router := setupTestRouter()
	mockRepo := new(MockProposalsRepository)
	handler := NewProposalsHandler(mockRepo)

	runID := uuid.New()
	mockRepo.On("GetRun", "tenant-123", runID, false).
		Return(&models.ExtractionRun{ID: runID, TenantID: "tenant-123"}, nil)

	router.GET("/api/v1/proposals/runs/:id", func(c *gin.Context) {
		setContextValues(c, "tenant-123", uuid.New().String())
		handler.GetRun(c)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/proposals/runs/"+runID.String()+"?includeProducts=false", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockRepo.AssertExpectations(t)
}

func TestGetRun_Handler_InvalidID(t *testing.T) {
	router := setupTestRouter()
	mockRepo := new(MockProposalsRepository)
	handler := NewProposalsHandler(mockRepo)

	router.GET("/api/v1/proposals/runs/:id", func(c *gin.Context) {
		setContextValues(c, "tenant-123", uuid.New().String())
		handler.GetRun(c)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/proposals/runs/not-a-uuid", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response models.ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "INVALID_RUN_ID", response.Error.Code)
}

func TestGetRun_Handler_NotFound(t *testing.T) {
	router := setupTestRouter()
	mockRepo := new(MockProposalsRepository)
	handler := NewProposalsHandler(mockRepo)

	runID := uuid.New()
	mockRepo.On("GetRun", "tenant-123", runID, true).Return(nil, gorm.ErrRecordNotFound)

	router.GET("/api/v1/proposals/runs/:id", func(c *gin.Context) {
		setContextValues(c, "tenant-123", uuid.New().String())
		handler.GetRun(c)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/proposals/runs/"+runID.String(), nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var response models.ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "RUN_NOT_FOUND", response.Error.Code)
}

// ===========================================
// Delete Run Handler Tests
// ===========================================

func TestDeleteRun_Handler_Success(t *testing.T) {
	router := setupTestRouter()
	mockRepo := new(MockProposalsRepository)
	handler := NewProposalsHandler(mockRepo)

	runID := uuid.New()
	mockRepo.On("DeleteRun", "tenant-123", runID).Return(nil)

	router.DELETE("/api/v1/proposals/runs/:id", func(c *gin.Context) {
		setContextValues(c, "tenant-123", uuid.New().String())
		handler.DeleteRun(c)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/api/v1/proposals/runs/"+runID.String(), nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response models.SuccessResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response.Success)
	mockRepo.AssertExpectations(t)
}

// ===========================================
// List Products Handler Tests
// ===========================================

func TestListProducts_Handler_Success(t *testing.T) {
	router := setupTestRouter()
	mockRepo := new(MockProposalsRepository)
	handler := NewProposalsHandler(mockRepo)

	runID := uuid.New()
	products := []models.Product{
		{ID: uuid.New(), RunID: runID, TenantID: "tenant-123", Ref: 0, Name: "Ручка", RowStart: 2, RowEnd: 3},
		{ID: uuid.New(), RunID: runID, TenantID: "tenant-123", Ref: 1, Name: "Блокнот", RowStart: 4, RowEnd: 4},
	}
	mockRepo.On("ListProducts", "tenant-123", mock.MatchedBy(func(req *models.ListProductsRequest) bool {
		return req.RunID != nil && *req.RunID == runID
	})).Return(products, int64(2), nil)

	router.GET("/api/v1/proposals/products", func(c *gin.Context) {
		setContextValues(c, "tenant-123", uuid.New().String())
		handler.ListProducts(c)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/proposals/products?runId="+runID.String(), nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response models.ProductListResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response.Success)
	assert.Len(t, response.Data, 2)
	assert.Equal(t, "Ручка", response.Data[0].Name)
	mockRepo.AssertExpectations(t)
}

// ===========================================
// Get Product Handler Tests
// ===========================================

func TestGetProduct_Handler_Success(t *testing.T) {
	router := setupTestRouter()
	mockRepo := new(MockProposalsRepository)
	handler := NewProposalsHandler(mockRepo)

	productID := uuid.New()
	qty := 500
	price := 12.5
	product := &models.Product{
		ID:       productID,
		TenantID: "tenant-123",
		Name:     "Кардхолдер",
		Offers: []*models.PriceOffer{
			{ID: uuid.New(), Quantity: &qty, Price: &price, Currency: "USD", SourceRow: 2},
		},
	}
	mockRepo.On("GetProduct", "tenant-123", productID).Return(product, nil)

	router.GET("/api/v1/proposals/products/:id", func(c *gin.Context) {
		setContextValues(c, "tenant-123", uuid.New().String())
		handler.GetProduct(c)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/proposals/products/"+productID.String(), nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response models.ProductResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "Кардхолдер", response.Data.Name)
	assert.Len(t, response.Data.Offers, 1)
	mockRepo.AssertExpectations(t)
}

func TestGetProduct_Handler_NotFound(t *testing.T) {
	router := setupTestRouter()
	mockRepo := new(MockProposalsRepository)
	handler := NewProposalsHandler(mockRepo)

	productID := uuid.New()
	mockRepo.On("GetProduct", "tenant-123", productID).Return(nil, gorm.ErrRecordNotFound)

	router.GET("/api/v1/proposals/products/:id", func(c *gin.Context) {
		setContextValues(c, "tenant-123", uuid.New().String())
		handler.GetProduct(c)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/proposals/products/"+productID.String(), nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var response models.ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "PRODUCT_NOT_FOUND", response.Error.Code)
}

// ===========================================
// Unresolved Images Handler Tests
// ===========================================

func TestListUnresolvedImages_Handler_Success(t *testing.T) {
	router := setupTestRouter()
	mockRepo := new(MockProposalsRepository)
	handler := NewProposalsHandler(mockRepo)

	runID := uuid.New()
	images := []models.ProductImage{
		{ID: uuid.New(), RunID: runID, TenantID: "tenant-123", Type: models.ImageTypeAdditional, AnchorRow: 47, AnchorCol: 5},
	}
	mockRepo.On("ListUnresolvedImages", "tenant-123", runID).Return(images, nil)

	router.GET("/api/v1/proposals/runs/:id/images/unresolved", func(c *gin.Context) {
		setContextValues(c, "tenant-123", uuid.New().String())
		handler.ListUnresolvedImages(c)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/proposals/runs/"+runID.String()+"/images/unresolved", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response models.ProductImageListResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Len(t, response.Data, 1)
	assert.Nil(t, response.Data[0].ProductID)
	mockRepo.AssertExpectations(t)
}

// ===========================================
// Reassign Image Handler Tests
// ===========================================

func TestReassignImage_Handler_Success(t *testing.T) {
	router := setupTestRouter()
	mockRepo := new(MockProposalsRepository)
	handler := NewProposalsHandler(mockRepo)

	imageID := uuid.New()
	productID := uuid.New()
	mockRepo.On("ReassignImage", "tenant-123", imageID, productID, models.ImageTypeMain).Return(nil)

	router.POST("/api/v1/proposals/images/:id/reassign", func(c *gin.Context) {
		setContextValues(c, "tenant-123", uuid.New().String())
		handler.ReassignImage(c)
	})

	body, _ := json.Marshal(models.ReassignImageRequest{ProductID: productID, Type: models.ImageTypeMain})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/proposals/images/"+imageID.String()+"/reassign", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockRepo.AssertExpectations(t)
}

func TestReassignImage_Handler_MissingProduct(t *testing.T) {
	router := setupTestRouter()
	mockRepo := new(MockProposalsRepository)
	handler := NewProposalsHandler(mockRepo)

	router.POST("/api/v1/proposals/images/:id/reassign", func(c *gin.Context) {
		setContextValues(c, "tenant-123", uuid.New().String())
		handler.ReassignImage(c)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/proposals/images/"+uuid.New().String()+"/reassign", bytes.NewBuffer([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response models.ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "VALIDATION_ERROR", response.Error.Code)
}

func TestReassignImage_Handler_NotFound(t *testing.T) {
	router := setupTestRouter()
	mockRepo := new(MockProposalsRepository)
	handler := NewProposalsHandler(mockRepo)

	imageID := uuid.New()
	productID := uuid.New()
	mockRepo.On("ReassignImage", "tenant-123", imageID, productID, models.ImageType("")).
		Return(gorm.ErrRecordNotFound)

	router.POST("/api/v1/proposals/images/:id/reassign", func(c *gin.Context) {
		setContextValues(c, "tenant-123", uuid.New().String())
		handler.ReassignImage(c)
	})

	body, _ := json.Marshal(models.ReassignImageRequest{ProductID: productID})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/proposals/images/"+imageID.String()+"/reassign", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	mockRepo.AssertExpectations(t)
}

// ===========================================
// Export Run Handler Tests
// ===========================================

func TestExportRun_Handler_Success(t *testing.T) {
	router := setupTestRouter()
	mockRepo := new(MockProposalsRepository)
	handler := NewProposalsHandler(mockRepo)

	runID := uuid.New()
	qty1, qty2 := 500, 1000
	price1, price2 := 12.5, 10.0
	characteristics := "Кожа, 10x7 см"
	run := &models.ExtractionRun{
		ID:       runID,
		TenantID: "tenant-123",
		FileName: "proposal.xlsx",
		Status:   models.ExtractionStatusCompleted,
		Products: []*models.Product{
			{
				Name:            "Кардхолдер",
				Characteristics: &characteristics,
				RowStart:        2,
				RowEnd:          3,
				Offers: []*models.PriceOffer{
					{Quantity: &qty1, Price: &price1, Currency: "USD", SourceRow: 2},
					{Quantity: &qty2, Price: &price2, Currency: "USD", SourceRow: 3},
				},
			},
			{Name: "Блокнот", RowStart: 4, RowEnd: 4},
		},
	}
	mockRepo.On("GetRun", "tenant-123", runID, true).Return(run, nil)

	router.GET("/api/v1/proposals/runs/:id/export", func(c *gin.Context) {
		setContextValues(c, "tenant-123", uuid.New().String())
		handler.ExportRun(c)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/proposals/runs/"+runID.String()+"/export", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "extraction_"+runID.String()[:8])

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	assert.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Products")
	assert.NoError(t, err)
	// header + one row per offer + one row for the offer-less product
	assert.Len(t, rows, 4)
	assert.Equal(t, "Product", rows[0][0])
	assert.Equal(t, "Кардхолдер", rows[1][0])
	assert.Equal(t, "500", rows[1][4])
	assert.Equal(t, "Кардхолдер", rows[2][0])
	assert.Equal(t, "1000", rows[2][4])
	assert.Equal(t, "Блокнот", rows[3][0])
	mockRepo.AssertExpectations(t)
}
