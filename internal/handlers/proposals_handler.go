package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"proposals-service/internal/models"
	"proposals-service/internal/repository"
)

type ProposalsHandler struct {
	repo repository.ProposalsRepository
}

func NewProposalsHandler(repo repository.ProposalsRepository) *ProposalsHandler {
	return &ProposalsHandler{repo: repo}
}

// ListRuns lists extraction runs for the tenant
// GET /api/v1/proposals/runs
func (h *ProposalsHandler) ListRuns(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	var req models.ListRunsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "VALIDATION_ERROR",
				Message: err.Error(),
			},
		})
		return
	}
	normalizePaging(&req.Page, &req.Limit)

	runs, total, err := h.repo.ListRuns(tenantID, &req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "LIST_FAILED",
				Message: "Failed to list extraction runs",
			},
		})
		return
	}

	c.JSON(http.StatusOK, models.ExtractionRunListResponse{
		Success:    true,
		Data:       runs,
		Pagination: paginationInfo(req.Page, req.Limit, total),
	})
}

// GetRun retrieves one extraction run, optionally with its full product graph
// GET /api/v1/proposals/runs/:id
func (h *ProposalsHandler) GetRun(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INVALID_RUN_ID",
				Message: "Invalid run ID format",
			},
		})
		return
	}

	includeProducts := c.DefaultQuery("includeProducts", "true") == "true"

	run, err := h.repo.GetRun(tenantID, runID, includeProducts)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "RUN_NOT_FOUND",
					Message: "Extraction run not found",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "GET_FAILED",
				Message: "Failed to retrieve extraction run",
			},
		})
		return
	}

	c.JSON(http.StatusOK, models.ExtractionRunResponse{Success: true, Data: run})
}

// DeleteRun soft deletes a run and everything extracted by it
// DELETE /api/v1/proposals/runs/:id
func (h *ProposalsHandler) DeleteRun(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INVALID_RUN_ID",
				Message: "Invalid run ID format",
			},
		})
		return
	}

	if err := h.repo.DeleteRun(tenantID, runID); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "DELETE_FAILED",
				Message: "Failed to delete extraction run",
			},
		})
		return
	}

	msg := "Extraction run deleted"
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Message: &msg})
}

// ListProducts lists extracted products with filters
// GET /api/v1/proposals/products
func (h *ProposalsHandler) ListProducts(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	var req models.ListProductsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "VALIDATION_ERROR",
				Message: err.Error(),
			},
		})
		return
	}
	normalizePaging(&req.Page, &req.Limit)

	products, total, err := h.repo.ListProducts(tenantID, &req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "LIST_FAILED",
				Message: "Failed to list products",
			},
		})
		return
	}

	c.JSON(http.StatusOK, models.ProductListResponse{
		Success:    true,
		Data:       products,
		Pagination: paginationInfo(req.Page, req.Limit, total),
	})
}

// GetProduct retrieves one extracted product with offers and images
// GET /api/v1/proposals/products/:id
func (h *ProposalsHandler) GetProduct(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INVALID_PRODUCT_ID",
				Message: "Invalid product ID format",
			},
		})
		return
	}

	product, err := h.repo.GetProduct(tenantID, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "PRODUCT_NOT_FOUND",
					Message: "Product not found",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "GET_FAILED",
				Message: "Failed to retrieve product",
			},
		})
		return
	}

	c.JSON(http.StatusOK, models.ProductResponse{Success: true, Data: product})
}

// ListUnresolvedImages lists a run's images that no product block claimed
// GET /api/v1/proposals/runs/:id/images/unresolved
func (h *ProposalsHandler) ListUnresolvedImages(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INVALID_RUN_ID",
				Message: "Invalid run ID format",
			},
		})
		return
	}

	images, err := h.repo.ListUnresolvedImages(tenantID, runID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "LIST_FAILED",
				Message: "Failed to list unresolved images",
			},
		})
		return
	}

	c.JSON(http.StatusOK, models.ProductImageListResponse{Success: true, Data: images})
}

// ReassignImage attaches an unresolved image to a product
// POST /api/v1/proposals/images/:id/reassign
func (h *ProposalsHandler) ReassignImage(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	imageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INVALID_IMAGE_ID",
				Message: "Invalid image ID format",
			},
		})
		return
	}

	var req models.ReassignImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "VALIDATION_ERROR",
				Message: err.Error(),
			},
		})
		return
	}

	if err := h.repo.ReassignImage(tenantID, imageID, req.ProductID, req.Type); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "NOT_FOUND",
					Message: "Image or product not found",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "REASSIGN_FAILED",
				Message: "Failed to reassign image",
			},
		})
		return
	}

	msg := "Image reassigned"
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Message: &msg})
}

// ExportRun renders a run's extracted records back into a normalized XLSX
// GET /api/v1/proposals/runs/:id/export
func (h *ProposalsHandler) ExportRun(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INVALID_RUN_ID",
				Message: "Invalid run ID format",
			},
		})
		return
	}

	run, err := h.repo.GetRun(tenantID, runID, true)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "RUN_NOT_FOUND",
					Message: "Extraction run not found",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "GET_FAILED",
				Message: "Failed to retrieve extraction run",
			},
		})
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Products"
	f.SetSheetName("Sheet1", sheetName)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})

	headers := []string{"Product", "Characteristics", "Custom Design", "Route", "Quantity", "Price", "Currency", "Sample Price", "Sample Time", "Source Rows"}
	for i, hdr := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, hdr)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	row := 2
	for _, p := range run.Products {
		writeOffer := func(offer *models.PriceOffer) {
			f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), p.Name)
			if p.Characteristics != nil {
				f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), *p.Characteristics)
			}
			if p.CustomDesign != nil {
				f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), *p.CustomDesign)
			}
			if offer != nil {
				if offer.RouteName != nil {
					f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), *offer.RouteName)
				}
				if offer.Quantity != nil {
					f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), *offer.Quantity)
				}
				if offer.Price != nil {
					f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), *offer.Price)
				}
				f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), offer.Currency)
			}
			if p.SamplePrice != nil {
				f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), *p.SamplePrice)
			}
			if p.SampleTime != nil {
				f.SetCellValue(sheetName, fmt.Sprintf("I%d", row), *p.SampleTime)
			}
			f.SetCellValue(sheetName, fmt.Sprintf("J%d", row), fmt.Sprintf("%d-%d", p.RowStart, p.RowEnd))
			row++
		}

		if len(p.Offers) == 0 {
			writeOffer(nil)
			continue
		}
		for _, offer := range p.Offers {
			writeOffer(offer)
		}
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=extraction_%s.xlsx", runID.String()[:8]))

	f.Write(c.Writer)
}

// normalizePaging clamps page/limit query values into sane bounds
func normalizePaging(page, limit *int) {
	if *page < 1 {
		*page = 1
	}
	if *limit < 1 {
		*limit = 20
	}
	if *limit > 100 {
		*limit = 100
	}
}

// paginationInfo builds the pagination envelope for list responses
func paginationInfo(page, limit int, total int64) *models.PaginationInfo {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return &models.PaginationInfo{
		Page:        page,
		Limit:       limit,
		Total:       total,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
	}
}
