package handlers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"gorm.io/datatypes"

	"proposals-service/internal/clients"
	"proposals-service/internal/config"
	"proposals-service/internal/events"
	"proposals-service/internal/extractor"
	"proposals-service/internal/metrics"
	"proposals-service/internal/models"
	"proposals-service/internal/repository"
)

type ExtractHandler struct {
	cfg       *config.Config
	repo      repository.ProposalsRepository
	media     *clients.MediaClient
	publisher *events.Publisher
	logger    *logrus.Entry
}

func NewExtractHandler(cfg *config.Config, repo repository.ProposalsRepository, media *clients.MediaClient, publisher *events.Publisher, logger *logrus.Logger) *ExtractHandler {
	return &ExtractHandler{
		cfg:       cfg,
		repo:      repo,
		media:     media,
		publisher: publisher,
		logger:    logger.WithField("component", "extract-handler"),
	}
}

// ImportProposal extracts products, price offers and images from an uploaded
// proposal workbook and persists them as one extraction run
// POST /api/v1/proposals/import
func (h *ExtractHandler) ImportProposal(c *gin.Context) {
	tenantID := c.GetString("tenant_id")
	userID := c.GetString("user_id")
	startTime := time.Now()

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "FILE_REQUIRED",
				Message: "Please upload an XLSX file",
			},
		})
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".xlsx") {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INVALID_FORMAT",
				Message: "Only XLSX files are supported",
			},
		})
		return
	}
	maxUploadBytes := int64(h.cfg.MaxUploadMB) * 1024 * 1024
	if header.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "FILE_TOO_LARGE",
				Message: fmt.Sprintf("File exceeds the %dMB upload limit", h.cfg.MaxUploadMB),
			},
		})
		return
	}

	var req models.ExtractRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INVALID_INPUT",
				Message: err.Error(),
			},
		})
		return
	}

	// Request options fall back to the service-wide defaults
	if req.SheetName == "" {
		req.SheetName = h.cfg.DefaultSheet
	}
	if req.DefaultCurrency == "" {
		req.DefaultCurrency = h.cfg.DefaultCurrency
	}
	if req.MinImageBytes <= 0 {
		req.MinImageBytes = h.cfg.MinImageBytes
	}

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "READ_FAILED",
				Message: "Failed to read uploaded file",
			},
		})
		return
	}

	hash := sha256.Sum256(data)
	fileHash := hex.EncodeToString(hash[:])

	opts := extractor.Options{
		Sheet:         req.SheetName,
		MinImageBytes: req.MinImageBytes,
	}
	if req.DefaultCurrency != "" {
		opts.DefaultCurrency = extractor.Currency(strings.ToUpper(req.DefaultCurrency))
	}

	result, err := extractor.New(opts, h.logger.Logger).Extract(bytes.NewReader(data))
	if err != nil {
		h.handleExtractionFailure(c, tenantID, userID, header.Filename, fileHash, header.Size, req, err, startTime)
		return
	}

	run := h.buildRun(tenantID, userID, header.Filename, fileHash, header.Size, req, result)
	run.ProcessingMs = time.Since(startTime).Milliseconds()

	if req.ValidateOnly {
		run.Status = models.ExtractionStatusCompleted
		c.JSON(http.StatusOK, models.ExtractionRunResponse{Success: true, Data: run})
		return
	}

	// A re-import is allowed (it is a new immutable run) but worth flagging.
	var message *string
	if prior, err := h.repo.FindRunsByHash(tenantID, fileHash); err == nil && len(prior) > 0 {
		msg := fmt.Sprintf("This file was already imported %d time(s)", len(prior))
		message = &msg
		h.logger.WithFields(logrus.Fields{
			"tenantId":  tenantID,
			"fileHash":  fileHash,
			"priorRuns": len(prior),
		}).Info("Re-import of a previously imported file")
	}

	h.uploadImages(c.Request.Context(), run, result)

	if err := h.repo.SaveExtractionRun(c.Request.Context(), run); err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"tenantId": tenantID,
			"fileHash": fileHash,
		}).Error("Failed to persist extraction run")
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "SAVE_FAILED",
				Message: "Failed to save extraction run; the same file may already be imported",
			},
		})
		return
	}

	metrics.ExtractionRunsTotal.WithLabelValues(string(run.Status)).Inc()
	metrics.ExtractionProductsTotal.Add(float64(run.ProductCount))
	metrics.ExtractionWarningsTotal.Add(float64(run.WarningCount))
	metrics.ExtractionDuration.Observe(time.Since(startTime).Seconds())

	h.publisher.PublishExtractionCompleted(c.Request.Context(), run)

	h.logger.WithFields(logrus.Fields{
		"tenantId": tenantID,
		"runId":    run.ID,
		"products": run.ProductCount,
		"offers":   run.OfferCount,
		"images":   run.ImageCount,
		"warnings": run.WarningCount,
	}).Info("Proposal imported")

	c.JSON(http.StatusCreated, models.ExtractionRunResponse{Success: true, Data: run, Message: message})
}

// handleExtractionFailure records an unrecognized or unreadable workbook. The
// failed run is persisted too: rejected files must stay auditable.
func (h *ExtractHandler) handleExtractionFailure(c *gin.Context, tenantID, userID, fileName, fileHash string, fileSize int64, req models.ExtractRequest, cause error, startTime time.Time) {
	status := models.ExtractionStatusFailed
	httpStatus := http.StatusBadRequest
	code := "EXTRACTION_FAILED"
	if errors.Is(cause, extractor.ErrUnrecognizedLayout) {
		status = models.ExtractionStatusUnrecognized
		httpStatus = http.StatusUnprocessableEntity
		code = "UNRECOGNIZED_LAYOUT"
	}

	msg := cause.Error()
	if !req.ValidateOnly {
		run := &models.ExtractionRun{
			TenantID:        tenantID,
			FileName:        fileName,
			FileHash:        fileHash,
			FileSize:        fileSize,
			SheetName:       req.SheetName,
			DefaultCurrency: req.DefaultCurrency,
			Status:          status,
			Error:           &msg,
			ProcessingMs:    time.Since(startTime).Milliseconds(),
			CreatedBy:       &userID,
		}
		if err := h.repo.SaveExtractionRun(c.Request.Context(), run); err != nil {
			h.logger.WithError(err).Warn("Failed to persist failed extraction run")
		}
		metrics.ExtractionRunsTotal.WithLabelValues(string(status)).Inc()
		h.publisher.PublishExtractionFailed(c.Request.Context(), tenantID, fileName, fileHash, msg)
	}

	c.JSON(httpStatus, models.ErrorResponse{
		Success: false,
		Error: models.Error{
			Code:    code,
			Message: msg,
		},
	})
}

// buildRun converts an extraction result into the persistence graph
func (h *ExtractHandler) buildRun(tenantID, userID, fileName, fileHash string, fileSize int64, req models.ExtractRequest, result *extractor.Result) *models.ExtractionRun {
	diagnostics, _ := json.Marshal(result.Diagnostics)
	columnRoles, _ := json.Marshal(result.Columns)

	run := &models.ExtractionRun{
		TenantID:        tenantID,
		FileName:        fileName,
		FileHash:        fileHash,
		FileSize:        fileSize,
		SheetName:       result.SheetName,
		HeaderRow:       result.HeaderRow,
		Status:          models.ExtractionStatusCompleted,
		DefaultCurrency: req.DefaultCurrency,
		ValidateOnly:    req.ValidateOnly,
		ProductCount:    len(result.Products),
		OfferCount:      len(result.Offers),
		ImageCount:      len(result.Images),
		WarningCount:    len(result.Diagnostics),
		ColumnRoles:     datatypes.JSON(columnRoles),
		Diagnostics:     datatypes.JSON(diagnostics),
		CreatedBy:       &userID,
	}

	products := make([]*models.Product, len(result.Products))
	for i, p := range result.Products {
		mp := &models.Product{
			ID:        uuid.New(),
			TenantID:  tenantID,
			Ref:       p.Ref,
			Name:      p.Name,
			RowStart:  p.RowStart,
			RowEnd:    p.RowEnd,
			SourceKey: models.SourceKey(fileHash, p.RowStart, p.RowEnd),
		}
		if p.Characteristics != "" {
			ch := p.Characteristics
			mp.Characteristics = &ch
		}
		if p.CustomDesign != "" {
			cd := p.CustomDesign
			mp.CustomDesign = &cd
		}
		if p.SamplePrice != nil {
			mp.SamplePrice = p.SamplePrice
			cur := string(p.SampleCurrency)
			mp.SampleCurrency = &cur
		}
		mp.SampleTime = p.SampleTime
		products[i] = mp
	}

	for _, o := range result.Offers {
		offer := &models.PriceOffer{
			Quantity:  o.Quantity,
			Price:     o.Price,
			Currency:  string(o.Currency),
			IsSample:  o.IsSample,
			SourceRow: o.Row,
		}
		if o.RouteName != "" {
			rn := o.RouteName
			offer.RouteName = &rn
		}
		products[o.ProductRef].Offers = append(products[o.ProductRef].Offers, offer)
	}

	for _, img := range result.Images {
		mi := &models.ProductImage{
			TenantID:        tenantID,
			Type:            models.ImageType(img.Type),
			Extension:       img.Extension,
			AnchorRow:       img.AnchorRow,
			AnchorCol:       img.AnchorCol,
			SizeBytes:       img.Size,
			PossiblyCorrupt: img.PossiblyCorrupt,
		}
		if img.ProductRef != nil {
			products[*img.ProductRef].Images = append(products[*img.ProductRef].Images, mi)
		} else {
			// Unbound images hang off the run directly until someone
			// reassigns them to a product.
			run.Images = append(run.Images, mi)
		}
	}

	run.Products = products
	return run
}

// uploadImages pushes image payloads to the document-service and stores the
// returned URLs, for product-bound and unresolved images alike: unresolved
// payloads must survive the request so the image can be reassigned later.
// Upload failures degrade to images without URLs; extraction data is never
// lost because storage was down.
func (h *ExtractHandler) uploadImages(ctx context.Context, run *models.ExtractionRun, result *extractor.Result) {
	if h.media == nil {
		return
	}

	// One anchor cell may carry several pictures; queue payloads per anchor
	// so each model image gets its own bytes. Model images preserve the
	// extraction order within a cell.
	payloads := make(map[[2]int][][]byte, len(result.Images))
	for _, img := range result.Images {
		key := [2]int{img.AnchorRow, img.AnchorCol}
		payloads[key] = append(payloads[key], img.Data)
	}
	nextPayload := func(row, col int) []byte {
		key := [2]int{row, col}
		q := payloads[key]
		if len(q) == 0 {
			return nil
		}
		payloads[key] = q[1:]
		return q[0]
	}

	upload := func(img *models.ProductImage, seq int) {
		data := nextPayload(img.AnchorRow, img.AnchorCol)
		if len(data) == 0 {
			return
		}
		name := fmt.Sprintf("%s-r%dc%d-%d%s", run.FileHash[:12], img.AnchorRow, img.AnchorCol, seq, img.Extension)
		uploaded, err := h.media.UploadImage(run.TenantID, run.FileHash, name, data)
		if err != nil {
			h.logger.WithError(err).WithFields(logrus.Fields{
				"anchorRow": img.AnchorRow,
				"anchorCol": img.AnchorCol,
			}).Warn("Failed to upload extracted image")
			return
		}
		url := uploaded.URL
		img.URL = &url
	}

	seq := 0
	for _, p := range run.Products {
		for _, img := range p.Images {
			upload(img, seq)
			seq++
		}
	}
	for _, img := range run.Images {
		upload(img, seq)
		seq++
	}
}

// GetImportTemplate returns the proposal template definition or file
// GET /api/v1/proposals/import/template
func (h *ExtractHandler) GetImportTemplate(c *gin.Context) {
	format := c.DefaultQuery("format", "json")

	template := models.ProposalTemplate()

	switch format {
	case "xlsx":
		h.generateXLSXTemplate(c, template)
	default:
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"template": template,
		})
	}
}

// generateXLSXTemplate generates and downloads an Excel template
func (h *ExtractHandler) generateXLSXTemplate(c *gin.Context, template models.Template) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Предложение"
	f.SetSheetName("Sheet1", sheetName)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	requiredStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"C65911"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for i, col := range template.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, col.Name)
		if col.Required {
			f.SetCellStyle(sheetName, cell, cell, requiredStyle)
		} else {
			f.SetCellStyle(sheetName, cell, cell, headerStyle)
		}
		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, colName, colName, 22)
	}

	// Example rows showing one product with two tiers and a sample quote
	for i, col := range template.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		f.SetCellValue(sheetName, cell, col.Example)
	}
	f.SetCellValue(sheetName, "D3", "1000")
	f.SetCellValue(sheetName, "E3", "10,00")
	f.SetCellValue(sheetName, "F3", "USD")
	f.SetCellValue(sheetName, "A4", "Образец")
	f.SetCellValue(sheetName, "E4", "15")

	// Instructions sheet
	f.NewSheet("Instructions")
	f.SetCellValue("Instructions", "A1", "Proposal Sheet Guidelines")
	f.SetCellValue("Instructions", "A3", "- One product per block: put the name once, leave it blank on extra tier rows.")
	f.SetCellValue("Instructions", "A4", "- One row per volume tier (quantity + unit price).")
	f.SetCellValue("Instructions", "A5", "- Mark a one-off sample quote with 'Образец' or 'Sample' in the name or quantity column.")
	f.SetCellValue("Instructions", "A6", "- Currency column is optional; $ ₽ ¥ symbols inside price cells also work.")
	f.SetCellValue("Instructions", "A7", "- Embed product photos anchored inside the product's rows.")

	f.SetCellValue("Instructions", "A9", "Column Definitions:")
	f.SetCellValue("Instructions", "A10", "Column")
	f.SetCellValue("Instructions", "B10", "Role")
	f.SetCellValue("Instructions", "C10", "Description")
	f.SetCellValue("Instructions", "D10", "Required")
	f.SetCellValue("Instructions", "E10", "Example")

	for i, col := range template.Columns {
		row := i + 11
		f.SetCellValue("Instructions", fmt.Sprintf("A%d", row), col.Name)
		f.SetCellValue("Instructions", fmt.Sprintf("B%d", row), col.Role)
		f.SetCellValue("Instructions", fmt.Sprintf("C%d", row), col.Description)
		required := "Optional"
		if col.Required {
			required = "Required"
		}
		f.SetCellValue("Instructions", fmt.Sprintf("D%d", row), required)
		f.SetCellValue("Instructions", fmt.Sprintf("E%d", row), col.Example)
	}

	f.SetColWidth("Instructions", "A", "A", 25)
	f.SetColWidth("Instructions", "B", "B", 18)
	f.SetColWidth("Instructions", "C", "C", 60)
	f.SetColWidth("Instructions", "D", "D", 12)
	f.SetColWidth("Instructions", "E", "E", 30)

	sheetIdx, _ := f.GetSheetIndex(sheetName)
	f.SetActiveSheet(sheetIdx)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=proposal_template.xlsx")

	f.Write(c.Writer)
}
