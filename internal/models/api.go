package models

import "github.com/google/uuid"

// ExtractRequest carries the multipart form options accompanying an uploaded
// proposal workbook
type ExtractRequest struct {
	SheetName       string `form:"sheetName"`
	DefaultCurrency string `form:"defaultCurrency"`
	ValidateOnly    bool   `form:"validateOnly"` // dry run mode: extract and report, persist nothing
	MinImageBytes   int    `form:"minImageBytes"`
}

// ListRunsRequest represents extraction run listing filters
type ListRunsRequest struct {
	Status   *ExtractionStatus `form:"status"`
	FileHash *string           `form:"fileHash"`
	Page     int               `form:"page"`
	Limit    int               `form:"limit"`
}

// ListProductsRequest represents product listing filters
type ListProductsRequest struct {
	RunID *uuid.UUID `form:"runId"`
	Query *string    `form:"query"`
	Page  int        `form:"page"`
	Limit int        `form:"limit"`
}

// ReassignImageRequest re-attaches an unresolved image to a product
type ReassignImageRequest struct {
	ProductID uuid.UUID `json:"productId" binding:"required"`
	Type      ImageType `json:"type,omitempty"`
}

// Response types
type PaginationInfo struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"totalPages"`
	HasNext     bool  `json:"hasNext"`
	HasPrevious bool  `json:"hasPrevious"`
}

type ExtractionRunResponse struct {
	Success bool           `json:"success"`
	Data    *ExtractionRun `json:"data"`
	Message *string        `json:"message,omitempty"`
}

type ExtractionRunListResponse struct {
	Success    bool            `json:"success"`
	Data       []ExtractionRun `json:"data"`
	Pagination *PaginationInfo `json:"pagination"`
}

type ProductResponse struct {
	Success bool     `json:"success"`
	Data    *Product `json:"data"`
	Message *string  `json:"message,omitempty"`
}

type ProductListResponse struct {
	Success    bool            `json:"success"`
	Data       []Product       `json:"data"`
	Pagination *PaginationInfo `json:"pagination"`
}

type ProductImageListResponse struct {
	Success bool           `json:"success"`
	Data    []ProductImage `json:"data"`
}

type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     Error  `json:"error"`
	Timestamp string `json:"timestamp,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Details *JSON  `json:"details,omitempty"`
}

type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message *string     `json:"message,omitempty"`
}

// TemplateColumn defines a column in the proposal template
type TemplateColumn struct {
	Name        string `json:"name"`
	Role        string `json:"role"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Example     string `json:"example"`
}

// Template defines the recommended proposal sheet structure
type Template struct {
	Entity  string           `json:"entity"`
	Version string           `json:"version"`
	Columns []TemplateColumn `json:"columns"`
}

// ProposalTemplateColumns returns the column definitions suppliers are asked
// to follow. The extractor tolerates deviations; this is the happy path.
func ProposalTemplateColumns() []TemplateColumn {
	return []TemplateColumn{
		{Name: "Наименование", Role: "NAME", Description: "Product name, one block per product", Required: true, Example: "Кардхолдер"},
		{Name: "Характеристики", Role: "CHARACTERISTICS", Description: "Free-text product details", Required: false, Example: "Кожа, 10x7 см"},
		{Name: "Нанесение", Role: "CUSTOM_DESIGN", Description: "Branding / custom design notes", Required: false, Example: "Тиснение логотипа"},
		{Name: "Тираж, шт", Role: "QUANTITY", Description: "Volume tier quantity, one row per tier", Required: false, Example: "500"},
		{Name: "Цена за единицу", Role: "PRICE", Description: "Unit price for the tier", Required: true, Example: "12,50"},
		{Name: "Валюта", Role: "CURRENCY", Description: "USD, RUB, CNY or AED", Required: false, Example: "USD"},
		{Name: "Цена образца", Role: "SAMPLE_PRICE", Description: "One-off sample price", Required: false, Example: "15"},
		{Name: "Срок образца", Role: "SAMPLE_TIME", Description: "Sample production lead time", Required: false, Example: "5-7 дней"},
		{Name: "Фото", Role: "IMAGE", Description: "Embedded product photo", Required: false, Example: ""},
	}
}

// ProposalTemplate returns the template definition for proposal sheets
func ProposalTemplate() Template {
	return Template{
		Entity:  "proposals",
		Version: "1.0",
		Columns: ProposalTemplateColumns(),
	}
}
