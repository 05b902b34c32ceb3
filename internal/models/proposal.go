package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ExtractionStatus represents the status of an extraction run
type ExtractionStatus string

const (
	ExtractionStatusPending      ExtractionStatus = "PENDING"
	ExtractionStatusProcessing   ExtractionStatus = "PROCESSING"
	ExtractionStatusCompleted    ExtractionStatus = "COMPLETED"
	ExtractionStatusFailed       ExtractionStatus = "FAILED"
	ExtractionStatusUnrecognized ExtractionStatus = "UNRECOGNIZED"
)

// ImageType classifies a product image
type ImageType string

const (
	ImageTypeMain       ImageType = "main"
	ImageTypeAdditional ImageType = "additional"
)

// JSON type for PostgreSQL JSONB (object/map)
type JSON map[string]interface{}

func (j JSON) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSON)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// ExtractionRun represents one processed proposal workbook. Products, offers
// and images hang off the run; deleting a run cascades to all of them.
type ExtractionRun struct {
	ID              uuid.UUID        `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID        string           `json:"tenantId" gorm:"not null;index:idx_extraction_runs_tenant;index:idx_extraction_runs_tenant_status;index:idx_extraction_runs_tenant_hash"`
	FileName        string           `json:"fileName" gorm:"not null"`
	FileHash        string           `json:"fileHash" gorm:"not null;index:idx_extraction_runs_tenant_hash"`
	FileSize        int64            `json:"fileSize"`
	SheetName       string           `json:"sheetName"`
	HeaderRow       int              `json:"headerRow"`
	Status          ExtractionStatus `json:"status" gorm:"not null;default:'PENDING';index:idx_extraction_runs_tenant_status"`
	DefaultCurrency string           `json:"defaultCurrency"`
	ValidateOnly    bool             `json:"validateOnly"`
	ProductCount    int              `json:"productCount"`
	OfferCount      int              `json:"offerCount"`
	ImageCount      int              `json:"imageCount"`
	WarningCount    int              `json:"warningCount"`
	ColumnRoles     datatypes.JSON   `json:"columnRoles,omitempty" gorm:"type:jsonb"`
	Diagnostics     datatypes.JSON   `json:"diagnostics,omitempty" gorm:"type:jsonb"`
	Error           *string          `json:"error,omitempty"`
	ProcessingMs    int64            `json:"processingMs"`
	Products        []*Product       `json:"products,omitempty" gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
	Images          []*ProductImage  `json:"images,omitempty" gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
	DeletedAt       *gorm.DeletedAt  `json:"deletedAt,omitempty" gorm:"index"`
	CreatedBy       *string          `json:"createdBy,omitempty"`
	Metadata        *JSON            `json:"metadata,omitempty" gorm:"type:jsonb"`
}

// Product represents one product extracted from a proposal sheet
type Product struct {
	ID              uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	RunID           uuid.UUID       `json:"runId" gorm:"type:uuid;not null;index"`
	TenantID        string          `json:"tenantId" gorm:"not null;index:idx_products_tenant;index:idx_products_tenant_source,unique"`
	Ref             int             `json:"ref"`
	Name            string          `json:"name" gorm:"not null"`
	Characteristics *string         `json:"characteristics,omitempty"`
	CustomDesign    *string         `json:"customDesign,omitempty"`
	RowStart        int             `json:"rowStart" gorm:"not null"`
	RowEnd          int             `json:"rowEnd" gorm:"not null"`
	SourceKey       string          `json:"sourceKey" gorm:"not null;index:idx_products_tenant_source,unique"`
	SamplePrice     *float64        `json:"samplePrice,omitempty"`
	SampleCurrency  *string         `json:"sampleCurrency,omitempty"`
	SampleTime      *string         `json:"sampleTime,omitempty"`
	Offers          []*PriceOffer   `json:"offers,omitempty" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	Images          []*ProductImage `json:"images,omitempty" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// PriceOffer represents one (quantity, price) tier of an extracted product
type PriceOffer struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ProductID uuid.UUID `json:"productId" gorm:"type:uuid;not null;index"`
	RunID     uuid.UUID `json:"runId" gorm:"type:uuid;not null;index"`
	TenantID  string    `json:"tenantId" gorm:"not null;index"`
	RouteName *string   `json:"routeName,omitempty"`
	Quantity  *int      `json:"quantity,omitempty"`
	Price     *float64  `json:"price,omitempty"`
	Currency  string    `json:"currency" gorm:"not null"`
	IsSample  bool      `json:"isSample" gorm:"not null;default:false"`
	SourceRow int       `json:"sourceRow"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProductImage represents an image pulled out of a proposal sheet. ProductID
// is null for images whose anchor fell outside every product block; those are
// kept for manual reassignment.
type ProductImage struct {
	ID              uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	RunID           uuid.UUID  `json:"runId" gorm:"type:uuid;not null;index"`
	ProductID       *uuid.UUID `json:"productId,omitempty" gorm:"type:uuid;index"`
	TenantID        string     `json:"tenantId" gorm:"not null;index"`
	Type            ImageType  `json:"type" gorm:"not null;default:'additional'"`
	URL             *string    `json:"url,omitempty"`
	Extension       string     `json:"extension"`
	AnchorRow       int        `json:"anchorRow"`
	AnchorCol       int        `json:"anchorCol"`
	SizeBytes       int        `json:"sizeBytes"`
	PossiblyCorrupt bool       `json:"possiblyCorrupt" gorm:"not null;default:false"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// SourceKey builds the idempotency key a product is deduplicated on: the
// workbook hash plus the row range the product occupied. Re-importing the same
// file yields the same keys, so reruns never duplicate products.
func SourceKey(fileHash string, rowStart, rowEnd int) string {
	return fmt.Sprintf("%s:%d-%d", fileHash, rowStart, rowEnd)
}

// TableName returns the table name for the ExtractionRun model
func (ExtractionRun) TableName() string {
	return "extraction_runs"
}

// TableName returns the table name for the Product model
func (Product) TableName() string {
	return "products"
}

// TableName returns the table name for the PriceOffer model
func (PriceOffer) TableName() string {
	return "price_offers"
}

// TableName returns the table name for the ProductImage model
func (ProductImage) TableName() string {
	return "product_images"
}
