package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"proposals-service/internal/models"
)

// Cache TTL constants
const (
	RunCacheTTL     = 5 * time.Minute
	ProductCacheTTL = 5 * time.Minute
)

// ProposalsRepository is the persistence surface handlers talk to. An
// interface so handler tests can mock storage without a database.
type ProposalsRepository interface {
	SaveExtractionRun(ctx context.Context, run *models.ExtractionRun) error
	GetRun(tenantID string, runID uuid.UUID, includeProducts bool) (*models.ExtractionRun, error)
	ListRuns(tenantID string, req *models.ListRunsRequest) ([]models.ExtractionRun, int64, error)
	DeleteRun(tenantID string, runID uuid.UUID) error
	FindRunsByHash(tenantID, fileHash string) ([]models.ExtractionRun, error)
	GetProduct(tenantID string, productID uuid.UUID) (*models.Product, error)
	ListProducts(tenantID string, req *models.ListProductsRequest) ([]models.Product, int64, error)
	ListUnresolvedImages(tenantID string, runID uuid.UUID) ([]models.ProductImage, error)
	ReassignImage(tenantID string, imageID, productID uuid.UUID, imageType models.ImageType) error
}

type proposalsRepository struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewProposalsRepository(db *gorm.DB, redisClient *redis.Client) ProposalsRepository {
	return &proposalsRepository{
		db:    db,
		redis: redisClient,
	}
}

// SaveExtractionRun persists a run with its full product/offer/image graph in
// one transaction. Inserts only: an extraction run is an immutable fact, a
// re-import of the same file creates a new run rather than mutating an old
// one. Products carry a (tenant, source key) unique index, so replays of the
// same file fail fast instead of duplicating rows.
func (r *proposalsRepository) SaveExtractionRun(ctx context.Context, run *models.ExtractionRun) error {
	now := time.Now()
	run.CreatedAt = now
	run.UpdatedAt = now
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}

	for _, p := range run.Products {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		p.RunID = run.ID
		p.TenantID = run.TenantID
		p.CreatedAt = now
		p.UpdatedAt = now
		for _, o := range p.Offers {
			if o.ID == uuid.Nil {
				o.ID = uuid.New()
			}
			o.ProductID = p.ID
			o.RunID = run.ID
			o.TenantID = run.TenantID
			o.CreatedAt = now
		}
		for _, img := range p.Images {
			if img.ID == uuid.Nil {
				img.ID = uuid.New()
			}
			img.RunID = run.ID
			img.TenantID = run.TenantID
			img.CreatedAt = now
		}
	}

	for _, img := range run.Images {
		if img.ID == uuid.Nil {
			img.ID = uuid.New()
		}
		img.RunID = run.ID
		img.TenantID = run.TenantID
		img.CreatedAt = now
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(run).Error
	})
	if err == nil {
		r.invalidateRunCaches(ctx, run.TenantID, run.ID)
	}
	return err
}

// GetRun retrieves a run by ID with caching
func (r *proposalsRepository) GetRun(tenantID string, runID uuid.UUID, includeProducts bool) (*models.ExtractionRun, error) {
	ctx := context.Background()
	cacheKey := fmt.Sprintf("proposals:run:%s:%s:%v", tenantID, runID.String(), includeProducts)

	if r.redis != nil {
		val, err := r.redis.Get(ctx, cacheKey).Result()
		if err == nil {
			var run models.ExtractionRun
			if err := json.Unmarshal([]byte(val), &run); err == nil {
				return &run, nil
			}
		}
	}

	var run models.ExtractionRun
	query := r.db.Where("tenant_id = ? AND id = ?", tenantID, runID)
	if includeProducts {
		query = query.Preload("Products", func(db *gorm.DB) *gorm.DB {
			return db.Order("products.ref ASC")
		}).Preload("Products.Offers", func(db *gorm.DB) *gorm.DB {
			return db.Order("price_offers.source_row ASC")
		}).Preload("Products.Images").
			Preload("Images", "product_id IS NULL")
	}
	if err := query.First(&run).Error; err != nil {
		return nil, err
	}

	if r.redis != nil {
		if data, err := json.Marshal(run); err == nil {
			r.redis.Set(ctx, cacheKey, data, RunCacheTTL)
		}
	}

	return &run, nil
}

// ListRuns retrieves extraction runs with filters and pagination
func (r *proposalsRepository) ListRuns(tenantID string, req *models.ListRunsRequest) ([]models.ExtractionRun, int64, error) {
	var runs []models.ExtractionRun
	var total int64

	query := r.db.Model(&models.ExtractionRun{}).Where("tenant_id = ?", tenantID)
	if req.Status != nil {
		query = query.Where("status = ?", *req.Status)
	}
	if req.FileHash != nil && *req.FileHash != "" {
		query = query.Where("file_hash = ?", *req.FileHash)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (req.Page - 1) * req.Limit
	if err := query.Order("created_at DESC").Offset(offset).Limit(req.Limit).Find(&runs).Error; err != nil {
		return nil, 0, err
	}

	return runs, total, nil
}

// DeleteRun soft deletes a run; products, offers and images go with it via
// the FK cascade.
func (r *proposalsRepository) DeleteRun(tenantID string, runID uuid.UUID) error {
	err := r.db.Where("tenant_id = ? AND id = ?", tenantID, runID).
		Delete(&models.ExtractionRun{}).Error
	if err == nil {
		r.invalidateRunCaches(context.Background(), tenantID, runID)
	}
	return err
}

// FindRunsByHash lists prior runs of the same workbook, newest first. Used to
// warn callers about re-imports.
func (r *proposalsRepository) FindRunsByHash(tenantID, fileHash string) ([]models.ExtractionRun, error) {
	var runs []models.ExtractionRun
	err := r.db.Where("tenant_id = ? AND file_hash = ?", tenantID, fileHash).
		Order("created_at DESC").
		Find(&runs).Error
	if err != nil {
		return nil, err
	}
	return runs, nil
}

// GetProduct retrieves a product with its offers and images
func (r *proposalsRepository) GetProduct(tenantID string, productID uuid.UUID) (*models.Product, error) {
	ctx := context.Background()
	cacheKey := fmt.Sprintf("proposals:product:%s:%s", tenantID, productID.String())

	if r.redis != nil {
		val, err := r.redis.Get(ctx, cacheKey).Result()
		if err == nil {
			var product models.Product
			if err := json.Unmarshal([]byte(val), &product); err == nil {
				return &product, nil
			}
		}
	}

	var product models.Product
	err := r.db.Where("tenant_id = ? AND id = ?", tenantID, productID).
		Preload("Offers", func(db *gorm.DB) *gorm.DB {
			return db.Order("price_offers.source_row ASC")
		}).
		Preload("Images").
		First(&product).Error
	if err != nil {
		return nil, err
	}

	if r.redis != nil {
		if data, err := json.Marshal(product); err == nil {
			r.redis.Set(ctx, cacheKey, data, ProductCacheTTL)
		}
	}

	return &product, nil
}

// ListProducts retrieves products with filters and pagination
func (r *proposalsRepository) ListProducts(tenantID string, req *models.ListProductsRequest) ([]models.Product, int64, error) {
	var products []models.Product
	var total int64

	query := r.db.Model(&models.Product{}).Where("tenant_id = ?", tenantID)
	if req.RunID != nil {
		query = query.Where("run_id = ?", *req.RunID)
	}
	if req.Query != nil && *req.Query != "" {
		term := "%" + strings.ToLower(strings.TrimSpace(*req.Query)) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(COALESCE(characteristics, '')) LIKE ?", term, term)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (req.Page - 1) * req.Limit
	err := query.Preload("Offers", func(db *gorm.DB) *gorm.DB {
		return db.Order("price_offers.source_row ASC")
	}).
		Preload("Images").
		Order("created_at DESC, ref ASC").
		Offset(offset).Limit(req.Limit).
		Find(&products).Error
	if err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

// ListUnresolvedImages lists a run's images that no product block claimed
func (r *proposalsRepository) ListUnresolvedImages(tenantID string, runID uuid.UUID) ([]models.ProductImage, error) {
	var images []models.ProductImage
	err := r.db.Where("tenant_id = ? AND run_id = ? AND product_id IS NULL", tenantID, runID).
		Order("anchor_row ASC, anchor_col ASC").
		Find(&images).Error
	if err != nil {
		return nil, err
	}
	return images, nil
}

// ReassignImage attaches an unresolved image to a product
func (r *proposalsRepository) ReassignImage(tenantID string, imageID, productID uuid.UUID, imageType models.ImageType) error {
	if imageType == "" {
		imageType = models.ImageTypeAdditional
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.Where("tenant_id = ? AND id = ?", tenantID, productID).First(&product).Error; err != nil {
			return err
		}

		result := tx.Model(&models.ProductImage{}).
			Where("tenant_id = ? AND id = ?", tenantID, imageID).
			Updates(map[string]interface{}{
				"product_id": productID,
				"type":       imageType,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		r.invalidateProductCache(context.Background(), tenantID, productID)
		return nil
	})
}

func (r *proposalsRepository) invalidateRunCaches(ctx context.Context, tenantID string, runID uuid.UUID) {
	if r.redis == nil {
		return
	}
	key := fmt.Sprintf("proposals:run:%s:%s", tenantID, runID.String())
	r.redis.Del(ctx, key+":true", key+":false")
}

func (r *proposalsRepository) invalidateProductCache(ctx context.Context, tenantID string, productID uuid.UUID) {
	if r.redis == nil {
		return
	}
	r.redis.Del(ctx, fmt.Sprintf("proposals:product:%s:%s", tenantID, productID.String()))
}
