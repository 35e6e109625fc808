package repository

import (
	"context"

	"catalog-service/internal/apperror"
	"catalog-service/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const productNotFound = "Product not found"

// ProductRepository persists products
type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *ProductRepository) WithTx(tx *gorm.DB) *ProductRepository {
	return &ProductRepository{db: tx}
}

// Get loads a product, optionally with its category and images
func (r *ProductRepository) Get(ctx context.Context, id uint, withRelations bool) (*model.Product, error) {
	defer track("product_get")()

	query := r.db.WithContext(ctx)
	if withRelations {
		query = query.Preload("Category").Preload("Images", func(db *gorm.DB) *gorm.DB {
			return db.Order("id")
		})
	}

	var product model.Product
	if err := query.First(&product, id).Error; err != nil {
		return nil, mapError(err, productNotFound, "load product")
	}
	return &product, nil
}

func (r *ProductRepository) Create(ctx context.Context, product *model.Product) error {
	defer track("product_create")()

	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(product).Error
	return mapError(err, productNotFound, "create product")
}

// Update writes every mutable column, including zero values
func (r *ProductRepository) Update(ctx context.Context, product *model.Product) error {
	defer track("product_update")()

	err := r.db.WithContext(ctx).Model(product).
		Select("name", "price", "quantity", "category_id", "expired", "updated_at").
		Omit(clause.Associations).
		Updates(product).Error
	return mapError(err, productNotFound, "update product")
}

func (r *ProductRepository) Delete(ctx context.Context, id uint) error {
	defer track("product_delete")()

	result := r.db.WithContext(ctx).Delete(&model.Product{}, id)
	if result.Error != nil {
		return mapError(result.Error, productNotFound, "delete product")
	}
	if result.RowsAffected == 0 {
		return apperror.NotFound(productNotFound)
	}
	return nil
}

// TopByPriceInCategory returns up to n products of the category, most expensive first.
// The caller is responsible for checking that the category exists.
func (r *ProductRepository) TopByPriceInCategory(ctx context.Context, categoryID uint, n int) ([]model.Product, error) {
	defer track("product_top_by_price")()

	var products []model.Product
	err := r.db.WithContext(ctx).
		Where("category_id = ?", categoryID).
		Order("price DESC").
		Order("id").
		Limit(n).
		Find(&products).Error
	return products, mapError(err, productNotFound, "load top products")
}

// AllExpired returns every product flagged as expired. Unbounded.
func (r *ProductRepository) AllExpired(ctx context.Context) ([]model.Product, error) {
	defer track("product_all_expired")()

	var products []model.Product
	err := r.db.WithContext(ctx).Where("expired = ?", true).Order("id").Find(&products).Error
	return products, mapError(err, productNotFound, "load expired products")
}

// LowStock returns products whose quantity is at or below threshold
func (r *ProductRepository) LowStock(ctx context.Context, threshold int) ([]model.Product, error) {
	defer track("product_low_stock")()

	var products []model.Product
	err := r.db.WithContext(ctx).
		Where("quantity <= ?", threshold).
		Order("quantity").
		Order("id").
		Find(&products).Error
	return products, mapError(err, productNotFound, "load low-stock products")
}
