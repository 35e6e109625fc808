package repository

import (
	"context"

	"catalog-service/internal/apperror"
	"catalog-service/internal/model"

	"gorm.io/gorm"
)

const categoryNotFound = "Category not found"

// CategoryRepository persists categories
type CategoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *CategoryRepository) WithTx(tx *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: tx}
}

func (r *CategoryRepository) List(ctx context.Context) ([]model.Category, error) {
	defer track("category_list")()

	var categories []model.Category
	err := r.db.WithContext(ctx).Order("id").Find(&categories).Error
	return categories, mapError(err, categoryNotFound, "list categories")
}

func (r *CategoryRepository) Get(ctx context.Context, id uint) (*model.Category, error) {
	defer track("category_get")()

	var category model.Category
	if err := r.db.WithContext(ctx).First(&category, id).Error; err != nil {
		return nil, mapError(err, categoryNotFound, "load category")
	}
	return &category, nil
}

func (r *CategoryRepository) Exists(ctx context.Context, id uint) (bool, error) {
	defer track("category_exists")()

	var count int64
	err := r.db.WithContext(ctx).Model(&model.Category{}).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return false, mapError(err, categoryNotFound, "look up category")
	}
	return count > 0, nil
}

func (r *CategoryRepository) Create(ctx context.Context, category *model.Category) error {
	defer track("category_create")()

	err := r.db.WithContext(ctx).Create(category).Error
	return mapError(err, categoryNotFound, "create category")
}

// Update writes the mutable columns (name and image path)
func (r *CategoryRepository) Update(ctx context.Context, category *model.Category) error {
	defer track("category_update")()

	err := r.db.WithContext(ctx).Model(category).
		Select("name", "image_path", "updated_at").
		Updates(category).Error
	return mapError(err, categoryNotFound, "update category")
}

func (r *CategoryRepository) Delete(ctx context.Context, id uint) error {
	defer track("category_delete")()

	result := r.db.WithContext(ctx).Delete(&model.Category{}, id)
	if result.Error != nil {
		return mapError(result.Error, categoryNotFound, "delete category")
	}
	if result.RowsAffected == 0 {
		return apperror.NotFound(categoryNotFound)
	}
	return nil
}

// CountProducts returns how many products reference the category
func (r *CategoryRepository) CountProducts(ctx context.Context, id uint) (int64, error) {
	defer track("category_count_products")()

	var count int64
	err := r.db.WithContext(ctx).Model(&model.Product{}).Where("category_id = ?", id).Count(&count).Error
	return count, mapError(err, categoryNotFound, "count category products")
}

// TopByProductCount returns up to n categories ordered by how many products
// they hold. Ties fall back to ascending id.
func (r *CategoryRepository) TopByProductCount(ctx context.Context, n int) ([]model.Category, error) {
	defer track("category_top")()

	var categories []model.Category
	err := r.db.WithContext(ctx).Model(&model.Category{}).
		Select("categories.*, (SELECT COUNT(*) FROM products WHERE products.category_id = categories.id) AS product_count").
		Order("product_count DESC").
		Order("categories.id").
		Limit(n).
		Find(&categories).Error
	return categories, mapError(err, categoryNotFound, "load top categories")
}
