package repository

import (
	"context"

	"catalog-service/internal/model"

	"gorm.io/gorm"
)

const imageNotFound = "Product image not found"

// ImageRepository persists product image rows. Only the image attachment
// manager writes through it.
type ImageRepository struct {
	db *gorm.DB
}

func NewImageRepository(db *gorm.DB) *ImageRepository {
	return &ImageRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *ImageRepository) WithTx(tx *gorm.DB) *ImageRepository {
	return &ImageRepository{db: tx}
}

func (r *ImageRepository) Create(ctx context.Context, image *model.ProductImage) error {
	defer track("image_create")()

	err := r.db.WithContext(ctx).Create(image).Error
	return mapError(err, imageNotFound, "create product image")
}

func (r *ImageRepository) ListByProduct(ctx context.Context, productID uint) ([]model.ProductImage, error) {
	defer track("image_list")()

	var images []model.ProductImage
	err := r.db.WithContext(ctx).Where("product_id = ?", productID).Order("id").Find(&images).Error
	return images, mapError(err, imageNotFound, "list product images")
}

// UpdatePath points an existing row at a new blob
func (r *ImageRepository) UpdatePath(ctx context.Context, id uint, imagePath string) error {
	defer track("image_update")()

	err := r.db.WithContext(ctx).Model(&model.ProductImage{}).
		Where("id = ?", id).
		Update("image_path", imagePath).Error
	return mapError(err, imageNotFound, "update product image")
}

func (r *ImageRepository) DeleteByIDs(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	defer track("image_delete")()

	err := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&model.ProductImage{}).Error
	return mapError(err, imageNotFound, "delete product images")
}

// DeleteByProduct removes every image row of the product and returns how many went
func (r *ImageRepository) DeleteByProduct(ctx context.Context, productID uint) (int64, error) {
	defer track("image_delete_by_product")()

	result := r.db.WithContext(ctx).Where("product_id = ?", productID).Delete(&model.ProductImage{})
	return result.RowsAffected, mapError(result.Error, imageNotFound, "delete product images")
}
