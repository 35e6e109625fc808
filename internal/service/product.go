package service

import (
	"context"

	"catalog-service/internal/apperror"
	"catalog-service/internal/model"
	"catalog-service/pkg/logger"
	"catalog-service/prometheus"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *Catalog) decorateProduct(p *model.Product) {
	s.decorateCategory(p.Category)
	s.images.DecorateImages(p.Images)
}

// GetProduct loads a product with its category and images
func (s *Catalog) GetProduct(ctx context.Context, id uint) (*model.Product, error) {
	product, err := s.products.Get(ctx, id, true)
	if err != nil {
		return nil, err
	}
	s.decorateProduct(product)
	return product, nil
}

// CreateProduct writes the product row and its images in one unit. If any
// image cannot be stored nothing is kept.
func (s *Catalog) CreateProduct(ctx context.Context, form ProductForm) (*model.Product, error) {
	log := logger.FromCtx(ctx)
	in, err := s.validateProduct(ctx, form)
	if err != nil {
		return nil, err
	}

	product := &model.Product{
		Name:       in.name,
		Price:      in.price,
		Quantity:   in.quantity,
		CategoryID: in.categoryID,
		Expired:    in.expired,
	}

	err = s.transact(ctx, func(ctx context.Context, tx *gorm.DB, u *unit) error {
		if err := s.products.WithTx(tx).Create(ctx, product); err != nil {
			return err
		}
		_, pending, err := s.images.Attach(ctx, tx, product.ID, product.Name, in.images)
		if err != nil {
			return err
		}
		u.add(pending)
		return nil
	})
	if err != nil {
		log.Error("Failed to create product", zap.String("name", in.name), zap.Error(err))
		return nil, err
	}

	prometheus.RecordCatalogOperation("product", "create")
	log.Info("Product created successfully",
		zap.Uint("product_id", product.ID),
		zap.String("name", product.Name),
		zap.Int("images", len(in.images)))
	return s.GetProduct(ctx, product.ID)
}

// UpdateProduct rewrites every mutable field. Supplied images replace the
// whole set; without images the existing ones are kept and follow the
// product's folder when it is renamed.
func (s *Catalog) UpdateProduct(ctx context.Context, id uint, form ProductForm) (*model.Product, error) {
	log := logger.FromCtx(ctx)

	unlock, err := s.acquire(ctx, productKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	product, err := s.products.Get(ctx, id, false)
	if err != nil {
		return nil, err
	}
	in, err := s.validateProduct(ctx, form)
	if err != nil {
		return nil, err
	}

	oldName := product.Name
	product.Name = in.name
	product.Price = in.price
	product.Quantity = in.quantity
	product.CategoryID = in.categoryID
	product.Expired = in.expired

	err = s.transact(ctx, func(ctx context.Context, tx *gorm.DB, u *unit) error {
		if err := s.products.WithTx(tx).Update(ctx, product); err != nil {
			return err
		}
		if len(in.images) > 0 {
			_, pending, err := s.images.Replace(ctx, tx, product.ID, oldName, product.Name, in.images)
			if err != nil {
				return err
			}
			u.add(pending)
			return nil
		}
		pending, err := s.images.Relocate(ctx, tx, product.ID, oldName, product.Name)
		if err != nil {
			return err
		}
		u.add(pending)
		return nil
	})
	if err != nil {
		log.Error("Failed to update product", zap.Uint("product_id", id), zap.Error(err))
		return nil, err
	}

	prometheus.RecordCatalogOperation("product", "update")
	log.Info("Product updated successfully",
		zap.Uint("product_id", id),
		zap.String("old_name", oldName),
		zap.String("new_name", product.Name),
		zap.Bool("images_replaced", len(in.images) > 0))
	return s.GetProduct(ctx, id)
}

// DeleteProduct removes the product, its image rows and its image folder
func (s *Catalog) DeleteProduct(ctx context.Context, id uint) error {
	unlock, err := s.acquire(ctx, productKey(id))
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := s.deleteProduct(ctx, id, false); err != nil {
		return err
	}
	logger.FromCtx(ctx).Info("Product deleted successfully", zap.Uint("product_id", id))
	return nil
}

// deleteProduct expects the caller to hold the product's lock. With
// onlyExpired set a product that is no longer expired is left alone and
// reported as not deleted.
func (s *Catalog) deleteProduct(ctx context.Context, id uint, onlyExpired bool) (bool, error) {
	deleted := false
	err := s.transact(ctx, func(ctx context.Context, tx *gorm.DB, u *unit) error {
		products := s.products.WithTx(tx)
		product, err := products.Get(ctx, id, false)
		if err != nil {
			return err
		}
		if onlyExpired && !product.Expired {
			return nil
		}
		deleted = true
		pending, err := s.images.RemoveFolder(ctx, tx, product.ID, product.Name)
		if err != nil {
			return err
		}
		u.add(pending)
		return products.Delete(ctx, product.ID)
	})
	if err != nil {
		return false, err
	}
	if deleted {
		prometheus.RecordCatalogOperation("product", "delete")
	}
	return deleted, nil
}

// DeleteExpiredProducts removes every expired product together with its
// images and returns how many went. The first failure stops the sweep;
// products deleted before it stay deleted.
func (s *Catalog) DeleteExpiredProducts(ctx context.Context) (int, error) {
	log := logger.FromCtx(ctx)

	expired, err := s.products.AllExpired(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, p := range expired {
		unlock, err := s.acquire(ctx, productKey(p.ID))
		if err != nil {
			return deleted, err
		}
		removed, err := s.deleteProduct(ctx, p.ID, true)
		unlock()
		if apperror.Is(err, apperror.KindNotFound) {
			// removed by someone else since the listing
			continue
		}
		if err != nil {
			log.Error("Failed to delete expired product",
				zap.Uint("product_id", p.ID),
				zap.Int("deleted", deleted),
				zap.Error(err))
			return deleted, err
		}
		if !removed {
			log.Info("Product no longer expired, skipped", zap.Uint("product_id", p.ID))
			continue
		}
		deleted++
	}

	log.Info("Expired products deleted", zap.Int("count", deleted))
	return deleted, nil
}

// ListExpired returns every product flagged as expired
func (s *Catalog) ListExpired(ctx context.Context) ([]model.Product, error) {
	return s.products.AllExpired(ctx)
}

// TopProductsInCategory returns the most expensive products of a category
func (s *Catalog) TopProductsInCategory(ctx context.Context, categoryID uint) ([]model.Product, error) {
	exists, err := s.categories.Exists(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperror.NotFound("Category not found")
	}
	return s.products.TopByPriceInCategory(ctx, categoryID, TopLimit)
}

// LowStock returns the products whose quantity is at or below threshold
func (s *Catalog) LowStock(ctx context.Context, threshold int) ([]model.Product, error) {
	if threshold < 0 {
		return nil, apperror.Validation(map[string][]string{
			"threshold": {"The threshold must be at least 0."},
		})
	}
	return s.products.LowStock(ctx, threshold)
}
