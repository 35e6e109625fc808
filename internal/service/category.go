package service

import (
	"context"

	"catalog-service/internal/apperror"
	"catalog-service/internal/model"
	"catalog-service/pkg/logger"
	"catalog-service/prometheus"

	"go.uber.org/zap"
)

func (s *Catalog) decorateCategory(c *model.Category) {
	if c == nil {
		return
	}
	c.ImageURL = s.images.URL(c.ImagePath)
}

func (s *Catalog) decorateCategories(categories []model.Category) {
	for i := range categories {
		s.decorateCategory(&categories[i])
	}
}

func (s *Catalog) ListCategories(ctx context.Context) ([]model.Category, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, err
	}
	s.decorateCategories(categories)
	return categories, nil
}

func (s *Catalog) GetCategory(ctx context.Context, id uint) (*model.Category, error) {
	category, err := s.categories.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.decorateCategory(category)
	return category, nil
}

// CreateCategory stores the optional image first and removes it again if
// the row cannot be written
func (s *Catalog) CreateCategory(ctx context.Context, form CategoryForm) (*model.Category, error) {
	log := logger.FromCtx(ctx)
	in, err := s.validateCategory(form)
	if err != nil {
		return nil, err
	}

	category := &model.Category{Name: in.name}
	if in.image != nil {
		key, err := s.images.PutCategoryImage(ctx, *in.image)
		if err != nil {
			return nil, err
		}
		category.ImagePath = key
	}

	if err := s.categories.Create(context.WithoutCancel(ctx), category); err != nil {
		log.Error("Failed to create category", zap.String("name", in.name), zap.Error(err))
		if category.ImagePath != "" {
			s.images.DiscardCategoryImage(ctx, category.ImagePath)
		}
		return nil, err
	}

	prometheus.RecordCatalogOperation("category", "create")
	log.Info("Category created successfully",
		zap.Uint("category_id", category.ID),
		zap.String("name", category.Name))
	s.decorateCategory(category)
	return category, nil
}

// UpdateCategory renames the category and, when a new image is supplied,
// swaps it in. The old image is deleted only after the row points at the new one.
func (s *Catalog) UpdateCategory(ctx context.Context, id uint, form CategoryForm) (*model.Category, error) {
	log := logger.FromCtx(ctx)

	unlock, err := s.acquire(ctx, categoryKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	category, err := s.categories.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	in, err := s.validateCategory(form)
	if err != nil {
		return nil, err
	}

	oldName := category.Name
	oldImage := category.ImagePath
	category.Name = in.name
	if in.image != nil {
		key, err := s.images.PutCategoryImage(ctx, *in.image)
		if err != nil {
			return nil, err
		}
		category.ImagePath = key
	}

	if err := s.categories.Update(context.WithoutCancel(ctx), category); err != nil {
		log.Error("Failed to update category", zap.Uint("category_id", id), zap.Error(err))
		if category.ImagePath != oldImage {
			s.images.DiscardCategoryImage(ctx, category.ImagePath)
		}
		return nil, err
	}

	if category.ImagePath != oldImage && oldImage != "" {
		// the row already points at the new image; a failure here only orphans the old blob
		_ = s.images.DeleteCategoryImage(ctx, oldImage)
	}

	prometheus.RecordCatalogOperation("category", "update")
	log.Info("Category updated successfully",
		zap.Uint("category_id", id),
		zap.String("old_name", oldName),
		zap.String("new_name", category.Name),
		zap.Bool("image_replaced", category.ImagePath != oldImage))
	s.decorateCategory(category)
	return category, nil
}

// DeleteCategory removes the category and its image. Categories that still
// hold products cannot be deleted.
func (s *Catalog) DeleteCategory(ctx context.Context, id uint) error {
	log := logger.FromCtx(ctx)

	unlock, err := s.acquire(ctx, categoryKey(id))
	if err != nil {
		return err
	}
	defer unlock()

	category, err := s.categories.Get(ctx, id)
	if err != nil {
		return err
	}

	count, err := s.categories.CountProducts(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		log.Warn("Cannot delete category that is being used by products",
			zap.Uint("category_id", id),
			zap.Int64("product_count", count))
		return apperror.Conflict("Cannot delete category that is being used by products")
	}

	if category.ImagePath != "" {
		// a blob that cannot be removed is orphaned; the row delete still goes ahead
		_ = s.images.DeleteCategoryImage(ctx, category.ImagePath)
	}

	if err := s.categories.Delete(context.WithoutCancel(ctx), id); err != nil {
		log.Error("Failed to delete category", zap.Uint("category_id", id), zap.Error(err))
		return err
	}

	prometheus.RecordCatalogOperation("category", "delete")
	log.Info("Category deleted successfully", zap.Uint("category_id", id))
	return nil
}

// TopCategories returns the categories holding the most products
func (s *Catalog) TopCategories(ctx context.Context) ([]model.Category, error) {
	categories, err := s.categories.TopByProductCount(ctx, TopLimit)
	if err != nil {
		return nil, err
	}
	s.decorateCategories(categories)
	return categories, nil
}
