package handler

import (
	"net/http"

	"catalog-service/internal/apperror"
	"catalog-service/internal/service"
	"catalog-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const categoryNotFound = "Category not found"

// CatalogHandler serves the category and product endpoints
type CatalogHandler struct {
	catalog        *service.Catalog
	maxUploadBytes int64
}

func NewCatalogHandler(catalog *service.Catalog, maxUploadBytes int64) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, maxUploadBytes: maxUploadBytes}
}

func (h *CatalogHandler) categoryForm(c echo.Context) (service.CategoryForm, error) {
	image, err := formFile(c, "category_image", h.maxUploadBytes)
	if err != nil {
		logger.FromContext(c).Warn("Failed to read category image", zap.Error(err))
		return service.CategoryForm{}, apperror.Validation(map[string][]string{
			"category_image": {"The category_image failed to upload."},
		})
	}
	return service.CategoryForm{Name: c.FormValue("category_name"), Image: image}, nil
}

// ListCategories returns every category
func (h *CatalogHandler) ListCategories(c echo.Context) error {
	categories, err := h.catalog.ListCategories(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusOK, "Categories retrieved successfully", categories)
}

// GetCategory returns a single category
func (h *CatalogHandler) GetCategory(c echo.Context) error {
	id, err := parseID(c, categoryNotFound)
	if err != nil {
		return respondError(c, err)
	}
	category, err := h.catalog.GetCategory(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusOK, "Category retrieved successfully", category)
}

// CreateCategory handles multipart category_name and optional category_image
func (h *CatalogHandler) CreateCategory(c echo.Context) error {
	log := logger.FromContext(c)
	log.Info("Creating new category", actor(c))

	form, err := h.categoryForm(c)
	if err != nil {
		return respondError(c, err)
	}
	category, err := h.catalog.CreateCategory(c.Request().Context(), form)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusCreated, "Category created successfully", category)
}

// UpdateCategory renames a category and optionally replaces its image
func (h *CatalogHandler) UpdateCategory(c echo.Context) error {
	id, err := parseID(c, categoryNotFound)
	if err != nil {
		return respondError(c, err)
	}
	logger.FromContext(c).Info("Updating category", zap.Uint("category_id", id), actor(c))

	form, err := h.categoryForm(c)
	if err != nil {
		return respondError(c, err)
	}
	category, err := h.catalog.UpdateCategory(c.Request().Context(), id, form)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusOK, "Category updated successfully", category)
}

// DeleteCategory removes a category that holds no products
func (h *CatalogHandler) DeleteCategory(c echo.Context) error {
	id, err := parseID(c, categoryNotFound)
	if err != nil {
		return respondError(c, err)
	}
	logger.FromContext(c).Info("Deleting category", zap.Uint("category_id", id), actor(c))

	if err := h.catalog.DeleteCategory(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusOK, "Category deleted successfully", nil)
}

// TopCategories returns the five categories with the most products
func (h *CatalogHandler) TopCategories(c echo.Context) error {
	categories, err := h.catalog.TopCategories(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusOK, "Top 5 categories with the most products retrieved successfully", categories)
}

// TopProductsInCategory returns the five most expensive products of a category
func (h *CatalogHandler) TopProductsInCategory(c echo.Context) error {
	id, err := parseID(c, categoryNotFound)
	if err != nil {
		return respondError(c, err)
	}
	products, err := h.catalog.TopProductsInCategory(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusOK, "Top 5 products in Price retrieved successfully for the category", products)
}
