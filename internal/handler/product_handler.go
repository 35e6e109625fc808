package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"catalog-service/internal/apperror"
	"catalog-service/internal/service"
	"catalog-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const productNotFound = "Product not found"

func (h *CatalogHandler) productForm(c echo.Context) (service.ProductForm, error) {
	images, err := formFiles(c, h.maxUploadBytes, "product_images[]", "product_images")
	if err != nil {
		logger.FromContext(c).Warn("Failed to read product images", zap.Error(err))
		return service.ProductForm{}, apperror.Validation(map[string][]string{
			"product_images": {"The product_images failed to upload."},
		})
	}
	return service.ProductForm{
		Name:       c.FormValue("product_name"),
		Price:      c.FormValue("product_price"),
		Quantity:   c.FormValue("quantity"),
		CategoryID: c.FormValue("category_id"),
		Expired:    c.FormValue("expired"),
		Images:     images,
	}, nil
}

// GetProduct returns a product with its category and images
func (h *CatalogHandler) GetProduct(c echo.Context) error {
	id, err := parseID(c, productNotFound)
	if err != nil {
		return respondError(c, err)
	}
	product, err := h.catalog.GetProduct(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusOK, "Product retrieved successfully", product)
}

// CreateProduct handles the multipart product form
func (h *CatalogHandler) CreateProduct(c echo.Context) error {
	logger.FromContext(c).Info("Creating new product", actor(c))

	form, err := h.productForm(c)
	if err != nil {
		return respondError(c, err)
	}
	product, err := h.catalog.CreateProduct(c.Request().Context(), form)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusCreated, "Product created successfully", product)
}

// UpdateProduct rewrites a product; supplied images replace the current set
func (h *CatalogHandler) UpdateProduct(c echo.Context) error {
	id, err := parseID(c, productNotFound)
	if err != nil {
		return respondError(c, err)
	}
	logger.FromContext(c).Info("Updating product", zap.Uint("product_id", id), actor(c))

	form, err := h.productForm(c)
	if err != nil {
		return respondError(c, err)
	}
	product, err := h.catalog.UpdateProduct(c.Request().Context(), id, form)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusOK, "Product updated successfully", product)
}

// DeleteProduct removes a product and its images
func (h *CatalogHandler) DeleteProduct(c echo.Context) error {
	id, err := parseID(c, productNotFound)
	if err != nil {
		return respondError(c, err)
	}
	logger.FromContext(c).Info("Deleting product", zap.Uint("product_id", id), actor(c))

	if err := h.catalog.DeleteProduct(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusOK, "Product deleted successfully", nil)
}

// DeleteExpiredProducts sweeps every expired product
func (h *CatalogHandler) DeleteExpiredProducts(c echo.Context) error {
	count, err := h.catalog.DeleteExpiredProducts(c.Request().Context())
	if err != nil {
		logger.FromContext(c).Error("Expired sweep stopped",
			zap.Int("deleted", count),
			zap.Error(err))
		if apperror.KindOf(err) == apperror.KindStorage || apperror.KindOf(err) == apperror.KindUnknown {
			return c.JSON(http.StatusInternalServerError, Response{
				Message: "Failed to delete expired products and their images",
			})
		}
		return respondError(c, err)
	}
	return respond(c, http.StatusOK, fmt.Sprintf("%d expired products and their images deleted successfully", count), nil)
}

// ListExpired returns every product flagged as expired
func (h *CatalogHandler) ListExpired(c echo.Context) error {
	products, err := h.catalog.ListExpired(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusOK, "Expired products retrieved successfully", products)
}

// LowStock returns products at or below ?threshold=, defaulting to the configured value
func (h *CatalogHandler) LowStock(c echo.Context) error {
	threshold := h.catalog.LowStockThreshold()
	if raw := c.QueryParam("threshold"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return respondError(c, apperror.Validation(map[string][]string{
				"threshold": {"The threshold must be an integer."},
			}))
		}
		threshold = n
	}

	products, err := h.catalog.LowStock(c.Request().Context(), threshold)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusOK,
		fmt.Sprintf("Products with %d or fewer items in stock retrieved successfully", threshold),
		products)
}
