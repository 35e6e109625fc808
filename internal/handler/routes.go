package handler

import (
	"github.com/labstack/echo/v4"
)

// Register mounts the catalog routes. guard, when non-nil, protects every
// mutating route.
func (h *CatalogHandler) Register(e *echo.Echo, guard echo.MiddlewareFunc) {
	var write []echo.MiddlewareFunc
	if guard != nil {
		write = append(write, guard)
	}

	categories := e.Group("/categories")
	categories.GET("/top", h.TopCategories)
	categories.GET("", h.ListCategories)
	categories.POST("", h.CreateCategory, write...)
	categories.POST("/:id", h.UpdateCategory, write...)
	categories.GET("/:id", h.GetCategory)
	categories.DELETE("/:id", h.DeleteCategory, write...)
	categories.GET("/:id/top-products", h.TopProductsInCategory)

	products := e.Group("/products")
	products.GET("/deleteExpired", h.DeleteExpiredProducts, write...)
	products.GET("/expired", h.ListExpired)
	products.GET("/low-stock", h.LowStock)
	products.POST("", h.CreateProduct, write...)
	products.POST("/:id", h.UpdateProduct, write...)
	products.GET("/:id", h.GetProduct)
	products.DELETE("/:id", h.DeleteProduct, write...)
}
