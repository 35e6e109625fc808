package service

import (
	"context"
	"time"

	"catalog-service/internal/model"
	"catalog-service/pkg/logger"
	"catalog-service/prometheus"

	"go.uber.org/zap"
)

// CheckLowStock runs the low-stock report at the configured threshold,
// logs every match and publishes the count as a gauge
func (s *Catalog) CheckLowStock(ctx context.Context) ([]model.Product, error) {
	log := logger.FromCtx(ctx)

	products, err := s.products.LowStock(ctx, s.lowStock)
	if err != nil {
		log.Error("Low-stock check failed", zap.Error(err))
		return nil, err
	}
	prometheus.SetLowStockProducts(len(products))

	if len(products) == 0 {
		log.Info("No products at or below the low-stock threshold", zap.Int("threshold", s.lowStock))
		return products, nil
	}
	log.Info("Products at or below the low-stock threshold",
		zap.Int("threshold", s.lowStock),
		zap.Int("count", len(products)))
	for _, p := range products {
		log.Info("Low stock",
			zap.Uint("product_id", p.ID),
			zap.String("product_name", p.Name),
			zap.Int("quantity", p.Quantity))
	}
	return products, nil
}

// RunLowStockCheck repeats CheckLowStock every interval until ctx is done
func (s *Catalog) RunLowStockCheck(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// errors are logged by the check itself
			_, _ = s.CheckLowStock(ctx)
		}
	}
}
