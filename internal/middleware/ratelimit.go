package middleware

import (
	"net/http"

	"catalog-service/pkg/config"
	"catalog-service/pkg/logger"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimitMiddleware limits each client IP to the configured rate.
// It returns nil when rate limiting is disabled.
func RateLimitMiddleware(cfg config.RateLimitConfig) echo.MiddlewareFunc {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	store := echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
		Rate:  rate.Limit(cfg.RequestsPerSecond),
		Burst: burst,
	})

	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, echo.Map{"message": "Unable to identify client"})
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			logger.FromContext(c).Warn("Rate limit exceeded", zap.String("client", identifier))
			return c.JSON(http.StatusTooManyRequests, echo.Map{"message": "Too many requests"})
		},
	})
}
