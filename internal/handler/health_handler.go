package handler

import (
	"context"
	"net/http"
	"time"

	"catalog-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck handles the health check endpoint. ?check=db also pings the database.
func HealthCheck(db Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromContext(c)

		response := map[string]interface{}{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		}

		if c.QueryParam("check") == "db" {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
			defer cancel()

			if err := db.Ping(ctx); err != nil {
				log.Error("Database ping error", zap.Error(err))
				response["status"] = "error"
				response["db_status"] = "error"
				response["db_error"] = "Failed to ping database"
				return c.JSON(http.StatusInternalServerError, response)
			}
			response["db_status"] = "ok"
		}

		return c.JSON(http.StatusOK, response)
	}
}
