package handler

import (
	"errors"
	"net/http"
	"strconv"

	"catalog-service/internal/apperror"
	"catalog-service/internal/middleware"
	"catalog-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Response is the envelope of every catalog endpoint
type Response struct {
	Data    interface{}         `json:"data,omitempty"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

func respond(c echo.Context, status int, message string, data interface{}) error {
	return c.JSON(status, Response{Data: data, Message: message})
}

// respondError maps a use case error onto the envelope. Causes are logged
// and never sent to the client.
func respondError(c echo.Context, err error) error {
	log := logger.FromContext(c)

	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		log.Error("Unexpected error", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, Response{Message: "Internal server error"})
	}

	status := apperror.HTTPStatus(err)
	switch appErr.Kind {
	case apperror.KindValidation:
		log.Info("Validation failed", zap.Any("errors", appErr.Fields))
		return c.JSON(status, Response{Message: appErr.Message, Errors: appErr.Fields})
	case apperror.KindNotFound, apperror.KindConflict:
		log.Info(appErr.Message)
	default:
		log.Error("Request failed",
			zap.String("kind", appErr.Kind.String()),
			zap.Error(err))
	}
	return c.JSON(status, Response{Message: appErr.Message})
}

// parseID reads a positive numeric path id; anything else resolves to nothing
func parseID(c echo.Context, notFound string) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperror.NotFound(notFound)
	}
	return uint(id), nil
}

// actor names the authenticated caller in mutation logs
func actor(c echo.Context) zap.Field {
	if id, ok := middleware.GetUserIDFromContext(c); ok {
		return zap.Uint("user_id", id)
	}
	return zap.Skip()
}
