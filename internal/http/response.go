package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"user-sync/internal/auth0"
	"user-sync/internal/service"
)

// successResponse replica el sobre que esperan los clientes del registro.
func successResponse(data any, message string) gin.H {
	return gin.H{
		"status":  "success",
		"data":    data,
		"message": message,
	}
}

func errorBody(status int, message string) gin.H {
	return gin.H{
		"statusCode": status,
		"error":      http.StatusText(status),
		"message":    message,
	}
}

// respondError traduce errores de servicio a respuestas HTTP.
func respondError(c *gin.Context, logger *zap.Logger, op string, err error) {
	var upstream *auth0.UpstreamError
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, errorBody(http.StatusNotFound, "User not found"))
	case errors.Is(err, service.ErrNotOwner):
		c.JSON(http.StatusBadRequest, errorBody(http.StatusBadRequest, "You are not allowed to update this user"))
	case errors.Is(err, auth0.ErrUpdateNotAllowed):
		c.JSON(http.StatusBadRequest, errorBody(http.StatusBadRequest, "User data cannot be updated for this identity"))
	case errors.Is(err, service.ErrInvalidIdentity),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrInvalidName):
		c.JSON(http.StatusBadRequest, errorBody(http.StatusBadRequest, err.Error()))
	case errors.Is(err, service.ErrUserConflict):
		c.JSON(http.StatusConflict, errorBody(http.StatusConflict, "User already exists"))
	case errors.As(err, &upstream) && upstream.ClientFacing():
		logger.Warn(op+" rejected by auth0",
			zap.Int("status", upstream.StatusCode),
			zap.String("body", upstream.Body),
		)
		c.JSON(upstream.StatusCode, errorBody(upstream.StatusCode, upstream.Error()))
	default:
		logger.Error(op+" failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": http.StatusInternalServerError,
			"error":  "Internal server error",
		})
	}
}
